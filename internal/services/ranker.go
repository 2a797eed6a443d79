package services

import (
	"sort"
	"strings"

	"ingrevia/internal/core"
	"ingrevia/internal/logger"
	"ingrevia/internal/normalize"
)

var _ core.ProductRanker = (*Ranker)(nil)

// RankerOptions configures filtering and truncation
type RankerOptions struct {
	TopN              int
	HarmFilter        bool
	HarmThreshold     float64
	StarterCategories []core.Category
}

// DefaultRankerOptions mirrors the shipped config.yaml
func DefaultRankerOptions() RankerOptions {
	return RankerOptions{
		TopN:              3,
		HarmFilter:        true,
		HarmThreshold:     3.5,
		StarterCategories: []core.Category{core.CategoryToner, core.CategoryLotion, core.CategoryCream},
	}
}

// Ranker scores catalog products against a profile and key ingredients.
// Ranking is deterministic for a given catalog, profile and ingredient list.
type Ranker struct {
	catalog *Catalog
	opts    RankerOptions
}

// NewRanker creates a ranker over a loaded catalog
func NewRanker(catalog *Catalog, opts RankerOptions) *Ranker {
	if opts.TopN <= 0 {
		opts.TopN = 3
	}
	if catalog == nil {
		catalog = NewCatalog(nil)
	}
	return &Ranker{catalog: catalog, opts: opts}
}

// Rank returns the top N products. With an unknown category every category is
// ranked on its own and the best product of each is kept, in category order.
func (r *Ranker) Rank(profile core.UserProfile, ingredients core.KeyIngredients) []core.RankedProduct {
	var out []core.RankedProduct
	if profile.HasCategory() {
		out = r.rankCategory(profile.Category, profile, ingredients)
	} else {
		for _, category := range core.Categories {
			if ranked := r.rankCategory(category, profile, ingredients); len(ranked) > 0 {
				out = append(out, ranked[0])
			}
		}
	}
	if len(out) > r.opts.TopN {
		out = out[:r.opts.TopN]
	}
	logger.Debug().
		Str("profile", profile.String()).
		Int("ingredients", len(ingredients)).
		Int("results", len(out)).
		Msg("Products ranked")
	return out
}

// RankStarterSet returns the best product of each starter category
func (r *Ranker) RankStarterSet(profile core.UserProfile, ingredients core.KeyIngredients) []core.RankedProduct {
	var out []core.RankedProduct
	for _, category := range r.opts.StarterCategories {
		if ranked := r.rankCategory(category, profile, ingredients); len(ranked) > 0 {
			out = append(out, ranked[0])
		}
	}
	return out
}

func (r *Ranker) rankCategory(category core.Category, profile core.UserProfile, ingredients core.KeyIngredients) []core.RankedProduct {
	candidates := r.catalog.ByCategory(category)
	if len(candidates) == 0 {
		return nil
	}

	concerns := filterConcerns(profile.Concerns)
	filtered := r.applyHarmFilter(matchConcerns(candidates, concerns, true))
	if len(filtered) == 0 && len(concerns) > 1 {
		filtered = r.applyHarmFilter(matchConcerns(candidates, concerns, false))
		if len(filtered) > 0 {
			logger.Debug().Str("category", string(category)).Msg("Concern filter relaxed to any-match")
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	keys := normalizeKeys(ingredients)
	ranked := make([]core.RankedProduct, 0, len(filtered))
	for _, rec := range filtered {
		found := foundIngredients(rec, keys)
		ranked = append(ranked, core.RankedProduct{
			Record:           rec,
			MatchCount:       len(found),
			HarmScore:        rec.HarmScore,
			FoundIngredients: found,
		})
	}
	SortRanked(ranked)
	return ranked
}

// SortRanked orders by match count descending, then harm score ascending.
// Remaining ties keep their input order.
func SortRanked(ranked []core.RankedProduct) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].MatchCount != ranked[j].MatchCount {
			return ranked[i].MatchCount > ranked[j].MatchCount
		}
		return ranked[i].HarmScore < ranked[j].HarmScore
	})
}

func (r *Ranker) applyHarmFilter(records []core.CatalogRecord) []core.CatalogRecord {
	if !r.opts.HarmFilter {
		return records
	}
	out := records[:0:0]
	for _, rec := range records {
		if rec.HarmScore <= r.opts.HarmThreshold {
			out = append(out, rec)
		}
	}
	return out
}

// filterConcerns drops the "no concern" option, which never filters
func filterConcerns(concerns []core.Concern) []core.Concern {
	var out []core.Concern
	for _, c := range core.KnownConcerns(concerns) {
		if c != core.ConcernNone {
			out = append(out, c)
		}
	}
	return out
}

func matchConcerns(records []core.CatalogRecord, concerns []core.Concern, all bool) []core.CatalogRecord {
	if len(concerns) == 0 {
		return records
	}
	var out []core.CatalogRecord
	for _, rec := range records {
		efficacy := strings.ToLower(rec.EfficacyText)
		if efficacy == "" {
			efficacy = strings.ToLower(strings.Join(rec.Efficacy, ","))
		}
		matched := 0
		for _, c := range concerns {
			if concernMatches(efficacy, c) {
				matched++
			}
		}
		if (all && matched == len(concerns)) || (!all && matched > 0) {
			out = append(out, rec)
		}
	}
	return out
}

func concernMatches(efficacy string, c core.Concern) bool {
	if strings.Contains(efficacy, strings.ToLower(string(c))) {
		return true
	}
	for _, term := range normalize.ConcernSearchTerms(c) {
		if strings.Contains(efficacy, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func normalizeKeys(ingredients core.KeyIngredients) []string {
	seen := make(map[string]bool, len(ingredients))
	keys := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		ing = strings.ToLower(strings.TrimSpace(ing))
		if ing == "" || seen[ing] {
			continue
		}
		seen[ing] = true
		keys = append(keys, ing)
	}
	return keys
}

func foundIngredients(rec core.CatalogRecord, keys []string) []string {
	text := strings.ToLower(rec.IngredientText)
	if text == "" {
		text = strings.ToLower(strings.Join(rec.Ingredients, ","))
	}
	var found []string
	for _, k := range keys {
		if strings.Contains(text, k) {
			found = append(found, k)
		}
	}
	return found
}
