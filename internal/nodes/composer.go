package nodes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"ingrevia/internal/core"
	"ingrevia/internal/llm"
	"ingrevia/internal/logger"
	"ingrevia/internal/search"
)

const (
	// MaxRecommendations bounds the explained products per reply
	MaxRecommendations = 3

	DefaultReason   = "핵심 성분과 저자극 지표가 조건에 부합"
	NoMatchMessage  = "조건에 맞는 제품을 찾지 못했습니다. 다른 조건으로 다시 시도해 보실래요?"
	recommendHeader = "요청하신 조건에 맞춰 추천 제품을 정리했어요. 😊"
	starterHeader   = "기초 스킨케어 세트를 카테고리별로 하나씩 골라봤어요. 😊"

	maxInferred      = 6
	maxCautionLines  = 5
	maxInferredRunes = 28
	maxInferredWords = 5
)

var (
	medals         = []string{"🥇", "🥈", "🥉"}
	apologyMarkers = []string{"죄송", "추출할 수 없", "제공된 자료", "정보가 부족", "없습니다"}

	cautionSeparators = []string{"—", " - ", ":"}
)

var _ core.ExplanationComposer = (*Composer)(nil)

// Composer explains ranked products with model summaries grounded on search snippets
type Composer struct {
	caller   *llm.Resilient
	searcher *search.Guarded
	benign   map[string]bool
}

func NewComposer(caller *llm.Resilient, searcher search.Searcher) *Composer {
	benign := make(map[string]bool, len(BenignIngredients))
	for _, name := range BenignIngredients {
		benign[strings.ToLower(name)] = true
	}
	return &Composer{caller: caller, searcher: search.NewGuarded(searcher), benign: benign}
}

// Compose explains up to three products. An empty product list makes no calls.
func (c *Composer) Compose(ctx context.Context, profile core.UserProfile, ingredients core.KeyIngredients, products []core.RankedProduct) core.Recommendation {
	rec := core.Recommendation{
		Profile:        profile.Clone(),
		KeyIngredients: ingredients,
		Items:          []core.RecommendationItem{},
	}
	if len(products) > MaxRecommendations {
		products = products[:MaxRecommendations]
	}

	for i, product := range products {
		beneficial := c.beneficialIngredients(ctx, product, ingredients)
		item := core.RecommendationItem{
			Rank:       i + 1,
			Product:    product,
			Beneficial: beneficial,
			Reason:     c.reason(ctx, profile, ingredients, product),
			Cautions:   c.cautions(ctx, beneficial),
		}
		rec.Items = append(rec.Items, item)
	}

	logger.Debug().Int("items", len(rec.Items)).Msg("Recommendation composed")
	return rec
}

func (c *Composer) snippets(ctx context.Context, name, query string) string {
	return strings.Join(c.searcher.Lookup(ctx, name, query).Snippets, "\n")
}

func (c *Composer) beneficialIngredients(ctx context.Context, product core.RankedProduct, keys core.KeyIngredients) []string {
	if found := uniqueNonEmpty(product.FoundIngredients, 0); len(found) > 0 {
		return found
	}

	rec := product.Record
	name := strings.TrimSpace(rec.Brand + " " + rec.Name)
	prompt := strings.NewReplacer(
		"{product}", name,
		"{snippets}", c.snippets(ctx, "beneficial_inference", name+" 전성분 효능 성분 성분표 성분 리스트"),
	).Replace(productIngredientTemplate)

	res := c.caller.Call(ctx, "beneficial_inference", prompt, "")
	if inferred := FilterInferredIngredients(res.Text); len(inferred) > 0 {
		return inferred
	}
	return uniqueNonEmpty(keys, maxInferred)
}

// FilterInferredIngredients keeps short ingredient-like entries and drops
// apology or explanation lines.
func FilterInferredIngredients(text string) []string {
	var kept []string
	for _, part := range listSplitRe.Split(text, -1) {
		x := strings.TrimSpace(part)
		if x == "" || containsAnyOf(x, apologyMarkers) {
			continue
		}
		if utf8.RuneCountInString(x) > maxInferredRunes || len(strings.Fields(x)) > maxInferredWords {
			continue
		}
		kept = append(kept, x)
	}
	return uniqueNonEmpty(kept, maxInferred)
}

func (c *Composer) reason(ctx context.Context, profile core.UserProfile, keys core.KeyIngredients, product core.RankedProduct) string {
	rec := product.Record
	name := strings.TrimSpace(rec.Brand + " " + rec.Name)

	matched := strings.Join(uniqueNonEmpty(product.FoundIngredients, 0), ", ")
	if matched == "" {
		matched = strings.Join(uniqueNonEmpty(keys, 0), ", ")
	}

	query := fmt.Sprintf("%s 성분 효과 리뷰 장단점 %s %s %s",
		name, categoryLabel(profile), skinLabel(profile), concernLabel(profile))
	prompt := strings.NewReplacer(
		"{skin}", skinLabel(profile),
		"{concerns}", concernLabel(profile),
		"{category}", categoryLabel(profile),
		"{product}", name,
		"{matched}", matched,
		"{snippets}", c.snippets(ctx, "reason", query),
	).Replace(reasonTemplate)

	res := c.caller.Call(ctx, "reason", prompt, "")
	return ParseReason(res.Text)
}

// ParseReason takes the first line without bullets or numbering
func ParseReason(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(bulletRe.ReplaceAllString(strings.TrimSpace(line), ""))
	if line == "" {
		return DefaultReason
	}
	return line
}

func (c *Composer) cautions(ctx context.Context, beneficial []string) []string {
	var candidates []string
	for _, name := range beneficial {
		if !c.benign[strings.ToLower(name)] {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	list := strings.Join(candidates, ", ")
	prompt := strings.NewReplacer(
		"{snippets}", c.snippets(ctx, "cautions", list+" 화장품 유해성 주의사항"),
		"{candidates}", list,
		"{beneficial}", strings.ToLower(strings.Join(beneficial, ", ")),
		"{benign}", strings.Join(BenignIngredients, ", "),
	).Replace(cautionTemplate)

	res := c.caller.Call(ctx, "cautions", prompt, "")
	return c.ParseCautions(res.Text, beneficial)
}

// ParseCautions keeps the ingredient name of each caution line. Names duplicating a
// beneficial ingredient survive only when marked [조건부].
func (c *Composer) ParseCautions(text string, beneficial []string) []string {
	isBeneficial := make(map[string]bool, len(beneficial))
	for _, b := range beneficial {
		isBeneficial[strings.ToLower(strings.TrimSpace(b))] = true
	}

	var out []string
	seen := make(map[string]bool)
	lines := 0
	for _, raw := range strings.Split(text, "\n") {
		ln := strings.TrimSpace(raw)
		if ln == "" {
			continue
		}
		if lines++; lines > maxCautionLines {
			break
		}
		name, rest := splitCaution(bulletRe.ReplaceAllString(ln, ""))
		key := strings.ToLower(name)
		if name == "" || seen[key] || c.benign[key] {
			continue
		}
		if isBeneficial[key] && !strings.Contains(rest, "[조건부]") {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// splitCaution cuts a caution line at its first name separator
func splitCaution(line string) (name, rest string) {
	cut := -1
	width := 0
	for _, sep := range cautionSeparators {
		if i := strings.Index(line, sep); i >= 0 && (cut < 0 || i < cut) {
			cut, width = i, len(sep)
		}
	}
	if cut < 0 {
		return strings.TrimSpace(line), ""
	}
	return strings.TrimSpace(line[:cut]), line[cut+width:]
}

// Render formats a recommendation as the chat reply
func (c *Composer) Render(rec core.Recommendation) string {
	if len(rec.Items) == 0 {
		return NoMatchMessage
	}

	var lines []string
	if rec.StarterSet {
		lines = append(lines, starterHeader)
	} else {
		lines = append(lines, recommendHeader)
	}

	var bits []string
	p := rec.Profile
	if p.HasSkinType() {
		bits = append(bits, fmt.Sprintf("🧑‍🦰 피부: **%s**", p.SkinType))
	}
	if labels := p.ConcernLabels(); len(labels) > 0 {
		bits = append(bits, fmt.Sprintf("🌿 고민: **%s**", strings.Join(labels, ", ")))
	}
	if p.HasCategory() {
		bits = append(bits, fmt.Sprintf("🧴 제품: **%s**", p.Category))
	}
	if len(bits) > 0 {
		lines = append(lines, "**🎯 사용자 조건**", "   "+strings.Join(bits, "   ·   "), "")
	}

	if keys := uniqueNonEmpty(rec.KeyIngredients, 0); len(keys) > 0 {
		lines = append(lines, "**🧪 효능 성분(분석 기준):** "+strings.Join(keys, ", "), "")
	}

	for i, item := range rec.Items {
		r := item.Product.Record
		medal := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			medal = medals[i]
		}
		link := "-"
		if strings.TrimSpace(r.Link) != "" {
			link = fmt.Sprintf("[링크](%s)", strings.TrimSpace(r.Link))
		}
		beneficial := "정보 부족"
		if len(item.Beneficial) > 0 {
			beneficial = strings.Join(item.Beneficial, ", ")
		}
		cautions := "없음"
		if len(item.Cautions) > 0 {
			cautions = strings.Join(item.Cautions, ", ")
		}

		lines = append(lines,
			fmt.Sprintf("%s %d. %s", medal, item.Rank, r.Name),
			"   🏬 브랜드: "+orDash(r.Brand),
			"   💰 가격: "+formatPrice(r.Price),
			"   🫙 용량: "+orDash(r.Volume),
			"   🔗 "+link,
			"   ✅ 추천 이유: "+item.Reason,
			"   🧪 효능 성분: "+beneficial,
			"   ⚠️ 주의 성분: "+cautions,
		)
		if i < len(rec.Items)-1 {
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n")
}

func formatPrice(price float64) string {
	if price <= 0 {
		return "-"
	}
	return strconv.FormatFloat(price, 'f', -1, 64) + "원"
}

func orDash(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "-"
	}
	return s
}

func uniqueNonEmpty[S ~[]string](values S, limit int) []string {
	var out []string
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func containsAnyOf(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
