package nodes

import (
	"context"
	"regexp"
	"strings"

	"ingrevia/internal/core"
	"ingrevia/internal/llm"
	"ingrevia/internal/logger"
)

// MaxKeyIngredients caps the selector output
const MaxKeyIngredients = 7

var (
	listSplitRe = regexp.MustCompile(`[,，\n]`)
	bulletRe    = regexp.MustCompile(`^[•\-\*\d\.\)\s]+`)
)

var _ core.IngredientSelector = (*IngredientSelector)(nil)

type IngredientSelector struct {
	caller *llm.Resilient
}

func NewIngredientSelector(caller *llm.Resilient) *IngredientSelector {
	return &IngredientSelector{caller: caller}
}

// Select asks for five actives suited to the profile. Failure yields an empty set.
func (s *IngredientSelector) Select(ctx context.Context, profile core.UserProfile) core.KeyIngredients {
	prompt := buildIngredientPrompt(profile)
	res := s.caller.Call(ctx, "ingredient_selection", prompt, "")
	if res.Fallback {
		return core.KeyIngredients{}
	}

	keys := ParseIngredientList(res.Text, MaxKeyIngredients)
	logger.Debug().Strs("ingredients", keys).Msg("Key ingredients selected")
	return core.KeyIngredients(keys)
}

func buildIngredientPrompt(profile core.UserProfile) string {
	concerns := core.KnownConcerns(profile.Concerns)
	general := len(concerns) == 0 || (len(concerns) == 1 && concerns[0] == core.ConcernNone)
	if general {
		return strings.NewReplacer("{skin}", skinLabel(profile)).Replace(generalIngredientTemplate)
	}
	labels := make([]core.Concern, 0, len(concerns))
	for _, c := range concerns {
		if c != core.ConcernNone {
			labels = append(labels, c)
		}
	}
	return strings.NewReplacer(
		"{skin}", skinLabel(profile),
		"{concerns}", labelList(labels),
	).Replace(concernIngredientTemplate)
}

// ParseIngredientList splits a comma list into trimmed, lowercase, unique names.
// limit <= 0 keeps everything.
func ParseIngredientList(text string, limit int) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, part := range listSplitRe.Split(text, -1) {
		name := strings.ToLower(cleanListItem(part))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func cleanListItem(s string) string {
	s = bulletRe.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.Trim(strings.TrimSpace(s), "\"'`.")
}
