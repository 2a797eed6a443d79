package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"ingrevia/internal/core"
)

var (
	quoteRe       = regexp.MustCompile("[\"'`]+")
	splitRe       = regexp.MustCompile(`[,/]\s*|\s+`)
	punctuationRe = regexp.MustCompile(`[!?.~…·]+$`)
	followUpRe    = regexp.MustCompile(`(같은\s*조건)|(이번엔|이번에는)|(?:^|\s)(도|또|역시|마찬가지로?|그대로)(?:\s|[!?.~]|$)`)
)

// Result is the rule-based reading of one utterance. Unmatched slots stay unknown.
type Result struct {
	SkinType   core.SkinType
	Concerns   []core.Concern
	Category   core.Category
	Categories []core.Category
	Explicit   core.ExplicitSlots
	// Matched is true when at least one token hit a synonym table or fallback rule.
	Matched bool
}

// Profile converts the result to a profile
func (r Result) Profile() core.UserProfile {
	return core.UserProfile{SkinType: r.SkinType, Concerns: r.Concerns, Category: r.Category}
}

// Normalizer maps free text onto canonical slot labels
type Normalizer struct{}

// New creates a normalizer
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize reads skin type, concerns and category from text
func (n *Normalizer) Normalize(text string) Result {
	res := Result{SkinType: core.SkinUnknown, Category: core.CategoryUnknown}
	text = Clean(text)

	for _, tok := range Tokenize(text) {
		if skin, ok := MatchSkinType(tok); ok {
			res.SkinType = skin
			res.Explicit.SkinType = true
			res.Matched = true
		}
		if concern, ok := MatchConcern(tok); ok {
			res.Concerns = append(res.Concerns, concern)
			res.Explicit.Concerns = true
			res.Matched = true
		}
		if category, ok := MatchCategory(tok); ok {
			res.Categories = appendCategory(res.Categories, category)
			res.Explicit.Category = true
			res.Matched = true
		}
	}

	if !res.Explicit.SkinType && containsAny(text, noSkinPhrases) {
		res.SkinType = core.SkinNone
		res.Explicit.SkinType = true
		res.Matched = true
	}
	if containsAny(text, noConcernPhrases) && len(res.Concerns) == 0 {
		res.Concerns = []core.Concern{core.ConcernNone}
		res.Explicit.Concerns = true
		res.Matched = true
	}

	res.Concerns = core.KnownConcerns(res.Concerns)
	if len(res.Categories) > 0 {
		res.Category = res.Categories[0]
	}
	return res
}

// Clean applies NFC normalization and trims surrounding space
func Clean(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}

// Tokenize splits text into particle-free tokens
func Tokenize(text string) []string {
	cleaned := quoteRe.ReplaceAllString(text, "")
	var tokens []string
	for _, raw := range splitRe.Split(cleaned, -1) {
		t := StripParticles(strings.TrimSpace(raw))
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// StripParticles removes trailing punctuation, then trailing particles until none match.
func StripParticles(token string) string {
	t := punctuationRe.ReplaceAllString(token, "")
	changed := true
	for changed && utf8.RuneCountInString(t) > 1 {
		changed = false
		for _, suffix := range particleSuffixes {
			if strings.HasSuffix(t, suffix) && utf8.RuneCountInString(t) > utf8.RuneCountInString(suffix) {
				t = strings.TrimSuffix(t, suffix)
				changed = true
				break
			}
		}
	}
	return t
}

// MatchSkinType resolves a single token to a skin type
func MatchSkinType(token string) (core.SkinType, bool) {
	if skin, ok := SkinSynonyms[token]; ok {
		return skin, true
	}
	if isExactConcern(token) || isExactCategory(token) {
		return core.SkinUnknown, false
	}
	// compounds resolve by their longest leading synonym ("민감피부", "건성 피부");
	// 성분 compounds ("비건성분", "민감성분") name ingredients, not skin
	if strings.Contains(token, "성분") {
		return core.SkinUnknown, false
	}
	best, bestLen := core.SkinUnknown, 0
	for word, skin := range SkinSynonyms {
		if !strings.HasPrefix(token, word) {
			continue
		}
		if n := utf8.RuneCountInString(word); n > bestLen {
			best, bestLen = skin, n
		}
	}
	return best, bestLen > 0
}

// MatchConcern resolves a single token to a concern, exact table first
func MatchConcern(token string) (core.Concern, bool) {
	if concern, ok := ConcernSynonyms[token]; ok {
		return concern, true
	}
	if isExactSkin(token) || isExactCategory(token) {
		return "", false
	}
	for _, rule := range concernFallbacks {
		if containsAny(token, rule.needles) {
			return rule.concern, true
		}
	}
	return "", false
}

// MatchCategory resolves a single user token to a category. Compound words
// resolve by their longest category suffix ("수분크림", "진정토너").
func MatchCategory(token string) (core.Category, bool) {
	if category, ok := CategorySynonyms[token]; ok {
		return category, true
	}
	if isExactSkin(token) || isExactConcern(token) {
		return core.CategoryUnknown, false
	}
	best, bestLen := core.CategoryUnknown, 0
	for word, category := range CategorySynonyms {
		n := utf8.RuneCountInString(word)
		if n < 2 || !strings.HasSuffix(token, word) {
			continue
		}
		if n > bestLen || (n == bestLen && string(category) < string(best)) {
			best, bestLen = category, n
		}
	}
	return best, bestLen > 0
}

func isExactSkin(token string) bool {
	_, ok := SkinSynonyms[token]
	return ok
}

func isExactConcern(token string) bool {
	_, ok := ConcernSynonyms[token]
	return ok
}

func isExactCategory(token string) bool {
	_, ok := CategorySynonyms[token]
	return ok
}

// CanonicalCategory resolves a free-form label (catalog rows, LLM output) onto the closed set.
// Canonical labels map to themselves.
func CanonicalCategory(label string) core.Category {
	c := strings.ToLower(Clean(label))
	if c == "" || c == core.Unknown {
		return core.CategoryUnknown
	}
	if category, ok := CategorySynonyms[c]; ok {
		return category
	}
	for _, rule := range catalogCategoryRules {
		if rule.all && containsAll(c, rule.needles) {
			return rule.category
		}
		if !rule.all && containsAny(c, rule.needles) {
			return rule.category
		}
	}
	return core.CategoryUnknown
}

// CanonicalSkinType resolves a label from model output
func CanonicalSkinType(label string) core.SkinType {
	l := Clean(label)
	if l == "" || l == core.Unknown {
		return core.SkinUnknown
	}
	if core.SkinType(l) == core.SkinNone || containsAny(l, noSkinPhrases) {
		return core.SkinNone
	}
	if skin, ok := MatchSkinType(StripParticles(l)); ok {
		return skin
	}
	return core.SkinUnknown
}

// CanonicalConcern resolves a label from model output
func CanonicalConcern(label string) (core.Concern, bool) {
	l := Clean(label)
	if l == "" || l == core.Unknown {
		return "", false
	}
	if core.Concern(l) == core.ConcernNone || containsAny(l, noConcernPhrases) {
		return core.ConcernNone, true
	}
	return MatchConcern(StripParticles(l))
}

// ConcernSearchTerms returns the efficacy keywords that satisfy a concern
func ConcernSearchTerms(c core.Concern) []string {
	if terms, ok := concernSearchTerms[c]; ok {
		return terms
	}
	return []string{string(c)}
}

// HasRequestKeyword reports an explicit recommendation request
func HasRequestKeyword(text string) bool {
	return containsAny(Clean(text), requestKeywords)
}

// IsStarterSetRequest reports a request for a basic skincare set
func IsStarterSetRequest(text string) bool {
	return containsAny(Clean(text), starterSetKeywords)
}

// IsResetRequest reports a restart keyword
func IsResetRequest(text string) bool {
	return containsAny(strings.ToLower(Clean(text)), resetKeywords)
}

// IsFollowUp reports connector words meaning also/again/same as before, including a
// category word carrying the 도 particle ("로션도").
func IsFollowUp(text string) bool {
	text = Clean(text)
	if followUpRe.MatchString(text) {
		return true
	}
	for _, raw := range splitRe.Split(quoteRe.ReplaceAllString(text, ""), -1) {
		raw = punctuationRe.ReplaceAllString(strings.TrimSpace(raw), "")
		if !strings.HasSuffix(raw, "도") {
			continue
		}
		if _, ok := MatchCategory(StripParticles(raw)); ok {
			return true
		}
	}
	return false
}

func appendCategory(list []core.Category, c core.Category) []core.Category {
	for _, existing := range list {
		if existing == c {
			return list
		}
	}
	return append(list, c)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func containsAll(s string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(s, n) {
			return false
		}
	}
	return true
}
