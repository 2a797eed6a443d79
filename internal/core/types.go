package core

import (
	"context"
	"strings"
	"time"

	"ingrevia/pkg"
)

// Unknown is the sentinel used for unresolved slots, both internally and in LLM JSON.
const Unknown = "알 수 없음"

// SkinType is a canonical skin type label
type SkinType string

const (
	SkinSensitive   SkinType = "민감성"
	SkinOily        SkinType = "지성"
	SkinDry         SkinType = "건성"
	SkinAtopic      SkinType = "아토피성"
	SkinCombination SkinType = "복합성"
	SkinNeutral     SkinType = "중성"
	SkinNone        SkinType = "해당 없음"
	SkinUnknown     SkinType = Unknown
)

// SkinTypes lists the selectable skin types in display order.
var SkinTypes = []SkinType{SkinSensitive, SkinOily, SkinDry, SkinAtopic, SkinCombination, SkinNeutral}

// Known reports whether the skin type slot is resolved
func (s SkinType) Known() bool {
	return s != "" && s != SkinUnknown
}

// Concern is a canonical skin concern label
type Concern string

const (
	ConcernMoisture    Concern = "보습"
	ConcernSoothing    Concern = "진정"
	ConcernBrightening Concern = "미백"
	ConcernWrinkle     Concern = "주름/탄력"
	ConcernPore        Concern = "모공/피지"
	ConcernTrouble     Concern = "트러블"
	ConcernExfoliation Concern = "각질"
	ConcernNone        Concern = "특별한 고민 없음"
)

// Concerns lists the selectable concerns in display order.
var Concerns = []Concern{
	ConcernMoisture, ConcernSoothing, ConcernBrightening, ConcernWrinkle,
	ConcernPore, ConcernTrouble, ConcernExfoliation,
}

// Category is a canonical product category label
type Category string

const (
	CategoryToner     Category = "스킨/토너"
	CategoryLotion    Category = "로션/에멀전"
	CategorySerum     Category = "에센스/앰플/세럼"
	CategoryCream     Category = "크림"
	CategoryBalm      Category = "밤/멀티밤"
	CategoryCleansing Category = "클렌징 폼"
	CategorySheetMask Category = "시트마스크"
	CategorySunCream  Category = "선크림"
	CategoryUnknown   Category = Unknown
)

// Categories is the closed category set in scan order.
var Categories = []Category{
	CategoryToner, CategoryLotion, CategorySerum, CategoryCream,
	CategoryBalm, CategoryCleansing, CategorySheetMask, CategorySunCream,
}

// Known reports whether the category slot is resolved
func (c Category) Known() bool {
	return c != "" && c != CategoryUnknown
}

// UserProfile is the confirmed slot state of one conversation
type UserProfile struct {
	SkinType SkinType  `json:"skin_type"`
	Concerns []Concern `json:"concerns"`
	Category Category  `json:"category"`
}

// NewUserProfile returns an all-unknown profile
func NewUserProfile() UserProfile {
	return UserProfile{SkinType: SkinUnknown, Category: CategoryUnknown}
}

func (p UserProfile) HasSkinType() bool { return p.SkinType.Known() }

func (p UserProfile) HasConcerns() bool { return len(KnownConcerns(p.Concerns)) > 0 }

func (p UserProfile) HasCategory() bool { return p.Category.Known() }

// IsEmpty reports whether no slot is resolved
func (p UserProfile) IsEmpty() bool {
	return !p.HasSkinType() && !p.HasConcerns() && !p.HasCategory()
}

// ConcernLabels returns the resolved concerns as strings
func (p UserProfile) ConcernLabels() []string {
	known := KnownConcerns(p.Concerns)
	out := make([]string, 0, len(known))
	for _, c := range known {
		out = append(out, string(c))
	}
	return out
}

// Clone returns a copy that shares no slice memory with p
func (p UserProfile) Clone() UserProfile {
	out := p
	if p.Concerns != nil {
		out.Concerns = append([]Concern(nil), p.Concerns...)
	}
	return out
}

// String renders the profile for logs and prompts
func (p UserProfile) String() string {
	concerns := Unknown
	if labels := p.ConcernLabels(); len(labels) > 0 {
		concerns = strings.Join(labels, ", ")
	}
	skin, category := string(p.SkinType), string(p.Category)
	if !p.HasSkinType() {
		skin = Unknown
	}
	if !p.HasCategory() {
		category = Unknown
	}
	return "skin=" + skin + " concerns=" + concerns + " category=" + category
}

// KnownConcerns deduplicates concerns in first-seen order and drops the unknown sentinel.
// A result holding nothing resolved is nil.
func KnownConcerns(concerns []Concern) []Concern {
	var out []Concern
	seen := make(map[Concern]bool, len(concerns))
	for _, c := range concerns {
		c = Concern(strings.TrimSpace(string(c)))
		if c == "" || c == Unknown || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// ExplicitSlots records which slots the utterance named through rule tokens
type ExplicitSlots struct {
	SkinType bool `json:"skin_type"`
	Concerns bool `json:"concerns"`
	Category bool `json:"category"`
}

// SlotExtraction is the per-turn parse result
type SlotExtraction struct {
	UserProfile
	Explicit   ExplicitSlots `json:"explicit"`
	FollowUp   bool          `json:"follow_up"`
	OffTopic   bool          `json:"off_topic"`
	StarterSet bool          `json:"starter_set"`
	UsedLLM    bool          `json:"used_llm"`
}

// CatalogRecord is one product row of the catalog
type CatalogRecord struct {
	Brand             string   `json:"brand"`
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	CanonicalCategory Category `json:"canonical_category"`
	Ingredients       []string `json:"ingredients"`
	IngredientText    string   `json:"ingredient_text"`
	Efficacy          []string `json:"efficacy"`
	EfficacyText      string   `json:"efficacy_text"`
	Price             float64  `json:"price"`
	Volume            string   `json:"volume"`
	Link              string   `json:"link"`
	HarmScore         float64  `json:"harm_score"`
}

// KeyIngredients is the ordered, lowercase ingredient list used for ranking
type KeyIngredients []string

// RankedProduct is a scored catalog record
type RankedProduct struct {
	Record           CatalogRecord `json:"record"`
	MatchCount       int           `json:"match_count"`
	HarmScore        float64       `json:"harm_score"`
	FoundIngredients []string      `json:"found_ingredients"`
}

// RecommendationItem is one explained product
type RecommendationItem struct {
	Rank       int           `json:"rank"`
	Product    RankedProduct `json:"product"`
	Beneficial []string      `json:"beneficial"`
	Reason     string        `json:"reason"`
	Cautions   []string      `json:"cautions"`
}

// Recommendation is the structured result handed to the presentation layer
type Recommendation struct {
	Profile        UserProfile          `json:"profile"`
	KeyIngredients KeyIngredients       `json:"key_ingredients"`
	Items          []RecommendationItem `json:"items"`
	StarterSet     bool                 `json:"starter_set"`
}

// Session is the explicit conversation handle passed through every turn
type Session struct {
	ID        string                    `json:"id"`
	Profile   UserProfile               `json:"profile"`
	Messages  []pkg.ConversationMessage `json:"messages"`
	CreatedAt int64                     `json:"created_at"`
	UpdatedAt int64                     `json:"updated_at"`
	Metadata  map[string]any            `json:"metadata"`
}

// NewSession creates an empty session for the given id
func NewSession(id string) *Session {
	now := time.Now().Unix()
	return &Session{
		ID:        id,
		Profile:   NewUserProfile(),
		Messages:  []pkg.ConversationMessage{},
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]any),
	}
}

// Reset clears profile and history in one step
func (s *Session) Reset() {
	s.Profile = NewUserProfile()
	s.Messages = []pkg.ConversationMessage{}
	s.Metadata = make(map[string]any)
	s.UpdatedAt = time.Now().Unix()
}

// AddMessage appends to the history
func (s *Session) AddMessage(message pkg.ConversationMessage) {
	s.Messages = append(s.Messages, message)
	s.UpdatedAt = time.Now().Unix()
}

// SlotParser turns one utterance into a SlotExtraction
type SlotParser interface {
	Parse(ctx context.Context, utterance string) SlotExtraction
}

// PreferenceMerger combines a new extraction with the confirmed profile
type PreferenceMerger interface {
	Merge(ctx context.Context, extraction SlotExtraction, confirmed UserProfile, history []pkg.ConversationMessage) UserProfile
}

// IngredientSelector picks beneficial ingredients for a profile
type IngredientSelector interface {
	Select(ctx context.Context, profile UserProfile) KeyIngredients
}

// ProductRanker ranks catalog products for a profile
type ProductRanker interface {
	Rank(profile UserProfile, ingredients KeyIngredients) []RankedProduct
	RankStarterSet(profile UserProfile, ingredients KeyIngredients) []RankedProduct
}

// ExplanationComposer explains ranked products and renders the final message
type ExplanationComposer interface {
	Compose(ctx context.Context, profile UserProfile, ingredients KeyIngredients, products []RankedProduct) Recommendation
	Render(rec Recommendation) string
}

// TurnResult is the result of one turn
type TurnResult struct {
	Reply          string          `json:"reply"`
	Outcome        Outcome         `json:"outcome"`
	Profile        UserProfile     `json:"profile"`
	Extraction     SlotExtraction  `json:"extraction"`
	Missing        []MissingSlot   `json:"missing,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Path           []State         `json:"path"`
	Reset          bool            `json:"reset"`
	ProcessingTime int64           `json:"processing_time_ms"`
}
