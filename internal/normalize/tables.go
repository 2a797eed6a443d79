package normalize

import "ingrevia/internal/core"

// SkinSynonyms maps exact tokens to canonical skin types.
var SkinSynonyms = map[string]core.SkinType{
	"민감성":  core.SkinSensitive,
	"민감":   core.SkinSensitive,
	"지성":   core.SkinOily,
	"건성":   core.SkinDry,
	"복합성":  core.SkinCombination,
	"복합":   core.SkinCombination,
	"아토피성": core.SkinAtopic,
	"아토피":  core.SkinAtopic,
	"중성":   core.SkinNeutral,
}

// ConcernSynonyms maps exact tokens to canonical concerns.
var ConcernSynonyms = map[string]core.Concern{
	"보습":  core.ConcernMoisture,
	"보습감": core.ConcernMoisture,
	"수분":  core.ConcernMoisture,
	"수분감": core.ConcernMoisture,
	"유수분": core.ConcernMoisture,
	"촉촉":  core.ConcernMoisture,

	"진정":  core.ConcernSoothing,
	"쿨링":  core.ConcernSoothing,
	"붉음증": core.ConcernSoothing,
	"홍조":  core.ConcernSoothing,

	"미백":    core.ConcernBrightening,
	"톤업":    core.ConcernBrightening,
	"잡티":    core.ConcernBrightening,
	"브라이트닝": core.ConcernBrightening,

	"주름":    core.ConcernWrinkle,
	"탄력":    core.ConcernWrinkle,
	"탄력감":   core.ConcernWrinkle,
	"리프팅":   core.ConcernWrinkle,
	"주름/탄력": core.ConcernWrinkle,

	"모공":    core.ConcernPore,
	"모공관리":  core.ConcernPore,
	"모공케어":  core.ConcernPore,
	"블랙헤드":  core.ConcernPore,
	"피지":    core.ConcernPore,
	"피지조절":  core.ConcernPore,
	"유분":    core.ConcernPore,
	"번들거림":  core.ConcernPore,
	"모공/피지": core.ConcernPore,

	"트러블": core.ConcernTrouble,
	"여드름": core.ConcernTrouble,
	"뾰루지": core.ConcernTrouble,

	"각질":   core.ConcernExfoliation,
	"각질제거": core.ConcernExfoliation,
	"각질케어": core.ConcernExfoliation,
}

// CategorySynonyms maps exact tokens to canonical categories.
// Sun care always resolves to its own category.
var CategorySynonyms = map[string]core.Category{
	"토너":    core.CategoryToner,
	"스킨":    core.CategoryToner,
	"스킨/토너": core.CategoryToner,

	"로션":     core.CategoryLotion,
	"에멀전":    core.CategoryLotion,
	"에멀젼":    core.CategoryLotion,
	"로션/에멀전": core.CategoryLotion,

	"세럼":        core.CategorySerum,
	"앰플":        core.CategorySerum,
	"에센스":       core.CategorySerum,
	"에센스/앰플/세럼": core.CategorySerum,

	"크림": core.CategoryCream,

	"밤":     core.CategoryBalm,
	"멀티밤":   core.CategoryBalm,
	"밤/멀티밤": core.CategoryBalm,

	"클렌징폼":  core.CategoryCleansing,
	"클렌징":   core.CategoryCleansing,
	"클렌징 폼": core.CategoryCleansing,
	"폼클렌징":  core.CategoryCleansing,

	"시트마스크": core.CategorySheetMask,
	"마스크팩":  core.CategorySheetMask,
	"마스크":   core.CategorySheetMask,
	"팩":     core.CategorySheetMask,

	"선크림":    core.CategorySunCream,
	"선로션":    core.CategorySunCream,
	"선블록":    core.CategorySunCream,
	"자외선차단제": core.CategorySunCream,
	"자차":     core.CategorySunCream,
}

type concernRule struct {
	needles []string
	concern core.Concern
}

// concernFallbacks apply in order when no exact table entry matches a token.
var concernFallbacks = []concernRule{
	{needles: []string{"보습", "수분", "촉촉"}, concern: core.ConcernMoisture},
	{needles: []string{"모공", "피지", "번들", "유분", "블랙헤드"}, concern: core.ConcernPore},
	{needles: []string{"여드름", "트러블", "뾰루지"}, concern: core.ConcernTrouble},
	{needles: []string{"진정", "붉", "홍조", "쿨링"}, concern: core.ConcernSoothing},
	{needles: []string{"미백", "톤업", "잡티", "브라이트"}, concern: core.ConcernBrightening},
	{needles: []string{"주름", "탄력", "리프팅"}, concern: core.ConcernWrinkle},
	{needles: []string{"각질"}, concern: core.ConcernExfoliation},
}

// concernSearchTerms are matched against catalog efficacy text.
var concernSearchTerms = map[core.Concern][]string{
	core.ConcernMoisture:    {"보습", "수분"},
	core.ConcernSoothing:    {"진정"},
	core.ConcernBrightening: {"미백", "브라이트닝"},
	core.ConcernWrinkle:     {"주름", "탄력"},
	core.ConcernPore:        {"모공", "피지"},
	core.ConcernTrouble:     {"트러블", "여드름"},
	core.ConcernExfoliation: {"각질"},
}

type categoryRule struct {
	needles  []string
	all      bool
	category core.Category
}

// catalogCategoryRules resolve free-form catalog labels, first match wins.
// Sun cream is checked before lotion and cream so it never mixes with either.
var catalogCategoryRules = []categoryRule{
	{needles: []string{"선", "크림"}, all: true, category: core.CategorySunCream},
	{needles: []string{"선로션", "선블록", "자외선", "선스틱"}, category: core.CategorySunCream},
	{needles: []string{"로션", "에멀"}, category: core.CategoryLotion},
	{needles: []string{"스킨", "토너"}, category: core.CategoryToner},
	{needles: []string{"세럼", "앰플", "에센스"}, category: core.CategorySerum},
	{needles: []string{"클렌징"}, category: core.CategoryCleansing},
	{needles: []string{"마스크"}, category: core.CategorySheetMask},
	{needles: []string{"밤"}, category: core.CategoryBalm},
	{needles: []string{"크림"}, category: core.CategoryCream},
}

// particleSuffixes are trailing Korean particles removed from tokens, longest first.
var particleSuffixes = []string{
	"으로", "하고", "에서", "부터", "까지", "인데",
	"은", "는", "이", "가", "을", "를", "에", "의", "로", "과", "와", "랑", "도", "요",
}

var (
	requestKeywords    = []string{"추천", "찾아줘", "골라줘", "알려줘"}
	starterSetKeywords = []string{"기초화장품", "기초제품", "기초 세트", "기초세트", "기초 라인"}
	resetKeywords      = []string{"다시 시작", "처음부터", "리셋", "초기화", "restart", "reset"}
	noConcernPhrases   = []string{"고민 없", "고민없", "특별한 고민"}
	noSkinPhrases      = []string{"해당 없음", "해당없음", "피부 타입 없음"}
)
