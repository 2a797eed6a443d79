package nodes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingrevia/internal/core"
	"ingrevia/internal/llm"
	"ingrevia/internal/normalize"
	"ingrevia/pkg"
)

// scriptedGenerator answers by the first rule whose marker appears in the prompt
type scriptedGenerator struct {
	mu      sync.Mutex
	rules   []scriptRule
	prompts []string
}

type scriptRule struct {
	marker string
	reply  string
	err    error
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	for _, r := range g.rules {
		if strings.Contains(prompt, r.marker) {
			return r.reply, r.err
		}
	}
	return "", errors.New("no scripted reply")
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *scriptedGenerator) callsWith(marker string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, p := range g.prompts {
		if strings.Contains(p, marker) {
			n++
		}
	}
	return n
}

type recordingSearcher struct {
	queries []string
}

func (s *recordingSearcher) Search(_ context.Context, query string) ([]string, error) {
	s.queries = append(s.queries, query)
	return []string{"스니펫: " + query}, nil
}

func newParser(t *testing.T, gen llm.Generator) *SlotParser {
	t.Helper()
	p, err := NewSlotParser(context.Background(), normalize.New(), llm.NewResilient(gen, 0))
	require.NoError(t, err)
	return p
}

func newMerger(t *testing.T, gen llm.Generator) *PreferenceMerger {
	t.Helper()
	m, err := NewPreferenceMerger(context.Background(), llm.NewResilient(gen, 0), 0)
	require.NoError(t, err)
	return m
}

func TestParseFullyResolvedByRules(t *testing.T) {
	gen := &scriptedGenerator{}
	ext := newParser(t, gen).Parse(context.Background(), "지성 피부에 보습 잘되는 크림")

	assert.Equal(t, core.SkinOily, ext.SkinType)
	assert.Equal(t, []core.Concern{core.ConcernMoisture}, ext.Concerns)
	assert.Equal(t, core.CategoryCream, ext.Category)
	assert.False(t, ext.OffTopic)
	assert.False(t, ext.UsedLLM)
	assert.Zero(t, gen.calls())
}

func TestParseOffTopicSkipsModel(t *testing.T) {
	gen := &scriptedGenerator{}
	ext := newParser(t, gen).Parse(context.Background(), "오늘 날씨 어때?")

	assert.True(t, ext.OffTopic)
	assert.True(t, ext.UserProfile.IsEmpty())
	assert.Zero(t, gen.calls())
}

func TestParseFillsUnresolvedSlotsFromModel(t *testing.T) {
	gen := &scriptedGenerator{rules: []scriptRule{{
		marker: "사용자 정보를 JSON으로만",
		reply:  "결과: {\"skin_type\": \"건성\", \"concerns\": [\"보습\", \"알 수 없음\"], \"category\": \"크림\"}",
	}}}
	ext := newParser(t, gen).Parse(context.Background(), "피부가 너무 땡겨서 추천해줘")

	assert.True(t, ext.UsedLLM)
	assert.Equal(t, core.SkinDry, ext.SkinType)
	assert.Equal(t, []core.Concern{core.ConcernMoisture}, ext.Concerns)
	assert.Equal(t, core.CategoryCream, ext.Category)
	assert.False(t, ext.Explicit.SkinType)
	assert.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], "피부가 너무 땡겨서 추천해줘")
}

func TestParseModelNeverOverridesRules(t *testing.T) {
	gen := &scriptedGenerator{rules: []scriptRule{{
		marker: "사용자 정보를 JSON으로만",
		reply:  `{"skin_type": "건성", "concerns": "진정", "category": "토너"}`,
	}}}
	ext := newParser(t, gen).Parse(context.Background(), "지성인데 추천해줘")

	assert.Equal(t, core.SkinOily, ext.SkinType)
	assert.Equal(t, []core.Concern{core.ConcernSoothing}, ext.Concerns)
	assert.Equal(t, core.CategoryToner, ext.Category)
}

func TestParseMalformedModelOutputStaysUnknown(t *testing.T) {
	for name, rule := range map[string]scriptRule{
		"prose":  {marker: "JSON", reply: "잘 모르겠어요"},
		"error":  {marker: "JSON", err: errors.New("rate limited")},
		"labels": {marker: "JSON", reply: `{"skin_type": "외계인", "concerns": ["행복"], "category": "향수"}`},
	} {
		t.Run(name, func(t *testing.T) {
			gen := &scriptedGenerator{rules: []scriptRule{rule}}
			ext := newParser(t, gen).Parse(context.Background(), "피부가 너무 땡겨서 추천해줘")

			assert.True(t, ext.UsedLLM)
			assert.False(t, ext.HasSkinType())
			assert.False(t, ext.HasConcerns())
			assert.False(t, ext.HasCategory())
		})
	}
}

func TestParseFollowUpWithCategorySkipsModel(t *testing.T) {
	gen := &scriptedGenerator{}
	ext := newParser(t, gen).Parse(context.Background(), "로션도 추천해줘")

	assert.True(t, ext.FollowUp)
	assert.True(t, ext.Explicit.Category)
	assert.Equal(t, core.CategoryLotion, ext.Category)
	assert.False(t, ext.HasSkinType())
	assert.Zero(t, gen.calls())
}

func TestParseStarterSetRequest(t *testing.T) {
	gen := &scriptedGenerator{rules: []scriptRule{{marker: "JSON", reply: `{"skin_type": "알 수 없음", "concerns": [], "category": "알 수 없음"}`}}}
	ext := newParser(t, gen).Parse(context.Background(), "건성인데 기초화장품 세트 알려줘")

	assert.True(t, ext.StarterSet)
	assert.False(t, ext.OffTopic)
	assert.Equal(t, core.SkinDry, ext.SkinType)
}

func TestMergeInvariant(t *testing.T) {
	confirmed := core.UserProfile{
		SkinType: core.SkinDry,
		Concerns: []core.Concern{core.ConcernSoothing},
		Category: core.CategoryToner,
	}
	tests := []struct {
		name string
		ext  core.UserProfile
		want core.UserProfile
	}{
		{
			name: "all unknown keeps confirmed",
			ext:  core.NewUserProfile(),
			want: confirmed,
		},
		{
			name: "skin overwrites",
			ext:  core.UserProfile{SkinType: core.SkinOily, Category: core.CategoryUnknown},
			want: core.UserProfile{SkinType: core.SkinOily, Concerns: confirmed.Concerns, Category: core.CategoryToner},
		},
		{
			name: "concerns overwrite as a list",
			ext:  core.UserProfile{SkinType: core.SkinUnknown, Concerns: []core.Concern{core.ConcernPore, core.ConcernTrouble}, Category: core.CategoryUnknown},
			want: core.UserProfile{SkinType: core.SkinDry, Concerns: []core.Concern{core.ConcernPore, core.ConcernTrouble}, Category: core.CategoryToner},
		},
		{
			name: "category overwrites",
			ext:  core.UserProfile{SkinType: core.SkinUnknown, Category: core.CategoryCream},
			want: core.UserProfile{SkinType: core.SkinDry, Concerns: confirmed.Concerns, Category: core.CategoryCream},
		},
		{
			name: "sentinel concern list collapses",
			ext:  core.UserProfile{SkinType: core.SkinUnknown, Concerns: []core.Concern{core.Unknown}, Category: core.CategoryUnknown},
			want: confirmed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{}
			history := []pkg.ConversationMessage{pkg.NewUserMessage("건성 진정 토너")}
			got := newMerger(t, gen).Merge(context.Background(), core.SlotExtraction{UserProfile: tt.ext}, confirmed, history)

			assert.Equal(t, tt.want, got)
			assert.Zero(t, gen.calls(), "fully resolved profile needs no backfill")
		})
	}
}

func TestMergeDoesNotAliasConfirmed(t *testing.T) {
	confirmed := core.UserProfile{SkinType: core.SkinDry, Concerns: []core.Concern{core.ConcernSoothing}, Category: core.CategoryToner}
	got := newMerger(t, &scriptedGenerator{}).Merge(context.Background(), core.SlotExtraction{UserProfile: core.NewUserProfile()}, confirmed, nil)

	got.Concerns[0] = core.ConcernPore
	assert.Equal(t, core.ConcernSoothing, confirmed.Concerns[0])
}

func TestMergeFollowUpRefinementKeepsSkinAndConcerns(t *testing.T) {
	confirmed := core.UserProfile{SkinType: core.SkinSensitive, Concerns: []core.Concern{core.ConcernSoothing}, Category: core.CategoryToner}
	ext := core.SlotExtraction{
		UserProfile: core.UserProfile{SkinType: core.SkinOily, Concerns: []core.Concern{core.ConcernPore}, Category: core.CategoryLotion},
		Explicit:    core.ExplicitSlots{Category: true},
		FollowUp:    true,
	}
	got := newMerger(t, &scriptedGenerator{}).Merge(context.Background(), ext, confirmed, nil)

	assert.Equal(t, core.SkinSensitive, got.SkinType)
	assert.Equal(t, []core.Concern{core.ConcernSoothing}, got.Concerns)
	assert.Equal(t, core.CategoryLotion, got.Category)
}

func TestMergeOffTopicReturnsConfirmed(t *testing.T) {
	gen := &scriptedGenerator{}
	confirmed := core.UserProfile{SkinType: core.SkinOily, Category: core.CategoryUnknown}
	history := []pkg.ConversationMessage{pkg.NewUserMessage("지성이에요")}
	got := newMerger(t, gen).Merge(context.Background(), core.SlotExtraction{UserProfile: core.NewUserProfile(), OffTopic: true}, confirmed, history)

	assert.Equal(t, confirmed, got)
	assert.Zero(t, gen.calls())
}

func TestMergeBackfillsFromHistoryOnce(t *testing.T) {
	gen := &scriptedGenerator{rules: []scriptRule{{
		marker: "대화 기록에서",
		reply:  `{"skin_type": "건성", "concerns": ["보습"], "category": "알 수 없음"}`,
	}}}
	history := []pkg.ConversationMessage{
		pkg.NewUserMessage("저는 건성이고 보습이 고민이에요"),
		pkg.NewAssistantMessage("어떤 제품을 찾으세요?"),
	}
	ext := core.SlotExtraction{
		UserProfile: core.UserProfile{SkinType: core.SkinUnknown, Category: core.CategoryCream},
		Explicit:    core.ExplicitSlots{Category: true},
	}
	got := newMerger(t, gen).Merge(context.Background(), ext, core.NewUserProfile(), history)

	assert.Equal(t, core.SkinDry, got.SkinType)
	assert.Equal(t, []core.Concern{core.ConcernMoisture}, got.Concerns)
	assert.Equal(t, core.CategoryCream, got.Category)
	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], "사용자: 저는 건성이고 보습이 고민이에요")
	assert.Contains(t, gen.prompts[0], "도우미: 어떤 제품을 찾으세요?")
}

func TestMergeSkipsBackfillWithoutEarlierUserMessage(t *testing.T) {
	gen := &scriptedGenerator{}
	history := []pkg.ConversationMessage{pkg.NewAssistantMessage("안녕하세요")}
	ext := core.SlotExtraction{UserProfile: core.UserProfile{SkinType: core.SkinUnknown, Category: core.CategoryCream}}

	got := newMerger(t, gen).Merge(context.Background(), ext, core.NewUserProfile(), history)

	assert.Equal(t, core.CategoryCream, got.Category)
	assert.False(t, got.HasSkinType())
	assert.Zero(t, gen.calls())
}

func TestTranscriptStrategyWindow(t *testing.T) {
	var history []pkg.ConversationMessage
	for i := 0; i < 5; i++ {
		history = append(history, pkg.NewUserMessage("질문"), pkg.NewAssistantMessage("답변"))
	}
	s := NewTranscriptStrategy(3)
	out := s.BuildContext(history)

	assert.Equal(t, 3, s.GetMaxTurns())
	assert.Equal(t, "도우미: 답변\n사용자: 질문\n도우미: 답변", out)
	assert.Equal(t, DefaultHistoryWindow, NewTranscriptStrategy(0).GetMaxTurns())
}

func TestSelectIngredientPrompts(t *testing.T) {
	gen := &scriptedGenerator{rules: []scriptRule{{marker: "큐레이터", reply: "나이아신아마이드, 판테놀"}}}
	sel := NewIngredientSelector(llm.NewResilient(gen, 0))

	got := sel.Select(context.Background(), core.UserProfile{SkinType: core.SkinOily, Concerns: []core.Concern{core.ConcernPore}})
	assert.Equal(t, core.KeyIngredients{"나이아신아마이드", "판테놀"}, got)
	assert.Contains(t, gen.prompts[0], "'지성' 피부의 '모공/피지' 고민")

	sel.Select(context.Background(), core.UserProfile{SkinType: core.SkinUnknown, Concerns: []core.Concern{core.ConcernNone}})
	assert.Contains(t, gen.prompts[1], "'일반적인' 피부에 보편적으로")
}

func TestSelectIngredientFailureIsEmpty(t *testing.T) {
	gen := &scriptedGenerator{rules: []scriptRule{{marker: "큐레이터", err: errors.New("timeout")}}}
	got := NewIngredientSelector(llm.NewResilient(gen, 0)).Select(context.Background(), core.NewUserProfile())

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseIngredientList(t *testing.T) {
	got := ParseIngredientList("1. 나이아신아마이드, 히알루론산，Panthenol\n- 세라마이드, 히알루론산, , 판테놀", 0)
	assert.Equal(t, []string{"나이아신아마이드", "히알루론산", "panthenol", "세라마이드", "판테놀"}, got)

	capped := ParseIngredientList("a, b, c, d, e, f, g, h, i", MaxKeyIngredients)
	assert.Len(t, capped, MaxKeyIngredients)
	assert.Empty(t, ParseIngredientList("", MaxKeyIngredients))
}

func sampleProduct(found ...string) core.RankedProduct {
	return core.RankedProduct{
		Record: core.CatalogRecord{
			Brand:    "라운드랩",
			Name:     "독도 토너",
			Category: "스킨/토너",
			Price:    18000,
			Volume:   "200ml",
			Link:     "https://example.com/dokdo",
		},
		MatchCount:       len(found),
		FoundIngredients: found,
	}
}

func composerGenerator() *scriptedGenerator {
	return &scriptedGenerator{rules: []scriptRule{
		{marker: "추천 근거 요약가", reply: "- 피지 조절에 좋은 나이아신아마이드 함유\n두 번째 줄"},
		{marker: "안전성 요약가", reply: "- 나이아신아마이드 — [조건부] 고농도 시 자극\n- 향료 — [위험] 알레르기 보고\n- 글리세린 — [위험] 근거 없음"},
		{marker: "핵심 효능 성분", reply: "죄송하지만 일부만 찾았습니다, 판테놀, 마데카소사이드\n이 제품은 피부 장벽을 강화하는 여러 가지 성분을 포함하고 있어서 좋습니다"},
	}}
}

func TestComposeEmptyMakesNoCalls(t *testing.T) {
	gen := composerGenerator()
	searcher := &recordingSearcher{}
	c := NewComposer(llm.NewResilient(gen, 0), searcher)

	rec := c.Compose(context.Background(), core.NewUserProfile(), core.KeyIngredients{"판테놀"}, nil)

	assert.Empty(t, rec.Items)
	assert.Equal(t, NoMatchMessage, c.Render(rec))
	assert.Zero(t, gen.calls())
	assert.Empty(t, searcher.queries)
}

func TestComposeWithMatchedIngredients(t *testing.T) {
	gen := composerGenerator()
	searcher := &recordingSearcher{}
	c := NewComposer(llm.NewResilient(gen, 0), searcher)
	profile := core.UserProfile{SkinType: core.SkinOily, Concerns: []core.Concern{core.ConcernPore}, Category: core.CategoryToner}

	rec := c.Compose(context.Background(), profile, core.KeyIngredients{"나이아신아마이드", "글리세린"}, []core.RankedProduct{sampleProduct("나이아신아마이드", "글리세린")})

	require.Len(t, rec.Items, 1)
	item := rec.Items[0]
	assert.Equal(t, 1, item.Rank)
	assert.Equal(t, []string{"나이아신아마이드", "글리세린"}, item.Beneficial)
	assert.Equal(t, "피지 조절에 좋은 나이아신아마이드 함유", item.Reason)
	assert.Equal(t, []string{"나이아신아마이드", "향료"}, item.Cautions)
	assert.Zero(t, gen.callsWith("핵심 효능 성분"))

	require.Len(t, searcher.queries, 2)
	assert.Equal(t, "라운드랩 독도 토너 성분 효과 리뷰 장단점 스킨/토너 지성 모공/피지", searcher.queries[0])
	assert.Equal(t, "나이아신아마이드 화장품 유해성 주의사항", searcher.queries[1])
}

func TestComposeInfersBeneficialIngredients(t *testing.T) {
	gen := composerGenerator()
	searcher := &recordingSearcher{}
	c := NewComposer(llm.NewResilient(gen, 0), searcher)

	rec := c.Compose(context.Background(), core.NewUserProfile(), core.KeyIngredients{"세라마이드"}, []core.RankedProduct{sampleProduct()})

	require.Len(t, rec.Items, 1)
	assert.Equal(t, []string{"판테놀", "마데카소사이드"}, rec.Items[0].Beneficial)
	assert.Contains(t, searcher.queries, "라운드랩 독도 토너 전성분 효능 성분 성분표 성분 리스트")
	assert.Equal(t, 1, gen.callsWith("핵심 효능 성분"))
}

func TestComposeInferenceFailureFallsBackToKeys(t *testing.T) {
	gen := &scriptedGenerator{rules: []scriptRule{{marker: "핵심 효능 성분", err: errors.New("down")}}}
	c := NewComposer(llm.NewResilient(gen, 0), nil)

	rec := c.Compose(context.Background(), core.NewUserProfile(), core.KeyIngredients{"판테놀", "세라마이드"}, []core.RankedProduct{sampleProduct()})

	require.Len(t, rec.Items, 1)
	assert.Equal(t, []string{"판테놀", "세라마이드"}, rec.Items[0].Beneficial)
	assert.Equal(t, DefaultReason, rec.Items[0].Reason)
	assert.Empty(t, rec.Items[0].Cautions)
	assert.Zero(t, gen.callsWith("안전성 요약가"), "benign-only candidates skip the caution call")
}

func TestComposeBoundsToThree(t *testing.T) {
	gen := composerGenerator()
	c := NewComposer(llm.NewResilient(gen, 0), nil)
	products := []core.RankedProduct{sampleProduct("판테놀"), sampleProduct("판테놀"), sampleProduct("판테놀"), sampleProduct("판테놀")}

	rec := c.Compose(context.Background(), core.NewUserProfile(), nil, products)
	assert.Len(t, rec.Items, MaxRecommendations)
	assert.Equal(t, 3, gen.callsWith("추천 근거 요약가"))
}

func TestRender(t *testing.T) {
	c := NewComposer(nil, nil)
	rec := core.Recommendation{
		Profile:        core.UserProfile{SkinType: core.SkinOily, Concerns: []core.Concern{core.ConcernMoisture}, Category: core.CategoryUnknown},
		KeyIngredients: core.KeyIngredients{"히알루론산", "판테놀"},
		Items: []core.RecommendationItem{
			{Rank: 1, Product: sampleProduct("히알루론산"), Beneficial: []string{"히알루론산"}, Reason: "수분 공급", Cautions: nil},
			{Rank: 2, Product: core.RankedProduct{Record: core.CatalogRecord{Name: "무명 크림"}}, Reason: DefaultReason, Cautions: []string{"향료"}},
		},
	}
	out := c.Render(rec)

	assert.True(t, strings.HasPrefix(out, "요청하신 조건에 맞춰 추천 제품을 정리했어요. 😊"))
	assert.Contains(t, out, "**🎯 사용자 조건**")
	assert.Contains(t, out, "🧑‍🦰 피부: **지성**   ·   🌿 고민: **보습**")
	assert.NotContains(t, out, "🧴 제품")
	assert.Contains(t, out, "**🧪 효능 성분(분석 기준):** 히알루론산, 판테놀")
	assert.Contains(t, out, "🥇 1. 독도 토너")
	assert.Contains(t, out, "   💰 가격: 18000원")
	assert.Contains(t, out, "   🔗 [링크](https://example.com/dokdo)")
	assert.Contains(t, out, "   ⚠️ 주의 성분: 없음")
	assert.Contains(t, out, "🥈 2. 무명 크림")
	assert.Contains(t, out, "   🏬 브랜드: -")
	assert.Contains(t, out, "   🔗 -")
	assert.Contains(t, out, "   🧪 효능 성분: 정보 부족")
	assert.Contains(t, out, "   ⚠️ 주의 성분: 향료")
}

func TestRenderStarterSetHeader(t *testing.T) {
	rec := core.Recommendation{StarterSet: true, Items: []core.RecommendationItem{{Rank: 1, Product: sampleProduct(), Reason: DefaultReason}}}
	assert.True(t, strings.HasPrefix(NewComposer(nil, nil).Render(rec), starterHeader))
}

func TestParseReason(t *testing.T) {
	assert.Equal(t, "보습력이 뛰어남", ParseReason("1) 보습력이 뛰어남\n추가 설명"))
	assert.Equal(t, "진정 성분 함유", ParseReason("  • 진정 성분 함유"))
	assert.Equal(t, DefaultReason, ParseReason(""))
	assert.Equal(t, DefaultReason, ParseReason("- \n본문"))
}

func TestFilterInferredIngredients(t *testing.T) {
	got := FilterInferredIngredients("판테놀, 판테놀\n제공된 자료에는 없습니다\n병풀추출물, 아주 아주 긴 설명 문장이 여기에 계속 이어집니다")
	assert.Equal(t, []string{"판테놀", "병풀추출물"}, got)
	assert.Empty(t, FilterInferredIngredients("죄송합니다"))
}

func TestParseCautionsLimitsLines(t *testing.T) {
	c := NewComposer(nil, nil)
	text := "- a — [위험] x\n- b — [위험] x\n- c — [위험] x\n- d — [위험] x\n- e — [위험] x\n- f — [위험] x"
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, c.ParseCautions(text, nil))

	got := c.ParseCautions("- 레티놀 — [위험] 자극\n- 레티놀 — [조건부] 자극", []string{"레티놀"})
	assert.Equal(t, []string{"레티놀"}, got)
}

func TestParsedProfileRoutesToRecommendation(t *testing.T) {
	ext := newParser(t, &scriptedGenerator{}).Parse(context.Background(), "지성 피부에 보습 잘되는 크림")
	router := core.NewRouter(core.PolicyRelaxed)

	assert.Equal(t, core.StateIngredients, router.Next(core.StateParsed, ext.UserProfile))
}

func TestUnrecognizedUtteranceRoutesToClarification(t *testing.T) {
	ext := newParser(t, &scriptedGenerator{}).Parse(context.Background(), "오늘 날씨 어때?")
	router := core.NewRouter(core.PolicyRelaxed)

	assert.Equal(t, core.StateClarify, router.Next(core.StateParsed, ext.UserProfile))
	assert.Equal(t, []core.MissingSlot{core.MissingCategory, core.MissingSkinOrConcern}, router.Missing(ext.UserProfile))
}

func TestFollowUpReplacesOnlyCategory(t *testing.T) {
	gen := &scriptedGenerator{}
	confirmed := core.UserProfile{SkinType: core.SkinDry, Concerns: []core.Concern{core.ConcernSoothing}, Category: core.CategoryToner}
	history := []pkg.ConversationMessage{
		pkg.NewUserMessage("건성 진정 토너 추천해줘"),
		pkg.NewAssistantMessage("추천 결과"),
	}

	ext := newParser(t, gen).Parse(context.Background(), "로션도")
	got := newMerger(t, gen).Merge(context.Background(), ext, confirmed, history)

	assert.Equal(t, core.UserProfile{SkinType: core.SkinDry, Concerns: []core.Concern{core.ConcernSoothing}, Category: core.CategoryLotion}, got)
	assert.Zero(t, gen.calls())
}

func TestVeganIngredientsKeepConfirmedSkinType(t *testing.T) {
	gen := &scriptedGenerator{}
	confirmed := core.UserProfile{SkinType: core.SkinOily, Concerns: []core.Concern{core.ConcernMoisture}, Category: core.CategoryCream}
	history := []pkg.ConversationMessage{pkg.NewUserMessage("지성 보습 크림")}

	ext := newParser(t, gen).Parse(context.Background(), "비건성분 크림 추천해줘")
	require.False(t, ext.Explicit.SkinType)
	got := newMerger(t, gen).Merge(context.Background(), ext, confirmed, history)

	assert.Equal(t, core.SkinOily, got.SkinType)
	assert.Equal(t, core.CategoryCream, got.Category)
}

func TestParseCautionsSeparators(t *testing.T) {
	c := NewComposer(nil, nil)
	text := "- 레티놀 - [조건부] 자극\n* 향료: [위험] 알레르기\n1. 알코올 — [위험] 건조"

	assert.Equal(t, []string{"레티놀", "향료", "알코올"}, c.ParseCautions(text, []string{"레티놀"}))
	assert.Equal(t, []string{"향료", "알코올"}, c.ParseCautions("- 레티놀 - [위험] 자극\n- 향료: 알레르기\n- 알코올", []string{"레티놀"}))
}

type failingSearcher struct{ calls int }

func (s *failingSearcher) Search(context.Context, string) ([]string, error) {
	s.calls++
	return nil, errors.New("search down")
}

func TestComposeSearchFailureStillExplains(t *testing.T) {
	gen := composerGenerator()
	searcher := &failingSearcher{}
	c := NewComposer(llm.NewResilient(gen, 0), searcher)
	profile := core.UserProfile{SkinType: core.SkinOily, Concerns: []core.Concern{core.ConcernPore}, Category: core.CategoryToner}

	rec := c.Compose(context.Background(), profile, core.KeyIngredients{"나이아신아마이드"}, []core.RankedProduct{sampleProduct("나이아신아마이드", "글리세린")})

	require.Len(t, rec.Items, 1)
	assert.Equal(t, "피지 조절에 좋은 나이아신아마이드 함유", rec.Items[0].Reason)
	assert.Equal(t, []string{"나이아신아마이드", "향료"}, rec.Items[0].Cautions)
	assert.Equal(t, 2, searcher.calls)
}
