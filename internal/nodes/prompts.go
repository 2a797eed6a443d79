package nodes

import (
	"strings"

	"ingrevia/internal/core"
)

// Prompt templates use {placeholder} markers filled with strings.Replacer.

const slotExtractionTemplate = `아래 문장에서 사용자 정보를 JSON으로만 추출하세요.
- 피부 타입: {skin_types}
- 피부 고민: {concerns}
- 제품 종류: {categories}
못 찾으면 "알 수 없음"으로 채워주세요.

반드시 순수 JSON만:
{"skin_type": "...", "concerns": ["..."], "category": "..."}

입력: {input_text}`

const historyInferenceTemplate = `아래 대화 기록에서 가장 최근에 확정된 사용자 조건을 JSON으로만 추출하세요.
- 피부 타입: {skin_types}
- 피부 고민: {concerns}
- 제품 종류: {categories}
못 찾으면 "알 수 없음"으로 채워주세요.

반드시 순수 JSON만:
{"skin_type": "...", "concerns": ["..."], "category": "..."}

대화 기록:
{history}`

const generalIngredientTemplate = `역할: 화장품 성분 큐레이터.
목표: '{skin}' 피부에 보편적으로 안전하고 유효한 핵심 활성 성분 5개만 선정.
지침: 자극 낮고 근거 기반. 보조/용매/향/보존제/UV필터 제외.
출력: 쉼표로만 구분된 한 줄`

const concernIngredientTemplate = `역할: 화장품 성분 큐레이터.
목표: '{skin}' 피부의 '{concerns}' 고민 개선에 기여하는 핵심 활성 성분 5개만 선정.
지침: 근거 기반 활성 위주, 보조/용매/향/보존제/UV필터 제외.
출력: 쉼표로만 구분된 한 줄`

const productIngredientTemplate = `역할: 당신은 화장품 성분 큐레이터입니다.
아래 자료(웹 스니펫)에서 '{product}' 제품의 피부에 이득이 되는 '핵심 효능 성분'만 3~6개 한국어 성분명으로 추출하세요.
- 보습/진정/미백/주름/모공/피지 등과 직접 관련된 활성 성분 위주
- 용매/보존제/향료/가교제 등 보조 성분 제외
- 출력은 쉼표로만 나열 (예: 히알루론산, 세라마이드, 나이아신아마이드)

자료:
---
{snippets}
---`

const reasonTemplate = `역할: 당신은 화장품 추천 근거 요약가입니다.
상황: 사용자는 {skin} 피부, 고민은 {concerns}, 카테고리는 {category}입니다.
제품: {product}
매칭/핵심 성분: {matched}

자료(웹 검색 스니펫):
---
{snippets}
---

규칙:
- '왜 이 제품을 추천하는지' 한 줄(35~60자)로 한국어 요약
- 가능한 근거: 매칭 성분 효능, 임상/보습/진정 지표, 저자극(무향/약산성), 논란 성분 무첨가 등
- 자료에 없는 수치/사실 창작 금지
- 자료 부족 시 매칭 성분 기반으로 작성
- 출력: 한 줄만, 불릿/머리기호/따옴표 없이, 마침표 없이`

const cautionTemplate = `역할: 당신은 화장품 안전성 요약가입니다.
자료: 아래는 성분 위험성 관련 웹 검색 스니펫입니다.
---
{snippets}
---
입력 성분(후보): {candidates}
효능 성분(겹치면 기본 [조건부]): {beneficial}
일반 안전/보습 성분(특별 근거 없으면 제외): {benign}

지침:
1) '후보' 중 다음 기준만 경고:
   - 알레르기/자극 보고 빈도가 높은 성분(향료/에센셜오일, 리모넨/리날룰/유제놀 등)
   - 산/레티노이드/벤조일퍼옥사이드 등 고농도나 pH 의존 자극 가능 성분
   - 논쟁성 UV 필터, 포름알데하이드 방출 방부제 등
2) 효능 성분과 겹치면 기본 [조건부]로 표기하고 사유를 25자 이내로
3) '일반 안전/보습' 리스트는 특별한 근거 없으면 제외
4) 중복 제거, 3~5개 이내, 중요도 순
출력(이 형식만):
- 성분 — [위험|조건부] 한줄 이유`

// BenignIngredients are common safe humectants and excipients never reported as cautions
var BenignIngredients = []string{
	"글리세린", "히알루론산", "소듐하이알루로네이트", "하이알루로닉애씨드",
	"세라마이드", "세라마이드엔피", "판테놀", "스쿠알란", "베타인", "알란토인",
	"토코페롤", "잔탄검", "프로판다이올", "부틸렌글라이콜", "펜틸렌글라이콜",
	"하이드록시아세토페논", "다이소듐이디티에이",
}

func labelList[T ~string](values []T) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, string(v))
	}
	return strings.Join(parts, ", ")
}

func slotLabelReplacer(extra ...string) *strings.Replacer {
	pairs := []string{
		"{skin_types}", labelList(core.SkinTypes),
		"{concerns}", labelList(core.Concerns),
		"{categories}", labelList(core.Categories),
	}
	return strings.NewReplacer(append(pairs, extra...)...)
}

func buildSlotExtractionPrompt(utterance string) string {
	return slotLabelReplacer("{input_text}", utterance).Replace(slotExtractionTemplate)
}

func buildHistoryInferencePrompt(history string) string {
	return slotLabelReplacer("{history}", history).Replace(historyInferenceTemplate)
}

func skinLabel(p core.UserProfile) string {
	if p.HasSkinType() && p.SkinType != core.SkinNone {
		return string(p.SkinType)
	}
	return "일반적인"
}

func concernLabel(p core.UserProfile) string {
	if labels := p.ConcernLabels(); len(labels) > 0 {
		return strings.Join(labels, ", ")
	}
	return core.Unknown
}

func categoryLabel(p core.UserProfile) string {
	if p.HasCategory() {
		return string(p.Category)
	}
	return core.Unknown
}
