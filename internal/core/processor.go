package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ingrevia/internal/logger"
	"ingrevia/pkg"
)

// Greeting opens a session and answers a reset
const Greeting = "안녕하세요! 피부 타입, 피부 고민, 찾는 제품 종류를 알려주시면 성분 기반으로 화장품을 추천해 드릴게요. 🙂 예: 지성 피부에 보습 잘되는 크림"

// ResetKeywordFunc reports whether an utterance asks to restart the conversation
type ResetKeywordFunc func(utterance string) bool

// Processor runs one turn through the dialogue state machine.
// It holds no per-conversation state; sessions are passed per call.
type Processor struct {
	router   Router
	parser   SlotParser
	merger   PreferenceMerger
	selector IngredientSelector
	ranker   ProductRanker
	composer ExplanationComposer
	isReset  ResetKeywordFunc
}

// NewProcessor wires the stages. isReset may be nil to disable reset keywords.
func NewProcessor(router Router, parser SlotParser, merger PreferenceMerger, selector IngredientSelector,
	ranker ProductRanker, composer ExplanationComposer, isReset ResetKeywordFunc) *Processor {
	return &Processor{
		router:   router,
		parser:   parser,
		merger:   merger,
		selector: selector,
		ranker:   ranker,
		composer: composer,
		isReset:  isReset,
	}
}

// turn carries the intermediate values of one pass through the state machine
type turn struct {
	extraction  SlotExtraction
	profile     UserProfile
	ingredients KeyIngredients
	products    []RankedProduct
}

// Handle processes one user utterance against sess and appends both messages to its history
func (p *Processor) Handle(ctx context.Context, sess *Session, utterance string) (*TurnResult, error) {
	if sess == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if strings.TrimSpace(utterance) == "" {
		return nil, ErrEmptyUtterance
	}
	startTime := time.Now()

	if p.isReset != nil && p.isReset(utterance) {
		sess.Reset()
		sess.AddMessage(pkg.NewAssistantMessage(Greeting))
		logger.Info().Str("session_id", sess.ID).Msg("Session reset")
		return &TurnResult{
			Reply:          Greeting,
			Outcome:        OutcomeReset,
			Profile:        sess.Profile.Clone(),
			Path:           []State{StateStart, StateEnd},
			Reset:          true,
			ProcessingTime: time.Since(startTime).Milliseconds(),
		}, nil
	}

	history := append([]pkg.ConversationMessage(nil), sess.Messages...)
	sess.AddMessage(pkg.NewUserMessage(utterance))

	result := &TurnResult{}
	t := &turn{}
	state := StateStart

	for state != StateEnd {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Path = append(result.Path, state)
		logger.Debug().Str("session_id", sess.ID).Stringer("state", state).Msg("Executing state")

		switch state {
		case StateStart:
			t.extraction = p.parser.Parse(ctx, utterance)
			t.profile = p.merger.Merge(ctx, t.extraction, sess.Profile, history)
			sess.Profile = t.profile.Clone()
			result.Extraction = t.extraction
			result.Profile = t.profile.Clone()

		case StateParsed:
			routed := t.profile
			if t.extraction.OffTopic {
				routed = t.extraction.UserProfile
			}
			result.Outcome = p.router.Decide(routed)
			if result.Outcome == OutcomeClarificationNeeded {
				result.Missing = p.router.Missing(routed)
			}
			state = p.router.Next(state, routed)
			continue

		case StateClarify:
			result.Reply = ClarificationMessage(result.Missing)
			logger.Info().
				Str("session_id", sess.ID).
				Err(fmt.Errorf("%w: %v", ErrMissingSlot, result.Missing)).
				Msg("Clarification needed")

		case StateIngredients:
			t.ingredients = p.selector.Select(ctx, t.profile)

		case StateRanking:
			if t.extraction.StarterSet {
				t.products = p.ranker.RankStarterSet(t.profile, t.ingredients)
			} else {
				t.products = p.ranker.Rank(t.profile, t.ingredients)
			}
			if len(t.products) == 0 {
				logger.Info().
					Str("session_id", sess.ID).
					Str("profile", t.profile.String()).
					Err(ErrCatalogLookupEmpty).
					Msg("Ranking returned no products")
			}

		case StateComposition:
			rec := p.composer.Compose(ctx, t.profile, t.ingredients, t.products)
			rec.StarterSet = t.extraction.StarterSet
			result.Recommendation = &rec
			result.Reply = p.composer.Render(rec)
		}

		state = p.router.Next(state, t.profile)
	}
	result.Path = append(result.Path, StateEnd)

	sess.AddMessage(pkg.NewAssistantMessage(result.Reply))
	result.ProcessingTime = time.Since(startTime).Milliseconds()

	logger.Info().
		Str("session_id", sess.ID).
		Str("outcome", string(result.Outcome)).
		Str("profile", result.Profile.String()).
		Int64("processing_ms", result.ProcessingTime).
		Msg("Turn completed")
	return result, nil
}
