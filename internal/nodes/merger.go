package nodes

import (
	"context"
	"fmt"

	"ingrevia/internal/core"
	"ingrevia/internal/llm"
	"ingrevia/internal/logger"
	"ingrevia/pkg"
)

var _ core.PreferenceMerger = (*PreferenceMerger)(nil)

// PreferenceMerger folds a turn's extraction into the confirmed profile
type PreferenceMerger struct {
	strategy ContextStrategy
	chain    *slotChain
}

// NewPreferenceMerger compiles the history inference chain. historyWindow <= 0 uses the default.
func NewPreferenceMerger(ctx context.Context, caller *llm.Resilient, historyWindow int) (*PreferenceMerger, error) {
	chain, err := newSlotChain(ctx, caller, "history_inference", buildHistoryInferencePrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to compile history inference chain: %w", err)
	}
	return &PreferenceMerger{strategy: NewTranscriptStrategy(historyWindow), chain: chain}, nil
}

// Merge returns the new confirmed profile. history holds the messages before this turn.
func (m *PreferenceMerger) Merge(ctx context.Context, ext core.SlotExtraction, confirmed core.UserProfile, history []pkg.ConversationMessage) core.UserProfile {
	if ext.OffTopic {
		return confirmed.Clone()
	}

	merged := confirmed.Clone()
	if merged.SkinType == "" {
		merged.SkinType = core.SkinUnknown
	}
	if merged.Category == "" {
		merged.Category = core.CategoryUnknown
	}

	refine := ext.FollowUp && ext.Explicit.Category && !ext.Explicit.SkinType && !ext.Explicit.Concerns
	if !refine {
		if ext.HasSkinType() {
			merged.SkinType = ext.SkinType
		}
		if ext.HasConcerns() {
			merged.Concerns = core.KnownConcerns(ext.Concerns)
		}
	}
	if ext.HasCategory() {
		merged.Category = ext.Category
	}
	merged.Concerns = core.KnownConcerns(merged.Concerns)

	if merged.HasSkinType() && merged.HasConcerns() && merged.HasCategory() {
		return merged
	}
	if !hasUserMessage(history) {
		return merged
	}

	transcript := m.strategy.BuildContext(history)
	decoded := m.chain.run(ctx, transcript)
	if !decoded.OK() {
		logger.Debug().Err(decoded.Err).Msg("History inference unusable")
		return merged
	}

	inferred := canonicalProfile(decoded.Slots)
	if !merged.HasSkinType() && inferred.HasSkinType() {
		merged.SkinType = inferred.SkinType
	}
	if !merged.HasConcerns() && inferred.HasConcerns() {
		merged.Concerns = inferred.Concerns
	}
	if !merged.HasCategory() && inferred.HasCategory() {
		merged.Category = inferred.Category
	}

	logger.Debug().Str("profile", merged.String()).Msg("Profile backfilled from history")
	return merged
}
