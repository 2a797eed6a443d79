package nodes

import (
	"context"
	"fmt"

	"ingrevia/internal/core"
	"ingrevia/internal/llm"
	"ingrevia/internal/logger"
	"ingrevia/internal/normalize"
)

var _ core.SlotParser = (*SlotParser)(nil)

// SlotParser reads slots with the rule tables first and asks the model
// only for slots the rules left unresolved.
type SlotParser struct {
	normalizer *normalize.Normalizer
	chain      *slotChain
}

// NewSlotParser compiles the slot extraction chain
func NewSlotParser(ctx context.Context, normalizer *normalize.Normalizer, caller *llm.Resilient) (*SlotParser, error) {
	if normalizer == nil {
		normalizer = normalize.New()
	}
	chain, err := newSlotChain(ctx, caller, "slot_extraction", buildSlotExtractionPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to compile slot extraction chain: %w", err)
	}
	return &SlotParser{normalizer: normalizer, chain: chain}, nil
}

// Parse never fails. Anything unreadable stays unknown.
func (p *SlotParser) Parse(ctx context.Context, utterance string) core.SlotExtraction {
	text := normalize.Clean(utterance)
	res := p.normalizer.Normalize(text)

	ext := core.SlotExtraction{
		UserProfile: res.Profile(),
		Explicit:    res.Explicit,
		FollowUp:    normalize.IsFollowUp(text),
		StarterSet:  normalize.IsStarterSetRequest(text),
	}

	if !res.Matched && !ext.FollowUp && !ext.StarterSet && !normalize.HasRequestKeyword(text) {
		ext.UserProfile = core.NewUserProfile()
		ext.OffTopic = true
		logger.Debug().Str("utterance", text).Msg("Off-topic utterance")
		return ext
	}

	if ext.FollowUp && ext.Explicit.Category {
		logger.Debug().Str("category", string(ext.Category)).Msg("Follow-up with explicit category, skipping model extraction")
		return ext
	}

	if ext.HasSkinType() && ext.HasConcerns() && ext.HasCategory() {
		return ext
	}

	decoded := p.chain.run(ctx, text)
	ext.UsedLLM = true
	if !decoded.OK() {
		logger.Debug().Err(decoded.Err).Msg("Slot extraction output unusable, keeping rule result")
		return ext
	}

	fill := canonicalProfile(decoded.Slots)
	if !ext.HasSkinType() && fill.HasSkinType() {
		ext.SkinType = fill.SkinType
	}
	if !ext.HasConcerns() && fill.HasConcerns() {
		ext.Concerns = fill.Concerns
	}
	if !ext.HasCategory() && fill.HasCategory() {
		ext.Category = fill.Category
	}

	logger.Debug().
		Str("profile", ext.UserProfile.String()).
		Bool("used_llm", ext.UsedLLM).
		Msg("Slots parsed")
	return ext
}
