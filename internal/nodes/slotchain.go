package nodes

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/compose"

	"ingrevia/internal/core"
	"ingrevia/internal/llm"
	"ingrevia/internal/normalize"
)

// slotChain is input -> prompt -> resilient generation -> tagged decode.
// Generation failures surface as Malformed, never as chain errors.
type slotChain struct {
	runnable compose.Runnable[string, llm.SlotDecode]
}

func newSlotChain(ctx context.Context, caller *llm.Resilient, callName string, buildPrompt func(string) string) (*slotChain, error) {
	chain := compose.NewChain[string, llm.SlotDecode]()

	chain.AppendLambda(compose.InvokableLambda(func(_ context.Context, input string) (string, error) {
		return buildPrompt(input), nil
	}))

	chain.AppendLambda(compose.InvokableLambda(func(ctx context.Context, prompt string) (string, error) {
		return caller.Call(ctx, callName, prompt, "").Text, nil
	}))

	chain.AppendLambda(compose.InvokableLambda(func(_ context.Context, text string) (llm.SlotDecode, error) {
		return llm.DecodeSlots(text), nil
	}))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, err
	}
	return &slotChain{runnable: runnable}, nil
}

func (c *slotChain) run(ctx context.Context, input string) llm.SlotDecode {
	out, err := c.runnable.Invoke(ctx, input)
	if err != nil {
		return llm.SlotDecode{Status: llm.Malformed, Slots: llm.UnknownPayload(), Err: err}
	}
	return out
}

// canonicalProfile maps a decoded payload onto the closed label sets.
// Labels outside the sets become unknown.
func canonicalProfile(p llm.SlotPayload) core.UserProfile {
	out := core.UserProfile{
		SkinType: normalize.CanonicalSkinType(p.SkinType),
		Category: normalize.CanonicalCategory(p.Category),
	}
	for _, label := range p.Concerns {
		if c, ok := normalize.CanonicalConcern(strings.TrimSpace(label)); ok {
			out.Concerns = append(out.Concerns, c)
		}
	}
	out.Concerns = core.KnownConcerns(out.Concerns)
	return out
}
