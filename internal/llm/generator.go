package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Generator turns a prompt into text
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

const defaultSystemPrompt = `당신은 한국 화장품 성분과 제품을 잘 아는 뷰티 어드바이저입니다. 요청한 형식만 정확히 출력하고, 불필요한 설명은 붙이지 마세요.`

// ChatGenerator runs prompt -> messages -> chat model -> text as one compiled chain
type ChatGenerator struct {
	runnable compose.Runnable[string, string]
}

// NewChatGenerator compiles the generation chain around a chat model.
// An empty system prompt uses the default advisor persona.
func NewChatGenerator(ctx context.Context, chatModel model.BaseChatModel, systemPrompt string) (*ChatGenerator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	chain := compose.NewChain[string, string]()

	chain.AppendLambda(compose.InvokableLambda(func(_ context.Context, prompt string) ([]*schema.Message, error) {
		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(prompt),
		}, nil
	}))

	chain.AppendChatModel(chatModel)

	chain.AppendLambda(compose.InvokableLambda(func(_ context.Context, msg *schema.Message) (string, error) {
		if msg == nil {
			return "", fmt.Errorf("empty message")
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			return "", fmt.Errorf("empty response")
		}
		return content, nil
	}))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}
	return &ChatGenerator{runnable: runnable}, nil
}

// Generate invokes the chain once
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.runnable == nil {
		return "", fmt.Errorf("chat generator unavailable")
	}
	return g.runnable.Invoke(ctx, prompt)
}
