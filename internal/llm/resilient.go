package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ingrevia/internal/core"
	"ingrevia/internal/logger"
)

// Result is the outcome of one resilient call. Fallback is set when Text is
// the caller's default rather than model output.
type Result struct {
	Text     string
	Fallback bool
	Err      error
}

// Resilient wraps a Generator so failures degrade to a default. It never retries.
type Resilient struct {
	gen     Generator
	timeout time.Duration
}

// NewResilient wraps gen. A zero timeout leaves the caller's context deadline alone.
func NewResilient(gen Generator, timeout time.Duration) *Resilient {
	return &Resilient{gen: gen, timeout: timeout}
}

// Call generates once. Errors and blank output yield fallback with Fallback=true.
func (r *Resilient) Call(ctx context.Context, name, prompt, fallback string) Result {
	start := time.Now()
	defer func() {
		llmCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	if r == nil || r.gen == nil {
		llmCallsTotal.WithLabelValues(name, "error").Inc()
		return Result{Text: fallback, Fallback: true, Err: fmt.Errorf("%s: %w: %v", name, core.ErrExternalService, errNoGenerator)}
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	text, err := r.gen.Generate(callCtx, prompt)
	if err != nil {
		llmCallsTotal.WithLabelValues(name, "error").Inc()
		wrapped := fmt.Errorf("%s: %w: %v", name, core.ErrExternalService, err)
		logger.Warn().Err(err).Str("call", name).Dur("elapsed", time.Since(start)).Msg("LLM call failed, using fallback")
		return Result{Text: fallback, Fallback: true, Err: wrapped}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		llmCallsTotal.WithLabelValues(name, "empty").Inc()
		logger.Warn().Str("call", name).Msg("LLM returned empty output, using fallback")
		return Result{Text: fallback, Fallback: true}
	}

	llmCallsTotal.WithLabelValues(name, "ok").Inc()
	logger.Debug().Str("call", name).Int("chars", len(text)).Dur("elapsed", time.Since(start)).Msg("LLM call completed")
	return Result{Text: text}
}

var errNoGenerator = errors.New("no generator configured")
