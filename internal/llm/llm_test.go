package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingrevia/internal/core"
)

type scriptedModel struct {
	reply string
	err   error
	seen  [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.seen = append(m.seen, input)
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func TestChatGeneratorRunsChain(t *testing.T) {
	ctx := context.Background()
	fake := &scriptedModel{reply: "  나이아신아마이드, 판테놀  "}

	gen, err := NewChatGenerator(ctx, fake, "")
	require.NoError(t, err)

	out, err := gen.Generate(ctx, "지성 피부 성분 5개")
	require.NoError(t, err)
	assert.Equal(t, "나이아신아마이드, 판테놀", out)

	require.Len(t, fake.seen, 1)
	require.Len(t, fake.seen[0], 2)
	assert.Equal(t, schema.System, fake.seen[0][0].Role)
	assert.Equal(t, defaultSystemPrompt, fake.seen[0][0].Content)
	assert.Equal(t, schema.User, fake.seen[0][1].Role)
	assert.Equal(t, "지성 피부 성분 5개", fake.seen[0][1].Content)
}

func TestChatGeneratorEmptyResponse(t *testing.T) {
	ctx := context.Background()
	gen, err := NewChatGenerator(ctx, &scriptedModel{reply: "   "}, "system")
	require.NoError(t, err)

	_, err = gen.Generate(ctx, "prompt")
	assert.Error(t, err)
}

func TestChatGeneratorRequiresModel(t *testing.T) {
	_, err := NewChatGenerator(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestResilientSuccess(t *testing.T) {
	before := testutil.ToFloat64(llmCallsTotal.WithLabelValues("test_ok", "ok"))
	r := NewResilient(GeneratorFunc(func(context.Context, string) (string, error) {
		return " 히알루론산 ", nil
	}), 0)

	res := r.Call(context.Background(), "test_ok", "prompt", "fallback")
	assert.Equal(t, "히알루론산", res.Text)
	assert.False(t, res.Fallback)
	assert.NoError(t, res.Err)
	assert.Equal(t, before+1, testutil.ToFloat64(llmCallsTotal.WithLabelValues("test_ok", "ok")))
}

func TestResilientErrorFallsBack(t *testing.T) {
	before := testutil.ToFloat64(llmCallsTotal.WithLabelValues("test_error", "error"))
	calls := 0
	r := NewResilient(GeneratorFunc(func(context.Context, string) (string, error) {
		calls++
		return "", errors.New("503 from upstream")
	}), 0)

	res := r.Call(context.Background(), "test_error", "prompt", "없음")
	assert.Equal(t, "없음", res.Text)
	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Err, core.ErrExternalService)
	assert.Equal(t, 1, calls, "no retries")
	assert.Equal(t, before+1, testutil.ToFloat64(llmCallsTotal.WithLabelValues("test_error", "error")))
}

func TestResilientEmptyOutputFallsBack(t *testing.T) {
	r := NewResilient(GeneratorFunc(func(context.Context, string) (string, error) {
		return "\n  ", nil
	}), 0)

	res := r.Call(context.Background(), "test_empty", "prompt", "default")
	assert.Equal(t, "default", res.Text)
	assert.True(t, res.Fallback)
	assert.NoError(t, res.Err)
}

func TestResilientTimeout(t *testing.T) {
	r := NewResilient(GeneratorFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), 10*time.Millisecond)

	res := r.Call(context.Background(), "test_timeout", "prompt", "fb")
	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Err, core.ErrExternalService)
}

func TestResilientWithoutGenerator(t *testing.T) {
	var r *Resilient
	res := r.Call(context.Background(), "test_nil", "prompt", "fb")
	assert.Equal(t, "fb", res.Text)
	assert.True(t, res.Fallback)
}

func TestRegisterMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)

	NewResilient(GeneratorFunc(func(context.Context, string) (string, error) {
		return "ok", nil
	}), 0).Call(context.Background(), "test_registry", "p", "")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "ingrevia_llm_calls_total")
	assert.Contains(t, names, "ingrevia_llm_call_duration_seconds")
}

func TestDecodeSlots(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		status DecodeStatus
		want   SlotPayload
	}{
		{
			name:   "array concerns",
			input:  `{"skin_type": "지성", "concerns": ["모공/피지", "보습"], "category": "로션/에멀전"}`,
			status: Parsed,
			want:   SlotPayload{SkinType: "지성", Concerns: []string{"모공/피지", "보습"}, Category: "로션/에멀전"},
		},
		{
			name:   "string concerns inside prose",
			input:  "결과입니다:\n```json\n{\"skin_type\": \"건성\", \"concerns\": \"보습, 진정\", \"category\": \"크림\"}\n```",
			status: Parsed,
			want:   SlotPayload{SkinType: "건성", Concerns: []string{"보습", "진정"}, Category: "크림"},
		},
		{
			name:   "nulls and missing fields",
			input:  `{"skin_type": null, "concerns": null}`,
			status: Parsed,
			want:   SlotPayload{SkinType: core.Unknown, Category: core.Unknown},
		},
		{
			name:   "no object",
			input:  "죄송하지만 이해하지 못했어요",
			status: Malformed,
			want:   UnknownPayload(),
		},
		{
			name:   "broken json",
			input:  `{"skin_type": "지성", "concerns": [}`,
			status: Malformed,
			want:   UnknownPayload(),
		},
		{
			name:   "wrong types",
			input:  `{"skin_type": 3, "concerns": {"a": 1}, "category": "크림"}`,
			status: Malformed,
			want:   UnknownPayload(),
		},
		{
			name:   "not an object",
			input:  `} nothing {`,
			status: Malformed,
			want:   UnknownPayload(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeSlots(tt.input)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.want, got.Slots)
			if tt.status == Malformed {
				assert.ErrorIs(t, got.Err, core.ErrGenerationParse)
				assert.False(t, got.OK())
			} else {
				assert.NoError(t, got.Err)
				assert.True(t, got.OK())
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	raw, ok := ExtractJSONObject(`prefix {"a": {"b": 1}} suffix`)
	assert.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, raw)

	_, ok = ExtractJSONObject("no braces")
	assert.False(t, ok)
}

func TestNewChatModelRejectsBadConfig(t *testing.T) {
	_, err := NewChatModel(context.Background(), ProviderConfig{Provider: "gemini"})
	assert.Error(t, err)

	_, err = NewChatModel(context.Background(), ProviderConfig{Provider: "openai", Model: "gpt-4o-mini"})
	assert.Error(t, err)
}

func TestCallStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)

	r := NewResilient(GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		if prompt == "fail" {
			return "", errors.New("down")
		}
		return "ok", nil
	}), 0)
	r.Call(context.Background(), "test_stats", "p", "")
	r.Call(context.Background(), "test_stats", "p", "")
	r.Call(context.Background(), "test_stats", "fail", "")

	stats, err := CallStats(reg)
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, st := range stats {
		assert.Equal(t, "ingrevia_llm_calls_total", st.Metric)
		if st.Call == "test_stats" {
			counts[st.Result] = st.Count
		}
	}
	assert.Equal(t, map[string]float64{"ok": 2, "error": 1}, counts)
}
