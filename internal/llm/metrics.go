package llm

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var llmCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ingrevia",
		Name:      "llm_calls_total",
		Help:      "LLM calls by call site and result",
	},
	[]string{"call", "result"}, // result: ok, empty, error
)

var llmCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "ingrevia",
		Name:      "llm_call_duration_seconds",
		Help:      "Latency of LLM calls",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
	},
	[]string{"call"},
)

func init() {
	prometheus.MustRegister(llmCallsTotal, llmCallDuration)
}

// RegisterMetrics registers LLM metrics with a custom registry.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil || reg == prometheus.DefaultRegisterer {
		return
	}
	reg.MustRegister(llmCallsTotal, llmCallDuration)
}

// CallStat is one sample of an ingrevia *_calls_total counter
type CallStat struct {
	Metric string
	Call   string
	Result string
	Count  float64
}

// CallStats reads the call counters gathered by g, sorted by metric then labels
func CallStats(g prometheus.Gatherer) ([]CallStat, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}

	var stats []CallStat
	for _, f := range families {
		name := f.GetName()
		if !strings.HasPrefix(name, "ingrevia_") || !strings.HasSuffix(name, "_calls_total") {
			continue
		}
		for _, m := range f.GetMetric() {
			st := CallStat{Metric: name, Count: m.GetCounter().GetValue()}
			for _, l := range m.GetLabel() {
				switch l.GetName() {
				case "call":
					st.Call = l.GetValue()
				case "result":
					st.Result = l.GetValue()
				}
			}
			stats = append(stats, st)
		}
	}
	return stats, nil
}
