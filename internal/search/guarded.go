package search

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ingrevia/internal/core"
	"ingrevia/internal/logger"
)

var searchCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ingrevia",
		Name:      "search_calls_total",
		Help:      "Snippet searches by call site and result",
	},
	[]string{"call", "result"}, // result: ok, empty, error
)

func init() {
	prometheus.MustRegister(searchCallsTotal)
}

// RegisterMetrics registers search metrics with a custom registry.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil || reg == prometheus.DefaultRegisterer {
		return
	}
	reg.MustRegister(searchCallsTotal)
}

// Result is the outcome of one guarded lookup. Fallback is set when the
// search failed and Snippets is empty because of it.
type Result struct {
	Snippets []string
	Fallback bool
	Err      error
}

// Guarded wraps a Searcher so failures degrade to no snippets. It never retries.
type Guarded struct {
	inner Searcher
}

// NewGuarded wraps inner. A nil inner searches nothing.
func NewGuarded(inner Searcher) *Guarded {
	if inner == nil {
		inner = Noop{}
	}
	return &Guarded{inner: inner}
}

// Lookup searches once, logging and counting the outcome under name
func (g *Guarded) Lookup(ctx context.Context, name, query string) Result {
	start := time.Now()
	snippets, err := g.inner.Search(ctx, query)
	if err != nil {
		searchCallsTotal.WithLabelValues(name, "error").Inc()
		logger.Warn().Err(err).Str("call", name).Str("query", query).Msg("Search failed, continuing without snippets")
		return Result{Fallback: true, Err: fmt.Errorf("%s: %w: %v", name, core.ErrExternalService, err)}
	}
	if len(snippets) == 0 {
		searchCallsTotal.WithLabelValues(name, "empty").Inc()
		return Result{}
	}

	searchCallsTotal.WithLabelValues(name, "ok").Inc()
	logger.Debug().Str("call", name).Int("snippets", len(snippets)).Dur("elapsed", time.Since(start)).Msg("Search completed")
	return Result{Snippets: snippets}
}
