package search

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ingrevia/internal/core"
	"ingrevia/internal/logger"
)

// Searcher returns text snippets for a query
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Noop returns no snippets
type Noop struct{}

func (Noop) Search(context.Context, string) ([]string, error) {
	return nil, nil
}

// Static serves canned snippets keyed by a phrase contained in the query.
// Keys are matched longest first so "라운드랩 독도 토너" wins over "독도".
type Static struct {
	entries map[string][]string
	keys    []string
}

// NewStatic builds a static searcher from keyword -> snippets
func NewStatic(entries map[string][]string) *Static {
	s := &Static{entries: make(map[string][]string, len(entries))}
	for k, v := range entries {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		s.entries[k] = v
		s.keys = append(s.keys, k)
	}
	sort.Slice(s.keys, func(i, j int) bool {
		if len(s.keys[i]) != len(s.keys[j]) {
			return len(s.keys[i]) > len(s.keys[j])
		}
		return s.keys[i] < s.keys[j]
	})
	return s
}

// LoadStatic reads a YAML file of the form `keyword: [snippet, ...]`
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading snippets file: %w", err)
	}
	var entries map[string][]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing snippets YAML: %w", err)
	}
	return NewStatic(entries), nil
}

// Search returns the snippets of the first key found in the query
func (s *Static) Search(ctx context.Context, query string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	for _, k := range s.keys {
		if strings.Contains(q, k) {
			return append([]string(nil), s.entries[k]...), nil
		}
	}
	return nil, nil
}

// Preferred queries preferred sites first and falls back to the unscoped query
// when every scoped query is empty or fails
type Preferred struct {
	inner Searcher
	sites []string
}

// NewPreferred wraps inner with a preferred-site list
func NewPreferred(inner Searcher, sites []string) *Preferred {
	return &Preferred{inner: inner, sites: sites}
}

func (p *Preferred) Search(ctx context.Context, query string) ([]string, error) {
	for _, site := range p.sites {
		site = strings.TrimSpace(site)
		if site == "" {
			continue
		}
		snippets, err := p.inner.Search(ctx, fmt.Sprintf("site:%s %s", site, query))
		if err != nil {
			logger.Debug().Err(err).Str("site", site).Msg("Preferred site search failed")
			continue
		}
		if len(snippets) > 0 {
			return snippets, nil
		}
	}

	snippets, err := p.inner.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", core.ErrExternalService, err)
	}
	return snippets, nil
}
