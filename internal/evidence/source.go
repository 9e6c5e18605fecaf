// Package evidence defines the pluggable evidence source contract and its
// implementations.
package evidence

import (
	"context"
	"errors"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// ErrUnavailable marks a source that cannot answer right now
var ErrUnavailable = errors.New("evidence source unavailable")

// Options tune one retrieval
type Options struct {
	Depth   int      // Maximum evidence items per source
	Queries []string // Supplementary search queries, usually key phrases
}

// Source returns evidence for a claim. Implementations must be safe for
// concurrent use; callers treat an error as "no evidence".
type Source interface {
	Name() string
	Retrieve(ctx context.Context, claim string, opts Options) ([]model.Evidence, error)
}

// Func adapts a function to a Source
type Func struct {
	SourceName string
	Fn         func(ctx context.Context, claim string, opts Options) ([]model.Evidence, error)
}

// Name returns the source name
func (f Func) Name() string { return f.SourceName }

// Retrieve calls the wrapped function
func (f Func) Retrieve(ctx context.Context, claim string, opts Options) ([]model.Evidence, error) {
	return f.Fn(ctx, claim, opts)
}

// Static serves fixed evidence keyed by normalized claim text. It is
// deterministic and used for tests, demos and air-gapped runs.
type Static struct {
	name     string
	evidence map[string][]model.Evidence
}

// NewStatic creates a static source
func NewStatic(name string, evidence map[string][]model.Evidence) *Static {
	s := &Static{name: name, evidence: make(map[string][]model.Evidence, len(evidence))}
	for claim, items := range evidence {
		s.evidence[staticKey(claim)] = items
	}
	return s
}

// Name returns the source name
func (s *Static) Name() string { return s.name }

// Retrieve returns a copy of the evidence registered for the claim, limited to depth
func (s *Static) Retrieve(ctx context.Context, claim string, opts Options) ([]model.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := s.evidence[staticKey(claim)]
	if opts.Depth > 0 && len(items) > opts.Depth {
		items = items[:opts.Depth]
	}
	return append([]model.Evidence(nil), items...), nil
}

func staticKey(claim string) string {
	return strings.ToLower(strings.Join(strings.Fields(claim), " "))
}
