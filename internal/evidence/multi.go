package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/veritas/internal/model"
)

// Multi queries several sources concurrently and concatenates their evidence
// in source order. It fails only when every source fails.
type Multi struct {
	sources []Source
	logger  *slog.Logger
}

// NewMulti combines sources
func NewMulti(logger *slog.Logger, sources ...Source) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{sources: sources, logger: logger}
}

// Name lists the combined source names
func (m *Multi) Name() string {
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Retrieve fans out to all sources
func (m *Multi) Retrieve(ctx context.Context, claim string, opts Options) ([]model.Evidence, error) {
	if len(m.sources) == 0 {
		return nil, nil
	}

	results := make([][]model.Evidence, len(m.sources))
	errs := make([]error, len(m.sources))

	var g errgroup.Group
	for i, src := range m.sources {
		g.Go(func() error {
			items, err := src.Retrieve(ctx, claim, opts)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var out []model.Evidence
	failed := 0
	for i := range m.sources {
		if errs[i] != nil {
			failed++
			m.logger.Warn("evidence source failed", "source", m.sources[i].Name(), "error", errs[i])
			continue
		}
		out = append(out, results[i]...)
	}

	if failed == len(m.sources) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
	}
	return out, nil
}
