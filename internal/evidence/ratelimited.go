package evidence

import (
	"context"
	"fmt"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/worker"
)

// RateLimited waits on a shared keyed limiter before each retrieval
type RateLimited struct {
	source  Source
	limiter *worker.Limiter
}

// NewRateLimited wraps source; calls are keyed by the source name
func NewRateLimited(source Source, limiter *worker.Limiter) *RateLimited {
	return &RateLimited{source: source, limiter: limiter}
}

// Name returns the wrapped source name
func (r *RateLimited) Name() string { return r.source.Name() }

// Retrieve waits for a token, then delegates
func (r *RateLimited) Retrieve(ctx context.Context, claim string, opts Options) ([]model.Evidence, error) {
	if err := r.limiter.Wait(ctx, r.source.Name()); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", ErrUnavailable, err)
	}
	return r.source.Retrieve(ctx, claim, opts)
}
