package pipeline

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/evidence"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/orchestration"
	"github.com/ppiankov/veritas/internal/reference"
	"github.com/ppiankov/veritas/internal/session"
)

// Mode threshold adjustments
const (
	modeStep       = 0.1
	strictCeiling  = 0.95
	lenientFloor   = 0.3
	defaultWorkers = 8
)

// Options are the per-call verification options. Zero fields take the
// engine defaults, so a threshold of exactly 0 cannot be requested; the
// smallest effective threshold is any positive value.
type Options struct {
	Mode                string  `json:"mode,omitempty"`
	MaxClaims           int     `json:"max_claims,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	RetrievalDepth      int     `json:"retrieval_depth,omitempty"`
	DomainOverride      string  `json:"domain,omitempty"`
}

// DefaultOptions returns mode=balanced, maxClaims=5, threshold=0.7, depth=3
func DefaultOptions() Options {
	return Options{
		Mode:                model.ModeBalanced,
		MaxClaims:           5,
		ConfidenceThreshold: 0.7,
		RetrievalDepth:      3,
	}
}

// OptionsFromConfig returns the verify defaults from configuration
func OptionsFromConfig(cfg model.VerificationConfig) Options {
	return Options{
		Mode:                cfg.Mode,
		MaxClaims:           cfg.MaxClaims,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		RetrievalDepth:      cfg.RetrievalDepth,
	}.merge(DefaultOptions())
}

// merge fills zero fields from defaults and normalizes the mode
func (o Options) merge(defaults Options) Options {
	if o.Mode == "" {
		o.Mode = defaults.Mode
	}
	if o.MaxClaims <= 0 {
		o.MaxClaims = defaults.MaxClaims
	}
	if o.ConfidenceThreshold <= 0 {
		o.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	if o.RetrievalDepth <= 0 {
		o.RetrievalDepth = defaults.RetrievalDepth
	}
	o.Mode = NormalizeMode(o.Mode)
	return o
}

// NormalizeMode maps unknown modes to balanced
func NormalizeMode(mode string) string {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case model.ModeStrict, model.ModeLenient:
		return m
	default:
		return model.ModeBalanced
	}
}

// ModeThreshold applies the mode to a requested threshold. Strict raises it
// by 0.1 up to 0.95, lenient lowers it by 0.1 down to 0.3. A threshold
// already beyond a bound is left as requested.
func ModeThreshold(mode string, threshold float64) float64 {
	switch NormalizeMode(mode) {
	case model.ModeStrict:
		if threshold >= strictCeiling {
			return threshold
		}
		return math.Min(threshold+modeStep, strictCeiling)
	case model.ModeLenient:
		if threshold <= lenientFloor {
			return threshold
		}
		return math.Max(threshold-modeStep, lenientFloor)
	default:
		return threshold
	}
}

// Observer receives run telemetry
type Observer interface {
	ObserveVerification(result model.VerificationResult, elapsed time.Duration)
	ObserveRetrievalFailure(source string)
	ObserveEnforcement(result model.EnforcementResult)
}

// Option configures an Engine
type Option func(*Engine)

// WithSource sets the evidence source. Without one, only reference checks run.
func WithSource(src evidence.Source) Option {
	return func(e *Engine) { e.source = src }
}

// WithReference sets the reference verifier
func WithReference(v *reference.Verifier) Option {
	return func(e *Engine) { e.reference = v }
}

// WithDomains replaces the domain catalogue
func WithDomains(domains []model.Domain) Option {
	return func(e *Engine) { e.domains = domains }
}

// WithDefaults sets the options used for zero per-call fields
func WithDefaults(o Options) Option {
	return func(e *Engine) { e.defaults = o.merge(DefaultOptions()) }
}

// WithRetrievalWorkers bounds concurrent per-claim retrievals
func WithRetrievalWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRetrievalTimeout bounds each claim's retrieval
func WithRetrievalTimeout(d time.Duration) Option {
	return func(e *Engine) { e.retrievalTimeout = d }
}

// WithSessions enables human-in-the-loop sessions for the enhanced call
func WithSessions(st *session.Store) Option {
	return func(e *Engine) { e.sessions = st }
}

// WithOrchestrator sets the multi-agent orchestrator for the enhanced call
func WithOrchestrator(o orchestration.Orchestrator) Option {
	return func(e *Engine) { e.orchestrator = o }
}

// WithHITLThreshold sets the default confidence below which a review session opens
func WithHITLThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 {
			e.hitlThreshold = t
		}
	}
}

// WithObserver registers run telemetry
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
