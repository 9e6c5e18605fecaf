// Package pipeline sequences claim extraction, evidence retrieval, reference
// checks, validation and scoring into one verification result, and turns that
// result into an enforcement decision.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/veritas/internal/domain"
	"github.com/ppiankov/veritas/internal/evidence"
	"github.com/ppiankov/veritas/internal/extract"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/orchestration"
	"github.com/ppiankov/veritas/internal/reference"
	"github.com/ppiankov/veritas/internal/score"
	"github.com/ppiankov/veritas/internal/session"
	"github.com/ppiankov/veritas/internal/uncertainty"
	"github.com/ppiankov/veritas/internal/validate"
)

// Engine runs verifications. It is immutable after construction and safe for
// concurrent use; the only cross-call state lives in the evidence source and
// the session store.
type Engine struct {
	extractor        *extract.ClaimExtractor
	classifier       *domain.Classifier
	domains          []model.Domain
	reference        *reference.Verifier
	source           evidence.Source
	validator        *validate.Validator
	scorer           *score.Scorer
	uncertainty      *uncertainty.Evaluator
	sessions         *session.Store
	orchestrator     orchestration.Orchestrator
	observer         Observer
	logger           *slog.Logger
	defaults         Options
	workers          int
	retrievalTimeout time.Duration
	hitlThreshold    float64
}

// New creates an engine
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		extractor:     extract.NewClaimExtractor(),
		domains:       model.DefaultDomains(),
		scorer:        score.NewScorer(),
		uncertainty:   uncertainty.NewEvaluator(nil),
		logger:        slog.Default(),
		defaults:      DefaultOptions(),
		workers:       defaultWorkers,
		hitlThreshold: 0.6,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.reference == nil {
		v, err := reference.NewVerifier(nil)
		if err != nil {
			return nil, fmt.Errorf("reference verifier: %w", err)
		}
		e.reference = v
	}
	e.classifier = domain.NewClassifier(e.domains)
	e.validator = validate.NewValidator(e.logger)
	return e, nil
}

// Defaults returns the options used for zero per-call fields
func (e *Engine) Defaults() Options {
	return e.defaults
}

// Sessions returns the review session store, or nil
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// Domains returns the domain catalogue
func (e *Engine) Domains() []model.Domain {
	return e.domains
}

// timings records the duration of the stages of one run
type timings struct {
	claims       time.Duration
	verification time.Duration
}

// retrieval is the outcome of one claim's evidence lookup
type retrieval struct {
	evidence []model.Evidence
	err      error
}

// Verify runs one verification. It never fails: empty input yields the zeroed
// result, and so does any internal failure.
func (e *Engine) Verify(ctx context.Context, text string, opts Options) model.VerificationResult {
	result, _ := e.verify(ctx, text, opts)
	return result
}

func (e *Engine) verify(ctx context.Context, text string, opts Options) (result model.VerificationResult, t timings) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("verification failed, returning empty result", "panic", r, "stack", string(debug.Stack()))
			result = model.EmptyResult()
		}
		if e.observer != nil {
			e.observer.ObserveVerification(result, time.Since(start))
		}
	}()

	opts = opts.merge(e.defaults)

	// 1. Extract claims
	plain := e.plainText(text)
	claims := e.extractor.Extract(plain)
	t.claims = time.Since(start)
	if len(claims) == 0 {
		result = model.EmptyResult()
		result.Mode = opts.Mode
		return result, t
	}

	var signals []model.Signal
	if len(claims) > opts.MaxClaims {
		signals = append(signals, model.Signal{
			Type:        model.SignalClaimCoverage,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Scored %d of %d extracted claims", opts.MaxClaims, len(claims)),
			Data: map[string]interface{}{
				"extracted":  len(claims),
				"scored":     opts.MaxClaims,
				"max_claims": opts.MaxClaims,
			},
		})
		claims = claims[:opts.MaxClaims]
	}

	// 2. Classify domain and derive the effective threshold
	classification := e.classifier.ClassifyWithOverride(plain, opts.DomainOverride)
	modeThreshold := ModeThreshold(opts.Mode, opts.ConfidenceThreshold)
	threshold := domain.EffectiveThreshold(modeThreshold, classification.Domain)
	signals = append(signals, model.Signal{
		Type:        model.SignalThreshold,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("Effective threshold %.2f (%s mode, %s risk)", threshold, opts.Mode, classification.Domain.RiskLevel),
		Data: map[string]interface{}{
			"requested":        opts.ConfidenceThreshold,
			"mode":             opts.Mode,
			"mode_threshold":   modeThreshold,
			"domain":           classification.Domain.ID,
			"domain_threshold": classification.Domain.ConfidenceThreshold,
			"effective":        threshold,
		},
	})

	// 3. Retrieve evidence for all claims concurrently
	retrieved := e.retrieveAll(ctx, claims, opts.RetrievalDepth)

	// 4. Reference checks, validation and scoring per claim
	validations := make([]model.ClaimValidation, 0, len(claims))
	scores := make([]model.Score, 0, len(claims))
	var partitions []validate.Partition
	for i, claim := range claims {
		if retrieved[i].err != nil {
			signals = append(signals, model.Signal{
				Type:        model.SignalRetrievalFailure,
				Severity:    model.SeverityWarning,
				Description: fmt.Sprintf("Evidence retrieval failed for claim %d; scored without retrieved evidence", i+1),
				Data:        map[string]interface{}{"claim": claim.Text, "error": retrieved[i].err.Error()},
			})
		}

		verdict := e.reference.Verify(claim.Text)
		categories := verdict.Categories()
		if len(categories) > 0 {
			signals = append(signals, model.Signal{
				Type:        model.SignalReferenceConflict,
				Severity:    model.SeverityCritical,
				Description: fmt.Sprintf("Reference tables v%s flag claim %d", verdict.TablesVersion, i+1),
				Data:        map[string]interface{}{"claim": claim.Text, "categories": categories},
			})
		}

		items := append(append([]model.Evidence(nil), retrieved[i].evidence...), e.reference.Evidence(verdict)...)
		partition := e.validator.Validate(claim.Text, items, categories)
		if len(partition.Skipped) > 0 {
			reasons := make([]string, len(partition.Skipped))
			for j, s := range partition.Skipped {
				reasons[j] = s.Reason
			}
			signals = append(signals, model.Signal{
				Type:        model.SignalSkippedEvidence,
				Severity:    model.SeverityWarning,
				Description: fmt.Sprintf("Skipped %d malformed evidence item(s) for claim %d", len(partition.Skipped), i+1),
				Data:        map[string]interface{}{"claim": claim.Text, "reasons": reasons},
			})
		}

		sc, clamped := e.scorer.Score(claim.Text, partition)
		if clamped != nil {
			signals = append(signals, *clamped)
		}
		decision := score.Determine(sc, partition, categories, threshold)

		validations = append(validations, model.ClaimValidation{
			Claim:                 claim.Text,
			Sentence:              claim.Sentence,
			Verified:              decision.Verified,
			Score:                 sc,
			SupportingEvidence:    partition.Supporting,
			ContradictingEvidence: partition.Contradicting,
			IsHallucination:       decision.Hallucination,
			Categories:            categories,
		})
		scores = append(scores, sc)
		partitions = append(partitions, partition)
	}

	// 5. Merge sources after all retrievals joined
	result = model.VerificationResult{
		OverallScore: score.Mean(scores),
		Claims:       validations,
		Sources:      dedupeSources(partitions),
		Timestamp:    time.Now().UTC(),
		Domain:       &classification,
		Threshold:    threshold,
		Mode:         opts.Mode,
		Signals:      signals,
	}
	t.verification = time.Since(start) - t.claims
	return result, t
}

// plainText reduces HTML agent output to visible text
func (e *Engine) plainText(text string) string {
	if !extract.LooksLikeHTML(text) {
		return text
	}
	plain, err := extract.TextFromHTML(text)
	if err != nil {
		e.logger.Warn("html extraction failed, using raw text", "error", err)
		return text
	}
	return plain
}

// retrieveAll fans out one retrieval per claim and joins them. Failures are
// recorded per claim and never abort the run.
func (e *Engine) retrieveAll(ctx context.Context, claims []model.Claim, depth int) []retrieval {
	results := make([]retrieval, len(claims))
	if e.source == nil {
		return results
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, claim := range claims {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("evidence source panicked", "source", e.source.Name(), "panic", r)
					results[i] = retrieval{err: fmt.Errorf("%w: source panicked: %v", evidence.ErrUnavailable, r)}
				}
			}()

			cctx := ctx
			if e.retrievalTimeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(ctx, e.retrievalTimeout)
				defer cancel()
			}

			items, err := e.source.Retrieve(cctx, claim.Text, evidence.Options{
				Depth:   depth,
				Queries: extract.ExtractKeyPhrases(claim.Text),
			})
			if err != nil {
				e.logger.Warn("evidence retrieval failed", "source", e.source.Name(), "claim", claim.Text, "error", err)
				if e.observer != nil {
					e.observer.ObserveRetrievalFailure(e.source.Name())
				}
				results[i] = retrieval{err: err}
				return nil
			}
			results[i] = retrieval{evidence: items}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// dedupeSources merges partition sources by id in claim order
func dedupeSources(partitions []validate.Partition) []model.EvidenceSource {
	seen := make(map[string]bool)
	sources := []model.EvidenceSource{}
	for _, p := range partitions {
		for _, src := range p.Sources() {
			if seen[src.ID] {
				continue
			}
			seen[src.ID] = true
			sources = append(sources, src)
		}
	}
	return sources
}

// EvaluateUncertainty scores the hedging of every claim in the result
func (e *Engine) EvaluateUncertainty(result model.VerificationResult) []model.UncertaintyEvaluation {
	evals := make([]model.UncertaintyEvaluation, 0, len(result.Claims))
	for _, c := range result.Claims {
		strength := score.EvidenceStrength(validate.Partition{
			Supporting:    c.SupportingEvidence,
			Contradicting: c.ContradictingEvidence,
		})
		evals = append(evals, e.uncertainty.Evaluate(c.Claim, strength))
	}
	return evals
}
