package pipeline

import (
	"context"
	"time"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/orchestration"
	"github.com/ppiankov/veritas/internal/session"
)

// EnhancedOptions extend Options with the optional sub-features
type EnhancedOptions struct {
	Options
	UncertaintyAnalysis     bool    `json:"uncertainty_analysis,omitempty"`
	HITLCollaboration       bool    `json:"hitl_collaboration,omitempty"`
	HITLThreshold           float64 `json:"hitl_threshold,omitempty"`
	MultiAgentOrchestration bool    `json:"multi_agent_orchestration,omitempty"`
	QuantumUncertainty      bool    `json:"quantum_uncertainty,omitempty"`
}

// EnhancedResult is the base result plus the sub-feature outputs
type EnhancedResult struct {
	model.VerificationResult
	UncertaintyAnalysis []model.UncertaintyEvaluation `json:"uncertainty_analysis,omitempty"`
	HITLSession         *session.Session              `json:"hitl_session,omitempty"`
	MultiAgentInsights  *orchestration.Insights       `json:"multi_agent_insights,omitempty"`
	ProcessingTime      map[string]float64            `json:"processing_time_ms"`
}

// Processing time keys
const (
	StageClaims       = "claims"
	StageVerification = "verification"
	StageUncertainty  = "uncertainty"
	StageHITL         = "hitl"
	StageMultiAgent   = "multi_agent"
	StageTotal        = "total"
)

// VerifyEnhanced runs a verification and the requested sub-features. Each
// sub-feature fails soft: its output is simply absent.
func (e *Engine) VerifyEnhanced(ctx context.Context, text string, opts EnhancedOptions) EnhancedResult {
	start := time.Now()
	result, t := e.verify(ctx, text, opts.Options)

	out := EnhancedResult{
		VerificationResult: result,
		ProcessingTime: map[string]float64{
			StageClaims:       ms(t.claims),
			StageVerification: ms(t.verification),
		},
	}

	// 1. Uncertainty, also needed as input for orchestration
	var evals []model.UncertaintyEvaluation
	if opts.UncertaintyAnalysis || opts.MultiAgentOrchestration {
		stage := time.Now()
		evals = e.EvaluateUncertainty(result)
		if opts.UncertaintyAnalysis {
			out.UncertaintyAnalysis = evals
		}
		out.ProcessingTime[StageUncertainty] = ms(time.Since(stage))
	}

	// 2. Human review when confidence is low
	if opts.HITLCollaboration {
		stage := time.Now()
		out.HITLSession = e.openReview(result, opts.HITLThreshold)
		out.ProcessingTime[StageHITL] = ms(time.Since(stage))
	}

	// 3. Multi-agent insights
	if opts.MultiAgentOrchestration {
		stage := time.Now()
		out.MultiAgentInsights = e.orchestrate(ctx, result, evals, opts.QuantumUncertainty)
		out.ProcessingTime[StageMultiAgent] = ms(time.Since(stage))
	}

	out.ProcessingTime[StageTotal] = ms(time.Since(start))
	return out
}

// openReview creates a review session when overall confidence is below the
// threshold. Only claims that are not verified, or are flagged, are reviewed.
func (e *Engine) openReview(result model.VerificationResult, threshold float64) *session.Session {
	if threshold <= 0 {
		threshold = e.hitlThreshold
	}
	if len(result.Claims) == 0 || result.OverallScore.Confidence >= threshold {
		return nil
	}
	if e.sessions == nil {
		e.logger.Warn("review requested but no session store configured")
		return nil
	}

	var items []session.ReviewItem
	for _, c := range result.Claims {
		if c.Verified && !c.IsHallucination {
			continue
		}
		items = append(items, session.ReviewItem{
			Claim:           c.Claim,
			Sentence:        c.Sentence,
			Confidence:      c.Score.Confidence,
			IsHallucination: c.IsHallucination,
		})
	}
	s := e.sessions.Create(items)
	e.logger.Info("review session opened", "id", s.ID, "items", len(items), "confidence", result.OverallScore.Confidence)
	return &s
}

func (e *Engine) orchestrate(ctx context.Context, result model.VerificationResult, evals []model.UncertaintyEvaluation, quantum bool) *orchestration.Insights {
	if e.orchestrator == nil {
		e.logger.Warn("multi-agent orchestration requested but no orchestrator configured")
		return nil
	}
	domainID := ""
	if result.Domain != nil {
		domainID = result.Domain.Domain.ID
	}

	insights, err := e.orchestrator.Analyze(ctx, orchestration.NewProfile(domainID, evals, quantum))
	if err != nil {
		e.logger.Warn("orchestration failed", "orchestrator", e.orchestrator.Name(), "error", err)
		return nil
	}
	return insights
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
