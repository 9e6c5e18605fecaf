package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/uncertainty"
)

// Trust penalty weights
const (
	PenaltyPerHallucination = 5.0
	PenaltyBelowThreshold   = 5.0
	PenaltyMissingHedges    = 5.0
	HighRiskMultiplier      = 1.5
	LowRiskMultiplier       = 0.5
)

// RedactionNotice replaces claims contradicted by reference data
const RedactionNotice = "[removed: contradicted by reference data]"

// UnverifiedPrefix marks hallucinated claims without reference contradiction
const UnverifiedPrefix = "Unverified: "

// Enforce verifies text and decides whether it is blocked, modified or allowed
func (e *Engine) Enforce(ctx context.Context, text string, opts Options) model.EnforcementResult {
	result := e.Verify(ctx, text, opts)
	return e.Decide(text, result)
}

// Decide turns a verification result into an enforcement decision for the
// original text. A failure here allows the text unchanged.
func (e *Engine) Decide(original string, result model.VerificationResult) (out model.EnforcementResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("enforcement failed, allowing response", "panic", r)
			out = model.EnforcementResult{
				OriginalResponse:   original,
				EnforcedResponse:   original,
				VerificationResult: result,
			}
		}
		if e.observer != nil {
			e.observer.ObserveEnforcement(out)
		}
	}()

	out = model.EnforcementResult{
		OriginalResponse:   original,
		EnforcedResponse:   original,
		VerificationResult: result,
	}
	if result.Domain == nil || len(result.Claims) == 0 {
		out.Notes = Explain(result, &out)
		return out
	}
	d := result.Domain.Domain
	evals := e.EvaluateUncertainty(result)
	hallucinations := result.HallucinationCount()

	switch {
	case d.BlockingEnabled && hallucinations > 0:
		out.Blocked = true
		out.EnforcedResponse = BlockNotice(hallucinations)
	default:
		enforced, modified := e.rewrite(e.plainText(original), result, evals)
		if modified {
			out.Modified = true
			out.EnforcedResponse = enforced
		}
	}

	out.TrustPenalty = TrustPenalty(result, evals)
	out.TrustBonus = uncertainty.TrustBonus(evals, d)
	out.TrustDelta = out.TrustBonus - out.TrustPenalty
	out.Notes = Explain(result, &out)
	return out
}

// BlockNotice is the enforced response of a blocked text
func BlockNotice(hallucinations int) string {
	return fmt.Sprintf("[Response blocked: %d claim(s) could not be verified and appear to be fabricated.]", hallucinations)
}

// rewrite redacts or marks hallucinated claims and qualifies unhedged
// unverified claims where the domain requires uncertainty language
func (e *Engine) rewrite(plain string, result model.VerificationResult, evals []model.UncertaintyEvaluation) (string, bool) {
	bySentence := make(map[int]int, len(result.Claims))
	for i, c := range result.Claims {
		bySentence[c.Sentence] = i
	}
	requireHedges := result.Domain.Domain.UncertaintyRequired

	segments := e.extractor.Segments(plain)
	parts := make([]string, 0, len(segments))
	modified := false
	for i, seg := range segments {
		idx, ok := bySentence[i]
		if !ok {
			parts = append(parts, seg.Raw)
			continue
		}
		claim := result.Claims[idx]
		switch {
		case claim.IsHallucination && len(claim.Categories) > 0:
			parts = append(parts, RedactionNotice)
			modified = true
		case claim.IsHallucination:
			parts = append(parts, UnverifiedPrefix+seg.Raw)
			modified = true
		case requireHedges && !claim.Verified && idx < len(evals) && !evals[idx].HasQualifier && len(evals[idx].SuggestedQualifiers) > 0:
			parts = append(parts, uncertainty.ApplyQualifier(evals[idx].SuggestedQualifiers[0], seg.Raw))
			modified = true
		default:
			parts = append(parts, seg.Raw)
		}
	}
	return strings.Join(parts, " "), modified
}

// TrustPenalty is 5 per hallucinated claim plus 5 when overall accuracy is
// below the threshold, scaled by domain risk, plus 5 when the domain requires
// uncertainty language that no claim carries while some claim is unverified
func TrustPenalty(result model.VerificationResult, evals []model.UncertaintyEvaluation) float64 {
	if result.Domain == nil || len(result.Claims) == 0 {
		return 0
	}
	d := result.Domain.Domain

	penalty := PenaltyPerHallucination * float64(result.HallucinationCount())
	if result.OverallScore.Accuracy < result.Threshold {
		penalty += PenaltyBelowThreshold
	}
	switch d.RiskLevel {
	case model.RiskHigh:
		penalty *= HighRiskMultiplier
	case model.RiskLow:
		penalty *= LowRiskMultiplier
	}

	if d.UncertaintyRequired && !anyQualified(evals) && anyUnverified(result) {
		penalty += PenaltyMissingHedges
	}
	return penalty
}

func anyQualified(evals []model.UncertaintyEvaluation) bool {
	for _, e := range evals {
		if e.HasQualifier {
			return true
		}
	}
	return false
}

func anyUnverified(result model.VerificationResult) bool {
	for _, c := range result.Claims {
		if !c.Verified {
			return true
		}
	}
	return false
}
