package pipeline

import (
	"fmt"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// Explain renders human-readable notes for a result and, optionally, its
// enforcement decision
func Explain(result model.VerificationResult, enforcement *model.EnforcementResult) []string {
	if len(result.Claims) == 0 {
		return []string{"No factual claims found; nothing to verify."}
	}

	verified := 0
	for _, c := range result.Claims {
		if c.Verified {
			verified++
		}
	}

	domainName := "unclassified"
	if result.Domain != nil {
		domainName = result.Domain.Domain.Name
	}
	notes := []string{fmt.Sprintf(
		"Verified %d of %d claim(s) in the %s domain (accuracy %.2f, confidence %.2f, threshold %.2f).",
		verified, len(result.Claims), domainName,
		result.OverallScore.Accuracy, result.OverallScore.Confidence, result.Threshold,
	)}

	for i, c := range result.Claims {
		if !c.IsHallucination {
			continue
		}
		notes = append(notes, fmt.Sprintf("Claim %d flagged: %q. %s", i+1, c.Claim, hallucinationReason(c, result.Threshold)))
	}

	if enforcement == nil {
		return notes
	}
	switch {
	case enforcement.Blocked:
		notes = append(notes, fmt.Sprintf("Response blocked: the %s domain does not allow fabricated claims.", domainName))
	case enforcement.Modified:
		notes = append(notes, "Response modified: flagged claims were redacted or marked, unhedged claims qualified.")
	default:
		notes = append(notes, "Response allowed unchanged.")
	}
	notes = append(notes, fmt.Sprintf("Trust delta %+.1f (bonus %.1f, penalty %.1f).",
		enforcement.TrustDelta, enforcement.TrustBonus, enforcement.TrustPenalty))
	return notes
}

// hallucinationReason prefers the reference note, then any contradiction,
// then the missing support
func hallucinationReason(c model.ClaimValidation, threshold float64) string {
	for _, ev := range c.ContradictingEvidence {
		if strings.HasPrefix(ev.Source.ID, "reference:") {
			return ev.Text
		}
	}
	if len(c.ContradictingEvidence) > 0 {
		ev := c.ContradictingEvidence[0]
		return fmt.Sprintf("Contradicted by %s: %s", ev.Source.Name, ev.Text)
	}
	if len(c.SupportingEvidence) == 0 {
		return fmt.Sprintf("No supporting evidence found (confidence %.2f below threshold %.2f).", c.Score.Confidence, threshold)
	}
	return fmt.Sprintf("Accuracy %.2f is too low.", c.Score.Accuracy)
}
