package uncertainty

import "github.com/ppiankov/veritas/internal/model"

// WellHedgedThreshold is the appropriateness a hedged claim needs to earn a bonus
const WellHedgedThreshold = 0.7

// WellHedgedRatio returns the share of evaluations that carry a qualifier
// with appropriateness above WellHedgedThreshold
func WellHedgedRatio(evals []model.UncertaintyEvaluation) float64 {
	if len(evals) == 0 {
		return 0
	}
	n := 0
	for _, e := range evals {
		if e.HasQualifier && e.AppropriatenessScore > WellHedgedThreshold {
			n++
		}
	}
	return float64(n) / float64(len(evals))
}

// TrustBonus rewards appropriate hedging: +3 at a well-hedged ratio of 0.8,
// +2 at 0.5, +1 at 0.3. High-risk domains that require uncertainty scale the
// bonus by 1.5; low-risk domains reduce it by 1.
func TrustBonus(evals []model.UncertaintyEvaluation, d model.Domain) float64 {
	ratio := WellHedgedRatio(evals)

	var bonus float64
	switch {
	case ratio >= 0.8:
		bonus = 3
	case ratio >= 0.5:
		bonus = 2
	case ratio >= 0.3:
		bonus = 1
	}

	switch d.RiskLevel {
	case model.RiskHigh:
		if d.UncertaintyRequired {
			bonus *= 1.5
		}
	case model.RiskLow:
		bonus--
		if bonus < 0 {
			bonus = 0
		}
	}
	return bonus
}
