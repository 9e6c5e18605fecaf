package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/validate"
)

const (
	ContradictedScore = 0.1 // Floor for any claim with contradicting evidence
	NeutralScore      = 0.5 // No evidence either way
	SupportBase       = 0.8
	SupportStep       = 0.1 // Per supporting item
	SupportMaxBonus   = 0.5
	AccuracyFloor     = 0.3 // Below this a claim is always a hallucination
)

// Scorer converts a claim's evidence partition into an accuracy/confidence pair
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Raw returns the unclamped score of the partition
func (s *Scorer) Raw(p validate.Partition) float64 {
	switch {
	case len(p.Contradicting) > 0:
		return ContradictedScore
	case len(p.Supporting) > 0:
		return SupportBase + math.Min(SupportMaxBonus, SupportStep*float64(len(p.Supporting)))
	default:
		return NeutralScore
	}
}

// Score returns accuracy and confidence in [0,1]. When the raw value exceeds
// 1.0 it is clamped and a score_clamped signal carries the raw value.
func (s *Scorer) Score(claim string, p validate.Partition) (model.Score, *model.Signal) {
	raw := s.Raw(p)
	if raw <= 1.0 {
		return model.Score{Accuracy: raw, Confidence: raw}, nil
	}

	return model.Score{Accuracy: 1.0, Confidence: 1.0}, &model.Signal{
		Type:        model.SignalScoreClamped,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("Score clamped from %.2f to 1.00", raw),
		Data: map[string]interface{}{
			"claim":      claim,
			"raw":        raw,
			"supporting": len(p.Supporting),
			"formula":    "min(1, 0.8 + min(0.5, 0.1 * supporting))",
		},
	}
}

// Determination is the hallucination decision for one claim
type Determination struct {
	Hallucination bool
	Verified      bool
	Reasons       []string
}

// Determine decides whether a scored claim is a hallucination. Any fired
// reference category is conclusive. A claim without supporting evidence is
// only flagged when its confidence is below the threshold.
func Determine(sc model.Score, p validate.Partition, categories []model.ConflictCategory, threshold float64) Determination {
	var d Determination

	for _, c := range categories {
		d.Reasons = append(d.Reasons, fmt.Sprintf("matched %s check", c))
	}
	if len(p.Supporting) == 0 && sc.Confidence < threshold {
		d.Reasons = append(d.Reasons, fmt.Sprintf("no supporting evidence and confidence %.2f below threshold %.2f", sc.Confidence, threshold))
	}
	if len(p.Contradicting) > 0 && sc.Confidence < threshold {
		d.Reasons = append(d.Reasons, fmt.Sprintf("%d contradicting evidence item(s) with confidence %.2f below threshold %.2f", len(p.Contradicting), sc.Confidence, threshold))
	}
	if sc.Accuracy < AccuracyFloor {
		d.Reasons = append(d.Reasons, fmt.Sprintf("accuracy %.2f below %.2f", sc.Accuracy, AccuracyFloor))
	}

	d.Hallucination = len(d.Reasons) > 0
	d.Verified = len(p.Supporting) > 0 && len(categories) == 0
	return d
}

// EvidenceStrength summarizes a partition for the uncertainty evaluator:
// (S - 0.5C) / (1 + 0.5C), clamped to [0,1], where S and C are the mean
// relevance*reliability of supporting and contradicting evidence.
func EvidenceStrength(p validate.Partition) float64 {
	support := meanWeight(p.Supporting)
	contradict := meanWeight(p.Contradicting)
	strength := (support - 0.5*contradict) / (1 + 0.5*contradict)
	return clamp01(strength)
}

func meanWeight(evidence []model.Evidence) float64 {
	if len(evidence) == 0 {
		return 0
	}
	var sum float64
	for _, e := range evidence {
		sum += e.Relevance * e.Source.Reliability
	}
	return sum / float64(len(evidence))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Mean returns the arithmetic mean of the scores, or {0,0} when empty
func Mean(scores []model.Score) model.Score {
	if len(scores) == 0 {
		return model.Score{}
	}
	var acc, conf float64
	for _, s := range scores {
		acc += s.Accuracy
		conf += s.Confidence
	}
	n := float64(len(scores))
	return model.Score{Accuracy: acc / n, Confidence: conf / n}
}
