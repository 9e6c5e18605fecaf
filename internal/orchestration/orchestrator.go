// Package orchestration defines the contract between verification and a
// multi-agent orchestration layer. The engine hands over an uncertainty
// profile and receives insights; how agents are scheduled is up to the
// implementation.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/veritas/internal/model"
)

// ErrEmptyProfile is returned when there is nothing to analyze
var ErrEmptyProfile = errors.New("empty uncertainty profile")

// ClaimProfile is the uncertainty picture of one claim
type ClaimProfile struct {
	Claim             string  `json:"claim"`
	QualifierStrength float64 `json:"qualifier_strength"`
	EvidenceStrength  float64 `json:"evidence_strength"`
	Appropriateness   float64 `json:"appropriateness"`
}

// UncertaintyProfile is what an orchestrator consumes
type UncertaintyProfile struct {
	Domain              string         `json:"domain"`
	Claims              []ClaimProfile `json:"claims"`
	MeanAppropriateness float64        `json:"mean_appropriateness"`
	Quantum             bool           `json:"quantum"` // Request spread analysis over evidence strengths
}

// AgentView is one agent's assessment
type AgentView struct {
	Role       string  `json:"role"`
	Assessment string  `json:"assessment"`
	Confidence float64 `json:"confidence"`
}

// Insights is what an orchestrator returns
type Insights struct {
	Orchestrator    string      `json:"orchestrator"`
	Agents          []AgentView `json:"agents"`
	Consensus       float64     `json:"consensus"`
	Spread          *float64    `json:"spread,omitempty"` // Std deviation of evidence strength, quantum mode only
	Recommendations []string    `json:"recommendations,omitempty"`
}

// Orchestrator analyzes an uncertainty profile
type Orchestrator interface {
	Name() string
	Analyze(ctx context.Context, profile UncertaintyProfile) (*Insights, error)
}

// NewProfile builds the profile from per-claim uncertainty evaluations
func NewProfile(domainID string, evals []model.UncertaintyEvaluation, quantum bool) UncertaintyProfile {
	p := UncertaintyProfile{Domain: domainID, Quantum: quantum, Claims: []ClaimProfile{}}
	var sum float64
	for _, e := range evals {
		p.Claims = append(p.Claims, ClaimProfile{
			Claim:             e.Claim,
			QualifierStrength: e.QualifierStrength,
			EvidenceStrength:  e.EvidenceStrength,
			Appropriateness:   e.AppropriatenessScore,
		})
		sum += e.AppropriatenessScore
	}
	if len(evals) > 0 {
		p.MeanAppropriateness = sum / float64(len(evals))
	}
	return p
}

// Panel is an in-process orchestrator: three fixed reviewer roles assess the
// profile and their mean confidence is the consensus.
type Panel struct{}

// NewPanel creates the in-process reviewer panel
func NewPanel() *Panel {
	return &Panel{}
}

// Name returns the orchestrator name
func (p *Panel) Name() string { return "panel" }

// Analyze runs the skeptic, calibrator and editor roles over the profile
func (p *Panel) Analyze(ctx context.Context, profile UncertaintyProfile) (*Insights, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(profile.Claims) == 0 {
		return nil, ErrEmptyProfile
	}

	weakest := append([]ClaimProfile(nil), profile.Claims...)
	sort.SliceStable(weakest, func(i, j int) bool {
		return weakest[i].EvidenceStrength < weakest[j].EvidenceStrength
	})

	var evidenceSum float64
	for _, c := range profile.Claims {
		evidenceSum += c.EvidenceStrength
	}
	meanEvidence := evidenceSum / float64(len(profile.Claims))

	skeptic := AgentView{
		Role:       "skeptic",
		Assessment: fmt.Sprintf("Weakest claim has evidence strength %.2f: %q", weakest[0].EvidenceStrength, weakest[0].Claim),
		Confidence: meanEvidence,
	}
	calibrator := AgentView{
		Role:       "calibrator",
		Assessment: fmt.Sprintf("Mean hedge appropriateness %.2f across %d claim(s)", profile.MeanAppropriateness, len(profile.Claims)),
		Confidence: profile.MeanAppropriateness,
	}

	var recs []string
	for _, c := range profile.Claims {
		if c.Appropriateness < 0.5 {
			if c.EvidenceStrength < 0.5 {
				recs = append(recs, fmt.Sprintf("Add a qualifier to %q", c.Claim))
			} else {
				recs = append(recs, fmt.Sprintf("Drop unnecessary hedging from %q", c.Claim))
			}
		}
	}
	editor := AgentView{
		Role:       "editor",
		Assessment: fmt.Sprintf("%d claim(s) need rewording", len(recs)),
		Confidence: 1 - float64(len(recs))/float64(len(profile.Claims)),
	}

	insights := &Insights{
		Orchestrator:    p.Name(),
		Agents:          []AgentView{skeptic, calibrator, editor},
		Consensus:       (skeptic.Confidence + calibrator.Confidence + editor.Confidence) / 3,
		Recommendations: recs,
	}
	if profile.Quantum {
		var variance float64
		for _, c := range profile.Claims {
			d := c.EvidenceStrength - meanEvidence
			variance += d * d
		}
		spread := math.Sqrt(variance / float64(len(profile.Claims)))
		insights.Spread = &spread
	}
	return insights, nil
}
