package model

import "time"

// Score is an accuracy/confidence pair, both in [0,1]
type Score struct {
	Accuracy   float64 `json:"accuracy"`
	Confidence float64 `json:"confidence"`
}

// ClaimValidation is the per-claim outcome of one verification run.
// It is created once and never mutated after being attached to a result.
type ClaimValidation struct {
	Claim                 string             `json:"claim"`
	Sentence              int                `json:"sentence"`
	Verified              bool               `json:"verified"`
	Score                 Score              `json:"score"`
	SupportingEvidence    []Evidence         `json:"supporting_evidence"`
	ContradictingEvidence []Evidence         `json:"contradicting_evidence"`
	IsHallucination       bool               `json:"is_hallucination"`
	Categories            []ConflictCategory `json:"categories,omitempty"` // Reference checks that fired
}

// HasCategory reports whether the claim was flagged by the given reference check
func (c ClaimValidation) HasCategory(category ConflictCategory) bool {
	for _, cat := range c.Categories {
		if cat == category {
			return true
		}
	}
	return false
}

// RiskLevel is the risk tier of a subject-matter domain
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Domain describes a subject-matter domain and its verification strictness
type Domain struct {
	ID                  string    `json:"id" yaml:"id" mapstructure:"id"`
	Name                string    `json:"name" yaml:"name" mapstructure:"name"`
	RiskLevel           RiskLevel `json:"risk_level" yaml:"risk_level" mapstructure:"risk_level"`
	ConfidenceThreshold float64   `json:"confidence_threshold" yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	EvidenceRequirement int       `json:"evidence_requirement" yaml:"evidence_requirement" mapstructure:"evidence_requirement"`
	BlockingEnabled     bool      `json:"blocking_enabled" yaml:"blocking_enabled" mapstructure:"blocking_enabled"`
	UncertaintyRequired bool      `json:"uncertainty_required" yaml:"uncertainty_required" mapstructure:"uncertainty_required"`
	Keywords            []string  `json:"-" yaml:"keywords" mapstructure:"keywords"`
}

// DomainClassification is the result of classifying a text
type DomainClassification struct {
	Domain           Domain   `json:"domain"`
	Confidence       float64  `json:"confidence"`
	SecondaryDomains []Domain `json:"secondary_domains,omitempty"`
}

// UncertaintyEvaluation scores how well a claim's hedging matches its evidence
type UncertaintyEvaluation struct {
	Claim                string   `json:"claim"`
	HasQualifier         bool     `json:"has_qualifier"`
	QualifierStrength    float64  `json:"qualifier_strength"`
	EvidenceStrength     float64  `json:"evidence_strength"`
	AppropriatenessScore float64  `json:"appropriateness_score"`
	MatchedQualifiers    []string `json:"matched_qualifiers,omitempty"`
	SuggestedQualifiers  []string `json:"suggested_qualifiers,omitempty"`
}

// VerificationResult is the root artifact of one verification run
type VerificationResult struct {
	OverallScore Score                 `json:"overall_score"`
	Claims       []ClaimValidation     `json:"claims"`
	Sources      []EvidenceSource      `json:"sources"` // Deduplicated by ID
	Timestamp    time.Time             `json:"timestamp"`
	Domain       *DomainClassification `json:"domain,omitempty"`
	Threshold    float64               `json:"threshold,omitempty"` // Effective confidence threshold used
	Mode         string                `json:"mode,omitempty"`
	Signals      []Signal              `json:"signals,omitempty"`
}

// EmptyResult returns the zeroed result used for empty input and failed runs
func EmptyResult() VerificationResult {
	return VerificationResult{
		OverallScore: Score{},
		Claims:       []ClaimValidation{},
		Sources:      []EvidenceSource{},
		Timestamp:    time.Now().UTC(),
	}
}

// HallucinationCount returns the number of claims flagged as hallucinations
func (r VerificationResult) HallucinationCount() int {
	count := 0
	for _, c := range r.Claims {
		if c.IsHallucination {
			count++
		}
	}
	return count
}

// EnforcementResult is the block/modify/allow decision for one response
type EnforcementResult struct {
	Blocked            bool               `json:"blocked"`
	Modified           bool               `json:"modified"`
	TrustPenalty       float64            `json:"trust_penalty"`
	TrustBonus         float64            `json:"trust_bonus"`
	TrustDelta         float64            `json:"trust_delta"` // TrustBonus - TrustPenalty
	OriginalResponse   string             `json:"original_response"`
	EnforcedResponse   string             `json:"enforced_response"`
	VerificationResult VerificationResult `json:"verification_result"`
	Notes              []string           `json:"notes,omitempty"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalClaimCoverage     SignalType = "claim_coverage"     // Claims extracted vs. scored
	SignalRetrievalFailure  SignalType = "retrieval_failure"  // Evidence source errored
	SignalSkippedEvidence   SignalType = "skipped_evidence"   // Malformed evidence dropped
	SignalReferenceConflict SignalType = "reference_conflict" // Trivia/citation check fired
	SignalScoreClamped      SignalType = "score_clamped"      // Raw score exceeded 1.0
	SignalThreshold         SignalType = "threshold"          // Effective threshold derivation
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
