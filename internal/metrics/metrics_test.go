package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/veritas/internal/model"
)

// value returns the summed counter or histogram sample count of a family
func value(t *testing.T, r *Recorder, name string) float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				total += float64(h.GetSampleCount())
			}
		}
		return total
	}
	return 0
}

func TestRecorder_ObserveVerification(t *testing.T) {
	r := NewRecorder()

	result := model.VerificationResult{
		OverallScore: model.Score{Accuracy: 0.5, Confidence: 0.5},
		Claims: []model.ClaimValidation{
			{Claim: "a", IsHallucination: true},
			{Claim: "b"},
		},
		Domain: &model.DomainClassification{Domain: model.Domain{ID: "legal"}},
		Mode:   model.ModeStrict,
	}
	r.ObserveVerification(result, 20*time.Millisecond)
	r.ObserveVerification(model.EmptyResult(), time.Millisecond)

	tests := []struct {
		name string
		want float64
	}{
		{"veritas_verify_runs_total", 2},
		{"veritas_verify_claims_total", 2},
		{"veritas_verify_hallucinations_total", 1},
		{"veritas_verify_duration_seconds", 2},
		{"veritas_verify_confidence", 1}, // Empty runs are not observed
	}
	for _, tt := range tests {
		if got := value(t, r, tt.name); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRecorder_ObserveEnforcement(t *testing.T) {
	r := NewRecorder()

	r.ObserveEnforcement(model.EnforcementResult{Blocked: true, TrustDelta: -20})
	r.ObserveEnforcement(model.EnforcementResult{Modified: true, TrustDelta: -5})
	r.ObserveEnforcement(model.EnforcementResult{})
	r.ObserveRetrievalFailure("wikipedia")

	if got := value(t, r, "veritas_enforce_decisions_total"); got != 3 {
		t.Errorf("Expected 3 decisions, got %v", got)
	}
	if got := value(t, r, "veritas_evidence_retrieval_failures_total"); got != 1 {
		t.Errorf("Expected 1 retrieval failure, got %v", got)
	}
}

func TestDecision(t *testing.T) {
	tests := []struct {
		result model.EnforcementResult
		want   string
	}{
		{model.EnforcementResult{Blocked: true, Modified: true}, DecisionBlocked},
		{model.EnforcementResult{Modified: true}, DecisionModified},
		{model.EnforcementResult{}, DecisionAllowed},
	}
	for _, tt := range tests {
		if got := Decision(tt.result); got != tt.want {
			t.Errorf("Decision(%+v) = %s, want %s", tt.result, got, tt.want)
		}
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveRetrievalFailure("llm")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `veritas_evidence_retrieval_failures_total{source="llm"} 1`) {
		t.Errorf("Expected retrieval failure series in exposition, got:\n%s", body)
	}
}
