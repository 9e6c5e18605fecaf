package uncertainty

import (
	"math"
	"testing"

	"github.com/ppiankov/veritas/internal/model"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEvaluator_UnhedgedWeakEvidence(t *testing.T) {
	e := NewEvaluator(nil)

	eval := e.Evaluate("The Earth orbits around the Sun", 0.2)
	if eval.HasQualifier {
		t.Error("Expected no qualifier")
	}
	if !almostEqual(eval.AppropriatenessScore, 0.2) {
		t.Errorf("Expected appropriateness 0.2, got %f", eval.AppropriatenessScore)
	}
	if len(eval.SuggestedQualifiers) != 3 {
		t.Fatalf("Expected 3 suggestions, got %d", len(eval.SuggestedQualifiers))
	}
	if eval.SuggestedQualifiers[0] != "It is possible that" {
		t.Errorf("Expected weak-tier wording, got %q", eval.SuggestedQualifiers[0])
	}
}

func TestEvaluator_HedgedWeakEvidence(t *testing.T) {
	e := NewEvaluator(nil)

	for _, claim := range []string{
		"It's possible that the Earth orbits around the Sun",
		"It’s possible that the Earth orbits around the Sun",
		"It is possible that the Earth orbits around the Sun",
	} {
		t.Run(claim, func(t *testing.T) {
			eval := e.Evaluate(claim, 0.2)
			if !eval.HasQualifier {
				t.Fatal("Expected qualifier")
			}
			if !almostEqual(eval.QualifierStrength, 0.5) {
				t.Errorf("Expected qualifier strength 0.5, got %f (%v)", eval.QualifierStrength, eval.MatchedQualifiers)
			}
			if !almostEqual(eval.AppropriatenessScore, 0.5) {
				t.Errorf("Expected appropriateness 0.5, got %f", eval.AppropriatenessScore)
			}
			if len(eval.SuggestedQualifiers) != 0 {
				t.Error("Expected no suggestions for a hedged claim")
			}
		})
	}
}

func TestEvaluator_Matches(t *testing.T) {
	e := NewEvaluator(nil)

	tests := []struct {
		name     string
		claim    string
		expected []string
	}{
		{"none", "Water boils at 100 degrees", nil},
		{"single", "Coffee may reduce fatigue", []string{"may"}},
		{"longest wins", "It is likely that rates rise", []string{"it is likely that"}},
		{"ordered by position", "According to the report, prices might be rising", []string{"according to", "might be"}},
		{"word boundary", "Mayhem followed the mayor", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := e.Matches(tt.claim)
			if len(matches) != len(tt.expected) {
				t.Fatalf("Expected %d matches, got %d: %+v", len(tt.expected), len(matches), matches)
			}
			for i, m := range matches {
				if m.Phrase != tt.expected[i] {
					t.Errorf("Expected match %d to be %q, got %q", i, tt.expected[i], m.Phrase)
				}
			}
		})
	}
}

func TestEvaluator_MonthMayIsNotHedge(t *testing.T) {
	e := NewEvaluator(nil)

	tests := []struct {
		claim    string
		expected int
	}{
		{"The treaty was signed in May 1969", 0},
		{"On 5 May the launch was delayed", 0},
		{"The drug may cause headaches", 1},
		{"In May the results may change", 1},
	}

	for _, tt := range tests {
		t.Run(tt.claim, func(t *testing.T) {
			if got := len(e.Matches(tt.claim)); got != tt.expected {
				t.Errorf("Expected %d matches, got %d", tt.expected, got)
			}
		})
	}

	if ev := e.Evaluate("Apollo 11 landed in May 1969", 0.2); ev.HasQualifier {
		t.Errorf("Expected month name not to count as a qualifier, got %+v", ev)
	}
}

func TestAppropriateness(t *testing.T) {
	tests := []struct {
		name     string
		hedged   bool
		qs       float64
		es       float64
		expected float64
	}{
		{"strong unhedged", false, 0, 0.9, 0.9},
		{"strong hedged", true, 0.3, 0.9, 0.7},
		{"strong boundary", true, 0.5, 0.8, 0.5},
		{"moderate ideal", true, 0.6, 0.6, 1.0},
		{"moderate off", true, 0.3, 0.6, 0.7},
		{"moderate unhedged", false, 0, 0.5, 0.5},
		{"weak hedged", true, 0.8, 0.1, 0.8},
		{"weak unhedged", false, 0, 0.49, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Appropriateness(tt.hedged, tt.qs, tt.es)
			if !almostEqual(got, tt.expected) {
				t.Errorf("Expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestSuggestQualifiers_Tiers(t *testing.T) {
	if got := SuggestQualifiers(0.9)[0]; got != "Evidence indicates that" {
		t.Errorf("Expected strong wording, got %q", got)
	}
	if got := SuggestQualifiers(0.6)[0]; got != "It is likely that" {
		t.Errorf("Expected moderate wording, got %q", got)
	}

	// Callers must not be able to corrupt the bank
	s := SuggestQualifiers(0.1)
	s[0] = "changed"
	if SuggestQualifiers(0.1)[0] == "changed" {
		t.Error("Expected suggestions to be a copy")
	}
}

func TestApplyQualifier(t *testing.T) {
	tests := []struct {
		qualifier string
		sentence  string
		expected  string
	}{
		{"It is possible that", "The Earth is flat.", "It is possible that the Earth is flat."},
		{"Evidence suggests that", "Neil Armstrong walked on the moon.", "Evidence suggests that Neil Armstrong walked on the moon."},
		{"", "Unchanged.", "Unchanged."},
	}

	for _, tt := range tests {
		if got := ApplyQualifier(tt.qualifier, tt.sentence); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}

func TestTrustBonus(t *testing.T) {
	wellHedged := model.UncertaintyEvaluation{HasQualifier: true, AppropriatenessScore: 0.8}
	poorlyHedged := model.UncertaintyEvaluation{HasQualifier: true, AppropriatenessScore: 0.7}
	unhedged := model.UncertaintyEvaluation{AppropriatenessScore: 0.9}

	medium := model.Domain{RiskLevel: model.RiskMedium}
	highRequired := model.Domain{RiskLevel: model.RiskHigh, UncertaintyRequired: true}
	highOptional := model.Domain{RiskLevel: model.RiskHigh}
	low := model.Domain{RiskLevel: model.RiskLow}

	tests := []struct {
		name     string
		evals    []model.UncertaintyEvaluation
		domain   model.Domain
		expected float64
	}{
		{"empty", nil, medium, 0},
		{"all well hedged", []model.UncertaintyEvaluation{wellHedged, wellHedged}, medium, 3},
		{"half", []model.UncertaintyEvaluation{wellHedged, unhedged}, medium, 2},
		{"third", []model.UncertaintyEvaluation{wellHedged, unhedged, poorlyHedged}, medium, 1},
		{"appropriateness must exceed 0.7", []model.UncertaintyEvaluation{poorlyHedged}, medium, 0},
		{"high risk scaled", []model.UncertaintyEvaluation{wellHedged}, highRequired, 4.5},
		{"high risk without requirement", []model.UncertaintyEvaluation{wellHedged}, highOptional, 3},
		{"low risk reduced", []model.UncertaintyEvaluation{wellHedged}, low, 2},
		{"low risk floor", []model.UncertaintyEvaluation{unhedged}, low, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrustBonus(tt.evals, tt.domain)
			if !almostEqual(got, tt.expected) {
				t.Errorf("Expected %f, got %f", tt.expected, got)
			}
		})
	}
}
