package domain

import (
	"testing"

	"github.com/ppiankov/veritas/internal/model"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"legal", "Turner v. Cognivault ruled in 2021 that AI agents are liable", "legal"},
		{"medical", "The recommended dosage for this medication depends on the diagnosis", "medical"},
		{"financial", "Rising interest rate policy pushed inflation and bond yields", "financial"},
		{"entertainment", "The movie soundtrack album featured the lead actor", "entertainment"},
		{"fallback", "The Earth orbits around the Sun", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.text)
			if result.Domain.ID != tt.expected {
				t.Errorf("Expected domain %s, got %s", tt.expected, result.Domain.ID)
			}
			if result.Confidence < 0.5 || result.Confidence > 1.0 {
				t.Errorf("Expected confidence in [0.5, 1], got %f", result.Confidence)
			}
		})
	}
}

func TestClassifier_FallbackConfidence(t *testing.T) {
	c := NewClassifier(nil)
	result := c.Classify("Water is wet")
	if result.Confidence != 0.5 {
		t.Errorf("Expected fallback confidence 0.5, got %f", result.Confidence)
	}
	if len(result.SecondaryDomains) != 0 {
		t.Errorf("Expected no secondary domains, got %d", len(result.SecondaryDomains))
	}
}

func TestClassifier_SecondaryDomains(t *testing.T) {
	c := NewClassifier(nil)
	result := c.Classify("The court ruled the drug patent lawsuit against the clinical trial sponsor")
	if result.Domain.ID != "legal" {
		t.Fatalf("Expected legal as primary domain, got %s", result.Domain.ID)
	}
	found := false
	for _, d := range result.SecondaryDomains {
		if d.ID == "medical" {
			found = true
		}
	}
	if !found {
		t.Error("Expected medical among secondary domains")
	}
}

func TestClassifier_Override(t *testing.T) {
	c := NewClassifier(nil)

	result := c.ClassifyWithOverride("The Earth orbits around the Sun", "medical")
	if result.Domain.ID != "medical" {
		t.Errorf("Expected override domain medical, got %s", result.Domain.ID)
	}
	if result.Confidence != 1.0 {
		t.Errorf("Expected override confidence 1.0, got %f", result.Confidence)
	}

	// Unknown override falls back to classification
	result = c.ClassifyWithOverride("The court ruled yesterday", "astrology")
	if result.Domain.ID != "legal" {
		t.Errorf("Expected classification fallback to legal, got %s", result.Domain.ID)
	}
	if result.Confidence == 1.0 {
		t.Error("Expected classified confidence, not override confidence")
	}
}

func TestEffectiveThreshold(t *testing.T) {
	tests := []struct {
		name      string
		requested float64
		domain    model.Domain
		expected  float64
	}{
		{"high raises", 0.7, model.Domain{RiskLevel: model.RiskHigh, ConfidenceThreshold: 0.9}, 0.9},
		{"high keeps stricter request", 0.95, model.Domain{RiskLevel: model.RiskHigh, ConfidenceThreshold: 0.9}, 0.95},
		{"low lowers", 0.7, model.Domain{RiskLevel: model.RiskLow, ConfidenceThreshold: 0.5}, 0.5},
		{"low keeps laxer request", 0.4, model.Domain{RiskLevel: model.RiskLow, ConfidenceThreshold: 0.5}, 0.4},
		{"medium unchanged", 0.7, model.Domain{RiskLevel: model.RiskMedium, ConfidenceThreshold: 0.9}, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveThreshold(tt.requested, tt.domain); got != tt.expected {
				t.Errorf("Expected %f, got %f", tt.expected, got)
			}
		})
	}
}
