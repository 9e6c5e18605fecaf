package evidence

import (
	"testing"

	"github.com/ppiankov/veritas/internal/model"
)

func TestAuthorityClassifier_Classify(t *testing.T) {
	classifier := NewAuthorityClassifier(&model.AuthorityConfig{
		PrimaryDomains:   []string{"legislation.gov.uk", "doi.org"},
		SecondaryDomains: []string{"wikipedia.org"},
		PathPatterns: []model.PathPattern{
			{Pattern: `/blog/`, Tier: "tertiary"},
			{Pattern: `/statutes?/`, Tier: "primary"},
		},
		DomainMap: map[string]string{"example.org": "secondary"},
	})

	tests := []struct {
		url      string
		expected model.AuthorityTier
	}{
		{"https://legislation.gov.uk/ukpga/1998/42", model.TierPrimary},
		{"https://www.legislation.gov.uk/statute", model.TierPrimary},
		{"https://doi.org/10.1234/example", model.TierPrimary},
		{"https://en.wikipedia.org/wiki/Earth", model.TierSecondary},
		{"https://example.org/anything", model.TierSecondary},
		{"https://somesite.com/statutes/1", model.TierPrimary},
		{"https://somesite.com/blog/post", model.TierTertiary},
		{"https://www.nasa.gov/moon", model.TierPrimary},
		{"https://www.ox.ac.uk/research", model.TierPrimary},
		{"https://random.io/page", model.TierTertiary},
		{"", model.TierUnknown},
		{"not a url", model.TierUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := classifier.Classify(tt.url); got != tt.expected {
				t.Errorf("Expected %v for %q, got %v", tt.expected, tt.url, got)
			}
		})
	}
}

func TestAuthorityClassifier_Annotate(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	src := classifier.Annotate(model.EvidenceSource{ID: "w", URL: "https://en.wikipedia.org/wiki/Earth"})
	if src.Authority != model.TierSecondary {
		t.Errorf("Expected secondary tier, got %v", src.Authority)
	}
	if src.Reliability != 0.75 {
		t.Errorf("Expected reliability 0.75, got %f", src.Reliability)
	}

	kept := classifier.Annotate(model.EvidenceSource{ID: "w", URL: "https://en.wikipedia.org/wiki/Earth", Reliability: 0.3})
	if kept.Reliability != 0.3 {
		t.Errorf("Expected reported reliability to be kept, got %f", kept.Reliability)
	}

	noURL := classifier.Annotate(model.EvidenceSource{ID: "x", Reliability: 0.5})
	if noURL.Authority != model.TierUnknown {
		t.Errorf("Expected unknown tier without URL, got %v", noURL.Authority)
	}
}
