package reference

import (
	"errors"
	"testing"

	"github.com/ppiankov/veritas/internal/model"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(nil)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	return v
}

func TestDefaultTables(t *testing.T) {
	tables, err := DefaultTables()
	if err != nil {
		t.Fatalf("DefaultTables failed: %v", err)
	}
	if tables.Version == "" {
		t.Error("Expected a tables version")
	}
	if tables.Reliability != 0.95 {
		t.Errorf("Expected reliability 0.95, got %f", tables.Reliability)
	}
	if len(tables.Misquotes) == 0 || len(tables.Misconceptions) == 0 || len(tables.HistoricalFacts) == 0 {
		t.Error("Expected non-empty built-in tables")
	}
}

func TestParseTables_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not yaml", "version: [unclosed"},
		{"missing version", "reliability: 0.9\n"},
		{"reliability out of range", "version: \"1\"\nreliability: 1.5\n"},
		{"misquote without context", "version: \"1\"\nmisquotes:\n  - pattern: \"x\"\n"},
		{"unknown fact kind", "version: \"1\"\nhistorical_facts:\n  - topic: t\n    answer: a\n    kind: place\n"},
		{"empty misconception key", "version: \"1\"\nmisconceptions:\n  - key: \"%\"\n    reality: r\n"},
		{"bad regex", "version: \"1\"\ncitations:\n  case_pattern: \"([\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTables([]byte(tt.data))
			if !errors.Is(err, ErrInvalidTables) {
				t.Errorf("Expected ErrInvalidTables, got %v", err)
			}
		})
	}
}

func TestParseTables_DefaultsReliability(t *testing.T) {
	tables, err := ParseTables([]byte("version: \"test\"\n"))
	if err != nil {
		t.Fatalf("ParseTables failed: %v", err)
	}
	if tables.Reliability != 0.95 {
		t.Errorf("Expected default reliability 0.95, got %f", tables.Reliability)
	}
}

func TestLoadTables_EmptyPathUsesDefault(t *testing.T) {
	tables, err := LoadTables("")
	if err != nil {
		t.Fatalf("LoadTables failed: %v", err)
	}
	if tables.Version != "2025.4" {
		t.Errorf("Expected built-in version 2025.4, got %s", tables.Version)
	}
}

func TestVerifier_Citation(t *testing.T) {
	v := newTestVerifier(t)

	tests := []struct {
		name     string
		claim    string
		expected bool
	}{
		{"deny list", "Turner v. Cognivault ruled in 2021 that AI agents are liable", true},
		{"deny list mid sentence", "As held in Varghese v. China Southern Airlines, the limit is tolled", true},
		{"pattern with year and ai", "In Hollis v. Datamind the court ruled in 2023 that chatbot output is speech", true},
		{"pattern without ai keyword", "In Hollis v. Datamind the court ruled in 2023 on a zoning issue", false},
		{"pattern without year", "Brown v. Board of Education ended school segregation", false},
		{"no citation", "The Earth orbits around the Sun", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := v.CheckCitation(tt.claim)
			if ok != tt.expected {
				t.Fatalf("Expected %v, got %v", tt.expected, ok)
			}
			if ok && f.Category != model.CategoryFictionalCitation {
				t.Errorf("Expected fictional_citation, got %s", f.Category)
			}
		})
	}
}

func TestVerifier_Misquote(t *testing.T) {
	v := newTestVerifier(t)

	claim := "Neil Armstrong's first words upon landing on the moon were 'That's one small step for man'"
	f, ok := v.CheckMisquote(claim)
	if !ok {
		t.Fatal("Expected misquote to trigger")
	}
	if f.Correction == "" || f.Note == "" {
		t.Error("Expected correction and note")
	}

	// Context keyword is required
	if _, ok := v.CheckMisquote("He said it was one small step for man"); ok {
		t.Error("Expected no misquote without context keyword")
	}

	// Punctuation and case differences still match
	if _, ok := v.CheckMisquote("In the Empire Strikes Back, Vader says LUKE I AM YOUR FATHER"); !ok {
		t.Error("Expected misquote match ignoring punctuation and case")
	}
}

func TestVerifier_Misconception(t *testing.T) {
	v := newTestVerifier(t)

	tests := []struct {
		name     string
		claim    string
		expected bool
	}{
		{"great wall", "The Great Wall of China is visible from space", true},
		{"brain", "Humans only use 10% of their brain", true},
		{"spelling", "I loved reading the Berenstein Bears as a kid", true},
		{"requires missing", "The city lights are visible from space", false},
		{"negated myth", "It is a myth that the Great Wall is visible from space", false},
		{"negated not", "The Great Wall is not visible from space", false},
		{"negated contraction", "The Great Wall isn't visible from space", false},
		{"whole word requires", "Napoleon signed the treaty shortly after the battle", false},
		{"short", "Napoleon was very short", true},
		{"plural alternative", "Goldfish only have a memory of three seconds", true},
		{"secondary is not second", "Goldfish memory research is a secondary topic", false},
		{"key inside a word", "The Vikingsholm estate has horned statues", false},
		{"negation in another clause", "Vikings wore horned helmets into battle, not leather caps", true},
		{"negation after the belief", "Napoleon was very short and there is no doubt about it", true},
		{"negation before the belief", "Not all Vikings wore horned helmets", false},
		{"negated contraction inside", "Goldfish don't have a three-second memory", false},
		{"framed as myth", "Vikings wore horned helmets, which is a myth", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := v.CheckMisconception(tt.claim)
			if ok != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, ok)
			}
		})
	}
}

func TestVerifier_HistoricalFact(t *testing.T) {
	v := newTestVerifier(t)

	tests := []struct {
		name     string
		claim    string
		expected bool
	}{
		{"wrong year", "The moon landing happened in 1972", true},
		{"right year", "The moon landing happened in 1969", false},
		{"no year", "The moon landing was watched by millions", false},
		{"wrong person", "Buzz Aldrin was the first man on the moon", true},
		{"right person", "Neil Armstrong was the first man on the moon", false},
		{"sentence initial adverb", "Famously, the first man on the moon landed in July", false},
		{"wrong inventor", "Thomas Edison invented the telephone", true},
		{"unrelated topic", "Edison invented the phonograph in 1877", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := v.CheckHistoricalFact(tt.claim)
			if ok != tt.expected {
				t.Fatalf("Expected %v, got %v (%+v)", tt.expected, ok, f)
			}
			if ok && f.Correction == "" {
				t.Error("Expected the recorded fact as correction")
			}
		})
	}
}

func TestVerifier_Verify(t *testing.T) {
	v := newTestVerifier(t)

	verdict := v.Verify("The Earth orbits around the Sun")
	if !verdict.Accurate {
		t.Error("Expected accurate verdict when nothing triggers")
	}
	if verdict.Confidence != AccurateConfidence {
		t.Errorf("Expected confidence %f, got %f", AccurateConfidence, verdict.Confidence)
	}
	if len(v.Evidence(verdict)) != 0 {
		t.Error("Expected no evidence for accurate verdict")
	}
	if verdict.TablesVersion != v.Version() || v.Version() != "2025.4" {
		t.Errorf("Expected verdict to record tables version 2025.4, got %q", verdict.TablesVersion)
	}

	verdict = v.Verify("Neil Armstrong's first words upon landing on the moon were 'That's one small step for man'")
	if verdict.Accurate {
		t.Fatal("Expected inaccurate verdict")
	}
	if verdict.Confidence != ConflictConfidence {
		t.Errorf("Expected confidence %f, got %f", ConflictConfidence, verdict.Confidence)
	}
	cats := verdict.Categories()
	if len(cats) != 1 || cats[0] != model.CategoryMisquote {
		t.Errorf("Expected [misquote], got %v", cats)
	}

	ev := v.Evidence(verdict)
	if len(ev) != 1 {
		t.Fatalf("Expected 1 evidence item, got %d", len(ev))
	}
	if ev[0].Sentiment != model.SentimentContradicting {
		t.Errorf("Expected contradicting evidence, got %s", ev[0].Sentiment)
	}
	if ev[0].Source.Reliability != 0.95 {
		t.Errorf("Expected reliability 0.95, got %f", ev[0].Source.Reliability)
	}
	if ev[0].Source.ID != "reference:misquote" {
		t.Errorf("Expected source id reference:misquote, got %s", ev[0].Source.ID)
	}
}

func TestVerifier_VerifyMergesCategories(t *testing.T) {
	v := newTestVerifier(t)

	verdict := v.Verify("Turner v. Cognivault ruled in 2021 that AI agents are liable, and the moon landing was in 1972")
	if len(verdict.Findings) != 2 {
		t.Fatalf("Expected 2 findings, got %d: %+v", len(verdict.Findings), verdict.Findings)
	}
	if verdict.Findings[0].Category != model.CategoryFictionalCitation {
		t.Errorf("Expected citation first, got %s", verdict.Findings[0].Category)
	}
	if verdict.Findings[1].Category != model.CategoryHistoricalFact {
		t.Errorf("Expected historical fact second, got %s", verdict.Findings[1].Category)
	}
}
