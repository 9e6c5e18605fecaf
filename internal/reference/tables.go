package reference

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// ErrInvalidTables is returned when a tables resource fails validation
var ErrInvalidTables = errors.New("invalid reference tables")

// Tables is the versioned reference data used by the Verifier
type Tables struct {
	Version         string           `yaml:"version"`
	Reliability     float64          `yaml:"reliability"`
	Misquotes       []Misquote       `yaml:"misquotes"`
	Misconceptions  []Misconception  `yaml:"misconceptions"`
	NegationMarkers []string         `yaml:"negation_markers"` // Framing that disowns the whole claim
	LocalNegations  []string         `yaml:"local_negations"`  // Words that negate the belief next to them
	HistoricalFacts []HistoricalFact `yaml:"historical_facts"`
	Citations       CitationRules    `yaml:"citations"`
}

// Misquote is a commonly misremembered quotation
type Misquote struct {
	Pattern    string `yaml:"pattern"`
	Context    string `yaml:"context"`
	Correction string `yaml:"correction"`
	Note       string `yaml:"note"`
}

// Misconception is a popular false belief ("Mandela effect")
type Misconception struct {
	Key       string   `yaml:"key"`
	Requires  []string `yaml:"requires,omitempty"` // All must also appear in the claim, as whole words; "|" separates alternatives
	Reality   string   `yaml:"reality"`
	Confusion string   `yaml:"confusion"`
}

// FactKind is how a historical fact is contradicted
type FactKind string

const (
	FactYear   FactKind = "year"
	FactPerson FactKind = "person"
)

// HistoricalFact is a recorded fact with a single accepted answer
type HistoricalFact struct {
	Topic   string   `yaml:"topic"`
	Aliases []string `yaml:"aliases"`
	Fact    string   `yaml:"fact"`
	Kind    FactKind `yaml:"kind"`
	Answer  string   `yaml:"answer"`           // Year or accepted surname
	Ignore  []string `yaml:"ignore,omitempty"` // Capitalized words that are not names
}

// CitationRules detect fabricated legal citations
type CitationRules struct {
	CasePattern     string   `yaml:"case_pattern"`
	Years           []string `yaml:"years"`
	AIKeywords      []string `yaml:"ai_keywords"`
	FabricatedCases []string `yaml:"fabricated_cases"`
}

// DefaultTables returns the built-in tables
func DefaultTables() (*Tables, error) {
	return ParseTables(defaultTablesYAML)
}

// LoadTables loads tables from path, or the built-in tables when path is empty
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables: %w", err)
	}
	return ParseTables(data)
}

// ParseTables decodes and validates a YAML tables resource
func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTables, err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	t.normalize()
	return &t, nil
}

func (t *Tables) validate() error {
	if strings.TrimSpace(t.Version) == "" {
		return fmt.Errorf("%w: missing version", ErrInvalidTables)
	}
	if t.Reliability < 0 || t.Reliability > 1 {
		return fmt.Errorf("%w: reliability %.2f outside [0,1]", ErrInvalidTables, t.Reliability)
	}
	for i, m := range t.Misquotes {
		if m.Pattern == "" || m.Context == "" {
			return fmt.Errorf("%w: misquote %d needs pattern and context", ErrInvalidTables, i)
		}
	}
	for i, m := range t.Misconceptions {
		if len(wordAlts(m.Key)) == 0 || m.Reality == "" {
			return fmt.Errorf("%w: misconception %d needs key and reality", ErrInvalidTables, i)
		}
		for _, req := range m.Requires {
			if len(wordAlts(req)) == 0 {
				return fmt.Errorf("%w: misconception %q has an empty requires term", ErrInvalidTables, m.Key)
			}
		}
	}
	for i, f := range t.HistoricalFacts {
		if f.Topic == "" || f.Answer == "" {
			return fmt.Errorf("%w: historical fact %d needs topic and answer", ErrInvalidTables, i)
		}
		if f.Kind != FactYear && f.Kind != FactPerson {
			return fmt.Errorf("%w: historical fact %q has unknown kind %q", ErrInvalidTables, f.Topic, f.Kind)
		}
	}
	if t.Citations.CasePattern != "" {
		if _, err := regexp.Compile(t.Citations.CasePattern); err != nil {
			return fmt.Errorf("%w: case pattern: %v", ErrInvalidTables, err)
		}
	}
	return nil
}

// normalize lowercases every matching key once so lookups stay case-insensitive
func (t *Tables) normalize() {
	if t.Reliability == 0 {
		t.Reliability = 0.95
	}
	for i := range t.Misquotes {
		t.Misquotes[i].Pattern = strings.ToLower(t.Misquotes[i].Pattern)
		t.Misquotes[i].Context = strings.ToLower(t.Misquotes[i].Context)
	}
	for i := range t.Misconceptions {
		t.Misconceptions[i].Key = strings.ToLower(t.Misconceptions[i].Key)
		t.Misconceptions[i].Requires = lowerAll(t.Misconceptions[i].Requires)
	}
	t.NegationMarkers = lowerAll(t.NegationMarkers)
	t.LocalNegations = lowerAll(t.LocalNegations)
	for i := range t.HistoricalFacts {
		f := &t.HistoricalFacts[i]
		f.Topic = strings.ToLower(f.Topic)
		f.Aliases = lowerAll(f.Aliases)
		f.Answer = strings.ToLower(f.Answer)
		f.Ignore = lowerAll(f.Ignore)
	}
	t.Citations.AIKeywords = lowerAll(t.Citations.AIKeywords)
	t.Citations.FabricatedCases = lowerAll(t.Citations.FabricatedCases)
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
