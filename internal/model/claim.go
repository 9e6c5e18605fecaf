package model

// Claim is a single normalized factual assertion extracted from generated text
type Claim struct {
	Text     string `json:"text"`     // Normalized sentence text
	Sentence int    `json:"sentence"` // Sentence index in source (0-based)
}

// ConflictCategory names the fixed reference check that flagged a claim.
// The set is closed: every switch over it must be exhaustive.
type ConflictCategory string

const (
	CategoryFictionalCitation ConflictCategory = "fictional_citation" // Fabricated legal case
	CategoryMisquote          ConflictCategory = "misquote"           // Known misquotation
	CategoryMisconception     ConflictCategory = "misconception"      // "Mandela effect" belief
	CategoryHistoricalFact    ConflictCategory = "historical_fact"    // Contradicts a recorded fact
)

// AllCategories lists every conflict category in check order
func AllCategories() []ConflictCategory {
	return []ConflictCategory{
		CategoryFictionalCitation,
		CategoryMisquote,
		CategoryMisconception,
		CategoryHistoricalFact,
	}
}

// Dispositive reports whether contradicting evidence from this category
// discards all supporting evidence for the claim.
func (c ConflictCategory) Dispositive() bool {
	switch c {
	case CategoryFictionalCitation, CategoryMisquote, CategoryMisconception, CategoryHistoricalFact:
		return true
	default:
		return false
	}
}

func (c ConflictCategory) String() string {
	return string(c)
}
