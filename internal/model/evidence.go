package model

import "time"

// EvidenceSource identifies where a piece of evidence came from.
// Sources are immutable once created and deduplicated by ID.
type EvidenceSource struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Reliability float64       `json:"reliability"`         // 0.0-1.0
	URL         string        `json:"url,omitempty"`
	Timestamp   *time.Time    `json:"timestamp,omitempty"`
	Authority   AuthorityTier `json:"authority,omitempty"` // Set by URL-backed sources
}

// Evidence is a text snippet that supports, contradicts or is neutral to a claim
type Evidence struct {
	Text      string         `json:"text"`
	Source    EvidenceSource `json:"source"`
	Relevance float64        `json:"relevance"` // 0.0-1.0
	Sentiment Sentiment      `json:"sentiment"`
}

// Sentiment is the stance of evidence toward its claim
type Sentiment string

const (
	SentimentSupporting    Sentiment = "supporting"
	SentimentContradicting Sentiment = "contradicting"
	SentimentNeutral       Sentiment = "neutral"
)

// Valid reports whether s is one of the known sentiments
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentSupporting, SentimentContradicting, SentimentNeutral:
		return true
	default:
		return false
	}
}

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Laws, statutes, academic papers, official documents
	TierSecondary AuthorityTier = 2 // Encyclopedias, major publishers, reputable media
	TierTertiary  AuthorityTier = 3 // Blogs, personal websites, forums
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// Reliability maps an authority tier to a source reliability in [0,1]
func (t AuthorityTier) Reliability() float64 {
	switch t {
	case TierPrimary:
		return 0.9
	case TierSecondary:
		return 0.75
	case TierTertiary:
		return 0.5
	default:
		return 0.4
	}
}
