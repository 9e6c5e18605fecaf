package validate

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// ErrMalformedEvidence marks an evidence item that cannot be scored
var ErrMalformedEvidence = errors.New("malformed evidence")

// Skipped is an evidence item dropped during validation
type Skipped struct {
	Evidence model.Evidence `json:"evidence"`
	Reason   string         `json:"reason"`
}

// Partition is the validated evidence of one claim split by stance
type Partition struct {
	Supporting    []model.Evidence
	Contradicting []model.Evidence
	Neutral       []model.Evidence
	Skipped       []Skipped
	Overridden    int // Supporting items discarded by a dispositive contradiction
}

// Validator partitions claim evidence. It holds no per-claim state and is
// safe for concurrent use.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a new validator
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// Validate splits evidence by sentiment, dropping malformed items. When any
// of the given categories is dispositive and contradicting evidence exists,
// all supporting evidence is discarded.
func (v *Validator) Validate(claim string, evidence []model.Evidence, categories []model.ConflictCategory) Partition {
	p := Partition{
		Supporting:    []model.Evidence{},
		Contradicting: []model.Evidence{},
		Neutral:       []model.Evidence{},
	}

	for _, e := range evidence {
		if err := CheckEvidence(e); err != nil {
			v.logger.Warn("skipping evidence", "claim", claim, "source", e.Source.ID, "error", err)
			p.Skipped = append(p.Skipped, Skipped{Evidence: e, Reason: err.Error()})
			continue
		}
		switch e.Sentiment {
		case model.SentimentSupporting:
			p.Supporting = append(p.Supporting, e)
		case model.SentimentContradicting:
			p.Contradicting = append(p.Contradicting, e)
		case model.SentimentNeutral:
			p.Neutral = append(p.Neutral, e)
		}
	}

	if len(p.Contradicting) > 0 && dispositive(categories) {
		p.Overridden = len(p.Supporting)
		p.Supporting = []model.Evidence{}
	}
	return p
}

// CheckEvidence reports why an evidence item cannot be scored, or nil
func CheckEvidence(e model.Evidence) error {
	switch {
	case strings.TrimSpace(e.Text) == "":
		return fmt.Errorf("%w: empty text", ErrMalformedEvidence)
	case !e.Sentiment.Valid():
		return fmt.Errorf("%w: unknown sentiment %q", ErrMalformedEvidence, e.Sentiment)
	case e.Relevance < 0 || e.Relevance > 1:
		return fmt.Errorf("%w: relevance %.2f outside [0,1]", ErrMalformedEvidence, e.Relevance)
	case e.Source.Reliability < 0 || e.Source.Reliability > 1:
		return fmt.Errorf("%w: reliability %.2f outside [0,1]", ErrMalformedEvidence, e.Source.Reliability)
	case strings.TrimSpace(e.Source.ID) == "":
		return fmt.Errorf("%w: missing source id", ErrMalformedEvidence)
	}
	return nil
}

// Sources returns the distinct sources of the partition in order of first appearance
func (p Partition) Sources() []model.EvidenceSource {
	seen := make(map[string]bool)
	var out []model.EvidenceSource
	for _, group := range [][]model.Evidence{p.Supporting, p.Contradicting, p.Neutral} {
		for _, e := range group {
			if seen[e.Source.ID] {
				continue
			}
			seen[e.Source.ID] = true
			out = append(out, e.Source)
		}
	}
	return out
}

func dispositive(categories []model.ConflictCategory) bool {
	for _, c := range categories {
		if c.Dispositive() {
			return true
		}
	}
	return false
}
