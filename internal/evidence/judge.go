package evidence

import (
	"context"
	"fmt"

	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/model"
)

// JudgeReliability is the reliability assigned to model judgments. It sits
// below curated sources because the model can itself hallucinate.
const JudgeReliability = 0.6

// JudgeSource asks an LLM provider for a stance on the claim. Snippets from
// an optional context source are passed to the model as grounding.
type JudgeSource struct {
	provider llm.Provider
	context  Source
}

// NewJudgeSource creates a judge; contextSource may be nil
func NewJudgeSource(provider llm.Provider, contextSource Source) *JudgeSource {
	return &JudgeSource{provider: provider, context: contextSource}
}

// Name returns the source name
func (j *JudgeSource) Name() string { return "llm:" + j.provider.Name() }

// Retrieve returns at most one evidence item carrying the model's stance
func (j *JudgeSource) Retrieve(ctx context.Context, claim string, opts Options) ([]model.Evidence, error) {
	var snippets []string
	if j.context != nil {
		if items, err := j.context.Retrieve(ctx, claim, opts); err == nil {
			for _, ev := range items {
				if ev.Text != "" {
					snippets = append(snippets, ev.Text)
				}
			}
		}
	}

	judgment, err := j.provider.Judge(ctx, llm.JudgeRequest{Claim: claim, Context: snippets})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return []model.Evidence{{
		Text: judgment.Rationale,
		Source: model.EvidenceSource{
			ID:          j.Name() + ":" + judgment.Model,
			Name:        fmt.Sprintf("LLM judge (%s)", judgment.Model),
			Reliability: JudgeReliability,
		},
		Relevance: judgment.Confidence,
		Sentiment: judgment.Stance,
	}}, nil
}
