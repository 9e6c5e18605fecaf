package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// ErrMalformedJudgment is returned when a model reply is not a usable judgment
var ErrMalformedJudgment = errors.New("malformed judgment")

// Provider judges a claim with a language model
type Provider interface {
	// Name returns the provider name
	Name() string

	// Judge asks the model whether the context supports the claim
	Judge(ctx context.Context, req JudgeRequest) (*Judgment, error)

	// IsAvailable checks if the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// JudgeRequest is the input for one claim judgment
type JudgeRequest struct {
	Claim     string
	Context   []string // Optional evidence snippets; empty means model knowledge only
	Model     string
	MaxTokens int
}

// Judgment is the model's stance on a claim
type Judgment struct {
	Stance     model.Sentiment
	Confidence float64
	Rationale  string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns the disabled configuration
func DefaultConfig() Config {
	return Config{
		Timeout:   30,
		MaxTokens: 400,
	}
}

const systemPrompt = `You are a fact-checking judge. Decide whether the claim is supported or contradicted.
Use only the numbered context when it is given; otherwise use your own knowledge and be conservative.
Respond with a single JSON object and nothing else:
{"stance": "supporting|contradicting|neutral", "confidence": 0.0-1.0, "rationale": "one sentence"}
Use "neutral" when you cannot tell.`

// BuildPrompt renders the user prompt for a judgment
func BuildPrompt(req JudgeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %s\n", req.Claim)
	if len(req.Context) == 0 {
		b.WriteString("\nNo context is available.\n")
		return b.String()
	}
	b.WriteString("\nContext:\n")
	for i, c := range req.Context {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	return b.String()
}

type judgmentJSON struct {
	Stance     string  `json:"stance"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// ParseJudgment extracts the JSON judgment from a model reply, tolerating
// surrounding prose and code fences
func ParseJudgment(text string) (*Judgment, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedJudgment)
	}

	var raw judgmentJSON
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJudgment, err)
	}

	stance := model.Sentiment(strings.ToLower(strings.TrimSpace(raw.Stance)))
	if !stance.Valid() {
		return nil, fmt.Errorf("%w: unknown stance %q", ErrMalformedJudgment, raw.Stance)
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %.2f outside [0,1]", ErrMalformedJudgment, raw.Confidence)
	}

	return &Judgment{
		Stance:     stance,
		Confidence: raw.Confidence,
		Rationale:  strings.TrimSpace(raw.Rationale),
	}, nil
}

func resolveMaxTokens(req JudgeRequest, cfg Config) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return 400
}
