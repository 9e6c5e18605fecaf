package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/veritas/internal/model"
)

func TestAnthropicProvider_Judge_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("Expected anthropic-version header")
		}

		body, _ := io.ReadAll(r.Body)
		var req anthropicRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("Invalid request body: %v", err)
		}
		if req.System == "" || len(req.Messages) != 1 {
			t.Errorf("Unexpected request: %+v", req)
		}

		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "Here you go:\n{\"stance\": \"contradicting\", \"confidence\": 0.8, \"rationale\": \"Wrong year.\"}"}],
			"model": "claude-3-5-haiku-20241022",
			"usage": {"input_tokens": 40, "output_tokens": 15}
		}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	judgment, err := provider.Judge(context.Background(), JudgeRequest{Claim: "The moon landing happened in 1970"})
	if err != nil {
		t.Fatalf("Judge failed: %v", err)
	}
	if judgment.Stance != model.SentimentContradicting {
		t.Errorf("Expected contradicting, got %s", judgment.Stance)
	}
	if judgment.TokensUsed != 55 {
		t.Errorf("Expected 55 tokens, got %d", judgment.TokensUsed)
	}
}

func TestAnthropicProvider_Judge_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", http.StatusUnauthorized, `{"error": {"type": "authentication_error", "message": "invalid x-api-key"}}`, "authentication_error"},
		{"rate limit", http.StatusTooManyRequests, `too many`, "429"},
		{"malformed json", http.StatusOK, `{malformed`, "unmarshal"},
		{"empty content", http.StatusOK, `{"content": []}`, "no content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
			if err != nil {
				t.Fatalf("Failed to create provider: %v", err)
			}

			_, err = provider.Judge(context.Background(), JudgeRequest{Claim: "x"})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAnthropicProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "Hello"}], "model": "claude"}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected provider available")
	}
}

func TestNewAnthropicProvider_NoKey(t *testing.T) {
	if _, err := NewAnthropicProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}
