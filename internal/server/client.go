package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/session"
)

// Client talks to the review session endpoints of a running server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL. A nil httpClient
// uses a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// ListSessions returns every session the server still holds
func (c *Client) ListSessions(ctx context.Context) ([]session.Session, error) {
	var sessions []session.Session
	if err := c.do(ctx, http.MethodGet, "/v1/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession returns one session
func (c *Client) GetSession(ctx context.Context, id string) (session.Session, error) {
	var sess session.Session
	err := c.do(ctx, http.MethodGet, "/v1/sessions/"+id, nil, &sess)
	return sess, err
}

// CompleteSession submits reviewer feedback
func (c *Client) CompleteSession(ctx context.Context, id string, fb session.Feedback) (session.Session, error) {
	var sess session.Session
	err := c.do(ctx, http.MethodPost, "/v1/sessions/"+id+"/feedback", fb, &sess)
	return sess, err
}

// do sends a JSON request. Session status codes map back to the session
// sentinel errors.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", session.ErrNotFound, msg)
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", session.ErrAlreadyCompleted, msg)
		case http.StatusGone:
			return fmt.Errorf("%w: %s", session.ErrExpired, msg)
		default:
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, msg)
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
