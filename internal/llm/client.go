// Package llm holds the client for the hosted OpenAI-compatible chat
// completion API. The API is consumed purely through its documented
// request/response contract; no model logic lives here.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second
	// One retry on transient failure; repeated failure surfaces to the
	// caller, which degrades to a fallback reply.
	maxAttempts    = 2
	initialBackoff = 500 * time.Millisecond
)

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("llm: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client communicates with an OpenAI-compatible completion API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a client for the given API key and default model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL
// (self-hosted gateways and tests).
func NewClientWithBaseURL(apiKey, model, baseURL string) *Client {
	c := NewClient(apiKey, model)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// Model returns the default model identifier the client sends.
func (c *Client) Model() string { return c.model }

// Chat sends a completion request and returns the first choice. Transient
// failures (network errors, 429, 5xx) are retried exactly once with a short
// backoff; anything else is returned immediately.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (Completion, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Completion{}, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Completion{}, ctx.Err()
			case <-time.After(initialBackoff):
			}
		}

		comp, err := c.doChat(ctx, body)
		if err == nil {
			return comp, nil
		}
		if !isTransient(err) {
			return Completion{}, err
		}
		lastErr = err
	}

	return Completion{}, fmt.Errorf("completion failed after retry: %w", lastErr)
}

func (c *Client) doChat(ctx context.Context, body []byte) (Completion, error) {
	raw, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return Completion{}, err
	}

	var resp ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Completion{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("no choices in completion response")
	}

	choice := resp.Choices[0]
	return Completion{
		Message:      choice.Message,
		FinishReason: choice.FinishReason,
	}, nil
}

// Moderate classifies input via the moderations endpoint and reports
// whether it was flagged. No retry: a failed moderation check is handled by
// the caller's policy, not masked here.
func (c *Client) Moderate(ctx context.Context, input string) (bool, error) {
	body, err := json.Marshal(moderationRequest{Input: input})
	if err != nil {
		return false, fmt.Errorf("marshaling moderation request: %w", err)
	}

	raw, err := c.post(ctx, "/moderations", body)
	if err != nil {
		return false, err
	}

	var resp moderationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false, fmt.Errorf("decoding moderation response: %w", err)
	}
	if len(resp.Results) == 0 {
		return false, errors.New("no results in moderation response")
	}
	return resp.Results[0].Flagged, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	url := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return raw, nil
}

// isTransient reports whether err is worth one more attempt: transport
// errors, timeouts, rate limits, and upstream 5xx.
func isTransient(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	// Network failures and per-call timeouts arrive as wrapped url.Errors.
	var urlErr *url.Error
	return errors.As(err, &urlErr) && !errors.Is(err, context.Canceled)
}
