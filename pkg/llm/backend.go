// Package llm defines the language-model backend contract and its two
// implementations: an OpenAI-compatible HTTP client for production and a
// scripted backend for offline testing. Both uphold the execution-marker
// contract: a successful Query always carries execution="real", and a
// backend failure is returned as an error, never as a synthesized response.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// ErrMissingAPIKey is returned at construction time when production
// configuration lacks an API key. Failing eagerly here keeps a misconfigured
// worker from starting at all.
var ErrMissingAPIKey = errors.New("llm backend requires a non-empty API key")

// Request is one backend invocation.
type Request struct {
	Model     string         `json:"model,omitempty"`
	Prompt    string         `json:"prompt"`
	SessionID string         `json:"sessionId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Response is the backend's answer. Execution is always "real" on a
// successful path; TestMode marks responses from the offline backend so
// tests can filter them.
type Response struct {
	Content   string         `json:"content"`
	Execution string         `json:"execution"`
	Model     string         `json:"model"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	TestMode  bool           `json:"testMode,omitempty"`
}

// Backend is the single capability a clone needs from a language model.
type Backend interface {
	// Query sends one prompt and returns the completion. Implementations
	// must not retry and must not fabricate output on failure.
	Query(ctx context.Context, req *Request) (*Response, error)

	// Model returns the default model identifier.
	Model() string

	// Close releases any underlying connections.
	Close() error
}

// BackendError reports a failure from the LLM provider. The provider's own
// message is preserved verbatim; no fallback response is synthesized.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm backend error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm backend error: %s", e.Message)
}

// IsTimeout reports whether err stems from a deadline or network timeout,
// so the HTTP layer can answer 504 instead of 502.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
