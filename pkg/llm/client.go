package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/omegalab/clonenet/pkg/integrity"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// Config holds production backend settings. APIKey is mandatory; the other
// fields have defaults.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Client speaks the OpenAI-compatible chat completions API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ Backend = (*Client)(nil)

// NewClient constructs the production backend. A blank API key fails here,
// at construction time, not on the first call.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// chat completions wire types (request subset we send, response subset we read)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Query sends one prompt and returns the completion with execution="real".
// Provider failures come back as *BackendError; there is no retry and no
// fallback content.
func (c *Client) Query(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal llm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build llm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(httpResp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read llm response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, &BackendError{StatusCode: httpResp.StatusCode, Message: truncate(string(payload), 300)}
		}
		return nil, fmt.Errorf("decode llm response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := truncate(string(payload), 300)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, &BackendError{StatusCode: httpResp.StatusCode, Message: msg}
	}
	if len(parsed.Choices) == 0 {
		return nil, &BackendError{StatusCode: httpResp.StatusCode, Message: "response contained no choices"}
	}

	respModel := parsed.Model
	if respModel == "" {
		respModel = model
	}

	slog.Debug("LLM query completed",
		"model", respModel,
		"duration_ms", time.Since(started).Milliseconds(),
		"total_tokens", parsed.Usage.TotalTokens)

	return &Response{
		Content:   parsed.Choices[0].Message.Content,
		Execution: integrity.ExecutionReal,
		Model:     respModel,
		Timestamp: time.Now().UTC(),
		Metadata: map[string]any{
			"promptTokens":     parsed.Usage.PromptTokens,
			"completionTokens": parsed.Usage.CompletionTokens,
			"totalTokens":      parsed.Usage.TotalTokens,
			"finishReason":     parsed.Choices[0].FinishReason,
		},
	}, nil
}

// Model returns the default model identifier.
func (c *Client) Model() string {
	return c.model
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
