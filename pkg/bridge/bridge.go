// Package bridge exposes the clone network to an IDE over a line-delimited
// JSON tool protocol: one request object per stdin line, one response object
// per stdout line, no length framing. Every tool wraps an HTTP endpoint of a
// clone; the bridge itself holds no state.
package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// maxLineBytes bounds one request line; a tool call has no business
	// being larger.
	maxLineBytes = 1 << 20

	defaultTimeout     = 30 * time.Second
	orchestrateTimeout = 60 * time.Second
)

// request is one inbound tool call.
type request struct {
	Params *requestParams `json:"params"`
}

type requestParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// response is one outbound tool result.
type response struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Bridge reads tool calls from in and writes results to out. Endpoints maps
// clone ids to base URLs.
type Bridge struct {
	endpoints  map[string]string
	httpClient *http.Client
	in         io.Reader
	out        io.Writer
}

// New creates a bridge over the given streams. The HTTP client carries no
// global timeout; each call gets its own per-tool deadline.
func New(endpoints map[string]string, in io.Reader, out io.Writer) *Bridge {
	return &Bridge{
		endpoints:  endpoints,
		httpClient: &http.Client{},
		in:         in,
		out:        out,
	}
}

// Run processes requests line by line until in is exhausted or ctx is
// cancelled. Dispatch is synchronous: one response line per request line, in
// order.
func (b *Bridge) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(b.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := b.writeResponse(b.handleLine(ctx, line)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// handleLine validates and dispatches one request line. Malformed input
// never kills the loop; it becomes a structured error response.
func (b *Bridge) handleLine(ctx context.Context, line []byte) response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse(fmt.Sprintf("invalid request: %v", err))
	}
	if req.Params == nil {
		return errorResponse("invalid request: missing params")
	}
	if req.Params.Name == "" {
		return errorResponse("invalid request: missing params.name")
	}

	args := req.Params.Arguments
	if args == nil {
		args = map[string]any{}
	}

	tool, ok := catalogue[req.Params.Name]
	if !ok {
		return errorResponse(fmt.Sprintf("unknown tool %q", req.Params.Name))
	}

	callCtx, cancel := context.WithTimeout(ctx, tool.timeout)
	defer cancel()

	payload, err := tool.invoke(callCtx, b, args)
	if err != nil {
		slog.Warn("Tool call failed", "tool", req.Params.Name, "error", err)
		return errorResponse(err.Error())
	}
	return response{Content: []contentBlock{{Type: "text", Text: payload}}}
}

func (b *Bridge) writeResponse(resp response) error {
	line, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	line = append(line, '\n')
	_, err = b.out.Write(line)
	return err
}

func errorResponse(msg string) response {
	return response{
		Content: []contentBlock{{Type: "text", Text: msg}},
		IsError: true,
	}
}

// call performs one HTTP exchange against a clone and returns the body as a
// string. Non-2xx responses are errors carrying the body text; so are
// timeouts, surfaced with the transport's message.
func (b *Bridge) call(ctx context.Context, cloneID, method, path string, body any) (string, error) {
	base, ok := b.endpoints[cloneID]
	if !ok {
		return "", fmt.Errorf("no endpoint configured for clone %q", cloneID)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("marshal tool arguments: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call %s %s%s: %w", method, cloneID, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s returned status %d: %s", cloneID, resp.StatusCode, string(payload))
	}
	return string(payload), nil
}
