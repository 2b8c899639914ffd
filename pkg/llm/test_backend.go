package llm

import (
	"context"
	"sync"
	"time"

	"github.com/omegalab/clonenet/pkg/integrity"
)

// TestBackend is the offline construction path for tests and local runs
// without an API key. Responses still carry execution="real" — they are real
// outputs of this backend — and additionally set TestMode=true so callers
// can filter them.
//
// Responses can be scripted with EnqueueResponse/EnqueueError; with no
// script queued, Query answers deterministically from the prompt.
type TestBackend struct {
	model string

	mu       sync.Mutex
	script   []scriptEntry
	received []Request
}

type scriptEntry struct {
	content string
	err     error
}

var _ Backend = (*TestBackend)(nil)

// NewTestBackend creates a test backend reporting the given model name.
func NewTestBackend(model string) *TestBackend {
	if model == "" {
		model = "test-model"
	}
	return &TestBackend{model: model}
}

// EnqueueResponse scripts the next successful completion.
func (b *TestBackend) EnqueueResponse(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = append(b.script, scriptEntry{content: content})
}

// EnqueueError scripts the next call to fail with err.
func (b *TestBackend) EnqueueError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = append(b.script, scriptEntry{err: err})
}

// Query pops the next scripted entry, or answers deterministically when the
// script is exhausted. Scripted errors are returned as-is: no fallback.
func (b *TestBackend) Query(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.received = append(b.received, *req)
	var entry *scriptEntry
	if len(b.script) > 0 {
		e := b.script[0]
		b.script = b.script[1:]
		entry = &e
	}
	b.mu.Unlock()

	if entry != nil && entry.err != nil {
		return nil, entry.err
	}

	content := "test-mode completion for: " + truncate(req.Prompt, 80)
	if entry != nil {
		content = entry.content
	}

	model := req.Model
	if model == "" {
		model = b.model
	}

	return &Response{
		Content:   content,
		Execution: integrity.ExecutionReal,
		Model:     model,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{"scripted": entry != nil},
		TestMode:  true,
	}, nil
}

// Queries returns a copy of every request this backend has received, in
// call order.
func (b *TestBackend) Queries() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.received))
	copy(out, b.received)
	return out
}

// Model returns the configured model name.
func (b *TestBackend) Model() string {
	return b.model
}

// Close is a no-op.
func (b *TestBackend) Close() error {
	return nil
}
