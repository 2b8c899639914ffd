package clone

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omegalab/clonenet/pkg/artifact"
	"github.com/omegalab/clonenet/pkg/evidence"
	"github.com/omegalab/clonenet/pkg/integrity"
	"github.com/omegalab/clonenet/pkg/llm"
)

// TaskRequest is one inbound task. Only the prompt is mandatory.
type TaskRequest struct {
	Prompt          string         `json:"prompt"`
	Context         map[string]any `json:"context,omitempty"`
	SessionID       string         `json:"sessionId,omitempty"`
	RequireEvidence bool           `json:"requireEvidence,omitempty"`
}

// Message is one exchange entry in a task response.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskResponse is the outbound result of one task.
type TaskResponse struct {
	Success         bool             `json:"success"`
	Execution       string           `json:"execution"`
	Messages        []Message        `json:"messages"`
	SessionID       string           `json:"sessionId"`
	Clone           string           `json:"clone"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
	Evidence        *evidence.Record `json:"evidence,omitempty"`
}

// Health is the liveness document of a clone.
type Health struct {
	Status         string          `json:"status"`
	Role           string          `json:"role"`
	Clone          string          `json:"clone"`
	Specialization string          `json:"specialization"`
	Version        string          `json:"version,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Integrity      IntegrityStatus `json:"integrity"`
	Metrics        MetricsSnapshot `json:"metrics"`
}

// IntegrityStatus reports which runtime components are wired and live.
type IntegrityStatus struct {
	IntegrityMonitorActive     bool `json:"integrityMonitorActive"`
	EvidenceCollectorActive    bool `json:"evidenceCollectorActive"`
	BackendConnected           bool `json:"backendConnected"`
	ArtifactManagerInitialized bool `json:"artifactManagerInitialized"`
}

// Clone is one worker process: a role identity plus the integrity checker,
// evidence recorder, LLM backend, artifact store, and metrics it exclusively
// owns. Safe for concurrent use by HTTP handlers.
type Clone struct {
	role     Role
	checker  *integrity.Checker
	recorder *evidence.Recorder
	backend  llm.Backend
	store    *artifact.Store
	metrics  *Metrics
	version  string
}

// New assembles a clone runtime from its owned components.
func New(role Role, checker *integrity.Checker, recorder *evidence.Recorder, backend llm.Backend, store *artifact.Store, version string) *Clone {
	return &Clone{
		role:     role,
		checker:  checker,
		recorder: recorder,
		backend:  backend,
		store:    store,
		metrics:  NewMetrics(),
		version:  version,
	}
}

// Role returns the clone's role descriptor.
func (c *Clone) Role() Role { return c.role }

// Recorder returns the clone's evidence recorder.
func (c *Clone) Recorder() *evidence.Recorder { return c.recorder }

// Store returns the clone's artifact store.
func (c *Clone) Store() *artifact.Store { return c.store }

// Metrics returns the clone's metrics.
func (c *Clone) Metrics() *Metrics { return c.metrics }

// ExecuteTask runs the task pipeline: validate, build the effective prompt,
// query the backend, verify the execution marker, record evidence, update
// metrics. Exactly one evidence event is emitted per terminal state, and a
// validation failure leaves the task counters untouched.
func (c *Clone) ExecuteTask(ctx context.Context, req TaskRequest) (*TaskResponse, error) {
	if validation := c.checker.VerifyRequest(req.Prompt); !validation.Valid {
		return nil, &integrity.ValidationError{Errors: validation.Errors}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	prompt := c.buildPrompt(req)

	started := time.Now()
	resp, err := c.backend.Query(ctx, &llm.Request{
		Model:     c.backend.Model(),
		Prompt:    prompt,
		SessionID: sessionID,
	})
	elapsedMs := time.Since(started).Milliseconds()

	if err == nil {
		err = c.checker.VerifyRealExecution(resp.Execution)
	}
	if err != nil {
		c.recordTaskEvidence(evidence.Record{
			Operation:       evidence.OpTaskExecution,
			Execution:       integrity.ExecutionFailed,
			TaskID:          sessionID,
			Clone:           c.role.ID,
			ExecutionTimeMs: elapsedMs,
			Model:           c.backend.Model(),
			Error:           err.Error(),
		})
		c.metrics.TaskFailed(elapsedMs)
		return nil, err
	}

	rec := c.recordTaskEvidence(evidence.Record{
		Operation:       evidence.OpTaskExecution,
		Execution:       integrity.ExecutionReal,
		TaskID:          sessionID,
		Clone:           c.role.ID,
		ExecutionTimeMs: elapsedMs,
		Model:           resp.Model,
		Details: map[string]any{
			"promptLength":   len(prompt),
			"responseLength": len(resp.Content),
			"testMode":       resp.TestMode,
		},
	})
	c.metrics.TaskCompleted(elapsedMs)

	out := &TaskResponse{
		Success:   true,
		Execution: resp.Execution,
		Messages: []Message{
			{Role: "assistant", Content: resp.Content, Timestamp: resp.Timestamp},
		},
		SessionID:       sessionID,
		Clone:           c.role.ID,
		ExecutionTimeMs: elapsedMs,
	}
	if req.RequireEvidence {
		out.Evidence = rec
	}
	return out, nil
}

// buildPrompt prefixes the role's system prompt and appends the caller's
// context as a JSON block.
func (c *Clone) buildPrompt(req TaskRequest) string {
	var b strings.Builder
	b.WriteString(c.role.SystemPrompt)
	b.WriteString("\n\n")
	b.WriteString(req.Prompt)
	if len(req.Context) > 0 {
		if ctxJSON, err := json.MarshalIndent(req.Context, "", "  "); err == nil {
			b.WriteString("\n\nContext:\n")
			b.Write(ctxJSON)
		}
	}
	return b.String()
}

// recordTaskEvidence appends rec to the in-memory stream and the on-disk
// audit log, returning the completed record. Recording failures are logged,
// never allowed to mask the task outcome.
func (c *Clone) recordTaskEvidence(rec evidence.Record) *evidence.Record {
	completed, err := c.recorder.Record(rec)
	if err != nil {
		slog.Error("Failed to record task evidence", "clone", c.role.ID, "error", err)
		return nil
	}
	if err := c.recorder.WriteToAuditLog(completed); err != nil {
		slog.Warn("Failed to append audit log", "clone", c.role.ID, "error", err)
	}
	return &completed
}

// HealthStatus assembles the clone's liveness document.
func (c *Clone) HealthStatus() Health {
	return Health{
		Status:         "active",
		Role:           c.role.Name,
		Clone:          c.role.ID,
		Specialization: c.role.Specialization,
		Version:        c.version,
		Timestamp:      time.Now().UTC(),
		Integrity: IntegrityStatus{
			IntegrityMonitorActive:     c.checker != nil,
			EvidenceCollectorActive:    c.recorder != nil,
			BackendConnected:           c.backend != nil,
			ArtifactManagerInitialized: c.store != nil && c.store.Initialized(),
		},
		Metrics: c.metrics.Snapshot(),
	}
}
