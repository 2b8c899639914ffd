package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omegalab/clonenet/pkg/clone"
	"github.com/omegalab/clonenet/pkg/envelope"
	"github.com/omegalab/clonenet/pkg/evidence"
	"github.com/omegalab/clonenet/pkg/integrity"
)

const (
	delegateTimeout = 30 * time.Second
	probeTimeout    = 3 * time.Second
)

// DelegateRequest forwards a task verbatim to a registered clone.
type DelegateRequest struct {
	TargetClone string         `json:"targetClone"`
	Prompt      string         `json:"prompt"`
	Context     map[string]any `json:"context,omitempty"`
	SessionID   string         `json:"sessionId,omitempty"`
}

// DelegateResult is the downstream clone's verbatim reply.
type DelegateResult struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

// Success reports whether the downstream answered 2xx.
func (r *DelegateResult) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// OrchestrateRequest is a quality-gated delegation: the coordinator builds a
// context envelope, scores it, and only then contacts the target.
type OrchestrateRequest struct {
	Objective         string           `json:"objective"`
	TargetClone       string           `json:"targetClone"`
	ArtifactManifests []map[string]any `json:"artifactManifests,omitempty"`
	EssentialData     map[string]any   `json:"essentialData,omitempty"`
	Constraints       []string         `json:"constraints,omitempty"`
	SessionID         string           `json:"sessionId,omitempty"`
}

// OrchestrationTiming is the timing block of an orchestration response.
type OrchestrationTiming struct {
	TaskID     string    `json:"taskId"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	DurationMs int64     `json:"durationMs"`
}

// OrchestrateResponse is the coordinator's reply to an orchestration.
type OrchestrateResponse struct {
	Success        bool                `json:"success"`
	Result         json.RawMessage     `json:"result"`
	Error          string              `json:"error,omitempty"`
	ContextQuality envelope.Score      `json:"contextQuality"`
	Orchestration  OrchestrationTiming `json:"orchestration"`
}

// NetworkStatus aggregates the coordinator's own health with a reachability
// probe of every registered peer.
type NetworkStatus struct {
	Coordinator clone.Health           `json:"coordinator"`
	Clones      map[string]CloneStatus `json:"clones"`
}

// CloneStatus is one peer's probe outcome.
type CloneStatus struct {
	Reachable bool            `json:"reachable"`
	Status    json.RawMessage `json:"status,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Coordinator is the Omega clone plus its delegation capability set.
type Coordinator struct {
	clone      *clone.Clone
	registry   *Registry
	httpClient *http.Client
}

// New wraps the omega clone runtime with the registry and an HTTP client for
// peer calls. Every outbound call carries a deadline; there are no retries.
func New(omega *clone.Clone, registry *Registry) *Coordinator {
	return &Coordinator{
		clone:      omega,
		registry:   registry,
		httpClient: &http.Client{Timeout: delegateTimeout},
	}
}

// Clone returns the underlying omega runtime.
func (c *Coordinator) Clone() *clone.Clone { return c.clone }

// Registry returns the peer registry.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Delegate forwards the task verbatim to the target clone's /task endpoint.
// An unregistered target fails with *UnknownCloneError before any HTTP call.
func (c *Coordinator) Delegate(ctx context.Context, req DelegateRequest) (*DelegateResult, error) {
	peer, err := c.registry.Resolve(req.TargetClone)
	if err != nil {
		return nil, err
	}

	task := clone.TaskRequest{
		Prompt:    req.Prompt,
		Context:   req.Context,
		SessionID: req.SessionID,
	}
	return c.postTask(ctx, peer, task)
}

// Orchestrate gates the delegation on context quality, forwards the
// objective to the target, and records an orchestration evidence event
// strictly after the downstream response so the event reflects the actual
// outcome. A rejected envelope never reaches the network; a downstream
// failure is surfaced, not retried.
func (c *Coordinator) Orchestrate(ctx context.Context, req OrchestrateRequest) (*OrchestrateResponse, error) {
	peer, err := c.registry.Resolve(req.TargetClone)
	if err != nil {
		return nil, err
	}

	env, err := envelope.Build(envelope.BuildInput{
		Objective:         req.Objective,
		TargetClone:       req.TargetClone,
		ArtifactManifests: req.ArtifactManifests,
		EssentialData:     req.EssentialData,
		Constraints:       req.Constraints,
	})
	if err != nil {
		return nil, err
	}

	if env.Warning {
		c.record(evidence.Record{
			Operation: evidence.OpQualityWarning,
			Execution: integrity.ExecutionReal,
			TaskID:    req.SessionID,
			Details: map[string]any{
				"targetClone":    req.TargetClone,
				"overallQuality": env.Quality.OverallQuality,
			},
		})
	}

	task := clone.TaskRequest{
		Prompt: req.Objective,
		Context: map[string]any{
			"contextId":         env.ContextID,
			"objective":         env.Objective,
			"targetClone":       env.TargetClone,
			"artifactManifests": env.ArtifactManifests,
			"essentialData":     env.EssentialData,
			"constraints":       env.Constraints,
		},
		SessionID: req.SessionID,
	}

	start := time.Now()
	result, err := c.postTask(ctx, peer, task)
	end := time.Now()

	timing := OrchestrationTiming{
		TaskID:     req.SessionID,
		StartTime:  start.UTC(),
		EndTime:    end.UTC(),
		DurationMs: end.Sub(start).Milliseconds(),
	}

	resp := &OrchestrateResponse{
		ContextQuality: env.Quality,
		Orchestration:  timing,
	}

	if err != nil {
		resp.Error = err.Error()
		c.record(evidence.Record{
			Operation:       evidence.OpOrchestration,
			Execution:       integrity.ExecutionFailed,
			TaskID:          req.SessionID,
			ExecutionTimeMs: timing.DurationMs,
			Error:           err.Error(),
			Details: map[string]any{
				"targetClone":    req.TargetClone,
				"overallQuality": env.Quality.OverallQuality,
			},
		})
		return resp, nil
	}

	resp.Success = result.Success()
	resp.Result = result.Body
	if !result.Success() {
		resp.Error = downstreamError(result.Body, result.StatusCode)
	}

	execution := integrity.ExecutionReal
	if !resp.Success {
		execution = integrity.ExecutionFailed
	}
	c.record(evidence.Record{
		Operation:       evidence.OpOrchestration,
		Execution:       execution,
		TaskID:          req.SessionID,
		ExecutionTimeMs: timing.DurationMs,
		Error:           resp.Error,
		Details: map[string]any{
			"targetClone":      req.TargetClone,
			"overallQuality":   env.Quality.OverallQuality,
			"downstreamStatus": result.StatusCode,
		},
	})

	return resp, nil
}

// Probe checks every registered peer's /health in parallel with a short
// per-probe timeout, alongside the coordinator's own health.
func (c *Coordinator) Probe(ctx context.Context) *NetworkStatus {
	peers := c.registry.Peers()
	statuses := make([]CloneStatus, len(peers))

	g, gctx := errgroup.WithContext(ctx)
	for i, peer := range peers {
		i, peer := i, peer
		g.Go(func() error {
			statuses[i] = c.probePeer(gctx, peer)
			return nil
		})
	}
	_ = g.Wait()

	out := &NetworkStatus{
		Coordinator: c.clone.HealthStatus(),
		Clones:      make(map[string]CloneStatus, len(peers)),
	}
	for i, peer := range peers {
		out.Clones[peer.Clone] = statuses[i]
	}
	return out
}

func (c *Coordinator) probePeer(ctx context.Context, peer Peer) CloneStatus {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, peer.BaseURL+"/health", nil)
	if err != nil {
		return CloneStatus{Error: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CloneStatus{Error: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return CloneStatus{Error: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return CloneStatus{Error: fmt.Sprintf("health probe returned status %d", resp.StatusCode)}
	}

	c.registry.MarkHealthy(peer.Clone, time.Now().UTC())
	return CloneStatus{Reachable: true, Status: body}
}

// postTask POSTs a task request to a peer and returns its verbatim reply.
func (c *Coordinator) postTask(ctx context.Context, peer Peer, task clone.TaskRequest) (*DelegateResult, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal delegated task: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, delegateTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, peer.BaseURL+"/task", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build delegated request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("delegate to %s: %w", peer.Clone, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", peer.Clone, err)
	}

	return &DelegateResult{StatusCode: httpResp.StatusCode, Body: body}, nil
}

func (c *Coordinator) record(rec evidence.Record) {
	rec.Clone = c.clone.Role().ID
	completed, err := c.clone.Recorder().Record(rec)
	if err != nil {
		slog.Error("Failed to record orchestration evidence", "error", err)
		return
	}
	if err := c.clone.Recorder().WriteToAuditLog(completed); err != nil {
		slog.Warn("Failed to append audit log", "error", err)
	}
}

// downstreamError extracts the error message from a failed downstream body,
// falling back to the HTTP status.
func downstreamError(body []byte, status int) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return fmt.Sprintf("downstream clone returned status %d", status)
}
