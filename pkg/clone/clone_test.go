package clone

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omegalab/clonenet/pkg/artifact"
	"github.com/omegalab/clonenet/pkg/evidence"
	"github.com/omegalab/clonenet/pkg/integrity"
	"github.com/omegalab/clonenet/pkg/llm"
)

func newTestClone(t *testing.T, roleID string) (*Clone, *llm.TestBackend) {
	t.Helper()

	role, err := RoleByID(roleID)
	require.NoError(t, err)

	checker := integrity.NewChecker()
	recorder := evidence.NewRecorder(t.TempDir(), 30)
	store, err := artifact.NewStore(t.TempDir(), checker, recorder, roleID)
	require.NoError(t, err)
	backend := llm.NewTestBackend("test-model")

	return New(role, checker, recorder, backend, store, "test"), backend
}

func TestRoleTable(t *testing.T) {
	all := Roles()
	require.Len(t, all, 5)

	for _, r := range all {
		assert.Contains(t, r.SystemPrompt, "NO SIMULATIONS LAW", "role %s", r.ID)
		assert.NotZero(t, r.DefaultPort)
	}

	omega, err := RoleByID(IDOmega)
	require.NoError(t, err)
	assert.Equal(t, "coordinator", omega.Name)
	assert.Equal(t, 3000, omega.DefaultPort)
	assert.Empty(t, omega.Verb)

	beta, err := RoleByID(IDBeta)
	require.NoError(t, err)
	assert.Equal(t, "/analyze", beta.Verb)
	assert.Equal(t, artifact.TypeCodeAnalysis, beta.ArtifactType)

	_, err = RoleByID("theta")
	assert.Error(t, err)
}

func TestExecuteTaskSuccess(t *testing.T) {
	c, backend := newTestClone(t, IDBeta)
	backend.EnqueueResponse("the function always returns 1")

	resp, err := c.ExecuteTask(context.Background(), TaskRequest{
		Prompt:    "analyze this function",
		Context:   map[string]any{"language": "javascript"},
		SessionID: "session-1",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, integrity.ExecutionReal, resp.Execution)
	assert.Equal(t, IDBeta, resp.Clone)
	assert.Equal(t, "session-1", resp.SessionID)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "the function always returns 1", resp.Messages[0].Content)

	// The effective prompt carries the system prompt and the context block.
	queries := backend.Queries()
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0].Prompt, "NO SIMULATIONS LAW")
	assert.Contains(t, queries[0].Prompt, "analyze this function")
	assert.Contains(t, queries[0].Prompt, `"language": "javascript"`)

	// Exactly one task_execution evidence event, marked real.
	records := c.Recorder().RecordsByOperation(evidence.OpTaskExecution)
	require.Len(t, records, 1)
	assert.Equal(t, integrity.ExecutionReal, records[0].Execution)
	assert.Equal(t, "session-1", records[0].TaskID)

	snap := c.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TasksProcessed)
	assert.Equal(t, int64(0), snap.Errors)
}

func TestExecuteTaskValidationFailure(t *testing.T) {
	c, _ := newTestClone(t, IDBeta)

	before := c.Metrics().Snapshot()
	_, err := c.ExecuteTask(context.Background(), TaskRequest{Prompt: "   "})
	require.Error(t, err)

	var validation *integrity.ValidationError
	assert.True(t, errors.As(err, &validation))

	// Rejected before the pipeline starts: no counters move, no evidence.
	after := c.Metrics().Snapshot()
	assert.Equal(t, before.TasksProcessed, after.TasksProcessed)
	assert.Equal(t, before.Errors, after.Errors)
	assert.Equal(t, 0, c.Recorder().Len())
}

func TestExecuteTaskBackendFailure(t *testing.T) {
	c, backend := newTestClone(t, IDBeta)
	backend.EnqueueError(&llm.BackendError{StatusCode: 500, Message: "provider unavailable"})

	_, err := c.ExecuteTask(context.Background(), TaskRequest{Prompt: "analyze this", SessionID: "s-fail"})
	require.Error(t, err)
	var backendErr *llm.BackendError
	assert.True(t, errors.As(err, &backendErr))

	// Exactly one failed evidence event, no retry.
	records := c.Recorder().RecordsByOperation(evidence.OpTaskExecution)
	require.Len(t, records, 1)
	assert.Equal(t, integrity.ExecutionFailed, records[0].Execution)
	assert.Contains(t, records[0].Error, "provider unavailable")
	assert.Len(t, backend.Queries(), 1)

	snap := c.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TasksProcessed)
	assert.Equal(t, int64(1), snap.Errors)
	assert.Equal(t, 0.0, snap.SuccessRate)
}

func TestExecuteTaskGeneratesSessionID(t *testing.T) {
	c, _ := newTestClone(t, IDBeta)

	resp, err := c.ExecuteTask(context.Background(), TaskRequest{Prompt: "analyze this"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
}

func TestExecuteTaskRequireEvidence(t *testing.T) {
	c, _ := newTestClone(t, IDBeta)

	resp, err := c.ExecuteTask(context.Background(), TaskRequest{Prompt: "analyze this", RequireEvidence: true})
	require.NoError(t, err)
	require.NotNil(t, resp.Evidence)
	assert.Equal(t, evidence.OpTaskExecution, resp.Evidence.Operation)
	assert.Equal(t, integrity.ExecutionReal, resp.Evidence.Execution)
}

func TestHealthStatus(t *testing.T) {
	c, _ := newTestClone(t, IDGamma)

	h := c.HealthStatus()
	assert.Equal(t, "active", h.Status)
	assert.Equal(t, "architect", h.Role)
	assert.Equal(t, IDGamma, h.Clone)
	assert.True(t, h.Integrity.IntegrityMonitorActive)
	assert.True(t, h.Integrity.EvidenceCollectorActive)
	assert.True(t, h.Integrity.BackendConnected)
	assert.True(t, h.Integrity.ArtifactManagerInitialized)

	// Success rate is 100 before any task has been processed.
	assert.Equal(t, 100.0, h.Metrics.SuccessRate)
}

func TestMetricsRollingAverage(t *testing.T) {
	m := NewMetrics()
	m.TaskCompleted(100)
	m.TaskCompleted(300)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TasksProcessed)
	assert.InDelta(t, 200.0, snap.AverageResponseMs, 0.001)
	assert.Equal(t, 100.0, snap.SuccessRate)

	m.TaskFailed(200)
	snap = m.Snapshot()
	assert.Equal(t, int64(3), snap.TasksProcessed)
	assert.Equal(t, int64(1), snap.Errors)
	assert.InDelta(t, 66.666, snap.SuccessRate, 0.01)
	assert.GreaterOrEqual(t, snap.TasksProcessed, snap.Errors)
}

func TestSimulationViolationRecordsFailedEvidence(t *testing.T) {
	c, _ := newTestClone(t, IDBeta)

	// A backend that forgets the execution marker violates the contract.
	c.backend = &markerlessBackend{}

	_, err := c.ExecuteTask(context.Background(), TaskRequest{Prompt: "analyze this"})
	require.Error(t, err)
	var violation *integrity.SimulationViolationError
	assert.True(t, errors.As(err, &violation))

	records := c.Recorder().RecordsByOperation(evidence.OpTaskExecution)
	require.Len(t, records, 1)
	assert.Equal(t, integrity.ExecutionFailed, records[0].Execution)
	assert.Contains(t, strings.ToLower(records[0].Error), "simulation violation")
}

// markerlessBackend answers without the execution marker.
type markerlessBackend struct{}

func (b *markerlessBackend) Query(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return &llm.Response{Content: "looks fine"}, nil
}

func (b *markerlessBackend) Model() string { return "markerless" }
func (b *markerlessBackend) Close() error  { return nil }
