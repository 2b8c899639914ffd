package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omegalab/clonenet/pkg/artifact"
	"github.com/omegalab/clonenet/pkg/clone"
	"github.com/omegalab/clonenet/pkg/coordinator"
	"github.com/omegalab/clonenet/pkg/evidence"
	"github.com/omegalab/clonenet/pkg/integrity"
	"github.com/omegalab/clonenet/pkg/llm"
)

// testWorker bundles a server with the pieces tests inspect.
type testWorker struct {
	server   *Server
	clone    *clone.Clone
	backend  *llm.TestBackend
	workroot string
}

func newTestWorker(t *testing.T, roleID string) *testWorker {
	t.Helper()

	role, err := clone.RoleByID(roleID)
	require.NoError(t, err)

	workroot := t.TempDir()
	checker := integrity.NewChecker()
	recorder := evidence.NewRecorder(filepath.Join(workroot, "audit"), 30)
	store, err := artifact.NewStore(workroot, checker, recorder, roleID)
	require.NoError(t, err)
	backend := llm.NewTestBackend("test-model")

	worker := clone.New(role, checker, recorder, backend, store, "test")

	var coord *coordinator.Coordinator
	if roleID == clone.IDOmega {
		coord = coordinator.New(worker, coordinator.NewRegistry("localhost"))
	}

	return &testWorker{
		server:   NewServer(worker, coord),
		clone:    worker,
		backend:  backend,
		workroot: workroot,
	}
}

func (w *testWorker) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	w.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	w := newTestWorker(t, clone.IDBeta)

	rec := w.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, "analyzer", body["role"])

	metrics := body["metrics"].(map[string]any)
	assert.Equal(t, 100.0, metrics["successRate"])

	integrityBlock := body["integrity"].(map[string]any)
	assert.Equal(t, true, integrityBlock["artifactManagerInitialized"])
}

func TestTaskEndpoint(t *testing.T) {
	w := newTestWorker(t, clone.IDBeta)
	w.backend.EnqueueResponse("done")

	rec := w.do(t, http.MethodPost, "/task", map[string]any{
		"prompt":    "analyze this module",
		"sessionId": "s-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "real", body["execution"])
	assert.Equal(t, "beta", body["clone"])
}

func TestTaskEndpointEmptyPromptRejected(t *testing.T) {
	w := newTestWorker(t, clone.IDBeta)

	before := w.clone.Metrics().Snapshot()
	rec := w.do(t, http.MethodPost, "/task", map[string]any{"prompt": "   ", "context": map[string]any{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["success"])

	after := w.clone.Metrics().Snapshot()
	assert.Equal(t, before.TasksProcessed, after.TasksProcessed)
}

func TestTaskEndpointBackendFailure(t *testing.T) {
	w := newTestWorker(t, clone.IDBeta)
	w.backend.EnqueueError(&llm.BackendError{StatusCode: 503, Message: "provider unavailable"})

	rec := w.do(t, http.MethodPost, "/task", map[string]any{"prompt": "analyze this"})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "provider unavailable")

	// Exactly one failed evidence event, no retry.
	records := w.clone.Recorder().RecordsByOperation(evidence.OpTaskExecution)
	require.Len(t, records, 1)
	assert.Equal(t, integrity.ExecutionFailed, records[0].Execution)
	assert.Len(t, w.backend.Queries(), 1)
}

func TestAnalyzeEndpoint(t *testing.T) {
	w := newTestWorker(t, clone.IDBeta)
	w.backend.EnqueueResponse("finding: a() always returns 1")

	rec := w.do(t, http.MethodPost, "/analyze", map[string]any{
		"code":     "function a(){return 1}",
		"language": "javascript",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])

	art := body["artifact"].(map[string]any)
	assert.Equal(t, "code_analysis", art["type"])
	assert.Regexp(t, `^[a-f0-9]{64}$`, art["checksum"])

	records := w.clone.Recorder().RecordsByOperation(evidence.OpTaskExecution)
	require.Len(t, records, 1)
	assert.Equal(t, integrity.ExecutionReal, records[0].Execution)
}

func TestSpecializationVerbPerRole(t *testing.T) {
	tests := []struct {
		roleID string
		path   string
		body   map[string]any
		aType  string
	}{
		{clone.IDGamma, "/design", map[string]any{"requirements": "queue alerts"}, "architecture_design"},
		{clone.IDDelta, "/generate-tests", map[string]any{"code": "func A() int { return 1 }"}, "test_suite"},
		{clone.IDSigma, "/document", map[string]any{"content": "func A() int"}, "documentation"},
	}

	for _, tt := range tests {
		t.Run(tt.roleID, func(t *testing.T) {
			w := newTestWorker(t, tt.roleID)
			w.backend.EnqueueResponse("specialist output")

			rec := w.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			body := decode(t, rec)
			art := body["artifact"].(map[string]any)
			assert.Equal(t, tt.aType, art["type"])
		})
	}
}

func TestArtifactStoreAndManifestOnlyRoundTrip(t *testing.T) {
	w := newTestWorker(t, clone.IDBeta)

	rec := w.do(t, http.MethodPost, "/artifacts", map[string]any{
		"type":    "code",
		"content": "const x=1;",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	manifest := body["manifest"].(map[string]any)
	id := manifest["artifactId"].(string)
	checksum := manifest["checksum"].(string)

	rec = w.do(t, http.MethodGet, "/artifacts/"+id+"?manifestOnly=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.NotContains(t, body, "content")
	assert.Equal(t, checksum, body["manifest"].(map[string]any)["checksum"])

	rec = w.do(t, http.MethodGet, "/artifacts/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "const x=1;", body["content"])
}

func TestArtifactCorruptionDetectedOnRead(t *testing.T) {
	w := newTestWorker(t, clone.IDBeta)

	rec := w.do(t, http.MethodPost, "/artifacts", map[string]any{"type": "code", "content": "const x=1;"})
	require.Equal(t, http.StatusCreated, rec.Code)
	manifest := decode(t, rec)["manifest"].(map[string]any)
	id := manifest["artifactId"].(string)
	location := strings.TrimPrefix(manifest["location"].(string), "file://")

	require.NoError(t, os.WriteFile(location, []byte("corrupted"), 0o644))

	rec = w.do(t, http.MethodGet, "/artifacts/"+id, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, strings.ToLower(decode(t, rec)["error"].(string)), "checksum")
}

func TestArtifactNotFound(t *testing.T) {
	w := newTestWorker(t, clone.IDBeta)

	rec := w.do(t, http.MethodGet, "/artifacts/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = w.do(t, http.MethodDelete, "/artifacts/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditEndpoint(t *testing.T) {
	w := newTestWorker(t, clone.IDBeta)
	w.backend.EnqueueResponse("first")
	w.backend.EnqueueResponse("second")

	require.Equal(t, http.StatusOK, w.do(t, http.MethodPost, "/task", map[string]any{"prompt": "analyze one", "sessionId": "t-1"}).Code)
	require.Equal(t, http.StatusOK, w.do(t, http.MethodPost, "/task", map[string]any{"prompt": "analyze two", "sessionId": "t-2"}).Code)

	rec := w.do(t, http.MethodGet, "/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 2.0, body["total"])

	rec = w.do(t, http.MethodGet, "/audit?taskId=t-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trail := decode(t, rec)
	assert.Equal(t, "t-1", trail["taskId"])
	assert.Equal(t, 1.0, trail["totalRecords"])
}

func TestMetricsEndpoint(t *testing.T) {
	w := newTestWorker(t, clone.IDBeta)

	require.Equal(t, http.StatusOK, w.do(t, http.MethodGet, "/health", nil).Code)

	rec := w.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clonenet_http_requests_total")
}

func TestSpecialistHasNoCoordinatorEndpoints(t *testing.T) {
	w := newTestWorker(t, clone.IDBeta)

	rec := w.do(t, http.MethodPost, "/delegate", map[string]any{"targetClone": "gamma", "prompt": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
