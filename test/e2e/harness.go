// Package e2e runs end-to-end scenarios against in-process clone servers
// wired to the scripted test backend. Each worker is a full runtime — real
// artifact store, real evidence recorder, real HTTP surface — on an
// httptest listener instead of a bound port.
package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omegalab/clonenet/pkg/api"
	"github.com/omegalab/clonenet/pkg/artifact"
	"github.com/omegalab/clonenet/pkg/clone"
	"github.com/omegalab/clonenet/pkg/coordinator"
	"github.com/omegalab/clonenet/pkg/evidence"
	"github.com/omegalab/clonenet/pkg/integrity"
	"github.com/omegalab/clonenet/pkg/llm"
)

// Worker is one in-process clone with its inspectable internals.
type Worker struct {
	Clone    *clone.Clone
	Backend  *llm.TestBackend
	Server   *httptest.Server
	Workroot string
}

// Network is a set of running workers keyed by clone id. Omega, when
// present, has every other worker registered as a peer.
type Network struct {
	t       *testing.T
	Workers map[string]*Worker
}

// StartNetwork boots one worker per role id and registers the specialists
// with omega. Servers shut down with the test.
func StartNetwork(t *testing.T, roleIDs ...string) *Network {
	t.Helper()

	n := &Network{t: t, Workers: make(map[string]*Worker)}
	var coord *coordinator.Coordinator

	for _, id := range roleIDs {
		role, err := clone.RoleByID(id)
		require.NoError(t, err)

		workroot := t.TempDir()
		checker := integrity.NewChecker()
		recorder := evidence.NewRecorder(filepath.Join(workroot, "audit"), 30)
		store, err := artifact.NewStore(workroot, checker, recorder, id)
		require.NoError(t, err)
		backend := llm.NewTestBackend("test-model")
		worker := clone.New(role, checker, recorder, backend, store, "e2e")

		var workerCoord *coordinator.Coordinator
		if id == clone.IDOmega {
			workerCoord = coordinator.New(worker, coordinator.NewRegistry("localhost"))
			coord = workerCoord
		}

		srv := httptest.NewServer(api.NewServer(worker, workerCoord).Handler())
		t.Cleanup(srv.Close)

		n.Workers[id] = &Worker{
			Clone:    worker,
			Backend:  backend,
			Server:   srv,
			Workroot: workroot,
		}
	}

	if coord != nil {
		for id, w := range n.Workers {
			if id == clone.IDOmega {
				continue
			}
			coord.Registry().Register(id, w.Server.URL, "")
		}
	}
	return n
}

// Omega returns the coordinator worker.
func (n *Network) Omega() *Worker { return n.Workers[clone.IDOmega] }

// Post sends a JSON body to a worker and decodes the JSON reply.
func (n *Network) Post(w *Worker, path string, body any) (int, map[string]any) {
	n.t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(n.t, err)

	resp, err := http.Post(w.Server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(n.t, err)
	defer resp.Body.Close()

	return resp.StatusCode, decodeBody(n.t, resp)
}

// Get fetches a path from a worker and decodes the JSON reply.
func (n *Network) Get(w *Worker, path string) (int, map[string]any) {
	n.t.Helper()

	resp, err := http.Get(w.Server.URL + path)
	require.NoError(n.t, err)
	defer resp.Body.Close()

	return resp.StatusCode, decodeBody(n.t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
