// Package coordinator implements Omega's delegation engine: the peer
// registry, verbatim task delegation, quality-gated orchestration, and the
// network status aggregator. The coordinator is a regular clone runtime with
// this extra capability set; peers never know about it.
package coordinator

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/omegalab/clonenet/pkg/clone"
)

// UnknownCloneError reports a delegation target that is not in the registry.
type UnknownCloneError struct {
	Target string
	Known  []string
}

func (e *UnknownCloneError) Error() string {
	return fmt.Sprintf("unknown clone %q: registered clones are %s",
		e.Target, strings.Join(e.Known, ", "))
}

// Peer is one registry entry: a specialist clone reachable over HTTP.
type Peer struct {
	Clone           string     `json:"clone"`
	Role            string     `json:"role"`
	BaseURL         string     `json:"baseUrl"`
	Specialization  string     `json:"specialization"`
	LastSeenHealthy *time.Time `json:"lastSeenHealthy,omitempty"`
}

// Registry maps clone ids to peer entries. Guarded; the coordinator's HTTP
// handlers read and write it concurrently.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]Peer
}

// NewRegistry seeds the registry with every specialist role at its default
// port on host (empty host means localhost). Entries can be overridden later
// with Register.
func NewRegistry(host string) *Registry {
	if host == "" {
		host = "localhost"
	}
	r := &Registry{peers: make(map[string]Peer)}
	for _, role := range clone.Roles() {
		if role.ID == clone.IDOmega {
			continue
		}
		r.peers[role.ID] = Peer{
			Clone:          role.ID,
			Role:           role.Name,
			BaseURL:        fmt.Sprintf("http://%s:%d", host, role.DefaultPort),
			Specialization: role.Specialization,
		}
	}
	return r
}

// Register adds or overrides a peer entry.
func (r *Registry) Register(cloneID, baseURL, specialization string) Peer {
	role := cloneID
	if known, err := clone.RoleByID(cloneID); err == nil {
		role = known.Name
		if specialization == "" {
			specialization = known.Specialization
		}
	}
	peer := Peer{
		Clone:          cloneID,
		Role:           role,
		BaseURL:        strings.TrimRight(baseURL, "/"),
		Specialization: specialization,
	}

	r.mu.Lock()
	r.peers[cloneID] = peer
	r.mu.Unlock()
	return peer
}

// Resolve returns the peer for cloneID or *UnknownCloneError.
func (r *Registry) Resolve(cloneID string) (Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peer, ok := r.peers[cloneID]
	if !ok {
		return Peer{}, &UnknownCloneError{Target: cloneID, Known: r.knownLocked()}
	}
	return peer, nil
}

// Peers returns every entry, sorted by clone id.
func (r *Registry) Peers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Clone < out[j].Clone })
	return out
}

// MarkHealthy stamps the peer's last successful health probe.
func (r *Registry) MarkHealthy(cloneID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if peer, ok := r.peers[cloneID]; ok {
		peer.LastSeenHealthy = &at
		r.peers[cloneID] = peer
	}
}

func (r *Registry) knownLocked() []string {
	known := make([]string, 0, len(r.peers))
	for id := range r.peers {
		known = append(known, id)
	}
	sort.Strings(known)
	return known
}
