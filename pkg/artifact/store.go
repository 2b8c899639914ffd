package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omegalab/clonenet/pkg/evidence"
	"github.com/omegalab/clonenet/pkg/integrity"
)

// ErrNotFound is returned when no artifact exists for the requested id, or
// when its content file disappeared after the manifest was indexed.
var ErrNotFound = errors.New("artifact not found")

// ChecksumMismatchError reports on-disk content that no longer matches its
// manifest checksum. It is never recovered from silently.
type ChecksumMismatchError struct {
	ArtifactID string
	Expected   string
	Actual     string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("artifact %s failed checksum verification: expected %s, got %s",
		e.ArtifactID, e.Expected, e.Actual)
}

// RetrieveOptions controls Retrieve. ManifestOnly skips the content read
// (and therefore the checksum verification that requires it).
type RetrieveOptions struct {
	ManifestOnly bool
}

// Store is the content-addressed artifact store for one clone process. The
// in-memory manifest index is guarded; writers are exclusive, readers
// concurrent. The store is single-process: peers read artifacts through the
// owning clone's HTTP endpoints, never through the filesystem.
type Store struct {
	artifactsDir string
	manifestsDir string
	checker      *integrity.Checker
	recorder     *evidence.Recorder
	clone        string

	mu          sync.RWMutex
	manifests   map[string]*Manifest
	order       []string
	missing     map[string]bool
	initialized bool
}

// NewStore creates the store under workspaceRoot, making artifacts/ and
// manifests/ and rebuilding the index from any manifests a prior run left
// behind. recorder may be nil; when present, store/retrieve/delete operations
// append evidence records. clone tags stored metadata and evidence.
func NewStore(workspaceRoot string, checker *integrity.Checker, recorder *evidence.Recorder, clone string) (*Store, error) {
	s := &Store{
		artifactsDir: filepath.Join(workspaceRoot, "artifacts"),
		manifestsDir: filepath.Join(workspaceRoot, "manifests"),
		checker:      checker,
		recorder:     recorder,
		clone:        clone,
		manifests:    make(map[string]*Manifest),
		missing:      make(map[string]bool),
	}

	for _, dir := range []string{s.artifactsDir, s.manifestsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact directory %s: %w", dir, err)
		}
	}

	if err := s.rebuildIndex(); err != nil {
		return nil, err
	}
	s.initialized = true
	return s, nil
}

// rebuildIndex reads every *.json under manifests/ from a prior run. A
// manifest whose content file is missing is flagged but does not block
// startup; retrieving it later fails with ErrNotFound.
func (s *Store) rebuildIndex() error {
	entries, err := os.ReadDir(s.manifestsDir)
	if err != nil {
		return fmt.Errorf("scan manifests directory: %w", err)
	}

	type indexed struct {
		manifest *Manifest
		modTime  time.Time
	}
	var found []indexed

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.manifestsDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Skipping unreadable manifest", "file", entry.Name(), "error", err)
			continue
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil || m.ArtifactID == "" {
			slog.Warn("Skipping malformed manifest", "file", entry.Name(), "error", err)
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, indexed{manifest: &m, modTime: info.ModTime()})
	}

	// Insertion order across restarts approximated by manifest mtime.
	sort.Slice(found, func(i, j int) bool { return found[i].modTime.Before(found[j].modTime) })

	for _, f := range found {
		m := f.manifest
		s.manifests[m.ArtifactID] = m
		s.order = append(s.order, m.ArtifactID)
		if _, err := os.Stat(s.contentPath(m)); err != nil {
			s.missing[m.ArtifactID] = true
			slog.Warn("Manifest references missing content file",
				"artifact_id", m.ArtifactID, "location", m.Location)
		}
	}

	if len(s.order) > 0 {
		slog.Info("Rebuilt artifact index", "artifacts", len(s.order), "missing_content", len(s.missing))
	}
	return nil
}

// Store writes content then its manifest, in that order, and returns the
// manifest. Empty type or nil content is rejected before anything touches
// disk; a filesystem failure removes any partial write before the error
// propagates.
func (s *Store) Store(artifactType string, content []byte, metadata map[string]any) (*Manifest, error) {
	if strings.TrimSpace(artifactType) == "" {
		return nil, fmt.Errorf("store artifact: type must not be empty: %w", integrity.ErrInvalidInput)
	}
	if content == nil {
		return nil, fmt.Errorf("store artifact: content must not be nil: %w", integrity.ErrInvalidInput)
	}

	checksum, err := s.checker.Checksum(content)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	contentPath := filepath.Join(s.artifactsDir, id+"."+typeSuffix(artifactType))

	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if s.clone != "" {
		if _, ok := meta["clone"]; !ok {
			meta["clone"] = s.clone
		}
	}

	manifest := &Manifest{
		ArtifactID: id,
		Type:       artifactType,
		Checksum:   checksum,
		Location:   locationURI(contentPath),
		Size:       len(content),
		Timestamp:  time.Now().UTC(),
		Metadata:   meta,
	}

	if err := os.WriteFile(contentPath, content, 0o644); err != nil {
		return nil, fmt.Errorf("write artifact content: %w", err)
	}

	manifestPath := filepath.Join(s.manifestsDir, id+".json")
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		os.Remove(contentPath)
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		os.Remove(contentPath)
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	s.mu.Lock()
	s.manifests[id] = manifest
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.recordEvidence(evidence.Record{
		Operation: evidence.OpArtifactStored,
		Execution: integrity.ExecutionReal,
		Details: map[string]any{
			"artifactId": id,
			"type":       artifactType,
			"size":       len(content),
			"checksum":   checksum,
		},
	})

	return manifest, nil
}

// Retrieve reads the manifest first, then (unless ManifestOnly) the content,
// always recomputing the checksum against the stored manifest. A divergence
// fails with *ChecksumMismatchError: this is the artifact-layer guard against
// silent corruption.
func (s *Store) Retrieve(id string, opts RetrieveOptions) (*Result, error) {
	s.mu.RLock()
	manifest, ok := s.manifests[id]
	missing := s.missing[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("retrieve artifact %s: %w", id, ErrNotFound)
	}

	m := *manifest
	if opts.ManifestOnly {
		s.recordEvidence(evidence.Record{
			Operation: evidence.OpArtifactRetrieved,
			Execution: integrity.ExecutionReal,
			Details:   map[string]any{"artifactId": id, "manifestOnly": true},
		})
		return &Result{Manifest: &m}, nil
	}

	if missing {
		return nil, fmt.Errorf("retrieve artifact %s: content file missing: %w", id, ErrNotFound)
	}

	content, err := os.ReadFile(s.contentPath(manifest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("retrieve artifact %s: content file missing: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read artifact content: %w", err)
	}

	actual, err := s.checker.Checksum(content)
	if err != nil {
		return nil, err
	}
	verified := strings.EqualFold(actual, manifest.Checksum)

	s.recordEvidence(evidence.Record{
		Operation:        evidence.OpArtifactRetrieved,
		Execution:        integrity.ExecutionReal,
		ChecksumVerified: evidence.Bool(verified),
		Details:          map[string]any{"artifactId": id, "size": len(content)},
	})

	if !verified {
		return nil, &ChecksumMismatchError{ArtifactID: id, Expected: manifest.Checksum, Actual: actual}
	}

	return &Result{Manifest: &m, Content: content}, nil
}

// List returns manifests in insertion order. A non-empty typeFilter keeps
// exact matches only.
func (s *Store) List(typeFilter string) []*Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Manifest, 0, len(s.order))
	for _, id := range s.order {
		m := s.manifests[id]
		if typeFilter != "" && m.Type != typeFilter {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	return out
}

// Delete removes the content file and the manifest. It returns true only
// when the manifest existed beforehand.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	manifest, ok := s.manifests[id]
	if ok {
		delete(s.manifests, id)
		delete(s.missing, id)
		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	if err := os.Remove(s.contentPath(manifest)); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove artifact content", "artifact_id", id, "error", err)
	}
	if err := os.Remove(filepath.Join(s.manifestsDir, id+".json")); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove manifest", "artifact_id", id, "error", err)
	}

	s.recordEvidence(evidence.Record{
		Operation: evidence.OpArtifactDeleted,
		Execution: integrity.ExecutionReal,
		Details:   map[string]any{"artifactId": id},
	})
	return true
}

// Statistics summarizes the indexed artifacts by count and size.
func (s *Store) Statistics() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{ByType: make(map[string]TypeStats)}
	for _, id := range s.order {
		m := s.manifests[id]
		stats.TotalArtifacts++
		stats.TotalSize += int64(m.Size)
		ts := stats.ByType[m.Type]
		ts.Count++
		ts.Size += int64(m.Size)
		stats.ByType[m.Type] = ts
	}
	if stats.TotalArtifacts > 0 {
		stats.AverageSize = float64(stats.TotalSize) / float64(stats.TotalArtifacts)
	}
	return stats
}

// Initialized reports whether the directories exist and the index rebuild
// completed.
func (s *Store) Initialized() bool {
	return s.initialized
}

// contentPath resolves a manifest's location to a filesystem path. Locations
// are written as file:// URIs; bare paths from older manifests are accepted
// on read.
func (s *Store) contentPath(m *Manifest) string {
	if strings.HasPrefix(m.Location, "file://") {
		if u, err := url.Parse(m.Location); err == nil && u.Path != "" {
			return u.Path
		}
		return strings.TrimPrefix(m.Location, "file://")
	}
	return m.Location
}

func (s *Store) recordEvidence(rec evidence.Record) {
	if s.recorder == nil {
		return
	}
	rec.Clone = s.clone
	if _, err := s.recorder.Record(rec); err != nil {
		slog.Warn("Failed to record artifact evidence", "operation", rec.Operation, "error", err)
	}
}

func locationURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}
