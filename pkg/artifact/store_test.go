package artifact

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omegalab/clonenet/pkg/evidence"
	"github.com/omegalab/clonenet/pkg/integrity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), integrity.NewChecker(), nil, "beta")
	require.NoError(t, err)
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	content := []byte("const x=1;")

	manifest, err := s.Store(TypeCode, content, map[string]any{"language": "javascript"})
	require.NoError(t, err)

	assert.NotEmpty(t, manifest.ArtifactID)
	assert.Equal(t, TypeCode, manifest.Type)
	assert.Regexp(t, `^[a-f0-9]{64}$`, manifest.Checksum)
	assert.Equal(t, len(content), manifest.Size)
	assert.True(t, strings.HasPrefix(manifest.Location, "file://"))
	assert.Equal(t, "beta", manifest.Metadata["clone"])

	result, err := s.Retrieve(manifest.ArtifactID, RetrieveOptions{})
	require.NoError(t, err)
	assert.Equal(t, content, result.Content)
	assert.Equal(t, manifest.Checksum, result.Manifest.Checksum)
}

func TestStoreInvalidInput(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Store("", []byte("data"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, integrity.ErrInvalidInput))

	_, err = s.Store(TypeCode, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, integrity.ErrInvalidInput))

	// Empty but non-nil content is legal.
	manifest, err := s.Store(TypeCode, []byte{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, manifest.Size)
}

func TestRetrieveManifestOnly(t *testing.T) {
	s := newTestStore(t)

	manifest, err := s.Store(TypeCode, []byte("const x=1;"), nil)
	require.NoError(t, err)

	result, err := s.Retrieve(manifest.ArtifactID, RetrieveOptions{ManifestOnly: true})
	require.NoError(t, err)
	assert.Nil(t, result.Content)
	assert.Equal(t, manifest.Checksum, result.Manifest.Checksum)
}

func TestRetrieveUnknownID(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Retrieve("00000000-0000-0000-0000-000000000000", RetrieveOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCorruptionDetection(t *testing.T) {
	s := newTestStore(t)

	manifest, err := s.Store(TypeCode, []byte("const x=1;"), nil)
	require.NoError(t, err)

	contentPath := strings.TrimPrefix(manifest.Location, "file://")
	require.NoError(t, os.WriteFile(contentPath, []byte("corrupted"), 0o644))

	_, err = s.Retrieve(manifest.ArtifactID, RetrieveOptions{})
	require.Error(t, err)
	var mismatch *ChecksumMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, manifest.ArtifactID, mismatch.ArtifactID)
	assert.Contains(t, err.Error(), "checksum")
}

func TestListInsertionOrderAndFilter(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Store(TypeCode, []byte("a"), nil)
	require.NoError(t, err)
	second, err := s.Store(TypeDocumentation, []byte("b"), nil)
	require.NoError(t, err)
	third, err := s.Store(TypeCode, []byte("c"), nil)
	require.NoError(t, err)

	all := s.List("")
	require.Len(t, all, 3)
	assert.Equal(t, first.ArtifactID, all[0].ArtifactID)
	assert.Equal(t, second.ArtifactID, all[1].ArtifactID)
	assert.Equal(t, third.ArtifactID, all[2].ArtifactID)

	code := s.List(TypeCode)
	require.Len(t, code, 2)
	assert.Equal(t, first.ArtifactID, code[0].ArtifactID)
	assert.Equal(t, third.ArtifactID, code[1].ArtifactID)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	manifest, err := s.Store(TypeCode, []byte("const x=1;"), nil)
	require.NoError(t, err)

	assert.True(t, s.Delete(manifest.ArtifactID))
	assert.False(t, s.Delete(manifest.ArtifactID))

	_, err = s.Retrieve(manifest.ArtifactID, RetrieveOptions{})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Empty(t, s.List(""))
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Store(TypeCode, []byte("abcd"), nil)
	require.NoError(t, err)
	_, err = s.Store(TypeCode, []byte("ab"), nil)
	require.NoError(t, err)
	_, err = s.Store(TypeDocumentation, []byte("abcdef"), nil)
	require.NoError(t, err)

	stats := s.Statistics()
	assert.Equal(t, 3, stats.TotalArtifacts)
	assert.Equal(t, int64(12), stats.TotalSize)
	assert.InDelta(t, 4.0, stats.AverageSize, 0.001)
	assert.Equal(t, TypeStats{Count: 2, Size: 6}, stats.ByType[TypeCode])
	assert.Equal(t, TypeStats{Count: 1, Size: 6}, stats.ByType[TypeDocumentation])
}

func TestIndexRebuildAcrossRestart(t *testing.T) {
	root := t.TempDir()
	checker := integrity.NewChecker()

	first, err := NewStore(root, checker, nil, "beta")
	require.NoError(t, err)
	manifest, err := first.Store(TypeCode, []byte("const x=1;"), nil)
	require.NoError(t, err)

	// Orphan a second manifest by deleting its content file.
	orphan, err := first.Store(TypeCode, []byte("orphaned"), nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(strings.TrimPrefix(orphan.Location, "file://")))

	second, err := NewStore(root, checker, nil, "beta")
	require.NoError(t, err)
	assert.True(t, second.Initialized())
	require.Len(t, second.List(""), 2)

	result, err := second.Retrieve(manifest.ArtifactID, RetrieveOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("const x=1;"), result.Content)

	// The orphaned manifest did not block startup, but its content is gone.
	_, err = second.Retrieve(orphan.ArtifactID, RetrieveOptions{})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLegacyBarePathLocation(t *testing.T) {
	root := t.TempDir()
	checker := integrity.NewChecker()

	s, err := NewStore(root, checker, nil, "beta")
	require.NoError(t, err)
	manifest, err := s.Store(TypeCode, []byte("legacy"), nil)
	require.NoError(t, err)

	// Rewrite the manifest location as a raw filesystem path, the way older
	// implementations wrote it.
	barePath := strings.TrimPrefix(manifest.Location, "file://")
	rewritten := *manifest
	rewritten.Location = barePath
	data, err := json.MarshalIndent(&rewritten, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "manifests", manifest.ArtifactID+".json"), data, 0o644))

	reopened, err := NewStore(root, checker, nil, "beta")
	require.NoError(t, err)
	result, err := reopened.Retrieve(manifest.ArtifactID, RetrieveOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("legacy"), result.Content)
}

func TestStoreEvidenceRecording(t *testing.T) {
	recorder := evidence.NewRecorder(t.TempDir(), 30)
	s, err := NewStore(t.TempDir(), integrity.NewChecker(), recorder, "beta")
	require.NoError(t, err)

	manifest, err := s.Store(TypeCode, []byte("const x=1;"), nil)
	require.NoError(t, err)
	_, err = s.Retrieve(manifest.ArtifactID, RetrieveOptions{})
	require.NoError(t, err)
	s.Delete(manifest.ArtifactID)

	stored := recorder.RecordsByOperation(evidence.OpArtifactStored)
	require.Len(t, stored, 1)
	assert.Equal(t, "beta", stored[0].Clone)
	assert.Equal(t, integrity.ExecutionReal, stored[0].Execution)

	retrieved := recorder.RecordsByOperation(evidence.OpArtifactRetrieved)
	require.Len(t, retrieved, 1)
	require.NotNil(t, retrieved[0].ChecksumVerified)
	assert.True(t, *retrieved[0].ChecksumVerified)

	assert.Len(t, recorder.RecordsByOperation(evidence.OpArtifactDeleted), 1)
}
