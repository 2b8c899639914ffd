// Package artifact implements the content-addressed artifact store: checksummed
// writes, side-car manifest index, and verified reads. Artifacts are write-once
// values; once stored, content and checksum never change.
package artifact

import (
	"strings"
	"time"
)

// Artifact types produced by the clone specializations. Store accepts other
// types too; these are the ones the network emits.
const (
	TypeCode               = "code"
	TypeDocumentation      = "documentation"
	TypeSchema             = "schema"
	TypeConfiguration      = "configuration"
	TypeCodeAnalysis       = "code_analysis"
	TypeArchitectureDesign = "architecture_design"
	TypeTestSuite          = "test_suite"
)

// Manifest is the small index side-car for one artifact. It is created with
// the artifact, deleted with it, and never modified in between. Manifests are
// safe to ship between clones; content bytes are not.
type Manifest struct {
	ArtifactID string         `json:"artifactId"`
	Type       string         `json:"type"`
	Checksum   string         `json:"checksum"`
	Location   string         `json:"location"`
	Size       int            `json:"size"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Result is what Retrieve returns. Content is nil on manifest-only reads.
type Result struct {
	Manifest *Manifest `json:"manifest"`
	Content  []byte    `json:"content,omitempty"`
}

// Stats summarizes the store's contents.
type Stats struct {
	TotalArtifacts int                  `json:"totalArtifacts"`
	TotalSize      int64                `json:"totalSize"`
	AverageSize    float64              `json:"averageSize"`
	ByType         map[string]TypeStats `json:"byType"`
}

// TypeStats is the per-type slice of Stats.
type TypeStats struct {
	Count int   `json:"count"`
	Size  int64 `json:"size"`
}

// typeSuffix sanitizes an artifact type into a file extension: lowercase,
// non-alphanumeric runs collapsed to a single underscore.
func typeSuffix(artifactType string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(artifactType) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "bin"
	}
	return out
}
