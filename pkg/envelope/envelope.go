// Package envelope builds and scores inter-clone delegation payloads. An
// envelope carries an objective, essential data, constraints, and artifact
// manifests — never artifact bytes — and is gated by a quality score before
// it crosses a clone boundary.
package envelope

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Quality gate thresholds. Below RejectThreshold no delegation occurs; below
// WarnThreshold delegation proceeds with a recorded warning.
const (
	RejectThreshold = 40
	WarnThreshold   = 60
)

// QualityGateError reports an envelope whose overall quality fell below the
// rejection threshold. The caller must not contact the target clone.
type QualityGateError struct {
	Score     int
	Threshold int
}

func (e *QualityGateError) Error() string {
	return fmt.Sprintf("context quality %d is below the rejection threshold %d: delegation refused",
		e.Score, e.Threshold)
}

// Score is the three-axis quality measurement of an envelope, each axis in
// 0..100.
type Score struct {
	ObjectiveClarity    int `json:"objectiveClarity"`
	DataRelevance       int `json:"dataRelevance"`
	ArtifactUtilization int `json:"artifactUtilization"`
	OverallQuality      int `json:"overallQuality"`
}

// Envelope is the delegation payload shipped to a target clone.
// ArtifactManifests carries manifests only; any inline content the caller
// supplied is stripped during construction (and penalized by the score).
type Envelope struct {
	ContextID         string           `json:"contextId"`
	Timestamp         time.Time        `json:"timestamp"`
	Objective         string           `json:"objective"`
	TargetClone       string           `json:"targetClone"`
	ArtifactManifests []map[string]any `json:"artifactManifests,omitempty"`
	EssentialData     map[string]any   `json:"essentialData,omitempty"`
	Constraints       []string         `json:"constraints,omitempty"`
	Quality           Score            `json:"quality"`

	// Warning is set when the score landed in the warn band so the caller
	// can record a context_quality_warning evidence event. Not serialized.
	Warning bool `json:"-"`
}

// BuildInput is what the caller supplies. ArtifactManifests entries are the
// caller's raw manifest documents; inline content fields inside them are a
// scoring violation.
type BuildInput struct {
	Objective         string
	TargetClone       string
	ArtifactManifests []map[string]any
	EssentialData     map[string]any
	Constraints       []string
}

// Build constructs the envelope: fields are copied verbatim (inline content
// stripped from manifest entries), a context id and UTC timestamp are added,
// and the quality score is computed. A score below RejectThreshold returns
// *QualityGateError and no envelope.
func Build(input BuildInput) (*Envelope, error) {
	quality := scoreInput(input)

	if quality.OverallQuality < RejectThreshold {
		return nil, &QualityGateError{
			Score:     quality.OverallQuality,
			Threshold: RejectThreshold,
		}
	}

	env := &Envelope{
		ContextID:         uuid.NewString(),
		Timestamp:         time.Now().UTC(),
		Objective:         input.Objective,
		TargetClone:       input.TargetClone,
		ArtifactManifests: stripInlineContent(input.ArtifactManifests),
		EssentialData:     input.EssentialData,
		Constraints:       input.Constraints,
		Quality:           quality,
		Warning:           quality.OverallQuality < WarnThreshold,
	}
	return env, nil
}

// stripInlineContent drops content-carrying fields from manifest entries so
// only lightweight manifests cross the clone boundary.
func stripInlineContent(entries []map[string]any) []map[string]any {
	if entries == nil {
		return nil
	}
	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		copied := make(map[string]any, len(entry))
		for k, v := range entry {
			if isContentKey(k) {
				continue
			}
			copied[k] = v
		}
		out = append(out, copied)
	}
	return out
}
