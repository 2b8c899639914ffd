// Package evidence maintains the audit stream: one structured record per
// operation, kept in memory for queries and appended to a day-rotated
// on-disk log, one JSON document per line.
package evidence

import "time"

// Operation names used across the clone network. Callers may record other
// operations; these are the ones the pipelines emit.
const (
	OpTaskExecution     = "task_execution"
	OpOrchestration     = "orchestration"
	OpArtifactStored    = "artifact_stored"
	OpArtifactRetrieved = "artifact_retrieved"
	OpArtifactDeleted   = "artifact_deleted"
	OpQualityWarning    = "context_quality_warning"
)

// Record is one event in the audit stream. Execution is always "real" or
// "failed"; the recorder rejects anything else.
type Record struct {
	EvidenceID       string         `json:"evidenceId"`
	Timestamp        time.Time      `json:"timestamp"`
	Operation        string         `json:"operation"`
	Execution        string         `json:"execution"`
	TaskID           string         `json:"taskId,omitempty"`
	Clone            string         `json:"clone,omitempty"`
	ExecutionTimeMs  int64          `json:"executionTimeMs,omitempty"`
	ChecksumVerified *bool          `json:"checksumVerified,omitempty"`
	Model            string         `json:"model,omitempty"`
	Error            string         `json:"error,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

// AuditTrail summarizes every record for one task id.
type AuditTrail struct {
	TaskID       string    `json:"taskId"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	TotalRecords int       `json:"totalRecords"`
	Records      []Record  `json:"records"`
}

// Bool returns a pointer to b, for the ChecksumVerified field.
func Bool(b bool) *bool {
	return &b
}
