package evidence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omegalab/clonenet/pkg/integrity"
)

// DefaultRetentionDays is how long audit log files are kept when the
// recorder is constructed without an explicit retention.
const DefaultRetentionDays = 30

// auditFilePattern matches day-rotated log file names: 2026-08-24-audit.log.
var auditFilePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-audit\.log$`)

// Recorder collects evidence records in memory and appends them to the
// on-disk audit log. In-memory operations are safe under concurrent HTTP
// handlers; disk appends are serialized internally.
type Recorder struct {
	auditDir      string
	retentionDays int

	mu      sync.RWMutex
	records []Record

	fileMu    sync.Mutex
	lastPrune time.Time
}

// NewRecorder creates a recorder writing to auditDir. retentionDays <= 0
// falls back to DefaultRetentionDays. The directory is created on first
// write, not here.
func NewRecorder(auditDir string, retentionDays int) *Recorder {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Recorder{
		auditDir:      auditDir,
		retentionDays: retentionDays,
	}
}

// Record completes and appends rec to the in-memory stream. EvidenceID and
// Timestamp are filled when absent. Records without an operation, or with an
// execution marker outside {"real","failed"}, are rejected.
func (r *Recorder) Record(rec Record) (Record, error) {
	if rec.Operation == "" {
		return Record{}, fmt.Errorf("evidence record requires a non-empty operation")
	}
	if !integrity.ValidExecution(rec.Execution) {
		return Record{}, fmt.Errorf("evidence record has invalid execution marker %q", rec.Execution)
	}
	if rec.EvidenceID == "" {
		rec.EvidenceID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	return rec, nil
}

// LastRecord returns a copy of the most recent record, or nil when nothing
// has been recorded.
func (r *Recorder) LastRecord() *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.records) == 0 {
		return nil
	}
	rec := r.records[len(r.records)-1]
	return &rec
}

// Records returns every record whose TaskID equals taskID, in append order.
func (r *Recorder) Records(taskID string) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Record
	for _, rec := range r.records {
		if rec.TaskID == taskID {
			out = append(out, rec)
		}
	}
	return out
}

// RecordsByOperation returns every record for the given operation, in
// append order.
func (r *Recorder) RecordsByOperation(operation string) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Record
	for _, rec := range r.records {
		if rec.Operation == operation {
			out = append(out, rec)
		}
	}
	return out
}

// RecentRecords returns up to limit of the newest records, oldest first.
func (r *Recorder) RecentRecords(limit int) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.records) {
		limit = len(r.records)
	}
	out := make([]Record, limit)
	copy(out, r.records[len(r.records)-limit:])
	return out
}

// Len returns the number of in-memory records.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// AuditTrail assembles the trail for one task id. StartTime and EndTime are
// zero when no records match.
func (r *Recorder) AuditTrail(taskID string) AuditTrail {
	records := r.Records(taskID)
	trail := AuditTrail{
		TaskID:       taskID,
		TotalRecords: len(records),
		Records:      records,
	}
	if len(records) > 0 {
		trail.StartTime = records[0].Timestamp
		trail.EndTime = records[len(records)-1].Timestamp
	}
	return trail
}

// WriteToAuditLog appends rec to <auditDir>/<YYYY-MM-DD>-audit.log as a
// single JSON line. The full line is assembled first and written with one
// append so concurrent writers never interleave. Retention pruning runs
// before the write, at most once per hour.
func (r *Recorder) WriteToAuditLog(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	line = append(line, '\n')

	day := rec.Timestamp
	if day.IsZero() {
		day = time.Now().UTC()
	}
	name := day.UTC().Format("2006-01-02") + "-audit.log"

	r.fileMu.Lock()
	defer r.fileMu.Unlock()

	r.maybePruneLocked()

	if err := os.MkdirAll(r.auditDir, 0o755); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(r.auditDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// PruneOlderThan removes audit log files whose date prefix is older than
// now - days. It returns the number of files removed. A missing audit
// directory prunes nothing.
func (r *Recorder) PruneOlderThan(days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	entries, err := os.ReadDir(r.auditDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("scan audit directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := auditFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		day, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			if err := os.Remove(filepath.Join(r.auditDir, entry.Name())); err != nil {
				slog.Warn("Failed to prune audit log file", "file", entry.Name(), "error", err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// maybePruneLocked runs retention pruning when the last scan is over an
// hour old. Callers hold fileMu.
func (r *Recorder) maybePruneLocked() {
	if time.Since(r.lastPrune) < time.Hour {
		return
	}
	r.lastPrune = time.Now()
	if removed, err := r.PruneOlderThan(r.retentionDays); err != nil {
		slog.Warn("Audit retention scan failed", "error", err)
	} else if removed > 0 {
		slog.Info("Pruned expired audit logs", "removed", removed, "retention_days", r.retentionDays)
	}
}
