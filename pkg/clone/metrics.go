package clone

import (
	"sync"
	"time"
)

// Metrics tracks per-process task counters. Reset on process start; the
// rolling average is updated under the same lock that increments
// tasksProcessed so the two stay consistent.
type Metrics struct {
	mu                sync.Mutex
	startTime         time.Time
	tasksProcessed    int64
	totalExecutionMs  int64
	averageResponseMs float64
	errors            int64
}

// MetricsSnapshot is the health-endpoint view of Metrics.
type MetricsSnapshot struct {
	UptimeSeconds     float64 `json:"uptime"`
	TasksProcessed    int64   `json:"tasksProcessed"`
	AverageResponseMs float64 `json:"averageResponseMs"`
	Errors            int64   `json:"errors"`
	SuccessRate       float64 `json:"successRate"`
}

// NewMetrics starts the uptime clock.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// TaskCompleted records one successfully processed task.
func (m *Metrics) TaskCompleted(executionMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasksProcessed++
	m.totalExecutionMs += executionMs
	m.averageResponseMs = float64(m.totalExecutionMs) / float64(m.tasksProcessed)
}

// TaskFailed records a task that reached the backend and failed. Failed
// tasks count as processed so successRate and the tasksProcessed-errors
// relation stay well defined.
func (m *Metrics) TaskFailed(executionMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasksProcessed++
	m.errors++
	m.totalExecutionMs += executionMs
	m.averageResponseMs = float64(m.totalExecutionMs) / float64(m.tasksProcessed)
}

// Snapshot returns a consistent copy of the counters. SuccessRate is 100
// when no task has been processed yet.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	successRate := 100.0
	if m.tasksProcessed > 0 {
		successRate = float64(m.tasksProcessed-m.errors) / float64(m.tasksProcessed) * 100
	}
	return MetricsSnapshot{
		UptimeSeconds:     time.Since(m.startTime).Seconds(),
		TasksProcessed:    m.tasksProcessed,
		AverageResponseMs: m.averageResponseMs,
		Errors:            m.errors,
		SuccessRate:       successRate,
	}
}
