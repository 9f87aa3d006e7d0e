package entities

import (
	"time"
)

type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

type SyncRunStatus string

const (
	SyncRunStatusPending   SyncRunStatus = "pending"
	SyncRunStatusRunning   SyncRunStatus = "running"
	SyncRunStatusCompleted SyncRunStatus = "completed"
	SyncRunStatusFailed    SyncRunStatus = "failed"
)

// MaxErrorsPerResource bounds the per-resource error ledger on a run.
// Appending beyond the cap drops the oldest entry.
const MaxErrorsPerResource = 10

// ResourceMetric holds per-resource-type counters for one run. Errors
// counts every error-ledger append, including entries the FIFO cap has
// since dropped.
type ResourceMetric struct {
	Created    int   `json:"created"`
	Updated    int   `json:"updated"`
	Skipped    int   `json:"skipped"`
	Errors     int   `json:"errors"`
	DurationMS int64 `json:"duration_ms"`
}

// SyncError is one record-level error captured during a run.
type SyncError struct {
	ExternalID int64     `json:"external_id,omitempty"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RunMetadata is the structured metadata blob on a SyncRun. Keys of
// both maps are resource type names.
type RunMetadata struct {
	ResourceMetrics map[string]*ResourceMetric `json:"resource_metrics,omitempty"`
	ResourceErrors  map[string][]SyncError     `json:"resource_errors,omitempty"`
}

// Metric returns the metric bucket for a resource type, creating it on
// first use.
func (m *RunMetadata) Metric(resource string) *ResourceMetric {
	if m.ResourceMetrics == nil {
		m.ResourceMetrics = make(map[string]*ResourceMetric)
	}
	metric, ok := m.ResourceMetrics[resource]
	if !ok {
		metric = &ResourceMetric{}
		m.ResourceMetrics[resource] = metric
	}
	return metric
}

// AppendError records a record-level error for a resource type,
// keeping only the MaxErrorsPerResource most recent entries. The
// metric's error counter is incremented regardless of the cap.
func (m *RunMetadata) AppendError(resource string, entry SyncError) {
	if m.ResourceErrors == nil {
		m.ResourceErrors = make(map[string][]SyncError)
	}
	errs := append(m.ResourceErrors[resource], entry)
	if len(errs) > MaxErrorsPerResource {
		errs = errs[len(errs)-MaxErrorsPerResource:]
	}
	m.ResourceErrors[resource] = errs
	m.Metric(resource).Errors++
}

// TotalResources sums the created and updated counters across all
// resource types.
func (m *RunMetadata) TotalResources() int {
	total := 0
	for _, metric := range m.ResourceMetrics {
		total += metric.Created + metric.Updated
	}
	return total
}

// TotalErrors sums the error counters across all resource types.
func (m *RunMetadata) TotalErrors() int {
	total := 0
	for _, metric := range m.ResourceMetrics {
		total += metric.Errors
	}
	return total
}

// SyncRun is one ingestion execution. It is created pending by the
// trigger path, mutated only by the engine executing it, and immutable
// once it reaches a terminal status.
type SyncRun struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	Mode          SyncMode      `gorm:"size:16" json:"mode"`
	Status        SyncRunStatus `gorm:"size:16;index" json:"status"`
	Metadata      RunMetadata   `gorm:"serializer:json" json:"metadata"`
	ResourceCount int           `json:"resource_count"`
	ErrorCount    int           `json:"error_count"`
	ErrorSummary  string        `gorm:"type:text" json:"error_summary,omitempty"`
	StartedAt     *time.Time    `gorm:"index" json:"started_at,omitempty"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

// Terminal reports whether the run has reached a final status.
func (r *SyncRun) Terminal() bool {
	return r.Status == SyncRunStatusCompleted || r.Status == SyncRunStatusFailed
}
