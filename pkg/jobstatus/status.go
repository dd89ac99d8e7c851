// Package jobstatus defines the canonical batch job status vocabulary and the
// status snapshot produced by external application status providers.
//
// External schedulers (YARN, Kubernetes) each speak their own state language;
// everything downstream of a status provider works exclusively in terms of the
// canonical Status values defined here.
package jobstatus

// Status is the canonical lifecycle status of a batch job.
//
// NOTE: These values are persisted in job registries and are part of the
// stable on-disk contract.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusError     Status = "error"
	StatusCanceled  Status = "canceled"
	StatusUndefined Status = "undefined"
)

// Terminal reports whether the status is final: once a job reaches a terminal
// status no further transitions are expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusError, StatusCanceled:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Metric is a single resource usage measurement.
//
// Value is a pointer so that a metric reported by the external system with an
// explicit null value survives the round trip instead of collapsing to zero.
type Metric struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

// Usage maps a metric name (e.g. "cpu", "memory") to its measurement.
// Absent metrics are omitted from the map rather than zeroed.
type Usage map[string]Metric

// Snapshot is the canonical status report for one job as observed on an
// external cluster manager.
//
// Timestamps are RFC3339 UTC strings; the empty string means "not yet
// started" / "not yet finished". String-only timestamps keep the snapshot
// stable across providers that already report RFC3339 (Kubernetes) and those
// that report epoch milliseconds (YARN).
type Snapshot struct {
	Status     Status `json:"status"`
	StartTime  string `json:"start_time,omitempty"`
	FinishTime string `json:"finish_time,omitempty"`
	Usage      Usage  `json:"usage,omitempty"`
}

// MetricValue is a convenience constructor for a Metric with a known value.
func MetricValue(value float64, unit string) Metric {
	return Metric{Value: &value, Unit: unit}
}
