// Package registry defines the durable job record shared by the primary and
// secondary job registries.
//
// A record is keyed by (job_id, user_id) and is created by job submission,
// which is outside this module: the tracker only reads and updates existing
// entries.
package registry

import (
	"sort"
	"strconv"

	"github.com/eodrift/jobtracker/pkg/jobstatus"
)

// JobRecord is a tracked job as read from the primary registry.
//
// The schema is designed for backward-compatible extension (additive
// fields); registry implementations may persist additional keys that this
// struct does not model, such as merged result metadata.
type JobRecord struct {
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`

	// ApplicationID is the external scheduler handle. Empty means the job
	// has not been submitted to any external system yet.
	ApplicationID string `json:"application_id,omitempty"`

	Status jobstatus.Status `json:"status,omitempty"`

	// Created is the RFC3339 UTC submission time.
	Created string `json:"created,omitempty"`

	// Started/Finished are RFC3339 UTC times from the last status sync.
	Started  string          `json:"started,omitempty"`
	Finished string          `json:"finished,omitempty"`
	Usage    jobstatus.Usage `json:"usage,omitempty"`

	// DependencySources are external resource handles consumed while
	// producing the job's result, kept so they can be cleaned up once the
	// job is done.
	DependencySources []string `json:"dependency_sources,omitempty"`

	// DependencyUsage is the decimal cost (in external billing units)
	// accrued by dependencies before job start, serialized as a string.
	DependencyUsage string `json:"dependency_usage,omitempty"`
}

// Valid reports whether the record carries the identifying fields required
// to track it.
func (r JobRecord) Valid() bool {
	return r.JobID != "" && r.UserID != ""
}

// DependencySources returns the record's dependency sources deduplicated,
// in sorted order. Duplicates occur when batch processes are recycled.
func DependencySources(r JobRecord) []string {
	if len(r.DependencySources) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(r.DependencySources))
	out := make([]string, 0, len(r.DependencySources))
	for _, s := range r.DependencySources {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// DependencyUsage returns the record's pre-start dependency cost, or 0 when
// absent or unparsable.
func DependencyUsage(r JobRecord) float64 {
	if r.DependencyUsage == "" {
		return 0
	}
	v, err := strconv.ParseFloat(r.DependencyUsage, 64)
	if err != nil {
		return 0
	}
	return v
}
