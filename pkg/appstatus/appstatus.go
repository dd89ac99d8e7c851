// Package appstatus defines the abstraction for querying an external cluster
// or application manager for the live status of one batch job.
//
// Providers implement a single capability: resolving (job, user, application)
// to a canonical status snapshot. Concrete variants exist for YARN and
// Kubernetes; the variant is selected at construction time by configuration,
// never by shared mutable state.
package appstatus

import (
	"context"

	"github.com/eodrift/jobtracker/pkg/jobstatus"
)

// Provider queries one external system for one job's current status and
// resource usage.
//
// Implementations should:
//   - Return an error wrapping ErrAppNotFound when the external system
//     reports the application as absent.
//   - Return a *ParseError when the response is structurally valid but
//     semantically malformed.
//   - Propagate transport and auth errors unmodified.
type Provider interface {
	// GetJobMetadata returns the canonical status snapshot for the job with
	// the given external application id.
	GetJobMetadata(ctx context.Context, jobID, userID, appID string) (jobstatus.Snapshot, error)
}
