// Package tracker implements the job-status reconciliation loop: it polls an
// external application status provider for every running job known to the
// primary registry, normalizes the result, and writes it back to both
// registries, finalizing jobs that reached a terminal status.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eodrift/jobtracker/internal/observability"
	"github.com/eodrift/jobtracker/pkg/appstatus"
	"github.com/eodrift/jobtracker/pkg/jobstatus"
	"github.com/eodrift/jobtracker/pkg/registry"
)

// PrimaryRegistry is the authoritative durable store of tracked jobs.
//
// A tracking pass holds exactly one session for its whole duration; the
// session must be released on every exit path.
type PrimaryRegistry interface {
	// Connect acquires a scoped session on the registry.
	Connect(ctx context.Context) (PrimarySession, error)
}

// PrimarySession is a scoped connection to the primary registry.
type PrimarySession interface {
	// GetRunningJobs enumerates the jobs currently considered running.
	// Inclusion of already-finalized jobs is the registry's bookkeeping
	// concern; the tracker does not re-verify exclusion.
	GetRunningJobs(ctx context.Context) ([]registry.JobRecord, error)

	// Patch merges the given fields into the registry entry for
	// (jobID, userID).
	Patch(ctx context.Context, jobID, userID string, fields map[string]any) error

	// SetStatus overwrites only the status of the entry.
	SetStatus(ctx context.Context, jobID, userID string, status jobstatus.Status) error

	// RemoveDependencies clears the entry's dependency bookkeeping fields.
	RemoveDependencies(ctx context.Context, jobID, userID string) error

	// Close releases the session.
	Close() error
}

// SecondaryRegistry is a best-effort mirror store (e.g. a search index).
// Write failures are logged and swallowed by the tracker, never escalated.
type SecondaryRegistry interface {
	SetStatus(ctx context.Context, jobID string, status jobstatus.Status, started, finished string) error
}

// ResultsResolver returns the output metadata of a finished job: asset
// descriptors, spatial area, the set of process ids used, and externally
// billed usage.
type ResultsResolver interface {
	GetResultsMetadata(ctx context.Context, jobID, userID string) (map[string]any, error)
}

// CleanupScheduler triggers asynchronous deletion of a finalized job's
// dependency artifacts. Fire-and-forget: the tracker consumes no result.
type CleanupScheduler interface {
	ScheduleDeleteDependencySources(ctx context.Context, jobID, userID string, sources []string)
}

// Options configures a Tracker. Provider, Primary and Results are required;
// the rest is optional.
type Options struct {
	// Provider queries the external cluster manager for job status.
	Provider appstatus.Provider

	// Primary is the authoritative job registry.
	Primary PrimaryRegistry

	// Secondary, if set, mirrors status writes best-effort.
	Secondary SecondaryRegistry

	// Results resolves output metadata for finished jobs.
	Results ResultsResolver

	// Cleanup, if set, receives dependency cleanup requests on finalize.
	Cleanup CleanupScheduler

	// RateLimit caps external status queries per second within a pass.
	// Zero means unlimited.
	RateLimit float64

	// Logger receives per-job and summary logging. Defaults to zap.NewNop().
	Logger *zap.Logger

	// Metrics, if set, receives pass-level instrumentation.
	Metrics *observability.TrackerMetrics
}

// Tracker drives one reconciliation pass over all running jobs.
//
// Tracker is single-threaded by design: one pass runs to completion (or
// aborts via failFast) before the next is started by the external scheduler.
type Tracker struct {
	provider  appstatus.Provider
	primary   PrimaryRegistry
	secondary SecondaryRegistry
	results   ResultsResolver
	cleanup   CleanupScheduler
	limiter   *rate.Limiter
	log       *zap.Logger
	metrics   *observability.TrackerMetrics
}

// New creates a Tracker with the given options.
func New(opts Options) (*Tracker, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("status provider is required")
	}
	if opts.Primary == nil {
		return nil, fmt.Errorf("primary registry is required")
	}
	if opts.Results == nil {
		return nil, fmt.Errorf("results resolver is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return &Tracker{
		provider:  opts.Provider,
		primary:   opts.Primary,
		secondary: opts.Secondary,
		results:   opts.Results,
		cleanup:   opts.Cleanup,
		limiter:   limiter,
		log:       log,
		metrics:   opts.Metrics,
	}, nil
}

// Primary returns the primary registry, e.g. for health checking.
func (t *Tracker) Primary() PrimaryRegistry {
	return t.primary
}

// UpdateStatuses runs one reconciliation pass over all running jobs.
//
// Every job is attempted exactly once per pass; a failure on one job is
// logged, counted, and does not affect the others. With failFast set, the
// first unexpected failure instead aborts the remainder of the pass. The
// returned stats are populated in both cases, so an aborted pass still
// surfaces partial counters.
func (t *Tracker) UpdateStatuses(ctx context.Context, failFast bool) (*Stats, error) {
	stats := NewStats()
	start := time.Now()
	log := t.log.With(zap.String("run_id", uuid.New().String()))

	defer func() {
		duration := time.Since(start)
		log.Info("update_statuses pass done",
			zap.Duration("duration", duration),
			zap.Any("stats", stats.Counts()))
		if t.metrics != nil {
			t.metrics.PassesTotal.Inc()
			t.metrics.PassDuration.Observe(duration.Seconds())
		}
	}()

	session, err := t.primary.Connect(ctx)
	if err != nil {
		return stats, fmt.Errorf("connect primary registry: %w", err)
	}
	defer func() { _ = session.Close() }()

	jobs, err := session.GetRunningJobs(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetch running jobs: %w", err)
	}
	log.Info("collected jobs to track", zap.Int("count", len(jobs)))
	stats.Add("collected jobs", len(jobs))

	for _, job := range jobs {
		if !job.Valid() {
			log.Error("invalid job record",
				zap.String("job_id", job.JobID),
				zap.String("user_id", job.UserID))
			stats.Inc("invalid job record")
			continue
		}

		jlog := log.With(zap.String("job_id", job.JobID), zap.String("user_id", job.UserID))

		if job.ApplicationID == "" {
			// No application id typically means the job has not been
			// submitted to any external system yet.
			jlog.Info("skipping job without application id",
				zap.String("created", job.Created),
				zap.String("age", jobAge(job.Created)),
				zap.String("status", job.Status.String()))
			stats.Inc("skip due to no application_id")
			continue
		}

		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return stats, err
			}
		}

		if err := t.syncJobStatus(ctx, session, job, stats, jlog); err != nil {
			jlog.Error("failed status sync", zap.Error(err))
			stats.Inc("failed sync")
			if t.metrics != nil {
				t.metrics.SyncFailures.Inc()
			}
			if failFast {
				return stats, err
			}
		}
	}

	return stats, nil
}

// syncJobStatus reconciles a single job: fetch external status, finalize on
// first terminal observation, and patch both registries.
func (t *Tracker) syncJobStatus(ctx context.Context, session PrimarySession, job registry.JobRecord, stats *Stats, log *zap.Logger) error {
	previous := job.Status
	stats.Inc("job with previous status " + previous.String())
	stats.Inc("get metadata attempt")

	snapshot, err := t.provider.GetJobMetadata(ctx, job.JobID, job.UserID, job.ApplicationID)
	if err != nil {
		if errors.Is(err, appstatus.ErrAppNotFound) {
			log.Warn("application not found on external system",
				zap.String("application_id", job.ApplicationID),
				zap.Error(err))
			if err := session.SetStatus(ctx, job.JobID, job.UserID, jobstatus.StatusError); err != nil {
				return fmt.Errorf("set error status: %w", err)
			}
			t.mirrorStatus(ctx, log, job.JobID, jobstatus.StatusError, "", "")
			stats.Inc("app not found")
			if t.metrics != nil {
				t.metrics.AppsNotFound.Inc()
			}
			return nil
		}
		// Parse errors, transport errors and anything else unexpected skip
		// this job for the pass; the caller counts and logs them.
		return err
	}
	stats.Inc("new metadata")

	if previous != snapshot.Status {
		log.Info("job status change",
			zap.String("from", previous.String()),
			zap.String("to", snapshot.Status.String()))
		stats.Inc("status change")
		stats.Inc(fmt.Sprintf("status change %s -> %s", previous, snapshot.Status))
	} else {
		stats.Inc("status same")
		stats.Inc("status same " + snapshot.Status.String())
	}

	if snapshot.Status.Terminal() {
		stats.Inc("reached final status " + snapshot.Status.String())
		if err := t.finalizeJob(ctx, session, job, stats, log); err != nil {
			return err
		}
	}

	// Identical status still re-patches timestamps and usage; this keeps
	// both registries fresh on every pass. Absent values patch as nil so
	// the registry drops the key instead of persisting empty strings.
	err = session.Patch(ctx, job.JobID, job.UserID, map[string]any{
		"status":   snapshot.Status,
		"started":  nullable(snapshot.StartTime),
		"finished": nullable(snapshot.FinishTime),
		"usage":    nullableUsage(snapshot.Usage),
	})
	if err != nil {
		return fmt.Errorf("patch status: %w", err)
	}
	t.mirrorStatus(ctx, log, job.JobID, snapshot.Status, snapshot.StartTime, snapshot.FinishTime)
	return nil
}

// finalizeJob runs the one-time side effects for a job that reached a
// terminal status: capture result metadata, clear and clean up dependencies,
// and report billed usage.
func (t *Tracker) finalizeJob(ctx context.Context, session PrimarySession, job registry.JobRecord, stats *Stats, log *zap.Logger) error {
	resultMetadata, err := t.results.GetResultsMetadata(ctx, job.JobID, job.UserID)
	if err != nil {
		return fmt.Errorf("resolve results metadata: %w", err)
	}
	if err := session.Patch(ctx, job.JobID, job.UserID, resultMetadata); err != nil {
		return fmt.Errorf("patch results metadata: %w", err)
	}
	if err := session.RemoveDependencies(ctx, job.JobID, job.UserID); err != nil {
		return fmt.Errorf("remove dependencies: %w", err)
	}

	sources := registry.DependencySources(job)
	if len(sources) > 0 && t.cleanup != nil {
		t.cleanup.ScheduleDeleteDependencySources(ctx, job.JobID, job.UserID, sources)
	}

	billedUnits := billedUsageUnits(resultMetadata) + registry.DependencyUsage(job)
	log.Info("marked job as done",
		zap.Any("area", resultMetadata["area"]),
		zap.Any("unique_process_ids", resultMetadata["unique_process_ids"]),
		zap.Float64("billed_usage_units", billedUnits))
	return nil
}

// mirrorStatus writes the status to the secondary registry; failures are
// logged and swallowed, never escalated.
func (t *Tracker) mirrorStatus(ctx context.Context, log *zap.Logger, jobID string, status jobstatus.Status, started, finished string) {
	if t.secondary == nil {
		return
	}
	if err := t.secondary.SetStatus(ctx, jobID, status, started, finished); err != nil {
		log.Warn("secondary registry write failed",
			zap.String("status", status.String()),
			zap.Error(err))
	}
}

// billedUsageUnits extracts the externally billed usage value from result
// metadata, e.g. usage.sentinelhub.value.
func billedUsageUnits(resultMetadata map[string]any) float64 {
	usage, _ := resultMetadata["usage"].(map[string]any)
	entry, _ := usage["sentinelhub"].(map[string]any)
	value, _ := entry["value"].(float64)
	return value
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableUsage(u jobstatus.Usage) any {
	if len(u) == 0 {
		return nil
	}
	return u
}

// jobAge renders the age of an unsubmitted job from its RFC3339 creation
// time, for operator logging.
func jobAge(created string) string {
	if created == "" {
		return "unknown"
	}
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return "unknown"
	}
	return time.Since(t).Round(time.Second).String()
}
