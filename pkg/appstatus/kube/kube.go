// Package kube implements appstatus.Provider against the Kubernetes Spark
// operator: each batch job runs as one SparkApplication custom resource in a
// dedicated namespace.
//
// Resource usage is not part of the custom resource; it comes from a
// separate, best-effort query to a kubecost-style allocation service.
package kube

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/eodrift/jobtracker/pkg/appstatus"
	"github.com/eodrift/jobtracker/pkg/jobstatus"
)

// SparkApplicationResource identifies the Spark operator custom resource.
var SparkApplicationResource = schema.GroupVersionResource{
	Group:    "sparkoperator.k8s.io",
	Version:  "v1beta2",
	Resource: "sparkapplications",
}

// Spark operator application states, as reported in
// status.applicationState.state on the custom resource.
const (
	appStateNew              = ""
	appStateSubmitted        = "SUBMITTED"
	appStateRunning          = "RUNNING"
	appStateSucceeding       = "SUCCEEDING"
	appStateCompleted        = "COMPLETED"
	appStateFailed           = "FAILED"
	appStateFailing          = "FAILING"
	appStateSubmissionFailed = "SUBMISSION_FAILED"
)

// DefaultNamespace is the namespace batch jobs are deployed to unless
// configured otherwise.
const DefaultNamespace = "spark-jobs"

// Config configures a Kubernetes status provider.
type Config struct {
	// Client is the dynamic client used to read SparkApplication resources.
	Client dynamic.Interface

	// Namespace is the namespace holding the SparkApplication resources.
	// Defaults to DefaultNamespace.
	Namespace string

	// Costs, if set, is queried for accumulated resource usage per job.
	// Failures of this client never fail a status fetch.
	Costs *KubecostClient

	// Logger receives warning/error logging. Defaults to zap.NewNop().
	Logger *zap.Logger
}

// Validate checks the configuration for required fields.
func (c Config) Validate() error {
	if c.Client == nil {
		return fmt.Errorf("kubernetes client is required")
	}
	return nil
}

// Provider implements appstatus.Provider for Kubernetes.
type Provider struct {
	client    dynamic.Interface
	namespace string
	costs     *KubecostClient
	log       *zap.Logger
}

var _ appstatus.Provider = (*Provider)(nil)

// New creates a Kubernetes status provider with the given configuration.
func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		client:    cfg.Client,
		namespace: namespace,
		costs:     cfg.Costs,
		log:       log,
	}, nil
}

// GetJobMetadata reads the job's SparkApplication resource and, best-effort,
// its accumulated resource usage.
func (p *Provider) GetJobMetadata(ctx context.Context, jobID, userID, appID string) (jobstatus.Snapshot, error) {
	snap, err := p.getJobStatus(ctx, jobID, userID)
	if err != nil {
		return jobstatus.Snapshot{}, err
	}
	snap.Usage = p.getUsage(ctx, jobID, userID)
	return snap, nil
}

func (p *Provider) getJobStatus(ctx context.Context, jobID, userID string) (jobstatus.Snapshot, error) {
	name := JobName(jobID, userID)
	obj, err := p.client.Resource(SparkApplicationResource).Namespace(p.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return jobstatus.Snapshot{}, fmt.Errorf("spark application %s/%s: %w", p.namespace, name, appstatus.ErrAppNotFound)
		}
		return jobstatus.Snapshot{}, err
	}

	// A resource without a status sub-object has been created but not yet
	// observed by the operator: a fresh app, not an error.
	if _, found, _ := unstructured.NestedMap(obj.Object, "status"); !found {
		p.log.Warn("no application status on spark application, assuming new app",
			zap.String("name", name),
			zap.String("job_id", jobID),
			zap.String("user_id", userID))
		return jobstatus.Snapshot{Status: statusFromApplicationState(appStateNew)}, nil
	}

	state, _, _ := unstructured.NestedString(obj.Object, "status", "applicationState", "state")
	startTime, _, _ := unstructured.NestedString(obj.Object, "status", "lastSubmissionAttemptTime")
	finishTime, _, _ := unstructured.NestedString(obj.Object, "status", "terminationTime")

	return jobstatus.Snapshot{
		Status:     statusFromApplicationState(state),
		StartTime:  startTime,
		FinishTime: finishTime,
	}, nil
}

// getUsage queries the cost-accounting service for accumulated usage. Any
// failure is logged and yields "no usage data" rather than failing the
// status fetch.
func (p *Provider) getUsage(ctx context.Context, jobID, userID string) jobstatus.Usage {
	if p.costs == nil {
		return nil
	}
	usage, err := p.costs.Allocation(ctx, JobName(jobID, userID)+"*")
	if err != nil {
		p.log.Error("failed to retrieve usage stats from cost service",
			zap.String("job_id", jobID),
			zap.String("user_id", userID),
			zap.Error(err))
		return nil
	}
	return usage
}

// statusFromApplicationState maps a Spark operator application state to the
// canonical status.
func statusFromApplicationState(state string) jobstatus.Status {
	switch state {
	case appStateNew, appStateSubmitted:
		return jobstatus.StatusAccepted
	case appStateRunning, appStateSucceeding:
		return jobstatus.StatusRunning
	case appStateCompleted:
		return jobstatus.StatusFinished
	case appStateFailed, appStateFailing, appStateSubmissionFailed:
		return jobstatus.StatusError
	}
	return jobstatus.StatusUndefined
}

// JobName returns the deterministic SparkApplication resource name for a
// (job, user) pair. The result is a valid DNS-1123 label: lowercase
// alphanumerics and dashes, at most 63 characters.
func JobName(jobID, userID string) string {
	name := sanitizeLabel("job-" + jobID + "-" + userID)
	if len(name) > 63 {
		name = strings.TrimRight(name[:63], "-")
	}
	return name
}

func sanitizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
