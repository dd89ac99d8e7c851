package cmd

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/eodrift/jobtracker/internal/config"
	"github.com/eodrift/jobtracker/internal/observability"
	"github.com/eodrift/jobtracker/pkg/appstatus"
	"github.com/eodrift/jobtracker/pkg/appstatus/kube"
	"github.com/eodrift/jobtracker/pkg/appstatus/yarn"
	"github.com/eodrift/jobtracker/pkg/cleanup"
	"github.com/eodrift/jobtracker/pkg/registry/fileregistry"
	"github.com/eodrift/jobtracker/pkg/registry/sqliteregistry"
	"github.com/eodrift/jobtracker/pkg/results"
	"github.com/eodrift/jobtracker/pkg/tracker"
)

// trackerDeps bundles everything a tracking pass needs, plus the handles
// that must be released on shutdown.
type trackerDeps struct {
	tracker  *tracker.Tracker
	registry *fileregistry.Store
	mirror   *sqliteregistry.Store
	cleaner  *cleanup.Scheduler
}

// close drains in-flight cleanup deliveries before releasing the mirror, so
// one-shot invocations never exit with tasks still on the wire.
func (d *trackerDeps) close() {
	if d.cleaner != nil {
		_ = d.cleaner.Close()
	}
	if d.mirror != nil {
		_ = d.mirror.Close()
	}
}

// buildTracker assembles the tracker from configuration: status provider
// variant, registries, result resolver and cleanup scheduler.
func buildTracker(cfg *config.Config, metrics *observability.TrackerMetrics) (*trackerDeps, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := observability.CLILogger

	provider, err := buildProvider(cfg, log)
	if err != nil {
		return nil, err
	}

	deps := &trackerDeps{}

	var secondary tracker.SecondaryRegistry
	if cfg.Registry.MirrorPath != "" {
		mirror, err := sqliteregistry.Open(cfg.Registry.MirrorPath)
		if err != nil {
			return nil, fmt.Errorf("open secondary registry: %w", err)
		}
		deps.mirror = mirror
		secondary = mirror
	}

	resolver, err := results.NewFileResolver(cfg.Results.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("results resolver: %w", err)
	}

	var cleaner tracker.CleanupScheduler
	if cfg.Cleanup.Endpoint != "" {
		scheduler, err := cleanup.NewScheduler(cfg.Cleanup.Endpoint, log)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.cleaner = scheduler
		cleaner = scheduler
	}

	deps.registry = fileregistry.NewStore(cfg.Registry.Root)

	t, err := tracker.New(tracker.Options{
		Provider:  provider,
		Primary:   deps.registry,
		Secondary: secondary,
		Results:   resolver,
		Cleanup:   cleaner,
		RateLimit: cfg.RateLimit,
		Logger:    log,
		Metrics:   metrics,
	})
	if err != nil {
		deps.close()
		return nil, err
	}
	deps.tracker = t
	return deps, nil
}

func buildProvider(cfg *config.Config, log *zap.Logger) (appstatus.Provider, error) {
	switch cfg.Cluster {
	case "yarn":
		var decorate yarn.RequestDecorator
		if cfg.Yarn.AuthToken != "" {
			token := cfg.Yarn.AuthToken
			decorate = func(req *http.Request) error {
				req.Header.Set("Authorization", "Bearer "+token)
				return nil
			}
		}
		return yarn.New(yarn.Config{
			BaseURL:  cfg.Yarn.BaseURL,
			Decorate: decorate,
			Logger:   log,
		})
	case "kubernetes":
		client, err := kube.NewClient(cfg.Kube.Kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("build kubernetes client: %w", err)
		}
		var costs *kube.KubecostClient
		if cfg.Kube.KubecostURL != "" {
			costs, err = kube.NewKubecostClient(kube.KubecostConfig{
				BaseURL:   cfg.Kube.KubecostURL,
				Namespace: cfg.Kube.Namespace,
				Window:    cfg.Kube.KubecostWindow,
			})
			if err != nil {
				return nil, err
			}
		}
		return kube.New(kube.Config{
			Client:    client,
			Namespace: cfg.Kube.Namespace,
			Costs:     costs,
			Logger:    log,
		})
	}
	return nil, fmt.Errorf("unsupported cluster type %q", cfg.Cluster)
}
