package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "yarn", cfg.Cluster)
		assert.False(t, cfg.FailFast)
		assert.Equal(t, time.Duration(0), cfg.Interval)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "spark-jobs", cfg.Kube.Namespace)
		assert.Equal(t, "5d", cfg.Kube.KubecostWindow)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "jobtracker.yaml")
		content := `
cluster: kubernetes
fail_fast: true
interval: 90s
kube:
  namespace: batch-jobs
registry:
  root: /var/lib/jobtracker/jobs
  mirror_path: /var/lib/jobtracker/mirror.db
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "kubernetes", cfg.Cluster)
		assert.True(t, cfg.FailFast)
		assert.Equal(t, 90*time.Second, cfg.Interval)
		assert.Equal(t, "batch-jobs", cfg.Kube.Namespace)
		assert.Equal(t, "/var/lib/jobtracker/jobs", cfg.Registry.Root)
		assert.Equal(t, "/var/lib/jobtracker/mirror.db", cfg.Registry.MirrorPath)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("JOBTRACKER_CLUSTER", "kubernetes")
		t.Setenv("JOBTRACKER_LOGGING_LEVEL", "debug")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "kubernetes", cfg.Cluster)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "yarn without base url",
			mutate:  func(c *Config) { c.Cluster = "yarn" },
			wantErr: true,
		},
		{
			name: "yarn complete",
			mutate: func(c *Config) {
				c.Cluster = "yarn"
				c.Yarn.BaseURL = "https://rm.example.org:8090"
			},
			wantErr: false,
		},
		{
			name:    "kubernetes without kubeconfig is fine",
			mutate:  func(c *Config) { c.Cluster = "kubernetes" },
			wantErr: false,
		},
		{
			name:    "unknown cluster",
			mutate:  func(c *Config) { c.Cluster = "mesos" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			cfg.Registry.Root = "/var/lib/jobtracker/jobs"
			cfg.Results.OutputRoot = "/var/lib/jobtracker/results"
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("missing registry root", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Yarn.BaseURL = "https://rm.example.org:8090"
		cfg.Results.OutputRoot = "/var/lib/jobtracker/results"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing results output root", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Yarn.BaseURL = "https://rm.example.org:8090"
		cfg.Registry.Root = "/var/lib/jobtracker/jobs"
		assert.Error(t, cfg.Validate())
	})
}
