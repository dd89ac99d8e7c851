// Package config loads the jobtracker configuration from defaults, an
// optional YAML file, and JOBTRACKER_* environment variables (in increasing
// precedence).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the full jobtracker configuration.
type Config struct {
	// Cluster selects the status provider variant: "yarn" or "kubernetes".
	Cluster string `mapstructure:"cluster"`

	// FailFast aborts a pass on the first unexpected per-job failure.
	FailFast bool `mapstructure:"fail_fast"`

	// Interval between passes in daemon mode. Zero means one-shot.
	Interval time.Duration `mapstructure:"interval"`

	// RateLimit caps external status queries per second. Zero = unlimited.
	RateLimit float64 `mapstructure:"rate_limit"`

	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Yarn     YarnConfig     `mapstructure:"yarn"`
	Kube     KubeConfig     `mapstructure:"kube"`
	Registry RegistryConfig `mapstructure:"registry"`
	Results  ResultsConfig  `mapstructure:"results"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// Basic switches to console logs on stderr instead of JSON.
	Basic bool `mapstructure:"basic"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type YarnConfig struct {
	// BaseURL is the YARN ResourceManager REST API root.
	BaseURL string `mapstructure:"base_url"`
	// AuthToken, if set, is sent as a bearer token on status requests.
	AuthToken string `mapstructure:"auth_token"`
}

type KubeConfig struct {
	Namespace      string `mapstructure:"namespace"`
	Kubeconfig     string `mapstructure:"kubeconfig"`
	KubecostURL    string `mapstructure:"kubecost_url"`
	KubecostWindow string `mapstructure:"kubecost_window"`
}

type RegistryConfig struct {
	// Root is the primary registry root directory.
	Root string `mapstructure:"root"`
	// MirrorPath is the secondary registry SQLite file. Empty disables the
	// mirror.
	MirrorPath string `mapstructure:"mirror_path"`
}

type ResultsConfig struct {
	// OutputRoot is the directory holding per-job output metadata.
	OutputRoot string `mapstructure:"output_root"`
}

type CleanupConfig struct {
	// Endpoint receives asynchronous dependency cleanup tasks. Empty
	// disables cleanup scheduling.
	Endpoint string `mapstructure:"endpoint"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Cluster {
	case "yarn":
		if strings.TrimSpace(c.Yarn.BaseURL) == "" {
			return fmt.Errorf("yarn.base_url is required when cluster=yarn")
		}
	case "kubernetes":
		// The kubeconfig may come from the ambient environment.
	default:
		return fmt.Errorf("cluster must be yarn or kubernetes, got %q", c.Cluster)
	}
	if strings.TrimSpace(c.Registry.Root) == "" {
		return fmt.Errorf("registry.root is required")
	}
	if strings.TrimSpace(c.Results.OutputRoot) == "" {
		return fmt.Errorf("results.output_root is required")
	}
	return nil
}

// Load reads configuration from defaults, the optional file at path, and
// JOBTRACKER_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("cluster", "yarn")
	v.SetDefault("fail_fast", false)
	v.SetDefault("interval", "0s")
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.basic", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("kube.namespace", "spark-jobs")
	v.SetDefault("kube.kubecost_window", "5d")
	v.SetDefault("registry.root", "")
	v.SetDefault("registry.mirror_path", "")
	v.SetDefault("results.output_root", "")
	v.SetDefault("cleanup.endpoint", "")

	v.SetEnvPrefix("JOBTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
