// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/campushub/notice-harvester/internal/harvest"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Targets   []TargetConfig  `mapstructure:"targets"`
}

// ServerConfig controls the read-only HTTP API.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_minutes"`
}

// HTTPConfig configures the fetch client's timeout and retry envelope.
type HTTPConfig struct {
	UserAgent        string `mapstructure:"user_agent"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
}

// HeadlessConfig configures the browser renderer used for menu discovery.
type HeadlessConfig struct {
	MaxParallel   int `mapstructure:"max_parallel"`
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
}

// DiscoveryConfig governs the hierarchy resolver.
type DiscoveryConfig struct {
	// OverridesFile points at the manual board listing table; empty disables
	// overrides.
	OverridesFile string `mapstructure:"overrides_file"`
	PolitenessMs  int    `mapstructure:"politeness_ms"`
}

// HarvestConfig governs the incremental page walker.
type HarvestConfig struct {
	PageCap       int `mapstructure:"page_cap"`
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// SnapshotConfig selects where unextractable pages are archived.
type SnapshotConfig struct {
	// Backend is "none", "local", or "gcs".
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig holds batch-event publication settings; an empty project id
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TargetConfig is one configured discovery entry point.
type TargetConfig struct {
	Name        string `mapstructure:"name"`
	URL         string `mapstructure:"url"`
	Kind        string `mapstructure:"kind"`
	MenuKeyword string `mapstructure:"menu_keyword"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("http.user_agent", "notice-harvester/0.1")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("discovery.politeness_ms", 500)
	v.SetDefault("harvest.page_cap", 10)
	v.SetDefault("harvest.max_concurrent", 8)
	v.SetDefault("snapshot.backend", "none")
	v.SetDefault("pubsub.topic", "harvest-batches")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Harvest.PageCap <= 0 {
		return fmt.Errorf("harvest.page_cap must be > 0")
	}
	if c.Harvest.MaxConcurrent <= 0 {
		return fmt.Errorf("harvest.max_concurrent must be > 0")
	}
	switch c.Snapshot.Backend {
	case "", "none":
	case "local":
		if c.Snapshot.LocalDir == "" {
			return fmt.Errorf("snapshot.local_dir is required for the local backend")
		}
	case "gcs":
		if c.Snapshot.GCSBucket == "" {
			return fmt.Errorf("snapshot.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("snapshot.backend %q is not one of none, local, gcs", c.Snapshot.Backend)
	}
	for i, target := range c.Targets {
		if target.Name == "" || target.URL == "" {
			return fmt.Errorf("targets[%d]: name and url are required", i)
		}
		switch harvest.InstitutionKind(target.Kind) {
		case harvest.KindRenderedMenu, harvest.KindDirectoryPage, harvest.KindGraduateUmbrella:
		default:
			return fmt.Errorf("targets[%d]: unknown kind %q", i, target.Kind)
		}
	}
	return nil
}

// HarvestTargets converts the configured targets to domain values.
func (c Config) HarvestTargets() []harvest.Target {
	out := make([]harvest.Target, 0, len(c.Targets))
	for _, t := range c.Targets {
		out = append(out, harvest.Target{
			Name:        t.Name,
			URL:         t.URL,
			Kind:        harvest.InstitutionKind(t.Kind),
			MenuKeyword: t.MenuKeyword,
		})
	}
	return out
}

// FetchTimeout returns the HTTP timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
