// Package config loads layered nimbusview configuration.
//
// Precedence, highest first: runtime overrides, NIMBUSVIEW_* environment
// variables, the first config file found, embedded defaults.
package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/nimbusview/pkg/listing"
	"github.com/3leaps/nimbusview/pkg/navigator"
)

// Config is the effective configuration.
type Config struct {
	Source   SourceConfig   `mapstructure:"source" yaml:"source"`
	Browse   BrowseConfig   `mapstructure:"browse" yaml:"browse"`
	Prefetch PrefetchConfig `mapstructure:"prefetch" yaml:"prefetch"`
	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Health   HealthConfig   `mapstructure:"health" yaml:"health"`
}

// SourceConfig selects the container to browse.
type SourceConfig struct {
	URI            string `mapstructure:"uri" yaml:"uri"`
	Region         string `mapstructure:"region" yaml:"region"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	Profile        string `mapstructure:"profile" yaml:"profile"`
	Anonymous      bool   `mapstructure:"anonymous" yaml:"anonymous"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
	SASToken       string `mapstructure:"sas_token" yaml:"sas_token"`
}

// BrowseConfig tunes navigation.
type BrowseConfig struct {
	PageSize          int    `mapstructure:"page_size" yaml:"page_size"`
	PrefetchAncestors bool   `mapstructure:"prefetch_ancestors" yaml:"prefetch_ancestors"`
	PrefetchChildren  bool   `mapstructure:"prefetch_children" yaml:"prefetch_children"`
	DefaultSort       string `mapstructure:"default_sort" yaml:"default_sort"`
	MaxSessions       int    `mapstructure:"max_sessions" yaml:"max_sessions"`
}

// PrefetchConfig bounds background cache warming.
type PrefetchConfig struct {
	Parallel int           `mapstructure:"parallel" yaml:"parallel"`
	Rate     float64       `mapstructure:"rate" yaml:"rate"`
	Burst    int           `mapstructure:"burst" yaml:"burst"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// RetryConfig bounds transport retries.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// HealthConfig toggles the /health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Validate checks ranges that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.Browse.PageSize < 1 {
		return fmt.Errorf("browse.page_size must be >= 1, got %d", c.Browse.PageSize)
	}
	if c.Browse.MaxSessions < 1 {
		return fmt.Errorf("browse.max_sessions must be >= 1, got %d", c.Browse.MaxSessions)
	}
	if _, err := listing.ParseSortSpec(c.Browse.DefaultSort); err != nil {
		return fmt.Errorf("browse.default_sort: %w", err)
	}
	if c.Prefetch.Parallel < 1 {
		return fmt.Errorf("prefetch.parallel must be >= 1, got %d", c.Prefetch.Parallel)
	}
	if c.Prefetch.Rate < 0 {
		return fmt.Errorf("prefetch.rate must be >= 0, got %g", c.Prefetch.Rate)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Navigator converts the browse, prefetch and retry sections into a
// navigator config.
func (c *Config) Navigator(logger *zap.Logger, metrics navigator.Metrics) (navigator.Config, error) {
	spec, err := listing.ParseSortSpec(c.Browse.DefaultSort)
	if err != nil {
		return navigator.Config{}, fmt.Errorf("browse.default_sort: %w", err)
	}
	return navigator.Config{
		PageSize:          c.Browse.PageSize,
		Sort:              spec,
		PrefetchAncestors: c.Browse.PrefetchAncestors,
		PrefetchChildren:  c.Browse.PrefetchChildren,
		Prefetch: navigator.PrefetchConfig{
			Parallel: c.Prefetch.Parallel,
			Rate:     c.Prefetch.Rate,
			Burst:    c.Prefetch.Burst,
			Timeout:  c.Prefetch.Timeout,
		},
		Retry: navigator.RetryPolicy{
			MaxAttempts:  c.Retry.MaxAttempts,
			InitialDelay: c.Retry.InitialDelay,
			MaxDelay:     c.Retry.MaxDelay,
		},
		Logger:  logger,
		Metrics: metrics,
	}, nil
}
