// Package config loads the vigild host configuration from vigil.toml,
// environment variables (VIGIL_ prefix) and defaults, and watches the
// file for live reload of the engine tunables.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the vigild host configuration.
type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	Server ServerConfig `mapstructure:"server"`
	Email  EmailConfig  `mapstructure:"email"`
	Log    LogConfig    `mapstructure:"log"`
}

// EngineConfig carries the diagnostics engine tunables.
type EngineConfig struct {
	Workers            int   `mapstructure:"workers"`              // worker pool size
	GuardBudgetSeconds int   `mapstructure:"guard_budget_seconds"` // per-callout budget
	ThrottleWarn       int64 `mapstructure:"throttle_warn"`        // tenths of a percent CPU
	ThrottleHigh       int64 `mapstructure:"throttle_high"`        // tenths of a percent CPU
}

// GuardBudget returns the callout budget as a duration.
func (c EngineConfig) GuardBudget() time.Duration {
	return time.Duration(c.GuardBudgetSeconds) * time.Second
}

// ServerConfig configures the HTTP status endpoint.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// EmailConfig configures alert mail delivery.
type EmailConfig struct {
	Server       string `mapstructure:"server"`
	Port         int    `mapstructure:"port"`
	From         string `mapstructure:"from"`
	To           string `mapstructure:"to"`
	MaxPerMinute int    `mapstructure:"max_per_minute"`
}

// LogConfig configures logging output.
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

// SetDefaults installs the default values onto a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.guard_budget_seconds", 30)
	v.SetDefault("engine.throttle_warn", 50)
	v.SetDefault("engine.throttle_high", 100)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 7334)

	v.SetDefault("email.server", "")
	v.SetDefault("email.port", 25)
	v.SetDefault("email.from", "vigil@localhost")
	v.SetDefault("email.to", "")
	v.SetDefault("email.max_per_minute", 6)

	v.SetDefault("log.json", false)
}
