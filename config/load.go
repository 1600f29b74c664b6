package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/teranos/vigil/errors"
)

// ConfigFileName is the file Load searches for.
const ConfigFileName = "vigil.toml"

// Load reads configuration from the standard locations, in order of
// precedence: environment variables (VIGIL_ prefix), ./vigil.toml,
// ~/.vigil/vigil.toml, /etc/vigil/vigil.toml, then defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("vigil")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".vigil"))
	}
	v.AddConfigPath("/etc/vigil")
	v.SetEnvPrefix("VIGIL")
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file means defaults; anything else is real.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config")
		}
	}
	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	SetDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// WriteDefault writes a vigil.toml populated with the defaults, used by
// "vigild config init". Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file %s already exists", path)
	}

	v := viper.New()
	SetDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = ""
	if err := enc.Encode(tomlView(cfg)); err != nil {
		return errors.Wrap(err, "failed to encode default config")
	}
	return nil
}

// tomlView renders the config with the same keys viper reads back.
func tomlView(cfg *Config) map[string]any {
	return map[string]any{
		"engine": map[string]any{
			"workers":              cfg.Engine.Workers,
			"guard_budget_seconds": cfg.Engine.GuardBudgetSeconds,
			"throttle_warn":        cfg.Engine.ThrottleWarn,
			"throttle_high":        cfg.Engine.ThrottleHigh,
		},
		"server": map[string]any{
			"enabled": cfg.Server.Enabled,
			"port":    cfg.Server.Port,
		},
		"email": map[string]any{
			"server":         cfg.Email.Server,
			"port":           cfg.Email.Port,
			"from":           cfg.Email.From,
			"to":             cfg.Email.To,
			"max_per_minute": cfg.Email.MaxPerMinute,
		},
		"log": map[string]any{
			"json": cfg.Log.JSON,
		},
	}
}
