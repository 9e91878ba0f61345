package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configDir  = ".kqlpad"
	configFile = "config"
	configType = "yaml"
	envPrefix  = "KQLPAD"

	DefaultTimeout     = 5 * time.Minute
	DefaultApplication = "kqlpad"
)

// Load reads the configuration from dir/config.yaml, ~/.kqlpad when dir is
// empty. KQLPAD_* environment variables override file values, for example
// KQLPAD_EXECUTION_TIMEOUT=30s. A missing file yields the defaults.
func Load(dir string) (*Config, error) {
	dir, err := resolveDir(dir)
	if err != nil {
		return nil, fmt.Errorf("config dir: %w", err)
	}

	v := newViper(dir)
	cfg := &Config{}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", Path(dir), err)
	}

	return cfg, nil
}

// Save writes the configuration to dir/config.yaml, ~/.kqlpad when dir is
// empty.
func Save(cfg *Config, dir string) error {
	dir, err := resolveDir(dir)
	if err != nil {
		return fmt.Errorf("config dir: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType(configType)
	v.Set("connections", cfg.Connections)
	v.Set("preferences", cfg.Preferences)
	v.Set("execution", cfg.Execution)
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)

	if err := v.WriteConfigAs(Path(dir)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultConnection returns the default connection from config, or the first one.
func DefaultConnection(cfg *Config) *Connection {
	if len(cfg.Connections) == 0 {
		return nil
	}

	if cfg.Preferences.DefaultConnection != "" {
		if conn, ok := cfg.Connection(cfg.Preferences.DefaultConnection); ok {
			return conn
		}
	}

	return &cfg.Connections[0]
}

// Path returns the config file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, configFile+"."+configType)
}

// ParseLevel parses a log level name; empty means info.
func ParseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(raw) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid level %q", raw)
	}
	return level, nil
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(configFile)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key listed here can also be set from the environment.
	v.SetDefault("preferences.theme", "default")
	v.SetDefault("preferences.default_connection", "")
	v.SetDefault("execution.timeout", DefaultTimeout)
	v.SetDefault("execution.application", DefaultApplication)
	v.SetDefault("execution.user", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.address", "")
	return v
}

func resolveDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}
