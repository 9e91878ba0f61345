package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joacominatel/kqlpad/internal/database"
)

// Connection kinds.
const (
	KindKusto     = "kusto"
	KindSnowflake = "snowflake"
	KindPostgres  = "postgres"
	KindDuckDB    = "duckdb"
)

// Config represents the application configuration.
type Config struct {
	Connections []Connection `mapstructure:"connections" yaml:"connections"`
	Preferences Preferences  `mapstructure:"preferences" yaml:"preferences"`
	Execution   Execution    `mapstructure:"execution" yaml:"execution"`
	Log         Log          `mapstructure:"log" yaml:"log"`
	Metrics     Metrics      `mapstructure:"metrics" yaml:"metrics"`
}

// Connection represents a saved connection profile.
type Connection struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Kind     string `mapstructure:"kind" yaml:"kind"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Database string `mapstructure:"database" yaml:"database"`
	// TokenEnv names an environment variable holding the bearer token. The
	// OS keyring is used when it is empty or unset.
	TokenEnv  string         `mapstructure:"token_env" yaml:"token_env,omitempty"`
	Snowflake *SnowflakeAuth `mapstructure:"snowflake" yaml:"snowflake,omitempty"`
}

// SnowflakeAuth holds key-pair authentication settings.
type SnowflakeAuth struct {
	Account        string `mapstructure:"account" yaml:"account"`
	User           string `mapstructure:"user" yaml:"user"`
	Role           string `mapstructure:"role" yaml:"role,omitempty"`
	Warehouse      string `mapstructure:"warehouse" yaml:"warehouse,omitempty"`
	Schema         string `mapstructure:"schema" yaml:"schema,omitempty"`
	PrivateKeyPath string `mapstructure:"private_key_path" yaml:"private_key_path"`
	PublicKeyPath  string `mapstructure:"public_key_path" yaml:"public_key_path,omitempty"`
}

// Preferences holds user preferences.
type Preferences struct {
	Theme             string `mapstructure:"theme" yaml:"theme"`
	DefaultConnection string `mapstructure:"default_connection" yaml:"default_connection"`
}

// Execution holds the request options applied to every statement.
type Execution struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Application string        `mapstructure:"application" yaml:"application"`
	User        string        `mapstructure:"user" yaml:"user"`
}

// Log configures the structured logger.
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Metrics configures the metrics listener. An empty address disables it.
type Metrics struct {
	Address string `mapstructure:"address" yaml:"address"`
}

// Descriptor returns the identity the orchestrator and display use.
func (c Connection) Descriptor() database.ConnectionDescriptor {
	return database.ConnectionDescriptor{
		Name:     c.Name,
		Kind:     c.Kind,
		Endpoint: c.Endpoint,
		Database: c.Database,
	}
}

// DisplayString returns a human-readable summary of the connection.
func (c Connection) DisplayString() string {
	target := c.Endpoint
	if c.Kind == KindSnowflake && target == "" && c.Snowflake != nil {
		target = c.Snowflake.Account
	}
	if c.Kind == KindDuckDB && target == "" {
		target = ":memory:"
	}
	if c.Database != "" {
		target += "/" + c.Database
	}
	return c.Kind + " " + target
}

// ParseURL builds an unsaved connection from a URL given on the command
// line. http(s) URLs are clusters, postgres URLs are DSNs, and duckdb: URLs
// or *.duckdb paths are local database files.
func ParseURL(raw string) (Connection, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, ".duckdb") && !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "duckdb:") {
		return Connection{Name: "duckdb-" + filepath.Base(raw), Kind: KindDuckDB, Endpoint: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Connection{}, fmt.Errorf("invalid connection URL: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return Connection{}, fmt.Errorf("invalid connection URL %q: missing host", raw)
		}
		conn := Connection{
			Kind:     KindKusto,
			Endpoint: u.Scheme + "://" + u.Host,
			Database: strings.TrimPrefix(u.Path, "/"),
		}
		conn.Name = "kusto-" + u.Hostname()
		return conn, nil
	case "postgres", "postgresql":
		conn := Connection{
			Kind:     KindPostgres,
			Endpoint: raw,
			Database: strings.TrimPrefix(u.Path, "/"),
		}
		port := 5432
		if p := u.Port(); p != "" {
			port, _ = strconv.Atoi(p)
		}
		conn.Name = fmt.Sprintf("postgres-%s-%d-%s", u.Hostname(), port, conn.Database)
		return conn, nil
	case "duckdb":
		path := u.Opaque
		if path == "" {
			path = u.Host + u.Path
		}
		name := "memory"
		if path != "" {
			name = filepath.Base(path)
		}
		return Connection{Name: "duckdb-" + name, Kind: KindDuckDB, Endpoint: path}, nil
	default:
		return Connection{}, fmt.Errorf("unsupported connection URL scheme %q", u.Scheme)
	}
}

// HasConnection checks if a connection with the given name already exists.
func (cfg *Config) HasConnection(name string) bool {
	_, ok := cfg.Connection(name)
	return ok
}

// Connection returns the named connection.
func (cfg *Config) Connection(name string) (*Connection, bool) {
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == name {
			return &cfg.Connections[i], true
		}
	}
	return nil, false
}

// AddConnection appends a connection if it doesn't already exist.
func (cfg *Config) AddConnection(conn Connection) {
	if !cfg.HasConnection(conn.Name) {
		cfg.Connections = append(cfg.Connections, conn)
	}
}

// Validate reports every problem found in cfg.
func (cfg *Config) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for i, conn := range cfg.Connections {
		label := fmt.Sprintf("connections[%d]", i)
		if conn.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", label))
		} else {
			label = fmt.Sprintf("connection %q", conn.Name)
			if seen[conn.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate name", label))
			}
			seen[conn.Name] = true
		}
		if err := conn.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		}
	}

	if name := cfg.Preferences.DefaultConnection; name != "" && !seen[name] {
		errs = append(errs, fmt.Errorf("preferences.default_connection: unknown connection %q", name))
	}
	if cfg.Execution.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("execution.timeout must be positive, got %s", cfg.Execution.Timeout))
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

func (c Connection) validate() error {
	switch c.Kind {
	case KindKusto, KindPostgres:
		if strings.TrimSpace(c.Endpoint) == "" {
			return fmt.Errorf("endpoint is required for %s connections", c.Kind)
		}
	case KindSnowflake:
		if c.Snowflake == nil {
			return fmt.Errorf("snowflake settings are required")
		}
		if c.Snowflake.Account == "" || c.Snowflake.User == "" {
			return fmt.Errorf("snowflake.account and snowflake.user are required")
		}
		if c.Snowflake.PrivateKeyPath == "" {
			return fmt.Errorf("snowflake.private_key_path is required")
		}
	case KindDuckDB:
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	return nil
}
