package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

const sampleConfig = `
connections:
  - name: help
    kind: kusto
    endpoint: https://help.kusto.windows.net
    database: Samples
    token_env: KQLPAD_TEST_KUSTO_TOKEN
  - name: warehouse
    kind: snowflake
    database: ANALYTICS
    snowflake:
      account: xy12345
      user: analyst
      warehouse: COMPUTE_WH
      private_key_path: /keys/rsa_key.p8
  - name: local
    kind: duckdb
    endpoint: /tmp/local.duckdb
preferences:
  default_connection: warehouse
execution:
  timeout: 90s
log:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return dir
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Execution.Timeout != DefaultTimeout {
		t.Fatalf("Execution.Timeout = %v", cfg.Execution.Timeout)
	}
	if cfg.Execution.Application != DefaultApplication {
		t.Fatalf("Execution.Application = %q", cfg.Execution.Application)
	}
	if cfg.Log.Level != "info" || cfg.Preferences.Theme != "default" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Connections) != 0 {
		t.Fatalf("Connections = %+v", cfg.Connections)
	}
}

func TestLoadReadsFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Connections) != 3 {
		t.Fatalf("Connections = %+v", cfg.Connections)
	}
	if cfg.Execution.Timeout != 90*time.Second {
		t.Fatalf("Execution.Timeout = %v", cfg.Execution.Timeout)
	}
	wh := cfg.Connections[1]
	if wh.Snowflake == nil || wh.Snowflake.Warehouse != "COMPUTE_WH" {
		t.Fatalf("snowflake = %+v", wh.Snowflake)
	}
	if got := DefaultConnection(cfg); got == nil || got.Name != "warehouse" {
		t.Fatalf("DefaultConnection() = %+v", got)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("KQLPAD_EXECUTION_TIMEOUT", "30s")
	t.Setenv("KQLPAD_LOG_LEVEL", "warn")
	t.Setenv("KQLPAD_METRICS_ADDRESS", ":9464")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Execution.Timeout != 30*time.Second {
		t.Fatalf("Execution.Timeout = %v", cfg.Execution.Timeout)
	}
	if cfg.Log.Level != "warn" || cfg.Metrics.Address != ":9464" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown kind",
			content: "connections:\n  - name: x\n    kind: oracle\n",
			want:    `unknown kind "oracle"`,
		},
		{
			name:    "missing endpoint",
			content: "connections:\n  - name: x\n    kind: kusto\n",
			want:    "endpoint is required",
		},
		{
			name:    "duplicate names",
			content: "connections:\n  - {name: x, kind: duckdb}\n  - {name: x, kind: duckdb}\n",
			want:    "duplicate name",
		},
		{
			name:    "non-positive timeout",
			content: "execution:\n  timeout: 0s\n",
			want:    "execution.timeout must be positive",
		},
		{
			name:    "unknown default",
			content: "preferences:\n  default_connection: ghost\n",
			want:    `unknown connection "ghost"`,
		},
		{
			name:    "bad level",
			content: "log:\n  level: loud\n",
			want:    "log.level",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Connections: []Connection{
			{Name: "help", Kind: KindKusto, Endpoint: "https://help.kusto.windows.net", Database: "Samples"},
			{Name: "wh", Kind: KindSnowflake, Snowflake: &SnowflakeAuth{Account: "a", User: "u", PrivateKeyPath: "/k.p8"}},
		},
		Preferences: Preferences{Theme: "default", DefaultConnection: "help"},
		Execution:   Execution{Timeout: 2 * time.Minute, Application: "kqlpad"},
		Log:         Log{Level: "info"},
	}
	if err := Save(cfg, dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.Connections) != 2 || loaded.Connections[1].Snowflake.PrivateKeyPath != "/k.p8" {
		t.Fatalf("Connections = %+v", loaded.Connections)
	}
	if loaded.Execution.Timeout != 2*time.Minute || loaded.Preferences.DefaultConnection != "help" {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw  string
		want Connection
	}{
		{
			raw:  "https://help.kusto.windows.net/Samples",
			want: Connection{Name: "kusto-help.kusto.windows.net", Kind: KindKusto, Endpoint: "https://help.kusto.windows.net", Database: "Samples"},
		},
		{
			raw:  "postgres://app@db.local/shop?sslmode=disable",
			want: Connection{Name: "postgres-db.local-5432-shop", Kind: KindPostgres, Endpoint: "postgres://app@db.local/shop?sslmode=disable", Database: "shop"},
		},
		{
			raw:  "duckdb:data/local.duckdb",
			want: Connection{Name: "duckdb-local.duckdb", Kind: KindDuckDB, Endpoint: "data/local.duckdb"},
		},
		{
			raw:  "warehouse.duckdb",
			want: Connection{Name: "duckdb-warehouse.duckdb", Kind: KindDuckDB, Endpoint: "warehouse.duckdb"},
		},
		{
			raw:  "duckdb://",
			want: Connection{Name: "duckdb-memory", Kind: KindDuckDB},
		},
	}
	for _, tt := range tests {
		got, err := ParseURL(tt.raw)
		if err != nil {
			t.Fatalf("ParseURL(%q) error = %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseURL(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}

	if _, err := ParseURL("ftp://nope"); err == nil {
		t.Fatal("ParseURL(ftp) expected error")
	}
}

func TestParseLevel(t *testing.T) {
	if level, err := ParseLevel("DEBUG"); err != nil || level != slog.LevelDebug {
		t.Fatalf("ParseLevel(DEBUG) = %v, %v", level, err)
	}
	if level, err := ParseLevel(""); err != nil || level != slog.LevelInfo {
		t.Fatalf("ParseLevel('') = %v, %v", level, err)
	}
}

func TestDisplayString(t *testing.T) {
	conn := Connection{Kind: KindKusto, Endpoint: "https://help.kusto.windows.net", Database: "Samples"}
	if got := conn.DisplayString(); got != "kusto https://help.kusto.windows.net/Samples" {
		t.Fatalf("DisplayString() = %q", got)
	}
	if got := (Connection{Kind: KindDuckDB}).DisplayString(); got != "duckdb :memory:" {
		t.Fatalf("DisplayString() = %q", got)
	}
}

func TestSecretsPreferEnvironment(t *testing.T) {
	keyring.MockInit()
	secrets := NewSecrets(func(key string) (string, bool) {
		if key == "HELP_TOKEN" {
			return " from-env ", true
		}
		return "", false
	})
	if err := secrets.StoreToken("help", "from-keyring"); err != nil {
		t.Fatalf("StoreToken() error = %v", err)
	}

	token, err := secrets.Token(Connection{Name: "help", TokenEnv: "HELP_TOKEN"})
	if err != nil || token != "from-env" {
		t.Fatalf("Token() = %q, %v", token, err)
	}
	token, err = secrets.Token(Connection{Name: "help", TokenEnv: "UNSET"})
	if err != nil || token != "from-keyring" {
		t.Fatalf("Token() = %q, %v", token, err)
	}
}

func TestSecretsMissingTokenIsEmpty(t *testing.T) {
	keyring.MockInit()
	secrets := NewSecrets(nil)
	token, err := secrets.Token(Connection{Name: "nobody"})
	if err != nil || token != "" {
		t.Fatalf("Token() = %q, %v", token, err)
	}
	if err := secrets.DeleteToken("nobody"); err != nil {
		t.Fatalf("DeleteToken() error = %v", err)
	}
	if err := secrets.StoreToken("x", "  "); err == nil {
		t.Fatal("StoreToken() expected error for empty token")
	}
}
