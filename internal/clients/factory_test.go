package clients

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/joacominatel/kqlpad/internal/config"
	"github.com/joacominatel/kqlpad/internal/database"
	"github.com/joacominatel/kqlpad/internal/database/duckdb"
	"github.com/joacominatel/kqlpad/internal/database/kusto"
	"github.com/joacominatel/kqlpad/internal/database/snowflake"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFactoryOpensKustoWithResolvedToken(t *testing.T) {
	keyring.MockInit()
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer server.Close()

	cfg := &config.Config{Connections: []config.Connection{
		{Name: "help", Kind: config.KindKusto, Endpoint: server.URL, Database: "Samples", TokenEnv: "HELP_TOKEN"},
	}}
	secrets := config.NewSecrets(func(key string) (string, bool) {
		return "env-token", key == "HELP_TOKEN"
	})
	factory := NewFactory(cfg, secrets, "1.0.0", discardLogger())

	client, err := factory.Open(context.Background(), cfg.Connections[0].Descriptor())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer client.Close()
	if _, ok := client.(*kusto.Client); !ok {
		t.Fatalf("Open() = %T, want *kusto.Client", client)
	}
	if _, err := client.Execute(context.Background(), "Samples", "print 1", database.RequestOptions{RequestID: "r"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if gotAuth != "Bearer env-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func TestFactoryOpensUnsavedDuckDB(t *testing.T) {
	factory := NewFactory(nil, nil, "dev", discardLogger())
	client, err := factory.Open(context.Background(), database.ConnectionDescriptor{Name: "duckdb-memory", Kind: config.KindDuckDB})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer client.Close()
	if _, ok := client.(*duckdb.Engine); !ok {
		t.Fatalf("Open() = %T, want *duckdb.Engine", client)
	}
}

func writeKey(t *testing.T, dir string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey() error = %v", err)
	}
	path := filepath.Join(dir, "rsa_key.p8")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestFactoryOpensSnowflakeFromKeyFile(t *testing.T) {
	keyPath := writeKey(t, t.TempDir())
	cfg := &config.Config{Connections: []config.Connection{{
		Name:     "wh",
		Kind:     config.KindSnowflake,
		Database: "ANALYTICS",
		Snowflake: &config.SnowflakeAuth{
			Account:        "xy12345",
			User:           "analyst",
			PrivateKeyPath: keyPath,
		},
	}}}
	factory := NewFactory(cfg, nil, "dev", discardLogger())

	client, err := factory.Open(context.Background(), cfg.Connections[0].Descriptor())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := client.(*snowflake.Client); !ok {
		t.Fatalf("Open() = %T, want *snowflake.Client", client)
	}
}

func TestFactoryOpenErrors(t *testing.T) {
	cfg := &config.Config{Connections: []config.Connection{
		{Name: "nokeys", Kind: config.KindSnowflake},
		{Name: "missingkey", Kind: config.KindSnowflake, Snowflake: &config.SnowflakeAuth{
			Account: "a", User: "u", PrivateKeyPath: filepath.Join(t.TempDir(), "absent.p8"),
		}},
		{Name: "baddsn", Kind: config.KindPostgres, Endpoint: "postgres://%zz"},
	}}
	factory := NewFactory(cfg, nil, "dev", discardLogger())

	tests := []struct {
		conn database.ConnectionDescriptor
		want string
	}{
		{conn: cfg.Connections[0].Descriptor(), want: "snowflake settings are required"},
		{conn: cfg.Connections[1].Descriptor(), want: "read private key"},
		{conn: cfg.Connections[2].Descriptor(), want: "parse dsn"},
		{conn: database.ConnectionDescriptor{Name: "x", Kind: "oracle"}, want: `unknown kind "oracle"`},
		{conn: database.ConnectionDescriptor{Name: "k", Kind: config.KindKusto}, want: "endpoint is required"},
	}
	for _, tt := range tests {
		_, err := factory.Open(context.Background(), tt.conn)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("Open(%s) error = %v, want containing %q", tt.conn.Name, err, tt.want)
		}
	}
}

func TestFactoryProfileKeepsDatabaseOverride(t *testing.T) {
	cfg := &config.Config{Connections: []config.Connection{
		{Name: "pg", Kind: config.KindPostgres, Endpoint: "postgres://db/app", Database: "app"},
	}}
	factory := NewFactory(cfg, nil, "dev", discardLogger())

	got := factory.profile(database.ConnectionDescriptor{Name: "pg", Kind: config.KindPostgres, Database: "reporting"})
	if got.Endpoint != "postgres://db/app" || got.Database != "reporting" {
		t.Fatalf("profile() = %+v", got)
	}
	got = factory.profile(database.ConnectionDescriptor{Name: "pg"})
	if got.Database != "app" {
		t.Fatalf("profile() = %+v", got)
	}
}
