// Package clients opens the execution client for a configured connection.
package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joacominatel/kqlpad/internal/config"
	"github.com/joacominatel/kqlpad/internal/database"
	"github.com/joacominatel/kqlpad/internal/database/duckdb"
	"github.com/joacominatel/kqlpad/internal/database/kusto"
	"github.com/joacominatel/kqlpad/internal/database/postgres"
	"github.com/joacominatel/kqlpad/internal/database/snowflake"
)

// Factory is the database.ClientFactory for kqlpad connections.
type Factory struct {
	cfg        *config.Config
	secrets    *config.Secrets
	version    string
	logger     *slog.Logger
	httpClient *http.Client
	readFile   func(string) ([]byte, error)
}

var _ database.ClientFactory = (*Factory)(nil)

// NewFactory returns a factory resolving connections against cfg.
func NewFactory(cfg *config.Config, secrets *config.Secrets, version string, logger *slog.Logger) *Factory {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if secrets == nil {
		secrets = config.NewSecrets(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		cfg:      cfg,
		secrets:  secrets,
		version:  version,
		logger:   logger,
		readFile: os.ReadFile,
	}
}

// Open builds the client for conn. Connections not saved in the config are
// opened from the descriptor alone, which is enough for every kind except
// snowflake.
func (f *Factory) Open(ctx context.Context, conn database.ConnectionDescriptor) (database.Client, error) {
	profile := f.profile(conn)

	var (
		client database.Client
		err    error
	)
	switch profile.Kind {
	case config.KindKusto:
		client, err = f.openKusto(profile)
	case config.KindSnowflake:
		client, err = f.openSnowflake(profile)
	case config.KindPostgres:
		client, err = postgres.Connect(ctx, postgres.Config{DSN: profile.Endpoint, Database: profile.Database})
	case config.KindDuckDB:
		client, err = duckdb.Open(profile.Endpoint)
	default:
		return nil, fmt.Errorf("connection %q: unknown kind %q", profile.Name, profile.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s connection %q: %w", profile.Kind, profile.Name, err)
	}

	f.logger.Debug("client_opened",
		slog.String("connection", profile.Name),
		slog.String("kind", profile.Kind),
	)
	return client, nil
}

// profile merges the saved connection with the descriptor. The descriptor's
// database wins so a -database override reaches the client.
func (f *Factory) profile(conn database.ConnectionDescriptor) config.Connection {
	profile := config.Connection{
		Name:     conn.Name,
		Kind:     conn.Kind,
		Endpoint: conn.Endpoint,
		Database: conn.Database,
	}
	if saved, ok := f.cfg.Connection(conn.Name); ok {
		profile = *saved
		if conn.Database != "" {
			profile.Database = conn.Database
		}
	}
	return profile
}

func (f *Factory) openKusto(conn config.Connection) (database.Client, error) {
	token, err := f.secrets.Token(conn)
	if err != nil {
		return nil, err
	}
	if token == "" {
		f.logger.Warn("connection_without_token", slog.String("connection", conn.Name))
	}
	return kusto.NewClient(kusto.Config{
		Endpoint:      conn.Endpoint,
		Token:         token,
		ClientVersion: f.version,
		HTTPClient:    f.httpClient,
	})
}

func (f *Factory) openSnowflake(conn config.Connection) (database.Client, error) {
	auth := conn.Snowflake
	if auth == nil {
		return nil, fmt.Errorf("snowflake settings are required")
	}
	privateKey, err := f.readFile(auth.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	var publicKey []byte
	if auth.PublicKeyPath != "" {
		if publicKey, err = f.readFile(auth.PublicKeyPath); err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
	}
	return snowflake.NewClient(snowflake.Config{
		Account:    auth.Account,
		User:       auth.User,
		Role:       auth.Role,
		Schema:     auth.Schema,
		Warehouse:  auth.Warehouse,
		BaseURL:    conn.Endpoint,
		PrivateKey: privateKey,
		PublicKey:  publicKey,
		HTTPClient: f.httpClient,
	})
}
