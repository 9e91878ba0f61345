package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "kqlpad"

// LookupFunc reads an environment variable.
type LookupFunc func(string) (string, bool)

// Secrets resolves connection tokens from the environment and the OS keyring.
type Secrets struct {
	lookup LookupFunc
}

// NewSecrets returns a resolver reading the process environment. A nil lookup
// means os.LookupEnv.
func NewSecrets(lookup LookupFunc) *Secrets {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Secrets{lookup: lookup}
}

// Token returns the bearer token for conn, or "" when none is configured.
// conn.TokenEnv wins over the keyring entry stored under the connection name.
func (s *Secrets) Token(conn Connection) (string, error) {
	if conn.TokenEnv != "" {
		if value, ok := s.lookup(conn.TokenEnv); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), nil
		}
	}
	if conn.Name == "" {
		return "", nil
	}

	token, err := keyring.Get(keyringService, conn.Name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read token for %q: %w", conn.Name, err)
	}
	return token, nil
}

// StoreToken saves a token for the named connection in the keyring.
func (s *Secrets) StoreToken(name, token string) error {
	token = strings.TrimSpace(token)
	if name == "" {
		return fmt.Errorf("connection name is required")
	}
	if token == "" {
		return fmt.Errorf("token is empty")
	}
	if err := keyring.Set(keyringService, name, token); err != nil {
		return fmt.Errorf("store token for %q: %w", name, err)
	}
	return nil
}

// DeleteToken removes the stored token. A missing entry is not an error.
func (s *Secrets) DeleteToken(name string) error {
	if err := keyring.Delete(keyringService, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete token for %q: %w", name, err)
	}
	return nil
}
