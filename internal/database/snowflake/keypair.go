package snowflake

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenLifetime = time.Hour

// TokenConfig holds what is needed to sign a key-pair JWT.
type TokenConfig struct {
	Account    string
	User       string
	PrivateKey []byte // PEM, PKCS#8 or PKCS#1
	// PublicKey is optional; the fingerprint is derived from the private key
	// when it is empty.
	PublicKey   []byte
	ExpireAfter time.Duration
}

// GenerateJWT returns a signed key-pair JWT.
func GenerateJWT(cfg TokenConfig, now time.Time) (string, error) {
	privKey, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return "", err
	}

	fp, err := fingerprint(cfg.PublicKey, privKey)
	if err != nil {
		return "", fmt.Errorf("fingerprint generation failed: %w", err)
	}

	account := normalizeAccount(cfg.Account)
	user := strings.ToUpper(cfg.User)
	expireAfter := cfg.ExpireAfter
	if expireAfter <= 0 {
		expireAfter = defaultTokenLifetime
	}

	now = now.UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    fmt.Sprintf("%s.%s.%s", account, user, fp),
		Subject:   fmt.Sprintf("%s.%s", account, user),
		Audience:  jwt.ClaimStrings{"snowflake"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expireAfter)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privKey)
	if err != nil {
		return "", fmt.Errorf("JWT signing failed: %w", err)
	}
	return signed, nil
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM format for private key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return rsaKey, nil
}

// fingerprint is the SHA256 of the DER-encoded public key.
func fingerprint(pubPEM []byte, privKey *rsa.PrivateKey) (string, error) {
	var der []byte
	if len(pubPEM) > 0 {
		block, _ := pem.Decode(pubPEM)
		if block == nil {
			return "", fmt.Errorf("invalid PEM for public key")
		}
		der = block.Bytes
	} else {
		var err error
		der, err = x509.MarshalPKIXPublicKey(&privKey.PublicKey)
		if err != nil {
			return "", err
		}
	}
	hash := sha256.Sum256(der)
	return "SHA256:" + base64.StdEncoding.EncodeToString(hash[:]), nil
}

// normalizeAccount uppercases the account locator and replaces periods with
// hyphens.
func normalizeAccount(account string) string {
	return strings.ToUpper(strings.ReplaceAll(account, ".", "-"))
}
