package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/soaringjerry/dronerecon/internal/config"
)

// TokenIssuer hands out payment and rejection codes.
type TokenIssuer struct {
	cfg  *config.Config
	read func([]byte) (int, error)
}

func NewTokenIssuer(cfg *config.Config) *TokenIssuer {
	return &TokenIssuer{cfg: cfg, read: rand.Read}
}

// PaymentToken returns a fresh URL-safe token of the configured length.
func (t *TokenIssuer) PaymentToken() (string, error) {
	n := t.cfg.Tokens.PaymentTokenLength
	buf := make([]byte, n)
	if _, err := t.read(buf); err != nil {
		return "", fmt.Errorf("payment token: %w", err)
	}
	tok := base64.RawURLEncoding.EncodeToString(buf)
	return tok[:n], nil
}

// RejectionToken is the fixed code shown after a failed attention check.
func (t *TokenIssuer) RejectionToken(mix string) string {
	return t.cfg.RejectionTokenFor(mix)
}
