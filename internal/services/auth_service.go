package services

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/soaringjerry/dronerecon/internal/config"
)

// MinAdminPasswordLength applies to hashes produced by HashAdminPassword.
const MinAdminPasswordLength = 10

// AdminAuth checks admin credentials against the configured user and bcrypt hash.
type AdminAuth struct {
	user string
	hash []byte
}

func NewAdminAuth(cfg config.Admin) *AdminAuth {
	return &AdminAuth{user: strings.TrimSpace(cfg.User), hash: []byte(strings.TrimSpace(cfg.PasswordHash))}
}

// Enabled reports whether an admin hash is configured. Without one every admin request is refused.
func (a *AdminAuth) Enabled() bool {
	return a != nil && len(a.hash) > 0
}

func (a *AdminAuth) Verify(user, password string) error {
	if !a.Enabled() {
		return NewForbiddenError("admin access disabled")
	}
	if user == "" || password == "" {
		return NewUnauthorizedError("credentials required")
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil || !userOK {
		return NewUnauthorizedError("invalid credentials")
	}
	return nil
}

// HashAdminPassword produces the value for admin.password_hash.
func HashAdminPassword(password string) (string, error) {
	if len(strings.TrimSpace(password)) < MinAdminPasswordLength {
		return "", NewInvalidError("password too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
