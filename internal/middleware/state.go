package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/services"
)

type stateCtxKey int

const stateKey stateCtxKey = 7

// StateClaims is the signed form of the participant's flow state.
type StateClaims struct {
	services.FlowState
	jwt.RegisteredClaims
}

// StateCodec signs flow state into an HS256 token and reads it back from the state cookie or
// an Authorization bearer header.
type StateCodec struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

func NewStateCodec(cfg config.State) *StateCodec {
	return &StateCodec{
		secret:     []byte(cfg.Secret),
		ttl:        time.Duration(cfg.TTLMinutes) * time.Minute,
		cookieName: cfg.CookieName,
		secure:     cfg.SecureCookie,
		now:        time.Now,
	}
}

func (c *StateCodec) Sign(state *services.FlowState) (string, error) {
	if state == nil {
		return "", errors.New("nil state")
	}
	now := c.now()
	claims := StateClaims{
		FlowState: *state,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *StateCodec) Parse(tok string) (*services.FlowState, error) {
	t, err := jwt.ParseWithClaims(tok, &StateClaims{}, func(*jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := t.Claims.(*StateClaims); ok && t.Valid {
		st := claims.FlowState
		return &st, nil
	}
	return nil, errors.New("invalid state token")
}

func (c *StateCodec) token(r *http.Request) string {
	if ck, err := r.Cookie(c.cookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// WithState attaches the request's flow state to its context. A missing, expired or forged
// token leaves the context without state.
func (c *StateCodec) WithState(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := c.token(r); tok != "" {
			if st, err := c.Parse(tok); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), stateKey, st))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// StateFromContext returns the state attached by WithState, or nil.
func StateFromContext(ctx context.Context) *services.FlowState {
	if st, ok := ctx.Value(stateKey).(*services.FlowState); ok {
		return st
	}
	return nil
}

// Write signs state and sets it as the state cookie. A nil state clears the cookie.
func (c *StateCodec) Write(w http.ResponseWriter, state *services.FlowState) (string, error) {
	if state == nil {
		c.Clear(w)
		return "", nil
	}
	tok, err := c.Sign(state)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(c.ttl / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return tok, nil
}

func (c *StateCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
