package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/soaringjerry/dronerecon/internal/services"
)

type adminCtxKey int

const adminKey adminCtxKey = 9

// RequireAdmin guards admin routes with HTTP basic auth checked by auth.
func RequireAdmin(auth *services.AdminAuth, log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		if err := auth.Verify(user, pass); err != nil {
			if services.KindOf(err) == services.KindForbidden {
				http.Error(w, `{"error":"admin access disabled"}`, http.StatusForbidden)
				return
			}
			log.Warn("admin auth failed", slog.String("user", user), slog.String("remote", r.RemoteAddr))
			w.Header().Set("WWW-Authenticate", `Basic realm="dronerecon admin", charset="UTF-8"`)
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey, user)))
	})
}

// AdminFromContext returns the authenticated admin user name.
func AdminFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(adminKey).(string); ok {
		return v
	}
	return ""
}
