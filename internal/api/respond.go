package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/soaringjerry/dronerecon/internal/fault"
	"github.com/soaringjerry/dronerecon/internal/middleware"
	"github.com/soaringjerry/dronerecon/internal/services"
)

const (
	genericError = "something went wrong, please retry"
	maxBodyBytes = 8 << 20
)

type errorResponse struct {
	Error  string                `json:"error"`
	Fields []services.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// decodeJSON reads a bounded JSON body into dst. A malformed body is reported as a
// validation failure on the "body" field.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		v := &services.ValidationError{}
		v.Add("body", "malformed request body")
		return v
	}
	return nil
}

// fail maps a service error onto a status code. Anything unclassified is a 500 with the
// generic message; the cause only goes to the log.
func (rt *Router) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: genericError, Fields: ve.Fields})
		return
	case errors.Is(err, services.ErrCaptchaFailed):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  genericError,
			Fields: []services.FieldError{{Field: "captcha_token", Message: "captcha verification failed"}},
		})
		return
	}
	switch services.KindOf(err) {
	case services.KindInvalid:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case services.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
		return
	case services.KindConflict:
		writeError(w, http.StatusConflict, err.Error())
		return
	case services.KindForbidden:
		writeError(w, http.StatusForbidden, err.Error())
		return
	case services.KindUnauthorized:
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	attrs := []any{slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("err", err)}
	if st := middleware.StateFromContext(r.Context()); st != nil {
		attrs = append(attrs, slog.String("session", st.SessionID))
	}
	if errors.Is(err, services.ErrUnknownStimulus) || errors.Is(err, services.ErrTrialNotFound) || fault.IsInternalError(err) {
		rt.log.Error("data integrity failure", attrs...)
	} else {
		rt.log.Error("request failed", attrs...)
	}
	writeError(w, http.StatusInternalServerError, genericError)
}

// remoteIP prefers the first X-Forwarded-For hop, as the server normally runs behind a proxy.
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
