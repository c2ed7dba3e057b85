package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/soaringjerry/dronerecon/internal/middleware"
	"github.com/soaringjerry/dronerecon/internal/models"
	"github.com/soaringjerry/dronerecon/internal/services"
	"github.com/soaringjerry/dronerecon/internal/utils"
)

// GET /admin/api/sessions
func (rt *Router) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	sessions, err := rt.exports.Sessions(r.Context())
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "count": len(sessions)})
}

// GET /admin/api/export?kind=trials|questionnaires|sessions|scores|strategies[&format=long|wide][&questionnaire=name]
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	q := r.URL.Query()
	res, err := rt.exports.ExportCSV(r.Context(), services.ExportParams{
		Kind:          q.Get("kind"),
		Format:        q.Get("format"),
		Questionnaire: q.Get("questionnaire"),
	})
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	actor := middleware.AdminFromContext(r.Context())
	rt.audit(r.Context(), actor, "export", q.Get("kind"), res.Filename)
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(res.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// GET /admin/api/reliability?questionnaire=name
func (rt *Router) handleReliability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	name := r.URL.Query().Get("questionnaire")
	if name == "" {
		writeError(w, http.StatusBadRequest, "questionnaire is required")
		return
	}
	report, err := rt.analytics.Reliability(r.Context(), name)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GET /admin/api/recruitment?subject_id=...
// POST /admin/api/recruitment
func (rt *Router) handleRecruitment(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rows, err := rt.recruitment.List(r.Context(), r.URL.Query().Get("subject_id"))
		if err != nil {
			rt.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"recruitment": rows})
	case http.MethodPost:
		var in services.RecruitmentInput
		if err := decodeJSON(w, r, &in); err != nil {
			rt.fail(w, r, err)
			return
		}
		rec, err := rt.recruitment.Record(r.Context(), middleware.AdminFromContext(r.Context()), in)
		if err != nil {
			rt.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (rt *Router) audit(ctx context.Context, actor, action, target, note string) {
	err := rt.store.AddAudit(ctx, models.AuditEntry{
		Time:   time.Now().UTC(),
		Actor:  actor,
		Action: action,
		Target: target,
		Note:   note,
	})
	if err != nil {
		rt.log.Warn("audit write failed", slog.String("action", action), slog.Any("err", err))
	}
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := rt.store.Ping(ctx); err != nil {
		rt.log.Warn("health check failed", slog.Any("err", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":  false,
			"msg": utils.T(locale, "error.retry"),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       "dronerecon",
		"locale":     locale,
		"msg":        utils.T(locale, "health.ok"),
		"commit":     rt.cfg.Server.Commit,
		"build_time": rt.cfg.Server.BuildTime,
	})
}

func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"commit":     rt.cfg.Server.Commit,
		"build_time": rt.cfg.Server.BuildTime,
	})
}
