package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/idempotency"
	"github.com/soaringjerry/dronerecon/internal/middleware"
	"github.com/soaringjerry/dronerecon/internal/services"
)

// Deps wires the router. Guard defaults to Store.
type Deps struct {
	Config  *config.Config
	Store   Store
	Guard   idempotency.Guard
	Captcha services.CaptchaVerifier
	Logger  *slog.Logger
}

type Router struct {
	cfg         *config.Config
	store       Store
	log         *slog.Logger
	state       *middleware.StateCodec
	flow        *services.FlowController
	exports     *services.ExportService
	analytics   *services.AnalyticsService
	recruitment *services.RecruitmentService
	admin       *services.AdminAuth
}

func NewRouter(deps Deps) (*Router, error) {
	if deps.Config == nil || deps.Store == nil {
		return nil, errors.New("api: config and store are required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	guard := deps.Guard
	if guard == nil {
		guard = deps.Store
	}
	flow, err := services.NewFlowController(deps.Config, services.FlowDeps{
		Store:   deps.Store,
		Guard:   guard,
		Captcha: deps.Captcha,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:         deps.Config,
		store:       deps.Store,
		log:         log,
		state:       middleware.NewStateCodec(deps.Config.State),
		flow:        flow,
		exports:     services.NewExportService(deps.Config, deps.Store),
		analytics:   services.NewAnalyticsService(deps.Config, deps.Store),
		recruitment: services.NewRecruitmentService(deps.Store),
		admin:       services.NewAdminAuth(deps.Config.Admin),
	}, nil
}

func (rt *Router) Register(mux *http.ServeMux) {
	flow := func(h http.HandlerFunc) http.Handler {
		return middleware.NoStore(rt.state.WithState(h))
	}
	mux.Handle("/consentform", flow(rt.handleConsent))
	mux.Handle("/welcome", flow(rt.handleWelcome))
	mux.Handle("/questionnaires", flow(rt.handleQuestionnaires))
	mux.Handle("/game", flow(rt.handleGame))
	mux.Handle("/token", flow(rt.handleToken))
	mux.Handle("/alreadycompleted", flow(rt.terminal(services.StageAlreadyCompleted)))
	mux.Handle("/attentionfailure", flow(rt.terminal(services.StageAttentionFailure)))
	mux.Handle("/fishy", flow(rt.terminal(services.StageFishy)))

	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.NoStore(middleware.RequireAdmin(rt.admin, rt.log, h))
	}
	mux.Handle("/admin/api/sessions", admin(rt.handleSessions))
	mux.Handle("/admin/api/export", admin(rt.handleExport))
	mux.Handle("/admin/api/reliability", admin(rt.handleReliability))
	mux.Handle("/admin/api/recruitment", admin(rt.handleRecruitment))

	mux.HandleFunc("/health", rt.handleHealth)
	mux.HandleFunc("/version", rt.handleVersion)

	if dir := rt.cfg.Server.StaticDir; dir != "" {
		mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}
	mux.HandleFunc("/", rt.handleRoot)
}

// Handler returns the full middleware chain around a fresh mux.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	rt.Register(mux)
	secure := middleware.SecureHeaders(rt.cfg.State.SecureCookie)
	return middleware.RequestLogger(rt.log, secure(middleware.LocaleMiddleware(mux)))
}

// GET / keeps the recruitment query string on the way to the consent page.
func (rt *Router) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	target := "/consentform"
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
