package api

import (
	"net/http"

	"github.com/soaringjerry/dronerecon/internal/middleware"
	"github.com/soaringjerry/dronerecon/internal/services"
	"github.com/soaringjerry/dronerecon/internal/utils"
)

type flowResponse struct {
	Stage   services.Stage `json:"stage"`
	State   string         `json:"state,omitempty"`
	View    any            `json:"view,omitempty"`
	Message string         `json:"message,omitempty"`
}

func identityParams(r *http.Request) services.IdentityParams {
	q := r.URL.Query()
	return services.IdentityParams{
		ParticipantID: q.Get("PROLIFIC_PID"),
		StudyID:       q.Get("STUDY_ID"),
		SessionID:     q.Get("SESSION_ID"),
		ActivityMix:   q.Get("WEBAPP_USE"),
	}
}

func requestMeta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		UserAgent: r.UserAgent(),
		RemoteIP:  remoteIP(r),
		Query:     identityParams(r),
	}
}

// render signs the outcome's state into the cookie and the body. Informational stages also
// carry their page text in the request locale.
func (rt *Router) render(w http.ResponseWriter, r *http.Request, out *services.Outcome, err error) {
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	tok, err := rt.state.Write(w, out.State)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	resp := flowResponse{Stage: out.Stage, State: tok, View: out.View}
	if out.Stage.Terminal() && out.Stage != services.StageToken {
		resp.Message = utils.T(middleware.LocaleFromContext(r.Context()), "stage."+string(out.Stage))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /consentform
func (rt *Router) handleConsent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	out, err := rt.flow.Consent(r.Context(), identityParams(r))
	rt.render(w, r, out, err)
}

// GET, POST /welcome
func (rt *Router) handleWelcome(w http.ResponseWriter, r *http.Request) {
	st := middleware.StateFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		out, err := rt.flow.WelcomeView(r.Context(), st, requestMeta(r))
		rt.render(w, r, out, err)
	case http.MethodPost:
		var in services.WelcomeInput
		if err := decodeJSON(w, r, &in); err != nil {
			rt.fail(w, r, err)
			return
		}
		out, err := rt.flow.SubmitWelcome(r.Context(), st, &in, requestMeta(r))
		rt.render(w, r, out, err)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// GET, POST /questionnaires
func (rt *Router) handleQuestionnaires(w http.ResponseWriter, r *http.Request) {
	st := middleware.StateFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		out, err := rt.flow.QuestionnairesView(r.Context(), st)
		rt.render(w, r, out, err)
	case http.MethodPost:
		var in services.QuestionnaireInput
		if err := decodeJSON(w, r, &in); err != nil {
			rt.fail(w, r, err)
			return
		}
		out, err := rt.flow.SubmitQuestionnaires(r.Context(), st, &in)
		rt.render(w, r, out, err)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// GET, POST /game
// The task runner only needs an acknowledgement after posting; it navigates to /token itself.
func (rt *Router) handleGame(w http.ResponseWriter, r *http.Request) {
	st := middleware.StateFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		out, err := rt.flow.GameView(r.Context(), st)
		rt.render(w, r, out, err)
	case http.MethodPost:
		var in services.TaskSubmission
		if err := decodeJSON(w, r, &in); err != nil {
			rt.fail(w, r, err)
			return
		}
		out, err := rt.flow.SubmitGame(r.Context(), st, &in)
		if err != nil {
			rt.fail(w, r, err)
			return
		}
		if out.Stage != services.StageToken {
			rt.render(w, r, out, nil)
			return
		}
		if _, err := rt.state.Write(w, out.State); err != nil {
			rt.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "stage": out.Stage})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// GET /token
func (rt *Router) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	out, err := rt.flow.Token(r.Context(), middleware.StateFromContext(r.Context()))
	rt.render(w, r, out, err)
}

// terminal serves the informational end pages.
func (rt *Router) terminal(stage services.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		rt.render(w, r, rt.flow.Terminal(stage, middleware.StateFromContext(r.Context())), nil)
	}
}
