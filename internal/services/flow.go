package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/fault"
	"github.com/soaringjerry/dronerecon/internal/idempotency"
	"github.com/soaringjerry/dronerecon/internal/models"
)

const (
	tokenAttempts = 3
	claimTTL      = 10 * time.Minute
)

// QuestionnaireRecord is everything written when the questionnaire battery is submitted.
type QuestionnaireRecord struct {
	SessionID              string
	SubjectID              string
	PsychHistory           []string
	Answers                []*models.QuestionnaireQ
	EndTime                time.Time
	Passed                 bool
	QuestionnaireCompleted bool
	SessionCompleted       bool
}

// FlowStore is the persistence the experiment flow needs.
type FlowStore interface {
	ParticipantStore
	ConsentStore
	StimulusStore
	TaskStore
	GetSession(ctx context.Context, id string) (*models.Session, error)
	CreateSession(ctx context.Context, s *models.Session) error
	SaveQuestionnaireSubmission(ctx context.Context, rec *QuestionnaireRecord) error
}

// CaptchaVerifier checks a captcha response token with the provider.
type CaptchaVerifier func(ctx context.Context, token, remoteIP string) (bool, error)

type FlowDeps struct {
	Store   FlowStore
	Guard   idempotency.Guard
	Captcha CaptchaVerifier
	Logger  *slog.Logger
}

// FlowController sequences consent, registration, questionnaires, the task and token issuance.
type FlowController struct {
	cfg       *config.Config
	store     FlowStore
	guard     idempotency.Guard
	captcha   CaptchaVerifier
	log       *slog.Logger
	rules     *ConditionalRules
	consent   *ConsentService
	registry  *ParticipantRegistry
	forms     *FormProcessor
	attention *AttentionEvaluator
	tokens    *TokenIssuer
	tasks     *TaskService
	responses *ResponseService
	now       func() time.Time
	idGen     func() string
}

func NewFlowController(cfg *config.Config, deps FlowDeps) (*FlowController, error) {
	rules, err := NewConditionalRules(cfg.Conditional)
	if err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &FlowController{
		cfg:       cfg,
		store:     deps.Store,
		guard:     deps.Guard,
		captcha:   deps.Captcha,
		log:       log,
		rules:     rules,
		consent:   NewConsentService(cfg, deps.Store),
		registry:  NewParticipantRegistry(deps.Store),
		forms:     NewFormProcessor(cfg, rules),
		attention: NewAttentionEvaluator(cfg),
		tokens:    NewTokenIssuer(cfg),
		tasks:     NewTaskService(cfg, deps.Store),
		responses: NewResponseService(deps.Store),
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     uuid.NewString,
	}, nil
}

func (c *FlowController) route(stage Stage, state *FlowState, view any) *Outcome {
	return &Outcome{Stage: stage, State: state, View: view}
}

func (c *FlowController) fishy(reason string, state *FlowState) *Outcome {
	attrs := []any{"reason", reason}
	if state != nil {
		attrs = append(attrs, "pid", state.ExternalID, "session", state.SessionID)
	}
	c.log.Info("routing to fishy", attrs...)
	return c.route(StageFishy, nil, nil)
}

// Consent resolves the participant's identity and pins the activity mix.
func (c *FlowController) Consent(ctx context.Context, p IdentityParams) (*Outcome, error) {
	st, ok, err := c.consent.Begin(ctx, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return c.fishy("missing or invalid identity parameters", nil), nil
	}
	return c.route(StageConsent, st, ConsentView{Prolific: c.cfg.Experiment.Prolific, ActivityMix: st.ActivityMix}), nil
}

// identity prefers the signed state; a participant arriving without it is resolved from the
// query string under the same rules as the consent page.
func (c *FlowController) identity(state *FlowState, q IdentityParams) (*FlowState, bool) {
	if state != nil && state.ActivityMix != "" {
		cp := *state
		return &cp, true
	}
	if c.cfg.Experiment.Prolific {
		return c.consent.Resolve(q)
	}
	mix := c.cfg.Experiment.DefaultActivityMix
	if strings.TrimSpace(q.ActivityMix) != "" {
		var ok bool
		if mix, ok = config.NormalizeActivityMix(q.ActivityMix); !ok {
			return nil, false
		}
	}
	return &FlowState{ActivityMix: mix}, true
}

func (c *FlowController) subjectSource() string {
	if c.cfg.Experiment.Prolific && c.cfg.Experiment.Deployment {
		return SourceProlific
	}
	return SourceInternal
}

// WelcomeView renders registration and the pre-task forms.
func (c *FlowController) WelcomeView(ctx context.Context, state *FlowState, meta RequestMeta) (*Outcome, error) {
	st, ok := c.identity(state, meta.Query)
	if !ok {
		return c.fishy("missing or invalid identity parameters", state), nil
	}
	existing := false
	if st.ExternalID != "" {
		var err error
		if _, existing, err = c.registry.FindOrFlagExisting(ctx, st.ExternalID, c.subjectSource()); err != nil {
			return nil, err
		}
	}
	if existing && c.cfg.Experiment.Deployment {
		c.log.Info("returning participant", "pid", st.ExternalID)
		return c.route(StageAlreadyCompleted, nil, nil), nil
	}

	keys := make([]string, 0, len(c.cfg.Substances))
	for _, s := range c.cfg.Substances {
		keys = append(keys, s.Key)
	}
	view := WelcomeView{
		Message:       WelcomeMessage(!existing, st.ActivityMix),
		NewUser:       !existing,
		Substances:    c.cfg.Substances,
		SleepQuality:  c.cfg.Sleep.Quality,
		SleepQuantity: c.cfg.Sleep.Quantity,
		Conditional:   c.rules.Describe(keys...),
	}
	if c.cfg.Captcha.Enabled {
		view.CaptchaSiteKey = c.cfg.Captcha.SiteKey
	}
	if !existing {
		reg := c.cfg.Registration
		view.Registration = &RegistrationView{
			AskUserID: !c.cfg.Experiment.Prolific,
			MinAge:    reg.MinAge,
			MaxAge:    reg.MaxAge,
			Sexes:     reg.Sexes,
			Genders:   reg.Genders,
			Education: reg.Education,
		}
		if !c.cfg.Experiment.Prolific {
			view.Registration.SubjectSources = reg.SubjectSources
		}
	}
	return c.route(StageWelcome, st, view), nil
}

// SubmitWelcome validates every welcome form, then creates the session (and the subject
// for newcomers) in one transaction.
func (c *FlowController) SubmitWelcome(ctx context.Context, state *FlowState, in *WelcomeInput, meta RequestMeta) (*Outcome, error) {
	if in == nil {
		in = &WelcomeInput{}
	}
	if c.cfg.Captcha.Enabled {
		if c.captcha == nil {
			return nil, errors.New("captcha enabled without verifier")
		}
		ok, err := c.captcha(ctx, in.CaptchaToken, meta.RemoteIP)
		if err != nil {
			return nil, fmt.Errorf("verify captcha: %w", err)
		}
		if !ok {
			c.log.Warn("captcha rejected", "ip", meta.RemoteIP)
			return nil, ErrCaptchaFailed
		}
	}
	st, ok := c.identity(state, meta.Query)
	if !ok {
		return c.fishy("missing or invalid identity parameters", state), nil
	}

	v := &ValidationError{}
	externalID, source := st.ExternalID, c.subjectSource()
	if !c.cfg.Experiment.Prolific && in.Registration != nil {
		externalID = strings.TrimSpace(in.Registration.UserID)
		source = in.Registration.SubjectSource
	}

	var subject *models.Subject
	existing := false
	if externalID != "" {
		var err error
		if subject, existing, err = c.registry.FindOrFlagExisting(ctx, externalID, source); err != nil {
			return nil, err
		}
	}
	if existing && c.cfg.Experiment.Deployment {
		c.log.Info("returning participant", "pid", externalID)
		return c.route(StageAlreadyCompleted, nil, nil), nil
	}

	start := c.now()
	var demo Demographics
	if !existing {
		demo, start = c.forms.Registration(in.Registration, v)
	}
	substances := c.forms.Substances(in.Substances, v)
	quality, quantity := c.forms.Sleep(in.Sleep, v)
	tz := c.forms.Timezone(in.Timezone, v)
	if err := v.OrNil(); err != nil {
		c.log.Warn("welcome forms rejected", "fields", v.Fields)
		return nil, err
	}

	sess := &models.Session{
		ID:                c.idGen(),
		ExternalStudyID:   st.ExternalStudyID,
		ExternalSessionID: st.ExternalSessionID,
		ActivityMix:       st.ActivityMix,
		StartTime:         start,
		EndTime:           c.now(),
		Project:           c.cfg.Experiment.Project,
		Task:              c.taskLabel(st.ActivityMix),
		Substances:        substances,
		SleepQuality:      &quality,
		SleepQuantity:     &quantity,
		Timezone:          tz,
		Browser:           BrowserString(meta.UserAgent),
	}
	if !c.cfg.Experiment.Prolific {
		sess.ExternalStudyID, sess.ExternalSessionID = InternalStudyID, InternalSessionID
	}
	if !existing {
		subject = c.registry.NewSubject(externalID, source, demo)
	}
	if err := c.createSession(ctx, subject, sess, existing); err != nil {
		if KindOf(err) == KindConflict && c.cfg.Experiment.Deployment {
			c.log.Info("concurrent registration", "pid", externalID)
			return c.route(StageAlreadyCompleted, nil, nil), nil
		}
		return nil, err
	}

	st.ExternalID = externalID
	st.SubjectID = subject.ID
	c.log.Info("session created", "session", sess.ID, "subject", subject.ID, "mix", st.ActivityMix, "new_subject", !existing)

	// the recorded session is never handed to a prohibited browser
	if ProhibitedBrowser(sess.Browser, c.cfg.Experiment.ProhibitedBrowsers) {
		c.log.Info("prohibited browser", "session", sess.ID, "browser", sess.Browser)
		return c.route(StageProhibitedBrowser, st, ProhibitedBrowserView{ProhibitedBrowsers: c.cfg.Experiment.ProhibitedBrowsers}), nil
	}
	st.SessionID = sess.ID
	if st.ActivityMix == config.MixTask {
		return c.GameView(ctx, st)
	}
	return c.QuestionnairesView(ctx, st)
}

func (c *FlowController) createSession(ctx context.Context, subject *models.Subject, sess *models.Session, existing bool) error {
	var err error
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		if sess.PaymentToken, err = c.tokens.PaymentToken(); err != nil {
			return err
		}
		if existing {
			sess.SubjectID = subject.ID
			err = c.store.CreateSession(ctx, sess)
		} else {
			err = c.registry.Create(ctx, subject, sess)
		}
		if errors.Is(err, fault.ErrUniqueViolation) && KindOf(err) != KindConflict {
			c.log.Warn("payment token collision, retrying", "attempt", attempt+1)
			continue
		}
		return err
	}
	return fmt.Errorf("create session: %w", err)
}

func (c *FlowController) taskLabel(mix string) string {
	if mix == config.MixScreen {
		return "screen"
	}
	return c.cfg.Experiment.Game
}

// session loads the session named by the state. A missing one routes to fishy.
func (c *FlowController) session(ctx context.Context, state *FlowState) (*models.Session, error) {
	if !state.HasSession() {
		return nil, nil
	}
	sess, err := c.store.GetSession(ctx, state.SessionID)
	if errors.Is(err, fault.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.SubjectID != state.SubjectID {
		return nil, nil
	}
	return sess, nil
}

// stageOf is the stage a session is at. A failed attention check outranks completion, and
// the "both" mix takes the questionnaires before the game.
func stageOf(sess *models.Session) Stage {
	switch {
	case sess.QuestionnaireSubmitted && !sess.PassedAttentionCheck:
		return StageAttentionFailure
	case sess.SessionCompleted:
		return StageToken
	case sess.ActivityMix == config.MixTask:
		return StageGame
	case sess.ActivityMix == config.MixBoth && sess.QuestionnaireDone:
		return StageGame
	}
	return StageQuestionnaires
}

// resume renders the stage a session is at for a request aimed at another stage.
func (c *FlowController) resume(ctx context.Context, state *FlowState, sess *models.Session, asked Stage) (*Outcome, error) {
	at := stageOf(sess)
	c.log.Info("stage out of order", "session", sess.ID, "asked", string(asked), "at", string(at))
	switch at {
	case StageAttentionFailure:
		return c.AttentionFailure(state), nil
	case StageToken:
		return c.Token(ctx, state)
	case StageGame:
		return c.GameView(ctx, state)
	}
	return c.QuestionnairesView(ctx, state)
}

// QuestionnairesView renders the questionnaire battery.
func (c *FlowController) QuestionnairesView(ctx context.Context, state *FlowState) (*Outcome, error) {
	sess, err := c.session(ctx, state)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return c.fishy("questionnaires without session", state), nil
	}
	if stageOf(sess) != StageQuestionnaires {
		return c.resume(ctx, state, sess, StageQuestionnaires)
	}
	conditions := make([]string, 0, len(c.cfg.MentalHealth.Conditions))
	for _, cond := range c.cfg.MentalHealth.Conditions {
		conditions = append(conditions, cond.Value)
	}
	view := QuestionnairesView{
		Questionnaires: c.cfg.Questionnaires,
		Conditions:     c.cfg.MentalHealth.Conditions,
		DiagnosisAges:  c.cfg.MentalHealth.AgeChoices,
		Conditional:    c.rules.Describe(conditions...),
	}
	if c.cfg.Experiment.AttentionCheck {
		view.AttentionCheckbox = &CheckboxView{Label: c.cfg.Attention.CheckboxLabel, Options: c.cfg.Attention.Options}
	}
	return c.route(StageQuestionnaires, state, view), nil
}

// SubmitQuestionnaires stores the battery and scores the attention check. Only the first
// submission of a session is recorded; later ones are routed to where the session is.
func (c *FlowController) SubmitQuestionnaires(ctx context.Context, state *FlowState, in *QuestionnaireInput) (*Outcome, error) {
	sess, err := c.session(ctx, state)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return c.fishy("questionnaires without session", state), nil
	}
	if stageOf(sess) != StageQuestionnaires {
		return c.resume(ctx, state, sess, StageQuestionnaires)
	}
	if in == nil {
		in = &QuestionnaireInput{}
	}
	v := &ValidationError{}
	answers, records := c.forms.Questionnaires(in.Answers, v)
	history := c.forms.MentalHealth(in.MentalHealth, v)
	checkbox := c.forms.AttentionCheckbox(in.AttentionCheckbox, v)
	if err := v.OrNil(); err != nil {
		c.log.Warn("questionnaire forms rejected", "session", sess.ID, "fields", v.Fields)
		return nil, err
	}

	key := idempotency.Key(sess.ID, "questionnaires")
	if out, err := c.claim(ctx, state, sess, key, StageQuestionnaires); out != nil || err != nil {
		return out, err
	}

	rec := &QuestionnaireRecord{
		SessionID:    sess.ID,
		SubjectID:    sess.SubjectID,
		PsychHistory: history,
		EndTime:      c.now(),
		Passed:       true,
	}
	if c.cfg.Experiment.AttentionCheck {
		res := c.attention.Evaluate(checkbox, answers)
		records = append(records, c.attention.AuditRecord(res))
		rec.Passed = res.Passed
		c.log.Info("attention check scored", "session", sess.ID, "failures", res.Failures, "passed", res.Passed)
	}
	for _, r := range records {
		r.ID = c.idGen()
		r.SessionID = sess.ID
	}
	rec.Answers = records
	if rec.Passed {
		rec.QuestionnaireCompleted = true
		rec.SessionCompleted = sess.ActivityMix == config.MixScreen
	}
	if err := c.store.SaveQuestionnaireSubmission(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			return c.reload(ctx, state, StageQuestionnaires)
		}
		c.release(ctx, sess.ID, key)
		return nil, fmt.Errorf("save questionnaires: %w", err)
	}

	if !rec.Passed {
		return c.AttentionFailure(state), nil
	}
	if sess.ActivityMix == config.MixScreen {
		return c.Token(ctx, state)
	}
	return c.GameView(ctx, state)
}

// claim takes the single-writer claim on key. When another request holds it, the session is
// read again: a stage that has since been recorded is resumed, one still in flight is a
// conflict the client retries.
func (c *FlowController) claim(ctx context.Context, state *FlowState, sess *models.Session, key string, asked Stage) (*Outcome, error) {
	if c.guard == nil {
		return nil, nil
	}
	claimed, err := c.guard.Claim(ctx, key, claimTTL)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, nil
	}
	fresh, err := c.session(ctx, state)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return c.fishy("session vanished during submission", state), nil
	}
	if stageOf(fresh) == asked {
		c.log.Info("submission already in progress", "session", sess.ID, "stage", string(asked))
		return nil, NewConflictError("submission in progress, please retry")
	}
	return c.resume(ctx, state, fresh, asked)
}

func (c *FlowController) release(ctx context.Context, sessionID, key string) {
	if c.guard == nil {
		return
	}
	if err := c.guard.Release(ctx, key); err != nil {
		c.log.Warn("release submission claim", "session", sessionID, "err", err)
	}
}

// reload routes to the stage of a session that another request has just written.
func (c *FlowController) reload(ctx context.Context, state *FlowState, asked Stage) (*Outcome, error) {
	sess, err := c.session(ctx, state)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return c.fishy("session vanished during submission", state), nil
	}
	return c.resume(ctx, state, sess, asked)
}

// GameView hands the task runner its parameters.
func (c *FlowController) GameView(ctx context.Context, state *FlowState) (*Outcome, error) {
	sess, err := c.session(ctx, state)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return c.fishy("game without session", state), nil
	}
	if stageOf(sess) != StageGame {
		return c.resume(ctx, state, sess, StageGame)
	}
	params, err := c.tasks.Parameters(ctx)
	if err != nil {
		return nil, err
	}
	return c.route(StageGame, state, params), nil
}

// SubmitGame records the task results. A repeated submission for a session whose task is
// recorded is acknowledged without being processed again.
func (c *FlowController) SubmitGame(ctx context.Context, state *FlowState, sub *TaskSubmission) (*Outcome, error) {
	sess, err := c.session(ctx, state)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return c.fishy("game submission without session", state), nil
	}
	if sess.TaskCompleted && stageOf(sess) == StageToken {
		c.log.Info("task already recorded", "session", sess.ID)
		return c.route(StageToken, state, nil), nil
	}
	if stageOf(sess) != StageGame {
		return c.resume(ctx, state, sess, StageGame)
	}
	if sub == nil {
		sub = &TaskSubmission{}
	}
	key := idempotency.Key(sess.ID, "game")
	if out, err := c.claim(ctx, state, sess, key, StageGame); out != nil || err != nil {
		return c.acknowledge(state, out), err
	}
	rec, err := c.responses.Record(ctx, sess.ID, sub)
	if err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			out, rerr := c.reload(ctx, state, StageGame)
			return c.acknowledge(state, out), rerr
		}
		c.release(ctx, sess.ID, key)
		if fault.IsInternalError(err) {
			c.log.Error("task submission integrity failure", "session", sess.ID, "err", err)
		}
		return nil, err
	}
	c.log.Info("task recorded", "session", sess.ID, "trials", len(rec.Trials), "strategies", len(rec.Strategies))
	return c.route(StageToken, state, nil), nil
}

// acknowledge reduces a token page reached from a game submission to the bare completion
// outcome the task runner expects.
func (c *FlowController) acknowledge(state *FlowState, out *Outcome) *Outcome {
	if out != nil && out.Stage == StageToken {
		return c.route(StageToken, state, nil)
	}
	return out
}

// Token shows the payment token of a completed session.
func (c *FlowController) Token(ctx context.Context, state *FlowState) (*Outcome, error) {
	sess, err := c.session(ctx, state)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.SessionCompleted || stageOf(sess) != StageToken {
		return c.fishy("token requested before completion", state), nil
	}
	if sess.ActivityMix != config.MixTask && !sess.PassedAttentionCheck {
		return c.fishy("token requested after failed attention check", state), nil
	}
	return c.route(StageToken, state, TokenView{
		Message: TokenMessage(state.ActivityMix, sess.PaymentToken),
		Token:   sess.PaymentToken,
	}), nil
}

// AttentionFailure shows the fixed rejection token.
func (c *FlowController) AttentionFailure(state *FlowState) *Outcome {
	mix := c.cfg.Experiment.DefaultActivityMix
	if state != nil && state.ActivityMix != "" {
		mix = state.ActivityMix
	}
	return c.route(StageAttentionFailure, state, RejectionView{Token: c.tokens.RejectionToken(mix)})
}

// Terminal renders one of the informational end pages.
func (c *FlowController) Terminal(stage Stage, state *FlowState) *Outcome {
	switch stage {
	case StageAttentionFailure:
		return c.AttentionFailure(state)
	case StageProhibitedBrowser:
		return c.route(stage, state, ProhibitedBrowserView{ProhibitedBrowsers: c.cfg.Experiment.ProhibitedBrowsers})
	}
	return c.route(stage, nil, nil)
}
