package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/idempotency"
	"github.com/soaringjerry/dronerecon/internal/logging"
)

const safariUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15"

func newFlow(t *testing.T, mutate func(*config.Config)) (*FlowController, *memStore, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Experiment.TaskVersion = 0
	if mutate != nil {
		mutate(&cfg)
	}
	store := newMemStore(&cfg)
	fc, err := NewFlowController(&cfg, FlowDeps{Store: store, Guard: store, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewFlowController: %v", err)
	}
	return fc, store, &cfg
}

func prolificParams(pid, mix string) IdentityParams {
	return IdentityParams{ParticipantID: pid, StudyID: "study-1", SessionID: "sess-ext", ActivityMix: mix}
}

func validWelcome(cfg *config.Config, newUser bool) *WelcomeInput {
	in := &WelcomeInput{
		Sleep:    SleepInput{Quality: num(2), Quantity: num(8)},
		Timezone: "Europe/London",
	}
	for _, s := range cfg.Substances {
		in.Substances = append(in.Substances, SubstanceAnswer{Key: s.Key, Used: no()})
	}
	if newUser {
		in.Registration = &RegistrationInput{Age: num(28), Sex: "male", Gender: "male", Education: "college", StartTime: "2025-09-18T09:00:00Z"}
	}
	return in
}

func validQuestionnaires(cfg *config.Config, attentive bool) *QuestionnaireInput {
	in := &QuestionnaireInput{AttentionCheckbox: []string{"pass_attention_check"}}
	for _, q := range cfg.Questionnaires {
		for _, it := range q.Items {
			in.Answers = append(in.Answers, QuestionnaireAnswer{Questionnaire: q.Name, Number: it.Number, Answer: num(it.Answers[0].Value)})
		}
	}
	set := func(name string, number, v int) {
		for i := range in.Answers {
			if in.Answers[i].Questionnaire == name && in.Answers[i].Number == number {
				in.Answers[i].Answer = num(v)
			}
		}
	}
	set("att_check", 1, 5)
	set("att_check", 2, 5)
	set("bapq", 6, 5)
	if !attentive {
		in.AttentionCheckbox = []string{"fail_attention_check"}
		set("att_check", 1, 2)
		set("att_check", 2, 3)
	}
	for _, c := range cfg.MentalHealth.Conditions {
		in.MentalHealth = append(in.MentalHealth, DiagnosisAnswer{Condition: c.Value, Diagnosed: no()})
	}
	return in
}

func gameSubmission(fc *FlowController, t *testing.T) *TaskSubmission {
	t.Helper()
	params, err := fc.tasks.Parameters(context.Background())
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	sub := &TaskSubmission{}
	for i, spec := range params.TrainStimuli {
		rt := float64(500 + i)
		sub.ClassificationTrials.Trials = append(sub.ClassificationTrials.Trials, ClassificationTrial{
			Stimulus: spec.Stimulus, Response: spec.CorrectResponse, CorrectResponse: spec.CorrectResponse,
			DroneType: spec.DroneType, TypeSelected: spec.DroneType, RT: &rt, Block: spec.Block, TrialIndexAligned: i,
		})
		conf := float64(i%4 + 1)
		sub.ConfidenceTrials.Trials = append(sub.ConfidenceTrials.Trials, ConfidenceTrial{
			Stimulus: spec.Stimulus, Response: Number{Value: &conf}, RT: &rt, TrialIndexAligned: i,
		})
	}
	return sub
}

func TestFlowEndToEndBoth(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()

	out, err := fc.Consent(ctx, prolificParams("pid-1", "both"))
	if err != nil || out.Stage != StageConsent {
		t.Fatalf("Consent: %+v %v", out, err)
	}
	state := out.State

	out, err = fc.WelcomeView(ctx, state, RequestMeta{})
	if err != nil || out.Stage != StageWelcome {
		t.Fatalf("WelcomeView: %+v %v", out, err)
	}
	if view := out.View.(WelcomeView); !view.NewUser || view.Registration == nil {
		t.Fatalf("new participants register: %+v", view)
	}

	out, err = fc.SubmitWelcome(ctx, state, validWelcome(cfg, true), RequestMeta{UserAgent: "Mozilla/5.0 Firefox/120.0"})
	if err != nil || out.Stage != StageQuestionnaires {
		t.Fatalf("SubmitWelcome: %+v %v", out, err)
	}
	state = out.State
	if len(store.subjects) != 1 || len(store.sessions) != 1 {
		t.Fatalf("expected one subject and one session, got %d/%d", len(store.subjects), len(store.sessions))
	}
	sess := store.sessions[state.SessionID]
	if sess.SessionCompleted || sess.PaymentToken == "" || sess.ExternalStudyID != "study-1" || sess.Task != cfg.Experiment.Game {
		t.Fatalf("unexpected session %+v", sess)
	}

	out, err = fc.Token(ctx, state)
	if err != nil || out.Stage != StageFishy {
		t.Fatalf("token before completion must be fishy: %+v %v", out, err)
	}

	out, err = fc.SubmitQuestionnaires(ctx, state, validQuestionnaires(cfg, true))
	if err != nil || out.Stage != StageGame {
		t.Fatalf("SubmitQuestionnaires: %+v %v", out, err)
	}
	sess = store.sessions[state.SessionID]
	if !sess.PassedAttentionCheck || !sess.QuestionnaireDone || sess.SessionCompleted {
		t.Fatalf("unexpected flags after questionnaires %+v", sess)
	}

	sub := gameSubmission(fc, t)
	out, err = fc.SubmitGame(ctx, state, sub)
	if err != nil || out.Stage != StageToken {
		t.Fatalf("SubmitGame: %+v %v", out, err)
	}
	if len(store.trials) != len(sub.ClassificationTrials.Trials) {
		t.Fatalf("expected %d trials, got %d", len(sub.ClassificationTrials.Trials), len(store.trials))
	}
	for _, tr := range store.trials {
		if tr.Confidence == nil || tr.RTConfidence == nil {
			t.Fatalf("confidence not merged into %+v", tr)
		}
	}

	out, err = fc.Token(ctx, state)
	if err != nil || out.Stage != StageToken {
		t.Fatalf("Token: %+v %v", out, err)
	}
	if view := out.View.(TokenView); view.Token != store.sessions[state.SessionID].PaymentToken {
		t.Fatalf("token mismatch %+v", view)
	}
}

func TestFlowMissingIdentityDeployment(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()
	out, err := fc.Consent(ctx, IdentityParams{StudyID: "s"})
	if err != nil || out.Stage != StageFishy || out.State != nil {
		t.Fatalf("expected fishy, got %+v %v", out, err)
	}
	out, err = fc.SubmitWelcome(ctx, nil, validWelcome(cfg, true), RequestMeta{Query: IdentityParams{ParticipantID: "p"}})
	if err != nil || out.Stage != StageFishy {
		t.Fatalf("expected fishy, got %+v %v", out, err)
	}
	if len(store.subjects) != 0 || len(store.sessions) != 0 {
		t.Fatalf("nothing may be created")
	}
}

func TestFlowReturningParticipantDeployment(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-1", "both"))
	if _, err := fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{}); err != nil {
		t.Fatalf("first welcome: %v", err)
	}

	out, _ = fc.Consent(ctx, prolificParams("pid-1", "both"))
	view, err := fc.WelcomeView(ctx, out.State, RequestMeta{})
	if err != nil || view.Stage != StageAlreadyCompleted {
		t.Fatalf("WelcomeView: %+v %v", view, err)
	}
	again, err := fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{})
	if err != nil || again.Stage != StageAlreadyCompleted {
		t.Fatalf("SubmitWelcome: %+v %v", again, err)
	}
	if len(store.subjects) != 1 || len(store.sessions) != 1 {
		t.Fatalf("no new rows expected, got %d/%d", len(store.subjects), len(store.sessions))
	}
}

func TestFlowReturningParticipantDevelopment(t *testing.T) {
	fc, store, cfg := newFlow(t, func(c *config.Config) { c.Experiment.Deployment = false })
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-1", "task"))
	first, err := fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{})
	if err != nil || first.Stage != StageGame {
		t.Fatalf("first welcome: %+v %v", first, err)
	}

	view, _ := fc.WelcomeView(ctx, out.State, RequestMeta{})
	if w := view.View.(WelcomeView); w.NewUser || w.Registration != nil || w.Message == newUserWelcome {
		t.Fatalf("returning view expected, got %+v", w)
	}
	second, err := fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, false), RequestMeta{})
	if err != nil || second.Stage != StageGame {
		t.Fatalf("second welcome: %+v %v", second, err)
	}
	if len(store.subjects) != 1 || len(store.sessions) != 2 {
		t.Fatalf("expected subject reuse, got %d/%d", len(store.subjects), len(store.sessions))
	}
	if second.State.SubjectID != first.State.SubjectID || second.State.SessionID == first.State.SessionID {
		t.Fatalf("unexpected states %+v %+v", first.State, second.State)
	}
	if store.sessions[first.State.SessionID].PaymentToken == store.sessions[second.State.SessionID].PaymentToken {
		t.Fatalf("payment tokens must differ per session")
	}
}

func TestFlowScreenOnly(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-2", "screen"))
	out, err := fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{})
	if err != nil || out.Stage != StageQuestionnaires {
		t.Fatalf("SubmitWelcome: %+v %v", out, err)
	}
	state := out.State
	if store.sessions[state.SessionID].Task != "screen" {
		t.Fatalf("screen sessions are labelled screen")
	}
	out, err = fc.SubmitQuestionnaires(ctx, state, validQuestionnaires(cfg, true))
	if err != nil || out.Stage != StageToken {
		t.Fatalf("SubmitQuestionnaires: %+v %v", out, err)
	}
	if !store.sessions[state.SessionID].SessionCompleted {
		t.Fatalf("screen session completes after questionnaires")
	}
}

func TestFlowAttentionFailure(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-3", "both"))
	out, _ = fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{})
	state := out.State

	out, err := fc.SubmitQuestionnaires(ctx, state, validQuestionnaires(cfg, false))
	if err != nil || out.Stage != StageAttentionFailure {
		t.Fatalf("expected attention failure, got %+v %v", out, err)
	}
	if view := out.View.(RejectionView); view.Token != "A9DK21L" {
		t.Fatalf("unexpected rejection token %+v", view)
	}
	sess := store.sessions[state.SessionID]
	if sess.PassedAttentionCheck || sess.SessionCompleted || sess.QuestionnaireDone {
		t.Fatalf("failed session must not complete: %+v", sess)
	}
	found := false
	for _, a := range store.answers {
		if a.Questionnaire == AttentionAuditQuestionnaire {
			found = a.Answer != nil && *a.Answer == 0
		}
	}
	if !found {
		t.Fatalf("checkbox audit row missing")
	}
	if out, _ := fc.Token(ctx, state); out.Stage != StageFishy {
		t.Fatalf("no token after failure")
	}
}

func TestFlowValidationPersistsNothing(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-4", "both"))
	in := validWelcome(cfg, true)
	in.Sleep.Quality = nil
	_, err := fc.SubmitWelcome(ctx, out.State, in, RequestMeta{})
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 1 || verr.Fields[0].Field != "sleep.quality" {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.subjects) != 0 || len(store.sessions) != 0 {
		t.Fatalf("nothing may be persisted")
	}
}

func TestFlowProhibitedBrowser(t *testing.T) {
	fc, store, cfg := newFlow(t, func(c *config.Config) { c.Experiment.ProhibitedBrowsers = []string{"Safari"} })
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-5", "both"))
	out, err := fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{UserAgent: safariUA})
	if err != nil || out.Stage != StageProhibitedBrowser {
		t.Fatalf("expected prohibited browser, got %+v %v", out, err)
	}
	if len(store.sessions) != 1 {
		t.Fatalf("session is recorded before the browser check")
	}
	if out.State == nil || out.State.SessionID != "" {
		t.Fatalf("prohibited browsers must not receive the session: %+v", out.State)
	}
	for name, call := range map[string]func() (*Outcome, error){
		"questionnaires": func() (*Outcome, error) { return fc.QuestionnairesView(ctx, out.State) },
		"game":           func() (*Outcome, error) { return fc.SubmitGame(ctx, out.State, gameSubmission(fc, t)) },
	} {
		if res, err := call(); err != nil || res.Stage != StageFishy {
			t.Fatalf("%s: expected fishy, got %+v %v", name, res, err)
		}
	}
	if store.taskSaves != 0 || len(store.answers) != 0 {
		t.Fatalf("nothing may be recorded for a prohibited browser")
	}
}

func TestFlowDuplicateGameSubmission(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-6", "task"))
	out, _ = fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{})
	state := out.State

	sub := gameSubmission(fc, t)
	for i := 0; i < 2; i++ {
		out, err := fc.SubmitGame(ctx, state, sub)
		if err != nil || out.Stage != StageToken {
			t.Fatalf("submission %d: %+v %v", i, out, err)
		}
	}
	if store.taskSaves != 1 {
		t.Fatalf("expected a single write, got %d", store.taskSaves)
	}
}

func TestFlowGameFailureReleasesClaim(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-7", "task"))
	out, _ = fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{})
	state := out.State

	bad := &TaskSubmission{}
	bad.ClassificationTrials.Trials = []ClassificationTrial{{Stimulus: "/media/images/unknown.png"}}
	_, err := fc.SubmitGame(ctx, state, bad)
	if !errors.Is(err, ErrUnknownStimulus) {
		t.Fatalf("expected unknown stimulus, got %v", err)
	}
	if store.releasedClaims != 1 {
		t.Fatalf("claim must be released after failure")
	}
	if _, err := fc.SubmitGame(ctx, state, gameSubmission(fc, t)); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if store.taskSaves != 1 {
		t.Fatalf("expected one write, got %d", store.taskSaves)
	}
}

func TestFlowCaptcha(t *testing.T) {
	calls := 0
	fc, store, cfg := newFlow(t, func(c *config.Config) { c.Captcha.Enabled = true; c.Captcha.Secret = "s" })
	fc.captcha = func(_ context.Context, token, _ string) (bool, error) {
		calls++
		if token == "boom" {
			return false, fmt.Errorf("provider down")
		}
		return token == "good", nil
	}
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-8", "both"))

	in := validWelcome(cfg, true)
	in.CaptchaToken = "bad"
	if _, err := fc.SubmitWelcome(ctx, out.State, in, RequestMeta{}); !errors.Is(err, ErrCaptchaFailed) {
		t.Fatalf("expected captcha failure, got %v", err)
	}
	in.CaptchaToken = "boom"
	if _, err := fc.SubmitWelcome(ctx, out.State, in, RequestMeta{}); err == nil || errors.Is(err, ErrCaptchaFailed) {
		t.Fatalf("provider errors are not captcha rejections: %v", err)
	}
	in.CaptchaToken = "good"
	if res, err := fc.SubmitWelcome(ctx, out.State, in, RequestMeta{}); err != nil || res.Stage != StageQuestionnaires {
		t.Fatalf("expected success, got %+v %v", res, err)
	}
	if calls != 3 || len(store.sessions) != 1 {
		t.Fatalf("unexpected calls=%d sessions=%d", calls, len(store.sessions))
	}
}

func TestFlowNonProlific(t *testing.T) {
	fc, store, cfg := newFlow(t, func(c *config.Config) { c.Experiment.Prolific = false })
	ctx := context.Background()
	out, err := fc.Consent(ctx, IdentityParams{})
	if err != nil || out.Stage != StageConsent || out.State.ExternalID != "" {
		t.Fatalf("Consent: %+v %v", out, err)
	}
	view, _ := fc.WelcomeView(ctx, out.State, RequestMeta{})
	if w := view.View.(WelcomeView); w.Registration == nil || !w.Registration.AskUserID || len(w.Registration.SubjectSources) == 0 {
		t.Fatalf("registration should ask for the user id: %+v", w)
	}
	in := validWelcome(cfg, true)
	in.Registration.UserID = "lab-007"
	in.Registration.SubjectSource = "internal"
	res, err := fc.SubmitWelcome(ctx, out.State, in, RequestMeta{})
	if err != nil || res.Stage != StageQuestionnaires || res.State.ExternalID != "lab-007" {
		t.Fatalf("SubmitWelcome: %+v %v", res, err)
	}
	sess := store.sessions[res.State.SessionID]
	if sess.ExternalStudyID != "foo" || sess.ExternalSessionID != "bar" {
		t.Fatalf("unexpected external ids %+v", sess)
	}
	for _, sub := range store.subjects {
		if sub.ExternalID != "lab-007" || sub.ExternalSource != "internal" {
			t.Fatalf("unexpected subject %+v", sub)
		}
	}
}

func TestFlowStaleSession(t *testing.T) {
	fc, _, _ := newFlow(t, nil)
	ctx := context.Background()
	state := &FlowState{ActivityMix: "both", SessionID: "missing", SubjectID: "nobody"}
	for name, call := range map[string]func() (*Outcome, error){
		"questionnaires": func() (*Outcome, error) { return fc.QuestionnairesView(ctx, state) },
		"game":           func() (*Outcome, error) { return fc.GameView(ctx, state) },
		"submit game":    func() (*Outcome, error) { return fc.SubmitGame(ctx, state, nil) },
		"token":          func() (*Outcome, error) { return fc.Token(ctx, state) },
	} {
		out, err := call()
		if err != nil || out.Stage != StageFishy {
			t.Fatalf("%s: expected fishy, got %+v %v", name, out, err)
		}
	}
}

func TestFlowAttentionFailureIsFinal(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-9", "both"))
	out, _ = fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{})
	state := out.State
	if out, err := fc.SubmitQuestionnaires(ctx, state, validQuestionnaires(cfg, false)); err != nil || out.Stage != StageAttentionFailure {
		t.Fatalf("expected attention failure, got %+v %v", out, err)
	}

	if out, err := fc.GameView(ctx, state); err != nil || out.Stage != StageAttentionFailure {
		t.Fatalf("GameView: %+v %v", out, err)
	}
	if out, err := fc.SubmitGame(ctx, state, gameSubmission(fc, t)); err != nil || out.Stage != StageAttentionFailure {
		t.Fatalf("SubmitGame: %+v %v", out, err)
	}
	if out, err := fc.Token(ctx, state); err != nil || out.Stage != StageFishy {
		t.Fatalf("Token: %+v %v", out, err)
	}
	sess := store.sessions[state.SessionID]
	if store.taskSaves != 0 || sess.SessionCompleted || sess.TaskCompleted {
		t.Fatalf("failed session must not complete: saves=%d %+v", store.taskSaves, sess)
	}
}

func TestFlowQuestionnairesSubmittedOnce(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-10", "screen"))
	out, _ = fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{})
	failed := out.State
	if out, err := fc.SubmitQuestionnaires(ctx, failed, validQuestionnaires(cfg, false)); err != nil || out.Stage != StageAttentionFailure {
		t.Fatalf("first submission: %+v %v", out, err)
	}
	rows := len(store.answers)

	out, err := fc.SubmitQuestionnaires(ctx, failed, validQuestionnaires(cfg, true))
	if err != nil || out.Stage != StageAttentionFailure {
		t.Fatalf("resubmission must keep the failure: %+v %v", out, err)
	}
	if out, _ := fc.QuestionnairesView(ctx, failed); out.Stage != StageAttentionFailure {
		t.Fatalf("QuestionnairesView after failure: %+v", out)
	}
	if sess := store.sessions[failed.SessionID]; sess.PassedAttentionCheck || sess.SessionCompleted || len(store.answers) != rows {
		t.Fatalf("resubmission must write nothing: answers %d->%d %+v", rows, len(store.answers), sess)
	}

	out, _ = fc.Consent(ctx, prolificParams("pid-11", "both"))
	out, _ = fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{})
	passed := out.State
	if out, err := fc.SubmitQuestionnaires(ctx, passed, validQuestionnaires(cfg, true)); err != nil || out.Stage != StageGame {
		t.Fatalf("first submission: %+v %v", out, err)
	}
	rows = len(store.answers)
	if out, err := fc.SubmitQuestionnaires(ctx, passed, validQuestionnaires(cfg, false)); err != nil || out.Stage != StageGame {
		t.Fatalf("double submit should resume the game: %+v %v", out, err)
	}
	if sess := store.sessions[passed.SessionID]; !sess.PassedAttentionCheck || len(store.answers) != rows {
		t.Fatalf("double submit must write nothing: answers %d->%d %+v", rows, len(store.answers), sess)
	}
}

func TestFlowQuestionnaireSubmissionInFlight(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-12", "both"))
	out, _ = fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{})
	state := out.State
	store.claims[idempotency.Key(state.SessionID, "questionnaires")] = true

	_, err := fc.SubmitQuestionnaires(ctx, state, validQuestionnaires(cfg, true))
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict while another submission holds the claim, got %v", err)
	}
	if len(store.answers) != 0 || store.sessions[state.SessionID].QuestionnaireSubmitted {
		t.Fatalf("nothing may be written")
	}
}

func TestFlowBothTakesQuestionnairesFirst(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-13", "both"))
	out, _ = fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{})
	state := out.State

	if out, err := fc.GameView(ctx, state); err != nil || out.Stage != StageQuestionnaires {
		t.Fatalf("GameView: %+v %v", out, err)
	}
	if out, err := fc.SubmitGame(ctx, state, gameSubmission(fc, t)); err != nil || out.Stage != StageQuestionnaires {
		t.Fatalf("SubmitGame: %+v %v", out, err)
	}
	if out, _ := fc.Token(ctx, state); out.Stage != StageFishy {
		t.Fatalf("no token before the questionnaires: %+v", out)
	}
	if store.taskSaves != 0 || store.sessions[state.SessionID].SessionCompleted {
		t.Fatalf("game must not be recorded before the questionnaires")
	}
}

func TestFlowGameSubmissionInFlight(t *testing.T) {
	fc, store, cfg := newFlow(t, nil)
	ctx := context.Background()
	out, _ := fc.Consent(ctx, prolificParams("pid-14", "task"))
	out, _ = fc.SubmitWelcome(ctx, out.State, validWelcome(cfg, true), RequestMeta{})
	state := out.State
	key := idempotency.Key(state.SessionID, "game")
	store.claims[key] = true

	_, err := fc.SubmitGame(ctx, state, gameSubmission(fc, t))
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if store.taskSaves != 0 {
		t.Fatalf("nothing may be written")
	}

	delete(store.claims, key)
	if out, err := fc.SubmitGame(ctx, state, gameSubmission(fc, t)); err != nil || out.Stage != StageToken {
		t.Fatalf("retry: %+v %v", out, err)
	}
	store.claims[key] = true
	if out, err := fc.SubmitGame(ctx, state, gameSubmission(fc, t)); err != nil || out.Stage != StageToken || out.View != nil {
		t.Fatalf("recorded task should be acknowledged: %+v %v", out, err)
	}
	if store.taskSaves != 1 {
		t.Fatalf("expected one write, got %d", store.taskSaves)
	}
}
