package services

import (
	"github.com/soaringjerry/dronerecon/internal/config"
)

// Stage names the page a participant must see next.
type Stage string

const (
	StageConsent           Stage = "consent"
	StageWelcome           Stage = "welcome"
	StageQuestionnaires    Stage = "questionnaires"
	StageGame              Stage = "game"
	StageToken             Stage = "token"
	StageAttentionFailure  Stage = "attention_failure"
	StageAlreadyCompleted  Stage = "already_completed"
	StageFishy             Stage = "fishy"
	StageProhibitedBrowser Stage = "prohibited_browser"
)

// Terminal reports whether the stage ends the participant's journey.
func (s Stage) Terminal() bool {
	switch s {
	case StageAttentionFailure, StageAlreadyCompleted, StageFishy, StageProhibitedBrowser, StageToken:
		return true
	}
	return false
}

// FlowState is the per-participant state carried between requests inside a signed token.
// ActivityMix is pinned at consent and never changes afterwards.
type FlowState struct {
	ExternalID        string `json:"pid,omitempty"`
	ExternalStudyID   string `json:"study,omitempty"`
	ExternalSessionID string `json:"sess,omitempty"`
	ActivityMix       string `json:"mix"`
	SubjectID         string `json:"subject,omitempty"`
	SessionID         string `json:"session,omitempty"`
}

func (s *FlowState) HasSession() bool {
	return s != nil && s.SessionID != ""
}

// Outcome is the result of every flow operation. State is the state to hand back to the
// participant; nil means the participant carries no state forward.
type Outcome struct {
	Stage Stage
	State *FlowState
	View  any
}

// IdentityParams are the raw recruitment-platform query parameters.
type IdentityParams struct {
	ParticipantID string
	StudyID       string
	SessionID     string
	ActivityMix   string
}

// RequestMeta carries request facts the flow needs without depending on net/http.
type RequestMeta struct {
	UserAgent string
	RemoteIP  string
	Query     IdentityParams
}

type ConsentView struct {
	Prolific    bool   `json:"prolific"`
	ActivityMix string `json:"activity_mix"`
}

type RegistrationView struct {
	AskUserID      bool            `json:"ask_user_id"`
	MinAge         int             `json:"min_age"`
	MaxAge         int             `json:"max_age"`
	Sexes          []config.Choice `json:"sexes"`
	Genders        []config.Choice `json:"genders"`
	Education      []config.Choice `json:"education"`
	SubjectSources []config.Choice `json:"subject_sources,omitempty"`
}

type WelcomeView struct {
	Message        string              `json:"welcome_message"`
	NewUser        bool                `json:"new_user"`
	Registration   *RegistrationView   `json:"registration,omitempty"`
	Substances     []config.Substance  `json:"substances"`
	SleepQuality   []config.IntChoice  `json:"sleep_quality"`
	SleepQuantity  []config.IntChoice  `json:"sleep_quantity"`
	Conditional    map[string]RuleView `json:"conditional"`
	CaptchaSiteKey string              `json:"captcha_site_key,omitempty"`
}

type CheckboxView struct {
	Label   string          `json:"label"`
	Options []config.Choice `json:"options"`
}

type QuestionnairesView struct {
	Questionnaires    []config.Questionnaire `json:"questionnaires"`
	Conditions        []config.Choice        `json:"mh_conditions"`
	DiagnosisAges     []config.IntChoice     `json:"mh_ages"`
	AttentionCheckbox *CheckboxView          `json:"attention_checkbox,omitempty"`
	Conditional       map[string]RuleView    `json:"conditional"`
}

type TokenView struct {
	Message string `json:"token_message"`
	Token   string `json:"token"`
}

type RejectionView struct {
	Token string `json:"token"`
}

type ProhibitedBrowserView struct {
	ProhibitedBrowsers []string `json:"prohibited_browsers"`
}
