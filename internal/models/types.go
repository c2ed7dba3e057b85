package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Stimulus references an image in external storage. The image itself is never stored here.
type Stimulus struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Use   string `db:"use_kind" json:"use"` // task, tutorial, schematic, feedback
	Image string `db:"image" json:"image"`  // relative path, e.g. images/A_prototype.png
}

// Subject is a unique participant identified by (ExternalID, ExternalSource).
type Subject struct {
	ID             string     `db:"id" json:"id"`
	ExternalID     string     `db:"external_id" json:"external_id"`
	ExternalSource string     `db:"external_source" json:"external_source"`
	Age            int        `db:"age" json:"age"`
	Sex            string     `db:"sex" json:"sex"`
	Gender         string     `db:"gender" json:"gender"`
	Education      string     `db:"education" json:"education"`
	IsBot          bool       `db:"is_bot" json:"is_bot"`
	PsychHistory   StringList `db:"psych_history" json:"psych_history"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Session is one visit by a Subject.
type Session struct {
	ID                     string     `db:"id" json:"id"`
	SubjectID              string     `db:"subject_id" json:"subject_id"`
	ExternalStudyID        string     `db:"external_study_id" json:"external_study_id"`
	ExternalSessionID      string     `db:"external_session_id" json:"external_session_id"`
	ActivityMix            string     `db:"activity_mix" json:"activity_mix"`
	NTrials                int        `db:"n_trials" json:"n_trials"`
	StartTime              time.Time  `db:"start_time" json:"start_time"`
	EndTime                time.Time  `db:"end_time" json:"end_time"`
	SessionCompleted       bool       `db:"session_completed" json:"session_completed"`
	QuestionnaireDone      bool       `db:"questionnaire_completed" json:"questionnaire_completed"`
	TaskCompleted          bool       `db:"task_completed" json:"task_completed"`
	PassedAttentionCheck   bool       `db:"passed_attention_check" json:"passed_attention_check"`
	PaymentToken           string     `db:"payment_token" json:"payment_token"`
	Project                string     `db:"project" json:"project"`
	Task                   string     `db:"task" json:"task"`
	Substances             StringList `db:"substances" json:"substances"`
	SleepQuality           *int       `db:"sleep_quality" json:"sleep_quality,omitempty"`
	SleepQuantity          *int       `db:"sleep_quantity" json:"sleep_quantity,omitempty"`
	Timezone               string     `db:"timezone" json:"timezone"`
	Browser                string     `db:"browser" json:"browser"`
	QuestionnaireSubmitted bool       `db:"questionnaire_submitted" json:"questionnaire_submitted"`
}

// Trial is one classification response, optionally merged with a confidence rating.
type Trial struct {
	ID               string   `db:"id" json:"id"`
	SessionID        string   `db:"session_id" json:"session_id"`
	StimulusID       string   `db:"stimulus_id" json:"stimulus_id"`
	CorrectClass     string   `db:"correct_class" json:"correct_class"`
	Response         string   `db:"response" json:"response"`
	Correct          bool     `db:"correct" json:"correct"`
	Confidence       *float64 `db:"confidence" json:"confidence,omitempty"`
	RTClassification *int     `db:"rt_classification" json:"rt_classification,omitempty"`
	RTConfidence     *int     `db:"rt_confidence" json:"rt_confidence,omitempty"`
	FeedbackGiven    bool     `db:"feedback_given" json:"feedback_given"`
	Block            string   `db:"block" json:"block"`
	TrialNumber      int      `db:"trial_number" json:"trial_number"`
}

// QuestionnaireQ stores one answered questionnaire item. Answer is nil when the item was hidden
// or left unanswered.
type QuestionnaireQ struct {
	ID              string    `db:"id" json:"id"`
	SessionID       string    `db:"session_id" json:"session_id"`
	Questionnaire   string    `db:"questionnaire_name" json:"questionnaire_name"`
	Subscale        string    `db:"subscale" json:"subscale"`
	PossibleAnswers AnswerMap `db:"possible_answers" json:"possible_answers"`
	Question        string    `db:"question" json:"question"`
	Answer          *int      `db:"answer" json:"answer"`
	Number          int       `db:"question_number" json:"question_number"`
}

// Strategy is a free-text or multiple-choice strategy self-report given after the task.
type Strategy struct {
	ID        string `db:"id" json:"id"`
	SessionID string `db:"session_id" json:"session_id"`
	Prompt    string `db:"prompt" json:"prompt"`
	Response  string `db:"response" json:"response"`
}

// Recruitment tracks acceptance or rejection of a Subject into a study.
type Recruitment struct {
	ID              string    `db:"id" json:"id"`
	SubjectID       string    `db:"subject_id" json:"subject_id"`
	SessionID       *string   `db:"session_id" json:"session_id,omitempty"`
	ProlificStudyID string    `db:"prolific_study_id" json:"prolific_study_id"`
	Time            time.Time `db:"time" json:"time"`
	Task            string    `db:"task" json:"task"`
	Notes           string    `db:"notes" json:"notes"`
	Source          string    `db:"source" json:"source"`
	Accepted        *bool     `db:"accepted" json:"accepted,omitempty"`
}

// ConsentRecord is written when a participant lands on the consent page with a resolved identity.
type ConsentRecord struct {
	ID                string    `db:"id" json:"id"`
	ExternalID        string    `db:"external_id" json:"external_id"`
	ExternalStudyID   string    `db:"external_study_id" json:"external_study_id"`
	ExternalSessionID string    `db:"external_session_id" json:"external_session_id"`
	ActivityMix       string    `db:"activity_mix" json:"activity_mix"`
	Hash              string    `db:"evidence_hash" json:"hash"`
	SignedAt          time.Time `db:"signed_at" json:"signed_at"`
}

// AuditEntry is an append-only log row for routing decisions and admin actions.
type AuditEntry struct {
	Time   time.Time `db:"time" json:"time"`
	Actor  string    `db:"actor" json:"actor"`
	Action string    `db:"action" json:"action"`
	Target string    `db:"target" json:"target"`
	Note   string    `db:"note" json:"note,omitempty"`
}

// StringList is persisted as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, (*[]string)(l))
}

// AnswerMap maps answer labels to their numeric codes, persisted as a JSON object.
type AnswerMap map[string]int

func (m AnswerMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]int(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *AnswerMap) Scan(src any) error {
	return scanJSON(src, (*map[string]int)(m))
}

func scanJSON(src any, dst any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T as json", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
