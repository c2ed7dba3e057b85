package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/models"
)

// NA replaces answers to conditional fields that were hidden or left out.
const NA = "NA"

// YesNo is a boolean form answer. It accepts JSON booleans or a closed set of string tokens;
// submitted text is never evaluated.
type YesNo bool

var yesNoTokens = map[string]bool{
	"true": true, "yes": true, "1": true,
	"false": false, "no": false, "0": false,
}

// ParseYesNo maps a literal token onto a boolean.
func ParseYesNo(s string) (bool, error) {
	v, ok := yesNoTokens[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return false, fmt.Errorf("%q is not a yes/no answer", s)
	}
	return v, nil
}

func (y *YesNo) UnmarshalJSON(b []byte) error {
	var asBool bool
	if err := json.Unmarshal(b, &asBool); err == nil {
		*y = YesNo(asBool)
		return nil
	}
	var asString string
	if err := json.Unmarshal(b, &asString); err != nil {
		return fmt.Errorf("yes/no answer must be a boolean or string")
	}
	v, err := ParseYesNo(asString)
	if err != nil {
		return err
	}
	*y = YesNo(v)
	return nil
}

// RegistrationInput is the demographics form shown to new subjects. UserID and SubjectSource
// are only collected when the study is not recruited through Prolific.
type RegistrationInput struct {
	UserID        string `json:"user_id"`
	SubjectSource string `json:"subject_source"`
	Age           *int   `json:"age"`
	Sex           string `json:"sex"`
	Gender        string `json:"gender"`
	Education     string `json:"education"`
	StartTime     string `json:"start_time"`
}

type Demographics struct {
	Age       int
	Sex       string
	Gender    string
	Education string
}

type SubstanceAnswer struct {
	Key    string  `json:"key"`
	Used   *YesNo  `json:"used"`
	Detail *string `json:"detail"`
}

type SleepInput struct {
	Quality  *int `json:"quality"`
	Quantity *int `json:"quantity"`
}

type DiagnosisAnswer struct {
	Condition string `json:"condition"`
	Diagnosed *YesNo `json:"diagnosed"`
	Age       *int   `json:"age"`
}

type QuestionnaireAnswer struct {
	Questionnaire string `json:"questionnaire"`
	Number        int    `json:"number"`
	Answer        *int   `json:"answer"`
}

// WelcomeInput is everything posted on the welcome page.
type WelcomeInput struct {
	CaptchaToken string             `json:"captcha_token"`
	Registration *RegistrationInput `json:"registration,omitempty"`
	Substances   []SubstanceAnswer  `json:"substances"`
	Sleep        SleepInput         `json:"sleep"`
	Timezone     string             `json:"timezone"`
}

// QuestionnaireInput is everything posted on the questionnaires page.
type QuestionnaireInput struct {
	Answers           []QuestionnaireAnswer `json:"answers"`
	MentalHealth      []DiagnosisAnswer     `json:"mental_health"`
	AttentionCheckbox []string              `json:"attention_checkbox"`
}

// AnswerKey addresses one questionnaire item.
type AnswerKey struct {
	Questionnaire string
	Number        int
}

// AnswerSet holds the answered items of a submission; unanswered items are absent.
type AnswerSet map[AnswerKey]int

func (a AnswerSet) Get(questionnaire string, number int) (int, bool) {
	v, ok := a[AnswerKey{questionnaire, number}]
	return v, ok
}

// FormProcessor validates typed form input and derives the values that are persisted.
// Every method appends to the supplied ValidationError instead of failing fast.
type FormProcessor struct {
	cfg   *config.Config
	rules *ConditionalRules
}

func NewFormProcessor(cfg *config.Config, rules *ConditionalRules) *FormProcessor {
	return &FormProcessor{cfg: cfg, rules: rules}
}

// Registration validates demographics. The returned time is the participant's start time.
func (p *FormProcessor) Registration(in *RegistrationInput, v *ValidationError) (Demographics, time.Time) {
	var d Demographics
	if in == nil {
		v.Add("registration", "required for new participants")
		return d, time.Time{}
	}
	reg := p.cfg.Registration
	if !p.cfg.Experiment.Prolific {
		if strings.TrimSpace(in.UserID) == "" || len(in.UserID) > 64 {
			v.Add("registration.user_id", "required, at most 64 characters")
		}
		if !hasChoice(reg.SubjectSources, in.SubjectSource) {
			v.Add("registration.subject_source", "not a valid choice")
		}
	}
	if in.Age == nil || *in.Age < reg.MinAge || *in.Age > reg.MaxAge {
		v.Add("registration.age", "must be between %d and %d", reg.MinAge, reg.MaxAge)
	} else {
		d.Age = *in.Age
	}
	if !hasChoice(reg.Sexes, in.Sex) {
		v.Add("registration.sex", "not a valid choice")
	}
	if !hasChoice(reg.Genders, in.Gender) {
		v.Add("registration.gender", "not a valid choice")
	}
	if !hasChoice(reg.Education, in.Education) {
		v.Add("registration.education", "not a valid choice")
	}
	d.Sex, d.Gender, d.Education = in.Sex, in.Gender, in.Education

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(in.StartTime))
	if err != nil {
		v.Add("registration.start_time", "must be an RFC 3339 timestamp")
	}
	return d, start.UTC()
}

// Substances returns the affirmed substance keys followed by "<key>_detail-<value>" for every
// substance with a detail question. Hidden or missing details become NA.
func (p *FormProcessor) Substances(in []SubstanceAnswer, v *ValidationError) []string {
	known := map[string]config.Substance{}
	for _, s := range p.cfg.Substances {
		known[s.Key] = s
	}
	answers := map[string]SubstanceAnswer{}
	for _, a := range in {
		if _, ok := known[a.Key]; !ok {
			v.Add("substances."+a.Key, "unknown substance")
			continue
		}
		if _, dup := answers[a.Key]; dup {
			v.Add("substances."+a.Key, "answered twice")
			continue
		}
		answers[a.Key] = a
	}

	env := map[string]any{}
	for _, s := range p.cfg.Substances {
		a, ok := answers[s.Key]
		if !ok || a.Used == nil {
			v.Add("substances."+s.Key, "required")
			continue
		}
		env[s.Key] = bool(*a.Used)
	}

	var used, details []string
	for _, s := range p.cfg.Substances {
		if u, ok := env[s.Key].(bool); ok && u {
			used = append(used, s.Key)
		}
		if s.Detail == nil {
			continue
		}
		field := s.Key + "_detail"
		value := NA
		visible, err := p.rules.Visible(field, env)
		if err != nil {
			v.Add("substances."+field, "%v", err)
			continue
		}
		if a := answers[s.Key]; visible && a.Detail != nil && strings.TrimSpace(*a.Detail) != "" {
			value = strings.TrimSpace(*a.Detail)
			if !validDetail(s.Detail, value) {
				v.Add("substances."+field, "not a valid answer")
				continue
			}
		}
		details = append(details, field+"-"+value)
	}
	return append(used, details...)
}

func validDetail(d *config.DetailField, value string) bool {
	switch d.Kind {
	case "choice":
		return hasChoice(d.Choices, value)
	case "text":
		return d.MaxLength <= 0 || len(value) <= d.MaxLength
	}
	return false
}

// Sleep validates last night's sleep quality and quantity.
func (p *FormProcessor) Sleep(in SleepInput, v *ValidationError) (quality, quantity int) {
	if in.Quality == nil || !hasIntChoice(p.cfg.Sleep.Quality, *in.Quality) {
		v.Add("sleep.quality", "not a valid choice")
	} else {
		quality = *in.Quality
	}
	if in.Quantity == nil || !hasIntChoice(p.cfg.Sleep.Quantity, *in.Quantity) {
		v.Add("sleep.quantity", "not a valid choice")
	} else {
		quantity = *in.Quantity
	}
	return quality, quantity
}

// Timezone accepts the browser-reported zone name; it is optional.
func (p *FormProcessor) Timezone(tz string, v *ValidationError) string {
	tz = strings.TrimSpace(tz)
	if len(tz) > 200 {
		v.Add("timezone", "at most 200 characters")
		return ""
	}
	return tz
}

// MentalHealth returns "<condition>-<age>" for every affirmed diagnosis. The age is NA when
// its field is hidden or absent.
func (p *FormProcessor) MentalHealth(in []DiagnosisAnswer, v *ValidationError) []string {
	answers := map[string]DiagnosisAnswer{}
	for _, a := range in {
		if !hasChoice(p.cfg.MentalHealth.Conditions, a.Condition) {
			v.Add("mental_health."+a.Condition, "unknown condition")
			continue
		}
		if _, dup := answers[a.Condition]; dup {
			v.Add("mental_health."+a.Condition, "answered twice")
			continue
		}
		answers[a.Condition] = a
	}

	env := map[string]any{}
	for _, c := range p.cfg.MentalHealth.Conditions {
		a, ok := answers[c.Value]
		if !ok || a.Diagnosed == nil {
			v.Add("mental_health."+c.Value, "required")
			continue
		}
		env[c.Value] = bool(*a.Diagnosed)
	}

	var history []string
	for _, c := range p.cfg.MentalHealth.Conditions {
		if d, ok := env[c.Value].(bool); !ok || !d {
			continue
		}
		age := NA
		field := c.Value + "_age"
		visible, err := p.rules.Visible(field, env)
		if err != nil {
			v.Add("mental_health."+field, "%v", err)
			continue
		}
		if a := answers[c.Value]; visible && a.Age != nil {
			if !hasIntChoice(p.cfg.MentalHealth.AgeChoices, *a.Age) {
				v.Add("mental_health."+field, "not a valid choice")
				continue
			}
			age = fmt.Sprint(*a.Age)
		}
		history = append(history, c.Value+"-"+age)
	}
	return history
}

// Questionnaires validates answers against the configured battery and returns the answered
// items plus one record per configured item. Unanswered items are stored without an answer.
func (p *FormProcessor) Questionnaires(in []QuestionnaireAnswer, v *ValidationError) (AnswerSet, []*models.QuestionnaireQ) {
	items := map[AnswerKey]config.QuestionnaireItem{}
	for _, q := range p.cfg.Questionnaires {
		for _, it := range q.Items {
			items[AnswerKey{q.Name, it.Number}] = it
		}
	}
	set := AnswerSet{}
	for _, a := range in {
		key := AnswerKey{a.Questionnaire, a.Number}
		field := fmt.Sprintf("%s_%d", a.Questionnaire, a.Number)
		it, ok := items[key]
		if !ok {
			v.Add(field, "unknown questionnaire item")
			continue
		}
		if _, dup := set[key]; dup {
			v.Add(field, "answered twice")
			continue
		}
		if a.Answer == nil {
			continue
		}
		if !hasIntChoice(it.Answers, *a.Answer) {
			v.Add(field, "not a valid answer")
			continue
		}
		set[key] = *a.Answer
	}

	var records []*models.QuestionnaireQ
	for _, q := range p.cfg.Questionnaires {
		for _, it := range q.Items {
			rec := &models.QuestionnaireQ{
				Questionnaire:   q.Name,
				Subscale:        it.Subscale,
				PossibleAnswers: possibleAnswers(it.Answers),
				Question:        it.Text,
				Number:          it.Number,
			}
			if ans, ok := set[AnswerKey{q.Name, it.Number}]; ok {
				ans := ans
				rec.Answer = &ans
			}
			records = append(records, rec)
		}
	}
	return set, records
}

// AttentionCheckbox validates the selected options of the attention checkbox.
func (p *FormProcessor) AttentionCheckbox(selected []string, v *ValidationError) []string {
	a := p.cfg.Attention
	out := make([]string, 0, len(selected))
	for _, s := range selected {
		if s != a.PassTag && s != a.FailTag {
			v.Add("attention_checkbox", "%q is not a valid choice", s)
			continue
		}
		out = append(out, s)
	}
	return out
}

func possibleAnswers(choices []config.IntChoice) models.AnswerMap {
	m := models.AnswerMap{}
	for _, c := range choices {
		m[c.Label] = c.Value
	}
	return m
}

func hasChoice(choices []config.Choice, value string) bool {
	for _, c := range choices {
		if c.Value == value {
			return true
		}
	}
	return false
}

func hasIntChoice(choices []config.IntChoice, value int) bool {
	for _, c := range choices {
		if c.Value == value {
			return true
		}
	}
	return false
}
