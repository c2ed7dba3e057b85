package config

import (
	"errors"
	"fmt"
	"strings"
)

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "sqlite" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.Driver == "postgresql" {
		c.Database.Driver = "postgres"
	}
	if mix, ok := NormalizeActivityMix(c.Experiment.DefaultActivityMix); ok {
		c.Experiment.DefaultActivityMix = mix
	}
	if c.Server.MediaBaseURL != "" && !strings.HasSuffix(c.Server.MediaBaseURL, "/") {
		c.Server.MediaBaseURL += "/"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateExperiment(); err != nil {
		return err
	}
	if err := c.validateQuestionnaires(); err != nil {
		return err
	}
	if err := c.validateAttention(); err != nil {
		return err
	}
	if err := c.validateTask(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if c.State.Secret == "" {
		return errors.New("state.secret must be set")
	}
	if c.Experiment.Deployment && c.State.Secret == DevStateSecret {
		return errors.New("state.secret must be changed from the development default in deployment mode (set DRONERECON_STATE_SECRET)")
	}
	if c.State.TTLMinutes <= 0 {
		return errors.New("state.ttl_minutes must be positive")
	}
	if c.Captcha.Enabled && c.Captcha.Secret == "" {
		return errors.New("captcha.secret is required when captcha is enabled")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver: unsupported value %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn must be set")
	}
	return nil
}

func (c *Config) validateExperiment() error {
	if _, ok := NormalizeActivityMix(c.Experiment.DefaultActivityMix); !ok {
		return fmt.Errorf("experiment.default_activity_mix: %q is not one of screen, task, both", c.Experiment.DefaultActivityMix)
	}
	if c.Experiment.MaxAttentionFailures < 0 {
		return errors.New("experiment.max_attention_failures must not be negative")
	}
	if c.Tokens.PaymentTokenLength < 4 {
		return errors.New("tokens.payment_token_length must be at least 4")
	}
	if c.Tokens.RejectionToken == "" {
		return errors.New("tokens.rejection_token must be set")
	}
	if c.Registration.MinAge > c.Registration.MaxAge {
		return errors.New("registration.min_age must not exceed registration.max_age")
	}
	seen := map[string]bool{}
	for _, s := range c.Substances {
		if s.Key == "" || seen[s.Key] {
			return fmt.Errorf("substances: empty or duplicate key %q", s.Key)
		}
		seen[s.Key] = true
		if s.Detail != nil && s.Detail.Kind != "choice" && s.Detail.Kind != "text" {
			return fmt.Errorf("substances.%s.detail.kind: unsupported value %q", s.Key, s.Detail.Kind)
		}
	}
	for _, r := range c.Conditional {
		if r.Parent == "" || strings.TrimSpace(r.When) == "" || len(r.Targets) == 0 {
			return fmt.Errorf("conditional rule for %q needs parent, when and targets", r.Parent)
		}
	}
	return nil
}

func (c *Config) validateQuestionnaires() error {
	names := map[string]bool{}
	for _, q := range c.Questionnaires {
		if q.Name == "" || names[q.Name] {
			return fmt.Errorf("questionnaires: empty or duplicate name %q", q.Name)
		}
		names[q.Name] = true
		numbers := map[int]bool{}
		for _, it := range q.Items {
			if numbers[it.Number] {
				return fmt.Errorf("questionnaires.%s: duplicate item number %d", q.Name, it.Number)
			}
			numbers[it.Number] = true
			if len(it.Answers) == 0 {
				return fmt.Errorf("questionnaires.%s item %d: answers must be set", q.Name, it.Number)
			}
		}
	}
	return nil
}

func (c *Config) validateAttention() error {
	if !c.Experiment.AttentionCheck {
		return nil
	}
	a := c.Attention
	if a.PassTag == "" || a.FailTag == "" || len(a.Options) == 0 {
		return errors.New("attention: pass_tag, fail_tag and options must be set")
	}
	checks := []struct {
		name string
		item int
	}{
		{a.DecoyQuestionnaire, a.DecoyItem},
		{a.RepeatQuestionnaire, a.RepeatFirst},
		{a.RepeatQuestionnaire, a.RepeatSecond},
	}
	for _, chk := range checks {
		if !c.hasItem(chk.name, chk.item) {
			return fmt.Errorf("attention: questionnaire %q has no item %d", chk.name, chk.item)
		}
	}
	q, ok := c.Questionnaire(a.EmbeddedQuestionnaire)
	if !ok {
		return fmt.Errorf("attention: questionnaire %q not configured", a.EmbeddedQuestionnaire)
	}
	for _, it := range q.Items {
		if it.Subscale == a.EmbeddedSubscale {
			return nil
		}
	}
	return fmt.Errorf("attention: questionnaire %q has no %q item", a.EmbeddedQuestionnaire, a.EmbeddedSubscale)
}

func (c *Config) hasItem(name string, number int) bool {
	q, ok := c.Questionnaire(name)
	if !ok {
		return false
	}
	for _, it := range q.Items {
		if it.Number == number {
			return true
		}
	}
	return false
}

func (c *Config) validateTask() error {
	if len(c.Task.ConfidenceLabels) != len(c.Task.ConfidenceKeys) {
		return errors.New("task: confidence labels and keys differ in length")
	}
	if len(c.Task.DroneTypes) != 2 || len(c.Task.DroneKeys) != 2 {
		return errors.New("task: exactly two drone types and keys are required")
	}
	if len(c.Task.TutorialTypes) != 2 || len(c.Task.TutorialKeys) != 2 {
		return errors.New("task: exactly two tutorial types and keys are required")
	}
	if _, ok := c.TutorialSet(); !ok {
		return fmt.Errorf("task: no tutorial set for version %d", c.Experiment.TutorialVersion)
	}
	if _, ok := c.StimulusSet(); !ok {
		if c.Experiment.InitialTest {
			return fmt.Errorf("task: no stimulus set for version %d", c.Experiment.TaskVersion)
		}
		return fmt.Errorf("task: no stimulus set for version %d retest %d", c.Experiment.TaskVersion, c.Experiment.RetestNumber)
	}
	return nil
}
