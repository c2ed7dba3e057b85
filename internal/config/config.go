package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/soaringjerry/dronerecon/internal/utils"
)

// Activity mixes a session can be pinned to.
const (
	MixScreen = "screen"
	MixTask   = "task"
	MixBoth   = "both"
)

// Server contains bind address, static frontend and media settings.
type Server struct {
	Addr         string `toml:"addr"`
	StaticDir    string `toml:"static_dir"`
	MediaBaseURL string `toml:"media_base_url"`
	Commit       string `toml:"commit"`
	BuildTime    string `toml:"build_time"`
}

// State configures the signed flow-state token handed to participants.
type State struct {
	Secret       string `toml:"secret"`
	TTLMinutes   int    `toml:"ttl_minutes"`
	CookieName   string `toml:"cookie_name"`
	SecureCookie bool   `toml:"secure_cookie"`
}

// Database selects the relational backend. Driver is "sqlite3" or "postgres".
type Database struct {
	Driver        string `toml:"driver"`
	DSN           string `toml:"dsn"`
	MigrationsDir string `toml:"migrations_dir"`
}

// Redis is optional; when URL is empty the SQL submission guard is used.
type Redis struct {
	URL string `toml:"url"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Admin protects the export endpoints. An empty PasswordHash disables them.
type Admin struct {
	User         string `toml:"user"`
	PasswordHash string `toml:"password_hash"`
}

type Captcha struct {
	Enabled   bool   `toml:"enabled"`
	Secret    string `toml:"secret"`
	SiteKey   string `toml:"site_key"`
	VerifyURL string `toml:"verify_url"`
}

// Experiment holds the deployment switches of the running study.
type Experiment struct {
	Prolific             bool     `toml:"prolific"`
	Deployment           bool     `toml:"deployment"`
	AttentionCheck       bool     `toml:"attention_check"`
	InitialTest          bool     `toml:"initial_test"`
	RetestNumber         int      `toml:"retest_number"`
	DefaultActivityMix   string   `toml:"default_activity_mix"`
	Project              string   `toml:"project"`
	Game                 string   `toml:"game"`
	ProhibitedBrowsers   []string `toml:"prohibited_browsers"`
	RequireFullscreen    bool     `toml:"require_fullscreen"`
	TutorialVersion      int      `toml:"tutorial_version"`
	TaskVersion          int      `toml:"task_version"`
	ConfidenceVersion    int      `toml:"confidence_version"`
	MaxAttentionFailures int      `toml:"max_attention_failures"`
}

// Tokens configures payment and rejection codes. RejectionTokens is keyed by activity mix;
// RejectionToken is the fallback for mixes without an entry.
type Tokens struct {
	PaymentTokenLength int               `toml:"payment_token_length"`
	RejectionToken     string            `toml:"rejection_token"`
	RejectionTokens    map[string]string `toml:"rejection_tokens"`
}

type Choice struct {
	Value string `toml:"value" json:"value"`
	Label string `toml:"label" json:"label"`
}

type IntChoice struct {
	Value int    `toml:"value" json:"value"`
	Label string `toml:"label" json:"label"`
}

type Registration struct {
	MinAge         int      `toml:"min_age"`
	MaxAge         int      `toml:"max_age"`
	Sexes          []Choice `toml:"sexes"`
	Genders        []Choice `toml:"genders"`
	Education      []Choice `toml:"education"`
	SubjectSources []Choice `toml:"subject_sources"`
}

type Sleep struct {
	Quality  []IntChoice `toml:"quality"`
	Quantity []IntChoice `toml:"quantity"`
}

// DetailField is the follow-up question revealed when a substance is affirmed.
// Kind is "choice" or "text".
type DetailField struct {
	Kind      string   `toml:"kind" json:"kind"`
	Label     string   `toml:"label" json:"label"`
	Choices   []Choice `toml:"choices" json:"choices,omitempty"`
	MaxLength int      `toml:"max_length" json:"max_length,omitempty"`
}

type Substance struct {
	Key    string       `toml:"key" json:"key"`
	Label  string       `toml:"label" json:"label"`
	Detail *DetailField `toml:"detail" json:"detail,omitempty"`
}

type MentalHealth struct {
	Conditions []Choice    `toml:"conditions"`
	AgeChoices []IntChoice `toml:"age_choices"`
}

// Attention locates the checks the evaluator runs. Item numbers refer to questionnaire item numbers.
type Attention struct {
	CheckboxLabel string   `toml:"checkbox_label"`
	PassTag       string   `toml:"pass_tag"`
	FailTag       string   `toml:"fail_tag"`
	Options       []Choice `toml:"options"`

	DecoyQuestionnaire string `toml:"decoy_questionnaire"`
	DecoyItem          int    `toml:"decoy_item"`
	DecoyExpected      int    `toml:"decoy_expected"`

	RepeatQuestionnaire string `toml:"repeat_questionnaire"`
	RepeatFirst         int    `toml:"repeat_first"`
	RepeatSecond        int    `toml:"repeat_second"`

	EmbeddedQuestionnaire string `toml:"embedded_questionnaire"`
	EmbeddedSubscale      string `toml:"embedded_subscale"`
	EmbeddedExpected      int    `toml:"embedded_expected"`
}

type QuestionnaireItem struct {
	Number   int         `toml:"number" json:"number"`
	Text     string      `toml:"text" json:"text"`
	Subscale string      `toml:"subscale" json:"subscale"`
	Reverse  bool        `toml:"reverse" json:"reverse,omitempty"`
	Answers  []IntChoice `toml:"answers" json:"answers"`
}

type Questionnaire struct {
	Name         string              `toml:"name" json:"name"`
	Instructions string              `toml:"instructions" json:"instructions"`
	Items        []QuestionnaireItem `toml:"items" json:"items"`
}

// ConditionalRule reveals Targets when the When expression evaluates true against the parsed
// yes/no answers of the form.
type ConditionalRule struct {
	Parent  string   `toml:"parent" json:"parent"`
	When    string   `toml:"when" json:"when"`
	Targets []string `toml:"targets" json:"questions"`
}

// StimulusSet names the A (first drone type) and B (second drone type) stimuli of one
// task or tutorial version. Retest 0 is the initial test.
type StimulusSet struct {
	Version int      `toml:"version"`
	Retest  int      `toml:"retest"`
	TrainA  []string `toml:"train_a"`
	TrainB  []string `toml:"train_b"`
	TestA   []string `toml:"test_a"`
	TestB   []string `toml:"test_b"`
}

type Task struct {
	ConfidenceLabels []string      `toml:"confidence_labels"`
	ConfidenceKeys   []string      `toml:"confidence_keys"`
	TutorialTypes    []string      `toml:"tutorial_types"`
	TutorialKeys     []string      `toml:"tutorial_keys"`
	DroneTypes       []string      `toml:"drone_types"`
	DroneKeys        []string      `toml:"drone_keys"`
	TutorialSets     []StimulusSet `toml:"tutorial_sets"`
	StimulusSets     []StimulusSet `toml:"stimulus_sets"`
}

// Config is built once by Load and shared read-only afterwards.
type Config struct {
	Server         Server            `toml:"server"`
	State          State             `toml:"state"`
	Database       Database          `toml:"database"`
	Redis          Redis             `toml:"redis"`
	Logging        Logging           `toml:"logging"`
	Admin          Admin             `toml:"admin"`
	Captcha        Captcha           `toml:"captcha"`
	Experiment     Experiment        `toml:"experiment"`
	Tokens         Tokens            `toml:"tokens"`
	Registration   Registration      `toml:"registration"`
	Sleep          Sleep             `toml:"sleep"`
	Substances     []Substance       `toml:"substances"`
	MentalHealth   MentalHealth      `toml:"mental_health"`
	Attention      Attention         `toml:"attention"`
	Questionnaires []Questionnaire   `toml:"questionnaires"`
	Conditional    []ConditionalRule `toml:"conditional"`
	Task           Task              `toml:"task"`
}

// Load builds the configuration: defaults, then the optional TOML file at path, then
// DRONERECON_* environment overrides. A missing file is only an error when path was given.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = utils.SafeEnv("DRONERECON_ADDR", c.Server.Addr)
	c.Server.StaticDir = utils.SafeEnv("DRONERECON_STATIC_DIR", c.Server.StaticDir)
	c.Server.MediaBaseURL = utils.SafeEnv("DRONERECON_MEDIA_BASE_URL", c.Server.MediaBaseURL)
	c.Server.Commit = utils.SafeEnv("DRONERECON_COMMIT", c.Server.Commit)
	c.Server.BuildTime = utils.SafeEnv("DRONERECON_BUILD_TIME", c.Server.BuildTime)
	c.State.Secret = utils.SafeEnv("DRONERECON_STATE_SECRET", c.State.Secret)
	c.Database.Driver = utils.SafeEnv("DRONERECON_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = utils.SafeEnv("DRONERECON_DB_DSN", c.Database.DSN)
	c.Redis.URL = utils.SafeEnv("DRONERECON_REDIS_URL", c.Redis.URL)
	c.Logging.Level = utils.SafeEnv("DRONERECON_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = utils.SafeEnv("DRONERECON_LOG_FORMAT", c.Logging.Format)
	c.Admin.User = utils.SafeEnv("DRONERECON_ADMIN_USER", c.Admin.User)
	c.Admin.PasswordHash = utils.SafeEnv("DRONERECON_ADMIN_PASSWORD_HASH", c.Admin.PasswordHash)
	c.Captcha.Secret = utils.SafeEnv("DRONERECON_CAPTCHA_SECRET", c.Captcha.Secret)
	c.Experiment.DefaultActivityMix = utils.SafeEnv("DEFAULT_WEBAPP_USE", c.Experiment.DefaultActivityMix)

	boolVars := []struct {
		key string
		dst *bool
	}{
		{"DRONERECON_DEPLOYMENT", &c.Experiment.Deployment},
		{"DRONERECON_PROLIFIC", &c.Experiment.Prolific},
		{"DRONERECON_CAPTCHA_ENABLED", &c.Captcha.Enabled},
		{"DRONERECON_SECURE_COOKIE", &c.State.SecureCookie},
	}
	for _, v := range boolVars {
		b, err := utils.SafeEnvBool(v.key, *v.dst)
		if err != nil {
			return err
		}
		*v.dst = b
	}
	return nil
}

// NormalizeActivityMix accepts the three activity mixes, plus "game" as a legacy alias for "task".
func NormalizeActivityMix(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case MixScreen:
		return MixScreen, true
	case MixTask, "game":
		return MixTask, true
	case MixBoth:
		return MixBoth, true
	default:
		return "", false
	}
}

// Questionnaire returns the configured questionnaire with the given name.
func (c *Config) Questionnaire(name string) (*Questionnaire, bool) {
	for i := range c.Questionnaires {
		if c.Questionnaires[i].Name == name {
			return &c.Questionnaires[i], true
		}
	}
	return nil, false
}

// RejectionTokenFor returns the fixed token shown to participants who fail the attention check.
func (c *Config) RejectionTokenFor(mix string) string {
	if tok, ok := c.Tokens.RejectionTokens[mix]; ok && tok != "" {
		return tok
	}
	return c.Tokens.RejectionToken
}

// StimulusSet returns the task stimuli for the configured task version and test/retest.
func (c *Config) StimulusSet() (*StimulusSet, bool) {
	retest := 0
	if !c.Experiment.InitialTest {
		retest = c.Experiment.RetestNumber
	}
	for i := range c.Task.StimulusSets {
		s := &c.Task.StimulusSets[i]
		if s.Version != c.Experiment.TaskVersion {
			continue
		}
		// version 0 is the short development task and has no retest variants
		if s.Version == 0 || s.Retest == retest {
			return s, true
		}
	}
	return nil, false
}

// TutorialSet returns the tutorial stimuli for the configured tutorial version.
func (c *Config) TutorialSet() (*StimulusSet, bool) {
	for i := range c.Task.TutorialSets {
		if c.Task.TutorialSets[i].Version == c.Experiment.TutorialVersion {
			return &c.Task.TutorialSets[i], true
		}
	}
	return nil, false
}
