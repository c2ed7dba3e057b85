package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/dronerecon/internal/fault"
	"github.com/soaringjerry/dronerecon/internal/models"
)

// TaskStore persists a finished task in one transaction.
type TaskStore interface {
	FindStimulusByImage(ctx context.Context, image string) (*models.Stimulus, error)
	SaveTaskSubmission(ctx context.Context, rec *TaskRecord) error
}

// TaskRecord is everything written when the task runner reports back.
type TaskRecord struct {
	SessionID   string
	Trials      []*models.Trial
	Strategies  []*models.Strategy
	CompletedAt time.Time
}

// TrialBlock is a list of jsPsych trial objects. The runner may post it as a JSON object or as
// a string holding that object.
type TrialBlock[T any] struct {
	Trials []T `json:"trials"`
}

func (b *TrialBlock[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		data = []byte(inner)
	}
	if len(data) == 0 || string(data) == "null" {
		b.Trials = nil
		return nil
	}
	var p struct {
		Trials []T `json:"trials"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	b.Trials = p.Trials
	return nil
}

type ClassificationTrial struct {
	Stimulus          string   `json:"stimulus"`
	Response          string   `json:"response"`
	CorrectResponse   string   `json:"correct_response"`
	DroneType         string   `json:"drone_type"`
	TypeSelected      string   `json:"type_selected"`
	RT                *float64 `json:"rt"`
	Block             string   `json:"block"`
	TrialIndexAligned int      `json:"trial_index_aligned"`
}

type ConfidenceTrial struct {
	Stimulus          string   `json:"stimulus"`
	Response          Number   `json:"response"`
	RT                *float64 `json:"rt"`
	TrialIndexAligned int      `json:"trial_index_aligned"`
}

type StrategyFreeTrial struct {
	Response map[string]string `json:"response"`
}

type StrategyRadioTrial struct {
	Response map[string]any `json:"response"`
}

// TaskSubmission is the body the task runner posts at the end of the game.
type TaskSubmission struct {
	ClassificationTrials TrialBlock[ClassificationTrial] `json:"classification_trials"`
	ConfidenceTrials     TrialBlock[ConfidenceTrial]     `json:"confidence_trials"`
	StrategyFree         TrialBlock[StrategyFreeTrial]   `json:"strategy_free"`
	StrategyRadio        TrialBlock[StrategyRadioTrial]  `json:"strategy_radio"`
}

// Number is a JSON number that may arrive quoted. Null leaves it unset.
type Number struct {
	Value *float64
}

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		n.Value = nil
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%s is not a number", b)
	}
	n.Value = &v
	return nil
}

type ResponseService struct {
	store TaskStore
	now   func() time.Time
	idGen func() string
}

func NewResponseService(store TaskStore) *ResponseService {
	return &ResponseService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: uuid.NewString,
	}
}

// Build turns a submission into rows. Confidence ratings are merged into the classification
// trial with the same stimulus and trial number. A trial number may appear once per block,
// and each trial takes at most one confidence rating.
func (s *ResponseService) Build(ctx context.Context, sessionID string, sub *TaskSubmission) (*TaskRecord, error) {
	rec := &TaskRecord{SessionID: sessionID, CompletedAt: s.now()}
	stimuli := map[string]*models.Stimulus{}
	resolve := func(ref string) (*models.Stimulus, error) {
		image := "images/" + path.Base(stimulusPath(ref))
		if st, ok := stimuli[image]; ok {
			return st, nil
		}
		st, err := s.store.FindStimulusByImage(ctx, image)
		if errors.Is(err, fault.ErrNotFound) {
			return nil, fault.NewInternalError(fmt.Sprintf("trial stimulus %s", image), ErrUnknownStimulus)
		}
		if err != nil {
			return nil, err
		}
		stimuli[image] = st
		return st, nil
	}

	type trialKey struct {
		stimulusID string
		number     int
	}
	type blockKey struct {
		block  string
		number int
	}
	v := &ValidationError{}
	byKey := map[trialKey]*models.Trial{}
	numbers := map[blockKey]bool{}
	for _, t := range sub.ClassificationTrials.Trials {
		if numbers[blockKey{t.Block, t.TrialIndexAligned}] {
			v.Add("classification_trials", "trial %d of block %q submitted twice", t.TrialIndexAligned, t.Block)
			continue
		}
		numbers[blockKey{t.Block, t.TrialIndexAligned}] = true
		st, err := resolve(t.Stimulus)
		if err != nil {
			return nil, err
		}
		trial := &models.Trial{
			ID:               s.idGen(),
			SessionID:        sessionID,
			StimulusID:       st.ID,
			CorrectClass:     t.DroneType,
			Response:         t.TypeSelected,
			Correct:          t.Response == t.CorrectResponse,
			RTClassification: toMillis(t.RT),
			FeedbackGiven:    strings.Contains(t.Block, "train"),
			Block:            t.Block,
			TrialNumber:      t.TrialIndexAligned,
		}
		rec.Trials = append(rec.Trials, trial)
		byKey[trialKey{st.ID, t.TrialIndexAligned}] = trial
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}

	rated := map[trialKey]bool{}
	for _, c := range sub.ConfidenceTrials.Trials {
		st, err := resolve(c.Stimulus)
		if err != nil {
			return nil, err
		}
		key := trialKey{st.ID, c.TrialIndexAligned}
		trial, ok := byKey[key]
		if !ok {
			return nil, fault.NewInternalError(fmt.Sprintf("confidence for %s trial %d", st.Image, c.TrialIndexAligned), ErrTrialNotFound)
		}
		if rated[key] {
			v.Add("confidence_trials", "trial %d rated twice", c.TrialIndexAligned)
			continue
		}
		rated[key] = true
		trial.Confidence = c.Response.Value
		trial.RTConfidence = toMillis(c.RT)
	}

	if free := sub.StrategyFree.Trials; len(free) > 0 {
		rec.Strategies = append(rec.Strategies, &models.Strategy{
			ID: s.idGen(), SessionID: sessionID, Prompt: "free_response", Response: free[0].Response["Q0"],
		})
	}
	if radio := sub.StrategyRadio.Trials; len(radio) > 0 {
		prompts := make([]string, 0, len(radio[0].Response))
		for p := range radio[0].Response {
			prompts = append(prompts, p)
		}
		sort.Strings(prompts)
		for _, p := range prompts {
			rec.Strategies = append(rec.Strategies, &models.Strategy{
				ID: s.idGen(), SessionID: sessionID, Prompt: p, Response: fmt.Sprint(radio[0].Response[p]),
			})
		}
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Record builds and stores a submission.
func (s *ResponseService) Record(ctx context.Context, sessionID string, sub *TaskSubmission) (*TaskRecord, error) {
	rec, err := s.Build(ctx, sessionID, sub)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveTaskSubmission(ctx, rec); err != nil {
		return nil, fmt.Errorf("save task submission: %w", err)
	}
	return rec, nil
}

// stimulusPath drops the scheme, host and query of a stimulus URL.
func stimulusPath(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.Index(ref, "://"); i >= 0 {
		ref = ref[i+3:]
		if j := strings.Index(ref, "/"); j >= 0 {
			ref = ref[j:]
		}
	}
	return ref
}

func toMillis(rt *float64) *int {
	if rt == nil {
		return nil
	}
	v := int(math.Trunc(*rt))
	return &v
}
