package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/fault"
	"github.com/soaringjerry/dronerecon/internal/models"
)

// Stimulus uses.
const (
	UseTask      = "task"
	UseTutorial  = "tutorial"
	UseSchematic = "schematic"
	UseFeedback  = "feedback"
)

type StimulusStore interface {
	FindStimulus(ctx context.Context, use, name string) (*models.Stimulus, error)
	FindStimulusByImage(ctx context.Context, image string) (*models.Stimulus, error)
	ListStimuliByUse(ctx context.Context, use string) ([]*models.Stimulus, error)
}

// TrialSpec is one stimulus handed to the task runner.
type TrialSpec struct {
	Stimulus        string `json:"stimulus"`
	CorrectResponse string `json:"correct_response"`
	DroneType       string `json:"drone_type"`
	Block           string `json:"block"`
}

// TaskParameters is the game page payload.
type TaskParameters struct {
	ConfidenceLabels     []string    `json:"confidence_labels"`
	ConfidenceKeys       []string    `json:"confidence_keys"`
	TutorialTypes        []string    `json:"tutorial_types"`
	TutorialTypesKeys    []string    `json:"tutorial_types_keys"`
	TutorialTrainStimuli []TrialSpec `json:"tutorial_train_stimuli"`
	TutorialTestStimuli  []TrialSpec `json:"tutorial_test_stimuli"`
	DroneTypes           []string    `json:"drone_types"`
	DroneTypesKeys       []string    `json:"drone_types_keys"`
	TrainStimuli         []TrialSpec `json:"train_stimuli"`
	TestStimuli          []TrialSpec `json:"test_stimuli"`
	SchematicURLs        []string    `json:"stim_schematic_urls"`
	FeedbackURLs         []string    `json:"stim_feedback_urls"`
	RequireFullscreen    bool        `json:"require_fullscreen"`
	InitialTest          bool        `json:"initial_test"`
}

type TaskService struct {
	cfg   *config.Config
	store StimulusStore
}

func NewTaskService(cfg *config.Config, store StimulusStore) *TaskService {
	return &TaskService{cfg: cfg, store: store}
}

// StimulusURL is where the client downloads a stimulus image from.
func (s *TaskService) StimulusURL(st *models.Stimulus) string {
	return s.cfg.Server.MediaBaseURL + st.Image
}

// Parameters assembles the stimuli for the configured tutorial and task versions. A configured
// stimulus missing from the catalog is a data-integrity failure.
func (s *TaskService) Parameters(ctx context.Context) (*TaskParameters, error) {
	t := s.cfg.Task
	tut, ok := s.cfg.TutorialSet()
	if !ok {
		return nil, fault.NewInternalError("tutorial set not configured", nil)
	}
	set, ok := s.cfg.StimulusSet()
	if !ok {
		return nil, fault.NewInternalError("stimulus set not configured", nil)
	}
	p := &TaskParameters{
		ConfidenceLabels:  t.ConfidenceLabels,
		ConfidenceKeys:    t.ConfidenceKeys,
		TutorialTypes:     t.TutorialTypes,
		TutorialTypesKeys: t.TutorialKeys,
		DroneTypes:        t.DroneTypes,
		DroneTypesKeys:    t.DroneKeys,
		RequireFullscreen: s.cfg.Experiment.RequireFullscreen,
		InitialTest:       s.cfg.Experiment.InitialTest,
	}
	var err error
	if p.TutorialTrainStimuli, err = s.specs(ctx, UseTutorial, tut.TrainA, tut.TrainB, t.TutorialTypes, t.TutorialKeys, "tutorial_train"); err != nil {
		return nil, err
	}
	if p.TutorialTestStimuli, err = s.specs(ctx, UseTutorial, tut.TestA, tut.TestB, t.TutorialTypes, t.TutorialKeys, "tutorial_test"); err != nil {
		return nil, err
	}
	if p.TrainStimuli, err = s.specs(ctx, UseTask, set.TrainA, set.TrainB, t.DroneTypes, t.DroneKeys, "train"); err != nil {
		return nil, err
	}
	if p.TestStimuli, err = s.specs(ctx, UseTask, set.TestA, set.TestB, t.DroneTypes, t.DroneKeys, "test"); err != nil {
		return nil, err
	}
	if p.SchematicURLs, err = s.urls(ctx, UseSchematic); err != nil {
		return nil, err
	}
	if p.FeedbackURLs, err = s.urls(ctx, UseFeedback); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *TaskService) specs(ctx context.Context, use string, a, b, types, keys []string, block string) ([]TrialSpec, error) {
	out := make([]TrialSpec, 0, len(a)+len(b))
	for class, names := range [][]string{a, b} {
		for _, name := range names {
			st, err := s.store.FindStimulus(ctx, use, name)
			if errors.Is(err, fault.ErrNotFound) {
				return nil, fault.NewInternalError(fmt.Sprintf("%s stimulus %q", use, name), ErrUnknownStimulus)
			}
			if err != nil {
				return nil, err
			}
			out = append(out, TrialSpec{
				Stimulus:        s.StimulusURL(st),
				CorrectResponse: keys[class],
				DroneType:       types[class],
				Block:           block,
			})
		}
	}
	return out, nil
}

func (s *TaskService) urls(ctx context.Context, use string) ([]string, error) {
	list, err := s.store.ListStimuliByUse(ctx, use)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, st := range list {
		out = append(out, s.StimulusURL(st))
	}
	return out, nil
}
