package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/fault"
	"github.com/soaringjerry/dronerecon/internal/models"
)

// memStore is an in-memory FlowStore for controller tests.
type memStore struct {
	mu             sync.Mutex
	subjects       map[string]*models.Subject
	sessions       map[string]*models.Session
	stimuli        []*models.Stimulus
	consents       []*models.ConsentRecord
	answers        []*models.QuestionnaireQ
	trials         []*models.Trial
	strategies     []*models.Strategy
	audits         []models.AuditEntry
	taskSaves      int
	failTaskSave   error
	claims         map[string]bool
	releasedClaims int
}

func newMemStore(cfg *config.Config) *memStore {
	s := &memStore{subjects: map[string]*models.Subject{}, sessions: map[string]*models.Session{}, claims: map[string]bool{}}
	add := func(use string, names ...string) {
		for _, n := range names {
			s.stimuli = append(s.stimuli, &models.Stimulus{ID: use + ":" + n, Name: n, Use: use, Image: "images/" + n + ".png"})
		}
	}
	for _, set := range cfg.Task.TutorialSets {
		add(UseTutorial, set.TrainA...)
		add(UseTutorial, set.TrainB...)
		add(UseTutorial, set.TestA...)
		add(UseTutorial, set.TestB...)
	}
	for _, set := range cfg.Task.StimulusSets {
		add(UseTask, set.TrainA...)
		add(UseTask, set.TrainB...)
		add(UseTask, set.TestA...)
		add(UseTask, set.TestB...)
	}
	add(UseSchematic, "schematic_1")
	add(UseFeedback, "feedback_correct")
	return s
}

func (s *memStore) FindSubject(_ context.Context, externalID, source string) (*models.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subjects {
		if sub.ExternalID == externalID && sub.ExternalSource == source {
			return sub, nil
		}
	}
	return nil, fault.ErrNotFound
}

func (s *memStore) tokenUsed(tok string) bool {
	for _, sess := range s.sessions {
		if sess.PaymentToken == tok {
			return true
		}
	}
	return false
}

func (s *memStore) CreateSubjectWithSession(_ context.Context, sub *models.Subject, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subjects {
		if existing.ExternalID == sub.ExternalID && existing.ExternalSource == sub.ExternalSource {
			return fault.ErrUniqueViolation
		}
	}
	if s.tokenUsed(sess.PaymentToken) {
		return fault.ErrUniqueViolation
	}
	cp, scp := *sub, *sess
	s.subjects[sub.ID] = &cp
	s.sessions[sess.ID] = &scp
	return nil
}

func (s *memStore) CreateSession(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokenUsed(sess.PaymentToken) {
		return fault.ErrUniqueViolation
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *memStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fault.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *memStore) AddConsentRecord(_ context.Context, cr *models.ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents = append(s.consents, cr)
	return nil
}

func (s *memStore) AddAudit(_ context.Context, e models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, e)
	return nil
}

func (s *memStore) FindStimulus(_ context.Context, use, name string) (*models.Stimulus, error) {
	for _, st := range s.stimuli {
		if st.Use == use && st.Name == name {
			return st, nil
		}
	}
	return nil, fault.ErrNotFound
}

func (s *memStore) FindStimulusByImage(_ context.Context, image string) (*models.Stimulus, error) {
	for _, st := range s.stimuli {
		if st.Image == image {
			return st, nil
		}
	}
	return nil, fault.ErrNotFound
}

func (s *memStore) ListStimuliByUse(_ context.Context, use string) ([]*models.Stimulus, error) {
	var out []*models.Stimulus
	for _, st := range s.stimuli {
		if st.Use == use {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) SaveQuestionnaireSubmission(_ context.Context, rec *QuestionnaireRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[rec.SessionID]
	if !ok {
		return fault.ErrNotFound
	}
	if sess.QuestionnaireSubmitted {
		return ErrAlreadySubmitted
	}
	if sub, ok := s.subjects[rec.SubjectID]; ok {
		sub.PsychHistory = rec.PsychHistory
	}
	s.answers = append(s.answers, rec.Answers...)
	sess.EndTime = rec.EndTime
	sess.PassedAttentionCheck = rec.Passed
	sess.QuestionnaireDone = rec.QuestionnaireCompleted
	sess.QuestionnaireSubmitted = true
	sess.SessionCompleted = sess.SessionCompleted || rec.SessionCompleted
	return nil
}

func (s *memStore) SaveTaskSubmission(_ context.Context, rec *TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTaskSave != nil {
		return s.failTaskSave
	}
	sess, ok := s.sessions[rec.SessionID]
	if !ok {
		return fault.ErrNotFound
	}
	if sess.TaskCompleted {
		return ErrAlreadySubmitted
	}
	s.taskSaves++
	s.trials = append(s.trials, rec.Trials...)
	s.strategies = append(s.strategies, rec.Strategies...)
	sess.NTrials = len(rec.Trials)
	sess.EndTime = rec.CompletedAt
	sess.TaskCompleted = true
	sess.SessionCompleted = true
	return nil
}

func (s *memStore) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims[key] {
		return false, nil
	}
	s.claims[key] = true
	return true, nil
}

func (s *memStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	s.releasedClaims++
	return nil
}
