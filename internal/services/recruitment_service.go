package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/dronerecon/internal/fault"
	"github.com/soaringjerry/dronerecon/internal/models"
)

type RecruitmentStore interface {
	GetSubject(ctx context.Context, id string) (*models.Subject, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// AddRecruitment returns fault.ErrUniqueViolation when the session already has a decision.
	AddRecruitment(ctx context.Context, r *models.Recruitment) error
	ListRecruitment(ctx context.Context, subjectID string) ([]*models.Recruitment, error)
	AddAudit(ctx context.Context, entry models.AuditEntry) error
}

type RecruitmentInput struct {
	SubjectID       string  `json:"subject_id"`
	SessionID       *string `json:"session_id"`
	ProlificStudyID string  `json:"prolific_study_id"`
	Task            string  `json:"task"`
	Notes           string  `json:"notes"`
	Source          string  `json:"source"`
	Accepted        *bool   `json:"accepted"`
}

// RecruitmentService records whether a subject was accepted into a follow-up study.
type RecruitmentService struct {
	store RecruitmentStore
	now   func() time.Time
	idGen func() string
}

func NewRecruitmentService(store RecruitmentStore) *RecruitmentService {
	return &RecruitmentService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: uuid.NewString,
	}
}

func (s *RecruitmentService) validate(in *RecruitmentInput) error {
	v := &ValidationError{}
	in.SubjectID = strings.TrimSpace(in.SubjectID)
	if in.SubjectID == "" {
		v.Add("subject_id", "required")
	}
	for field, val := range map[string]string{"prolific_study_id": in.ProlificStudyID, "task": in.Task, "source": in.Source} {
		if len(val) > 100 {
			v.Add(field, "at most 100 characters")
		}
	}
	if len(in.Notes) > 1000 {
		v.Add("notes", "at most 1000 characters")
	}
	return v.OrNil()
}

// Record stores one recruitment decision. The session, when given, must belong to the subject.
func (s *RecruitmentService) Record(ctx context.Context, actor string, in RecruitmentInput) (*models.Recruitment, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	if _, err := s.store.GetSubject(ctx, in.SubjectID); err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			return nil, NewNotFoundError("subject not found")
		}
		return nil, fmt.Errorf("get subject: %w", err)
	}
	if in.SessionID != nil {
		sess, err := s.store.GetSession(ctx, *in.SessionID)
		if errors.Is(err, fault.ErrNotFound) || (err == nil && sess.SubjectID != in.SubjectID) {
			return nil, NewNotFoundError("session not found for subject")
		}
		if err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}
	}
	rec := &models.Recruitment{
		ID:              s.idGen(),
		SubjectID:       in.SubjectID,
		SessionID:       in.SessionID,
		ProlificStudyID: in.ProlificStudyID,
		Time:            s.now(),
		Task:            in.Task,
		Notes:           in.Notes,
		Source:          in.Source,
		Accepted:        in.Accepted,
	}
	if err := s.store.AddRecruitment(ctx, rec); err != nil {
		if errors.Is(err, fault.ErrUniqueViolation) {
			return nil, NewConflictError("session already has a recruitment decision")
		}
		return nil, fmt.Errorf("add recruitment: %w", err)
	}
	_ = s.store.AddAudit(ctx, models.AuditEntry{Time: rec.Time, Actor: actor, Action: "recruitment", Target: rec.SubjectID, Note: decision(rec.Accepted)})
	return rec, nil
}

// List returns the decisions for one subject, or all when subjectID is empty.
func (s *RecruitmentService) List(ctx context.Context, subjectID string) ([]*models.Recruitment, error) {
	out, err := s.store.ListRecruitment(ctx, strings.TrimSpace(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list recruitment: %w", err)
	}
	if out == nil {
		out = []*models.Recruitment{}
	}
	return out, nil
}

func decision(accepted *bool) string {
	switch {
	case accepted == nil:
		return "pending"
	case *accepted:
		return "accepted"
	default:
		return "rejected"
	}
}
