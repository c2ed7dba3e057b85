package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/dronerecon/internal/fault"
	"github.com/soaringjerry/dronerecon/internal/models"
)

// Subject sources.
const (
	SourceInternal = "internal"
	SourceProlific = "prolific"
)

type ParticipantStore interface {
	FindSubject(ctx context.Context, externalID, source string) (*models.Subject, error)
	CreateSubjectWithSession(ctx context.Context, subject *models.Subject, session *models.Session) error
	AddAudit(ctx context.Context, entry models.AuditEntry) error
}

// ParticipantRegistry looks up and creates subjects keyed by (external id, source).
type ParticipantRegistry struct {
	store ParticipantStore
	now   func() time.Time
	idGen func() string
}

func NewParticipantRegistry(store ParticipantStore) *ParticipantRegistry {
	return &ParticipantRegistry{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: uuid.NewString,
	}
}

// FindOrFlagExisting returns the subject and true when one is already registered.
func (r *ParticipantRegistry) FindOrFlagExisting(ctx context.Context, externalID, source string) (*models.Subject, bool, error) {
	s, err := r.store.FindSubject(ctx, externalID, source)
	if errors.Is(err, fault.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find subject: %w", err)
	}
	return s, s != nil, nil
}

// NewSubject builds an unsaved subject from the registration form.
func (r *ParticipantRegistry) NewSubject(externalID, source string, d Demographics) *models.Subject {
	return &models.Subject{
		ID:             r.idGen(),
		ExternalID:     externalID,
		ExternalSource: source,
		Age:            d.Age,
		Sex:            d.Sex,
		Gender:         d.Gender,
		Education:      d.Education,
		PsychHistory:   models.StringList{},
		CreatedAt:      r.now(),
	}
}

// Create stores a new subject together with its first session. A concurrent registration of
// the same identity is reported as a conflict; any other unique violation (a payment token
// collision) is returned as fault.ErrUniqueViolation so the caller can retry.
func (r *ParticipantRegistry) Create(ctx context.Context, subject *models.Subject, first *models.Session) error {
	first.SubjectID = subject.ID
	err := r.store.CreateSubjectWithSession(ctx, subject, first)
	if errors.Is(err, fault.ErrUniqueViolation) {
		if _, exists, ferr := r.FindOrFlagExisting(ctx, subject.ExternalID, subject.ExternalSource); ferr == nil && exists {
			return NewConflictError("subject already exists")
		}
		return err
	}
	if err != nil {
		return err
	}
	_ = r.store.AddAudit(ctx, models.AuditEntry{Time: r.now(), Actor: "participant", Action: "register", Target: subject.ID, Note: subject.ExternalSource})
	return nil
}
