package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/soaringjerry/dronerecon/internal/fault"
	"github.com/soaringjerry/dronerecon/internal/models"
)

type stubRecruitmentStore struct {
	subjects map[string]*models.Subject
	sessions map[string]*models.Session
	records  []*models.Recruitment
	audits   []models.AuditEntry
}

func (s *stubRecruitmentStore) GetSubject(_ context.Context, id string) (*models.Subject, error) {
	if sub, ok := s.subjects[id]; ok {
		return sub, nil
	}
	return nil, fault.ErrNotFound
}

func (s *stubRecruitmentStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return nil, fault.ErrNotFound
}

func (s *stubRecruitmentStore) AddRecruitment(_ context.Context, r *models.Recruitment) error {
	for _, existing := range s.records {
		if r.SessionID != nil && existing.SessionID != nil && *existing.SessionID == *r.SessionID {
			return fault.ErrUniqueViolation
		}
	}
	s.records = append(s.records, r)
	return nil
}

func (s *stubRecruitmentStore) ListRecruitment(_ context.Context, subjectID string) ([]*models.Recruitment, error) {
	var out []*models.Recruitment
	for _, r := range s.records {
		if subjectID == "" || r.SubjectID == subjectID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRecruitmentStore) AddAudit(_ context.Context, e models.AuditEntry) error {
	s.audits = append(s.audits, e)
	return nil
}

func newRecruitment() (*RecruitmentService, *stubRecruitmentStore) {
	store := &stubRecruitmentStore{
		subjects: map[string]*models.Subject{"U1": {ID: "U1"}, "U2": {ID: "U2"}},
		sessions: map[string]*models.Session{"S1": {ID: "S1", SubjectID: "U1"}},
	}
	svc := NewRecruitmentService(store)
	svc.now = func() time.Time { return time.Date(2025, 9, 18, 0, 0, 0, 0, time.UTC) }
	svc.idGen = func() string { return "R" }
	return svc, store
}

func TestRecruitmentRecord(t *testing.T) {
	svc, store := newRecruitment()
	ctx := context.Background()
	accepted := true
	sess := "S1"
	rec, err := svc.Record(ctx, "admin", RecruitmentInput{SubjectID: "U1", SessionID: &sess, Task: "retest", Accepted: &accepted})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.ID != "R" || rec.Time.Year() != 2025 || len(store.audits) != 1 || store.audits[0].Note != "accepted" {
		t.Fatalf("unexpected record %+v audits %+v", rec, store.audits)
	}
	if _, err := svc.Record(ctx, "admin", RecruitmentInput{SubjectID: "U1", SessionID: &sess}); KindOf(err) != KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.Record(ctx, "admin", RecruitmentInput{SubjectID: "U2"}); err != nil {
		t.Fatalf("Record without session: %v", err)
	}
	all, _ := svc.List(ctx, "")
	mine, _ := svc.List(ctx, "U2")
	if len(all) != 2 || len(mine) != 1 || store.audits[1].Note != "pending" {
		t.Fatalf("unexpected listings %d %d", len(all), len(mine))
	}
	none, err := svc.List(ctx, "U9")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty list, got %v %v", none, err)
	}
}

func TestRecruitmentRejects(t *testing.T) {
	svc, _ := newRecruitment()
	ctx := context.Background()
	other := "S1"
	var ve *ValidationError
	_, err := svc.Record(ctx, "admin", RecruitmentInput{Notes: strings.Repeat("x", 1001)})
	if !errors.As(err, &ve) || len(ve.Fields) != 2 {
		t.Fatalf("expected subject_id and notes errors, got %v", err)
	}
	if _, err := svc.Record(ctx, "admin", RecruitmentInput{SubjectID: "U9"}); KindOf(err) != KindNotFound {
		t.Fatalf("expected unknown subject, got %v", err)
	}
	if _, err := svc.Record(ctx, "admin", RecruitmentInput{SubjectID: "U2", SessionID: &other}); KindOf(err) != KindNotFound {
		t.Fatalf("session of another subject must be rejected, got %v", err)
	}
}
