package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/models"
)

// Identity placeholders used outside deployment mode.
const (
	PlaceholderSessionID = "test"
	PlaceholderStudyID   = "foo"
	PlaceholderPID       = "bar"

	// Sessions registered without Prolific carry these external IDs.
	InternalStudyID   = "foo"
	InternalSessionID = "bar"
)

type ConsentStore interface {
	AddConsentRecord(ctx context.Context, cr *models.ConsentRecord) error
	AddAudit(ctx context.Context, entry models.AuditEntry) error
}

type ConsentService struct {
	cfg   *config.Config
	store ConsentStore
	now   func() time.Time
	idGen func() string
}

func NewConsentService(cfg *config.Config, store ConsentStore) *ConsentService {
	return &ConsentService{
		cfg:   cfg,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: func() string { return consentID(12) },
	}
}

// Resolve turns the recruitment-platform query parameters into flow state. It returns false
// when the traffic looks invalid: identity missing in deployment mode or an unknown activity mix.
func (s *ConsentService) Resolve(p IdentityParams) (*FlowState, bool) {
	exp := s.cfg.Experiment
	mix := s.cfg.Experiment.DefaultActivityMix
	if strings.TrimSpace(p.ActivityMix) != "" {
		var ok bool
		if mix, ok = config.NormalizeActivityMix(p.ActivityMix); !ok {
			return nil, false
		}
	}
	pid := strings.TrimSpace(p.ParticipantID)
	study := strings.TrimSpace(p.StudyID)
	sess := strings.TrimSpace(p.SessionID)
	if exp.Deployment && (pid == "" || study == "" || sess == "") {
		return nil, false
	}
	return &FlowState{
		ExternalID:        orDefault(pid, PlaceholderPID),
		ExternalStudyID:   orDefault(study, PlaceholderStudyID),
		ExternalSessionID: orDefault(sess, PlaceholderSessionID),
		ActivityMix:       mix,
	}, true
}

// Begin resolves identity for the consent page and records that the participant saw it.
// Without Prolific the identity comes later from the registration form, so only the
// activity mix is pinned here.
func (s *ConsentService) Begin(ctx context.Context, p IdentityParams) (*FlowState, bool, error) {
	if !s.cfg.Experiment.Prolific {
		mix := s.cfg.Experiment.DefaultActivityMix
		if strings.TrimSpace(p.ActivityMix) != "" {
			var ok bool
			if mix, ok = config.NormalizeActivityMix(p.ActivityMix); !ok {
				return nil, false, nil
			}
		}
		return &FlowState{ActivityMix: mix}, true, nil
	}
	state, ok := s.Resolve(p)
	if !ok {
		s.audit(ctx, "fishy", p.ParticipantID, "missing or invalid identity")
		return nil, false, nil
	}
	if err := s.record(ctx, state); err != nil {
		return nil, false, err
	}
	return state, true, nil
}

func (s *ConsentService) record(ctx context.Context, st *FlowState) error {
	evidence := strings.Join([]string{st.ExternalID, st.ExternalStudyID, st.ExternalSessionID, st.ActivityMix}, "|")
	sum := sha256.Sum256([]byte(evidence))
	id := s.idGen()
	cr := &models.ConsentRecord{
		ID:                id,
		ExternalID:        st.ExternalID,
		ExternalStudyID:   st.ExternalStudyID,
		ExternalSessionID: st.ExternalSessionID,
		ActivityMix:       st.ActivityMix,
		Hash:              base64.StdEncoding.EncodeToString(sum[:]),
		SignedAt:          s.now(),
	}
	if err := s.store.AddConsentRecord(ctx, cr); err != nil {
		return fmt.Errorf("add consent record: %w", err)
	}
	s.audit(ctx, "consent", st.ExternalID, id)
	return nil
}

func (s *ConsentService) audit(ctx context.Context, action, target, note string) {
	_ = s.store.AddAudit(ctx, models.AuditEntry{Time: s.now(), Actor: "participant", Action: action, Target: target, Note: note})
}

func consentID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
