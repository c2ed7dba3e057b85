package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/soaringjerry/dronerecon/internal/fault"
	"github.com/soaringjerry/dronerecon/internal/models"
	"github.com/soaringjerry/dronerecon/internal/services"
)

var (
	stimulusCols = []string{"id", "name", "use_kind", "image"}
	subjectCols  = []string{"id", "external_id", "external_source", "age", "sex", "gender", "education", "is_bot", "psych_history", "created_at"}
	sessionCols  = []string{
		"id", "subject_id", "external_study_id", "external_session_id", "activity_mix", "n_trials",
		"start_time", "end_time", "session_completed", "questionnaire_completed", "task_completed",
		"passed_attention_check", "payment_token", "project", "task", "substances", "sleep_quality",
		"sleep_quantity", "timezone", "browser", "questionnaire_submitted",
	}
	trialCols = []string{
		"id", "session_id", "stimulus_id", "correct_class", "response", "correct", "confidence",
		"rt_classification", "rt_confidence", "feedback_given", "block", "trial_number",
	}
	answerCols      = []string{"id", "session_id", "questionnaire_name", "subscale", "possible_answers", "question", "answer", "question_number"}
	strategyCols    = []string{"id", "session_id", "prompt", "response"}
	consentCols     = []string{"id", "external_id", "external_study_id", "external_session_id", "activity_mix", "evidence_hash", "signed_at"}
	auditCols       = []string{"time", "actor", "action", "target", "note"}
	recruitmentCols = []string{"id", "subject_id", "session_id", "prolific_study_id", "time", "task", "notes", "source", "accepted"}
)

var _ services.FlowStore = (*Store)(nil)

func (s *Store) FindSubject(ctx context.Context, externalID, source string) (*models.Subject, error) {
	var sub models.Subject
	if err := s.get(ctx, &sub, "SELECT * FROM subjects WHERE external_id = ? AND external_source = ?", externalID, source); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) GetSubject(ctx context.Context, id string) (*models.Subject, error) {
	var sub models.Subject
	if err := s.get(ctx, &sub, "SELECT * FROM subjects WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubjectWithSession writes a new subject and its first session in one transaction.
func (s *Store) CreateSubjectWithSession(ctx context.Context, sub *models.Subject, sess *models.Session) error {
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := sqlx.NamedExecContext(ctx, tx, insertSQL("subjects", subjectCols...), sub); err != nil {
			return err
		}
		_, err := sqlx.NamedExecContext(ctx, tx, insertSQL("sessions", sessionCols...), sess)
		return err
	})
	return mapErr(err)
}

func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	_, err := sqlx.NamedExecContext(ctx, s.db, insertSQL("sessions", sessionCols...), sess)
	return mapErr(err)
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	if err := s.get(ctx, &sess, "SELECT * FROM sessions WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) AddConsentRecord(ctx context.Context, cr *models.ConsentRecord) error {
	_, err := sqlx.NamedExecContext(ctx, s.db, insertSQL("consent_records", consentCols...), cr)
	return mapErr(err)
}

func (s *Store) AddAudit(ctx context.Context, e models.AuditEntry) error {
	_, err := sqlx.NamedExecContext(ctx, s.db, insertSQL("audit_log", auditCols...), e)
	return mapErr(err)
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	out := []models.AuditEntry{}
	if err := s.list(ctx, &out, "SELECT * FROM audit_log ORDER BY time DESC LIMIT ?", limit); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveQuestionnaireSubmission writes the answers, the subject's history and the session flags
// in one transaction. A session that already took a submission yields
// services.ErrAlreadySubmitted and nothing is written.
func (s *Store) SaveQuestionnaireSubmission(ctx context.Context, rec *services.QuestionnaireRecord) error {
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE sessions SET end_time = ?, passed_attention_check = ?,
			questionnaire_completed = ?, session_completed = (session_completed OR ?), questionnaire_submitted = TRUE
			WHERE id = ? AND NOT questionnaire_submitted`),
			rec.EndTime, rec.Passed, rec.QuestionnaireCompleted, rec.SessionCompleted, rec.SessionID)
		if err != nil {
			return err
		}
		if err := stageWritten(ctx, tx, res, rec.SessionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("UPDATE subjects SET psych_history = ? WHERE id = ?"),
			models.StringList(rec.PsychHistory), rec.SubjectID); err != nil {
			return err
		}
		return insertAll(ctx, tx, "questionnaire_qs", answerCols, rec.Answers)
	})
	return mapErr(err)
}

// SaveTaskSubmission writes trials and strategies and marks the session complete in one
// transaction. A session whose task is already recorded yields services.ErrAlreadySubmitted.
func (s *Store) SaveTaskSubmission(ctx context.Context, rec *services.TaskRecord) error {
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE sessions SET n_trials = ?, end_time = ?,
			task_completed = ?, session_completed = ? WHERE id = ? AND NOT task_completed`),
			len(rec.Trials), rec.CompletedAt, true, true, rec.SessionID)
		if err != nil {
			return err
		}
		if err := stageWritten(ctx, tx, res, rec.SessionID); err != nil {
			return err
		}
		if err := insertAll(ctx, tx, "trials", trialCols, rec.Trials); err != nil {
			return err
		}
		return insertAll(ctx, tx, "strategies", strategyCols, rec.Strategies)
	})
	return mapErr(err)
}

// stageWritten tells a missing session apart from one whose guarded flag was already set
// when a conditional session update touched no row.
func stageWritten(ctx context.Context, tx *sqlx.Tx, res sql.Result, sessionID string) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var exists int
	err := tx.GetContext(ctx, &exists, tx.Rebind("SELECT COUNT(*) FROM sessions WHERE id = ?"), sessionID)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fault.ErrNotFound
	}
	return services.ErrAlreadySubmitted
}

// insertAll prepares one named INSERT and runs it for every row.
func insertAll[T any](ctx context.Context, tx *sqlx.Tx, table string, cols []string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, insertSQL(table, cols...))
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) FindStimulus(ctx context.Context, use, name string) (*models.Stimulus, error) {
	var st models.Stimulus
	if err := s.get(ctx, &st, "SELECT * FROM stimuli WHERE use_kind = ? AND name = ?", use, name); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) FindStimulusByImage(ctx context.Context, image string) (*models.Stimulus, error) {
	var st models.Stimulus
	if err := s.get(ctx, &st, "SELECT * FROM stimuli WHERE image = ?", image); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) ListStimuliByUse(ctx context.Context, use string) ([]*models.Stimulus, error) {
	out := []*models.Stimulus{}
	if err := s.list(ctx, &out, "SELECT * FROM stimuli WHERE use_kind = ? ORDER BY name", use); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListStimuli(ctx context.Context) ([]*models.Stimulus, error) {
	out := []*models.Stimulus{}
	if err := s.list(ctx, &out, "SELECT * FROM stimuli ORDER BY use_kind, name"); err != nil {
		return nil, err
	}
	return out, nil
}

// AddStimulus registers a catalog entry; a duplicate name or image is fault.ErrUniqueViolation.
func (s *Store) AddStimulus(ctx context.Context, st *models.Stimulus) error {
	_, err := sqlx.NamedExecContext(ctx, s.db, insertSQL("stimuli", stimulusCols...), st)
	return mapErr(err)
}
