package db

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/soaringjerry/dronerecon/internal/models"
	"github.com/soaringjerry/dronerecon/internal/services"
)

var (
	_ services.ExportStore      = (*Store)(nil)
	_ services.RecruitmentStore = (*Store)(nil)
)

func (s *Store) ListQuestionnaireAnswers(ctx context.Context, name string) ([]*models.QuestionnaireQ, error) {
	out := []*models.QuestionnaireQ{}
	q := "SELECT * FROM questionnaire_qs"
	var args []any
	if name != "" {
		q += " WHERE questionnaire_name = ?"
		args = append(args, name)
	}
	q += " ORDER BY session_id, questionnaire_name, question_number"
	if err := s.list(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]*models.Session, error) {
	out := []*models.Session{}
	if err := s.list(ctx, &out, "SELECT * FROM sessions ORDER BY start_time, id"); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListSubjects(ctx context.Context) ([]*models.Subject, error) {
	out := []*models.Subject{}
	if err := s.list(ctx, &out, "SELECT * FROM subjects ORDER BY created_at, id"); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListTrials(ctx context.Context) ([]*models.Trial, error) {
	out := []*models.Trial{}
	if err := s.list(ctx, &out, "SELECT * FROM trials ORDER BY session_id, block, trial_number"); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListStrategies(ctx context.Context) ([]*models.Strategy, error) {
	out := []*models.Strategy{}
	if err := s.list(ctx, &out, "SELECT * FROM strategies ORDER BY session_id, prompt"); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) AddRecruitment(ctx context.Context, r *models.Recruitment) error {
	_, err := sqlx.NamedExecContext(ctx, s.db, insertSQL("recruitment", recruitmentCols...), r)
	return mapErr(err)
}

func (s *Store) ListRecruitment(ctx context.Context, subjectID string) ([]*models.Recruitment, error) {
	out := []*models.Recruitment{}
	q := "SELECT * FROM recruitment"
	var args []any
	if subjectID != "" {
		q += " WHERE subject_id = ?"
		args = append(args, subjectID)
	}
	if err := s.list(ctx, &out, q+" ORDER BY time, id", args...); err != nil {
		return nil, err
	}
	return out, nil
}
