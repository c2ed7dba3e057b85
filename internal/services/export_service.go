package services

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/models"
)

// Export kinds served by ExportCSV.
const (
	ExportTrials         = "trials"
	ExportQuestionnaires = "questionnaires"
	ExportSessions       = "sessions"
	ExportScores         = "scores"
	ExportStrategies     = "strategies"
)

type ExportStore interface {
	AnalysisStore
	ListSubjects(ctx context.Context) ([]*models.Subject, error)
	ListTrials(ctx context.Context) ([]*models.Trial, error)
	ListStimuli(ctx context.Context) ([]*models.Stimulus, error)
	ListStrategies(ctx context.Context) ([]*models.Strategy, error)
}

type ExportParams struct {
	Kind string
	// Format applies to questionnaires: "long" (default) or "wide".
	Format        string
	Questionnaire string
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SessionSummary is the admin listing row of one session.
type SessionSummary struct {
	SessionID              string    `json:"session_id"`
	SubjectID              string    `json:"subject_id"`
	ExternalID             string    `json:"external_id"`
	ExternalSource         string    `json:"external_source"`
	ActivityMix            string    `json:"activity_mix"`
	StartTime              time.Time `json:"start_time"`
	EndTime                time.Time `json:"end_time"`
	QuestionnaireCompleted bool      `json:"questionnaire_completed"`
	TaskCompleted          bool      `json:"task_completed"`
	SessionCompleted       bool      `json:"session_completed"`
	PassedAttentionCheck   bool      `json:"passed_attention_check"`
	NTrials                int       `json:"n_trials"`
	Browser                string    `json:"browser"`
}

type ExportService struct {
	cfg   *config.Config
	store ExportStore
}

func NewExportService(cfg *config.Config, store ExportStore) *ExportService {
	return &ExportService{cfg: cfg, store: store}
}

const csvContentType = "text/csv; charset=utf-8"

func (s *ExportService) ExportCSV(ctx context.Context, params ExportParams) (*ExportResult, error) {
	var data []byte
	var err error
	name := params.Kind
	switch params.Kind {
	case ExportTrials:
		data, err = s.trials(ctx)
	case ExportQuestionnaires:
		format := params.Format
		if format == "" {
			format = "long"
		}
		if format != "long" && format != "wide" {
			return nil, NewInvalidError("unsupported format")
		}
		if params.Questionnaire != "" {
			if _, ok := s.cfg.Questionnaire(params.Questionnaire); !ok {
				return nil, NewNotFoundError("unknown questionnaire " + params.Questionnaire)
			}
		}
		name = "questionnaires_" + format
		data, err = s.questionnaires(ctx, params.Questionnaire, format)
	case ExportSessions:
		data, err = s.sessions(ctx)
	case ExportScores:
		data, err = s.scores(ctx)
	case ExportStrategies:
		data, err = s.strategies(ctx)
	default:
		return nil, NewInvalidError("unsupported export kind")
	}
	if err != nil {
		return nil, err
	}
	return &ExportResult{Filename: name + ".csv", ContentType: csvContentType, Data: data}, nil
}

// Sessions lists every session joined with its subject, oldest first.
func (s *ExportService) Sessions(ctx context.Context) ([]SessionSummary, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	subjects, err := s.subjectIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		sum := SessionSummary{
			SessionID:              sess.ID,
			SubjectID:              sess.SubjectID,
			ActivityMix:            sess.ActivityMix,
			StartTime:              sess.StartTime,
			EndTime:                sess.EndTime,
			QuestionnaireCompleted: sess.QuestionnaireDone,
			TaskCompleted:          sess.TaskCompleted,
			SessionCompleted:       sess.SessionCompleted,
			PassedAttentionCheck:   sess.PassedAttentionCheck,
			NTrials:                sess.NTrials,
			Browser:                sess.Browser,
		}
		if sub, ok := subjects[sess.SubjectID]; ok {
			sum.ExternalID = sub.ExternalID
			sum.ExternalSource = sub.ExternalSource
		}
		out = append(out, sum)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *ExportService) subjectIndex(ctx context.Context) (map[string]*models.Subject, error) {
	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.Subject, len(subjects))
	for _, sub := range subjects {
		out[sub.ID] = sub
	}
	return out, nil
}

func (s *ExportService) trials(ctx context.Context) ([]byte, error) {
	trials, err := s.store.ListTrials(ctx)
	if err != nil {
		return nil, err
	}
	stimuli, err := s.store.ListStimuli(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(stimuli))
	for _, st := range stimuli {
		names[st.ID] = st.Name
	}
	rows := make([]TrialRow, 0, len(trials))
	for _, t := range trials {
		rows = append(rows, TrialRow{
			SessionID:        t.SessionID,
			Block:            t.Block,
			TrialNumber:      t.TrialNumber,
			Stimulus:         names[t.StimulusID],
			CorrectClass:     t.CorrectClass,
			Response:         t.Response,
			Correct:          t.Correct,
			Confidence:       t.Confidence,
			RTClassification: t.RTClassification,
			RTConfidence:     t.RTConfidence,
			FeedbackGiven:    t.FeedbackGiven,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SessionID != rows[j].SessionID {
			return rows[i].SessionID < rows[j].SessionID
		}
		if rows[i].Block != rows[j].Block {
			return rows[i].Block < rows[j].Block
		}
		return rows[i].TrialNumber < rows[j].TrialNumber
	})
	return ExportTrialsCSV(rows)
}

// itemLookup indexes configured items by questionnaire and number.
func (s *ExportService) itemLookup() map[string]map[int]config.QuestionnaireItem {
	out := map[string]map[int]config.QuestionnaireItem{}
	for _, q := range s.cfg.Questionnaires {
		items := map[int]config.QuestionnaireItem{}
		for _, it := range q.Items {
			items[it.Number] = it
		}
		out[q.Name] = items
	}
	return out
}

func (s *ExportService) questionnaires(ctx context.Context, name, format string) ([]byte, error) {
	answers, err := s.store.ListQuestionnaireAnswers(ctx, name)
	if err != nil {
		return nil, err
	}
	if format == "wide" {
		wide := map[string]map[string]string{}
		for _, a := range answers {
			if wide[a.SessionID] == nil {
				wide[a.SessionID] = map[string]string{}
			}
			wide[a.SessionID][a.Questionnaire+"_"+strconv.Itoa(a.Number)] = optInt(a.Answer)
		}
		return ExportWideCSVStrings("session_id", wide)
	}
	lookup := s.itemLookup()
	rows := make([]LongRow, 0, len(answers))
	for _, a := range answers {
		row := LongRow{SessionID: a.SessionID, Questionnaire: a.Questionnaire, Subscale: a.Subscale, Number: a.Number, Raw: a.Answer}
		if a.Answer != nil {
			score := *a.Answer
			if it, ok := lookup[a.Questionnaire][a.Number]; ok {
				score = ItemScore(it, score)
			}
			row.Score = &score
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SessionID != rows[j].SessionID {
			return rows[i].SessionID < rows[j].SessionID
		}
		if rows[i].Questionnaire != rows[j].Questionnaire {
			return rows[i].Questionnaire < rows[j].Questionnaire
		}
		return rows[i].Number < rows[j].Number
	})
	return ExportLongCSV(rows)
}

// scores sums the scored answers of every scored subscale per session, in configuration order.
func (s *ExportService) scores(ctx context.Context) ([]byte, error) {
	answers, err := s.store.ListQuestionnaireAnswers(ctx, "")
	if err != nil {
		return nil, err
	}
	byQuestionnaire := map[string][]*models.QuestionnaireQ{}
	for _, a := range answers {
		byQuestionnaire[a.Questionnaire] = append(byQuestionnaire[a.Questionnaire], a)
	}
	var rows []ScoreRow
	for i := range s.cfg.Questionnaires {
		q := &s.cfg.Questionnaires[i]
		bySession := answersBySession(byQuestionnaire[q.Name])
		ids := make([]string, 0, len(bySession))
		for id := range bySession {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		subs := scoredSubscales(s.cfg, q)
		for _, id := range ids {
			for _, sub := range subs {
				row := ScoreRow{SessionID: id, Questionnaire: q.Name, Subscale: sub.name, Items: len(sub.items)}
				for _, it := range sub.items {
					if v, ok := bySession[id][it.Number]; ok {
						row.Score += ItemScore(it, v)
						row.Answered++
					}
				}
				rows = append(rows, row)
			}
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].SessionID < rows[j].SessionID })
	return ExportScoreCSV(rows)
}

func (s *ExportService) sessions(ctx context.Context) ([]byte, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	subjects, err := s.subjectIndex(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].StartTime.Before(sessions[j].StartTime) })
	rows := make([][]string, 0, len(sessions))
	for _, sess := range sessions {
		sub := subjects[sess.SubjectID]
		if sub == nil {
			sub = &models.Subject{}
		}
		rows = append(rows, []string{
			sess.ID, sess.SubjectID, sub.ExternalID, sub.ExternalSource,
			sess.ExternalStudyID, sess.ExternalSessionID, sess.ActivityMix, sess.Project, sess.Task,
			formatTime(sess.StartTime), formatTime(sess.EndTime),
			strconv.FormatBool(sess.SessionCompleted), strconv.FormatBool(sess.QuestionnaireDone),
			strconv.FormatBool(sess.TaskCompleted), strconv.FormatBool(sess.PassedAttentionCheck),
			strconv.Itoa(sess.NTrials), sess.PaymentToken,
			strconv.Itoa(sub.Age), sub.Sex, sub.Gender, sub.Education, joinList(sub.PsychHistory),
			joinList(sess.Substances), optInt(sess.SleepQuality), optInt(sess.SleepQuantity),
			sess.Timezone, sess.Browser,
		})
	}
	return writeCSV([]string{
		"session_id", "subject_id", "external_id", "external_source",
		"external_study_id", "external_session_id", "activity_mix", "project", "task",
		"start_time", "end_time",
		"session_completed", "questionnaire_completed",
		"task_completed", "passed_attention_check",
		"n_trials", "payment_token",
		"age", "sex", "gender", "education", "psych_history",
		"substances", "sleep_quality", "sleep_quantity",
		"timezone", "browser",
	}, rows)
}

func (s *ExportService) strategies(ctx context.Context) ([]byte, error) {
	strategies, err := s.store.ListStrategies(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(strategies, func(i, j int) bool {
		if strategies[i].SessionID != strategies[j].SessionID {
			return strategies[i].SessionID < strategies[j].SessionID
		}
		return strategies[i].Prompt < strategies[j].Prompt
	})
	rows := make([][]string, 0, len(strategies))
	for _, st := range strategies {
		rows = append(rows, []string{st.SessionID, st.Prompt, st.Response})
	}
	return writeCSV([]string{"session_id", "prompt", "response"}, rows)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
