package services

import (
	"context"
	"sort"

	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/models"
)

// AnalysisStore reads the stored answers back for reliability and export reports.
type AnalysisStore interface {
	// ListQuestionnaireAnswers returns the rows of one questionnaire, or of all when name is "".
	ListQuestionnaireAnswers(ctx context.Context, name string) ([]*models.QuestionnaireQ, error)
	ListSessions(ctx context.Context) ([]*models.Session, error)
}

type AnalyticsService struct {
	cfg   *config.Config
	store AnalysisStore
}

type AnalyticsItem struct {
	Number    int    `json:"number"`
	Subscale  string `json:"subscale"`
	Reverse   bool   `json:"reverse_scored"`
	Labels    []int  `json:"labels"`
	Histogram []int  `json:"histogram"`
	Total     int    `json:"total"`
}

type AnalyticsTimeseries struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type SubscaleReliability struct {
	Subscale string  `json:"subscale"`
	Items    []int   `json:"items"`
	Alpha    float64 `json:"alpha"`
	N        int     `json:"n"`
}

type ReliabilityReport struct {
	Questionnaire string                `json:"questionnaire"`
	Sessions      int                   `json:"sessions"`
	Items         []AnalyticsItem       `json:"items"`
	Subscales     []SubscaleReliability `json:"subscales"`
	Timeseries    []AnalyticsTimeseries `json:"timeseries"`
}

func NewAnalyticsService(cfg *config.Config, store AnalysisStore) *AnalyticsService {
	return &AnalyticsService{cfg: cfg, store: store}
}

// Reliability reports answer histograms and Cronbach's alpha per scored subscale of one
// questionnaire. Only sessions that answered every item of a subscale enter its alpha.
func (s *AnalyticsService) Reliability(ctx context.Context, name string) (*ReliabilityReport, error) {
	q, ok := s.cfg.Questionnaire(name)
	if !ok {
		return nil, NewNotFoundError("unknown questionnaire " + name)
	}
	rows, err := s.store.ListQuestionnaireAnswers(ctx, name)
	if err != nil {
		return nil, err
	}
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	bySession := answersBySession(rows)
	report := &ReliabilityReport{
		Questionnaire: name,
		Sessions:      len(bySession),
		Items:         buildAnalyticsItems(q, rows),
		Subscales:     []SubscaleReliability{},
		Timeseries:    buildTimeseries(sessions, bySession),
	}
	for _, sub := range scoredSubscales(s.cfg, q) {
		if len(sub.items) < 2 {
			continue
		}
		matrix := buildAlphaMatrix(sub.items, bySession)
		report.Subscales = append(report.Subscales, SubscaleReliability{
			Subscale: sub.name,
			Items:    itemNumbers(sub.items),
			Alpha:    CronbachAlpha(matrix),
			N:        len(matrix),
		})
	}
	return report, nil
}

type subscaleItems struct {
	name  string
	items []config.QuestionnaireItem
}

// scoredSubscales groups the items of q by subscale in first-seen order, leaving out
// unscored and attention items.
func scoredSubscales(cfg *config.Config, q *config.Questionnaire) []subscaleItems {
	var out []subscaleItems
	index := map[string]int{}
	for _, it := range q.Items {
		if !scoredSubscale(cfg, it.Subscale) {
			continue
		}
		i, ok := index[it.Subscale]
		if !ok {
			i = len(out)
			index[it.Subscale] = i
			out = append(out, subscaleItems{name: it.Subscale})
		}
		out[i].items = append(out[i].items, it)
	}
	return out
}

func scoredSubscale(cfg *config.Config, subscale string) bool {
	return subscale != "" && subscale != NA && subscale != cfg.Attention.EmbeddedSubscale
}

// answersBySession indexes answered rows as session -> item number -> raw answer.
func answersBySession(rows []*models.QuestionnaireQ) map[string]map[int]int {
	out := map[string]map[int]int{}
	for _, r := range rows {
		if r.Answer == nil {
			continue
		}
		if out[r.SessionID] == nil {
			out[r.SessionID] = map[int]int{}
		}
		out[r.SessionID][r.Number] = *r.Answer
	}
	return out
}

func buildAnalyticsItems(q *config.Questionnaire, rows []*models.QuestionnaireQ) []AnalyticsItem {
	items := make([]AnalyticsItem, 0, len(q.Items))
	index := map[int]int{}
	for i, it := range q.Items {
		labels := make([]int, len(it.Answers))
		for j, c := range it.Answers {
			labels[j] = c.Value
		}
		items = append(items, AnalyticsItem{
			Number:    it.Number,
			Subscale:  it.Subscale,
			Reverse:   it.Reverse,
			Labels:    labels,
			Histogram: make([]int, len(labels)),
		})
		index[it.Number] = i
	}
	for _, r := range rows {
		i, ok := index[r.Number]
		if !ok || r.Answer == nil {
			continue
		}
		for j, v := range items[i].Labels {
			if v == *r.Answer {
				items[i].Histogram[j]++
				items[i].Total++
				break
			}
		}
	}
	return items
}

// buildAlphaMatrix returns one row of scored answers per session that answered every item.
// Sessions are visited in sorted order so the matrix is deterministic.
func buildAlphaMatrix(items []config.QuestionnaireItem, bySession map[string]map[int]int) [][]float64 {
	ids := make([]string, 0, len(bySession))
	for id := range bySession {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	matrix := make([][]float64, 0, len(ids))
	for _, id := range ids {
		answers := bySession[id]
		row := make([]float64, 0, len(items))
		for _, it := range items {
			v, ok := answers[it.Number]
			if !ok {
				break
			}
			row = append(row, float64(ItemScore(it, v)))
		}
		if len(row) == len(items) {
			matrix = append(matrix, row)
		}
	}
	return matrix
}

func buildTimeseries(sessions []*models.Session, answered map[string]map[int]int) []AnalyticsTimeseries {
	counts := map[string]int{}
	for _, sess := range sessions {
		if _, ok := answered[sess.ID]; !ok {
			continue
		}
		counts[sess.StartTime.UTC().Format("2006-01-02")]++
	}
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]AnalyticsTimeseries, 0, len(days))
	for _, d := range days {
		out = append(out, AnalyticsTimeseries{Date: d, Count: counts[d]})
	}
	return out
}

func itemNumbers(items []config.QuestionnaireItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.Number
	}
	return out
}
