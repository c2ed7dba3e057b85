package services

import (
	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/models"
)

// Audit row describing the raw checkbox verdict.
const (
	AttentionAuditQuestionnaire = "att_check_list"
	AttentionAuditSubscale      = "NA"
)

// AttentionResult is the outcome of one evaluation.
type AttentionResult struct {
	Failures   int
	Passed     bool
	CheckboxOK bool
}

// AttentionEvaluator counts failed attention checks across a questionnaire submission.
type AttentionEvaluator struct {
	cfg         config.Attention
	maxFailures int
	embedded    []int
}

func NewAttentionEvaluator(cfg *config.Config) *AttentionEvaluator {
	e := &AttentionEvaluator{cfg: cfg.Attention, maxFailures: cfg.Experiment.MaxAttentionFailures}
	if q, ok := cfg.Questionnaire(cfg.Attention.EmbeddedQuestionnaire); ok {
		for _, it := range q.Items {
			if it.Subscale == cfg.Attention.EmbeddedSubscale {
				e.embedded = append(e.embedded, it.Number)
			}
		}
	}
	return e
}

// Evaluate runs the four checks. An absent answer fails the decoy and embedded checks but
// leaves the repeated-item check out of the count.
func (e *AttentionEvaluator) Evaluate(checkbox []string, answers AnswerSet) AttentionResult {
	var res AttentionResult
	fails := 0

	res.CheckboxOK = contains(checkbox, e.cfg.PassTag) && !contains(checkbox, e.cfg.FailTag)
	if !res.CheckboxOK {
		fails++
	}

	if v, ok := answers.Get(e.cfg.DecoyQuestionnaire, e.cfg.DecoyItem); !ok || v != e.cfg.DecoyExpected {
		fails++
	}

	first, ok1 := answers.Get(e.cfg.RepeatQuestionnaire, e.cfg.RepeatFirst)
	second, ok2 := answers.Get(e.cfg.RepeatQuestionnaire, e.cfg.RepeatSecond)
	if ok1 && ok2 && first != second {
		fails++
	}

	embeddedOK := false
	for _, n := range e.embedded {
		if v, ok := answers.Get(e.cfg.EmbeddedQuestionnaire, n); ok && v == e.cfg.EmbeddedExpected {
			embeddedOK = true
			break
		}
	}
	if !embeddedOK {
		fails++
	}

	res.Failures = fails
	res.Passed = fails <= e.maxFailures
	return res
}

// AuditRecord builds the stored row for the checkbox verdict.
func (e *AttentionEvaluator) AuditRecord(res AttentionResult) *models.QuestionnaireQ {
	answer := 0
	if res.CheckboxOK {
		answer = 1
	}
	return &models.QuestionnaireQ{
		Questionnaire:   AttentionAuditQuestionnaire,
		Subscale:        AttentionAuditSubscale,
		PossibleAnswers: models.AnswerMap{"Fail": 0, "Pass": 1},
		Question:        e.cfg.CheckboxLabel,
		Answer:          &answer,
		Number:          0,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
