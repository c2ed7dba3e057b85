package services

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/models"
)

func readCSV(b []byte) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(string(b)))
	return r.ReadAll()
}

func TestExportLongCSV(t *testing.T) {
	rows := []LongRow{
		{SessionID: "S1", Questionnaire: "bfi10", Subscale: "Extraversion", Number: 1, Raw: num(2), Score: num(4)},
		{SessionID: "S1", Questionnaire: "bfi10", Subscale: "Agreeableness", Number: 2},
	}
	b, err := ExportLongCSV(rows)
	if err != nil {
		t.Fatalf("export long: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(recs) != 1+len(rows) {
		t.Fatalf("want %d rows, got %d", 1+len(rows), len(recs))
	}
	if got := strings.Join(recs[0], ","); got != "session_id,questionnaire,subscale,question_number,raw_value,score_value" {
		t.Fatalf("bad header: %s", got)
	}
	if recs[1][4] != "2" || recs[1][5] != "4" || recs[2][4] != "" || recs[2][5] != "" {
		t.Fatalf("unexpected values %v", recs)
	}
}

func TestExportWideCSVStrings(t *testing.T) {
	data := map[string]map[string]string{
		"S2": {"bfi10_1": "4"},
		"S1": {"bfi10_1": "2", "bfi10_2": "5"},
	}
	b, err := ExportWideCSVStrings("session_id", data)
	if err != nil {
		t.Fatalf("export wide: %v", err)
	}
	recs, _ := readCSV(b)
	if strings.Join(recs[0], ",") != "session_id,bfi10_1,bfi10_2" {
		t.Fatalf("bad header: %v", recs[0])
	}
	if strings.Join(recs[1], ",") != "S1,2,5" || strings.Join(recs[2], ",") != "S2,4," {
		t.Fatalf("bad rows: %v", recs[1:])
	}
}

func exportFixture() *stubAnalysisStore {
	day := time.Date(2025, 9, 18, 9, 0, 0, 0, time.UTC)
	conf := 0.5
	return &stubAnalysisStore{
		answers: []*models.QuestionnaireQ{
			answerRow("S1", "bfi10", 1, num(2)), answerRow("S1", "bfi10", 6, num(4)),
			answerRow("S1", "bfi10", 2, nil),
			answerRow("S1", "att_check", 1, num(5)),
		},
		sessions: []*models.Session{
			{ID: "S2", SubjectID: "U1", StartTime: day.Add(time.Hour), ActivityMix: config.MixTask},
			{ID: "S1", SubjectID: "U1", StartTime: day, ActivityMix: config.MixBoth, Substances: []string{"caffeine", "caffeine_detail-coffee"}},
		},
		subjects: []*models.Subject{{ID: "U1", ExternalID: "PID1", ExternalSource: SourceProlific, Age: 30, PsychHistory: []string{"asd-12"}}},
		trials: []*models.Trial{
			{SessionID: "S1", StimulusID: "st2", Block: "test", TrialNumber: 2, CorrectClass: "B", Response: "A"},
			{SessionID: "S1", StimulusID: "st1", Block: "test", TrialNumber: 1, CorrectClass: "A", Response: "A", Correct: true, Confidence: &conf},
		},
		stimuli: []*models.Stimulus{{ID: "st1", Name: "A_one"}, {ID: "st2", Name: "B_two"}},
		strats:  []*models.Strategy{{SessionID: "S1", Prompt: "Q1", Response: "shape"}, {SessionID: "S1", Prompt: "Q0", Response: "free"}},
	}
}

func TestExportService(t *testing.T) {
	cfg := config.Default()
	svc := NewExportService(&cfg, exportFixture())
	ctx := context.Background()

	res, err := svc.ExportCSV(ctx, ExportParams{Kind: ExportTrials})
	if err != nil {
		t.Fatalf("trials: %v", err)
	}
	recs, _ := readCSV(res.Data)
	if res.Filename != "trials.csv" || len(recs) != 3 || recs[1][3] != "A_one" || recs[1][7] != "0.5" || recs[2][7] != "" {
		t.Fatalf("unexpected trials export %s %v", res.Filename, recs)
	}

	res, err = svc.ExportCSV(ctx, ExportParams{Kind: ExportQuestionnaires})
	if err != nil {
		t.Fatalf("questionnaires: %v", err)
	}
	recs, _ = readCSV(res.Data)
	if len(recs) != 5 || recs[1][1] != "att_check" {
		t.Fatalf("unexpected long export %v", recs)
	}
	for _, r := range recs[1:] {
		if r[1] == "bfi10" && r[3] == "1" && (r[4] != "2" || r[5] != "4") {
			t.Fatalf("reverse keyed item not scored: %v", r)
		}
	}

	res, err = svc.ExportCSV(ctx, ExportParams{Kind: ExportQuestionnaires, Format: "wide", Questionnaire: "bfi10"})
	if err != nil {
		t.Fatalf("wide: %v", err)
	}
	recs, _ = readCSV(res.Data)
	if res.Filename != "questionnaires_wide.csv" || strings.Join(recs[0], ",") != "session_id,bfi10_1,bfi10_2,bfi10_6" {
		t.Fatalf("unexpected wide export %v", recs)
	}

	res, err = svc.ExportCSV(ctx, ExportParams{Kind: ExportScores})
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	recs, _ = readCSV(res.Data)
	found := false
	for _, r := range recs[1:] {
		if r[1] == "bfi10" && r[2] == "Extraversion" {
			found = true
			if r[3] != "8" || r[4] != "2" || r[5] != "2" {
				t.Fatalf("unexpected extraversion score %v", r)
			}
		}
		if r[1] == "att_check" {
			t.Fatalf("attention questionnaire must not be scored")
		}
	}
	if !found {
		t.Fatalf("missing extraversion score in %v", recs)
	}

	res, err = svc.ExportCSV(ctx, ExportParams{Kind: ExportSessions})
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	recs, _ = readCSV(res.Data)
	if len(recs) != 3 || recs[1][0] != "S1" || recs[1][2] != "PID1" || recs[1][22] != "caffeine | caffeine_detail-coffee" {
		t.Fatalf("unexpected sessions export %v", recs)
	}

	res, err = svc.ExportCSV(ctx, ExportParams{Kind: ExportStrategies})
	if err != nil {
		t.Fatalf("strategies: %v", err)
	}
	recs, _ = readCSV(res.Data)
	if len(recs) != 3 || recs[1][1] != "Q0" {
		t.Fatalf("unexpected strategies export %v", recs)
	}
}

func TestExportServiceRejects(t *testing.T) {
	cfg := config.Default()
	svc := NewExportService(&cfg, exportFixture())
	ctx := context.Background()
	if _, err := svc.ExportCSV(ctx, ExportParams{Kind: "everything"}); KindOf(err) != KindInvalid {
		t.Fatalf("expected invalid kind, got %v", err)
	}
	if _, err := svc.ExportCSV(ctx, ExportParams{Kind: ExportQuestionnaires, Format: "xml"}); KindOf(err) != KindInvalid {
		t.Fatalf("expected invalid format, got %v", err)
	}
	if _, err := svc.ExportCSV(ctx, ExportParams{Kind: ExportQuestionnaires, Questionnaire: "nope"}); KindOf(err) != KindNotFound {
		t.Fatalf("expected unknown questionnaire, got %v", err)
	}
}

func TestSessionSummaries(t *testing.T) {
	cfg := config.Default()
	svc := NewExportService(&cfg, exportFixture())
	got, err := svc.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(got) != 2 || got[0].SessionID != "S1" || got[0].ExternalID != "PID1" || got[1].ActivityMix != config.MixTask {
		t.Fatalf("unexpected summaries %+v", got)
	}
}
