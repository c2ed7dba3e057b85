package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"strings"
)

// LongRow is one questionnaire item of one session. Raw and Score are nil for unanswered items.
type LongRow struct {
	SessionID     string
	Questionnaire string
	Subscale      string
	Number        int
	Raw           *int
	Score         *int
}

type ScoreRow struct {
	SessionID     string
	Questionnaire string
	Subscale      string
	Score         int
	Answered      int
	Items         int
}

type TrialRow struct {
	SessionID        string
	Block            string
	TrialNumber      int
	Stimulus         string
	CorrectClass     string
	Response         string
	Correct          bool
	Confidence       *float64
	RTClassification *int
	RTConfidence     *int
	FeedbackGiven    bool
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// ExportLongCSV renders one row per session and questionnaire item.
func ExportLongCSV(rows []LongRow) ([]byte, error) {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.SessionID, r.Questionnaire, r.Subscale, strconv.Itoa(r.Number), optInt(r.Raw), optInt(r.Score)})
	}
	return writeCSV([]string{"session_id", "questionnaire", "subscale", "question_number", "raw_value", "score_value"}, out)
}

// ExportWideCSVStrings renders one row per session and one column per key, both sorted.
// Missing cells are left empty.
func ExportWideCSVStrings(idHeader string, inputs map[string]map[string]string) ([]byte, error) {
	colSet := map[string]struct{}{}
	for _, m := range inputs {
		for col := range m {
			colSet[col] = struct{}{}
		}
	}
	cols := sortedKeys(colSet)
	ids := make([]string, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		row := make([]string, 0, 1+len(cols))
		row = append(row, id)
		for _, col := range cols {
			row = append(row, inputs[id][col])
		}
		rows = append(rows, row)
	}
	return writeCSV(append([]string{idHeader}, cols...), rows)
}

// ExportScoreCSV renders subscale sums. Answered below Items means the sum is partial.
func ExportScoreCSV(rows []ScoreRow) ([]byte, error) {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.SessionID, r.Questionnaire, r.Subscale, strconv.Itoa(r.Score), strconv.Itoa(r.Answered), strconv.Itoa(r.Items)})
	}
	return writeCSV([]string{"session_id", "questionnaire", "subscale", "score", "answered", "items"}, out)
}

func ExportTrialsCSV(rows []TrialRow) ([]byte, error) {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.SessionID, r.Block, strconv.Itoa(r.TrialNumber), r.Stimulus, r.CorrectClass, r.Response,
			strconv.FormatBool(r.Correct), optFloat(r.Confidence), optInt(r.RTClassification),
			optInt(r.RTConfidence), strconv.FormatBool(r.FeedbackGiven),
		})
	}
	return writeCSV([]string{
		"session_id", "block", "trial_number", "stimulus", "correct_class", "response",
		"correct", "confidence", "rt_classification", "rt_confidence", "feedback_given",
	}, out)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// joinList renders a stored list in a single cell.
func joinList(ss []string) string {
	return strings.Join(ss, " | ")
}
