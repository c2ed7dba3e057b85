package services

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/soaringjerry/dronerecon/internal/config"
)

func newForms(t *testing.T) (*FormProcessor, *config.Config) {
	t.Helper()
	cfg := config.Default()
	rules, err := NewConditionalRules(cfg.Conditional)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	return NewFormProcessor(&cfg, rules), &cfg
}

func yes() *YesNo { v := YesNo(true); return &v }
func no() *YesNo  { v := YesNo(false); return &v }
func str(s string) *string {
	return &s
}
func num(n int) *int { return &n }

func TestYesNoUnmarshal(t *testing.T) {
	cases := map[string]bool{`true`: true, `"Yes"`: true, `"1"`: true, `false`: false, `"NO"`: false, `"0"`: false}
	for in, want := range cases {
		var y YesNo
		if err := json.Unmarshal([]byte(in), &y); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if bool(y) != want {
			t.Fatalf("%s: got %v", in, y)
		}
	}
	for _, bad := range []string{`"True or 1==1"`, `"__import__('os')"`, `2`, `"maybe"`} {
		var y YesNo
		if err := json.Unmarshal([]byte(bad), &y); err == nil {
			t.Fatalf("%s should be rejected", bad)
		}
	}
}

func allSubstances(cfg *config.Config) []SubstanceAnswer {
	out := make([]SubstanceAnswer, 0, len(cfg.Substances))
	for _, s := range cfg.Substances {
		out = append(out, SubstanceAnswer{Key: s.Key, Used: no()})
	}
	return out
}

func TestSubstancesDerivedList(t *testing.T) {
	p, cfg := newForms(t)
	in := allSubstances(cfg)
	for i := range in {
		switch in[i].Key {
		case "caffeine":
			in[i].Used, in[i].Detail = yes(), str("coffee")
		case "alcohol":
			// hidden detail is ignored even when posted
			in[i].Detail = str("3+")
		case "tobacco":
			in[i].Used = yes()
		}
	}
	v := &ValidationError{}
	got := p.Substances(in, v)
	if v.OrNil() != nil {
		t.Fatalf("unexpected validation error: %v", v)
	}
	want := []string{"caffeine", "tobacco", "caffeine_detail-coffee", "alcohol_detail-NA", "other_detail-NA"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSubstancesAffirmedWithoutDetail(t *testing.T) {
	p, cfg := newForms(t)
	in := allSubstances(cfg)
	in[0].Used = yes()
	v := &ValidationError{}
	got := p.Substances(in, v)
	if v.OrNil() != nil || got[0] != "caffeine" || got[1] != "caffeine_detail-NA" {
		t.Fatalf("absent detail should become NA, got %v (%v)", got, v.OrNil())
	}
}

func TestSubstancesValidation(t *testing.T) {
	p, cfg := newForms(t)
	in := allSubstances(cfg)
	in[0].Used, in[0].Detail = yes(), str("whisky")
	in = append(in[:1], in[2:]...)
	in = append(in, SubstanceAnswer{Key: "kratom", Used: yes()})
	v := &ValidationError{}
	p.Substances(in, v)
	fields := map[string]bool{}
	for _, f := range v.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"substances.kratom", "substances.adhd_stimulants", "substances.caffeine_detail"} {
		if !fields[want] {
			t.Fatalf("expected error on %s, got %+v", want, v.Fields)
		}
	}
}

func TestMentalHealthHistory(t *testing.T) {
	p, cfg := newForms(t)
	var in []DiagnosisAnswer
	for _, c := range cfg.MentalHealth.Conditions {
		in = append(in, DiagnosisAnswer{Condition: c.Value, Diagnosed: no()})
	}
	in[0].Diagnosed, in[0].Age = yes(), num(12)
	in[1].Diagnosed = yes()
	in[2].Age = num(30)
	v := &ValidationError{}
	got := p.MentalHealth(in, v)
	if v.OrNil() != nil {
		t.Fatalf("unexpected validation error: %v", v)
	}
	want := []string{"asd-12", "adhd-NA"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSleepAndTimezone(t *testing.T) {
	p, _ := newForms(t)
	v := &ValidationError{}
	q, n := p.Sleep(SleepInput{Quality: num(2), Quantity: num(7)}, v)
	if v.OrNil() != nil || q != 2 || n != 7 {
		t.Fatalf("unexpected sleep result %d %d %v", q, n, v.OrNil())
	}
	p.Sleep(SleepInput{Quality: num(9)}, v)
	if len(v.Fields) != 2 {
		t.Fatalf("expected quality and quantity errors, got %+v", v.Fields)
	}
	if tz := p.Timezone(" Europe/Berlin ", &ValidationError{}); tz != "Europe/Berlin" {
		t.Fatalf("unexpected timezone %q", tz)
	}
}

func TestRegistration(t *testing.T) {
	p, cfg := newForms(t)
	in := &RegistrationInput{Age: num(30), Sex: "female", Gender: "female", Education: "college", StartTime: "2025-09-18T10:00:00+02:00"}
	v := &ValidationError{}
	d, start := p.Registration(in, v)
	if v.OrNil() != nil {
		t.Fatalf("unexpected error: %v", v)
	}
	if d.Age != 30 || start.Hour() != 8 {
		t.Fatalf("unexpected registration %+v %v", d, start)
	}

	cfg.Experiment.Prolific = false
	v = &ValidationError{}
	p.Registration(&RegistrationInput{Age: num(12), Sex: "x"}, v)
	fields := map[string]bool{}
	for _, f := range v.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"registration.user_id", "registration.subject_source", "registration.age", "registration.sex", "registration.start_time"} {
		if !fields[want] {
			t.Fatalf("expected error on %s, got %+v", want, v.Fields)
		}
	}
}

func TestQuestionnaires(t *testing.T) {
	p, cfg := newForms(t)
	in := []QuestionnaireAnswer{
		{Questionnaire: "bfi10", Number: 1, Answer: num(4)},
		{Questionnaire: "att_check", Number: 1, Answer: num(5)},
		{Questionnaire: "att_check", Number: 2},
	}
	v := &ValidationError{}
	set, records := p.Questionnaires(in, v)
	if v.OrNil() != nil {
		t.Fatalf("unexpected error: %v", v)
	}
	if len(set) != 2 {
		t.Fatalf("expected two answers, got %v", set)
	}
	total := 0
	for _, q := range cfg.Questionnaires {
		total += len(q.Items)
	}
	if len(records) != total {
		t.Fatalf("expected a record per item, got %d of %d", len(records), total)
	}
	for _, r := range records {
		if r.Questionnaire == "att_check" && r.Number == 2 && r.Answer != nil {
			t.Fatalf("unanswered item must be stored without answer")
		}
		if r.Questionnaire == "bfi10" && r.Number == 1 && (r.Answer == nil || *r.Answer != 4 || len(r.PossibleAnswers) == 0) {
			t.Fatalf("unexpected record %+v", r)
		}
	}

	v = &ValidationError{}
	p.Questionnaires([]QuestionnaireAnswer{{Questionnaire: "bfi10", Number: 1, Answer: num(9)}, {Questionnaire: "nope", Number: 1}}, v)
	if len(v.Fields) != 2 {
		t.Fatalf("expected two errors, got %+v", v.Fields)
	}
}

func TestAttentionCheckboxValidation(t *testing.T) {
	p, _ := newForms(t)
	v := &ValidationError{}
	got := p.AttentionCheckbox([]string{"pass_attention_check", "bogus"}, v)
	if len(got) != 1 || len(v.Fields) != 1 {
		t.Fatalf("unexpected result %v %+v", got, v.Fields)
	}
}
