package config

import "fmt"

// DevStateSecret signs flow state in development. Deployment mode refuses to start with it.
const DevStateSecret = "dronerecon-dev-secret"

// Default returns the configuration of the pilot deployment.
func Default() Config {
	cfg := Config{
		Server: Server{
			Addr:         ":8080",
			MediaBaseURL: "/media/",
		},
		State: State{
			Secret:     DevStateSecret,
			TTLMinutes: 360,
			CookieName: "dronerecon_state",
		},
		Database: Database{
			Driver: "sqlite3",
			DSN:    "file:dronerecon.db?cache=shared&_busy_timeout=5000&_foreign_keys=on",
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Admin: Admin{
			User: "admin",
		},
		Captcha: Captcha{
			VerifyURL: "https://www.google.com/recaptcha/api/siteverify",
		},
		Experiment: Experiment{
			Prolific:             true,
			Deployment:           true,
			AttentionCheck:       true,
			InitialTest:          true,
			RetestNumber:         1,
			DefaultActivityMix:   MixBoth,
			Project:              "pilots",
			Game:                 "category_metacog-v0",
			RequireFullscreen:    true,
			TutorialVersion:      1,
			TaskVersion:          1,
			ConfidenceVersion:    1,
			MaxAttentionFailures: 2,
		},
		Tokens: Tokens{
			PaymentTokenLength: 8,
			RejectionToken:     "A9DK21L",
		},
		Registration: Registration{
			MinAge: 18,
			MaxAge: 99,
			Sexes: []Choice{
				{"female", "Female"},
				{"male", "Male"},
			},
			Genders: []Choice{
				{"female", "Female"},
				{"male", "Male"},
				{"trans_male", "Trans Male/Trans Man"},
				{"trans_female", "Trans Female/Trans Woman"},
				{"genderqueer", "Genderqueer/Gender NonConforming"},
				{"other", "Different Identity"},
				{"none", "Prefer not to say"},
			},
			Education: []Choice{
				{"<highschool", "Some Highschool"},
				{"highschool", "Highschool Graduate"},
				{"<college", "Some College"},
				{"college", "College Graduate"},
				{"postgrad", "Postgraduate"},
			},
			SubjectSources: []Choice{
				{"internal", "Internal"},
			},
		},
		Sleep: Sleep{
			Quality: []IntChoice{{0, "Bad"}, {1, "Fair"}, {2, "Good"}},
		},
		Substances: []Substance{
			{Key: "caffeine", Label: "Caffeine", Detail: &DetailField{
				Kind:  "choice",
				Label: "What type of caffeine?",
				Choices: []Choice{
					{"coffee", "Coffee"},
					{"tea", "Tea"},
					{"energy_drink", "Energy drink"},
					{"soda", "Soda"},
					{"caffeine_pill", "Caffeine pill"},
					{"other", "Other"},
				},
			}},
			{Key: "adhd_stimulants", Label: "ADHD medication (e.g. Ritalin)"},
			{Key: "alcohol", Label: "Alcohol", Detail: &DetailField{
				Kind:  "choice",
				Label: "How much alcohol?",
				Choices: []Choice{
					{"1", "One drink"},
					{"2", "Two drinks"},
					{"3+", "Three or more drinks"},
				},
			}},
			{Key: "tobacco", Label: "Tobacco"},
			{Key: "marijuana", Label: "Marijuana"},
			{Key: "opioids", Label: "Opioids"},
			{Key: "illicit_stimulants", Label: "Cocaine or meth"},
			{Key: "other", Label: "Other performance-alterning substances not listed", Detail: &DetailField{
				Kind:      "text",
				Label:     "Please describe",
				MaxLength: 1000,
			}},
		},
		MentalHealth: MentalHealth{
			Conditions: []Choice{
				{"asd", "Autism spectrum disorder"},
				{"adhd", "Attention deficit hyperactivity disorder"},
				{"ocd", "Obsessive compulsive disorder"},
				{"depression", "Depression"},
				{"bipolar", "Bipolar disorder"},
				{"schizophrenia", "Schizophrenia"},
				{"schizotypy", "Schizotypal personality"},
				{"addiction", "Substance use disorder"},
			},
		},
		Attention: Attention{
			CheckboxLabel: "Have you been reading closely? If so, choose prosochiphelia from the following fake conditions.",
			PassTag:       "pass_attention_check",
			FailTag:       "fail_attention_check",
			Options: []Choice{
				{"fail_attention_check", "Femur dissolution"},
				{"fail_attention_check", "Malconforsethia"},
				{"pass_attention_check", "Prosochiphelia"},
				{"fail_attention_check", "Retinal dermatitis"},
			},
			DecoyQuestionnaire:    "att_check",
			DecoyItem:             1,
			DecoyExpected:         5,
			RepeatQuestionnaire:   "att_check",
			RepeatFirst:           1,
			RepeatSecond:          2,
			EmbeddedQuestionnaire: "bapq",
			EmbeddedSubscale:      "Attention Check",
			EmbeddedExpected:      5,
		},
		Questionnaires: defaultQuestionnaires(),
		Task: Task{
			ConfidenceLabels: []string{"50-62%", "63-75%", "75-87%", "88-100%"},
			ConfidenceKeys:   []string{"1", "2", "3", "4"},
			TutorialTypes:    []string{"Army", "Navy"},
			TutorialKeys:     []string{"j", "k"},
			DroneTypes:       []string{"friendly", "hostile"},
			DroneKeys:        []string{"n", "m"},
			TutorialSets:     defaultTutorialSets(),
			StimulusSets:     defaultStimulusSets(),
		},
	}

	for i := 0; i < 12; i++ {
		cfg.Sleep.Quantity = append(cfg.Sleep.Quantity, IntChoice{i, fmt.Sprint(i)})
	}
	cfg.Sleep.Quantity = append(cfg.Sleep.Quantity, IntChoice{12, ">12"})

	for age := 1; age <= 40; age++ {
		cfg.MentalHealth.AgeChoices = append(cfg.MentalHealth.AgeChoices, IntChoice{age, fmt.Sprint(age)})
	}
	cfg.MentalHealth.AgeChoices = append(cfg.MentalHealth.AgeChoices, IntChoice{41, "Over 40"})

	cfg.Conditional = defaultConditionalRules(cfg.Substances, cfg.MentalHealth.Conditions)
	return cfg
}

// defaultConditionalRules reveals substance details and diagnosis ages when the parent is answered yes.
func defaultConditionalRules(substances []Substance, conditions []Choice) []ConditionalRule {
	var rules []ConditionalRule
	for _, s := range substances {
		if s.Detail == nil {
			continue
		}
		rules = append(rules, ConditionalRule{
			Parent:  s.Key,
			When:    s.Key + " == true",
			Targets: []string{s.Key + "_detail"},
		})
	}
	for _, c := range conditions {
		rules = append(rules, ConditionalRule{
			Parent:  c.Value,
			When:    c.Value + " == true",
			Targets: []string{c.Value + "_age"},
		})
	}
	return rules
}
