package config

func likert(labels ...string) []IntChoice {
	return likertFrom(1, labels...)
}

func likertFrom(start int, labels ...string) []IntChoice {
	out := make([]IntChoice, len(labels))
	for i, l := range labels {
		out[i] = IntChoice{Value: start + i, Label: l}
	}
	return out
}

func defaultQuestionnaires() []Questionnaire {
	agree5 := likert("Disagree strongly", "Disagree a little", "Neither agree nor disagree", "Agree a little", "Agree strongly")
	bapq6 := likert("Very rarely", "Rarely", "Occasionally", "Somewhat often", "Often", "Very often")
	asrs5 := likertFrom(0, "Never", "Rarely", "Sometimes", "Often", "Very often")
	phq4 := likertFrom(0, "Not at all", "Several days", "More than half the days", "Nearly every day")

	return []Questionnaire{
		{
			Name:         "bfi10",
			Instructions: "How well do the following statements describe your personality? I see myself as someone who...",
			Items: []QuestionnaireItem{
				{Number: 1, Text: "... is reserved", Subscale: "Extraversion", Reverse: true, Answers: agree5},
				{Number: 2, Text: "... is generally trusting", Subscale: "Agreeableness", Answers: agree5},
				{Number: 3, Text: "... tends to be lazy", Subscale: "Conscientiousness", Reverse: true, Answers: agree5},
				{Number: 4, Text: "... is relaxed, handles stress well", Subscale: "Neuroticism", Reverse: true, Answers: agree5},
				{Number: 5, Text: "... has few artistic interests", Subscale: "Openness", Reverse: true, Answers: agree5},
				{Number: 6, Text: "... is outgoing, sociable", Subscale: "Extraversion", Answers: agree5},
				{Number: 7, Text: "... tends to find fault with others", Subscale: "Agreeableness", Reverse: true, Answers: agree5},
				{Number: 8, Text: "... does a thorough job", Subscale: "Conscientiousness", Answers: agree5},
				{Number: 9, Text: "... gets nervous easily", Subscale: "Neuroticism", Answers: agree5},
				{Number: 10, Text: "... has an active imagination", Subscale: "Openness", Answers: agree5},
			},
		},
		{
			Name:         "bapq",
			Instructions: "How often does each statement apply to you?",
			Items: []QuestionnaireItem{
				{Number: 1, Text: "I like being around other people.", Subscale: "Aloof", Reverse: true, Answers: bapq6},
				{Number: 2, Text: "I find it hard to get my words out smoothly.", Subscale: "Pragmatic Language", Answers: bapq6},
				{Number: 3, Text: "I am comfortable with unexpected changes in plans.", Subscale: "Rigid", Reverse: true, Answers: bapq6},
				{Number: 4, Text: "It's hard for me to avoid getting sidetracked in conversation.", Subscale: "Pragmatic Language", Answers: bapq6},
				{Number: 5, Text: "I would rather talk to people to get information than to socialize.", Subscale: "Aloof", Answers: bapq6},
				{Number: 6, Text: "To show that you are reading carefully, please select 'Often'.", Subscale: "Attention Check", Answers: bapq6},
				{Number: 7, Text: "People have to talk me into trying something new.", Subscale: "Rigid", Answers: bapq6},
				{Number: 8, Text: "I am in tune with the other person during conversation.", Subscale: "Pragmatic Language", Reverse: true, Answers: bapq6},
				{Number: 9, Text: "I have to warm myself up to the idea of visiting an unfamiliar place.", Subscale: "Rigid", Answers: bapq6},
				{Number: 10, Text: "I enjoy being in social situations.", Subscale: "Aloof", Reverse: true, Answers: bapq6},
			},
		},
		{
			Name:         "att_check",
			Instructions: "Please indicate how much you agree with each statement.",
			Items: []QuestionnaireItem{
				{Number: 1, Text: "I am reading each question carefully. Please select 'Agree strongly'.", Subscale: "NA", Answers: agree5},
				{Number: 2, Text: "Please give the same answer you gave to the first statement on this page.", Subscale: "NA", Answers: agree5},
			},
		},
		{
			Name:         "asrs",
			Instructions: "Over the past 6 months, how often...",
			Items: []QuestionnaireItem{
				{Number: 1, Text: "... have you had trouble wrapping up the final details of a project, once the challenging parts have been done?", Subscale: "Inattention", Answers: asrs5},
				{Number: 2, Text: "... have you had difficulty getting things in order when you have to do a task that requires organization?", Subscale: "Inattention", Answers: asrs5},
				{Number: 3, Text: "... have you had problems remembering appointments or obligations?", Subscale: "Inattention", Answers: asrs5},
				{Number: 4, Text: "When you have a task that requires a lot of thought, how often do you avoid or delay getting started?", Subscale: "Inattention", Answers: asrs5},
				{Number: 5, Text: "... do you fidget or squirm with your hands or feet when you have to sit down for a long time?", Subscale: "Hyperactivity", Answers: asrs5},
				{Number: 6, Text: "... do you feel overly active and compelled to do things, like you were driven by a motor?", Subscale: "Hyperactivity", Answers: asrs5},
			},
		},
		{
			Name:         "phq9",
			Instructions: "Over the last 2 weeks, how often have you been bothered by any of the following problems?",
			Items: []QuestionnaireItem{
				{Number: 1, Text: "Little interest or pleasure in doing things", Subscale: "Depression", Answers: phq4},
				{Number: 2, Text: "Feeling down, depressed, or hopeless", Subscale: "Depression", Answers: phq4},
				{Number: 3, Text: "Trouble falling or staying asleep, or sleeping too much", Subscale: "Depression", Answers: phq4},
				{Number: 4, Text: "Feeling tired or having little energy", Subscale: "Depression", Answers: phq4},
				{Number: 5, Text: "Poor appetite or overeating", Subscale: "Depression", Answers: phq4},
				{Number: 6, Text: "Feeling bad about yourself, or that you are a failure or have let yourself or your family down", Subscale: "Depression", Answers: phq4},
				{Number: 7, Text: "Trouble concentrating on things, such as reading the newspaper or watching television", Subscale: "Depression", Answers: phq4},
				{Number: 8, Text: "Moving or speaking so slowly that other people could have noticed, or being so fidgety or restless that you have been moving around a lot more than usual", Subscale: "Depression", Answers: phq4},
				{Number: 9, Text: "Thoughts that you would be better off dead, or of hurting yourself in some way", Subscale: "Depression", Answers: phq4},
			},
		},
	}
}
