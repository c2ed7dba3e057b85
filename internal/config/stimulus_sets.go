package config

import "strings"

func swapPrefix(names []string, from, to string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.Replace(n, from, to, 1)
	}
	return out
}

func defaultTutorialSets() []StimulusSet {
	trainA := []string{"training_A_prototype", "training_A_d1_1"}
	testA := []string{"training_A_prototype", "training_A_d1_2", "training_A_d1_3"}
	return []StimulusSet{{
		Version: 1,
		TrainA:  trainA,
		TrainB:  swapPrefix(trainA, "training_A_", "training_B_"),
		TestA:   testA,
		TestB:   swapPrefix(testA, "training_A_", "training_B_"),
	}}
}

func defaultStimulusSets() []StimulusSet {
	shortTrain := []string{"A_prototype", "A_d1_1"}
	shortTest := []string{"A_prototype", "A_d1_3"}
	fullTrain := []string{
		"A_prototype",
		"A_d1_1",
		"A_d1_2",
		"A_d2_1",
		"A_d2_2",
		"A_d2_3",
		"A_d3_1",
		"A_d3_2",
		"A_d3_3",
		"A_d4_1",
		"A_d4_2",
	}
	fullTest := []string{
		"A_prototype",
		"A_d1_3",
		"A_d1_4",
		"A_d1_5",
		"A_d1_6",
		"A_d1_7",
		"A_d2_4",
		"A_d2_5",
		"A_d2_6",
		"A_d2_7",
		"A_d2_8",
		"A_d3_4",
		"A_d3_5",
		"A_d3_6",
		"A_d3_7",
		"A_d3_8",
		"A_d4_3",
		"A_d4_4",
		"A_d4_5",
		"A_d4_6",
		"A_d4_7",
	}
	return []StimulusSet{
		{
			Version: 0,
			TrainA:  shortTrain,
			TrainB:  swapPrefix(shortTrain, "A_", "B_"),
			TestA:   shortTest,
			TestB:   swapPrefix(shortTest, "A_", "B_"),
		},
		{
			Version: 1,
			TrainA:  fullTrain,
			TrainB:  swapPrefix(fullTrain, "A_", "B_"),
			TestA:   fullTest,
			TestB:   swapPrefix(fullTest, "A_", "B_"),
		},
		{
			Version: 1,
			Retest:  1,
			TrainA: []string{
				"0-A-1_1-B-1_2-C-1_3-D-2_4-E-1_5-A-3_6-B-3_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-1_3-D-2_4-E-1_5-A-3_6-B-3_7-C-3_8-D-3_9-E-3",
				"0-A-1_1-B-1_2-C-1_3-D-1_4-E-1_5-A-3_6-B-3_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-2_3-D-2_4-E-1_5-A-3_6-B-3_7-C-3_8-D-3_9-E-3",
				"0-A-1_1-B-1_2-C-2_3-D-2_4-E-1_5-A-4_6-B-3_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-1_3-D-1_4-E-1_5-A-3_6-B-4_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-2_2-C-1_3-D-2_4-E-1_5-A-3_6-B-3_7-C-4_8-D-3_9-E-3",
				"0-A-1_1-B-1_2-C-1_3-D-1_4-E-1_5-A-3_6-B-4_7-C-3_8-D-4_9-E-4",
				"0-A-1_1-B-1_2-C-2_3-D-2_4-E-1_5-A-4_6-B-4_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-2_2-C-2_3-D-2_4-E-2_5-A-3_6-B-3_7-C-4_8-D-4_9-E-3",
				"0-A-1_1-B-2_2-C-1_3-D-1_4-E-1_5-A-4_6-B-3_7-C-3_8-D-4_9-E-4",
			},
			TrainB: []string{
				"0-A-2_1-B-2_2-C-2_3-D-1_4-E-2_5-A-4_6-B-4_7-C-4_8-D-3_9-E-4",
				"0-A-1_1-B-2_2-C-2_3-D-1_4-E-2_5-A-4_6-B-4_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-2_2-C-2_3-D-1_4-E-2_5-A-4_6-B-4_7-C-4_8-D-3_9-E-3",
				"0-A-2_1-B-1_2-C-2_3-D-1_4-E-1_5-A-4_6-B-4_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-1_2-C-2_3-D-1_4-E-2_5-A-4_6-B-3_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-2_2-C-2_3-D-1_4-E-2_5-A-4_6-B-3_7-C-3_8-D-3_9-E-4",
				"0-A-2_1-B-2_2-C-1_3-D-2_4-E-2_5-A-4_6-B-4_7-C-4_8-D-3_9-E-3",
				"0-A-2_1-B-1_2-C-2_3-D-2_4-E-2_5-A-4_6-B-4_7-C-4_8-D-4_9-E-4",
				"0-A-1_1-B-2_2-C-2_3-D-1_4-E-1_5-A-4_6-B-4_7-C-4_8-D-3_9-E-3",
				"0-A-1_1-B-2_2-C-2_3-D-2_4-E-2_5-A-3_6-B-4_7-C-4_8-D-3_9-E-3",
				"0-A-2_1-B-2_2-C-2_3-D-1_4-E-2_5-A-3_6-B-3_7-C-4_8-D-4_9-E-3",
			},
			TestA: []string{
				"0-A-1_1-B-1_2-C-1_3-D-2_4-E-1_5-A-3_6-B-3_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-1_3-D-2_4-E-1_5-A-3_6-B-4_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-2_3-D-2_4-E-1_5-A-3_6-B-3_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-1_3-D-2_4-E-1_5-A-4_6-B-3_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-1_3-D-2_4-E-1_5-A-3_6-B-3_7-C-4_8-D-4_9-E-3",
				"0-A-2_1-B-1_2-C-1_3-D-2_4-E-1_5-A-3_6-B-3_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-2_2-C-2_3-D-2_4-E-1_5-A-3_6-B-3_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-1_3-D-2_4-E-1_5-A-3_6-B-3_7-C-4_8-D-3_9-E-3",
				"0-A-2_1-B-1_2-C-1_3-D-2_4-E-1_5-A-3_6-B-3_7-C-4_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-1_3-D-2_4-E-2_5-A-3_6-B-4_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-1_3-D-2_4-E-2_5-A-3_6-B-3_7-C-4_8-D-4_9-E-3",
				"0-A-1_1-B-2_2-C-1_3-D-2_4-E-2_5-A-3_6-B-3_7-C-4_8-D-4_9-E-3",
				"0-A-2_1-B-2_2-C-1_3-D-2_4-E-1_5-A-3_6-B-4_7-C-3_8-D-4_9-E-3",
				"0-A-2_1-B-1_2-C-1_3-D-2_4-E-2_5-A-4_6-B-3_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-2_3-D-2_4-E-2_5-A-4_6-B-3_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-1_3-D-1_4-E-2_5-A-3_6-B-4_7-C-3_8-D-4_9-E-3",
				"0-A-2_1-B-2_2-C-2_3-D-2_4-E-2_5-A-3_6-B-3_7-C-3_8-D-4_9-E-3",
				"0-A-1_1-B-1_2-C-1_3-D-2_4-E-2_5-A-4_6-B-3_7-C-4_8-D-4_9-E-4",
				"0-A-2_1-B-1_2-C-1_3-D-2_4-E-2_5-A-4_6-B-4_7-C-3_8-D-4_9-E-3",
				"0-A-2_1-B-2_2-C-1_3-D-2_4-E-1_5-A-3_6-B-4_7-C-3_8-D-3_9-E-3",
				"0-A-1_1-B-1_2-C-2_3-D-2_4-E-1_5-A-4_6-B-4_7-C-3_8-D-4_9-E-4",
			},
			TestB: []string{
				"0-A-2_1-B-2_2-C-2_3-D-1_4-E-2_5-A-4_6-B-4_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-2_2-C-2_3-D-1_4-E-2_5-A-4_6-B-4_7-C-3_8-D-3_9-E-4",
				"0-A-2_1-B-2_2-C-2_3-D-1_4-E-2_5-A-4_6-B-4_7-C-4_8-D-4_9-E-4",
				"0-A-2_1-B-2_2-C-1_3-D-1_4-E-2_5-A-4_6-B-4_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-2_2-C-2_3-D-1_4-E-1_5-A-4_6-B-4_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-2_2-C-2_3-D-1_4-E-2_5-A-4_6-B-3_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-2_2-C-2_3-D-2_4-E-2_5-A-4_6-B-4_7-C-3_8-D-3_9-E-4",
				"0-A-2_1-B-2_2-C-2_3-D-1_4-E-1_5-A-3_6-B-4_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-2_2-C-2_3-D-1_4-E-2_5-A-4_6-B-4_7-C-3_8-D-4_9-E-4",
				"0-A-2_1-B-1_2-C-2_3-D-2_4-E-2_5-A-4_6-B-4_7-C-4_8-D-3_9-E-4",
				"0-A-1_1-B-2_2-C-2_3-D-1_4-E-2_5-A-3_6-B-4_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-2_2-C-1_3-D-1_4-E-1_5-A-4_6-B-3_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-1_2-C-1_3-D-1_4-E-2_5-A-4_6-B-4_7-C-4_8-D-4_9-E-4",
				"0-A-1_1-B-2_2-C-1_3-D-1_4-E-2_5-A-4_6-B-4_7-C-4_8-D-4_9-E-4",
				"0-A-2_1-B-2_2-C-1_3-D-1_4-E-2_5-A-4_6-B-4_7-C-3_8-D-3_9-E-3",
				"0-A-1_1-B-2_2-C-1_3-D-1_4-E-2_5-A-3_6-B-4_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-1_2-C-2_3-D-1_4-E-2_5-A-3_6-B-4_7-C-3_8-D-3_9-E-3",
				"0-A-2_1-B-2_2-C-2_3-D-2_4-E-1_5-A-4_6-B-3_7-C-3_8-D-3_9-E-4",
				"0-A-2_1-B-1_2-C-2_3-D-1_4-E-1_5-A-3_6-B-3_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-1_2-C-2_3-D-2_4-E-2_5-A-3_6-B-3_7-C-4_8-D-3_9-E-4",
				"0-A-2_1-B-1_2-C-2_3-D-2_4-E-2_5-A-4_6-B-3_7-C-4_8-D-4_9-E-4",
			},
		},
	}
}
