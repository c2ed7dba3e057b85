package services

import "github.com/soaringjerry/dronerecon/internal/config"

// ReverseScore mirrors raw inside the closed range [lo, hi]. Out-of-range values are clamped.
func ReverseScore(raw, lo, hi int) int {
	if hi <= lo {
		return raw
	}
	if raw < lo {
		raw = lo
	}
	if raw > hi {
		raw = hi
	}
	return lo + hi - raw
}

// ItemScore returns the scored value of one answer, reversing it when the item is reverse keyed.
func ItemScore(item config.QuestionnaireItem, raw int) int {
	if !item.Reverse || len(item.Answers) == 0 {
		return raw
	}
	lo, hi := answerRange(item.Answers)
	return ReverseScore(raw, lo, hi)
}

func answerRange(choices []config.IntChoice) (int, int) {
	lo, hi := choices[0].Value, choices[0].Value
	for _, c := range choices[1:] {
		if c.Value < lo {
			lo = c.Value
		}
		if c.Value > hi {
			hi = c.Value
		}
	}
	return lo, hi
}
