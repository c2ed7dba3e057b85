package services

// CronbachAlpha computes Cronbach's alpha over rows of complete item scores, shaped
// [respondents][items]. Variances are population variances, so perfectly correlated items
// give 1. The result is clamped to [0, 1]; fewer than two items or respondents yields 0.
func CronbachAlpha(matrix [][]float64) float64 {
	n := len(matrix)
	if n < 2 {
		return 0
	}
	k := len(matrix[0])
	if k < 2 {
		return 0
	}
	totals := make([]float64, n)
	var itemVarSum float64
	for j := 0; j < k; j++ {
		col := make([]float64, n)
		for i, row := range matrix {
			if len(row) != k {
				return 0
			}
			col[i] = row[j]
			totals[i] += row[j]
		}
		itemVarSum += variance(col)
	}
	totalVar := variance(totals)
	if totalVar == 0 {
		return 0
	}
	kf := float64(k)
	alpha := kf / (kf - 1) * (1 - itemVarSum/totalVar)
	switch {
	case alpha < 0:
		return 0
	case alpha > 1:
		return 1
	}
	return alpha
}

func variance(xs []float64) float64 {
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}
