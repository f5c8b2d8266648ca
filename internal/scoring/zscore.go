package scoring

import (
	"gonum.org/v1/gonum/stat"
)

// ZScore standardises scores to mean 0 and sample standard deviation 1.
// Maps with fewer than two entries are returned as a copy; a constant
// map standardises to all zeros.
func ZScore[K comparable](scores map[K]float64) map[K]float64 {
	out := make(map[K]float64, len(scores))
	if len(scores) < 2 {
		for k, v := range scores {
			out[k] = v
		}
		return out
	}

	values := make([]float64, 0, len(scores))
	for _, v := range scores {
		values = append(values, v)
	}
	mean, std := stat.MeanStdDev(values, nil)

	for k, v := range scores {
		if std == 0 {
			out[k] = 0
			continue
		}
		out[k] = (v - mean) / std
	}
	return out
}
