package evaluation

import (
	"math"
	"slices"
)

// NDCG calculates Normalized Discounted Cumulative Gain at K over graded
// relevances in rank order.
func NDCG(relevances []int, k int) float64 {
	k = min(k, len(relevances))
	if k <= 0 {
		return 0
	}

	ideal := slices.Clone(relevances)
	slices.Sort(ideal)
	slices.Reverse(ideal)

	idcg := dcg(ideal, k)
	if idcg == 0 {
		return 0
	}
	return dcg(relevances, k) / idcg
}

func dcg(relevances []int, k int) float64 {
	sum := float64(relevances[0])
	for i := 1; i < k; i++ {
		sum += float64(relevances[i]) / math.Log2(float64(i+2))
	}
	return sum
}

// Recall calculates Recall at K
func Recall(relevances []int, k int, threshold int) float64 {
	k = min(k, len(relevances))

	total := countRelevant(relevances, threshold)
	if total == 0 {
		return 0
	}
	return float64(countRelevant(relevances[:max(k, 0)], threshold)) / float64(total)
}

// Precision calculates Precision at K
func Precision(relevances []int, k int, threshold int) float64 {
	k = min(k, len(relevances))
	if k <= 0 {
		return 0
	}
	return float64(countRelevant(relevances[:k], threshold)) / float64(k)
}

func countRelevant(relevances []int, threshold int) int {
	n := 0
	for _, r := range relevances {
		if r >= threshold {
			n++
		}
	}
	return n
}

// MRR calculates the reciprocal rank of the first relevant entity.
func MRR(relevances []int, threshold int) float64 {
	for i, r := range relevances {
		if r >= threshold {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// AveragePrecision calculates Average Precision
func AveragePrecision(relevances []int, threshold int) float64 {
	relevant := 0
	sumPrecision := 0.0

	for i, r := range relevances {
		if r >= threshold {
			relevant++
			sumPrecision += float64(relevant) / float64(i+1)
		}
	}

	if relevant == 0 {
		return 0
	}
	return sumPrecision / float64(relevant)
}
