package scoring

import "math"

// PageRank parameters.
const (
	DefaultDamping       = 0.85
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-4

	// ScoreScale lifts PageRank probabilities into a readable range.
	ScoreScale = 100000
)

// PageRank runs PageRank over a directed or undirected multigraph.
type PageRank struct {
	Damping       float64
	MaxIterations int
	Tolerance     float64
}

// NewPageRank returns a PageRank with the default parameters.
func NewPageRank() PageRank {
	return PageRank{
		Damping:       DefaultDamping,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

type weightedLink struct {
	to     int
	weight float64
}

// Run returns the scaled score of every node of g keyed by node key.
// Parallel lines add weight; rank mass of nodes without outgoing lines is
// spread uniformly. Iteration stops once no score moves by more than the
// tolerance.
func (pr PageRank) Run(g *Graph) map[string]float64 {
	n := g.Len()
	if n == 0 {
		return map[string]float64{}
	}

	out := make([][]weightedLink, n)
	degree := make([]float64, n)
	for u := 0; u < n; u++ {
		for _, v := range g.successors(int64(u)) {
			w := float64(g.multiplicity(int64(u), v))
			out[u] = append(out[u], weightedLink{to: int(v), weight: w})
			degree[u] += w
		}
	}

	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1 / float64(n)
	}
	next := make([]float64, n)

	for iter := 0; iter < pr.MaxIterations; iter++ {
		dangling := 0.0
		for u := 0; u < n; u++ {
			if degree[u] == 0 {
				dangling += rank[u]
			}
		}

		base := (1-pr.Damping)/float64(n) + pr.Damping*dangling/float64(n)
		for i := range next {
			next[i] = base
		}
		for u := 0; u < n; u++ {
			if degree[u] == 0 {
				continue
			}
			share := pr.Damping * rank[u] / degree[u]
			for _, l := range out[u] {
				next[l.to] += share * l.weight
			}
		}

		delta := 0.0
		for i := range rank {
			delta = math.Max(delta, math.Abs(next[i]-rank[i]))
		}
		rank, next = next, rank
		if delta < pr.Tolerance {
			break
		}
	}

	scores := make(map[string]float64, n)
	for i, r := range rank {
		scores[g.Key(int64(i))] = r * ScoreScale
	}
	return scores
}
