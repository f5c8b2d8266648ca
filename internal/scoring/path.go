package scoring

import (
	"math"

	"gonum.org/v1/gonum/graph/path"
)

// ShortestPaths answers unweighted shortest path lengths within one graph.
type ShortestPaths struct {
	g     *Graph
	cache map[int64]path.Shortest
}

// NewShortestPaths prepares shortest path queries over g.
func NewShortestPaths(g *Graph) *ShortestPaths {
	return &ShortestPaths{g: g, cache: make(map[int64]path.Shortest)}
}

// Has reports whether key is a node of the graph.
func (s *ShortestPaths) Has(key string) bool {
	_, ok := s.g.ID(key)
	return ok
}

// Distance returns the number of lines on a shortest path from one key
// to another, 0 when either is missing or no path exists.
func (s *ShortestPaths) Distance(from, to string) float64 {
	fid, ok := s.g.ID(from)
	if !ok {
		return 0
	}
	tid, ok := s.g.ID(to)
	if !ok {
		return 0
	}

	sp, ok := s.cache[fid]
	if !ok {
		g := s.g.graph()
		sp = path.DijkstraFrom(g.Node(fid), g)
		s.cache[fid] = sp
	}

	d := sp.WeightTo(tid)
	if math.IsInf(d, 0) || math.IsNaN(d) {
		return 0
	}
	return d
}
