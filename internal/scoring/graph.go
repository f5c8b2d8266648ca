package scoring

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"

	"github.com/lovbench/lovrank/internal/kstore"
)

// labeledLine is a multigraph line carrying the predicate it stands for.
type labeledLine struct {
	F, T  graph.Node
	UID   int64
	Label string
}

func (l labeledLine) From() graph.Node { return l.F }
func (l labeledLine) To() graph.Node   { return l.T }
func (l labeledLine) ID() int64        { return l.UID }

func (l labeledLine) ReversedEdge() graph.Edge {
	l.F, l.T = l.T, l.F
	return l
}

func (l labeledLine) ReversedLine() graph.Line {
	l.F, l.T = l.T, l.F
	return l
}

// Graph is a labeled multigraph over string keys. Node IDs are assigned
// in insertion order.
type Graph struct {
	directed bool
	dg       *multi.DirectedGraph
	ug       *multi.UndirectedGraph

	ids   map[string]int64
	keys  []string
	lines int64
}

// NewDirectedGraph returns an empty directed multigraph.
func NewDirectedGraph() *Graph {
	return &Graph{directed: true, dg: multi.NewDirectedGraph(), ids: make(map[string]int64)}
}

// NewUndirectedGraph returns an empty undirected multigraph.
func NewUndirectedGraph() *Graph {
	return &Graph{ug: multi.NewUndirectedGraph(), ids: make(map[string]int64)}
}

// OntologyGraph builds a graph from ontology graph triples, one line per
// triple labeled with its predicate.
func OntologyGraph(triples []kstore.Triple, directed bool) *Graph {
	g := NewUndirectedGraph()
	if directed {
		g = NewDirectedGraph()
	}
	for _, tr := range triples {
		g.AddLine(tr.Subject.URI, tr.Object.URI, tr.Predicate.URI)
	}
	return g
}

// RelationGraph builds a directed graph from ontology relation pairs.
func RelationGraph(pairs []kstore.Pair) *Graph {
	g := NewDirectedGraph()
	for _, p := range pairs {
		g.AddLine(p.From.URI, p.To.URI, "")
	}
	return g
}

func (g *Graph) multigraph() graph.Multigraph {
	if g.directed {
		return g.dg
	}
	return g.ug
}

func (g *Graph) graph() graph.Graph {
	if g.directed {
		return g.dg
	}
	return g.ug
}

// Node returns the node for key, adding it when missing.
func (g *Graph) Node(key string) graph.Node {
	if id, ok := g.ids[key]; ok {
		return multi.Node(id)
	}
	id := int64(len(g.keys))
	g.ids[key] = id
	g.keys = append(g.keys, key)

	n := multi.Node(id)
	if g.directed {
		g.dg.AddNode(n)
	} else {
		g.ug.AddNode(n)
	}
	return n
}

// AddLine adds a labeled line between from and to. Undirected graphs drop
// self loops.
func (g *Graph) AddLine(from, to, label string) {
	f, t := g.Node(from), g.Node(to)
	if !g.directed && f.ID() == t.ID() {
		return
	}

	l := labeledLine{F: f, T: t, UID: g.lines, Label: label}
	g.lines++
	if g.directed {
		g.dg.SetLine(l)
	} else {
		g.ug.SetLine(l)
	}
}

// ID returns the node ID of key.
func (g *Graph) ID(key string) (int64, bool) {
	id, ok := g.ids[key]
	return id, ok
}

// Key returns the key of node id.
func (g *Graph) Key(id int64) string {
	return g.keys[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.keys)
}

// multiplicity counts the lines from u to v.
func (g *Graph) multiplicity(u, v int64) int {
	return g.multigraph().Lines(u, v).Len()
}

// labels returns the labels of the lines between u and v.
func (g *Graph) labels(u, v int64) []string {
	var out []string
	lines := g.multigraph().Lines(u, v)
	for lines.Next() {
		if l, ok := lines.Line().(labeledLine); ok {
			out = append(out, l.Label)
		}
	}
	return out
}

// successors returns the sorted IDs reachable over one line from u.
func (g *Graph) successors(u int64) []int64 {
	nodes := g.multigraph().From(u)
	out := make([]int64, 0, nodes.Len())
	for nodes.Next() {
		out = append(out, nodes.Node().ID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
