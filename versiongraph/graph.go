// Package versiongraph models the directed graph of version labels whose
// edges mean "a patch archive exists transforming a working tree at the
// source label into one at the destination label", and answers shortest-path
// routing queries over it.
//
// The graph itself is backed by gonum.org/v1/gonum/graph/simple and routed
// with gonum.org/v1/gonum/graph/path.DijkstraFrom rather than a hand-rolled
// BFS, per the gonum dependency surfaced across the retrieved pack (see
// DESIGN.md).
package versiongraph

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// versionNode adapts a version label to gonum's graph.Node interface and
// carries the isMajorVersion attribute.
type versionNode struct {
	id           int64
	label        string
	isMajor      bool
}

func (n *versionNode) ID() int64 { return n.id }

// Graph is a directed graph over version labels, optionally tagged with the
// graph-level isMajorMinor attribute a Major/Minor PatchStrategy requires.
type Graph struct {
	g            *simple.DirectedGraph
	nodesByLabel map[string]*versionNode
	nextID       int64
	IsMajorMinor bool
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		g:            simple.NewDirectedGraph(),
		nodesByLabel: make(map[string]*versionNode),
	}
}

// NewWithFirstVersion returns a Graph containing a single node, first, as
// every PatchStrategy's initial graph does when a repository is created.
func NewWithFirstVersion(first string) *Graph {
	g := New()
	g.AddNode(first)
	return g
}

// AddNode adds label as a node if it is not already present. It is a no-op
// if label already exists.
func (g *Graph) AddNode(label string) {
	if _, ok := g.nodesByLabel[label]; ok {
		return
	}
	n := &versionNode{id: g.nextID, label: label}
	g.nextID++
	g.nodesByLabel[label] = n
	g.g.AddNode(n)
}

// HasNode reports whether label is a node in the graph.
func (g *Graph) HasNode(label string) bool {
	_, ok := g.nodesByLabel[label]
	return ok
}

// SetMajorVersion marks label as a major version. label must already be a
// node.
func (g *Graph) SetMajorVersion(label string, major bool) error {
	n, ok := g.nodesByLabel[label]
	if !ok {
		return fmt.Errorf("versiongraph: unknown node %q", label)
	}
	n.isMajor = major
	return nil
}

// IsMajorVersion reports whether label is marked as a major version.
func (g *Graph) IsMajorVersion(label string) bool {
	n, ok := g.nodesByLabel[label]
	return ok && n.isMajor
}

// AddEdge adds a directed edge from -> to. Both nodes must already exist.
func (g *Graph) AddEdge(from, to string) error {
	fn, ok := g.nodesByLabel[from]
	if !ok {
		return fmt.Errorf("versiongraph: unknown node %q", from)
	}
	tn, ok := g.nodesByLabel[to]
	if !ok {
		return fmt.Errorf("versiongraph: unknown node %q", to)
	}
	g.g.SetEdge(simple.Edge{F: fn, T: tn})
	return nil
}

// HasEdge reports whether a direct edge from -> to exists.
func (g *Graph) HasEdge(from, to string) bool {
	fn, ok := g.nodesByLabel[from]
	if !ok {
		return false
	}
	tn, ok := g.nodesByLabel[to]
	if !ok {
		return false
	}
	return g.g.HasEdgeFromTo(fn.ID(), tn.ID())
}

// Neighbors returns the labels of every node with a direct edge from label,
// in lexicographic order.
func (g *Graph) Neighbors(label string) []string {
	n, ok := g.nodesByLabel[label]
	if !ok {
		return nil
	}

	var out []string
	it := g.g.From(n.ID())
	for it.Next() {
		out = append(out, it.Node().(*versionNode).label)
	}
	sort.Strings(out)
	return out
}

// Nodes returns every node label in the graph, in lexicographic order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodesByLabel))
	for label := range g.nodesByLabel {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Edge is one hop of a routed checkout path.
type Edge struct {
	From string
	To   string
}

// ShortestPath returns the sequence of edges a checkout from `from` to `to`
// must apply, using unweighted Dijkstra over the directed graph. It returns
// (nil, false) if no path exists.
func (g *Graph) ShortestPath(from, to string) ([]Edge, bool) {
	fn, ok := g.nodesByLabel[from]
	if !ok {
		return nil, false
	}
	tn, ok := g.nodesByLabel[to]
	if !ok {
		return nil, false
	}
	if fn.id == tn.id {
		return nil, true
	}

	shortest := path.DijkstraFrom(fn, g.g)
	nodes, _ := shortest.To(tn.ID())
	if len(nodes) == 0 {
		return nil, false
	}

	edges := make([]Edge, 0, len(nodes)-1)
	for i := 0; i < len(nodes)-1; i++ {
		edges = append(edges, Edge{
			From: nodes[i].(*versionNode).label,
			To:   nodes[i+1].(*versionNode).label,
		})
	}
	return edges, true
}

var _ graph.Graph = (*simple.DirectedGraph)(nil)
