package strategy

import "github.com/brutus5000/bireus/versiongraph"

// Instant connects each new version to every existing node: one patch hop
// per checkout, at the cost of quadratic patch storage.
type Instant struct {
	Bidirectional bool
}

func (s *Instant) Tag() string {
	if s.Bidirectional {
		return "inst-bi"
	}
	return "inst-fo"
}

func (s *Instant) InitialGraph(first string) *versiongraph.Graph {
	return versiongraph.NewWithFirstVersion(first)
}

func (s *Instant) Plan(g *versiongraph.Graph, previousLatest, newVersion string) ([]versiongraph.Edge, error) {
	existing := g.Nodes()
	g.AddNode(newVersion)

	var pairs []versiongraph.Edge
	for _, other := range existing {
		if other == newVersion {
			continue
		}
		pairs = append(pairs, addDirectedPair(g, newVersion, other, s.Bidirectional)...)
	}
	return pairs, nil
}
