package strategy

import "github.com/brutus5000/bireus/versiongraph"

// Incremental connects each new version only to the version it supersedes:
// minimal patches, but a checkout may traverse a long chain.
type Incremental struct {
	Bidirectional bool
}

func (s *Incremental) Tag() string {
	if s.Bidirectional {
		return "inc-bi"
	}
	return "inc-fo"
}

func (s *Incremental) InitialGraph(first string) *versiongraph.Graph {
	return versiongraph.NewWithFirstVersion(first)
}

func (s *Incremental) Plan(g *versiongraph.Graph, previousLatest, newVersion string) ([]versiongraph.Edge, error) {
	g.AddNode(newVersion)
	return addDirectedPair(g, previousLatest, newVersion, s.Bidirectional), nil
}
