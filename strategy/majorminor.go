package strategy

import (
	"fmt"

	"github.com/brutus5000/bireus/bierrors"
	"github.com/brutus5000/bireus/versiongraph"
)

// MajorMinor implements the major/minor strategy: a small number of "major"
// versions act as hubs, with minor versions hanging off the nearest major
// hub (or off each other, up to MinorRange, before being promoted).
type MajorMinor struct {
	Bidirectional bool
	MinorRange    int
}

func (s *MajorMinor) minorRange() int {
	if s.MinorRange <= 0 {
		return defaultMinorRange
	}
	return s.MinorRange
}

func (s *MajorMinor) Tag() string {
	dir := "fo"
	if s.Bidirectional {
		dir = "bi"
	}
	return fmt.Sprintf("major-%s-%d", dir, s.minorRange())
}

func (s *MajorMinor) InitialGraph(first string) *versiongraph.Graph {
	g := versiongraph.NewWithFirstVersion(first)
	g.IsMajorMinor = true
	return g
}

func (s *MajorMinor) Plan(g *versiongraph.Graph, previousLatest, newVersion string) ([]versiongraph.Edge, error) {
	if !g.IsMajorMinor {
		return nil, &bierrors.InvalidStrategyConfig{
			Detail: "major strategy requires a graph with isMajorMinor=yes",
		}
	}

	g.AddNode(newVersion)
	k := s.minorRange()

	if !hasAnyMajor(g) {
		// Case 1: no major version exists yet. Connect N like Instant.
		var pairs []versiongraph.Edge
		for _, other := range g.Nodes() {
			if other == newVersion {
				continue
			}
			pairs = append(pairs, addDirectedPair(g, newVersion, other, s.Bidirectional)...)
		}
		if len(g.Nodes()) >= k {
			if err := g.SetMajorVersion(newVersion, true); err != nil {
				return nil, err
			}
		}
		return pairs, nil
	}

	if g.IsMajorVersion(previousLatest) {
		// Case 2: the previous latest is major — this is the first minor
		// after a major hub. Connect only L<->N.
		return addDirectedPair(g, previousLatest, newVersion, s.Bidirectional), nil
	}

	// Case 3: previousLatest is a non-major minor, and majors already
	// exist. Connect N to all neighbors of L plus L itself.
	neighborSet := append([]string{previousLatest}, g.Neighbors(previousLatest)...)
	neighborSet = dedupe(neighborSet)

	var pairs []versiongraph.Edge
	connected := make(map[string]bool, len(neighborSet))
	for _, x := range neighborSet {
		if x == newVersion {
			continue
		}
		pairs = append(pairs, addDirectedPair(g, newVersion, x, s.Bidirectional)...)
		connected[x] = true
	}

	if len(neighborSet) >= k {
		if err := g.SetMajorVersion(newVersion, true); err != nil {
			return nil, err
		}
		for _, label := range g.Nodes() {
			if label == newVersion || connected[label] || !g.IsMajorVersion(label) {
				continue
			}
			pairs = append(pairs, addDirectedPair(g, newVersion, label, s.Bidirectional)...)
		}
	}

	return pairs, nil
}

func hasAnyMajor(g *versiongraph.Graph) bool {
	for _, label := range g.Nodes() {
		if g.IsMajorVersion(label) {
			return true
		}
	}
	return false
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
