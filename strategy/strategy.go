// Package strategy implements PatchStrategy: given a version graph and a
// newly ingested version, decide which (from, to) patch pairs the server
// must compute and how the graph's edges grow. Dispatch is a compile-time
// tagged-variant table, never reflection over a type hierarchy, per
// spec.md §9's "Strategy dispatch" design note.
package strategy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brutus5000/bireus/bierrors"
	"github.com/brutus5000/bireus/versiongraph"
)

// Strategy decides which edges a new version adds to a version graph, and
// which (from, to) pairs therefore need a freshly computed patch.
type Strategy interface {
	// Tag is the strategy's wire identifier, persisted in info.json.
	Tag() string

	// InitialGraph returns the graph a brand-new repository starts with:
	// just first as a node (plus any strategy-specific graph attribute).
	InitialGraph(first string) *versiongraph.Graph

	// Plan mutates g to add whatever edges newVersion introduces and
	// returns the (from, to) pairs the caller must run CompareTask for.
	// previousLatest is the latest version recorded before newVersion was
	// ingested.
	Plan(g *versiongraph.Graph, previousLatest, newVersion string) ([]versiongraph.Edge, error)
}

const defaultMinorRange = 10

// Parse decodes a strategy tag of the form "inc-bi", "inc-fo", "inst-bi",
// "inst-fo", "major-bi"/"major-fo" (optionally suffixed "-<minor_range>",
// e.g. "major-bi-5") into a concrete Strategy.
func Parse(tag string) (Strategy, error) {
	parts := strings.Split(tag, "-")
	if len(parts) < 2 {
		return nil, &bierrors.InvalidStrategyConfig{Detail: fmt.Sprintf("malformed strategy tag %q", tag)}
	}

	kind := parts[0]
	dir := parts[1]

	var bidirectional bool
	switch dir {
	case "bi":
		bidirectional = true
	case "fo":
		bidirectional = false
	default:
		return nil, &bierrors.InvalidStrategyConfig{Detail: fmt.Sprintf("unknown directionality %q in strategy tag %q", dir, tag)}
	}

	switch kind {
	case "inc":
		return &Incremental{Bidirectional: bidirectional}, nil
	case "inst":
		return &Instant{Bidirectional: bidirectional}, nil
	case "major":
		minorRange := defaultMinorRange
		if len(parts) >= 3 {
			n, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, &bierrors.InvalidStrategyConfig{Detail: fmt.Sprintf("invalid minor_range in strategy tag %q: %v", tag, err)}
			}
			minorRange = n
		}
		return &MajorMinor{Bidirectional: bidirectional, MinorRange: minorRange}, nil
	default:
		return nil, &bierrors.InvalidStrategyConfig{Detail: fmt.Sprintf("unknown strategy kind %q in tag %q", kind, tag)}
	}
}

func addDirectedPair(g *versiongraph.Graph, from, to string, bidirectional bool) []versiongraph.Edge {
	var pairs []versiongraph.Edge

	if !g.HasEdge(from, to) {
		_ = g.AddEdge(from, to)
		pairs = append(pairs, versiongraph.Edge{From: from, To: to})
	}
	if bidirectional && !g.HasEdge(to, from) {
		_ = g.AddEdge(to, from)
		pairs = append(pairs, versiongraph.Edge{From: to, To: from})
	}

	return pairs
}
