package versiongraph

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// GraphFileName is the on-disk name of the persisted version graph, both on
// the server and inside a client working tree's .bireus/ directory.
const GraphFileName = "versions.gml"

// Load reads and parses the graph file at path.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Write serializes g and writes it to path.
func Write(g *Graph, path string) error {
	return os.WriteFile(path, Marshal(g), 0o644)
}

// Marshal renders the graph as DOT (Graphviz) text: a node statement per
// version label (with an isMajorVersion attribute when set), an edge
// statement per patch-archive edge, and a graph-level isMajorMinor
// attribute when set. This is the format persisted at the path named
// "versions.gml" in spec.md §6 — the file name is kept for wire
// compatibility; the content is DOT, not GML (see DESIGN.md).
func Marshal(g *Graph) []byte {
	var buf bytes.Buffer
	buf.WriteString("digraph bireus {\n")

	if g.IsMajorMinor {
		buf.WriteString("\tisMajorMinor=yes;\n")
	}

	for _, label := range g.Nodes() {
		n := g.nodesByLabel[label]
		if n.isMajor {
			fmt.Fprintf(&buf, "\t%q [isMajorVersion=yes];\n", label)
		} else {
			fmt.Fprintf(&buf, "\t%q;\n", label)
		}
	}

	for _, from := range g.Nodes() {
		for _, to := range g.Neighbors(from) {
			fmt.Fprintf(&buf, "\t%q -> %q;\n", from, to)
		}
	}

	buf.WriteString("}\n")
	return buf.Bytes()
}

var (
	graphAttrRe = regexp.MustCompile(`^isMajorMinor\s*=\s*(yes|true)\s*;?$`)
	nodeRe      = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"\s*(?:\[\s*isMajorVersion\s*=\s*(yes|true)\s*\])?\s*;?$`)
	edgeRe      = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"\s*->\s*"((?:[^"\\]|\\.)*)"\s*;?$`)
)

// Unmarshal parses DOT text produced by Marshal back into a Graph.
func Unmarshal(data []byte) (*Graph, error) {
	g := New()

	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 {
		return nil, fmt.Errorf("versiongraph: empty graph document")
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || line == "}" {
			continue
		}
		if i == 0 {
			if !strings.HasPrefix(line, "digraph") {
				return nil, fmt.Errorf("versiongraph: line 1: expected %q, got %q", "digraph ... {", line)
			}
			continue
		}

		switch {
		case graphAttrRe.MatchString(line):
			g.IsMajorMinor = true
		case edgeRe.MatchString(line):
			m := edgeRe.FindStringSubmatch(line)
			from, to := unescapeDOT(m[1]), unescapeDOT(m[2])
			g.AddNode(from)
			g.AddNode(to)
			if err := g.AddEdge(from, to); err != nil {
				return nil, err
			}
		case nodeRe.MatchString(line):
			m := nodeRe.FindStringSubmatch(line)
			label := unescapeDOT(m[1])
			g.AddNode(label)
			if m[2] != "" {
				if err := g.SetMajorVersion(label, true); err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("versiongraph: line %d: unrecognized statement %q", i+1, line)
		}
	}

	return g, nil
}

func unescapeDOT(s string) string {
	return strings.ReplaceAll(s, `\"`, `"`)
}
