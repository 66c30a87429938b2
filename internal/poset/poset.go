// Package poset analyzes the partial order of registered selectors: which
// selectors are sub-selectors (more specific forms) of which. The transitive
// reduction of that order is what inspection tooling prints to explain rule
// precedence hierarchies.
package poset

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/danielpatrickdp/choicepoint/internal/frame"
)

// #region compare

// Compare orders two selectors by the sub-selector relation, matching items
// suffix-first. It returns -1 when a is a sub-selector of b (a is more
// specific), 1 when b is a sub-selector of a, and 0 when the selectors are
// equal or unrelated.
func Compare(a, b []string) int {
	ai := len(a) - 1
	bi := len(b) - 1
	for ai >= 0 && bi >= 0 {
		if a[ai] != b[bi] {
			return 0
		}
		ai--
		bi--
	}
	if ai >= 0 {
		return -1
	}
	if bi >= 0 {
		return 1
	}
	return 0
}

// #endregion compare

// #region graph

// Graph is the selector poset: nodes are rendered selectors, edges run from a
// sub-selector to the selector it specializes.
type Graph struct {
	nodes []string
	edges map[string]map[string]bool
}

// Build constructs the poset over the given selector item lists, with
// transitive edges removed.
func Build(items [][]string) *Graph {
	g := &Graph{edges: make(map[string]map[string]bool)}

	keys := make([]string, len(items))
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		keys[i] = strings.Join(it, " ")
		if !seen[keys[i]] {
			seen[keys[i]] = true
			g.nodes = append(g.nodes, keys[i])
		}
	}

	for i, a := range items {
		for j, b := range items {
			if i == j || keys[i] == keys[j] {
				continue
			}
			if Compare(a, b) == -1 {
				g.addEdge(keys[i], keys[j])
			}
		}
	}

	g.reduce()
	return g
}

// FromSelectors converts selectors to their item-label lists.
func FromSelectors(sels []frame.Selector) [][]string {
	out := make([][]string, len(sels))
	for i, s := range sels {
		items := make([]string, len(s.Items))
		for j, it := range s.Items {
			items[j] = it.String()
		}
		out[i] = items
	}
	return out
}

// FromStrings converts space-joined selector strings, as stored in registry
// snapshots, back to item lists.
func FromStrings(sels []string) [][]string {
	out := make([][]string, len(sels))
	for i, s := range sels {
		out[i] = strings.Fields(s)
	}
	return out
}

func (g *Graph) addEdge(from, to string) {
	if g.edges[from] == nil {
		g.edges[from] = make(map[string]bool)
	}
	g.edges[from][to] = true
}

// #endregion graph

// #region reduce

// reduce removes transitive edges, keeping only direct specialization links.
func (g *Graph) reduce() {
	for from, tos := range g.edges {
		for to := range tos {
			if g.reachableVia(from, to) {
				delete(tos, to)
			}
		}
	}
}

// reachableVia reports whether to is reachable from from through at least one
// intermediate node.
func (g *Graph) reachableVia(from, to string) bool {
	for mid := range g.edges[from] {
		if mid == to {
			continue
		}
		if g.reaches(mid, to, map[string]bool{from: true}) {
			return true
		}
	}
	return false
}

func (g *Graph) reaches(from, to string, visited map[string]bool) bool {
	if from == to {
		return true
	}
	if visited[from] {
		return false
	}
	visited[from] = true
	for next := range g.edges[from] {
		if g.reaches(next, to, visited) {
			return true
		}
	}
	return false
}

// #endregion reduce

// #region accessors

// Nodes returns the selectors in first-seen order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the reduced specialization edges, sorted for stable output.
func (g *Graph) Edges() [][2]string {
	var out [][2]string
	for from, tos := range g.edges {
		for to := range tos {
			out = append(out, [2]string{from, to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// #endregion accessors

// #region render

// Render writes the poset as "specific -> general" lines, with isolated
// selectors listed on their own.
func (g *Graph) Render(w io.Writer) {
	linked := make(map[string]bool)
	for _, e := range g.Edges() {
		fmt.Fprintf(w, "%s -> %s\n", e[0], e[1])
		linked[e[0]] = true
		linked[e[1]] = true
	}
	for _, n := range g.nodes {
		if !linked[n] {
			fmt.Fprintf(w, "%s\n", n)
		}
	}
}

// #endregion render
