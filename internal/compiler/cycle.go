package compiler

import (
	"fmt"
	"strings"

	"github.com/quantprep/quantprep/internal/ir"
)

// CycleWarning reports a cycle among share_with references.
//
// A reference cycle means no member of the cycle ever resolves to a
// concrete spec, so the prepare pass is guaranteed to fail on it. It is
// still reported as a lint warning rather than a validation error: the
// analysis runs before sharing inference and cannot prove which member
// the pass will trip over first.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["edge:a->n", "edge:b->n", "edge:a->n"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeSharing performs static cycle analysis on share_with references.
//
// The algorithm:
//  1. Build position -> referenced-position graph from annotations
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle warning
//
// Reference chains that terminate in a concrete spec (a DAG) return an
// empty warning list.
func AnalyzeSharing(g *ir.Graph) []CycleWarning {
	graph := buildReferenceGraph(g)
	if len(graph) == 0 {
		return []CycleWarning{}
	}

	sccs := tarjanSCC(graph)

	var warnings []CycleWarning
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// referenceGraph maps a position to the positions it shares with.
// Keys are Position.String() forms for stable output.
type referenceGraph map[string][]string

// buildReferenceGraph extracts the share_with edges from every
// annotation. Concrete specs contribute no edges.
func buildReferenceGraph(g *ir.Graph) referenceGraph {
	graph := make(referenceGraph)

	addRef := func(from ir.Position, spec ir.Spec) {
		sw, ok := spec.(ir.SharedWith)
		if !ok {
			return
		}
		key := from.String()
		graph[key] = append(graph[key], sw.Target.String())
		if graph[sw.Target.String()] == nil {
			graph[sw.Target.String()] = []string{}
		}
	}

	for _, n := range g.Nodes() {
		ann := n.Annotation()
		if ann == nil {
			continue
		}
		for _, in := range ann.Inputs {
			addRef(ir.InputEdge(in.Producer, n.Name()), in.Spec)
		}
		if ann.Output != nil {
			addRef(ir.NodeOutput(n.Name()), ann.Output)
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph referenceGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of position strings.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph referenceGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for node := range graph {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph referenceGraph) CycleWarning {
	if len(scc) == 1 {
		pos := scc[0]
		return CycleWarning{
			Path:    []string{pos, pos},
			Message: fmt.Sprintf("position shares with itself: %s -> %s", pos, pos),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("cyclic share_with references: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: start at the first node in the SCC, follow edges to other
// SCC members, continue until we return to the start node.
func reconstructCyclePath(scc []string, graph referenceGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
