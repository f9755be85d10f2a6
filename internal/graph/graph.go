// Package graph provides dependency-shape analysis over a normalized binding
// table: missing-dependency checks and dependency-cycle detection with path
// reporting. It is used for eager validation at injector build time; the
// injector still detects loops lazily during lookup.
package graph

import (
	"github.com/venscn/fruit/internal/typeid"
)

// Graph is a dependency graph keyed by TypeId. It is built once during
// injector construction and never mutated concurrently.
type Graph struct {
	nodes map[*typeid.TypeId][]*typeid.TypeId
}

// New creates an empty dependency graph.
func New() *Graph {
	return &Graph{nodes: make(map[*typeid.TypeId][]*typeid.TypeId)}
}

// AddNode records a binding and the TypeIds it depends on. Re-adding a node
// replaces its edges.
func (g *Graph) AddNode(id *typeid.TypeId, deps []*typeid.TypeId) {
	g.nodes[id] = deps
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// MissingDependency names one unsatisfied edge.
type MissingDependency struct {
	Dependent  *typeid.TypeId
	Dependency *typeid.TypeId
}

// MissingDependencies returns, for each node, the dependencies that are
// neither nodes of this graph nor accepted by the supplied lookup (the base
// component or boundary-provided types).
func (g *Graph) MissingDependencies(boundElsewhere func(*typeid.TypeId) bool) []MissingDependency {
	var missing []MissingDependency

	for id, deps := range g.nodes {
		for _, dep := range deps {
			if _, ok := g.nodes[dep]; ok {
				continue
			}

			if boundElsewhere != nil && boundElsewhere(dep) {
				continue
			}

			missing = append(missing, MissingDependency{Dependent: id, Dependency: dep})
		}
	}

	return missing
}

// DetectCycles checks the graph for dependency cycles, returning a
// CircularDependencyError carrying the cycle path if one exists.
func (g *Graph) DetectCycles() error {
	visited := make(map[*typeid.TypeId]bool, len(g.nodes))
	visiting := make(map[*typeid.TypeId]bool)

	for id := range g.nodes {
		if visited[id] {
			continue
		}

		if path := g.findCycleFrom(id, visiting, visited); path != nil {
			return CircularDependencyError{Path: path}
		}
	}

	return nil
}

// findCycleFrom runs a DFS from start, returning the cycle path when one is
// found: the nodes from the repeated TypeId back around to itself.
func (g *Graph) findCycleFrom(start *typeid.TypeId, visiting, visited map[*typeid.TypeId]bool) []*typeid.TypeId {
	var stack []*typeid.TypeId

	var walk func(id *typeid.TypeId) []*typeid.TypeId
	walk = func(id *typeid.TypeId) []*typeid.TypeId {
		if visiting[id] {
			for i, node := range stack {
				if node == id {
					cycle := make([]*typeid.TypeId, 0, len(stack)-i+1)
					cycle = append(cycle, stack[i:]...)
					return append(cycle, id)
				}
			}
			return []*typeid.TypeId{id, id}
		}

		if visited[id] {
			return nil
		}

		visiting[id] = true
		stack = append(stack, id)

		for _, dep := range g.nodes[id] {
			if _, ok := g.nodes[dep]; !ok {
				// Unsatisfied edges are reported by MissingDependencies.
				continue
			}

			if path := walk(dep); path != nil {
				return path
			}
		}

		stack = stack[:len(stack)-1]
		delete(visiting, id)
		visited[id] = true
		return nil
	}

	return walk(start)
}
