// SPDX-License-Identifier: MPL-2.0

// Package dag orders packages by their dependencies.
//
// Nodes are package names; an edge records that one package depends on
// another. [Graph.Sort] produces a dependency-first order and rejects
// cycles, while [Graph.PostOrder] walks the same graph depth-first and
// tolerates cycles by never revisiting a node.
package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is matched by every *CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError reports packages that depend on each other, directly or
	// transitively. Cycle lists the packages left unordered.
	CycleError struct {
		Cycle []string
	}

	// Graph is a dependency graph with deterministic iteration: nodes and
	// edges are visited in the order they were first added.
	Graph struct {
		// deps maps a node to the nodes it depends on.
		deps map[string][]string
		// dependents maps a node to the nodes that depend on it.
		dependents map[string][]string
		nodes      []string
		nodeSet    map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
		nodeSet:    make(map[string]bool),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// Has reports whether name is a node.
func (g *Graph) Has(name string) bool {
	return g.nodeSet[name]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// AddDependency records that node depends on dep. Both nodes are added if
// missing; duplicate edges are ignored.
func (g *Graph) AddDependency(node, dep string) {
	g.AddNode(node)
	g.AddNode(dep)
	for _, existing := range g.deps[node] {
		if existing == dep {
			return
		}
	}
	g.deps[node] = append(g.deps[node], dep)
	g.dependents[dep] = append(g.dependents[dep], node)
}

// Dependencies returns the direct dependencies of node in insertion order.
func (g *Graph) Dependencies(node string) []string {
	return g.deps[node]
}

// Sort returns every node with each one placed after all of its
// dependencies, using Kahn's algorithm. Among nodes that become ready at the
// same time, insertion order wins, so the result is deterministic.
func (g *Graph) Sort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	pending := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		pending[node] = len(g.deps[node])
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if pending[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, dependent := range g.dependents[node] {
			pending[dependent]--
			if pending[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var cycle []string
		for _, node := range g.nodes {
			if pending[node] > 0 {
				cycle = append(cycle, node)
			}
		}
		return nil, &CycleError{Cycle: cycle}
	}
	return result, nil
}

// PostOrder appends root and everything it depends on to out in depth-first
// post-order (dependencies before dependents). Nodes already in seen are
// skipped, which is what makes the walk terminate on cycles; seen is updated
// so that a caller can share it across several roots. follow filters which
// edges are walked; nil follows every edge.
func (g *Graph) PostOrder(root string, seen map[string]bool, follow func(node, dep string) bool, out []string) []string {
	if seen[root] || !g.nodeSet[root] {
		return out
	}
	seen[root] = true
	for _, dep := range g.deps[root] {
		if follow != nil && !follow(root, dep) {
			continue
		}
		out = g.PostOrder(dep, seen, follow, out)
	}
	return append(out, root)
}
