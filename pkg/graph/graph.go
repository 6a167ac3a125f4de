// Package graph provides directed acyclic graph operations over manifest
// resources. It supports dependency and dependant lookups, cycle
// detection and topological sorting keyed by unique ID.
package graph

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

// Node represents a node in the DAG.
type Node struct {
	// ID is the resource unique ID, e.g. "model.jaffle_shop.customers"
	ID string
	// Resource holds the manifest resource, nil for unresolved references
	Resource any
}

// Graph represents a directed acyclic graph of manifest resources.
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // dependency -> dependants
	parents map[string][]string // dependant -> dependencies
}

// New creates a new empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// FromManifest builds the dependency graph of a parsed manifest. Models,
// sources, macros and tests become nodes; every depends_on entry becomes
// an edge. References to resources missing from the manifest still get a
// node, with a nil Resource, so dependency checks can spot them.
func FromManifest(m *artifact.Manifest) *Graph {
	g := New()

	for id, model := range m.Models {
		g.AddNode(id, model)
	}
	for id, source := range m.Sources {
		g.AddNode(id, source)
	}
	for id, macro := range m.Macros {
		g.AddNode(id, macro)
	}
	for id, test := range m.Tests {
		g.AddNode(id, test)
	}

	addEdges := func(childID string, deps []string) {
		for _, dep := range deps {
			if _, ok := g.nodes[dep]; !ok {
				g.AddNode(dep, nil)
			}
			_ = g.AddEdge(dep, childID)
		}
	}

	for id, model := range m.Models {
		addEdges(id, model.DependsOn.Nodes)
		addEdges(id, model.DependsOn.Macros)
	}
	for id, test := range m.Tests {
		addEdges(id, test.DependsOn.Nodes)
		addEdges(id, test.DependsOn.Macros)
	}
	for id, macro := range m.Macros {
		addEdges(id, macro.DependsOn.Macros)
	}

	return g
}

// AddNode adds a node to the graph.
func (g *Graph) AddNode(id string, resource any) {
	if _, exists := g.nodes[id]; !exists {
		g.nodes[id] = &Node{ID: id, Resource: resource}
		g.edges[id] = []string{}
		g.parents[id] = []string{}
	} else if resource != nil {
		g.nodes[id].Resource = resource
	}
}

// AddEdge adds a directed edge from dependency to dependant.
func (g *Graph) AddEdge(dependencyID, dependantID string) error {
	if _, exists := g.nodes[dependencyID]; !exists {
		return fmt.Errorf("dependency node %q does not exist", dependencyID)
	}
	if _, exists := g.nodes[dependantID]; !exists {
		return fmt.Errorf("dependant node %q does not exist", dependantID)
	}
	if dependencyID == dependantID {
		return fmt.Errorf("self-loop detected: %s", dependencyID)
	}

	if !contains(g.edges[dependencyID], dependantID) {
		g.edges[dependencyID] = append(g.edges[dependencyID], dependantID)
	}
	if !contains(g.parents[dependantID], dependencyID) {
		g.parents[dependantID] = append(g.parents[dependantID], dependencyID)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// Dependencies returns the direct dependencies of a node.
func (g *Graph) Dependencies(id string) []string {
	return g.parents[id]
}

// Dependants returns the nodes that directly depend on a node.
func (g *Graph) Dependants(id string) []string {
	return g.edges[id]
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// HasCycle returns true if the graph contains a cycle, along with the
// cycle path.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, childID := range g.edges[id] {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if recStack[childID] {
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if !visited[id] {
			if dfs(id) {
				return true, cyclePath
			}
		}
	}

	return false, nil
}

// TopologicalSort returns nodes in topological order (dependencies before
// dependants). Returns an error if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	visited := make(map[string]bool)
	var result []*Node

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		for _, parentID := range g.parents[id] {
			visit(parentID)
		}

		result = append(result, g.nodes[id])
	}

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		visit(id)
	}

	return result, nil
}

// Upstream returns all transitive dependencies of the given node.
func (g *Graph) Upstream(id string) []string {
	upstream := make(map[string]bool)

	var mark func(nodeID string)
	mark = func(nodeID string) {
		for _, parentID := range g.parents[nodeID] {
			if !upstream[parentID] {
				upstream[parentID] = true
				mark(parentID)
			}
		}
	}
	mark(id)

	result := make([]string, 0, len(upstream))
	for nodeID := range upstream {
		result = append(result, nodeID)
	}
	sort.Strings(result)
	return result
}

// Downstream returns all transitive dependants of the given node.
func (g *Graph) Downstream(id string) []string {
	downstream := make(map[string]bool)

	var mark func(nodeID string)
	mark = func(nodeID string) {
		for _, childID := range g.edges[nodeID] {
			if !downstream[childID] {
				downstream[childID] = true
				mark(childID)
			}
		}
	}
	mark(id)

	result := make([]string, 0, len(downstream))
	for nodeID := range downstream {
		result = append(result, nodeID)
	}
	sort.Strings(result)
	return result
}

// Roots returns nodes with no dependencies.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns nodes with no dependants.
func (g *Graph) Leaves() []string {
	var leaves []string
	for id := range g.nodes {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// contains checks if a slice contains a string.
func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
