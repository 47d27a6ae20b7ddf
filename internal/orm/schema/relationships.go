package schema

import (
	"fmt"
	"sort"
	"strings"
)

// dependencyGraph is a directed graph of named nodes, an edge from a node to
// each node it depends on
type dependencyGraph struct {
	nodes []string
	known map[string]bool
	edges map[string][]string
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{
		known: make(map[string]bool),
		edges: make(map[string][]string),
	}
}

func (g *dependencyGraph) addNode(node string) {
	if !g.known[node] {
		g.known[node] = true
		g.nodes = append(g.nodes, node)
	}
}

func (g *dependencyGraph) addEdge(from, to string) {
	g.addNode(from)
	g.addNode(to)
	g.edges[from] = append(g.edges[from], to)
}

// detectCycles returns the dependency cycles found in the graph
func (g *dependencyGraph) detectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		recursionStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				dfs(neighbor, path)
			} else if recursionStack[neighbor] {
				for i, n := range path {
					if n == neighbor {
						cycles = append(cycles, append([]string(nil), path[i:]...))
						break
					}
				}
			}
		}

		recursionStack[node] = false
	}

	for _, node := range g.nodes {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// topologicalSort returns the nodes with dependencies first, ignoring self
// references. Nodes without mutual dependencies keep insertion order.
func (g *dependencyGraph) topologicalSort() ([]string, error) {
	position := make(map[string]int, len(g.nodes))
	outDegree := make(map[string]int, len(g.nodes))
	reverseEdges := make(map[string][]string)
	for i, node := range g.nodes {
		position[node] = i
		for _, target := range g.edges[node] {
			if target == node {
				continue
			}
			outDegree[node]++
			reverseEdges[target] = append(reverseEdges[target], node)
		}
	}

	var queue []string
	for _, node := range g.nodes {
		if outDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		var ready []string
		for _, dependent := range reverseEdges[node] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })
		queue = append(queue, ready...)
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("circular dependency detected:\n%s", formatCycles(g.detectCycles()))
	}
	return result, nil
}

// formatCycles formats cycle information for error messages
func formatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  Cycle %d: %s -> %s", i+1, strings.Join(cycle, " -> "), cycle[0])
	}
	return b.String()
}
