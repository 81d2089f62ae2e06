// Package graph provides the connection graph used to validate pipeline topology.
//
// Nodes are kept in insertion order and every ordered pair of nodes has at most
// one edge. An edge accumulates the individual port-to-port wires that connect
// the two nodes, so the graph stays bounded by the number of node pairs while a
// consumer can still enumerate every logical connection.
package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a node in the connection graph.
type Kind int

const (
	// StepKind marks a node backed by a pipeline step.
	StepKind Kind = iota
	// InputKind marks a synthetic pipeline-level input.
	InputKind
	// OutputKind marks a synthetic pipeline-level output.
	OutputKind
)

func (k Kind) String() string {
	switch k {
	case StepKind:
		return "step"
	case InputKind:
		return "input"
	case OutputKind:
		return "output"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Wire is one logical connection carried by an edge. An empty Source or
// Destination means the pipeline boundary rather than a step port.
type Wire struct {
	Source      string
	Destination string
}

func (w Wire) String() string {
	src, dst := w.Source, w.Destination
	if src == "" {
		src = "-"
	}
	if dst == "" {
		dst = "-"
	}
	return src + "->" + dst
}

// Node is a vertex annotated with a caller supplied value.
type Node[T any] struct {
	ID    string
	Kind  Kind
	Value T
}

// Edge lists the wires between two nodes.
type Edge struct {
	From  string
	To    string
	Wires []Wire
}

// Graph is a directed graph with ordered nodes and wire-carrying edges.
type Graph[T any] struct {
	nodes    map[string]*Node[T]
	order    []string
	outgoing map[string][]string
	incoming map[string][]string
	wires    map[string]map[string][]Wire
	warnings []string
}

// New creates an empty graph.
func New[T any]() *Graph[T] {
	return &Graph[T]{
		nodes:    make(map[string]*Node[T]),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		wires:    make(map[string]map[string][]Wire),
	}
}

// AddNode inserts the node or, when it already exists, replaces its kind and value
// while keeping its original position.
func (g *Graph[T]) AddNode(id string, kind Kind, value T) *Node[T] {
	if node, ok := g.nodes[id]; ok {
		node.Kind = kind
		node.Value = value
		return node
	}

	node := &Node[T]{ID: id, Kind: kind, Value: value}
	g.nodes[id] = node
	g.order = append(g.order, id)
	return node
}

// EnsureNode returns the existing node or inserts a new one with a zero value.
func (g *Graph[T]) EnsureNode(id string, kind Kind) *Node[T] {
	if node, ok := g.nodes[id]; ok {
		return node
	}
	var zero T
	return g.AddNode(id, kind, zero)
}

// Connect appends a wire to the edge from -> to, creating the edge on first use.
// Both nodes must already exist.
func (g *Graph[T]) Connect(from, to string, wire Wire) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("unknown node %q", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("unknown node %q", to)
	}

	targets, ok := g.wires[from]
	if !ok {
		targets = make(map[string][]Wire)
		g.wires[from] = targets
	}
	if _, exists := targets[to]; !exists {
		g.outgoing[from] = append(g.outgoing[from], to)
		g.incoming[to] = append(g.incoming[to], from)
	}
	targets[to] = append(targets[to], wire)
	return nil
}

// Warn records a non-fatal problem found while building the graph.
func (g *Graph[T]) Warn(format string, args ...any) {
	g.warnings = append(g.warnings, fmt.Sprintf(format, args...))
}

// Warnings returns the non-fatal problems recorded while building the graph.
func (g *Graph[T]) Warnings() []string {
	return append([]string(nil), g.warnings...)
}

// Node looks up a node by id.
func (g *Graph[T]) Node(id string) (*Node[T], bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// HasNode reports if the node exists in the graph.
func (g *Graph[T]) HasNode(id string) bool {
	if g == nil {
		return false
	}
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns every node in insertion order.
func (g *Graph[T]) Nodes() []*Node[T] {
	out := make([]*Node[T], 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeIDs returns the ids of nodes of the given kinds, or of all nodes when no kind is supplied.
func (g *Graph[T]) NodeIDs(kinds ...Kind) []string {
	out := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if len(kinds) == 0 || containsKind(kinds, g.nodes[id].Kind) {
			out = append(out, id)
		}
	}
	return out
}

// Edge returns the wires carried from -> to, or nil when the nodes are not adjacent.
func (g *Graph[T]) Edge(from, to string) []Wire {
	wires, ok := g.wires[from][to]
	if !ok {
		return nil
	}
	return append([]Wire(nil), wires...)
}

// Edges returns every edge, ordered by source node and then by first connection.
func (g *Graph[T]) Edges() []Edge {
	var out []Edge
	for _, from := range g.order {
		for _, to := range g.outgoing[from] {
			out = append(out, Edge{From: from, To: to, Wires: g.Edge(from, to)})
		}
	}
	return out
}

// Successors returns the nodes reachable over one outgoing edge.
func (g *Graph[T]) Successors(id string) []string {
	return append([]string(nil), g.outgoing[id]...)
}

// Predecessors returns the nodes with an edge into id.
func (g *Graph[T]) Predecessors(id string) []string {
	return append([]string(nil), g.incoming[id]...)
}

// Len returns the number of nodes.
func (g *Graph[T]) Len() int {
	return len(g.order)
}

// Cycle returns the nodes of one directed cycle, closed by repeating its first
// node, or nil when the graph is acyclic. Every node is considered, not just steps.
func (g *Graph[T]) Cycle() []string {
	visited := make(map[string]bool, len(g.order))
	onStack := make(map[string]bool, len(g.order))
	var path []string
	var cycle []string

	var dfs func(string) bool
	dfs = func(node string) bool {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range g.outgoing[node] {
			if onStack[next] {
				idx := len(path) - 1
				for idx >= 0 && path[idx] != next {
					idx--
				}
				cycle = append(append([]string{}, path[idx:]...), next)
				return true
			}
			if !visited[next] && dfs(next) {
				return true
			}
		}

		onStack[node] = false
		path = path[:len(path)-1]
		return false
	}

	for _, id := range g.order {
		if !visited[id] && dfs(id) {
			return cycle
		}
	}
	return nil
}

// IsAcyclic reports whether the graph has no directed cycle.
func (g *Graph[T]) IsAcyclic() bool {
	return g.Cycle() == nil
}

// TopologicalOrder returns node ids so that every edge points forward.
// Nodes that become ready together are ordered by id.
func (g *Graph[T]) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		indegree[id] = len(g.incoming[id])
	}

	var queue []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		var ready []string
		for _, next := range g.outgoing[current] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		if len(ready) > 0 {
			queue = append(queue, ready...)
			sort.Strings(queue)
		}
	}

	if len(result) != len(g.order) {
		return nil, &CycleError{Cycle: g.Cycle()}
	}
	return result, nil
}

// CycleError reports a directed cycle.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Cycle, " -> ")
}

func containsKind(kinds []Kind, kind Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
