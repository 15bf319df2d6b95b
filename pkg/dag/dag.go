package dag

import (
	"errors"
	"maps"
	"slices"
)

var (
	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrGraphHasCycle is returned by [DAG.Validate] when a cycle is detected.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes and edges.
// Metadata maps are never nil once added to a graph.
type Metadata map[string]any

// Node is one package of a resolved dependency graph.
type Node struct {
	ID   string   // Canonical package name
	Meta Metadata // Version, category and similar attributes
}

// Edge points from a dependent (From) to the package it requires (To).
type Edge struct {
	From string
	To   string
	Meta Metadata // Requirement attributes, e.g. the constraint
}

// DAG is a directed dependency graph. Package ecosystems tolerate cycles, so
// insertion never rejects them; [DAG.Validate] reports them on request.
//
// The zero value is not usable, use New. DAG is not safe for concurrent use
// without external synchronization.
type DAG struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string // nodeID -> children IDs
	incoming map[string][]string // nodeID -> parent IDs
}

// New creates an empty graph.
func New() *DAG {
	return &DAG{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// EnsureNode adds a node with the given ID unless it already exists and
// returns it.
func (d *DAG) EnsureNode(id string) *Node {
	if n, ok := d.nodes[id]; ok {
		return n
	}
	n := &Node{ID: id, Meta: Metadata{}}
	d.nodes[id] = n
	return n
}

// AddEdge adds a directed edge between two existing nodes. A repeated
// From/To pair is ignored.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if slices.Contains(d.outgoing[e.From], e.To) {
		return nil
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// Nodes returns all nodes sorted by ID.
func (d *DAG) Nodes() []*Node {
	nodes := make([]*Node, 0, len(d.nodes))
	for _, id := range slices.Sorted(maps.Keys(d.nodes)) {
		nodes = append(nodes, d.nodes[id])
	}
	return nodes
}

// Edges returns a copy of all edges in insertion order.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

// NodeCount returns the number of nodes in the graph.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// Node returns the node with the given ID and true, or nil and false if not found.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Parents returns the sorted IDs of the packages that require id.
func (d *DAG) Parents(id string) []string { return sorted(d.incoming[id]) }

// Sources returns the nodes nothing depends on, sorted by ID.
func (d *DAG) Sources() []*Node {
	var sources []*Node
	for _, n := range d.Nodes() {
		if len(d.incoming[n.ID]) == 0 {
			sources = append(sources, n)
		}
	}
	return sources
}

// Validate returns ErrGraphHasCycle if the graph contains a directed cycle.
// Resolution accepts cycles; the graph command reports them.
func (d *DAG) Validate() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(d.nodes))
	var hasCycle bool

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				hasCycle = true
				return
			}
		}
		color[id] = black
	}

	for _, id := range slices.Sorted(maps.Keys(d.nodes)) {
		if color[id] == white {
			dfs(id)
			if hasCycle {
				return ErrGraphHasCycle
			}
		}
	}
	return nil
}

func sorted(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	return slices.Sorted(slices.Values(ids))
}
