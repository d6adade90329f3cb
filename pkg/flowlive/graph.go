package flowlive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// NodeType is the category of a flow node. The set is open: unknown types
// are accepted and only checked structurally.
type NodeType string

// Node types understood by the validator.
const (
	NodeStart     NodeType = "start"
	NodeInput     NodeType = "input"
	NodeOutput    NodeType = "output"
	NodeCondition NodeType = "condition"
	NodeEnd       NodeType = "end"
	NodeLLM       NodeType = "llm"
	NodeChoose    NodeType = "choose"
	NodeCode      NodeType = "code"
	NodeTool      NodeType = "tool"
	NodeRAG       NodeType = "rag"
	NodeAgent     NodeType = "agent"
	NodeReport    NodeType = "report"
)

// ElseHandle is the implicit default output handle of a condition node.
const ElseHandle = "else"

// Ports lists the handle ids a node declares.
type Ports struct {
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

// Node is one vertex of a flow graph. Params is the parameter bag edited by
// the node's form; structural checks never look inside it.
type Node struct {
	ID     string          `json:"id"`
	Type   NodeType        `json:"type"`
	Name   string          `json:"name,omitempty"`
	Ports  Ports           `json:"ports"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Label returns the node name, or its id when unnamed.
func (n Node) Label() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

func (n Node) clone() Node {
	n.Ports.Inputs = slices.Clone(n.Ports.Inputs)
	n.Ports.Outputs = slices.Clone(n.Ports.Outputs)
	n.Params = bytes.Clone(n.Params)
	return n
}

// Edge connects an output handle of Source to an input handle of Target.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Graph is an immutable snapshot of a flow. Every accessor returns copies
// and every With* method returns a new Graph, so a Graph may be shared
// freely between goroutines.
type Graph struct {
	nodes []Node
	index map[string]int
	edges []Edge
	out   map[string][]int
	in    map[string][]int
}

// NewGraph builds a snapshot from nodes and edges. Node ids must be
// non-empty and unique and every edge must reference existing nodes. All
// problems are reported together.
func NewGraph(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes: make([]Node, 0, len(nodes)),
		index: make(map[string]int, len(nodes)),
		edges: make([]Edge, 0, len(edges)),
		out:   make(map[string][]int),
		in:    make(map[string][]int),
	}

	var errs []error
	for _, n := range nodes {
		if n.ID == "" {
			errs = append(errs, ErrEmptyNodeID)
			continue
		}
		if _, dup := g.index[n.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID))
			continue
		}
		g.index[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n.clone())
	}

	for i, e := range edges {
		if _, ok := g.index[e.Source]; !ok {
			errs = append(errs, &EdgeError{Index: i, EdgeID: e.ID, NodeID: e.Source, Err: ErrNodeNotFound})
			continue
		}
		if _, ok := g.index[e.Target]; !ok {
			errs = append(errs, &EdgeError{Index: i, EdgeID: e.ID, NodeID: e.Target, Err: ErrNodeNotFound})
			continue
		}
		g.addEdge(e)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return g, nil
}

func (g *Graph) addEdge(e Edge) {
	pos := len(g.edges)
	g.edges = append(g.edges, e)
	g.out[e.Source] = append(g.out[e.Source], pos)
	g.in[e.Target] = append(g.in[e.Target], pos)
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i].clone(), true
}

// HasNode reports whether id names a node.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// nodeType returns the type of id without copying the node.
func (g *Graph) nodeType(id string) NodeType {
	if i, ok := g.index[id]; ok {
		return g.nodes[i].Type
	}
	return ""
}

// Nodes returns all nodes in document order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.clone()
	}
	return out
}

// NodeIDs returns all node ids in document order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	return ids
}

// Edges returns all edges in stored order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Outgoing returns the edges leaving id, in stored order.
func (g *Graph) Outgoing(id string) []Edge {
	return g.pick(g.out[id])
}

// Incoming returns the edges entering id, in stored order.
func (g *Graph) Incoming(id string) []Edge {
	return g.pick(g.in[id])
}

func (g *Graph) pick(positions []int) []Edge {
	if len(positions) == 0 {
		return nil
	}
	out := make([]Edge, len(positions))
	for i, p := range positions {
		out[i] = g.edges[p]
	}
	return out
}

// StartNodes returns the ids of every start node, in document order.
func (g *Graph) StartNodes() []string {
	return g.NodeIDsOfType(NodeStart)
}

// NodeIDsOfType returns the ids of nodes of type t, in document order.
func (g *Graph) NodeIDsOfType(t NodeType) []string {
	var ids []string
	for _, n := range g.nodes {
		if n.Type == t {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// WithNode returns a graph where n replaces the node with the same id, or
// is appended when no such node exists.
func (g *Graph) WithNode(n Node) (*Graph, error) {
	if n.ID == "" {
		return nil, ErrEmptyNodeID
	}
	nodes := g.Nodes()
	if i, ok := g.index[n.ID]; ok {
		nodes[i] = n
	} else {
		nodes = append(nodes, n)
	}
	return NewGraph(nodes, g.edges)
}

// WithoutNode returns a graph without node id and without its edges.
// Removing a missing node returns an equal graph.
func (g *Graph) WithoutNode(id string) *Graph {
	nodes := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	edges := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	out, _ := NewGraph(nodes, edges)
	return out
}

// WithEdge returns a graph with e appended.
func (g *Graph) WithEdge(e Edge) (*Graph, error) {
	edges := append(slices.Clone(g.edges), e)
	return NewGraph(g.nodes, edges)
}

// WithoutEdge returns a graph without the edges whose id is edgeID.
func (g *Graph) WithoutEdge(edgeID string) *Graph {
	edges := slices.DeleteFunc(slices.Clone(g.edges), func(e Edge) bool { return e.ID == edgeID })
	out, _ := NewGraph(g.nodes, edges)
	return out
}

// WithParams returns a graph where node id carries params.
func (g *Graph) WithParams(id string, params json.RawMessage) (*Graph, error) {
	i, ok := g.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	nodes := g.Nodes()
	nodes[i].Params = bytes.Clone(params)
	return NewGraph(nodes, g.edges)
}
