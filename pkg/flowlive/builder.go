package flowlive

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Builder assembles a Graph with chained calls. It is intended for tests,
// examples and programmatic flows; editors deliver a Document instead.
//
// Builder is NOT thread-safe. Programmer mistakes (empty or duplicate ids,
// ids with whitespace) panic; dangling edges are reported by Build.
//
//	g, err := flowlive.NewBuilder().
//	    AddNode("start", flowlive.NodeStart).
//	    AddNode("cond", flowlive.NodeCondition, "yes").
//	    AddNode("end", flowlive.NodeEnd).
//	    AddEdge("start", "", "cond").
//	    AddEdge("cond", "yes", "end").
//	    AddEdge("cond", flowlive.ElseHandle, "end").
//	    Build()
type Builder struct {
	nodes []Node
	seen  map[string]bool
	edges []Edge
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{seen: make(map[string]bool)}
}

// AddNode adds a node with the given declared output handles.
//
// Panics if id is empty, contains whitespace, or is already used.
func (b *Builder) AddNode(id string, typ NodeType, outputs ...string) *Builder {
	return b.AddNodeWith(Node{ID: id, Type: typ, Ports: Ports{Outputs: outputs}})
}

// AddNodeWith adds a fully specified node. It panics under the same
// conditions as AddNode.
func (b *Builder) AddNodeWith(n Node) *Builder {
	if n.ID == "" {
		panic("flowlive: node ID cannot be empty")
	}
	if strings.ContainsAny(n.ID, " \t\n\r") {
		panic("flowlive: node ID cannot contain whitespace")
	}
	if b.seen[n.ID] {
		panic(fmt.Sprintf("flowlive: duplicate node ID: %s", n.ID))
	}
	b.seen[n.ID] = true
	b.nodes = append(b.nodes, n)
	return b
}

// SetParams attaches a parameter bag to an already added node. v is
// marshalled to JSON.
//
// Panics if the node is unknown or v cannot be marshalled.
func (b *Builder) SetParams(id string, v any) *Builder {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("flowlive: params for %s: %v", id, err))
	}
	for i := range b.nodes {
		if b.nodes[i].ID == id {
			b.nodes[i].Params = raw
			return b
		}
	}
	panic(fmt.Sprintf("flowlive: unknown node ID: %s", id))
}

// AddEdge connects handle of source to target. Edge ids are generated.
func (b *Builder) AddEdge(source, handle, target string) *Builder {
	return b.AddEdgeWith(Edge{Source: source, SourceHandle: handle, Target: target})
}

// AddEdgeWith adds a fully specified edge. An empty id is generated.
func (b *Builder) AddEdgeWith(e Edge) *Builder {
	if e.ID == "" {
		e.ID = fmt.Sprintf("e%d", len(b.edges)+1)
	}
	b.edges = append(b.edges, e)
	return b
}

// Build returns the immutable graph.
func (b *Builder) Build() (*Graph, error) {
	return NewGraph(b.nodes, b.edges)
}

// MustBuild is Build that panics on error.
func (b *Builder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic("flowlive: " + err.Error())
	}
	return g
}
