package flowlive

import (
	"encoding/json"
	"fmt"
)

// Document is the persisted form of a flow as delivered by the editor's
// storage layer.
type Document struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// ParseDocument decodes a JSON flow document into a Graph.
func ParseDocument(data []byte) (*Graph, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc.Graph()
}

// Graph builds the immutable graph for the document.
func (d Document) Graph() (*Graph, error) {
	return NewGraph(d.Nodes, d.Edges)
}

// Document returns the graph in persisted form.
func (g *Graph) Document(id, name string) Document {
	return Document{ID: id, Name: name, Nodes: g.Nodes(), Edges: g.Edges()}
}
