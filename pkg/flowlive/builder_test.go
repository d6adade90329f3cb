package flowlive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_GeneratesEdgeIDs(t *testing.T) {
	g := linearGraph(t)
	edges := g.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, "e1", edges[0].ID)
	assert.Equal(t, "e2", edges[1].ID)
}

func TestBuilder_KeepsExplicitEdgeID(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeStart).
		AddNode("end", NodeEnd).
		AddEdgeWith(Edge{ID: "link", Source: "start", Target: "end"}).
		MustBuild()
	assert.Equal(t, "link", g.Edges()[0].ID)
}

func TestBuilder_SetParams(t *testing.T) {
	g := NewBuilder().
		AddNode("llm", NodeLLM).
		SetParams("llm", map[string]any{"model": "small"}).
		MustBuild()

	n, ok := g.Node("llm")
	require.True(t, ok)
	assert.JSONEq(t, `{"model":"small"}`, string(n.Params))
}

func TestBuilder_Panics(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		fn    func()
	}{
		{"empty id", "flowlive: node ID cannot be empty", func() {
			NewBuilder().AddNode("", NodeLLM)
		}},
		{"whitespace id", "flowlive: node ID cannot contain whitespace", func() {
			NewBuilder().AddNode("node a", NodeLLM)
		}},
		{"duplicate id", "flowlive: duplicate node ID: a", func() {
			NewBuilder().AddNode("a", NodeLLM).AddNode("a", NodeEnd)
		}},
		{"params for unknown node", "flowlive: unknown node ID: ghost", func() {
			NewBuilder().SetParams("ghost", 1)
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.PanicsWithValue(t, tc.value, tc.fn)
		})
	}
}

func TestBuilder_DanglingEdge(t *testing.T) {
	b := NewBuilder().
		AddNode("start", NodeStart).
		AddEdge("start", "", "ghost")

	_, err := b.Build()
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Panics(t, func() { b.MustBuild() })
}
