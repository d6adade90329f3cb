package flowlive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// Graph fixtures shared across tests.

// linearGraph is start -> a -> end.
func linearGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := NewBuilder().
		AddNode("start", NodeStart).
		AddNode("a", NodeLLM).
		AddNode("end", NodeEnd).
		AddEdge("start", "", "a").
		AddEdge("a", "", "end").
		Build()
	require.NoError(t, err)
	return g
}

// parallelInputsGraph forks start into two input nodes that each reach end.
func parallelInputsGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := NewBuilder().
		AddNode("start", NodeStart).
		AddNode("in1", NodeInput).
		AddNode("in2", NodeInput).
		AddNode("end", NodeEnd).
		AddEdge("start", "", "in1").
		AddEdge("start", "", "in2").
		AddEdge("in1", "", "end").
		AddEdge("in2", "", "end").
		Build()
	require.NoError(t, err)
	return g
}

// validate runs a structural pass with a fresh validator.
func validate(t *testing.T, g *Graph, opts ...ValidateOption) Result {
	t.Helper()
	opts = append([]ValidateOption{WithStructural(true)}, opts...)
	return NewValidator().Validate(context.Background(), g, opts...)
}

// staticForm returns a form validator that always reports msgs.
func staticForm(msgs ...string) FormValidator {
	return func(context.Context, Node) ([]string, error) {
		return msgs, nil
	}
}
