package flowlive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowlive/pkg/flowlive/event"
	"github.com/randalmurphal/flowlive/pkg/flowlive/observability"
)

func TestValidate_ValidGraph(t *testing.T) {
	res := validate(t, linearGraph(t))

	assert.True(t, res.OK())
	assert.NotNil(t, res.Errors)
	assert.NotNil(t, res.InvalidNodeIDs)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.InvalidNodeIDs)
}

func TestValidate_StructuralIsOptIn(t *testing.T) {
	g := NewBuilder().AddNode("lonely", NodeLLM).MustBuild()

	res := NewValidator().Validate(context.Background(), g)
	assert.True(t, res.OK())

	res = validate(t, g)
	assert.Equal(t, []string{MsgStartCount}, res.Errors)
}

func TestValidate_NilGraph(t *testing.T) {
	res := validate(t, nil)
	assert.Equal(t, []string{MsgStartCount}, res.Errors)
	assert.Empty(t, res.InvalidNodeIDs)
}

func TestValidate_StartChecks(t *testing.T) {
	testCases := []struct {
		name    string
		build   func() *Graph
		kind    IssueKind
		msg     string
		flagged []string
	}{
		{
			name: "two start nodes",
			build: func() *Graph {
				return NewBuilder().
					AddNode("s1", NodeStart).
					AddNode("s2", NodeStart).
					AddNode("end", NodeEnd).
					AddEdge("s1", "", "end").
					MustBuild()
			},
			kind:    IssueStartCount,
			msg:     MsgStartCount,
			flagged: []string{"s1", "s2"},
		},
		{
			name: "no connections",
			build: func() *Graph {
				return NewBuilder().
					AddNode("start", NodeStart).
					AddNode("end", NodeEnd).
					MustBuild()
			},
			kind:    IssueNoConnections,
			msg:     "graph has no connections",
			flagged: []string{"start"},
		},
		{
			name: "start not linked",
			build: func() *Graph {
				return NewBuilder().
					AddNode("start", NodeStart).
					AddNode("a", NodeLLM).
					AddNode("end", NodeEnd).
					AddEdge("a", "", "end").
					MustBuild()
			},
			kind:    IssueStartNotLinked,
			msg:     "start node not linked",
			flagged: []string{"start"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := validate(t, tc.build())
			require.Len(t, res.Issues, 1, "start checks short-circuit")
			assert.Equal(t, tc.kind, res.Issues[0].Kind)
			assert.Equal(t, []string{tc.msg}, res.Errors)
			assert.Equal(t, tc.flagged, res.InvalidNodeIDs)
		})
	}
}

func TestValidate_StartWithIncomingEdge(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeStart).
		AddNode("a", NodeLLM).
		AddNode("end", NodeEnd).
		AddEdge("start", "", "a").
		AddEdge("a", "", "end").
		AddEdge("a", "", "start").
		MustBuild()

	res := validate(t, g)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, IssueStartInbound, res.Issues[0].Kind)
	assert.Equal(t, []string{MsgStartInbound}, res.Errors)
	assert.Equal(t, []string{"start"}, res.InvalidNodeIDs)
}

func TestValidate_UnreachableNode(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeStart).
		AddNode("orphan", NodeLLM).
		AddNode("end", NodeEnd).
		AddNode("island", NodeOutput).
		AddEdge("start", "", "end").
		AddEdge("orphan", "", "island").
		MustBuild()

	res := validate(t, g)

	assert.Equal(t, []string{"unconnected node"}, res.Errors)
	assert.Equal(t, []string{"orphan", "island"}, res.InvalidNodeIDs)
	require.Len(t, res.Issues, 2)
	for _, is := range res.Issues {
		assert.Equal(t, IssueUnconnectedNode, is.Kind)
		assert.Len(t, is.NodeIDs, 1)
	}
}

func TestValidate_MissingEnd(t *testing.T) {
	t.Run("single dead end", func(t *testing.T) {
		g := NewBuilder().
			AddNode("start", NodeStart).
			AddNode("a", NodeLLM).
			AddEdge("start", "", "a").
			MustBuild()

		res := validate(t, g)
		assert.Equal(t, []string{"missing end node"}, res.Errors)
		assert.Equal(t, []string{"a"}, res.InvalidNodeIDs)
	})

	t.Run("one issue per terminal node", func(t *testing.T) {
		g := NewBuilder().
			AddNode("start", NodeStart).
			AddNode("x", NodeCode).
			AddNode("y", NodeLLM).
			AddNode("z", NodeLLM).
			AddNode("d", NodeOutput).
			AddEdge("start", "", "x").
			AddEdge("x", "", "y").
			AddEdge("x", "", "z").
			AddEdge("y", "", "d").
			AddEdge("z", "", "d").
			MustBuild()

		res := validate(t, g)
		require.Len(t, res.Issues, 1)
		assert.Equal(t, IssueMissingEnd, res.Issues[0].Kind)
		assert.Equal(t, []string{"d"}, res.Issues[0].NodeIDs)
	})

	t.Run("mixed with complete branch", func(t *testing.T) {
		g := NewBuilder().
			AddNode("start", NodeStart).
			AddNode("a", NodeLLM).
			AddNode("end", NodeEnd).
			AddEdge("start", "", "a").
			AddEdge("start", "", "end").
			MustBuild()

		res := validate(t, g)
		assert.Equal(t, []string{"a"}, res.InvalidNodeIDs)
	})
}

func TestValidate_LoopIsNotAnError(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeStart).
		AddNode("ask", NodeInput).
		AddNode("check", NodeCondition, "ok").
		AddNode("end", NodeEnd).
		AddEdge("start", "", "ask").
		AddEdge("ask", "", "check").
		AddEdge("check", "ok", "end").
		AddEdge("check", ElseHandle, "ask").
		MustBuild()

	res := validate(t, g)
	assert.True(t, res.OK(), "issues: %v", res.Issues)
}

func TestValidate_ConditionUnconnectedBranch(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeStart).
		AddNode("cond1", NodeCondition, "yes", "no").
		AddNode("end", NodeEnd).
		AddEdge("start", "", "cond1").
		AddEdge("cond1", "yes", "end").
		MustBuild()

	res := validate(t, g)

	assert.Equal(t, []string{"condition node has unconnected branch"}, res.Errors)
	assert.Equal(t, []string{"cond1"}, res.InvalidNodeIDs)
}

func TestValidate_ConditionFewerEdgesThanHandles(t *testing.T) {
	for k := 1; k <= 4; k++ {
		outputs := make([]string, k)
		for i := range outputs {
			outputs[i] = string(rune('a' + i))
		}
		b := NewBuilder().
			AddNode("start", NodeStart).
			AddNode("c", NodeCondition, outputs...).
			AddNode("end", NodeEnd).
			AddEdge("start", "", "c")
		for _, h := range outputs[:k-1] {
			b.AddEdge("c", h, "end")
		}
		b.AddEdge("c", ElseHandle, "end")

		res := validate(t, b.MustBuild())
		assert.Contains(t, res.Errors, MsgConditionUnconnected, "k=%d", k)
		assert.Contains(t, res.InvalidNodeIDs, "c", "k=%d", k)
	}
}

func TestValidate_ConditionImplicitElse(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeStart).
		AddNode("c", NodeCondition, "yes").
		AddNode("end", NodeEnd).
		AddEdge("start", "", "c").
		AddEdge("c", "yes", "end").
		MustBuild()

	assert.Equal(t, []string{MsgConditionUnconnected}, validate(t, g).Errors)
	assert.True(t, validate(t, g, WithImplicitElse(false)).OK())
}

func TestValidate_ConditionDuplicateConnection(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeStart).
		AddNode("c", NodeCondition, "yes").
		AddNode("a", NodeLLM).
		AddNode("end", NodeEnd).
		AddEdge("start", "", "c").
		AddEdge("c", "yes", "a").
		AddEdge("c", "yes", "end").
		AddEdge("c", ElseHandle, "end").
		AddEdge("a", "", "end").
		MustBuild()

	res := validate(t, g)
	assert.Equal(t, []string{MsgConditionDuplicate}, res.Errors)
	assert.Equal(t, []string{"c"}, res.InvalidNodeIDs)
}

func TestValidate_ParallelInputs(t *testing.T) {
	res := validate(t, parallelInputsGraph(t))

	require.Len(t, res.Issues, 1)
	assert.Equal(t, IssueParallelConflict, res.Issues[0].Kind)
	assert.Equal(t, []string{"parallel input/output nodes"}, res.Errors)
	assert.Equal(t, []string{"in1", "in2"}, res.InvalidNodeIDs)
}

func TestValidate_ParallelConflictRules(t *testing.T) {
	t.Run("condition branches are alternatives", func(t *testing.T) {
		g := NewBuilder().
			AddNode("start", NodeStart).
			AddNode("c", NodeCondition, "yes").
			AddNode("in1", NodeInput).
			AddNode("in2", NodeInput).
			AddNode("end", NodeEnd).
			AddEdge("start", "", "c").
			AddEdge("c", "yes", "in1").
			AddEdge("c", ElseHandle, "in2").
			AddEdge("in1", "", "end").
			AddEdge("in2", "", "end").
			MustBuild()

		assert.True(t, validate(t, g).OK())
	})

	t.Run("same condition handle fires both", func(t *testing.T) {
		g := NewBuilder().
			AddNode("start", NodeStart).
			AddNode("c", NodeCondition, "yes").
			AddNode("in1", NodeInput).
			AddNode("ch", NodeChoose).
			AddNode("end", NodeEnd).
			AddEdge("start", "", "c").
			AddEdge("c", "yes", "in1").
			AddEdge("c", "yes", "ch").
			AddEdge("c", ElseHandle, "end").
			AddEdge("in1", "", "end").
			AddEdge("ch", "", "end").
			MustBuild()

		res := validate(t, g)
		require.Len(t, res.Issues, 2)
		assert.Equal(t, IssueParallelConflict, res.Issues[0].Kind)
		assert.Equal(t, []string{"in1", "ch"}, res.Issues[0].NodeIDs)
		assert.Equal(t, IssueConditionDuplicate, res.Issues[1].Kind)
	})

	t.Run("same branch line is sequential", func(t *testing.T) {
		g := NewBuilder().
			AddNode("start", NodeStart).
			AddNode("in1", NodeInput).
			AddNode("in2", NodeInput).
			AddNode("end", NodeEnd).
			AddEdge("start", "", "in1").
			AddEdge("in1", "", "in2").
			AddEdge("in2", "", "end").
			MustBuild()

		assert.True(t, validate(t, g).OK())
	})

	t.Run("one issue per pair", func(t *testing.T) {
		g := NewBuilder().
			AddNode("start", NodeStart).
			AddNode("fork", NodeCode).
			AddNode("in1", NodeInput).
			AddNode("in2", NodeInput).
			AddNode("end", NodeEnd).
			AddEdge("start", "", "fork").
			AddEdge("fork", "", "in1").
			AddEdge("fork", "", "in2").
			AddEdge("fork", "", "in1").
			AddEdge("in1", "", "end").
			AddEdge("in2", "", "end").
			MustBuild()

		res := validate(t, g)
		require.Len(t, res.Issues, 1)
		assert.Equal(t, []string{"in1", "in2"}, res.Issues[0].NodeIDs)
	})

	t.Run("extensible categories", func(t *testing.T) {
		g := NewBuilder().
			AddNode("start", NodeStart).
			AddNode("r1", NodeReport).
			AddNode("r2", NodeReport).
			AddNode("end", NodeEnd).
			AddEdge("start", "", "r1").
			AddEdge("start", "", "r2").
			AddEdge("r1", "", "end").
			AddEdge("r2", "", "end").
			MustBuild()

		assert.True(t, validate(t, g).OK())
		res := validate(t, g, WithParallelExclusive(NodeReport))
		assert.Equal(t, []string{"r1", "r2"}, res.InvalidNodeIDs)
	})

	t.Run("exclusive fork types", func(t *testing.T) {
		res := validate(t, parallelInputsGraph(t), WithExclusiveForks(NodeStart))
		assert.True(t, res.OK())
	})
}

func TestValidate_TooComplex(t *testing.T) {
	res := validate(t, parallelInputsGraph(t), WithMaxPaths(1))

	assert.Equal(t, []string{"graph too complex to validate"}, res.Errors)
	assert.Empty(t, res.InvalidNodeIDs)
}

func TestValidate_DoesNotMutateGraph(t *testing.T) {
	g := parallelInputsGraph(t)
	before := g.Document("f", "flow")

	v := NewValidator()
	v.RegisterForm(NodeInput, func(_ context.Context, n Node) ([]string, error) {
		n.Ports.Outputs = append(n.Ports.Outputs, "mutated")
		n.Params = []byte(`{}`)
		return nil, nil
	})
	v.Validate(context.Background(), g, WithStructural(true))

	assert.Equal(t, before, g.Document("f", "flow"))
}

func TestValidate_Deterministic(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeStart).
		AddNode("in1", NodeInput).
		AddNode("in2", NodeInput).
		AddNode("ch", NodeChoose).
		AddNode("dead", NodeLLM).
		AddNode("orphan", NodeLLM).
		AddEdge("start", "", "in1").
		AddEdge("start", "", "in2").
		AddEdge("start", "", "ch").
		AddEdge("in1", "", "dead").
		MustBuild()

	first := validate(t, g)
	for range 10 {
		assert.Equal(t, first, validate(t, g))
	}
}

func TestValidate_PublishesHighlight(t *testing.T) {
	bus := event.NewBus(event.BusConfig{Synchronous: true})
	defer bus.Close()

	var (
		mu  sync.Mutex
		got []event.NodeHighlight
	)
	event.NodeHighlightTopic.Subscribe(bus, func(_ context.Context, p event.NodeHighlight, _ event.Metadata) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, p)
		return nil
	})

	v := NewValidator(WithBus(bus), WithDefaults(WithStructural(true)))
	ctx := context.Background()

	bad := v.Validate(ctx, parallelInputsGraph(t))
	require.False(t, bad.OK())
	good := v.Validate(ctx, linearGraph(t))
	require.True(t, good.OK())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, []string{"in1", "in2"}, got[0].NodeIDs)
	assert.NotNil(t, got[1].NodeIDs)
	assert.Empty(t, got[1].NodeIDs, "a clean pass clears highlighting")
}

type countingMetrics struct {
	observability.NoopMetrics
	mu     sync.Mutex
	runs   int
	issues int
}

func (m *countingMetrics) RecordValidation(_ context.Context, issues int, _ bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	m.issues += issues
}

func TestValidate_RecordsMetrics(t *testing.T) {
	m := &countingMetrics{}
	v := NewValidator(WithMetrics(m), WithDefaults(WithStructural(true)))

	v.Validate(context.Background(), linearGraph(t))
	v.Validate(context.Background(), parallelInputsGraph(t))

	assert.Equal(t, 2, m.runs)
	assert.Equal(t, 1, m.issues)
}

func TestValidate_FormsAndStructureTogether(t *testing.T) {
	v := NewValidator(WithForm(NodeInput, staticForm("question text is required")))

	res := v.Validate(context.Background(), parallelInputsGraph(t), WithStructural(true))

	require.Len(t, res.Issues, 3)
	assert.Equal(t, IssueForm, res.Issues[0].Kind)
	assert.Equal(t, IssueForm, res.Issues[1].Kind)
	assert.Equal(t, IssueParallelConflict, res.Issues[2].Kind)
	assert.Equal(t, []string{"question text is required", MsgParallelConflict}, res.Errors)
	assert.Equal(t, []string{"in1", "in2"}, res.InvalidNodeIDs)
}
