/*
Package flowlive checks workflow graphs before they run and follows their
execution live.

# Overview

A flow is a directed graph of typed nodes (start, input, llm, condition,
output, end, ...) joined by edges between named handles. Editors deliver a
flow as a JSON Document; flowlive turns it into an immutable Graph and
validates it. At run time the connection manager (package conn) streams
execution events which the reconciler (package transcript) folds into an
ordered transcript.

# Building Graphs

Parse a stored document:

	g, err := flowlive.ParseDocument(data)

or assemble one in code:

	g := flowlive.NewBuilder().
	    AddNode("start", flowlive.NodeStart).
	    AddNode("ask", flowlive.NodeInput).
	    AddNode("check", flowlive.NodeCondition, "yes").
	    AddNode("end", flowlive.NodeEnd).
	    AddEdge("start", "", "ask").
	    AddEdge("ask", "", "check").
	    AddEdge("check", "yes", "end").
	    AddEdge("check", flowlive.ElseHandle, "ask").
	    MustBuild()

Graphs never change. WithNode, WithoutNode, WithEdge, WithoutEdge and
WithParams return new snapshots.

# Validation

	v := flowlive.NewValidator(flowlive.WithBus(bus))
	v.RegisterForm(flowlive.NodeLLM, flowlive.StructForm[LLMParams]())

	res := v.Validate(ctx, g, flowlive.WithStructural(true))
	if !res.OK() {
	    showToasts(res.Errors)
	    highlight(res.InvalidNodeIDs)
	}

Form validators run for every node, concurrently. One that fails or panics
is logged and skipped. Structural checks run only when requested:

  - exactly one start node, at least one edge, start has an outgoing edge
  - no edge leads into start
  - every node is reachable from start
  - input and choose nodes do not sit on parallel sibling branches
  - every branch path ends at an end node
  - every condition handle has exactly one edge

Results are data, never errors. Each pass publishes the flagged node ids on
the event bus so that a clean pass clears stale highlighting.

# Branch Paths

TraceBranches walks the graph depth-first from start in stored edge order.
Branch ids extend with "_i" at every fork, starting from "0":

	start -> a -> fork -+-> b      branch 0_0
	                    +-> c      branch 0_1

A path stops at an end node, when it returns to a node already on the
path (treated as complete), or when it runs out of edges.

# Thread Safety

  - Builder is NOT safe for concurrent use
  - Graph IS safe for concurrent use (immutable)
  - Validator IS safe for concurrent use once forms are registered

# Subpackages

  - protocol: wire envelopes, flexible ids, close policy
  - conn: WebSocket connection manager
  - transcript: event fold and history merge
  - history: transcript history stores (memory, SQLite)
  - session: one live chat view tying the above together
  - event: typed event bus for UI observers
  - config: settings loading and validation
  - errors: error categories and retry
  - observability: logging, metrics and tracing helpers
*/
package flowlive
