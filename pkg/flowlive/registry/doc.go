// Package registry provides a small concurrency-safe map keyed by an ordered
// type. The validator keeps its per-node-type form validators in one:
//
//	forms := registry.New[flowlive.NodeType, flowlive.FormValidator]()
//	forms.Register(flowlive.NodeLLM, llmForm)
//
//	if fn, ok := forms.Get(node.Type); ok {
//	    problems, err := fn(ctx, node)
//	}
//
// Keys returns entries in ascending key order so anything derived from a
// registry (logs, CLI listings) is deterministic.
package registry
