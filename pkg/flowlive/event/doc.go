// Package event is the typed publish/subscribe bus that connects the flow
// validator and the live chat session to their observers (node highlight
// borders, node status badges, the input box, the transcript view).
//
// # Events
//
// Every event carries an id, a type, the component that produced it, the
// chat it belongs to (empty for chat-independent events such as validation
// results) and a typed payload:
//
//	evt := event.New("flow.node_highlight", "validator", "", event.NodeHighlight{NodeIDs: ids})
//
// # Topics
//
// A Topic binds an event type name to its payload type so publishers and
// subscribers agree statically on the shape:
//
//	sub := event.NodeHighlightTopic.Subscribe(bus, func(ctx context.Context, p event.NodeHighlight, meta event.Metadata) error {
//	    canvas.SetErrorBorders(p.NodeIDs)
//	    return nil
//	})
//	defer sub.Unsubscribe()
//
// # Delivery
//
// LocalBus delivers to each subscription in publish order on that
// subscription's own goroutine. With BusConfig.Synchronous set, handlers run
// inline inside Publish instead, which keeps single-threaded callers and
// tests deterministic. Handler errors and panics are reported through
// BusConfig.OnError and never reach the publisher.
package event
