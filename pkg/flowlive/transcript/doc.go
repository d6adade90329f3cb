// Package transcript folds live run events into an ordered, de-duplicated
// conversation transcript.
//
// A Reconciler applies one protocol.Event at a time:
//
//	r := transcript.NewReconciler(transcript.WithObserver(obs))
//	msgs = r.Fold(msgs, ev)
//
// Fold never mutates the slice it is given. Streaming deltas are matched to
// their in-flight entry by StreamKey and the entry takes the server's final
// id when the stream ends. Node-run progress entries disappear when the run
// ends. End-cover events purge every unfinished entry.
//
// Older history is merged with MergeHistory, which discards pages for a
// chat that is no longer active and never duplicates an id.
package transcript
