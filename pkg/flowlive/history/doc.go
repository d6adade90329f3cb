/*
Package history keeps chat transcripts outside the live session so that
"load older" requests can be served from a local cache.

Two Store implementations are provided:

  - MemoryStore for tests and short-lived tools
  - SQLiteStore for a persistent cache (pure Go driver, no cgo)

Messages are upserted by (chat id, message id). Each chat keeps arrival
order; re-appending a message updates it in place. Pages are read
backwards from a cursor and returned oldest first:

	page, err := store.Page(ctx, history.PageRequest{ChatID: id, BeforeID: oldest, Limit: 20})
	merged, ok := transcript.MergeHistory(current, page, id)
*/
package history
