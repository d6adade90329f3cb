package history_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowlive/pkg/flowlive/history"
	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
	"github.com/randalmurphal/flowlive/pkg/flowlive/transcript"
)

type storeFactory func(t *testing.T) history.Store

func msg(id string, text string) transcript.Message {
	return transcript.Message{
		ID:        protocol.ID(id),
		Category:  "answer",
		Text:      text,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Terminal:  true,
	}
}

func msgs(n int) []transcript.Message {
	out := make([]transcript.Message, n)
	for i := range out {
		out[i] = msg(fmt.Sprintf("m%d", i+1), fmt.Sprintf("text %d", i+1))
	}
	return out
}

func ids(page transcript.HistoryPage) []string {
	out := make([]string, len(page.Messages))
	for i, m := range page.Messages {
		out[i] = m.ID.String()
	}
	return out
}

// storeContractTest runs the same behaviour checks against any Store.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	ctx := context.Background()

	t.Run(name+"/Append_and_Page", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(ctx, "chat-1", msgs(3)))

		page, err := store.Page(ctx, history.PageRequest{ChatID: "chat-1"})
		require.NoError(t, err)
		assert.Equal(t, "chat-1", page.ChatID)
		assert.Equal(t, []string{"m1", "m2", "m3"}, ids(page))
		assert.False(t, page.HasMore)
		assert.Equal(t, "text 2", page.Messages[1].Text)
		assert.True(t, page.Messages[1].Terminal)
	})

	t.Run(name+"/Page_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		page, err := store.Page(ctx, history.PageRequest{ChatID: "nobody"})
		require.NoError(t, err)
		assert.NotNil(t, page.Messages)
		assert.Empty(t, page.Messages)
		assert.False(t, page.HasMore)
	})

	t.Run(name+"/Page_Walks_Backwards", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(ctx, "chat-1", msgs(5)))

		page, err := store.Page(ctx, history.PageRequest{ChatID: "chat-1", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"m4", "m5"}, ids(page))
		assert.True(t, page.HasMore)

		page, err = store.Page(ctx, history.PageRequest{ChatID: "chat-1", BeforeID: "m4", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"m2", "m3"}, ids(page))
		assert.True(t, page.HasMore)

		page, err = store.Page(ctx, history.PageRequest{ChatID: "chat-1", BeforeID: "m2", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, ids(page))
		assert.False(t, page.HasMore)

		page, err = store.Page(ctx, history.PageRequest{ChatID: "chat-1", BeforeID: "m1", Limit: 2})
		require.NoError(t, err)
		assert.Empty(t, page.Messages)
		assert.False(t, page.HasMore)
	})

	t.Run(name+"/Page_DefaultLimit", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(ctx, "chat-1", msgs(history.DefaultPageSize+5)))

		page, err := store.Page(ctx, history.PageRequest{ChatID: "chat-1"})
		require.NoError(t, err)
		assert.Len(t, page.Messages, history.DefaultPageSize)
		assert.True(t, page.HasMore)
		assert.Equal(t, "m6", page.Messages[0].ID.String())
	})

	t.Run(name+"/Page_UnknownCursor", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(ctx, "chat-1", msgs(2)))

		_, err := store.Page(ctx, history.PageRequest{ChatID: "chat-1", BeforeID: "missing"})
		assert.ErrorIs(t, err, history.ErrUnknownCursor)

		_, err = store.Page(ctx, history.PageRequest{ChatID: "chat-2", BeforeID: "m1"})
		assert.ErrorIs(t, err, history.ErrUnknownCursor)
	})

	t.Run(name+"/Append_Upsert_KeepsPosition", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(ctx, "chat-1", msgs(3)))
		require.NoError(t, store.Append(ctx, "chat-1", []transcript.Message{msg("m1", "edited")}))

		page, err := store.Page(ctx, history.PageRequest{ChatID: "chat-1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "m2", "m3"}, ids(page))
		assert.Equal(t, "edited", page.Messages[0].Text)
	})

	t.Run(name+"/Append_SkipsZeroIDs", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		batch := []transcript.Message{msg("", "local only"), msg("m1", "kept")}
		require.NoError(t, store.Append(ctx, "chat-1", batch))

		page, err := store.Page(ctx, history.PageRequest{ChatID: "chat-1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, ids(page))
	})

	t.Run(name+"/Append_ClearsHistoryOnly", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		m := msg("m1", "old")
		m.HistoryOnly = true
		require.NoError(t, store.Append(ctx, "chat-1", []transcript.Message{m}))

		page, err := store.Page(ctx, history.PageRequest{ChatID: "chat-1"})
		require.NoError(t, err)
		require.Len(t, page.Messages, 1)
		assert.False(t, page.Messages[0].HistoryOnly)
	})

	t.Run(name+"/EmptyChatID", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		assert.ErrorIs(t, store.Append(ctx, "", msgs(1)), history.ErrEmptyChatID)
		_, err := store.Page(ctx, history.PageRequest{})
		assert.ErrorIs(t, err, history.ErrEmptyChatID)
	})

	t.Run(name+"/Chats_and_DeleteChat", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		chats, err := store.Chats(ctx)
		require.NoError(t, err)
		assert.Empty(t, chats)

		require.NoError(t, store.Append(ctx, "chat-b", msgs(1)))
		require.NoError(t, store.Append(ctx, "chat-a", msgs(2)))

		chats, err = store.Chats(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"chat-a", "chat-b"}, chats)

		require.NoError(t, store.DeleteChat(ctx, "chat-a"))
		require.NoError(t, store.DeleteChat(ctx, "chat-missing"))

		chats, err = store.Chats(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"chat-b"}, chats)

		page, err := store.Page(ctx, history.PageRequest{ChatID: "chat-a"})
		require.NoError(t, err)
		assert.Empty(t, page.Messages)
	})

	t.Run(name+"/Chats_Independent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(ctx, "chat-1", []transcript.Message{msg("m1", "one")}))
		require.NoError(t, store.Append(ctx, "chat-2", []transcript.Message{msg("m1", "two")}))

		p1, err := store.Page(ctx, history.PageRequest{ChatID: "chat-1"})
		require.NoError(t, err)
		p2, err := store.Page(ctx, history.PageRequest{ChatID: "chat-2"})
		require.NoError(t, err)
		assert.Equal(t, "one", p1.Messages[0].Text)
		assert.Equal(t, "two", p2.Messages[0].Text)
	})

	t.Run(name+"/DataCopy", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		batch := msgs(1)
		require.NoError(t, store.Append(ctx, "chat-1", batch))
		batch[0].Text = "mutated"

		page, err := store.Page(ctx, history.PageRequest{ChatID: "chat-1"})
		require.NoError(t, err)
		assert.Equal(t, "text 1", page.Messages[0].Text)
	})

	t.Run(name+"/Close_ThenError", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.Append(ctx, "chat-1", msgs(1)), history.ErrStoreClosed)

		_, err := store.Page(ctx, history.PageRequest{ChatID: "chat-1"})
		assert.ErrorIs(t, err, history.ErrStoreClosed)

		_, err = store.Chats(ctx)
		assert.ErrorIs(t, err, history.ErrStoreClosed)

		assert.ErrorIs(t, store.DeleteChat(ctx, "chat-1"), history.ErrStoreClosed)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContractTest(t, "MemoryStore", func(*testing.T) history.Store {
		return history.NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContractTest(t, "SQLiteStore", func(t *testing.T) history.Store {
		store, err := history.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestMemoryStore_Len(t *testing.T) {
	store := history.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "chat-1", msgs(3)))
	require.NoError(t, store.Append(ctx, "chat-2", msgs(2)))
	require.NoError(t, store.Append(ctx, "chat-1", msgs(1)))
	assert.Equal(t, 5, store.Len())
}
