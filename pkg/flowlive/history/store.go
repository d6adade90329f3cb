package history

import (
	"context"
	"errors"

	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
	"github.com/randalmurphal/flowlive/pkg/flowlive/transcript"
)

// DefaultPageSize is used when a PageRequest has no limit.
const DefaultPageSize = 20

// Store keeps the messages of each chat in arrival order. Implementations
// must be safe for concurrent use.
type Store interface {
	// Append upserts msgs by (chatID, message id). A new message goes after
	// every stored one; an existing message keeps its position. Messages
	// without an id are skipped.
	Append(ctx context.Context, chatID string, msgs []transcript.Message) error

	// Page returns up to Limit messages older than BeforeID, oldest first.
	// An empty BeforeID starts from the newest message. An unknown
	// BeforeID yields ErrUnknownCursor.
	Page(ctx context.Context, req PageRequest) (transcript.HistoryPage, error)

	// Chats returns the ids of chats with stored messages, sorted.
	Chats(ctx context.Context) ([]string, error)

	// DeleteChat removes every message of a chat. Missing chats are not an
	// error.
	DeleteChat(ctx context.Context, chatID string) error

	// Close releases resources. Further calls fail with ErrStoreClosed.
	Close() error
}

// PageRequest selects one page of a chat.
type PageRequest struct {
	ChatID   string
	BeforeID protocol.ID
	Limit    int
}

func (r PageRequest) limit() int {
	if r.Limit <= 0 {
		return DefaultPageSize
	}
	return r.Limit
}

// Sentinel errors for history operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("history store closed")

	// ErrUnknownCursor indicates a BeforeID that is not stored for the chat.
	ErrUnknownCursor = errors.New("unknown history cursor")

	// ErrEmptyChatID indicates a request without a chat id.
	ErrEmptyChatID = errors.New("chat id cannot be empty")
)
