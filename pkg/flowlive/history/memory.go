package history

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
	"github.com/randalmurphal/flowlive/pkg/flowlive/transcript"
)

// MemoryStore is an in-memory Store for tests and short-lived tools.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	chats  map[string]*chatLog
	closed bool
}

// chatLog holds one chat in arrival order.
type chatLog struct {
	order []protocol.ID
	byID  map[protocol.ID]transcript.Message
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chats: make(map[string]*chatLog)}
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, chatID string, msgs []transcript.Message) error {
	if chatID == "" {
		return ErrEmptyChatID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	log := m.chats[chatID]
	if log == nil {
		log = &chatLog{byID: make(map[protocol.ID]transcript.Message)}
		m.chats[chatID] = log
	}
	stored := transcript.Clone(msgs)
	for _, msg := range stored {
		if msg.ID.IsZero() {
			continue
		}
		msg.HistoryOnly = false
		if _, ok := log.byID[msg.ID]; !ok {
			log.order = append(log.order, msg.ID)
		}
		log.byID[msg.ID] = msg
	}
	return nil
}

// Page implements Store.
func (m *MemoryStore) Page(_ context.Context, req PageRequest) (transcript.HistoryPage, error) {
	page := transcript.HistoryPage{ChatID: req.ChatID, Messages: []transcript.Message{}}
	if req.ChatID == "" {
		return page, ErrEmptyChatID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return page, ErrStoreClosed
	}

	log := m.chats[req.ChatID]
	if log == nil {
		if !req.BeforeID.IsZero() {
			return page, fmt.Errorf("%w: %s", ErrUnknownCursor, req.BeforeID)
		}
		return page, nil
	}

	end := len(log.order)
	if !req.BeforeID.IsZero() {
		end = slices.Index(log.order, req.BeforeID)
		if end < 0 {
			return page, fmt.Errorf("%w: %s", ErrUnknownCursor, req.BeforeID)
		}
	}
	start := max(end-req.limit(), 0)
	for _, id := range log.order[start:end] {
		page.Messages = append(page.Messages, log.byID[id])
	}
	page.Messages = transcript.Clone(page.Messages)
	page.HasMore = start > 0
	return page, nil
}

// Chats implements Store.
func (m *MemoryStore) Chats(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	chats := make([]string, 0, len(m.chats))
	for id := range m.chats {
		chats = append(chats, id)
	}
	slices.Sort(chats)
	return chats, nil
}

// DeleteChat implements Store.
func (m *MemoryStore) DeleteChat(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.chats, chatID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.chats = nil
	return nil
}

// Len returns the number of stored messages across all chats.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, log := range m.chats {
		n += len(log.order)
	}
	return n
}
