package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/flowlive/pkg/flowlive/transcript"
)

// SQLiteStore persists chat history to SQLite. It is suitable for a local
// cache in a single process.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates the database at path. Use ":memory:" for
// a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			chat_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			category TEXT NOT NULL,
			created_at TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (chat_id, message_id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_messages_chat_seq
		ON messages(chat_id, seq)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, chatID string, msgs []transcript.Message) error {
	if chatID == "" {
		return ErrEmptyChatID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, m := range msgs {
		if m.ID.IsZero() {
			continue
		}
		m.HistoryOnly = false
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message %s: %w", m.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (chat_id, message_id, seq, category, created_at, data)
			VALUES (
				?, ?,
				COALESCE((SELECT MAX(seq) FROM messages WHERE chat_id = ?), 0) + 1,
				?, ?, ?
			)
			ON CONFLICT(chat_id, message_id) DO UPDATE SET
				category = excluded.category,
				created_at = excluded.created_at,
				data = excluded.data
		`, chatID, m.ID.String(), chatID, m.Category, m.CreatedAt.UTC().Format(time.RFC3339Nano), data)
		if err != nil {
			return fmt.Errorf("append message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Page implements Store.
func (s *SQLiteStore) Page(ctx context.Context, req PageRequest) (transcript.HistoryPage, error) {
	page := transcript.HistoryPage{ChatID: req.ChatID, Messages: []transcript.Message{}}
	if req.ChatID == "" {
		return page, ErrEmptyChatID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return page, ErrStoreClosed
	}

	upper := int64(math.MaxInt64)
	if !req.BeforeID.IsZero() {
		err := s.db.QueryRowContext(ctx, `
			SELECT seq FROM messages WHERE chat_id = ? AND message_id = ?
		`, req.ChatID, req.BeforeID.String()).Scan(&upper)
		if errors.Is(err, sql.ErrNoRows) {
			return page, fmt.Errorf("%w: %s", ErrUnknownCursor, req.BeforeID)
		}
		if err != nil {
			return page, fmt.Errorf("load cursor: %w", err)
		}
	}

	limit := req.limit()
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM messages
		WHERE chat_id = ? AND seq < ?
		ORDER BY seq DESC
		LIMIT ?
	`, req.ChatID, upper, limit+1)
	if err != nil {
		return page, fmt.Errorf("query page: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return page, fmt.Errorf("scan message: %w", err)
		}
		var m transcript.Message
		if err := json.Unmarshal(data, &m); err != nil {
			return page, fmt.Errorf("decode message: %w", err)
		}
		page.Messages = append(page.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("iterate messages: %w", err)
	}

	if len(page.Messages) > limit {
		page.HasMore = true
		page.Messages = page.Messages[:limit]
	}
	slices.Reverse(page.Messages)
	return page, nil
}

// Chats implements Store.
func (s *SQLiteStore) Chats(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT chat_id FROM messages ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

// DeleteChat implements Store.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
