// Package history keeps recent chat messages per channel in sqlite, so a
// restart can backfill from disk before the live source catches up.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/marcus/chatview/internal/message"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel     TEXT NOT NULL,
	id          TEXT NOT NULL DEFAULT '',
	user_id     TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	payload     TEXT NOT NULL,
	deleted     INTEGER NOT NULL DEFAULT 0,
	received_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_channel_seq ON messages (channel, seq);
CREATE INDEX IF NOT EXISTS messages_channel_id ON messages (channel, id);
`

const (
	kindStructured = "structured"
	kindLegacy     = "legacy"
)

// sqlitePoolSettings pins the pool to one long-lived connection.
func sqlitePoolSettings(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
}

// Store is a sqlite-backed message history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	sqlitePoolSettings(db)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Append stores messages for channel in order.
func (s *Store) Append(ctx context.Context, channel string, ms []message.Message) error {
	if len(ms) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (channel, id, user_id, kind, payload, received_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	at := s.now().UnixMilli()
	for _, m := range ms {
		kind, payload, err := encode(m)
		if err != nil {
			return err
		}
		e := message.Normalize(m)
		if _, err := stmt.ExecContext(ctx, channel, e.ID, e.UserID, kind, payload, at); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// MarkDeleted hides a message from later reads.
func (s *Store) MarkDeleted(ctx context.Context, channel, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET deleted = 1 WHERE channel = ? AND id = ?`, channel, id)
	if err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	return nil
}

// ClearUser hides every stored message of a user.
func (s *Store) ClearUser(ctx context.Context, channel, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET deleted = 1 WHERE channel = ? AND user_id = ?`, channel, userID)
	if err != nil {
		return fmt.Errorf("clear user: %w", err)
	}
	return nil
}

// Recent returns the newest n visible messages of channel, oldest first.
func (s *Store) Recent(ctx context.Context, channel string, n int) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, payload FROM messages WHERE channel = ? AND deleted = 0 ORDER BY seq DESC LIMIT ?`,
		channel, n)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []message.Message
	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m, err := decode(kind, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read recent: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Prune keeps only the newest keep rows of channel.
func (s *Store) Prune(ctx context.Context, channel string, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE channel = ? AND seq NOT IN (
			SELECT seq FROM messages WHERE channel = ? ORDER BY seq DESC LIMIT ?
		)`, channel, channel, keep)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored rows for channel, deleted included.
func (s *Store) Count(ctx context.Context, channel string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE channel = ?`, channel).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

func encode(m message.Message) (string, string, error) {
	switch v := m.(type) {
	case message.Structured:
		return encodeStructured(v)
	case *message.Structured:
		return encodeStructured(*v)
	case message.Legacy:
		return kindLegacy, v.Raw, nil
	case *message.Legacy:
		return kindLegacy, v.Raw, nil
	}
	return "", "", fmt.Errorf("unsupported message %T", m)
}

func encodeStructured(m message.Structured) (string, string, error) {
	// heights depend on the width of whoever reads the history
	m.Layout = message.Layout{}
	data, err := json.Marshal(m)
	if err != nil {
		return "", "", fmt.Errorf("encode message: %w", err)
	}
	return kindStructured, string(data), nil
}

func decode(kind, payload string) (message.Message, error) {
	switch kind {
	case kindLegacy:
		return message.Legacy{Raw: payload}, nil
	case kindStructured:
		var m message.Structured
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown message kind %q", kind)
}
