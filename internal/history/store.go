// Package history archives delivered messages in a local sqlite file so a
// restarted process can show recent history before the first poll lands.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"overlay-sync/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    room       TEXT NOT NULL,
    message_id TEXT NOT NULL,
    author     TEXT NOT NULL,
    body       TEXT NOT NULL,
    avatar     TEXT NOT NULL DEFAULT '',
    sent_at    TIMESTAMP NOT NULL,
    pending    BOOLEAN NOT NULL DEFAULT FALSE,
    UNIQUE (room, message_id)
);
CREATE INDEX IF NOT EXISTS idx_messages_room_sent ON messages (room, sent_at);
`

type messageRow struct {
	Room      string    `db:"room"`
	MessageID string    `db:"message_id"`
	Author    string    `db:"author"`
	Body      string    `db:"body"`
	Avatar    string    `db:"avatar"`
	SentAt    time.Time `db:"sent_at"`
	Pending   bool      `db:"pending"`
}

func (r messageRow) toMessage() models.Message {
	return models.Message{
		ID:      r.MessageID,
		Author:  r.Author,
		Body:    r.Body,
		Avatar:  r.Avatar,
		SentAt:  r.SentAt,
		Pending: r.Pending,
	}
}

// Store is a sqlx-backed message archive.
type Store struct {
	db *sqlx.DB
}

// Open creates or opens the archive at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertMessage archives one delivered message. Replays of an id the
// archive already holds are ignored.
func (s *Store) InsertMessage(ctx context.Context, room string, msg models.Message) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO messages (room, message_id, author, body, avatar, sent_at, pending)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (room, message_id) DO NOTHING`,
		room, msg.ID, msg.Author, msg.Body, msg.Avatar, msg.SentAt, msg.Pending)
	return err
}

// MarkReconciled swaps an archived local echo for its confirmed copy.
func (s *Store) MarkReconciled(ctx context.Context, room string, previousEchoID string, msg models.Message) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE room=? AND message_id=?`, room, previousEchoID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO messages (room, message_id, author, body, avatar, sent_at, pending)
        VALUES (?, ?, ?, ?, ?, ?, FALSE)
        ON CONFLICT (room, message_id) DO NOTHING`,
		room, msg.ID, msg.Author, msg.Body, msg.Avatar, msg.SentAt); err != nil {
		return err
	}
	return tx.Commit()
}

// RecentMessages returns up to limit archived messages for a room, oldest
// first.
func (s *Store) RecentMessages(ctx context.Context, room string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows, `SELECT room, message_id, author, body, avatar, sent_at, pending
        FROM messages WHERE room=? ORDER BY sent_at DESC, id DESC LIMIT ?`, room, limit)
	if err != nil {
		return nil, err
	}
	msgs := make([]models.Message, len(rows))
	for i, r := range rows {
		msgs[len(rows)-1-i] = r.toMessage()
	}
	return msgs, nil
}

// Prune keeps only the newest keep rows per room.
func (s *Store) Prune(ctx context.Context, room string, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE room=? AND id NOT IN (
        SELECT id FROM messages WHERE room=? ORDER BY sent_at DESC, id DESC LIMIT ?)`,
		room, room, keep)
	return err
}
