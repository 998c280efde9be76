package messages

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLStore implements Store using database/sql.
// It supports both Postgres and SQLite via standard drivers.
type SQLStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, clock: time.Now}
}

// WithClock overrides the clock for testing.
func (s *SQLStore) WithClock(clock func() time.Time) *SQLStore {
	s.clock = clock
	return s
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	sender_id TEXT NOT NULL,
	content TEXT NOT NULL,
	channel TEXT NOT NULL,
	recipient_id TEXT,
	type TEXT NOT NULL DEFAULT 'text',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages (channel, created_at);
`

func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLStore) Create(ctx context.Context, senderID, content, channel, recipientID, msgType string) (*Message, error) {
	if msgType == "" {
		msgType = TypeText
	}
	msg := &Message{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		Content:     content,
		Channel:     channel,
		RecipientID: recipientID,
		Type:        msgType,
		CreatedAt:   s.clock().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, content, channel, recipient_id, type, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.SenderID, msg.Content, msg.Channel,
		sql.NullString{String: msg.RecipientID, Valid: msg.RecipientID != ""},
		msg.Type, msg.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *SQLStore) GetChannelMessages(ctx context.Context, channel string, limit int) ([]*Message, error) {
	query := `
		SELECT id, sender_id, content, channel, recipient_id, type, created_at
		FROM messages
		WHERE channel = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, channel, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []*Message
	for rows.Next() {
		var (
			msg       Message
			recipient sql.NullString
			createdAt string
		)
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.Content, &msg.Channel, &recipient, &msg.Type, &createdAt); err != nil {
			return nil, err
		}
		msg.RecipientID = recipient.String
		msg.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

func parseTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
