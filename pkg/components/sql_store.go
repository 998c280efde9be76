package components

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

const schema = `
CREATE TABLE IF NOT EXISTS components (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	html TEXT,
	js TEXT,
	css TEXT,
	target_users TEXT NOT NULL DEFAULT 'all',
	created_by TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLStore) Create(ctx context.Context, c *Component) (string, error) {
	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO components (id, name, html, js, css, target_users, created_by, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, c.Name, c.HTML, c.JS, c.CSS, EncodeTargets(c.TargetUsers), c.CreatedBy,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert component: %w", err)
	}
	return id, nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM components`).Scan(&n)
	return n, err
}
