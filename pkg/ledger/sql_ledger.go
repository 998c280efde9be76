package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// SQLStore implements Store using database/sql.
// It supports both Postgres and SQLite via standard drivers.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS pending_changes (
	id TEXT PRIMARY KEY,
	change_type TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	action_data TEXT NOT NULL,
	requested_by TEXT NOT NULL,
	status TEXT NOT NULL,
	approved_by TEXT,
	reviewed_at TEXT,
	executed_at TEXT,
	created_at TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	prev_hash TEXT NOT NULL DEFAULT 'genesis'
);
`

func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLStore) Insert(ctx context.Context, change *PendingChange) error {
	prev, err := s.head(ctx)
	if err != nil {
		return fmt.Errorf("read ledger head: %w", err)
	}
	change.PrevHash = prev
	change.ContentHash, err = contentHash(change)
	if err != nil {
		return fmt.Errorf("hash pending change: %w", err)
	}

	actionJSON, err := json.Marshal(change.Action)
	if err != nil {
		return fmt.Errorf("marshal action data: %w", err)
	}

	query := `
		INSERT INTO pending_changes (
			id, change_type, title, description, action_data, requested_by,
			status, approved_by, reviewed_at, executed_at, created_at,
			content_hash, prev_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		change.ID, change.ChangeType, change.Title, change.Description,
		string(actionJSON), change.RequestedBy, string(change.Status),
		nullString(change.ApprovedBy), nullTime(change.ReviewedAt), nullTime(change.ExecutedAt),
		change.CreatedAt.UTC().Format(time.RFC3339Nano),
		change.ContentHash, change.PrevHash,
	)
	if err != nil {
		return fmt.Errorf("insert pending change: %w", err)
	}
	return nil
}

const selectColumns = `
	id, change_type, title, description, action_data, requested_by,
	status, approved_by, reviewed_at, executed_at, created_at,
	content_hash, prev_hash
`

func (s *SQLStore) Get(ctx context.Context, id string) (*PendingChange, error) {
	query := `SELECT ` + selectColumns + ` FROM pending_changes WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, id)
	change, err := scanChange(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return change, nil
}

func (s *SQLStore) ListPending(ctx context.Context) ([]*PendingChange, error) {
	query := `SELECT ` + selectColumns + ` FROM pending_changes WHERE status = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, string(StatusPending))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var changes []*PendingChange
	for rows.Next() {
		change, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

// UpdateStatus is the CAS primitive for the lifecycle: a conditional UPDATE
// whose WHERE clause pins the from-status. Two concurrent callers racing the
// same transition see exactly one row affected between them.
func (s *SQLStore) UpdateStatus(ctx context.Context, id string, from, to Status, update StatusUpdate) error {
	query := `
		UPDATE pending_changes
		SET status = $1, approved_by = $2, reviewed_at = $3, executed_at = $4
		WHERE id = $5 AND status = $6
	`
	res, err := s.db.ExecContext(ctx, query,
		string(to), nullString(update.ApprovedBy), nullTime(update.ReviewedAt), nullTime(update.ExecutedAt),
		id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update pending change status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStaleStatus
	}
	return nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_changes`).Scan(&n)
	return n, err
}

// head returns the content hash of the most recently created entry, or
// "genesis" for an empty ledger.
func (s *SQLStore) head(ctx context.Context) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM pending_changes ORDER BY created_at DESC LIMIT 1`,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "genesis", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChange(row rowScanner) (*PendingChange, error) {
	var (
		change     PendingChange
		actionJSON string
		status     string
		approvedBy sql.NullString
		reviewedAt sql.NullString
		executedAt sql.NullString
		createdAt  string
	)
	err := row.Scan(
		&change.ID, &change.ChangeType, &change.Title, &change.Description,
		&actionJSON, &change.RequestedBy, &status, &approvedBy,
		&reviewedAt, &executedAt, &createdAt,
		&change.ContentHash, &change.PrevHash,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(actionJSON), &change.Action); err != nil {
		return nil, fmt.Errorf("decode action data for %s: %w", change.ID, err)
	}
	change.Status = Status(status)
	change.ApprovedBy = approvedBy.String
	change.ReviewedAt = parseNullTime(reviewedAt)
	change.ExecutedAt = parseNullTime(executedAt)
	change.CreatedAt = parseTime(createdAt)
	return &change, nil
}

// contentHash computes a deterministic hash over the JCS canonical form of the
// entry's identity and payload, bound to the previous entry's hash.
func contentHash(change *PendingChange) (string, error) {
	raw, err := json.Marshal(struct {
		ID         string     `json:"id"`
		ChangeType string     `json:"change_type"`
		Action     ActionData `json:"action"`
		Requested  string     `json:"requested_by"`
		Prev       string     `json:"prev"`
	}{change.ID, change.ChangeType, change.Action, change.RequestedBy, change.PrevHash})
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t := parseTime(v.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
