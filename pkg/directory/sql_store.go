package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
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
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS access_requests (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	reason TEXT,
	status TEXT NOT NULL,
	reviewed_by TEXT,
	reviewed_at TEXT,
	created_at TEXT NOT NULL
);
`

func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLStore) Create(ctx context.Context, username, password string, role Role) (*User, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if existing, err := s.FindByUsername(ctx, username); err == nil && existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock().UTC()
	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		Status:       UserPending,
		CreatedAt:    now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Username, user.PasswordHash, string(user.Role), string(user.Status), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO access_requests (id, user_id, status, created_at) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), user.ID, "pending", formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert access request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return user, nil
}

// CheckPassword verifies a candidate password against the stored hash.
func CheckPassword(user *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

const userColumns = `id, username, password_hash, role, status, created_at`

func (s *SQLStore) GetAll(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUserRow(row)
}

func (s *SQLStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUserRow(row)
}

func (s *SQLStore) ChangeRole(ctx context.Context, id string, role Role) error {
	if !ValidRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}
	return s.updateOne(ctx, `UPDATE users SET role = $1 WHERE id = $2`, string(role), id)
}

func (s *SQLStore) Ban(ctx context.Context, id string) error {
	return s.updateOne(ctx, `UPDATE users SET status = $1 WHERE id = $2`, string(UserBanned), id)
}

func (s *SQLStore) Unban(ctx context.Context, id string) error {
	return s.updateOne(ctx, `UPDATE users SET status = $1 WHERE id = $2`, string(UserApproved), id)
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (s *SQLStore) ListPendingRequests(ctx context.Context) ([]*AccessRequest, error) {
	query := `
		SELECT r.id, r.user_id, u.username, r.reason, r.status, r.reviewed_by, r.reviewed_at, r.created_at
		FROM access_requests r
		JOIN users u ON u.id = r.user_id
		WHERE r.status = 'pending'
		ORDER BY r.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var requests []*AccessRequest
	for rows.Next() {
		var (
			req        AccessRequest
			reason     sql.NullString
			reviewedBy sql.NullString
			reviewedAt sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&req.ID, &req.UserID, &req.Username, &reason, &req.Status, &reviewedBy, &reviewedAt, &createdAt); err != nil {
			return nil, err
		}
		req.Reason = reason.String
		req.ReviewedBy = reviewedBy.String
		if reviewedAt.Valid {
			if t := parseTime(reviewedAt.String); !t.IsZero() {
				req.ReviewedAt = &t
			}
		}
		req.CreatedAt = parseTime(createdAt)
		requests = append(requests, &req)
	}
	return requests, rows.Err()
}

// ApproveRequest flips the request to approved and activates the user inside
// one transaction. The conditional UPDATE on status='pending' makes review
// single-shot even under concurrent approvals.
func (s *SQLStore) ApproveRequest(ctx context.Context, requestID, reviewerID string) error {
	return s.reviewRequest(ctx, requestID, reviewerID, "approved", true)
}

func (s *SQLStore) RejectRequest(ctx context.Context, requestID, reviewerID string) error {
	return s.reviewRequest(ctx, requestID, reviewerID, "rejected", false)
}

func (s *SQLStore) reviewRequest(ctx context.Context, requestID, reviewerID, outcome string, activate bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var userID string
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM access_requests WHERE id = $1`, requestID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE access_requests SET status = $1, reviewed_by = $2, reviewed_at = $3 WHERE id = $4 AND status = 'pending'`,
		outcome, reviewerID, formatTime(s.clock().UTC()), requestID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRequestNotPending
	}

	if activate {
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET status = $1 WHERE id = $2`, string(UserApproved), userID,
		)
		if err != nil {
			return fmt.Errorf("activate user %s: %w", userID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLStore) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUserRow(row *sql.Row) (*User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		user      User
		role      string
		status    string
		createdAt string
	)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &role, &status, &createdAt); err != nil {
		return nil, err
	}
	user.Role = Role(role)
	user.Status = UserStatus(status)
	user.CreatedAt = parseTime(createdAt)
	return &user, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
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
