// Package directory is the user directory: accounts, roles, ban status, and
// the access-request workflow for pending signups.
package directory

import (
	"context"
	"errors"
	"time"
)

// Role is the privilege tier of a user. Only the king bypasses the AI action
// approval gate; admin and support can review but their own gated AI requests
// still queue.
type Role string

const (
	RoleKing    Role = "king"
	RoleAdmin   Role = "admin"
	RoleSupport Role = "support"
	RoleTwin    Role = "twin"
	RoleViewer  Role = "viewer"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleKing, RoleAdmin, RoleSupport, RoleTwin, RoleViewer:
		return true
	}
	return false
}

// UserStatus is the account state.
type UserStatus string

const (
	UserPending  UserStatus = "pending"
	UserApproved UserStatus = "approved"
	UserBanned   UserStatus = "banned"
)

// User is an account record.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AccessRequest is a signup awaiting review.
type AccessRequest struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	Reason     string     `json:"reason,omitempty"`
	Status     string     `json:"status"` // pending, approved, rejected
	ReviewedBy string     `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

var (
	// ErrNotFound indicates the user or request does not exist.
	ErrNotFound = errors.New("directory record not found")

	// ErrUsernameTaken indicates a signup collided with an existing username.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrRequestNotPending indicates an access request was already reviewed.
	ErrRequestNotPending = errors.New("access request is not pending")
)

// Store is the user directory storage contract.
type Store interface {
	Init(ctx context.Context) error
	// Create registers a user. The password is hashed before storage; the
	// account starts in UserPending with a matching access request.
	Create(ctx context.Context, username, password string, role Role) (*User, error)
	GetAll(ctx context.Context) ([]*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	ChangeRole(ctx context.Context, id string, role Role) error
	Ban(ctx context.Context, id string) error
	Unban(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)

	// Access-request workflow.
	ListPendingRequests(ctx context.Context) ([]*AccessRequest, error)
	// ApproveRequest marks the request approved and activates the user's
	// account in one transaction: both rows update or neither does.
	ApproveRequest(ctx context.Context, requestID, reviewerID string) error
	RejectRequest(ctx context.Context, requestID, reviewerID string) error
}
