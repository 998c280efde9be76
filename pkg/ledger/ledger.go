// Package ledger — the Pending Change Ledger.
//
// A PendingChange is a queued AI action proposal awaiting review by the king.
// Entries move strictly forward:
//
//	pending → approved → executed
//	pending → rejected
//
// rejected and executed are terminal. Entries are never deleted; the ledger is
// the audit trail for every deferred AI action. Each entry carries a content
// hash chained to its predecessor so tampering with history is detectable.
package ledger

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a PendingChange.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
)

// ActionData is the stored action payload, re-dispatched verbatim when the
// change is executed. The ledger treats it as opaque; the governance core
// validates it against the per-kind schema before insertion.
type ActionData struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// PendingChange is the persisted unit of deferred work.
type PendingChange struct {
	ID          string     `json:"id"`
	ChangeType  string     `json:"change_type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Action      ActionData `json:"action_data"`
	RequestedBy string     `json:"requested_by"`
	Status      Status     `json:"status"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// ContentHash and PrevHash chain this entry to its predecessor.
	ContentHash string `json:"content_hash,omitempty"`
	PrevHash    string `json:"prev_hash,omitempty"`
}

var (
	// ErrNotFound indicates the change id does not exist.
	ErrNotFound = errors.New("pending change not found")

	// ErrStaleStatus indicates a conditional status transition matched zero
	// rows: the change was not in the expected from-status. Callers re-read
	// the record to report the precise state error.
	ErrStaleStatus = errors.New("pending change not in expected status")
)

// StatusUpdate carries the fields written on a lifecycle transition.
// ReviewedAt/ExecutedAt are set or cleared exactly as given; a nil pointer
// writes NULL, which is how a failed dispatch releases an executed claim.
type StatusUpdate struct {
	ApprovedBy string
	ReviewedAt *time.Time
	ExecutedAt *time.Time
}

// Store persists PendingChange records. UpdateStatus must be implemented as a
// compare-and-swap: the transition applies only if the record is currently in
// the from-status, and concurrent callers must observe exactly one winner.
type Store interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, change *PendingChange) error
	Get(ctx context.Context, id string) (*PendingChange, error)
	// ListPending returns pending entries newest-first for review UIs.
	ListPending(ctx context.Context) ([]*PendingChange, error)
	// UpdateStatus atomically transitions id from one status to another.
	// Returns ErrNotFound if no row has the id, ErrStaleStatus if the row
	// exists but is not in the from-status.
	UpdateStatus(ctx context.Context, id string, from, to Status, update StatusUpdate) error
	Count(ctx context.Context) (int, error)
}
