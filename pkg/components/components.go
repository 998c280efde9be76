// Package components stores AI-created UI component definitions.
// Component creation is best-effort: storage failures surface as a nil id,
// never as a hard error, because a lost component is recoverable by asking
// the AI again.
package components

import (
	"context"
	"strings"
	"time"
)

// Component is a UI component definition scoped to a set of target users.
type Component struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	HTML        string    `json:"html"`
	JS          string    `json:"js"`
	CSS         string    `json:"css"`
	TargetUsers []string  `json:"target_users"` // empty means all users
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// TargetAll is the sentinel stored when a component is visible to everyone.
const TargetAll = "all"

// EncodeTargets flattens the target list for storage.
func EncodeTargets(targets []string) string {
	if len(targets) == 0 {
		return TargetAll
	}
	return strings.Join(targets, ",")
}

// DecodeTargets reverses EncodeTargets.
func DecodeTargets(encoded string) []string {
	if encoded == "" || encoded == TargetAll {
		return nil
	}
	return strings.Split(encoded, ",")
}

// Store is the component storage contract.
type Store interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, c *Component) (string, error)
	Count(ctx context.Context) (int, error)
}
