// Package auth handles caller identity for the HTTP layer: JWT issuance and
// validation, and the Principal carried through request contexts.
package auth

import (
	"github.com/xtoazt/gummybear-sub000/pkg/directory"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	ID       string         `json:"id"`
	Username string         `json:"username"`
	Role     directory.Role `json:"role"`
}

// IsKing reports whether the caller holds the single highest-privilege role.
// Kings bypass the AI action approval gate.
func (p *Principal) IsKing() bool {
	return p.Role == directory.RoleKing
}

// CanReviewChanges reports whether the caller may see the pending change
// queue and review access requests. Disposition of pending changes (approve,
// reject, execute) belongs to the king alone.
func (p *Principal) CanReviewChanges() bool {
	switch p.Role {
	case directory.RoleKing, directory.RoleAdmin, directory.RoleSupport:
		return true
	}
	return false
}
