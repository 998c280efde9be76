// Package governance is the AI action governance core: it decides whether an
// AI-initiated action executes immediately or is queued as a PendingChange
// requiring king approval, dispatches actions to their collaborators, and
// drives the pending-change lifecycle.
package governance

import (
	"context"

	"github.com/xtoazt/gummybear-sub000/pkg/directory"
	"github.com/xtoazt/gummybear-sub000/pkg/messages"

	"github.com/xtoazt/gummybear-sub000/pkg/components"
)

// ActionKind is the closed set of actions the AI layer can request.
type ActionKind string

const (
	ActionSendMessage     ActionKind = "send_message"
	ActionGetContext      ActionKind = "get_context"
	ActionCreateComponent ActionKind = "create_component"
	ActionModifyCode      ActionKind = "modify_code"
	ActionDeploy          ActionKind = "deploy"
	ActionModifyUser      ActionKind = "modify_user"
	ActionApproveRequest  ActionKind = "approve_request"
)

// KnownAction reports whether k is a recognized ActionKind. Unrecognized
// kinds still pass the gate (and queue for non-kings); they fail with
// UnknownActionError at dispatch time, matching the gate contract.
func KnownAction(k ActionKind) bool {
	switch k {
	case ActionSendMessage, ActionGetContext, ActionCreateComponent,
		ActionModifyCode, ActionDeploy, ActionModifyUser, ActionApproveRequest:
		return true
	}
	return false
}

// RequiresApproval reports whether k is a gated action. send_message and
// get_context always execute immediately regardless of caller.
func RequiresApproval(k ActionKind) bool {
	return k != ActionSendMessage && k != ActionGetContext
}

// SystemActorID is the actor recorded when a request carries no caller
// identity, and the default author of AI-sent messages.
const SystemActorID = "ai-system"

// PendingReceipt is returned when a gated action was queued instead of
// executed.
type PendingReceipt struct {
	Pending         bool   `json:"pending"`
	PendingChangeID string `json:"pendingChangeId"`
	Message         string `json:"message"`
}

// CapabilitySnapshot reports which action families are currently available.
// It is advisory for clients; the core still enforces gating server-side.
type CapabilitySnapshot struct {
	CanSendMessages     bool `json:"canSendMessages"`
	CanManageUsers      bool `json:"canManageUsers"`
	CanCreateComponents bool `json:"canCreateComponents"`
	CanApproveRequests  bool `json:"canApproveRequests"`
	CanModifyCode       bool `json:"canModifyCode"`
	CanDeployChanges    bool `json:"canDeployChanges"`
}

// ChannelSpec names a channel and how many recent messages of it the AI
// context window includes.
type ChannelSpec struct {
	Name  string `yaml:"name" json:"name"`
	Limit int    `yaml:"limit" json:"limit"`
}

// DefaultContextChannels is the channel window used when no profile
// overrides it.
var DefaultContextChannels = []ChannelSpec{
	{Name: "global", Limit: 100},
	{Name: "support", Limit: 50},
	{Name: "kajigs", Limit: 50},
}

// ContextAggregate is the read-only snapshot assembled for the AI layer.
// Sections degrade to empty on collaborator failure; only the user fetch is
// required.
type ContextAggregate struct {
	Users          []*directory.User             `json:"users"`
	Messages       map[string][]*messages.Message `json:"messages"`
	AccessRequests []*directory.AccessRequest    `json:"access_requests"`
	TableCounts    map[string]int                `json:"table_counts"`
}

// UserDirectory is the slice of the user directory the core consumes.
type UserDirectory interface {
	GetAll(ctx context.Context) ([]*directory.User, error)
	FindByID(ctx context.Context, id string) (*directory.User, error)
	ChangeRole(ctx context.Context, id string, role directory.Role) error
	Ban(ctx context.Context, id string) error
	Unban(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	ListPendingRequests(ctx context.Context) ([]*directory.AccessRequest, error)
	ApproveRequest(ctx context.Context, requestID, reviewerID string) error
}

// MessageStore is the slice of the message store the core consumes.
type MessageStore interface {
	Create(ctx context.Context, senderID, content, channel, recipientID, msgType string) (*messages.Message, error)
	GetChannelMessages(ctx context.Context, channel string, limit int) ([]*messages.Message, error)
	Count(ctx context.Context) (int, error)
}

// ComponentStore is the slice of the component store the core consumes.
type ComponentStore interface {
	Create(ctx context.Context, c *components.Component) (string, error)
	Count(ctx context.Context) (int, error)
}
