package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xtoazt/gummybear-sub000/pkg/audit"
	"github.com/xtoazt/gummybear-sub000/pkg/ledger"
)

// ExecuteAction is the gate. Ungated actions and king-initiated actions
// dispatch immediately; anything else becomes exactly one PendingChange and
// the caller receives a PendingReceipt. The gate never performs a dispatch
// and a ledger insert for the same request.
//
// An empty actorID is recorded as the system actor. The configuration state
// of the repository client is deliberately not consulted here: queueing a
// modify_code attempt must succeed even when the integration is missing.
func (c *Core) ExecuteAction(ctx context.Context, action ActionKind, params map[string]any, actorID string, isKing bool) (any, error) {
	if !RequiresApproval(action) {
		return c.executeDirect(ctx, action, params)
	}
	if isKing {
		result, err := c.executeDirect(ctx, action, params)
		if err == nil {
			c.recordAudit(ctx, audit.EventMutation, "ai.execute", string(action), map[string]any{"actor": actorID, "king": true})
		}
		return result, err
	}

	// Malformed gated requests fail fast instead of queueing garbage for
	// the king to review. Unknown kinds still queue; they fail at dispatch.
	if KnownAction(action) {
		if err := c.validator.Validate(action, params); err != nil {
			return nil, err
		}
	}

	if actorID == "" {
		actorID = c.aiActorID
	}

	change := &ledger.PendingChange{
		ID:          uuid.New().String(),
		ChangeType:  string(action),
		Title:       ActionTitle(action, params),
		Description: ActionDescription(action, params),
		Action:      ledger.ActionData{Action: string(action), Params: params},
		RequestedBy: actorID,
		Status:      ledger.StatusPending,
		CreatedAt:   c.clock().UTC(),
	}

	if err := c.changes.Insert(ctx, change); err != nil {
		return nil, fmt.Errorf("queue pending change: %w", err)
	}

	c.logger.Info("AI action queued for approval",
		"action", string(action), "change_id", change.ID, "requested_by", actorID)
	c.recordAudit(ctx, audit.EventPolicy, "ai.queue", string(action), map[string]any{
		"change_id": change.ID, "requested_by": actorID,
	})

	return &PendingReceipt{
		Pending:         true,
		PendingChangeID: change.ID,
		Message:         "Change queued for king approval: " + change.Title,
	}, nil
}

// ActionTitle derives the human summary shown in the review queue.
func ActionTitle(action ActionKind, params map[string]any) string {
	switch action {
	case ActionModifyCode:
		return "Modify " + stringParam(params, "filePath")
	case ActionCreateComponent:
		return "Create component: " + stringParam(params, "name")
	case ActionDeploy:
		return "Deploy changes"
	case ActionModifyUser:
		return "Modify user " + anyParam(params, "userId")
	default:
		return "AI Action: " + string(action)
	}
}

// ActionDescription derives the human detail shown in the review queue.
func ActionDescription(action ActionKind, params map[string]any) string {
	switch action {
	case ActionModifyCode:
		msg := stringParam(params, "commitMessage")
		if msg == "" {
			msg = "AI requested change"
		}
		return "Commit message: " + msg
	case ActionCreateComponent:
		targets := stringsParam(params, "targetUsers")
		joined := "all users"
		if len(targets) > 0 {
			joined = strings.Join(targets, ", ")
		}
		return "Component for users: " + joined
	case ActionDeploy:
		return "Deploy latest changes to production"
	case ActionModifyUser:
		raw, err := json.Marshal(params["changes"])
		if err != nil {
			raw = []byte("{}")
		}
		return "Change: " + string(raw)
	default:
		return "Action: " + string(action)
	}
}

func (c *Core) recordAudit(ctx context.Context, eventType audit.EventType, action, resource string, metadata map[string]any) {
	if err := c.audit.Record(ctx, eventType, action, resource, metadata); err != nil {
		c.logger.Warn("audit record failed", "action", action, "error", err)
	}
}

// stringParam returns params[key] when it is a string.
func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

// anyParam formats params[key] for display; JSON numbers render without an
// exponent or trailing fraction where possible.
func anyParam(params map[string]any, key string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return ""
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}

// stringsParam coerces a JSON array param into []string, skipping non-string
// members.
func stringsParam(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// mapParam returns params[key] when it is an object.
func mapParam(params map[string]any, key string) map[string]any {
	if v, ok := params[key].(map[string]any); ok {
		return v
	}
	return nil
}
