package governance

import (
	"context"
	"errors"
	"fmt"

	"github.com/xtoazt/gummybear-sub000/pkg/components"
	"github.com/xtoazt/gummybear-sub000/pkg/directory"
	"github.com/xtoazt/gummybear-sub000/pkg/messages"
	"github.com/xtoazt/gummybear-sub000/pkg/repo"
)

// executeDirect routes an action to its collaborator. Each branch keeps its
// own failure policy: read aggregation degrades, chat/user/component writes
// report a boolean, code and deploy actions propagate errors because a silent
// failure there is worse than a loud one.
func (c *Core) executeDirect(ctx context.Context, action ActionKind, params map[string]any) (any, error) {
	switch action {
	case ActionSendMessage:
		return c.sendMessage(ctx, params), nil
	case ActionGetContext:
		return c.getContext(ctx)
	case ActionCreateComponent:
		return c.createComponent(ctx, params), nil
	case ActionModifyCode:
		return c.modifyCode(ctx, params)
	case ActionDeploy:
		return c.deployChanges(ctx)
	case ActionModifyUser:
		return c.modifyUser(ctx, params), nil
	case ActionApproveRequest:
		return c.approveAccessRequest(ctx, params)
	default:
		return nil, &UnknownActionError{Action: action}
	}
}

// sendMessage writes a message authored by the AI identity. Store failures
// surface as false, not as an error.
func (c *Core) sendMessage(ctx context.Context, params map[string]any) bool {
	channel := stringParam(params, "channel")
	content := stringParam(params, "content")
	if channel == "" || content == "" {
		return false
	}
	senderID := stringParam(params, "userId")
	if senderID == "" {
		senderID = c.aiActorID
	}

	_, err := c.messages.Create(ctx, senderID, content, channel, "", messages.TypeSystem)
	if err != nil {
		c.logger.Warn("AI message write failed", "channel", channel, "error", err)
		return false
	}
	return true
}

// getContext assembles the AI context window. The user fetch is required;
// every other section degrades to empty on failure so one broken collaborator
// does not blind the AI completely.
func (c *Core) getContext(ctx context.Context) (*ContextAggregate, error) {
	users, err := c.users.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users for context: %w", err)
	}

	agg := &ContextAggregate{
		Users:       users,
		Messages:    make(map[string][]*messages.Message, len(c.contextChannels)),
		TableCounts: make(map[string]int),
	}

	for _, ch := range c.contextChannels {
		msgs, err := c.messages.GetChannelMessages(ctx, ch.Name, ch.Limit)
		if err != nil {
			c.logger.Warn("context channel fetch failed", "channel", ch.Name, "error", err)
			msgs = nil
		}
		agg.Messages[ch.Name] = msgs
	}

	if requests, err := c.users.ListPendingRequests(ctx); err == nil {
		agg.AccessRequests = requests
	} else {
		c.logger.Warn("context access requests fetch failed", "error", err)
	}

	agg.TableCounts["users"] = c.tableCount(ctx, "users", c.users.Count)
	agg.TableCounts["messages"] = c.tableCount(ctx, "messages", c.messages.Count)
	agg.TableCounts["components"] = c.tableCount(ctx, "components", c.components.Count)
	agg.TableCounts["pending_changes"] = c.tableCount(ctx, "pending_changes", c.changes.Count)

	return agg, nil
}

func (c *Core) tableCount(ctx context.Context, table string, count func(context.Context) (int, error)) int {
	n, err := count(ctx)
	if err != nil {
		c.logger.Warn("table count failed", "table", table, "error", err)
		return 0
	}
	return n
}

// createComponent persists a UI component definition. Best effort: a storage
// failure yields a nil id rather than an error.
func (c *Core) createComponent(ctx context.Context, params map[string]any) any {
	component := &components.Component{
		Name:        stringParam(params, "name"),
		HTML:        stringParam(params, "html"),
		JS:          stringParam(params, "js"),
		CSS:         stringParam(params, "css"),
		TargetUsers: stringsParam(params, "targetUsers"),
		CreatedBy:   c.aiActorID,
	}
	id, err := c.components.Create(ctx, component)
	if err != nil {
		c.logger.Warn("component create failed", "name", component.Name, "error", err)
		return nil
	}
	return id
}

// modifyCode writes a file into the source repository using the current
// revision token for optimistic concurrency. Requires the repository client;
// repository errors propagate.
func (c *Core) modifyCode(ctx context.Context, params map[string]any) (bool, error) {
	if c.repo == nil {
		return false, ErrIntegrationNotConfigured
	}

	filePath := stringParam(params, "filePath")
	content := stringParam(params, "content")
	commitMessage := stringParam(params, "commitMessage")
	if commitMessage == "" {
		commitMessage = "AI requested change"
	}

	revision, err := c.repo.GetFileRevision(ctx, filePath, c.repoBranch)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return false, fmt.Errorf("read revision of %s: %w", filePath, err)
	}

	if err := c.repo.WriteFile(ctx, filePath, content, commitMessage, c.repoBranch, revision); err != nil {
		return false, fmt.Errorf("write %s: %w", filePath, err)
	}
	return true, nil
}

// deployChanges triggers the deploy hook. Requires the repository client so a
// misconfigured instance cannot pretend to ship code.
func (c *Core) deployChanges(ctx context.Context) (any, error) {
	if c.repo == nil {
		return nil, ErrIntegrationNotConfigured
	}
	release, err := c.deployer.Deploy(ctx)
	if err != nil {
		return nil, fmt.Errorf("deploy: %w", err)
	}
	c.logger.Info("deploy triggered", "version", release.Version)
	return release, nil
}

// modifyUser applies role and status changes. Unknown status values are
// no-ops; directory errors surface as false.
func (c *Core) modifyUser(ctx context.Context, params map[string]any) bool {
	userID := anyParam(params, "userId")
	changes := mapParam(params, "changes")
	if userID == "" || changes == nil {
		return false
	}

	if role, ok := changes["role"].(string); ok && role != "" {
		if err := c.users.ChangeRole(ctx, userID, directory.Role(role)); err != nil {
			c.logger.Warn("role change failed", "user", userID, "role", role, "error", err)
			return false
		}
	}

	if status, ok := changes["status"].(string); ok {
		switch status {
		case "banned":
			if err := c.users.Ban(ctx, userID); err != nil {
				c.logger.Warn("ban failed", "user", userID, "error", err)
				return false
			}
		case "approved":
			if err := c.users.Unban(ctx, userID); err != nil {
				c.logger.Warn("unban failed", "user", userID, "error", err)
				return false
			}
		}
	}

	return true
}

// approveAccessRequest activates a pending user's account through the
// directory's atomic request workflow. Not-found and already-reviewed
// conditions propagate so the caller can report them precisely.
func (c *Core) approveAccessRequest(ctx context.Context, params map[string]any) (bool, error) {
	requestID := anyParam(params, "requestId")
	reviewerID := anyParam(params, "reviewerId")
	if reviewerID == "" {
		reviewerID = c.aiActorID
	}

	err := c.users.ApproveRequest(ctx, requestID, reviewerID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) || errors.Is(err, directory.ErrRequestNotPending) {
			return false, err
		}
		c.logger.Warn("access request approval failed", "request", requestID, "error", err)
		return false, nil
	}
	return true, nil
}
