package governance

import (
	"context"
	"errors"
	"fmt"

	"github.com/xtoazt/gummybear-sub000/pkg/audit"
	"github.com/xtoazt/gummybear-sub000/pkg/ledger"
)

// Approve moves a pending change to approved. Authorization is the transport
// layer's job; the core only enforces the state machine: a change that has
// already been reviewed cannot be reviewed again.
func (c *Core) Approve(ctx context.Context, changeID, approverID string) error {
	return c.review(ctx, changeID, approverID, ledger.StatusApproved)
}

// Reject moves a pending change to rejected, a terminal state.
func (c *Core) Reject(ctx context.Context, changeID, approverID string) error {
	return c.review(ctx, changeID, approverID, ledger.StatusRejected)
}

func (c *Core) review(ctx context.Context, changeID, approverID string, outcome ledger.Status) error {
	change, err := c.changes.Get(ctx, changeID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrChangeNotFound
		}
		return err
	}
	if change.Status != ledger.StatusPending {
		return ErrAlreadyReviewed
	}

	now := c.clock().UTC()
	err = c.changes.UpdateStatus(ctx, changeID, ledger.StatusPending, outcome, ledger.StatusUpdate{
		ApprovedBy: approverID,
		ReviewedAt: &now,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrStaleStatus) {
			return ErrAlreadyReviewed
		}
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrChangeNotFound
		}
		return err
	}

	c.logger.Info("pending change reviewed",
		"change_id", changeID, "outcome", string(outcome), "reviewer", approverID)
	c.recordAudit(ctx, audit.EventMutation, "ai.review", changeID, map[string]any{
		"outcome": string(outcome), "reviewer": approverID,
	})
	return nil
}

// ExecuteApprovedChange replays a stored action through the dispatch router.
// The approved→executed transition is claimed atomically BEFORE dispatching,
// so two racing callers cannot both apply the side effect: the loser of the
// claim sees ErrAlreadyExecuted and never dispatches. If dispatch fails, the
// claim is released and the change stays approved for retry.
func (c *Core) ExecuteApprovedChange(ctx context.Context, changeID string) (any, error) {
	change, err := c.changes.Get(ctx, changeID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrChangeNotFound
		}
		return nil, err
	}

	switch change.Status {
	case ledger.StatusExecuted:
		return nil, ErrAlreadyExecuted
	case ledger.StatusPending, ledger.StatusRejected:
		return nil, ErrNotApproved
	}

	now := c.clock().UTC()
	claim := ledger.StatusUpdate{
		ApprovedBy: change.ApprovedBy,
		ReviewedAt: change.ReviewedAt,
		ExecutedAt: &now,
	}
	if err := c.changes.UpdateStatus(ctx, changeID, ledger.StatusApproved, ledger.StatusExecuted, claim); err != nil {
		if errors.Is(err, ledger.ErrStaleStatus) {
			return nil, c.staleExecuteError(ctx, changeID)
		}
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrChangeNotFound
		}
		return nil, err
	}

	result, dispatchErr := c.executeDirect(ctx, ActionKind(change.Action.Action), change.Action.Params)
	if dispatchErr != nil {
		release := ledger.StatusUpdate{
			ApprovedBy: change.ApprovedBy,
			ReviewedAt: change.ReviewedAt,
		}
		if relErr := c.changes.UpdateStatus(ctx, changeID, ledger.StatusExecuted, ledger.StatusApproved, release); relErr != nil {
			c.logger.Error("failed to release execution claim",
				"change_id", changeID, "error", relErr)
		}
		return nil, fmt.Errorf("execute change %s: %w", changeID, dispatchErr)
	}

	c.logger.Info("pending change executed", "change_id", changeID, "action", change.Action.Action)
	c.recordAudit(ctx, audit.EventMutation, "ai.execute_change", changeID, map[string]any{
		"action": change.Action.Action,
	})
	return result, nil
}

// staleExecuteError maps a lost CAS race to the precise state error.
func (c *Core) staleExecuteError(ctx context.Context, changeID string) error {
	current, err := c.changes.Get(ctx, changeID)
	if err != nil {
		return ErrNotApproved
	}
	if current.Status == ledger.StatusExecuted {
		return ErrAlreadyExecuted
	}
	return ErrNotApproved
}

// PendingReview is a queued change annotated with the advisor's risk note
// for the review UI.
type PendingReview struct {
	*ledger.PendingChange
	Risk string `json:"risk"`
}

// ListPendingChanges returns the review queue, newest first.
func (c *Core) ListPendingChanges(ctx context.Context) ([]*PendingReview, error) {
	changes, err := c.changes.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	reviews := make([]*PendingReview, 0, len(changes))
	for _, change := range changes {
		risk := RiskNormal
		if c.advisor != nil {
			risk = c.advisor.Assess(change)
		}
		reviews = append(reviews, &PendingReview{PendingChange: change, Risk: risk})
	}
	return reviews, nil
}

// FullContext exposes the AI context aggregate to the transport layer.
func (c *Core) FullContext(ctx context.Context) (*ContextAggregate, error) {
	return c.getContext(ctx)
}
