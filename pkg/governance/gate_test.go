package governance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtoazt/gummybear-sub000/pkg/governance"
	"github.com/xtoazt/gummybear-sub000/pkg/ledger"
)

func TestExecuteAction_SendMessageNeverQueues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.core.ExecuteAction(ctx, governance.ActionSendMessage, map[string]any{
		"channel": "global",
		"content": "hello",
		"userId":  "user-1",
	}, "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	pending, err := h.changes.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "ungated actions must not create pending changes")
	require.Len(t, h.messages.created, 1)
	assert.Equal(t, "user-1", h.messages.created[0].SenderID)
}

func TestExecuteAction_GetContextNeverQueues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.core.ExecuteAction(ctx, governance.ActionGetContext, nil, "", false)
	require.NoError(t, err)
	require.IsType(t, &governance.ContextAggregate{}, result)

	pending, err := h.changes.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestExecuteAction_KingBypassesQueue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.core.ExecuteAction(ctx, governance.ActionCreateComponent, map[string]any{
		"name": "banner",
	}, "king-1", true)
	require.NoError(t, err)
	assert.Equal(t, "comp-banner", result)

	pending, err := h.changes.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "king actions execute immediately")
	require.Len(t, h.components.created, 1)
}

func TestExecuteAction_NonKingQueuesExactlyOneChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.core.ExecuteAction(ctx, governance.ActionCreateComponent, map[string]any{
		"name": "banner",
	}, "user-1", false)
	require.NoError(t, err)

	receipt, ok := result.(*governance.PendingReceipt)
	require.True(t, ok, "gated non-king action must return a receipt, got %T", result)
	assert.True(t, receipt.Pending)
	assert.NotEmpty(t, receipt.PendingChangeID)
	assert.Contains(t, receipt.Message, "Create component: banner")

	// Exactly one queued change, and no side effect happened.
	pending, err := h.changes.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ledger.StatusPending, pending[0].Status)
	assert.Equal(t, "user-1", pending[0].RequestedBy)
	assert.Empty(t, h.components.created, "queueing must not execute the action")
}

func TestExecuteAction_QueuePreservesActionPayload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	params := map[string]any{
		"filePath":      "src/app.ts",
		"content":       "export {}",
		"commitMessage": "tidy exports",
	}
	result, err := h.core.ExecuteAction(ctx, governance.ActionModifyCode, params, "user-1", false)
	require.NoError(t, err)

	change, err := h.changes.Get(ctx, pendingID(t, result))
	require.NoError(t, err)
	assert.Equal(t, "modify_code", change.Action.Action)
	assert.Equal(t, params, change.Action.Params)
	assert.Equal(t, "Modify src/app.ts", change.Title)
	assert.Equal(t, "Commit message: tidy exports", change.Description)
}

func TestExecuteAction_ModifyCodeQueuesWithoutRepoConfigured(t *testing.T) {
	// The integration check belongs to dispatch, not the gate: queueing a
	// modify_code request succeeds even with no repository client.
	h := newHarness(t)

	result, err := h.core.ExecuteAction(context.Background(), governance.ActionModifyCode, map[string]any{
		"filePath": "main.go",
		"content":  "package main",
	}, "user-1", false)
	require.NoError(t, err)
	assert.NotEmpty(t, pendingID(t, result))
}

func TestExecuteAction_EmptyActorRecordedAsSystem(t *testing.T) {
	h := newHarness(t)

	result, err := h.core.ExecuteAction(context.Background(), governance.ActionDeploy, nil, "", false)
	require.NoError(t, err)

	change, err := h.changes.Get(context.Background(), pendingID(t, result))
	require.NoError(t, err)
	assert.Equal(t, governance.SystemActorID, change.RequestedBy)
}

func TestExecuteAction_UnknownActionStillQueues(t *testing.T) {
	h := newHarness(t)

	result, err := h.core.ExecuteAction(context.Background(), governance.ActionKind("summon_dragon"), nil, "user-1", false)
	require.NoError(t, err)

	change, err := h.changes.Get(context.Background(), pendingID(t, result))
	require.NoError(t, err)
	assert.Equal(t, "AI Action: summon_dragon", change.Title)
	assert.Equal(t, "Action: summon_dragon", change.Description)
}

func TestExecuteAction_InvalidParamsFailFast(t *testing.T) {
	h := newHarness(t)

	_, err := h.core.ExecuteAction(context.Background(), governance.ActionModifyCode, map[string]any{
		"content": "missing filePath",
	}, "user-1", false)

	var invalid *governance.InvalidParamsError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, governance.ActionModifyCode, invalid.Action)

	pending, lerr := h.changes.ListPending(context.Background())
	require.NoError(t, lerr)
	assert.Empty(t, pending, "malformed requests must not queue")
}

func TestExecuteAction_KingUnknownActionFailsAtDispatch(t *testing.T) {
	h := newHarness(t)

	_, err := h.core.ExecuteAction(context.Background(), governance.ActionKind("summon_dragon"), nil, "king-1", true)

	var unknown *governance.UnknownActionError
	require.ErrorAs(t, err, &unknown)
}

func TestActionTitleAndDescription(t *testing.T) {
	tests := []struct {
		name        string
		action      governance.ActionKind
		params      map[string]any
		title       string
		description string
	}{
		{
			name:        "modify code",
			action:      governance.ActionModifyCode,
			params:      map[string]any{"filePath": "src/x.ts", "commitMessage": "fix"},
			title:       "Modify src/x.ts",
			description: "Commit message: fix",
		},
		{
			name:        "modify code default commit message",
			action:      governance.ActionModifyCode,
			params:      map[string]any{"filePath": "src/x.ts", "content": ""},
			title:       "Modify src/x.ts",
			description: "Commit message: AI requested change",
		},
		{
			name:        "create component with targets",
			action:      governance.ActionCreateComponent,
			params:      map[string]any{"name": "poll", "targetUsers": []any{"a", "b"}},
			title:       "Create component: poll",
			description: "Component for users: a, b",
		},
		{
			name:        "create component for everyone",
			action:      governance.ActionCreateComponent,
			params:      map[string]any{"name": "poll"},
			title:       "Create component: poll",
			description: "Component for users: all users",
		},
		{
			name:        "deploy",
			action:      governance.ActionDeploy,
			params:      nil,
			title:       "Deploy changes",
			description: "Deploy latest changes to production",
		},
		{
			name:        "modify user",
			action:      governance.ActionModifyUser,
			params:      map[string]any{"userId": "u-9", "changes": map[string]any{"role": "admin"}},
			title:       "Modify user u-9",
			description: `Change: {"role":"admin"}`,
		},
		{
			name:        "modify user numeric id",
			action:      governance.ActionModifyUser,
			params:      map[string]any{"userId": float64(42), "changes": map[string]any{}},
			title:       "Modify user 42",
			description: "Change: {}",
		},
		{
			name:        "unknown",
			action:      governance.ActionKind("dance"),
			params:      nil,
			title:       "AI Action: dance",
			description: "Action: dance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.title, governance.ActionTitle(tt.action, tt.params))
			assert.Equal(t, tt.description, governance.ActionDescription(tt.action, tt.params))
		})
	}
}

func TestCapabilities_DependOnRepo(t *testing.T) {
	bare := newHarness(t)
	caps := bare.core.Capabilities()
	assert.True(t, caps.CanSendMessages)
	assert.True(t, caps.CanManageUsers)
	assert.True(t, caps.CanCreateComponents)
	assert.True(t, caps.CanApproveRequests)
	assert.False(t, caps.CanModifyCode)
	assert.False(t, caps.CanDeployChanges)

	wired := newHarness(t, withRepo())
	caps = wired.core.Capabilities()
	assert.True(t, caps.CanModifyCode)
	assert.True(t, caps.CanDeployChanges)
}
