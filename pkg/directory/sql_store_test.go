package directory

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQLStore(db)
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestCreate_HashesPasswordAndQueuesRequest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.Create(ctx, "ana", "hunter2", RoleViewer)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, UserPending, user.Status)
	assert.NotEqual(t, "hunter2", user.PasswordHash, "passwords are never stored in the clear")
	assert.True(t, CheckPassword(user, "hunter2"))
	assert.False(t, CheckPassword(user, "wrong"))

	requests, err := store.ListPendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, user.ID, requests[0].UserID)
	assert.Equal(t, "ana", requests[0].Username)
	assert.Equal(t, "pending", requests[0].Status)
}

func TestCreate_DuplicateUsername(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "ana", "pw1", RoleViewer)
	require.NoError(t, err)
	_, err = store.Create(ctx, "ana", "pw2", RoleViewer)
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestCreate_RejectsUnknownRole(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create(context.Background(), "ana", "pw", Role("emperor"))
	require.Error(t, err)
}

func TestFindByUsernameAndID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "ana", "pw", RoleAdmin)
	require.NoError(t, err)

	byName, err := store.FindByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.Equal(t, RoleAdmin, byName.Role)

	byID, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", byID.Username)

	_, err = store.FindByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.FindByID(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangeRoleAndBanLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.Create(ctx, "ana", "pw", RoleViewer)
	require.NoError(t, err)

	require.NoError(t, store.ChangeRole(ctx, user.ID, RoleSupport))
	require.NoError(t, store.Ban(ctx, user.ID))

	got, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleSupport, got.Role)
	assert.Equal(t, UserBanned, got.Status)

	require.NoError(t, store.Unban(ctx, user.ID))
	got, err = store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, UserApproved, got.Status)

	assert.ErrorIs(t, store.ChangeRole(ctx, "ghost", RoleAdmin), ErrNotFound)
	assert.ErrorIs(t, store.Ban(ctx, "ghost"), ErrNotFound)
	assert.Error(t, store.ChangeRole(ctx, user.ID, Role("emperor")))
}

func TestApproveRequest_ActivatesUserAtomically(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.Create(ctx, "ana", "pw", RoleViewer)
	require.NoError(t, err)
	requests, err := store.ListPendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)

	require.NoError(t, store.ApproveRequest(ctx, requests[0].ID, "king-1"))

	got, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, UserApproved, got.Status)

	remaining, err := store.ListPendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestApproveRequest_SecondReviewFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "ana", "pw", RoleViewer)
	require.NoError(t, err)
	requests, err := store.ListPendingRequests(ctx)
	require.NoError(t, err)
	id := requests[0].ID

	require.NoError(t, store.ApproveRequest(ctx, id, "king-1"))
	assert.ErrorIs(t, store.ApproveRequest(ctx, id, "admin-2"), ErrRequestNotPending)
	assert.ErrorIs(t, store.RejectRequest(ctx, id, "admin-2"), ErrRequestNotPending)
}

func TestRejectRequest_LeavesUserPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.Create(ctx, "ana", "pw", RoleViewer)
	require.NoError(t, err)
	requests, err := store.ListPendingRequests(ctx)
	require.NoError(t, err)

	require.NoError(t, store.RejectRequest(ctx, requests[0].ID, "king-1"))

	got, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, UserPending, got.Status, "rejection must not activate the account")
}

func TestApproveRequest_Unknown(t *testing.T) {
	store := newTestStore(t)
	assert.ErrorIs(t, store.ApproveRequest(context.Background(), "ghost", "king-1"), ErrNotFound)
}

func TestGetAll_OrderedByCreation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := base
	store.WithClock(func() time.Time { return now })

	_, err := store.Create(ctx, "first", "pw", RoleViewer)
	require.NoError(t, err)
	now = base.Add(time.Minute)
	_, err = store.Create(ctx, "second", "pw", RoleViewer)
	require.NoError(t, err)

	users, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "first", users[0].Username)
	assert.Equal(t, "second", users[1].Username)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
