package messages

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

func TestCreate_DefaultsToTextType(t *testing.T) {
	store := newTestStore(t)

	msg, err := store.Create(context.Background(), "u-1", "hello", "global", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, TypeText, msg.Type)
	assert.Empty(t, msg.RecipientID)
}

func TestCreate_DirectMessageKeepsRecipient(t *testing.T) {
	store := newTestStore(t)

	msg, err := store.Create(context.Background(), "u-1", "psst", "dm", "u-2", TypeText)
	require.NoError(t, err)

	got, err := store.GetChannelMessages(context.Background(), "dm", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, msg.ID, got[0].ID)
	assert.Equal(t, "u-2", got[0].RecipientID)
}

func TestGetChannelMessages_NewestFirstWithLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := base
	store.WithClock(func() time.Time { return now })

	for i, content := range []string{"one", "two", "three"} {
		now = base.Add(time.Duration(i) * time.Minute)
		_, err := store.Create(ctx, "u-1", content, "global", "", TypeText)
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, "u-1", "elsewhere", "support", "", TypeText)
	require.NoError(t, err)

	got, err := store.GetChannelMessages(ctx, "global", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "three", got[0].Content)
	assert.Equal(t, "two", got[1].Content)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestGetChannelMessages_EmptyChannel(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetChannelMessages(context.Background(), "ghost-town", 50)
	require.NoError(t, err)
	assert.Empty(t, got)
}
