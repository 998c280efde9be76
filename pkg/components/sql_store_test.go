package components

import (
	"context"
	"database/sql"
	"testing"

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

func TestCreate_GeneratesID(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Create(context.Background(), &Component{
		Name:      "poll",
		HTML:      "<div>poll</div>",
		CreatedBy: "ai-system",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreate_KeepsCallerID(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Create(context.Background(), &Component{
		ID:        "comp-fixed",
		Name:      "banner",
		CreatedBy: "ai-system",
	})
	require.NoError(t, err)
	assert.Equal(t, "comp-fixed", id)

	// Primary key collision surfaces as an error, not a silent overwrite.
	_, err = store.Create(context.Background(), &Component{
		ID:        "comp-fixed",
		Name:      "banner-2",
		CreatedBy: "ai-system",
	})
	require.Error(t, err)
}

func TestEncodeDecodeTargets(t *testing.T) {
	assert.Equal(t, "all", EncodeTargets(nil))
	assert.Equal(t, "all", EncodeTargets([]string{}))
	assert.Equal(t, "u-1,u-2", EncodeTargets([]string{"u-1", "u-2"}))

	assert.Nil(t, DecodeTargets("all"))
	assert.Nil(t, DecodeTargets(""))
	assert.Equal(t, []string{"u-1", "u-2"}, DecodeTargets("u-1,u-2"))
}
