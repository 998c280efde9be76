package repo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClientFor(srv *httptest.Server) *GitHubClient {
	return NewGitHubClient(GitHubConfig{
		Token:   "test-token",
		Owner:   "xtoazt",
		Repo:    "gummybear",
		BaseURL: srv.URL,
	})
}

func TestGetFileRevision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/repos/xtoazt/gummybear/contents/main.go", r.URL.Path)
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"sha": "abc123"})
	}))
	defer srv.Close()

	rev, err := newClientFor(srv).GetFileRevision(context.Background(), "main.go", "main")
	require.NoError(t, err)
	assert.Equal(t, "abc123", rev)
}

func TestGetFileRevision_NestedPathKeepsSlashes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/xtoazt/gummybear/contents/src/pages/app%20shell.ts", r.URL.EscapedPath(),
			"directory separators stay literal, segment contents still escape")
		_ = json.NewEncoder(w).Encode(map[string]string{"sha": "def456"})
	}))
	defer srv.Close()

	rev, err := newClientFor(srv).GetFileRevision(context.Background(), "src/pages/app shell.ts", "main")
	require.NoError(t, err)
	assert.Equal(t, "def456", rev)
}

func TestGetFileRevision_Missing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newClientFor(srv).GetFileRevision(context.Background(), "ghost.go", "main")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetFileRevision_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "rate limited"})
	}))
	defer srv.Close()

	_, err := newClientFor(srv).GetFileRevision(context.Background(), "main.go", "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestWriteFile_NewFile(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newClientFor(srv).WriteFile(context.Background(), "new.go", "package new", "add file", "main", "")
	require.NoError(t, err)

	assert.Equal(t, "add file", payload["message"])
	assert.Equal(t, "main", payload["branch"])
	assert.NotContains(t, payload, "sha", "new files write without a revision token")

	decoded, err := base64.StdEncoding.DecodeString(payload["content"].(string))
	require.NoError(t, err)
	assert.Equal(t, "package new", string(decoded))
}

func TestWriteFile_ExistingFileSendsRevision(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newClientFor(srv).WriteFile(context.Background(), "main.go", "package main", "update", "main", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", payload["sha"])
}

func TestWriteFile_ConflictSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "main.go does not match abc123"})
	}))
	defer srv.Close()

	err := newClientFor(srv).WriteFile(context.Background(), "main.go", "x", "update", "main", "abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}
