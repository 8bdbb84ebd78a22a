package search

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtorresweb/spotlight-server/internal/domain"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()
	index, err := NewIndex(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func hitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

func TestNewIndex_InMemory(t *testing.T) {
	index := setupTestIndex(t)
	assert.True(t, index.Fresh())

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchUsers(t *testing.T) {
	index := setupTestIndex(t)

	require.NoError(t, index.IndexUser(&domain.User{ID: "usr-1", Username: "ana_lopez", FullName: "Ana López"}))
	require.NoError(t, index.IndexUser(&domain.User{ID: "usr-2", Username: "bruno", FullName: "Bruno Díaz"}))

	hits, err := index.SearchUsers(context.Background(), "bruno", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"usr-2"}, hitIDs(hits))
	assert.Equal(t, DocTypeUser, hits[0].Type)

	// Prefix on username.
	hits, err = index.SearchUsers(context.Background(), "ana", 10)
	require.NoError(t, err)
	assert.Contains(t, hitIDs(hits), "usr-1")

	// Typo tolerance.
	hits, err = index.SearchUsers(context.Background(), "brunp", 10)
	require.NoError(t, err)
	assert.Contains(t, hitIDs(hits), "usr-2")

	hits, err = index.SearchUsers(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchPosts(t *testing.T) {
	index := setupTestIndex(t)
	now := time.Now()

	require.NoError(t, index.IndexUser(&domain.User{ID: "usr-1", Username: "sunset"}))
	require.NoError(t, index.IndexPost(&domain.Post{ID: "pst-1", UserID: "usr-1", Caption: "Sunset over the harbor", CreatedAt: now}))
	require.NoError(t, index.IndexPost(&domain.Post{ID: "pst-2", UserID: "usr-1", Caption: "Morning coffee", CreatedAt: now}))
	require.NoError(t, index.IndexPost(&domain.Post{ID: "pst-3", UserID: "usr-1", CreatedAt: now}))

	hits, err := index.SearchPosts(context.Background(), "sunsets", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"pst-1"}, hitIDs(hits), "stemmed caption match, users excluded")

	require.NoError(t, index.DeletePost("pst-1"))
	hits, err = index.SearchPosts(context.Background(), "sunset", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Deleting twice is harmless.
	require.NoError(t, index.DeletePost("pst-1"))
}

func TestSearch_Limit(t *testing.T) {
	index := setupTestIndex(t)

	var docs []*Document
	for i := range 30 {
		docs = append(docs, PostDocument(&domain.Post{ID: "pst-" + string(rune('a'+i)), Caption: "beach day"}))
	}
	require.NoError(t, index.IndexDocuments(docs))

	hits, err := index.SearchPosts(context.Background(), "beach", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 5)

	hits, err = index.SearchPosts(context.Background(), "beach", 0)
	require.NoError(t, err)
	assert.Len(t, hits, DefaultLimit)
}

type fakeSource struct {
	users []*domain.User
	posts []*domain.Post
}

func seq[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, it := range items {
			if !yield(it, nil) {
				return
			}
		}
	}
}

func (f fakeSource) ListUsers(context.Context) iter.Seq2[*domain.User, error] { return seq(f.users) }
func (f fakeSource) ListPosts(context.Context) iter.Seq2[*domain.Post, error] { return seq(f.posts) }

func TestReindex(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexPost(&domain.Post{ID: "pst-stale", Caption: "stale"}))

	src := fakeSource{
		users: []*domain.User{{ID: "usr-1", Username: "ana"}},
		posts: []*domain.Post{{ID: "pst-1", UserID: "usr-1", Caption: "fresh bread"}},
	}
	require.NoError(t, index.Reindex(context.Background(), src))
	assert.False(t, index.Fresh())

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	hits, err := index.SearchPosts(context.Background(), "stale", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestNewIndex_OnDiskVersioning(t *testing.T) {
	dir := t.TempDir()

	index, err := NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	assert.True(t, index.Fresh())
	require.NoError(t, index.IndexUser(&domain.User{ID: "usr-1", Username: "ana"}))
	require.NoError(t, index.Close())

	// Same version: reopened with its contents.
	index, err = NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	assert.False(t, index.Fresh())
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	require.NoError(t, index.Close())

	// Outdated version: recreated empty.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spotlight.version"), []byte("0"), 0o644))
	index, err = NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer index.Close()
	assert.True(t, index.Fresh())
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}
