package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/dto"
	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/sse"
)

func postIDs(posts []*dto.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestToggleBookmark_ListsOnlyBookmarkedPosts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	author, _ := e.signUp(t, "bruno")
	viewer, viewerID := e.signUp(t, "ana")
	post := e.publish(t, author, "keep this")
	e.publish(t, author, "not this")

	res, err := e.posts.ToggleBookmark(ctx, viewer, post.ID)
	require.NoError(t, err)
	assert.True(t, res.Bookmarked)

	got, err := e.posts.GetBookmarkedPosts(ctx, viewer)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, post.ID, got[0].ID)
	assert.True(t, got[0].IsBookmarked)

	res, err = e.posts.ToggleBookmark(ctx, viewer, post.ID)
	require.NoError(t, err)
	assert.False(t, res.Bookmarked)

	got, err = e.posts.GetBookmarkedPosts(ctx, viewer)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Bookmark events go only to the bookmarking user.
	for _, ev := range e.events.events {
		if ev.Type == sse.EventPostBookmarked {
			assert.Equal(t, viewerID, ev.UserID)
		}
	}
}

func TestGetFeedPosts_NewestFirstWithFlags(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	author, _ := e.signUp(t, "bruno")
	viewer, _ := e.signUp(t, "ana")

	var want []string
	for _, caption := range []string{"one", "two", "three", "four"} {
		p := e.publish(t, author, caption)
		want = append([]string{p.ID}, want...)
		time.Sleep(time.Millisecond)
	}

	_, err := e.posts.ToggleLike(ctx, viewer, want[1])
	require.NoError(t, err)

	got, err := e.posts.GetFeedPosts(ctx, viewer)
	require.NoError(t, err)
	assert.Equal(t, want, postIDs(got))
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].CreatedAt.After(got[i-1].CreatedAt))
	}
	assert.True(t, got[1].IsLiked)
	assert.EqualValues(t, 1, got[1].Likes)
	assert.False(t, got[0].IsLiked)
	assert.Equal(t, "bruno", got[0].Author.Username)
}

func TestGetFeedPosts_OmitsPostsOfVanishedAuthors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, _ := e.signUp(t, "ana")
	bruno, brunoID := e.signUp(t, "bruno")
	kept := e.publish(t, ana, "stays")
	e.publish(t, bruno, "goes")

	e.reader.hide(brunoID)

	got, err := e.posts.GetFeedPosts(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, postIDs(got))
}

func TestGetPostsByUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, anaID := e.signUp(t, "ana")
	bruno, brunoID := e.signUp(t, "bruno")
	mine := e.publish(t, ana, "mine")
	theirs := e.publish(t, bruno, "theirs")

	got, err := e.posts.GetPostsByUser(ctx, ana, "")
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, postIDs(got))

	got, err = e.posts.GetPostsByUser(ctx, ana, brunoID)
	require.NoError(t, err)
	assert.Equal(t, []string{theirs.ID}, postIDs(got))

	got, err = e.posts.GetPostsByUser(ctx, ana, "usr-nobody")
	require.NoError(t, err)
	assert.Empty(t, got)

	me, err := e.users.GetMe(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, anaID, me.ID)
	assert.EqualValues(t, 1, me.Posts)

	// Posts whose author can no longer be resolved are omitted.
	e.reader.hide(brunoID)
	got, err = e.posts.GetPostsByUser(ctx, ana, brunoID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreatePost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, anaID := e.signUp(t, "ana")

	t.Run("publishes an uploaded image", func(t *testing.T) {
		up, err := e.posts.Upload(ctx, ana, pngBytes(t, 42))
		require.NoError(t, err)
		assert.Equal(t, "image/png", up.ContentType)
		assert.NotEmpty(t, up.BlurHash)
		assert.Contains(t, up.URL, up.StorageID)

		post, err := e.posts.CreatePost(ctx, ana, CreatePostRequest{
			StorageID: up.StorageID,
			Caption:   "  <p>Hello <strong>world</strong></p>  ",
		})
		require.NoError(t, err)
		assert.Equal(t, "Hello **world**", post.Caption)
		assert.Equal(t, up.URL, post.ImageURL)
		assert.Equal(t, anaID, post.Author.ID)
		assert.Contains(t, e.events.types(), sse.EventPostCreated)
		e.requireConsistent(t)
	})

	t.Run("blur hash defaults to the stored image's", func(t *testing.T) {
		up, err := e.posts.Upload(ctx, ana, pngBytes(t, 43))
		require.NoError(t, err)

		post, err := e.posts.CreatePost(ctx, ana, CreatePostRequest{StorageID: up.StorageID})
		require.NoError(t, err)
		assert.Equal(t, up.BlurHash, post.BlurHash)

		stored, err := e.store.GetPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, up.BlurHash, stored.BlurHash)
	})

	t.Run("explicit blur hash is kept", func(t *testing.T) {
		up, err := e.posts.Upload(ctx, ana, pngBytes(t, 44))
		require.NoError(t, err)

		post, err := e.posts.CreatePost(ctx, ana, CreatePostRequest{StorageID: up.StorageID, BlurHash: "LEHV6nWB2yk8"})
		require.NoError(t, err)
		assert.Equal(t, "LEHV6nWB2yk8", post.BlurHash)
	})

	t.Run("missing image", func(t *testing.T) {
		_, err := e.posts.CreatePost(ctx, ana, CreatePostRequest{StorageID: "0000.png"})
		requireCode(t, err, domainerrors.CodeNotFound)
	})

	t.Run("missing storage id", func(t *testing.T) {
		_, err := e.posts.CreatePost(ctx, ana, CreatePostRequest{})
		requireCode(t, err, domainerrors.CodeValidation)
	})

	t.Run("upload rejects non-images", func(t *testing.T) {
		_, err := e.posts.Upload(ctx, ana, []byte("plain text, not a picture"))
		requireCode(t, err, domainerrors.CodeValidation)

		_, err = e.posts.Upload(ctx, ana, nil)
		requireCode(t, err, domainerrors.CodeValidation)
	})
}

func TestGetPost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, _ := e.signUp(t, "ana")
	post := e.publish(t, ana, "single")

	got, err := e.posts.GetPost(ctx, ana, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)

	_, err = e.posts.GetPost(ctx, ana, "pst-missing")
	requireCode(t, err, domainerrors.CodeNotFound)
}

func TestDeletePost_CascadesAndReleasesImage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	author, authorID := e.signUp(t, "bruno")
	viewer, viewerID := e.signUp(t, "ana")
	post := e.publish(t, author, "short lived")

	_, err := e.posts.ToggleLike(ctx, viewer, post.ID)
	require.NoError(t, err)
	_, err = e.posts.ToggleBookmark(ctx, viewer, post.ID)
	require.NoError(t, err)
	_, err = e.comments.AddComment(ctx, viewer, post.ID, "nice")
	require.NoError(t, err)

	require.NoError(t, e.posts.DeletePost(ctx, author, post.ID))

	_, err = e.store.GetPost(ctx, post.ID)
	assert.Error(t, err)
	for _, kind := range []domain.RelationKind{domain.RelationLike, domain.RelationBookmark} {
		ok, err := e.store.RelationExists(ctx, kind, viewerID, post.ID)
		require.NoError(t, err)
		assert.False(t, ok, kind)
	}
	n, err := e.store.CountComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	owner, err := e.store.GetUser(ctx, authorID)
	require.NoError(t, err)
	assert.Zero(t, owner.Posts)

	exists, err := e.objects.Exists(ctx, post.StorageID)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Contains(t, e.events.types(), sse.EventPostDeleted)
	e.requireConsistent(t)

	err = e.posts.DeletePost(ctx, author, post.ID)
	requireCode(t, err, domainerrors.CodeNotFound)
}

func TestDeletePost_KeepsSharedImage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, _ := e.signUp(t, "ana")

	up, err := e.posts.Upload(ctx, ana, pngBytes(t, 7))
	require.NoError(t, err)
	first, err := e.posts.CreatePost(ctx, ana, CreatePostRequest{StorageID: up.StorageID})
	require.NoError(t, err)
	_, err = e.posts.CreatePost(ctx, ana, CreatePostRequest{StorageID: up.StorageID, Caption: "again"})
	require.NoError(t, err)

	require.NoError(t, e.posts.DeletePost(ctx, ana, first.ID))

	exists, err := e.objects.Exists(ctx, up.StorageID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeletePost_ForbiddenForNonOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	author, _ := e.signUp(t, "bruno")
	other, _ := e.signUp(t, "ana")
	post := e.publish(t, author, "mine only")

	err := e.posts.DeletePost(ctx, other, post.ID)
	requireCode(t, err, domainerrors.CodeForbidden)

	_, err = e.store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	e.requireConsistent(t)
}
