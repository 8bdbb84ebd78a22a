package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtorresweb/spotlight-server/internal/logger"
)

func TestSearch_FollowsCommittedChanges(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, _ := e.signUp(t, "ana")
	bruno, _ := e.signUp(t, "bruno")
	beach := e.publish(t, ana, "Walking on the beach at sunset")
	e.publish(t, bruno, "Mountain hiking")

	users, err := e.search.SearchUsers(ctx, ana, "bruno", 0)
	require.NoError(t, err)
	require.NotEmpty(t, users)
	assert.Equal(t, "bruno", users[0].Username)

	posts, err := e.search.SearchPosts(ctx, bruno, "beaches", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{beach.ID}, postIDs(posts))

	require.NoError(t, e.posts.DeletePost(ctx, ana, beach.ID))
	posts, err = e.search.SearchPosts(ctx, bruno, "beach", 10)
	require.NoError(t, err)
	assert.Empty(t, posts)

	_, err = e.users.UpdateProfile(ctx, bruno, UpdateProfileRequest{FullName: ptr("Bruno Mountaineer")})
	require.NoError(t, err)
	users, err = e.search.SearchUsers(ctx, ana, "mountaineer", 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bruno", users[0].Username)
}

func TestSearch_NilIndex(t *testing.T) {
	e := newEnv(t)
	ana, _ := e.signUp(t, "ana")
	svc := NewSearchService(e.store, e.identity, nil, nil, logger.Discard())

	users, err := svc.SearchUsers(context.Background(), ana, "ana", 0)
	require.NoError(t, err)
	assert.Empty(t, users)
}
