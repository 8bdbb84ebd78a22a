package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPost_OwnedBy(t *testing.T) {
	p := &Post{UserID: "usr-1"}

	assert.True(t, p.OwnedBy("usr-1"))
	assert.False(t, p.OwnedBy("usr-2"))
	assert.False(t, (&Post{}).OwnedBy(""))
}

func TestPost_AddToCounter(t *testing.T) {
	p := &Post{}

	n, err := p.AddToCounter(PostLikes, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = p.AddToCounter(PostComments, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(1), p.Counter(PostLikes))

	_, err = p.AddToCounter(PostCounter("followers"), 1)
	assert.Error(t, err)
}

func TestRelationKind(t *testing.T) {
	for _, k := range RelationKinds {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, RelationKind("share").Valid())

	assert.True(t, RelationLike.TargetsPost())
	assert.True(t, RelationBookmark.TargetsPost())
	assert.False(t, RelationFollow.TargetsPost())
}

func TestPrincipal_IsZero(t *testing.T) {
	assert.True(t, Principal{}.IsZero())
	assert.True(t, Principal{Email: "a@b.c"}.IsZero())
	assert.False(t, Principal{ID: "user_2abc"}.IsZero())
}
