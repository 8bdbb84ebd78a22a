package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/sse"
)

func TestAddComment_TrimsTextAndBumpsCount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bruno, _ := e.signUp(t, "bruno")
	ana, anaID := e.signUp(t, "ana")
	post := e.publish(t, bruno, "comment on me")
	require.Zero(t, post.Comments)

	c, err := e.comments.AddComment(ctx, ana, post.ID, "  nice ")
	require.NoError(t, err)
	assert.Equal(t, "nice", c.Text)
	assert.Equal(t, anaID, c.Author.ID)
	assert.Equal(t, post.ID, c.PostID)

	stored, err := e.store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.Comments)
	assert.Contains(t, e.events.types(), sse.EventCommentAdded)

	_, err = e.comments.AddComment(ctx, ana, "pst-does-not-exist", "nice")
	requireCode(t, err, domainerrors.CodeNotFound)
	e.requireConsistent(t)
}

func TestAddComment_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, _ := e.signUp(t, "ana")
	post := e.publish(t, ana, "strict")

	tests := []struct {
		name, text, message string
	}{
		{"empty", "", "is required"},
		{"blank", " \n\t ", "is required"},
		{"too long", strings.Repeat("é", MaxCommentRunes+1), "must not exceed 1000 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.comments.AddComment(ctx, ana, post.ID, tt.text)
			requireCode(t, err, domainerrors.CodeValidation)

			var derr *domainerrors.Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, map[string]string{"text": tt.message}, derr.Details)
		})
	}

	// The limit applies after trimming.
	_, err := e.comments.AddComment(ctx, ana, post.ID, "  "+strings.Repeat("é", MaxCommentRunes)+"\n")
	require.NoError(t, err)

	stored, err := e.store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.Comments)
}

func TestListComments_OldestFirstAndOmitsVanishedAuthors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana, _ := e.signUp(t, "ana")
	bruno, brunoID := e.signUp(t, "bruno")
	post := e.publish(t, ana, "thread")

	for _, step := range []struct {
		who  string
		text string
	}{{"ana", "first"}, {"bruno", "second"}, {"ana", "third"}} {
		p := ana
		if step.who == "bruno" {
			p = bruno
		}
		_, err := e.comments.AddComment(ctx, p, post.ID, step.text)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	got, err := e.comments.ListComments(ctx, ana, post.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{got[0].Text, got[1].Text, got[2].Text})

	e.reader.hide(brunoID)
	got, err = e.comments.ListComments(ctx, ana, post.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "third", got[1].Text)

	_, err = e.comments.ListComments(ctx, ana, "pst-missing")
	requireCode(t, err, domainerrors.CodeNotFound)
}
