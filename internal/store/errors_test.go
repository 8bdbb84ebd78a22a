package store_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtorresweb/spotlight-server/internal/store"
)

func TestError_Message(t *testing.T) {
	assert.Equal(t, "record not found", store.ErrNotFound.Error())

	cause := errors.New("disk i/o")
	err := store.ErrNotFound.WithCause(cause)
	assert.Contains(t, err.Error(), "record not found")
	assert.Contains(t, err.Error(), "disk i/o")
	assert.ErrorIs(t, err, cause)
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("get post: %w", store.ErrNotFound.WithMessagef("post %s", "pst-1"))

	assert.True(t, store.IsNotFound(err))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NotErrorIs(t, err, store.ErrAlreadyExists)
}

func TestCollect(t *testing.T) {
	seq := func(yield func(int, error) bool) {
		for i := range 3 {
			if !yield(i, nil) {
				return
			}
		}
	}
	got, err := store.Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)

	boom := errors.New("boom")
	failing := func(yield func(int, error) bool) {
		if !yield(1, nil) {
			return
		}
		yield(0, boom)
	}
	_, err = store.Collect(failing)
	assert.ErrorIs(t, err, boom)
}
