package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	v, err := Generate(PrefixPost)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(v, PrefixPost+"-"))
	assert.Len(t, v, len(PrefixPost)+1+21)
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		v := MustGenerate(PrefixComment)
		_, dup := seen[v]
		require.False(t, dup, "duplicate id %s", v)
		seen[v] = struct{}{}
	}
}
