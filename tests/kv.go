package testutil

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
)

// TestKVStore checks the behaviour every core.KVStore implementation shares.
// store must be empty.
func TestKVStore(t *testing.T, store core.KVStore) {
	ctx := context.Background()

	_, err := store.Get(ctx, "token")
	assert.Equal(t, core.ErrKeyNotFound, errors.Cause(err), "missing key")

	require.NoError(t, store.Set(ctx, "token", "abc"))
	v, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, store.Set(ctx, "token", "def"), "overwrite")
	v, err = store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	draft := `{"draft":{"title":"Go 101 ✓"}}`
	require.NoError(t, store.Set(ctx, "courseDraft", draft))
	v, err = store.Get(ctx, "courseDraft")
	require.NoError(t, err)
	assert.Equal(t, draft, v)

	require.NoError(t, store.Remove(ctx, "token"))
	_, err = store.Get(ctx, "token")
	assert.Equal(t, core.ErrKeyNotFound, errors.Cause(err))
	require.NoError(t, store.Remove(ctx, "token"), "removing a missing key")

	v, err = store.Get(ctx, "courseDraft")
	require.NoError(t, err)
	assert.Equal(t, draft, v)
}
