package sqlkv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/storage/kv/sqldb"
	"github.com/trezcool/elimu/tests"
)

func TestStore(t *testing.T) {
	db := testutil.PrepareSQLite(t)
	testutil.TestKVStore(t, sqlkv.NewStore(db, "test"))
}

func TestStore_Namespaces(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareSQLite(t)
	alice := sqlkv.NewStore(db, "alice")
	bob := sqlkv.NewStore(db, "bob")

	require.NoError(t, alice.Set(ctx, "token", "a"))
	require.NoError(t, alice.Set(ctx, "courseDraft", "{}"))
	_, err := bob.Get(ctx, "token")
	assert.Equal(t, core.ErrKeyNotFound, err)

	keys, err := alice.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"courseDraft", "token"}, keys)
}

func TestOpen_UnsupportedEngine(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Store.Engine = "mongo"
	_, err := sqlkv.Open(conf)
	assert.Error(t, err)

	conf.Store.Engine = "postgres"
	_, err = sqlkv.Open(conf)
	assert.EqualError(t, err, "postgres store requires a DSN")
}

func TestRunMigrations_Down(t *testing.T) {
	db := testutil.PrepareSQLite(t)
	require.NoError(t, sqlkv.RunMigrations(context.Background(), db, "down"))

	_, err := sqlkv.NewStore(db, "test").Get(context.Background(), "token")
	assert.Error(t, err)
	assert.NotEqual(t, core.ErrKeyNotFound, err, "the table is gone")
}
