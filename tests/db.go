package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/storage/kv/sqldb"
)

// PrepareSQLite opens a migrated in-memory database, closed at the end of the test.
func PrepareSQLite(t *testing.T) *sqlx.DB {
	conf := core.NewTestConfig()
	conf.Store.Engine = "sqlite3"
	db, err := sqlkv.Open(conf)
	if err != nil {
		t.Fatalf("PrepareSQLite() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = sqlkv.Migrate(db); err != nil {
		t.Fatalf("PrepareSQLite() failed: %v", err)
	}
	return db
}
