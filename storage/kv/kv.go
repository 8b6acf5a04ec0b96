package kv

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/storage/kv/inmem"
	"github.com/trezcool/elimu/storage/kv/redis"
	"github.com/trezcool/elimu/storage/kv/sqldb"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the key/value store selected by conf.Store.Engine, migrated and ready,
// along with what must be closed on shutdown.
func Open(ctx context.Context, conf *core.Config) (core.KVStore, io.Closer, error) {
	switch conf.Store.Engine {
	case "", "memory":
		return inmemkv.New(), nopCloser{}, nil
	case "sqlite3", "postgres":
		db, err := sqlkv.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		if err = sqlkv.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return sqlkv.NewStore(db, conf.Store.Namespace), db, nil
	case "redis":
		rdb := rediskv.NewClient(conf)
		store := rediskv.NewStore(rdb, conf.Store.Namespace)
		if err := store.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return store, rdb, nil
	default:
		return nil, nil, errors.Errorf("unknown store engine %q", conf.Store.Engine)
	}
}
