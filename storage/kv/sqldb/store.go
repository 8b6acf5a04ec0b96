package sqlkv

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

// Store keeps entries in the kv_entries table, scoped by namespace.
type Store struct {
	db        *sqlx.DB
	namespace string
}

var _ core.KVStore = (*Store)(nil)

func NewStore(db *sqlx.DB, namespace string) *Store {
	return &Store{db: db, namespace: namespace}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	q := s.db.Rebind(`SELECT entry_value FROM kv_entries WHERE namespace = ? AND entry_key = ?`)
	if err := s.db.GetContext(ctx, &value, q, s.namespace, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", core.ErrKeyNotFound
		}
		return "", errors.Wrapf(err, "getting %s", key)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	now := time.Now().UTC()
	q := s.db.Rebind(`
		INSERT INTO kv_entries (namespace, entry_key, entry_value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (namespace, entry_key)
		DO UPDATE SET entry_value = excluded.entry_value, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, s.namespace, key, value, now, now); err != nil {
		return errors.Wrapf(err, "setting %s", key)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	q := s.db.Rebind(`DELETE FROM kv_entries WHERE namespace = ? AND entry_key = ?`)
	if _, err := s.db.ExecContext(ctx, q, s.namespace, key); err != nil {
		return errors.Wrapf(err, "removing %s", key)
	}
	return nil
}

// Keys lists the keys of the namespace, in order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	q := s.db.Rebind(`SELECT entry_key FROM kv_entries WHERE namespace = ? ORDER BY entry_key`)
	if err := s.db.SelectContext(ctx, &keys, q, s.namespace); err != nil {
		return nil, errors.Wrap(err, "listing keys")
	}
	return keys, nil
}
