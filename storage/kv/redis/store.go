package rediskv

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/elimu/core"
)

// Store keeps entries as plain redis strings under "<namespace>:<key>".
type Store struct {
	rdb       *redis.Client
	namespace string
}

var _ core.KVStore = (*Store)(nil)

func NewClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Store.RedisAddr,
		Password: conf.Store.RedisPassword,
		DB:       conf.Store.RedisDB,
	})
}

func NewStore(rdb *redis.Client, namespace string) *Store {
	return &Store{rdb: rdb, namespace: namespace}
}

func (s *Store) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

func (s *Store) Ping(ctx context.Context) error {
	return errors.Wrap(s.rdb.Ping(ctx).Err(), "pinging redis")
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", core.ErrKeyNotFound
		}
		return "", errors.Wrapf(err, "getting %s", key)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return errors.Wrapf(s.rdb.Set(ctx, s.key(key), value, 0).Err(), "setting %s", key)
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return errors.Wrapf(s.rdb.Del(ctx, s.key(key)).Err(), "removing %s", key)
}
