package inmemkv

import (
	"context"
	"sync"

	"github.com/trezcool/elimu/core"
)

type Store struct {
	mutex sync.RWMutex
	table map[string]string
}

var _ core.KVStore = (*Store)(nil)

func New() *Store {
	return &Store{table: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if v, ok := s.table[key]; ok {
		return v, nil
	}
	return "", core.ErrKeyNotFound
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.table[key] = value
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.table, key)
	return nil
}
