package core

import (
	"context"
	"sync"
)

// KVStore is durable client-side storage for the session token, the user profile and drafts.
// Get returns ErrKeyNotFound when key is absent.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// InFlightSet guards user-triggered operations against duplicate submissions, one guard per key
// (typically a user ID). A key is only tracked while its operation runs.
// The zero value is ready to use.
type InFlightSet struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

// Begin reports whether the caller acquired the guard of key. Callers that acquired it must call End.
func (s *InFlightSet) Begin(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.busy[key]; ok {
		return false
	}
	if s.busy == nil {
		s.busy = make(map[string]struct{})
	}
	s.busy[key] = struct{}{}
	return true
}

func (s *InFlightSet) End(key string) {
	s.mu.Lock()
	delete(s.busy, key)
	s.mu.Unlock()
}

// Len returns the number of operations in flight.
func (s *InFlightSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.busy)
}

// KeyedMutex serializes work per key. A key is only tracked while it is locked or awaited.
// The zero value is ready to use.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the function releasing it.
func (km *KeyedMutex) Lock(key string) (unlock func()) {
	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[string]*keyedLock)
	}
	l, ok := km.locks[key]
	if !ok {
		l = new(keyedLock)
		km.locks[key] = l
	}
	l.refs++
	km.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		km.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}

// Len returns the number of keys locked or awaited.
func (km *KeyedMutex) Len() int {
	km.mu.Lock()
	defer km.mu.Unlock()
	return len(km.locks)
}
