package states

import (
	"sync"
)

// Store is an in-memory per-user state table.
type Store[T any] struct {
	mutex  sync.RWMutex
	states map[int64]T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{states: make(map[int64]T)}
}

func (s *Store[T]) Set(userID int64, state T) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.states[userID] = state
}

func (s *Store[T]) Get(userID int64) (T, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	state, ok := s.states[userID]
	return state, ok
}

func (s *Store[T]) Clear(userID int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.states, userID)
}

func (s *Store[T]) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.states)
}
