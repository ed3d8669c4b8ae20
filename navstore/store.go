// Package navstore keeps navigation parameters shared between receiver
// goroutines. Readers always get a copy, never a reference into the map.
package navstore

import (
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Store is a concurrent map keyed by satellite id ("G05"). T should be a
// value type so that Snapshot hands out an independent copy.
type Store[T any] struct {
	m cmap.ConcurrentMap[string, T]
}

func New[T any]() *Store[T] {
	return &Store[T]{m: cmap.New[T]()}
}

func (s *Store[T]) Set(id string, v T) {
	s.m.Set(id, v)
}

// Update replaces the entry for id with fn(old, ok) atomically.
func (s *Store[T]) Update(id string, fn func(old T, ok bool) T) T {
	return s.m.Upsert(id, *new(T), func(exist bool, old T, _ T) T {
		return fn(old, exist)
	})
}

func (s *Store[T]) Snapshot(id string) (T, bool) {
	return s.m.Get(id)
}

func (s *Store[T]) Remove(id string) {
	s.m.Remove(id)
}

func (s *Store[T]) Size() int {
	return s.m.Count()
}

// Keys returns the stored ids in sorted order.
func (s *Store[T]) Keys() []string {
	keys := s.m.Keys()
	sort.Strings(keys)
	return keys
}

// Copy returns a point-in-time copy of the whole store.
func (s *Store[T]) Copy() map[string]T {
	return s.m.Items()
}
