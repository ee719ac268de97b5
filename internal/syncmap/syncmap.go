// Package syncmap is a small generic wrapper around a mutex guarded map.
package syncmap

import (
	"sync"
)

type Syncmap[Key comparable, Value any] struct {
	m        sync.RWMutex
	internal map[Key]Value
}

func New[Key comparable, Value any]() Syncmap[Key, Value] {
	return Syncmap[Key, Value]{
		internal: map[Key]Value{},
	}
}

func (s *Syncmap[Key, Value]) Get(key Key) (Value, bool) {
	s.m.RLock()
	value, ok := s.internal[key]
	s.m.RUnlock()
	return value, ok
}

func (s *Syncmap[Key, Value]) Set(key Key, value Value) {
	s.m.Lock()
	s.internal[key] = value
	s.m.Unlock()
}

func (s *Syncmap[Key, Value]) Delete(key Key) {
	s.m.Lock()
	delete(s.internal, key)
	s.m.Unlock()
}

// Clear drops every entry.
func (s *Syncmap[Key, Value]) Clear() {
	s.m.Lock()
	s.internal = map[Key]Value{}
	s.m.Unlock()
}

func (s *Syncmap[Key, Value]) Len() int {
	s.m.RLock()
	defer s.m.RUnlock()
	return len(s.internal)
}

func (s *Syncmap[Key, Value]) Keys() []Key {
	keys := []Key{}
	s.m.RLock()
	defer s.m.RUnlock()

	for key := range s.internal {
		keys = append(keys, key)
	}

	return keys
}

func (s *Syncmap[Key, Value]) Values() []Value {
	values := []Value{}
	s.m.RLock()
	defer s.m.RUnlock()

	for _, value := range s.internal {
		values = append(values, value)
	}

	return values
}
