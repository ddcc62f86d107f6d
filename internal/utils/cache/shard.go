package cache

import "sync"

type shard[K comparable, V any] struct {
	entries map[K]V
	lock    sync.RWMutex
}

func (s *shard[K, V]) set(k K, v V) {
	s.lock.Lock()
	s.entries[k] = v
	s.lock.Unlock()
}

func (s *shard[K, V]) get(k K) (V, bool) {
	s.lock.RLock()
	v, ok := s.entries[k]
	s.lock.RUnlock()
	return v, ok
}

func (s *shard[K, V]) del(k K) {
	s.lock.Lock()
	delete(s.entries, k)
	s.lock.Unlock()
}
