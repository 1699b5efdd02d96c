// Package decaymap is a simple in-memory key/value map where every entry has
// an expiry time. Expiry is checked lazily on access; Cleanup sweeps out
// anything that has decayed.
package decaymap

import (
	"sync"
	"time"
)

func zilch[T any]() T {
	var zero T
	return zero
}

type entry[V any] struct {
	value  V
	expiry time.Time
}

// Impl is a map of K to V with expiry times attached to each entry. All
// operations are safe for concurrent use.
type Impl[K comparable, V any] struct {
	data map[K]entry[V]
	lock sync.Mutex
	now  func() time.Time
}

func New[K comparable, V any]() *Impl[K, V] {
	return &Impl[K, V]{
		data: map[K]entry[V]{},
		now:  time.Now,
	}
}

// expire removes a key if its entry has decayed. Callers must hold the lock.
func (m *Impl[K, V]) expire(key K) bool {
	ent, ok := m.data[key]
	if !ok {
		return false
	}

	if m.now().After(ent.expiry) {
		delete(m.data, key)
		return true
	}

	return false
}

// Get fetches a value without consuming it.
func (m *Impl[K, V]) Get(key K) (V, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.expire(key) {
		return zilch[V](), false
	}

	ent, ok := m.data[key]
	if !ok {
		return zilch[V](), false
	}

	return ent.value, true
}

// Take atomically fetches and deletes a value. The expiry check and the
// deletion happen under one critical section, so two racing callers can never
// both observe the value.
func (m *Impl[K, V]) Take(key K) (V, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.expire(key) {
		return zilch[V](), false
	}

	ent, ok := m.data[key]
	if !ok {
		return zilch[V](), false
	}

	delete(m.data, key)
	return ent.value, true
}

// Set stores a value under key for ttl, overwriting any prior value.
func (m *Impl[K, V]) Set(key K, value V, ttl time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.data[key] = entry[V]{
		value:  value,
		expiry: m.now().Add(ttl),
	}
}

// Delete removes a key, reporting whether an unexpired entry was present.
func (m *Impl[K, V]) Delete(key K) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.expire(key) {
		return false
	}

	_, ok := m.data[key]
	if ok {
		delete(m.data, key)
	}

	return ok
}

// Cleanup sweeps out every expired entry.
func (m *Impl[K, V]) Cleanup() {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	for key, ent := range m.data {
		if now.After(ent.expiry) {
			delete(m.data, key)
		}
	}
}

// Len reports the number of entries, including any that have decayed but not
// yet been swept.
func (m *Impl[K, V]) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.data)
}
