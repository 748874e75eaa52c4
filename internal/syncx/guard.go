// Package syncx provides small synchronization helpers.
package syncx

import "sync"

// Guard wraps a value with a mutex. Used for the cross-tick mutable state
// the flows share: the cached window handle and the chosen-reward list.
type Guard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *Guard[T] {
	return &Guard[T]{value: initial}
}

// Get returns a copy of the value.
func (g *Guard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set replaces the value.
func (g *Guard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Swap replaces the value and returns the old one.
func (g *Guard[T]) Swap(v T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.value
	g.value = v
	return old
}

// Update mutates the value under the write lock.
func (g *Guard[T]) Update(fn func(*T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
}
