// Package testutils provides simplified testing utilities and helper functions
package testutils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ManualSpawner records worker bodies instead of starting them, so a test
// decides when (and whether) each worker begins pulling from the queue.
type ManualSpawner struct {
	mu      sync.Mutex
	pending map[int]func()
	order   []int
}

// NewManualSpawner creates an empty ManualSpawner
func NewManualSpawner() *ManualSpawner {
	return &ManualSpawner{pending: make(map[int]func())}
}

// Spawn records fn under id
func (s *ManualSpawner) Spawn(id int, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id] = fn
	s.order = append(s.order, id)
}

// IDs returns the worker ids in spawn order
func (s *ManualSpawner) IDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.order...)
}

// Start runs the recorded body for id in a new goroutine
func (s *ManualSpawner) Start(t testing.TB, id int) {
	t.Helper()

	s.mu.Lock()
	fn, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()

	require.True(t, ok, "worker %d was not spawned or already started", id)
	go fn()
}

// StartAll starts every worker not yet started, in spawn order
func (s *ManualSpawner) StartAll(t testing.TB) {
	t.Helper()
	for _, id := range s.IDs() {
		s.mu.Lock()
		_, ok := s.pending[id]
		s.mu.Unlock()
		if ok {
			s.Start(t, id)
		}
	}
}

// Recorder is a thread-safe collector of values produced by tasks
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

// Add appends v
func (r *Recorder[T]) Add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

// Values returns a copy of everything recorded, in recording order
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

// Len returns the number of recorded values
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// WaitDone fails the test if fn does not return within timeout
func WaitDone(t testing.TB, timeout time.Duration, fn func()) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("did not finish within %v", timeout)
	}
}
