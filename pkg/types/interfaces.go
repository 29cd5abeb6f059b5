// Package types defines core interfaces and types for the worker pool
package types

// Task is a single-invocation unit of work. The pool never inspects its state
// or observes a result.
type Task interface {
	// Run executes the task. It is called exactly once.
	Run()

	// ID returns the task ID (for logging and tracking)
	ID() string
}

// Spawner starts the long-lived goroutine backing a worker.
// Tests substitute their own implementation to control scheduling.
type Spawner interface {
	// Spawn runs fn on a new thread of execution. id is the worker ID.
	Spawn(id int, fn func())
}

// SpawnerFunc adapts an ordinary function to the Spawner interface
type SpawnerFunc func(id int, fn func())

// Spawn calls f(id, fn)
func (f SpawnerFunc) Spawn(id int, fn func()) {
	f(id, fn)
}

// GoSpawner starts workers as plain goroutines
type GoSpawner struct{}

// NewGoSpawner creates the default goroutine spawner
func NewGoSpawner() Spawner {
	return GoSpawner{}
}

// Spawn starts fn in a new goroutine
func (GoSpawner) Spawn(_ int, fn func()) {
	go fn()
}

// PoolStats defines statistics for a worker pool
type PoolStats struct {
	// Size is the fixed number of workers the pool was built with
	Size int

	// AliveWorkers is the number of workers that have not terminated
	AliveWorkers int

	// BusyWorkers is the number of workers currently running a task
	BusyWorkers int

	// Queued is the number of messages waiting in the job queue
	Queued int

	// Submitted is the total number of tasks accepted
	Submitted int64

	// Completed is the total number of tasks that returned normally
	Completed int64

	// Panicked is the total number of tasks that panicked
	Panicked int64
}

// Lost returns how many workers have exited while the pool is still open
func (s PoolStats) Lost() int {
	return s.Size - s.AliveWorkers
}
