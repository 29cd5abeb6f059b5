// Package worker provides the fixed-size worker pool
package worker

import (
	"fmt"
	"sync/atomic"

	"github.com/jzx17/gopool/pkg/types"
)

// taskIDCounter is the global task ID counter
var taskIDCounter int64

// TaskFunc adapts a plain closure to types.Task
type TaskFunc func()

// Run calls f()
func (f TaskFunc) Run() {
	f()
}

// ID returns an empty ID; use NewTask for tracked tasks
func (f TaskFunc) ID() string {
	return ""
}

// BasicTask is the basic implementation of Task interface
type BasicTask struct {
	id string
	fn func()
}

// NewTask creates a task with an auto-generated ID
func NewTask(fn func()) *BasicTask {
	id := atomic.AddInt64(&taskIDCounter, 1)
	return &BasicTask{
		id: fmt.Sprintf("task-%d", id),
		fn: fn,
	}
}

// NewTaskWithID creates a task with custom ID
func NewTaskWithID(id string, fn func()) *BasicTask {
	return &BasicTask{
		id: id,
		fn: fn,
	}
}

// Run executes the task
func (t *BasicTask) Run() {
	if t.fn == nil {
		panic(fmt.Sprintf("task %s has no execution function", t.id))
	}
	t.fn()
}

// ID returns the task ID
func (t *BasicTask) ID() string {
	return t.id
}

var _ types.Task = (*BasicTask)(nil)
var _ types.Task = TaskFunc(nil)
