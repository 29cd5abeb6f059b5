// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrInvalidPoolSize indicates a pool was requested with no workers
	ErrInvalidPoolSize = errors.New("pool size must be positive")

	// ErrPoolClosed indicates a submission after teardown began
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrChannelClosed indicates the job queue's sending side is gone
	ErrChannelClosed = errors.New("job queue is closed")

	// ErrNilTask indicates a nil task was submitted
	ErrNilTask = errors.New("task cannot be nil")
)

// TaskPanicError records a panic raised by a task while a worker executed it.
type TaskPanicError struct {
	// TaskID is the ID of the task that panicked
	TaskID string

	// WorkerID is the worker that was running the task
	WorkerID int

	// Value is the value passed to panic
	Value interface{}

	// Stack is the goroutine stack captured at recovery
	Stack string

	// Context contains additional error context information
	Context map[string]interface{}
}

// NewTaskPanicError creates a new TaskPanicError
func NewTaskPanicError(taskID string, workerID int, value interface{}, stack string) *TaskPanicError {
	return &TaskPanicError{
		TaskID:   taskID,
		WorkerID: workerID,
		Value:    value,
		Stack:    stack,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("task %s panicked on worker %d: %v", e.TaskID, e.WorkerID, e.Value)
}

// Unwrap returns the panic value when it is itself an error
func (e *TaskPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// WithContext adds error context
func (e *TaskPanicError) WithContext(key string, value interface{}) *TaskPanicError {
	e.Context[key] = value
	return e
}

// IsTaskPanic reports whether err wraps a TaskPanicError
func IsTaskPanic(err error) bool {
	var panicErr *TaskPanicError
	return errors.As(err, &panicErr)
}
