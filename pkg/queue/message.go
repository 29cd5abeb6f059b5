package queue

import "github.com/jzx17/gopool/pkg/types"

// MessageKind tags the variant carried by a Message
type MessageKind int

const (
	// KindWork carries one task to run
	KindWork MessageKind = iota
	// KindShutdown tells the receiving worker to exit
	KindShutdown
)

// String returns the string representation of MessageKind
func (k MessageKind) String() string {
	switch k {
	case KindWork:
		return "work"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Message is either Work(task) or Shutdown.
type Message struct {
	kind MessageKind
	task types.Task
}

// Work wraps a task for delivery
func Work(task types.Task) Message {
	return Message{kind: KindWork, task: task}
}

// Shutdown builds a termination signal
func Shutdown() Message {
	return Message{kind: KindShutdown}
}

// Kind returns the message variant
func (m Message) Kind() MessageKind {
	return m.kind
}

// IsShutdown reports whether m is a termination signal
func (m Message) IsShutdown() bool {
	return m.kind == KindShutdown
}

// Task returns the carried task, nil for Shutdown
func (m Message) Task() types.Task {
	return m.task
}
