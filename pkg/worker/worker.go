package worker

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jzx17/gopool/pkg/queue"
	"github.com/jzx17/gopool/pkg/types"
	"github.com/sirupsen/logrus"
)

// WorkerState defines the state of a Worker
type WorkerState int32

const (
	// WorkerStateIdle represents a running worker waiting for a message
	WorkerStateIdle WorkerState = iota
	// WorkerStateWorking represents a running worker executing a task
	WorkerStateWorking
	// WorkerStateTerminated represents a worker whose loop has exited
	WorkerStateTerminated
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateWorking:
		return "working"
	case WorkerStateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// PanicPolicy selects what a worker does when a task panics
type PanicPolicy int

const (
	// PanicPolicyRecover contains the panic to the task: it is reported and
	// the worker keeps serving the queue.
	PanicPolicyRecover PanicPolicy = iota

	// PanicPolicyTerminateWorker reports the panic and then stops the worker,
	// so the pool permanently loses one unit of concurrency.
	PanicPolicyTerminateWorker
)

// String returns the string representation of PanicPolicy
func (p PanicPolicy) String() string {
	switch p {
	case PanicPolicyRecover:
		return "recover"
	case PanicPolicyTerminateWorker:
		return "terminate"
	default:
		return "unknown"
	}
}

// ParsePanicPolicy parses the String form of a PanicPolicy
func ParsePanicPolicy(s string) (PanicPolicy, error) {
	switch s {
	case "recover", "":
		return PanicPolicyRecover, nil
	case "terminate":
		return PanicPolicyTerminateWorker, nil
	default:
		return PanicPolicyRecover, fmt.Errorf("unknown panic policy %q", s)
	}
}

// PanicHandler receives every task panic caught by a worker
type PanicHandler func(*types.TaskPanicError)

// Worker is one long-lived goroutine that pulls messages off the shared queue
type Worker struct {
	id    int
	state int32 // atomic WorkerState
	queue *queue.Queue
	done  chan struct{}

	// statistics
	totalProcessed int64
	totalPanicked  int64
	lastTaskTime   int64 // Unix nanosecond timestamp

	logger       logrus.FieldLogger
	clock        types.Clock
	panicPolicy  PanicPolicy
	panicHandler PanicHandler
	metrics      *Metrics

	// pool callback for syncing statistics
	completionCallback func(time.Duration, bool)

	mu sync.RWMutex
}

// NewWorker creates a new Worker with default real clock
func NewWorker(id int, q *queue.Queue) *Worker {
	return NewWorkerWithClock(id, q, types.NewRealClock())
}

// NewWorkerWithClock creates a new Worker with specified clock
func NewWorkerWithClock(id int, q *queue.Queue, clock types.Clock) *Worker {
	if clock == nil {
		clock = types.NewRealClock()
	}

	return &Worker{
		id:     id,
		state:  int32(WorkerStateIdle),
		queue:  q,
		done:   make(chan struct{}),
		logger: logrus.StandardLogger(),
		clock:  clock,
	}
}

// ID returns the Worker ID
func (w *Worker) ID() int {
	return w.id
}

// State returns the current Worker state
func (w *Worker) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&w.state))
}

// IsRunning reports whether the worker loop has not exited yet
func (w *Worker) IsRunning() bool {
	return w.State() != WorkerStateTerminated
}

// SetLogger sets the logger used for dispatch and shutdown lines
func (w *Worker) SetLogger(logger logrus.FieldLogger) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if logger != nil {
		w.logger = logger
	}
}

// SetPanicPolicy sets how task panics affect the worker
func (w *Worker) SetPanicPolicy(policy PanicPolicy) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.panicPolicy = policy
}

// SetPanicHandler sets the panic handler
func (w *Worker) SetPanicHandler(handler PanicHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.panicHandler = handler
}

// SetMetrics sets the prometheus collectors updated by this worker
func (w *Worker) SetMetrics(metrics *Metrics) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics = metrics
}

// SetCompletionCallback sets the task completion callback
func (w *Worker) SetCompletionCallback(callback func(time.Duration, bool)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.completionCallback = callback
}

// Run is the worker loop. It returns after receiving Shutdown, after the
// queue is closed and drained, or after a task panic under
// PanicPolicyTerminateWorker.
func (w *Worker) Run() {
	defer close(w.done)
	defer atomic.StoreInt32(&w.state, int32(WorkerStateTerminated))

	w.mu.RLock()
	logger := w.logger.WithField("worker_id", w.id)
	metrics := w.metrics
	w.mu.RUnlock()
	defer metrics.workerExited()

	for {
		msg, err := w.queue.Receive()
		if err != nil {
			// only reachable if the queue was closed without a Shutdown for us
			logger.WithError(err).Error("worker lost its job queue")
			return
		}

		if msg.IsShutdown() {
			logger.Info("worker disconnecting, shutdown")
			return
		}

		task := msg.Task()
		logger.WithField("task_id", task.ID()).Info("worker got a job; executing")

		if !w.processTask(logger, task) {
			logger.Warn("worker terminated by task panic")
			return
		}
	}
}

// processTask runs one task and reports whether the worker should keep going
func (w *Worker) processTask(logger logrus.FieldLogger, task types.Task) bool {
	atomic.StoreInt32(&w.state, int32(WorkerStateWorking))
	defer atomic.StoreInt32(&w.state, int32(WorkerStateIdle))

	w.mu.RLock()
	metrics := w.metrics
	policy := w.panicPolicy
	handler := w.panicHandler
	callback := w.completionCallback
	w.mu.RUnlock()

	startTime := w.clock.Now()
	atomic.StoreInt64(&w.lastTaskTime, startTime.UnixNano())
	metrics.taskStarted()

	panicErr := w.executeTask(task)

	executionTime := w.clock.Since(startTime)
	panicked := panicErr != nil
	metrics.taskFinished(executionTime, panicked)

	if panicked {
		atomic.AddInt64(&w.totalPanicked, 1)
		logger.WithError(panicErr).WithField("task_id", task.ID()).Error("task panicked")
		if handler != nil {
			handler(panicErr)
		}
	} else {
		atomic.AddInt64(&w.totalProcessed, 1)
	}

	if callback != nil {
		callback(executionTime, panicked)
	}

	return !panicked || policy != PanicPolicyTerminateWorker
}

// executeTask runs the task inside a recover boundary
func (w *Worker) executeTask(task types.Task) (panicErr *types.TaskPanicError) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)
			panicErr = types.NewTaskPanicError(task.ID(), w.id, r, string(buf[:n]))
		}
	}()

	task.Run()
	return nil
}

// Join blocks until the worker loop has exited
func (w *Worker) Join() {
	<-w.done
}

// Done returns a channel closed when the worker loop exits
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Stats gets Worker statistics
func (w *Worker) Stats() WorkerStats {
	var last time.Time
	if ns := atomic.LoadInt64(&w.lastTaskTime); ns != 0 {
		last = time.Unix(0, ns)
	}
	return WorkerStats{
		ID:             w.id,
		State:          w.State(),
		TotalProcessed: atomic.LoadInt64(&w.totalProcessed),
		TotalPanicked:  atomic.LoadInt64(&w.totalPanicked),
		LastTaskTime:   last,
	}
}

// WorkerStats defines Worker statistics
type WorkerStats struct {
	ID             int
	State          WorkerState
	TotalProcessed int64
	TotalPanicked  int64
	LastTaskTime   time.Time
}

// IsActive checks if Worker is running a task
func (ws WorkerStats) IsActive() bool {
	return ws.State == WorkerStateWorking
}

// IsIdle checks if Worker is waiting for a message
func (ws WorkerStats) IsIdle() bool {
	return ws.State == WorkerStateIdle
}
