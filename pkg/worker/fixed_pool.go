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

// PoolConfig defines configuration for the fixed worker pool
type PoolConfig struct {
	// Size is the number of workers; it never changes after construction
	Size int

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Spawner starts worker goroutines (optional, defaults to types.GoSpawner)
	Spawner types.Spawner

	// Logger receives dispatch and shutdown lines (optional, defaults to the logrus standard logger)
	Logger logrus.FieldLogger

	// PanicPolicy decides whether a panicking task costs the pool a worker
	PanicPolicy PanicPolicy

	// PanicHandler is called for every recovered task panic (optional)
	PanicHandler PanicHandler

	// Metrics receives prometheus updates (optional)
	Metrics *Metrics
}

// DefaultPoolConfig returns default configuration
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Size:        runtime.NumCPU(),
		Clock:       types.NewRealClock(),
		Spawner:     types.NewGoSpawner(),
		Logger:      logrus.StandardLogger(),
		PanicPolicy: PanicPolicyRecover,
	}
}

// Pool owns a fixed set of workers and the sending side of their job queue.
//
// Tasks are handed off asynchronously by Submit or Execute. Close broadcasts
// one Shutdown per worker and then joins every worker, so no task outlives it.
type Pool struct {
	config  *PoolConfig
	workers []*Worker
	queue   *queue.Queue
	logger  logrus.FieldLogger

	// statistics
	submitted int64
	completed int64
	panicked  int64

	// closed is guarded by mu so that a Submit cannot slip in behind the
	// Shutdown messages sent by Close
	closed    bool
	closeOnce sync.Once
	mu        sync.RWMutex
}

// New creates a pool with size workers using default settings.
// It panics if size is not positive.
func New(size int) *Pool {
	config := DefaultPoolConfig()
	config.Size = size

	pool, err := NewPool(config)
	if err != nil {
		panic(err)
	}
	return pool
}

// NewPool creates a pool from config and starts its workers
func NewPool(config *PoolConfig) (*Pool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}

	if config.Size <= 0 {
		return nil, fmt.Errorf("%w, got %d", types.ErrInvalidPoolSize, config.Size)
	}

	if config.Clock == nil {
		config.Clock = types.NewRealClock()
	}
	if config.Spawner == nil {
		config.Spawner = types.NewGoSpawner()
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	pool := &Pool{
		config:  config,
		workers: make([]*Worker, config.Size),
		queue:   queue.New(),
		logger:  config.Logger.WithField("pool_size", config.Size),
	}

	for i := 0; i < config.Size; i++ {
		worker := NewWorkerWithClock(i, pool.queue, config.Clock)
		worker.SetLogger(config.Logger)
		worker.SetPanicPolicy(config.PanicPolicy)
		worker.SetPanicHandler(config.PanicHandler)
		worker.SetMetrics(config.Metrics)
		worker.SetCompletionCallback(pool.onTaskDone)
		pool.workers[i] = worker
	}

	for _, worker := range pool.workers {
		config.Metrics.workerStarted()
		config.Spawner.Spawn(worker.ID(), worker.Run)
	}

	return pool, nil
}

// onTaskDone syncs pool-level counters from a worker
func (p *Pool) onTaskDone(_ time.Duration, panicked bool) {
	if panicked {
		atomic.AddInt64(&p.panicked, 1)
	} else {
		atomic.AddInt64(&p.completed, 1)
	}
}

// Submit hands task to some idle worker. It returns as soon as the task is
// queued and never waits for it to run.
func (p *Pool) Submit(task types.Task) error {
	if task == nil {
		return types.ErrNilTask
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return types.ErrPoolClosed
	}

	if err := p.queue.Send(queue.Work(task)); err != nil {
		return fmt.Errorf("%w: %v", types.ErrPoolClosed, err)
	}

	atomic.AddInt64(&p.submitted, 1)
	p.config.Metrics.taskSubmitted()
	return nil
}

// Execute submits fn as a task. Submitting to a closed pool is a programming
// error and panics.
func (p *Pool) Execute(fn func()) {
	if fn == nil {
		panic(types.ErrNilTask)
	}
	if err := p.Submit(NewTask(fn)); err != nil {
		panic(err)
	}
}

// Close shuts the pool down and blocks until every worker has exited.
// Queued tasks ahead of the Shutdown messages still run. Calls after the
// first are no-ops.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.logger.Info("shutting down all workers")

		p.mu.Lock()
		p.closed = true
		// phase 1: every worker gets exactly one Shutdown before anyone is joined
		for range p.workers {
			if err := p.queue.Send(queue.Shutdown()); err != nil {
				p.mu.Unlock()
				panic(fmt.Errorf("broadcast shutdown: %w", err))
			}
		}
		p.queue.Close()
		p.mu.Unlock()

		// phase 2
		for _, worker := range p.workers {
			worker.Join()
		}

		p.logger.Info("all workers shut down")
	})

	return nil
}

// Size returns the worker pool size
func (p *Pool) Size() int {
	return p.config.Size
}

// IsClosed checks if Close has been called
func (p *Pool) IsClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// QueueLength gets the current number of queued messages
func (p *Pool) QueueLength() int {
	return p.queue.Len()
}

// Stats gets worker pool statistics
func (p *Pool) Stats() types.PoolStats {
	var alive, busy int
	for _, worker := range p.workers {
		switch worker.State() {
		case WorkerStateWorking:
			alive++
			busy++
		case WorkerStateIdle:
			alive++
		}
	}

	return types.PoolStats{
		Size:         p.config.Size,
		AliveWorkers: alive,
		BusyWorkers:  busy,
		Queued:       p.queue.Len(),
		Submitted:    atomic.LoadInt64(&p.submitted),
		Completed:    atomic.LoadInt64(&p.completed),
		Panicked:     atomic.LoadInt64(&p.panicked),
	}
}

// GetWorkerStats gets statistics of all Workers
func (p *Pool) GetWorkerStats() []WorkerStats {
	stats := make([]WorkerStats, len(p.workers))
	for i, worker := range p.workers {
		stats[i] = worker.Stats()
	}
	return stats
}
