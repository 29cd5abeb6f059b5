/*
Package worker provides a fixed-size worker pool that runs arbitrary tasks concurrently on a bounded set of long-lived goroutines.

# Overview

A Pool owns N Workers and the sending side of one unbounded job queue:
- Workers are created once, at construction, and never resized
- Submission is an asynchronous hand-off; it never waits for the task to run
- Every submitted task runs exactly once before Close returns
- Close is a barrier: no task outlives the pool

# Core Components

## Pool

Construction, submission and teardown:
- New(size) panics on size <= 0; NewPool(config) returns types.ErrInvalidPoolSize instead
- Submit(task) queues a types.Task; Execute(fn) wraps a closure and panics on misuse
- Close broadcasts one Shutdown message per worker, then joins each worker in order

Broadcasting every Shutdown before joining anyone matters: queue delivery is not tied to
worker identity, so the Shutdown sent "for" worker 0 may be taken by worker 3. Joining
worker 0 right after sending a single Shutdown could then block forever.

## Worker

A two-state machine, Running and Terminated:
- Work(task): run the task synchronously, then wait for the next message
- Shutdown: exit without looking at anything else in the queue

Each worker logs which task it picked up and when it shuts down.

## Task

Any value implementing types.Task. BasicTask carries an ID for logging; TaskFunc adapts a bare func().

# Task Panics

PanicPolicy selects how a panicking task affects its worker:
- PanicPolicyRecover (default): the panic is recovered, wrapped in types.TaskPanicError, passed to
  PanicHandler and counted. The worker keeps serving the queue.
- PanicPolicyTerminateWorker: the panic is reported and the worker exits. The pool silently runs
  with one fewer worker for the rest of its life; Stats().Lost() exposes the shortfall.

# Ordering

Messages leave the queue in the order they were sent. Which worker receives a message is not
specified, and with more than one worker tasks may finish in any order.

# Usage Examples

Basic usage:

	pool := worker.New(4)
	defer pool.Close()

	pool.Execute(func() {
		// Execute work
	})

With configuration:

	config := worker.DefaultPoolConfig()
	config.Size = 8
	config.Logger = logger
	config.Metrics = worker.NewMetrics(prometheus.DefaultRegisterer, "myapp")

	pool, err := worker.NewPool(config)
	if err != nil {
		log.Fatal(err)
	}

	if err := pool.Submit(worker.NewTaskWithID("conn-42", handle)); err != nil {
		log.Printf("Failed to submit task: %v", err)
	}

Retrieve statistics:

	stats := pool.Stats()
	fmt.Printf("Busy Workers: %d/%d\n", stats.BusyWorkers, stats.Size)
	fmt.Printf("Total Completed: %d\n", stats.Completed)

# Configuration Options

PoolConfig supports the following configurations:
- Size: Number of worker goroutines
- Clock: Time source for execution timing
- Spawner: How worker goroutines are started (tests substitute a manual spawner)
- Logger: logrus logger for dispatch and shutdown lines
- PanicPolicy / PanicHandler: Task panic behaviour
- Metrics: Optional prometheus collectors
*/
package worker
