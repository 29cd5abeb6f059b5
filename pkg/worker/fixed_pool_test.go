package worker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jzx17/gopool/internal/testutils"
	"github.com/jzx17/gopool/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietConfig(size int) *PoolConfig {
	logger, _ := logtest.NewNullLogger()
	config := DefaultPoolConfig()
	config.Size = size
	config.Logger = logger
	return config
}

func newQuietPool(t testing.TB, size int) *Pool {
	pool, err := NewPool(quietConfig(size))
	require.NoError(t, err)
	return pool
}

func TestNewPool(t *testing.T) {
	tests := []struct {
		name        string
		config      *PoolConfig
		expectError bool
	}{
		{
			name:        "nil config should use default",
			config:      nil,
			expectError: false,
		},
		{
			name:        "valid config",
			config:      quietConfig(5),
			expectError: false,
		},
		{
			name:        "zero pool size should error",
			config:      quietConfig(0),
			expectError: true,
		},
		{
			name:        "negative pool size should error",
			config:      quietConfig(-1),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := NewPool(tt.config)

			if tt.expectError {
				assert.ErrorIs(t, err, types.ErrInvalidPoolSize)
				assert.Nil(t, pool)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, pool)
			defer pool.Close()

			if tt.config != nil {
				assert.Equal(t, tt.config.Size, pool.Size())
			} else {
				assert.Greater(t, pool.Size(), 0)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("positive size", func(t *testing.T) {
		logrus.SetOutput(io.Discard)
		defer logrus.SetOutput(os.Stderr)

		pool := New(3)
		assert.Equal(t, 3, pool.Size())
		assert.NoError(t, pool.Close())
	})

	t.Run("zero size panics", func(t *testing.T) {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected New(0) to panic")
			err, ok := r.(error)
			require.True(t, ok)
			assert.True(t, errors.Is(err, types.ErrInvalidPoolSize))
		}()
		New(0)
	})
}

func TestPool_CloseWithoutTasks(t *testing.T) {
	for _, n := range []int{1, 2, 4, 16} {
		t.Run(fmt.Sprintf("%d workers", n), func(t *testing.T) {
			var spawned int64
			config := quietConfig(n)
			config.Spawner = types.SpawnerFunc(func(id int, fn func()) {
				atomic.AddInt64(&spawned, 1)
				go fn()
			})

			pool, err := NewPool(config)
			require.NoError(t, err)
			assert.Equal(t, int64(n), atomic.LoadInt64(&spawned))

			testutils.WaitDone(t, 5*time.Second, func() {
				assert.NoError(t, pool.Close())
			})

			for _, ws := range pool.GetWorkerStats() {
				assert.Equal(t, WorkerStateTerminated, ws.State)
			}
			stats := pool.Stats()
			assert.Equal(t, 0, stats.AliveWorkers)
			assert.Equal(t, 0, stats.Queued)
		})
	}
}

func TestPool_EveryTaskRunsExactlyOnce(t *testing.T) {
	for _, k := range []int{0, 1, 3, 4, 50, 1000} {
		t.Run(fmt.Sprintf("%d tasks", k), func(t *testing.T) {
			pool := newQuietPool(t, 4)

			var ids testutils.Recorder[int]
			for i := 0; i < k; i++ {
				id := i
				pool.Execute(func() {
					ids.Add(id)
				})
			}

			require.NoError(t, pool.Close())

			got := ids.Values()
			assert.Len(t, got, k)

			seen := make(map[int]bool, k)
			for _, id := range got {
				assert.False(t, seen[id], "task %d ran twice", id)
				seen[id] = true
			}
			assert.Len(t, seen, k)

			stats := pool.Stats()
			assert.Equal(t, int64(k), stats.Submitted)
			assert.Equal(t, int64(k), stats.Completed)
		})
	}
}

func TestPool_CloseWaitsForInFlightTasks(t *testing.T) {
	pool := newQuietPool(t, 3)

	const d = 50 * time.Millisecond
	var finished int64
	pool.Execute(func() {
		time.Sleep(d)
		atomic.StoreInt64(&finished, 1)
	})

	start := time.Now()
	require.NoError(t, pool.Close())

	assert.GreaterOrEqual(t, time.Since(start), d-5*time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&finished))
}

func TestPool_TwoWorkersRunInParallel(t *testing.T) {
	pool := newQuietPool(t, 2)

	var indices testutils.Recorder[int]
	start := time.Now()
	for i := 0; i < 2; i++ {
		idx := i
		pool.Execute(func() {
			time.Sleep(100 * time.Millisecond)
			indices.Add(idx)
		})
	}
	require.NoError(t, pool.Close())
	elapsed := time.Since(start)

	assert.ElementsMatch(t, []int{0, 1}, indices.Values())
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 190*time.Millisecond, "tasks ran serially")
}

func TestPool_SingleWorkerSerializes(t *testing.T) {
	pool := newQuietPool(t, 1)

	var stamps testutils.Recorder[time.Time]
	var order testutils.Recorder[int]
	for i := 0; i < 3; i++ {
		idx := i
		pool.Execute(func() {
			stamps.Add(time.Now())
			order.Add(idx)
			time.Sleep(2 * time.Millisecond)
		})
	}
	require.NoError(t, pool.Close())

	got := stamps.Values()
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].After(got[i-1]), "timestamp %d not after %d", i, i-1)
	}
	assert.Equal(t, []int{0, 1, 2}, order.Values())
}

func TestPool_QueuedBeforeWorkersStart(t *testing.T) {
	spawner := testutils.NewManualSpawner()
	config := quietConfig(1)
	config.Spawner = spawner

	pool, err := NewPool(config)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, spawner.IDs())

	var order testutils.Recorder[int]
	for i := 0; i < 10; i++ {
		idx := i
		require.NoError(t, pool.Submit(NewTaskWithID(fmt.Sprintf("job-%d", idx), func() {
			order.Add(idx)
		})))
	}

	// nothing runs until the worker is started
	assert.Equal(t, 10, pool.QueueLength())
	assert.Equal(t, 0, order.Len())

	spawner.StartAll(t)
	testutils.WaitDone(t, 5*time.Second, func() {
		require.NoError(t, pool.Close())
	})

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order.Values())
}

func TestPool_ShutdownReachesEveryWorker(t *testing.T) {
	// Workers start in reverse order, so the first Shutdown is taken by the
	// last worker. Close must still join worker 0 without deadlocking.
	spawner := testutils.NewManualSpawner()
	config := quietConfig(4)
	config.Spawner = spawner

	pool, err := NewPool(config)
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = pool.Close()
	}()

	ids := spawner.IDs()
	for i := len(ids) - 1; i >= 0; i-- {
		spawner.Start(t, ids[i])
	}

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("close did not join all workers")
	}
	assert.Equal(t, 0, pool.Stats().AliveWorkers)
}

func TestPool_SubmitAfterClose(t *testing.T) {
	pool := newQuietPool(t, 2)
	require.NoError(t, pool.Close())
	assert.True(t, pool.IsClosed())

	err := pool.Submit(NewTask(func() {}))
	assert.ErrorIs(t, err, types.ErrPoolClosed)

	assert.Panics(t, func() {
		pool.Execute(func() {})
	})

	// repeated close is a no-op
	assert.NoError(t, pool.Close())
}

func TestPool_SubmitNil(t *testing.T) {
	pool := newQuietPool(t, 1)
	defer pool.Close()

	assert.ErrorIs(t, pool.Submit(nil), types.ErrNilTask)
	assert.Panics(t, func() {
		pool.Execute(nil)
	})
}

func TestPool_PanicRecover(t *testing.T) {
	var handled testutils.Recorder[*types.TaskPanicError]
	config := quietConfig(1)
	config.PanicPolicy = PanicPolicyRecover
	config.PanicHandler = func(err *types.TaskPanicError) {
		handled.Add(err)
	}

	pool, err := NewPool(config)
	require.NoError(t, err)

	var ran int64
	require.NoError(t, pool.Submit(NewTaskWithID("bad", func() {
		panic("test panic")
	})))
	require.NoError(t, pool.Submit(NewTaskWithID("good", func() {
		atomic.AddInt64(&ran, 1)
	})))

	require.NoError(t, pool.Close())

	assert.Equal(t, int64(1), atomic.LoadInt64(&ran), "worker should survive the panic")

	reports := handled.Values()
	require.Len(t, reports, 1)
	assert.Equal(t, "bad", reports[0].TaskID)
	assert.Equal(t, 0, reports[0].WorkerID)
	assert.Equal(t, "test panic", reports[0].Value)
	assert.NotEmpty(t, reports[0].Stack)

	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.Panicked)
	assert.Equal(t, int64(1), stats.Completed)

	ws := pool.GetWorkerStats()[0]
	assert.Equal(t, int64(1), ws.TotalPanicked)
	assert.Equal(t, int64(1), ws.TotalProcessed)
}

func TestPool_PanicTerminatesWorker(t *testing.T) {
	config := quietConfig(1)
	config.PanicPolicy = PanicPolicyTerminateWorker

	pool, err := NewPool(config)
	require.NoError(t, err)

	var ran int64
	require.NoError(t, pool.Submit(NewTask(func() {
		panic(errors.New("boom"))
	})))

	require.Eventually(t, func() bool {
		return pool.Stats().AliveWorkers == 0
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, 1, pool.Stats().Lost())

	// the pool has no capacity left, so this task stays queued
	require.NoError(t, pool.Submit(NewTask(func() {
		atomic.AddInt64(&ran, 1)
	})))

	testutils.WaitDone(t, 5*time.Second, func() {
		require.NoError(t, pool.Close())
	})
	assert.Equal(t, int64(0), atomic.LoadInt64(&ran))
	assert.Equal(t, int64(1), pool.Stats().Panicked)
}

func TestPool_Logging(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	config := quietConfig(2)
	config.Logger = logger

	pool, err := NewPool(config)
	require.NoError(t, err)

	require.NoError(t, pool.Submit(NewTaskWithID("job-a", func() {})))
	require.NoError(t, pool.Close())

	var dispatched, shutdowns, teardown int
	for _, entry := range hook.AllEntries() {
		switch entry.Message {
		case "worker got a job; executing":
			dispatched++
			assert.Equal(t, "job-a", entry.Data["task_id"])
			assert.Contains(t, entry.Data, "worker_id")
		case "worker disconnecting, shutdown":
			shutdowns++
		case "shutting down all workers":
			teardown++
			assert.Equal(t, 2, entry.Data["pool_size"])
		}
	}
	assert.Equal(t, 1, dispatched)
	assert.Equal(t, 2, shutdowns)
	assert.Equal(t, 1, teardown)
}

func TestPool_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	config := quietConfig(2)
	config.Metrics = metrics

	pool, err := NewPool(config)
	require.NoError(t, err)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.AliveWorkers))

	for i := 0; i < 5; i++ {
		pool.Execute(func() {})
	}
	pool.Execute(func() { panic("x") })
	require.NoError(t, pool.Close())

	assert.Equal(t, float64(6), testutil.ToFloat64(metrics.TasksSubmitted))
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.TasksCompleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TasksPanicked))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.BusyWorkers))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.AliveWorkers))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.TaskDuration))
}

func TestPool_ConcurrentSubmission(t *testing.T) {
	pool := newQuietPool(t, 8)

	numGoroutines := 20
	tasksPerGoroutine := 100
	var executed int64

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for g := 0; g < numGoroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < tasksPerGoroutine; i++ {
				assert.NoError(t, pool.Submit(NewTask(func() {
					atomic.AddInt64(&executed, 1)
				})))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, pool.Close())

	assert.Equal(t, int64(numGoroutines*tasksPerGoroutine), atomic.LoadInt64(&executed))
}

func TestPool_SubmitRacingClose(t *testing.T) {
	// Every accepted submission must run, even when Close starts mid-stream.
	pool := newQuietPool(t, 4)

	var accepted, executed int64
	var wg sync.WaitGroup
	wg.Add(4)
	for g := 0; g < 4; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				err := pool.Submit(NewTask(func() {
					atomic.AddInt64(&executed, 1)
				}))
				if err != nil {
					assert.ErrorIs(t, err, types.ErrPoolClosed)
					return
				}
				atomic.AddInt64(&accepted, 1)
			}
		}()
	}

	time.Sleep(time.Millisecond)
	require.NoError(t, pool.Close())
	wg.Wait()

	assert.Equal(t, atomic.LoadInt64(&accepted), atomic.LoadInt64(&executed))
}

// Benchmark tests
func BenchmarkPool_Submit(b *testing.B) {
	pool := newQuietPool(b, 10)
	defer pool.Close()

	task := NewTask(func() {})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = pool.Submit(task)
		}
	})
}

func BenchmarkPool_TaskExecution(b *testing.B) {
	pool := newQuietPool(b, 10)
	defer pool.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			var wg sync.WaitGroup
			wg.Add(1)
			pool.Execute(wg.Done)
			wg.Wait()
		}
	})
}
