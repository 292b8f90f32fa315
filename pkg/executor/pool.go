package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/MacroPower/qsync/pkg/locks"
	"github.com/MacroPower/qsync/pkg/qsync"
	"github.com/MacroPower/qsync/pkg/queue"
	"github.com/MacroPower/qsync/pkg/syncerrors"
)

// Task is a unit of work without a result.
type Task func(ctx context.Context)

// Pool lifecycle states. They only move forward.
const (
	stateRunning = iota
	stateShutdown
	stateStop
	stateTerminated
)

// Pool is a fixed-size worker pool. Create instances with [New].
type Pool struct {
	lock        *locks.ReentrantLock
	termination *qsync.ConditionObject
	tasks       *queue.BlockingQueue[Task]
	logger      *slog.Logger

	// ctx is cancelled by ShutdownNow.
	ctx    context.Context //nolint:containedctx // Cancellation signal only.
	cancel context.CancelFunc

	// Guarded by lock.
	state   int
	workers int

	maxWorkers int
	queueSize  int

	active    atomic.Int32
	completed atomic.Int64
}

// PoolOpts configures a [Pool].
type PoolOpts func(*Pool)

// WithWorkers sets the maximum number of worker goroutines. It defaults to
// [runtime.GOMAXPROCS].
func WithWorkers(n int) PoolOpts {
	return func(p *Pool) {
		p.maxWorkers = n
	}
}

// WithQueueSize sets how many tasks may wait for a worker before
// [Pool.Execute] rejects new ones. It defaults to 64.
func WithQueueSize(n int) PoolOpts {
	return func(p *Pool) {
		p.queueSize = n
	}
}

// WithLogger sets the logger for worker lifecycle events and task panics.
func WithLogger(logger *slog.Logger) PoolOpts {
	return func(p *Pool) {
		p.logger = logger
	}
}

// New creates a [Pool]. Workers start lazily, one per executed task, until
// the configured number is running.
func New(opts ...PoolOpts) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	l := locks.NewReentrantLock(false)
	p := &Pool{
		lock:        l,
		termination: l.NewCondition(),
		logger:      slog.Default(),
		ctx:         ctx,
		cancel:      cancel,
		maxWorkers:  runtime.GOMAXPROCS(0),
		queueSize:   64,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.maxWorkers = max(p.maxWorkers, 1)
	p.tasks = queue.NewBlockingQueue[Task](max(p.queueSize, 1), false)

	return p
}

// Execute queues task to run on a worker. It returns an error wrapping
// [syncerrors.ErrShutdown] after shutdown, and one wrapping
// [syncerrors.ErrRejected] if the queue is full.
func (p *Pool) Execute(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if p.state != stateRunning {
		return syncerrors.ErrShutdown
	}

	if !p.tasks.Offer(task) {
		return fmt.Errorf("%w: queue full", syncerrors.ErrRejected)
	}

	if p.workers < p.maxWorkers {
		p.startWorker()
	}

	return nil
}

// Submit queues fn and returns a [Future] for its result.
func (p *Pool) Submit(fn Callable) (*Future, error) {
	if fn == nil {
		return nil, errors.New("nil callable")
	}

	f := newFuture()
	if err := p.Execute(func(ctx context.Context) { f.run(ctx, fn) }); err != nil {
		return nil, err
	}

	return f, nil
}

// InvokeAll submits every fn and waits for them all. Results are returned in
// the order of fns. Failures are aggregated into a single error; if ctx ends
// first, the remaining futures are cancelled.
func (p *Pool) InvokeAll(ctx context.Context, fns []Callable) ([]any, error) {
	futures := make([]*Future, 0, len(fns))

	cancelAll := func() {
		for _, f := range futures {
			f.Cancel()
		}
	}

	for i, fn := range fns {
		f, err := p.Submit(fn)
		if err != nil {
			cancelAll()

			return nil, fmt.Errorf("submit task %d: %w", i, err)
		}

		futures = append(futures, f)
	}

	var merr *multierror.Error

	results := make([]any, len(futures))
	for i, f := range futures {
		v, err := f.Get(ctx)
		if errors.Is(err, syncerrors.ErrInterrupted) && ctx.Err() != nil {
			cancelAll()

			return nil, err
		}

		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("task %d: %w", i, err))

			continue
		}

		results[i] = v
	}

	return results, merr.ErrorOrNil()
}

// startWorker must be called with the lock held.
func (p *Pool) startWorker() {
	p.workers++

	id := p.workers
	go p.work(id)
}

func (p *Pool) work(id int) {
	log := p.logger.With(slog.Int("worker", id))
	log.Debug("worker started")

	defer p.workerExited(log)

	for {
		task, err := p.tasks.Take(p.ctx)
		if err != nil {
			return
		}

		p.runTask(log, task)
	}
}

func (p *Pool) runTask(log *slog.Logger, task Task) {
	p.active.Add(1)

	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", slog.Any("panic", r))
		}

		p.active.Add(-1)
		p.completed.Add(1)
	}()

	task(p.ctx)
}

func (p *Pool) workerExited(log *slog.Logger) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.workers--
	log.Debug("worker exited", slog.Int("remaining", p.workers))

	p.tryTerminate()
}

// tryTerminate moves a shut-down pool with no workers to the terminated
// state. It must be called with the lock held.
func (p *Pool) tryTerminate() {
	if p.state == stateRunning || p.state == stateTerminated || p.workers > 0 {
		return
	}

	p.state = stateTerminated
	p.cancel()
	p.termination.SignalAll()
	p.logger.Debug("pool terminated", slog.Int64("completed", p.completed.Load()))
}

// Shutdown stops accepting tasks. Queued and running tasks still complete.
func (p *Pool) Shutdown() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.state == stateRunning {
		p.state = stateShutdown
		p.tasks.Close()
	}

	p.tryTerminate()
}

// ShutdownNow stops accepting tasks, cancels the context of running tasks,
// and returns the tasks that never started.
func (p *Pool) ShutdownNow() []Task {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.state < stateStop {
		p.state = stateStop
	}

	p.tasks.Close()
	p.cancel()

	pending := p.tasks.DrainTo(nil, -1)

	p.tryTerminate()

	return pending
}

// IsShutdown reports whether the pool has stopped accepting tasks.
func (p *Pool) IsShutdown() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.state != stateRunning
}

// IsTerminated reports whether the pool has shut down and every worker has
// exited.
func (p *Pool) IsTerminated() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.state == stateTerminated
}

// AwaitTermination waits for the pool to terminate after a shutdown. It
// reports false if timeout elapsed first.
func (p *Pool) AwaitTermination(ctx context.Context, timeout time.Duration) (bool, error) {
	if err := p.lock.LockContext(ctx); err != nil {
		return false, err
	}
	defer p.lock.Unlock()

	remaining := timeout
	for p.state != stateTerminated {
		if remaining <= 0 {
			return false, nil
		}

		var err error

		remaining, err = p.termination.AwaitNanos(ctx, remaining)
		if err != nil {
			return false, err
		}
	}

	return true, nil
}

// ActiveCount returns the number of workers running a task.
func (p *Pool) ActiveCount() int {
	return int(p.active.Load())
}

// PoolSize returns the number of live workers.
func (p *Pool) PoolSize() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.workers
}

// CompletedTaskCount returns the number of tasks that have finished running.
func (p *Pool) CompletedTaskCount() int64 {
	return p.completed.Load()
}

func (p *Pool) String() string {
	p.lock.Lock()
	defer p.lock.Unlock()

	states := [...]string{"running", "shutdown", "stop", "terminated"}

	return fmt.Sprintf("executor.Pool{state = %s, workers = %d, active = %d, queued = %d, completed = %d}",
		states[p.state], p.workers, p.active.Load(), p.tasks.Len(), p.completed.Load())
}
