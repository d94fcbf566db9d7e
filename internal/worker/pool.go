package worker

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/yahoon/Copr/internal/logfields"
)

const defaultQueueSize = 1024

// Pool runs a fixed number of goroutines handling queued job paths. A path
// is queued at most once until its handler returns.
type Pool struct {
	workers int
	handle  func(ctx context.Context, path string)
	queue   chan string

	mu      sync.Mutex
	pending map[string]struct{}

	group    workerGroup
	ctx      context.Context
	cancel   context.CancelFunc
	quit     chan struct{}
	quitOnce sync.Once
	active   atomic.Int32
	running  atomic.Bool
}

// NewPool returns a pool of workers goroutines calling handle.
func NewPool(workers int, handle func(ctx context.Context, path string)) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		handle:  handle,
		queue:   make(chan string, defaultQueueSize),
		pending: make(map[string]struct{}),
		quit:    make(chan struct{}),
	}
}

// Start launches the workers. Builds run under a context detached from ctx's
// deadline and cancellation; Stop ends them.
func (p *Pool) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < p.workers; i++ {
		id := strconv.Itoa(i + 1)
		p.group.Go(func() { p.loop(id) })
	}
	p.running.Store(true)
	return nil
}

// Stop stops taking jobs and waits for running handlers until ctx expires,
// then cancels them.
func (p *Pool) Stop(ctx context.Context) error {
	p.quitOnce.Do(func() { close(p.quit) })
	err := p.group.StopAndWait(ctx)
	if p.cancel != nil {
		p.cancel()
	}
	p.running.Store(false)
	return err
}

// IsRunning reports whether the pool accepts work.
func (p *Pool) IsRunning() bool { return p.running.Load() }

// Enqueue queues path unless it is already queued or being handled.
func (p *Pool) Enqueue(path string) bool {
	p.mu.Lock()
	if _, ok := p.pending[path]; ok {
		p.mu.Unlock()
		return false
	}
	p.pending[path] = struct{}{}
	p.mu.Unlock()

	select {
	case p.queue <- path:
		return true
	default:
		p.forget(path)
		slog.Warn("Job queue full, leaving job for the next rescan", logfields.Path(path))
		return false
	}
}

// QueueLength is the number of queued paths not yet picked up.
func (p *Pool) QueueLength() int { return len(p.queue) }

// Active is the number of handlers currently running.
func (p *Pool) Active() int { return int(p.active.Load()) }

func (p *Pool) forget(path string) {
	p.mu.Lock()
	delete(p.pending, path)
	p.mu.Unlock()
}

func (p *Pool) loop(id string) {
	for {
		select {
		case <-p.quit:
			return
		case <-p.ctx.Done():
			return
		case path := <-p.queue:
			p.active.Add(1)
			slog.Debug("Worker picked up job", logfields.Worker(id), logfields.Path(path))
			p.handle(p.ctx, path)
			p.forget(path)
			p.active.Add(-1)
		}
	}
}
