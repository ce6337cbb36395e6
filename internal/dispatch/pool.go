package dispatch

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"textanalysis/internal/logger"
	apperrors "textanalysis/pkg/errors"
	"textanalysis/pkg/metrics"
)

var ErrPoolClosed = errors.New("dispatch pool is closed")

// Job receives the pool's context, which outlives the consumer's context and
// is cancelled only when Drain gives up waiting.
type Job = func(ctx context.Context)

type Options struct {
	Name      string
	Workers   int
	QueueSize int
	// Keyed routes every job with the same key to the same worker so jobs
	// for one key run one at a time in submission order.
	Keyed bool
}

type task struct {
	fn       Job
	enqueued time.Time
}

// Pool runs submitted jobs on a fixed set of workers. Submit blocks while the
// queue is full, which pushes back on whoever is reading from the broker.
type Pool struct {
	name   string
	keyed  bool
	queues []chan task
	log    logger.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu        sync.RWMutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once

	wg      sync.WaitGroup
	active  atomic.Int64
	pending atomic.Int64
}

func New(opts Options, log logger.Logger) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	if opts.Name == "" {
		opts.Name = "dispatch"
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:    opts.Name,
		keyed:   opts.Keyed,
		log:     log,
		baseCtx: ctx,
		cancel:  cancel,
		closing: make(chan struct{}),
	}

	if opts.Keyed {
		size := opts.QueueSize / opts.Workers
		if size < 1 {
			size = 1
		}
		p.queues = make([]chan task, opts.Workers)
		for i := range p.queues {
			p.queues[i] = make(chan task, size)
			p.startWorker(p.queues[i])
		}
	} else {
		shared := make(chan task, opts.QueueSize)
		p.queues = []chan task{shared}
		for i := 0; i < opts.Workers; i++ {
			p.startWorker(shared)
		}
	}

	log.Infow("Worker pool started",
		"pool", p.name,
		"workers", opts.Workers,
		"queue_size", opts.QueueSize,
		"keyed", opts.Keyed,
	)

	return p
}

// Submit enqueues fn. It blocks until there is room, ctx is done, or the pool
// starts draining.
func (p *Pool) Submit(ctx context.Context, key string, fn Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	t := task{fn: fn, enqueued: time.Now()}
	p.setPending(p.pending.Add(1))
	select {
	case p.queueFor(key) <- t:
		return nil
	case <-ctx.Done():
		p.setPending(p.pending.Add(-1))
		return ctx.Err()
	case <-p.closing:
		p.setPending(p.pending.Add(-1))
		return ErrPoolClosed
	}
}

// Drain stops accepting jobs and waits for queued and running ones. When ctx
// expires first the jobs' context is cancelled and the deadline error returned.
func (p *Pool) Drain(ctx context.Context) error {
	p.closeOnce.Do(func() {
		close(p.closing)

		p.mu.Lock()
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.log.Infow("Worker pool drained", "pool", p.name)
		return nil
	case <-ctx.Done():
		p.cancel()
		p.log.Warnw("Worker pool drain timed out, abandoning remaining jobs",
			"pool", p.name,
			"active", p.Active(),
			"pending", p.Pending(),
		)
		return fmt.Errorf("drain %s: %w", p.name, ctx.Err())
	}
}

func (p *Pool) Active() int {
	return int(p.active.Load())
}

func (p *Pool) Pending() int {
	return int(p.pending.Load())
}

func (p *Pool) queueFor(key string) chan task {
	if !p.keyed || len(p.queues) == 1 {
		return p.queues[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return p.queues[h.Sum32()%uint32(len(p.queues))]
}

func (p *Pool) startWorker(q <-chan task) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for t := range q {
			p.setPending(p.pending.Add(-1))
			metrics.ObserveWorkerPoolWait(p.name, time.Since(t.enqueued))
			p.run(t.fn)
		}
	}()
}

func (p *Pool) run(fn Job) {
	p.active.Add(1)
	metrics.AddWorkerPoolActive(p.name, 1)
	defer func() {
		p.active.Add(-1)
		metrics.AddWorkerPoolActive(p.name, -1)
		if r := recover(); r != nil {
			p.log.Errorw("Job panicked", "pool", p.name, "error", apperrors.RecoverPanic(r))
		}
	}()

	fn(p.baseCtx)
}

func (p *Pool) setPending(n int64) {
	metrics.SetWorkerPoolQueueSize(p.name, int(n))
}
