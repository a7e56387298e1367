// Package workerpool runs blocking work on a fixed set of goroutines so that
// callers driving a conversation turn are never stalled by each other.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/specialistvlad/chatgraph/internal/ctxlog"
)

// ErrClosed is returned when work is submitted to, or abandoned by, a closed pool.
var ErrClosed = errors.New("worker pool is closed")

// PanicError carries a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

type job struct {
	ctx context.Context
	fn  func(context.Context)
}

// Pool is a bounded set of workers draining a shared job channel.
type Pool struct {
	size   int
	jobs   chan job
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// New starts size workers. A size below one is treated as one.
func New(ctx context.Context, size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		size:   size,
		jobs:   make(chan job),
		closed: make(chan struct{}),
	}
	ctxlog.FromContext(ctx).Debug("Starting worker pool.", "workers", size)
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(ctx, i)
	}
	return p
}

// worker is the processing loop for a single worker.
func (p *Pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)
	for {
		select {
		case <-p.closed:
			logger.Debug("Worker finished.", "workerID", workerID)
			return
		case j := <-p.jobs:
			p.run(j, workerID)
		}
	}
}

func (p *Pool) run(j job, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(j.ctx).Error("Worker recovered from panic.", "workerID", workerID, "panic", r)
		}
	}()
	if j.ctx.Err() != nil {
		return
	}
	ctxlog.FromContext(j.ctx).Debug("Worker picked up job.", "workerID", workerID)
	j.fn(j.ctx)
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Submit hands fn to the next free worker. It blocks until a worker accepts
// the job, ctx is done, or the pool is closed.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context)) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	select {
	case p.jobs <- job{ctx: ctx, fn: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return ErrClosed
	}
}

// Close stops the workers after their current jobs finish. It is safe to call
// more than once.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.closed) })
	p.wg.Wait()
}

// Run executes fn on the pool and waits for its result. A panic inside fn is
// returned as a *PanicError. If ctx ends first Run returns ctx.Err() and the
// worker keeps running fn to completion.
func Run[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	var zero T
	done := make(chan result, 1)
	err := p.Submit(ctx, func(ctx context.Context) {
		v, err := Guard(fn)(ctx)
		done <- result{v: v, err: err}
	})
	if err != nil {
		return zero, err
	}
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-p.closed:
		select {
		case r := <-done:
			return r.v, r.err
		default:
			return zero, ErrClosed
		}
	}
}

// Guard wraps fn so that a panic becomes a *PanicError.
func Guard[T any](fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (v T, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		return fn(ctx)
	}
}
