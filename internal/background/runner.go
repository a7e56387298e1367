// Package background supervises work that handlers detach from their turn.
//
// A task keeps running after the turn that spawned it has finished. Its
// result is fed back through a callback, usually into the dispatcher's
// resolver. A failure or panic cannot reach the spawning turn any more, so it
// is logged with the session and turn it came from.
package background

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/specialistvlad/chatgraph/internal/workerpool"
)

// Origin identifies the turn a task was spawned from.
type Origin struct {
	SessionID string
	TurnID    string
}

// ResultFunc consumes a finished task's outcome.
type ResultFunc func(ctx context.Context, o outcome.Outcome) error

// Runner starts and tracks background tasks.
type Runner struct {
	wg       sync.WaitGroup
	active   atomic.Int64
	failures atomic.Int64
}

// New creates a runner.
func New() *Runner {
	return &Runner{}
}

// Go runs task on its own goroutine with a context that keeps ctx's values
// but not its cancellation. onResult may be nil.
func (r *Runner) Go(ctx context.Context, origin Origin, name string, task outcome.Task, onResult ResultFunc) {
	if name == "" {
		name = "task"
	}
	ctx, logger := ctxlog.With(context.WithoutCancel(ctx),
		"task", name, "session_id", origin.SessionID, "turn_id", origin.TurnID)

	r.wg.Add(1)
	r.active.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.active.Add(-1)

		logger.Debug("Background task started.")
		if task == nil {
			r.fail(ctx, fmt.Errorf("background task %q is nil", name))
			return
		}
		o, err := workerpool.Guard(func(ctx context.Context) (outcome.Outcome, error) {
			return task(ctx)
		})(ctx)
		if err != nil {
			r.fail(ctx, err)
			return
		}
		if onResult == nil {
			logger.Debug("Background task finished.", "outcome", outcome.Describe(o))
			return
		}
		if err := onResult(ctx, o); err != nil {
			r.fail(ctx, fmt.Errorf("resolving background result: %w", err))
			return
		}
		logger.Debug("Background task finished.", "outcome", outcome.Describe(o))
	}()
}

func (r *Runner) fail(ctx context.Context, err error) {
	r.failures.Add(1)
	ctxlog.FromContext(ctx).Error("Background task failed.", "error", err)
}

// Active returns the number of tasks still running.
func (r *Runner) Active() int {
	return int(r.active.Load())
}

// Failures returns how many tasks have failed since the runner was created.
func (r *Runner) Failures() int {
	return int(r.failures.Load())
}

// Wait blocks until every task has finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d background tasks: %w", r.Active(), ctx.Err())
	}
}
