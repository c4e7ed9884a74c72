// Package detach runs fire-and-forget work that must outlive the request that
// started it. Failures are logged and never returned to the caller.
package detach

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/errs"
)

type Group struct {
	wg sync.WaitGroup
}

func NewGroup() *Group {
	return &Group{}
}

// Go runs fn on its own goroutine with a context detached from ctx's
// cancellation but keeping its values (logger, attrs).
// A nil Group still runs fn, untracked.
func (g *Group) Go(ctx context.Context, op string, fn func(ctx context.Context) error) {
	if ctx == nil {
		ctx = context.Background()
	}
	bg := logging.WithAttrs(context.WithoutCancel(ctx), slog.String("task", op))

	if g == nil {
		go run(bg, fn)
		return
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		run(bg, fn)
	}()
}

func run(ctx context.Context, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			err := errs.WithStack(fmt.Errorf("panic: %v", r))
			logging.Error(ctx, "background task panicked", slog.Any("err", errs.Loggable(err)))
		}
	}()

	if err := fn(ctx); err != nil {
		logging.Warn(ctx, "background task failed", slog.Any("err", errs.Loggable(err)))
	}
}

// Wait blocks until every task started so far has finished.
func (g *Group) Wait() {
	if g == nil {
		return
	}
	g.wg.Wait()
}

// WaitContext is Wait bounded by ctx.
func (g *Group) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "wait for background tasks")
	}
}
