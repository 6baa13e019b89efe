// Package workload provides a synthetic program for the CLI to profile:
// workers alternating between burning CPU and sleeping.
package workload

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

type Workload struct {
	Workers int
	Spin    time.Duration
	Sleep   time.Duration
}

// Run runs the workers until ctx is done.
func (w Workload) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.Workers; i++ {
		g.Go(func() error {
			return w.work(ctx)
		})
	}

	return g.Wait()
}

func (w Workload) work(ctx context.Context) error {
	for ctx.Err() == nil {
		if w.Spin > 0 {
			Spin(w.Spin)
		}
		if w.Sleep > 0 {
			Sleep(ctx, w.Sleep)
		}
	}

	return nil
}

// Spin keeps the CPU busy for d.
//
//go:noinline
func Spin(d time.Duration) uint64 {
	var x uint64
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		for i := 0; i < 1000; i++ {
			x = x*6364136223846793005 + 1442695040888963407
		}
	}

	return x
}

// Sleep parks the goroutine for d or until ctx is done.
//
//go:noinline
func Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
