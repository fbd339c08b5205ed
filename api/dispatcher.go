package api

import (
	"context"
	"sync"
	"time"
)

// Dispatcher runs background jobs with bounded concurrency.
type Dispatcher struct {
	slots   chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	timeout time.Duration
}

func NewDispatcher(maxConcurrent int) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Dispatcher{
		slots:   make(chan struct{}, maxConcurrent),
		timeout: 30 * time.Second,
	}
}

// Go schedules job and reports whether it was accepted. Jobs are refused
// once Shutdown has been called. Each job gets its own timeout context,
// detached from the request that queued it.
func (d *Dispatcher) Go(job func(ctx context.Context)) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.slots <- struct{}{}
		defer func() { <-d.slots }()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		job(ctx)
	}()
	return true
}

// Wait blocks until all accepted jobs have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops accepting jobs and waits for running ones until ctx ends.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
