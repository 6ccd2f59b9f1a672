// Package lifecycle coordinates startup and shutdown of long-lived subsystems.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator runs registered startup hooks, tracks readiness, and fans out
// shutdown once its context is cancelled. Drain hooks finish in-flight work
// before hooks waiting on Drained release shared resources.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	drainWg    sync.WaitGroup
	shutdownWg sync.WaitGroup
	drained    chan struct{}
	drainOnce  sync.Once
	ready      atomic.Bool
}

// New creates a Coordinator with a cancellable root context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel, drained: make(chan struct{})}
}

// Context returns the root context. It is cancelled when Shutdown begins.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Done is shorthand for Context().Done().
func (c *Coordinator) Done() <-chan struct{} {
	return c.ctx.Done()
}

// OnStartup runs fn concurrently; WaitForStartup blocks until every hook returns.
func (c *Coordinator) OnStartup(fn func()) {
	c.startupWg.Go(fn)
}

// OnShutdown runs fn concurrently. Hooks block on Done before cleaning up.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// OnDrain runs fn once shutdown begins. Register drain hooks before Shutdown.
func (c *Coordinator) OnDrain(fn func()) {
	c.drainWg.Go(func() {
		<-c.ctx.Done()
		fn()
	})
}

// Drained is closed after shutdown began and every drain hook returned.
func (c *Coordinator) Drained() <-chan struct{} {
	return c.drained
}

// Ready reports whether all startup hooks have completed.
func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

// WaitForStartup blocks until all startup hooks have completed, then marks
// the coordinator ready.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.ready.Store(true)
}

// Shutdown cancels the root context and waits for drain and shutdown hooks
// up to timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.ready.Store(false)
	c.cancel()

	c.drainOnce.Do(func() {
		go func() {
			c.drainWg.Wait()
			close(c.drained)
		}()
	})

	done := make(chan struct{})
	go func() {
		<-c.drained
		c.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
