package lifecycle_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/muse/pkg/lifecycle"
)

func TestReadiness(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Fatal("ready before WaitForStartup")
	}

	var ran atomic.Int32
	for range 3 {
		lc.OnStartup(func() { ran.Add(1) })
	}
	lc.WaitForStartup()

	if got := ran.Load(); got != 3 {
		t.Errorf("startup hooks ran %d times, want 3", got)
	}
	if !lc.Ready() {
		t.Error("not ready after WaitForStartup")
	}
}

func TestShutdownRunsHooks(t *testing.T) {
	lc := lifecycle.New()

	var cleaned atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Done()
		cleaned.Store(true)
	})
	lc.WaitForStartup()

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !cleaned.Load() {
		t.Error("shutdown hook did not run")
	}
	if lc.Ready() {
		t.Error("still ready after shutdown")
	}
	if lc.Context().Err() == nil {
		t.Error("context not cancelled")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()

	release := make(chan struct{})
	defer close(release)
	lc.OnShutdown(func() {
		<-release
	})

	if err := lc.Shutdown(20 * time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestDrainPrecedesResourceRelease(t *testing.T) {
	lc := lifecycle.New()

	var drained, closedAfterDrain atomic.Bool
	lc.OnDrain(func() {
		time.Sleep(20 * time.Millisecond)
		drained.Store(true)
	})
	lc.OnShutdown(func() {
		<-lc.Drained()
		closedAfterDrain.Store(drained.Load())
	})
	lc.WaitForStartup()

	select {
	case <-lc.Drained():
		t.Fatal("drained before shutdown")
	default:
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !closedAfterDrain.Load() {
		t.Error("resource released before drain hook finished")
	}
}

func TestShutdownWithoutDrainHooks(t *testing.T) {
	lc := lifecycle.New()

	var released atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Drained()
		released.Store(true)
	})

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !released.Load() {
		t.Error("Drained never closed")
	}
}
