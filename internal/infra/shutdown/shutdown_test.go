package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"syscall"
	"testing"
	"time"
)

func newTestHandler(timeout time.Duration) *Handler {
	return NewHandler(timeout, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func recordingHooks(h *Handler, n int) func() []int {
	var mu sync.Mutex
	var order []int
	for i := 1; i <= n; i++ {
		i := i
		h.OnShutdown("hook", func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}
	return func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), order...)
	}
}

func TestNewHandler(t *testing.T) {
	h := NewHandler(5*time.Second, WithSignals(syscall.SIGUSR1))
	if h.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.timeout)
	}
	if len(h.signals) != 1 || h.signals[0] != syscall.SIGUSR1 {
		t.Errorf("signals = %v", h.signals)
	}

	select {
	case <-h.Done():
		t.Error("Done channel should not be closed initially")
	default:
	}
}

func TestHandler_ReverseOrder(t *testing.T) {
	h := newTestHandler(5 * time.Second)
	order := recordingHooks(h, 3)

	if err := h.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	got := order()
	if len(got) != 3 || got[0] != 3 || got[1] != 2 || got[2] != 1 {
		t.Errorf("hooks called in order %v, want [3 2 1]", got)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after Shutdown")
	}
}

func TestHandler_ShutdownOnce(t *testing.T) {
	h := newTestHandler(5 * time.Second)
	order := recordingHooks(h, 2)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Shutdown()
		}()
	}
	wg.Wait()

	if got := order(); len(got) != 2 {
		t.Errorf("hooks ran %d times, want 2", len(got))
	}
}

func TestHandler_HookErrors(t *testing.T) {
	h := newTestHandler(5 * time.Second)

	errFlush := errors.New("flush failed")
	errClose := errors.New("close failed")
	var ran bool

	h.OnShutdown("first", func(context.Context) error {
		ran = true
		return nil
	})
	h.OnShutdown("store", func(context.Context) error { return errClose })
	h.OnShutdown("flush", func(context.Context) error { return errFlush })

	err := h.Shutdown()
	if !errors.Is(err, errFlush) || !errors.Is(err, errClose) {
		t.Errorf("Shutdown() error = %v, want both hook errors", err)
	}
	if !ran {
		t.Error("a failing hook should not stop later hooks")
	}
}

func TestHandler_HookDeadline(t *testing.T) {
	h := newTestHandler(20 * time.Millisecond)

	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := h.Shutdown()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("hooks should share the handler deadline")
	}
}

func TestHandler_WaitContext(t *testing.T) {
	h := newTestHandler(5 * time.Second)
	order := recordingHooks(h, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.WaitContext(ctx) }()

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("WaitContext() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitContext() did not return after cancel")
	}
	if len(order()) != 1 {
		t.Error("hook did not run")
	}
}

func TestHandler_Wait_WithSignal(t *testing.T) {
	h := NewHandler(5*time.Second,
		WithSignals(syscall.SIGUSR2),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	order := recordingHooks(h, 2)

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait() }()

	// Give Wait time to set up signal handler
	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR2); err != nil {
		t.Fatalf("kill: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete in time")
	}
	if got := order(); len(got) != 2 {
		t.Errorf("hooks called = %v", got)
	}
}

func TestHandler_WaitAfterShutdown(t *testing.T) {
	h := newTestHandler(time.Second)
	_ = h.Shutdown()

	done := make(chan error, 1)
	go func() { done <- h.Wait() }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait() should return once shutdown already happened")
	}
}

func TestHandler_ConcurrentOnShutdown(t *testing.T) {
	h := newTestHandler(5 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnShutdown("noop", func(context.Context) error { return nil })
		}()
	}
	wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.hooks) != 10 {
		t.Errorf("expected 10 hooks, got %d", len(h.hooks))
	}
}
