package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultMaintenanceInterval is the minimum time between two sweeps.
const DefaultMaintenanceInterval = 60 * time.Second

// Flusher runs one write-back sweep.
type Flusher interface {
	FlushDirtyAddressBooks(ctx context.Context) (FlushResult, error)
}

// MaintenanceGate runs the flush sweep at most once per interval.
//
// It has no timer of its own. Request handlers call Trigger after mutating
// state, and the first caller past the interval runs the sweep inline.
type MaintenanceGate struct {
	flusher  Flusher
	logger   *slog.Logger
	now      func() time.Time
	interval atomic.Int64 // seconds

	// lastRun is the epoch second of the last sweep. Zero means never.
	lastRun atomic.Int64
}

// GateOption configures a MaintenanceGate.
type GateOption func(*MaintenanceGate)

// WithInterval sets the minimum time between sweeps.
func WithInterval(d time.Duration) GateOption {
	return func(g *MaintenanceGate) {
		g.SetInterval(d)
	}
}

// WithGateLogger sets the logger used for sweep failures.
func WithGateLogger(l *slog.Logger) GateOption {
	return func(g *MaintenanceGate) {
		g.logger = l
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) GateOption {
	return func(g *MaintenanceGate) {
		g.now = now
	}
}

// NewMaintenanceGate creates a gate for flusher.
func NewMaintenanceGate(flusher Flusher, opts ...GateOption) *MaintenanceGate {
	g := &MaintenanceGate{
		flusher: flusher,
		logger:  slog.Default(),
		now:     time.Now,
	}
	g.interval.Store(int64(DefaultMaintenanceInterval / time.Second))
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetInterval changes the minimum time between sweeps. Sub-second values
// are rounded up to one second.
func (g *MaintenanceGate) SetInterval(d time.Duration) {
	secs := int64(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	g.interval.Store(secs)
}

// Interval returns the current minimum time between sweeps.
func (g *MaintenanceGate) Interval() time.Duration {
	return time.Duration(g.interval.Load()) * time.Second
}

// Trigger runs a sweep if the interval has elapsed since the last one and
// reports whether this call ran it. Sweep failures are logged; dirty entries
// stay dirty and are retried by a later sweep.
func (g *MaintenanceGate) Trigger(ctx context.Context) bool {
	now := g.now().Unix()
	last := g.lastRun.Load()
	if now-last < g.interval.Load() {
		return false
	}
	if !g.lastRun.CompareAndSwap(last, now) {
		return false
	}

	res, err := g.flusher.FlushDirtyAddressBooks(ctx)
	if err != nil {
		g.logger.Error("address book flush failed", "error", err)
		return true
	}
	if res.Written > 0 || res.Evicted > 0 {
		g.logger.Info("address books flushed",
			"written", res.Written,
			"evicted", res.Evicted,
			"elapsed", res.Elapsed,
		)
	}
	return true
}
