package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrSaturated is returned when the gate is full and the configured wait
// budget (if any) elapsed without a slot becoming free.
var ErrSaturated = errors.New("supervisor: gate saturated")

// Gate bounds the number of concurrently in-flight uploads and tracks
// process-wide counters. It is safe for concurrent use.
type Gate struct {
	slots   chan struct{}
	maxWait time.Duration

	accepted  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	inflight  atomic.Int64
}

// NewGate constructs a gate with the given slot limit. A maxWait of zero
// rejects immediately when all slots are taken; a positive maxWait queues
// the caller up to that duration before rejecting.
func NewGate(limit int, maxWait time.Duration) (*Gate, error) {
	if limit <= 0 {
		return nil, errors.New("supervisor: limit must be positive")
	}
	if maxWait < 0 {
		return nil, errors.New("supervisor: negative max wait")
	}
	return &Gate{
		slots:   make(chan struct{}, limit),
		maxWait: maxWait,
	}, nil
}

// Acquire takes a slot, waiting up to the configured budget. The caller
// must call Release on every exit path once Acquire returns nil.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		g.inflight.Add(1)
		return nil
	default:
	}

	if g.maxWait == 0 {
		g.rejected.Add(1)
		return ErrSaturated
	}

	timer := time.NewTimer(g.maxWait)
	defer timer.Stop()
	select {
	case g.slots <- struct{}{}:
		g.inflight.Add(1)
		return nil
	case <-timer.C:
		g.rejected.Add(1)
		return ErrSaturated
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (g *Gate) Release() {
	g.inflight.Add(-1)
	<-g.slots
}

// Limit returns the configured slot count.
func (g *Gate) Limit() int {
	return cap(g.slots)
}

// Inflight returns the current number of held slots.
func (g *Gate) Inflight() int64 {
	return g.inflight.Load()
}

// RecordAccepted counts a validated event entering the pipeline.
func (g *Gate) RecordAccepted() { g.accepted.Add(1) }

// RecordSuccess counts a completed upload.
func (g *Gate) RecordSuccess() { g.succeeded.Add(1) }

// RecordFailure counts a terminally failed upload.
func (g *Gate) RecordFailure() { g.failed.Add(1) }

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Accepted  int64 `json:"accepted"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
	Inflight  int64 `json:"inflight"`
	Limit     int   `json:"limit"`
}

// Stats returns the current counter values.
func (g *Gate) Stats() Snapshot {
	return Snapshot{
		Accepted:  g.accepted.Load(),
		Succeeded: g.succeeded.Load(),
		Failed:    g.failed.Load(),
		Rejected:  g.rejected.Load(),
		Inflight:  g.inflight.Load(),
		Limit:     g.Limit(),
	}
}
