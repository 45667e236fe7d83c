package worker

import (
	"context"
	"sync"
)

// loadGate admits at most one load body at a time. It holds one pending
// slot and an in-flight flag: a new load aborts the running one and takes
// the pending slot, evicting whatever waited there before. When the running
// load releases the gate the pending load is handed ownership directly.
type loadGate struct {
	mu       sync.Mutex
	pending  *gateTicket
	inFlight bool
	abort    context.CancelFunc
}

type gateTicket struct {
	// ready receives exactly one value: true to run, false when superseded.
	ready  chan bool
	cancel context.CancelFunc
}

// acquire blocks until the caller may run or is superseded. cancel aborts
// the caller's body once it runs. On true the caller must call release.
func (g *loadGate) acquire(ctx context.Context, cancel context.CancelFunc) bool {
	t := &gateTicket{ready: make(chan bool, 1), cancel: cancel}

	g.mu.Lock()
	if g.pending != nil {
		g.pending.ready <- false
		g.pending = nil
	}
	if !g.inFlight {
		g.inFlight = true
		g.abort = cancel
		g.mu.Unlock()
		return true
	}
	g.pending = t
	if g.abort != nil {
		g.abort()
	}
	g.mu.Unlock()

	select {
	case run := <-t.ready:
		return run
	case <-ctx.Done():
		g.mu.Lock()
		if g.pending == t {
			g.pending = nil
			g.mu.Unlock()
			return false
		}
		g.mu.Unlock()
		// Decided concurrently with cancellation.
		if <-t.ready {
			g.release()
		}
		return false
	}
}

// release ends the running body and hands the gate to the pending load.
func (g *loadGate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.abort = nil
	if next := g.pending; next != nil {
		g.pending = nil
		g.abort = next.cancel
		next.ready <- true
		return
	}
	g.inFlight = false
}

// busy reports whether a load is running.
func (g *loadGate) busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}
