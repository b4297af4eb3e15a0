package scheduler

import "sync"

// runOutcome is the typed result of attempting a guarded job run
type runOutcome string

const (
	outcomeRan           runOutcome = "ran"
	outcomeSkippedBusy   runOutcome = "skipped: already running"
	outcomeSkippedClosed runOutcome = "skipped: outside schedule window"
)

// flightGuard enforces single-flight execution of one recurring job. A timer
// tick that arrives while the previous run is still in flight is skipped,
// never queued.
type flightGuard struct {
	mu      sync.Mutex
	running bool
}

// tryAcquire marks the job in flight. It returns false when a run is
// already in progress.
func (g *flightGuard) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	g.running = true
	return true
}

// release marks the job idle again
func (g *flightGuard) release() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

// inFlight reports whether a run is currently in progress
func (g *flightGuard) inFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
