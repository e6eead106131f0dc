package orchestrator

import "time"

// HeldLocks returns the number of content ids with a live per-id lock.
func (o *Orchestrator) HeldLocks() int {
	return o.locks.size()
}

// SetClock replaces the time source.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}
