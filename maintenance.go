// maintenance.go: maintenance coordinator (spec section 4.6)
//
// Grounded on the teacher's single-flight/opportunistic-work pattern in
// loading.go, adapted from "one winner performs a load" to "one winner
// drains the buffers". sync.Mutex.TryLock (stdlib since Go 1.18) gives
// exactly the opportunistic, never-blocking-the-caller drain the spec
// describes, with no need for a hand-rolled spinlock or CAS state
// machine of our own: the mutex already is the PROCESSING/IDLE state.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import "sync"

// coordinatorState names the maintenance states; no code in the package
// sets or reports a value of this type. The mutex is what serializes drains.
type coordinatorState int32

const (
	stateIdle coordinatorState = iota
	stateRequired
	stateProcessing
)

// maintenanceCoordinator is the Maintenance Coordinator component. It owns
// the eviction lock (drainMu) and is the only thing ever allowed to
// mutate policy's linked lists or call hashIndex.remove as a result of
// policy decisions (direct index removals from explicit Invalidate calls
// are the one exception; see cache.go).
type maintenanceCoordinator struct {
	drainMu sync.Mutex

	reads  *readBuffer
	writes *writeBuffer
	pol    *policy

	pendingRequired int32 // never set or read; every recordRead/recordWrite attempts a drain directly
}

func newMaintenanceCoordinator(reads *readBuffer, writes *writeBuffer, pol *policy) *maintenanceCoordinator {
	return &maintenanceCoordinator{reads: reads, writes: writes, pol: pol}
}

// recordRead hands a read event to the read buffer and then attempts an
// opportunistic drain, on every read rather than only when a stripe
// fills. This is also
// what makes refreshAfterWrite read-triggered (spec section 4.5): the
// drain it may win runs policy.runMaintenance, which walks the write-order
// list for entries whose write age has crossed the refresh threshold.
// Called on every Get hit; never blocks.
func (m *maintenanceCoordinator) recordRead(e *entry) {
	m.reads.record(e)
	m.maybeDrain()
}

// recordWrite enqueues a write-buffer task and then attempts an
// opportunistic drain (spec section 4.6: "a write always tries to
// trigger maintenance"). The caller that successfully grabs drainMu pays
// for the drain; every other concurrent caller just enqueues and moves
// on, since the task is guaranteed to be picked up by whoever does drain.
func (m *maintenanceCoordinator) recordWrite(t writeTask) {
	m.writes.submit(t)
	m.maybeDrain()
}

// maybeDrain attempts to become the drainer. If another goroutine already
// holds drainMu, this call returns immediately: the work this caller just
// submitted is applied by that drain if it has not yet emptied the
// buffers, and otherwise by the next drain.
func (m *maintenanceCoordinator) maybeDrain() {
	if !m.drainMu.TryLock() {
		return
	}
	defer m.drainMu.Unlock()
	m.drainLocked()
}

// forceDrain blocks until it can acquire drainMu, then drains. Used by
// CleanUp() (spec section 6), which promises a synchronous, complete
// maintenance pass rather than a best-effort one.
func (m *maintenanceCoordinator) forceDrain() {
	m.drainMu.Lock()
	defer m.drainMu.Unlock()
	m.drainLocked()
}

// drainLocked applies every buffered read and write task to the policy,
// then runs one expiration/refresh sweep. Must only be called while
// holding drainMu.
func (m *maintenanceCoordinator) drainLocked() {
	m.reads.drain(func(e *entry) {
		if e.loadStatus() == statusAlive {
			m.pol.onAccess(e)
		}
	})

	m.writes.drain(func(t writeTask) {
		switch t.kind {
		case taskAdd:
			if t.e.loadStatus() == statusAlive {
				m.pol.onAdd(t.e)
			}
		case taskUpdate:
			if t.e.loadStatus() == statusAlive {
				m.pol.onUpdate(t.e, t.oldWeight)
			}
		case taskRemove, taskExpire:
			m.pol.retire(t.e, t.cause)
		case taskRefreshStart, taskRefreshEnd:
			// No list bookkeeping: refresh state lives on entry.refreshing
			// and is already CAS-guarded; these task kinds exist so a
			// future maintenance extension (e.g. refresh-rate limiting)
			// has a hook without changing the write buffer's shape.
		}
	})

	m.pol.runMaintenance()
}
