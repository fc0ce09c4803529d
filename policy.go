// policy.go: eviction policy (spec section 4.5)
//
// The policy owns two intrusive doubly-linked lists threaded through
// entry.accessPrev/accessNext and entry.writePrev/writeNext: the access
// order list (head = least recently used, tail = most recently used) and
// the write order list (head = oldest write, tail = newest). Both lists
// are mutated only by the single drain goroutine while it holds
// lock, which is why entry.go's link fields carry no atomics of their own.
//
// The teacher's evictOne (balios/cache.go) picks a victim by sampling the
// frequency sketch and admitting/rejecting candidates probabilistically
// (W-TinyLFU). That policy cannot satisfy this cache's contract: its
// testable scenarios name an exact evicted key for a given sequence of
// operations, which only deterministic head-of-access-list eviction can
// guarantee. So eviction here always takes the access-order head,
// matching the algorithm spec section 4.5 spells out step by step. The
// frequency sketch (sketch.go) is kept only as an auxiliary frequency
// estimate callers can query; it never gates admission and never selects
// an eviction victim. See
// DESIGN.md.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import "time"

// policy is the Eviction Policy component. One instance is owned by the
// cache and driven exclusively by the Maintenance Coordinator's drain
// goroutine.
type policy struct {
	index *hashIndex

	accessHead, accessTail *entry // LRU order; head is least recently used
	writeHead, writeTail   *entry // insertion order; head is oldest write

	weightedSize int64
	maximumWeight int64 // <=0 means unbounded (weightedSize is still maintained)

	expireAfterAccess time.Duration // <=0 disabled
	expireAfterWrite  time.Duration // <=0 disabled
	refreshAfterWrite time.Duration // <=0 disabled

	trackAccessOrder bool // true unless maximumWeight<=0 && expireAfterAccess<=0
	trackWriteOrder  bool // true if expireAfterWrite>0 or refreshAfterWrite>0

	now func() int64

	notify func(e *entry, cause RemovalCause) // hands off to removal.go's listener dispatch
	reload func(e *entry)                     // triggers a refresh load, see cache.go
}

func newPolicy(idx *hashIndex, maximumWeight int64, expireAfterAccess, expireAfterWrite, refreshAfterWrite time.Duration, now func() int64) *policy {
	return &policy{
		index:             idx,
		maximumWeight:     maximumWeight,
		expireAfterAccess: expireAfterAccess,
		expireAfterWrite:  expireAfterWrite,
		refreshAfterWrite: refreshAfterWrite,
		trackAccessOrder:  maximumWeight > 0 || expireAfterAccess > 0,
		trackWriteOrder:   expireAfterWrite > 0 || refreshAfterWrite > 0,
		now:               now,
	}
}

// --- access order list -----------------------------------------------

func (p *policy) accessUnlink(e *entry) {
	if e.accessPrev != nil {
		e.accessPrev.accessNext = e.accessNext
	} else if p.accessHead == e {
		p.accessHead = e.accessNext
	}
	if e.accessNext != nil {
		e.accessNext.accessPrev = e.accessPrev
	} else if p.accessTail == e {
		p.accessTail = e.accessPrev
	}
	e.accessPrev, e.accessNext = nil, nil
}

func (p *policy) accessAppendTail(e *entry) {
	e.accessPrev, e.accessNext = p.accessTail, nil
	if p.accessTail != nil {
		p.accessTail.accessNext = e
	} else {
		p.accessHead = e
	}
	p.accessTail = e
}

// accessMoveToTail marks e as most-recently-used.
func (p *policy) accessMoveToTail(e *entry) {
	if p.accessTail == e {
		return
	}
	p.accessUnlink(e)
	p.accessAppendTail(e)
}

// --- write order list --------------------------------------------------

func (p *policy) writeUnlink(e *entry) {
	if e.writePrev != nil {
		e.writePrev.writeNext = e.writeNext
	} else if p.writeHead == e {
		p.writeHead = e.writeNext
	}
	if e.writeNext != nil {
		e.writeNext.writePrev = e.writePrev
	} else if p.writeTail == e {
		p.writeTail = e.writePrev
	}
	e.writePrev, e.writeNext = nil, nil
}

func (p *policy) writeAppendTail(e *entry) {
	e.writePrev, e.writeNext = p.writeTail, nil
	if p.writeTail != nil {
		p.writeTail.writeNext = e
	} else {
		p.writeHead = e
	}
	p.writeTail = e
}

func (p *policy) writeMoveToTail(e *entry) {
	if p.writeTail == e {
		return
	}
	p.writeUnlink(e)
	p.writeAppendTail(e)
}

// --- admission: applying drained write-buffer tasks --------------------

// onAdd links a newly alive entry into whichever ordered lists are
// tracked, and accounts its weight.
func (p *policy) onAdd(e *entry) {
	if p.trackAccessOrder {
		p.accessAppendTail(e)
	}
	if p.trackWriteOrder {
		p.writeAppendTail(e)
	}
	p.weightedSize += int64(e.loadWeight())
	p.evictToCapacity()
}

// onUpdate re-links an entry whose value/weight changed, adjusting the
// weighted size by the delta and resetting its write-order position
// (a replace is a new write, per the data model's writeTime semantics).
func (p *policy) onUpdate(e *entry, oldWeight int32) {
	p.weightedSize += int64(e.loadWeight()) - int64(oldWeight)
	if p.trackAccessOrder {
		p.accessMoveToTail(e)
	}
	if p.trackWriteOrder {
		p.writeMoveToTail(e)
	}
	p.evictToCapacity()
}

// onAccess records a read touch: move-to-tail in access order. Safe to
// call even when trackAccessOrder is false (no-op).
func (p *policy) onAccess(e *entry) {
	if p.trackAccessOrder {
		p.accessMoveToTail(e)
	}
}

// onRemove unlinks e from every list it participates in and debits its
// weight. Called for explicit removal, expiration and eviction alike,
// always before the entry is handed to notify.
func (p *policy) onRemove(e *entry) {
	if p.trackAccessOrder {
		p.accessUnlink(e)
	}
	if p.trackWriteOrder {
		p.writeUnlink(e)
	}
	p.weightedSize -= int64(e.loadWeight())
	if p.weightedSize < 0 {
		p.weightedSize = 0
	}
}

// --- capacity enforcement (spec section 4.5 "Size/weight eviction") ----

// evictToCapacity retires entries from the access-order head until the
// weighted size is within bound, skipping weight-0 entries, which are
// exempt from size eviction. Each victim: CAS ALIVE->RETIRED, remove from
// the index, unlink from both lists, dispatch CauseSize to notify.
func (p *policy) evictToCapacity() {
	if p.maximumWeight <= 0 {
		return
	}
	for p.weightedSize > p.maximumWeight {
		victim := p.accessHead
		for victim != nil && victim.loadWeight() == 0 {
			victim = victim.accessNext
		}
		if victim == nil {
			break
		}
		if !victim.casStatus(statusAlive, statusRetired) {
			// Lost a race with a concurrent explicit removal/replace; that
			// path already did (or will do) the accounting. Re-sync head.
			p.accessUnlink(victim)
			continue
		}
		p.retire(victim, CauseSize)
	}
}

// retire finishes the RETIRED->DEAD transition for e: unlink, remove from
// the index, debit weight, and dispatch the removal notification. Callers
// must already have CAS'd e to statusRetired.
func (p *policy) retire(e *entry, cause RemovalCause) {
	p.onRemove(e)
	p.index.remove(e.keyHash, e)
	e.casStatus(statusRetired, statusDead)
	if p.notify != nil {
		p.notify(e, cause)
	}
}

// --- expiration scanning (spec section 4.5 "Access/write expiration") --

// expireAccess walks the access-order list from the head, retiring every
// entry whose access-time bound has elapsed, and stops at the first
// entry that has not (recency order guarantees everything after it is
// fresher still).
func (p *policy) expireAccess(now int64) {
	if p.expireAfterAccess <= 0 {
		return
	}
	bound := p.expireAfterAccess.Nanoseconds()
	for e := p.accessHead; e != nil; {
		next := e.accessNext
		if now-e.loadAccessTime() < bound {
			break
		}
		if _, ok := e.loadKey(); !ok {
			// No special case: past the bound, a collected weak key is
			// retired as expired like any other entry; collected entries
			// still within the bound are left to expireCollected.
		}
		if e.casStatus(statusAlive, statusRetired) {
			p.retire(e, CauseExpired)
		}
		e = next
	}
}

// expireWrite walks the write-order list from the head, retiring every
// entry whose write-time bound has elapsed.
func (p *policy) expireWrite(now int64) {
	if p.expireAfterWrite <= 0 {
		return
	}
	bound := p.expireAfterWrite.Nanoseconds()
	for e := p.writeHead; e != nil; {
		next := e.writeNext
		if now-e.loadWriteTime() < bound {
			break
		}
		if e.casStatus(statusAlive, statusRetired) {
			p.retire(e, CauseExpired)
		}
		e = next
	}
}

// expireCollected scans the whole index for weak/soft keys or values
// whose referent the garbage collector already reclaimed. Unlike the
// time-ordered scans above this cannot stop early: collection order has
// no relationship to either list's order. Called once per drain; cheap
// in practice because runtime.AddCleanup already retired most of these
// eagerly (see cache.go's onReclaimed), so this is a
// backstop for the rare race rather than the primary reclamation path.
func (p *policy) expireCollected() {
	var dead []*entry
	p.index.forEach(func(e *entry) {
		if e.loadStatus() != statusAlive {
			return
		}
		if _, ok := e.loadKey(); !ok {
			dead = append(dead, e)
			return
		}
		if _, ok := e.loadValue(); !ok {
			dead = append(dead, e)
		}
	})
	for _, e := range dead {
		if e.casStatus(statusAlive, statusRetired) {
			p.retire(e, CauseCollected)
		}
	}
}

// refreshWrite walks the write-order list triggering a refresh for every
// entry whose age has passed refreshAfterWrite and which has no refresh
// already in flight (spec section 4.5 "Refresh"). Unlike expiration this
// never removes the entry: the stale value stays visible until the
// reload completes (spec invariant: refresh failures are swallowed and
// leave the existing mapping untouched).
func (p *policy) refreshWrite(now int64) {
	if p.refreshAfterWrite <= 0 || p.reload == nil {
		return
	}
	bound := p.refreshAfterWrite.Nanoseconds()
	for e := p.writeHead; e != nil; e = e.writeNext {
		if e.loadStatus() != statusAlive {
			continue
		}
		if now-e.loadWriteTime() < bound {
			continue
		}
		if e.tryStartRefresh() {
			p.reload(e)
		}
	}
}

// runMaintenance performs one full maintenance pass: capacity is already
// enforced incrementally by onAdd/onUpdate, so a pass only needs to sweep
// expiration, collection and refresh.
func (p *policy) runMaintenance() {
	now := p.now()
	p.expireAccess(now)
	p.expireWrite(now)
	p.expireCollected()
	p.refreshWrite(now)
}
