// entry.go: per-key entry record (spec section 4.2)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import "sync/atomic"

// status values for entry.status. Only the drain goroutine (policy.go, under
// the eviction lock) may transition RETIRED -> DEAD; any operation may
// transition ALIVE -> RETIRED via CAS.
const (
	statusAlive   int32 = iota // visible to Get/asMap
	statusRetired              // logically removed, still linked pending drain
	statusDead                 // fully unlinked; entry is garbage
)

// entry is the per-key record described by spec section 3. One lives in the
// hash index for as long as its key is present (status != DEAD). Hot fields
// (value, status, timestamps) are touched by concurrent readers and writers
// without the eviction lock; the policy list links are touched only by the
// drain goroutine while it holds the eviction lock, so they need no atomics
// of their own — the lock is what makes their mutation safe, not the field
// type.
type entry struct {
	keyHash uint64 // immutable, used for hash-index bucket placement
	key     keyRef // immutable identity of this record

	weight int32 // atomic; 0 exempts the entry from weight-based eviction

	writeTime  int64 // atomic nanos since the configured ticker's epoch
	accessTime int64 // atomic nanos; updated on every read and write touch

	status int32 // atomic, one of statusAlive/statusRetired/statusDead

	refreshing int32 // atomic flag: CAS 0->1 claims the one outstanding refresh

	value atomic.Pointer[valueHolder]

	// Policy list links. See policy.go. nil means "not linked into this
	// list" (e.g. writeList is unused unless expireAfterWrite/refreshAfterWrite
	// is configured).
	accessPrev, accessNext *entry
	writePrev, writeNext   *entry
}

func newEntry(k keyRef, hash uint64, v *valueHolder, weight int32, now int64) *entry {
	e := &entry{
		keyHash:    hash,
		key:        k,
		weight:     weight,
		writeTime:  now,
		accessTime: now,
		status:     statusAlive,
	}
	e.value.Store(v)
	return e
}

func (e *entry) loadStatus() int32 { return atomic.LoadInt32(&e.status) }

func (e *entry) casStatus(old, new int32) bool {
	return atomic.CompareAndSwapInt32(&e.status, old, new)
}

func (e *entry) loadValue() (interface{}, bool) {
	return e.value.Load().load()
}

func (e *entry) storeValue(v *valueHolder) { e.value.Store(v) }

// loadHolder returns the raw holder pointer, for CAS-based replace(k, vOld, vNew).
func (e *entry) loadHolder() *valueHolder { return e.value.Load() }

func (e *entry) casValue(old, new *valueHolder) bool {
	return e.value.CompareAndSwap(old, new)
}

func (e *entry) loadWeight() int32 { return atomic.LoadInt32(&e.weight) }

func (e *entry) storeWeight(w int32) { atomic.StoreInt32(&e.weight, w) }

func (e *entry) loadWriteTime() int64 { return atomic.LoadInt64(&e.writeTime) }

func (e *entry) storeWriteTime(t int64) { atomic.StoreInt64(&e.writeTime, t) }

func (e *entry) loadAccessTime() int64 { return atomic.LoadInt64(&e.accessTime) }

func (e *entry) storeAccessTime(t int64) { atomic.StoreInt64(&e.accessTime, t) }

// loadKey returns the live key string, or ok=false if this is a weak key whose
// referent has already been garbage-collected (spec invariant 5: treated as
// expired, not visible, eligible for removal at next drain).
func (e *entry) loadKey() (string, bool) { return e.key.load() }

// tryStartRefresh claims the single outstanding refresh slot for this entry
// (spec section 4.5 "Refresh"). Returns false if a refresh is already
// in-flight.
func (e *entry) tryStartRefresh() bool {
	return atomic.CompareAndSwapInt32(&e.refreshing, 0, 1)
}

func (e *entry) endRefresh() { atomic.StoreInt32(&e.refreshing, 0) }
