// readbuffer.go: striped lossy ring buffer of recent read events (spec 4.3)
//
// Go has no stable, cheap thread-identity primitive to hash on the way a
// native-threaded implementation would (spec section 9's "per-thread
// stripes" note). An atomically incremented round-robin counter gives the
// same effect — spreading concurrent readers across stripes to cut
// contention — without needing one; losing the occasional event is fine
// either way, since the read buffer is explicitly an approximation.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import (
	"runtime"
	"sync/atomic"
)

const readBufferStripeSize = 16 // entries per stripe ring

// readStripe is one lossy bounded ring. head counts claimed write slots;
// a failed CAS on the write slot (still holding an undrained event) just
// drops the new event.
type readStripe struct {
	_    [0]int64 // zero-size: adds alignment only, no padding; each stripe is its own allocation
	head int64    // atomic, next slot index to claim for a write
	ring [readBufferStripeSize]atomic.Pointer[entry]
}

// readBuffer is the Read Buffer component: a collection of per-stripe
// bounded rings. record() is lossy and never blocks; drain() is called by
// the maintenance coordinator while it holds the eviction lock.
type readBuffer struct {
	stripes   []*readStripe
	stripeCtr uint64 // atomic round-robin selector
}

func newReadBuffer() *readBuffer {
	n := nextPowerOf2(runtime.GOMAXPROCS(0))
	if n < 2 {
		n = 2
	}
	if n > 128 {
		n = 128
	}
	rb := &readBuffer{stripes: make([]*readStripe, n)}
	for i := range rb.stripes {
		rb.stripes[i] = &readStripe{}
	}
	return rb
}

// record attempts to append e to a stripe's ring. If the claimed slot
// still holds an event not yet drained (the ring is full), e is dropped: the
// policy is an approximation of LRU, and a dropped read merely delays a
// record's recency promotion.
func (rb *readBuffer) record(e *entry) {
	idx := atomic.AddUint64(&rb.stripeCtr, 1) & uint64(len(rb.stripes)-1)
	s := rb.stripes[idx]
	head := atomic.AddInt64(&s.head, 1) - 1
	slot := &s.ring[uint64(head)&uint64(readBufferStripeSize-1)]
	slot.CompareAndSwap(nil, e)
}

// drain applies fn to every recorded entry pointer, in the order observed
// per stripe, then clears the ring. Must only be called by the drain
// goroutine while holding the eviction lock.
func (rb *readBuffer) drain(fn func(*entry)) {
	for _, s := range rb.stripes {
		head := atomic.LoadInt64(&s.head)
		count := int64(readBufferStripeSize)
		if head < count {
			count = head
		}
		start := head - count
		for i := int64(0); i < count; i++ {
			slot := &s.ring[uint64(start+i)&uint64(readBufferStripeSize-1)]
			if e := slot.Swap(nil); e != nil {
				fn(e)
			}
		}
	}
}
