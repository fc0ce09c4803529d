// writebuffer.go: lossless FIFO of pending write tasks (spec section 4.4)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import "sync"

// writeTaskKind enumerates the write tasks the policy must apply in
// enqueue order, since list membership of a later task can depend on an
// earlier one having been applied first (e.g. an update assumes a prior add).
type writeTaskKind int8

const (
	taskAdd writeTaskKind = iota
	taskUpdate
	taskRemove
	taskExpire
	taskRefreshStart
	taskRefreshEnd
)

type writeTask struct {
	kind      writeTaskKind
	e         *entry
	cause     RemovalCause // only meaningful for taskRemove/taskExpire
	oldWeight int32        // only meaningful for taskUpdate: weight before the change
}

// writeBuffer is the Write Buffer component: a single multi-producer FIFO.
// submit is lossless (it grows the backing slice rather than dropping);
// drain is FIFO and runs only under the eviction lock.
type writeBuffer struct {
	mu      sync.Mutex
	pending []writeTask
}

func (wb *writeBuffer) submit(t writeTask) {
	wb.mu.Lock()
	wb.pending = append(wb.pending, t)
	wb.mu.Unlock()
}

// drain hands the entire pending slice to fn, in FIFO order, and resets the
// buffer. Must only be called by the drain goroutine while holding the
// eviction lock.
func (wb *writeBuffer) drain(fn func(writeTask)) {
	wb.mu.Lock()
	tasks := wb.pending
	wb.pending = nil
	wb.mu.Unlock()

	for _, t := range tasks {
		fn(t)
	}
}

func (wb *writeBuffer) isEmpty() bool {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return len(wb.pending) == 0
}
