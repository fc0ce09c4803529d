// index.go: concurrent hash index mapping key -> entry (spec section 4.1)
//
// Keying the index by hash rather than by string lets weak-keyed caches
// avoid the index itself holding a strong reference to the key (see
// weakref.go): a bucket only ever stores *entry values, and an entry with
// weak keys holds its key behind a weak.Pointer, so once nothing outside
// the cache references the key string, it becomes collectible even while
// its entry sits in the index.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import "sync"

// bucket holds every live entry whose key hashes to the same slot. Hash
// collisions are rare in practice, so the list is almost always length 1;
// the mutex gives each bucket its own stripe of the index, satisfying the
// "concurrent mapping with lock striping" contract at the finest possible
// granularity.
type bucket struct {
	mu   sync.Mutex
	list []*entry
}

// hashIndex is the Hash Index component. It treats entries opaquely: all
// policy decisions (what counts as a match, when to evict) live in the
// caller-supplied predicate and in policy.go.
type hashIndex struct {
	buckets sync.Map // uint64 hash -> *bucket
}

func (h *hashIndex) bucketFor(hash uint64) *bucket {
	if b, ok := h.buckets.Load(hash); ok {
		return b.(*bucket)
	}
	actual, _ := h.buckets.LoadOrStore(hash, &bucket{})
	return actual.(*bucket)
}

// lookup returns the entry in hash's bucket for which match returns true,
// or nil if none matches. Never blocks a concurrent writer for longer than
// it takes to scan one bucket's (almost always single-element) list.
func (h *hashIndex) lookup(hash uint64, match func(*entry) bool) *entry {
	b := h.bucketFor(hash)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.list {
		if match(e) {
			return e
		}
	}
	return nil
}

// insertIfAbsent installs newE if no existing entry matches, returning
// (nil, true) on success or (existing, false) if one already matched.
func (h *hashIndex) insertIfAbsent(hash uint64, match func(*entry) bool, newE *entry) (*entry, bool) {
	b := h.bucketFor(hash)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.list {
		if match(e) {
			return e, false
		}
	}
	b.list = append(b.list, newE)
	return nil, true
}

// replace atomically swaps old for newE, provided old is still present.
func (h *hashIndex) replace(hash uint64, old, newE *entry) bool {
	b := h.bucketFor(hash)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.list {
		if e == old {
			b.list[i] = newE
			return true
		}
	}
	return false
}

// remove deletes target from its bucket, provided it is still mapped.
func (h *hashIndex) remove(hash uint64, target *entry) bool {
	b := h.bucketFor(hash)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.list {
		if e == target {
			b.list = append(b.list[:i], b.list[i+1:]...)
			return true
		}
	}
	return false
}

// forEach calls fn for every entry currently indexed, across all buckets.
// Weakly consistent: it may observe any subset of concurrent mutations and
// never errors because of them (spec section 8 invariant 6).
func (h *hashIndex) forEach(fn func(*entry)) {
	h.buckets.Range(func(_, v interface{}) bool {
		b := v.(*bucket)
		b.mu.Lock()
		snapshot := append([]*entry(nil), b.list...)
		b.mu.Unlock()
		for _, e := range snapshot {
			fn(e)
		}
		return true
	})
}
