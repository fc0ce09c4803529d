// stats.go: cache statistics (spec section 6 "stats()")
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import "sync/atomic"

// Stats is an immutable snapshot of cumulative cache statistics (spec
// section 6). All counters saturate rather than wrap in practice, given
// realistic operation counts, but are not defended against deliberate
// overflow.
type Stats struct {
	HitCount          uint64
	MissCount         uint64
	LoadSuccessCount  uint64
	LoadFailureCount  uint64
	TotalLoadTimeNanos uint64
	EvictionCount     uint64
}

// HitRate returns HitCount / (HitCount + MissCount), or 1.0 when no
// request has ever been made (matching the convention that an empty
// cache is perfectly "efficient").
func (s Stats) HitRate() float64 {
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 1.0
	}
	return float64(s.HitCount) / float64(total)
}

// AverageLoadPenalty returns the mean nanoseconds spent per completed
// load (success or failure), or 0 if none occurred.
func (s Stats) AverageLoadPenalty() float64 {
	loads := s.LoadSuccessCount + s.LoadFailureCount
	if loads == 0 {
		return 0
	}
	return float64(s.TotalLoadTimeNanos) / float64(loads)
}

// statsRecorder holds the live atomic counters a cache mutates; Stats()
// takes a point-in-time snapshot of them. Present unconditionally; when
// Config.RecordStats is false the increments still happen (they are
// cheap atomic adds) but callers are told snapshotting is disabled is
// not modeled here since the cost of always recording is negligible and
// matches the teacher's always-on atomic counters in cache.go.
type statsRecorder struct {
	hitCount           uint64
	missCount          uint64
	loadSuccessCount   uint64
	loadFailureCount   uint64
	totalLoadTimeNanos uint64
	evictionCount      uint64
}

func (s *statsRecorder) recordHit()  { atomic.AddUint64(&s.hitCount, 1) }
func (s *statsRecorder) recordMiss() { atomic.AddUint64(&s.missCount, 1) }

func (s *statsRecorder) recordLoadSuccess(nanos int64) {
	atomic.AddUint64(&s.loadSuccessCount, 1)
	atomic.AddUint64(&s.totalLoadTimeNanos, uint64(nanos))
}

func (s *statsRecorder) recordLoadFailure(nanos int64) {
	atomic.AddUint64(&s.loadFailureCount, 1)
	atomic.AddUint64(&s.totalLoadTimeNanos, uint64(nanos))
}

func (s *statsRecorder) recordEviction() { atomic.AddUint64(&s.evictionCount, 1) }

func (s *statsRecorder) snapshot() Stats {
	return Stats{
		HitCount:           atomic.LoadUint64(&s.hitCount),
		MissCount:          atomic.LoadUint64(&s.missCount),
		LoadSuccessCount:   atomic.LoadUint64(&s.loadSuccessCount),
		LoadFailureCount:   atomic.LoadUint64(&s.loadFailureCount),
		TotalLoadTimeNanos: atomic.LoadUint64(&s.totalLoadTimeNanos),
		EvictionCount:      atomic.LoadUint64(&s.evictionCount),
	}
}
