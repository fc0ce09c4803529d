// config.go: cache configuration (spec section 6 "Configuration (summary)")
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import (
	"time"

	"github.com/agilira/go-timecache"
)

// Config holds every construction-time option for a Cache (spec section
// 6's configuration table). The zero Config is valid: Validate fills in
// the teacher's defaults (bounded at DefaultMaximumSize, no expiration,
// no weak/soft references, NoOpLogger/NoOpMetricsCollector).
type Config struct {
	// InitialCapacity is accepted as a sizing hint only: the hash index
	// (sync.Map-backed) is not presized from it and grows unbounded.
	InitialCapacity int

	// MaximumSize bounds the number of entries. Mutually exclusive with
	// MaximumWeight/Weigher: it is shorthand for MaximumWeight with an
	// implicit weigher that returns 1 for every entry.
	MaximumSize int64

	// MaximumWeight bounds the sum of Weigher(key, value) across all
	// entries. Requires Weigher to be set.
	MaximumWeight int64

	// Weigher assigns a weight to each entry. Must return >= 0. Required
	// when MaximumWeight is set; rejected together with MaximumSize.
	Weigher func(key string, value interface{}) int

	// ExpireAfterAccess bounds how long an entry survives since its last
	// read or write. A pointer so the zero duration (configure eviction
	// on every access, spec's maximumSize(0) collapse) is distinguishable
	// from "not configured" (nil).
	ExpireAfterAccess *time.Duration

	// ExpireAfterWrite bounds how long an entry survives since it was
	// last written. Same nil-vs-zero distinction as ExpireAfterAccess.
	ExpireAfterWrite *time.Duration

	// RefreshAfterWrite, if > 0, triggers an asynchronous reload once an
	// entry's write age passes this bound. Requires Loader.
	RefreshAfterWrite time.Duration

	// WeakKeys stores keys behind a weak.Pointer so the garbage collector
	// may reclaim a key (and thus its entry) once nothing else references
	// it. Approximated via content equality; see DESIGN.md.
	WeakKeys bool

	// WeakValues/SoftValues store values behind a weak.Pointer when the
	// value is a non-nil pointer; other values are held strongly. Mutually
	// exclusive; Go has no distinct soft-reference facility, so SoftValues
	// is emulated identically to WeakValues (spec section 9 allows this).
	WeakValues bool
	SoftValues bool

	// Loader, when set, backs the cache-level refresh mechanism
	// (RefreshAfterWrite). GetIfPresent never calls it on a miss; per-call
	// loaders passed directly to GetWithLoader/GetAll do not require this.
	Loader func(key string) (interface{}, error)

	// Reloader customizes refresh (spec section 4.5's "reload" operation,
	// which may consult oldValue). If nil but Loader is set, refresh
	// falls back to calling Loader(key) and discarding oldValue.
	Reloader func(key string, oldValue interface{}) (interface{}, error)

	// RemovalListener, if set, is invoked once per entry that leaves the
	// cache, on Executor, never inline with the operation that triggered
	// the removal.
	RemovalListener RemovalListener

	// RecordStats is not consulted by the cache: the statistics counters
	// (a handful of atomic adds, matching the teacher's always-on
	// counters) are maintained and reported by Stats() whether or not it
	// is set.
	RecordStats bool

	// NegativeCacheTTL caches a loader's error for this long, so repeated
	// gets for a key whose load consistently fails don't all pay the
	// loader's cost. 0 disables negative caching.
	NegativeCacheTTL time.Duration

	// Ticker supplies the current time. Defaults to a go-timecache-backed
	// provider, matching the teacher's TTL implementation.
	Ticker TimeProvider

	// Executor runs removal notifications and refresh loads. Defaults to
	// one goroutine per task.
	Executor Executor

	// Logger receives structured diagnostic events. Defaults to NoOpLogger.
	Logger Logger

	// MetricsCollector receives per-operation measurements. Defaults to
	// NoOpMetricsCollector.
	MetricsCollector MetricsCollector
}

// Validate normalizes c in place, applying defaults, and reports an
// error for any combination spec section 7 classifies as an
// illegal-argument configuration mistake.
func (c *Config) Validate() error {
	if c.MaximumSize > 0 && c.MaximumWeight > 0 {
		return NewErrInvalidConfig("maximumSize and maximumWeight are mutually exclusive")
	}
	if c.Weigher != nil && c.MaximumWeight <= 0 {
		return NewErrInvalidConfig("weigher requires maximumWeight to be set")
	}
	if c.MaximumSize > 0 && c.Weigher != nil {
		return NewErrInvalidConfig("maximumSize cannot be combined with a custom weigher")
	}
	if c.WeakValues && c.SoftValues {
		return NewErrInvalidConfig("weakValues and softValues are mutually exclusive")
	}
	if c.RefreshAfterWrite < 0 {
		return NewErrInvalidConfig("refreshAfterWrite must be >= 0")
	}
	if c.RefreshAfterWrite > 0 && c.Loader == nil {
		return NewErrInvalidConfig("refreshAfterWrite requires a loader")
	}
	if c.ExpireAfterAccess != nil && *c.ExpireAfterAccess < 0 {
		return NewErrInvalidConfig("expireAfterAccess must be >= 0")
	}
	if c.ExpireAfterWrite != nil && *c.ExpireAfterWrite < 0 {
		return NewErrInvalidConfig("expireAfterWrite must be >= 0")
	}

	if c.InitialCapacity < 0 {
		c.InitialCapacity = 0
	}

	if c.Ticker == nil {
		c.Ticker = &systemTimeProvider{}
	}
	if c.Executor == nil {
		c.Executor = goroutinePerTaskExecutor{}
	}
	if c.Logger == nil {
		c.Logger = NoOpLogger{}
	}
	if c.MetricsCollector == nil {
		c.MetricsCollector = NoOpMetricsCollector{}
	}

	return nil
}

// effectiveMaximumWeight resolves the configured size/weight bound into a
// single weight ceiling plus the weigher that produced it, collapsing
// expireAfter*(0) into maximumSize(0) per spec section 6's note that an
// explicit zero duration forces immediate eviction of every entry.
func (c *Config) effectiveMaximumWeight() (maxWeight int64, weigher func(key string, value interface{}) int) {
	weigher = c.Weigher
	switch {
	case c.MaximumSize > 0:
		maxWeight = c.MaximumSize
		weigher = func(string, interface{}) int { return 1 }
	case c.MaximumWeight > 0:
		maxWeight = c.MaximumWeight
	default:
		maxWeight = DefaultMaximumSize
		weigher = func(string, interface{}) int { return 1 }
	}

	if (c.ExpireAfterAccess != nil && *c.ExpireAfterAccess == 0) ||
		(c.ExpireAfterWrite != nil && *c.ExpireAfterWrite == 0) {
		maxWeight = 0
	}
	return maxWeight, weigher
}

func (c *Config) expireAfterAccess() time.Duration {
	if c.ExpireAfterAccess == nil {
		return 0
	}
	return *c.ExpireAfterAccess
}

func (c *Config) expireAfterWrite() time.Duration {
	if c.ExpireAfterWrite == nil {
		return 0
	}
	return *c.ExpireAfterWrite
}

// DefaultConfig returns a Config with sensible defaults: bounded at
// DefaultMaximumSize entries, no expiration, no weak/soft references.
func DefaultConfig() Config {
	cfg := Config{MaximumSize: DefaultMaximumSize}
	_ = cfg.Validate()
	return cfg
}

// systemTimeProvider is the default TimeProvider, backed by
// go-timecache's periodically-refreshed clock (teacher's cache.go
// approach): far cheaper than time.Now() on the hot path, at the cost of
// sub-refresh-interval precision that is immaterial for TTL bookkeeping.
type systemTimeProvider struct{}

func (t *systemTimeProvider) Now() int64 {
	return timecache.CachedTimeNano()
}
