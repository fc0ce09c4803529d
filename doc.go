// Package caffeine provides a high-performance, in-process, bounded
// associative cache with size- or weight-based eviction, optional
// time-based expiration, single-flight loading, and weak/soft
// reference support.
//
// # Overview
//
// caffeine is designed for production use with a focus on:
//   - Correctness: deterministic least-recently-used eviction with exact,
//     testable outcomes rather than probabilistic sampling
//   - Concurrency: striped read buffering and opportunistic maintenance
//     drains, run by whichever caller wins a TryLock, keep the hot
//     Get/Put path free of a cache-wide lock
//   - Type Safety: a generic API (GenericCache[K, V]) alongside the core
//     string-keyed Cache
//   - Observability: structured logging, a MetricsCollector hook, and an
//     optional OpenTelemetry integration (separate module)
//
// # Quick Start
//
//	import "github.com/kt3k/caffeine"
//
//	type User struct {
//	    ID   int
//	    Name string
//	}
//
//	func main() {
//	    cache, err := caffeine.NewGenericCache[string, User](caffeine.Config{
//	        MaximumSize:       10_000,
//	        ExpireAfterWrite:  durationPtr(time.Hour),
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    cache.Put("user:123", User{ID: 123, Name: "Alice"})
//
//	    if user, found := cache.GetIfPresent("user:123"); found {
//	        fmt.Printf("User: %s\n", user.Name)
//	    }
//
//	    stats := cache.Stats()
//	    fmt.Printf("Hit ratio: %.2f%%\n", stats.HitRate()*100)
//	}
//
// # Single-flight Loading
//
// GetWithLoader prevents cache stampede: concurrent calls for the same
// missing key invoke loader exactly once and all observe its result.
//
//	user, err := cache.GetWithLoader("user:123", func(key string) (User, error) {
//	    return fetchUserFromDB(123) // runs once even under concurrent callers
//	})
//	if err != nil {
//	    log.Printf("failed to load user: %v", err)
//	}
//
// Key characteristics:
//   - Cache hit: identical cost to GetIfPresent, no loader invocation
//   - N concurrent misses for the same key: one loader call
//   - Loader errors can be cached via Config.NegativeCacheTTL, so a key
//     whose backing store is down doesn't re-pay the loader's cost on
//     every request
//   - A panicking loader is recovered and reported as ErrCodePanicRecovered
//
// # Eviction Policy
//
// caffeine evicts deterministically from the head of an access-order (or
// write-order, where applicable) doubly linked list once the configured
// weight ceiling is exceeded. This is a departure from frequency-sketch
// sampling eviction: exact evicted-key outcomes are part of this cache's
// contract, not an implementation detail. A Count-Min Sketch frequency
// estimator is still maintained and exposed via Cache.FrequencyOf, purely
// as a read-only diagnostic — it does not influence which entry is
// chosen for eviction.
//
// # Concurrency Model
//
//   - Reads record a lossy event into a striped ring buffer, then
//     opportunistically try to drain the buffers without blocking
//     (sync.Mutex.TryLock).
//   - Writes record a lossless event into a FIFO buffer, then make the
//     same opportunistic drain attempt. At most one goroutine is ever
//     draining.
//   - CleanUp forces a blocking drain, guaranteeing every buffered event
//     has been applied before it returns.
//
// There is no background maintenance goroutine: a Get/Put that wins the
// TryLock performs the drain (and the expiration and refresh sweep) on
// its own goroutine before returning, while callers that lose it touch
// only the index (a sharded, lock-striped hash map) and the buffers.
//
// # Expiration
//
// ExpireAfterAccess and ExpireAfterWrite are *time.Duration so an
// explicit zero ("expire every entry immediately") is distinguishable
// from "not configured" (nil). Expired entries are discovered lazily, by
// the maintenance coordinator scanning from the head of the relevant
// list and stopping at the first still-live entry — no background
// polling goroutine is required beyond the coordinator's drain.
//
// RefreshAfterWrite schedules an asynchronous reload once an entry's
// write age passes the configured bound; the stale value remains visible
// to readers until the reload completes. Refresh failures are logged and
// swallowed, keeping the prior value; a nil reload result removes the
// entry.
//
// # Weak and Soft References
//
// WeakKeys, WeakValues, and SoftValues store their referent behind a
// weak.Pointer (for values, only when the value is a non-nil pointer;
// other values are held strongly) so the garbage collector may reclaim
// it once nothing else
// in the program holds a strong reference. Reclamation is driven by
// runtime.AddCleanup callbacks, not a timer: an entry whose key or value
// has actually been collected is treated as expired on its next access
// or at the next maintenance sweep, whichever comes first.
//
// # Observability
//
// Built-in stats tracking:
//
//	stats := cache.Stats()
//	fmt.Printf("hits=%d misses=%d hitRate=%.2f%%\n",
//	    stats.HitCount, stats.MissCount, stats.HitRate()*100)
//	fmt.Printf("avgLoadPenalty=%.0fns evictions=%d\n",
//	    stats.AverageLoadPenalty(), stats.EvictionCount)
//
// Structured observability is available via the separate caffeine/otel
// module, which implements MetricsCollector on top of OpenTelemetry:
//
//	import caffeineotel "github.com/kt3k/caffeine/otel"
//
//	collector, _ := caffeineotel.NewOTelMetricsCollector(meterProvider)
//	cache, _ := caffeine.NewCache(caffeine.Config{
//	    MaximumSize:      10_000,
//	    MetricsCollector: collector,
//	})
//
// The core caffeine package has zero OpenTelemetry dependencies.
//
// # Hot Reload
//
// HotConfig watches a configuration file (any format argus understands)
// and applies weight-ceiling and expiration changes to a running Cache
// without reconstructing it. Structural options — Weigher, WeakKeys,
// RemovalListener, Executor — remain construction-time only.
//
// # Configuration
//
// Complete configuration options:
//
//	d := 5 * time.Minute
//	config := caffeine.Config{
//	    MaximumSize:       10_000,          // or MaximumWeight + Weigher
//	    ExpireAfterAccess: &d,
//	    RefreshAfterWrite: time.Hour,
//	    Loader:            fetchFromDB,
//	    NegativeCacheTTL:  5 * time.Second,
//	    RemovalListener:   logEviction,
//	    RecordStats:       true,
//	    Logger:            myLogger,
//	    MetricsCollector:  metricsCollector,
//	}
//
// # Error Handling
//
// caffeine uses structured errors with error codes, built on
// github.com/agilira/go-errors:
//
//	user, err := cache.GetWithLoader("user:123", loader)
//	if err != nil {
//	    switch caffeine.GetErrorCode(err) {
//	    case caffeine.ErrCodePanicRecovered:
//	        log.Printf("loader panicked: %v", err)
//	    case caffeine.ErrCodeLoaderFailed:
//	        log.Printf("loader failed: %v", err)
//	    }
//	    return
//	}
//
// Available error codes: ErrCodeInvalidConfig, ErrCodeEmptyKey,
// ErrCodeNilLoader, ErrCodeNegativeWeight, ErrCodeLoaderFailed,
// ErrCodeInvalidLoadResult, ErrCodeInternalError, ErrCodePanicRecovered.
//
// # Generic API
//
// GenericCache[K comparable, V any] wraps Cache with compile-time type
// checking; keys are converted to string with a strconv fast path (no
// fmt) for common scalar types.
//
//	cache, _ := caffeine.NewGenericCache[int, Order](caffeine.Config{MaximumSize: 1000})
//	cache.Put(42, order)
//	order, found := cache.GetIfPresent(42)
//
// The untyped Cache remains available directly for callers that already
// work in terms of string keys and interface{} values.
//
// # Thread Safety
//
// All cache operations are safe for concurrent use from multiple
// goroutines, including Stats, AsMap, and CleanUp.
package caffeine
