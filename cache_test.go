// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package caffeine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTicker gives cache-level tests nanosecond-exact control over time,
// standing in for the go-timecache-backed systemTimeProvider.
type fakeTicker struct{ ns int64 }

func (f *fakeTicker) Now() int64 { return atomic.LoadInt64(&f.ns) }
func (f *fakeTicker) Advance(d time.Duration) { atomic.AddInt64(&f.ns, int64(d)) }

// syncExecutor runs tasks inline, for deterministic assertions on
// refresh/removal-listener side effects that would otherwise race a test.
type syncExecutor struct{}

func (syncExecutor) Execute(task func()) { task() }

func TestCachePutGetIfPresent(t *testing.T) {
	c, err := NewCache(Config{MaximumSize: 10})
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer c.Close()

	if err := c.Put("k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	v, found := c.GetIfPresent("k")
	if !found || v != "v" {
		t.Fatalf("GetIfPresent = %v, %v, want v, true", v, found)
	}
}

func TestCacheGetIfPresentEmptyKey(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	if _, found := c.GetIfPresent(""); found {
		t.Fatal("expected empty key to always miss")
	}
}

func TestCachePutEmptyKeyRejected(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	if err := c.Put("", "v"); !IsConfigError(err) && GetErrorCode(err) != ErrCodeEmptyKey {
		t.Fatalf("expected ErrCodeEmptyKey, got %v", err)
	}
}

func TestCachePutReplaceFiresReplaced(t *testing.T) {
	var causes []RemovalCause
	var mu sync.Mutex
	c, _ := NewCache(Config{
		MaximumSize: 10,
		Executor:    syncExecutor{},
		RemovalListener: func(key string, value interface{}, cause RemovalCause) {
			mu.Lock()
			causes = append(causes, cause)
			mu.Unlock()
		},
	})
	defer c.Close()

	c.Put("k", "v1")
	c.Put("k", "v2")

	mu.Lock()
	defer mu.Unlock()
	if len(causes) != 1 || causes[0] != CauseReplaced {
		t.Fatalf("causes = %v, want [REPLACED]", causes)
	}
}

func TestCachePutIfAbsent(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	prior, present, err := c.PutIfAbsent("k", "v1")
	if err != nil || present || prior != nil {
		t.Fatalf("first PutIfAbsent = %v, %v, %v, want nil, false, nil", prior, present, err)
	}

	prior, present, err = c.PutIfAbsent("k", "v2")
	if err != nil || !present || prior != "v1" {
		t.Fatalf("second PutIfAbsent = %v, %v, %v, want v1, true, nil", prior, present, err)
	}
	v, _ := c.GetIfPresent("k")
	if v != "v1" {
		t.Fatalf("value after PutIfAbsent collision = %v, want v1 (unchanged)", v)
	}
}

func TestCacheReplaceOnlyIfPresent(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	_, ok, err := c.Replace("missing", "v")
	if err != nil || ok {
		t.Fatalf("Replace on absent key = %v, %v, want false, nil", ok, err)
	}

	c.Put("k", "v1")
	prior, ok, err := c.Replace("k", "v2")
	if err != nil || !ok || prior != "v1" {
		t.Fatalf("Replace on present key = %v, %v, %v, want v1, true, nil", prior, ok, err)
	}
	v, _ := c.GetIfPresent("k")
	if v != "v2" {
		t.Fatalf("value after Replace = %v, want v2", v)
	}
}

func TestCacheReplaceValueCAS(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	c.Put("k", "v1")

	ok, err := c.ReplaceValue("k", "wrong", "v2")
	if err != nil || ok {
		t.Fatalf("ReplaceValue with wrong old value = %v, %v, want false, nil", ok, err)
	}

	ok, err = c.ReplaceValue("k", "v1", "v2")
	if err != nil || !ok {
		t.Fatalf("ReplaceValue with correct old value = %v, %v, want true, nil", ok, err)
	}
	v, _ := c.GetIfPresent("k")
	if v != "v2" {
		t.Fatalf("value after ReplaceValue = %v, want v2", v)
	}
}

func TestCacheInvalidateIdempotent(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	c.Put("k", "v")
	if !c.Invalidate("k") {
		t.Fatal("expected first Invalidate to succeed")
	}
	if c.Invalidate("k") {
		t.Fatal("expected second Invalidate on already-removed key to report false")
	}
}

func TestCacheInvalidateAllNoArgsClearsEverything(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	c.Put("a", 1)
	c.Put("b", 2)
	c.InvalidateAll()

	if c.EstimatedSize() != 0 {
		t.Fatalf("EstimatedSize() = %d after InvalidateAll(), want 0", c.EstimatedSize())
	}
}

func TestCacheNegativeWeightRejected(t *testing.T) {
	c, _ := NewCache(Config{
		MaximumWeight: 100,
		Weigher:       func(string, interface{}) int { return -1 },
	})
	defer c.Close()

	err := c.Put("k", "v")
	if GetErrorCode(err) != ErrCodeNegativeWeight {
		t.Fatalf("Put error = %v, want ErrCodeNegativeWeight", err)
	}
}

func TestCacheRangeAndAsMap(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	c.Put("a", 1)
	c.Put("b", 2)

	m := c.AsMap()
	if len(m) != 2 || m["a"] != 1 || m["b"] != 2 {
		t.Fatalf("AsMap() = %v, want map[a:1 b:2]", m)
	}

	seen := map[string]bool{}
	c.Range(func(k string, v interface{}) bool {
		seen[k] = true
		return true
	})
	if len(seen) != 2 {
		t.Fatalf("Range visited %d keys, want 2", len(seen))
	}
}

func TestCacheRangeStopsEarly(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	count := 0
	c.Range(func(k string, v interface{}) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("Range visited %d keys after returning false, want 1", count)
	}
}

// --- size eviction order, maximumSize=3 ---------------------------------

func TestCacheSizeEvictionLRUOrder(t *testing.T) {
	var evicted []string
	var mu sync.Mutex
	c, _ := NewCache(Config{
		MaximumSize: 3,
		Executor:    syncExecutor{},
		RemovalListener: func(key string, value interface{}, cause RemovalCause) {
			mu.Lock()
			evicted = append(evicted, key)
			mu.Unlock()
		},
	})
	defer c.Close()

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)
	c.Put("d", 4) // over capacity: evicts least recently used, "a"

	mu.Lock()
	defer mu.Unlock()
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("evicted = %v, want [a]", evicted)
	}
	if c.EstimatedSize() != 3 {
		t.Fatalf("EstimatedSize() = %d, want 3", c.EstimatedSize())
	}
}

// --- write expiry at exact nanosecond boundary --------------------------

func TestCacheExpireAfterWriteExactBoundary(t *testing.T) {
	ticker := &fakeTicker{}
	d := 10 * time.Millisecond
	c, _ := NewCache(Config{MaximumSize: 10, ExpireAfterWrite: &d, Ticker: ticker})
	defer c.Close()

	c.Put("k", "v")

	ticker.Advance(9 * time.Millisecond)
	if _, found := c.GetIfPresent("k"); !found {
		t.Fatal("expected key to still be present 1ms before the write-expiry bound")
	}

	ticker.Advance(1 * time.Millisecond) // now exactly at the 10ms bound
	if _, found := c.GetIfPresent("k"); found {
		t.Fatal("expected key to be expired exactly at the write-expiry bound")
	}
}

// --- access expiry reset-on-read -----------------------------------------

func TestCacheExpireAfterAccessResetsOnEveryRead(t *testing.T) {
	ticker := &fakeTicker{}
	d := 10 * time.Millisecond
	c, _ := NewCache(Config{MaximumSize: 10, ExpireAfterAccess: &d, Ticker: ticker})
	defer c.Close()

	c.Put("k", "v")

	ticker.Advance(6 * time.Millisecond)
	if _, found := c.GetIfPresent("k"); !found {
		t.Fatal("expected hit at 6ms, within the 10ms access bound")
	}

	// Read at 6ms reset accessTime; 6ms further (12ms total since put,
	// but only 6ms since the last read) must still be a hit.
	ticker.Advance(6 * time.Millisecond)
	if _, found := c.GetIfPresent("k"); !found {
		t.Fatal("expected hit: access-time bound resets on every read")
	}

	// 11ms with no further reads exceeds the bound.
	ticker.Advance(11 * time.Millisecond)
	if _, found := c.GetIfPresent("k"); found {
		t.Fatal("expected miss once 11ms elapse since the last read")
	}
}

// --- single-flight loading -------------------------------------------------

func TestCacheGetWithLoaderSingleFlight(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	var loadCount int32
	const n = 10
	var wg sync.WaitGroup
	results := make([]interface{}, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = c.GetWithLoader("k", func(key string) (interface{}, error) {
				atomic.AddInt32(&loadCount, 1)
				time.Sleep(time.Millisecond)
				return "loaded", nil
			})
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&loadCount); got != 1 {
		t.Fatalf("loader ran %d times, want exactly 1 under single-flight", got)
	}
	for i, err := range errs {
		if err != nil {
			t.Errorf("goroutine %d: err = %v, want nil", i, err)
		}
		if results[i] != "loaded" {
			t.Errorf("goroutine %d: result = %v, want loaded", i, results[i])
		}
	}
}

func TestCacheGetWithLoaderEmptyKeyAndNilLoader(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	if _, err := c.GetWithLoader("", func(string) (interface{}, error) { return nil, nil }); GetErrorCode(err) != ErrCodeEmptyKey {
		t.Fatalf("expected ErrCodeEmptyKey, got %v", err)
	}
	if _, err := c.GetWithLoader("k", nil); GetErrorCode(err) != ErrCodeNilLoader {
		t.Fatalf("expected ErrCodeNilLoader, got %v", err)
	}
}

func TestCacheGetWithLoaderPropagatesError(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	sentinel := errNewSentinel("db down")
	_, err := c.GetWithLoader("k", func(string) (interface{}, error) { return nil, sentinel })
	if !IsLoaderError(err) {
		t.Fatalf("expected a loader error, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatal("expected loader failures to be retryable")
	}
}

func TestCacheGetWithLoaderPanicRecovered(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	_, err := c.GetWithLoader("k", func(string) (interface{}, error) {
		panic("boom")
	})
	if GetErrorCode(err) != ErrCodePanicRecovered {
		t.Fatalf("expected ErrCodePanicRecovered, got %v", err)
	}
}

func TestCacheGetWithLoaderNegativeCache(t *testing.T) {
	ticker := &fakeTicker{}
	c, _ := NewCache(Config{MaximumSize: 10, NegativeCacheTTL: 10 * time.Millisecond, Ticker: ticker})
	defer c.Close()

	var calls int32
	loader := func(string) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errNewSentinel("down")
	}

	c.GetWithLoader("k", loader)
	c.GetWithLoader("k", loader) // still within negative-cache TTL, loader not re-invoked

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("loader invoked %d times within the negative-cache window, want 1", got)
	}

	ticker.Advance(11 * time.Millisecond)
	c.GetWithLoader("k", loader) // negative entry expired, loader re-invoked

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("loader invoked %d times after the negative-cache window elapsed, want 2", got)
	}
}

// --- refresh-after-write --------------------------------------------------

func TestCacheRefreshAfterWrite(t *testing.T) {
	ticker := &fakeTicker{}
	var reloadCount int32
	c, _ := NewCache(Config{
		MaximumSize:       10,
		RefreshAfterWrite: 10 * time.Millisecond,
		Ticker:            ticker,
		Executor:          syncExecutor{},
		Loader: func(key string) (interface{}, error) {
			atomic.AddInt32(&reloadCount, 1)
			return "refreshed", nil
		},
	})
	defer c.Close()

	c.Put("k", "original")
	ticker.Advance(20 * time.Millisecond)

	// The read itself must trigger the refresh (spec section 4.5/8: "get(k)
	// returns the stale value immediately and schedules a reload"), not an
	// explicit CleanUp call.
	v, found := c.GetIfPresent("k")
	if !found || v != "original" {
		t.Fatalf("GetIfPresent at refresh time = %v, %v, want original, true (stale value returned immediately)", v, found)
	}

	if got := atomic.LoadInt32(&reloadCount); got != 1 {
		t.Fatalf("reloadCount = %d, want 1 (the read above must have scheduled the reload)", got)
	}
	v, found = c.GetIfPresent("k")
	if !found || v != "refreshed" {
		t.Fatalf("GetIfPresent after refresh = %v, %v, want refreshed, true", v, found)
	}
}

// --- weighted eviction, exact remaining keys ------------------------------

func TestCacheWeightedEvictionExactRemainingKeys(t *testing.T) {
	var mu sync.Mutex
	var evicted []string
	c, _ := NewCache(Config{
		MaximumWeight: 5,
		Weigher:       func(key string, value interface{}) int { return value.(int) },
		Executor:      syncExecutor{},
		RemovalListener: func(key string, value interface{}, cause RemovalCause) {
			mu.Lock()
			evicted = append(evicted, key)
			mu.Unlock()
		},
	})
	defer c.Close()

	c.Put("a", 2)
	c.Put("b", 2)
	c.Put("c", 3) // weightedSize would be 7; evicts "a" (head) down to <=5

	mu.Lock()
	defer mu.Unlock()
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("evicted = %v, want [a]", evicted)
	}

	remaining := map[string]bool{}
	c.Range(func(k string, v interface{}) bool {
		remaining[k] = true
		return true
	})
	if len(remaining) != 2 || !remaining["b"] || !remaining["c"] {
		t.Fatalf("remaining keys = %v, want exactly {b, c}", remaining)
	}
}

// --- metrics wiring --------------------------------------------------------

func TestCacheMetricsCollectorWired(t *testing.T) {
	collector := &recordingCollector{}
	c, _ := NewCache(Config{MaximumSize: 10, MetricsCollector: collector})
	defer c.Close()

	c.Put("k", "v")
	c.GetIfPresent("k")
	c.GetIfPresent("missing")
	c.Invalidate("k")

	if collector.sets != 1 {
		t.Errorf("sets = %d, want 1", collector.sets)
	}
	if collector.deletes != 1 {
		t.Errorf("deletes = %d, want 1", collector.deletes)
	}
	if len(collector.gets) != 2 || !collector.gets[0] || collector.gets[1] {
		t.Errorf("gets = %v, want [true false]", collector.gets)
	}
}

func TestCacheMetricsCollectorRecordsEviction(t *testing.T) {
	collector := &recordingCollector{}
	c, _ := NewCache(Config{MaximumSize: 1, MetricsCollector: collector, Executor: syncExecutor{}})
	defer c.Close()

	c.Put("a", 1)
	c.Put("b", 2) // evicts "a"

	if collector.evictions != 1 {
		t.Errorf("evictions = %d, want 1", collector.evictions)
	}
}

// --- stats -----------------------------------------------------------------

func TestCacheStatsHitRate(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	defer c.Close()

	c.Put("k", "v")
	c.GetIfPresent("k")
	c.GetIfPresent("k")
	c.GetIfPresent("missing")

	st := c.Stats()
	if st.HitCount != 2 || st.MissCount != 1 {
		t.Fatalf("Stats() = %+v, want HitCount=2, MissCount=1", st)
	}
	if got := st.HitRate(); got < 0.66 || got > 0.67 {
		t.Fatalf("HitRate() = %f, want ~0.667", got)
	}
}

func TestCacheCloseIsIdempotent(t *testing.T) {
	c, _ := NewCache(Config{MaximumSize: 10})
	if err := c.Close(); err != nil {
		t.Fatalf("first Close() = %v, want nil", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() = %v, want nil", err)
	}
}

// errNewSentinel is a minimal comparable error for loader-failure tests.
type errNewSentinel string

func (e errNewSentinel) Error() string { return string(e) }
