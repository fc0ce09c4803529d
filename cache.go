// cache.go: the core cache facade (spec section 6 "External interfaces")
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import (
	"sync"
	"sync/atomic"
)

// Cache is a bounded, in-process, concurrent key/value store. The zero
// value is not usable; construct one with NewCache.
type Cache struct {
	cfg Config

	idx *hashIndex
	pol *policy
	mc  *maintenanceCoordinator

	stats  *statsRecorder
	sketch *frequencySketch

	expireAfterAccess bool // cfg.expireAfterAccess() > 0, cached for the hot path
	expireAfterWrite  bool

	inflight      sync.Map // string key -> *inflightCall, see loading.go
	negativeCache sync.Map // string key -> negativeEntry, see loading.go

	closed int32
}

// NewCache constructs a Cache from cfg. cfg is copied and normalized; the
// caller's struct is left untouched.
func NewCache(cfg Config) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	maxWeight, weigher := cfg.effectiveMaximumWeight()
	cfg.Weigher = weigher

	c := &Cache{
		cfg:               cfg,
		idx:               &hashIndex{},
		stats:             &statsRecorder{},
		sketch:            newFrequencySketch(int(maxWeight)),
		expireAfterAccess: cfg.expireAfterAccess() > 0,
		expireAfterWrite:  cfg.expireAfterWrite() > 0,
	}

	c.pol = newPolicy(c.idx, maxWeight, cfg.expireAfterAccess(), cfg.expireAfterWrite(), cfg.RefreshAfterWrite, cfg.Ticker.Now)
	c.pol.notify = c.notifyRemoval
	c.pol.reload = c.triggerRefresh

	reads := newReadBuffer()
	writes := &writeBuffer{}
	c.mc = newMaintenanceCoordinator(reads, writes, c.pol)

	return c, nil
}

func (c *Cache) matcher(key string) func(*entry) bool {
	return func(e *entry) bool {
		k, ok := e.loadKey()
		return ok && k == key
	}
}

// weightFor invokes the configured weigher, rejecting a negative result
// as an illegal-argument error (spec section 4.2).
func (c *Cache) weightFor(key string, value interface{}) (int32, error) {
	w := c.cfg.Weigher(key, value)
	if w < 0 {
		return 0, NewErrNegativeWeight(key, w)
	}
	return int32(w), nil
}

// newValueHolder wraps value per the configured reference strength. For
// weak/soft values, the collection callback submits a taskExpire so the
// entry is reclaimed promptly rather than waiting for the next periodic
// expireCollected sweep (spec section 9: host-integrated reachability
// sweep, not a timer).
func (c *Cache) newValueHolder(e *entry, value interface{}) *valueHolder {
	if !c.cfg.WeakValues && !c.cfg.SoftValues {
		return newStrongValue(value)
	}
	kind := refWeak
	if c.cfg.SoftValues {
		kind = refSoft
	}
	var h *valueHolder
	h = newWeakOrSoftValue(kind, value, func() { c.onReclaimed(e, h, CauseCollected) })
	return h
}

// newKeyRef wraps key per the configured reference strength, with the
// same prompt-reclamation wiring as newValueHolder.
func (c *Cache) newKeyRef(e *entry, key string) keyRef {
	if !c.cfg.WeakKeys {
		return newStrongKey(key)
	}
	return newWeakKey(key, func() { c.onReclaimed(e, nil, CauseCollected) })
}

// onReclaimed runs on an arbitrary runtime cleanup goroutine once a
// weak/soft key or value has been collected. staleHolder, if non-nil,
// guards against acting on a value that a concurrent Put already
// superseded.
func (c *Cache) onReclaimed(e *entry, staleHolder *valueHolder, cause RemovalCause) {
	if staleHolder != nil && e.loadHolder() != staleHolder {
		return
	}
	if e.casStatus(statusAlive, statusRetired) {
		c.idx.remove(e.keyHash, e)
		c.mc.recordWrite(writeTask{kind: taskExpire, e: e, cause: cause})
	}
}

// buildEntry allocates a new entry for key with the cache's configured
// reference strengths, using the two-phase construction weak references
// need: the entry must exist before its key/value closures can capture it.
func (c *Cache) buildEntry(key string, hash uint64, value interface{}, weight int32, now int64) *entry {
	e := &entry{keyHash: hash, weight: weight, writeTime: now, accessTime: now, status: statusAlive}
	e.key = c.newKeyRef(e, key)
	e.value.Store(c.newValueHolder(e, value))
	return e
}

func (c *Cache) isExpired(e *entry, now int64) bool {
	if c.expireAfterAccess && now-e.loadAccessTime() >= c.pol.expireAfterAccess.Nanoseconds() {
		return true
	}
	if c.expireAfterWrite && now-e.loadWriteTime() >= c.pol.expireAfterWrite.Nanoseconds() {
		return true
	}
	return false
}

// expireInline retires e immediately from the read path, rather than
// waiting for the next maintenance drain, so a caller observing an
// expired record never sees a stale hit (spec section 8 scenario 2/3).
func (c *Cache) expireInline(e *entry) {
	if e.casStatus(statusAlive, statusRetired) {
		c.idx.remove(e.keyHash, e)
		c.mc.recordWrite(writeTask{kind: taskExpire, e: e, cause: CauseExpired})
	}
}

// notifyRemoval is policy.notify: dispatched by the drain goroutine for
// every RETIRED->DEAD transition it drives (size eviction, time
// expiration, collection, explicit invalidation). REPLACED notifications
// are dispatched directly by their own call sites below through
// notifyReplaced, since a replaced value never retires its entry.
func (c *Cache) notifyRemoval(e *entry, cause RemovalCause) {
	key, _ := e.loadKey() // "" if a weak key was already collected
	value, _ := e.loadValue()
	if cause != CauseExplicit && cause != CauseReplaced {
		c.stats.recordEviction()
	}
	switch cause {
	case CauseSize:
		c.cfg.MetricsCollector.RecordEviction()
	case CauseExpired:
		c.cfg.MetricsCollector.RecordExpiration()
	}
	c.dispatchRemoval(key, value, cause)
}

func (c *Cache) notifyReplaced(key string, oldValue interface{}) {
	c.dispatchRemoval(key, oldValue, CauseReplaced)
}

// dispatchRemoval invokes the configured RemovalListener on Executor,
// recovering any panic (spec section 7 "Listener-failure": caught,
// logged, discarded).
func (c *Cache) dispatchRemoval(key string, value interface{}, cause RemovalCause) {
	if c.cfg.RemovalListener == nil {
		return
	}
	listener := c.cfg.RemovalListener
	logger := c.cfg.Logger
	c.cfg.Executor.Execute(func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("removal listener panicked", "key", key, "cause", cause.String(), "panic", r)
			}
		}()
		listener(key, value, cause)
	})
}

// GetIfPresent implements get(k) -> v? (spec section 6).
func (c *Cache) GetIfPresent(key string) (interface{}, bool) {
	start := c.cfg.Ticker.Now()
	v, hit := c.getIfPresent(key)
	c.cfg.MetricsCollector.RecordGet(c.cfg.Ticker.Now()-start, hit)
	return v, hit
}

func (c *Cache) getIfPresent(key string) (interface{}, bool) {
	if key == "" {
		c.stats.recordMiss()
		return nil, false
	}
	hash := stringHash(key)
	e := c.idx.lookup(hash, c.matcher(key))
	if e == nil || e.loadStatus() != statusAlive {
		c.stats.recordMiss()
		return nil, false
	}

	now := c.cfg.Ticker.Now()
	if c.isExpired(e, now) {
		c.expireInline(e)
		c.stats.recordMiss()
		return nil, false
	}

	v, ok := e.loadValue()
	if !ok {
		c.onReclaimed(e, nil, CauseCollected)
		c.stats.recordMiss()
		return nil, false
	}

	e.storeAccessTime(now)
	c.mc.recordRead(e)
	c.sketch.increment(hash)
	c.stats.recordHit()
	return v, true
}

// FrequencyOf returns the auxiliary frequency sketch's estimate for key's
// recent access count. A read-only diagnostic; it never influences
// eviction order (see sketch.go).
func (c *Cache) FrequencyOf(key string) uint64 {
	return c.sketch.estimate(stringHash(key))
}

// GetAllPresent implements getAllPresent(ks) -> map (spec section 6).
func (c *Cache) GetAllPresent(keys []string) map[string]interface{} {
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		if v, ok := c.GetIfPresent(k); ok {
			out[k] = v
		}
	}
	return out
}

// Put implements put(k, v) (spec section 6): unconditional insert or
// replace, firing REPLACED when a mapping already existed.
func (c *Cache) Put(key string, value interface{}) error {
	start := c.cfg.Ticker.Now()
	err := c.put(key, value)
	c.cfg.MetricsCollector.RecordSet(c.cfg.Ticker.Now() - start)
	return err
}

func (c *Cache) put(key string, value interface{}) error {
	if key == "" {
		return NewErrEmptyKey("Put")
	}
	weight, err := c.weightFor(key, value)
	if err != nil {
		return err
	}
	now := c.cfg.Ticker.Now()
	hash := stringHash(key)

	for {
		existing := c.idx.lookup(hash, c.matcher(key))
		if existing == nil {
			e := c.buildEntry(key, hash, value, weight, now)
			if _, created := c.idx.insertIfAbsent(hash, c.matcher(key), e); !created {
				continue
			}
			c.mc.recordWrite(writeTask{kind: taskAdd, e: e})
			return nil
		}
		if existing.loadStatus() != statusAlive {
			c.idx.remove(hash, existing)
			continue
		}

		oldValue, _ := existing.loadValue()
		oldWeight := existing.loadWeight()
		existing.storeValue(c.newValueHolder(existing, value))
		existing.storeWeight(weight)
		existing.storeWriteTime(now)
		existing.storeAccessTime(now)
		c.mc.recordWrite(writeTask{kind: taskUpdate, e: existing, oldWeight: oldWeight})
		c.notifyReplaced(key, oldValue)
		return nil
	}
}

// PutIfAbsent implements putIfAbsent(k, v) -> prior? (spec section 6).
// Returns the prior value and true if one already existed (nothing is
// stored in that case), or nil, false after installing value.
func (c *Cache) PutIfAbsent(key string, value interface{}) (interface{}, bool, error) {
	if key == "" {
		return nil, false, NewErrEmptyKey("PutIfAbsent")
	}
	weight, err := c.weightFor(key, value)
	if err != nil {
		return nil, false, err
	}
	now := c.cfg.Ticker.Now()
	hash := stringHash(key)

	for {
		existing := c.idx.lookup(hash, c.matcher(key))
		if existing != nil && existing.loadStatus() == statusAlive {
			if v, ok := existing.loadValue(); ok {
				return v, true, nil
			}
			c.onReclaimed(existing, nil, CauseCollected)
			continue
		}
		if existing != nil {
			c.idx.remove(hash, existing)
			continue
		}

		e := c.buildEntry(key, hash, value, weight, now)
		if _, created := c.idx.insertIfAbsent(hash, c.matcher(key), e); !created {
			continue
		}
		c.mc.recordWrite(writeTask{kind: taskAdd, e: e})
		return nil, false, nil
	}
}

// Replace implements replace(k, v) (spec section 6): only stores value if
// a mapping already exists. Returns the prior value and true on success.
func (c *Cache) Replace(key string, value interface{}) (interface{}, bool, error) {
	if key == "" {
		return nil, false, NewErrEmptyKey("Replace")
	}
	weight, err := c.weightFor(key, value)
	if err != nil {
		return nil, false, err
	}
	hash := stringHash(key)
	existing := c.idx.lookup(hash, c.matcher(key))
	if existing == nil || existing.loadStatus() != statusAlive {
		return nil, false, nil
	}

	oldValue, ok := existing.loadValue()
	if !ok {
		return nil, false, nil
	}
	oldWeight := existing.loadWeight()
	now := c.cfg.Ticker.Now()
	existing.storeValue(c.newValueHolder(existing, value))
	existing.storeWeight(weight)
	existing.storeWriteTime(now)
	existing.storeAccessTime(now)
	c.mc.recordWrite(writeTask{kind: taskUpdate, e: existing, oldWeight: oldWeight})
	c.notifyReplaced(key, oldValue)
	return oldValue, true, nil
}

// ReplaceValue implements replace(k, vOld, vNew) (spec section 6): a
// compare-and-swap that only stores newValue if the current value is
// still equal (==) to oldValue. oldValue/newValue must hold comparable
// underlying types; a panic from an incomparable type is recovered and
// reported as false.
func (c *Cache) ReplaceValue(key string, oldValue, newValue interface{}) (ok bool, err error) {
	if key == "" {
		return false, NewErrEmptyKey("ReplaceValue")
	}
	weight, werr := c.weightFor(key, newValue)
	if werr != nil {
		return false, werr
	}
	hash := stringHash(key)
	existing := c.idx.lookup(hash, c.matcher(key))
	if existing == nil || existing.loadStatus() != statusAlive {
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			ok, err = false, nil
		}
	}()

	oldHolder := existing.loadHolder()
	cur, found := oldHolder.load()
	if !found || cur != oldValue {
		return false, nil
	}
	newHolder := c.newValueHolder(existing, newValue)
	if !existing.casValue(oldHolder, newHolder) {
		return false, nil
	}
	oldWeight := existing.loadWeight()
	existing.storeWeight(weight)
	now := c.cfg.Ticker.Now()
	existing.storeWriteTime(now)
	existing.storeAccessTime(now)
	c.mc.recordWrite(writeTask{kind: taskUpdate, e: existing, oldWeight: oldWeight})
	c.notifyReplaced(key, oldValue)
	return true, nil
}

// Invalidate implements invalidate(k) (spec section 6): fires EXPLICIT.
// Idempotent: a second call on an already-removed key returns false and
// fires no further notification.
func (c *Cache) Invalidate(key string) bool {
	start := c.cfg.Ticker.Now()
	removed := c.invalidate(key)
	c.cfg.MetricsCollector.RecordDelete(c.cfg.Ticker.Now() - start)
	return removed
}

func (c *Cache) invalidate(key string) bool {
	if key == "" {
		return false
	}
	hash := stringHash(key)
	e := c.idx.lookup(hash, c.matcher(key))
	if e == nil {
		return false
	}
	if !e.casStatus(statusAlive, statusRetired) {
		return false
	}
	c.idx.remove(hash, e)
	c.mc.recordWrite(writeTask{kind: taskRemove, e: e, cause: CauseExplicit})
	return true
}

// InvalidateAll implements invalidateAll(ks) and invalidateAll() (spec
// section 6): with no arguments every present entry is invalidated.
func (c *Cache) InvalidateAll(keys ...string) {
	if len(keys) == 0 {
		var all []string
		c.idx.forEach(func(e *entry) {
			if e.loadStatus() != statusAlive {
				return
			}
			if k, ok := e.loadKey(); ok {
				all = append(all, k)
			}
		})
		keys = all
	}
	for _, k := range keys {
		c.Invalidate(k)
	}
}

// EstimatedSize implements estimatedSize() (spec section 6): an
// approximate count of ALIVE records, which may still include records
// pending their RETIRED->DEAD transition.
func (c *Cache) EstimatedSize() int64 {
	var n int64
	c.idx.forEach(func(e *entry) {
		if e.loadStatus() != statusDead {
			n++
		}
	})
	return n
}

// CleanUp implements cleanUp() (spec section 6): forces a complete,
// synchronous maintenance pass.
func (c *Cache) CleanUp() {
	c.mc.forceDrain()
}

// Stats implements stats() (spec section 6).
func (c *Cache) Stats() Stats {
	return c.stats.snapshot()
}

// AsMap implements asMap() (spec section 6) as a point-in-time snapshot.
// For live iteration without materializing every entry, use Range.
func (c *Cache) AsMap() map[string]interface{} {
	out := make(map[string]interface{})
	c.Range(func(k string, v interface{}) bool {
		out[k] = v
		return true
	})
	return out
}

// Range calls fn for every present entry, in no particular order,
// stopping early if fn returns false. Weakly consistent (spec section 8
// invariant 6): it may observe any subset of entries mutated
// concurrently with the call, and never reports a concurrent-
// modification error.
func (c *Cache) Range(fn func(key string, value interface{}) bool) {
	stop := false
	c.idx.forEach(func(e *entry) {
		if stop || e.loadStatus() != statusAlive {
			return
		}
		k, ok := e.loadKey()
		if !ok {
			return
		}
		v, ok := e.loadValue()
		if !ok {
			return
		}
		if !fn(k, v) {
			stop = true
		}
	})
}

// Close forces a final drain. A Cache runs no background goroutines of
// its own (maintenance is fully opportunistic), so Close has nothing
// else to release; it exists for symmetry with the teacher's resource
// lifecycle and for embedding in io.Closer-shaped code.
func (c *Cache) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.mc.forceDrain()
	return nil
}
