// loading.go: single-flight get(k, loader), bulk loadAll, and refresh
// (spec sections 4.5 "Single-flight loading" and 6 "get(k, loader)")
//
// Grounded on the teacher's GetOrLoad (loading.go): the same
// inflightCall{wg, atomic.Value, done chan} shape, generalized from "the
// cache's fixed TTL" to "whatever Config.NegativeCacheTTL and the entry's
// own expiration settings say", and rewired to install results through
// Put against the new entry-based core instead of the old flat table.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import (
	"sync"
	"sync/atomic"
)

// inflightCall is a single in-progress load for one key. Every concurrent
// GetWithLoader for the same key observes the same *inflightCall and the
// same final result (spec section 8 "Single-flight" law).
type inflightCall struct {
	wg   sync.WaitGroup
	val  atomic.Value  // *resultWrapper
	err  atomic.Value  // *errorWrapper
	done chan struct{} // closed once the loader returns; waiters block on wg, not on this
}

type resultWrapper struct{ value interface{} }
type errorWrapper struct{ err error }

// negativeEntry caches a loader failure so repeated GetWithLoader calls
// for a key whose load consistently fails don't all re-pay the loader's
// cost (Config.NegativeCacheTTL, generalized from the teacher's flat TTL).
type negativeEntry struct {
	err      error
	expireAt int64
}

// GetWithLoader implements get(k, loader) -> v (spec section 6): a
// single-flight compute-if-absent. Concurrent callers for the same
// missing key all observe one loader invocation and its result.
func (c *Cache) GetWithLoader(key string, loader func(key string) (interface{}, error)) (interface{}, error) {
	if key == "" {
		return nil, NewErrEmptyKey("GetWithLoader")
	}
	if loader == nil {
		return nil, NewErrNilLoader(key)
	}

	if v, found := c.GetIfPresent(key); found {
		return v, nil
	}

	if c.cfg.NegativeCacheTTL > 0 {
		if neg, found := c.negativeCache.Load(key); found {
			ne := neg.(negativeEntry)
			if c.cfg.Ticker.Now() <= ne.expireAt {
				return nil, ne.err
			}
			c.negativeCache.Delete(key)
		}
	}

	newFlight := &inflightCall{done: make(chan struct{})}
	newFlight.wg.Add(1)
	actual, loaded := c.inflight.LoadOrStore(key, newFlight)
	flight := actual.(*inflightCall)

	if loaded {
		flight.wg.Wait()
		vw, _ := flight.val.Load().(*resultWrapper)
		ew, _ := flight.err.Load().(*errorWrapper)
		if vw != nil && ew != nil {
			return vw.value, ew.err
		}
		return nil, nil
	}

	defer func() {
		close(flight.done)
		flight.wg.Done()
		c.inflight.Delete(key)
	}()

	start := c.cfg.Ticker.Now()
	var loaderVal interface{}
	var loaderErr error
	var panicked bool
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				loaderErr = NewErrPanicRecovered("GetWithLoader:"+key, r)
			}
		}()
		loaderVal, loaderErr = loader(key)
	}()
	elapsed := c.cfg.Ticker.Now() - start

	var finalErr error
	switch {
	case panicked:
		finalErr = loaderErr
	case loaderErr != nil:
		finalErr = NewErrLoaderFailed(key, loaderErr)
	case loaderVal == nil:
		finalErr = NewErrInvalidLoadResult(key)
	}

	flight.val.Store(&resultWrapper{value: loaderVal})
	flight.err.Store(&errorWrapper{err: finalErr})

	if finalErr != nil {
		c.stats.recordLoadFailure(elapsed)
		if c.cfg.NegativeCacheTTL > 0 {
			c.negativeCache.Store(key, negativeEntry{
				err:      finalErr,
				expireAt: c.cfg.Ticker.Now() + c.cfg.NegativeCacheTTL.Nanoseconds(),
			})
		}
		return nil, finalErr
	}

	c.stats.recordLoadSuccess(elapsed)
	if err := c.Put(key, loaderVal); err != nil {
		return loaderVal, nil // value is still the correct answer even if caching it failed
	}
	return loaderVal, nil
}

// GetAll implements getAllPresent + bulk loadAll in one call: present
// entries are returned directly; missing keys are loaded with a single
// call to loader, which may return a subset or superset of the requested
// keys. Extraneous keys are cached too; keys the loader's result omits
// are simply absent from the returned map: no error is returned for them
// and no load failure is recorded (the bulk call counts as one success).
func (c *Cache) GetAll(keys []string, loader func(missing []string) (map[string]interface{}, error)) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(keys))
	var missing []string
	for _, k := range keys {
		if v, ok := c.GetIfPresent(k); ok {
			out[k] = v
		} else {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 || loader == nil {
		return out, nil
	}

	start := c.cfg.Ticker.Now()
	var loaded map[string]interface{}
	var loaderErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				loaderErr = NewErrPanicRecovered("GetAll", r)
			}
		}()
		loaded, loaderErr = loader(missing)
	}()
	elapsed := c.cfg.Ticker.Now() - start

	if loaderErr != nil {
		c.stats.recordLoadFailure(elapsed)
		return out, NewErrLoaderFailed("<bulk>", loaderErr)
	}
	c.stats.recordLoadSuccess(elapsed)

	requested := make(map[string]bool, len(missing))
	for _, k := range missing {
		requested[k] = true
	}
	for k, v := range loaded {
		if v == nil {
			continue
		}
		if err := c.Put(k, v); err != nil {
			continue
		}
		if requested[k] {
			out[k] = v
		}
	}
	return out, nil
}

// triggerRefresh is policy.reload: invoked once tryStartRefresh claims the
// slot for e (spec section 4.5 "Refresh"). Runs the configured
// Reloader/Loader on Executor so the caller that happened to trip the
// refresh threshold is never blocked by it; the stale value stays visible
// in the meantime.
func (c *Cache) triggerRefresh(e *entry) {
	key, ok := e.loadKey()
	if !ok {
		e.endRefresh()
		return
	}
	oldValue, _ := e.loadValue()
	reloader := c.cfg.Reloader
	loader := c.cfg.Loader

	c.cfg.Executor.Execute(func() {
		defer e.endRefresh()

		start := c.cfg.Ticker.Now()
		var newValue interface{}
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = NewErrPanicRecovered("refresh:"+key, r)
				}
			}()
			if reloader != nil {
				newValue, err = reloader(key, oldValue)
			} else if loader != nil {
				newValue, err = loader(key)
			}
		}()
		elapsed := c.cfg.Ticker.Now() - start

		if err != nil {
			// Refresh-failure: logged and swallowed, prior value kept
			// (spec section 7).
			c.stats.recordLoadFailure(elapsed)
			c.cfg.Logger.Warn("refresh failed", "key", key, "error", err)
			return
		}
		if newValue == nil {
			// A null reload result removes the entry (spec section 9
			// open question, resolved this way).
			c.stats.recordLoadFailure(elapsed)
			c.Invalidate(key)
			return
		}

		c.stats.recordLoadSuccess(elapsed)
		if e.loadStatus() != statusAlive {
			return
		}
		weight, werr := c.weightFor(key, newValue)
		if werr != nil {
			return
		}
		oldWeight := e.loadWeight()
		e.storeValue(c.newValueHolder(e, newValue))
		e.storeWeight(weight)
		e.storeWriteTime(c.cfg.Ticker.Now())
		c.mc.recordWrite(writeTask{kind: taskUpdate, e: e, oldWeight: oldWeight})
	})
}
