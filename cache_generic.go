// cache_generic.go: type-safe generic wrapper over Cache
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import (
	"fmt"
	"strconv"
)

// GenericCache provides a type-safe view over a Cache using Go generics.
// K must be comparable; V can be any type. Keys are converted to string
// with keyToString before reaching the untyped core.
//
// Example:
//
//	c, _ := caffeine.NewGenericCache[string, User](caffeine.Config{MaximumSize: 10_000})
//	c.Put("user:123", user)
//	if v, found := c.GetIfPresent("user:123"); found {
//	    fmt.Printf("User: %+v\n", v)
//	}
type GenericCache[K comparable, V any] struct {
	inner *Cache
}

// NewGenericCache constructs a type-safe GenericCache from cfg.
func NewGenericCache[K comparable, V any](cfg Config) (*GenericCache[K, V], error) {
	inner, err := NewCache(cfg)
	if err != nil {
		return nil, err
	}
	return &GenericCache[K, V]{inner: inner}, nil
}

func (c *GenericCache[K, V]) castValue(val interface{}) (V, bool) {
	var zero V
	if val == nil {
		return zero, false
	}
	typed, ok := val.(V)
	if !ok {
		return zero, false
	}
	return typed, true
}

// GetIfPresent implements get(k) -> v?.
func (c *GenericCache[K, V]) GetIfPresent(key K) (V, bool) {
	val, found := c.inner.GetIfPresent(keyToString(key))
	if !found {
		var zero V
		return zero, false
	}
	return c.castValue(val)
}

// GetWithLoader implements get(k, loader) -> v.
func (c *GenericCache[K, V]) GetWithLoader(key K, loader func(K) (V, error)) (V, error) {
	var zero V
	val, err := c.inner.GetWithLoader(keyToString(key), func(string) (interface{}, error) {
		v, err := loader(key)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	typed, ok := c.castValue(val)
	if !ok {
		return zero, NewErrInvalidLoadResult(keyToString(key))
	}
	return typed, nil
}

// Put implements put(k, v).
func (c *GenericCache[K, V]) Put(key K, value V) error {
	return c.inner.Put(keyToString(key), value)
}

// PutIfAbsent implements putIfAbsent(k, v) -> prior?.
func (c *GenericCache[K, V]) PutIfAbsent(key K, value V) (V, bool, error) {
	val, present, err := c.inner.PutIfAbsent(keyToString(key), value)
	if err != nil || !present {
		var zero V
		return zero, present, err
	}
	typed, _ := c.castValue(val)
	return typed, true, nil
}

// Invalidate implements invalidate(k).
func (c *GenericCache[K, V]) Invalidate(key K) bool {
	return c.inner.Invalidate(keyToString(key))
}

// InvalidateAll implements invalidateAll(ks) / invalidateAll().
func (c *GenericCache[K, V]) InvalidateAll(keys ...K) {
	strs := make([]string, len(keys))
	for i, k := range keys {
		strs[i] = keyToString(k)
	}
	c.inner.InvalidateAll(strs...)
}

// EstimatedSize implements estimatedSize().
func (c *GenericCache[K, V]) EstimatedSize() int64 { return c.inner.EstimatedSize() }

// CleanUp implements cleanUp().
func (c *GenericCache[K, V]) CleanUp() { c.inner.CleanUp() }

// Stats implements stats().
func (c *GenericCache[K, V]) Stats() Stats { return c.inner.Stats() }

// Close forces a final drain.
func (c *GenericCache[K, V]) Close() error { return c.inner.Close() }

// keyToString converts a comparable key to string, without fmt for the
// common string/integer cases, falling back to fmt.Sprintf otherwise.
func keyToString[K comparable](key K) string {
	switch v := any(key).(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	default:
		return fmt.Sprintf("%v", key)
	}
}
