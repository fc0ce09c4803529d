// Package caffeine provides a high-performance, in-process, bounded
// associative cache: a concurrent key/value store with size- or
// weight-bounded eviction, optional time-based expiration, optional
// weak/soft reference semantics, single-flight loading, refresh-on-write,
// removal notifications and runtime statistics.
//
// Example usage:
//
//	c, err := caffeine.NewCache(caffeine.Config{
//		MaximumSize:       10_000,
//		ExpireAfterWrite:  ptr(5 * time.Minute),
//	})
//
//	c.Put("key", "value")
//	value, found := c.GetIfPresent("key")
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package caffeine

const (
	// Version of the caffeine cache library.
	Version = "v0.1.0-dev"

	// DefaultMaximumSize is applied when a Config sets neither
	// MaximumSize nor MaximumWeight.
	DefaultMaximumSize = 10_000

	// DefaultWindowRatio is not read anywhere in this package: there is
	// no admission window, and neither the frequency sketch (sketch.go)
	// nor the eviction order uses it.
	DefaultWindowRatio = 0.01

	// DefaultCounterBits is the number of bits per counter in the
	// auxiliary frequency sketch.
	DefaultCounterBits = 4
)
