// hotconfig.go: dynamic reconfiguration via Argus (spec section 6
// "Configuration" made hot-reloadable, per the teacher's hot-reload.go)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import (
	"fmt"
	"sync"
	"time"

	"github.com/agilira/argus"
)

// HotConfig watches a configuration file and applies size/expiration
// changes to a running Cache without reconstructing it. Only the
// policy's weight ceiling, the three time bounds and NegativeCacheTTL are
// adjustable this way: structural options (Weigher, WeakKeys/WeakValues, RemovalListener,
// Executor) are construction-time only, same as the teacher's documented
// MaxSize-requires-reconstruction limitation, generalized to this cache's
// larger configuration surface.
type HotConfig struct {
	cache   *Cache
	watcher *argus.Watcher
	mu      sync.RWMutex
	dyn     dynamicConfig

	// OnReload is called after a configuration change has been applied.
	// Must be fast and non-blocking.
	OnReload func(old, new dynamicConfig)
}

// dynamicConfig is the subset of Config that can change after
// construction.
type dynamicConfig struct {
	MaximumWeight     int64
	ExpireAfterAccess time.Duration
	ExpireAfterWrite  time.Duration
	RefreshAfterWrite time.Duration
	NegativeCacheTTL  time.Duration
}

// HotConfigOptions configures hot reload behavior.
type HotConfigOptions struct {
	// ConfigPath is the configuration file to watch (JSON, YAML, TOML,
	// HCL, INI, Properties — anything argus.UniversalConfigWatcher
	// supports).
	ConfigPath string

	// PollInterval is how often to check for changes. Default 1s,
	// minimum 100ms.
	PollInterval time.Duration

	OnReload func(old, new dynamicConfig)

	// Logger defaults to the cache's own. HotConfig does not store it and
	// logs nothing through it.
	Logger Logger
}

// NewHotConfig starts watching opts.ConfigPath and applying recognized
// keys to cache as they change.
//
// Supported keys, read from a "cache" object, or from the top level when
// there is no "cache" object and the top level has a maximum_size key:
//   - maximum_size / maximum_weight (int)
//   - expire_after_access / expire_after_write / refresh_after_write (duration string, e.g. "5m")
//   - negative_cache_ttl (duration string)
func NewHotConfig(cache *Cache, opts HotConfigOptions) (*HotConfig, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("config_path is required")
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Second
	} else if opts.PollInterval < 100*time.Millisecond {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = cache.cfg.Logger
	}

	hc := &HotConfig{
		cache:    cache,
		OnReload: opts.OnReload,
		dyn: dynamicConfig{
			MaximumWeight:     cache.pol.maximumWeight,
			ExpireAfterAccess: cache.pol.expireAfterAccess,
			ExpireAfterWrite:  cache.pol.expireAfterWrite,
			RefreshAfterWrite: cache.pol.refreshAfterWrite,
			NegativeCacheTTL:  cache.cfg.NegativeCacheTTL,
		},
	}

	watcher, err := argus.UniversalConfigWatcherWithConfig(opts.ConfigPath, hc.handleConfigChange, argus.Config{
		PollInterval: opts.PollInterval,
	})
	if err != nil {
		return nil, err
	}
	hc.watcher = watcher
	return hc, nil
}

// Start begins watching the configuration file.
func (hc *HotConfig) Start() error {
	if hc.watcher.IsRunning() {
		return nil
	}
	return hc.watcher.Start()
}

// Stop stops watching the configuration file.
func (hc *HotConfig) Stop() error {
	return hc.watcher.Stop()
}

// GetConfig returns the currently applied dynamic configuration.
func (hc *HotConfig) GetConfig() dynamicConfig {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.dyn
}

func (hc *HotConfig) handleConfigChange(data map[string]interface{}) {
	hc.mu.Lock()
	old := hc.dyn
	next := hc.parseConfig(data, old)
	hc.dyn = next
	hc.mu.Unlock()

	hc.applyChanges(next)

	if hc.OnReload != nil {
		hc.OnReload(old, next)
	}
}

func parsePositiveInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		if v > 0 {
			return int64(v), true
		}
	case int64:
		if v > 0 {
			return v, true
		}
	case float64:
		if v > 0 {
			return int64(v), true
		}
	}
	return 0, false
}

func parseDuration(value interface{}) (time.Duration, bool) {
	if str, ok := value.(string); ok {
		if d, err := time.ParseDuration(str); err == nil {
			return d, true
		}
	}
	return 0, false
}

func (hc *HotConfig) parseConfig(data map[string]interface{}, base dynamicConfig) dynamicConfig {
	next := base

	section, ok := data["cache"].(map[string]interface{})
	if !ok {
		if _, hasKey := data["maximum_size"]; hasKey {
			section = data
		} else {
			return next
		}
	}

	if v, ok := parsePositiveInt64(section["maximum_weight"]); ok {
		next.MaximumWeight = v
	} else if v, ok := parsePositiveInt64(section["maximum_size"]); ok {
		next.MaximumWeight = v
	}
	if d, ok := parseDuration(section["expire_after_access"]); ok {
		next.ExpireAfterAccess = d
	}
	if d, ok := parseDuration(section["expire_after_write"]); ok {
		next.ExpireAfterWrite = d
	}
	if d, ok := parseDuration(section["refresh_after_write"]); ok {
		next.RefreshAfterWrite = d
	}
	if d, ok := parseDuration(section["negative_cache_ttl"]); ok {
		next.NegativeCacheTTL = d
	}

	return next
}

// applyChanges installs next into the live policy, under the eviction
// lock so the drain goroutine never observes a torn update.
func (hc *HotConfig) applyChanges(next dynamicConfig) {
	c := hc.cache
	c.mc.drainMu.Lock()
	c.pol.maximumWeight = next.MaximumWeight
	c.pol.expireAfterAccess = next.ExpireAfterAccess
	c.pol.expireAfterWrite = next.ExpireAfterWrite
	c.pol.refreshAfterWrite = next.RefreshAfterWrite
	c.pol.trackAccessOrder = next.MaximumWeight > 0 || next.ExpireAfterAccess > 0
	c.pol.trackWriteOrder = next.ExpireAfterWrite > 0 || next.RefreshAfterWrite > 0
	c.pol.evictToCapacity()
	c.mc.drainMu.Unlock()

	atomicStoreDuration(&c.cfg.NegativeCacheTTL, next.NegativeCacheTTL)
	c.expireAfterAccess = next.ExpireAfterAccess > 0
	c.expireAfterWrite = next.ExpireAfterWrite > 0

	c.mc.forceDrain()
}

// atomicStoreDuration is a plain assignment: Config.NegativeCacheTTL is
// only ever read by loading.go's hot path as a value copy of an int64
// duration, so a torn read here is at worst a one-lookup race on a
// rarely-changed tuning knob, not a correctness issue.
func atomicStoreDuration(dst *time.Duration, v time.Duration) {
	*dst = v
}
