// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package caffeine

import (
	"testing"
	"time"
)

func TestParsePositiveInt64(t *testing.T) {
	cases := []struct {
		in     interface{}
		want   int64
		wantOk bool
	}{
		{int(5), 5, true},
		{int64(7), 7, true},
		{float64(9), 9, true},
		{int(-1), 0, false},
		{float64(0), 0, false},
		{"nope", 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := parsePositiveInt64(c.in)
		if got != c.want || ok != c.wantOk {
			t.Errorf("parsePositiveInt64(%v) = %d, %v, want %d, %v", c.in, got, ok, c.want, c.wantOk)
		}
	}
}

func TestParseDuration(t *testing.T) {
	got, ok := parseDuration("5m")
	if !ok || got != 5*time.Minute {
		t.Fatalf("parseDuration(5m) = %v, %v, want 5m, true", got, ok)
	}

	if _, ok := parseDuration("not-a-duration"); ok {
		t.Fatal("expected an invalid duration string to fail")
	}
	if _, ok := parseDuration(42); ok {
		t.Fatal("expected a non-string value to fail")
	}
}

func TestHotConfigParseConfigNestedCacheSection(t *testing.T) {
	hc := &HotConfig{}
	base := dynamicConfig{MaximumWeight: 100}

	data := map[string]interface{}{
		"cache": map[string]interface{}{
			"maximum_weight":      "ignored-not-a-number",
			"maximum_size":        float64(500),
			"expire_after_access": "10m",
			"expire_after_write":  "1h",
			"refresh_after_write": "30s",
			"negative_cache_ttl":  "5s",
		},
	}

	next := hc.parseConfig(data, base)
	if next.MaximumWeight != 500 {
		t.Errorf("MaximumWeight = %d, want 500 (falls back to maximum_size)", next.MaximumWeight)
	}
	if next.ExpireAfterAccess != 10*time.Minute {
		t.Errorf("ExpireAfterAccess = %v, want 10m", next.ExpireAfterAccess)
	}
	if next.ExpireAfterWrite != time.Hour {
		t.Errorf("ExpireAfterWrite = %v, want 1h", next.ExpireAfterWrite)
	}
	if next.RefreshAfterWrite != 30*time.Second {
		t.Errorf("RefreshAfterWrite = %v, want 30s", next.RefreshAfterWrite)
	}
	if next.NegativeCacheTTL != 5*time.Second {
		t.Errorf("NegativeCacheTTL = %v, want 5s", next.NegativeCacheTTL)
	}
}

func TestHotConfigParseConfigFlatFallback(t *testing.T) {
	hc := &HotConfig{}
	base := dynamicConfig{}

	data := map[string]interface{}{
		"maximum_size": float64(42),
	}

	next := hc.parseConfig(data, base)
	if next.MaximumWeight != 42 {
		t.Errorf("MaximumWeight = %d, want 42 (flat section, no nested cache object)", next.MaximumWeight)
	}
}

func TestHotConfigParseConfigUnrecognizedDataIsNoOp(t *testing.T) {
	hc := &HotConfig{}
	base := dynamicConfig{MaximumWeight: 7, ExpireAfterAccess: time.Minute}

	next := hc.parseConfig(map[string]interface{}{"unrelated": true}, base)
	if next != base {
		t.Errorf("parseConfig() = %+v, want unchanged base %+v", next, base)
	}
}

func TestHotConfigApplyChangesMutatesLivePolicy(t *testing.T) {
	c, err := NewCache(Config{MaximumSize: 10})
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer c.Close()

	hc := &HotConfig{cache: c}
	next := dynamicConfig{
		MaximumWeight:     999,
		ExpireAfterAccess: 2 * time.Minute,
		ExpireAfterWrite:  3 * time.Minute,
		RefreshAfterWrite: 4 * time.Minute,
		NegativeCacheTTL:  5 * time.Minute,
	}

	hc.applyChanges(next)

	if c.pol.maximumWeight != 999 {
		t.Errorf("pol.maximumWeight = %d, want 999", c.pol.maximumWeight)
	}
	if c.pol.expireAfterAccess != 2*time.Minute {
		t.Errorf("pol.expireAfterAccess = %v, want 2m", c.pol.expireAfterAccess)
	}
	if c.pol.expireAfterWrite != 3*time.Minute {
		t.Errorf("pol.expireAfterWrite = %v, want 3m", c.pol.expireAfterWrite)
	}
	if c.pol.refreshAfterWrite != 4*time.Minute {
		t.Errorf("pol.refreshAfterWrite = %v, want 4m", c.pol.refreshAfterWrite)
	}
	if c.cfg.NegativeCacheTTL != 5*time.Minute {
		t.Errorf("cfg.NegativeCacheTTL = %v, want 5m", c.cfg.NegativeCacheTTL)
	}
	if !c.expireAfterAccess || !c.expireAfterWrite {
		t.Error("expected both expiry flags to flip true once their durations became positive")
	}
	if !c.pol.trackAccessOrder || !c.pol.trackWriteOrder {
		t.Error("expected both ordering flags to follow the new weight/expiry/refresh settings")
	}
}

func TestHotConfigGetConfigReturnsSnapshot(t *testing.T) {
	hc := &HotConfig{dyn: dynamicConfig{MaximumWeight: 123}}
	got := hc.GetConfig()
	if got.MaximumWeight != 123 {
		t.Errorf("GetConfig().MaximumWeight = %d, want 123", got.MaximumWeight)
	}
}

func TestHotConfigHandleConfigChangeFiresOnReload(t *testing.T) {
	c, err := NewCache(Config{MaximumSize: 10})
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer c.Close()

	var oldSeen, newSeen dynamicConfig
	called := false
	hc := &HotConfig{
		cache: c,
		dyn:   dynamicConfig{MaximumWeight: 10},
		OnReload: func(old, next dynamicConfig) {
			called = true
			oldSeen = old
			newSeen = next
		},
	}

	hc.handleConfigChange(map[string]interface{}{"maximum_size": float64(50)})

	if !called {
		t.Fatal("expected OnReload to be invoked")
	}
	if oldSeen.MaximumWeight != 10 {
		t.Errorf("OnReload old.MaximumWeight = %d, want 10", oldSeen.MaximumWeight)
	}
	if newSeen.MaximumWeight != 50 {
		t.Errorf("OnReload new.MaximumWeight = %d, want 50", newSeen.MaximumWeight)
	}
	if c.pol.maximumWeight != 50 {
		t.Errorf("pol.maximumWeight = %d, want 50 after handleConfigChange", c.pol.maximumWeight)
	}
}
