// weakref.go: reference-strength wrappers for weak/soft keys and values
//
// Go has no JVM-style WeakReference/SoftReference with GC-pressure-driven
// clearing order. The stdlib `weak` package (Go 1.24+) gives us a weak
// pointer plus runtime.AddCleanup as the host-integrated reachability
// sweep spec section 9's design notes ask for; soft values are emulated
// identically to weak values, which is the explicit fallback the design
// notes allow when a host lacks a distinct soft-reference facility.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package caffeine

import (
	"reflect"
	"runtime"
	"unsafe"
	"weak"
)

// refKind selects how a key or value is retained by an entry.
type refKind int8

const (
	refStrong refKind = iota
	refWeak
	refSoft // emulated identically to refWeak; see DESIGN.md
)

// valueHolder is the contents of an entry's value slot. Strong values are
// stored directly. Weak/soft values are tracked through a weak.Pointer
// aimed at the value's own backing allocation (not a cache-private box
// around it), so the cache observes the same reachability the caller's
// own references do: the value is only ever reported collected once
// nothing else in the program, not merely the cache, still points to it.
//
// This only has a real referent to track when v is itself a pointer: that
// is the one interface{} shape where the word the cache holds already
// aliases memory the caller may hold another reference to. See
// newWeakOrSoftValue.
type valueHolder struct {
	kind    refKind
	strongV interface{}
	weakRef weak.Pointer[byte]
	elemTyp reflect.Type // v's pointer type's element type; needed to rebuild v on load
}

func newStrongValue(v interface{}) *valueHolder {
	return &valueHolder{kind: refStrong, strongV: v}
}

// newWeakOrSoftValue arranges for onCollected to run once the garbage
// collector reclaims v's own backing allocation. onCollected must not
// block and must be safe to call from an arbitrary goroutine.
//
// v must be a non-nil pointer for this to track real reachability: a
// non-pointer value (string, int, struct-by-value, ...) has no backing
// allocation outside of whatever the cache itself would have to allocate
// to hold a weak reference to it, and a reference to a cache-private
// allocation is never reachable from anywhere but the cache — it would
// report "collected" as soon as this function returns, independent of
// whether the caller's actual value is still alive elsewhere. Such values
// fall back to strong retention instead of a synthetic weak reference
// that can't mean what WeakValues/SoftValues documents.
func newWeakOrSoftValue(kind refKind, v interface{}, onCollected func()) *valueHolder {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return newStrongValue(v)
	}
	addr := rv.UnsafePointer()
	wp := weak.Make((*byte)(addr))
	runtime.AddCleanup(rv.Interface(), func(cb func()) { cb() }, onCollected)
	return &valueHolder{kind: kind, weakRef: wp, elemTyp: rv.Type().Elem()}
}

// load dereferences the holder, returning ok=false if a weak/soft value's
// backing allocation has already been reclaimed.
func (h *valueHolder) load() (interface{}, bool) {
	if h == nil {
		return nil, false
	}
	if h.kind == refStrong {
		return h.strongV, true
	}
	b := h.weakRef.Value()
	if b == nil {
		return nil, false
	}
	return reflect.NewAt(h.elemTyp, unsafe.Pointer(b)).Interface(), true
}

// keyRef holds a cache key, strongly or weakly depending on configuration.
//
// Weak keys track the liveness of the key string's own backing byte array
// via unsafe.StringData, rather than a cache-private box: the weak
// reference is only meaningful when the caller retains another string
// value sharing that same backing array (a substring, or the same string
// variable kept alive elsewhere), since Go string headers otherwise carry
// no exposed object identity. See DESIGN.md.
type keyRef struct {
	kind    refKind
	strongK string
	length  int
	weakRef weak.Pointer[byte]
}

func newStrongKey(k string) keyRef {
	return keyRef{kind: refStrong, strongK: k}
}

func newWeakKey(k string, onCollected func()) keyRef {
	if len(k) == 0 {
		// The empty string has no distinct backing array to track (and
		// Go implementations commonly point it at a shared, permanently
		// live sentinel), so a weak reference to it would never resolve
		// to collected in practice.
		return keyRef{kind: refStrong, strongK: k}
	}
	data := unsafe.StringData(k)
	wp := weak.Make(data)
	runtime.AddCleanup(data, func(cb func()) { cb() }, onCollected)
	return keyRef{kind: refWeak, length: len(k), weakRef: wp}
}

func (r keyRef) load() (string, bool) {
	if r.kind == refStrong {
		return r.strongK, true
	}
	b := r.weakRef.Value()
	if b == nil {
		return "", false
	}
	return unsafe.String(b, r.length), true
}
