// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arena provides a bump allocator over a caller-supplied byte
// slab (the discipline spec.md §5 describes): allocations are carved out
// of one monotonic slab and released together by dropping the slab,
// rather than individually garbage collected. Packages compile, instance
// and interp do not allocate from an Arena: compiled istreams, module
// tables and instances live on the ordinary Go heap, and instance uses
// only this package's Table for its module registry. There
// is no teacher precedent for this in go-interpreter/wagon (which
// relies on ordinary heap allocation throughout exec/ and
// exec/internal/compile/); the allocator here follows the scoped,
// non-reentrant bump-allocation style sketched in spec.md §5's "Arena
// discipline" note, expressed with Go slices standing in for the raw
// byte slab.
package arena

import "fmt"

// ErrExhausted is returned once an Arena's slab has no room left for a
// requested allocation.
type ErrExhausted struct {
	Requested, Available int
}

func (e ErrExhausted) Error() string {
	return fmt.Sprintf("arena: requested %d bytes, only %d available", e.Requested, e.Available)
}

// Arena is a monotonic bump allocator over a caller-supplied slab.
// Allocations never shrink and are never individually freed; the whole
// arena is released at once via Reset, invalidating every value it
// handed out. An Arena is not safe for concurrent use, matching the
// single-instance execution model spec.md's Non-goals describe.
type Arena struct {
	slab []byte
	off  int
}

// New wraps slab for sub-allocation. The caller owns slab's lifetime;
// the Arena never grows it.
func New(slab []byte) *Arena {
	return &Arena{slab: slab}
}

// Len returns the arena's total capacity in bytes.
func (a *Arena) Len() int { return len(a.slab) }

// Used returns the number of bytes handed out since the last Reset.
func (a *Arena) Used() int { return a.off }

// Remaining returns the number of bytes still available.
func (a *Arena) Remaining() int { return len(a.slab) - a.off }

// Reset releases every allocation made since the arena was created (or
// last reset), invalidating all slices previously returned by Alloc.
// Callers must not retain those slices past Reset.
func (a *Arena) Reset() { a.off = 0 }

// Alloc carves out n zero-initialized bytes. The returned slice is
// valid until the next Reset.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if n < 0 {
		n = 0
	}
	if a.off+n > len(a.slab) {
		return nil, ErrExhausted{Requested: n, Available: a.Remaining()}
	}
	b := a.slab[a.off : a.off+n : a.off+n]
	a.off += n
	for i := range b {
		b[i] = 0
	}
	return b, nil
}

// Scope runs fn against a fresh sub-arena carved from a's remaining
// capacity and releases that sub-arena's allocations (but not a's own)
// when fn returns, implementing spec.md §5's "scoped-acquisition
// pattern that drops the arena and all derived structures together".
func (a *Arena) Scope(size int, fn func(*Arena) error) error {
	slab, err := a.Alloc(size)
	if err != nil {
		return err
	}
	child := New(slab)
	defer child.Reset()
	return fn(child)
}

// Index is an arena-relative handle, used in place of a pointer so that
// cross-module references (spec.md §6's cyclic call graph note) stay
// valid across arena moves and never alias live Go pointers into a
// slab that may be reused after Reset.
type Index uint32

// Table is an append-only slice of T, indexed by Index. It is an
// ordinary Go slice and does not allocate from an Arena; package
// instance keeps its Environment's module registry in one.
type Table[T any] struct {
	items []T
}

// NewTable returns an empty Table with capacity hint cap.
func NewTable[T any](capHint int) *Table[T] {
	return &Table[T]{items: make([]T, 0, capHint)}
}

// Append adds v and returns its Index.
func (t *Table[T]) Append(v T) Index {
	t.items = append(t.items, v)
	return Index(len(t.items) - 1)
}

// Get dereferences idx. It panics on an out-of-range Index, matching
// the interpreter's convention of trapping on internal invariant
// violations rather than threading an error through every lookup.
func (t *Table[T]) Get(idx Index) T { return t.items[idx] }

// Set overwrites the element at idx.
func (t *Table[T]) Set(idx Index, v T) { t.items[idx] = v }

// Len returns the number of elements appended so far.
func (t *Table[T]) Len() int { return len(t.items) }
