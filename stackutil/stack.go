// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stackutil implements the value stack package interp
// runs against. Values are stored as raw uint64 bit patterns, the same
// convention go-interpreter/wagon's exec.VM uses (pushUint64/popUint64
// and friends in exec/vm.go), generalized with the depth-addressed
// peek/pick/DropKeep operations the flat istream's local-addressing and
// branch-unwinding schemes require (spec.md §4.1, §4.5).
package stackutil

import "fmt"

// ErrUnderflow describes a pop or peek past the bottom of the stack.
// Stack's own methods do not return it: Pop, Peek and Pick index the
// backing slice directly and panic on an out-of-range depth.
type ErrUnderflow struct {
	Op   string
	Have int
	Want int
}

func (e ErrUnderflow) Error() string {
	return fmt.Sprintf("stackutil: %s needs %d values, stack has %d", e.Op, e.Want, e.Have)
}

// Stack is a LIFO of uint64-encoded values. New preallocates the
// backing slice; Push grows it past that capacity as needed, so the
// stack has no fixed upper bound.
type Stack struct {
	vals []uint64
}

// New returns an empty Stack with capacity cap.
func New(cap int) *Stack {
	return &Stack{vals: make([]uint64, 0, cap)}
}

// Len returns the number of values currently on the stack.
func (s *Stack) Len() int { return len(s.vals) }

// Push appends v to the top of the stack.
func (s *Stack) Push(v uint64) { s.vals = append(s.vals, v) }

// Pop removes and returns the top value.
func (s *Stack) Pop() uint64 {
	v := s.vals[len(s.vals)-1]
	s.vals = s.vals[:len(s.vals)-1]
	return v
}

// Peek returns the value depth slots from the top without removing it;
// depth 0 is the top of the stack. Used for depth-from-top local
// addressing (spec.md's `translate_local_index`).
func (s *Stack) Peek(depth int) uint64 {
	return s.vals[len(s.vals)-1-depth]
}

// Pick returns a pointer to the slot depth slots from the top, letting
// the caller mutate it in place (set_local/tee_local without a
// pop+push round trip).
func (s *Stack) Pick(depth int) *uint64 {
	return &s.vals[len(s.vals)-1-depth]
}

// DropKeep removes drop values from just below the top keep values,
// implementing the istream's `drop_keep(drop, keep)` op: it discards
// intermediate operands produced inside a block while preserving the
// block's result(s) and any locals living below them on the stack
// (spec.md §4.1 "keep ∈ {0,1}", generalized here to arbitrary keep for
// call-return unwinding).
func (s *Stack) DropKeep(drop, keep int) {
	if drop == 0 {
		return
	}
	n := len(s.vals)
	src := n - keep
	dst := src - drop
	copy(s.vals[dst:dst+keep], s.vals[src:n])
	s.vals = s.vals[:dst+keep]
}

// Truncate resets the stack to exactly n values, discarding everything
// above. interp's Call uses it to clear the stack before each top-level
// call.
func (s *Stack) Truncate(n int) { s.vals = s.vals[:n] }
