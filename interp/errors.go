// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package interp executes a compiled istream (spec.md §4.5): a flat
// dispatch loop over a value stack, a call stack of return offsets, and
// a host-call boundary through an instance.Environment. Grounded on
// go-interpreter-wagon's exec/vm.go dispatch-loop shape (funcTable
// indexed by opcode, fetch/pop/push primitives operating on a context),
// narrowed to this package's fixed 4-byte immediates and generalized to
// resolve calls against instance.Environment instead of a single-module
// compiled-function slice.
package interp

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable is the trap raised by an executed `unreachable`.
	ErrUnreachable = errors.New("interp: unreachable instruction executed")
	// ErrDivideByZero is raised by i32.div_s/div_u/rem_s/rem_u with a
	// zero divisor.
	ErrDivideByZero = errors.New("interp: integer divide by zero")
	// ErrIntegerOverflow is raised by i32.div_s(MinInt32, -1).
	ErrIntegerOverflow = errors.New("interp: signed integer overflow")
	// ErrUndefinedTableIndex is raised by call_indirect against an
	// out-of-range or never-initialized table slot.
	ErrUndefinedTableIndex = errors.New("interp: undefined table element")
	// ErrIndirectSignatureMismatch is raised when call_indirect's
	// declared type does not match the resolved function's type.
	ErrIndirectSignatureMismatch = errors.New("interp: indirect call signature mismatch")
	// ErrCallStackOverflow guards against unbounded recursion.
	ErrCallStackOverflow = errors.New("interp: call stack overflow")
	// ErrNoTable is raised by call_indirect in a module with no table.
	ErrNoTable = errors.New("interp: call_indirect requires a table")
	// ErrNoMemory is raised by a memory op in a module with no memory.
	ErrNoMemory = errors.New("interp: instruction requires memory")
	// ErrBudgetExhausted names an instruction budget consumed before the
	// call completes (spec.md §5 "bounded run(budget) mode"). Run does
	// not return it: Run reports that case as (false, nil).
	ErrBudgetExhausted = errors.New("interp: instruction budget exhausted")
)

// UnknownOpcodeError reports an istream byte the dispatch loop has no
// case for — a compiler/interpreter mismatch, never a user-facing
// validation failure.
type UnknownOpcodeError byte

func (e UnknownOpcodeError) Error() string {
	return fmt.Sprintf("interp: unknown istream opcode %#x", byte(e))
}

// NotExecutableError reports an i64/f32/f64 opcode (arithmetic,
// comparison, conversion, or non-i32-width load/store) reached at
// runtime. These are accepted and type-checked by the compiler, but
// this interpreter's only executable value width is i32 — a program
// whose only runtime value type is i32 never hits this case.
type NotExecutableError byte

func (e NotExecutableError) Error() string {
	return fmt.Sprintf("interp: opcode %#x is not executable by this interpreter (i64/f32/f64 are accepted by the compiler but not run)", byte(e))
}
