// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compile type-checks a parsed module and lowers its structured
// control flow to a flat istream in one pass (spec.md §4.2). It merges
// go-interpreter/wagon's three-stage pipeline — validate.Validate,
// disasm.Disassemble (structured-block-to-StackInfo annotation), and
// exec/internal/compile.Compile (block/branch lowering to absolute
// jumps) — into a single walk, following the label-stack/fixup/drop-keep
// design of original_source/src/compiler.rs but emitting 4-byte
// fixed-width immediates throughout instead of 8-byte relative patches.
package compile

import (
	"errors"
	"fmt"

	"github.com/wasmkernel/wasmkernel/binary"
)

var (
	// ErrUnexpectedReturnLength is returned for a callee signature with
	// more than one result (spec.md's Non-goal: multi-return functions).
	ErrUnexpectedReturnLength = errors.New("compile: function signature has more than one result")
	// ErrStackUnderflow is returned when an opcode pops more values than
	// the current label's operand stack holds.
	ErrStackUnderflow = errors.New("compile: operand stack underflow")
	// ErrNoMemory is returned by a load/store/memory.size/memory.grow
	// when the module declares no memory section or import.
	ErrNoMemory = errors.New("compile: instruction requires a memory, module declares none")
	// ErrImmutableGlobal is returned by set_global targeting a global
	// declared immutable.
	ErrImmutableGlobal = errors.New("compile: set_global targets an immutable global")
	// ErrNoTable is returned by call_indirect when the module declares no
	// table.
	ErrNoTable = errors.New("compile: call_indirect requires a table, module declares none")
	// ErrBrTableSignatureMismatch is returned when a br_table's targets do
	// not all share the first target's block signature (spec.md §4.2).
	ErrBrTableSignatureMismatch = errors.New("compile: br_table targets disagree on block signature")
)

// TypeMismatchError reports an operand whose compile-time type does not
// match what the opcode requires.
type TypeMismatchError struct {
	Op       byte
	Want     binary.ValueType
	Got      binary.ValueType
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("compile: opcode %#x wants %s, got %s", e.Op, e.Want, e.Got)
}

// InvalidBranchDepthError reports a br/br_if/br_table target deeper than
// the current label stack.
type InvalidBranchDepthError uint32

func (e InvalidBranchDepthError) Error() string {
	return fmt.Sprintf("compile: invalid branch depth %d", uint32(e))
}

// InvalidLocalIndexError reports a get_local/set_local/tee_local index
// beyond the function's parameters+locals.
type InvalidLocalIndexError uint32

func (e InvalidLocalIndexError) Error() string {
	return fmt.Sprintf("compile: invalid local index %d", uint32(e))
}

// InvalidGlobalIndexError reports a get_global/set_global index beyond
// the module's global space.
type InvalidGlobalIndexError uint32

func (e InvalidGlobalIndexError) Error() string {
	return fmt.Sprintf("compile: invalid global index %d", uint32(e))
}

// InvalidFunctionIndexError reports a call targeting an index beyond the
// module's function space.
type InvalidFunctionIndexError uint32

func (e InvalidFunctionIndexError) Error() string {
	return fmt.Sprintf("compile: invalid function index %d", uint32(e))
}

// InvalidTypeIndexError reports a call_indirect targeting an index
// beyond the module's type space.
type InvalidTypeIndexError uint32

func (e InvalidTypeIndexError) Error() string {
	return fmt.Sprintf("compile: invalid type index %d", uint32(e))
}

// InvalidIfSignatureError reports a two-armed if whose branches leave
// the operand stack in different shapes (spec.md §8 scenario 6).
type InvalidIfSignatureError struct {
	Want binary.ValueType
}

func (e InvalidIfSignatureError) Error() string {
	return fmt.Sprintf("compile: if/else branches disagree on result type %s", e.Want)
}

// UnsupportedOpcodeError reports an opcode byte with no entry in the
// binary/operators table. i64/f32/f64 opcodes do not surface here: the
// compiler type-checks them, and package interp rejects them at run
// time with NotExecutableError.
type UnsupportedOpcodeError byte

func (e UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("compile: unsupported opcode %#x", byte(e))
}
