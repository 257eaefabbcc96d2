// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package binary

import "fmt"

// ValueType is the tagged set of value types a wasm module may declare.
// i64/f64 are accepted by the parser and type checker but are not
// executable by the interpreter (spec.md Non-goals).
type ValueType int8

const (
	ValueTypeI32 ValueType = -0x01
	ValueTypeI64 ValueType = -0x02
	ValueTypeF32 ValueType = -0x03
	ValueTypeF64 ValueType = -0x04

	// ValueTypeVoid is the sentinel for "no value", used for block
	// signatures with no result and for the polymorphic label signature.
	ValueTypeVoid ValueType = -0x40
	// ValueTypeAny is a polymorphic type used by the checker in
	// unreachable code: it matches any other type on pop.
	ValueTypeAny ValueType = 0x7f
	// ValueTypeAnyFunc identifies the one table element type in the MVP.
	ValueTypeAnyFunc ValueType = -0x10
	// ValueTypeFunc is the type-constructor tag of a func type.
	ValueTypeFunc ValueType = -0x20
)

var valueTypeNames = map[ValueType]string{
	ValueTypeI32:     "i32",
	ValueTypeI64:     "i64",
	ValueTypeF32:     "f32",
	ValueTypeF64:     "f64",
	ValueTypeVoid:    "void",
	ValueTypeAny:     "any",
	ValueTypeAnyFunc:  "anyfunc",
	ValueTypeFunc:    "func",
}

func (t ValueType) String() string {
	if s, ok := valueTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("<unknown value_type %d>", int8(t))
}

// BlockType is the signature of a structured control-flow block: either
// ValueTypeVoid or a single concrete value type (spec.md caps |results|<=1).
type BlockType = ValueType

// ExternalKind describes the kind of entry being imported or exported.
type ExternalKind uint8

const (
	ExternalFunction ExternalKind = 0
	ExternalTable    ExternalKind = 1
	ExternalMemory   ExternalKind = 2
	ExternalGlobal   ExternalKind = 3
)

func (e ExternalKind) String() string {
	switch e {
	case ExternalFunction:
		return "function"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	default:
		return "<unknown external_kind>"
	}
}

// FunctionSig describes the signature of a declared function.
// Invariant: len(ReturnTypes) <= 1 (spec.md §3).
type FunctionSig struct {
	ParamTypes  []ValueType
	ReturnTypes []ValueType
}

func (f FunctionSig) String() string {
	return fmt.Sprintf("<func %v -> %v>", f.ParamTypes, f.ReturnTypes)
}

// Limits describes the size bounds of a table or linear memory.
type Limits struct {
	Flags   uint32 // bit 0 set iff Maximum is present
	Initial uint32
	Maximum uint32
}

// HasMax reports whether the limits declare a maximum.
func (l Limits) HasMax() bool { return l.Flags&0x1 != 0 }

// Table describes a table declared or imported by a module. ElementType
// is always ValueTypeAnyFunc in the MVP.
type Table struct {
	ElementType ValueType
	Limits      Limits
}

// Memory describes a linear memory declared or imported by a module.
type Memory struct {
	Limits Limits
}

// GlobalType describes the type and mutability of a global variable.
type GlobalType struct {
	Type    ValueType
	Mutable bool
}
