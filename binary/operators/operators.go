// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package operators is the opcode metadata table shared by package
// compile (type checking) and package disasm (pretty-printing). It
// mirrors go-interpreter/wagon's wasm/operators package, extended with
// the reserved 0xe0-0xe4 interpreter-only opcodes from
// original_source/src/opcode.rs.
package operators

import (
	"fmt"

	"github.com/wasmkernel/wasmkernel/binary"
)

// Op describes one opcode's static type-checking behavior: the types it
// pops (in order) and the single type it pushes (ValueTypeVoid for
// none). For loads and stores the i32 address operand is not listed in
// Args; package compile pops it separately. Polymorphic ops (control-flow, call, call_indirect, drop,
// select, return) have custom pop/push logic in package compile and are
// listed here only for Name/text purposes.
type Op struct {
	Code        byte
	Name        string
	Args        []binary.ValueType
	Returns     binary.ValueType
	Polymorphic bool
}

var table [256]*Op

func newOp(code byte, name string, args []binary.ValueType, returns binary.ValueType) Op {
	o := Op{Code: code, Name: name, Args: args, Returns: returns}
	table[code] = &o
	return o
}

func newPolymorphicOp(code byte, name string) Op {
	o := Op{Code: code, Name: name, Polymorphic: true}
	table[code] = &o
	return o
}

// ErrUnknownOpcode is returned by New for a byte with no known meaning.
type ErrUnknownOpcode byte

func (e ErrUnknownOpcode) Error() string { return fmt.Sprintf("operators: unknown opcode %#x", byte(e)) }

// New looks up the metadata for opcode code.
func New(code byte) (Op, error) {
	o := table[code]
	if o == nil {
		return Op{}, ErrUnknownOpcode(code)
	}
	return *o, nil
}

var (
	i32 = binary.ValueTypeI32
	i64 = binary.ValueTypeI64
	f32 = binary.ValueTypeF32
	f64 = binary.ValueTypeF64
	void = binary.ValueTypeVoid
)

// Control flow and parametric instructions are polymorphic: their
// pop/push behavior depends on immediates (block signature, callee
// signature) resolved by package compile, not by a static Args/Returns
// pair.
var (
	Unreachable  = newPolymorphicOp(binary.OpUnreachable, "unreachable")
	Nop          = newPolymorphicOp(binary.OpNop, "nop")
	Block        = newPolymorphicOp(binary.OpBlock, "block")
	Loop         = newPolymorphicOp(binary.OpLoop, "loop")
	If           = newPolymorphicOp(binary.OpIf, "if")
	Else         = newPolymorphicOp(binary.OpElse, "else")
	End          = newPolymorphicOp(binary.OpEnd, "end")
	Br           = newPolymorphicOp(binary.OpBr, "br")
	BrIf         = newPolymorphicOp(binary.OpBrIf, "br_if")
	BrTable      = newPolymorphicOp(binary.OpBrTable, "br_table")
	Return       = newPolymorphicOp(binary.OpReturn, "return")
	Call         = newPolymorphicOp(binary.OpCall, "call")
	CallIndirect = newPolymorphicOp(binary.OpCallIndirect, "call_indirect")
	Drop         = newPolymorphicOp(binary.OpDrop, "drop")
	Select       = newPolymorphicOp(binary.OpSelect, "select")

	GetLocal  = newPolymorphicOp(binary.OpGetLocal, "get_local")
	SetLocal  = newPolymorphicOp(binary.OpSetLocal, "set_local")
	TeeLocal  = newPolymorphicOp(binary.OpTeeLocal, "tee_local")
	GetGlobal = newPolymorphicOp(binary.OpGetGlobal, "get_global")
	SetGlobal = newPolymorphicOp(binary.OpSetGlobal, "set_global")
)

var (
	I32Load    = newOp(binary.OpI32Load, "i32.load", nil, i32)
	I64Load    = newOp(binary.OpI64Load, "i64.load", nil, i64)
	F32Load    = newOp(binary.OpF32Load, "f32.load", nil, f32)
	F64Load    = newOp(binary.OpF64Load, "f64.load", nil, f64)
	I32Load8s  = newOp(binary.OpI32Load8s, "i32.load8_s", nil, i32)
	I32Load8u  = newOp(binary.OpI32Load8u, "i32.load8_u", nil, i32)
	I32Load16s = newOp(binary.OpI32Load16s, "i32.load16_s", nil, i32)
	I32Load16u = newOp(binary.OpI32Load16u, "i32.load16_u", nil, i32)
	I64Load8s  = newOp(binary.OpI64Load8s, "i64.load8_s", nil, i64)
	I64Load8u  = newOp(binary.OpI64Load8u, "i64.load8_u", nil, i64)
	I64Load16s = newOp(binary.OpI64Load16s, "i64.load16_s", nil, i64)
	I64Load16u = newOp(binary.OpI64Load16u, "i64.load16_u", nil, i64)
	I64Load32s = newOp(binary.OpI64Load32s, "i64.load32_s", nil, i64)
	I64Load32u = newOp(binary.OpI64Load32u, "i64.load32_u", nil, i64)

	I32Store   = newOp(binary.OpI32Store, "i32.store", []binary.ValueType{i32}, void)
	I64Store   = newOp(binary.OpI64Store, "i64.store", []binary.ValueType{i64}, void)
	F32Store   = newOp(binary.OpF32Store, "f32.store", []binary.ValueType{f32}, void)
	F64Store   = newOp(binary.OpF64Store, "f64.store", []binary.ValueType{f64}, void)
	I32Store8  = newOp(binary.OpI32Store8, "i32.store8", []binary.ValueType{i32}, void)
	I32Store16 = newOp(binary.OpI32Store16, "i32.store16", []binary.ValueType{i32}, void)
	I64Store8  = newOp(binary.OpI64Store8, "i64.store8", []binary.ValueType{i64}, void)
	I64Store16 = newOp(binary.OpI64Store16, "i64.store16", []binary.ValueType{i64}, void)
	I64Store32 = newOp(binary.OpI64Store32, "i64.store32", []binary.ValueType{i64}, void)

	CurrentMemory = newOp(binary.OpCurrentMemory, "current_memory", nil, i32)
	GrowMemory    = newOp(binary.OpGrowMemory, "grow_memory", []binary.ValueType{i32}, i32)

	I32Const = newOp(binary.OpI32Const, "i32.const", nil, i32)
	I64Const = newOp(binary.OpI64Const, "i64.const", nil, i64)
	F32Const = newOp(binary.OpF32Const, "f32.const", nil, f32)
	F64Const = newOp(binary.OpF64Const, "f64.const", nil, f64)
)

func cmpOp(code byte, name string, t binary.ValueType) Op {
	return newOp(code, name, []binary.ValueType{t, t}, i32)
}
func unOp(code byte, name string, t binary.ValueType) Op {
	return newOp(code, name, []binary.ValueType{t}, t)
}
func binOp(code byte, name string, t binary.ValueType) Op {
	return newOp(code, name, []binary.ValueType{t, t}, t)
}

var (
	I32Eqz = newOp(binary.OpI32Eqz, "i32.eqz", []binary.ValueType{i32}, i32)
	I32Eq  = cmpOp(binary.OpI32Eq, "i32.eq", i32)
	I32Ne  = cmpOp(binary.OpI32Ne, "i32.ne", i32)
	I32LtS = cmpOp(binary.OpI32LtS, "i32.lt_s", i32)
	I32LtU = cmpOp(binary.OpI32LtU, "i32.lt_u", i32)
	I32GtS = cmpOp(binary.OpI32GtS, "i32.gt_s", i32)
	I32GtU = cmpOp(binary.OpI32GtU, "i32.gt_u", i32)
	I32LeS = cmpOp(binary.OpI32LeS, "i32.le_s", i32)
	I32LeU = cmpOp(binary.OpI32LeU, "i32.le_u", i32)
	I32GeS = cmpOp(binary.OpI32GeS, "i32.ge_s", i32)
	I32GeU = cmpOp(binary.OpI32GeU, "i32.ge_u", i32)

	I64Eqz = newOp(binary.OpI64Eqz, "i64.eqz", []binary.ValueType{i64}, i32)
	I64Eq  = cmpOp(binary.OpI64Eq, "i64.eq", i64)
	I64Ne  = cmpOp(binary.OpI64Ne, "i64.ne", i64)
	I64LtS = cmpOp(binary.OpI64LtS, "i64.lt_s", i64)
	I64LtU = cmpOp(binary.OpI64LtU, "i64.lt_u", i64)
	I64GtS = cmpOp(binary.OpI64GtS, "i64.gt_s", i64)
	I64GtU = cmpOp(binary.OpI64GtU, "i64.gt_u", i64)
	I64LeS = cmpOp(binary.OpI64LeS, "i64.le_s", i64)
	I64LeU = cmpOp(binary.OpI64LeU, "i64.le_u", i64)
	I64GeS = cmpOp(binary.OpI64GeS, "i64.ge_s", i64)
	I64GeU = cmpOp(binary.OpI64GeU, "i64.ge_u", i64)

	F32Eq = cmpOp(binary.OpF32Eq, "f32.eq", f32)
	F32Ne = cmpOp(binary.OpF32Ne, "f32.ne", f32)
	F32Lt = cmpOp(binary.OpF32Lt, "f32.lt", f32)
	F32Gt = cmpOp(binary.OpF32Gt, "f32.gt", f32)
	F32Le = cmpOp(binary.OpF32Le, "f32.le", f32)
	F32Ge = cmpOp(binary.OpF32Ge, "f32.ge", f32)

	F64Eq = cmpOp(binary.OpF64Eq, "f64.eq", f64)
	F64Ne = cmpOp(binary.OpF64Ne, "f64.ne", f64)
	F64Lt = cmpOp(binary.OpF64Lt, "f64.lt", f64)
	F64Gt = cmpOp(binary.OpF64Gt, "f64.gt", f64)
	F64Le = cmpOp(binary.OpF64Le, "f64.le", f64)
	F64Ge = cmpOp(binary.OpF64Ge, "f64.ge", f64)

	I32Clz    = unOp(binary.OpI32Clz, "i32.clz", i32)
	I32Ctz    = unOp(binary.OpI32Ctz, "i32.ctz", i32)
	I32Popcnt = unOp(binary.OpI32Popcnt, "i32.popcnt", i32)
	I32Add    = binOp(binary.OpI32Add, "i32.add", i32)
	I32Sub    = binOp(binary.OpI32Sub, "i32.sub", i32)
	I32Mul    = binOp(binary.OpI32Mul, "i32.mul", i32)
	I32DivS   = binOp(binary.OpI32DivS, "i32.div_s", i32)
	I32DivU   = binOp(binary.OpI32DivU, "i32.div_u", i32)
	I32RemS   = binOp(binary.OpI32RemS, "i32.rem_s", i32)
	I32RemU   = binOp(binary.OpI32RemU, "i32.rem_u", i32)
	I32And    = binOp(binary.OpI32And, "i32.and", i32)
	I32Or     = binOp(binary.OpI32Or, "i32.or", i32)
	I32Xor    = binOp(binary.OpI32Xor, "i32.xor", i32)
	I32Shl    = binOp(binary.OpI32Shl, "i32.shl", i32)
	I32ShrS   = binOp(binary.OpI32ShrS, "i32.shr_s", i32)
	I32ShrU   = binOp(binary.OpI32ShrU, "i32.shr_u", i32)
	I32Rotl   = binOp(binary.OpI32Rotl, "i32.rotl", i32)
	I32Rotr   = binOp(binary.OpI32Rotr, "i32.rotr", i32)

	I64Clz    = unOp(binary.OpI64Clz, "i64.clz", i64)
	I64Ctz    = unOp(binary.OpI64Ctz, "i64.ctz", i64)
	I64Popcnt = unOp(binary.OpI64Popcnt, "i64.popcnt", i64)
	I64Add    = binOp(binary.OpI64Add, "i64.add", i64)
	I64Sub    = binOp(binary.OpI64Sub, "i64.sub", i64)
	I64Mul    = binOp(binary.OpI64Mul, "i64.mul", i64)
	I64DivS   = binOp(binary.OpI64DivS, "i64.div_s", i64)
	I64DivU   = binOp(binary.OpI64DivU, "i64.div_u", i64)
	I64RemS   = binOp(binary.OpI64RemS, "i64.rem_s", i64)
	I64RemU   = binOp(binary.OpI64RemU, "i64.rem_u", i64)
	I64And    = binOp(binary.OpI64And, "i64.and", i64)
	I64Or     = binOp(binary.OpI64Or, "i64.or", i64)
	I64Xor    = binOp(binary.OpI64Xor, "i64.xor", i64)
	I64Shl    = binOp(binary.OpI64Shl, "i64.shl", i64)
	I64ShrS   = binOp(binary.OpI64ShrS, "i64.shr_s", i64)
	I64ShrU   = binOp(binary.OpI64ShrU, "i64.shr_u", i64)
	I64Rotl   = binOp(binary.OpI64Rotl, "i64.rotl", i64)
	I64Rotr   = binOp(binary.OpI64Rotr, "i64.rotr", i64)

	F32Abs      = unOp(binary.OpF32Abs, "f32.abs", f32)
	F32Neg      = unOp(binary.OpF32Neg, "f32.neg", f32)
	F32Ceil     = unOp(binary.OpF32Ceil, "f32.ceil", f32)
	F32Floor    = unOp(binary.OpF32Floor, "f32.floor", f32)
	F32Trunc    = unOp(binary.OpF32Trunc, "f32.trunc", f32)
	F32Nearest  = unOp(binary.OpF32Nearest, "f32.nearest", f32)
	F32Sqrt     = unOp(binary.OpF32Sqrt, "f32.sqrt", f32)
	F32Add      = binOp(binary.OpF32Add, "f32.add", f32)
	F32Sub      = binOp(binary.OpF32Sub, "f32.sub", f32)
	F32Mul      = binOp(binary.OpF32Mul, "f32.mul", f32)
	F32Div      = binOp(binary.OpF32Div, "f32.div", f32)
	F32Min      = binOp(binary.OpF32Min, "f32.min", f32)
	F32Max      = binOp(binary.OpF32Max, "f32.max", f32)
	F32CopySign = binOp(binary.OpF32CopySign, "f32.copysign", f32)

	F64Abs      = unOp(binary.OpF64Abs, "f64.abs", f64)
	F64Neg      = unOp(binary.OpF64Neg, "f64.neg", f64)
	F64Ceil     = unOp(binary.OpF64Ceil, "f64.ceil", f64)
	F64Floor    = unOp(binary.OpF64Floor, "f64.floor", f64)
	F64Trunc    = unOp(binary.OpF64Trunc, "f64.trunc", f64)
	F64Nearest  = unOp(binary.OpF64Nearest, "f64.nearest", f64)
	F64Sqrt     = unOp(binary.OpF64Sqrt, "f64.sqrt", f64)
	F64Add      = binOp(binary.OpF64Add, "f64.add", f64)
	F64Sub      = binOp(binary.OpF64Sub, "f64.sub", f64)
	F64Mul      = binOp(binary.OpF64Mul, "f64.mul", f64)
	F64Div      = binOp(binary.OpF64Div, "f64.div", f64)
	F64Min      = binOp(binary.OpF64Min, "f64.min", f64)
	F64Max      = binOp(binary.OpF64Max, "f64.max", f64)
	F64CopySign = binOp(binary.OpF64CopySign, "f64.copysign", f64)

	I32WrapI64        = newOp(binary.OpI32WrapI64, "i32.wrap/i64", []binary.ValueType{i64}, i32)
	I32TruncSF32      = newOp(binary.OpI32TruncSF32, "i32.trunc_s/f32", []binary.ValueType{f32}, i32)
	I32TruncUF32      = newOp(binary.OpI32TruncUF32, "i32.trunc_u/f32", []binary.ValueType{f32}, i32)
	I32TruncSF64      = newOp(binary.OpI32TruncSF64, "i32.trunc_s/f64", []binary.ValueType{f64}, i32)
	I32TruncUF64      = newOp(binary.OpI32TruncUF64, "i32.trunc_u/f64", []binary.ValueType{f64}, i32)
	I64ExtendSI32     = newOp(binary.OpI64ExtendSI32, "i64.extend_s/i32", []binary.ValueType{i32}, i64)
	I64ExtendUI32     = newOp(binary.OpI64ExtendUI32, "i64.extend_u/i32", []binary.ValueType{i32}, i64)
	I64TruncSF32      = newOp(binary.OpI64TruncSF32, "i64.trunc_s/f32", []binary.ValueType{f32}, i64)
	I64TruncUF32      = newOp(binary.OpI64TruncUF32, "i64.trunc_u/f32", []binary.ValueType{f32}, i64)
	I64TruncSF64      = newOp(binary.OpI64TruncSF64, "i64.trunc_s/f64", []binary.ValueType{f64}, i64)
	I64TruncUF64      = newOp(binary.OpI64TruncUF64, "i64.trunc_u/f64", []binary.ValueType{f64}, i64)
	F32ConvertSI32    = newOp(binary.OpF32ConvertSI32, "f32.convert_s/i32", []binary.ValueType{i32}, f32)
	F32ConvertUI32    = newOp(binary.OpF32ConvertUI32, "f32.convert_u/i32", []binary.ValueType{i32}, f32)
	F32ConvertSI64    = newOp(binary.OpF32ConvertSI64, "f32.convert_s/i64", []binary.ValueType{i64}, f32)
	F32ConvertUI64    = newOp(binary.OpF32ConvertUI64, "f32.convert_u/i64", []binary.ValueType{i64}, f32)
	F32DemoteF64      = newOp(binary.OpF32DemoteF64, "f32.demote/f64", []binary.ValueType{f64}, f32)
	F64ConvertSI32    = newOp(binary.OpF64ConvertSI32, "f64.convert_s/i32", []binary.ValueType{i32}, f64)
	F64ConvertUI32    = newOp(binary.OpF64ConvertUI32, "f64.convert_u/i32", []binary.ValueType{i32}, f64)
	F64ConvertSI64    = newOp(binary.OpF64ConvertSI64, "f64.convert_s/i64", []binary.ValueType{i64}, f64)
	F64ConvertUI64    = newOp(binary.OpF64ConvertUI64, "f64.convert_u/i64", []binary.ValueType{i64}, f64)
	F64PromoteF32     = newOp(binary.OpF64PromoteF32, "f64.promote/f32", []binary.ValueType{f32}, f64)
	I32ReinterpretF32 = newOp(binary.OpI32ReinterpretF32, "i32.reinterpret/f32", []binary.ValueType{f32}, i32)
	I64ReinterpretF64 = newOp(binary.OpI64ReinterpretF64, "i64.reinterpret/f64", []binary.ValueType{f64}, i64)
	F32ReinterpretI32 = newOp(binary.OpF32ReinterpretI32, "f32.reinterpret/i32", []binary.ValueType{i32}, f32)
	F64ReinterpretI64 = newOp(binary.OpF64ReinterpretI64, "f64.reinterpret/i64", []binary.ValueType{i64}, f64)
)

// Interpreter-only istream opcodes (original_source/src/opcode.rs
// 0xe0-0xe4). Polymorphic: their immediates are interpreted directly by
// package interp, not by the static type checker.
var (
	Alloca     = newPolymorphicOp(binary.OpAlloca, "alloca")
	BrUnless   = newPolymorphicOp(binary.OpBrUnless, "br_unless")
	CallHost   = newPolymorphicOp(binary.OpCallHost, "call_host")
	InterpData = newPolymorphicOp(binary.OpInterpData, "interp_data")
	DropKeep   = newPolymorphicOp(binary.OpDropKeep, "drop_keep")
)
