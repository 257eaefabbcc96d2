// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package binary

import (
	"math"

	"github.com/wasmkernel/wasmkernel/binary/leb128"
)

// Instr is one decoded instruction from a function body or initializer
// expression, with its immediates in wire order. Immediates hold
// (u)int32/(u)int64/float32/float64/wasm.BlockType values, mirroring
// go-interpreter/wagon's disasm.Instr.
type Instr struct {
	Op         byte
	Offset     int // byte offset of the opcode itself within the code stream
	Immediates []interface{}
}

// InstrIter decodes one instruction at a time from a code stream,
// dispatching on opcode into the immediate families spec.md §4.1 names:
// none, block-signature, branch-depth, branch-table, local-index,
// global-index, call-index, call-indirect, constants, load/store, memory.
type InstrIter struct {
	r *Reader
}

// NewInstrIter returns an iterator over code (a function body's
// expression, or an initializer expression without its final `end`).
func NewInstrIter(code []byte) *InstrIter {
	return &InstrIter{r: NewReader(code)}
}

// Done reports whether every byte of the code stream has been consumed.
func (it *InstrIter) Done() bool { return it.r.AtEOF() }

// Pos returns the iterator's current byte offset.
func (it *InstrIter) Pos() int { return it.r.Pos() }

// Next decodes and returns the next instruction. io.EOF is returned once
// the stream is exhausted.
func (it *InstrIter) Next() (Instr, error) {
	offset := it.r.Pos()
	op, err := it.r.ReadByte()
	if err != nil {
		return Instr{}, err
	}
	instr := Instr{Op: op, Offset: offset, Immediates: []interface{}{}}

	switch op {
	case OpBlock, OpLoop, OpIf:
		bt, err := readBlockType(it.r)
		if err != nil {
			return instr, err
		}
		instr.Immediates = append(instr.Immediates, bt)

	case OpBr, OpBrIf:
		depth, err := leb128.ReadVarUint32(it.r)
		if err != nil {
			return instr, err
		}
		instr.Immediates = append(instr.Immediates, depth)

	case OpBrTable:
		count, err := leb128.ReadVarUint32(it.r)
		if err != nil {
			return instr, err
		}
		instr.Immediates = append(instr.Immediates, count)
		for i := uint32(0); i < count; i++ {
			target, err := leb128.ReadVarUint32(it.r)
			if err != nil {
				return instr, err
			}
			instr.Immediates = append(instr.Immediates, target)
		}
		def, err := leb128.ReadVarUint32(it.r)
		if err != nil {
			return instr, err
		}
		instr.Immediates = append(instr.Immediates, def)

	case OpGetLocal, OpSetLocal, OpTeeLocal, OpGetGlobal, OpSetGlobal:
		idx, err := leb128.ReadVarUint32(it.r)
		if err != nil {
			return instr, err
		}
		instr.Immediates = append(instr.Immediates, idx)

	case OpCall:
		idx, err := leb128.ReadVarUint32(it.r)
		if err != nil {
			return instr, err
		}
		instr.Immediates = append(instr.Immediates, idx)

	case OpCallIndirect:
		typeIdx, err := leb128.ReadVarUint32(it.r)
		if err != nil {
			return instr, err
		}
		reserved, err := it.r.ReadByte()
		if err != nil {
			return instr, err
		}
		if reserved != 0 {
			return instr, ErrInvalidReservedByte
		}
		instr.Immediates = append(instr.Immediates, typeIdx)

	case OpI32Const:
		v, err := leb128.ReadVarint32(it.r)
		if err != nil {
			return instr, err
		}
		instr.Immediates = append(instr.Immediates, v)

	case OpI64Const:
		v, err := leb128.ReadVarint64(it.r)
		if err != nil {
			return instr, err
		}
		instr.Immediates = append(instr.Immediates, v)

	case OpF32Const:
		v, err := it.r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Immediates = append(instr.Immediates, math.Float32frombits(v))

	case OpF64Const:
		v, err := it.r.ReadU64()
		if err != nil {
			return instr, err
		}
		instr.Immediates = append(instr.Immediates, math.Float64frombits(v))

	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8s, OpI32Load8u, OpI32Load16s, OpI32Load16u,
		OpI64Load8s, OpI64Load8u, OpI64Load16s, OpI64Load16u, OpI64Load32s, OpI64Load32u,
		OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		align, err := leb128.ReadVarUint32(it.r)
		if err != nil {
			return instr, err
		}
		offset, err := leb128.ReadVarUint32(it.r)
		if err != nil {
			return instr, err
		}
		instr.Immediates = append(instr.Immediates, align, offset)

	case OpCurrentMemory, OpGrowMemory:
		reserved, err := it.r.ReadByte()
		if err != nil {
			return instr, err
		}
		if reserved != 0 {
			return instr, ErrInvalidReservedByte
		}

	default:
		// none: unreachable, nop, block-terminators, drop, select,
		// return, and every numeric opcode with no immediate.
	}

	return instr, nil
}

func readBlockType(r *Reader) (BlockType, error) {
	v, err := leb128.ReadVarint32(r)
	if err != nil {
		return 0, err
	}
	bt := BlockType(v)
	switch bt {
	case ValueTypeVoid, ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return bt, nil
	default:
		return 0, InvalidValueTypeError(v)
	}
}

// readInitExpr reads a constant initializer expression terminated by
// `end`, returning the raw bytes (opcode + immediates, no `end`) so it
// can be re-decoded by InstrIter and evaluated at instantiation time
// (spec.md §3 "Initializer").
func readInitExpr(r *Reader) ([]byte, error) {
	start := r.Pos()
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch op {
		case OpI32Const:
			if _, err := leb128.ReadVarint32(r); err != nil {
				return nil, err
			}
		case OpI64Const:
			if _, err := leb128.ReadVarint64(r); err != nil {
				return nil, err
			}
		case OpF32Const:
			if _, err := r.ReadU32(); err != nil {
				return nil, err
			}
		case OpF64Const:
			if _, err := r.ReadU64(); err != nil {
				return nil, err
			}
		case OpGetGlobal:
			if _, err := leb128.ReadVarUint32(r); err != nil {
				return nil, err
			}
		case OpEnd:
			end := r.Pos() - 1
			if end == start {
				return nil, ErrEmptyInitExpr
			}
			return r.Bytes()[start:end], nil
		default:
			return nil, InvalidInitExprOpError(op)
		}
	}
}
