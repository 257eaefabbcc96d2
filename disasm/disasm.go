// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package disasm

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	wbinary "github.com/wasmkernel/wasmkernel/binary"
	"github.com/wasmkernel/wasmkernel/binary/operators"
	"github.com/wasmkernel/wasmkernel/compile"
)

// Disassemble writes a flat, address-ordered trace of prog's istream to
// w: one line per opcode, each prefixed with its byte offset and raw
// bytes, in the spirit of original_source/src/dumper.rs's Disassembler
// delegate. Unlike the structured wasm source it was compiled from,
// the istream has no block nesting left to indent — every branch
// target is an absolute offset, so the trace is already flat.
func Disassemble(w io.Writer, prog *compile.Program) error {
	fmt.Fprintln(w, "Code Disassembly:")
	fmt.Fprintln(w)
	code := prog.Istream
	funcAt := make(map[uint32]int, len(prog.Funcs))
	for i, f := range prog.Funcs {
		funcAt[f.EntryOffset] = i
	}

	pc := uint32(0)
	for int(pc) < len(code) {
		if idx, ok := funcAt[pc]; ok {
			fmt.Fprintf(w, "%06x func[%d]:\n", pc, idx)
		}
		start := pc
		op := code[pc]
		pc++

		if op == wbinary.OpInterpData {
			size := binary.LittleEndian.Uint32(code[pc:])
			pc += 4
			fmt.Fprintf(w, " %06x: interp_data size=%d\n", start, size)
			n := int(size) / 12
			for i := 0; i < n; i++ {
				base := pc + uint32(i*12)
				target := binary.LittleEndian.Uint32(code[base:])
				drop := binary.LittleEndian.Uint32(code[base+4:])
				keep := binary.LittleEndian.Uint32(code[base+8:])
				fmt.Fprintf(w, "          [%d] target=%06x drop=%d keep=%d\n", i, target, drop, keep)
			}
			pc += size
			continue
		}

		name := mnemonic(op)
		imm, consumed := decodeImmediates(op, code[pc:])
		rawBytes := code[start : pc+uint32(consumed)]
		pc += uint32(consumed)

		fmt.Fprintf(w, " %06x:%s| %s%s\n", start, hexBytes(rawBytes, 28), name, imm)
	}
	return nil
}

func hexBytes(b []byte, pad int) string {
	s := ""
	for _, x := range b {
		s += fmt.Sprintf(" %02x", x)
	}
	for len(s) < pad {
		s += " "
	}
	return s
}

func mnemonic(op byte) string {
	if o, err := operators.New(op); err == nil {
		return o.Name
	}
	return fmt.Sprintf("unknown.%#x", op)
}

// decodeImmediates reads op's immediates from the bytes immediately
// following the opcode, returning a formatted suffix and the number of
// bytes consumed. Mirrors the immediate shapes package interp's
// dispatch loop (exec/execMemOp/execBrTable) reads at runtime.
func decodeImmediates(op byte, b []byte) (string, int) {
	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }

	switch op {
	case wbinary.OpGetLocal, wbinary.OpSetLocal, wbinary.OpTeeLocal,
		wbinary.OpGetGlobal, wbinary.OpSetGlobal, wbinary.OpCall,
		wbinary.OpCallIndirect, wbinary.OpAlloca, wbinary.OpBr, wbinary.OpBrUnless:
		return fmt.Sprintf(" %d", u32(0)), 4

	case wbinary.OpDropKeep:
		return fmt.Sprintf(" drop=%d keep=%d", u32(0), u32(4)), 8

	case wbinary.OpBrTable:
		return fmt.Sprintf(" count=%d table=%06x", u32(0), u32(4)), 8

	case wbinary.OpI32Const:
		return fmt.Sprintf(" %d", int32(u32(0))), 4
	case wbinary.OpI64Const:
		return fmt.Sprintf(" %d", int32(u32(0))), 4
	case wbinary.OpF32Const:
		return fmt.Sprintf(" %s", f32Hex(math.Float32frombits(u32(0)))), 4
	case wbinary.OpF64Const:
		return fmt.Sprintf(" %s (low 32 bits)", f64Hex(float64(int32(u32(0))))), 4

	case wbinary.OpI32Load, wbinary.OpI64Load, wbinary.OpF32Load, wbinary.OpF64Load,
		wbinary.OpI32Load8s, wbinary.OpI32Load8u, wbinary.OpI32Load16s, wbinary.OpI32Load16u,
		wbinary.OpI64Load8s, wbinary.OpI64Load8u, wbinary.OpI64Load16s, wbinary.OpI64Load16u,
		wbinary.OpI64Load32s, wbinary.OpI64Load32u,
		wbinary.OpI32Store, wbinary.OpI64Store, wbinary.OpF32Store, wbinary.OpF64Store,
		wbinary.OpI32Store8, wbinary.OpI32Store16, wbinary.OpI64Store8, wbinary.OpI64Store16, wbinary.OpI64Store32:
		return fmt.Sprintf(" align=%d offset=%d", u32(0), u32(4)), 8

	default:
		return "", 0
	}
}
