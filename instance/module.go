// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package instance

import (
	"math"

	wbinary "github.com/wasmkernel/wasmkernel/binary"
	"github.com/wasmkernel/wasmkernel/compile"
	"github.com/wasmkernel/wasmkernel/pagemem"
)

// ModuleInst is a fully resolved module instance (spec.md §3): function
// table, global values, table, memory, and exports, all owned for the
// lifetime of its Environment entry.
type ModuleInst struct {
	Index uint32
	Prog  *compile.Program

	Funcs   []FunctionInst
	Globals []GlobalInst
	Table   *TableInst
	Mem     *pagemem.Memory
	Exports map[string]ExportInst
}

// Export looks up a named export.
func (mi *ModuleInst) Export(name string) (ExportInst, bool) {
	e, ok := mi.Exports[name]
	return e, ok
}

// evalInitExpr computes the static value of an initializer expression:
// a single constant-producing instruction (spec.md §3 "Initializer").
// Only i32/i64/f32/f64 consts and get_global of an already-resolved
// immutable global are legal; globalsSoFar is the instance's Globals
// table as populated up to this point (local globals may only
// reference imports, which always precede them).
func evalInitExpr(code []byte, globalsSoFar []GlobalInst) (uint64, error) {
	it := wbinary.NewInstrIter(code)
	if it.Done() {
		return 0, ErrInvalidInitExpr
	}
	instr, err := it.Next()
	if err != nil {
		return 0, err
	}
	switch instr.Op {
	case wbinary.OpI32Const:
		return uint64(uint32(instr.Immediates[0].(int32))), nil
	case wbinary.OpI64Const:
		return uint64(instr.Immediates[0].(int64)), nil
	case wbinary.OpF32Const:
		return uint64(math.Float32bits(instr.Immediates[0].(float32))), nil
	case wbinary.OpF64Const:
		return math.Float64bits(instr.Immediates[0].(float64)), nil
	case wbinary.OpGetGlobal:
		idx := instr.Immediates[0].(uint32)
		if int(idx) >= len(globalsSoFar) {
			return 0, InvalidGlobalIndexError(idx)
		}
		g := globalsSoFar[idx]
		if g.Mutable {
			return 0, ErrMutableGlobalInInit
		}
		return g.Value, nil
	default:
		return 0, ErrInvalidInitExpr
	}
}
