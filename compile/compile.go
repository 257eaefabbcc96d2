// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"bytes"
	"encoding/binary"
	"math"

	wbinary "github.com/wasmkernel/wasmkernel/binary"
	"github.com/wasmkernel/wasmkernel/binary/operators"
)

// FuncMeta is the compiled-module side-table entry for one local
// function (spec.md §3 "Compiled module"): its signature index, istream
// entry offset, and local layout, enough for the instantiator and
// interpreter to set up a call frame without re-reading the parsed
// module.
type FuncMeta struct {
	TypeIndex   uint32
	EntryOffset uint32
	NumParams   int
	NumLocals   int // locals beyond params
	MaxDepth    int // high-water mark of the compile-time operand stack
}

// Program is a compiled module: the flat istream plus every side table
// the instantiator and interpreter need, indexed by the same indices
// the binary format uses (spec.md §4.2 "Output").
type Program struct {
	Istream []byte

	Types    []wbinary.FunctionSig
	Imports  []wbinary.ImportEntry
	Funcs    []FuncMeta // one per module-local function, parallel to binary.Module.Funcs/Code
	Tables   []wbinary.Table
	Mems     []wbinary.Memory
	Globals  []wbinary.GlobalEntry
	Exports  []wbinary.ExportEntry
	Start    *uint32
	Elements []wbinary.ElementSegment
	Data     []wbinary.DataSegment
}

// Compile type-checks mod in one pass and emits its istream (spec.md
// §4.2). The returned Program is self-contained; package instance never
// needs to consult mod again.
func Compile(mod *wbinary.Module) (*Program, error) {
	c := &Compiler{mod: mod, out: &bytes.Buffer{}}
	prog := &Program{
		Types:    mod.Types,
		Imports:  mod.Imports,
		Tables:   mod.Tables,
		Mems:     mod.Mems,
		Globals:  mod.Globals,
		Exports:  mod.Exports,
		Start:    mod.Start,
		Elements: mod.Elements,
		Data:     mod.Data,
		Funcs:    make([]FuncMeta, len(mod.Funcs)),
	}
	for i := range mod.Funcs {
		meta, err := c.compileFunction(uint32(i))
		if err != nil {
			return nil, err
		}
		prog.Funcs[i] = meta
	}
	prog.Istream = c.out.Bytes()
	return prog, nil
}

// Compiler holds the state of a single-pass type-check-and-emit walk.
// One Compiler compiles every function in a module sequentially,
// resetting its per-function state (operands/labels/fixups/locals)
// between functions, mirroring original_source/src/compiler.rs's
// Context reset between function bodies.
type Compiler struct {
	mod *wbinary.Module
	out *bytes.Buffer

	operands []wbinary.ValueType
	labels   []label
	fixups   []fixup
	locals   []wbinary.ValueType // params + declared locals, in order
	maxDepth int
}

func (c *Compiler) pos() uint32 { return uint32(c.out.Len()) }

func (c *Compiler) emitByte(b byte) { c.out.WriteByte(b) }

func (c *Compiler) emitU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	c.out.Write(b[:])
}

func (c *Compiler) emitI32(v int32) { c.emitU32(uint32(v)) }

func (c *Compiler) patchU32(pos int, v uint32) {
	b := c.out.Bytes()
	binary.LittleEndian.PutUint32(b[pos:pos+4], v)
}

func (c *Compiler) unreachable() bool {
	if len(c.labels) == 0 {
		return false
	}
	return c.topLabel().unreachable
}

func (c *Compiler) setUnreachable() { c.topLabel().unreachable = true }

// pushType records an opcode's result type on the compile-time operand
// stack. ValueTypeVoid pushes nothing.
func (c *Compiler) pushType(t wbinary.ValueType) {
	if t == wbinary.ValueTypeVoid {
		return
	}
	c.operands = append(c.operands, t)
	if len(c.operands) > c.maxDepth {
		c.maxDepth = len(c.operands)
	}
}

// popType pops and checks the top operand against want (ValueTypeAny
// matches anything). In unreachable code, popping below the enclosing
// label's stack_limit yields Any without error (spec.md's polymorphic
// "Unreachable policy").
func (c *Compiler) popType(op byte, want wbinary.ValueType) (wbinary.ValueType, error) {
	limit := 0
	if len(c.labels) > 0 {
		limit = c.topLabel().stackLimit
	}
	if len(c.operands) <= limit {
		if c.unreachable() {
			return wbinary.ValueTypeAny, nil
		}
		return 0, ErrStackUnderflow
	}
	got := c.operands[len(c.operands)-1]
	c.operands = c.operands[:len(c.operands)-1]
	if want != wbinary.ValueTypeAny && got != wbinary.ValueTypeAny && got != want {
		return 0, TypeMismatchError{Op: op, Want: want, Got: got}
	}
	return got, nil
}

func (c *Compiler) compileFunction(idx uint32) (FuncMeta, error) {
	sigIdx := c.mod.Funcs[idx]
	if int(sigIdx) >= len(c.mod.Types) {
		return FuncMeta{}, InvalidTypeIndexError(sigIdx)
	}
	sig := c.mod.Types[sigIdx]
	if len(sig.ReturnTypes) > 1 {
		return FuncMeta{}, ErrUnexpectedReturnLength
	}
	body := c.mod.Code[idx]

	c.operands = c.operands[:0]
	c.labels = c.labels[:0]
	c.fixups = c.fixups[:0]
	c.maxDepth = 0
	c.locals = append(c.locals[:0], sig.ParamTypes...)
	for _, le := range body.Locals {
		for i := uint32(0); i < le.Count; i++ {
			c.locals = append(c.locals, le.Type)
		}
	}

	entry := c.pos()
	retType := wbinary.ValueTypeVoid
	if len(sig.ReturnTypes) == 1 {
		retType = sig.ReturnTypes[0]
	}
	c.pushLabel(labelFunction, retType)

	numExtraLocals := len(c.locals) - len(sig.ParamTypes)
	if numExtraLocals > 0 {
		c.emitByte(wbinary.OpAlloca)
		c.emitU32(uint32(numExtraLocals))
	}

	it := wbinary.NewInstrIter(body.Code)
	for !it.Done() {
		instr, err := it.Next()
		if err != nil {
			return FuncMeta{}, err
		}
		if err := c.compileInstr(instr); err != nil {
			return FuncMeta{}, err
		}
	}
	// body.Code's final byte is always `end` (enforced by the parser),
	// so the loop above already drove the function-level label in
	// compileInstr's OpEnd case through emitReturn, resolveFixups, and
	// popLabel; c.labels is empty here.

	return FuncMeta{
		TypeIndex:   sigIdx,
		EntryOffset: entry,
		NumParams:   len(sig.ParamTypes),
		NumLocals:   numExtraLocals,
		MaxDepth:    c.maxDepth,
	}, nil
}

// emitReturn implements spec.md §4.2's "return" row: drop every local,
// param, and operand above the kept result, then emit the return
// opcode. Used both for an explicit `return` and for falling off the
// end of a function body.
func (c *Compiler) emitReturn() error {
	fnLabel, idx, err := c.labelAt(len(c.labels) - 1)
	if err != nil {
		return err
	}
	drop, keep := c.dropKeepFor(fnLabel)
	drop += uint32(len(c.locals))
	c.emitDropKeep(drop, keep)
	c.emitByte(wbinary.OpReturn)
	_ = idx
	return nil
}

func (c *Compiler) emitDropKeep(drop, keep uint32) {
	if drop == 0 && keep == 0 {
		return
	}
	c.emitByte(wbinary.OpDropKeep)
	c.emitU32(drop)
	c.emitU32(keep)
}

// translateLocalIndex computes the depth-from-top address of local i, 0
// based to match stackutil.Stack's Peek/Pick convention: the current
// operand height plus the locals below it, minus i, minus one (spec.md
// §4.2's formula adapted from a 1-based "top − d" convention to this
// package's 0-based Peek(0)==top).
func (c *Compiler) translateLocalIndex(i uint32) (uint32, error) {
	if int(i) >= len(c.locals) {
		return 0, InvalidLocalIndexError(i)
	}
	d := len(c.operands) + len(c.locals) - int(i) - 1
	return uint32(d), nil
}

func (c *Compiler) compileInstr(instr wbinary.Instr) error {
	op := instr.Op
	switch op {
	case wbinary.OpUnreachable:
		c.emitByte(op)
		c.setUnreachable()
		return nil

	case wbinary.OpNop:
		c.emitByte(op)
		return nil

	case wbinary.OpBlock:
		sig := instr.Immediates[0].(wbinary.BlockType)
		c.pushLabel(labelBlock, sig)
		return nil

	case wbinary.OpLoop:
		sig := instr.Immediates[0].(wbinary.BlockType)
		l := c.pushLabel(labelLoop, sig)
		l.offset = c.pos()
		l.hasOffset = true
		return nil

	case wbinary.OpIf:
		sig := instr.Immediates[0].(wbinary.BlockType)
		if _, err := c.popType(op, wbinary.ValueTypeI32); err != nil {
			return err
		}
		l := c.pushLabel(labelIf, sig)
		c.emitByte(wbinary.OpBrUnless)
		l.fixupOffset = c.pos()
		l.hasFixup = true
		c.emitU32(0xffffffff)
		return nil

	case wbinary.OpElse:
		l := c.topLabel()
		if l.signature != wbinary.ValueTypeVoid {
			if _, err := c.popType(op, l.signature); err != nil {
				return err
			}
		}
		if !l.unreachable && len(c.operands) != l.stackLimit {
			return InvalidIfSignatureError{Want: l.signature}
		}
		c.operands = c.operands[:l.stackLimit]
		l.unreachable = false

		c.emitByte(wbinary.OpBr)
		brFixupPos := int(c.pos())
		c.emitU32(0xffffffff)

		if l.hasFixup {
			c.patchU32(int(l.fixupOffset), c.pos())
		}
		l.fixupOffset = uint32(brFixupPos)
		l.hasFixup = true
		l.kind = labelElse
		return nil

	case wbinary.OpEnd:
		l := c.topLabel()
		if l.signature != wbinary.ValueTypeVoid {
			t, err := c.popType(op, l.signature)
			if err != nil {
				return err
			}
			c.pushType(t)
		}
		if (l.kind == labelIf || l.kind == labelElse) && !l.unreachable {
			extra := len(c.operands) - l.stackLimit
			if l.signature != wbinary.ValueTypeVoid {
				extra--
			}
			if extra != 0 {
				return InvalidIfSignatureError{Want: l.signature}
			}
		}
		idx := len(c.labels) - 1
		if (l.kind == labelIf || l.kind == labelElse) && l.hasFixup {
			c.patchU32(int(l.fixupOffset), c.pos())
		}

		if l.kind == labelFunction {
			if err := c.emitReturn(); err != nil {
				return err
			}
			c.resolveFixups(idx, c.pos())
			c.popLabel()
			return nil
		}

		c.resolveFixups(idx, c.pos())
		c.operands = c.operands[:l.stackLimit]
		if l.signature != wbinary.ValueTypeVoid {
			c.pushType(l.signature)
		}
		c.popLabel()
		return nil

	case wbinary.OpBr:
		depth := instr.Immediates[0].(uint32)
		l, idx, err := c.labelAt(int(depth))
		if err != nil {
			return err
		}
		drop, keep := c.dropKeepFor(l)
		c.emitDropKeep(drop, keep)
		c.emitByte(wbinary.OpBr)
		pos := int(c.pos())
		if l.hasOffset {
			c.emitU32(l.offset)
		} else {
			c.addFixup(idx, pos)
			c.emitU32(0xffffffff)
		}
		c.setUnreachable()
		return nil

	case wbinary.OpBrIf:
		depth := instr.Immediates[0].(uint32)
		if _, err := c.popType(op, wbinary.ValueTypeI32); err != nil {
			return err
		}
		l, idx, err := c.labelAt(int(depth))
		if err != nil {
			return err
		}
		// Flip the condition: branch over the br on a false predicate.
		c.emitByte(wbinary.OpBrUnless)
		skipPos := int(c.pos())
		c.emitU32(0xffffffff)

		drop, keep := c.dropKeepFor(l)
		c.emitDropKeep(drop, keep)
		c.emitByte(wbinary.OpBr)
		pos := int(c.pos())
		if l.hasOffset {
			c.emitU32(l.offset)
		} else {
			c.addFixup(idx, pos)
			c.emitU32(0xffffffff)
		}
		c.patchU32(skipPos, c.pos())
		return nil

	case wbinary.OpBrTable:
		return c.compileBrTable(instr)

	case wbinary.OpReturn:
		if err := c.emitReturn(); err != nil {
			return err
		}
		c.setUnreachable()
		return nil

	case wbinary.OpDrop:
		if _, err := c.popAny(); err != nil {
			return err
		}
		c.emitByte(op)
		return nil

	case wbinary.OpSelect:
		if _, err := c.popType(op, wbinary.ValueTypeI32); err != nil {
			return err
		}
		b, err := c.popAny()
		if err != nil {
			return err
		}
		if _, err := c.popType(op, b); err != nil {
			return err
		}
		c.pushType(b)
		c.emitByte(op)
		return nil

	case wbinary.OpGetLocal, wbinary.OpSetLocal, wbinary.OpTeeLocal:
		idx := instr.Immediates[0].(uint32)
		if int(idx) >= len(c.locals) {
			return InvalidLocalIndexError(idx)
		}
		ty := c.locals[idx]
		var depth uint32
		var err error
		switch op {
		case wbinary.OpGetLocal:
			depth, err = c.translateLocalIndex(idx)
			if err != nil {
				return err
			}
			c.pushType(ty)
		case wbinary.OpSetLocal:
			if _, err = c.popType(op, ty); err != nil {
				return err
			}
			depth, err = c.translateLocalIndex(idx)
			if err != nil {
				return err
			}
		case wbinary.OpTeeLocal:
			if _, err = c.popType(op, ty); err != nil {
				return err
			}
			c.pushType(ty)
			depth, err = c.translateLocalIndex(idx)
			if err != nil {
				return err
			}
		}
		c.emitByte(op)
		c.emitU32(depth)
		return nil

	case wbinary.OpGetGlobal, wbinary.OpSetGlobal:
		idx := instr.Immediates[0].(uint32)
		gt, err := c.globalType(idx)
		if err != nil {
			return err
		}
		if op == wbinary.OpGetGlobal {
			c.pushType(gt.Type)
		} else {
			if !gt.Mutable {
				return ErrImmutableGlobal
			}
			if _, err := c.popType(op, gt.Type); err != nil {
				return err
			}
		}
		c.emitByte(op)
		c.emitU32(idx)
		return nil

	case wbinary.OpCall:
		idx := instr.Immediates[0].(uint32)
		sig, err := c.funcSignature(idx)
		if err != nil {
			return err
		}
		if err := c.checkCallTypes(op, sig); err != nil {
			return err
		}
		// A single `call` opcode covers local, imported, and host
		// targets alike; the interpreter resolves the function-instance
		// kind from the module's function table at call time.
		c.emitByte(wbinary.OpCall)
		c.emitU32(idx)
		return nil

	case wbinary.OpCallIndirect:
		if len(c.mod.Tables) == 0 {
			return ErrNoTable
		}
		typeIdx := instr.Immediates[0].(uint32)
		if int(typeIdx) >= len(c.mod.Types) {
			return InvalidTypeIndexError(typeIdx)
		}
		sig := c.mod.Types[typeIdx]
		if _, err := c.popType(op, wbinary.ValueTypeI32); err != nil {
			return err
		}
		if err := c.checkCallTypes(op, sig); err != nil {
			return err
		}
		c.emitByte(op)
		c.emitU32(typeIdx)
		return nil

	case wbinary.OpI32Const:
		v := instr.Immediates[0].(int32)
		c.pushType(wbinary.ValueTypeI32)
		c.emitByte(op)
		c.emitI32(v)
		return nil

	case wbinary.OpI64Const:
		v := instr.Immediates[0].(int64)
		c.pushType(wbinary.ValueTypeI64)
		c.emitByte(op)
		c.emitI32(int32(v))
		return nil

	case wbinary.OpF32Const:
		v := instr.Immediates[0].(float32)
		c.pushType(wbinary.ValueTypeF32)
		c.emitByte(op)
		c.emitU32(math.Float32bits(v))
		return nil

	case wbinary.OpF64Const:
		v := instr.Immediates[0].(float64)
		c.pushType(wbinary.ValueTypeF64)
		c.emitByte(op)
		c.emitU32(uint32(math.Float64bits(v)))
		return nil

	case wbinary.OpCurrentMemory:
		if len(c.mod.Mems) == 0 {
			return ErrNoMemory
		}
		c.pushType(wbinary.ValueTypeI32)
		c.emitByte(op)
		return nil

	case wbinary.OpGrowMemory:
		if len(c.mod.Mems) == 0 {
			return ErrNoMemory
		}
		if _, err := c.popType(op, wbinary.ValueTypeI32); err != nil {
			return err
		}
		c.pushType(wbinary.ValueTypeI32)
		c.emitByte(op)
		return nil
	}

	if isLoad(op) {
		return c.compileLoad(instr)
	}
	if isStore(op) {
		return c.compileStore(instr)
	}

	meta, err := operators.New(op)
	if err != nil {
		return UnsupportedOpcodeError(op)
	}
	for i := len(meta.Args) - 1; i >= 0; i-- {
		if _, err := c.popType(op, meta.Args[i]); err != nil {
			return err
		}
	}
	c.pushType(meta.Returns)
	c.emitByte(op)
	return nil
}

func (c *Compiler) popAny() (wbinary.ValueType, error) {
	return c.popType(0, wbinary.ValueTypeAny)
}

func (c *Compiler) globalType(idx uint32) (wbinary.GlobalType, error) {
	nImport := 0
	for _, imp := range c.mod.Imports {
		if imp.Kind == wbinary.ExternalGlobal {
			if nImport == int(idx) {
				return imp.GlobalType, nil
			}
			nImport++
		}
	}
	local := int(idx) - nImport
	if local < 0 || local >= len(c.mod.Globals) {
		return wbinary.GlobalType{}, InvalidGlobalIndexError(idx)
	}
	return c.mod.Globals[local].Type, nil
}

func (c *Compiler) funcSignature(idx uint32) (wbinary.FunctionSig, error) {
	nImport := 0
	for _, imp := range c.mod.Imports {
		if imp.Kind == wbinary.ExternalFunction {
			if nImport == int(idx) {
				if int(imp.FuncTypeIndex) >= len(c.mod.Types) {
					return wbinary.FunctionSig{}, InvalidTypeIndexError(imp.FuncTypeIndex)
				}
				return c.mod.Types[imp.FuncTypeIndex], nil
			}
			nImport++
		}
	}
	local := int(idx) - nImport
	if local < 0 || local >= len(c.mod.Funcs) {
		return wbinary.FunctionSig{}, InvalidFunctionIndexError(idx)
	}
	sigIdx := c.mod.Funcs[local]
	if int(sigIdx) >= len(c.mod.Types) {
		return wbinary.FunctionSig{}, InvalidTypeIndexError(sigIdx)
	}
	return c.mod.Types[sigIdx], nil
}

func (c *Compiler) checkCallTypes(op byte, sig wbinary.FunctionSig) error {
	if len(sig.ReturnTypes) > 1 {
		return ErrUnexpectedReturnLength
	}
	for i := len(sig.ParamTypes) - 1; i >= 0; i-- {
		if _, err := c.popType(op, sig.ParamTypes[i]); err != nil {
			return err
		}
	}
	if len(sig.ReturnTypes) == 1 {
		c.pushType(sig.ReturnTypes[0])
	}
	return nil
}

func isLoad(op byte) bool {
	switch op {
	case wbinary.OpI32Load, wbinary.OpI64Load, wbinary.OpF32Load, wbinary.OpF64Load,
		wbinary.OpI32Load8s, wbinary.OpI32Load8u, wbinary.OpI32Load16s, wbinary.OpI32Load16u,
		wbinary.OpI64Load8s, wbinary.OpI64Load8u, wbinary.OpI64Load16s, wbinary.OpI64Load16u,
		wbinary.OpI64Load32s, wbinary.OpI64Load32u:
		return true
	}
	return false
}

func isStore(op byte) bool {
	switch op {
	case wbinary.OpI32Store, wbinary.OpI64Store, wbinary.OpF32Store, wbinary.OpF64Store,
		wbinary.OpI32Store8, wbinary.OpI32Store16, wbinary.OpI64Store8, wbinary.OpI64Store16, wbinary.OpI64Store32:
		return true
	}
	return false
}

func (c *Compiler) compileLoad(instr wbinary.Instr) error {
	if len(c.mod.Mems) == 0 {
		return ErrNoMemory
	}
	op := instr.Op
	align := instr.Immediates[0].(uint32)
	offset := instr.Immediates[1].(uint32)
	if _, err := c.popType(op, wbinary.ValueTypeI32); err != nil {
		return err
	}
	meta, err := operators.New(op)
	if err != nil {
		return UnsupportedOpcodeError(op)
	}
	c.pushType(meta.Returns)
	c.emitByte(op)
	c.emitU32(align)
	c.emitU32(offset)
	return nil
}

func (c *Compiler) compileStore(instr wbinary.Instr) error {
	if len(c.mod.Mems) == 0 {
		return ErrNoMemory
	}
	op := instr.Op
	align := instr.Immediates[0].(uint32)
	offset := instr.Immediates[1].(uint32)
	meta, err := operators.New(op)
	if err != nil {
		return UnsupportedOpcodeError(op)
	}
	if _, err := c.popType(op, meta.Args[0]); err != nil {
		return err
	}
	if _, err := c.popType(op, wbinary.ValueTypeI32); err != nil {
		return err
	}
	c.emitByte(op)
	c.emitU32(align)
	c.emitU32(offset)
	return nil
}

// compileBrTable emits `br_table count table_offset` followed by a
// contiguous `interp_data size` block of count+1 12-byte entries, each
// (target, drop, keep), per spec.md §6's istream format.
func (c *Compiler) compileBrTable(instr wbinary.Instr) error {
	count := instr.Immediates[0].(uint32)
	targets := make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		targets[i] = instr.Immediates[1+i].(uint32)
	}
	defTarget := instr.Immediates[len(instr.Immediates)-1].(uint32)

	if _, err := c.popType(instr.Op, wbinary.ValueTypeI32); err != nil {
		return err
	}

	c.emitByte(wbinary.OpBrTable)
	c.emitU32(count)
	tablePosPos := int(c.pos())
	c.emitU32(0xffffffff)

	c.emitByte(wbinary.OpInterpData)
	const entrySize = 12
	c.emitU32((count + 1) * entrySize)
	c.patchU32(tablePosPos, c.pos())

	// spec.md §4.2: every target must share a signature, and the table's
	// keep count is taken from the first target rather than recomputed
	// per entry (unlike br/br_if, which derive keep independently).
	firstDepth := defTarget
	if count > 0 {
		firstDepth = targets[0]
	}
	firstLabel, _, err := c.labelAt(int(firstDepth))
	if err != nil {
		return err
	}
	sig := firstLabel.signature
	keep := keepFor(firstLabel)

	writeEntry := func(depth uint32) error {
		l, idx, err := c.labelAt(int(depth))
		if err != nil {
			return err
		}
		if l.signature != sig {
			return ErrBrTableSignatureMismatch
		}
		drop := c.dropFor(l, keep)
		if l.hasOffset {
			c.emitU32(l.offset)
		} else {
			c.addFixup(idx, int(c.pos()))
			c.emitU32(0xffffffff)
		}
		c.emitU32(drop)
		c.emitU32(keep)
		return nil
	}
	for _, d := range targets {
		if err := writeEntry(d); err != nil {
			return err
		}
	}
	if err := writeEntry(defTarget); err != nil {
		return err
	}
	c.setUnreachable()
	return nil
}
