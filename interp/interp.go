// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package interp

import (
	"encoding/binary"
	"fmt"

	wbinary "github.com/wasmkernel/wasmkernel/binary"
	"github.com/wasmkernel/wasmkernel/instance"
	"github.com/wasmkernel/wasmkernel/stackutil"
)

// frame records a suspended caller: the module the call originated in
// and the istream offset execution resumes at on return. Mirrors
// wagon's exec.VM call stack (a slice of *frame holding locals and a
// return pc), narrowed here since locals live on the shared value
// stack rather than in a per-frame slice.
type frame struct {
	mod      *instance.ModuleInst
	returnPC uint32
}

const (
	defaultStackCapacity = 1 << 16
	defaultMaxCallDepth  = 1 << 12
)

// Config tunes an Interp's resource limits.
type Config struct {
	StackCapacity int
	MaxCallDepth  int
}

// Option configures an Interp at construction.
type Option func(*Config)

// WithStackCapacity sets the shared value stack's initial capacity; the
// stack grows past it when needed.
func WithStackCapacity(n int) Option { return func(c *Config) { c.StackCapacity = n } }

// WithMaxCallDepth sets the deepest nested `call`/`call_indirect` the
// interpreter permits before raising ErrCallStackOverflow.
func WithMaxCallDepth(n int) Option { return func(c *Config) { c.MaxCallDepth = n } }

// Interp runs compiled istreams against an instance.Environment. One
// Interp owns one value stack and one call stack, shared across every
// module it calls into or out of within a single top-level Call —
// local addressing's depth-from-top convention (spec.md §4.2) is
// correct regardless of how many frames are nested on it, since the
// unknown frame-base offset cancels out of the depth arithmetic.
type Interp struct {
	env   *instance.Environment
	stack *stackutil.Stack
	calls []frame

	cur *instance.ModuleInst
	pc  uint32

	maxCallDepth int
	steps        int64
}

// New constructs an Interp bound to env.
func New(env *instance.Environment, opts ...Option) *Interp {
	cfg := Config{StackCapacity: defaultStackCapacity, MaxCallDepth: defaultMaxCallDepth}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Interp{
		env:          env,
		stack:        stackutil.New(cfg.StackCapacity),
		maxCallDepth: cfg.MaxCallDepth,
	}
}

// Steps returns the total number of istream opcodes executed across
// every Call this Interp has made, the instruction counter spec.md §5
// describes.
func (ip *Interp) Steps() int64 { return ip.steps }

// Call invokes mi's function at funcIndex with args pushed as its
// initial locals, running to completion (or a trap) and returning the
// function's result values (zero or one, per spec.md's single-return
// restriction). It resolves through any import chain — funcIndex may
// itself name an imported function, local to another module, or a
// host binding.
func (ip *Interp) Call(mi *instance.ModuleInst, funcIndex uint32, args []uint32) ([]uint32, error) {
	ip.stack.Truncate(0)
	ip.calls = ip.calls[:0]

	finalMod, _, fi, err := ip.resolveCallTarget(mi, funcIndex)
	if err != nil {
		return nil, err
	}
	for _, a := range args {
		ip.stack.PushUint32(a)
	}

	switch fi.Kind {
	case instance.FuncHost:
		if ip.env.Dispatch == nil {
			return nil, fmt.Errorf("interp: no host dispatch configured")
		}
		if err := ip.env.Dispatch(ip.stack, mi.Mem, fi.TypeIndex, fi.HostIndex); err != nil {
			return nil, err
		}
		return ip.popResult(finalMod, fi.TypeIndex)
	case instance.FuncLocal:
		ip.cur = finalMod
		ip.pc = fi.EntryOffset
		if _, err := ip.run(0); err != nil {
			return nil, err
		}
		return ip.popResult(finalMod, fi.TypeIndex)
	default:
		return nil, fmt.Errorf("interp: cannot call an unresolved import function instance")
	}
}

// Run resumes execution from the Interp's current state for at most
// budget instructions (budget <= 0 means unlimited), returning
// (true, nil) once a `return` pops the last call frame, (false, nil) if
// the budget was exhausted first, or (false, err) on trap. Call runs its
// function to completion before it returns, and no method starts a call
// without running it, so after Call there is no suspended call for Run
// to resume.
func (ip *Interp) Run(budget int) (bool, error) { return ip.run(budget) }

func (ip *Interp) run(budget int) (bool, error) {
	limited := budget > 0
	remaining := budget
	for {
		if limited && remaining == 0 {
			return false, nil
		}
		code := ip.cur.Prog.Istream
		if int(ip.pc) >= len(code) {
			return false, fmt.Errorf("interp: pc %d past end of istream (len %d)", ip.pc, len(code))
		}
		op := code[ip.pc]
		ip.pc++
		ip.steps++
		halted, err := ip.exec(op)
		if err != nil {
			return false, err
		}
		if halted {
			return true, nil
		}
		if limited {
			remaining--
		}
	}
}

func (ip *Interp) popResult(mod *instance.ModuleInst, typeIndex uint32) ([]uint32, error) {
	if int(typeIndex) >= len(mod.Prog.Types) {
		return nil, fmt.Errorf("interp: invalid type index %d", typeIndex)
	}
	sig := mod.Prog.Types[typeIndex]
	if len(sig.ReturnTypes) == 0 {
		return nil, nil
	}
	return []uint32{ip.stack.PopUint32()}, nil
}

// resolveCallTarget follows a function index through zero or more
// Import hops until it lands on a Local or Host instance, returning
// the module that owns it alongside the instance itself.
func (ip *Interp) resolveCallTarget(mod *instance.ModuleInst, idx uint32) (*instance.ModuleInst, uint32, instance.FunctionInst, error) {
	cur, curIdx := mod, idx
	for {
		if int(curIdx) >= len(cur.Funcs) {
			return nil, 0, instance.FunctionInst{}, fmt.Errorf("interp: invalid function index %d", curIdx)
		}
		fi := cur.Funcs[curIdx]
		if fi.Kind != instance.FuncImport {
			return cur, curIdx, fi, nil
		}
		cur = ip.env.Module(fi.TargetModule)
		curIdx = fi.TargetFunc
	}
}

// invoke transfers control to a resolved function instance: a Host
// instance is dispatched synchronously against the calling module's
// memory (host functions have no module or memory of their own); a
// Local instance pushes a return frame and switches ip.cur/ip.pc.
func (ip *Interp) invoke(finalMod *instance.ModuleInst, fi instance.FunctionInst) error {
	switch fi.Kind {
	case instance.FuncHost:
		if ip.env.Dispatch == nil {
			return fmt.Errorf("interp: no host dispatch configured")
		}
		return ip.env.Dispatch(ip.stack, ip.cur.Mem, fi.TypeIndex, fi.HostIndex)
	case instance.FuncLocal:
		if len(ip.calls) >= ip.maxCallDepth {
			return ErrCallStackOverflow
		}
		ip.calls = append(ip.calls, frame{mod: ip.cur, returnPC: ip.pc})
		ip.cur = finalMod
		ip.pc = fi.EntryOffset
		return nil
	default:
		return fmt.Errorf("interp: call resolved to an unbound import")
	}
}

func (ip *Interp) readU32() uint32 {
	code := ip.cur.Prog.Istream
	v := binary.LittleEndian.Uint32(code[ip.pc:])
	ip.pc += 4
	return v
}

func (ip *Interp) readI32() int32 { return int32(ip.readU32()) }

// exec executes the single opcode op (whose immediates, if any, are
// read by advancing ip.pc), per spec.md §4.5's per-opcode semantics
// table. It returns halted=true only when a `return` pops the last
// call frame — i.e. the top-level Call is complete.
func (ip *Interp) exec(op byte) (bool, error) {
	s := ip.stack
	switch op {
	case wbinary.OpUnreachable:
		return false, ErrUnreachable
	case wbinary.OpNop:
		return false, nil

	case wbinary.OpBr:
		ip.pc = ip.readU32()
		return false, nil
	case wbinary.OpBrUnless:
		target := ip.readU32()
		if s.PopUint32() == 0 {
			ip.pc = target
		}
		return false, nil
	case wbinary.OpBrTable:
		return false, ip.execBrTable()
	case wbinary.OpDropKeep:
		drop := ip.readU32()
		keep := ip.readU32()
		s.DropKeep(int(drop), int(keep))
		return false, nil
	case wbinary.OpInterpData:
		return false, fmt.Errorf("interp: interp_data reached by normal control flow")

	case wbinary.OpReturn:
		if len(ip.calls) == 0 {
			return true, nil
		}
		f := ip.calls[len(ip.calls)-1]
		ip.calls = ip.calls[:len(ip.calls)-1]
		ip.cur, ip.pc = f.mod, f.returnPC
		return false, nil

	case wbinary.OpCall:
		idx := ip.readU32()
		finalMod, _, fi, err := ip.resolveCallTarget(ip.cur, idx)
		if err != nil {
			return false, err
		}
		return false, ip.invoke(finalMod, fi)
	case wbinary.OpCallIndirect:
		return false, ip.execCallIndirect()

	case wbinary.OpDrop:
		s.Pop()
		return false, nil
	case wbinary.OpSelect:
		cond := s.PopUint32()
		val2 := s.Pop()
		val1 := s.Pop()
		if cond != 0 {
			s.Push(val1)
		} else {
			s.Push(val2)
		}
		return false, nil

	case wbinary.OpGetLocal:
		d := ip.readU32()
		s.Push(s.Peek(int(d)))
		return false, nil
	case wbinary.OpSetLocal:
		d := ip.readU32()
		v := s.Pop()
		*s.Pick(int(d)) = v
		return false, nil
	case wbinary.OpTeeLocal:
		d := ip.readU32()
		v := s.Peek(0)
		*s.Pick(int(d)) = v
		return false, nil
	case wbinary.OpGetGlobal:
		idx := ip.readU32()
		s.Push(ip.cur.Globals[idx].Value)
		return false, nil
	case wbinary.OpSetGlobal:
		idx := ip.readU32()
		ip.cur.Globals[idx].Value = s.Pop()
		return false, nil

	case wbinary.OpAlloca:
		n := ip.readU32()
		for i := uint32(0); i < n; i++ {
			s.PushUint64(0)
		}
		return false, nil

	case wbinary.OpI32Const:
		v := ip.readI32()
		s.PushInt32(v)
		return false, nil
	case wbinary.OpI64Const:
		v := ip.readI32()
		s.PushInt64(int64(v))
		return false, nil
	case wbinary.OpF32Const:
		bits := ip.readU32()
		s.PushUint32(bits)
		return false, nil
	case wbinary.OpF64Const:
		lo := ip.readU32()
		s.PushUint64(uint64(lo))
		return false, nil

	case wbinary.OpCurrentMemory:
		if ip.cur.Mem == nil {
			return false, ErrNoMemory
		}
		s.PushInt32(int32(ip.cur.Mem.Size()))
		return false, nil
	case wbinary.OpGrowMemory:
		if ip.cur.Mem == nil {
			return false, ErrNoMemory
		}
		n := s.PopUint32()
		s.PushInt32(ip.cur.Mem.Grow(n))
		return false, nil

	case wbinary.OpI32Load, wbinary.OpI32Load8s, wbinary.OpI32Load8u, wbinary.OpI32Load16s, wbinary.OpI32Load16u,
		wbinary.OpI32Store, wbinary.OpI32Store8, wbinary.OpI32Store16:
		return false, ip.execMemOp(op)

	case wbinary.OpI32Eqz:
		i32Eqz(s)
		return false, nil
	case wbinary.OpI32Eq:
		i32Eq(s)
		return false, nil
	case wbinary.OpI32Ne:
		i32Ne(s)
		return false, nil
	case wbinary.OpI32LtS:
		i32LtS(s)
		return false, nil
	case wbinary.OpI32LtU:
		i32LtU(s)
		return false, nil
	case wbinary.OpI32GtS:
		i32GtS(s)
		return false, nil
	case wbinary.OpI32GtU:
		i32GtU(s)
		return false, nil
	case wbinary.OpI32LeS:
		i32LeS(s)
		return false, nil
	case wbinary.OpI32LeU:
		i32LeU(s)
		return false, nil
	case wbinary.OpI32GeS:
		i32GeS(s)
		return false, nil
	case wbinary.OpI32GeU:
		i32GeU(s)
		return false, nil

	case wbinary.OpI32Clz:
		i32Clz(s)
		return false, nil
	case wbinary.OpI32Ctz:
		i32Ctz(s)
		return false, nil
	case wbinary.OpI32Popcnt:
		i32Popcnt(s)
		return false, nil
	case wbinary.OpI32Add:
		i32Add(s)
		return false, nil
	case wbinary.OpI32Sub:
		i32Sub(s)
		return false, nil
	case wbinary.OpI32Mul:
		i32Mul(s)
		return false, nil
	case wbinary.OpI32DivS:
		return false, i32DivS(s)
	case wbinary.OpI32DivU:
		return false, i32DivU(s)
	case wbinary.OpI32RemS:
		return false, i32RemS(s)
	case wbinary.OpI32RemU:
		return false, i32RemU(s)
	case wbinary.OpI32And:
		i32And(s)
		return false, nil
	case wbinary.OpI32Or:
		i32Or(s)
		return false, nil
	case wbinary.OpI32Xor:
		i32Xor(s)
		return false, nil
	case wbinary.OpI32Shl:
		i32Shl(s)
		return false, nil
	case wbinary.OpI32ShrS:
		i32ShrS(s)
		return false, nil
	case wbinary.OpI32ShrU:
		i32ShrU(s)
		return false, nil
	case wbinary.OpI32Rotl:
		i32Rotl(s)
		return false, nil
	case wbinary.OpI32Rotr:
		i32Rotr(s)
		return false, nil

	default:
		return false, NotExecutableError(op)
	}
}

func (ip *Interp) execMemOp(op byte) error {
	mem := ip.cur.Mem
	if mem == nil {
		return ErrNoMemory
	}
	_ = ip.readU32() // align hint, not enforced by the dispatch loop itself
	offset := ip.readU32()
	s := ip.stack

	switch op {
	case wbinary.OpI32Load:
		addr := s.PopUint32() + offset
		v, err := mem.Load32(addr)
		if err != nil {
			return err
		}
		s.PushUint32(v)
	case wbinary.OpI32Load8s:
		addr := s.PopUint32() + offset
		v, err := mem.Load8s(addr)
		if err != nil {
			return err
		}
		s.PushInt32(v)
	case wbinary.OpI32Load8u:
		addr := s.PopUint32() + offset
		v, err := mem.Load8u(addr)
		if err != nil {
			return err
		}
		s.PushUint32(v)
	case wbinary.OpI32Load16s:
		addr := s.PopUint32() + offset
		v, err := mem.Load16s(addr)
		if err != nil {
			return err
		}
		s.PushInt32(v)
	case wbinary.OpI32Load16u:
		addr := s.PopUint32() + offset
		v, err := mem.Load16u(addr)
		if err != nil {
			return err
		}
		s.PushUint32(v)
	case wbinary.OpI32Store:
		v := s.PopUint32()
		addr := s.PopUint32() + offset
		return mem.Store32(addr, v)
	case wbinary.OpI32Store8:
		v := s.PopUint32()
		addr := s.PopUint32() + offset
		return mem.Store8(addr, v)
	case wbinary.OpI32Store16:
		v := s.PopUint32()
		addr := s.PopUint32() + offset
		return mem.Store16(addr, v)
	}
	return nil
}

func (ip *Interp) execBrTable() error {
	count := ip.readU32()
	tableOffset := ip.readU32()
	idx := ip.stack.PopUint32()
	if idx >= count {
		idx = count
	}
	code := ip.cur.Prog.Istream
	entryPos := int(tableOffset) + int(idx)*12
	target := binary.LittleEndian.Uint32(code[entryPos:])
	drop := binary.LittleEndian.Uint32(code[entryPos+4:])
	keep := binary.LittleEndian.Uint32(code[entryPos+8:])
	ip.stack.DropKeep(int(drop), int(keep))
	ip.pc = target
	return nil
}

func (ip *Interp) execCallIndirect() error {
	typeIdx := ip.readU32()
	tbl := ip.cur.Table
	if tbl == nil {
		return ErrNoTable
	}
	slot := ip.stack.PopUint32()
	if int(slot) >= len(tbl.Elements) {
		return ErrUndefinedTableIndex
	}
	fnIdx := tbl.Elements[slot]
	if fnIdx < 0 {
		return ErrUndefinedTableIndex
	}
	finalMod, _, fi, err := ip.resolveCallTarget(ip.cur, uint32(fnIdx))
	if err != nil {
		return err
	}
	if fi.TypeIndex != typeIdx {
		return ErrIndirectSignatureMismatch
	}
	return ip.invoke(finalMod, fi)
}
