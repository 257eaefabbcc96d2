// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package interp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wbinary "github.com/wasmkernel/wasmkernel/binary"
	"github.com/wasmkernel/wasmkernel/compile"
	"github.com/wasmkernel/wasmkernel/instance"
	"github.com/wasmkernel/wasmkernel/interp"
	"github.com/wasmkernel/wasmkernel/pagemem"
	"github.com/wasmkernel/wasmkernel/stackutil"
)

func leb(v uint32) []byte {
	out := []byte{}
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func sleb32(v int32) []byte {
	out := []byte{}
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func buildAndRun(t *testing.T, mod *wbinary.Module, export string, args []uint32) []uint32 {
	t.Helper()
	prog, err := compile.Compile(mod)
	require.NoError(t, err)

	env := instance.NewEnvironment(nil, nil)
	mi, err := env.Instantiate("m", prog)
	require.NoError(t, err)

	exp, ok := mi.Export(export)
	require.True(t, ok)

	ip := interp.New(env)
	out, err := ip.Call(mi, exp.Index, args)
	require.NoError(t, err)
	return out
}

// scenario 1: a+b wrapping add, including 0x7fffffff + 1 wraparound.
func TestAddWraps(t *testing.T) {
	sig := wbinary.FunctionSig{
		ParamTypes:  []wbinary.ValueType{wbinary.ValueTypeI32, wbinary.ValueTypeI32},
		ReturnTypes: []wbinary.ValueType{wbinary.ValueTypeI32},
	}
	var body []byte
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(1)...)
	body = append(body, wbinary.OpI32Add)
	body = append(body, wbinary.OpEnd)

	mod := &wbinary.Module{
		Types: []wbinary.FunctionSig{sig},
		Funcs: []uint32{0},
		Code:  []wbinary.FunctionBody{{Code: body}},
		Exports: []wbinary.ExportEntry{
			{Name: "add", Kind: wbinary.ExternalFunction, Index: 0},
		},
	}

	out := buildAndRun(t, mod, "add", []uint32{2, 3})
	require.Len(t, out, 1)
	assert.Equal(t, uint32(5), out[0])

	out = buildAndRun(t, mod, "add", []uint32{0x7fffffff, 1})
	require.Len(t, out, 1)
	assert.Equal(t, uint32(0x80000000), out[0])
}

// scenario 2: loop + br_if summing 1..10 = 55.
func TestLoopSum(t *testing.T) {
	sig := wbinary.FunctionSig{ReturnTypes: []wbinary.ValueType{wbinary.ValueTypeI32}}
	voidBT := sleb32(int32(wbinary.ValueTypeVoid))

	// locals: 0=sum 1=i
	var body []byte
	body = append(body, wbinary.OpI32Const)
	body = append(body, sleb32(0)...)
	body = append(body, wbinary.OpSetLocal)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpI32Const)
	body = append(body, sleb32(1)...)
	body = append(body, wbinary.OpSetLocal)
	body = append(body, leb(1)...)

	body = append(body, wbinary.OpLoop)
	body = append(body, voidBT...)
	// sum = sum + i
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(1)...)
	body = append(body, wbinary.OpI32Add)
	body = append(body, wbinary.OpSetLocal)
	body = append(body, leb(0)...)
	// i = i + 1
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(1)...)
	body = append(body, wbinary.OpI32Const)
	body = append(body, sleb32(1)...)
	body = append(body, wbinary.OpI32Add)
	body = append(body, wbinary.OpSetLocal)
	body = append(body, leb(1)...)
	// br_if 0 (loop again) while i <= 10
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(1)...)
	body = append(body, wbinary.OpI32Const)
	body = append(body, sleb32(11)...)
	body = append(body, wbinary.OpI32LtS)
	body = append(body, wbinary.OpBrIf)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpEnd) // end loop
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpEnd) // end function

	mod := &wbinary.Module{
		Types: []wbinary.FunctionSig{sig},
		Funcs: []uint32{0},
		Code: []wbinary.FunctionBody{{
			Locals: []wbinary.LocalEntry{{Count: 2, Type: wbinary.ValueTypeI32}},
			Code:   body,
		}},
		Exports: []wbinary.ExportEntry{
			{Name: "sum", Kind: wbinary.ExternalFunction, Index: 0},
		},
	}

	out := buildAndRun(t, mod, "sum", nil)
	require.Len(t, out, 1)
	assert.Equal(t, uint32(55), out[0])
}

// scenario 3: br_table dispatch [L0 L0 L1] default L1, L0->100, L1->200.
//
// Structure (outermost to innermost): block $exit (i32) > block $L1
// (void) > block $L0 (void) > br_table. br_table's own depths are
// counted with $L0 innermost: $L0=0, $L1=1. Landing at $L0's `end`
// falls into the "push 100, br $exit" path; landing at $L1's `end`
// (br_table index 2 or any out-of-range default) falls through
// straight into "push 200", which becomes $exit's result.
func TestBrTableDispatch(t *testing.T) {
	sig := wbinary.FunctionSig{
		ParamTypes:  []wbinary.ValueType{wbinary.ValueTypeI32},
		ReturnTypes: []wbinary.ValueType{wbinary.ValueTypeI32},
	}
	mod := buildBrTableModule(sig)

	out := buildAndRun(t, mod, "dispatch", []uint32{0})
	require.Len(t, out, 1)
	assert.Equal(t, uint32(100), out[0])

	out = buildAndRun(t, mod, "dispatch", []uint32{1})
	assert.Equal(t, uint32(100), out[0])

	out = buildAndRun(t, mod, "dispatch", []uint32{2})
	assert.Equal(t, uint32(200), out[0])

	out = buildAndRun(t, mod, "dispatch", []uint32{5})
	assert.Equal(t, uint32(200), out[0])
}

func buildBrTableModule(sig wbinary.FunctionSig) *wbinary.Module {
	i32BT := sleb32(int32(wbinary.ValueTypeI32))
	voidBT := sleb32(int32(wbinary.ValueTypeVoid))

	var body []byte
	body = append(body, wbinary.OpBlock)
	body = append(body, i32BT...) // $exit (i32)
	body = append(body, wbinary.OpBlock)
	body = append(body, voidBT...) // $L1 (void)
	body = append(body, wbinary.OpBlock)
	body = append(body, voidBT...) // $L0 (void)
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpBrTable)
	body = append(body, leb(3)...) // count
	body = append(body, leb(0)...) // target[0] = $L0
	body = append(body, leb(0)...) // target[1] = $L0
	body = append(body, leb(1)...) // target[2] = $L1
	body = append(body, leb(1)...) // default = $L1
	body = append(body, wbinary.OpEnd) // end $L0
	body = append(body, wbinary.OpI32Const)
	body = append(body, sleb32(100)...)
	body = append(body, wbinary.OpBr)
	body = append(body, leb(1)...) // br $exit
	body = append(body, wbinary.OpEnd) // end $L1
	body = append(body, wbinary.OpI32Const)
	body = append(body, sleb32(200)...)
	body = append(body, wbinary.OpEnd) // end $exit
	body = append(body, wbinary.OpEnd) // end function

	return &wbinary.Module{
		Types: []wbinary.FunctionSig{sig},
		Funcs: []uint32{0},
		Code:  []wbinary.FunctionBody{{Code: body}},
		Exports: []wbinary.ExportEntry{
			{Name: "dispatch", Kind: wbinary.ExternalFunction, Index: 0},
		},
	}
}

// scenario 4: host.print import observes value 42 exactly once.
func TestHostImportObservesValue(t *testing.T) {
	sig := wbinary.FunctionSig{ParamTypes: []wbinary.ValueType{wbinary.ValueTypeI32}}
	var body []byte
	body = append(body, wbinary.OpI32Const)
	body = append(body, sleb32(42)...)
	body = append(body, wbinary.OpCall)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpEnd)

	mod := &wbinary.Module{
		Types: []wbinary.FunctionSig{sig, {}},
		Imports: []wbinary.ImportEntry{
			{Module: "host", Field: "print", Kind: wbinary.ExternalFunction, FuncTypeIndex: 0},
		},
		Funcs: []uint32{1},
		Code:  []wbinary.FunctionBody{{Code: body}},
		Exports: []wbinary.ExportEntry{
			{Name: "run", Kind: wbinary.ExternalFunction, Index: 1},
		},
	}
	prog, err := compile.Compile(mod)
	require.NoError(t, err)

	var seen []uint32
	calls := 0
	env := instance.NewEnvironment(
		func(moduleName, exportName string, desc instance.ImportDesc) (instance.HostIndex, error) {
			return instance.HostIndex(0), nil
		},
		func(stack *stackutil.Stack, mem *pagemem.Memory, typeIndex uint32, hostIndex instance.HostIndex) error {
			calls++
			seen = append(seen, stack.PopUint32())
			return nil
		},
	)
	mi, err := env.Instantiate("m", prog)
	require.NoError(t, err)

	exp, ok := mi.Export("run")
	require.True(t, ok)
	ip := interp.New(env)
	_, err = ip.Call(mi, exp.Index, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	require.Len(t, seen, 1)
	assert.Equal(t, uint32(42), seen[0])
}

// scenario 5: memory remap write/read at 0x10_0010 -> physical 0x1010.
func TestMemoryRemapRoundTrip(t *testing.T) {
	sig := wbinary.FunctionSig{ReturnTypes: []wbinary.ValueType{wbinary.ValueTypeI32}}
	var body []byte
	body = append(body, wbinary.OpI32Const)
	body = append(body, sleb32(int32(0x10_0010))...)
	body = append(body, wbinary.OpI32Const)
	body = append(body, sleb32(0x1234)...)
	body = append(body, wbinary.OpI32Store)
	body = append(body, leb(0)...) // align
	body = append(body, leb(0)...) // offset
	body = append(body, wbinary.OpI32Const)
	body = append(body, sleb32(int32(0x10_0010))...)
	body = append(body, wbinary.OpI32Load)
	body = append(body, leb(0)...)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpEnd)

	mod := &wbinary.Module{
		Types: []wbinary.FunctionSig{sig},
		Funcs: []uint32{0},
		Code:  []wbinary.FunctionBody{{Code: body}},
		Mems:  []wbinary.Memory{{Limits: wbinary.Limits{Initial: 64}}},
		Exports: []wbinary.ExportEntry{
			{Name: "roundtrip", Kind: wbinary.ExternalFunction, Index: 0},
		},
	}

	out := buildAndRun(t, mod, "roundtrip", nil)
	require.Len(t, out, 1)
	assert.Equal(t, uint32(0x1234), out[0])
}
