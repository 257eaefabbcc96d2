// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wbinary "github.com/wasmkernel/wasmkernel/binary"
	"github.com/wasmkernel/wasmkernel/compile"
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

func addFunc() ([]wbinary.FunctionSig, []uint32, []wbinary.FunctionBody) {
	types := []wbinary.FunctionSig{
		{ParamTypes: []wbinary.ValueType{wbinary.ValueTypeI32, wbinary.ValueTypeI32}, ReturnTypes: []wbinary.ValueType{wbinary.ValueTypeI32}},
	}
	var body []byte
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(1)...)
	body = append(body, wbinary.OpI32Add)
	body = append(body, wbinary.OpEnd)
	return types, []uint32{0}, []wbinary.FunctionBody{{Code: body}}
}

func TestCompileAddFunction(t *testing.T) {
	types, funcs, code := addFunc()
	mod := &wbinary.Module{Types: types, Funcs: funcs, Code: code}

	prog, err := compile.Compile(mod)
	require.NoError(t, err)
	require.Len(t, prog.Funcs, 1)
	assert.Equal(t, 2, prog.Funcs[0].NumParams)
	assert.Equal(t, 0, prog.Funcs[0].NumLocals)
	assert.NotEmpty(t, prog.Istream)
}

// loopSumFunc builds: local 0 (n, the param) counts down to zero in a
// loop, accumulating into local 1 (acc); mirrors the "sum 1..n" scenario.
func loopSumFunc() ([]wbinary.FunctionSig, []uint32, []wbinary.FunctionBody) {
	types := []wbinary.FunctionSig{
		{ParamTypes: []wbinary.ValueType{wbinary.ValueTypeI32}, ReturnTypes: []wbinary.ValueType{wbinary.ValueTypeI32}},
	}
	var body []byte
	// local 1 = acc, declared as an extra local (i32)
	// loop
	body = append(body, wbinary.OpLoop)
	body = append(body, sleb32(int32(wbinary.ValueTypeVoid))...)
	// acc = acc + n
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(1)...)
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpI32Add)
	body = append(body, wbinary.OpSetLocal)
	body = append(body, leb(1)...)
	// n = n - 1
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpI32Const)
	body = append(body, sleb32(1)...)
	body = append(body, wbinary.OpI32Sub)
	body = append(body, wbinary.OpSetLocal)
	body = append(body, leb(0)...)
	// br_if 0 (n != 0)
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpBrIf)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpEnd) // end loop
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(1)...)
	body = append(body, wbinary.OpEnd) // end function

	fb := wbinary.FunctionBody{
		Locals: []wbinary.LocalEntry{{Count: 1, Type: wbinary.ValueTypeI32}},
		Code:   body,
	}
	return types, []uint32{0}, []wbinary.FunctionBody{fb}
}

func TestCompileLoopWithBrIf(t *testing.T) {
	types, funcs, code := loopSumFunc()
	mod := &wbinary.Module{Types: types, Funcs: funcs, Code: code}

	prog, err := compile.Compile(mod)
	require.NoError(t, err)
	assert.Equal(t, 1, prog.Funcs[0].NumParams)
	assert.Equal(t, 1, prog.Funcs[0].NumLocals)
	assert.NotEmpty(t, prog.Istream)
}

func TestCompileRejectsStackUnderflow(t *testing.T) {
	types := []wbinary.FunctionSig{{ReturnTypes: []wbinary.ValueType{wbinary.ValueTypeI32}}}
	body := []byte{wbinary.OpI32Add, wbinary.OpEnd}
	mod := &wbinary.Module{Types: types, Funcs: []uint32{0}, Code: []wbinary.FunctionBody{{Code: body}}}

	_, err := compile.Compile(mod)
	assert.Error(t, err)
}

func TestCompileRejectsSetImmutableGlobal(t *testing.T) {
	types := []wbinary.FunctionSig{{}}
	body := []byte{
		wbinary.OpI32Const,
	}
	body = append(body, sleb32(1)...)
	body = append(body, wbinary.OpSetGlobal)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpEnd)

	mod := &wbinary.Module{
		Types:   types,
		Funcs:   []uint32{0},
		Code:    []wbinary.FunctionBody{{Code: body}},
		Globals: []wbinary.GlobalEntry{{Type: wbinary.GlobalType{Type: wbinary.ValueTypeI32, Mutable: false}}},
	}

	_, err := compile.Compile(mod)
	assert.ErrorIs(t, err, compile.ErrImmutableGlobal)
}
