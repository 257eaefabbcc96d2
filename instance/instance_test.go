// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package instance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wbinary "github.com/wasmkernel/wasmkernel/binary"
	"github.com/wasmkernel/wasmkernel/compile"
	"github.com/wasmkernel/wasmkernel/instance"
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

func TestInstantiateAppliesDataSegmentAndExports(t *testing.T) {
	types := []wbinary.FunctionSig{{ReturnTypes: []wbinary.ValueType{wbinary.ValueTypeI32}}}
	body := append([]byte{wbinary.OpI32Const}, sleb32(42)...)
	body = append(body, wbinary.OpEnd)

	offset := append([]byte{wbinary.OpI32Const}, sleb32(0x10)...)
	mod := &wbinary.Module{
		Types: types,
		Funcs: []uint32{0},
		Code:  []wbinary.FunctionBody{{Code: body}},
		Mems:  []wbinary.Memory{{Limits: wbinary.Limits{Initial: 1}}},
		Data:  []wbinary.DataSegment{{Offset: offset, Data: []byte{0x78, 0x56, 0x34, 0x12}}},
		Exports: []wbinary.ExportEntry{
			{Name: "answer", Kind: wbinary.ExternalFunction, Index: 0},
		},
	}

	prog, err := compile.Compile(mod)
	require.NoError(t, err)

	env := instance.NewEnvironment(nil, nil)
	mi, err := env.Instantiate("m", prog)
	require.NoError(t, err)

	exp, ok := mi.Export("answer")
	require.True(t, ok)
	assert.Equal(t, wbinary.ExternalFunction, exp.Kind)
	assert.Equal(t, instance.FuncLocal, mi.Funcs[exp.Index].Kind)

	v, err := mi.Mem.Load32(0x10)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), v)
}

func TestInstantiateResolvesHostFunctionImport(t *testing.T) {
	types := []wbinary.FunctionSig{{ParamTypes: []wbinary.ValueType{wbinary.ValueTypeI32}}}
	mod := &wbinary.Module{
		Types: types,
		Imports: []wbinary.ImportEntry{
			{Module: "env", Field: "print", Kind: wbinary.ExternalFunction, FuncTypeIndex: 0},
		},
	}
	prog, err := compile.Compile(mod)
	require.NoError(t, err)

	var gotModule, gotField string
	env := instance.NewEnvironment(func(moduleName, exportName string, desc instance.ImportDesc) (instance.HostIndex, error) {
		gotModule, gotField = moduleName, exportName
		return instance.HostIndex(7), nil
	}, nil)

	mi, err := env.Instantiate("", prog)
	require.NoError(t, err)
	require.Len(t, mi.Funcs, 1)
	assert.Equal(t, instance.FuncHost, mi.Funcs[0].Kind)
	assert.Equal(t, instance.HostIndex(7), mi.Funcs[0].HostIndex)
	assert.Equal(t, "env", gotModule)
	assert.Equal(t, "print", gotField)
}

func TestInstantiateResolvesCrossModuleFunctionImport(t *testing.T) {
	libTypes := []wbinary.FunctionSig{
		{ParamTypes: []wbinary.ValueType{wbinary.ValueTypeI32}, ReturnTypes: []wbinary.ValueType{wbinary.ValueTypeI32}},
	}
	var libBody []byte
	libBody = append(libBody, wbinary.OpGetLocal)
	libBody = append(libBody, leb(0)...)
	libBody = append(libBody, wbinary.OpI32Const)
	libBody = append(libBody, sleb32(2)...)
	libBody = append(libBody, wbinary.OpI32Mul)
	libBody = append(libBody, wbinary.OpEnd)
	libMod := &wbinary.Module{
		Types: libTypes,
		Funcs: []uint32{0},
		Code:  []wbinary.FunctionBody{{Code: libBody}},
		Exports: []wbinary.ExportEntry{
			{Name: "double", Kind: wbinary.ExternalFunction, Index: 0},
		},
	}
	libProg, err := compile.Compile(libMod)
	require.NoError(t, err)

	env := instance.NewEnvironment(nil, nil)
	_, err = env.Instantiate("mathlib", libProg)
	require.NoError(t, err)

	mainMod := &wbinary.Module{
		Types: libTypes,
		Imports: []wbinary.ImportEntry{
			{Module: "mathlib", Field: "double", Kind: wbinary.ExternalFunction, FuncTypeIndex: 0},
		},
	}
	mainProg, err := compile.Compile(mainMod)
	require.NoError(t, err)

	mi, err := env.Instantiate("", mainProg)
	require.NoError(t, err)
	require.Len(t, mi.Funcs, 1)
	assert.Equal(t, instance.FuncImport, mi.Funcs[0].Kind)
	assert.Equal(t, uint32(0), mi.Funcs[0].TargetModule)
	assert.Equal(t, uint32(0), mi.Funcs[0].TargetFunc)
}
