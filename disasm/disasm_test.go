// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package disasm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wbinary "github.com/wasmkernel/wasmkernel/binary"
	"github.com/wasmkernel/wasmkernel/compile"
	"github.com/wasmkernel/wasmkernel/disasm"
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

func TestDisassembleAddFunction(t *testing.T) {
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
	prog, err := compile.Compile(mod)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, disasm.Disassemble(&out, prog))

	text := out.String()
	assert.Contains(t, text, "func[0]")
	// Locals are addressed by depth from the stack top, so both reads
	// print as depth 1: local 0 before any operand is pushed, and local 1
	// with the copy of local 0 above it.
	assert.Equal(t, 2, strings.Count(text, "get_local 1"))
	assert.Contains(t, text, "get_local 1")
	assert.Contains(t, text, "i32.add")
	assert.Contains(t, text, "return")
}

func TestHeadersAndDetails(t *testing.T) {
	mod := &wbinary.Module{
		Types: []wbinary.FunctionSig{{ReturnTypes: []wbinary.ValueType{wbinary.ValueTypeI32}}},
		Funcs: []uint32{0},
		Code:  []wbinary.FunctionBody{{Code: append([]byte{wbinary.OpI32Const}, append(sleb32(1), wbinary.OpEnd)...)}},
		Mems:  []wbinary.Memory{{Limits: wbinary.Limits{Initial: 1}}},
		Exports: []wbinary.ExportEntry{
			{Name: "one", Kind: wbinary.ExternalFunction, Index: 0},
		},
	}

	var headers bytes.Buffer
	disasm.Headers(&headers, mod)
	assert.True(t, strings.Contains(headers.String(), "Function"))
	assert.True(t, strings.Contains(headers.String(), "Memory"))

	var details bytes.Buffer
	disasm.Details(&details, mod)
	assert.Contains(t, details.String(), "func[0] sig=0")
	assert.Contains(t, details.String(), `"one"`)
}
