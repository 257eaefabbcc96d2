// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wbinary "github.com/wasmkernel/wasmkernel/binary"
	"github.com/wasmkernel/wasmkernel/binary/leb128"
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
	var buf bytes.Buffer
	leb128.WriteVarint32(&buf, v)
	return buf.Bytes()
}

func writeAddModule(t *testing.T) string {
	t.Helper()

	section := func(id wbinary.SectionID, payload []byte) []byte {
		out := []byte{byte(id)}
		out = append(out, leb(uint32(len(payload)))...)
		return append(out, payload...)
	}

	var typeSec []byte
	typeSec = append(typeSec, leb(1)...)
	typeSec = append(typeSec, sleb32(int32(wbinary.ValueTypeFunc))...)
	typeSec = append(typeSec, leb(2)...)
	typeSec = append(typeSec, sleb32(int32(wbinary.ValueTypeI32))...)
	typeSec = append(typeSec, sleb32(int32(wbinary.ValueTypeI32))...)
	typeSec = append(typeSec, leb(1)...)
	typeSec = append(typeSec, sleb32(int32(wbinary.ValueTypeI32))...)

	funcSec := append(leb(1), leb(0)...)

	var body []byte
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(0)...)
	body = append(body, wbinary.OpGetLocal)
	body = append(body, leb(1)...)
	body = append(body, wbinary.OpI32Add)
	body = append(body, wbinary.OpEnd)
	funcBody := append(leb(0), body...)
	var codeSec []byte
	codeSec = append(codeSec, leb(1)...)
	codeSec = append(codeSec, leb(uint32(len(funcBody)))...)
	codeSec = append(codeSec, funcBody...)

	var exportSec []byte
	exportSec = append(exportSec, leb(1)...)
	exportSec = append(exportSec, leb(3)...)
	exportSec = append(exportSec, []byte("add")...)
	exportSec = append(exportSec, byte(wbinary.ExternalFunction))
	exportSec = append(exportSec, leb(0)...)

	var buf bytes.Buffer
	hdr := make([]byte, 8)
	binary.LittleEndian.PutUint32(hdr[0:4], wbinary.Magic)
	binary.LittleEndian.PutUint32(hdr[4:8], wbinary.Version)
	buf.Write(hdr)
	buf.Write(section(wbinary.SectionIDType, typeSec))
	buf.Write(section(wbinary.SectionIDFunction, funcSec))
	buf.Write(section(wbinary.SectionIDExport, exportSec))
	buf.Write(section(wbinary.SectionIDCode, codeSec))

	path := filepath.Join(t.TempDir(), "add.wasm")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, err := wbinary.ReadModule(buf.Bytes())
	require.NoError(t, err)

	return path
}

func TestDumpHeaders(t *testing.T) {
	path := writeAddModule(t)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-h", path})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Function")
}

func TestDumpDisassemble(t *testing.T) {
	path := writeAddModule(t)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-d", path})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "i32.add")
}

func TestDumpNoFlagsErrors(t *testing.T) {
	path := writeAddModule(t)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	assert.Error(t, cmd.Execute())
}
