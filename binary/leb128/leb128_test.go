// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package leb128

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 255, 300, 0x7fffffff, 0xffffffff} {
		buf := new(bytes.Buffer)
		WriteVarUint32(buf, v)
		got, err := ReadVarUint32(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, v, got, "round trip of %d", v)
	}
}

func TestVarint32RoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 63, -64, 64, -65, 1000000, -1000000, 0x7fffffff, -0x80000000} {
		buf := new(bytes.Buffer)
		WriteVarint32(buf, v)
		got, err := ReadVarint32(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, v, got, "round trip of %d", v)
	}
}

func TestVarint64RoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 1 << 40, -(1 << 40), 0x7fffffffffffffff, -0x8000000000000000} {
		buf := new(bytes.Buffer)
		WriteVarint64(buf, v)
		got, err := ReadVarint64(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, v, got, "round trip of %d", v)
	}
}

func TestReadVarUint32Size(t *testing.T) {
	buf := new(bytes.Buffer)
	WriteVarUint32(buf, 300)
	_, n, err := ReadVarUint32Size(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
