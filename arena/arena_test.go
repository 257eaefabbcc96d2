// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arena_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmkernel/wasmkernel/arena"
)

func TestAllocIsZeroed(t *testing.T) {
	a := arena.New(make([]byte, 64))
	b, err := a.Alloc(8)
	require.NoError(t, err)
	for _, v := range b {
		assert.Equal(t, byte(0), v)
	}
	b[0] = 0xff
	assert.Equal(t, 8, a.Used())
}

func TestAllocExhaustion(t *testing.T) {
	a := arena.New(make([]byte, 8))
	_, err := a.Alloc(4)
	require.NoError(t, err)
	_, err = a.Alloc(8)
	assert.Error(t, err)
}

func TestResetReclaims(t *testing.T) {
	a := arena.New(make([]byte, 8))
	_, err := a.Alloc(8)
	require.NoError(t, err)
	a.Reset()
	assert.Equal(t, 0, a.Used())
	_, err = a.Alloc(8)
	require.NoError(t, err)
}

func TestScopeReleasesChild(t *testing.T) {
	a := arena.New(make([]byte, 32))
	err := a.Scope(16, func(child *arena.Arena) error {
		_, err := child.Alloc(16)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 16, a.Used())
}

func TestTableAppendGet(t *testing.T) {
	tbl := arena.NewTable[int](0)
	i0 := tbl.Append(10)
	i1 := tbl.Append(20)
	assert.Equal(t, 10, tbl.Get(i0))
	assert.Equal(t, 20, tbl.Get(i1))
	assert.Equal(t, 2, tbl.Len())
}
