// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pagemem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmkernel/wasmkernel/pagemem"
)

func newMem(t *testing.T, pages uint32) *pagemem.Memory {
	t.Helper()
	buf := make([]byte, 256*pagemem.MiniPageSize)
	m, err := pagemem.New(buf, func(c *pagemem.Config) { c.MinPages = pages })
	require.NoError(t, err)
	return m
}

func TestIdentityWindowRoundTrip(t *testing.T) {
	m := newMem(t, 1)
	require.NoError(t, m.Store32(0x40, 0xdeadbeef))
	v, err := m.Load32(0x40)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)
}

func TestReservedAreaRejected(t *testing.T) {
	m := newMem(t, 1)
	_, err := m.Load32(0x2000)
	assert.ErrorIs(t, err, pagemem.ErrReservedMemoryArea)
}

func TestReservedAreaCanBeDisabled(t *testing.T) {
	buf := make([]byte, 256*pagemem.MiniPageSize)
	m, err := pagemem.New(buf, pagemem.WithReservedAreaEnforced(false), func(c *pagemem.Config) { c.MinPages = 1 })
	require.NoError(t, err)
	require.NoError(t, m.Store32(0x2000, 7))
}

func TestStaticDataWindowRemap(t *testing.T) {
	// 17 pages put 0x10_0000 in bounds; with the reserved window not
	// enforced, 0x1000 is readable and shares 0x10_0000's mini-page.
	buf := make([]byte, 256*pagemem.MiniPageSize)
	m, err := pagemem.New(buf, pagemem.WithReservedAreaEnforced(false), func(c *pagemem.Config) { c.MinPages = 17 })
	require.NoError(t, err)
	require.NoError(t, m.Store8(0x10_0000, 0x42))
	v, err := m.Load8u(0x1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x42), v)
}

func TestOutOfBounds(t *testing.T) {
	m := newMem(t, 1)
	// Aligned, so the bounds check rather than the alignment check fails.
	_, err := m.Load32(PageSize(1))
	assert.ErrorIs(t, err, pagemem.ErrOutOfBounds)
}

func PageSize(n uint32) uint32 { return n * pagemem.PageSize }

func TestAlignment(t *testing.T) {
	m := newMem(t, 1)
	_, err := m.Load32(0x1)
	assert.ErrorIs(t, err, pagemem.ErrInvalidAlignment)
}

func TestGrow(t *testing.T) {
	m := newMem(t, 1)
	prev := m.Grow(2)
	assert.Equal(t, int32(1), prev)
	assert.Equal(t, uint32(3), m.Size())
}

func TestGrowBeyondMaxFails(t *testing.T) {
	m := newMem(t, 1)
	assert.Equal(t, int32(-1), m.Grow(1000))
}

func TestPageTableExhaustion(t *testing.T) {
	buf := make([]byte, 2*pagemem.MiniPageSize)
	m, err := pagemem.New(buf, func(c *pagemem.Config) { c.MinPages = 17 })
	require.NoError(t, err)
	// 17 pages keep 0x10_0000 and above in bounds. Each mini-page covers
	// 4096 bytes; touch three distinct ones to exhaust the two backing
	// the buffer.
	require.NoError(t, m.Store8(0, 1))
	require.NoError(t, m.Store8(0x10_0000, 1))
	_, err = m.Load8u(0x10_0000 + pagemem.MiniPageSize)
	assert.ErrorIs(t, err, pagemem.ErrOutOfMemory)
}
