// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stackutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wasmkernel/wasmkernel/stackutil"
)

func TestPushPopInt32(t *testing.T) {
	s := stackutil.New(4)
	s.PushInt32(-7)
	assert.Equal(t, int32(-7), s.PopInt32())
}

func TestPeekDoesNotPop(t *testing.T) {
	s := stackutil.New(4)
	s.PushUint32(1)
	s.PushUint32(2)
	assert.Equal(t, uint64(2), s.Peek(0))
	assert.Equal(t, uint64(1), s.Peek(1))
	assert.Equal(t, 2, s.Len())
}

func TestPickMutates(t *testing.T) {
	s := stackutil.New(4)
	s.PushUint32(1)
	s.PushUint32(2)
	*s.Pick(1) = 99
	assert.Equal(t, uint64(99), s.Peek(1))
}

func TestDropKeep(t *testing.T) {
	s := stackutil.New(8)
	for _, v := range []uint32{1, 2, 3, 4, 5} {
		s.PushUint32(v)
	}
	s.DropKeep(3, 1)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, uint32(5), s.PopUint32())
	assert.Equal(t, uint32(1), s.PopUint32())
}

func TestDropKeepZeroDropNoop(t *testing.T) {
	s := stackutil.New(4)
	s.PushUint32(1)
	s.DropKeep(0, 1)
	assert.Equal(t, 1, s.Len())
}

func TestFloatRoundTrip(t *testing.T) {
	s := stackutil.New(4)
	s.PushFloat64(3.5)
	assert.Equal(t, 3.5, s.PopFloat64())
}
