// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stackutil

import "math"

// PushUint32/PushInt32/PushFloat32/PushBool store a value in the low 32
// bits of a stack slot; PushUint64/PushInt64/PushFloat64 use the full
// slot. Mirrors go-interpreter/wagon's exec/vm.go push* family.

func (s *Stack) PushUint64(v uint64) { s.Push(v) }
func (s *Stack) PushInt64(v int64)   { s.Push(uint64(v)) }
func (s *Stack) PushFloat64(v float64) { s.Push(math.Float64bits(v)) }

func (s *Stack) PushUint32(v uint32) { s.Push(uint64(v)) }
func (s *Stack) PushInt32(v int32)   { s.Push(uint64(uint32(v))) }
func (s *Stack) PushFloat32(v float32) { s.PushUint32(math.Float32bits(v)) }

func (s *Stack) PushBool(v bool) {
	if v {
		s.PushUint64(1)
	} else {
		s.PushUint64(0)
	}
}

func (s *Stack) PopUint64() uint64   { return s.Pop() }
func (s *Stack) PopInt64() int64     { return int64(s.PopUint64()) }
func (s *Stack) PopFloat64() float64 { return math.Float64frombits(s.PopUint64()) }

func (s *Stack) PopUint32() uint32   { return uint32(s.PopUint64()) }
func (s *Stack) PopInt32() int32     { return int32(s.PopUint32()) }
func (s *Stack) PopFloat32() float32 { return math.Float32frombits(s.PopUint32()) }

func (s *Stack) PopBool() bool { return s.PopUint32() != 0 }
