// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package interp

import (
	"math"
	"math/bits"

	"github.com/wasmkernel/wasmkernel/stackutil"
)

// The i32* functions below each pop their operands, compute, and push the
// result onto s, mirroring the shape of go-interpreter-wagon's exec/vm.go
// per-opcode functions (e.g. i32Add, i32ShrU) but taking the stack
// explicitly instead of closing over a *vm receiver.

func i32Add(s *stackutil.Stack) { b := s.PopUint32(); a := s.PopUint32(); s.PushUint32(a + b) }
func i32Sub(s *stackutil.Stack) { b := s.PopUint32(); a := s.PopUint32(); s.PushUint32(a - b) }
func i32Mul(s *stackutil.Stack) { b := s.PopUint32(); a := s.PopUint32(); s.PushUint32(a * b) }

func i32DivS(s *stackutil.Stack) error {
	b, a := s.PopInt32(), s.PopInt32()
	if b == 0 {
		return ErrDivideByZero
	}
	if a == math.MinInt32 && b == -1 {
		return ErrIntegerOverflow
	}
	s.PushInt32(a / b)
	return nil
}

func i32DivU(s *stackutil.Stack) error {
	b, a := s.PopUint32(), s.PopUint32()
	if b == 0 {
		return ErrDivideByZero
	}
	s.PushUint32(a / b)
	return nil
}

func i32RemS(s *stackutil.Stack) error {
	b, a := s.PopInt32(), s.PopInt32()
	if b == 0 {
		return ErrDivideByZero
	}
	if a == math.MinInt32 && b == -1 {
		s.PushInt32(0)
		return nil
	}
	s.PushInt32(a % b)
	return nil
}

func i32RemU(s *stackutil.Stack) error {
	b, a := s.PopUint32(), s.PopUint32()
	if b == 0 {
		return ErrDivideByZero
	}
	s.PushUint32(a % b)
	return nil
}

func i32And(s *stackutil.Stack) { b := s.PopUint32(); a := s.PopUint32(); s.PushUint32(a & b) }
func i32Or(s *stackutil.Stack)  { b := s.PopUint32(); a := s.PopUint32(); s.PushUint32(a | b) }
func i32Xor(s *stackutil.Stack) { b := s.PopUint32(); a := s.PopUint32(); s.PushUint32(a ^ b) }

func i32Shl(s *stackutil.Stack)  { b := s.PopUint32(); a := s.PopUint32(); s.PushUint32(a << (b & 31)) }
func i32ShrS(s *stackutil.Stack) { b := s.PopUint32(); a := s.PopInt32(); s.PushInt32(a >> (b & 31)) }
func i32ShrU(s *stackutil.Stack) { b := s.PopUint32(); a := s.PopUint32(); s.PushUint32(a >> (b & 31)) }
func i32Rotl(s *stackutil.Stack) {
	b := s.PopUint32()
	a := s.PopUint32()
	s.PushUint32(bits.RotateLeft32(a, int(b&31)))
}
func i32Rotr(s *stackutil.Stack) {
	b := s.PopUint32()
	a := s.PopUint32()
	s.PushUint32(bits.RotateLeft32(a, -int(b&31)))
}

func i32Clz(s *stackutil.Stack)    { a := s.PopUint32(); s.PushUint32(uint32(bits.LeadingZeros32(a))) }
func i32Ctz(s *stackutil.Stack)    { a := s.PopUint32(); s.PushUint32(uint32(bits.TrailingZeros32(a))) }
func i32Popcnt(s *stackutil.Stack) { a := s.PopUint32(); s.PushUint32(uint32(bits.OnesCount32(a))) }
func i32Eqz(s *stackutil.Stack)    { a := s.PopUint32(); s.PushBool(a == 0) }

func i32Eq(s *stackutil.Stack)  { b := s.PopUint32(); a := s.PopUint32(); s.PushBool(a == b) }
func i32Ne(s *stackutil.Stack)  { b := s.PopUint32(); a := s.PopUint32(); s.PushBool(a != b) }
func i32LtS(s *stackutil.Stack) { b := s.PopInt32(); a := s.PopInt32(); s.PushBool(a < b) }
func i32LtU(s *stackutil.Stack) { b := s.PopUint32(); a := s.PopUint32(); s.PushBool(a < b) }
func i32GtS(s *stackutil.Stack) { b := s.PopInt32(); a := s.PopInt32(); s.PushBool(a > b) }
func i32GtU(s *stackutil.Stack) { b := s.PopUint32(); a := s.PopUint32(); s.PushBool(a > b) }
func i32LeS(s *stackutil.Stack) { b := s.PopInt32(); a := s.PopInt32(); s.PushBool(a <= b) }
func i32LeU(s *stackutil.Stack) { b := s.PopUint32(); a := s.PopUint32(); s.PushBool(a <= b) }
func i32GeS(s *stackutil.Stack) { b := s.PopInt32(); a := s.PopInt32(); s.PushBool(a >= b) }
func i32GeU(s *stackutil.Stack) { b := s.PopUint32(); a := s.PopUint32(); s.PushBool(a >= b) }
