// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package leb128 reads and writes integers encoded in the Little Endian
// Base 128 (LEB128) format: https://en.wikipedia.org/wiki/LEB128
package leb128

import (
	"bytes"
	"io"
)

// ReadVarUint32 reads a LEB128 encoded unsigned 32-bit integer from r.
func ReadVarUint32(r io.ByteReader) (uint32, error) {
	v, _, err := ReadVarUint32Size(r)
	return v, err
}

// ReadVarUint32Size is like ReadVarUint32 but additionally returns the
// number of bytes consumed, which callers need when a section's declared
// payload length must be reduced by the size of a preceding field (e.g.
// a custom section's name-length prefix).
func ReadVarUint32Size(r io.ByteReader) (uint32, int, error) {
	var (
		shift uint
		res   uint32
		n     int
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return res, n, err
		}
		n++
		cur := uint32(b)
		res |= (cur & 0x7f) << shift
		if cur&0x80 == 0 {
			return res, n, nil
		}
		shift += 7
	}
}

// ReadVarUint64 reads a LEB128 encoded unsigned 64-bit integer from r.
func ReadVarUint64(r io.ByteReader) (uint64, error) {
	var (
		shift uint
		res   uint64
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return res, err
		}
		cur := uint64(b)
		res |= (cur & 0x7f) << shift
		if cur&0x80 == 0 {
			return res, nil
		}
		shift += 7
	}
}

// ReadVarint32 reads a LEB128 encoded signed 32-bit integer from r.
func ReadVarint32(r io.ByteReader) (int32, error) {
	n, err := ReadVarint64(r)
	return int32(n), err
}

// ReadVarint64 reads a LEB128 encoded signed 64-bit integer from r.
func ReadVarint64(r io.ByteReader) (int64, error) {
	var (
		shift uint
		sign  int64 = -1
		res   int64
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return res, err
		}
		cur := int64(b)
		res |= (cur & 0x7f) << shift
		shift += 7
		sign <<= 7
		if cur&0x80 == 0 {
			if shift < 64 && (sign>>1)&res != 0 {
				res |= sign
			}
			return res, nil
		}
	}
}

// WriteVarUint32 appends the LEB128 encoding of v to buf.
func WriteVarUint32(buf *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// WriteVarint64 appends the signed LEB128 encoding of v to buf.
func WriteVarint64(buf *bytes.Buffer, v int64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}

// WriteVarint32 appends the signed LEB128 encoding of v to buf.
func WriteVarint32(buf *bytes.Buffer, v int32) {
	WriteVarint64(buf, int64(v))
}
