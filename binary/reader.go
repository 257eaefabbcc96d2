// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package binary

import (
	"encoding/binary"
	"io"
)

// Reader is a bounded byte cursor over a caller-provided buffer. Every
// view it hands back (ReadBytes, Slice) is a sub-slice of that buffer:
// the parser never copies the module bytes. Grounded on
// original_source/src/binary_reader.rs and wasm-reader/src/buf.rs, which
// is the structure spec.md §4.1 describes as "a typed, zero-copy view."
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential, bounds-checked reads.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current byte offset into the wrapped buffer.
func (r *Reader) Pos() int { return r.pos }

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Bytes returns the full underlying buffer (for error context / dumping).
func (r *Reader) Bytes() []byte { return r.buf }

// ReadByte implements io.ByteReader, so *Reader can feed binary/leb128
// directly.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.EOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// PeekByte returns the next byte without consuming it.
func (r *Reader) PeekByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.EOF
	}
	return r.buf[r.pos], nil
}

// ReadBytes returns a zero-copy view of the next n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, ErrTruncated
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadString returns the next n bytes interpreted as a UTF-8 string; it
// copies, since strings are immutable and the caller may outlive buf.
func (r *Reader) ReadString(n int) (string, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadU32 reads a fixed-width little-endian uint32 (used for float bit
// patterns and istream immediates, never for LEB128 varints).
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads a fixed-width little-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Slice carves out a bounded sub-cursor over the next n bytes, advancing
// r past them. Used to scope a section payload so a record reader cannot
// run past its declared size.
func (r *Reader) Slice(n int) (*Reader, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b), nil
}

// AtEOF reports whether every byte has been consumed.
func (r *Reader) AtEOF() bool { return r.pos >= len(r.buf) }
