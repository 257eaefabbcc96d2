// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm renders a compiled Program back to human-readable
// text: a wasm-objdump-style header/details summary and a flat
// instruction-by-instruction trace of the istream, grounded on
// original_source/src/dumper.rs's HeaderDumper/DetailsDumper/
// Disassembler delegates and go-interpreter-wagon's operator-name
// table (package binary/operators).
package disasm

import "strconv"

// f32Hex and f64Hex format a float in hex-float notation with strconv's
// 'x' verb, which always prints at least two exponent digits (3.0 gives
// 0x1.8p+01, where C99's %a gives 0x1.8p+1). original_source/src/
// floathex.rs hand-rolls its f32_hex/f64_hex; unlike Rust, Go needs no
// third-party or hand-rolled formatter here, so this one function in
// the whole package is stdlib-only by design.
func f32Hex(v float32) string { return strconv.FormatFloat(float64(v), 'x', -1, 32) }
func f64Hex(v float64) string { return strconv.FormatFloat(v, 'x', -1, 64) }
