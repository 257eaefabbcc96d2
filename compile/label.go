// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import "github.com/wasmkernel/wasmkernel/binary"

type labelKind uint8

const (
	labelFunction labelKind = iota
	labelBlock
	labelLoop
	labelIf
	labelElse
)

// label is a compile-time record of one control construct, mirroring
// original_source/src/compiler.rs's Label/Context split collapsed into
// one struct since this compiler type-checks and emits in the same
// pass (spec.md §4.2 "Label stack").
type label struct {
	kind       labelKind
	signature  binary.ValueType // result type, or ValueTypeVoid
	stackLimit int              // c.operands height when the label was pushed

	offset    uint32 // resolved branch target; valid once hasOffset
	hasOffset bool

	// fixupOffset is the istream position of the if's br_unless target
	// immediate, patched once the matching else/end position is known.
	fixupOffset uint32
	hasFixup    bool

	unreachable bool // whether this label's body has seen a diverging op
}

// fixup is a pending forward branch: the 4-byte placeholder at pos must
// be patched with the istream offset of the label at depth once that
// offset is known (original_source/src/compiler.rs's Fixup, keyed here
// directly by absolute label-stack depth instead of a fixed-size array).
type fixup struct {
	depth int // absolute label-stack depth (0 = function label)
	pos   int
}

func (c *Compiler) pushLabel(kind labelKind, sig binary.ValueType) *label {
	c.labels = append(c.labels, label{kind: kind, signature: sig, stackLimit: len(c.operands)})
	return &c.labels[len(c.labels)-1]
}

func (c *Compiler) topLabel() *label { return &c.labels[len(c.labels)-1] }

// labelAt returns the label `depth` levels below the innermost one; depth
// 0 is the innermost (branch depth convention from spec.md §4.2).
func (c *Compiler) labelAt(depth int) (*label, int, error) {
	idx := len(c.labels) - 1 - depth
	if idx < 0 {
		return nil, 0, InvalidBranchDepthError(depth)
	}
	return &c.labels[idx], idx, nil
}

func (c *Compiler) popLabel() label {
	l := c.labels[len(c.labels)-1]
	c.labels = c.labels[:len(c.labels)-1]
	return l
}

// addFixup records that the 4-byte field at pos must be patched once the
// label at absolute depth `labelIdx` resolves its offset.
func (c *Compiler) addFixup(labelIdx, pos int) {
	c.fixups = append(c.fixups, fixup{depth: labelIdx, pos: pos})
}

// resolveFixups patches every pending fixup targeting labelIdx with addr
// and drops them from the pending list.
func (c *Compiler) resolveFixups(labelIdx int, addr uint32) {
	kept := c.fixups[:0]
	for _, f := range c.fixups {
		if f.depth == labelIdx {
			c.patchU32(f.pos, addr)
		} else {
			kept = append(kept, f)
		}
	}
	c.fixups = kept
}

// dropKeepFor computes the (drop, keep) pair for a branch targeting l,
// per spec.md §4.2: keep=1 iff l is not a loop and its signature is
// non-void; drop clears everything above l.stackLimit besides keep
// (zero while compiling unreachable code).
func (c *Compiler) dropKeepFor(l *label) (drop, keep uint32) {
	keep = keepFor(l)
	return c.dropFor(l, keep), keep
}

// keepFor is the keep half of dropKeepFor in isolation: 1 iff l is not a
// loop and its signature is non-void, else 0.
func keepFor(l *label) uint32 {
	if l.kind != labelLoop && l.signature != binary.ValueTypeVoid {
		return 1
	}
	return 0
}

// dropFor computes the drop count for a branch targeting l given an
// already-decided keep (spec.md §4.2's br_table variant, where keep is
// shared across every target instead of recomputed per target).
func (c *Compiler) dropFor(l *label, keep uint32) uint32 {
	if c.unreachable() {
		return 0
	}
	d := len(c.operands) - l.stackLimit - int(keep)
	if d < 0 {
		d = 0
	}
	return uint32(d)
}
