// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pagemem implements the sparse, paged linear memory described by
// spec.md §4.4. It is not present in go-interpreter/wagon (exec/memory.go
// there is a flat []byte); its algorithm is ported from
// original_source/src/page_table.rs and src/memory_inst.rs, recast in the
// teacher's Go idiom (exported Error values, bounds-checked accessors).
package pagemem

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MiniPageSize is the granularity of the virtual->physical page table
// (original_source/src/memory_inst.rs MINI_SIZE). PageSize is the wasm
// linear-memory page size the public API (grow/size) is denominated in.
const (
	MiniPageSize = 4096
	PageSize     = 65536

	// maxMiniPages bounds the page table to a single byte per entry.
	maxMiniPages = 255
)

// Sentinel errors (spec.md §4.4 edge cases).
var (
	ErrOutOfMemory          = errors.New("pagemem: backing buffer exhausted, no free mini-page")
	ErrReservedMemoryArea   = errors.New("pagemem: address falls in the reserved [0x1000,0x100000) window")
	ErrOutOfBounds          = errors.New("pagemem: access beyond current wasm memory size")
	ErrInvalidAlignment     = errors.New("pagemem: address does not satisfy the access's natural alignment")
	ErrGrowExceedsMaxPages  = errors.New("pagemem: grow would exceed the memory's maximum page count")
)

// pageTable maps a virtual mini-page index to a physical one, allocating
// physical mini-pages on first touch. 0xff means unmapped, matching
// original_source's map[u8;256] with the 0xff sentinel.
type pageTable struct {
	mapv    [maxMiniPages + 1]uint8
	mini    uint8 // number of mini-pages backing the buffer
	mapped  uint8
}

const unmapped = 0xff

func newPageTable(mini uint8) *pageTable {
	pt := &pageTable{mini: mini}
	for i := range pt.mapv {
		pt.mapv[i] = unmapped
	}
	return pt
}

func (pt *pageTable) get(virt uint8) (uint8, bool) {
	if p := pt.mapv[virt]; p != unmapped {
		return p, true
	}
	if pt.mapped >= pt.mini {
		return 0, false
	}
	p := pt.mapped
	pt.mapv[virt] = p
	pt.mapped++
	return p, true
}

// Config selects the memory's policy knobs (spec.md §4.4 Open Questions).
type Config struct {
	// MinPages is the number of wasm pages initially visible via Size.
	MinPages uint32
	// MaxPages caps Grow; original_source hardcodes 64 regardless of the
	// module's declared maximum, reserving headroom for LLVM's static
	// data convention (addresses starting at 0x10_0000). Kept as the
	// default here; a module-declared maximum narrower than 64 can be
	// passed explicitly.
	MaxPages uint32
	// EnforceReservedArea rejects addresses in [0x1000,0x100000), the
	// window original_source carves out for LLVM static data layout. Set
	// false to map that window identically to the rest of the address
	// space, for modules with no such convention.
	EnforceReservedArea bool
}

// Option configures a Memory at construction.
type Option func(*Config)

// WithMaxPages overrides the default 64-page cap.
func WithMaxPages(n uint32) Option {
	return func(c *Config) { c.MaxPages = n }
}

// WithMinPages sets the memory's initial size, in wasm pages, reported
// by Size/Len until the first Grow (spec.md §4.4's declared "initial"
// limit). Default: 0.
func WithMinPages(n uint32) Option {
	return func(c *Config) { c.MinPages = n }
}

// WithReservedAreaEnforced toggles rejection of the [0x1000,0x100000)
// window. Default: enforced, matching original_source.
func WithReservedAreaEnforced(enforced bool) Option {
	return func(c *Config) { c.EnforceReservedArea = enforced }
}

// Memory is sparse linear memory: its backing buffer need only be large
// enough to hold the mini-pages actually touched, addressed through a
// page table that remaps the LLVM static-data window down into that
// buffer (spec.md §4.4).
type Memory struct {
	buf      []byte
	pt       *pageTable
	numPages uint32 // current size, in PageSize units
	minPages uint32
	maxPages uint32
	enforceReserved bool
}

// New allocates a Memory backed by buf. It uses at most maxMiniPages
// whole mini-pages of buf; bytes past the last whole mini-page, or past
// maxMiniPages*MiniPageSize, are never used.
func New(buf []byte, opts ...Option) (*Memory, error) {
	cfg := Config{MaxPages: 64, EnforceReservedArea: true}
	for _, o := range opts {
		o(&cfg)
	}
	mini := len(buf) / MiniPageSize
	if mini > maxMiniPages {
		mini = maxMiniPages
	}
	return &Memory{
		buf:             buf,
		pt:              newPageTable(uint8(mini)),
		numPages:        cfg.MinPages,
		minPages:        cfg.MinPages,
		maxPages:        cfg.MaxPages,
		enforceReserved: cfg.EnforceReservedArea,
	}, nil
}

// Size returns the current memory size in wasm pages.
func (m *Memory) Size() uint32 { return m.numPages }

// Len returns the current memory size in bytes.
func (m *Memory) Len() uint32 { return m.numPages * PageSize }

// Grow adds delta pages and returns the previous size, or -1 if the
// growth would exceed the configured maximum (spec.md grow_memory).
func (m *Memory) Grow(delta uint32) int32 {
	prev := m.numPages
	next := prev + delta
	if next > m.maxPages {
		return -1
	}
	m.numPages = next
	return int32(prev)
}

// mapAddr translates a virtual address into an offset into buf,
// applying the LLVM static-data remap window before consulting the page
// table (original_source/src/memory_inst.rs map_addr).
func (m *Memory) mapAddr(vAddr uint32) (int, error) {
	var aAddr uint32
	switch {
	case vAddr < 0x1000:
		aAddr = vAddr
	case vAddr >= 0x10_0000:
		aAddr = vAddr - 0x10_0000 + 0x1000
	default:
		if m.enforceReserved {
			return 0, ErrReservedMemoryArea
		}
		aAddr = vAddr
	}

	vPage := uint8(aAddr / MiniPageSize)
	pPage, ok := m.pt.get(vPage)
	if !ok {
		return 0, ErrOutOfMemory
	}
	offset := int(aAddr % MiniPageSize)
	pAddr := int(pPage)*MiniPageSize + offset
	if pAddr+MiniPageSize > len(m.buf) {
		return 0, fmt.Errorf("pagemem: mapped address %#x exceeds backing buffer: %w", vAddr, ErrOutOfMemory)
	}
	return pAddr, nil
}

func (m *Memory) checkBounds(vAddr uint32, size uint32) error {
	if uint64(vAddr)+uint64(size) > uint64(m.Len()) {
		return ErrOutOfBounds
	}
	return nil
}

func (m *Memory) checkAlign(vAddr uint32, mask uint32) error {
	if vAddr&mask != 0 {
		return ErrInvalidAlignment
	}
	return nil
}

// Load8u/Load8s/Load16u/Load16s/Load32 read from linear memory,
// sign/zero-extended to int32 as wasm's i32.load8_s etc. require.

func (m *Memory) Load8u(addr uint32) (uint32, error) {
	if err := m.checkBounds(addr, 1); err != nil {
		return 0, err
	}
	p, err := m.mapAddr(addr)
	if err != nil {
		return 0, err
	}
	return uint32(m.buf[p]), nil
}

func (m *Memory) Load8s(addr uint32) (int32, error) {
	u, err := m.Load8u(addr)
	if err != nil {
		return 0, err
	}
	return int32(int8(u)), nil
}

func (m *Memory) Load16u(addr uint32) (uint32, error) {
	if err := m.checkAlign(addr, 0b1); err != nil {
		return 0, err
	}
	if err := m.checkBounds(addr, 2); err != nil {
		return 0, err
	}
	p, err := m.mapAddr(addr)
	if err != nil {
		return 0, err
	}
	return uint32(binary.LittleEndian.Uint16(m.buf[p:])), nil
}

func (m *Memory) Load16s(addr uint32) (int32, error) {
	u, err := m.Load16u(addr)
	if err != nil {
		return 0, err
	}
	return int32(int16(u)), nil
}

func (m *Memory) Load32(addr uint32) (uint32, error) {
	if err := m.checkAlign(addr, 0b11); err != nil {
		return 0, err
	}
	if err := m.checkBounds(addr, 4); err != nil {
		return 0, err
	}
	p, err := m.mapAddr(addr)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.buf[p:]), nil
}

func (m *Memory) Store8(addr uint32, v uint32) error {
	if err := m.checkBounds(addr, 1); err != nil {
		return err
	}
	p, err := m.mapAddr(addr)
	if err != nil {
		return err
	}
	m.buf[p] = byte(v)
	return nil
}

func (m *Memory) Store16(addr uint32, v uint32) error {
	if err := m.checkAlign(addr, 0b1); err != nil {
		return err
	}
	if err := m.checkBounds(addr, 2); err != nil {
		return err
	}
	p, err := m.mapAddr(addr)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.buf[p:], uint16(v))
	return nil
}

func (m *Memory) Store32(addr uint32, v uint32) error {
	if err := m.checkAlign(addr, 0b11); err != nil {
		return err
	}
	if err := m.checkBounds(addr, 4); err != nil {
		return err
	}
	p, err := m.mapAddr(addr)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[p:], v)
	return nil
}

// WriteAt copies data into memory starting at addr, bypassing alignment
// checks, for data-segment initialization at instantiation time.
func (m *Memory) WriteAt(addr uint32, data []byte) error {
	if err := m.checkBounds(addr, uint32(len(data))); err != nil {
		return err
	}
	for i, b := range data {
		p, err := m.mapAddr(addr + uint32(i))
		if err != nil {
			return err
		}
		m.buf[p] = b
	}
	return nil
}
