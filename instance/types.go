// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package instance materializes a compiled module against an
// Environment: resolving imports, computing global initializers,
// populating the function table and linear memory, and producing a
// ModuleInst ready for the interpreter (spec.md §4.3). Grounded on
// go-interpreter-wagon's exec.VM instantiation flow (NewVM resolving
// globals and the start function) generalized to multi-module linking
// per original_source/src/environ.rs, which wagon — a single-module
// runtime — has no equivalent of.
package instance

import (
	"errors"
	"fmt"

	"github.com/wasmkernel/wasmkernel/binary"
)

var (
	// ErrMissingImport is returned when neither a registered module nor
	// the host resolver can satisfy an import.
	ErrMissingImport = errors.New("instance: import cannot be resolved")
	// ErrExportKindMismatch is returned when a resolved export's kind
	// does not match what the import declares.
	ErrExportKindMismatch = errors.New("instance: export kind does not match import")
	// ErrExportNotFound is returned when a named module has no export
	// with the requested name.
	ErrExportNotFound = errors.New("instance: export not found")
	// ErrNoTable is returned applying an element segment when the
	// module has no table.
	ErrNoTable = errors.New("instance: element segment requires a table, module has none")
	// ErrNoMemory is returned applying a data segment when the module
	// has no memory.
	ErrNoMemory = errors.New("instance: data segment requires memory, module has none")
	// ErrInvalidInitExpr is returned when an initializer expression is
	// not one of the statically-computable forms spec.md §3 allows.
	ErrInvalidInitExpr = errors.New("instance: unsupported initializer expression")
	// ErrMutableGlobalInInit is returned when an initializer's
	// get_global targets a mutable global (only immutable imported
	// globals may appear in an initializer expression).
	ErrMutableGlobalInInit = errors.New("instance: initializer references a mutable global")
	// ErrTableImportUnsupported and ErrMemoryImportUnsupported mark the
	// two import kinds this package resolves only against a previously
	// registered module, never against the host resolver (spec.md §6
	// gives a host dispatch hook for functions; tables/memories have no
	// equivalent host-provided form here).
	ErrTableImportUnsupported  = errors.New("instance: table imports are only resolved against a registered module")
	ErrMemoryImportUnsupported = errors.New("instance: memory imports are only resolved against a registered module")
)

// InvalidGlobalIndexError reports an initializer expression's get_global
// targeting an index beyond the globals resolved so far.
type InvalidGlobalIndexError uint32

func (e InvalidGlobalIndexError) Error() string {
	return fmt.Sprintf("instance: invalid global index %d in initializer", uint32(e))
}

// FuncKind discriminates the three shapes of function instance spec.md
// §3 names.
type FuncKind uint8

const (
	FuncLocal FuncKind = iota
	FuncImport
	FuncHost
)

func (k FuncKind) String() string {
	switch k {
	case FuncLocal:
		return "local"
	case FuncImport:
		return "import"
	case FuncHost:
		return "host"
	default:
		return "unknown"
	}
}

// HostIndex identifies a host function bound at import-resolution time;
// its meaning is entirely the embedder's (spec.md §6 "host dispatch
// interface").
type HostIndex uint32

// FunctionInst is one resolved entry of a module's function table
// (spec.md §3 "Function instance"): a Local function runs this
// module's istream from EntryOffset; an Import recurses through the
// Environment into another module; a Host invokes the embedder's
// dispatch hook.
type FunctionInst struct {
	Kind      FuncKind
	TypeIndex uint32

	// Local
	EntryOffset uint32
	NumParams   int
	NumLocals   int

	// Import
	TargetModule uint32
	TargetFunc   uint32

	// Host
	HostIndex HostIndex
}

// GlobalInst is a module-owned global variable's resolved type and
// current value (spec.md §3 "Global instance"). Value holds the raw
// 32/64-bit pattern; the interpreter's stackutil push/pop helpers
// interpret it per GlobalType.Type.
type GlobalInst struct {
	Type    binary.ValueType
	Mutable bool
	Value   uint64
}

// TableInst is a module's function table (spec.md §3 "Table
// instance"): each slot holds an index into the owning ModuleInst's
// Funcs, or -1 if never written by an element segment.
type TableInst struct {
	Elements []int32
}

// ExportInst names one exported function/table/memory/global by kind
// and its index into the corresponding ModuleInst table.
type ExportInst struct {
	Kind  binary.ExternalKind
	Index uint32
}

// ImportDesc describes what an import expects, passed to the host
// resolver so it can validate or specialize its binding (spec.md §6
// "import(module_name, export_name, import_desc)").
type ImportDesc struct {
	Kind       binary.ExternalKind
	FuncType   binary.FunctionSig
	TableType  binary.Table
	MemType    binary.Memory
	GlobalType binary.GlobalType
}
