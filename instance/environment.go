// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package instance

import (
	"github.com/wasmkernel/wasmkernel/arena"
	wbinary "github.com/wasmkernel/wasmkernel/binary"
	"github.com/wasmkernel/wasmkernel/compile"
	"github.com/wasmkernel/wasmkernel/pagemem"
	"github.com/wasmkernel/wasmkernel/stackutil"
)

// defaultModuleTableCap sizes the initial capacity hint for an
// Environment's arena.Table module registry; Append grows past this
// like any other Table, it just avoids repeated reallocation for the
// common case of linking a handful of modules together.
const defaultModuleTableCap = 8

// ImportFunc binds one function import to a host index, called once per
// import at module load (spec.md §6's `import(module_name, export_name,
// import_desc) → host_index | error`).
type ImportFunc func(moduleName, exportName string, desc ImportDesc) (HostIndex, error)

// DispatchFunc invokes a host function by index, called once per call
// instruction that resolves to a Host function instance (spec.md §6's
// `dispatch(interp, memory, type_index, host_index)`). It receives the
// interpreter's value stack and the current memory instance directly
// rather than a higher-level interpreter handle, so that this package
// never needs to import package interp (which itself imports instance
// to resolve calls — see DESIGN.md).
type DispatchFunc func(stack *stackutil.Stack, mem *pagemem.Memory, typeIndex uint32, hostIndex HostIndex) error

// Environment is the registry of instantiated modules plus the host
// dispatch interface (spec.md §3 "Environment (I)"). One Environment is
// shared across every module it links; cyclic call graphs between
// modules are expressed by module/function index pairs into this
// registry rather than pointers (spec.md §9).
type Environment struct {
	modules  *arena.Table[*ModuleInst]
	byName   map[string]uint32
	onImport ImportFunc
	Dispatch DispatchFunc
}

// NewEnvironment constructs an Environment. onImport may be nil if the
// caller never links against host functions (every import must then
// resolve against a previously-registered module). dispatch may be nil
// under the same condition. The module registry itself is an
// arena.Table, addressed by arena.Index.
func NewEnvironment(onImport ImportFunc, dispatch DispatchFunc) *Environment {
	return &Environment{
		modules:  arena.NewTable[*ModuleInst](defaultModuleTableCap),
		byName:   make(map[string]uint32),
		onImport: onImport,
		Dispatch: dispatch,
	}
}

// Module returns the instance registered at idx.
func (e *Environment) Module(idx uint32) *ModuleInst { return e.modules.Get(arena.Index(idx)) }

// ModuleByName returns the instance registered under name, if any.
func (e *Environment) ModuleByName(name string) (*ModuleInst, uint32, bool) {
	idx, ok := e.byName[name]
	if !ok {
		return nil, 0, false
	}
	return e.modules.Get(arena.Index(idx)), idx, true
}

// Instantiate resolves imports, computes globals, populates the
// function table, table, and memory, writes data segments, and
// registers the resulting ModuleInst under name (spec.md §4.3). name
// may be "" for an anonymous instance other modules cannot import from.
// The start function, if one is declared, is NOT invoked here — running
// code is package interp's responsibility; the caller is expected to
// look up mi.Prog.Start and invoke it through an interpreter after
// Instantiate returns.
func (e *Environment) Instantiate(name string, prog *compile.Program) (*ModuleInst, error) {
	mi := &ModuleInst{
		Index:   uint32(e.modules.Len()),
		Prog:    prog,
		Exports: make(map[string]ExportInst, len(prog.Exports)),
	}

	if err := e.resolveFunctions(mi, prog); err != nil {
		return nil, err
	}
	if err := e.resolveGlobals(mi, prog); err != nil {
		return nil, err
	}
	if err := e.resolveTable(mi, prog); err != nil {
		return nil, err
	}
	if err := e.resolveMemory(mi, prog); err != nil {
		return nil, err
	}
	if err := applyElementSegments(mi, prog); err != nil {
		return nil, err
	}
	if err := applyDataSegments(mi, prog); err != nil {
		return nil, err
	}

	for _, exp := range prog.Exports {
		mi.Exports[exp.Name] = ExportInst{Kind: exp.Kind, Index: exp.Index}
	}

	e.modules.Append(mi)
	if name != "" {
		e.byName[name] = mi.Index
	}
	return mi, nil
}

func (e *Environment) resolveFunctions(mi *ModuleInst, prog *compile.Program) error {
	for _, imp := range prog.Imports {
		if imp.Kind != wbinary.ExternalFunction {
			continue
		}
		fi, err := e.resolveFunctionImport(imp, prog)
		if err != nil {
			return err
		}
		mi.Funcs = append(mi.Funcs, fi)
	}
	for _, meta := range prog.Funcs {
		mi.Funcs = append(mi.Funcs, FunctionInst{
			Kind:        FuncLocal,
			TypeIndex:   meta.TypeIndex,
			EntryOffset: meta.EntryOffset,
			NumParams:   meta.NumParams,
			NumLocals:   meta.NumLocals,
		})
	}
	return nil
}

func (e *Environment) resolveFunctionImport(imp wbinary.ImportEntry, prog *compile.Program) (FunctionInst, error) {
	if target, targetIdx, ok := e.ModuleByName(imp.Module); ok {
		exp, ok := target.Export(imp.Field)
		if !ok {
			return FunctionInst{}, ErrExportNotFound
		}
		if exp.Kind != wbinary.ExternalFunction {
			return FunctionInst{}, ErrExportKindMismatch
		}
		return FunctionInst{
			Kind:         FuncImport,
			TypeIndex:    imp.FuncTypeIndex,
			TargetModule: targetIdx,
			TargetFunc:   exp.Index,
		}, nil
	}
	if e.onImport == nil {
		return FunctionInst{}, ErrMissingImport
	}
	desc := ImportDesc{Kind: wbinary.ExternalFunction}
	if int(imp.FuncTypeIndex) < len(prog.Types) {
		desc.FuncType = prog.Types[imp.FuncTypeIndex]
	}
	hostIdx, err := e.onImport(imp.Module, imp.Field, desc)
	if err != nil {
		return FunctionInst{}, err
	}
	return FunctionInst{Kind: FuncHost, TypeIndex: imp.FuncTypeIndex, HostIndex: hostIdx}, nil
}

func (e *Environment) resolveGlobals(mi *ModuleInst, prog *compile.Program) error {
	for _, imp := range prog.Imports {
		if imp.Kind != wbinary.ExternalGlobal {
			continue
		}
		gi, err := e.resolveGlobalImport(imp)
		if err != nil {
			return err
		}
		mi.Globals = append(mi.Globals, gi)
	}
	for _, g := range prog.Globals {
		val, err := evalInitExpr(g.Init, mi.Globals)
		if err != nil {
			return err
		}
		mi.Globals = append(mi.Globals, GlobalInst{Type: g.Type.Type, Mutable: g.Type.Mutable, Value: val})
	}
	return nil
}

func (e *Environment) resolveGlobalImport(imp wbinary.ImportEntry) (GlobalInst, error) {
	target, _, ok := e.ModuleByName(imp.Module)
	if !ok {
		return GlobalInst{}, ErrMissingImport
	}
	exp, ok := target.Export(imp.Field)
	if !ok {
		return GlobalInst{}, ErrExportNotFound
	}
	if exp.Kind != wbinary.ExternalGlobal {
		return GlobalInst{}, ErrExportKindMismatch
	}
	return target.Globals[exp.Index], nil
}

func (e *Environment) resolveTable(mi *ModuleInst, prog *compile.Program) error {
	for _, imp := range prog.Imports {
		if imp.Kind != wbinary.ExternalTable {
			continue
		}
		target, _, ok := e.ModuleByName(imp.Module)
		if !ok {
			return ErrTableImportUnsupported
		}
		exp, ok := target.Export(imp.Field)
		if !ok || exp.Kind != wbinary.ExternalTable {
			return ErrExportKindMismatch
		}
		mi.Table = target.Table
		return nil
	}
	if len(prog.Tables) == 0 {
		return nil
	}
	limits := prog.Tables[0].Limits
	mi.Table = &TableInst{Elements: make([]int32, limits.Initial)}
	for i := range mi.Table.Elements {
		mi.Table.Elements[i] = -1
	}
	return nil
}

func (e *Environment) resolveMemory(mi *ModuleInst, prog *compile.Program) error {
	for _, imp := range prog.Imports {
		if imp.Kind != wbinary.ExternalMemory {
			continue
		}
		target, _, ok := e.ModuleByName(imp.Module)
		if !ok {
			return ErrMemoryImportUnsupported
		}
		exp, ok := target.Export(imp.Field)
		if !ok || exp.Kind != wbinary.ExternalMemory {
			return ErrExportKindMismatch
		}
		mi.Mem = target.Mem
		return nil
	}
	if len(prog.Mems) == 0 {
		return nil
	}
	limits := prog.Mems[0].Limits
	opts := []pagemem.Option{pagemem.WithMinPages(limits.Initial)}
	if limits.HasMax() {
		opts = append(opts, pagemem.WithMaxPages(limits.Maximum))
	}
	buf := make([]byte, limits.Initial*pagemem.PageSize)
	mem, err := pagemem.New(buf, opts...)
	if err != nil {
		return err
	}
	mi.Mem = mem
	return nil
}

func applyElementSegments(mi *ModuleInst, prog *compile.Program) error {
	if len(prog.Elements) == 0 {
		return nil
	}
	if mi.Table == nil {
		return ErrNoTable
	}
	for _, seg := range prog.Elements {
		offset, err := evalInitExpr(seg.Offset, mi.Globals)
		if err != nil {
			return err
		}
		base := int(uint32(offset))
		for i, fnIdx := range seg.Funcs {
			mi.Table.Elements[base+i] = int32(fnIdx)
		}
	}
	return nil
}

func applyDataSegments(mi *ModuleInst, prog *compile.Program) error {
	if len(prog.Data) == 0 {
		return nil
	}
	if mi.Mem == nil {
		return ErrNoMemory
	}
	for _, seg := range prog.Data {
		offset, err := evalInitExpr(seg.Offset, mi.Globals)
		if err != nil {
			return err
		}
		if err := mi.Mem.WriteAt(uint32(offset), seg.Data); err != nil {
			return err
		}
	}
	return nil
}
