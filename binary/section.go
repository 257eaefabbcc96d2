// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package binary

import (
	"github.com/wasmkernel/wasmkernel/binary/leb128"
)

// SectionID is the 1-byte code prefixing every section.
type SectionID uint8

const (
	SectionIDCustom   SectionID = 0
	SectionIDType     SectionID = 1
	SectionIDImport   SectionID = 2
	SectionIDFunction SectionID = 3
	SectionIDTable    SectionID = 4
	SectionIDMemory   SectionID = 5
	SectionIDGlobal   SectionID = 6
	SectionIDExport   SectionID = 7
	SectionIDStart    SectionID = 8
	SectionIDElement  SectionID = 9
	SectionIDCode     SectionID = 10
	SectionIDData     SectionID = 11
)

func (s SectionID) String() string {
	names := [...]string{"custom", "type", "import", "function", "table", "memory", "global", "export", "start", "element", "code", "data"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

func (m *Module) readTypeSection(r *Reader) error {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	m.Types = make([]FunctionSig, count)
	for i := range m.Types {
		if m.Types[i], err = readFuncType(r); err != nil {
			return err
		}
	}
	return nil
}

func readFuncType(r *Reader) (FunctionSig, error) {
	var f FunctionSig
	form, err := leb128.ReadVarint32(r)
	if err != nil {
		return f, err
	}
	if ValueType(form) != ValueTypeFunc {
		return f, InvalidValueTypeError(form)
	}
	paramCount, err := leb128.ReadVarUint32(r)
	if err != nil {
		return f, err
	}
	f.ParamTypes = make([]ValueType, paramCount)
	for i := range f.ParamTypes {
		if f.ParamTypes[i], err = readValueType(r); err != nil {
			return f, err
		}
	}
	retCount, err := leb128.ReadVarUint32(r)
	if err != nil {
		return f, err
	}
	f.ReturnTypes = make([]ValueType, retCount)
	for i := range f.ReturnTypes {
		if f.ReturnTypes[i], err = readValueType(r); err != nil {
			return f, err
		}
	}
	return f, nil
}

func readValueType(r *Reader) (ValueType, error) {
	v, err := leb128.ReadVarint32(r)
	if err != nil {
		return 0, err
	}
	switch ValueType(v) {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return ValueType(v), nil
	default:
		return 0, InvalidValueTypeError(v)
	}
}

func readExternalKind(r *Reader) (ExternalKind, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b > uint8(ExternalGlobal) {
		return 0, InvalidExternalKindError(b)
	}
	return ExternalKind(b), nil
}

func readLimits(r *Reader) (Limits, error) {
	var l Limits
	flags, err := leb128.ReadVarUint32(r)
	if err != nil {
		return l, err
	}
	l.Flags = flags
	if l.Initial, err = leb128.ReadVarUint32(r); err != nil {
		return l, err
	}
	if l.HasMax() {
		if l.Maximum, err = leb128.ReadVarUint32(r); err != nil {
			return l, err
		}
	}
	return l, nil
}

func readTable(r *Reader) (Table, error) {
	var t Table
	elemType, err := leb128.ReadVarint32(r)
	if err != nil {
		return t, err
	}
	if ValueType(elemType) != ValueTypeAnyFunc {
		return t, InvalidValueTypeError(elemType)
	}
	t.ElementType = ValueTypeAnyFunc
	t.Limits, err = readLimits(r)
	return t, err
}

func readMemory(r *Reader) (Memory, error) {
	lim, err := readLimits(r)
	return Memory{Limits: lim}, err
}

func readGlobalType(r *Reader) (GlobalType, error) {
	var g GlobalType
	vt, err := readValueType(r)
	if err != nil {
		return g, err
	}
	g.Type = vt
	mut, err := leb128.ReadVarUint32(r)
	if err != nil {
		return g, err
	}
	g.Mutable = mut == 1
	return g, nil
}

func (m *Module) readImportSection(r *Reader) error {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	m.Imports = make([]ImportEntry, count)
	for i := range m.Imports {
		if m.Imports[i], err = readImportEntry(r); err != nil {
			return err
		}
	}
	return nil
}

func readImportEntry(r *Reader) (ImportEntry, error) {
	var e ImportEntry
	modLen, err := leb128.ReadVarUint32(r)
	if err != nil {
		return e, err
	}
	if e.Module, err = r.ReadString(int(modLen)); err != nil {
		return e, err
	}
	fieldLen, err := leb128.ReadVarUint32(r)
	if err != nil {
		return e, err
	}
	if e.Field, err = r.ReadString(int(fieldLen)); err != nil {
		return e, err
	}
	if e.Kind, err = readExternalKind(r); err != nil {
		return e, err
	}
	switch e.Kind {
	case ExternalFunction:
		e.FuncTypeIndex, err = leb128.ReadVarUint32(r)
	case ExternalTable:
		e.TableType, err = readTable(r)
	case ExternalMemory:
		e.MemType, err = readMemory(r)
	case ExternalGlobal:
		e.GlobalType, err = readGlobalType(r)
	}
	return e, err
}

func (m *Module) readFunctionSection(r *Reader) error {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	m.Funcs = make([]uint32, count)
	for i := range m.Funcs {
		if m.Funcs[i], err = leb128.ReadVarUint32(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) readTableSection(r *Reader) error {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	m.Tables = make([]Table, count)
	for i := range m.Tables {
		if m.Tables[i], err = readTable(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) readMemorySection(r *Reader) error {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	m.Mems = make([]Memory, count)
	for i := range m.Mems {
		if m.Mems[i], err = readMemory(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) readGlobalSection(r *Reader) error {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	m.Globals = make([]GlobalEntry, count)
	for i := range m.Globals {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readInitExpr(r)
		if err != nil {
			return err
		}
		m.Globals[i] = GlobalEntry{Type: gt, Init: init}
	}
	return nil
}

func (m *Module) readExportSection(r *Reader) error {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, count)
	m.Exports = make([]ExportEntry, count)
	for i := range m.Exports {
		nameLen, err := leb128.ReadVarUint32(r)
		if err != nil {
			return err
		}
		name, err := r.ReadString(int(nameLen))
		if err != nil {
			return err
		}
		if seen[name] {
			return DuplicateExportError(name)
		}
		seen[name] = true
		kind, err := readExternalKind(r)
		if err != nil {
			return err
		}
		index, err := leb128.ReadVarUint32(r)
		if err != nil {
			return err
		}
		m.Exports[i] = ExportEntry{Name: name, Kind: kind, Index: index}
	}
	return nil
}

func (m *Module) readStartSection(r *Reader) error {
	idx, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	m.Start = &idx
	return nil
}

func (m *Module) readElementSection(r *Reader) error {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	m.Elements = make([]ElementSegment, count)
	for i := range m.Elements {
		tableIdx, err := leb128.ReadVarUint32(r)
		if err != nil {
			return err
		}
		offset, err := readInitExpr(r)
		if err != nil {
			return err
		}
		n, err := leb128.ReadVarUint32(r)
		if err != nil {
			return err
		}
		funcs := make([]uint32, n)
		for j := range funcs {
			if funcs[j], err = leb128.ReadVarUint32(r); err != nil {
				return err
			}
		}
		m.Elements[i] = ElementSegment{TableIndex: tableIdx, Offset: offset, Funcs: funcs}
	}
	return nil
}

func (m *Module) readCodeSection(r *Reader) error {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	m.Code = make([]FunctionBody, count)
	for i := range m.Code {
		if m.Code[i], err = readFunctionBody(r); err != nil {
			return err
		}
	}
	return nil
}

func readFunctionBody(r *Reader) (FunctionBody, error) {
	var f FunctionBody
	bodySize, err := leb128.ReadVarUint32(r)
	if err != nil {
		return f, err
	}
	body, err := r.Slice(int(bodySize))
	if err != nil {
		return f, err
	}
	localCount, err := leb128.ReadVarUint32(body)
	if err != nil {
		return f, err
	}
	f.Locals = make([]LocalEntry, localCount)
	for i := range f.Locals {
		n, err := leb128.ReadVarUint32(body)
		if err != nil {
			return f, err
		}
		vt, err := readValueType(body)
		if err != nil {
			return f, err
		}
		f.Locals[i] = LocalEntry{Count: n, Type: vt}
	}
	code := body.Bytes()[body.Pos():]
	if len(code) == 0 || code[len(code)-1] != OpEnd {
		return f, ErrFunctionBodyNoEnd
	}
	f.Code = code
	return f, nil
}

func (m *Module) readDataSection(r *Reader) error {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	m.Data = make([]DataSegment, count)
	for i := range m.Data {
		memIdx, err := leb128.ReadVarUint32(r)
		if err != nil {
			return err
		}
		offset, err := readInitExpr(r)
		if err != nil {
			return err
		}
		size, err := leb128.ReadVarUint32(r)
		if err != nil {
			return err
		}
		data, err := r.ReadBytes(int(size))
		if err != nil {
			return err
		}
		m.Data[i] = DataSegment{MemIndex: memIdx, Offset: offset, Data: data}
	}
	return nil
}
