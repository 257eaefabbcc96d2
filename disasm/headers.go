// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package disasm

import (
	"fmt"
	"io"

	wbinary "github.com/wasmkernel/wasmkernel/binary"
)

// Headers writes a one-line-per-section summary of mod, in the style
// of original_source/src/dumper.rs's HeaderDumper delegate (itself
// modeled on wasm-objdump -h).
func Headers(w io.Writer, mod *wbinary.Module) {
	fmt.Fprintln(w, "Sections:")
	fmt.Fprintln(w)
	section := func(name string, count int) {
		if count > 0 {
			fmt.Fprintf(w, "%9s count: %d\n", name, count)
		}
	}
	section("Type", len(mod.Types))
	section("Import", len(mod.Imports))
	section("Function", len(mod.Funcs))
	section("Table", len(mod.Tables))
	section("Memory", len(mod.Mems))
	section("Global", len(mod.Globals))
	section("Export", len(mod.Exports))
	if mod.Start != nil {
		fmt.Fprintf(w, "%9s index: %d\n", "Start", *mod.Start)
	}
	section("Elem", len(mod.Elements))
	section("Code", len(mod.Code))
	section("Data", len(mod.Data))
	section("Custom", len(mod.Custom))
}

// Details writes a wasm-objdump --details-style expansion of every
// section entry in mod, matching original_source/src/dumper.rs's
// DetailsDumper delegate field-for-field where the two formats carry
// the same information (type signatures, tables/memories' limits,
// global types and mutability, exports/imports, data segments). Global
// initializer expressions are not printed.
func Details(w io.Writer, mod *wbinary.Module) {
	if len(mod.Types) > 0 {
		fmt.Fprintln(w, "Type:")
		for i, t := range mod.Types {
			fmt.Fprintf(w, " - type[%d] %s\n", i, t)
		}
	}
	if len(mod.Imports) > 0 {
		fmt.Fprintln(w, "Import:")
		for _, imp := range mod.Imports {
			fmt.Fprintf(w, " - %s[%s.%s]\n", imp.Kind, imp.Module, imp.Field)
		}
	}
	if len(mod.Funcs) > 0 {
		fmt.Fprintln(w, "Function:")
		for i, sigIdx := range mod.Funcs {
			fmt.Fprintf(w, " - func[%d] sig=%d\n", i, sigIdx)
		}
	}
	for i, t := range mod.Tables {
		fmt.Fprintf(w, " - table[%d] type=%s initial=%d", i, t.ElementType, t.Limits.Initial)
		if t.Limits.HasMax() {
			fmt.Fprintf(w, " maximum=%d", t.Limits.Maximum)
		}
		fmt.Fprintln(w)
	}
	for i, m := range mod.Mems {
		fmt.Fprintf(w, " - memory[%d] pages: initial=%d", i, m.Limits.Initial)
		if m.Limits.HasMax() {
			fmt.Fprintf(w, " maximum=%d", m.Limits.Maximum)
		}
		fmt.Fprintln(w)
	}
	if len(mod.Globals) > 0 {
		fmt.Fprintln(w, "Global:")
		for i, g := range mod.Globals {
			fmt.Fprintf(w, " - global[%d] %s mutable=%v\n", i, g.Type.Type, g.Type.Mutable)
		}
	}
	if len(mod.Exports) > 0 {
		fmt.Fprintln(w, "Export:")
		for _, e := range mod.Exports {
			fmt.Fprintf(w, " - %s[%d] -> %q\n", e.Kind, e.Index, e.Name)
		}
	}
	if mod.Start != nil {
		fmt.Fprintf(w, " - start function: %d\n", *mod.Start)
	}
	if len(mod.Elements) > 0 {
		fmt.Fprintln(w, "Elem:")
		for i, seg := range mod.Elements {
			fmt.Fprintf(w, " - segment[%d] table=%d funcs=%v\n", i, seg.TableIndex, seg.Funcs)
		}
	}
	if len(mod.Data) > 0 {
		fmt.Fprintln(w, "Data:")
		for i, seg := range mod.Data {
			fmt.Fprintf(w, " - segment[%d] size=%d\n", i, len(seg.Data))
		}
	}
}
