// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command wasmdump prints a wasm module's section headers, section
// details, and/or a disassembly of its compiled istream. Grounded on
// go-interpreter-wagon's cmd/wasm-dump (the -h/-x/-d flag set and the
// per-file process loop) but reimplemented against package disasm's
// istream-level output and cobra/pflag instead of wagon's disasm
// package and stdlib flag.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	wbinary "github.com/wasmkernel/wasmkernel/binary"
	"github.com/wasmkernel/wasmkernel/compile"
	"github.com/wasmkernel/wasmkernel/disasm"
)

var log = logrus.New()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		verbose     bool
		showHeaders bool
		showDetails bool
		showDisasm  bool
	)

	cmd := &cobra.Command{
		Use:   "wasmdump [flags] file1.wasm [file2.wasm ...]",
		Short: "Dump wasm module headers, details, and/or a disassembly",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
			color.NoColor = !isatty.IsTerminal(os.Stdout.Fd())

			if !showHeaders && !showDetails && !showDisasm {
				return fmt.Errorf("wasmdump: at least one of -x, -h or -d must be given")
			}

			w := cmd.OutOrStdout()
			for i, fname := range files {
				if i > 0 {
					fmt.Fprintln(w)
				}
				if err := process(w, fname, showHeaders, showDetails, showDisasm); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().Bool("help", false, "help for wasmdump")
	cmd.Flags().BoolVarP(&showHeaders, "headers", "h", false, "print section headers")
	cmd.Flags().BoolVarP(&showDetails, "details", "x", false, "print section details")
	cmd.Flags().BoolVarP(&showDisasm, "disassemble", "d", false, "disassemble the compiled istream")

	return cmd
}

func process(w io.Writer, fname string, showHeaders, showDetails, showDisasm bool) error {
	buf, err := os.ReadFile(fname)
	if err != nil {
		return fmt.Errorf("wasmdump: %w", err)
	}

	mod, err := wbinary.ReadModule(buf)
	if err != nil {
		return fmt.Errorf("wasmdump: could not parse %q: %w", fname, err)
	}

	fmt.Fprintf(w, "%s:\n\n", color.CyanString(fname))

	if showHeaders {
		disasm.Headers(w, mod)
		fmt.Fprintln(w)
	}
	if showDetails {
		disasm.Details(w, mod)
		fmt.Fprintln(w)
	}
	if showDisasm {
		prog, err := compile.Compile(mod)
		if err != nil {
			return fmt.Errorf("wasmdump: could not compile %q: %w", fname, err)
		}
		if err := disasm.Disassemble(w, prog); err != nil {
			return fmt.Errorf("wasmdump: could not disassemble %q: %w", fname, err)
		}
	}
	log.WithField("file", fname).Debug("dumped module")
	return nil
}
