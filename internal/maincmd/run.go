package maincmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/mna/iii/lang/compiler"
	"github.com/mna/iii/lang/vm"
	"github.com/mna/mainer"
)

// runREPL reads one line at a time from stdio.Stdin, compiling and running
// each against a single persistent VM so top-level variables, functions
// and classes declared on one line remain visible on the next (spec §6).
func runREPL(ctx context.Context, stdio mainer.Stdio, cfg vm.Config) error {
	v := vm.New(cfg, stdio.Stdout)
	scan := bufio.NewScanner(stdio.Stdin)
	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !scan.Scan() {
			fmt.Fprintln(stdio.Stdout)
			return nil
		}
		line := scan.Text()
		if line == "" {
			continue
		}
		if _, err := compiler.Interpret(ctx, v, line); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
		}
	}
}

// runFile compiles and runs the source at path against a fresh VM,
// returning a non-nil error (after printing it) on either a compile or a
// runtime failure, so Main can translate that into exit code 1.
func runFile(ctx context.Context, stdio mainer.Stdio, cfg vm.Config, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	v := vm.New(cfg, stdio.Stdout)
	if _, err := compiler.Interpret(ctx, v, string(src)); err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	return nil
}

// disasmFile compiles the source at path and prints the disassembly of
// its top-level script, and of every function and method nested anywhere
// within it, to stdio.Stdout. It never runs the program.
func disasmFile(stdio mainer.Stdio, cfg vm.Config, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	v := vm.New(cfg, stdio.Stdout)
	fn, err := compiler.Compile(v, string(src))
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	disassembleRecursive(stdio, fn, "<script>")
	return nil
}

func disassembleRecursive(stdio mainer.Stdio, fn *vm.ObjFunction, name string) {
	fmt.Fprint(stdio.Stdout, compiler.Disassemble(fn, name))
	for _, c := range fn.Chunk.Constants {
		if nested, ok := c.AsObjIfFunction(); ok {
			nestedName := "<anonymous>"
			if nested.Name != nil {
				nestedName = nested.Name.String()
			}
			disassembleRecursive(stdio, nested, nestedName)
		}
	}
}
