// Package maincmd implements the iii command-line tool: a REPL, a
// run-file mode, and a bytecode disassembler, wired through
// github.com/mna/mainer the same way the teacher's cmd/nenuphar front end
// is.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"
)

const binName = "iii"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] [<path>]
       %[1]s disasm <path>
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] [<path>]
       %[1]s disasm <path>
       %[1]s -h|--help
       %[1]s -v|--version

A bytecode compiler and virtual machine for the iii scripting language.

With no <path>, %[1]s starts an interactive REPL: each line is compiled
and run against the same persistent VM, so declarations on one line stay
visible on the next.

With a <path>, %[1]s compiles and runs the named script file.

The 'disasm' command compiles <path> and prints its bytecode
disassembly instead of running it.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.

VM tunables can be set through the environment: III_FRAME_CAP,
III_STACK_CAP, III_GC_GROWTH_FACTOR, III_GC_INITIAL_THRESHOLD.
`, binName)
)

// Cmd is the flag-tagged command structure github.com/mna/mainer parses
// argv into.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	args []string
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	switch len(c.args) {
	case 0, 1:
		return nil
	case 2:
		if c.args[0] != "disasm" {
			return fmt.Errorf("unknown command: %s", c.args[0])
		}
		return nil
	default:
		return errors.New("too many arguments")
	}
}

// Main is the entry point mainer.Parser invokes after parsing argv into a
// Cmd. It carries the full exit-code contract spec §6 describes: success,
// invalid arguments, or a compile/runtime failure.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: false, EnvPrefix: binName + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.Failure
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	cfg, err := loadVMConfig()
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid VM configuration: %s\n", err)
		return mainer.InvalidArgs
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)

	switch len(c.args) {
	case 0:
		if err := runREPL(ctx, stdio, cfg); err != nil {
			return mainer.Failure
		}
		return mainer.Success
	case 1:
		if err := runFile(ctx, stdio, cfg, c.args[0]); err != nil {
			return mainer.Failure
		}
		return mainer.Success
	case 2:
		if err := disasmFile(stdio, cfg, c.args[1]); err != nil {
			return mainer.Failure
		}
		return mainer.Success
	default:
		fmt.Fprint(stdio.Stderr, shortUsage)
		return mainer.Failure
	}
}
