package compiler_test

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/iii/internal/filetest"
	"github.com/mna/iii/lang/compiler"
	"github.com/mna/iii/lang/vm"
)

var updateGolden = flag.Bool("test.update-disasm-tests", false, "update the disasm golden files")

// TestDisassembleGolden compiles every .iii fixture in testdata and checks
// its bytecode listing against the matching .want golden file, the same
// golden-file pattern the teacher's internal/filetest package was written
// for. Run with -test.update-disasm-tests to regenerate the golden files
// after an intentional instruction-format change.
func TestDisassembleGolden(t *testing.T) {
	const dir = "testdata"
	for _, fi := range filetest.SourceFiles(t, dir, ".iii") {
		fi := fi
		t.Run(fi.Name(), func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join(dir, fi.Name()))
			if err != nil {
				t.Fatal(err)
			}

			v := vm.New(vm.DefaultConfig(), nil)
			fn, err := compiler.Compile(v, string(src))
			if err != nil {
				t.Fatal(err)
			}

			out := compiler.Disassemble(fn, "script")
			filetest.DiffOutput(t, fi, out, dir, updateGolden)
		})
	}
}
