package compiler

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/mna/iii/lang/vm"
	"github.com/stretchr/testify/require"
)

func compileOK(t *testing.T, src string) *vm.ObjFunction {
	t.Helper()
	v := vm.New(vm.DefaultConfig(), &bytes.Buffer{})
	fn, err := Compile(v, src)
	require.NoError(t, err)
	require.NotNil(t, fn)
	return fn
}

// disassembleAll renders fn's own chunk followed by every function nested
// anywhere in its constant pool, recursively, so tests can assert on
// instructions emitted inside a method or closure body and not just the
// enclosing script.
func disassembleAll(fn *vm.ObjFunction, name string) string {
	out := Disassemble(fn, name)
	for _, c := range fn.Chunk.Constants {
		if nested, ok := c.AsObjIfFunction(); ok {
			nestedName := "<anonymous>"
			if nested.Name != nil {
				nestedName = nested.Name.String()
			}
			out += disassembleAll(nested, nestedName)
		}
	}
	return out
}

func TestCompileSimpleExpression(t *testing.T) {
	fn := compileOK(t, "1 + 2 * 3;")
	require.Contains(t, Disassemble(fn, "test"), "MULTIPLY")
	require.Contains(t, Disassemble(fn, "test"), "ADD")
}

func TestCompileDeduplicatesConstants(t *testing.T) {
	fn := compileOK(t, `var a = "hi"; var b = "hi"; var c = 2; var d = 2;`)
	require.Len(t, fn.Chunk.Constants, 6) // "a","hi","b","c",2,"d" dedup collapses repeats
}

func TestCompileVarAndGlobals(t *testing.T) {
	fn := compileOK(t, "var x = 10; x = 20;")
	out := Disassemble(fn, "test")
	require.Contains(t, out, "DEFINE_GLOBAL")
	require.Contains(t, out, "SET_GLOBAL")
}

func TestCompileLocalsAndBlocks(t *testing.T) {
	fn := compileOK(t, "{ var x = 1; var y = x + 1; }")
	out := Disassemble(fn, "test")
	require.Contains(t, out, "GET_LOCAL")
	require.NotContains(t, out, "GET_GLOBAL")
}

func TestCompileIfElse(t *testing.T) {
	fn := compileOK(t, `if (true) { var x = 1; } else { var y = 2; }`)
	out := Disassemble(fn, "test")
	require.Contains(t, out, "JUMP_IF_FALSE")
	require.Contains(t, out, "JUMP")
}

func TestCompileWhileLoop(t *testing.T) {
	fn := compileOK(t, `var i = 0; while (i < 3) { i = i + 1; }`)
	out := Disassemble(fn, "test")
	require.Contains(t, out, "LOOP")
}

func TestCompileForLoopDesugarsToWhile(t *testing.T) {
	fn := compileOK(t, `for (var i = 0; i < 3; i = i + 1) { }`)
	out := Disassemble(fn, "test")
	require.Contains(t, out, "LOOP")
	require.Contains(t, out, "JUMP_IF_FALSE")
}

func TestCompileFunctionAndClosure(t *testing.T) {
	fn := compileOK(t, `
		fn makeCounter() {
			var count = 0;
			fn inc() {
				count = count + 1;
				return count;
			}
			return inc;
		}
	`)
	out := Disassemble(fn, "test")
	require.Contains(t, out, "CLOSURE")
}

func TestCompileClassAndMethod(t *testing.T) {
	fn := compileOK(t, `
		class Greeter {
			init(name) {
				this.name = name;
			}
			greet() {
				return this.name;
			}
		}
	`)
	out := Disassemble(fn, "test")
	require.Contains(t, out, "CLASS")
	require.Contains(t, out, "METHOD")
}

func TestCompileInheritanceAndSuper(t *testing.T) {
	fn := compileOK(t, `
		class Animal {
			speak() { return "..."; }
		}
		class Dog < Animal {
			speak() { return super.speak(); }
			speakRef() { var f = super.speak; return f; }
		}
	`)
	out := disassembleAll(fn, "test")
	require.Contains(t, out, "INHERIT")
	require.Contains(t, out, "SUPER_INVOKE")
	require.Contains(t, out, "GET_SUPER")
}

func TestCompilePowerOperator(t *testing.T) {
	fn := compileOK(t, "2 ** 3;")
	out := Disassemble(fn, "test")
	require.Contains(t, out, "POWER")
}

func TestCompileManyLocalsUseWideOperand(t *testing.T) {
	var src strings.Builder
	src.WriteString("{\n")
	for i := 0; i < 300; i++ {
		src.WriteString("var v" + strconv.Itoa(i) + " = " + strconv.Itoa(i) + ";\n")
	}
	src.WriteString("v299;\n}\n")
	fn := compileOK(t, src.String())
	out := Disassemble(fn, "test")
	require.Contains(t, out, "GET_LOCAL")
	// slot 0 is reserved, so v299 lives in slot 300
	require.Contains(t, out, " 300\n")
}

func TestCompileErrorsAccumulate(t *testing.T) {
	v := vm.New(vm.DefaultConfig(), &bytes.Buffer{})
	_, err := Compile(v, `
		var = 1;
		fn () {}
	`)
	require.Error(t, err)
	ce, ok := err.(*vm.CompileError)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(ce.Errors), 2)
}

func TestCompileInvalidAssignmentTarget(t *testing.T) {
	v := vm.New(vm.DefaultConfig(), &bytes.Buffer{})
	_, err := Compile(v, `1 + 2 = 3;`)
	require.Error(t, err)
}

func TestCompileReturnOutsideFunctionIsError(t *testing.T) {
	v := vm.New(vm.DefaultConfig(), &bytes.Buffer{})
	_, err := Compile(v, `return 1;`)
	require.Error(t, err)
}
