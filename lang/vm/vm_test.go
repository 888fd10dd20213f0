package vm_test

import (
	"bytes"
	"context"
	"strconv"
	"testing"

	"github.com/mna/iii/lang/compiler"
	"github.com/mna/iii/lang/vm"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, src string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	v := vm.New(vm.DefaultConfig(), &out)
	_, err := compiler.Interpret(context.Background(), v, src)
	return out.String(), err
}

func TestArithmeticPrecedence(t *testing.T) {
	out, err := run(t, `print(1 + 2 * 3);`)
	require.NoError(t, err)
	require.Equal(t, "7\n", out)
}

func TestStringConcatenationAndInterning(t *testing.T) {
	out, err := run(t, `
		var a = "foo" + "bar";
		var b = "foobar";
		print(a == b);
	`)
	require.NoError(t, err)
	require.Equal(t, "true\n", out)
}

func TestClosureCapturesAndClosesOverCounter(t *testing.T) {
	out, err := run(t, `
		fn makeCounter() {
			var count = 0;
			fn inc() {
				count = count + 1;
				return count;
			}
			return inc;
		}
		var counter = makeCounter();
		print(counter());
		print(counter());
		print(counter());
	`)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestTwoClosuresShareUpvalue(t *testing.T) {
	out, err := run(t, `
		fn outer() {
			var shared = 10;
			fn getIt() { return shared; }
			fn setIt(v) { shared = v; }
			setIt(99);
			return getIt();
		}
		print(outer());
	`)
	require.NoError(t, err)
	require.Equal(t, "99\n", out)
}

func TestClassInitAndMethod(t *testing.T) {
	out, err := run(t, `
		class Greeter {
			init(name) {
				this.name = name;
			}
			greet() {
				return "hi " + this.name;
			}
		}
		var g = Greeter("ada");
		print(g.greet());
	`)
	require.NoError(t, err)
	require.Equal(t, "hi ada\n", out)
}

func TestSuperclassMethodDispatch(t *testing.T) {
	out, err := run(t, `
		class Animal {
			speak() {
				return "...";
			}
			describe() {
				return "an animal that says " + this.speak();
			}
		}
		class Dog < Animal {
			speak() {
				return "woof";
			}
			describe() {
				return super.describe() + "!";
			}
		}
		print(Dog().describe());
	`)
	require.NoError(t, err)
	require.Equal(t, "an animal that says woof!\n", out)
}

func TestRuntimeErrorIncludesStackTrace(t *testing.T) {
	_, err := run(t, `
		fn a() { return b(); }
		fn b() { return 1 + nil; }
		a();
	`)
	require.Error(t, err)
	re, ok := err.(*vm.RuntimeError)
	require.True(t, ok)
	require.Len(t, re.Trace, 3) // b, a, script
	require.Equal(t, "b", re.Trace[0].FunctionName)
	require.Equal(t, "a", re.Trace[1].FunctionName)
	require.Equal(t, "", re.Trace[2].FunctionName)
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, err := run(t, `print(doesNotExist);`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "undefined variable")
}

func TestClockNativeReturnsNumber(t *testing.T) {
	out, err := run(t, `print(clock() >= 0);`)
	require.NoError(t, err)
	require.Equal(t, "true\n", out)
}

func TestLenNativeReturnsStringLength(t *testing.T) {
	out, err := run(t, `print(len("hello"));`)
	require.NoError(t, err)
	require.Equal(t, "5\n", out)
}

func TestLenNativeOfNonStringIsNil(t *testing.T) {
	out, err := run(t, `print(len(123));`)
	require.NoError(t, err)
	require.Equal(t, "nil\n", out)
}

func TestPowerOperatorIsRightAssociative(t *testing.T) {
	out, err := run(t, `print(2 ** 3 ** 2);`) // 2 ** (3 ** 2) == 2 ** 9 == 512
	require.NoError(t, err)
	require.Equal(t, "512\n", out)
}

// TestManyLocalsCompileAndRun exercises more than 256 locals in one scope,
// which would overflow a one-byte slot operand.
func TestManyLocalsCompileAndRun(t *testing.T) {
	var b bytes.Buffer
	b.WriteString("{\n")
	for i := 0; i < 300; i++ {
		b.WriteString("var v" + strconv.Itoa(i) + " = " + strconv.Itoa(i) + ";\n")
	}
	b.WriteString("print(v299);\n}\n")
	out, err := run(t, b.String())
	require.NoError(t, err)
	require.Equal(t, "299\n", out)
}

func TestCompileErrorDoesNotRun(t *testing.T) {
	_, err := run(t, `var = 1;`)
	require.Error(t, err)
	_, ok := err.(*vm.CompileError)
	require.True(t, ok)
}
