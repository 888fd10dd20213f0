// Package vm implements the iii virtual machine: the tagged value and heap
// object model, the open-addressed intern table, the tracing garbage
// collector, and the stack-based dispatch loop that executes bytecode
// produced by lang/compiler.
package vm

import "fmt"

// ValueType discriminates the tagged union held by a Value.
type ValueType uint8

const (
	ValNil ValueType = iota
	ValBool
	ValNumber
	ValObj
)

// Value is the dynamically-typed value manipulated by the compiler's
// constant pool and the VM's operand stack. It is a plain tagged union, the
// direct Go translation of clox's Value struct (spec §3) rather than a
// NaN-boxed encoding: spec §9 explicitly allows either representation
// provided equality, truthiness and printing stay consistent, and a tagged
// struct is both simpler and safe in Go (no need to reinterpret bit
// patterns across an unsafe.Pointer boundary).
type Value struct {
	typ ValueType
	b   bool
	n   float64
	o   Obj
}

// Nil is the singular nil value.
var Nil = Value{typ: ValNil}

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{typ: ValBool, b: b} }

// Number constructs a numeric Value.
func Number(n float64) Value { return Value{typ: ValNumber, n: n} }

// Object constructs a Value wrapping a heap object. Passing a nil Obj
// panics: every reference to the heap must be tagged with its type and Go
// nil cannot be safely boxed as "no object" given the interface has a
// static (non-nil) type in that case.
func Object(o Obj) Value {
	if o == nil {
		panic("vm.Object: nil Obj")
	}
	return Value{typ: ValObj, o: o}
}

func (v Value) IsNil() bool    { return v.typ == ValNil }
func (v Value) IsBool() bool   { return v.typ == ValBool }
func (v Value) IsNumber() bool { return v.typ == ValNumber }
func (v Value) IsObj() bool    { return v.typ == ValObj }

func (v Value) AsBool() bool     { return v.b }
func (v Value) AsNumber() float64 { return v.n }
func (v Value) AsObj() Obj        { return v.o }

func (v Value) IsString() bool {
	_, ok := v.o.(*ObjString)
	return v.typ == ValObj && ok
}

func (v Value) AsString() *ObjString { return v.o.(*ObjString) }

// AsObjIfFunction reports whether v holds a function prototype, used by
// the disasm CLI command to walk a chunk's constant pool for nested
// functions to disassemble.
func (v Value) AsObjIfFunction() (*ObjFunction, bool) {
	if !v.IsObj() {
		return nil, false
	}
	fn, ok := v.o.(*ObjFunction)
	return fn, ok
}

// Truthy implements spec §4.3's truthiness rule: nil and false are false,
// every other value is true.
func (v Value) Truthy() bool {
	switch v.typ {
	case ValNil:
		return false
	case ValBool:
		return v.b
	default:
		return true
	}
}

// Equal implements spec §3's value equality: structural for bool/nil/number,
// identity for heap objects (and since strings are interned, identity
// equality for strings is the same as byte equality).
func Equal(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case ValNil:
		return true
	case ValBool:
		return a.b == b.b
	case ValNumber:
		return a.n == b.n
	case ValObj:
		return a.o == b.o
	default:
		return false
	}
}

// TypeName returns the short runtime type name used in error messages.
func (v Value) TypeName() string {
	switch v.typ {
	case ValNil:
		return "nil"
	case ValBool:
		return "boolean"
	case ValNumber:
		return "number"
	case ValObj:
		return v.o.objType().String()
	default:
		return "unknown"
	}
}

func (v Value) String() string {
	switch v.typ {
	case ValNil:
		return "nil"
	case ValBool:
		if v.b {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.n)
	case ValObj:
		return v.o.String()
	default:
		return fmt.Sprintf("<invalid value type %d>", v.typ)
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}
