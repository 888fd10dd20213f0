package vm

import (
	"fmt"
)

// ObjType discriminates the concrete heap object kinds named in spec §3:
// String, Function, Native, Closure, Upvalue, Class, Instance, BoundMethod.
type ObjType uint8

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeNative
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeClass
	ObjTypeInstance
	ObjTypeBoundMethod
)

func (t ObjType) String() string {
	switch t {
	case ObjTypeString:
		return "string"
	case ObjTypeFunction:
		return "function"
	case ObjTypeNative:
		return "native function"
	case ObjTypeClosure:
		return "closure"
	case ObjTypeUpvalue:
		return "upvalue"
	case ObjTypeClass:
		return "class"
	case ObjTypeInstance:
		return "instance"
	case ObjTypeBoundMethod:
		return "bound method"
	default:
		return "unknown object"
	}
}

// Obj is the common interface every heap-allocated value implements. Every
// concrete type embeds objHeader, which carries the GC's mark bit and the
// intrusive next-object link used to walk every live allocation during
// sweep (spec §4.4, grounded on original_source/src/object.h's Obj struct).
type Obj interface {
	fmt.Stringer
	objType() ObjType
	header() *objHeader
}

// objHeader is embedded in every object kind, mirroring clox's struct Obj:
// a mark bit for the tracing collector and an intrusive singly-linked list
// pointer threading every allocation the VM owns. The type tag is not
// stored here; each kind reports it through its objType method.
type objHeader struct {
	isMarked bool
	next     Obj
}

func (h *objHeader) header() *objHeader { return h }

// ObjString is an interned, immutable byte string. chars is the canonical
// backing storage; hash is precomputed at construction (FNV-1a, matching
// original_source/src/object.c's hashString) so table lookups never rehash.
type ObjString struct {
	objHeader
	chars string
	hash  uint32
}

func (s *ObjString) objType() ObjType { return ObjTypeString }
func (s *ObjString) String() string   { return s.chars }

// ObjFunction is a compiled function prototype: its arity, its owned Chunk
// of bytecode, the count of upvalues its closures must capture, and a name
// for stack traces (the top-level script's Name is empty).
type ObjFunction struct {
	objHeader
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *ObjString
}

func (f *ObjFunction) objType() ObjType { return ObjTypeFunction }
func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.chars)
}

// NativeFn is the Go implementation of a native function, registered with
// defineNative (spec §4.3). It receives its argument slice and reports
// either a result or a runtime error message.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a Go-implemented function so it can be called like any
// other iii value.
type ObjNative struct {
	objHeader
	Name string
	Fn   NativeFn
}

func (n *ObjNative) objType() ObjType { return ObjTypeNative }
func (n *ObjNative) String() string   { return fmt.Sprintf("<native fn %s>", n.Name) }

// ObjUpvalue is a reference cell shared between a closure and the stack
// slot it closed over. While the upvalue is "open", Location points at a
// live stack slot. closeUpvalues copies the slot's value into Closed and
// repoints Location at it, matching original_source/src/vm.c.
type ObjUpvalue struct {
	objHeader
	Location *Value
	Closed   Value
	Next     *ObjUpvalue // next open upvalue, ordered by descending stack depth
	slot     int         // index into the VM's stack while open; meaningless once closed
}

func (u *ObjUpvalue) objType() ObjType { return ObjTypeUpvalue }
func (u *ObjUpvalue) String() string   { return "upvalue" }

// ObjClosure pairs a compiled function with the upvalues its body captured
// from enclosing scopes.
type ObjClosure struct {
	objHeader
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) objType() ObjType { return ObjTypeClosure }
func (c *ObjClosure) String() string   { return c.Function.String() }

// ObjClass is a class: its name and its method table, keyed by interned
// method name to closure value. Inherit (spec §4.3) copies the
// superclass's table into the subclass's table at class-declaration time,
// so method lookup never walks an inheritance chain at call time.
type ObjClass struct {
	objHeader
	Name    *ObjString
	Methods Table
}

func (c *ObjClass) objType() ObjType { return ObjTypeClass }
func (c *ObjClass) String() string   { return c.Name.chars }

// ObjInstance is an instance of a class: a back-pointer to its class and
// its own field table, keyed by interned field name.
type ObjInstance struct {
	objHeader
	Class  *ObjClass
	Fields Table
}

func (i *ObjInstance) objType() ObjType { return ObjTypeInstance }
func (i *ObjInstance) String() string   { return i.Class.Name.chars + " instance" }

// ObjBoundMethod pairs a receiver instance with one of its class's
// closures, produced by property-get when the accessed name resolves to a
// method rather than a field (spec §4.3).
type ObjBoundMethod struct {
	objHeader
	Receiver Value
	Method   *ObjClosure
}

func (b *ObjBoundMethod) objType() ObjType { return ObjTypeBoundMethod }
func (b *ObjBoundMethod) String() string   { return b.Method.String() }

func fnvHash(s string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return hash
}
