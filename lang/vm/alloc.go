package vm

import "unsafe"

// approxSize estimates an object's footprint for GC accounting purposes.
// clox tracks exact malloc'd bytes; Go gives us no equivalent hook, so this
// is a rough per-kind estimate good enough to drive the same
// allocate-until-threshold trigger shape (spec §4.4).
func approxSize(o Obj) int {
	switch v := o.(type) {
	case *ObjString:
		return int(unsafe.Sizeof(*v)) + len(v.chars)
	case *ObjFunction:
		return int(unsafe.Sizeof(*v)) + len(v.Chunk.Code) + len(v.Chunk.Constants)*int(unsafe.Sizeof(Value{}))
	case *ObjClosure:
		return int(unsafe.Sizeof(*v)) + len(v.Upvalues)*int(unsafe.Sizeof(uintptr(0)))
	default:
		return 64
	}
}

// track charges a freshly built object's estimated size against
// bytesAllocated, runs a collection if the threshold has been crossed, and
// then links the object onto the VM's allocation list (after the
// collection, so the not-yet-rooted object is not swept by it). Every newX
// constructor below funnels through this so no heap object escapes GC
// accounting.
func (vm *VM) track(o Obj) {
	vm.bytesAllocated += approxSize(o)
	if vm.bytesAllocated > vm.nextGC {
		vm.collectGarbage()
	}
	o.header().next = vm.objects
	vm.objects = o
}

// InternString returns the canonical *ObjString for s, allocating and
// interning a new one only if an equal string isn't already interned,
// grounded on original_source/src/object.c's copyString/takeString.
func (vm *VM) InternString(s string) *ObjString {
	hash := fnvHash(s)
	if existing := vm.strings.FindString(s, hash); existing != nil {
		return existing
	}
	str := &ObjString{chars: s, hash: hash}
	vm.track(str)
	vm.push(Object(str))
	vm.strings.Set(str, Nil)
	vm.pop()
	return str
}

func (vm *VM) NewFunction() *ObjFunction {
	fn := &ObjFunction{}
	vm.track(fn)
	return fn
}

func (vm *VM) newNative(name string, fn NativeFn) *ObjNative {
	n := &ObjNative{Name: name, Fn: fn}
	vm.track(n)
	return n
}

func (vm *VM) newClosure(fn *ObjFunction) *ObjClosure {
	c := &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
	vm.track(c)
	return c
}

func (vm *VM) newUpvalue(slot *Value) *ObjUpvalue {
	u := &ObjUpvalue{Location: slot}
	vm.track(u)
	return u
}

func (vm *VM) newClass(name *ObjString) *ObjClass {
	c := &ObjClass{Name: name}
	vm.track(c)
	return c
}

func (vm *VM) newInstance(class *ObjClass) *ObjInstance {
	i := &ObjInstance{Class: class}
	vm.track(i)
	return i
}

func (vm *VM) newBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	b := &ObjBoundMethod{Receiver: receiver, Method: method}
	vm.track(b)
	return b
}
