package vm

// collectGarbage runs one full tracing mark-sweep cycle: mark every root,
// transitively blacken the gray worklist, drop intern-table entries for
// strings that didn't survive, then sweep the allocation list (spec §4.4,
// grounded directly on original_source/src/memory.c's collectGarbage).
func (vm *VM) collectGarbage() {
	vm.markRoots()
	vm.traceReferences()
	vm.strings.removeWhite()
	vm.sweep()
	vm.nextGC = int(float64(vm.bytesAllocated) * vm.config.GCGrowthFactor)
	if vm.nextGC < vm.config.InitialGCThreshold {
		vm.nextGC = vm.config.InitialGCThreshold
	}
}

func (vm *VM) markRoots() {
	for i := 0; i < vm.stackTop; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].closure)
	}
	for u := vm.openUpvalues; u != nil; u = u.Next {
		vm.markObject(u)
	}
	vm.markTable(&vm.globals)
	for _, fn := range vm.compilerRoots {
		vm.markObject(fn)
	}
	if vm.initString != nil {
		vm.markObject(vm.initString)
	}
}

func (vm *VM) markValue(v Value) {
	if v.IsObj() {
		vm.markObject(v.AsObj())
	}
}

func (vm *VM) markObject(o Obj) {
	if o == nil {
		return
	}
	h := o.header()
	if h.isMarked {
		return
	}
	h.isMarked = true
	vm.grayStack = append(vm.grayStack, o)
}

func (vm *VM) markTable(t *Table) {
	t.each(func(key *ObjString, value Value) {
		vm.markObject(key)
		vm.markValue(value)
	})
}

// traceReferences drains the gray worklist, blackening each object by
// marking everything it points to, until no gray objects remain. The
// worklist is a plain Go slice rather than a GC-tracked allocation:
// original_source/src/memory.c explicitly allocates it with the system
// allocator outside the tracked heap to avoid the collector recursing into
// itself, and a bare Go slice gets the same property for free.
func (vm *VM) traceReferences() {
	for len(vm.grayStack) > 0 {
		n := len(vm.grayStack) - 1
		o := vm.grayStack[n]
		vm.grayStack = vm.grayStack[:n]
		vm.blacken(o)
	}
}

func (vm *VM) blacken(o Obj) {
	switch v := o.(type) {
	case *ObjString, *ObjNative:
		// no outgoing references
	case *ObjUpvalue:
		vm.markValue(v.Closed)
	case *ObjFunction:
		vm.markObject(v.Name)
		for _, c := range v.Chunk.Constants {
			vm.markValue(c)
		}
	case *ObjClosure:
		vm.markObject(v.Function)
		for _, u := range v.Upvalues {
			vm.markObject(u)
		}
	case *ObjClass:
		vm.markObject(v.Name)
		vm.markTable(&v.Methods)
	case *ObjInstance:
		vm.markObject(v.Class)
		vm.markTable(&v.Fields)
	case *ObjBoundMethod:
		vm.markValue(v.Receiver)
		vm.markObject(v.Method)
	}
}

// sweep walks the intrusive allocation list, unlinking and discarding every
// object that wasn't marked, and clears the mark bit on every survivor for
// the next cycle.
func (vm *VM) sweep() {
	var previous Obj
	obj := vm.objects
	for obj != nil {
		h := obj.header()
		if h.isMarked {
			h.isMarked = false
			previous = obj
			obj = h.next
			continue
		}
		unreached := obj
		obj = h.next
		if previous != nil {
			previous.header().next = obj
		} else {
			vm.objects = obj
		}
		vm.bytesAllocated -= approxSize(unreached)
	}
}

// PushCompilerRoot registers fn as a GC root for the duration of a nested
// compilation, so a collection triggered while compiling a function body
// doesn't free the enclosing function being built.
func (vm *VM) PushCompilerRoot(fn *ObjFunction) {
	vm.compilerRoots = append(vm.compilerRoots, fn)
}

func (vm *VM) PopCompilerRoot() {
	vm.compilerRoots = vm.compilerRoots[:len(vm.compilerRoots)-1]
}
