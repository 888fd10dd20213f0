package vm

import (
	"context"
	"fmt"
	"io"
	"math"
)

// VM executes compiled bytecode. It owns the value stack, the call-frame
// stack, the open-upvalue chain, the globals table, the string intern
// table and the GC's allocation list — the single mutable state a running
// program touches (spec §4.3). A VM is not safe for concurrent use; like
// the teacher's machine.Thread, ownership is documented, not enforced
// (spec §5).
type VM struct {
	stack      []Value
	stackTop   int
	frames     []callFrame
	frameCount int

	openUpvalues *ObjUpvalue
	globals      Table
	strings      Table

	objects        Obj
	bytesAllocated int
	nextGC         int
	grayStack      []Obj
	compilerRoots  []*ObjFunction

	initString *ObjString
	config     Config
	stdout     io.Writer

	steps    int
	maxSteps int // not read: run enforces no step limit, it only checks ctx.Done() every stepCheckInterval instructions
}

const stepCheckInterval = 1024

// New constructs a VM ready to run programs, wiring the natives spec §4.3
// requires (clock, print) plus len and exit, restored from
// original_source/src/vm.c's initVM, exactly as defineNative does there.
func New(cfg Config, stdout io.Writer) *VM {
	vm := &VM{
		stack:  make([]Value, cfg.StackCapacity),
		frames: make([]callFrame, cfg.FrameCapacity),
		config: cfg,
		stdout: stdout,
		nextGC: cfg.InitialGCThreshold,
	}
	vm.initString = vm.InternString("init")
	vm.defineNative("clock", nativeClock)
	vm.defineNative("print", vm.nativePrint)
	vm.defineNative("len", nativeLen)
	vm.defineNative("exit", nativeExit)
	return vm
}

func (vm *VM) defineNative(name string, fn NativeFn) {
	// Root the name and the native object across the two allocations below:
	// both can trigger a GC, and until they're installed in globals neither
	// is reachable from any other root.
	nameObj := vm.InternString(name)
	vm.push(Object(nameObj))
	native := vm.newNative(name, fn)
	vm.push(Object(native))
	vm.globals.Set(nameObj, vm.stack[1])
	vm.pop()
	vm.pop()
}

func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// runtimeErrorf builds a RuntimeError carrying the current call stack
// trace and resets the VM's stack so a REPL can continue after it (spec
// §4.3's error-recovery behavior).
func (vm *VM) runtimeErrorf(format string, args ...interface{}) *RuntimeError {
	err := &RuntimeError{Message: fmt.Sprintf(format, args...)}
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		name := ""
		if f.function().Name != nil {
			name = f.function().Name.chars
		}
		err.Trace = append(err.Trace, StackFrame{FunctionName: name, Line: f.line()})
	}
	vm.resetStack()
	return err
}

// Run executes fn as the top-level script, driving the dispatch loop to
// completion or until a runtime error or context cancellation interrupts
// it (spec §4.3). fn is normally produced by lang/compiler.Compile.
func (vm *VM) Run(ctx context.Context, fn *ObjFunction) (InterpretResult, error) {
	vm.resetStack()
	closure := vm.newClosure(fn)
	vm.push(Object(closure))
	if err := vm.call(closure, 0); err != nil {
		return InterpretRuntimeError, err
	}
	return vm.run(ctx)
}

func (vm *VM) run(ctx context.Context) (InterpretResult, error) {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.function().Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readU16 := func() uint16 {
		v := frame.function().Chunk.ReadU16(frame.ip)
		frame.ip += 2
		return v
	}
	readConstant := func() Value {
		return frame.function().Chunk.Constants[readU16()]
	}
	readString := func() *ObjString {
		return readConstant().AsString()
	}

	for {
		vm.steps++
		if vm.steps%stepCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return InterpretRuntimeError, vm.runtimeErrorf("interrupted: %v", ctx.Err())
			default:
			}
		}

		op := OpCode(readByte())
		switch op {
		case OpConstant:
			vm.push(readConstant())

		case OpNil:
			vm.push(Nil)
		case OpTrue:
			vm.push(Bool(true))
		case OpFalse:
			vm.push(Bool(false))
		case OpPop:
			vm.pop()

		case OpGetLocal:
			vm.push(vm.stack[frame.slotsBase+int(readU16())])
		case OpSetLocal:
			vm.stack[frame.slotsBase+int(readU16())] = vm.peek(0)

		case OpGetGlobal:
			name := readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return InterpretRuntimeError, vm.runtimeErrorf("undefined variable '%s'", name.chars)
			}
			vm.push(v)
		case OpDefineGlobal:
			name := readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case OpSetGlobal:
			name := readString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return InterpretRuntimeError, vm.runtimeErrorf("undefined variable '%s'", name.chars)
			}

		case OpGetUpvalue:
			vm.push(*frame.closure.Upvalues[readU16()].Location)
		case OpSetUpvalue:
			*frame.closure.Upvalues[readU16()].Location = vm.peek(0)
		case OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case OpGetProperty:
			if !vm.peek(0).IsObj() {
				return InterpretRuntimeError, vm.runtimeErrorf("only instances have properties")
			}
			inst, ok := vm.peek(0).AsObj().(*ObjInstance)
			if !ok {
				return InterpretRuntimeError, vm.runtimeErrorf("only instances have properties")
			}
			name := readString()
			if v, ok := inst.Fields.Get(name); ok {
				vm.pop()
				vm.push(v)
				break
			}
			if err := vm.bindMethod(inst.Class, name); err != nil {
				return InterpretRuntimeError, err
			}
		case OpSetProperty:
			inst, ok := vm.peek(1).AsObj().(*ObjInstance)
			if !ok {
				return InterpretRuntimeError, vm.runtimeErrorf("only instances have fields")
			}
			name := readString()
			inst.Fields.Set(name, vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)
		case OpGetSuper:
			name := readString()
			superclass := vm.pop().AsObj().(*ObjClass)
			if err := vm.bindMethod(superclass, name); err != nil {
				return InterpretRuntimeError, err
			}

		case OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(Equal(a, b)))
		case OpGreater:
			if err := vm.binaryNumberOp(func(a, b float64) Value { return Bool(a > b) }); err != nil {
				return InterpretRuntimeError, err
			}
		case OpLess:
			if err := vm.binaryNumberOp(func(a, b float64) Value { return Bool(a < b) }); err != nil {
				return InterpretRuntimeError, err
			}

		case OpAdd:
			if err := vm.add(); err != nil {
				return InterpretRuntimeError, err
			}
		case OpSubtract:
			if err := vm.binaryNumberOp(func(a, b float64) Value { return Number(a - b) }); err != nil {
				return InterpretRuntimeError, err
			}
		case OpMultiply:
			if err := vm.binaryNumberOp(func(a, b float64) Value { return Number(a * b) }); err != nil {
				return InterpretRuntimeError, err
			}
		case OpDivide:
			if err := vm.binaryNumberOp(func(a, b float64) Value { return Number(a / b) }); err != nil {
				return InterpretRuntimeError, err
			}
		case OpPower:
			if err := vm.binaryNumberOp(func(a, b float64) Value { return Number(math.Pow(a, b)) }); err != nil {
				return InterpretRuntimeError, err
			}
		case OpNot:
			vm.push(Bool(!vm.pop().Truthy()))
		case OpNegate:
			if !vm.peek(0).IsNumber() {
				return InterpretRuntimeError, vm.runtimeErrorf("operand must be a number")
			}
			vm.push(Number(-vm.pop().AsNumber()))

		case OpJump:
			offset := readU16()
			frame.ip += int(offset)
		case OpJumpIfFalse:
			offset := readU16()
			if !vm.peek(0).Truthy() {
				frame.ip += int(offset)
			}
		case OpLoop:
			offset := readU16()
			frame.ip -= int(offset)

		case OpCall:
			argCount := int(readByte())
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return InterpretRuntimeError, err
			}
			frame = &vm.frames[vm.frameCount-1]
		case OpInvoke:
			method := readString()
			argCount := int(readByte())
			if err := vm.invoke(method, argCount); err != nil {
				return InterpretRuntimeError, err
			}
			frame = &vm.frames[vm.frameCount-1]
		case OpSuperInvoke:
			method := readString()
			argCount := int(readByte())
			superclass := vm.pop().AsObj().(*ObjClass)
			if err := vm.invokeFromClass(superclass, method, argCount); err != nil {
				return InterpretRuntimeError, err
			}
			frame = &vm.frames[vm.frameCount-1]

		case OpClosure:
			fn := readConstant().AsObj().(*ObjFunction)
			closure := vm.newClosure(fn)
			vm.push(Object(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := readU16()
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slotsBase + int(index))
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}

		case OpClass:
			vm.push(Object(vm.newClass(readString())))
		case OpInherit:
			superVal := vm.peek(1)
			superclass, ok := superVal.AsObj().(*ObjClass)
			if !superVal.IsObj() || !ok {
				return InterpretRuntimeError, vm.runtimeErrorf("superclass must be a class")
			}
			subclass := vm.peek(0).AsObj().(*ObjClass)
			subclass.Methods.AddAll(&superclass.Methods)
			vm.pop() // subclass
		case OpMethod:
			vm.defineMethod(readString())

		case OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slotsBase)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return InterpretOk, nil
			}
			vm.stackTop = frame.slotsBase
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		default:
			return InterpretRuntimeError, vm.runtimeErrorf("unknown opcode %d", op)
		}
	}
}

func (vm *VM) binaryNumberOp(op func(a, b float64) Value) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeErrorf("operands must be numbers")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(op(a, b))
	return nil
}

// add implements spec §4.3's overloaded '+': numeric addition, or string
// concatenation when both operands are strings.
func (vm *VM) add() error {
	if vm.peek(0).IsString() && vm.peek(1).IsString() {
		b := vm.pop().AsString()
		a := vm.pop().AsString()
		// The concatenation is a plain Go string, not a heap object, so there
		// is no intermediate allocation to root: InternString probes the
		// intern table first and allocates a new ObjString only if needed.
		vm.push(Object(vm.InternString(a.chars + b.chars)))
		return nil
	}
	if vm.peek(0).IsNumber() && vm.peek(1).IsNumber() {
		b := vm.pop().AsNumber()
		a := vm.pop().AsNumber()
		vm.push(Number(a + b))
		return nil
	}
	return vm.runtimeErrorf("operands must be two numbers or two strings")
}

func (vm *VM) callValue(callee Value, argCount int) error {
	if callee.IsObj() {
		switch obj := callee.AsObj().(type) {
		case *ObjClosure:
			return vm.call(obj, argCount)
		case *ObjNative:
			args := vm.stack[vm.stackTop-argCount : vm.stackTop]
			result, err := obj.Fn(args)
			if err != nil {
				return vm.runtimeErrorf("%s", err.Error())
			}
			vm.stackTop -= argCount + 1
			vm.push(result)
			return nil
		case *ObjClass:
			inst := vm.newInstance(obj)
			vm.stack[vm.stackTop-argCount-1] = Object(inst)
			if initializer, ok := obj.Methods.Get(vm.initString); ok {
				return vm.call(initializer.AsObj().(*ObjClosure), argCount)
			}
			if argCount != 0 {
				return vm.runtimeErrorf("expected 0 arguments but got %d", argCount)
			}
			return nil
		case *ObjBoundMethod:
			vm.stack[vm.stackTop-argCount-1] = obj.Receiver
			return vm.call(obj.Method, argCount)
		}
	}
	return vm.runtimeErrorf("can only call functions and classes")
}

func (vm *VM) call(closure *ObjClosure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeErrorf("expected %d arguments but got %d", closure.Function.Arity, argCount)
	}
	if vm.frameCount == len(vm.frames) {
		return vm.runtimeErrorf("stack overflow")
	}
	vm.frames[vm.frameCount] = callFrame{
		closure:   closure,
		slotsBase: vm.stackTop - argCount - 1,
	}
	vm.frameCount++
	return nil
}

func (vm *VM) invoke(name *ObjString, argCount int) error {
	receiver := vm.peek(argCount)
	inst, ok := receiver.AsObj().(*ObjInstance)
	if !receiver.IsObj() || !ok {
		return vm.runtimeErrorf("only instances have methods")
	}
	if v, ok := inst.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = v
		return vm.callValue(v, argCount)
	}
	return vm.invokeFromClass(inst.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *ObjClass, name *ObjString, argCount int) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeErrorf("undefined property '%s'", name.chars)
	}
	return vm.call(method.AsObj().(*ObjClosure), argCount)
}

func (vm *VM) bindMethod(class *ObjClass, name *ObjString) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeErrorf("undefined property '%s'", name.chars)
	}
	bound := vm.newBoundMethod(vm.peek(0), method.AsObj().(*ObjClosure))
	vm.pop()
	vm.push(Object(bound))
	return nil
}

func (vm *VM) defineMethod(name *ObjString) {
	method := vm.peek(0)
	class := vm.peek(1).AsObj().(*ObjClass)
	class.Methods.Set(name, method)
	vm.pop()
}

// captureUpvalue returns the open upvalue for the stack slot at index,
// reusing an existing one if the same slot is already captured. Open
// upvalues form a list ordered by descending stack address, matching
// original_source/src/vm.c's captureUpvalue.
func (vm *VM) captureUpvalue(slot int) *ObjUpvalue {
	var prev *ObjUpvalue
	cur := vm.openUpvalues
	for cur != nil && cur.slot > slot {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.slot == slot {
		return cur
	}
	created := vm.newUpvalue(&vm.stack[slot])
	created.slot = slot
	created.Next = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues "closes" every open upvalue pointing at or above stackSlot:
// each copies its slot's current value into its own storage and stops
// pointing into the stack, so it outlives the frame being popped.
func (vm *VM) closeUpvalues(stackSlot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.slot >= stackSlot {
		u := vm.openUpvalues
		u.Closed = *u.Location
		u.Location = &u.Closed
		vm.openUpvalues = u.Next
	}
}
