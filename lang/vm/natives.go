package vm

import (
	"fmt"
	"os"
	"time"
)

// nativeClock implements clock()->number (spec §4.3), returning the number
// of seconds elapsed since the Unix epoch as a float, the same shape as
// original_source/src/vm.c's clockNative.
func nativeClock(args []Value) (Value, error) {
	if len(args) != 0 {
		return Nil, fmt.Errorf("expected 0 arguments but got %d", len(args))
	}
	return Number(float64(time.Now().UnixNano()) / 1e9), nil
}

// nativePrint implements print(value)->nil, writing value's string form
// followed by a newline to the VM's configured stdout.
func (vm *VM) nativePrint(args []Value) (Value, error) {
	if len(args) != 1 {
		return Nil, fmt.Errorf("expected 1 argument but got %d", len(args))
	}
	fmt.Fprintln(vm.stdout, args[0].String())
	return Nil, nil
}

// nativeLen implements len(value)->number, returning a string's length in
// bytes, or nil for anything else — the same permissive shape as
// original_source/src/vm.c's lenNative, whose comment notes arrays and
// tables as a future extension to the single-argument check that never
// landed in the original either.
func nativeLen(args []Value) (Value, error) {
	if len(args) == 1 && args[0].IsString() {
		return Number(float64(len(args[0].AsString().chars))), nil
	}
	return Nil, nil
}

// nativeExit implements exit(code)->! , terminating the process immediately
// with code, or 0 if no argument is given, mirroring
// original_source/src/vm.c's exitNative.
func nativeExit(args []Value) (Value, error) {
	code := 0
	if len(args) == 1 && args[0].IsNumber() {
		code = int(args[0].AsNumber())
	}
	os.Exit(code)
	return Nil, nil
}
