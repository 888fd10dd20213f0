package vm

// callFrame is one live invocation: the closure being executed, the
// instruction pointer within its function's chunk, and the base offset
// into the VM's value stack where this call's locals begin (spec §4.3,
// grounded on original_source/src/vm.h's CallFrame).
type callFrame struct {
	closure   *ObjClosure
	ip        int
	slotsBase int
}

func (f *callFrame) function() *ObjFunction { return f.closure.Function }

func (f *callFrame) line() int {
	if f.ip == 0 {
		return f.function().Chunk.Lines[0]
	}
	return f.function().Chunk.Lines[f.ip-1]
}
