package vm

import "fmt"

// InterpretResult reports how a top-level Interpret call finished, mirroring
// original_source/src/vm.h's InterpretResult enum (spec §3).
type InterpretResult int

const (
	InterpretOk InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

func (r InterpretResult) String() string {
	switch r {
	case InterpretOk:
		return "ok"
	case InterpretCompileError:
		return "compile error"
	case InterpretRuntimeError:
		return "runtime error"
	default:
		return "unknown"
	}
}

// CompileError reports one or more errors found while scanning or compiling
// source. The compiler accumulates every error it can recover from (via
// panic-mode synchronization) instead of stopping at the first one, so
// Errors may hold more than one entry.
type CompileError struct {
	Errors []CompileIssue
}

// CompileIssue is a single reported compile-time problem.
type CompileIssue struct {
	Line    int
	Message string
}

func (e *CompileIssue) String() string {
	return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
}

func (e *CompileError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].String()
	}
	s := fmt.Sprintf("%d compile errors:", len(e.Errors))
	for _, issue := range e.Errors {
		s += "\n  " + issue.String()
	}
	return s
}

// RuntimeError reports a failure raised while executing bytecode, with the
// call-stack trace captured at the point of failure (spec §4.3's error
// formatting, grounded on original_source/src/vm.c's runtimeError).
type RuntimeError struct {
	Message string
	Trace   []StackFrame
}

// StackFrame is one line of a RuntimeError's trace: the function that was
// executing and the source line of the instruction that was active.
type StackFrame struct {
	FunctionName string
	Line         int
}

func (e *RuntimeError) Error() string {
	s := e.Message
	for _, f := range e.Trace {
		name := f.FunctionName
		if name == "" {
			name = "script"
		} else {
			name += "()"
		}
		s += fmt.Sprintf("\n[line %d] in %s", f.Line, name)
	}
	return s
}
