package compiler

import (
	"fmt"
	"strings"

	"github.com/mna/iii/lang/vm"
)

// Disassemble renders fn's own chunk as a human-readable instruction
// listing; nested function constants are shown by name only, not
// disassembled. It is written in the spirit of
// lang/compiler/asm.go's Dasm from the teacher's CFG-based compiler:
// Dasm there walked basic blocks and printed named instructions with
// resolved operands; this walks a flat byte stream instead, printing one
// line per instruction with the jump offsets resolved to absolute targets
// so the listing doesn't make the reader do address arithmetic.
func Disassemble(fn *vm.ObjFunction, name string) string {
	var b strings.Builder
	disassembleChunk(&b, &fn.Chunk, name)
	return b.String()
}

func disassembleChunk(b *strings.Builder, c *vm.Chunk, name string) {
	fmt.Fprintf(b, "== %s ==\n", name)
	offset := 0
	for offset < len(c.Code) {
		offset = disassembleInstruction(b, c, offset)
	}
}

func disassembleInstruction(b *strings.Builder, c *vm.Chunk, offset int) int {
	fmt.Fprintf(b, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		b.WriteString("   | ")
	} else {
		fmt.Fprintf(b, "%4d ", c.Lines[offset])
	}

	op := vm.OpCode(c.Code[offset])
	switch op {
	case vm.OpConstant, vm.OpGetGlobal, vm.OpSetGlobal, vm.OpDefineGlobal,
		vm.OpClass, vm.OpGetProperty, vm.OpSetProperty, vm.OpGetSuper, vm.OpMethod:
		return constantInstruction(b, op, c, offset)
	case vm.OpGetLocal, vm.OpSetLocal, vm.OpGetUpvalue, vm.OpSetUpvalue:
		return u16Instruction(b, op, c, offset)
	case vm.OpCall:
		return byteInstruction(b, op, c, offset)
	case vm.OpJump, vm.OpJumpIfFalse:
		return jumpInstruction(b, op, c, offset, 1)
	case vm.OpLoop:
		return jumpInstruction(b, op, c, offset, -1)
	case vm.OpInvoke, vm.OpSuperInvoke:
		return invokeInstruction(b, op, c, offset)
	case vm.OpClosure:
		return closureInstruction(b, c, offset)
	default:
		fmt.Fprintf(b, "%s\n", op)
		return offset + 1
	}
}

func constantInstruction(b *strings.Builder, op vm.OpCode, c *vm.Chunk, offset int) int {
	idx := c.ReadU16(offset + 1)
	fmt.Fprintf(b, "%-16s %4d '%s'\n", op, idx, c.Constants[idx])
	return offset + 3
}

func byteInstruction(b *strings.Builder, op vm.OpCode, c *vm.Chunk, offset int) int {
	fmt.Fprintf(b, "%-16s %4d\n", op, c.Code[offset+1])
	return offset + 2
}

func u16Instruction(b *strings.Builder, op vm.OpCode, c *vm.Chunk, offset int) int {
	idx := c.ReadU16(offset + 1)
	fmt.Fprintf(b, "%-16s %4d\n", op, idx)
	return offset + 3
}

func jumpInstruction(b *strings.Builder, op vm.OpCode, c *vm.Chunk, offset int, sign int) int {
	jump := int(c.ReadU16(offset + 1))
	target := offset + 3 + sign*jump
	fmt.Fprintf(b, "%-16s %4d -> %d\n", op, offset, target)
	return offset + 3
}

func invokeInstruction(b *strings.Builder, op vm.OpCode, c *vm.Chunk, offset int) int {
	idx := c.ReadU16(offset + 1)
	argCount := c.Code[offset+3]
	fmt.Fprintf(b, "%-16s (%d args) %4d '%s'\n", op, argCount, idx, c.Constants[idx])
	return offset + 4
}

func closureInstruction(b *strings.Builder, c *vm.Chunk, offset int) int {
	idx := c.ReadU16(offset + 1)
	fmt.Fprintf(b, "%-16s %4d '%s'\n", vm.OpClosure, idx, c.Constants[idx])
	offset += 3
	fn, ok := c.Constants[idx].AsObj().(*vm.ObjFunction)
	if !ok {
		return offset
	}
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := c.Code[offset]
		index := c.ReadU16(offset + 1)
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(b, "%04d      |                     %s %d\n", offset, kind, index)
		offset += 3
	}
	return offset
}
