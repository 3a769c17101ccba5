package assembler_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/coil-toolchain/assembler"
	"github.com/lookbusy1344/coil-toolchain/coil"
)

func assemble(t *testing.T, source string) *assembler.Program {
	t.Helper()
	program, err := assembler.New("test.hoil").Assemble(source)
	require.NoError(t, err)
	return program
}

func TestAssemble_DefvAllocImm(t *testing.T) {
	program := assemble(t, "VAL DEFV int64 counter 42\n")

	require.Len(t, program.Instructions, 1)
	inst := program.Instructions[0]
	assert.Equal(t, coil.OpAllocImm, inst.Opcode)
	assert.Equal(t, coil.TypeInt64, inst.Type)
	assert.Equal(t, uint16(0), inst.VarAddr)
	assert.Equal(t, uint64(42), inst.Immediate)
}

func TestAssemble_DefvAddressesAccumulateByTypeSize(t *testing.T) {
	program := assemble(t, `
VAL DEFV int8 a 1
VAL DEFV int32 b 2
VAL DEFV int64 c 3
VAL DEFV bool d true
`)

	// Each symbol's address is the sum of the sizes of those before it
	addrs := []uint16{0, 1, 5, 13}
	for i, inst := range program.Instructions {
		assert.Equal(t, addrs[i], inst.VarAddr, "record %d", i)
	}
}

func TestAssemble_DefvImmediateForms(t *testing.T) {
	program := assemble(t, `
VAL DEFV bool t true
VAL DEFV bool f false
VAL DEFV int64 n -7
VAL DEFV int64 r id12
`)

	assert.Equal(t, uint64(1), program.Instructions[0].Immediate)
	assert.Equal(t, uint64(0), program.Instructions[1].Immediate)
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFF9), program.Instructions[2].Immediate)
	assert.Equal(t, uint64(12), program.Instructions[3].Immediate)
}

func TestAssemble_DefvRedefinitionIsFatal(t *testing.T) {
	_, err := assembler.New("test.hoil").Assemble("VAL DEFV int64 x 1\nVAL DEFV int64 x 2\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already defined")
}

func TestAssemble_MovvAllocatesDest(t *testing.T) {
	program := assemble(t, `
VAL DEFV int64 src 5
VAL MOVV int64 dst src
`)

	inst := program.Instructions[1]
	assert.Equal(t, coil.OpAllocMem, inst.Opcode)
	assert.Equal(t, uint16(8), inst.VarAddr)   // dst allocated after src
	assert.Equal(t, uint64(0), inst.Immediate) // src address
}

func TestAssemble_LoadStore(t *testing.T) {
	program := assemble(t, `
VAL DEFV int32 v 9
VAL LOAD int32 w 100
VAL STORE int32 200 v
`)

	load := program.Instructions[1]
	assert.Equal(t, coil.OpLoad, load.Opcode)
	assert.Equal(t, uint16(4), load.VarAddr)
	assert.Equal(t, uint64(100), load.Immediate)

	store := program.Instructions[2]
	assert.Equal(t, coil.OpStore, store.Opcode)
	assert.Equal(t, uint16(200), store.VarAddr)
	assert.Equal(t, uint64(0), store.Immediate)
}

func TestAssemble_AddressOfPrefixResolvesLikePlainName(t *testing.T) {
	plain := assemble(t, "VAL DEFV int64 v 1\nMATH ADD out v v\n")
	prefixed := assemble(t, "VAL DEFV int64 v 1\nMATH ADD out &v &v\n")

	assert.Equal(t, plain.Instructions[1], prefixed.Instructions[1])
}

func TestAssemble_MathTwoSourcePacking(t *testing.T) {
	program := assemble(t, `
VAL DEFV int64 a 1
VAL DEFV int64 b 2
MATH ADD sum a b
`)

	inst := program.Instructions[2]
	assert.Equal(t, coil.OpAdd, inst.Opcode)
	assert.Equal(t, coil.TypeInt64, inst.Type)
	assert.Equal(t, uint16(16), inst.VarAddr) // sum allocated as int64
	src1, src2 := coil.UnpackSources(inst.Immediate)
	assert.Equal(t, uint16(0), src1)
	assert.Equal(t, uint16(8), src2)
}

func TestAssemble_MathResultTypeIsAlwaysInt64(t *testing.T) {
	program := assemble(t, `
VAL DEFV int8 a 1
VAL DEFV int8 b 2
MATH MUL p a b
`)

	assert.Equal(t, coil.TypeInt64, program.Instructions[2].Type)
}

func TestAssemble_MathNegIsUnary(t *testing.T) {
	program := assemble(t, "VAL DEFV int64 v 3\nMATH NEG n v\n")

	inst := program.Instructions[1]
	assert.Equal(t, coil.OpNeg, inst.Opcode)
	assert.Equal(t, uint64(0), inst.Immediate)

	_, err := assembler.New("test.hoil").Assemble("VAL DEFV int64 v 3\nMATH NEG n v v\n")
	assert.Error(t, err)
}

func TestAssemble_BitOps(t *testing.T) {
	program := assemble(t, `
VAL DEFV int64 a 12
VAL DEFV int64 b 10
BIT AND x a b
BIT NOT y a
BIT SHL z a 4
`)

	and := program.Instructions[2]
	assert.Equal(t, coil.OpAnd, and.Opcode)
	assert.Equal(t, coil.PackSources(0, 8), and.Immediate)

	not := program.Instructions[3]
	assert.Equal(t, coil.OpNot, not.Opcode)
	assert.Equal(t, uint64(0), not.Immediate)

	shl := program.Instructions[4]
	assert.Equal(t, coil.OpShl, shl.Opcode)
	src, count := coil.UnpackShift(shl.Immediate)
	assert.Equal(t, uint16(0), src)
	assert.Equal(t, uint32(4), count)
}

func TestAssemble_JmpForwardReference(t *testing.T) {
	program := assemble(t, `
CF JMP done
CF LABEL done
`)

	jmp := program.Instructions[0]
	assert.Equal(t, coil.OpJmp, jmp.Opcode)
	assert.Equal(t, uint64(1), jmp.Immediate)

	label := program.Instructions[1]
	assert.Equal(t, coil.OpLabelDef, label.Opcode)
	assert.Equal(t, uint16(1), label.VarAddr)
}

func TestAssemble_JcondPacking(t *testing.T) {
	program := assemble(t, `
VAL DEFV int64 i 0
VAL DEFV int64 n 10
CF LABEL loop
CF JCOND GE i n end
CF JMP loop
CF LABEL end
`)

	jcond := program.Instructions[3]
	assert.Equal(t, coil.OpJge, jcond.Opcode)
	src1, src2, labelID := coil.UnpackCondJump(jcond.Immediate)
	assert.Equal(t, uint16(0), src1)
	assert.Equal(t, uint16(8), src2)
	assert.Equal(t, uint16(2), labelID) // end referenced after loop
}

func TestAssemble_JcondUnknownCondition(t *testing.T) {
	_, err := assembler.New("test.hoil").Assemble("VAL DEFV int64 a 0\nCF JCOND XX a a end\nCF LABEL end\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown condition")
}

func TestAssemble_DuplicateLabelIsFatal(t *testing.T) {
	_, err := assembler.New("test.hoil").Assemble("CF LABEL here\nCF LABEL here\n")
	require.Error(t, err)
}

func TestAssemble_UndefinedLabelIsFatal(t *testing.T) {
	// A jump to a label that is never defined invalidates the translation
	_, err := assembler.New("test.hoil").Assemble("CF JMP nowhere\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined label")
}

func TestAssemble_CallRet(t *testing.T) {
	program := assemble(t, `
CF CALL sub
CF EXIT 0
CF LABEL sub
CF RET
`)

	call := program.Instructions[0]
	assert.Equal(t, coil.OpCall, call.Opcode)
	assert.Equal(t, uint64(1), call.Immediate)
	assert.Equal(t, coil.OpRet, program.Instructions[3].Opcode)
}

func TestAssemble_PushPop(t *testing.T) {
	program := assemble(t, `
VAL DEFV int16 v 7
CF PUSH v
CF POP w
`)

	push := program.Instructions[1]
	assert.Equal(t, coil.OpPush, push.Opcode)
	assert.Equal(t, coil.TypeInt16, push.Type)
	assert.Equal(t, uint16(0), push.VarAddr)

	// Unknown POP target is allocated as int64
	pop := program.Instructions[2]
	assert.Equal(t, coil.OpPop, pop.Opcode)
	assert.Equal(t, coil.TypeInt64, pop.Type)
	assert.Equal(t, uint16(2), pop.VarAddr)
}

func TestAssemble_PushUnknownSymbolIsFatal(t *testing.T) {
	_, err := assembler.New("test.hoil").Assemble("CF PUSH ghost\n")
	require.Error(t, err)
}

func TestAssemble_SyscallWithoutArgs(t *testing.T) {
	program := assemble(t, "CF SYSC 60\n")

	require.Len(t, program.Instructions, 1)
	assert.Equal(t, coil.OpSyscall, program.Instructions[0].Opcode)
	assert.Equal(t, uint64(60), program.Instructions[0].Immediate)
}

func TestAssemble_SyscallArgsRecord(t *testing.T) {
	program := assemble(t, `
VAL DEFV int8 buf 72
CF SYSC 1 1 &buf 1
`)

	require.Len(t, program.Instructions, 3)
	args := program.Instructions[2]
	assert.Equal(t, coil.OpSyscallArgs, args.Opcode)
	assert.Equal(t, uint16(3), args.VarAddr)
	lanes := coil.UnpackSyscallArgs(args.Immediate)
	assert.Equal(t, uint16(1), lanes[0])
	assert.Equal(t, uint16(0), lanes[1]) // buf address
	assert.Equal(t, uint16(1), lanes[2])
}

func TestAssemble_SyscallSizeForms(t *testing.T) {
	program := assemble(t, `
VAL DEFV int32 v 0
CF SYSC 1 SIZE(v) SIZEOF(int64)
`)

	lanes := coil.UnpackSyscallArgs(program.Instructions[2].Immediate)
	assert.Equal(t, uint16(4), lanes[0])
	assert.Equal(t, uint16(8), lanes[1])
}

func TestAssemble_Exit(t *testing.T) {
	program := assemble(t, "CF EXIT 55\n")

	inst := program.Instructions[0]
	assert.Equal(t, coil.OpExit, inst.Opcode)
	assert.Equal(t, uint64(55), inst.Immediate)
}

func TestAssemble_MemOps(t *testing.T) {
	program := assemble(t, `
MEM ALLOC p 16
VAL DEFV int64 v 8
MEM WRITE v 32 8
MEM READ r 32 8
MEM FREE p
`)

	alloc := program.Instructions[0]
	assert.Equal(t, coil.OpMemAlloc, alloc.Opcode)
	assert.Equal(t, coil.TypePtr, alloc.Type)
	assert.Equal(t, uint64(16), alloc.Immediate)

	write := program.Instructions[2]
	assert.Equal(t, coil.OpMemWrite, write.Opcode)
	offset, size := coil.UnpackHeapRange(write.Immediate)
	assert.Equal(t, uint32(32), offset)
	assert.Equal(t, uint32(8), size)

	free := program.Instructions[4]
	assert.Equal(t, coil.OpMemFree, free.Opcode)
	assert.Equal(t, uint16(0), free.VarAddr) // p was allocated first
}

func TestAssemble_UnknownCategoryAndOperation(t *testing.T) {
	_, err := assembler.New("test.hoil").Assemble("FOO BAR 1\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")

	_, err = assembler.New("test.hoil").Assemble("VAL FROB int64 a 1\n")
	require.Error(t, err)
}

func TestAssemble_BadOperandCount(t *testing.T) {
	for _, src := range []string{
		"VAL DEFV int64 x\n",
		"MATH ADD a b\n",
		"CF JMP\n",
		"CF RET extra\n",
	} {
		_, err := assembler.New("test.hoil").Assemble(src)
		assert.Error(t, err, "source %q", src)
	}
}

func TestAssemble_ErrorsCarryLineNumbers(t *testing.T) {
	_, err := assembler.New("prog.hoil").Assemble("VAL DEFV int64 a 1\nVAL DEFV nosuch b 2\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prog.hoil:2")
}

func TestWriteBinary_RecordLength(t *testing.T) {
	// Two non-control-flow instructions occupy exactly two record sizes
	program := assemble(t, "VAL DEFV int64 a 1\nVAL DEFV int64 b 2\n")

	var buf bytes.Buffer
	require.NoError(t, assembler.WriteBinary(&buf, program))
	assert.Equal(t, 2*coil.InstructionSize, buf.Len())
}

func TestWriteBinary_MarkersOnEveryRecord(t *testing.T) {
	program := assemble(t, `
VAL DEFV int64 a 1
MATH ADD s a a
CF EXIT 0
`)

	var buf bytes.Buffer
	require.NoError(t, assembler.WriteBinary(&buf, program))

	data := buf.Bytes()
	for i := 0; i+coil.InstructionSize <= len(data); i += coil.InstructionSize {
		rec := data[i : i+coil.InstructionSize]
		assert.Equal(t, coil.MarkerInstruction, rec[0])
		assert.Equal(t, coil.MarkerType, rec[3])
		assert.Equal(t, coil.MarkerVariable, rec[5])
		assert.Equal(t, coil.MarkerImmediate, rec[8])
		assert.Equal(t, coil.MarkerEnd, rec[coil.InstructionSize-1])
	}
}

func TestWriteText_Format(t *testing.T) {
	program := assemble(t, "CF EXIT 3\n")

	var buf bytes.Buffer
	require.NoError(t, assembler.WriteText(&buf, program))

	line := strings.TrimSpace(buf.String())
	assert.Equal(t, "0505 00 0000 0000000000000003", line)
}

func TestAssemble_SourceMapping(t *testing.T) {
	program := assemble(t, "VAL DEFV int64 a 1\n\nCF EXIT 0\n")

	require.Len(t, program.SourceLines, 2)
	assert.Equal(t, 1, program.SourceLines[0])
	assert.Equal(t, 3, program.SourceLines[1])
	assert.Equal(t, "CF EXIT 0", program.SourceMap[1])
}
