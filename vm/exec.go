package vm

import (
	"fmt"

	"github.com/lookbusy1344/coil-toolchain/coil"
)

// execute dispatches one fetched instruction. pc is the index the
// instruction was fetched from; vm.PC already points at the next record.
func (vm *VM) execute(pc int, inst coil.Instruction) error {
	switch inst.Opcode {
	case coil.OpAllocImm:
		size := uint32(inst.Type.Size())
		if size == 0 {
			return fmt.Errorf("ALLOC_IMM with untyped operand")
		}
		return vm.Static.WriteUint(inst.VarAddr, inst.Immediate, size)

	case coil.OpAllocMem, coil.OpMove, coil.OpLoad, coil.OpStore:
		size := uint32(inst.Type.Size())
		if size == 0 {
			return fmt.Errorf("%s with untyped operand", inst.Opcode)
		}
		return vm.Static.Copy(inst.VarAddr, uint16(inst.Immediate), size)

	case coil.OpAdd, coil.OpSub, coil.OpMul, coil.OpDiv, coil.OpMod:
		return vm.executeArithmetic(inst)

	case coil.OpNeg:
		src, err := vm.Static.ReadInt64(uint16(inst.Immediate))
		if err != nil {
			return err
		}
		return vm.Static.WriteInt64(inst.VarAddr, -src)

	case coil.OpAnd, coil.OpOr, coil.OpXor:
		return vm.executeBitwise(inst)

	case coil.OpNot:
		src, err := vm.Static.ReadInt64(uint16(inst.Immediate))
		if err != nil {
			return err
		}
		return vm.Static.WriteInt64(inst.VarAddr, ^src)

	case coil.OpShl, coil.OpShr:
		return vm.executeShift(inst)

	case coil.OpJmp:
		return vm.jump(uint16(inst.Immediate))

	case coil.OpJeq, coil.OpJne, coil.OpJlt, coil.OpJle, coil.OpJgt, coil.OpJge:
		return vm.executeCondJump(inst)

	case coil.OpCall:
		if err := vm.Calls.Push(vm.PC); err != nil {
			return err
		}
		return vm.jump(uint16(inst.Immediate))

	case coil.OpRet:
		pos, err := vm.Calls.Pop()
		if err != nil {
			return err
		}
		vm.PC = pos
		return nil

	case coil.OpPush:
		size := uint32(inst.Type.Size())
		if size == 0 {
			return fmt.Errorf("PUSH with untyped operand")
		}
		data, err := vm.Static.ReadBytes(inst.VarAddr, size)
		if err != nil {
			return err
		}
		return vm.Stack.Push(data)

	case coil.OpPop:
		size := uint32(inst.Type.Size())
		if size == 0 {
			return fmt.Errorf("POP with untyped operand")
		}
		data, err := vm.Stack.Pop(size)
		if err != nil {
			return err
		}
		return vm.Static.WriteBytes(inst.VarAddr, data)

	case coil.OpSyscall:
		return vm.executeSyscall(inst)

	case coil.OpExit:
		vm.ExitCode = int32(inst.Immediate)
		vm.State = StateHalted
		return nil

	case coil.OpLabelDef:
		// Already indexed during pass 1
		return nil

	case coil.OpSyscallArgs:
		// Only SYSCALL may consume an argument record
		return fmt.Errorf("stray syscall argument record at index %d", pc)

	case coil.OpMemAlloc:
		offset, err := vm.Heap.Allocate(inst.Immediate)
		if err != nil {
			return err
		}
		return vm.Static.WriteUint(inst.VarAddr, offset, 8)

	case coil.OpMemFree:
		offset, err := vm.Static.ReadUint(inst.VarAddr, 8)
		if err != nil {
			return err
		}
		return vm.Heap.Free(offset)

	case coil.OpMemRead:
		offset, size := coil.UnpackHeapRange(inst.Immediate)
		data, err := vm.Heap.ReadBytes(uint64(offset), size)
		if err != nil {
			return err
		}
		return vm.Static.WriteBytes(inst.VarAddr, data)

	case coil.OpMemWrite:
		offset, size := coil.UnpackHeapRange(inst.Immediate)
		data, err := vm.Static.ReadBytes(inst.VarAddr, size)
		if err != nil {
			return err
		}
		return vm.Heap.WriteBytes(uint64(offset), data)

	default:
		return fmt.Errorf("unknown opcode 0x%04X at index %d", uint16(inst.Opcode), pc)
	}
}

// executeArithmetic handles the two-source integer operations. All
// arithmetic is performed as signed 64-bit regardless of operand types.
func (vm *VM) executeArithmetic(inst coil.Instruction) error {
	src1, src2 := coil.UnpackSources(inst.Immediate)
	a, err := vm.Static.ReadInt64(src1)
	if err != nil {
		return err
	}
	b, err := vm.Static.ReadInt64(src2)
	if err != nil {
		return err
	}

	var result int64
	switch inst.Opcode {
	case coil.OpAdd:
		result = a + b
	case coil.OpSub:
		result = a - b
	case coil.OpMul:
		result = a * b
	case coil.OpDiv:
		if b == 0 {
			return fmt.Errorf("division by zero")
		}
		result = a / b
	case coil.OpMod:
		if b == 0 {
			return fmt.Errorf("modulo by zero")
		}
		result = a % b
	}

	return vm.Static.WriteInt64(inst.VarAddr, result)
}

// executeBitwise handles the two-source bitwise operations
func (vm *VM) executeBitwise(inst coil.Instruction) error {
	src1, src2 := coil.UnpackSources(inst.Immediate)
	a, err := vm.Static.ReadInt64(src1)
	if err != nil {
		return err
	}
	b, err := vm.Static.ReadInt64(src2)
	if err != nil {
		return err
	}

	var result int64
	switch inst.Opcode {
	case coil.OpAnd:
		result = a & b
	case coil.OpOr:
		result = a | b
	case coil.OpXor:
		result = a ^ b
	}

	return vm.Static.WriteInt64(inst.VarAddr, result)
}

// executeShift handles SHL and SHR. The count lives in the low 32 bits of
// the immediate; shifts of 64 or more clear the value.
func (vm *VM) executeShift(inst coil.Instruction) error {
	src, count := coil.UnpackShift(inst.Immediate)
	v, err := vm.Static.ReadUint(src, 8)
	if err != nil {
		return err
	}

	var result uint64
	if count < 64 {
		if inst.Opcode == coil.OpShl {
			result = v << count
		} else {
			result = v >> count
		}
	}

	return vm.Static.WriteUint(inst.VarAddr, result, 8)
}

// executeCondJump compares two signed 64-bit values and repositions the
// stream when the predicate holds.
func (vm *VM) executeCondJump(inst coil.Instruction) error {
	src1, src2, labelID := coil.UnpackCondJump(inst.Immediate)
	a, err := vm.Static.ReadInt64(src1)
	if err != nil {
		return err
	}
	b, err := vm.Static.ReadInt64(src2)
	if err != nil {
		return err
	}

	var taken bool
	switch inst.Opcode {
	case coil.OpJeq:
		taken = a == b
	case coil.OpJne:
		taken = a != b
	case coil.OpJlt:
		taken = a < b
	case coil.OpJle:
		taken = a <= b
	case coil.OpJgt:
		taken = a > b
	case coil.OpJge:
		taken = a >= b
	}

	if vm.Statistics != nil {
		vm.Statistics.RecordBranch(taken)
	}

	if taken {
		return vm.jump(labelID)
	}
	return nil
}
