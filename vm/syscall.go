package vm

import (
	"fmt"
	"os"

	"github.com/lookbusy1344/coil-toolchain/coil"
)

// executeSyscall dispatches a host call. The record following a SYSCALL
// may be a 0xFFFF argument record carrying up to four u16 lanes; when it
// is, the VM consumes it, otherwise the call runs with zero arguments.
func (vm *VM) executeSyscall(inst coil.Instruction) error {
	var args [4]uint16
	var argc int

	if vm.PC < len(vm.Program) && vm.Program[vm.PC].Opcode == coil.OpSyscallArgs {
		rec := vm.Program[vm.PC]
		vm.PC++
		args = coil.UnpackSyscallArgs(rec.Immediate)
		argc = int(rec.VarAddr)
		if argc > 4 {
			argc = 4
		}
	}

	num := uint16(inst.Immediate)
	if vm.Statistics != nil {
		vm.Statistics.RecordSyscall(num)
	}

	switch num {
	case SyscallWrite:
		return vm.syscallWrite(args)

	case SyscallExit:
		var status int32
		if argc > 0 {
			status = int32(args[0])
		}
		vm.ExitCode = status
		vm.State = StateHalted
		return nil

	default:
		return fmt.Errorf("unsupported syscall: %d", num)
	}
}

// syscallWrite copies count bytes from static memory to the descriptor in
// arg0. Descriptor 1 goes to the machine's output writer so frontends can
// capture program output; descriptor 2 goes to the host's stderr.
func (vm *VM) syscallWrite(args [4]uint16) error {
	fd := args[0]
	buf := args[1]
	count := uint32(args[2])

	data, err := vm.Static.ReadBytes(buf, count)
	if err != nil {
		return err
	}

	switch fd {
	case StdOut:
		_, err = vm.OutputWriter.Write(data)
	case StdErr:
		_, err = os.Stderr.Write(data)
	default:
		return fmt.Errorf("write to unsupported descriptor: %d", fd)
	}
	if err != nil {
		return fmt.Errorf("write syscall failed: %w", err)
	}
	return nil
}
