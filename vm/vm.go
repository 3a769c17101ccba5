package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/lookbusy1344/coil-toolchain/coil"
)

// ExecutionState represents the current state of execution
type ExecutionState int

const (
	StateHalted ExecutionState = iota
	StateRunning
	StateBreakpoint
	StateError
)

func (s ExecutionState) String() string {
	switch s {
	case StateHalted:
		return "halted"
	case StateRunning:
		return "running"
	case StateBreakpoint:
		return "breakpoint"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("ExecutionState(%d)", int(s))
	}
}

// VM is a single COIL machine instance. It owns static memory, the heap,
// both stacks, and the loaded instruction stream; nothing is shared
// between instances. Execution is strictly sequential.
type VM struct {
	Static *StaticMemory
	Heap   *Heap
	Stack  *DataStack
	Calls  *CallStack

	// Loaded program and the pass-1 label index
	Program []coil.Instruction
	Labels  *LabelPositions

	// PC is the index of the next instruction to fetch
	PC    int
	State ExecutionState

	// Execution limits and results
	CycleLimit uint64
	Cycles     uint64
	ExitCode   int32
	LastError  error

	// I/O redirection (for the TUI, the API server, and tests)
	OutputWriter io.Writer

	// Diagnostics
	Trace      *ExecutionTrace
	Statistics *Statistics
}

// New creates a fresh machine with empty memory and no program loaded
func New() *VM {
	return &VM{
		Static:       &StaticMemory{},
		Heap:         NewHeap(),
		Stack:        &DataStack{},
		Calls:        &CallStack{},
		Labels:       NewLabelPositions(),
		State:        StateHalted,
		CycleLimit:   DefaultMaxCycles,
		OutputWriter: os.Stdout,
	}
}

// Load attaches a program to the machine and runs the label-collection
// pass. Duplicate label IDs fail here, before anything executes.
func (vm *VM) Load(program []coil.Instruction) error {
	labels, err := CollectLabels(program)
	if err != nil {
		return fmt.Errorf("label collection failed: %w", err)
	}
	vm.Program = program
	vm.Labels = labels
	vm.PC = 0
	vm.State = StateHalted
	vm.ExitCode = 0
	vm.LastError = nil
	return nil
}

// Reset clears machine state while keeping the loaded program
func (vm *VM) Reset() {
	vm.Static.Reset()
	vm.Heap.Reset()
	vm.Stack.Reset()
	vm.Calls.Reset()
	vm.PC = 0
	vm.Cycles = 0
	vm.ExitCode = 0
	vm.LastError = nil
	vm.State = StateHalted
}

// fail moves the machine into the error state and returns the error
func (vm *VM) fail(err error) error {
	vm.State = StateError
	vm.LastError = err
	return err
}

// Step fetches and executes one instruction. Reaching the end of the
// instruction stream halts the machine cleanly.
func (vm *VM) Step() error {
	if vm.State == StateError {
		return fmt.Errorf("VM is in error state: %w", vm.LastError)
	}

	if vm.CycleLimit > 0 && vm.Cycles >= vm.CycleLimit {
		return vm.fail(fmt.Errorf("cycle limit exceeded (%d cycles)", vm.CycleLimit))
	}

	if vm.PC < 0 || vm.PC >= len(vm.Program) {
		// EOF on the instruction stream is a clean halt
		vm.State = StateHalted
		return nil
	}

	inst := vm.Program[vm.PC]
	pc := vm.PC
	vm.PC++

	if err := vm.execute(pc, inst); err != nil {
		if vm.State != StateHalted && vm.State != StateBreakpoint {
			return vm.fail(fmt.Errorf("execute failed at index %d (%s): %w", pc, inst.Opcode, err))
		}
		return err
	}

	vm.Cycles++

	if vm.Statistics != nil {
		vm.Statistics.RecordInstruction(inst.Opcode)
	}
	if vm.Trace != nil {
		vm.Trace.Record(vm, pc, inst)
	}

	return nil
}

// Run executes instructions until halt or error
func (vm *VM) Run() error {
	vm.State = StateRunning
	for vm.State == StateRunning {
		if err := vm.Step(); err != nil {
			return err
		}
	}
	return nil
}

// jump repositions the instruction stream at a label's stored position
func (vm *VM) jump(labelID uint16) error {
	pos, err := vm.Labels.Find(labelID)
	if err != nil {
		return err
	}
	vm.PC = pos
	return nil
}

// DumpState returns a one-line summary of machine state for diagnostics
func (vm *VM) DumpState() string {
	return fmt.Sprintf("PC=%d depth=%d stack=%d cycles=%d state=%s",
		vm.PC, vm.Calls.Depth(), vm.Stack.Top(), vm.Cycles, vm.State)
}
