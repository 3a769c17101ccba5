package vm

import (
	"fmt"
	"io"

	"github.com/lookbusy1344/coil-toolchain/coil"
)

// TraceEntry represents a single execution trace entry
type TraceEntry struct {
	Sequence uint64
	Index    int
	Opcode   coil.Opcode
	VarAddr  uint16
	Imm      uint64
	Depth    int
}

// ExecutionTrace records the executed instruction sequence for later
// inspection. Entries are buffered and written on Flush.
type ExecutionTrace struct {
	Enabled    bool
	Writer     io.Writer
	MaxEntries int

	entries []TraceEntry
	labels  map[uint16]string
}

// NewExecutionTrace creates a new execution trace
func NewExecutionTrace(writer io.Writer) *ExecutionTrace {
	return &ExecutionTrace{
		Enabled:    true,
		Writer:     writer,
		MaxEntries: 100000,
		entries:    make([]TraceEntry, 0, 1000),
		labels:     make(map[uint16]string),
	}
}

// LoadLabels attaches label names for annotated jump targets
func (t *ExecutionTrace) LoadLabels(labels map[uint16]string) {
	t.labels = labels
}

// Record records an instruction execution
func (t *ExecutionTrace) Record(vm *VM, index int, inst coil.Instruction) {
	if !t.Enabled {
		return
	}
	if t.MaxEntries > 0 && len(t.entries) >= t.MaxEntries {
		return
	}

	t.entries = append(t.entries, TraceEntry{
		Sequence: vm.Cycles,
		Index:    index,
		Opcode:   inst.Opcode,
		VarAddr:  inst.VarAddr,
		Imm:      inst.Immediate,
		Depth:    vm.Calls.Depth(),
	})
}

// Entries returns the buffered entries
func (t *ExecutionTrace) Entries() []TraceEntry {
	return t.entries
}

// Flush writes all trace entries to the writer
func (t *ExecutionTrace) Flush() error {
	if t.Writer == nil {
		return nil
	}

	for _, entry := range t.entries {
		annotation := ""
		if entry.Opcode == coil.OpJmp || entry.Opcode == coil.OpCall {
			if name, ok := t.labels[uint16(entry.Imm)]; ok {
				annotation = " -> " + name
			}
		}
		_, err := fmt.Fprintf(t.Writer, "[%06d] %4d: %-12s var=0x%04X imm=0x%016X depth=%d%s\n",
			entry.Sequence, entry.Index, entry.Opcode, entry.VarAddr, entry.Imm, entry.Depth, annotation)
		if err != nil {
			return err
		}
	}

	return nil
}
