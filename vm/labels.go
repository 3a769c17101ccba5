package vm

import (
	"fmt"

	"github.com/lookbusy1344/coil-toolchain/coil"
)

// LabelPositions maps label IDs to execution positions. Positions are the
// instruction index immediately after the label-definition record, so a
// jump resumes at the first real instruction of the labeled block.
type LabelPositions struct {
	positions map[uint16]int
}

// NewLabelPositions creates an empty position table
func NewLabelPositions() *LabelPositions {
	return &LabelPositions{
		positions: make(map[uint16]int),
	}
}

// Insert records a label's position. Duplicate IDs are fatal.
func (lp *LabelPositions) Insert(id uint16, pos int) error {
	if existing, ok := lp.positions[id]; ok {
		return fmt.Errorf("duplicate label %d (positions %d and %d)", id, existing, pos)
	}
	lp.positions[id] = pos
	return nil
}

// Find returns the position recorded for id
func (lp *LabelPositions) Find(id uint16) (int, error) {
	pos, ok := lp.positions[id]
	if !ok {
		return 0, fmt.Errorf("unknown label: %d", id)
	}
	return pos, nil
}

// Len returns the number of indexed labels
func (lp *LabelPositions) Len() int {
	return len(lp.positions)
}

// CollectLabels scans a loaded program and indexes every label-definition
// record. This is the VM's first pass; it runs before any instruction
// executes.
func CollectLabels(program []coil.Instruction) (*LabelPositions, error) {
	labels := NewLabelPositions()
	for i := range program {
		if program[i].Opcode != coil.OpLabelDef {
			continue
		}
		if err := labels.Insert(program[i].VarAddr, i+1); err != nil {
			return nil, err
		}
	}
	return labels, nil
}
