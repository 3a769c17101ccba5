package vm

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/lookbusy1344/coil-toolchain/coil"
)

// Statistics tracks execution counters for a run. Collection is opt-in:
// the machine only records when a tracker is attached.
type Statistics struct {
	Enabled bool

	TotalInstructions  uint64
	ExecutionTime      time.Duration
	InstructionsPerSec float64

	// Per-opcode breakdown
	OpcodeCounts map[string]uint64

	// Branch statistics
	BranchCount       uint64
	BranchTakenCount  uint64
	BranchMissedCount uint64

	// Host interface
	SyscallCounts map[uint16]uint64

	startTime time.Time
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{
		Enabled:       true,
		OpcodeCounts:  make(map[string]uint64),
		SyscallCounts: make(map[uint16]uint64),
	}
}

// Start resets counters and begins timing
func (s *Statistics) Start() {
	s.startTime = time.Now()
	s.TotalInstructions = 0
	s.OpcodeCounts = make(map[string]uint64)
	s.BranchCount = 0
	s.BranchTakenCount = 0
	s.BranchMissedCount = 0
	s.SyscallCounts = make(map[uint16]uint64)
}

// Stop finalizes timing-derived metrics
func (s *Statistics) Stop() {
	s.ExecutionTime = time.Since(s.startTime)
	if secs := s.ExecutionTime.Seconds(); secs > 0 {
		s.InstructionsPerSec = float64(s.TotalInstructions) / secs
	}
}

// RecordInstruction records one executed instruction
func (s *Statistics) RecordInstruction(op coil.Opcode) {
	if !s.Enabled {
		return
	}
	s.TotalInstructions++
	s.OpcodeCounts[op.String()]++
}

// RecordBranch records a conditional jump outcome
func (s *Statistics) RecordBranch(taken bool) {
	if !s.Enabled {
		return
	}
	s.BranchCount++
	if taken {
		s.BranchTakenCount++
	} else {
		s.BranchMissedCount++
	}
}

// RecordSyscall records one host call
func (s *Statistics) RecordSyscall(num uint16) {
	if !s.Enabled {
		return
	}
	s.SyscallCounts[num]++
}

// sortedOpcodes returns opcode names ordered by descending count
func (s *Statistics) sortedOpcodes() []string {
	names := make([]string, 0, len(s.OpcodeCounts))
	for name := range s.OpcodeCounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.OpcodeCounts[names[i]] != s.OpcodeCounts[names[j]] {
			return s.OpcodeCounts[names[i]] > s.OpcodeCounts[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// ExportJSON writes the statistics as JSON
func (s *Statistics) ExportJSON(w io.Writer) error {
	type export struct {
		TotalInstructions  uint64            `json:"total_instructions"`
		ExecutionTimeMs    float64           `json:"execution_time_ms"`
		InstructionsPerSec float64           `json:"instructions_per_sec"`
		OpcodeCounts       map[string]uint64 `json:"opcode_counts"`
		BranchCount        uint64            `json:"branch_count"`
		BranchTakenCount   uint64            `json:"branch_taken_count"`
		BranchMissedCount  uint64            `json:"branch_missed_count"`
		SyscallCounts      map[uint16]uint64 `json:"syscall_counts"`
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(export{
		TotalInstructions:  s.TotalInstructions,
		ExecutionTimeMs:    float64(s.ExecutionTime.Microseconds()) / 1000.0,
		InstructionsPerSec: s.InstructionsPerSec,
		OpcodeCounts:       s.OpcodeCounts,
		BranchCount:        s.BranchCount,
		BranchTakenCount:   s.BranchTakenCount,
		BranchMissedCount:  s.BranchMissedCount,
		SyscallCounts:      s.SyscallCounts,
	})
}

// ExportCSV writes the per-opcode counts as CSV
func (s *Statistics) ExportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"opcode", "count"}); err != nil {
		return err
	}
	for _, name := range s.sortedOpcodes() {
		if err := cw.Write([]string{name, fmt.Sprintf("%d", s.OpcodeCounts[name])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// String returns a human-readable summary
func (s *Statistics) String() string {
	var sb strings.Builder

	sb.WriteString("Execution Statistics\n")
	sb.WriteString("====================\n")
	fmt.Fprintf(&sb, "Instructions executed: %d\n", s.TotalInstructions)
	if s.ExecutionTime > 0 {
		fmt.Fprintf(&sb, "Execution time:        %v\n", s.ExecutionTime)
		fmt.Fprintf(&sb, "Instructions/sec:      %.0f\n", s.InstructionsPerSec)
	}
	if s.BranchCount > 0 {
		fmt.Fprintf(&sb, "Branches:              %d (%d taken, %d not taken)\n",
			s.BranchCount, s.BranchTakenCount, s.BranchMissedCount)
	}

	if len(s.OpcodeCounts) > 0 {
		sb.WriteString("\nOpcode breakdown:\n")
		for _, name := range s.sortedOpcodes() {
			fmt.Fprintf(&sb, "  %-12s %d\n", name, s.OpcodeCounts[name])
		}
	}

	return sb.String()
}
