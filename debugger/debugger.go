package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lookbusy1344/coil-toolchain/vm"
)

// Debugger drives a machine interactively: breakpoints, stepping, and
// inspection of static memory, the stacks, and the heap.
type Debugger struct {
	VM *vm.VM

	Breakpoints *BreakpointManager
	History     *CommandHistory

	// Label IDs by name, for break-by-name and annotated listings
	Labels map[string]uint16

	// Source mapping (instruction index -> source line text)
	SourceMap map[int]string

	// Last command (for repeat on empty input)
	LastCommand string

	// Output buffer
	Output strings.Builder

	// Quit is set when the user asks to leave the session
	Quit bool
}

// NewDebugger creates a debugger for the given machine
func NewDebugger(machine *vm.VM) *Debugger {
	return &Debugger{
		VM:          machine,
		Breakpoints: NewBreakpointManager(),
		History:     NewCommandHistory(),
		Labels:      make(map[string]uint16),
		SourceMap:   make(map[int]string),
	}
}

// LoadLabels attaches label names for position resolution
func (d *Debugger) LoadLabels(labels map[string]uint16) {
	d.Labels = labels
}

// LoadSourceMap attaches the instruction-index-to-source mapping
func (d *Debugger) LoadSourceMap(sourceMap map[int]string) {
	d.SourceMap = sourceMap
}

// ResolvePosition resolves a label name or numeric index to an
// instruction position.
func (d *Debugger) ResolvePosition(arg string) (int, error) {
	if id, exists := d.Labels[arg]; exists {
		pos, err := d.VM.Labels.Find(id)
		if err != nil {
			return 0, fmt.Errorf("label %q is not indexed: %w", arg, err)
		}
		return pos, nil
	}

	pos, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid position: %q", arg)
	}
	if pos < 0 || pos >= len(d.VM.Program) {
		return 0, fmt.Errorf("position %d outside program (0..%d)", pos, len(d.VM.Program)-1)
	}
	return pos, nil
}

// ExecuteCommand processes and executes a debugger command
func (d *Debugger) ExecuteCommand(cmdLine string) error {
	cmdLine = strings.TrimSpace(cmdLine)

	// Empty command repeats last command (for step, continue, etc.)
	if cmdLine == "" {
		cmdLine = d.LastCommand
	}
	if cmdLine != "" {
		d.History.Add(cmdLine)
		d.LastCommand = cmdLine
	}

	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return nil
	}

	return d.handleCommand(strings.ToLower(parts[0]), parts[1:])
}

// handleCommand dispatches commands to appropriate handlers
func (d *Debugger) handleCommand(cmd string, args []string) error {
	switch cmd {
	// Execution control
	case "run", "r":
		return d.cmdRun(args)
	case "continue", "c":
		return d.cmdContinue(args)
	case "step", "s":
		return d.cmdStep(args)

	// Breakpoints
	case "break", "b":
		return d.cmdBreak(args)
	case "delete", "d":
		return d.cmdDelete(args)
	case "enable":
		return d.cmdEnable(args)
	case "disable":
		return d.cmdDisable(args)

	// Inspection
	case "print", "p":
		return d.cmdPrint(args)
	case "x":
		return d.cmdExamine(args)
	case "info", "i":
		return d.cmdInfo(args)
	case "list", "l":
		return d.cmdList(args)
	case "heap":
		return d.cmdHeap(args)

	// Program control
	case "reset":
		return d.cmdReset(args)
	case "quit", "q", "exit":
		d.Quit = true
		return nil

	// Help
	case "help", "h", "?":
		return d.cmdHelp(args)

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

// ShouldBreak checks whether execution should pause at the current
// position, returning the reason when it should.
func (d *Debugger) ShouldBreak() (bool, string) {
	bp := d.Breakpoints.Hit(d.VM.PC)
	if bp == nil {
		return false, ""
	}
	return true, fmt.Sprintf("breakpoint %d at index %d", bp.ID, bp.Position)
}

// RunUntilBreak executes instructions until a breakpoint, halt, or error
func (d *Debugger) RunUntilBreak() error {
	d.VM.State = vm.StateRunning

	for d.VM.State == vm.StateRunning {
		if hit, reason := d.ShouldBreak(); hit {
			d.VM.State = vm.StateBreakpoint
			d.Printf("Stopped: %s\n", reason)
			return nil
		}
		if err := d.VM.Step(); err != nil {
			return err
		}
	}

	if d.VM.State == vm.StateHalted {
		d.Printf("Program halted with exit code %d\n", d.VM.ExitCode)
	}
	return nil
}

// GetOutput returns and clears the output buffer
func (d *Debugger) GetOutput() string {
	output := d.Output.String()
	d.Output.Reset()
	return output
}

// Printf writes formatted output to the output buffer
func (d *Debugger) Printf(format string, args ...interface{}) {
	d.Output.WriteString(fmt.Sprintf(format, args...))
}

// Println writes a line to the output buffer
func (d *Debugger) Println(args ...interface{}) {
	d.Output.WriteString(fmt.Sprintln(args...))
}
