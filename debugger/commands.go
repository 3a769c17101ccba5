package debugger

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/lookbusy1344/coil-toolchain/vm"
)

// cmdRun restarts the program from the beginning and runs until a stop
func (d *Debugger) cmdRun(args []string) error {
	d.VM.Reset()
	d.Printf("Starting program (%d records)\n", len(d.VM.Program))
	return d.RunUntilBreak()
}

// cmdContinue resumes execution from the current position
func (d *Debugger) cmdContinue(args []string) error {
	if d.VM.State == vm.StateHalted && d.VM.PC >= len(d.VM.Program) {
		d.Println("Program is not running; use 'run'")
		return nil
	}

	// Step off the current breakpoint before resuming, otherwise the same
	// position would stop the machine again immediately.
	if d.VM.State == vm.StateBreakpoint && d.VM.PC < len(d.VM.Program) {
		if err := d.VM.Step(); err != nil {
			return err
		}
		if d.VM.State == vm.StateHalted {
			d.Printf("Program halted with exit code %d\n", d.VM.ExitCode)
			return nil
		}
	}

	return d.RunUntilBreak()
}

// cmdStep executes N instructions (default 1)
func (d *Debugger) cmdStep(args []string) error {
	count := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid step count: %q", args[0])
		}
		count = n
	}

	// Mark the machine running so that only a halt during this command
	// ends the loop early
	if d.VM.State != vm.StateError {
		d.VM.State = vm.StateRunning
	}

	for i := 0; i < count; i++ {
		if d.VM.PC >= len(d.VM.Program) {
			d.Println("End of program")
			return nil
		}
		pc := d.VM.PC
		if err := d.VM.Step(); err != nil {
			return err
		}
		d.printLocation(pc)
		if d.VM.State == vm.StateHalted {
			d.Printf("Program halted with exit code %d\n", d.VM.ExitCode)
			return nil
		}
	}
	return nil
}

// printLocation shows the instruction at an index with its source line
func (d *Debugger) printLocation(pos int) {
	if pos < 0 || pos >= len(d.VM.Program) {
		return
	}
	inst := d.VM.Program[pos]
	if src, ok := d.SourceMap[pos]; ok {
		d.Printf("%4d: %-40s ; %s\n", pos, inst.String(), src)
	} else {
		d.Printf("%4d: %s\n", pos, inst.String())
	}
}

// cmdBreak sets a breakpoint at a label or instruction index
func (d *Debugger) cmdBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: break <label|index>")
	}
	pos, err := d.ResolvePosition(args[0])
	if err != nil {
		return err
	}
	bp := d.Breakpoints.Add(pos)
	d.Printf("Breakpoint %d at index %d\n", bp.ID, bp.Position)
	return nil
}

// cmdDelete removes a breakpoint by ID, or all with no argument
func (d *Debugger) cmdDelete(args []string) error {
	if len(args) == 0 {
		d.Breakpoints.Clear()
		d.Println("All breakpoints deleted")
		return nil
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %q", args[0])
	}
	if err := d.Breakpoints.Delete(id); err != nil {
		return err
	}
	d.Printf("Breakpoint %d deleted\n", id)
	return nil
}

func (d *Debugger) cmdEnable(args []string) error {
	return d.setBreakpointEnabled(args, true)
}

func (d *Debugger) cmdDisable(args []string) error {
	return d.setBreakpointEnabled(args, false)
}

func (d *Debugger) setBreakpointEnabled(args []string, enabled bool) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: enable|disable <id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %q", args[0])
	}
	return d.Breakpoints.SetEnabled(id, enabled)
}

// cmdPrint shows a static-memory slot as a signed 64-bit value
func (d *Debugger) cmdPrint(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: print <address>")
	}
	addr, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return fmt.Errorf("invalid address: %q", args[0])
	}
	v, err := d.VM.Static.ReadInt64(uint16(addr))
	if err != nil {
		return err
	}
	d.Printf("static[0x%04X] = %d (0x%016X)\n", addr, v, uint64(v))
	return nil
}

// cmdExamine dumps a range of static memory as hex bytes
func (d *Debugger) cmdExamine(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: x <address> [count]")
	}
	addr, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return fmt.Errorf("invalid address: %q", args[0])
	}
	count := uint64(64)
	if len(args) > 1 {
		count, err = strconv.ParseUint(args[1], 0, 32)
		if err != nil {
			return fmt.Errorf("invalid count: %q", args[1])
		}
	}

	data, err := d.VM.Static.ReadBytes(uint16(addr), uint32(count))
	if err != nil {
		return err
	}

	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		d.Printf("0x%04X:", addr+uint64(i))
		for _, b := range data[i:end] {
			d.Printf(" %02X", b)
		}
		d.Println()
	}
	return nil
}

// cmdInfo shows machine state, breakpoints, or labels
func (d *Debugger) cmdInfo(args []string) error {
	topic := "state"
	if len(args) > 0 {
		topic = args[0]
	}

	switch topic {
	case "state", "vm":
		d.Printf("%s\n", d.VM.DumpState())
		d.Printf("Exit code: %d\n", d.VM.ExitCode)

	case "break", "breakpoints":
		bps := d.Breakpoints.All()
		if len(bps) == 0 {
			d.Println("No breakpoints")
			return nil
		}
		for _, bp := range bps {
			state := "enabled"
			if !bp.Enabled {
				state = "disabled"
			}
			d.Printf("%d: index %d (%s, %d hits)\n", bp.ID, bp.Position, state, bp.HitCount)
		}

	case "labels":
		names := make([]string, 0, len(d.Labels))
		for name := range d.Labels {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			id := d.Labels[name]
			pos, err := d.VM.Labels.Find(id)
			if err != nil {
				d.Printf("%-20s id=%d (not indexed)\n", name, id)
				continue
			}
			d.Printf("%-20s id=%d index=%d\n", name, id, pos)
		}

	case "stack":
		frames := d.VM.Calls.Frames()
		d.Printf("Data stack: %d bytes\n", d.VM.Stack.Top())
		d.Printf("Call depth: %d\n", len(frames))
		for i := len(frames) - 1; i >= 0; i-- {
			d.Printf("  #%d return to index %d\n", len(frames)-1-i, frames[i])
		}

	default:
		return fmt.Errorf("unknown info topic: %q", topic)
	}
	return nil
}

// cmdList shows instructions around the current position
func (d *Debugger) cmdList(args []string) error {
	center := d.VM.PC
	if len(args) > 0 {
		pos, err := d.ResolvePosition(args[0])
		if err != nil {
			return err
		}
		center = pos
	}

	start := center - 5
	if start < 0 {
		start = 0
	}
	end := center + 6
	if end > len(d.VM.Program) {
		end = len(d.VM.Program)
	}

	for i := start; i < end; i++ {
		marker := "  "
		if i == d.VM.PC {
			marker = "=>"
		}
		if d.Breakpoints.Has(i) {
			marker = "b" + marker[1:]
		}
		inst := d.VM.Program[i]
		if src, ok := d.SourceMap[i]; ok {
			d.Printf("%s %4d: %-40s ; %s\n", marker, i, inst.String(), src)
		} else {
			d.Printf("%s %4d: %s\n", marker, i, inst.String())
		}
	}
	return nil
}

// cmdHeap shows the heap block list
func (d *Debugger) cmdHeap(args []string) error {
	blocks := d.VM.Heap.Blocks()
	d.Printf("%d blocks (%d allocs, %d frees)\n", len(blocks), d.VM.Heap.AllocCount, d.VM.Heap.FreeCount)
	for i, b := range blocks {
		state := "free"
		if b.Used {
			state = "used"
		}
		d.Printf("  %d: offset 0x%04X size %5d %s\n", i, b.Offset, b.Size, state)
	}
	return nil
}

// cmdReset resets machine state, keeping the program and breakpoints
func (d *Debugger) cmdReset(args []string) error {
	d.VM.Reset()
	d.Println("Machine reset")
	return nil
}

// cmdHelp shows command help
func (d *Debugger) cmdHelp(args []string) error {
	d.Println(`Commands:
  run, r             Restart program execution
  continue, c        Continue execution
  step, s [N]        Execute N instructions (default 1)
  break, b POS       Set breakpoint at label or instruction index
  delete, d [ID]     Delete breakpoint (all if no ID)
  enable/disable ID  Toggle a breakpoint
  print, p ADDR      Print static memory slot as int64
  x ADDR [COUNT]     Hex dump static memory
  info [TOPIC]       state | breakpoints | labels | stack
  list, l [POS]      List instructions around a position
  heap               Show heap block list
  reset              Reset machine state
  quit, q            Leave the debugger
  help, h            This help`)
	return nil
}
