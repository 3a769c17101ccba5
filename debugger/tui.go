package debugger

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lookbusy1344/coil-toolchain/vm"
)

// TUI is the full-screen debugger interface: program listing on the left,
// machine state on the right, output and a command line below.
type TUI struct {
	Debugger *Debugger
	App      *tview.Application

	MainLayout *tview.Flex

	CodeView        *tview.TextView
	StateView       *tview.TextView
	MemoryView      *tview.TextView
	StackView       *tview.TextView
	BreakpointsView *tview.TextView
	OutputView      *tview.TextView
	CommandInput    *tview.InputField

	// MemoryAddress is the base of the static-memory hex pane
	MemoryAddress uint16
}

// NewTUI creates a new text user interface
func NewTUI(debugger *Debugger) *TUI {
	tui := &TUI{
		Debugger: debugger,
		App:      tview.NewApplication(),
	}

	tui.initializeViews()
	tui.buildLayout()
	tui.setupKeyBindings()

	return tui
}

// initializeViews creates all the view panels
func (t *TUI) initializeViews() {
	t.CodeView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.CodeView.SetBorder(true).SetTitle(" Program ")

	t.StateView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	t.StateView.SetBorder(true).SetTitle(" Machine ")

	t.MemoryView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.MemoryView.SetBorder(true).SetTitle(" Static Memory ")

	t.StackView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.StackView.SetBorder(true).SetTitle(" Stacks ")

	t.BreakpointsView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.BreakpointsView.SetBorder(true).SetTitle(" Breakpoints ")

	t.OutputView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	t.OutputView.SetBorder(true).SetTitle(" Output ")

	t.CommandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0)
	t.CommandInput.SetBorder(true).SetTitle(" Command ")
	t.CommandInput.SetDoneFunc(t.handleCommand)
}

// buildLayout constructs the TUI layout
func (t *TUI) buildLayout() {
	rightPanel := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.StateView, 6, 0, false).
		AddItem(t.MemoryView, 0, 2, false).
		AddItem(t.StackView, 0, 1, false).
		AddItem(t.BreakpointsView, 6, 0, false)

	mainContent := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(t.CodeView, 0, 2, false).
		AddItem(rightPanel, 0, 1, false)

	t.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(mainContent, 0, 4, false).
		AddItem(t.OutputView, 8, 0, false).
		AddItem(t.CommandInput, 3, 0, true)
}

// setupKeyBindings sets up keyboard shortcuts
func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF5:
			t.executeCommand("continue")
			return nil
		case tcell.KeyF11:
			t.executeCommand("step")
			return nil
		case tcell.KeyCtrlC:
			t.App.Stop()
			return nil
		case tcell.KeyCtrlL:
			t.RefreshAll()
			return nil
		}
		return event
	})
}

// handleCommand processes command input
func (t *TUI) handleCommand(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	cmd := t.CommandInput.GetText()
	t.CommandInput.SetText("")
	t.executeCommand(cmd)
}

// executeCommand runs a debugger command and refreshes all panes
func (t *TUI) executeCommand(cmd string) {
	if err := t.Debugger.ExecuteCommand(cmd); err != nil {
		fmt.Fprintf(t.OutputView, "[red]Error: %v[white]\n", err)
	}
	if out := t.Debugger.GetOutput(); out != "" {
		fmt.Fprint(t.OutputView, tview.Escape(out))
	}
	t.OutputView.ScrollToEnd()

	if t.Debugger.Quit {
		t.App.Stop()
		return
	}
	t.RefreshAll()
}

// RefreshAll redraws every pane from machine state
func (t *TUI) RefreshAll() {
	t.refreshCode()
	t.refreshState()
	t.refreshMemory()
	t.refreshStacks()
	t.refreshBreakpoints()
}

// refreshCode renders the listing around the current position
func (t *TUI) refreshCode() {
	machine := t.Debugger.VM

	var sb strings.Builder
	start := machine.PC - 12
	if start < 0 {
		start = 0
	}
	end := start + 30
	if end > len(machine.Program) {
		end = len(machine.Program)
	}

	for i := start; i < end; i++ {
		marker := "  "
		color := ""
		if i == machine.PC {
			marker = "=>"
			color = "[yellow]"
		}
		if t.Debugger.Breakpoints.Has(i) {
			marker = "b" + marker[1:]
			if color == "" {
				color = "[red]"
			}
		}

		line := machine.Program[i].String()
		if src, ok := t.Debugger.SourceMap[i]; ok {
			line = fmt.Sprintf("%-40s ; %s", line, src)
		}
		fmt.Fprintf(&sb, "%s%s %4d: %s[white]\n", color, marker, i, tview.Escape(line))
	}

	t.CodeView.SetText(sb.String())
}

// refreshState renders the machine summary pane
func (t *TUI) refreshState() {
	machine := t.Debugger.VM
	t.StateView.SetText(fmt.Sprintf(
		"State:  %s\nPC:     %d / %d\nCycles: %d\nExit:   %d",
		machine.State, machine.PC, len(machine.Program), machine.Cycles, machine.ExitCode))
}

// refreshMemory renders a hex window over static memory
func (t *TUI) refreshMemory() {
	machine := t.Debugger.VM

	var sb strings.Builder
	window := uint32(256)
	if uint32(t.MemoryAddress)+window > vm.StaticMemorySize {
		window = vm.StaticMemorySize - uint32(t.MemoryAddress)
	}
	data, err := machine.Static.ReadBytes(t.MemoryAddress, window)
	if err != nil {
		t.MemoryView.SetText(err.Error())
		return
	}

	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(&sb, "0x%04X:", uint32(t.MemoryAddress)+uint32(i))
		for _, b := range data[i:end] {
			fmt.Fprintf(&sb, " %02X", b)
		}
		sb.WriteString("\n")
	}

	t.MemoryView.SetText(sb.String())
}

// refreshStacks renders the data-stack and call-stack pane
func (t *TUI) refreshStacks() {
	machine := t.Debugger.VM

	var sb strings.Builder
	fmt.Fprintf(&sb, "Data stack: %d bytes\n", machine.Stack.Top())

	frames := machine.Calls.Frames()
	fmt.Fprintf(&sb, "Call depth: %d\n", len(frames))
	for i := len(frames) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, " #%d -> %d\n", len(frames)-1-i, frames[i])
	}

	t.StackView.SetText(sb.String())
}

// refreshBreakpoints renders the breakpoint list
func (t *TUI) refreshBreakpoints() {
	var sb strings.Builder
	for _, bp := range t.Debugger.Breakpoints.All() {
		state := "on"
		if !bp.Enabled {
			state = "off"
		}
		fmt.Fprintf(&sb, "%d: index %d [%s] hits %d\n", bp.ID, bp.Position, state, bp.HitCount)
	}
	t.BreakpointsView.SetText(sb.String())
}

// RunTUI starts the full-screen debugger
func RunTUI(d *Debugger) error {
	tui := NewTUI(d)

	// Program output goes to the output pane
	d.VM.OutputWriter = tview.ANSIWriter(tui.OutputView)

	tui.RefreshAll()
	return tui.App.SetRoot(tui.MainLayout, true).SetFocus(tui.CommandInput).Run()
}
