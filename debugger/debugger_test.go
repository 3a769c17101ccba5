package debugger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/coil-toolchain/assembler"
	"github.com/lookbusy1344/coil-toolchain/debugger"
	"github.com/lookbusy1344/coil-toolchain/vm"
)

func testDebugger(t *testing.T) *debugger.Debugger {
	t.Helper()

	program, err := assembler.New("test.hoil").Assemble(`
VAL DEFV int64 a 2
VAL DEFV int64 b 3
CF LABEL work
MATH ADD s a b
CF EXIT 5
`)
	require.NoError(t, err)

	machine := vm.New()
	machine.OutputWriter = &bytes.Buffer{}
	require.NoError(t, machine.Load(program.Instructions))

	d := debugger.NewDebugger(machine)
	labels := make(map[string]uint16)
	for _, l := range program.Labels.All() {
		labels[l.Name] = l.ID
	}
	d.LoadLabels(labels)
	d.LoadSourceMap(program.SourceMap)
	return d
}

func TestDebugger_RunToCompletion(t *testing.T) {
	d := testDebugger(t)

	require.NoError(t, d.ExecuteCommand("run"))
	assert.Equal(t, vm.StateHalted, d.VM.State)
	assert.Equal(t, int32(5), d.VM.ExitCode)
	assert.Contains(t, d.GetOutput(), "exit code 5")
}

func TestDebugger_BreakAtLabel(t *testing.T) {
	d := testDebugger(t)

	require.NoError(t, d.ExecuteCommand("break work"))
	out := d.GetOutput()
	assert.Contains(t, out, "Breakpoint 1")

	require.NoError(t, d.ExecuteCommand("run"))
	assert.Equal(t, vm.StateBreakpoint, d.VM.State)
	// Stopped at the position just past the label record
	assert.Equal(t, 3, d.VM.PC)

	require.NoError(t, d.ExecuteCommand("continue"))
	assert.Equal(t, vm.StateHalted, d.VM.State)
	assert.Equal(t, int32(5), d.VM.ExitCode)
}

func TestDebugger_BreakAtIndex(t *testing.T) {
	d := testDebugger(t)

	require.NoError(t, d.ExecuteCommand("break 1"))
	require.NoError(t, d.ExecuteCommand("run"))
	assert.Equal(t, 1, d.VM.PC)
}

func TestDebugger_Step(t *testing.T) {
	d := testDebugger(t)

	require.NoError(t, d.ExecuteCommand("step"))
	assert.Equal(t, 1, d.VM.PC)

	require.NoError(t, d.ExecuteCommand("step 2"))
	assert.Equal(t, 3, d.VM.PC)
}

func TestDebugger_EmptyCommandRepeatsLast(t *testing.T) {
	d := testDebugger(t)

	require.NoError(t, d.ExecuteCommand("step"))
	require.NoError(t, d.ExecuteCommand(""))
	assert.Equal(t, 2, d.VM.PC)
}

func TestDebugger_PrintAndExamine(t *testing.T) {
	d := testDebugger(t)
	require.NoError(t, d.ExecuteCommand("run"))
	d.GetOutput()

	require.NoError(t, d.ExecuteCommand("print 16"))
	assert.Contains(t, d.GetOutput(), "= 5")

	require.NoError(t, d.ExecuteCommand("x 0 16"))
	out := d.GetOutput()
	assert.Contains(t, out, "0x0000:")
	assert.Contains(t, out, "02")
}

func TestDebugger_InfoTopics(t *testing.T) {
	d := testDebugger(t)

	require.NoError(t, d.ExecuteCommand("info labels"))
	assert.Contains(t, d.GetOutput(), "work")

	require.NoError(t, d.ExecuteCommand("break work"))
	d.GetOutput()
	require.NoError(t, d.ExecuteCommand("info break"))
	assert.Contains(t, d.GetOutput(), "enabled")

	require.NoError(t, d.ExecuteCommand("info stack"))
	assert.Contains(t, d.GetOutput(), "Call depth")
}

func TestDebugger_ListShowsSource(t *testing.T) {
	d := testDebugger(t)

	require.NoError(t, d.ExecuteCommand("list"))
	out := d.GetOutput()
	assert.Contains(t, out, "=>")
	assert.Contains(t, out, "VAL DEFV int64 a 2")
}

func TestDebugger_ResetKeepsProgram(t *testing.T) {
	d := testDebugger(t)

	require.NoError(t, d.ExecuteCommand("run"))
	require.NoError(t, d.ExecuteCommand("reset"))
	assert.Equal(t, 0, d.VM.PC)
	assert.Equal(t, int32(0), d.VM.ExitCode)
	assert.NotEmpty(t, d.VM.Program)
}

func TestDebugger_UnknownCommand(t *testing.T) {
	d := testDebugger(t)
	err := d.ExecuteCommand("frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestDebugger_QuitSetsFlag(t *testing.T) {
	d := testDebugger(t)
	require.NoError(t, d.ExecuteCommand("quit"))
	assert.True(t, d.Quit)
}

func TestDebugger_HeapCommand(t *testing.T) {
	d := testDebugger(t)
	require.NoError(t, d.ExecuteCommand("heap"))
	out := d.GetOutput()
	assert.True(t, strings.Contains(out, "free"), out)
}
