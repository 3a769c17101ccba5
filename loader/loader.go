package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lookbusy1344/coil-toolchain/coil"
	"github.com/lookbusy1344/coil-toolchain/vm"
)

// ReadBinary decodes a stream of abutting fixed-size records. Marker
// mismatches and partial trailing records are load-time errors.
func ReadBinary(r io.Reader) ([]coil.Instruction, error) {
	var program []coil.Instruction
	br := bufio.NewReader(r)

	for {
		var inst coil.Instruction
		err := inst.Read(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(program), err)
		}
		program = append(program, inst)
	}

	return program, nil
}

// ReadText parses the diagnostic hex format, one record per line. Blank
// lines are ignored.
func ReadText(r io.Reader) ([]coil.Instruction, error) {
	var program []coil.Instruction
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		inst, err := coil.ParseText(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		program = append(program, inst)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}

	return program, nil
}

// ReadFile loads a COIL program file in the selected mode
func ReadFile(path string, binary bool) ([]coil.Instruction, error) {
	f, err := os.Open(path) // #nosec G304 -- user-specified program path
	if err != nil {
		return nil, fmt.Errorf("failed to open program: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if binary {
		return ReadBinary(f)
	}
	return ReadText(f)
}

// LoadFileIntoVM reads a program file and attaches it to the machine,
// running the label-collection pass before anything executes.
func LoadFileIntoVM(machine *vm.VM, path string, binary bool) error {
	program, err := ReadFile(path, binary)
	if err != nil {
		return err
	}
	return machine.Load(program)
}
