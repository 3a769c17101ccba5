package assembler

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// WriteBinary writes the program as abutting fixed-size records with no
// header, footer, or padding.
func WriteBinary(w io.Writer, program *Program) error {
	bw := bufio.NewWriter(w)
	for i := range program.Instructions {
		if err := program.Instructions[i].Write(bw); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WriteText writes the program in the diagnostic hex format, one record
// per line.
func WriteText(w io.Writer, program *Program) error {
	bw := bufio.NewWriter(w)
	for i := range program.Instructions {
		if _, err := fmt.Fprintln(bw, program.Instructions[i].Text()); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// AssembleFile translates a HOIL source file and writes the output file in
// the selected mode.
func AssembleFile(inputPath, outputPath string, binary bool) (program *Program, err error) {
	source, err := os.ReadFile(inputPath) // #nosec G304 -- user-specified source path
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	asm := New(inputPath)
	program, err = asm.Assemble(string(source))
	if err != nil {
		return nil, err
	}

	out, err := os.Create(outputPath) // #nosec G304 -- user-specified output path
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output: %w", cerr)
		}
	}()

	if binary {
		err = WriteBinary(out, program)
	} else {
		err = WriteText(out, program)
	}
	if err != nil {
		return nil, err
	}

	return program, nil
}

// Stats summarizes a translated program for verbose output
func Stats(program *Program) string {
	return fmt.Sprintf("%d records, %d symbols (%d bytes static), %d labels",
		len(program.Instructions), program.Symbols.Len(), program.Symbols.NextAddr(), program.Labels.Len())
}
