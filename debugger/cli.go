package debugger

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// RunCLI runs the line-oriented debugger loop on stdin/stdout
func RunCLI(d *Debugger) error {
	reader := bufio.NewReader(os.Stdin)

	for !d.Quit {
		fmt.Print("(coildbg) ")

		line, err := reader.ReadString('\n')
		if err != nil {
			// EOF ends the session
			fmt.Println()
			return nil
		}

		if err := d.ExecuteCommand(strings.TrimSpace(line)); err != nil {
			fmt.Printf("Error: %v\n", err)
		}

		if out := d.GetOutput(); out != "" {
			fmt.Print(out)
		}
	}

	return nil
}
