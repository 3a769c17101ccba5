package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lookbusy1344/coil-toolchain/api"
	"github.com/lookbusy1344/coil-toolchain/config"
	"github.com/lookbusy1344/coil-toolchain/debugger"
	"github.com/lookbusy1344/coil-toolchain/loader"
	"github.com/lookbusy1344/coil-toolchain/vm"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		binaryMode  = flag.Bool("b", false, "Read binary COIL input")
		showStats   = flag.Bool("s", false, "Print execution statistics after halt")
		statsFile   = flag.String("stats-file", "", "Statistics output file (default: stdout)")
		statsFormat = flag.String("stats-format", "json", "Statistics format (json, csv)")
		maxCycles   = flag.Uint64("max-cycles", 0, "Maximum instructions before halt (0 = config default)")
		enableTrace = flag.Bool("trace", false, "Enable execution trace")
		traceFile   = flag.String("trace-file", "", "Trace output file (default: trace.log in log dir)")
		debugMode   = flag.Bool("debug", false, "Start in debugger mode (CLI)")
		tuiMode     = flag.Bool("tui", false, "Start in TUI debugger mode")
		apiServer   = flag.Bool("api-server", false, "Start HTTP API server mode")
		apiPort     = flag.Int("port", 8080, "API server port (used with -api-server)")
		verboseMode = flag.Bool("verbose", false, "Verbose output")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("coilvm %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// API server mode needs no program file
	if *apiServer {
		runAPIServer(*apiPort)
		return
	}

	if flag.NArg() == 0 {
		printHelp()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		cfg = config.DefaultConfig()
	}

	programPath := flag.Arg(0)
	if _, err := os.Stat(programPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found: %s\n", programPath)
		os.Exit(1)
	}

	binary := *binaryMode || cfg.Execution.BinaryInput

	machine := vm.New()
	if *maxCycles > 0 {
		machine.CycleLimit = *maxCycles
	} else {
		machine.CycleLimit = cfg.Execution.MaxCycles
	}

	if *verboseMode {
		mode := "text"
		if binary {
			mode = "binary"
		}
		fmt.Printf("Loading %s program: %s\n", mode, programPath)
	}

	if err := loader.LoadFileIntoVM(machine, programPath, binary); err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		os.Exit(1)
	}

	if *verboseMode {
		fmt.Printf("Loaded %d records, %d labels\n", len(machine.Program), machine.Labels.Len())
	}

	// Set up tracing and statistics
	if *enableTrace || cfg.Execution.EnableTrace {
		tracePath := *traceFile
		if tracePath == "" {
			tracePath = filepath.Join(config.GetLogPath(), cfg.Trace.OutputFile)
		}

		traceWriter, err := os.Create(tracePath) // #nosec G304 -- user-specified trace output path
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating trace file: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			if err := traceWriter.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close trace file: %v\n", err)
			}
		}()

		machine.Trace = vm.NewExecutionTrace(traceWriter)
		machine.Trace.MaxEntries = cfg.Trace.MaxEntries

		if *verboseMode {
			fmt.Printf("Execution trace enabled: %s\n", tracePath)
		}
	}

	if *showStats || cfg.Execution.EnableStats {
		machine.Statistics = vm.NewStatistics()
		machine.Statistics.Start()
	}

	// Debugger modes
	if *debugMode || *tuiMode {
		dbg := debugger.NewDebugger(machine)
		if *tuiMode {
			if err := debugger.RunTUI(dbg); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
				os.Exit(1)
			}
		} else {
			fmt.Println("COIL Debugger - Type 'help' for commands")
			fmt.Printf("Program loaded: %s\n", programPath)
			fmt.Println()

			if err := debugger.RunCLI(dbg); err != nil {
				fmt.Fprintf(os.Stderr, "Debugger error: %v\n", err)
				os.Exit(1)
			}
		}
		return
	}

	// Direct execution mode
	if err := machine.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Runtime error at index %d: %v\n", machine.PC, err)
		flushDiagnostics(machine, cfg, *statsFile, *statsFormat, *verboseMode)
		os.Exit(1)
	}

	if machine.Statistics != nil {
		machine.Statistics.Stop()
	}

	if *verboseMode {
		fmt.Printf("Execution complete: %s\n", machine.DumpState())
	}

	flushDiagnostics(machine, cfg, *statsFile, *statsFormat, *verboseMode)

	os.Exit(int(machine.ExitCode))
}

// flushDiagnostics writes the trace and statistics outputs if enabled
func flushDiagnostics(machine *vm.VM, cfg *config.Config, statsFile, statsFormat string, verbose bool) {
	if machine.Trace != nil {
		if err := machine.Trace.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "Error flushing trace: %v\n", err)
		}
	}

	if machine.Statistics == nil {
		return
	}

	var writer *os.File
	if statsFile == "" {
		writer = os.Stdout
	} else {
		var err error
		writer, err = os.Create(statsFile) // #nosec G304 -- user-specified stats output path
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating statistics file: %v\n", err)
			return
		}
		defer func() {
			if err := writer.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close statistics file: %v\n", err)
			}
		}()
	}

	var err error
	switch statsFormat {
	case "csv":
		err = machine.Statistics.ExportCSV(writer)
	case "json":
		err = machine.Statistics.ExportJSON(writer)
	default:
		err = machine.Statistics.ExportJSON(writer)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting statistics: %v\n", err)
	}

	if verbose {
		fmt.Println()
		fmt.Println(machine.Statistics.String())
	}
}

// runAPIServer starts the HTTP front end with graceful shutdown
func runAPIServer(port int) {
	server := api.NewServerWithVersion(port, Version, Commit, Date)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Printf("API server listening on port %d\n", port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "API server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	fmt.Println("\nShutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("API server stopped")
}

func printHelp() {
	fmt.Printf(`coilvm %s - COIL virtual machine

Usage: coilvm [options] <input.coil>
       coilvm -api-server [-port N]

Options:
  -b               Read binary COIL input (default: config, normally text)
  -s               Print execution statistics after halt
  -stats-file F    Statistics output file (default: stdout)
  -stats-format F  Statistics format: json, csv (default: json)
  -max-cycles N    Maximum instructions before halt
  -trace           Enable execution trace
  -trace-file F    Trace output file (default: trace.log in log dir)
  -debug           Start in debugger mode (CLI)
  -tui             Start in TUI debugger mode
  -api-server      Start HTTP API server mode (no program file required)
  -port N          API server port (default: 8080)
  -verbose         Verbose output
  -version         Show version information
  -help            Show this help message

The process exit code is the program's own exit code on a clean halt,
and nonzero on any load-time or runtime error.

Examples:
  coilvm -b program.coil
  coilvm -b -s program.coil
  coilvm -b -debug program.coil
  coilvm -api-server -port 3000
`, Version)
}
