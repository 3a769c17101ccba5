package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lookbusy1344/coil-toolchain/assembler"
	"github.com/lookbusy1344/coil-toolchain/config"
	"github.com/lookbusy1344/coil-toolchain/tools"
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
		binaryMode  = flag.Bool("b", false, "Write binary output (default: textual hex)")
		lintMode    = flag.Bool("lint", false, "Lint the source and exit")
		lintStrict  = flag.Bool("strict", false, "Treat lint warnings as errors")
		formatMode  = flag.Bool("format", false, "Print canonically formatted source and exit")
		xrefMode    = flag.Bool("xref", false, "Print a symbol/label cross reference and exit")
		dumpSymbols = flag.Bool("dump-symbols", false, "Dump the symbol table after assembly")
		verboseMode = flag.Bool("verbose", false, "Verbose output")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("hoil2coil %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(0)
	}

	if *showHelp || flag.NArg() == 0 {
		printHelp()
		if *showHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		cfg = config.DefaultConfig()
	}

	inputPath := flag.Arg(0)
	source, err := os.ReadFile(inputPath) // #nosec G304 -- user-specified source path
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Analysis-only modes need no output file
	switch {
	case *lintMode:
		opts := tools.DefaultLintOptions()
		opts.Strict = *lintStrict
		linter := tools.NewLinter(opts)
		for _, issue := range linter.Lint(string(source), inputPath) {
			fmt.Println(issue)
		}
		if linter.HasErrors() {
			os.Exit(1)
		}
		os.Exit(0)

	case *formatMode:
		fmt.Print(tools.NewFormatter(nil).Format(string(source), inputPath))
		os.Exit(0)

	case *xrefMode:
		entries := tools.NewXref().Build(string(source), inputPath)
		fmt.Print(tools.Report(entries))
		os.Exit(0)
	}

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Error: missing output file")
		printHelp()
		os.Exit(2)
	}
	outputPath := flag.Arg(1)

	if cfg.Assembler.LintOnBuild {
		linter := tools.NewLinter(nil)
		for _, issue := range linter.Lint(string(source), inputPath) {
			fmt.Fprintln(os.Stderr, issue)
		}
	}

	binary := *binaryMode || cfg.Assembler.BinaryOutput

	program, err := assembler.AssembleFile(inputPath, outputPath, binary)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Assembly failed:\n%v", err)
		os.Exit(1)
	}

	if *verboseMode {
		mode := "text"
		if binary {
			mode = "binary"
		}
		fmt.Printf("Assembled %s -> %s (%s): %s\n", inputPath, outputPath, mode, assembler.Stats(program))
	}

	if *dumpSymbols {
		fmt.Println("Symbols:")
		for _, sym := range program.Symbols.All() {
			fmt.Printf("  %-20s %-8s 0x%04X\n", sym.Name, sym.Type, sym.Addr)
		}
		fmt.Println("Labels:")
		for _, label := range program.Labels.All() {
			fmt.Printf("  %-20s id=%d\n", label.Name, label.ID)
		}
	}
}

func printHelp() {
	fmt.Printf(`hoil2coil %s - HOIL to COIL assembler

Usage: hoil2coil [options] <input.hoil> <output.coil>
       hoil2coil -lint|-format|-xref <input.hoil>

Options:
  -b               Write binary COIL (default: textual hex)
  -lint            Lint the source and exit nonzero on errors
  -strict          Treat lint warnings as errors
  -format          Print canonically formatted source to stdout
  -xref            Print a symbol/label cross reference
  -dump-symbols    Dump symbol and label tables after assembly
  -verbose         Verbose output
  -version         Show version information
  -help            Show this help message

Examples:
  hoil2coil program.hoil program.coil
  hoil2coil -b program.hoil program.coil
  hoil2coil -lint program.hoil
  hoil2coil -format program.hoil > tidy.hoil
`, Version)
}
