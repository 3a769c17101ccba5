package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lookbusy1344/coil-toolchain/assembler"
	"github.com/lookbusy1344/coil-toolchain/parser"
)

// LintLevel represents the severity of a lint issue
type LintLevel int

const (
	LintError   LintLevel = iota // translation errors
	LintWarning                  // suspicious constructs
	LintInfo                     // style suggestions
)

func (l LintLevel) String() string {
	switch l {
	case LintError:
		return "error"
	case LintWarning:
		return "warning"
	case LintInfo:
		return "info"
	default:
		return "unknown"
	}
}

// LintIssue represents a single lint finding
type LintIssue struct {
	Level   LintLevel
	Line    int
	Message string
	Code    string // issue code like "ASSEMBLE", "UNREACHABLE"
}

func (i *LintIssue) String() string {
	return fmt.Sprintf("line %d: %s: %s [%s]", i.Line, i.Level, i.Message, i.Code)
}

// LintOptions controls linter behavior
type LintOptions struct {
	Strict      bool // treat warnings as errors
	CheckUnused bool // check for unused labels
	CheckReach  bool // check for unreachable code
}

// DefaultLintOptions returns default linter options
func DefaultLintOptions() *LintOptions {
	return &LintOptions{
		CheckUnused: true,
		CheckReach:  true,
	}
}

// Linter analyzes HOIL source for issues
type Linter struct {
	options *LintOptions
	issues  []*LintIssue
}

// NewLinter creates a new linter
func NewLinter(options *LintOptions) *Linter {
	if options == nil {
		options = DefaultLintOptions()
	}
	return &Linter{
		options: options,
		issues:  make([]*LintIssue, 0),
	}
}

// Lint analyzes the given source and returns all findings sorted by line
func (l *Linter) Lint(input, filename string) []*LintIssue {
	// Run the real translation; its errors are lint errors verbatim
	asm := assembler.New(filename)
	if _, err := asm.Assemble(input); err != nil {
		for _, e := range asm.Errors().Errors {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintError,
				Line:    e.Pos.Line,
				Message: strings.TrimSpace(e.Message),
				Code:    "ASSEMBLE",
			})
		}
	}

	lines := parser.NewLexer(filename).TokenizeAll(input)

	if l.options.CheckUnused {
		l.checkUnusedLabels(lines)
	}
	if l.options.CheckReach {
		l.checkUnreachable(lines)
	}
	l.checkMissingExit(lines)

	sort.SliceStable(l.issues, func(i, j int) bool {
		return l.issues[i].Line < l.issues[j].Line
	})
	return l.issues
}

// HasErrors reports whether any finding blocks a build
func (l *Linter) HasErrors() bool {
	for _, issue := range l.issues {
		if issue.Level == LintError {
			return true
		}
		if l.options.Strict && issue.Level == LintWarning {
			return true
		}
	}
	return false
}

// checkUnusedLabels flags labels that are defined but never jumped to or
// called.
func (l *Linter) checkUnusedLabels(lines []parser.Line) {
	defined := make(map[string]int) // label -> line
	referenced := make(map[string]bool)

	for _, line := range lines {
		toks := line.Tokens
		if len(toks) < 3 || toks[0].Literal != "CF" {
			continue
		}
		switch toks[1].Literal {
		case "LABEL":
			defined[toks[2].Literal] = line.Number
		case "JMP", "CALL":
			referenced[toks[2].Literal] = true
		case "JCOND":
			if len(toks) == 6 {
				referenced[toks[5].Literal] = true
			}
		}
	}

	for name, lineNum := range defined {
		if !referenced[name] {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintWarning,
				Line:    lineNum,
				Message: fmt.Sprintf("label %q is never referenced", name),
				Code:    "UNUSED_LABEL",
			})
		}
	}
}

// isTerminator reports whether a line unconditionally leaves the
// instruction stream.
func isTerminator(toks []parser.Token) bool {
	if len(toks) < 2 || toks[0].Literal != "CF" {
		return false
	}
	switch toks[1].Literal {
	case "JMP", "RET", "EXIT":
		return true
	}
	return false
}

// checkUnreachable flags instructions that follow an unconditional
// transfer without an intervening label.
func (l *Linter) checkUnreachable(lines []parser.Line) {
	terminated := false
	for _, line := range lines {
		toks := line.Tokens
		if len(toks) == 0 {
			continue
		}

		isLabel := len(toks) >= 2 && toks[0].Literal == "CF" && toks[1].Literal == "LABEL"
		if isLabel {
			terminated = false
			continue
		}

		if terminated {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintWarning,
				Line:    line.Number,
				Message: "unreachable code",
				Code:    "UNREACHABLE",
			})
			terminated = false // one report per region
			continue
		}

		terminated = isTerminator(toks)
	}
}

// checkMissingExit suggests an explicit exit when the program can fall
// off the end of the stream.
func (l *Linter) checkMissingExit(lines []parser.Line) {
	var last []parser.Token
	lastLine := 0
	for _, line := range lines {
		if len(line.Tokens) > 0 {
			last = line.Tokens
			lastLine = line.Number
		}
	}
	if last == nil {
		return
	}
	if isTerminator(last) {
		return
	}
	if len(last) >= 3 && last[0].Literal == "CF" && last[1].Literal == "SYSC" && last[2].Literal == "60" {
		return
	}
	l.issues = append(l.issues, &LintIssue{
		Level:   LintInfo,
		Line:    lastLine,
		Message: "program does not end with an explicit EXIT",
		Code:    "NO_EXIT",
	})
}
