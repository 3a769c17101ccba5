package tools_test

import (
	"strings"
	"testing"

	"github.com/lookbusy1344/coil-toolchain/assembler"
	"github.com/lookbusy1344/coil-toolchain/tools"
)

func TestFormat_CanonicalLayout(t *testing.T) {
	source := "VAL   DEFV,int64   counter,0\nCF LABEL start\n  CF   JMP   start\n"
	got := tools.NewFormatter(nil).Format(source, "test.hoil")

	want := "    VAL DEFV int64 counter 0\nCF LABEL start\n    CF JMP start\n"
	if got != want {
		t.Errorf("formatted output:\n%q\nwant:\n%q", got, want)
	}
}

func TestFormat_LabelsFlushLeft(t *testing.T) {
	got := tools.NewFormatter(nil).Format("   CF LABEL here\n", "test.hoil")
	if !strings.HasPrefix(got, "CF LABEL here") {
		t.Errorf("labels should be flush left: %q", got)
	}
}

func TestFormat_TrailingCommentsAligned(t *testing.T) {
	got := tools.NewFormatter(nil).Format("CF EXIT 0;done\n", "test.hoil")

	line := strings.TrimRight(got, "\n")
	idx := strings.Index(line, "; done")
	if idx != 36 {
		t.Errorf("comment column: got %d in %q", idx, line)
	}
}

func TestFormat_CommentOnlyLinesKept(t *testing.T) {
	got := tools.NewFormatter(nil).Format(";   header comment\nCF EXIT 0\n", "test.hoil")
	if !strings.HasPrefix(got, "; header comment\n") {
		t.Errorf("comment line lost: %q", got)
	}
}

func TestFormat_BlankLinesPreserved(t *testing.T) {
	got := tools.NewFormatter(nil).Format("CF RET\n\nCF EXIT 0\n", "test.hoil")
	if !strings.Contains(got, "\n\n") {
		t.Errorf("blank line lost: %q", got)
	}

	opts := tools.DefaultFormatOptions()
	opts.KeepBlanks = false
	got = tools.NewFormatter(opts).Format("CF RET\n\nCF EXIT 0\n", "test.hoil")
	if strings.Contains(got, "\n\n") {
		t.Errorf("blank line kept with KeepBlanks off: %q", got)
	}
}

func TestFormat_PreservesSemantics(t *testing.T) {
	source := `
VAL DEFV int64 a 2
VAL DEFV int64 b 3
MATH ADD s,a,b   ; sum
CF EXIT 0
`
	formatted := tools.NewFormatter(nil).Format(source, "test.hoil")

	before, err := assembler.New("a.hoil").Assemble(source)
	if err != nil {
		t.Fatal(err)
	}
	after, err := assembler.New("b.hoil").Assemble(formatted)
	if err != nil {
		t.Fatal(err)
	}

	if len(before.Instructions) != len(after.Instructions) {
		t.Fatalf("record count changed: %d -> %d", len(before.Instructions), len(after.Instructions))
	}
	for i := range before.Instructions {
		if before.Instructions[i] != after.Instructions[i] {
			t.Errorf("record %d changed: %v -> %v", i, before.Instructions[i], after.Instructions[i])
		}
	}
}

func TestFormat_Idempotent(t *testing.T) {
	source := "VAL DEFV int64 a 1 ; keep\nCF LABEL x\nCF JMP x\n"
	f := tools.NewFormatter(nil)

	once := f.Format(source, "test.hoil")
	twice := tools.NewFormatter(nil).Format(once, "test.hoil")
	if once != twice {
		t.Errorf("formatting is not idempotent:\n%q\n%q", once, twice)
	}
}
