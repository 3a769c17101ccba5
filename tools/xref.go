package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lookbusy1344/coil-toolchain/parser"
)

// XrefKind distinguishes the two name spaces in a HOIL program
type XrefKind int

const (
	XrefSymbol XrefKind = iota
	XrefLabel
)

func (k XrefKind) String() string {
	if k == XrefLabel {
		return "label"
	}
	return "symbol"
}

// XrefEntry is the usage record for one name
type XrefEntry struct {
	Name       string
	Kind       XrefKind
	DefLine    int   // line of definition (0 if never defined)
	References []int // lines where the name is used
}

// Xref builds a cross-reference of symbol and label usage from HOIL
// source. Definitions are LABEL directives and the names a line allocates
// (DEFV, MOVV and LOAD targets, MATH/BIT destinations, MEM ALLOC/READ
// destinations); the other operands count as references. SYSC and EXIT
// operands are not scanned.
type Xref struct {
	entries map[string]*XrefEntry
}

// NewXref creates an empty cross-referencer
func NewXref() *Xref {
	return &Xref{
		entries: make(map[string]*XrefEntry),
	}
}

func (x *Xref) entry(name string, kind XrefKind) *XrefEntry {
	if e, ok := x.entries[name]; ok {
		return e
	}
	e := &XrefEntry{Name: name, Kind: kind}
	x.entries[name] = e
	return e
}

// define records a defining occurrence
func (x *Xref) define(name string, kind XrefKind, line int) {
	e := x.entry(name, kind)
	if e.DefLine == 0 {
		e.DefLine = line
	}
}

// reference records a using occurrence
func (x *Xref) reference(name string, kind XrefKind, line int) {
	name = strings.TrimPrefix(name, "&")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return // literal addresses are not names
	}
	e := x.entry(name, kind)
	e.References = append(e.References, line)
}

// Build scans the source and fills the table
func (x *Xref) Build(input, filename string) []*XrefEntry {
	lines := parser.NewLexer(filename).TokenizeAll(input)

	for _, line := range lines {
		toks := line.Tokens
		if len(toks) < 2 {
			continue
		}
		n := line.Number

		switch toks[0].Literal {
		case "VAL":
			if len(toks) != 5 {
				continue
			}
			switch toks[1].Literal {
			case "DEFV":
				x.define(toks[3].Literal, XrefSymbol, n)
			case "MOVV", "LOAD":
				x.define(toks[3].Literal, XrefSymbol, n)
				x.reference(toks[4].Literal, XrefSymbol, n)
			case "STORE":
				x.reference(toks[3].Literal, XrefSymbol, n)
				x.reference(toks[4].Literal, XrefSymbol, n)
			}

		case "MATH", "BIT":
			if len(toks) < 4 {
				continue
			}
			x.define(toks[2].Literal, XrefSymbol, n)
			for _, tok := range toks[3:] {
				x.reference(tok.Literal, XrefSymbol, n)
			}

		case "CF":
			switch toks[1].Literal {
			case "LABEL":
				if len(toks) == 3 {
					x.define(toks[2].Literal, XrefLabel, n)
				}
			case "JMP", "CALL":
				if len(toks) == 3 {
					x.reference(toks[2].Literal, XrefLabel, n)
				}
			case "JCOND":
				if len(toks) == 6 {
					x.reference(toks[3].Literal, XrefSymbol, n)
					x.reference(toks[4].Literal, XrefSymbol, n)
					x.reference(toks[5].Literal, XrefLabel, n)
				}
			case "PUSH", "POP":
				if len(toks) == 3 {
					x.reference(toks[2].Literal, XrefSymbol, n)
				}
			}

		case "MEM":
			if len(toks) < 3 {
				continue
			}
			switch toks[1].Literal {
			case "ALLOC", "READ":
				x.define(toks[2].Literal, XrefSymbol, n)
			case "FREE", "WRITE":
				x.reference(toks[2].Literal, XrefSymbol, n)
			}
		}
	}

	result := make([]*XrefEntry, 0, len(x.entries))
	for _, e := range x.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Kind != result[j].Kind {
			return result[i].Kind < result[j].Kind
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// Report renders the cross-reference as a readable table
func Report(entries []*XrefEntry) string {
	var sb strings.Builder

	sb.WriteString("Cross Reference\n")
	sb.WriteString("===============\n")
	fmt.Fprintf(&sb, "%-20s %-8s %-8s %s\n", "Name", "Kind", "Defined", "References")

	for _, e := range entries {
		def := "-"
		if e.DefLine > 0 {
			def = fmt.Sprintf("%d", e.DefLine)
		}
		refs := make([]string, len(e.References))
		for i, r := range e.References {
			refs[i] = fmt.Sprintf("%d", r)
		}
		fmt.Fprintf(&sb, "%-20s %-8s %-8s %s\n", e.Name, e.Kind, def, strings.Join(refs, ", "))
	}

	return sb.String()
}
