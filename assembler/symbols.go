package assembler

import (
	"fmt"

	"github.com/lookbusy1344/coil-toolchain/coil"
)

// Table capacities. These are contract limits: overflowing either table is
// a fatal translation error.
const (
	MaxSymbols = 1024
	MaxLabels  = 1024
)

// Symbol is a named storage slot in static memory.
type Symbol struct {
	Name string
	Addr uint16
	Type coil.MemoryType
}

// SymbolTable manages static-memory symbols during assembly. Addresses are
// assigned monotonically from a next-free counter that advances by each
// new symbol's type size. Symbols are never rebound once defined.
type SymbolTable struct {
	symbols  map[string]*Symbol
	order    []string
	nextAddr uint16
}

// NewSymbolTable creates an empty symbol table
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		symbols: make(map[string]*Symbol),
	}
}

// Define allocates a new symbol of the given type at the next free static
// address. Redefinition is an error.
func (st *SymbolTable) Define(name string, typ coil.MemoryType) (*Symbol, error) {
	if _, exists := st.symbols[name]; exists {
		return nil, fmt.Errorf("symbol %q already defined", name)
	}
	if len(st.symbols) >= MaxSymbols {
		return nil, fmt.Errorf("symbol table full (%d symbols)", MaxSymbols)
	}

	sym := &Symbol{
		Name: name,
		Addr: st.nextAddr,
		Type: typ,
	}
	st.symbols[name] = sym
	st.order = append(st.order, name)
	st.nextAddr += typ.Size()
	return sym, nil
}

// Lookup looks up a symbol by name
func (st *SymbolTable) Lookup(name string) (*Symbol, bool) {
	sym, exists := st.symbols[name]
	return sym, exists
}

// Resolve returns an existing symbol, or defines it with the given type
// when it does not exist yet.
func (st *SymbolTable) Resolve(name string, typ coil.MemoryType) (*Symbol, error) {
	if sym, exists := st.symbols[name]; exists {
		return sym, nil
	}
	return st.Define(name, typ)
}

// NextAddr returns the next free static address
func (st *SymbolTable) NextAddr() uint16 {
	return st.nextAddr
}

// Len returns the number of defined symbols
func (st *SymbolTable) Len() int {
	return len(st.symbols)
}

// All returns all symbols in definition order
func (st *SymbolTable) All() []*Symbol {
	out := make([]*Symbol, 0, len(st.order))
	for _, name := range st.order {
		out = append(out, st.symbols[name])
	}
	return out
}

// Label is a symbolic name for a position in the instruction stream.
// A label may be referenced before it is defined; the reference creates
// an entry with Defined false, and a LABEL directive flips it.
type Label struct {
	Name    string
	ID      uint16
	Defined bool
}

// LabelTable assigns numeric IDs to labels during assembly. IDs start at 1;
// ID 0 means "not found".
type LabelTable struct {
	labels map[string]*Label
	order  []string
	nextID uint16
}

// NewLabelTable creates an empty label table
func NewLabelTable() *LabelTable {
	return &LabelTable{
		labels: make(map[string]*Label),
		nextID: 1,
	}
}

// Reference returns the label's ID, creating an undefined forward-reference
// entry when the name has not been seen yet.
func (lt *LabelTable) Reference(name string) (uint16, error) {
	if label, exists := lt.labels[name]; exists {
		return label.ID, nil
	}
	return lt.add(name, false)
}

// Define marks a label as defined, creating it when needed. Defining a
// label twice is an error.
func (lt *LabelTable) Define(name string) (uint16, error) {
	if label, exists := lt.labels[name]; exists {
		if label.Defined {
			return 0, fmt.Errorf("label %q already defined", name)
		}
		label.Defined = true
		return label.ID, nil
	}
	return lt.add(name, true)
}

func (lt *LabelTable) add(name string, defined bool) (uint16, error) {
	if len(lt.labels) >= MaxLabels {
		return 0, fmt.Errorf("label table full (%d labels)", MaxLabels)
	}

	label := &Label{
		Name:    name,
		ID:      lt.nextID,
		Defined: defined,
	}
	lt.labels[name] = label
	lt.order = append(lt.order, name)
	lt.nextID++
	return label.ID, nil
}

// Lookup looks up a label by name
func (lt *LabelTable) Lookup(name string) (*Label, bool) {
	label, exists := lt.labels[name]
	return label, exists
}

// Undefined returns all labels that were referenced but never defined,
// in reference order.
func (lt *LabelTable) Undefined() []*Label {
	var out []*Label
	for _, name := range lt.order {
		if label := lt.labels[name]; !label.Defined {
			out = append(out, label)
		}
	}
	return out
}

// All returns all labels in first-use order
func (lt *LabelTable) All() []*Label {
	out := make([]*Label, 0, len(lt.order))
	for _, name := range lt.order {
		out = append(out, lt.labels[name])
	}
	return out
}

// Len returns the number of labels
func (lt *LabelTable) Len() int {
	return len(lt.labels)
}
