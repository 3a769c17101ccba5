package assembler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lookbusy1344/coil-toolchain/coil"
)

// parseImmediate parses a DEFV-style immediate value: booleans map to 1/0,
// a leading digit or sign means base-10 integer, and the register-style
// idN form yields N.
func parseImmediate(tok string) (uint64, error) {
	switch {
	case tok == "true":
		return 1, nil
	case tok == "false":
		return 0, nil
	case strings.HasPrefix(tok, "id"):
		n, err := strconv.ParseUint(tok[2:], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad id immediate: %q", tok)
		}
		return n, nil
	}

	if len(tok) > 0 && (tok[0] == '-' || tok[0] == '+' || (tok[0] >= '0' && tok[0] <= '9')) {
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad integer immediate: %q", tok)
		}
		return uint64(n), nil
	}

	return 0, fmt.Errorf("bad immediate: %q", tok)
}

// parseCount parses a plain non-negative base-10 integer operand, used for
// shift counts, heap offsets and sizes, and syscall numbers.
func parseCount(tok string) (uint32, error) {
	n, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad integer operand: %q", tok)
	}
	return uint32(n), nil
}

// resolveAddress resolves an identifier operand to a static-memory address.
// A leading '&' is an address-of prefix stripped before lookup; a leading
// decimal digit means a literal numeric address; anything else is a symbol
// lookup.
func (a *Assembler) resolveAddress(tok string) (uint16, error) {
	name := strings.TrimPrefix(tok, "&")
	if name == "" {
		return 0, fmt.Errorf("empty identifier")
	}

	if name[0] >= '0' && name[0] <= '9' {
		n, err := strconv.ParseUint(name, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("bad numeric address: %q", tok)
		}
		return uint16(n), nil
	}

	sym, exists := a.Symbols.Lookup(name)
	if !exists {
		return 0, fmt.Errorf("undefined symbol: %q", name)
	}
	return sym.Addr, nil
}

// resolveSymbol resolves an identifier operand that must name an existing
// symbol (the '&' prefix is accepted and stripped).
func (a *Assembler) resolveSymbol(tok string) (*Symbol, error) {
	name := strings.TrimPrefix(tok, "&")
	sym, exists := a.Symbols.Lookup(name)
	if !exists {
		return nil, fmt.Errorf("undefined symbol: %q", name)
	}
	return sym, nil
}

// resolveSyscallArg resolves one SYSC argument. SIZE(id) yields the byte
// size of that symbol's type, SIZEOF(T) the byte size of type T; anything
// else resolves as an identifier.
func (a *Assembler) resolveSyscallArg(tok string) (uint16, error) {
	if inner, ok := callForm(tok, "SIZE"); ok {
		sym, err := a.resolveSymbol(inner)
		if err != nil {
			return 0, err
		}
		return sym.Type.Size(), nil
	}

	if inner, ok := callForm(tok, "SIZEOF"); ok {
		typ, err := coil.ParseType(inner)
		if err != nil {
			return 0, err
		}
		return typ.Size(), nil
	}

	return a.resolveAddress(tok)
}

// callForm matches tokens shaped like NAME(arg) and returns the argument.
func callForm(tok, name string) (string, bool) {
	if strings.HasPrefix(tok, name+"(") && strings.HasSuffix(tok, ")") {
		return tok[len(name)+1 : len(tok)-1], true
	}
	return "", false
}
