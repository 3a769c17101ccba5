package assembler

import (
	"fmt"

	"github.com/lookbusy1344/coil-toolchain/coil"
	"github.com/lookbusy1344/coil-toolchain/parser"
)

// Program is the result of a successful translation: the encoded record
// stream plus the tables and source mapping that tooling consumes.
type Program struct {
	Instructions []coil.Instruction
	Symbols      *SymbolTable
	Labels       *LabelTable

	// SourceLines maps each instruction index to its source line number;
	// SourceMap carries the raw line text for debugger display.
	SourceLines []int
	SourceMap   map[int]string
}

// Assembler translates HOIL source into COIL records. It is single-pass
// and line-oriented: each line's first token selects a category, the
// second the operation within it. The assembler owns the symbol and label
// tables and the next-free static address counter.
type Assembler struct {
	Symbols *SymbolTable
	Labels  *LabelTable

	filename string
	lexer    *parser.Lexer
	errors   *parser.ErrorList
	program  *Program
}

// New creates an assembler for the given source file name
func New(filename string) *Assembler {
	errs := &parser.ErrorList{}
	lex := parser.NewLexer(filename)
	return &Assembler{
		Symbols:  NewSymbolTable(),
		Labels:   NewLabelTable(),
		filename: filename,
		lexer:    lex,
		errors:   errs,
	}
}

// Errors returns the accumulated error list
func (a *Assembler) Errors() *parser.ErrorList {
	return a.errors
}

// Assemble translates the whole source text. Any error invalidates the
// output; no partial program is returned.
func (a *Assembler) Assemble(input string) (*Program, error) {
	a.program = &Program{
		Symbols:   a.Symbols,
		Labels:    a.Labels,
		SourceMap: make(map[int]string),
	}

	lines := a.lexer.TokenizeAll(input)
	for _, err := range a.lexer.Errors().Errors {
		a.errors.AddError(err)
	}

	for _, line := range lines {
		if len(line.Tokens) == 0 {
			continue
		}
		if err := a.assembleLine(line); err != nil {
			a.errors.AddError(parser.NewErrorWithContext(
				line.Tokens[0].Pos, parser.ErrorSyntax, err.Error(), line.Raw))
		}
	}

	// Any label referenced but never defined invalidates the translation
	for _, label := range a.Labels.Undefined() {
		a.errors.AddError(parser.NewError(
			parser.Position{Filename: a.filename},
			parser.ErrorUndefinedLabel,
			fmt.Sprintf("undefined label: %q", label.Name)))
	}

	if a.errors.HasErrors() {
		return nil, a.errors
	}
	return a.program, nil
}

// emit appends an encoded record, tagged with its source line
func (a *Assembler) emit(line parser.Line, inst coil.Instruction) {
	idx := len(a.program.Instructions)
	a.program.Instructions = append(a.program.Instructions, inst)
	a.program.SourceLines = append(a.program.SourceLines, line.Number)
	a.program.SourceMap[idx] = line.Raw
}

// assembleLine dispatches one tokenized line on its category token
func (a *Assembler) assembleLine(line parser.Line) error {
	switch line.Tokens[0].Literal {
	case "VAL":
		return a.assembleVal(line)
	case "MATH":
		return a.assembleMath(line)
	case "BIT":
		return a.assembleBit(line)
	case "CF":
		return a.assembleCF(line)
	case "MEM":
		return a.assembleMem(line)
	default:
		return fmt.Errorf("unknown category: %q", line.Tokens[0].Literal)
	}
}

// assembleVal handles the value operations. Each takes a type keyword and
// two operands.
func (a *Assembler) assembleVal(line parser.Line) error {
	toks := line.Tokens
	if len(toks) != 5 {
		return fmt.Errorf("VAL %s: expected 3 operands, got %d", opName(toks), len(toks)-2)
	}

	op := toks[1].Literal
	typ, err := coil.ParseType(toks[2].Literal)
	if err != nil {
		return err
	}

	switch op {
	case "DEFV":
		imm, err := parseImmediate(toks[4].Literal)
		if err != nil {
			return err
		}
		sym, err := a.Symbols.Define(toks[3].Literal, typ)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpAllocImm, Type: typ, VarAddr: sym.Addr, Immediate: imm})

	case "MOVV":
		srcAddr, err := a.resolveAddress(toks[4].Literal)
		if err != nil {
			return err
		}
		dest, err := a.Symbols.Resolve(toks[3].Literal, typ)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpAllocMem, Type: typ, VarAddr: dest.Addr, Immediate: uint64(srcAddr)})

	case "LOAD":
		addr, err := a.resolveAddress(toks[4].Literal)
		if err != nil {
			return err
		}
		dest, err := a.Symbols.Resolve(toks[3].Literal, typ)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpLoad, Type: typ, VarAddr: dest.Addr, Immediate: uint64(addr)})

	case "STORE":
		destAddr, err := a.resolveAddress(toks[3].Literal)
		if err != nil {
			return err
		}
		srcAddr, err := a.resolveAddress(toks[4].Literal)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpStore, Type: typ, VarAddr: destAddr, Immediate: uint64(srcAddr)})

	default:
		return fmt.Errorf("unknown VAL operation: %q", op)
	}

	return nil
}

var mathOpcodes = map[string]coil.Opcode{
	"ADD": coil.OpAdd,
	"SUB": coil.OpSub,
	"MUL": coil.OpMul,
	"DIV": coil.OpDiv,
	"MOD": coil.OpMod,
	"NEG": coil.OpNeg,
}

// assembleMath handles the arithmetic operations. The destination is
// allocated as int64 when it does not exist, and results are emitted with
// type int64 regardless of operand types.
func (a *Assembler) assembleMath(line parser.Line) error {
	toks := line.Tokens
	if len(toks) < 2 {
		return fmt.Errorf("MATH: missing operation")
	}
	op := toks[1].Literal
	opcode, ok := mathOpcodes[op]
	if !ok {
		return fmt.Errorf("unknown MATH operation: %q", op)
	}

	if op == "NEG" {
		if len(toks) != 4 {
			return fmt.Errorf("MATH NEG: expected 2 operands, got %d", len(toks)-2)
		}
		src, err := a.resolveAddress(toks[3].Literal)
		if err != nil {
			return err
		}
		dest, err := a.Symbols.Resolve(toks[2].Literal, coil.TypeInt64)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: opcode, Type: coil.TypeInt64, VarAddr: dest.Addr, Immediate: uint64(src)})
		return nil
	}

	if len(toks) != 5 {
		return fmt.Errorf("MATH %s: expected 3 operands, got %d", op, len(toks)-2)
	}
	src1, err := a.resolveAddress(toks[3].Literal)
	if err != nil {
		return err
	}
	src2, err := a.resolveAddress(toks[4].Literal)
	if err != nil {
		return err
	}
	dest, err := a.Symbols.Resolve(toks[2].Literal, coil.TypeInt64)
	if err != nil {
		return err
	}
	a.emit(line, coil.Instruction{
		Opcode:    opcode,
		Type:      coil.TypeInt64,
		VarAddr:   dest.Addr,
		Immediate: coil.PackSources(src1, src2),
	})
	return nil
}

var bitOpcodes = map[string]coil.Opcode{
	"AND": coil.OpAnd,
	"OR":  coil.OpOr,
	"XOR": coil.OpXor,
	"NOT": coil.OpNot,
	"SHL": coil.OpShl,
	"SHR": coil.OpShr,
}

// assembleBit handles the bitwise operations. NOT is unary; SHL and SHR
// take a literal shift count in place of a second source.
func (a *Assembler) assembleBit(line parser.Line) error {
	toks := line.Tokens
	if len(toks) < 2 {
		return fmt.Errorf("BIT: missing operation")
	}
	op := toks[1].Literal
	opcode, ok := bitOpcodes[op]
	if !ok {
		return fmt.Errorf("unknown BIT operation: %q", op)
	}

	switch op {
	case "NOT":
		if len(toks) != 4 {
			return fmt.Errorf("BIT NOT: expected 2 operands, got %d", len(toks)-2)
		}
		src, err := a.resolveAddress(toks[3].Literal)
		if err != nil {
			return err
		}
		dest, err := a.Symbols.Resolve(toks[2].Literal, coil.TypeInt64)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: opcode, Type: coil.TypeInt64, VarAddr: dest.Addr, Immediate: uint64(src)})

	case "SHL", "SHR":
		if len(toks) != 5 {
			return fmt.Errorf("BIT %s: expected 3 operands, got %d", op, len(toks)-2)
		}
		src, err := a.resolveAddress(toks[3].Literal)
		if err != nil {
			return err
		}
		count, err := parseCount(toks[4].Literal)
		if err != nil {
			return err
		}
		dest, err := a.Symbols.Resolve(toks[2].Literal, coil.TypeInt64)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{
			Opcode:    opcode,
			Type:      coil.TypeInt64,
			VarAddr:   dest.Addr,
			Immediate: coil.PackShift(src, count),
		})

	default:
		if len(toks) != 5 {
			return fmt.Errorf("BIT %s: expected 3 operands, got %d", op, len(toks)-2)
		}
		src1, err := a.resolveAddress(toks[3].Literal)
		if err != nil {
			return err
		}
		src2, err := a.resolveAddress(toks[4].Literal)
		if err != nil {
			return err
		}
		dest, err := a.Symbols.Resolve(toks[2].Literal, coil.TypeInt64)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{
			Opcode:    opcode,
			Type:      coil.TypeInt64,
			VarAddr:   dest.Addr,
			Immediate: coil.PackSources(src1, src2),
		})
	}

	return nil
}

var condOpcodes = map[string]coil.Opcode{
	"EQ": coil.OpJeq,
	"NE": coil.OpJne,
	"LT": coil.OpJlt,
	"LE": coil.OpJle,
	"GT": coil.OpJgt,
	"GE": coil.OpJge,
}

// assembleCF handles control flow, the stack operations, and the host
// interface.
func (a *Assembler) assembleCF(line parser.Line) error {
	toks := line.Tokens
	if len(toks) < 2 {
		return fmt.Errorf("CF: missing operation")
	}

	switch op := toks[1].Literal; op {
	case "JMP":
		if len(toks) != 3 {
			return fmt.Errorf("CF JMP: expected 1 operand, got %d", len(toks)-2)
		}
		id, err := a.Labels.Reference(toks[2].Literal)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpJmp, Immediate: uint64(id)})

	case "JCOND":
		if len(toks) != 6 {
			return fmt.Errorf("CF JCOND: expected 4 operands, got %d", len(toks)-2)
		}
		opcode, ok := condOpcodes[toks[2].Literal]
		if !ok {
			return fmt.Errorf("unknown condition: %q", toks[2].Literal)
		}
		src1, err := a.resolveAddress(toks[3].Literal)
		if err != nil {
			return err
		}
		src2, err := a.resolveAddress(toks[4].Literal)
		if err != nil {
			return err
		}
		id, err := a.Labels.Reference(toks[5].Literal)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: opcode, Immediate: coil.PackCondJump(src1, src2, id)})

	case "LABEL":
		if len(toks) != 3 {
			return fmt.Errorf("CF LABEL: expected 1 operand, got %d", len(toks)-2)
		}
		id, err := a.Labels.Define(toks[2].Literal)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpLabelDef, VarAddr: id})

	case "CALL":
		if len(toks) != 3 {
			return fmt.Errorf("CF CALL: expected 1 operand, got %d", len(toks)-2)
		}
		id, err := a.Labels.Reference(toks[2].Literal)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpCall, Immediate: uint64(id)})

	case "RET":
		if len(toks) != 2 {
			return fmt.Errorf("CF RET: takes no operands")
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpRet})

	case "PUSH":
		if len(toks) != 3 {
			return fmt.Errorf("CF PUSH: expected 1 operand, got %d", len(toks)-2)
		}
		sym, err := a.resolveSymbol(toks[2].Literal)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpPush, Type: sym.Type, VarAddr: sym.Addr})

	case "POP":
		if len(toks) != 3 {
			return fmt.Errorf("CF POP: expected 1 operand, got %d", len(toks)-2)
		}
		sym, err := a.Symbols.Resolve(toks[2].Literal, coil.TypeInt64)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpPop, Type: sym.Type, VarAddr: sym.Addr})

	case "SYSC":
		if len(toks) < 3 {
			return fmt.Errorf("CF SYSC: missing syscall number")
		}
		num, err := parseCount(toks[2].Literal)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpSyscall, Immediate: uint64(num)})

		if len(toks) > 3 {
			args := make([]uint16, 0, 4)
			for _, tok := range toks[3:] {
				if len(args) >= 4 {
					return fmt.Errorf("CF SYSC: at most 4 arguments")
				}
				arg, err := a.resolveSyscallArg(tok.Literal)
				if err != nil {
					return err
				}
				args = append(args, arg)
			}
			a.emit(line, coil.Instruction{
				Opcode:    coil.OpSyscallArgs,
				VarAddr:   uint16(len(args)),
				Immediate: coil.PackSyscallArgs(args),
			})
		}

	case "EXIT":
		if len(toks) != 3 {
			return fmt.Errorf("CF EXIT: expected 1 operand, got %d", len(toks)-2)
		}
		code, err := parseImmediate(toks[2].Literal)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpExit, Immediate: code})

	default:
		return fmt.Errorf("unknown CF operation: %q", op)
	}

	return nil
}

// assembleMem handles the heap operations.
func (a *Assembler) assembleMem(line parser.Line) error {
	toks := line.Tokens
	if len(toks) < 2 {
		return fmt.Errorf("MEM: missing operation")
	}

	switch op := toks[1].Literal; op {
	case "ALLOC":
		if len(toks) != 4 {
			return fmt.Errorf("MEM ALLOC: expected 2 operands, got %d", len(toks)-2)
		}
		size, err := parseCount(toks[3].Literal)
		if err != nil {
			return err
		}
		dest, err := a.Symbols.Resolve(toks[2].Literal, coil.TypePtr)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpMemAlloc, Type: coil.TypePtr, VarAddr: dest.Addr, Immediate: uint64(size)})

	case "FREE":
		if len(toks) != 3 {
			return fmt.Errorf("MEM FREE: expected 1 operand, got %d", len(toks)-2)
		}
		sym, err := a.resolveSymbol(toks[2].Literal)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpMemFree, Type: coil.TypePtr, VarAddr: sym.Addr})

	case "READ":
		if len(toks) != 5 {
			return fmt.Errorf("MEM READ: expected 3 operands, got %d", len(toks)-2)
		}
		offset, err := parseCount(toks[3].Literal)
		if err != nil {
			return err
		}
		size, err := parseCount(toks[4].Literal)
		if err != nil {
			return err
		}
		dest, err := a.Symbols.Resolve(toks[2].Literal, coil.TypeInt64)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpMemRead, VarAddr: dest.Addr, Immediate: coil.PackHeapRange(offset, size)})

	case "WRITE":
		if len(toks) != 5 {
			return fmt.Errorf("MEM WRITE: expected 3 operands, got %d", len(toks)-2)
		}
		src, err := a.resolveSymbol(toks[2].Literal)
		if err != nil {
			return err
		}
		offset, err := parseCount(toks[3].Literal)
		if err != nil {
			return err
		}
		size, err := parseCount(toks[4].Literal)
		if err != nil {
			return err
		}
		a.emit(line, coil.Instruction{Opcode: coil.OpMemWrite, VarAddr: src.Addr, Immediate: coil.PackHeapRange(offset, size)})

	default:
		return fmt.Errorf("unknown MEM operation: %q", op)
	}

	return nil
}

func opName(toks []parser.Token) string {
	if len(toks) > 1 {
		return toks[1].Literal
	}
	return "?"
}
