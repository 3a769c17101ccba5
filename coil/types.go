package coil

import "fmt"

// MemoryType identifies a primitive storage type in static memory.
// A zero value means "no type" and is used by control-flow opcodes
// whose operands are untyped.
type MemoryType byte

const (
	TypeNone MemoryType = iota
	TypeInt8
	TypeUint8
	TypeInt16
	TypeUint16
	TypeInt32
	TypeUint32
	TypeInt64
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeBool
	TypePtr
)

var typeNames = map[MemoryType]string{
	TypeNone:    "none",
	TypeInt8:    "int8",
	TypeUint8:   "uint8",
	TypeInt16:   "int16",
	TypeUint16:  "uint16",
	TypeInt32:   "int32",
	TypeUint32:  "uint32",
	TypeInt64:   "int64",
	TypeUint64:  "uint64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeBool:    "bool",
	TypePtr:     "ptr",
}

var typeSizes = map[MemoryType]uint16{
	TypeNone:    0,
	TypeInt8:    1,
	TypeUint8:   1,
	TypeInt16:   2,
	TypeUint16:  2,
	TypeInt32:   4,
	TypeUint32:  4,
	TypeInt64:   8,
	TypeUint64:  8,
	TypeFloat32: 4,
	TypeFloat64: 8,
	TypeBool:    1,
	TypePtr:     8,
}

func (t MemoryType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MemoryType(%d)", byte(t))
}

// Size returns the storage size of the type in bytes.
func (t MemoryType) Size() uint16 {
	return typeSizes[t]
}

// Valid reports whether t is a known memory type (including TypeNone).
func (t MemoryType) Valid() bool {
	_, ok := typeSizes[t]
	return ok
}

// ParseType maps a HOIL type keyword to its memory type. "dint" is the
// default-integer alias accepted by the source grammar.
func ParseType(name string) (MemoryType, error) {
	switch name {
	case "dint", "int64":
		return TypeInt64, nil
	case "int8":
		return TypeInt8, nil
	case "uint8":
		return TypeUint8, nil
	case "int16":
		return TypeInt16, nil
	case "uint16":
		return TypeUint16, nil
	case "int32":
		return TypeInt32, nil
	case "uint32":
		return TypeUint32, nil
	case "uint64":
		return TypeUint64, nil
	case "float32":
		return TypeFloat32, nil
	case "float64":
		return TypeFloat64, nil
	case "bool":
		return TypeBool, nil
	case "ptr":
		return TypePtr, nil
	default:
		return TypeNone, fmt.Errorf("unknown type: %q", name)
	}
}
