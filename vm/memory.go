package vm

import (
	"fmt"
)

// StaticMemory is the flat byte array addressed by the variable-address
// field of instructions. Every access is bounds-checked; the watermark
// tracks the end (one past the highest address) of what has been written,
// for diagnostics.
type StaticMemory struct {
	data      [StaticMemorySize]byte
	watermark uint32

	ReadCount  uint64
	WriteCount uint64
}

// check validates an access of size bytes starting at addr. The sum is
// computed in 64 bits so oversized counts cannot wrap past the bound.
func (m *StaticMemory) check(addr uint16, size uint32) error {
	if uint64(addr)+uint64(size) > StaticMemorySize {
		return fmt.Errorf("static memory access out of bounds: address 0x%04X size %d", addr, size)
	}
	return nil
}

// ReadBytes returns a copy of size bytes starting at addr
func (m *StaticMemory) ReadBytes(addr uint16, size uint32) ([]byte, error) {
	if err := m.check(addr, size); err != nil {
		return nil, err
	}
	m.ReadCount++
	out := make([]byte, size)
	copy(out, m.data[addr:uint32(addr)+size])
	return out, nil
}

// WriteBytes copies data into static memory at addr
func (m *StaticMemory) WriteBytes(addr uint16, data []byte) error {
	if err := m.check(addr, uint32(len(data))); err != nil {
		return err
	}
	m.WriteCount++
	copy(m.data[addr:], data)
	if end := uint32(addr) + uint32(len(data)); end > m.watermark {
		m.watermark = end
	}
	return nil
}

// Copy moves size bytes between two static addresses
func (m *StaticMemory) Copy(dst, src uint16, size uint32) error {
	if err := m.check(src, size); err != nil {
		return err
	}
	if err := m.check(dst, size); err != nil {
		return err
	}
	m.ReadCount++
	m.WriteCount++
	copy(m.data[dst:uint32(dst)+size], m.data[src:uint32(src)+size])
	if end := uint32(dst) + size; end > m.watermark {
		m.watermark = end
	}
	return nil
}

// WriteUint writes the low size bytes of value at addr, little-endian
func (m *StaticMemory) WriteUint(addr uint16, value uint64, size uint32) error {
	if size == 0 || size > 8 {
		return fmt.Errorf("invalid static write size: %d", size)
	}
	if err := m.check(addr, size); err != nil {
		return err
	}
	m.WriteCount++
	for i := uint32(0); i < size; i++ {
		m.data[uint32(addr)+i] = byte(value >> (8 * i))
	}
	if end := uint32(addr) + size; end > m.watermark {
		m.watermark = end
	}
	return nil
}

// ReadUint reads size bytes at addr as a little-endian unsigned value
func (m *StaticMemory) ReadUint(addr uint16, size uint32) (uint64, error) {
	if size == 0 || size > 8 {
		return 0, fmt.Errorf("invalid static read size: %d", size)
	}
	if err := m.check(addr, size); err != nil {
		return 0, err
	}
	m.ReadCount++
	var value uint64
	for i := uint32(0); i < size; i++ {
		value |= uint64(m.data[uint32(addr)+i]) << (8 * i)
	}
	return value, nil
}

// ReadInt64 reads an 8-byte signed value at addr. Arithmetic opcodes
// operate on these regardless of the declared operand type.
func (m *StaticMemory) ReadInt64(addr uint16) (int64, error) {
	v, err := m.ReadUint(addr, 8)
	return int64(v), err
}

// WriteInt64 writes an 8-byte signed value at addr
func (m *StaticMemory) WriteInt64(addr uint16, value int64) error {
	return m.WriteUint(addr, uint64(value), 8)
}

// Watermark returns one past the highest static address written so far
func (m *StaticMemory) Watermark() uint32 {
	return m.watermark
}

// Bytes exposes the raw backing array for inspection (debugger, API)
func (m *StaticMemory) Bytes() []byte {
	return m.data[:]
}

// Reset clears all memory and counters
func (m *StaticMemory) Reset() {
	m.data = [StaticMemorySize]byte{}
	m.watermark = 0
	m.ReadCount = 0
	m.WriteCount = 0
}

// DataStack is the byte stack used by PUSH and POP. The top index grows
// upward; overflow and underflow are fatal.
type DataStack struct {
	data [StackSize]byte
	top  uint32
}

// Push copies data onto the stack
func (s *DataStack) Push(data []byte) error {
	if s.top+uint32(len(data)) > StackSize {
		return fmt.Errorf("data stack overflow: %d bytes at top %d", len(data), s.top)
	}
	copy(s.data[s.top:], data)
	s.top += uint32(len(data))
	return nil
}

// Pop removes and returns size bytes from the top of the stack
func (s *DataStack) Pop(size uint32) ([]byte, error) {
	if size > s.top {
		return nil, fmt.Errorf("data stack underflow: need %d bytes, have %d", size, s.top)
	}
	s.top -= size
	out := make([]byte, size)
	copy(out, s.data[s.top:s.top+size])
	return out, nil
}

// Top returns the current top-of-stack index
func (s *DataStack) Top() uint32 {
	return s.top
}

// Reset empties the stack
func (s *DataStack) Reset() {
	s.top = 0
}

// CallStack holds return positions for CALL and RET. Positions are
// instruction indices into the loaded program.
type CallStack struct {
	frames [CallStackSize]int
	depth  int
}

// Push records a return position
func (s *CallStack) Push(pos int) error {
	if s.depth >= CallStackSize {
		return fmt.Errorf("call stack overflow: depth %d", s.depth)
	}
	s.frames[s.depth] = pos
	s.depth++
	return nil
}

// Pop removes and returns the most recent return position
func (s *CallStack) Pop() (int, error) {
	if s.depth == 0 {
		return 0, fmt.Errorf("call stack underflow")
	}
	s.depth--
	return s.frames[s.depth], nil
}

// Depth returns the current call depth
func (s *CallStack) Depth() int {
	return s.depth
}

// Frames returns the active return positions, innermost last
func (s *CallStack) Frames() []int {
	out := make([]int, s.depth)
	copy(out, s.frames[:s.depth])
	return out
}

// Reset empties the stack
func (s *CallStack) Reset() {
	s.depth = 0
}
