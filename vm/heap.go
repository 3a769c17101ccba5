package vm

import (
	"encoding/binary"
	"fmt"
)

// Heap block header layout, stored in place inside the heap array ahead of
// each payload: size (u64), used flag (u64), previous and next header
// offsets (i64, -1 for none). Headers thread a doubly linked list through
// the heap bytes; there is no external index.
const (
	headerSize = 32

	hdrSizeOff = 0
	hdrUsedOff = 8
	hdrPrevOff = 16
	hdrNextOff = 24

	noBlock = int64(-1)
)

// Allocation constraints: payload sizes are multiples of 8, and a free
// block is only split when the remainder can hold a header plus a minimum
// payload.
const (
	heapAlign     = 8
	minSplitBytes = 16
)

// Heap is the first-fit free-list allocator. All offsets handed to callers
// are heap-relative payload offsets, so pointer values stored in static
// memory stay position-independent.
type Heap struct {
	data [HeapSize]byte

	AllocCount uint64
	FreeCount  uint64
}

// NewHeap creates a heap with a single free block spanning everything
// after the first header.
func NewHeap() *Heap {
	h := &Heap{}
	h.Reset()
	return h
}

// Reset reinitializes the heap to one maximal free block
func (h *Heap) Reset() {
	h.data = [HeapSize]byte{}
	h.setSize(0, HeapSize-headerSize)
	h.setUsed(0, false)
	h.setPrev(0, noBlock)
	h.setNext(0, noBlock)
	h.AllocCount = 0
	h.FreeCount = 0
}

func (h *Heap) size(block int64) uint64 {
	return binary.LittleEndian.Uint64(h.data[block+hdrSizeOff:])
}

func (h *Heap) setSize(block int64, size uint64) {
	binary.LittleEndian.PutUint64(h.data[block+hdrSizeOff:], size)
}

func (h *Heap) used(block int64) bool {
	return binary.LittleEndian.Uint64(h.data[block+hdrUsedOff:]) != 0
}

func (h *Heap) setUsed(block int64, used bool) {
	var v uint64
	if used {
		v = 1
	}
	binary.LittleEndian.PutUint64(h.data[block+hdrUsedOff:], v)
}

func (h *Heap) prev(block int64) int64 {
	return int64(binary.LittleEndian.Uint64(h.data[block+hdrPrevOff:]))
}

func (h *Heap) setPrev(block, prev int64) {
	binary.LittleEndian.PutUint64(h.data[block+hdrPrevOff:], uint64(prev))
}

func (h *Heap) next(block int64) int64 {
	return int64(binary.LittleEndian.Uint64(h.data[block+hdrNextOff:]))
}

func (h *Heap) setNext(block, next int64) {
	binary.LittleEndian.PutUint64(h.data[block+hdrNextOff:], uint64(next))
}

// alignUp rounds size up to the allocation granularity
func alignUp(size uint64) uint64 {
	return (size + heapAlign - 1) &^ uint64(heapAlign-1)
}

// Allocate finds the first free block whose payload fits size (rounded up
// to the alignment granularity), splitting it when the remainder can form
// a viable free block. Returns the heap-relative payload offset.
func (h *Heap) Allocate(size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("zero-size allocation")
	}
	size = alignUp(size)

	for block := int64(0); block != noBlock; block = h.next(block) {
		if h.used(block) || h.size(block) < size {
			continue
		}

		if h.size(block) >= size+headerSize+minSplitBytes {
			// Split: the tail becomes a new free block
			tail := block + headerSize + int64(size)
			h.setSize(tail, h.size(block)-size-headerSize)
			h.setUsed(tail, false)
			h.setPrev(tail, block)
			h.setNext(tail, h.next(block))
			if n := h.next(block); n != noBlock {
				h.setPrev(n, tail)
			}
			h.setNext(block, tail)
			h.setSize(block, size)
		}

		h.setUsed(block, true)
		h.AllocCount++
		return uint64(block + headerSize), nil
	}

	return 0, fmt.Errorf("heap exhausted: no free block of %d bytes", size)
}

// Free releases the block whose payload starts at offset, coalescing with
// free neighbors. An offset that does not address a live payload is fatal.
func (h *Heap) Free(offset uint64) error {
	if offset < headerSize || offset >= HeapSize {
		return fmt.Errorf("invalid free: offset 0x%X outside heap", offset)
	}
	block := int64(offset) - headerSize
	if !h.validBlock(block) {
		return fmt.Errorf("invalid free: 0x%X is not an allocated block", offset)
	}
	if !h.used(block) {
		return fmt.Errorf("invalid free: block at 0x%X is not in use", offset)
	}

	h.setUsed(block, false)
	h.FreeCount++

	// Absorb the next block if free
	if n := h.next(block); n != noBlock && !h.used(n) {
		h.setSize(block, h.size(block)+headerSize+h.size(n))
		h.setNext(block, h.next(n))
		if nn := h.next(n); nn != noBlock {
			h.setPrev(nn, block)
		}
	}

	// Absorb this block into the previous if free
	if p := h.prev(block); p != noBlock && !h.used(p) {
		h.setSize(p, h.size(p)+headerSize+h.size(block))
		h.setNext(p, h.next(block))
		if n := h.next(block); n != noBlock {
			h.setPrev(n, p)
		}
	}

	return nil
}

// validBlock walks the list to confirm block is a live header
func (h *Heap) validBlock(block int64) bool {
	for b := int64(0); b != noBlock; b = h.next(b) {
		if b == block {
			return true
		}
	}
	return false
}

// ReadBytes copies size bytes out of the heap starting at offset
func (h *Heap) ReadBytes(offset uint64, size uint32) ([]byte, error) {
	if offset >= HeapSize || offset+uint64(size) > HeapSize {
		return nil, fmt.Errorf("heap read out of bounds: offset 0x%X size %d", offset, size)
	}
	out := make([]byte, size)
	copy(out, h.data[offset:offset+uint64(size)])
	return out, nil
}

// WriteBytes copies data into the heap starting at offset
func (h *Heap) WriteBytes(offset uint64, data []byte) error {
	if offset >= HeapSize || offset+uint64(len(data)) > HeapSize {
		return fmt.Errorf("heap write out of bounds: offset 0x%X size %d", offset, len(data))
	}
	copy(h.data[offset:], data)
	return nil
}

// Block describes one heap block for diagnostics
type Block struct {
	Offset uint64
	Size   uint64
	Used   bool
}

// Blocks returns the current block list in address order
func (h *Heap) Blocks() []Block {
	var out []Block
	for b := int64(0); b != noBlock; b = h.next(b) {
		out = append(out, Block{
			Offset: uint64(b),
			Size:   h.size(b),
			Used:   h.used(b),
		})
	}
	return out
}
