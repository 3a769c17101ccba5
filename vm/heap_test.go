package vm_test

import (
	"testing"

	"github.com/lookbusy1344/coil-toolchain/vm"
)

const heapHeaderSize = 32

// checkHeapInvariants verifies that the block list covers the heap exactly
// and contains no two adjacent free blocks.
func checkHeapInvariants(t *testing.T, h *vm.Heap) {
	t.Helper()

	blocks := h.Blocks()
	var total uint64
	prevFree := false
	for i, b := range blocks {
		total += heapHeaderSize + b.Size
		if b.Size%8 != 0 {
			t.Errorf("block %d: payload size %d not a multiple of 8", i, b.Size)
		}
		if !b.Used && prevFree {
			t.Errorf("blocks %d and %d are both free", i-1, i)
		}
		prevFree = !b.Used
	}
	if total != vm.HeapSize {
		t.Errorf("block list covers %d bytes, heap is %d", total, vm.HeapSize)
	}
}

func TestHeap_InitialState(t *testing.T) {
	h := vm.NewHeap()

	blocks := h.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("fresh heap should have one block, got %d", len(blocks))
	}
	if blocks[0].Used {
		t.Error("initial block should be free")
	}
	if blocks[0].Size != vm.HeapSize-heapHeaderSize {
		t.Errorf("initial block size: got %d", blocks[0].Size)
	}
	checkHeapInvariants(t, h)
}

func TestHeap_AllocateRoundsUp(t *testing.T) {
	h := vm.NewHeap()

	offset, err := h.Allocate(3)
	if err != nil {
		t.Fatal(err)
	}
	if offset != heapHeaderSize {
		t.Errorf("first allocation offset: got %d", offset)
	}

	blocks := h.Blocks()
	if blocks[0].Size != 8 {
		t.Errorf("request of 3 should round to 8, got %d", blocks[0].Size)
	}
	checkHeapInvariants(t, h)
}

func TestHeap_AllocateSplits(t *testing.T) {
	h := vm.NewHeap()

	if _, err := h.Allocate(64); err != nil {
		t.Fatal(err)
	}

	blocks := h.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("allocation should split the initial block, got %d blocks", len(blocks))
	}
	if !blocks[0].Used || blocks[1].Used {
		t.Error("head should be used, tail free")
	}
	checkHeapInvariants(t, h)
}

func TestHeap_NoSplitBelowThreshold(t *testing.T) {
	h := vm.NewHeap()

	// Carve the heap down to a free block barely above a request
	big, err := h.Allocate(vm.HeapSize - 2*heapHeaderSize - 64)
	if err != nil {
		t.Fatal(err)
	}

	// Remaining free block has a 64-byte payload; a 56-byte request leaves
	// only 8 spare, below header+16, so the whole block is handed out.
	small, err := h.Allocate(56)
	if err != nil {
		t.Fatal(err)
	}
	_ = big
	_ = small

	blocks := h.Blocks()
	last := blocks[len(blocks)-1]
	if !last.Used || last.Size != 64 {
		t.Errorf("under-threshold split: expected whole 64-byte block used, got %+v", last)
	}
	checkHeapInvariants(t, h)
}

func TestHeap_FirstFit(t *testing.T) {
	h := vm.NewHeap()

	a, _ := h.Allocate(64)
	b, _ := h.Allocate(64)
	if err := h.Free(a); err != nil {
		t.Fatal(err)
	}

	// The freed first block satisfies the next fitting request
	c, err := h.Allocate(32)
	if err != nil {
		t.Fatal(err)
	}
	if c != a {
		t.Errorf("first-fit should reuse the first free block: got %d, want %d", c, a)
	}
	_ = b
	checkHeapInvariants(t, h)
}

func TestHeap_FreeCoalescesForward(t *testing.T) {
	h := vm.NewHeap()

	a, _ := h.Allocate(64)
	b, _ := h.Allocate(64)
	c, _ := h.Allocate(64)

	if err := h.Free(b); err != nil {
		t.Fatal(err)
	}
	if err := h.Free(a); err != nil {
		t.Fatal(err)
	}

	// a absorbed b; list is [free, used c, free tail]
	blocks := h.Blocks()
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks after coalescing, got %d", len(blocks))
	}
	if blocks[0].Used || blocks[0].Size != 64+heapHeaderSize+64 {
		t.Errorf("coalesced block: %+v", blocks[0])
	}
	_ = c
	checkHeapInvariants(t, h)
}

func TestHeap_FreeCoalescesBackward(t *testing.T) {
	h := vm.NewHeap()

	a, _ := h.Allocate(64)
	b, _ := h.Allocate(64)
	c, _ := h.Allocate(64)

	if err := h.Free(a); err != nil {
		t.Fatal(err)
	}
	if err := h.Free(b); err != nil {
		t.Fatal(err)
	}

	blocks := h.Blocks()
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks after coalescing, got %d", len(blocks))
	}
	if blocks[0].Used || blocks[0].Size != 64+heapHeaderSize+64 {
		t.Errorf("coalesced block: %+v", blocks[0])
	}
	_ = c
	checkHeapInvariants(t, h)
}

func TestHeap_FullCycleRestoresInitialState(t *testing.T) {
	h := vm.NewHeap()

	a, _ := h.Allocate(128)
	b, _ := h.Allocate(256)
	c, _ := h.Allocate(8)

	for _, offset := range []uint64{b, a, c} {
		if err := h.Free(offset); err != nil {
			t.Fatal(err)
		}
	}

	blocks := h.Blocks()
	if len(blocks) != 1 || blocks[0].Used {
		t.Errorf("freeing everything should restore one free block, got %+v", blocks)
	}
	checkHeapInvariants(t, h)
}

func TestHeap_Exhaustion(t *testing.T) {
	h := vm.NewHeap()

	if _, err := h.Allocate(vm.HeapSize); err == nil {
		t.Error("allocating more than the heap should fail")
	}

	// The whole free payload is allocatable in one request
	if _, err := h.Allocate(vm.HeapSize - heapHeaderSize); err != nil {
		t.Errorf("maximal allocation should succeed: %v", err)
	}
	if _, err := h.Allocate(8); err == nil {
		t.Error("allocation from an exhausted heap should fail")
	}
	checkHeapInvariants(t, h)
}

func TestHeap_InvalidFreeIsFatal(t *testing.T) {
	h := vm.NewHeap()

	a, _ := h.Allocate(64)

	for _, offset := range []uint64{0, a + 8, vm.HeapSize, vm.HeapSize + 100} {
		if err := h.Free(offset); err == nil {
			t.Errorf("freeing offset %d should fail", offset)
		}
	}

	// Double free is also invalid
	if err := h.Free(a); err != nil {
		t.Fatal(err)
	}
	if err := h.Free(a); err == nil {
		t.Error("double free should fail")
	}
}

func TestHeap_ZeroSizeAllocation(t *testing.T) {
	h := vm.NewHeap()
	if _, err := h.Allocate(0); err == nil {
		t.Error("zero-size allocation should fail")
	}
}

func TestHeap_ReadWriteBounds(t *testing.T) {
	h := vm.NewHeap()

	offset, _ := h.Allocate(16)
	if err := h.WriteBytes(offset, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	data, err := h.ReadBytes(offset, 4)
	if err != nil {
		t.Fatal(err)
	}
	if data[0] != 1 || data[3] != 4 {
		t.Errorf("heap round trip: got %v", data)
	}

	if err := h.WriteBytes(vm.HeapSize-2, []byte{1, 2, 3, 4}); err == nil {
		t.Error("out-of-bounds heap write should fail")
	}
	if _, err := h.ReadBytes(vm.HeapSize-2, 4); err == nil {
		t.Error("out-of-bounds heap read should fail")
	}
}

func TestHeap_ChurnMaintainsInvariants(t *testing.T) {
	h := vm.NewHeap()

	var live []uint64
	sizes := []uint64{8, 24, 48, 16, 120, 72, 8, 200}

	for round := 0; round < 8; round++ {
		for _, sz := range sizes {
			offset, err := h.Allocate(sz)
			if err != nil {
				t.Fatalf("round %d alloc %d: %v", round, sz, err)
			}
			live = append(live, offset)
		}
		// Free every other allocation
		var kept []uint64
		for i, offset := range live {
			if i%2 == 0 {
				if err := h.Free(offset); err != nil {
					t.Fatalf("round %d free: %v", round, err)
				}
			} else {
				kept = append(kept, offset)
			}
		}
		live = kept
		checkHeapInvariants(t, h)
	}
}
