// Package heap provides the linear memory that backs script heap objects.
//
// A Heap pairs a growable Backing memory with a first-fit free-list
// allocator. Blocks are addressed by 32-bit offsets so that object addresses
// can be stored, compared and hashed like the raw pointers of a native engine,
// while staying inside memory the runtime controls.
//
// # Backings
//
// Two backings are provided:
//
//	heap.NewArena(size)            // Go byte slice, grows in 64 KiB pages
//	wasmmem.Instantiate(ctx, rt, name) // wazero linear memory (heap/wasmmem)
//
// # Allocation
//
//	h := heap.New(heap.NewArena(0), heap.Options{})
//	ptr, err := h.Alloc(24, 4) // zero-filled block
//	h.Free(ptr, 24, 4)
//
// Free must be called with the size passed to Alloc. Adjacent free blocks are
// coalesced and a free block at the top of the heap lowers the bump pointer.
//
// A Heap is not safe for concurrent use.
package heap
