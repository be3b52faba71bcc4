package heap

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/script-heap/errors"
)

// reserved keeps offset 0 (and a little slack) out of the allocatable
// range so that a zero address always means "no object".
const reserved = 16

// granule is the allocation granularity; every block size is rounded to it.
const granule = 4

var zeroPage [4096]byte

// Options configures a Heap.
type Options struct {
	// Limit caps the heap size in bytes. Zero means no limit beyond
	// what the backing can grow to.
	Limit uint32
}

// Stats describes heap usage.
type Stats struct {
	Size       uint32 // backing size in bytes
	Top        uint32 // bump pointer
	InUse      uint32 // bytes in live blocks
	FreeBlocks int    // blocks on the free list
	Allocs     uint64
	Frees      uint64
}

type block struct {
	addr uint32
	size uint32
}

// Heap is a first-fit free-list allocator over a Backing.
// Implements scriptheap.Allocator.
type Heap struct {
	mem   Backing
	free  []block
	top   uint32
	inUse uint32
	opts  Options
	stats Stats
}

// New creates a heap over mem.
func New(mem Backing, opts Options) *Heap {
	return &Heap{
		mem:  mem,
		top:  reserved,
		opts: opts,
	}
}

// Memory returns the heap's backing memory.
func (h *Heap) Memory() Backing {
	return h.mem
}

// Alloc returns a zero-filled block of at least size bytes aligned to align.
func (h *Heap) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseAlloc, "alignment must be a power of two")
	}
	size, ok := roundSize(size)
	if !ok {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, size, align)
	}

	ptr, ok := h.takeFree(size, align)
	if !ok {
		ptr, ok = h.bump(size, align)
		if !ok {
			return 0, errors.AllocationFailed(errors.PhaseAlloc, size, align)
		}
	}

	if err := h.zero(ptr, size); err != nil {
		return 0, errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "zero block")
	}
	h.inUse += size
	h.stats.Allocs++
	return ptr, nil
}

// Free returns a block to the free list. size must be the size passed to Alloc.
func (h *Heap) Free(ptr, size, align uint32) {
	if ptr < reserved {
		return
	}
	size, _ = roundSize(size)
	h.inUse -= size
	h.stats.Frees++

	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].addr > ptr })
	h.free = append(h.free, block{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = block{addr: ptr, size: size}

	// merge with the following block, then with the preceding one
	if i+1 < len(h.free) && h.free[i].addr+h.free[i].size == h.free[i+1].addr {
		h.free[i].size += h.free[i+1].size
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].addr+h.free[i-1].size == h.free[i].addr {
		h.free[i-1].size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
		i--
	}

	if last := len(h.free) - 1; last >= 0 && h.free[last].addr+h.free[last].size == h.top {
		h.top = h.free[last].addr
		h.free = h.free[:last]
	}
}

// Stats returns current usage counters.
func (h *Heap) Stats() Stats {
	s := h.stats
	s.Size = h.mem.Size()
	s.Top = h.top
	s.InUse = h.inUse
	s.FreeBlocks = len(h.free)
	return s
}

// Reset forgets every allocation. The backing memory is kept.
func (h *Heap) Reset() {
	h.free = h.free[:0]
	h.top = reserved
	h.inUse = 0
}

func (h *Heap) takeFree(size, align uint32) (uint32, bool) {
	for i, b := range h.free {
		aligned := alignTo(b.addr, align)
		pad := aligned - b.addr
		if uint64(pad)+uint64(size) > uint64(b.size) {
			continue
		}
		rest := b.size - pad - size
		switch {
		case pad > 0 && rest > 0:
			h.free[i].size = pad
			h.free = append(h.free, block{})
			copy(h.free[i+2:], h.free[i+1:])
			h.free[i+1] = block{addr: aligned + size, size: rest}
		case pad > 0:
			h.free[i].size = pad
		case rest > 0:
			h.free[i] = block{addr: aligned + size, size: rest}
		default:
			h.free = append(h.free[:i], h.free[i+1:]...)
		}
		return aligned, true
	}
	return 0, false
}

func (h *Heap) bump(size, align uint32) (uint32, bool) {
	aligned := uint64(alignTo(h.top, align))
	end := aligned + uint64(size)
	if end > math.MaxUint32 {
		return 0, false
	}
	if h.opts.Limit > 0 && end > uint64(h.opts.Limit) {
		return 0, false
	}
	if cur := uint64(h.mem.Size()); end > cur {
		if !h.mem.Grow(uint32(end - cur)) {
			return 0, false
		}
		Logger().Debug("heap grown",
			zap.Uint32("size", h.mem.Size()),
			zap.Uint32("top", uint32(end)))
	}
	if pad := uint32(aligned) - h.top; pad > 0 {
		h.free = append(h.free, block{addr: h.top, size: pad})
	}
	h.top = uint32(end)
	return uint32(aligned), true
}

func (h *Heap) zero(ptr, size uint32) error {
	for size > 0 {
		n := size
		if n > uint32(len(zeroPage)) {
			n = uint32(len(zeroPage))
		}
		if err := h.mem.Write(ptr, zeroPage[:n]); err != nil {
			return err
		}
		ptr += n
		size -= n
	}
	return nil
}

func roundSize(size uint32) (uint32, bool) {
	if size == 0 {
		return granule, true
	}
	if size > math.MaxUint32-granule {
		return size, false
	}
	return alignTo(size, granule), true
}

func alignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}
