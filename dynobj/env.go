package dynobj

import (
	"math"
	"strconv"

	"go.uber.org/zap"

	scriptheap "github.com/wippyai/script-heap"
	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/heap"
	"github.com/wippyai/script-heap/internal/stream"
	"github.com/wippyai/script-heap/pool"
	"github.com/wippyai/script-heap/rtti"
)

// Env is the state shared by all managers of one script runtime.
type Env struct {
	Pool *pool.Pool
	Heap *heap.Heap
	// Types may be nil, in which case only untyped objects are traversed.
	Types *rtti.Registry
	Log   *zap.Logger
}

// Ref is a newly created object.
type Ref struct {
	Handle pool.Handle
	Addr   scriptheap.Addr
}

// objAlign is the alignment of every object block.
const objAlign = 4

func (e *Env) logger() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return Logger()
}

// typeName names a type id for error messages.
func (e *Env) typeName(id uint32) string {
	if e.Types == nil {
		return "#" + strconv.FormatUint(uint64(id), 10)
	}
	return e.Types.Name(id)
}

func (e *Env) mem() heap.Backing {
	return e.Heap.Memory()
}

// alloc reserves header+payload bytes and returns the payload address.
func (e *Env) alloc(header uint32, payload uint64) (scriptheap.Addr, error) {
	total := uint64(header) + payload
	if total > math.MaxUint32 {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, math.MaxUint32, objAlign)
	}
	block, err := e.Heap.Alloc(uint32(total), objAlign)
	if err != nil {
		return 0, err
	}
	return scriptheap.Addr(block + header), nil
}

// free releases a block allocated by alloc.
func (e *Env) free(addr scriptheap.Addr, header, payload uint32) {
	e.Heap.Free(uint32(addr)-header, header+payload, objAlign)
}

// register adds a fresh object to the pool, releasing its memory on failure.
func (e *Env) register(addr scriptheap.Addr, mgr pool.Manager, header, payload uint32) (Ref, error) {
	h, err := e.Pool.AddObject(addr, mgr, pool.ValueScriptObject, false)
	if err != nil {
		e.free(addr, header, payload)
		return Ref{}, err
	}
	return Ref{Handle: h, Addr: addr}, nil
}

// u32 reads a header word. Header reads only fail for addresses outside
// linear memory, which is logged and reads as zero.
func (e *Env) u32(addr scriptheap.Addr, off uint32) uint32 {
	v, err := e.mem().ReadU32(uint32(addr) + off)
	if err != nil {
		e.logger().Error("header read out of bounds", zap.Uint32("addr", uint32(addr)), zap.Uint32("offset", off))
		return 0
	}
	return v
}

func (e *Env) putU32(addr scriptheap.Addr, off, v uint32) error {
	return e.mem().WriteU32(uint32(addr)+off, v)
}

// copyOut returns a copy of n bytes at addr.
func (e *Env) copyOut(addr scriptheap.Addr, n uint32) ([]byte, error) {
	view, err := e.mem().Read(uint32(addr), n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), view...), nil
}

// readInto reads n payload bytes from r straight into the block at addr.
func (e *Env) readInto(addr scriptheap.Addr, r *stream.Reader, n uint32) error {
	view, err := e.mem().Read(uint32(addr), n)
	if err != nil {
		return err
	}
	return r.ReadFull(view)
}

// subRefs drops every handle fn reports without disposing.
func (e *Env) subRefs(addr scriptheap.Addr, traverse func(scriptheap.Addr, func(pool.Handle))) {
	traverse(addr, func(h pool.Handle) { e.Pool.SubRefNoCheck(h) })
}

// remapID maps a stored type id through m.
func remapID(m rtti.Remap, typeName string, id uint32) (uint32, error) {
	to, ok := m.Lookup(id)
	if !ok {
		return 0, errors.UnmappedType(errors.PhaseRemap, typeName, id)
	}
	return to, nil
}
