package dynobj

import (
	"math"

	scriptheap "github.com/wippyai/script-heap"
	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/internal/stream"
	"github.com/wippyai/script-heap/pool"
	"github.com/wippyai/script-heap/rtti"
)

const (
	// ArrayTypeName tags dynamic arrays in save data.
	ArrayTypeName = "DynamicArray"
	// ArrayManagedFlag marks an array whose elements are managed handles.
	ArrayManagedFlag = uint32(1) << 31

	arrayHeaderSize = 12
	arrayFileHeader = 12

	hdrTypeID    = 0
	hdrElemCount = 4
	hdrTotalSize = 8
)

// ArrayHeader is the in-memory header of a dynamic array.
type ArrayHeader struct {
	TypeID    uint32
	ElemCount uint32
	TotalSize uint32
}

// Managed reports whether elements are handles.
func (h ArrayHeader) Managed() bool {
	return h.TypeID&ArrayManagedFlag != 0
}

// BaseTypeID is the element type id without the managed flag.
func (h ArrayHeader) BaseTypeID() uint32 {
	return h.TypeID &^ ArrayManagedFlag
}

// ElemSize is the size of one element; 0 for an empty array.
func (h ArrayHeader) ElemSize() uint32 {
	if h.ElemCount == 0 {
		return 0
	}
	return h.TotalSize / h.ElemCount
}

// Arrays manages dynamic arrays.
type Arrays struct {
	fields
}

// NewArrays returns the dynamic array manager for env.
func NewArrays(env *Env) *Arrays {
	return &Arrays{fields{env: env}}
}

func (a *Arrays) TypeName() string { return ArrayTypeName }

// Create allocates a zeroed array of count elements of elemSize bytes.
// For typeID > 0 the registry decides whether elements are handles.
func (a *Arrays) Create(typeID, count, elemSize uint32) (Ref, error) {
	if typeID == 0 {
		return a.CreateOld(count, elemSize, false)
	}
	if a.env.Types == nil {
		return Ref{}, errors.NotFound(errors.PhaseAlloc, "type registry for array type", a.env.typeName(typeID))
	}
	t, ok := a.env.Types.Type(typeID)
	if !ok {
		return Ref{}, errors.NotFound(errors.PhaseAlloc, "array element type", a.env.typeName(typeID))
	}
	return a.create(typeID, t.Managed(), count, elemSize)
}

// CreateOld allocates an untyped array; managed selects handle elements.
func (a *Arrays) CreateOld(count, elemSize uint32, managed bool) (Ref, error) {
	return a.create(0, managed, count, elemSize)
}

func (a *Arrays) create(typeID uint32, managed bool, count, elemSize uint32) (Ref, error) {
	if typeID&ArrayManagedFlag != 0 {
		return Ref{}, errors.InvalidInput(errors.PhaseAlloc, "array type id uses the managed flag bit")
	}
	if managed && elemSize != 4 {
		return Ref{}, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Value(elemSize).Detail("array of handles needs 4-byte elements").Build()
	}
	total := uint64(count) * uint64(elemSize)
	if total > math.MaxUint32-arrayHeaderSize {
		return Ref{}, errors.AllocationFailed(errors.PhaseAlloc, math.MaxUint32, objAlign)
	}
	addr, err := a.env.alloc(arrayHeaderSize, total)
	if err != nil {
		return Ref{}, err
	}
	if managed {
		typeID |= ArrayManagedFlag
	}
	if err := a.putHeader(addr, ArrayHeader{TypeID: typeID, ElemCount: count, TotalSize: uint32(total)}); err != nil {
		a.env.free(addr, arrayHeaderSize, uint32(total))
		return Ref{}, err
	}
	return a.env.register(addr, a, arrayHeaderSize, uint32(total))
}

// CreateStringArray creates a managed array holding a new string for each
// item. The array holds one reference to every string.
func (a *Arrays) CreateStringArray(strs *Strings, items []string) (Ref, error) {
	typeID := uint32(0)
	if a.env.Types != nil {
		if id, ok := a.env.Types.Lookup(rtti.StringTypeName); ok {
			typeID = id
		}
	}
	var arr Ref
	var err error
	if typeID != 0 {
		arr, err = a.Create(typeID, uint32(len(items)), 4)
	} else {
		arr, err = a.CreateOld(uint32(len(items)), 4, true)
	}
	if err != nil {
		return Ref{}, err
	}
	for i, s := range items {
		str, err := strs.Create(s)
		if err != nil {
			a.abandon(arr, i)
			return Ref{}, err
		}
		a.env.Pool.AddRef(str.Handle)
		if err := a.env.putU32(arr.Addr, uint32(i)*4, uint32(str.Handle)); err != nil {
			a.env.Pool.SubRefCheckDispose(str.Handle)
			a.abandon(arr, i)
			return Ref{}, accessErr(err, arr.Addr, uint32(i)*4)
		}
	}
	return arr, nil
}

// abandon releases the first n elements of a half-built handle array and
// removes the array.
func (a *Arrays) abandon(arr Ref, n int) {
	for i := range n {
		off := uint32(i) * 4
		h := pool.Handle(a.env.u32(arr.Addr, off))
		_ = a.env.putU32(arr.Addr, off, 0)
		if h != 0 {
			a.env.Pool.SubRefCheckDispose(h)
		}
	}
	a.env.Pool.RemoveObject(arr.Addr)
}

// Header returns the header of the array at addr.
func (a *Arrays) Header(addr scriptheap.Addr) ArrayHeader {
	base := addr - arrayHeaderSize
	return ArrayHeader{
		TypeID:    a.env.u32(base, hdrTypeID),
		ElemCount: a.env.u32(base, hdrElemCount),
		TotalSize: a.env.u32(base, hdrTotalSize),
	}
}

func (a *Arrays) putHeader(addr scriptheap.Addr, h ArrayHeader) error {
	base := addr - arrayHeaderSize
	if err := a.env.putU32(base, hdrTypeID, h.TypeID); err != nil {
		return err
	}
	if err := a.env.putU32(base, hdrElemCount, h.ElemCount); err != nil {
		return err
	}
	return a.env.putU32(base, hdrTotalSize, h.TotalSize)
}

// Length returns the element count.
func (a *Arrays) Length(addr scriptheap.Addr) uint32 {
	return a.Header(addr).ElemCount
}

func (a *Arrays) Dispose(addr scriptheap.Addr, force bool) bool {
	if !force {
		a.env.subRefs(addr, a.TraverseRefs)
	}
	a.env.free(addr, arrayHeaderSize, a.Header(addr).TotalSize)
	return true
}

func (a *Arrays) CalcSerializeSize(addr scriptheap.Addr) uint32 {
	return arrayFileHeader + a.Header(addr).TotalSize
}

func (a *Arrays) Serialize(addr scriptheap.Addr, w *stream.Writer) error {
	h := a.Header(addr)
	data, err := a.env.copyOut(addr, h.TotalSize)
	if err != nil {
		return err
	}
	w.WriteUint32(h.TypeID)
	w.WriteUint32(h.ElemCount)
	w.WriteUint32(h.ElemSize())
	w.Write(data)
	return w.Err()
}

func (a *Arrays) Unserialize(handle pool.Handle, r *stream.Reader, size uint32) error {
	if size < arrayFileHeader {
		return errors.InvalidData(errors.PhaseUnserialize, []string{ArrayTypeName}, "record shorter than array header")
	}
	h := ArrayHeader{TypeID: r.ReadUint32(), ElemCount: r.ReadUint32()}
	elemSize := r.ReadUint32()
	if err := r.Err(); err != nil {
		return err
	}
	total := uint64(h.ElemCount) * uint64(elemSize)
	if total != uint64(size-arrayFileHeader) {
		return errors.SizeMismatch(errors.PhaseUnserialize, int32(handle), ArrayTypeName, int(size-arrayFileHeader), int(total))
	}
	addr, err := a.env.alloc(arrayHeaderSize, total)
	if err != nil {
		return err
	}
	h.TotalSize = uint32(total)
	if err := a.putHeader(addr, h); err != nil {
		a.env.free(addr, arrayHeaderSize, h.TotalSize)
		return err
	}
	if err := a.env.readInto(addr, r, h.TotalSize); err != nil {
		a.env.free(addr, arrayHeaderSize, h.TotalSize)
		return err
	}
	if _, err := a.env.Pool.AddUnserializedObject(addr, a, handle, pool.ValueScriptObject, false); err != nil {
		a.env.free(addr, arrayHeaderSize, h.TotalSize)
		return err
	}
	return nil
}

// RemapTypeIDs maps the element type id and keeps the managed flag.
func (a *Arrays) RemapTypeIDs(addr scriptheap.Addr, m rtti.Remap) error {
	h := a.Header(addr)
	base := h.BaseTypeID()
	if base == 0 {
		return nil
	}
	to, err := remapID(m, ArrayTypeName, base)
	if err != nil {
		return err
	}
	return a.env.putU32(addr-arrayHeaderSize, hdrTypeID, to|(h.TypeID&ArrayManagedFlag))
}

// TraverseRefs reports handle elements, or the handles inside struct
// elements when the element type has managed fields.
func (a *Arrays) TraverseRefs(addr scriptheap.Addr, fn func(pool.Handle)) {
	h := a.Header(addr)
	if h.Managed() {
		for i := uint32(0); i < h.ElemCount; i++ {
			if ref := pool.Handle(a.env.u32(addr, i*4)); ref != 0 {
				fn(ref)
			}
		}
		return
	}
	base := h.BaseTypeID()
	if base == 0 || a.env.Types == nil {
		return
	}
	offs := a.env.Types.ManagedOffsets(base)
	if len(offs) == 0 {
		return
	}
	elemSize := h.ElemSize()
	for i := uint32(0); i < h.ElemCount; i++ {
		for _, off := range offs {
			if off+4 > elemSize {
				continue
			}
			if ref := pool.Handle(a.env.u32(addr, i*elemSize+off)); ref != 0 {
				fn(ref)
			}
		}
	}
}
