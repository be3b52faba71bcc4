package dynobj

import (
	scriptheap "github.com/wippyai/script-heap"
	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/internal/stream"
	"github.com/wippyai/script-heap/pool"
	"github.com/wippyai/script-heap/rtti"
)

const (
	// UserObjectTypeName tags script-defined managed structs in save data.
	UserObjectTypeName = "UserObject"

	userHeaderSize = 8
	userFileHeader = 8

	hdrUserTypeID = 0
	hdrUserSize   = 4
)

// Point field offsets of objects made by CreatePoint.
const (
	PointX = 0
	PointY = 4
)

// UserObjects manages script-defined structs whose layout comes from the
// type registry.
type UserObjects struct {
	fields
}

// NewUserObjects returns the user struct manager for env.
func NewUserObjects(env *Env) *UserObjects {
	return &UserObjects{fields{env: env}}
}

func (u *UserObjects) TypeName() string { return UserObjectTypeName }

// Create allocates a zeroed struct of size bytes with the given type id.
// typeID 0 makes an untyped struct that holds no handles.
func (u *UserObjects) Create(typeID, size uint32) (Ref, error) {
	if typeID != 0 {
		if u.env.Types == nil {
			return Ref{}, errors.NotFound(errors.PhaseAlloc, "type registry for struct type", u.env.typeName(typeID))
		}
		t, ok := u.env.Types.Type(typeID)
		if !ok {
			return Ref{}, errors.NotFound(errors.PhaseAlloc, "struct type", u.env.typeName(typeID))
		}
		if size < t.Size {
			return Ref{}, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
				TypeName(t.Name).Value(size).Detail("struct needs %d bytes", t.Size).Build()
		}
	}
	addr, err := u.env.alloc(userHeaderSize, uint64(size))
	if err != nil {
		return Ref{}, err
	}
	if err := u.putHeader(addr, typeID, size); err != nil {
		u.env.free(addr, userHeaderSize, size)
		return Ref{}, err
	}
	return u.env.register(addr, u, userHeaderSize, size)
}

// CreatePoint makes an untyped struct of two int32 coordinates.
func (u *UserObjects) CreatePoint(x, y int32) (Ref, error) {
	ref, err := u.Create(0, 8)
	if err != nil {
		return Ref{}, err
	}
	err = u.WriteInt32(ref.Addr, PointX, x)
	if err == nil {
		err = u.WriteInt32(ref.Addr, PointY, y)
	}
	if err != nil {
		u.env.Pool.RemoveObject(ref.Addr)
		return Ref{}, err
	}
	return ref, nil
}

func (u *UserObjects) putHeader(addr scriptheap.Addr, typeID, size uint32) error {
	if err := u.env.putU32(addr-userHeaderSize, hdrUserTypeID, typeID); err != nil {
		return err
	}
	return u.env.putU32(addr-userHeaderSize, hdrUserSize, size)
}

// StructType returns the type id of the struct at addr.
func (u *UserObjects) StructType(addr scriptheap.Addr) uint32 {
	return u.env.u32(addr-userHeaderSize, hdrUserTypeID)
}

// Size returns the payload size of the struct at addr.
func (u *UserObjects) Size(addr scriptheap.Addr) uint32 {
	return u.env.u32(addr-userHeaderSize, hdrUserSize)
}

func (u *UserObjects) Dispose(addr scriptheap.Addr, force bool) bool {
	if !force {
		u.env.subRefs(addr, u.TraverseRefs)
	}
	u.env.free(addr, userHeaderSize, u.Size(addr))
	return true
}

func (u *UserObjects) CalcSerializeSize(addr scriptheap.Addr) uint32 {
	return userFileHeader + u.Size(addr)
}

func (u *UserObjects) Serialize(addr scriptheap.Addr, w *stream.Writer) error {
	size := u.Size(addr)
	data, err := u.env.copyOut(addr, size)
	if err != nil {
		return err
	}
	w.WriteUint32(u.StructType(addr))
	w.WriteUint32(size)
	w.Write(data)
	return w.Err()
}

func (u *UserObjects) Unserialize(handle pool.Handle, r *stream.Reader, size uint32) error {
	if size < userFileHeader {
		return errors.InvalidData(errors.PhaseUnserialize, []string{UserObjectTypeName}, "record shorter than struct header")
	}
	typeID := r.ReadUint32()
	n := r.ReadUint32()
	if err := r.Err(); err != nil {
		return err
	}
	if n != size-userFileHeader {
		return errors.SizeMismatch(errors.PhaseUnserialize, int32(handle), UserObjectTypeName, int(size-userFileHeader), int(n))
	}
	addr, err := u.env.alloc(userHeaderSize, uint64(n))
	if err != nil {
		return err
	}
	if err := u.putHeader(addr, typeID, n); err != nil {
		u.env.free(addr, userHeaderSize, n)
		return err
	}
	if err := u.env.readInto(addr, r, n); err != nil {
		u.env.free(addr, userHeaderSize, n)
		return err
	}
	if _, err := u.env.Pool.AddUnserializedObject(addr, u, handle, pool.ValueScriptObject, false); err != nil {
		u.env.free(addr, userHeaderSize, n)
		return err
	}
	return nil
}

func (u *UserObjects) RemapTypeIDs(addr scriptheap.Addr, m rtti.Remap) error {
	id := u.StructType(addr)
	if id == 0 {
		return nil
	}
	to, err := remapID(m, UserObjectTypeName, id)
	if err != nil {
		return err
	}
	return u.env.putU32(addr-userHeaderSize, hdrUserTypeID, to)
}

// TraverseRefs reports the handle fields named by the registry.
func (u *UserObjects) TraverseRefs(addr scriptheap.Addr, fn func(pool.Handle)) {
	id := u.StructType(addr)
	if id == 0 || u.env.Types == nil {
		return
	}
	size := u.Size(addr)
	for _, off := range u.env.Types.ManagedOffsets(id) {
		if off+4 > size {
			continue
		}
		if ref := pool.Handle(u.env.u32(addr, off)); ref != 0 {
			fn(ref)
		}
	}
}
