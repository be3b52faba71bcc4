package dynobj

import (
	"math"

	scriptheap "github.com/wippyai/script-heap"
	"github.com/wippyai/script-heap/errors"
)

// FieldAccessor reads and writes object fields by byte offset from the
// object address. Offsets are not checked against the object size; only
// accesses outside linear memory fail.
type FieldAccessor interface {
	ReadInt8(addr scriptheap.Addr, off uint32) (int8, error)
	ReadInt16(addr scriptheap.Addr, off uint32) (int16, error)
	ReadInt32(addr scriptheap.Addr, off uint32) (int32, error)
	ReadFloat(addr scriptheap.Addr, off uint32) (float32, error)
	WriteInt8(addr scriptheap.Addr, off uint32, v int8) error
	WriteInt16(addr scriptheap.Addr, off uint32, v int16) error
	WriteInt32(addr scriptheap.Addr, off uint32, v int32) error
	WriteFloat(addr scriptheap.Addr, off uint32, v float32) error
}

// fields is the plain FieldAccessor shared by all managers.
type fields struct {
	env *Env
}

func accessErr(err error, addr scriptheap.Addr, off uint32) error {
	return errors.New(errors.PhaseAccess, errors.KindOutOfBounds).
		Value(uint64(addr) + uint64(off)).Cause(err).Detail("field access outside linear memory").Build()
}

// at returns the linear address of the field at off, failing instead of
// wrapping past 4 GiB.
func at(addr scriptheap.Addr, off uint32) (uint32, error) {
	p := uint64(addr) + uint64(off)
	if p > math.MaxUint32 {
		return 0, accessErr(nil, addr, off)
	}
	return uint32(p), nil
}

func (f fields) ReadInt8(addr scriptheap.Addr, off uint32) (int8, error) {
	p, err := at(addr, off)
	if err != nil {
		return 0, err
	}
	v, err := f.env.mem().ReadU8(p)
	if err != nil {
		return 0, accessErr(err, addr, off)
	}
	return int8(v), nil
}

func (f fields) ReadInt16(addr scriptheap.Addr, off uint32) (int16, error) {
	p, err := at(addr, off)
	if err != nil {
		return 0, err
	}
	v, err := f.env.mem().ReadU16(p)
	if err != nil {
		return 0, accessErr(err, addr, off)
	}
	return int16(v), nil
}

func (f fields) ReadInt32(addr scriptheap.Addr, off uint32) (int32, error) {
	p, err := at(addr, off)
	if err != nil {
		return 0, err
	}
	v, err := f.env.mem().ReadU32(p)
	if err != nil {
		return 0, accessErr(err, addr, off)
	}
	return int32(v), nil
}

func (f fields) ReadFloat(addr scriptheap.Addr, off uint32) (float32, error) {
	v, err := f.ReadInt32(addr, off)
	return math.Float32frombits(uint32(v)), err
}

func (f fields) WriteInt8(addr scriptheap.Addr, off uint32, v int8) error {
	p, err := at(addr, off)
	if err != nil {
		return err
	}
	if err := f.env.mem().WriteU8(p, uint8(v)); err != nil {
		return accessErr(err, addr, off)
	}
	return nil
}

func (f fields) WriteInt16(addr scriptheap.Addr, off uint32, v int16) error {
	p, err := at(addr, off)
	if err != nil {
		return err
	}
	if err := f.env.mem().WriteU16(p, uint16(v)); err != nil {
		return accessErr(err, addr, off)
	}
	return nil
}

func (f fields) WriteInt32(addr scriptheap.Addr, off uint32, v int32) error {
	p, err := at(addr, off)
	if err != nil {
		return err
	}
	if err := f.env.mem().WriteU32(p, uint32(v)); err != nil {
		return accessErr(err, addr, off)
	}
	return nil
}

func (f fields) WriteFloat(addr scriptheap.Addr, off uint32, v float32) error {
	return f.WriteInt32(addr, off, int32(math.Float32bits(v)))
}
