package heap

import (
	"encoding/binary"
	"math"

	"github.com/wippyai/script-heap/errors"
)

// PageSize is the growth granularity of an Arena, matching a wasm page.
const PageSize = 65536

// Backing is a linear memory that a Heap can allocate from.
type Backing interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error

	// Size returns the current size in bytes.
	Size() uint32

	// Grow extends the memory by at least delta bytes.
	// It returns false if the memory cannot grow that far.
	Grow(delta uint32) bool
}

// Arena is a Backing stored in a Go byte slice.
type Arena struct {
	buf []byte
}

// NewArena creates an arena with at least size bytes, rounded up to whole pages.
func NewArena(size uint32) *Arena {
	a := &Arena{}
	if size > 0 {
		a.Grow(size)
	}
	return a
}

// Size returns the arena size in bytes.
func (a *Arena) Size() uint32 {
	return uint32(len(a.buf))
}

// Grow extends the arena by at least delta bytes, in whole pages.
func (a *Arena) Grow(delta uint32) bool {
	pages := (uint64(delta) + PageSize - 1) / PageSize
	newSize := uint64(len(a.buf)) + pages*PageSize
	if newSize > math.MaxUint32 {
		return false
	}
	grown := make([]byte, newSize)
	copy(grown, a.buf)
	a.buf = grown
	return true
}

func (a *Arena) check(op string, offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(a.buf)) {
		return errors.MemoryAccess(op, offset, length)
	}
	return nil
}

// Read returns a view of length bytes at offset. The view aliases the arena
// and is invalidated by Grow.
func (a *Arena) Read(offset uint32, length uint32) ([]byte, error) {
	if err := a.check("read", offset, length); err != nil {
		return nil, err
	}
	return a.buf[offset : offset+length : offset+length], nil
}

// Write copies data into the arena at offset.
func (a *Arena) Write(offset uint32, data []byte) error {
	if err := a.check("write", offset, uint32(len(data))); err != nil {
		return err
	}
	copy(a.buf[offset:], data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (a *Arena) ReadU8(offset uint32) (uint8, error) {
	if err := a.check("read", offset, 1); err != nil {
		return 0, err
	}
	return a.buf[offset], nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (a *Arena) ReadU16(offset uint32) (uint16, error) {
	if err := a.check("read", offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(a.buf[offset:]), nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (a *Arena) ReadU32(offset uint32) (uint32, error) {
	if err := a.check("read", offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(a.buf[offset:]), nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (a *Arena) ReadU64(offset uint32) (uint64, error) {
	if err := a.check("read", offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(a.buf[offset:]), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (a *Arena) WriteU8(offset uint32, value uint8) error {
	if err := a.check("write", offset, 1); err != nil {
		return err
	}
	a.buf[offset] = value
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (a *Arena) WriteU16(offset uint32, value uint16) error {
	if err := a.check("write", offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(a.buf[offset:], value)
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (a *Arena) WriteU32(offset uint32, value uint32) error {
	if err := a.check("write", offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(a.buf[offset:], value)
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (a *Arena) WriteU64(offset uint32, value uint64) error {
	if err := a.check("write", offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(a.buf[offset:], value)
	return nil
}
