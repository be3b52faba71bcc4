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
	// StringTypeName tags strings in save data.
	StringTypeName = rtti.StringTypeName

	stringHeaderSize = 4
	stringFileHeader = 4
)

// Strings manages immutable script strings.
type Strings struct {
	fields
}

// NewStrings returns the string manager for env.
func NewStrings(env *Env) *Strings {
	return &Strings{fields{env: env}}
}

func (s *Strings) TypeName() string { return StringTypeName }

// Create stores text as a new string object.
func (s *Strings) Create(text string) (Ref, error) {
	if uint64(len(text)) >= math.MaxUint32-stringHeaderSize {
		return Ref{}, errors.AllocationFailed(errors.PhaseString, math.MaxUint32, objAlign)
	}
	n := uint32(len(text))
	addr, err := s.env.alloc(stringHeaderSize, uint64(n)+1)
	if err != nil {
		return Ref{}, err
	}
	if err := s.fill(addr, []byte(text)); err != nil {
		s.env.free(addr, stringHeaderSize, n+1)
		return Ref{}, err
	}
	return s.env.register(addr, s, stringHeaderSize, n+1)
}

// fill writes the header, the bytes and the terminator. Alloc zeroes the
// block, so the terminator is already present.
func (s *Strings) fill(addr scriptheap.Addr, text []byte) error {
	if err := s.env.putU32(addr-stringHeaderSize, 0, uint32(len(text))); err != nil {
		return err
	}
	return s.env.mem().Write(uint32(addr), text)
}

// Len returns the length in bytes of the string at addr.
func (s *Strings) Len(addr scriptheap.Addr) uint32 {
	return s.env.u32(addr-stringHeaderSize, 0)
}

// Text returns the contents of the string at addr.
func (s *Strings) Text(addr scriptheap.Addr) (string, error) {
	b, err := s.env.copyOut(addr, s.Len(addr))
	if err != nil {
		return "", accessErr(err, addr, 0)
	}
	return string(b), nil
}

// TextOf resolves a string handle. The null handle is reported as ok=false
// without error.
func (s *Strings) TextOf(h pool.Handle) (text string, ok bool, err error) {
	if h == 0 {
		return "", false, nil
	}
	addr, mgr, _ := s.env.Pool.HandleToAddressAndManager(h)
	if mgr == nil {
		return "", false, errors.InvalidHandle(errors.PhaseString, int32(h))
	}
	if mgr != pool.Manager(s) {
		return "", false, errors.TypeMismatch(errors.PhaseString, int32(h), StringTypeName, mgr.TypeName())
	}
	text, err = s.Text(addr)
	return text, err == nil, err
}

func (s *Strings) Dispose(addr scriptheap.Addr, _ bool) bool {
	s.env.free(addr, stringHeaderSize, s.Len(addr)+1)
	return true
}

func (s *Strings) CalcSerializeSize(addr scriptheap.Addr) uint32 {
	return stringFileHeader + s.Len(addr) + 1
}

func (s *Strings) Serialize(addr scriptheap.Addr, w *stream.Writer) error {
	n := s.Len(addr)
	data, err := s.env.copyOut(addr, n+1)
	if err != nil {
		return err
	}
	w.WriteUint32(n)
	w.Write(data)
	return w.Err()
}

func (s *Strings) Unserialize(handle pool.Handle, r *stream.Reader, size uint32) error {
	n := r.ReadUint32()
	if err := r.Err(); err != nil {
		return err
	}
	if uint64(n)+1+stringFileHeader != uint64(size) {
		return errors.SizeMismatch(errors.PhaseUnserialize, int32(handle), StringTypeName, int(size), int(uint64(n)+1+stringFileHeader))
	}
	addr, err := s.env.alloc(stringHeaderSize, uint64(n)+1)
	if err != nil {
		return err
	}
	if err := s.env.readInto(addr, r, n+1); err != nil {
		s.env.free(addr, stringHeaderSize, n+1)
		return err
	}
	// the stored terminator is not trusted
	if err := s.env.mem().WriteU8(uint32(addr)+n, 0); err != nil {
		s.env.free(addr, stringHeaderSize, n+1)
		return err
	}
	if err := s.env.putU32(addr-stringHeaderSize, 0, n); err != nil {
		s.env.free(addr, stringHeaderSize, n+1)
		return err
	}
	if _, err := s.env.Pool.AddUnserializedObject(addr, s, handle, pool.ValueScriptObject, false); err != nil {
		s.env.free(addr, stringHeaderSize, n+1)
		return err
	}
	return nil
}

func (s *Strings) RemapTypeIDs(scriptheap.Addr, rtti.Remap) error { return nil }

func (s *Strings) TraverseRefs(scriptheap.Addr, func(pool.Handle)) {}
