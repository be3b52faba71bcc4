package savegame

import (
	"io"

	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/internal/stream"
	"github.com/wippyai/script-heap/pool"
	"github.com/wippyai/script-heap/rtti"
)

// Bounds on counts read by Inspect.
const (
	maxObjects = 1 << 24
	maxPayload = 1 << 28
)

// Object is one record of an object table.
type Object struct {
	TypeName string
	Handle   pool.Handle
	RefCount int32
	Payload  []byte
}

// Summary is the decoded content of a save.
type Summary struct {
	Version int32
	Types   []rtti.Signature
	Objects []Object
}

// TypeName returns the name of a saved type id.
func (s *Summary) TypeName(id uint32) (string, bool) {
	for _, sig := range s.Types {
		if sig.ID == id {
			return sig.Name, true
		}
	}
	return "", false
}

// Inspect decodes a save without restoring it. Payloads are kept raw.
func Inspect(r io.Reader) (*Summary, error) {
	sr := stream.NewReader(r)
	if err := readHeader(sr); err != nil {
		return nil, err
	}
	sigs, err := rtti.ReadTable(sr)
	if err != nil {
		return nil, err
	}
	s := &Summary{Version: Version, Types: sigs}

	magic := sr.ReadInt32()
	version := sr.ReadInt32()
	count := sr.ReadInt32()
	if err := sr.Err(); err != nil {
		return nil, errors.Corrupt("object table header", err)
	}
	if magic != pool.TableMagic || version != pool.TableVersion {
		return nil, errors.New(errors.PhaseUnserialize, errors.KindInvalidData).
			Detail("object table magic 0x%x version %d", magic, version).Build()
	}
	if count < 0 || count > maxObjects {
		return nil, errors.InvalidData(errors.PhaseUnserialize, []string{"objects"}, "bad object count")
	}

	s.Objects = make([]Object, 0, count)
	for range count {
		o := Object{TypeName: sr.ReadCString(), Handle: pool.Handle(sr.ReadInt32())}
		size := sr.ReadUint32()
		if err := sr.Err(); err != nil {
			return nil, errors.Corrupt("object record", err)
		}
		if size > maxPayload {
			return nil, errors.New(errors.PhaseUnserialize, errors.KindInvalidData).
				Handle(int32(o.Handle)).TypeName(o.TypeName).Detail("payload of %d bytes", size).Build()
		}
		o.Payload = make([]byte, size)
		if err := sr.ReadFull(o.Payload); err != nil {
			return nil, errors.Corrupt("object payload", err)
		}
		o.RefCount = sr.ReadInt32()
		if err := sr.Err(); err != nil {
			return nil, errors.Corrupt("object record", err)
		}
		s.Objects = append(s.Objects, o)
	}
	return s, nil
}
