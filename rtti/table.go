package rtti

import (
	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/internal/stream"
)

// maxTableEntries bounds counts read from save data.
const maxTableEntries = 1 << 20

// WriteTable writes signatures in save format:
//
//	count int32
//	per type:  name cstring, id int32, flags int32, size int32, field count int32
//	per field: name cstring, offset int32, type id int32, flags int32, count int32
func WriteTable(w *stream.Writer, sigs []Signature) error {
	w.WriteInt32(int32(len(sigs)))
	for _, s := range sigs {
		w.WriteCString(s.Name)
		w.WriteUint32(s.ID)
		w.WriteUint32(uint32(s.Flags))
		w.WriteUint32(s.Size)
		w.WriteInt32(int32(len(s.Fields)))
		for _, f := range s.Fields {
			w.WriteCString(f.Name)
			w.WriteUint32(f.Offset)
			w.WriteUint32(f.TypeID)
			w.WriteUint32(uint32(f.Flags))
			w.WriteUint32(f.Count)
		}
	}
	if err := w.Err(); err != nil {
		return errors.Wrap(errors.PhaseSerialize, errors.KindInvalidData, err, "write type table")
	}
	return nil
}

// ReadTable reads signatures written by WriteTable.
func ReadTable(r *stream.Reader) ([]Signature, error) {
	n := r.ReadInt32()
	if r.Err() != nil {
		return nil, errors.Corrupt("type table", r.Err())
	}
	if n < 0 || n > maxTableEntries {
		return nil, errors.InvalidData(errors.PhaseUnserialize, []string{"types"}, "bad type count")
	}
	sigs := make([]Signature, 0, n)
	for range n {
		var s Signature
		s.Name = r.ReadCString()
		s.ID = r.ReadUint32()
		s.Flags = TypeFlags(r.ReadUint32())
		s.Size = r.ReadUint32()
		nf := r.ReadInt32()
		if r.Err() != nil {
			return nil, errors.Corrupt("type table", r.Err())
		}
		if nf < 0 || nf > maxTableEntries {
			return nil, errors.New(errors.PhaseUnserialize, errors.KindInvalidData).
				TypeName(s.Name).Detail("bad field count %d", nf).Build()
		}
		for range nf {
			var f Field
			f.Name = r.ReadCString()
			f.Offset = r.ReadUint32()
			f.TypeID = r.ReadUint32()
			f.Flags = FieldFlags(r.ReadUint32())
			f.Count = r.ReadUint32()
			s.Fields = append(s.Fields, f)
		}
		if r.Err() != nil {
			return nil, errors.Corrupt("type table", r.Err())
		}
		sigs = append(sigs, s)
	}
	return sigs, nil
}
