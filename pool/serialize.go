package pool

import (
	"go.uber.org/zap"

	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/internal/stream"
	"github.com/wippyai/script-heap/rtti"
)

// Object table format constants.
const (
	TableMagic   = 0xa30b
	TableVersion = 2
)

// WriteToDisk writes the object table:
//
//	magic int32, version int32, count int32
//	per object: type name cstring, handle int32, payload size int32,
//	            payload, reference count int32
//
// Objects are written in ascending handle order. A manager whose payload
// disagrees with its CalcSerializeSize fails the whole write.
func (p *Pool) WriteToDisk(w *stream.Writer) error {
	w.WriteInt32(TableMagic)
	w.WriteInt32(TableVersion)
	w.WriteInt32(int32(p.live))

	written := 0
	for h := 1; h < len(p.objects); h++ {
		e := &p.objects[h]
		if !e.used() {
			continue
		}
		name := e.mgr.TypeName()
		size := e.mgr.CalcSerializeSize(e.addr)
		w.WriteCString(name)
		w.WriteInt32(int32(h))
		w.WriteUint32(size)

		before := w.Count()
		if err := e.mgr.Serialize(e.addr, w); err != nil {
			return errors.New(errors.PhaseSerialize, errors.KindInvalidData).
				Handle(int32(h)).TypeName(name).Cause(err).Build()
		}
		if got := w.Count() - before; got != int64(size) {
			return errors.SizeMismatch(errors.PhaseSerialize, int32(h), name, int(size), int(got))
		}
		w.WriteInt32(e.refCount)
		written++
	}
	if err := w.Err(); err != nil {
		return errors.Wrap(errors.PhaseSerialize, errors.KindInvalidData, err, "write object table")
	}
	p.log.Debug("object table written", zap.Int("objects", written), zap.Int64("bytes", w.Count()))
	return nil
}

// ReadFromDisk replaces the pool contents with an object table written by
// WriteToDisk. Each record is rebuilt by the manager rd returns for its
// type name and must consume exactly its payload size.
func (p *Pool) ReadFromDisk(r *stream.Reader, rd Reader) error {
	magic := r.ReadInt32()
	version := r.ReadInt32()
	count := r.ReadInt32()
	if err := r.Err(); err != nil {
		return errors.Corrupt("object table header", err)
	}
	if magic != TableMagic {
		return errors.New(errors.PhaseUnserialize, errors.KindInvalidData).
			Value(magic).Detail("bad object table magic 0x%x", magic).Build()
	}
	if version != TableVersion {
		return errors.New(errors.PhaseUnserialize, errors.KindUnsupported).
			Value(version).Detail("object table version %d", version).Build()
	}
	if count < 0 {
		return errors.InvalidData(errors.PhaseUnserialize, []string{"objects"}, "negative object count")
	}

	p.Reset()
	p.restoring = true
	defer func() {
		p.restoring = false
		p.rebuildFree()
	}()
	for i := int32(0); i < count; i++ {
		name := r.ReadCString()
		h := Handle(r.ReadInt32())
		size := r.ReadUint32()
		if err := r.Err(); err != nil {
			return errors.Corrupt("object record", err)
		}
		if err := p.checkRestoredHandle(h); err != nil {
			return err
		}
		mgr, ok := rd.ManagerFor(name)
		if !ok {
			return errors.UnknownObjectType(int32(h), name)
		}

		before := r.Count()
		if err := mgr.Unserialize(h, r, size); err != nil {
			return errors.New(errors.PhaseUnserialize, errors.KindInvalidData).
				Handle(int32(h)).TypeName(name).Cause(err).Build()
		}
		if got := r.Count() - before; got != int64(size) {
			return errors.SizeMismatch(errors.PhaseUnserialize, int32(h), name, int(size), int(got))
		}
		refs := r.ReadInt32()
		if err := r.Err(); err != nil {
			return errors.Corrupt("object record", err)
		}
		e := p.lookup(h)
		if e == nil {
			return errors.New(errors.PhaseUnserialize, errors.KindInvalidData).
				Handle(int32(h)).TypeName(name).Detail("manager did not register the object").Build()
		}
		e.refCount = refs
		p.notify(Event{Type: EventRestored, Handle: h, Addr: e.addr, TypeName: name})
	}
	p.created = 0
	p.log.Debug("object table read", zap.Int32("objects", count))
	return nil
}

// RemapTypeIDs rewrites type ids embedded in every live object.
func (p *Pool) RemapTypeIDs(m rtti.Remap) error {
	for h := 1; h < len(p.objects); h++ {
		e := &p.objects[h]
		if !e.used() {
			continue
		}
		if err := e.mgr.RemapTypeIDs(e.addr, m); err != nil {
			if ee, ok := err.(*errors.Error); ok && ee.Handle == 0 {
				ee.Handle = int32(h)
			}
			return err
		}
	}
	return nil
}
