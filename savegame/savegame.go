// Package savegame reads and writes the save container: a header, the
// type table of the script build that made the save, and the object table.
//
//	magic   "SHSV"
//	version int32
//	type table (rtti.WriteTable)
//	object table (pool.WriteToDisk)
//
// Loading remaps every restored object from the saved type ids to the ids
// of the current registry.
package savegame

import (
	"bytes"
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/internal/stream"
	"github.com/wippyai/script-heap/pool"
	"github.com/wippyai/script-heap/rtti"
)

// Container constants.
const (
	Magic   = "SHSV"
	Version = int32(1)
)

// Source is what a save is written from.
type Source interface {
	ObjectPool() *pool.Pool
	// TypeRegistry may return nil when no script types are loaded.
	TypeRegistry() *rtti.Registry
}

// Target is what a save is restored into.
type Target interface {
	Source
	pool.Reader
}

// Write writes the container for src to w.
func Write(w io.Writer, src Source) error {
	sw := stream.NewWriter(w)
	sw.Write([]byte(Magic))
	sw.WriteInt32(Version)
	var sigs []rtti.Signature
	if reg := src.TypeRegistry(); reg != nil {
		sigs = reg.Signatures()
	}
	if err := rtti.WriteTable(sw, sigs); err != nil {
		return err
	}
	if err := src.ObjectPool().WriteToDisk(sw); err != nil {
		return err
	}
	Logger().Debug("save written", zap.Int64("bytes", sw.Count()), zap.Int("types", len(sigs)))
	return nil
}

// Read restores the container from r into dst, replacing its objects, and
// returns the type id remap that was applied.
func Read(r io.Reader, dst Target) (rtti.Remap, error) {
	sr := stream.NewReader(r)
	if err := readHeader(sr); err != nil {
		return nil, err
	}
	sigs, err := rtti.ReadTable(sr)
	if err != nil {
		return nil, err
	}
	p := dst.ObjectPool()
	if err := p.ReadFromDisk(sr, dst); err != nil {
		return nil, err
	}

	remap := rtti.Remap{}
	if reg := dst.TypeRegistry(); reg != nil {
		remap = rtti.BuildRemap(sigs, reg)
	}
	if err := p.RemapTypeIDs(remap); err != nil {
		return nil, err
	}
	if len(remap) < len(sigs) {
		Logger().Info("saved types without a match",
			zap.Int("saved", len(sigs)), zap.Int("matched", len(remap)))
	}
	Logger().Debug("save read", zap.Int64("bytes", sr.Count()), zap.Int("objects", p.Len()))
	return remap, nil
}

func readHeader(r *stream.Reader) error {
	var magic [len(Magic)]byte
	if err := r.ReadFull(magic[:]); err != nil {
		return errors.Corrupt("save header", err)
	}
	if !bytes.Equal(magic[:], []byte(Magic)) {
		return errors.New(errors.PhaseUnserialize, errors.KindInvalidData).
			Value(string(magic[:])).Detail("not a save file").Build()
	}
	version := r.ReadInt32()
	if err := r.Err(); err != nil {
		return errors.Corrupt("save header", err)
	}
	if version != Version {
		return errors.New(errors.PhaseUnserialize, errors.KindUnsupported).
			Value(version).Detail("save version %d", version).Build()
	}
	return nil
}
