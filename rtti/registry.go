package rtti

import (
	"fmt"
	"slices"

	"github.com/wippyai/script-heap/errors"
)

// Registry is an ordered set of script types.
type Registry struct {
	byName  map[string]uint32
	offsets map[uint32][]uint32
	types   []Type
	frozen  bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		types:   []Type{{}},
		byName:  make(map[string]uint32),
		offsets: make(map[uint32][]uint32),
	}
}

// Add registers t and returns its id.
func (r *Registry) Add(t Type) (uint32, error) {
	if r.frozen {
		return 0, errors.New(errors.PhaseRTTI, errors.KindClosed).
			TypeName(t.Name).Detail("registry is frozen").Build()
	}
	if t.Name == "" {
		return 0, errors.InvalidInput(errors.PhaseRTTI, "type name must not be empty")
	}
	if _, dup := r.byName[t.Name]; dup {
		return 0, errors.New(errors.PhaseRTTI, errors.KindDuplicate).
			TypeName(t.Name).Detail("type already registered").Build()
	}
	if err := r.validate(t); err != nil {
		return 0, err
	}
	if t.Align == 0 {
		t.Align = 1
	}
	t.Fields = slices.Clone(t.Fields)
	id := uint32(len(r.types))
	r.types = append(r.types, t)
	r.byName[t.Name] = id

	var offs []uint32
	r.collectOffsets(t, 0, &offs)
	slices.Sort(offs)
	r.offsets[id] = offs
	return id, nil
}

func (r *Registry) validate(t Type) error {
	for _, f := range t.Fields {
		// handles may name any type, including one added later;
		// by-value fields must name a type that already exists
		if !f.Managed() && f.TypeID >= uint32(len(r.types)) {
			return errors.New(errors.PhaseRTTI, errors.KindNotFound).
				TypeName(t.Name).Path(f.Name).
				Detail("field references unknown type id %d", f.TypeID).Build()
		}
		if f.Flags&FieldArray != 0 && f.Count == 0 {
			return errors.New(errors.PhaseRTTI, errors.KindInvalidInput).
				TypeName(t.Name).Path(f.Name).Detail("array field has no elements").Build()
		}
		end := uint64(f.Offset) + uint64(r.fieldSize(f))
		if end > uint64(t.Size) {
			return errors.New(errors.PhaseRTTI, errors.KindOutOfBounds).
				TypeName(t.Name).Path(f.Name).
				Detail("field ends at %d past type size %d", end, t.Size).Build()
		}
	}
	return nil
}

// fieldSize is the number of bytes a field occupies inside its struct.
func (r *Registry) fieldSize(f Field) uint32 {
	return r.elemSize(f) * f.Elems()
}

func (r *Registry) elemSize(f Field) uint32 {
	switch {
	case f.Managed():
		return 4
	case f.TypeID == 0:
		// plain scalar; only its first byte is checked
		return 1
	}
	return r.types[f.TypeID].Size
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	return r.frozen
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	return len(r.types) - 1
}

// Types returns the registered types in id order; Types()[i] has id i+1.
func (r *Registry) Types() []Type {
	return slices.Clone(r.types[1:])
}

// Type returns the type with the given id.
func (r *Registry) Type(id uint32) (Type, bool) {
	if id == 0 || id >= uint32(len(r.types)) {
		return Type{}, false
	}
	return r.types[id], true
}

// Lookup returns the id of the named type.
func (r *Registry) Lookup(name string) (uint32, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Name returns the name of a type id for diagnostics.
func (r *Registry) Name(id uint32) string {
	if t, ok := r.Type(id); ok {
		return t.Name
	}
	return fmt.Sprintf("#%d", id)
}

// ManagedOffsets returns the ascending byte offsets of every managed handle
// inside one instance of the type, including handles held by nested
// by-value struct fields. Offsets are computed when the type is added; the
// returned slice must not be modified.
func (r *Registry) ManagedOffsets(id uint32) []uint32 {
	return r.offsets[id]
}

// collectOffsets walks by-value fields. Field type ids always precede the
// type being added, so the walk cannot recurse into itself.
func (r *Registry) collectOffsets(t Type, base uint32, out *[]uint32) {
	for _, f := range t.Fields {
		elem := r.elemSize(f)
		for i := uint32(0); i < f.Elems(); i++ {
			at := base + f.Offset + i*elem
			switch {
			case f.Managed():
				*out = append(*out, at)
			case f.TypeID != 0:
				r.collectOffsets(r.types[f.TypeID], at, out)
			}
		}
	}
}
