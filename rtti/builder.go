package rtti

import (
	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/rtti/internal/layout"
)

// StringTypeName is the registered name of the built-in string type.
const StringTypeName = "String"

// Builder assembles a Registry. The first error sticks; Build reports it.
type Builder struct {
	reg *Registry
	err error
}

// NewBuilder returns a builder with an empty registry.
func NewBuilder() *Builder {
	return &Builder{reg: NewRegistry()}
}

// Managed registers a managed type with no field layout, such as a
// built-in string or engine object.
func (b *Builder) Managed(name string) uint32 {
	return b.add(Type{Name: name, Flags: TypeManaged, Size: 0, Align: 1})
}

// StringType returns the id of the built-in string type, registering it on
// first use.
func (b *Builder) StringType() uint32 {
	if id, ok := b.reg.Lookup(StringTypeName); ok {
		return id
	}
	return b.Managed(StringTypeName)
}

// Struct starts a struct type. Fields are placed in call order with
// natural alignment.
func (b *Builder) Struct(name string) *StructBuilder {
	return &StructBuilder{b: b, name: name}
}

func (b *Builder) add(t Type) uint32 {
	if b.err != nil {
		return 0
	}
	id, err := b.reg.Add(t)
	if err != nil {
		b.err = err
	}
	return id
}

// Err returns the first error met so far.
func (b *Builder) Err() error {
	return b.err
}

// Build freezes and returns the registry.
func (b *Builder) Build() (*Registry, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.reg.Freeze()
	return b.reg, nil
}

// StructBuilder lays out one struct type.
type StructBuilder struct {
	b       *Builder
	name    string
	fields  []Field
	members []layout.Info
	flags   TypeFlags
}

func (s *StructBuilder) scalar(name string, size uint32) *StructBuilder {
	s.fields = append(s.fields, Field{Name: name})
	s.members = append(s.members, layout.Info{Size: size, Align: size})
	return s
}

func (s *StructBuilder) Int8(name string) *StructBuilder  { return s.scalar(name, 1) }
func (s *StructBuilder) Int16(name string) *StructBuilder { return s.scalar(name, 2) }
func (s *StructBuilder) Int32(name string) *StructBuilder { return s.scalar(name, 4) }
func (s *StructBuilder) Float(name string) *StructBuilder { return s.scalar(name, 4) }

// Bytes adds an opaque byte run.
func (s *StructBuilder) Bytes(name string, n uint32) *StructBuilder {
	s.fields = append(s.fields, Field{Name: name})
	s.members = append(s.members, layout.Info{Size: n, Align: 1})
	return s
}

// Handle adds a managed reference to an object of the given type id
// (0 for untyped).
func (s *StructBuilder) Handle(name string, typeID uint32) *StructBuilder {
	s.fields = append(s.fields, Field{Name: name, TypeID: typeID, Flags: FieldManagedPtr})
	s.members = append(s.members, layout.Info{Size: layout.HandleSize, Align: layout.HandleSize})
	return s
}

// Handles adds an inline array of count managed references.
func (s *StructBuilder) Handles(name string, typeID, count uint32) *StructBuilder {
	s.fields = append(s.fields, Field{Name: name, TypeID: typeID, Flags: FieldManagedPtr | FieldArray, Count: count})
	s.members = append(s.members, layout.Info{Size: layout.HandleSize * count, Align: layout.HandleSize})
	return s
}

// Embed adds a by-value struct field of a previously registered type.
func (s *StructBuilder) Embed(name string, typeID uint32) *StructBuilder {
	return s.EmbedArray(name, typeID, 0)
}

// EmbedArray adds count by-value struct elements; count 0 means a single
// element that is not an array.
func (s *StructBuilder) EmbedArray(name string, typeID, count uint32) *StructBuilder {
	t, ok := s.b.reg.Type(typeID)
	if !ok {
		if s.b.err == nil {
			s.b.err = errors.New(errors.PhaseRTTI, errors.KindNotFound).
				TypeName(s.name).Path(name).
				Detail("embedded type id %d is not registered", typeID).Build()
		}
		return s
	}
	f := Field{Name: name, TypeID: typeID}
	n := uint32(1)
	if count > 0 {
		f.Flags = FieldArray
		f.Count = count
		n = count
	}
	s.fields = append(s.fields, f)
	s.members = append(s.members, layout.Info{Size: t.Size * n, Align: t.Align})
	return s
}

// AsManaged marks the struct as a managed type.
func (s *StructBuilder) AsManaged() *StructBuilder {
	s.flags |= TypeManaged
	return s
}

// Add computes the layout and registers the struct.
func (s *StructBuilder) Add() uint32 {
	offs, info := layout.Sequential(s.members)
	for i := range s.fields {
		s.fields[i].Offset = offs[i]
	}
	return s.b.add(Type{
		Name:   s.name,
		Flags:  s.flags | TypeStruct,
		Size:   info.Size,
		Align:  info.Align,
		Fields: s.fields,
	})
}
