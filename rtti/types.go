package rtti

// TypeFlags describe a registered type.
type TypeFlags uint32

const (
	// TypeStruct marks a type with a field layout.
	TypeStruct TypeFlags = 1 << iota
	// TypeManaged marks a type whose instances live in their own heap
	// objects and are referenced by handle.
	TypeManaged
)

// FieldFlags describe a struct field.
type FieldFlags uint32

const (
	// FieldManagedPtr marks a field holding a managed handle.
	FieldManagedPtr FieldFlags = 1 << iota
	// FieldArray marks an inline fixed-size array of Count elements.
	FieldArray
)

// Field is one member of a struct type.
type Field struct {
	Name   string
	Offset uint32
	TypeID uint32
	Flags  FieldFlags
	Count  uint32
}

// Managed reports whether the field holds managed handles.
func (f Field) Managed() bool {
	return f.Flags&FieldManagedPtr != 0
}

// Elems returns the number of elements the field occupies.
func (f Field) Elems() uint32 {
	if f.Flags&FieldArray != 0 {
		return f.Count
	}
	return 1
}

// Type is a registered script type.
type Type struct {
	Name   string
	Fields []Field
	Flags  TypeFlags
	Size   uint32
	Align  uint32
}

// Managed reports whether instances are referenced by handle.
func (t Type) Managed() bool {
	return t.Flags&TypeManaged != 0
}

// Struct reports whether the type has a field layout.
func (t Type) Struct() bool {
	return t.Flags&TypeStruct != 0
}
