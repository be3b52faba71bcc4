package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase says which part of the heap raised the error.
type Phase string

const (
	PhaseAlloc       Phase = "alloc"       // object creation and heap allocation
	PhaseRefCount    Phase = "refcount"    // reference counting
	PhaseGC          Phase = "gc"          // scan and sweep
	PhaseSerialize   Phase = "serialize"   // writing save data
	PhaseUnserialize Phase = "unserialize" // reading save data
	PhaseRemap       Phase = "remap"       // type id remapping
	PhaseRTTI        Phase = "rtti"        // type registry construction
	PhaseAccess      Phase = "access"      // field reads and writes
	PhaseString      Phase = "string"      // string library
	PhaseConfig      Phase = "config"      // options and config files
	PhaseRuntime     Phase = "runtime"     // runtime operations
)

// Kind says what went wrong.
type Kind string

const (
	KindInvalidHandle     Kind = "invalid_handle"
	KindHandleExhausted   Kind = "handle_exhausted"
	KindAddressMismatch   Kind = "address_mismatch"
	KindAllocation        Kind = "allocation"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindInvalidData       Kind = "invalid_data"
	KindSizeMismatch      Kind = "size_mismatch"
	KindUnmappedType      Kind = "unmapped_type"
	KindUnknownObjectType Kind = "unknown_object_type"
	KindTypeMismatch      Kind = "type_mismatch"
	KindInvalidInput      Kind = "invalid_input"
	KindDuplicate         Kind = "duplicate"
	KindNotFound          Kind = "not_found"
	KindUnsupported       Kind = "unsupported"
	KindClosed            Kind = "closed"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	TypeName string
	Detail   string
	Path     []string
	Handle   int32
}

// Error renders the error on one line, starting with "[phase] kind".
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Handle != 0 || e.TypeName != "" {
		b.WriteString(": ")
		switch {
		case e.Handle != 0 && e.TypeName != "":
			fmt.Fprintf(&b, "handle %d (%s)", e.Handle, e.TypeName)
		case e.Handle != 0:
			fmt.Fprintf(&b, "handle %d", e.Handle)
		default:
			b.WriteString("type ")
			b.WriteString(e.TypeName)
		}
	}

	if e.Detail != "" {
		if e.Handle != 0 || e.TypeName != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same phase and kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Fatal reports whether the error belongs to the fatal class.
func (e *Error) Fatal() bool {
	switch e.Kind {
	case KindHandleExhausted, KindAddressMismatch, KindSizeMismatch,
		KindUnmappedType, KindUnknownObjectType, KindInvalidData:
		return true
	}
	return false
}

// IsFatal reports whether err, or any error it wraps, is a fatal
// heap error. Fatal errors leave the heap in a state that must not be
// used for further script execution.
func IsFatal(err error) bool {
	return walk(err, (*Error).Fatal)
}

// IsKind reports whether err, or any error it wraps, has the given kind.
func IsKind(err error, kind Kind) bool {
	return walk(err, func(e *Error) bool { return e.Kind == kind })
}

func walk(err error, match func(*Error) bool) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if match(e) {
			return true
		}
		err = e.Cause
	}
	return false
}

// Builder assembles an Error field by field.
type Builder struct {
	err Error
}

// New starts an error of the given phase and kind.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path inside the object.
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Handle sets the object handle
func (b *Builder) Handle(h int32) *Builder {
	b.err.Handle = h
	return b
}

// TypeName sets the object type name
func (b *Builder) TypeName(t string) *Builder {
	b.err.TypeName = t
	return b
}

// Value records the offending value.
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause records the error that triggered this one.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the message, formatted like fmt.Sprintf.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the error.
func (b *Builder) Build() *Error {
	return &b.err
}

// Shorthand constructors.

// InvalidHandle creates an invalid handle error
func InvalidHandle(phase Phase, handle int32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Handle: handle,
		Detail: "handle does not refer to a live object",
	}
}

// HandleExhausted creates a handle space exhaustion error
func HandleExhausted(limit int32) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindHandleExhausted,
		Detail: fmt.Sprintf("no free handles below limit %d", limit),
		Value:  limit,
	}
}

// AddressMismatch creates a pool invariant violation error
func AddressMismatch(phase Phase, handle int32, addr uint32, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAddressMismatch,
		Handle: handle,
		Detail: fmt.Sprintf("address 0x%x: %s", addr, detail),
		Value:  addr,
	}
}

// AllocationFailed reports a heap block that could not be allocated.
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// UnmappedType creates an error for a nonzero type id missing from a remap table
func UnmappedType(phase Phase, typeName string, typeID uint32) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindUnmappedType,
		TypeName: typeName,
		Detail:   fmt.Sprintf("type id %d has no mapping in the current registry", typeID),
		Value:    typeID,
	}
}

// UnknownObjectType creates an error for a save record whose type tag has no manager
func UnknownObjectType(handle int32, typeName string) *Error {
	return &Error{
		Phase:    PhaseUnserialize,
		Kind:     KindUnknownObjectType,
		Handle:   handle,
		TypeName: typeName,
		Detail:   "no manager registered for this type tag",
	}
}

// SizeMismatch creates an error for serialized sizes that disagree with the data
func SizeMismatch(phase Phase, handle int32, typeName string, want, got int) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindSizeMismatch,
		Handle:   handle,
		TypeName: typeName,
		Detail:   fmt.Sprintf("expected %d bytes, got %d", want, got),
	}
}

// OutOfBounds reports an index outside an object or string.
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// MemoryAccess reports a linear memory access past the end of the backing.
func MemoryAccess(op string, offset, length uint32) *Error {
	return &Error{
		Phase:  PhaseAccess,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("memory %s of %d bytes at %d out of bounds", op, length, offset),
		Value:  offset,
	}
}

// InvalidData reports malformed save data.
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidInput reports a bad argument from the caller.
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// TypeMismatch creates an error for an object of the wrong kind
func TypeMismatch(phase Phase, handle int32, want, got string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Handle:   handle,
		TypeName: got,
		Detail:   fmt.Sprintf("expected %s", want),
	}
}

// NotFound reports a missing named item.
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Unsupported reports an operation the object does not provide.
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Wrap attaches a phase and kind to err.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Corrupt wraps a stream failure met while reading save data
func Corrupt(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseUnserialize,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("read %s", what),
		Cause:  cause,
	}
}
