// Package errors provides structured error types for the script heap.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the offending handle, the object type name, the field path
// and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRemap, errors.KindUnmappedType).
//		Handle(42).
//		TypeName("DynamicArray").
//		Detail("type id %d has no mapping", 7).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnmappedType(errors.PhaseRemap, "UserObject", 7)
//	err := errors.OutOfBounds(errors.PhaseString, path, 10, 5)
//
// Kinds are split into three classes that mirror how the engine reacts:
// fatal kinds (corrupt save data, exhausted handle space, broken pool
// invariants) abort the current operation and the game session; misuse kinds
// (invalid handles) are logged and ignored; allocation failures produce a
// null handle the caller must check. IsFatal reports the class.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
