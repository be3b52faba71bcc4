// Package dynobj implements the managed object kinds scripts can hold
// handles to: dynamic arrays, strings, user structs and engine-owned
// character structs.
//
// Each kind has a manager that implements pool.Manager. Managers lay objects
// out in the script heap as a small header followed by the payload; the
// address registered in the pool is the payload address, so field offsets
// seen by scripts start at zero.
//
//	DynamicArray  header {TypeID, ElemCount, TotalSize}  payload elements
//	String        header {Length}                       payload bytes + NUL
//	UserObject    header {TypeID, Size}                 payload struct bytes
//	Character     fixed CharacterSize struct, no header
//
// The high bit of an array TypeID marks an array of managed handles.
//
// Strings are immutable. Every StringLib operation that produces text
// allocates a new string object, even when the text is unchanged.
package dynobj
