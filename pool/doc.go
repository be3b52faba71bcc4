// Package pool tracks managed script objects by handle.
//
// Every script-visible heap object (dynamic array, string, user struct,
// engine struct) is registered in a Pool together with the Manager that
// knows its layout. Scripts hold 32-bit handles rather than addresses, so
// handles stay valid across save and restore even when objects move.
//
// # Lifetime
//
// Objects start with a reference count of 0, or 1 if persistent. Dropping
// the count to zero through SubRefCheckDispose disposes the object and
// recycles its handle. Released handles are reused oldest-first before
// new ones are issued; Generation tells holders whether a slot was reused.
//
// Reference cycles never reach zero on their own. RunGarbageCollection finds
// them with a scan-and-sweep pass over non-persistent objects: every
// reference held by one candidate to another is subtracted from a shadow
// count, candidates left with a positive count are treated as roots, and
// whatever the roots cannot reach is garbage.
//
// # Persistence
//
// WriteToDisk writes every live object through its Manager in ascending
// handle order; ReadFromDisk rebuilds the table under the same handles.
// RemapTypeIDs rewrites type ids embedded in objects after a restore from
// an older script build.
//
// A Pool is not safe for concurrent use.
package pool
