// Package scriptheap provides the managed object heap of a game scripting runtime.
//
// Script code never sees Go pointers. Every heap object (dynamic array,
// string, user struct, engine struct) lives in a linear memory, is identified
// by an integer handle, is reference counted, and can be written into and
// restored from a save game under the same handle.
//
// # Architecture Overview
//
//	scriptheap/        Root package with Memory, Allocator and Addr
//	├── runtime/       Per-VM context: create objects, access fields, save and load
//	├── pool/          Managed object pool: handles, refcounts, cycle collector, object table
//	├── dynobj/        Object managers: arrays, strings, user structs, characters
//	├── rtti/          Script type registry, managed field offsets, type id remapping
//	├── heap/          Linear memory and free-list allocator (Go slice or wazero memory)
//	├── savegame/      Save container: type table plus object table
//	├── gfxdef/        Legacy transparency conversions
//	├── errors/        Structured error types
//	└── cmd/heapdump/  Save file dump and inspection tool
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, runtime.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	s, _ := rt.CreateString("Hello")
//	rt.AddRef(s)
//
//	greeting, _ := rt.Strings().Append(s, ", World")
//	text, _ := rt.Text(greeting) // "Hello, World"
//
// # Object Lifetime
//
// Objects start with a reference count of zero. The interpreter adds a
// reference whenever a handle is stored into a variable or another object and
// removes it on overwrite. An object whose count reaches zero is disposed at
// once; objects that only keep each other alive are found by the pool's scan
// and sweep pass. The interpreter calls MaybeRunGC at safe points; it runs the
// pass once more than GCInterval objects were created since the last one.
//
// # Save Games
//
// runtime.Save writes the script type table and every live object. Loading
// restores each object under its original handle and remaps embedded type ids
// to the ids of the script that is currently loaded, so struct declarations
// may be reordered between builds.
package scriptheap
