// Package runtime ties the script heap together for one script VM: linear
// memory, the object pool, the type registry and the object managers.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx, runtime.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	s, err := rt.CreateString("hello")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt.AddRef(s)
//
//	upper, _ := rt.Strings().UpperCase(s)
//	text, _ := rt.Text(upper) // "HELLO"
//
// # Handles and reference counts
//
// Every object is addressed by a pool.Handle. New objects start with a
// reference count of zero; the caller stores the handle somewhere and calls
// AddRef, or lets the object go with CheckDispose. WriteHandle keeps counts
// right for handles stored inside other objects.
//
// Objects that only reference each other are found by the cycle collector.
// RunGC runs it now; MaybeRunGC runs it once enough objects were created
// since the last pass. Call either only where no temporary handle is held
// outside managed memory, such as between script statements.
//
// # Configuration
//
// Options can be read from HuJSON files (JSON with comments and trailing
// commas):
//
//	{
//	    // keep the heap in wasm memory
//	    "backend": "wasm",
//	    "memoryLimit": 16777216,
//	    "gcInterval": 512,
//	    "textMode": "legacy",
//	}
//
// # Saves
//
// Save writes the type table and every object. Load restores them into a
// runtime whose registry may come from a newer script build; type ids are
// remapped by name and size.
//
// # Thread Safety
//
// A Runtime is not safe for concurrent use. Scripts run cooperatively on
// one goroutine; each VM owns its own Runtime.
package runtime
