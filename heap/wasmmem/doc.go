// Package wasmmem hosts the script heap in a wazero linear memory.
//
// The heap is instantiated as a memory-only WebAssembly module, so object
// addresses are plain offsets into guest memory. A bytecode interpreter
// running as a WebAssembly guest can read string and array payloads in place,
// and the host side still goes through the heap.Backing interface:
//
//	mem, err := wasmmem.Instantiate(ctx, rt, "script-heap")
//	h := heap.New(mem, heap.Options{})
//	defer mem.Close(ctx)
//
// Growth happens in whole 64 KiB wasm pages.
package wasmmem
