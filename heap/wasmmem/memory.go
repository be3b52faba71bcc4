package wasmmem

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/script-heap/errors"
)

// PageSize is the size of one wasm memory page.
const PageSize = 65536

// memoryModule is a minimal module with 1 page of memory exported as "memory".
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, // name: "memory"
	0x02, 0x00, // kind: memory, index 0
}

// Memory adapts a wazero api.Memory to heap.Backing.
type Memory struct {
	Mem api.Memory
	mod api.Module
}

// Wrap wraps an existing wazero memory, such as one exported by an
// interpreter module.
func Wrap(mem api.Memory) *Memory {
	if mem == nil {
		return nil
	}
	return &Memory{Mem: mem}
}

// Instantiate creates a memory-only module named name in rt and wraps its memory.
func Instantiate(ctx context.Context, rt wazero.Runtime, name string) (*Memory, error) {
	compiled, err := rt.CompileModule(ctx, memoryModule)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "compile heap module")
	}
	defer compiled.Close(ctx)

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "instantiate heap module")
	}
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		mod.Close(ctx)
		return nil, errors.NotFound(errors.PhaseAlloc, "export", "memory")
	}
	return &Memory{Mem: mem, mod: mod}, nil
}

// Close closes the module created by Instantiate. It is a no-op for wrapped memories.
func (m *Memory) Close(ctx context.Context) error {
	if m.mod == nil {
		return nil
	}
	return m.mod.Close(ctx)
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.Mem.Size()
}

// Grow extends the memory by at least delta bytes, in whole pages.
func (m *Memory) Grow(delta uint32) bool {
	pages := uint32((uint64(delta) + PageSize - 1) / PageSize)
	_, ok := m.Mem.Grow(pages)
	return ok
}

func bounds(ok bool, op string, offset, length uint32) error {
	if ok {
		return nil
	}
	return errors.MemoryAccess(op, offset, length)
}

// Read returns a view of guest memory. The view is invalidated by Grow.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if err := bounds(ok, "read", offset, length); err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	return bounds(m.Mem.Write(offset, data), "write", offset, uint32(len(data)))
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.Mem.ReadByte(offset)
	return v, bounds(ok, "read", offset, 1)
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.Mem.ReadUint16Le(offset)
	return v, bounds(ok, "read", offset, 2)
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	return v, bounds(ok, "read", offset, 4)
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.Mem.ReadUint64Le(offset)
	return v, bounds(ok, "read", offset, 8)
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	return bounds(m.Mem.WriteByte(offset, value), "write", offset, 1)
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	return bounds(m.Mem.WriteUint16Le(offset, value), "write", offset, 2)
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	return bounds(m.Mem.WriteUint32Le(offset, value), "write", offset, 4)
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	return bounds(m.Mem.WriteUint64Le(offset, value), "write", offset, 8)
}
