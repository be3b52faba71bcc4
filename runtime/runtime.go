package runtime

import (
	"context"
	"io"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	scriptheap "github.com/wippyai/script-heap"
	"github.com/wippyai/script-heap/dynobj"
	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/heap"
	"github.com/wippyai/script-heap/heap/wasmmem"
	"github.com/wippyai/script-heap/pool"
	"github.com/wippyai/script-heap/rtti"
	"github.com/wippyai/script-heap/savegame"
)

// Runtime is the managed object heap of one script VM.
type Runtime struct {
	opts Options
	log  *zap.Logger

	wz   wazero.Runtime
	wmem *wasmmem.Memory

	env   *dynobj.Env
	mgrs  *dynobj.Managers
	lib   *dynobj.StringLib
	chars *dynobj.Characters
}

// Stats summarizes heap and pool usage.
type Stats struct {
	Pool    pool.Stats
	Heap    heap.Stats
	Objects int
}

// New creates a runtime. The wasm backend starts a private wazero runtime
// that Close shuts down.
func New(ctx context.Context, opts Options) (*Runtime, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	r := &Runtime{opts: opts, log: log}

	mem, err := r.openMemory(ctx)
	if err != nil {
		return nil, err
	}

	r.env = &dynobj.Env{
		Pool: pool.New(pool.Config{
			Logger:     opts.Logger,
			GCInterval: opts.GCInterval,
			MaxHandle:  opts.MaxHandle,
		}),
		Heap: heap.New(mem, heap.Options{Limit: opts.MemoryLimit}),
		Log:  opts.Logger,
	}
	r.mgrs = dynobj.NewManagers(r.env)
	r.lib = dynobj.NewStringLib(r.mgrs.Strings, opts.TextMode)
	r.lib.SetFormatBuffer(opts.FormatBuffer)

	if opts.Characters > 0 {
		chars, err := dynobj.NewCharacters(r.env, opts.Characters)
		if err != nil {
			_ = r.Close(ctx)
			return nil, err
		}
		r.chars = chars
		r.mgrs.Characters = chars
	}

	log.Debug("runtime created",
		zap.String("backend", string(r.backend())),
		zap.Uint32("memory", mem.Size()),
		zap.Int("characters", opts.Characters))
	return r, nil
}

func (r *Runtime) backend() Backend {
	if r.opts.Backend == "" {
		return BackendArena
	}
	return r.opts.Backend
}

func (r *Runtime) openMemory(ctx context.Context) (heap.Backing, error) {
	if r.backend() == BackendArena {
		return heap.NewArena(r.opts.InitialMemory), nil
	}

	cfg := wazero.NewRuntimeConfig()
	if r.opts.MemoryLimit > 0 {
		pages := (uint64(r.opts.MemoryLimit) + wasmmem.PageSize - 1) / wasmmem.PageSize
		cfg = cfg.WithMemoryLimitPages(uint32(pages))
	}
	r.wz = wazero.NewRuntimeWithConfig(ctx, cfg)
	mem, err := wasmmem.Instantiate(ctx, r.wz, "script-heap")
	if err != nil {
		_ = r.wz.Close(ctx)
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindAllocation, err, "create wasm memory")
	}
	r.wmem = mem
	if want := r.opts.InitialMemory; want > mem.Size() && !mem.Grow(want-mem.Size()) {
		_ = r.wz.Close(ctx)
		return nil, errors.AllocationFailed(errors.PhaseRuntime, want, 1)
	}
	return mem, nil
}

// Close disposes every object and releases the memory backend.
func (r *Runtime) Close(ctx context.Context) error {
	if r.env != nil {
		r.env.Pool.Reset()
		r.env.Heap.Reset()
	}
	if r.wz == nil {
		return nil
	}
	err := r.wz.Close(ctx)
	r.wz, r.wmem = nil, nil
	return err
}

// ObjectPool returns the object pool.
func (r *Runtime) ObjectPool() *pool.Pool {
	return r.env.Pool
}

// TypeRegistry returns the current type registry, or nil.
func (r *Runtime) TypeRegistry() *rtti.Registry {
	return r.env.Types
}

// ManagerFor resolves save data type tags.
func (r *Runtime) ManagerFor(typeName string) (pool.Manager, bool) {
	return r.mgrs.ManagerFor(typeName)
}

// Heap returns the script heap.
func (r *Runtime) Heap() *heap.Heap {
	return r.env.Heap
}

// SetTypes installs the type registry of the loaded scripts. The registry
// must be frozen.
func (r *Runtime) SetTypes(reg *rtti.Registry) error {
	if reg != nil && !reg.Frozen() {
		return errors.InvalidInput(errors.PhaseRuntime, "type registry must be frozen")
	}
	r.env.Types = reg
	return nil
}

// Strings returns the script string library.
func (r *Runtime) Strings() *dynobj.StringLib {
	return r.lib
}

// Characters returns the character table, or nil when Options.Characters
// is zero.
func (r *Runtime) Characters() *dynobj.Characters {
	return r.chars
}

// Managers returns the object managers.
func (r *Runtime) Managers() *dynobj.Managers {
	return r.mgrs
}

// CreateArray creates a zeroed dynamic array.
func (r *Runtime) CreateArray(typeID, count, elemSize uint32) (pool.Handle, error) {
	ref, err := r.mgrs.Arrays.Create(typeID, count, elemSize)
	return ref.Handle, err
}

// CreateManagedArray creates an untyped array of count null handles.
func (r *Runtime) CreateManagedArray(count uint32) (pool.Handle, error) {
	ref, err := r.mgrs.Arrays.CreateOld(count, 4, true)
	return ref.Handle, err
}

// CreateString creates a string object.
func (r *Runtime) CreateString(s string) (pool.Handle, error) {
	ref, err := r.mgrs.Strings.Create(s)
	return ref.Handle, err
}

// CreateStringArray creates an array holding a new string per item.
func (r *Runtime) CreateStringArray(items []string) (pool.Handle, error) {
	ref, err := r.mgrs.Arrays.CreateStringArray(r.mgrs.Strings, items)
	return ref.Handle, err
}

// CreateUserStruct creates a zeroed script struct.
func (r *Runtime) CreateUserStruct(typeID, size uint32) (pool.Handle, error) {
	ref, err := r.mgrs.Users.Create(typeID, size)
	return ref.Handle, err
}

// CreatePoint creates an untyped {x, y} struct.
func (r *Runtime) CreatePoint(x, y int32) (pool.Handle, error) {
	ref, err := r.mgrs.Users.CreatePoint(x, y)
	return ref.Handle, err
}

// Text returns the contents of a string object.
func (r *Runtime) Text(h pool.Handle) (string, error) {
	s, ok, err := r.mgrs.Strings.TextOf(h)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.InvalidInput(errors.PhaseRuntime, "null string")
	}
	return s, nil
}

// resolve finds the object and field accessor behind h.
func (r *Runtime) resolve(h pool.Handle) (dynobj.FieldAccessor, scriptheap.Addr, error) {
	addr, mgr, _ := r.env.Pool.HandleToAddressAndManager(h)
	if mgr == nil {
		return nil, 0, errors.InvalidHandle(errors.PhaseAccess, int32(h))
	}
	fa, ok := mgr.(dynobj.FieldAccessor)
	if !ok {
		return nil, 0, errors.New(errors.PhaseAccess, errors.KindUnsupported).
			Handle(int32(h)).TypeName(mgr.TypeName()).Detail("object has no fields").Build()
	}
	return fa, addr, nil
}

// ReadInt8 reads a field of h at byte offset off.
func (r *Runtime) ReadInt8(h pool.Handle, off uint32) (int8, error) {
	fa, addr, err := r.resolve(h)
	if err != nil {
		return 0, err
	}
	return fa.ReadInt8(addr, off)
}

func (r *Runtime) ReadInt16(h pool.Handle, off uint32) (int16, error) {
	fa, addr, err := r.resolve(h)
	if err != nil {
		return 0, err
	}
	return fa.ReadInt16(addr, off)
}

func (r *Runtime) ReadInt32(h pool.Handle, off uint32) (int32, error) {
	fa, addr, err := r.resolve(h)
	if err != nil {
		return 0, err
	}
	return fa.ReadInt32(addr, off)
}

func (r *Runtime) ReadFloat(h pool.Handle, off uint32) (float32, error) {
	fa, addr, err := r.resolve(h)
	if err != nil {
		return 0, err
	}
	return fa.ReadFloat(addr, off)
}

func (r *Runtime) WriteInt8(h pool.Handle, off uint32, v int8) error {
	fa, addr, err := r.resolve(h)
	if err != nil {
		return err
	}
	return fa.WriteInt8(addr, off, v)
}

func (r *Runtime) WriteInt16(h pool.Handle, off uint32, v int16) error {
	fa, addr, err := r.resolve(h)
	if err != nil {
		return err
	}
	return fa.WriteInt16(addr, off, v)
}

func (r *Runtime) WriteInt32(h pool.Handle, off uint32, v int32) error {
	fa, addr, err := r.resolve(h)
	if err != nil {
		return err
	}
	return fa.WriteInt32(addr, off, v)
}

func (r *Runtime) WriteFloat(h pool.Handle, off uint32, v float32) error {
	fa, addr, err := r.resolve(h)
	if err != nil {
		return err
	}
	return fa.WriteFloat(addr, off, v)
}

// ReadHandle reads a handle field.
func (r *Runtime) ReadHandle(h pool.Handle, off uint32) (pool.Handle, error) {
	v, err := r.ReadInt32(h, off)
	return pool.Handle(v), err
}

// WriteHandle stores ref in a handle field of h. The stored object gains a
// reference and the previous one loses its reference, and is disposed when
// nothing else holds it.
func (r *Runtime) WriteHandle(h pool.Handle, off uint32, ref pool.Handle) error {
	old, err := r.ReadHandle(h, off)
	if err != nil {
		return err
	}
	if ref != 0 && r.env.Pool.HandleToAddress(ref) == 0 {
		return errors.InvalidHandle(errors.PhaseAccess, int32(ref))
	}
	if err := r.WriteInt32(h, off, int32(ref)); err != nil {
		return err
	}
	if ref != 0 {
		r.env.Pool.AddRef(ref)
	}
	if old != 0 {
		r.env.Pool.SubRefCheckDispose(old)
	}
	return nil
}

// AddRef adds a reference to h and returns the new count.
func (r *Runtime) AddRef(h pool.Handle) int32 {
	return r.env.Pool.AddRef(h)
}

// SubRef drops a reference and disposes h when none remain.
func (r *Runtime) SubRef(h pool.Handle) int32 {
	return r.env.Pool.SubRefCheckDispose(h)
}

// SubRefNoCheck drops a reference without disposing.
func (r *Runtime) SubRefNoCheck(h pool.Handle) int32 {
	return r.env.Pool.SubRefNoCheck(h)
}

// CheckDispose disposes h if it has no references. It reports whether h
// is gone.
func (r *Runtime) CheckDispose(h pool.Handle) bool {
	return r.env.Pool.CheckDispose(h)
}

// Release disposes h regardless of its reference count. References h
// holds are dropped; objects left unreferenced wait for the collector.
func (r *Runtime) Release(h pool.Handle) bool {
	addr, mgr, _ := r.env.Pool.HandleToAddressAndManager(h)
	if mgr == nil {
		return false
	}
	mgr.TraverseRefs(addr, func(ref pool.Handle) { r.env.Pool.SubRefNoCheck(ref) })
	return r.env.Pool.RemoveObject(addr)
}

// RunGC runs the cycle collector and returns the number of objects freed.
func (r *Runtime) RunGC() int {
	return r.env.Pool.RunGarbageCollection()
}

// MaybeRunGC runs the cycle collector if enough objects were created since
// the last pass.
func (r *Runtime) MaybeRunGC() bool {
	return r.env.Pool.RunGarbageCollectionIfAppropriate()
}

// Save writes all objects and the type table to w.
func (r *Runtime) Save(w io.Writer) error {
	return savegame.Write(w, r)
}

// Load replaces all objects with those saved in rd and returns the type
// remap applied. Characters missing from the save are registered again.
func (r *Runtime) Load(rd io.Reader) (rtti.Remap, error) {
	remap, err := savegame.Read(rd, r)
	if err != nil {
		return nil, err
	}
	if r.chars != nil {
		if err := r.chars.Register(); err != nil {
			return nil, err
		}
	}
	return remap, nil
}

// Stats returns heap and pool counters.
func (r *Runtime) Stats() Stats {
	return Stats{
		Pool:    r.env.Pool.Stats(),
		Heap:    r.env.Heap.Stats(),
		Objects: r.env.Pool.Len(),
	}
}

// PrintStats logs the pool counters.
func (r *Runtime) PrintStats() {
	r.env.Pool.PrintStats()
}
