package runtime

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wippyai/script-heap/dynobj"
	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/pool"
	"github.com/wippyai/script-heap/rtti"
)

func newRuntime(t *testing.T, mutate func(*Options)) *Runtime {
	t.Helper()
	ctx := context.Background()
	opts := DefaultOptions()
	opts.GCInterval = -1
	if mutate != nil {
		mutate(&opts)
	}
	rt, err := New(ctx, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := rt.Close(ctx); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return rt
}

func types(t *testing.T, reorder bool) *rtti.Registry {
	t.Helper()
	b := rtti.NewBuilder()
	if reorder {
		b.Struct("Padding").Int8("x").Add()
	}
	str := b.StringType()
	b.Struct("Node").Int32("value").Handle("next", 0).Handle("label", str).AsManaged().Add()
	reg, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return reg
}

func TestRuntime_Backends(t *testing.T) {
	for _, backend := range []Backend{BackendArena, BackendWasm} {
		t.Run(string(backend), func(t *testing.T) {
			rt := newRuntime(t, func(o *Options) { o.Backend = backend })
			s, err := rt.CreateString("hello")
			if err != nil {
				t.Fatalf("CreateString: %v", err)
			}
			up, err := rt.Strings().UpperCase(s)
			if err != nil {
				t.Fatalf("UpperCase: %v", err)
			}
			if got, _ := rt.Text(up); got != "HELLO" {
				t.Errorf("UpperCase = %q", got)
			}
			if got, _ := rt.Text(s); got != "hello" {
				t.Errorf("source = %q", got)
			}
		})
	}
}

func TestRuntime_RefCounting(t *testing.T) {
	rt := newRuntime(t, nil)
	s, _ := rt.CreateString("x")

	if rt.AddRef(s) != 1 || rt.SubRef(s) != 0 {
		t.Fatal("AddRef/SubRef counts")
	}
	if rt.ObjectPool().HandleToAddress(s) != 0 {
		t.Fatal("SubRef to zero must dispose")
	}

	again, _ := rt.CreateString("y")
	if again != s {
		t.Errorf("freed handle %d not reused, got %d", s, again)
	}
	rt.AddRef(again)
	if !rt.Release(again) {
		t.Error("Release failed")
	}
	if rt.Release(again) {
		t.Error("Release of a freed handle succeeded")
	}
	if rt.SubRef(12345) != -1 {
		t.Error("SubRef of an invalid handle must return -1")
	}
}

func TestRuntime_WriteHandle(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := types(t, false)
	if err := rt.SetTypes(reg); err != nil {
		t.Fatalf("SetTypes: %v", err)
	}
	nodeID, _ := reg.Lookup("Node")
	node, err := rt.CreateUserStruct(nodeID, 12)
	if err != nil {
		t.Fatalf("CreateUserStruct: %v", err)
	}
	rt.AddRef(node)

	a, _ := rt.CreateString("a")
	b, _ := rt.CreateString("b")
	if err := rt.WriteHandle(node, 8, a); err != nil {
		t.Fatalf("WriteHandle: %v", err)
	}
	if got, _ := rt.ReadHandle(node, 8); got != a {
		t.Errorf("ReadHandle = %d, want %d", got, a)
	}
	if rt.ObjectPool().RefCount(a) != 1 {
		t.Errorf("refcount of stored handle = %d", rt.ObjectPool().RefCount(a))
	}
	if err := rt.WriteHandle(node, 8, b); err != nil {
		t.Fatalf("WriteHandle: %v", err)
	}
	if rt.ObjectPool().HandleToAddress(a) != 0 {
		t.Error("overwritten handle should be disposed")
	}
	if err := rt.WriteHandle(node, 8, 999); !errors.IsKind(err, errors.KindInvalidHandle) {
		t.Errorf("WriteHandle(invalid) = %v", err)
	}
	if err := rt.WriteInt32(node, 0, 41); err != nil {
		t.Fatalf("WriteInt32: %v", err)
	}
	if v, _ := rt.ReadInt32(node, 0); v != 41 {
		t.Errorf("ReadInt32 = %d", v)
	}
	if err := rt.SetTypes(rtti.NewRegistry()); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("SetTypes(unfrozen) = %v", err)
	}
}

func TestRuntime_StoredHandleAfterRelease(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := types(t, false)
	if err := rt.SetTypes(reg); err != nil {
		t.Fatalf("SetTypes: %v", err)
	}
	nodeID, _ := reg.Lookup("Node")
	node, err := rt.CreateUserStruct(nodeID, 12)
	if err != nil {
		t.Fatalf("CreateUserStruct: %v", err)
	}
	rt.AddRef(node)

	a, _ := rt.CreateString("a")
	if err := rt.WriteHandle(node, 8, a); err != nil {
		t.Fatalf("WriteHandle: %v", err)
	}
	gen := rt.ObjectPool().Generation(a)

	if !rt.Release(a) {
		t.Fatal("Release failed")
	}
	c, _ := rt.CreateString("c")
	if c != a {
		t.Fatalf("CreateString = %d, want recycled handle %d", c, a)
	}

	stored, err := rt.ReadHandle(node, 8)
	if err != nil || stored != a {
		t.Fatalf("ReadHandle = %d, %v", stored, err)
	}
	if rt.ObjectPool().Generation(stored) == gen {
		t.Errorf("generation %d unchanged after the handle was recycled", gen)
	}
	if s, _ := rt.Text(stored); s != "c" {
		t.Errorf("stored handle resolves to %q, want the new string", s)
	}
}

func TestRuntime_GC(t *testing.T) {
	rt := newRuntime(t, nil)
	a, _ := rt.CreateManagedArray(1)
	b, _ := rt.CreateManagedArray(1)
	if err := rt.WriteHandle(a, 0, b); err != nil {
		t.Fatalf("WriteHandle: %v", err)
	}
	if err := rt.WriteHandle(b, 0, a); err != nil {
		t.Fatalf("WriteHandle: %v", err)
	}
	if n := rt.RunGC(); n != 2 {
		t.Fatalf("RunGC = %d, want 2", n)
	}
	st := rt.Stats()
	if st.Objects != 0 || st.Pool.RemovedGC != 2 || st.Pool.GCTimesRun != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.Heap.InUse != 0 {
		t.Errorf("heap in use = %d", st.Heap.InUse)
	}
}

func TestRuntime_MaybeRunGC(t *testing.T) {
	rt := newRuntime(t, func(o *Options) { o.GCInterval = 2 })
	for i := 0; i < 2; i++ {
		_, _ = rt.CreatePoint(int32(i), 0)
	}
	if rt.MaybeRunGC() {
		t.Fatal("collector ran before the interval")
	}
	_, _ = rt.CreatePoint(9, 9)
	if !rt.MaybeRunGC() {
		t.Fatal("collector did not run after the interval")
	}
}

func TestRuntime_SaveLoad(t *testing.T) {
	src := newRuntime(t, func(o *Options) { o.Characters = 2 })
	if err := src.SetTypes(types(t, false)); err != nil {
		t.Fatalf("SetTypes: %v", err)
	}
	nodeID, _ := src.TypeRegistry().Lookup("Node")
	node, _ := src.CreateUserStruct(nodeID, 12)
	src.AddRef(node)
	label, _ := src.CreateString("label")
	_ = src.WriteHandle(node, 8, label)
	_ = src.WriteInt32(node, 0, 7)
	list, _ := src.CreateStringArray([]string{"a", "b", "c"})
	src.AddRef(list)

	var buf bytes.Buffer
	if err := src.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst := newRuntime(t, func(o *Options) {
		o.Characters = 2
		o.Backend = BackendWasm
	})
	if err := dst.SetTypes(types(t, true)); err != nil {
		t.Fatalf("SetTypes: %v", err)
	}
	remap, err := dst.Load(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(rtti.Remap{1: 2, 2: 3}, remap); diff != "" {
		t.Errorf("remap (-want +got):\n%s", diff)
	}

	if v, _ := dst.ReadInt32(node, 0); v != 7 {
		t.Errorf("node.value = %d", v)
	}
	got, _ := dst.ReadHandle(node, 8)
	if text, _ := dst.Text(got); text != "label" {
		t.Errorf("node.label = %q", text)
	}
	addr := dst.ObjectPool().HandleToAddress(node)
	if id := dst.Managers().Users.StructType(addr); id != 3 {
		t.Errorf("node type = %d, want 3", id)
	}
	for i := 0; i < 2; i++ {
		if dst.Characters().Handle(i) != src.Characters().Handle(i) {
			t.Errorf("character %d handle changed", i)
		}
	}
	if n := dst.RunGC(); n != 0 {
		t.Errorf("collected %d restored objects", n)
	}

	want := src.Stats()
	gotStats := dst.Stats()
	if diff := cmp.Diff(want.Objects, gotStats.Objects); diff != "" {
		t.Errorf("object count (-want +got):\n%s", diff)
	}
}

func TestRuntime_Errors(t *testing.T) {
	rt := newRuntime(t, nil)
	if _, err := rt.ReadInt32(77, 0); !errors.IsKind(err, errors.KindInvalidHandle) {
		t.Errorf("ReadInt32(invalid) = %v", err)
	}
	s, _ := rt.CreateString("abc")
	if _, err := rt.ReadInt8(s, 1<<30); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("read outside memory = %v", err)
	}
	if _, err := rt.Load(bytes.NewReader([]byte("junk"))); err == nil {
		t.Error("Load accepted junk")
	}
	if _, err := rt.CreateArray(5, 1, 4); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("CreateArray(unknown type) = %v", err)
	}
}

func TestRuntime_Observers(t *testing.T) {
	rt := newRuntime(t, nil)
	var events []pool.EventType
	rt.ObjectPool().Subscribe(pool.ObserverFunc(func(e pool.Event) { events = append(events, e.Type) }))

	s, _ := rt.CreateString("x")
	rt.CheckDispose(s)
	want := []pool.EventType{pool.EventCreated, pool.EventDisposed}
	if diff := cmp.Diff(want, events, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestRuntime_LegacyText(t *testing.T) {
	rt := newRuntime(t, func(o *Options) {
		o.TextMode = dynobj.TextLegacy
		o.FormatBuffer = 6
	})
	s, _ := rt.Strings().Format("%s-%d", dynobj.StringArg("abc"), dynobj.IntArg(1234))
	if got, _ := rt.Text(s); got != "abc-1" {
		t.Errorf("Format = %q", got)
	}
	if rt.Strings().Mode() != dynobj.TextLegacy {
		t.Errorf("mode = %v", rt.Strings().Mode())
	}
}
