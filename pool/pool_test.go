package pool

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	scriptheap "github.com/wippyai/script-heap"
	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/internal/stream"
	"github.com/wippyai/script-heap/rtti"
)

type fakeObj struct {
	refs   []Handle
	typeID uint32
}

// fakeManager keeps objects in a Go map keyed by synthetic addresses.
type fakeManager struct {
	p        *Pool
	objs     map[scriptheap.Addr]*fakeObj
	name     string
	disposed []scriptheap.Addr
	next     scriptheap.Addr
	veto     bool
	extra    int
}

func newFake(p *Pool, name string) *fakeManager {
	return &fakeManager{p: p, name: name, objs: map[scriptheap.Addr]*fakeObj{}, next: 0x100}
}

func (m *fakeManager) alloc(o *fakeObj) scriptheap.Addr {
	addr := m.next
	m.next += 0x10
	m.objs[addr] = o
	return addr
}

func (m *fakeManager) create(t *testing.T, persistent bool) Handle {
	t.Helper()
	h, err := m.p.AddObject(m.alloc(&fakeObj{}), m, ValueScriptObject, persistent)
	if err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	return h
}

// link stores a reference from one object to another and counts it.
func (m *fakeManager) link(from, to Handle) {
	m.objs[m.p.HandleToAddress(from)].refs = append(m.objs[m.p.HandleToAddress(from)].refs, to)
	m.p.AddRef(to)
}

func (m *fakeManager) TypeName() string { return m.name }

func (m *fakeManager) Dispose(addr scriptheap.Addr, force bool) bool {
	if m.veto && !force {
		return false
	}
	o := m.objs[addr]
	if !force {
		for _, r := range o.refs {
			m.p.SubRefNoCheck(r)
		}
	}
	delete(m.objs, addr)
	m.disposed = append(m.disposed, addr)
	return true
}

func (m *fakeManager) CalcSerializeSize(addr scriptheap.Addr) uint32 {
	return 8 + 4*uint32(len(m.objs[addr].refs))
}

func (m *fakeManager) Serialize(addr scriptheap.Addr, w *stream.Writer) error {
	o := m.objs[addr]
	w.WriteUint32(o.typeID)
	w.WriteInt32(int32(len(o.refs)))
	for _, r := range o.refs {
		w.WriteInt32(int32(r))
	}
	for range m.extra {
		w.Write([]byte{0})
	}
	return w.Err()
}

func (m *fakeManager) Unserialize(h Handle, r *stream.Reader, size uint32) error {
	o := &fakeObj{typeID: r.ReadUint32()}
	n := r.ReadInt32()
	for range n {
		o.refs = append(o.refs, Handle(r.ReadInt32()))
	}
	if err := r.Err(); err != nil {
		return err
	}
	_, err := m.p.AddUnserializedObject(m.alloc(o), m, h, ValueScriptObject, false)
	return err
}

func (m *fakeManager) RemapTypeIDs(addr scriptheap.Addr, remap rtti.Remap) error {
	o := m.objs[addr]
	to, ok := remap.Lookup(o.typeID)
	if !ok {
		return errors.UnmappedType(errors.PhaseRemap, m.name, o.typeID)
	}
	o.typeID = to
	return nil
}

func (m *fakeManager) TraverseRefs(addr scriptheap.Addr, fn func(Handle)) {
	for _, r := range m.objs[addr].refs {
		if r != 0 {
			fn(r)
		}
	}
}

func TestPool_AddRefSubRefNetZero(t *testing.T) {
	p := New(DefaultConfig())
	m := newFake(p, "Fake")
	h := m.create(t, false)
	p.AddRef(h)

	if n := p.AddRef(h); n != 2 {
		t.Fatalf("AddRef = %d, want 2", n)
	}
	if n := p.SubRefCheckDispose(h); n != 1 {
		t.Fatalf("SubRefCheckDispose = %d, want 1", n)
	}
	if p.HandleToAddress(h) == 0 {
		t.Fatal("object disposed while still referenced")
	}
	if p.RefCount(h) != 1 {
		t.Fatalf("RefCount = %d, want 1", p.RefCount(h))
	}
}

func TestPool_DisposeAndFIFOReuse(t *testing.T) {
	p := New(DefaultConfig())
	m := newFake(p, "Fake")
	a, b, c := m.create(t, false), m.create(t, false), m.create(t, false)
	for _, h := range []Handle{a, b, c} {
		p.AddRef(h)
	}

	p.SubRefCheckDispose(b)
	p.SubRefCheckDispose(a)
	if p.HandleToAddress(a) != 0 || p.HandleToAddress(b) != 0 {
		t.Fatal("objects at zero references must be disposed")
	}
	if len(m.disposed) != 2 {
		t.Fatalf("disposed %d objects, want 2", len(m.disposed))
	}

	// oldest released handle first, then the next one, then a fresh one
	want := []Handle{b, a, c + 1}
	for i, w := range want {
		if h := m.create(t, false); h != w {
			t.Errorf("create #%d = %d, want %d", i, h, w)
		}
	}
	if p.Generation(b) != 1 || p.Generation(c) != 0 {
		t.Errorf("generations b=%d c=%d, want 1 and 0", p.Generation(b), p.Generation(c))
	}
}

func TestPool_RecycledHandleIsStale(t *testing.T) {
	p := New(DefaultConfig())
	m := newFake(p, "Fake")
	holder, victim := m.create(t, true), m.create(t, false)
	p.AddRef(victim)

	// the holder keeps the raw handle without counting it
	m.objs[p.HandleToAddress(holder)].refs = []Handle{victim}
	gen, addr := p.Generation(victim), p.HandleToAddress(victim)

	p.SubRefCheckDispose(victim)
	if p.HandleToAddress(victim) != 0 {
		t.Fatal("victim must be disposed")
	}
	reused := m.create(t, false)
	if reused != victim {
		t.Fatalf("create = %d, want recycled handle %d", reused, victim)
	}

	stored := m.objs[p.HandleToAddress(holder)].refs[0]
	if p.HandleToAddress(stored) == 0 {
		t.Fatal("recycled handle must resolve again")
	}
	if got := p.Generation(stored); got == gen {
		t.Errorf("generation unchanged at %d after reuse", got)
	}
	if p.HandleToAddress(stored) == addr {
		t.Error("recycled handle still resolves to the disposed address")
	}
}

func TestPool_DisposeDoesNotCascade(t *testing.T) {
	p := New(DefaultConfig())
	m := newFake(p, "Fake")
	parent, child := m.create(t, false), m.create(t, false)
	p.AddRef(parent)
	m.link(parent, child)

	p.SubRefCheckDispose(parent)
	if p.RefCount(child) != 0 {
		t.Fatalf("child refs = %d, want 0", p.RefCount(child))
	}
	if p.HandleToAddress(child) == 0 {
		t.Fatal("child must stay registered until collected")
	}
	if n := p.RunGarbageCollection(); n != 1 {
		t.Fatalf("collected %d, want 1", n)
	}
}

func TestPool_CycleCollection(t *testing.T) {
	p := New(DefaultConfig())
	m := newFake(p, "Fake")
	a, b := m.create(t, false), m.create(t, false)
	m.link(a, b)
	m.link(b, a)

	if n := p.RunGarbageCollection(); n != 2 {
		t.Fatalf("collected %d, want 2", n)
	}
	if len(m.disposed) != 2 || m.disposed[0] == m.disposed[1] {
		t.Fatalf("each cycle member must be disposed once: %v", m.disposed)
	}
	s := p.Stats()
	if s.RemovedGC != 2 || s.GCTimesRun != 1 || s.RemovedGCDetached != 0 {
		t.Errorf("stats = %+v", s)
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0", p.Len())
	}
}

func TestPool_CycleCollectionBrokenAddressMap(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	cfg := DefaultConfig()
	cfg.Logger = zap.New(core)
	p := New(cfg)
	m := newFake(p, "Fake")
	a, b := m.create(t, false), m.create(t, false)
	m.link(a, b)
	m.link(b, a)

	// re-register a's address under b
	p.byAddr[p.HandleToAddress(a)] = b

	if n := p.RunGarbageCollection(); n != 2 {
		t.Fatalf("collected %d, want 2", n)
	}
	if s := p.Stats(); s.RemovedGCDetached != 1 {
		t.Errorf("RemovedGCDetached = %d, want 1", s.RemovedGCDetached)
	}
	entries := logs.FilterMessage("collected object not registered at its address").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d address errors, want 1", len(entries))
	}
	err, _ := entries[0].ContextMap()["error"].(string)
	if err == "" {
		t.Error("log entry carries no error")
	}
}

func TestPool_CycleReachableFromRoot(t *testing.T) {
	p := New(DefaultConfig())
	m := newFake(p, "Fake")
	a, b, c := m.create(t, false), m.create(t, false), m.create(t, false)
	m.link(a, b)
	m.link(b, a)
	m.link(c, a)
	p.AddRef(c) // held by a script variable

	if n := p.RunGarbageCollection(); n != 0 {
		t.Fatalf("collected %d, want 0", n)
	}
	for _, h := range []Handle{a, b, c} {
		if p.HandleToAddress(h) == 0 {
			t.Errorf("handle %d collected", h)
		}
	}

	// dropping the root releases everything
	p.SubRefNoCheck(c)
	if n := p.RunGarbageCollection(); n != 3 {
		t.Fatalf("collected %d after release, want 3", n)
	}
}

func TestPool_GarbageReleasesSurvivors(t *testing.T) {
	p := New(DefaultConfig())
	m := newFake(p, "Fake")
	keep := m.create(t, false)
	p.AddRef(keep)
	a, b := m.create(t, false), m.create(t, false)
	m.link(a, b)
	m.link(b, a)
	m.link(a, keep)

	if p.RefCount(keep) != 2 {
		t.Fatalf("RefCount(keep) = %d, want 2", p.RefCount(keep))
	}
	p.RunGarbageCollection()
	if p.RefCount(keep) != 1 {
		t.Fatalf("RefCount(keep) after GC = %d, want 1", p.RefCount(keep))
	}
}

func TestPool_PersistentAndExcluded(t *testing.T) {
	p := New(DefaultConfig())
	m := newFake(p, "Fake")
	pers := m.create(t, true)
	if p.RefCount(pers) != 1 || !p.Persistent(pers) {
		t.Fatalf("persistent object refs = %d", p.RefCount(pers))
	}
	held := m.create(t, false)
	m.link(pers, held)

	ex := m.create(t, false)
	p.SetDisposeExcluded(p.HandleToAddress(ex))
	if p.CheckDispose(ex) {
		t.Fatal("excluded object disposed by CheckDispose")
	}
	p.AddRef(ex)
	p.SubRefCheckDispose(ex)

	if n := p.RunGarbageCollection(); n != 0 {
		t.Fatalf("collected %d, want 0", n)
	}
	if p.HandleToAddress(ex) == 0 || p.HandleToAddress(held) == 0 {
		t.Fatal("excluded or persistently referenced object was removed")
	}

	p.SetDisposeExcluded(0)
	if !p.CheckDispose(ex) {
		t.Fatal("CheckDispose after clearing exclusion must dispose")
	}
	if s := p.Stats(); s.AddedPersistent != 1 {
		t.Errorf("AddedPersistent = %d", s.AddedPersistent)
	}
}

func TestPool_InvalidHandles(t *testing.T) {
	p := New(DefaultConfig())
	for _, h := range []Handle{0, -3, 99} {
		if p.AddRef(h) != -1 || p.SubRefNoCheck(h) != -1 || p.SubRefCheckDispose(h) != -1 {
			t.Errorf("handle %d: refcount ops must return -1", h)
		}
		if p.HandleToAddress(h) != 0 {
			t.Errorf("handle %d resolved", h)
		}
		if _, mgr, vt := p.HandleToAddressAndManager(h); mgr != nil || vt != ValueUndefined {
			t.Errorf("handle %d resolved a manager", h)
		}
		if !p.CheckDispose(h) {
			t.Errorf("CheckDispose(%d) must report gone", h)
		}
	}
	if p.RemoveObject(0x500) {
		t.Error("RemoveObject of unknown address succeeded")
	}
	if p.AddressToHandle(0) != 0 {
		t.Error("null address has a handle")
	}
}

func TestPool_AddErrors(t *testing.T) {
	p := New(Config{MaxHandle: 2})
	m := newFake(p, "Fake")
	h := m.create(t, false)

	_, err := p.AddObject(p.HandleToAddress(h), m, ValueScriptObject, false)
	if !errors.IsKind(err, errors.KindAddressMismatch) || !errors.IsFatal(err) {
		t.Fatalf("duplicate address: err = %v", err)
	}
	if _, err := p.AddObject(0, m, ValueScriptObject, false); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("null address: err = %v", err)
	}

	m.create(t, false)
	got, err := p.AddObject(m.alloc(&fakeObj{}), m, ValueScriptObject, false)
	if got != 0 || !errors.IsKind(err, errors.KindHandleExhausted) {
		t.Fatalf("exhaustion: handle %d err %v", got, err)
	}
}

func TestPool_RemoveObject(t *testing.T) {
	p := New(DefaultConfig())
	m := newFake(p, "Fake")
	m.veto = true
	h := m.create(t, false)
	p.AddRef(h)
	p.AddRef(h)

	if p.CheckDispose(h) {
		t.Fatal("referenced object disposed")
	}
	addr := p.HandleToAddress(h)
	if !p.RemoveObject(addr) {
		t.Fatal("forced removal failed")
	}
	if p.AddressToHandle(addr) != 0 || p.Len() != 0 {
		t.Fatal("object still registered")
	}
}

func TestPool_VetoedDispose(t *testing.T) {
	p := New(DefaultConfig())
	m := newFake(p, "Fake")
	m.veto = true
	h := m.create(t, false)
	p.AddRef(h)
	p.SubRefCheckDispose(h)
	if p.HandleToAddress(h) == 0 {
		t.Fatal("vetoed dispose removed the object")
	}
}

type recorder struct{ events []Event }

func (r *recorder) OnObjectEvent(e Event) { r.events = append(r.events, e) }

func TestPool_Observers(t *testing.T) {
	p := New(DefaultConfig())
	rec := &recorder{}
	p.Subscribe(rec)
	m := newFake(p, "Fake")

	a := m.create(t, false)
	p.AddRef(a)
	p.SubRefCheckDispose(a)
	b := m.create(t, false)
	p.RunGarbageCollection()

	want := []EventType{EventCreated, EventDisposed, EventCreated, EventCollected}
	if len(rec.events) != len(want) {
		t.Fatalf("got %d events, want %d", len(rec.events), len(want))
	}
	for i, e := range rec.events {
		if e.Type != want[i] || e.TypeName != "Fake" {
			t.Errorf("event %d = %v %q, want %v", i, e.Type, e.TypeName, want[i])
		}
	}
	if rec.events[3].Handle != b {
		t.Errorf("collected handle = %d, want %d", rec.events[3].Handle, b)
	}

	p.Unsubscribe(rec)
	m.create(t, false)
	if len(rec.events) != len(want) {
		t.Error("unsubscribed observer still notified")
	}
}

func TestPool_GCInterval(t *testing.T) {
	p := New(Config{GCInterval: 3})
	m := newFake(p, "Fake")
	for range 3 {
		m.create(t, false)
	}
	if p.RunGarbageCollectionIfAppropriate() {
		t.Fatal("collection ran at the interval, want only past it")
	}
	m.create(t, false)
	if !p.RunGarbageCollectionIfAppropriate() {
		t.Fatal("collection did not run past the interval")
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0", p.Len())
	}
	if p.RunGarbageCollectionIfAppropriate() {
		t.Fatal("counter not reset")
	}

	off := New(Config{GCInterval: -1})
	m = newFake(off, "Fake")
	for range 10 {
		m.create(t, false)
	}
	if off.RunGarbageCollectionIfAppropriate() {
		t.Fatal("negative interval must disable automatic collection")
	}
}

func TestPool_AddUnserializedObject(t *testing.T) {
	p := New(DefaultConfig())
	m := newFake(p, "Fake")

	if _, err := p.AddUnserializedObject(m.alloc(&fakeObj{}), m, 4, ValueScriptObject, false); err != nil {
		t.Fatalf("AddUnserializedObject: %v", err)
	}
	if _, err := p.AddUnserializedObject(m.alloc(&fakeObj{}), m, 4, ValueScriptObject, false); !errors.IsKind(err, errors.KindDuplicate) {
		t.Fatalf("reused handle: err = %v", err)
	}
	if _, err := p.AddUnserializedObject(m.alloc(&fakeObj{}), m, 2, ValueScriptObject, false); err != nil {
		t.Fatalf("fill gap: %v", err)
	}
	// gaps 1 and 3 are free, oldest first; then 5
	for _, want := range []Handle{1, 3, 5} {
		if h := m.create(t, false); h != want {
			t.Errorf("create = %d, want %d", h, want)
		}
	}
}

func TestPool_Reset(t *testing.T) {
	p := New(DefaultConfig())
	m := newFake(p, "Fake")
	a := m.create(t, true)
	b := m.create(t, false)
	m.link(a, b)
	p.Reset()

	if p.Len() != 0 || len(m.objs) != 0 {
		t.Fatalf("Reset left %d objects, %d in manager", p.Len(), len(m.objs))
	}
	if h := m.create(t, false); h != 1 {
		t.Errorf("first handle after Reset = %d, want 1", h)
	}
}
