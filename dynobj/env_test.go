package dynobj

import (
	"bytes"
	"testing"

	"github.com/wippyai/script-heap/heap"
	"github.com/wippyai/script-heap/internal/stream"
	"github.com/wippyai/script-heap/pool"
	"github.com/wippyai/script-heap/rtti"
)

type testEnv struct {
	*Env
	mgrs *Managers
	lib  *StringLib
}

func newTestEnv(t *testing.T, types *rtti.Registry, characters int) *testEnv {
	t.Helper()
	env := &Env{
		Pool:  pool.New(pool.Config{GCInterval: -1}),
		Heap:  heap.New(heap.NewArena(heap.PageSize), heap.Options{}),
		Types: types,
	}
	mgrs := NewManagers(env)
	if characters > 0 {
		chars, err := NewCharacters(env, characters)
		if err != nil {
			t.Fatalf("NewCharacters: %v", err)
		}
		mgrs.Characters = chars
	}
	return &testEnv{Env: env, mgrs: mgrs, lib: NewStringLib(mgrs.Strings, TextUTF8)}
}

// sampleTypes registers String and a managed Pair {id int32, left, right handle}.
func sampleTypes(t *testing.T) (*rtti.Registry, uint32, uint32) {
	t.Helper()
	b := rtti.NewBuilder()
	str := b.StringType()
	pair := b.Struct("Pair").Int32("id").Handle("left", 0).Handle("right", str).AsManaged().Add()
	reg, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return reg, str, pair
}

func (e *testEnv) save(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	if err := e.Pool.WriteToDisk(w); err != nil {
		t.Fatalf("WriteToDisk: %v", err)
	}
	return buf.Bytes()
}

func (e *testEnv) load(t *testing.T, data []byte) {
	t.Helper()
	if err := e.Pool.ReadFromDisk(stream.NewReader(bytes.NewReader(data)), e.mgrs); err != nil {
		t.Fatalf("ReadFromDisk: %v", err)
	}
}

func (e *testEnv) str(t *testing.T, s string) pool.Handle {
	t.Helper()
	ref, err := e.mgrs.Strings.Create(s)
	if err != nil {
		t.Fatalf("Create(%q): %v", s, err)
	}
	return ref.Handle
}

func (e *testEnv) text(t *testing.T, h pool.Handle) string {
	t.Helper()
	s, ok, err := e.mgrs.Strings.TextOf(h)
	if err != nil || !ok {
		t.Fatalf("TextOf(%d) = %q, %v, %v", h, s, ok, err)
	}
	return s
}
