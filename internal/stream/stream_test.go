package stream

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestWriterReader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteInt32(-5)
	w.WriteUint32(0xa30b)
	w.WriteCString("String")
	w.Write([]byte{1, 2, 3})
	if err := w.Err(); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if w.Count() != int64(buf.Len()) {
		t.Fatalf("Count = %d, buffer has %d", w.Count(), buf.Len())
	}

	r := NewReader(&buf)
	if v := r.ReadInt32(); v != -5 {
		t.Errorf("ReadInt32 = %d, want -5", v)
	}
	if v := r.ReadUint32(); v != 0xa30b {
		t.Errorf("ReadUint32 = 0x%x, want 0xa30b", v)
	}
	if s := r.ReadCString(); s != "String" {
		t.Errorf("ReadCString = %q, want String", s)
	}
	p := make([]byte, 3)
	if err := r.ReadFull(p); err != nil {
		t.Fatalf("ReadFull failed: %v", err)
	}
	if !bytes.Equal(p, []byte{1, 2, 3}) {
		t.Errorf("ReadFull = %v", p)
	}
	if r.Count() != w.Count() {
		t.Errorf("reader consumed %d bytes, writer produced %d", r.Count(), w.Count())
	}
}

func TestReader_StickyError(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 0}))
	r.ReadInt32()
	if !errors.Is(r.Err(), io.ErrUnexpectedEOF) {
		t.Fatalf("Err = %v, want ErrUnexpectedEOF", r.Err())
	}
	if v := r.ReadInt32(); v != 0 {
		t.Errorf("read after error returned %d", v)
	}
}

func TestReader_UnterminatedCString(t *testing.T) {
	r := NewReader(strings.NewReader("abc"))
	r.ReadCString()
	if !errors.Is(r.Err(), io.ErrUnexpectedEOF) {
		t.Fatalf("Err = %v, want ErrUnexpectedEOF", r.Err())
	}
}

func TestReader_CStringLimit(t *testing.T) {
	r := NewReader(strings.NewReader(strings.Repeat("a", MaxCStringLen+1) + "\x00"))
	r.ReadCString()
	if r.Err() == nil {
		t.Fatal("expected error for oversized string")
	}
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestWriter_ShortWrite(t *testing.T) {
	w := NewWriter(shortWriter{})
	w.WriteInt32(1)
	if !errors.Is(w.Err(), io.ErrShortWrite) {
		t.Fatalf("Err = %v, want ErrShortWrite", w.Err())
	}
}
