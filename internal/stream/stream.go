// Package stream reads and writes the primitive encodings used by save data:
// little-endian 32-bit integers and zero-terminated strings.
//
// Writer and Reader keep the first error and turn later calls into no-ops,
// so callers can encode a whole record and check Err once.
package stream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxCStringLen bounds zero-terminated strings read from save data.
const MaxCStringLen = 4096

var errCStringTooLong = errors.New("zero-terminated string too long")

// Writer encodes save data primitives.
type Writer struct {
	w   io.Writer
	n   int64
	err error
	buf [4]byte
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes p in full.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(p)
	w.n += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	w.err = err
	return n, err
}

// WriteInt32 writes a little-endian int32.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteUint32 writes a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:], v)
	w.Write(w.buf[:])
}

// WriteCString writes s followed by a zero byte.
func (w *Writer) WriteCString(s string) {
	w.Write(append([]byte(s), 0))
}

// Count returns the number of bytes written so far.
func (w *Writer) Count() int64 {
	return w.n
}

// Err returns the first error encountered.
func (w *Writer) Err() error {
	return w.err
}

// Reader decodes save data primitives.
type Reader struct {
	r   *bufio.Reader
	n   int64
	err error
	buf [4]byte
}

// NewReader returns a Reader that reads from r.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{r: br}
}

// ReadFull fills p.
func (r *Reader) ReadFull(p []byte) error {
	if r.err != nil {
		return r.err
	}
	n, err := io.ReadFull(r.r, p)
	r.n += int64(n)
	if err != nil {
		r.err = err
	}
	return err
}

// ReadInt32 reads a little-endian int32.
func (r *Reader) ReadInt32() int32 {
	return int32(r.ReadUint32())
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() uint32 {
	if r.ReadFull(r.buf[:]) != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(r.buf[:])
}

// ReadCString reads a zero-terminated string.
func (r *Reader) ReadCString() string {
	if r.err != nil {
		return ""
	}
	var out []byte
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			r.err = err
			return ""
		}
		r.n++
		if b == 0 {
			return string(out)
		}
		if len(out) >= MaxCStringLen {
			r.err = fmt.Errorf("%w (limit %d)", errCStringTooLong, MaxCStringLen)
			return ""
		}
		out = append(out, b)
	}
}

// Count returns the number of bytes consumed so far.
func (r *Reader) Count() int64 {
	return r.n
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}

// Fail records err as the reader's error unless one is already set.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}
