// Package archive implements the chunk-tagged binary layout used to save and
// load channels, containers and action state.
//
// A chunk is a little-endian header (uint16 id, uint32 payload size) followed
// by the payload. Chunks nest. Readers skip any chunk they do not recognise,
// and any bytes a known chunk leaves unread, so newer files load in older
// builds.
package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrUnbalanced is returned when EndChunk/CloseChunk has no matching open.
var ErrUnbalanced = errors.New("archive: unbalanced chunk")

const headerSize = 6

// Writer builds chunks in memory and flushes each top-level chunk to the
// underlying writer when it is closed. Errors are sticky; check Err.
type Writer struct {
	out   io.Writer
	stack []*bytes.Buffer
	ids   []uint16
	err   error
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{out: w}
}

// BeginChunk opens a chunk with the given id.
func (w *Writer) BeginChunk(id uint16) {
	w.stack = append(w.stack, &bytes.Buffer{})
	w.ids = append(w.ids, id)
}

// EndChunk closes the innermost chunk and writes it to its parent.
func (w *Writer) EndChunk() error {
	if w.err != nil {
		return w.err
	}
	n := len(w.stack)
	if n == 0 {
		w.err = ErrUnbalanced
		return w.err
	}
	buf, id := w.stack[n-1], w.ids[n-1]
	w.stack, w.ids = w.stack[:n-1], w.ids[:n-1]
	if uint64(buf.Len()) > math.MaxUint32 {
		w.err = fmt.Errorf("archive: chunk 0x%04x too large (%d bytes)", id, buf.Len())
		return w.err
	}

	var hdr [headerSize]byte
	binary.LittleEndian.PutUint16(hdr[0:], id)
	binary.LittleEndian.PutUint32(hdr[2:], uint32(buf.Len()))
	w.raw(hdr[:])
	w.raw(buf.Bytes())
	return w.err
}

// Chunk writes a chunk whose body is produced by fn.
func (w *Writer) Chunk(id uint16, fn func()) {
	w.BeginChunk(id)
	fn()
	w.EndChunk()
}

func (w *Writer) raw(p []byte) {
	if w.err != nil {
		return
	}
	var err error
	if n := len(w.stack); n > 0 {
		_, err = w.stack[n-1].Write(p)
	} else {
		_, err = w.out.Write(p)
	}
	if err != nil {
		w.err = fmt.Errorf("archive: write: %w", err)
	}
}

// Err returns the first error encountered. Open chunks are not an error
// here; savers check Err from inside enclosing chunks.
func (w *Writer) Err() error {
	return w.err
}

// Depth returns the number of open chunks.
func (w *Writer) Depth() int { return len(w.stack) }

// Close reports the first error, or ErrUnbalanced if a chunk is still open.
// Call it once the outermost chunk is written.
func (w *Writer) Close() error {
	if w.err == nil && len(w.stack) > 0 {
		w.err = ErrUnbalanced
	}
	return w.err
}

// Uint16 writes v.
func (w *Writer) Uint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.raw(b[:])
}

// Uint32 writes v.
func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.raw(b[:])
}

// Uint64 writes v.
func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.raw(b[:])
}

// Int32 writes v.
func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }

// Int64 writes v.
func (w *Writer) Int64(v int64) { w.Uint64(uint64(v)) }

// Float32 writes v.
func (w *Writer) Float32(v float32) { w.Uint32(math.Float32bits(v)) }

// Float64 writes v.
func (w *Writer) Float64(v float64) { w.Uint64(math.Float64bits(v)) }

// Bool writes v as one byte.
func (w *Writer) Bool(v bool) {
	if v {
		w.raw([]byte{1})
	} else {
		w.raw([]byte{0})
	}
}

// Bytes writes a length-prefixed byte slice.
func (w *Writer) Bytes(p []byte) {
	w.Uint32(uint32(len(p)))
	w.raw(p)
}

// Reader walks chunks written by Writer. Errors are sticky; check Err.
type Reader struct {
	base  io.Reader
	stack []*io.LimitedReader
	ids   []uint16
	err   error
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{base: r}
}

func (r *Reader) current() io.Reader {
	if n := len(r.stack); n > 0 {
		return r.stack[n-1]
	}
	return r.base
}

// OpenChunk reads the next chunk header at the current level. It returns
// io.EOF when the current level has no more chunks.
func (r *Reader) OpenChunk() (uint16, error) {
	if r.err != nil {
		return 0, r.err
	}
	var hdr [headerSize]byte
	n, err := io.ReadFull(r.current(), hdr[:])
	if err != nil {
		if n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
			return 0, io.EOF
		}
		r.err = fmt.Errorf("archive: reading chunk header: %w", err)
		return 0, r.err
	}
	id := binary.LittleEndian.Uint16(hdr[0:])
	size := binary.LittleEndian.Uint32(hdr[2:])
	r.stack = append(r.stack, &io.LimitedReader{R: r.current(), N: int64(size)})
	r.ids = append(r.ids, id)
	return id, nil
}

// CloseChunk discards whatever the innermost chunk has left and pops it.
func (r *Reader) CloseChunk() error {
	n := len(r.stack)
	if n == 0 {
		return ErrUnbalanced
	}
	top := r.stack[n-1]
	r.stack, r.ids = r.stack[:n-1], r.ids[:n-1]
	if _, err := io.Copy(io.Discard, top); err != nil && r.err == nil {
		r.err = fmt.Errorf("archive: skipping chunk: %w", err)
	}
	if top.N > 0 && r.err == nil {
		r.err = fmt.Errorf("archive: truncated chunk (%d bytes missing)", top.N)
	}
	return r.err
}

// Chunks calls fn for every chunk at the current level, closing each one
// afterwards. fn may ignore ids it does not know.
func (r *Reader) Chunks(fn func(id uint16) error) error {
	for {
		id, err := r.OpenChunk()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(id); err != nil {
			return err
		}
		if err := r.CloseChunk(); err != nil {
			return err
		}
	}
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fill(b []byte) bool {
	if r.err != nil {
		return false
	}
	if _, err := io.ReadFull(r.current(), b); err != nil {
		r.err = fmt.Errorf("archive: read: %w", err)
		return false
	}
	return true
}

// Uint16 reads a uint16.
func (r *Reader) Uint16() uint16 {
	var b [2]byte
	if !r.fill(b[:]) {
		return 0
	}
	return binary.LittleEndian.Uint16(b[:])
}

// Uint32 reads a uint32.
func (r *Reader) Uint32() uint32 {
	var b [4]byte
	if !r.fill(b[:]) {
		return 0
	}
	return binary.LittleEndian.Uint32(b[:])
}

// Uint64 reads a uint64.
func (r *Reader) Uint64() uint64 {
	var b [8]byte
	if !r.fill(b[:]) {
		return 0
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Int32 reads an int32.
func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

// Int64 reads an int64.
func (r *Reader) Int64() int64 { return int64(r.Uint64()) }

// Float32 reads a float32.
func (r *Reader) Float32() float32 { return math.Float32frombits(r.Uint32()) }

// Float64 reads a float64.
func (r *Reader) Float64() float64 { return math.Float64frombits(r.Uint64()) }

// Bool reads a one-byte bool.
func (r *Reader) Bool() bool {
	var b [1]byte
	if !r.fill(b[:]) {
		return false
	}
	return b[0] != 0
}

// Bytes reads a length-prefixed byte slice.
func (r *Reader) Bytes() []byte {
	n := r.Uint32()
	if r.err != nil {
		return nil
	}
	if len(r.stack) > 0 && int64(n) > r.stack[len(r.stack)-1].N {
		r.err = fmt.Errorf("archive: byte slice of %d exceeds chunk", n)
		return nil
	}
	b := make([]byte, n)
	if !r.fill(b) {
		return nil
	}
	return b
}
