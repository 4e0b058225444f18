// Package binary provides low-level positional I/O for NDTiff file parsing
// and writing. All multi-byte fields in the NDTiff format are written in a
// single byte order chosen at file-creation time (the host's native order),
// so readers and writers carry the order as configuration.
package binary

import (
	"encoding/binary"
	"io"
)

// NativeOrder is the byte order of the host. New container and index files
// are written in this order.
var NativeOrder binary.ByteOrder = binary.NativeEndian

// IsBigEndian reports whether the host's native byte order is big-endian.
func IsBigEndian() bool {
	return NativeOrder.Uint16([]byte{0x12, 0x34}) == 0x1234
}

// Writer provides methods for writing NDTiff binary data at a tracked file
// position.
type Writer struct {
	w     io.WriterAt
	order binary.ByteOrder
	pos   int64
}

// NewWriter creates a binary writer with the given byte order.
func NewWriter(w io.WriterAt, order binary.ByteOrder) *Writer {
	return &Writer{
		w:     w,
		order: order,
		pos:   0,
	}
}

// At returns a new writer positioned at the given offset.
// The new writer shares the underlying io.WriterAt but has independent position.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{
		w:     w.w,
		order: w.order,
		pos:   offset,
	}
}

// Pos returns the current write position.
func (w *Writer) Pos() int64 {
	return w.pos
}

// SetPos moves the write position to an absolute offset.
func (w *Writer) SetPos(offset int64) {
	w.pos = offset
}

// WriteBytes writes the given bytes at the current position.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	buf := make([]byte, 2)
	w.order.PutUint16(buf, v)
	return w.WriteBytes(buf)
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	buf := make([]byte, 4)
	w.order.PutUint32(buf, v)
	return w.WriteBytes(buf)
}

// Skip advances the position by n bytes without writing.
func (w *Writer) Skip(n int64) {
	w.pos += n
}

// Align advances the position to the next multiple of alignment.
// If already aligned, the position is unchanged.
func (w *Writer) Align(alignment int64) {
	if alignment <= 1 {
		return
	}
	if remainder := w.pos % alignment; remainder != 0 {
		w.pos += alignment - remainder
	}
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	zeros := make([]byte, n)
	return w.WriteBytes(zeros)
}

// ByteOrder returns the configured byte order.
func (w *Writer) ByteOrder() binary.ByteOrder {
	return w.order
}

// Block is an in-memory buffer assembled field by field before being written
// to the file in one call. IFD blocks and the container header are built this
// way so each image costs a small, fixed number of OS writes.
type Block struct {
	buf   []byte
	order binary.ByteOrder
}

// NewBlock wraps buf as a block using the given byte order.
func NewBlock(buf []byte, order binary.ByteOrder) *Block {
	return &Block{buf: buf, order: order}
}

// PutUint16 stores v at byte offset off.
func (b *Block) PutUint16(off int, v uint16) {
	b.order.PutUint16(b.buf[off:], v)
}

// PutUint32 stores v at byte offset off.
func (b *Block) PutUint32(off int, v uint32) {
	b.order.PutUint32(b.buf[off:], v)
}

// Bytes returns the underlying buffer.
func (b *Block) Bytes() []byte {
	return b.buf
}
