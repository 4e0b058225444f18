// Package index implements the NDTiff.index sidecar file: a flat,
// append-only log of fixed-schema entries that maps an axes key to the exact
// byte ranges of one image inside a container file. Loading the log gives
// O(1) random access without ever walking TIFF IFDs.
package index

import (
	"fmt"
	"io"
	"os"

	binpkg "github.com/robert-malhotra/go-ndtiff/internal/binary"
)

// Pixel type codes stored in index entries.
const (
	EightBit    = 0
	SixteenBit  = 1
	EightBitRGB = 2
	TenBit      = 3
	TwelveBit   = 4
	FourteenBit = 5
	ElevenBit   = 6
)

// Uncompressed is the only defined compression code.
const Uncompressed = 0

// Entry describes one image: where its pixels and metadata live and how to
// interpret them. Offsets are unsigned 32-bit byte offsets within Filename.
type Entry struct {
	AxesKey  string
	Filename string

	PixOffset uint32
	PixWidth  uint32
	PixHeight uint32
	PixelType uint32

	PixelCompression uint32

	MDOffset      uint32
	MDLength      uint32
	MDCompression uint32

	// Finished marks the all-zero sentinel handed to out-of-process
	// listeners when a dataset completes. It is never written to disk.
	Finished bool
}

// NewFinishedEntry returns the sentinel entry signalling end of dataset.
func NewFinishedEntry() *Entry {
	return &Entry{Finished: true}
}

// IsRGB reports whether the entry holds packed RGB pixels.
func (e *Entry) IsRGB() bool {
	return e.PixelType == EightBitRGB
}

// ByteDepth returns the on-disk bytes per sample (1 or 2).
func (e *Entry) ByteDepth() int {
	switch e.PixelType {
	case SixteenBit, FourteenBit, TwelveBit, ElevenBit, TenBit:
		return 2
	default:
		return 1
	}
}

// BitDepth returns the sample bit depth encoded by the pixel type.
func (e *Entry) BitDepth() (int, error) {
	switch e.PixelType {
	case EightBit, EightBitRGB:
		return 8, nil
	case TenBit:
		return 10, nil
	case ElevenBit:
		return 11, nil
	case TwelveBit:
		return 12, nil
	case FourteenBit:
		return 14, nil
	case SixteenBit:
		return 16, nil
	default:
		return 0, fmt.Errorf("unknown pixel type %d", e.PixelType)
	}
}

// PixelTypeFor maps a bit depth and RGB flag to the pixel type code.
func PixelTypeFor(bitDepth int, rgb bool) (uint32, error) {
	if rgb {
		if bitDepth > 8 {
			return 0, fmt.Errorf("%d-bit RGB is unsupported", bitDepth)
		}
		return EightBitRGB, nil
	}
	switch bitDepth {
	case 8:
		return EightBit, nil
	case 10:
		return TenBit, nil
	case 11:
		return ElevenBit, nil
	case 12:
		return TwelveBit, nil
	case 14:
		return FourteenBit, nil
	case 16:
		return SixteenBit, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
}

// PixelBytes returns the size of the on-disk pixel payload.
func (e *Entry) PixelBytes() int {
	if e.IsRGB() {
		return int(e.PixWidth) * int(e.PixHeight) * 3
	}
	return int(e.PixWidth) * int(e.PixHeight) * e.ByteDepth()
}

// EncodedLen returns the number of bytes Encode will produce.
func (e *Entry) EncodedLen() int {
	return 4 + len(e.AxesKey) + 4 + len(e.Filename) + 4*8
}

// Encode serialises the entry in the on-disk record layout: length-prefixed
// axes key and filename followed by eight 32-bit words, all in native byte
// order.
func (e *Entry) Encode() []byte {
	buf := make([]byte, e.EncodedLen())
	order := binpkg.NativeOrder
	pos := 0

	order.PutUint32(buf[pos:], uint32(len(e.AxesKey)))
	pos += 4
	copy(buf[pos:], e.AxesKey)
	pos += len(e.AxesKey)

	order.PutUint32(buf[pos:], uint32(len(e.Filename)))
	pos += 4
	copy(buf[pos:], e.Filename)
	pos += len(e.Filename)

	for _, v := range [...]uint32{
		e.PixOffset, e.PixWidth, e.PixHeight, e.PixelType,
		e.PixelCompression, e.MDOffset, e.MDLength, e.MDCompression,
	} {
		order.PutUint32(buf[pos:], v)
		pos += 4
	}
	return buf
}

// decode parses one entry from buf and returns it with the number of bytes
// consumed.
func decode(buf []byte) (*Entry, int, error) {
	order := binpkg.NativeOrder
	pos := 0

	need := func(n int) error {
		if len(buf)-pos < n {
			return io.ErrUnexpectedEOF
		}
		return nil
	}

	if err := need(4); err != nil {
		return nil, 0, err
	}
	keyLen := int(order.Uint32(buf[pos:]))
	pos += 4
	if err := need(keyLen); err != nil {
		return nil, 0, err
	}
	key := string(buf[pos : pos+keyLen])
	pos += keyLen

	if err := need(4); err != nil {
		return nil, 0, err
	}
	nameLen := int(order.Uint32(buf[pos:]))
	pos += 4
	if err := need(nameLen); err != nil {
		return nil, 0, err
	}
	name := string(buf[pos : pos+nameLen])
	pos += nameLen

	if err := need(4 * 8); err != nil {
		return nil, 0, err
	}
	words := make([]uint32, 8)
	for i := range words {
		words[i] = order.Uint32(buf[pos:])
		pos += 4
	}

	e := &Entry{
		AxesKey:          key,
		Filename:         name,
		PixOffset:        words[0],
		PixWidth:         words[1],
		PixHeight:        words[2],
		PixelType:        words[3],
		PixelCompression: words[4],
		MDOffset:         words[5],
		MDLength:         words[6],
		MDCompression:    words[7],
	}
	return e, pos, nil
}

// ReadLog reads all entries of an NDTiff.index file in write order.
func ReadLog(path string) ([]*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	var entries []*Entry
	pos := 0
	for pos < len(data) {
		e, n, err := decode(data[pos:])
		if err != nil {
			return nil, fmt.Errorf("corrupt index record at offset %d: %w", pos, err)
		}
		pos += n
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadMap reads an NDTiff.index file into a map keyed by axes key. Later
// records win, matching the append-only log semantics.
func ReadMap(path string) (map[string]*Entry, error) {
	entries, err := ReadLog(path)
	if err != nil {
		return nil, err
	}
	m := make(map[string]*Entry, len(entries))
	for _, e := range entries {
		m[e.AxesKey] = e
	}
	return m, nil
}
