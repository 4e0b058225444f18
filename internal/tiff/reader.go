package tiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	binpkg "github.com/robert-malhotra/go-ndtiff/internal/binary"
	"github.com/robert-malhotra/go-ndtiff/internal/index"
)

// ErrNotNDTiff is returned when a file fails the header magic checks.
var ErrNotNDTiff = errors.New("not an NDTiff container file")

// Reader serves positional pixel and metadata reads from one container
// file. It never walks IFDs; the caller supplies index entries.
type Reader struct {
	f         *os.File
	path      string
	order     binary.ByteOrder
	summaryMD []byte
	ownsFile  bool
}

// OpenReader opens an existing container file, verifies the extended header
// magics and reads the summary metadata.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening container file: %w", err)
	}
	r, err := newReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.ownsFile = true
	return r, nil
}

func newReader(f *os.File, path string) (*Reader, error) {
	br := binpkg.NewReader(f, binary.LittleEndian)
	mark, err := br.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("reading byte-order mark: %w", err)
	}
	var order binary.ByteOrder
	switch mark {
	case byteOrderLittle:
		order = binary.LittleEndian
	case byteOrderBig:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad byte-order mark 0x%04x", ErrNotNDTiff, mark)
	}
	br = br.WithOrder(order)

	magic, err := br.ReadUint16()
	if err != nil {
		return nil, err
	}
	if magic != tiffMagic {
		return nil, fmt.Errorf("%w: TIFF magic is %d", ErrNotNDTiff, magic)
	}
	br.Skip(4) // first IFD offset, unused: the index is authoritative

	discriminator, err := br.ReadUint32()
	if err != nil {
		return nil, err
	}
	if discriminator != ndTiffMagic {
		return nil, fmt.Errorf("%w: discriminator is %d", ErrNotNDTiff, discriminator)
	}
	br.Skip(8) // major and minor version

	mdMagic, err := br.ReadUint32()
	if err != nil {
		return nil, err
	}
	if mdMagic != summaryMDMagic {
		return nil, fmt.Errorf("%w: summary metadata magic is %d", ErrNotNDTiff, mdMagic)
	}
	mdLength, err := br.ReadUint32()
	if err != nil {
		return nil, err
	}
	summaryMD, err := br.ReadBytes(int(mdLength))
	if err != nil {
		return nil, fmt.Errorf("reading summary metadata: %w", err)
	}

	return &Reader{
		f:         f,
		path:      path,
		order:     order,
		summaryMD: summaryMD,
	}, nil
}

// SummaryMetadata returns the summary metadata bytes from the header.
func (r *Reader) SummaryMetadata() []byte {
	return r.summaryMD
}

// ReadImage reads the pixel and metadata payloads described by an index
// entry. RGB images come back expanded to 4 bytes per pixel (B, G, R, zero
// alpha), the same packed layout the writer accepts.
func (r *Reader) ReadImage(e *index.Entry) (pix, md []byte, err error) {
	onDisk := make([]byte, e.PixelBytes())
	if _, err := r.f.ReadAt(onDisk, int64(e.PixOffset)); err != nil {
		return nil, nil, fmt.Errorf("reading pixels at %d: %w", e.PixOffset, err)
	}
	md = make([]byte, e.MDLength)
	if _, err := r.f.ReadAt(md, int64(e.MDOffset)); err != nil {
		return nil, nil, fmt.Errorf("reading metadata at %d: %w", e.MDOffset, err)
	}
	if e.IsRGB() {
		pix = make([]byte, len(onDisk)/3*4)
		unpackRGB(pix, onDisk)
		return pix, md, nil
	}
	return onDisk, md, nil
}

// unpackRGB expands the 3-byte-per-pixel on-disk layout (R, G, B) into the
// in-memory packed layout (B, G, R, zero alpha).
func unpackRGB(dst, src []byte) {
	numPix := len(src) / 3
	for i := 0; i < numPix; i++ {
		dst[i*4] = src[i*3+2]
		dst[i*4+1] = src[i*3+1]
		dst[i*4+2] = src[i*3]
		dst[i*4+3] = 0
	}
}

// IsNDTiff reports whether the file at path carries the NDTiff header
// magics. Read errors count as "no".
func IsNDTiff(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = newReader(f, path)
	return err == nil
}

// Close releases the file handle if this reader owns it. Readers that share
// a writer's handle leave closing to the writer.
func (r *Reader) Close() error {
	if !r.ownsFile {
		return nil
	}
	return r.f.Close()
}
