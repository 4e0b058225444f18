package tiff

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	binpkg "github.com/robert-malhotra/go-ndtiff/internal/binary"
	"github.com/robert-malhotra/go-ndtiff/internal/bufpool"
	"github.com/robert-malhotra/go-ndtiff/internal/index"
)

// ErrDiskSpace is returned when the container file cannot be preallocated.
var ErrDiskSpace = errors.New("insufficient space on disk")

// Writer appends images to one container file until it runs out of space
// below the 4 GiB TIFF limit. Records are appended sequentially at a tracked
// position; the only writes behind it are OverwritePixels rewriting an
// existing pixel payload and zeroing the final next-IFD pointer when the
// file is finished.
type Writer struct {
	f        *os.File
	filename string // basename recorded in index entries
	pool     *bufpool.Pool
	bw       *binpkg.Writer

	entries map[string]*index.Entry

	nextIFDOffsetLoc int64
	resNumerator     uint32
	resDenominator   uint32
	maxFileSize      int64
	bytesWritten     int64
	finished         bool

	summaryMD []byte
}

// NewWriter creates the container file dir/filename, preallocates it to
// maxFileSize (the 4 GiB default when maxFileSize <= 0) and writes the
// extended header plus summary metadata.
func NewWriter(dir, filename string, summaryMD []byte, pool *bufpool.Pool, maxFileSize int64) (*Writer, error) {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	path := filepath.Join(dir, filename)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating container file: %w", err)
	}
	if err := f.Truncate(maxFileSize); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: preallocating container file: %v", ErrDiskSpace, err)
	}

	w := &Writer{
		f:                f,
		filename:         filename,
		pool:             pool,
		bw:               binpkg.NewWriter(f, binpkg.NativeOrder),
		entries:          make(map[string]*index.Entry),
		nextIFDOffsetLoc: -1,
		maxFileSize:      maxFileSize,
		summaryMD:        summaryMD,
	}
	w.resNumerator, w.resDenominator = resolutionFromSummaryMD(summaryMD)

	if err := w.writeHeaderAndSummaryMD(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

// resolutionFromSummaryMD derives the TIFF resolution rational from an
// optional PixelSizeUm (or PixelSize_um) summary key, in pixels per
// centimetre. Without the key the resolution defaults to 10000 px/cm.
func resolutionFromSummaryMD(summaryMD []byte) (num, den uint32) {
	var md struct {
		PixelSizeUm  *float64 `json:"PixelSizeUm"`
		PixelSizeUm2 *float64 `json:"PixelSize_um"`
	}
	cmPerPixel := 0.0001
	if err := json.Unmarshal(summaryMD, &md); err == nil {
		if md.PixelSizeUm != nil && *md.PixelSizeUm > 0 {
			cmPerPixel = 0.0001 * *md.PixelSizeUm
		} else if md.PixelSizeUm2 != nil && *md.PixelSizeUm2 > 0 {
			cmPerPixel = 0.0001 * *md.PixelSizeUm2
		}
	}
	if math.Log10(cmPerPixel) >= 0 {
		return 1, uint32(cmPerPixel)
	}
	return uint32(1 / cmPerPixel), 1
}

func (w *Writer) writeHeaderAndSummaryMD() error {
	mdLength := len(w.summaryMD)
	firstIFDOffset := headerSize + mdLength
	if firstIFDOffset%2 == 1 {
		firstIFDOffset++ // first IFD starts on a word
	}

	header := binpkg.NewBlock(w.pool.GetSmall(headerSize), binpkg.NativeOrder)
	if binpkg.IsBigEndian() {
		header.PutUint16(0, byteOrderBig)
	} else {
		header.PutUint16(0, byteOrderLittle)
	}
	header.PutUint16(2, tiffMagic)
	header.PutUint32(4, uint32(firstIFDOffset))
	header.PutUint32(8, ndTiffMagic)
	header.PutUint32(12, MajorVersion)
	header.PutUint32(16, MinorVersion)
	header.PutUint32(20, summaryMDMagic)
	header.PutUint32(24, uint32(mdLength))

	if err := w.bw.WriteBytes(header.Bytes()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := w.bw.WriteBytes(w.summaryMD); err != nil {
		return fmt.Errorf("writing summary metadata: %w", err)
	}
	return nil
}

// Filename returns the basename of the container file.
func (w *Writer) Filename() string {
	return w.filename
}

// Entries returns the live map of index entries written to this file.
func (w *Writer) Entries() map[string]*index.Entry {
	return w.entries
}

// IsFinished reports whether FinishedWriting has run.
func (w *Writer) IsFinished() bool {
	return w.finished
}

// pixelPayloadBytes is the on-disk size of a pixel buffer: packed 4-byte
// RGB input is stored as 3 bytes per pixel.
func pixelPayloadBytes(pixLen int, rgb bool) int {
	if rgb {
		return pixLen / 4 * 3
	}
	return pixLen
}

// HasSpaceToWrite reports whether an image with the given pixel and
// metadata byte counts fits below the file size cap, including IFD overhead
// and safety padding.
func (w *Writer) HasSpaceToWrite(pixLen, mdLen int, rgb bool) bool {
	ifdSize := int64(entriesPerIFD*12 + 4 + 16)
	size := w.bw.Pos() + int64(mdLen) + ifdSize + int64(pixelPayloadBytes(pixLen, rgb)) + extraPadding
	return size < w.maxFileSize
}

// WriteImage appends one IFD + pixel + metadata record and returns its
// index entry. The caller must have checked HasSpaceToWrite.
func (w *Writer) WriteImage(axesKey string, pix, md []byte, rgb bool, imageHeight, imageWidth, bitDepth int) (*index.Entry, error) {
	if w.finished {
		return nil, fmt.Errorf("write to finished container file")
	}
	pixelType, err := index.PixelTypeFor(bitDepth, rgb)
	if err != nil {
		return nil, err
	}
	byteDepth := 1
	if !rgb && bitDepth > 8 {
		byteDepth = 2
	}
	wantLen := imageWidth * imageHeight * byteDepth
	if rgb {
		wantLen = imageWidth * imageHeight * 4
	}
	if len(pix) != wantLen {
		return nil, fmt.Errorf("pixel buffer is %d bytes, want %d for %dx%d depth %d", len(pix), wantLen, imageWidth, imageHeight, bitDepth)
	}

	w.bw.Align(2)
	pixBytes := pixelPayloadBytes(len(pix), rgb)

	bitsPerSampleExtra := 0
	if rgb {
		bitsPerSampleExtra = 6
	}
	blockSize := 2 + entriesPerIFD*12 + 4 + bitsPerSampleExtra + 16

	w.nextIFDOffsetLoc = w.bw.Pos() + 2 + entriesPerIFD*12
	bitsPerSampleOffset := w.nextIFDOffsetLoc + 4
	xResolutionOffset := bitsPerSampleOffset + int64(bitsPerSampleExtra)
	yResolutionOffset := xResolutionOffset + 8
	pixelDataOffset := yResolutionOffset + 8
	metadataOffset := pixelDataOffset + int64(pixBytes)
	nextIFDOffset := metadataOffset + int64(len(md))
	if nextIFDOffset%2 == 1 {
		nextIFDOffset++
	}

	block := binpkg.NewBlock(w.pool.GetSmall(blockSize), binpkg.NativeOrder)
	block.PutUint16(0, entriesPerIFD)
	pos := 2

	putEntry := func(tag, typ uint16, count, value uint32) {
		block.PutUint16(pos, tag)
		block.PutUint16(pos+2, typ)
		block.PutUint32(pos+4, count)
		if typ == typeShort && count == 1 {
			// left-justify a lone SHORT in the 4-byte value field
			block.PutUint16(pos+8, uint16(value))
			block.PutUint16(pos+10, 0)
		} else {
			block.PutUint32(pos+8, value)
		}
		pos += 12
	}

	samples := uint32(1)
	photometric := uint32(1)
	bitsPerSampleValue := uint32(byteDepth * 8)
	bitsPerSampleCount := uint32(1)
	if rgb {
		samples = 3
		photometric = 2
		bitsPerSampleValue = uint32(bitsPerSampleOffset)
		bitsPerSampleCount = 3
	}

	putEntry(tagWidth, typeLong, 1, uint32(imageWidth))
	putEntry(tagHeight, typeLong, 1, uint32(imageHeight))
	putEntry(tagBitsPerSample, typeShort, bitsPerSampleCount, bitsPerSampleValue)
	putEntry(tagCompression, typeShort, 1, 1)
	putEntry(tagPhotometricInterpretation, typeShort, 1, photometric)
	putEntry(tagStripOffsets, typeLong, 1, uint32(pixelDataOffset))
	putEntry(tagSamplesPerPixel, typeShort, 1, samples)
	putEntry(tagRowsPerStrip, typeShort, 1, uint32(imageHeight))
	putEntry(tagStripByteCounts, typeLong, 1, uint32(pixBytes))
	putEntry(tagXResolution, typeRational, 1, uint32(xResolutionOffset))
	putEntry(tagYResolution, typeRational, 1, uint32(yResolutionOffset))
	putEntry(tagResolutionUnit, typeShort, 1, 3) // centimetre
	putEntry(tagMicroManagerMetadata, typeASCII, uint32(len(md)), uint32(metadataOffset))

	block.PutUint32(pos, uint32(nextIFDOffset))
	pos += 4

	if rgb {
		block.PutUint16(pos, uint16(byteDepth*8))
		block.PutUint16(pos+2, uint16(byteDepth*8))
		block.PutUint16(pos+4, uint16(byteDepth*8))
		pos += 6
	}

	block.PutUint32(pos, w.resNumerator)
	block.PutUint32(pos+4, w.resDenominator)
	block.PutUint32(pos+8, w.resNumerator)
	block.PutUint32(pos+12, w.resDenominator)

	if err := w.bw.WriteBytes(block.Bytes()); err != nil {
		return nil, fmt.Errorf("writing IFD: %w", err)
	}

	if rgb {
		packed := w.pool.GetLarge(pixBytes)
		packRGB(packed, pix)
		err = w.bw.WriteBytes(packed)
		w.pool.TryRecycle(packed)
	} else {
		err = w.bw.WriteBytes(pix)
	}
	if err != nil {
		return nil, fmt.Errorf("writing pixels: %w", err)
	}
	if err := w.bw.WriteBytes(md); err != nil {
		return nil, fmt.Errorf("writing metadata: %w", err)
	}
	w.bytesWritten = w.bw.Pos()

	entry := &index.Entry{
		AxesKey:   axesKey,
		Filename:  w.filename,
		PixOffset: uint32(pixelDataOffset),
		PixWidth:  uint32(imageWidth),
		PixHeight: uint32(imageHeight),
		PixelType: pixelType,
		MDOffset:  uint32(metadataOffset),
		MDLength:  uint32(len(md)),
	}
	w.entries[axesKey] = entry
	return entry, nil
}

// packRGB converts a packed 4-byte-per-pixel buffer (B, G, R, A) into the
// 3-byte-per-pixel on-disk layout (R, G, B).
func packRGB(dst, src []byte) {
	numPix := len(src) / 4
	for i := 0; i < numPix; i++ {
		dst[i*3] = src[i*4+2]
		dst[i*3+1] = src[i*4+1]
		dst[i*3+2] = src[i*4]
	}
}

// OverwritePixels rewrites the pixel payload of an already-written image in
// place. Metadata and TIFF tags are untouched; the pyramid uses this to
// accumulate contributions into a downsampled tile.
func (w *Writer) OverwritePixels(axesKey string, pix []byte, rgb bool) error {
	entry, ok := w.entries[axesKey]
	if !ok {
		return fmt.Errorf("no image %s in %s", axesKey, w.filename)
	}
	var payload []byte
	if rgb {
		payload = w.pool.GetLarge(pixelPayloadBytes(len(pix), rgb))
		packRGB(payload, pix)
		defer w.pool.TryRecycle(payload)
	} else {
		payload = pix
	}
	if _, err := w.f.WriteAt(payload, int64(entry.PixOffset)); err != nil {
		return fmt.Errorf("overwriting pixels: %w", err)
	}
	return nil
}

// Has reports whether this file holds the given axes key.
func (w *Writer) Has(axesKey string) bool {
	_, ok := w.entries[axesKey]
	return ok
}

// FinishedWriting zeroes the next-IFD pointer of the last record, truncates
// the file to its used length and syncs it. The file handle stays open for
// the Reader that shares it.
func (w *Writer) FinishedWriting() error {
	if w.finished {
		return nil
	}
	w.finished = true
	if w.nextIFDOffsetLoc >= 0 {
		if err := w.bw.At(w.nextIFDOffsetLoc).WriteUint32(0); err != nil {
			return fmt.Errorf("terminating IFD chain: %w", err)
		}
	}
	if err := w.f.Truncate(w.bw.Pos()); err != nil {
		return fmt.Errorf("truncating container file: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("syncing container file: %w", err)
	}
	return nil
}

// BytesWritten returns the file position after the last written image,
// counting the header and IFDs as well as pixel and metadata payloads.
func (w *Writer) BytesWritten() int64 {
	return w.bytesWritten
}

// Reader returns a reader over this writer's file handle, for serving reads
// while the file is still being written. Callers supply the index entries.
func (w *Writer) Reader() *Reader {
	return &Reader{
		f:         w.f,
		path:      w.filename,
		order:     binpkg.NativeOrder,
		summaryMD: w.summaryMD,
		ownsFile:  false,
	}
}

// Close closes the underlying file handle.
func (w *Writer) Close() error {
	return w.f.Close()
}
