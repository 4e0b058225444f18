package ndtiff

import (
	"encoding/json"

	"github.com/robert-malhotra/go-ndtiff/internal/index"
)

// Axes is one image's coordinate: a mapping from axis name to an int or
// string value. Each axis name is bound to one value kind at first use for
// the lifetime of a dataset.
type Axes map[string]interface{}

// TaggedImage pairs a pixel buffer with its per-image metadata.
//
// Pixel layout: 8-bit monochrome images are one byte per pixel; deeper
// monochrome images are two bytes per sample in native byte order; RGB
// images are packed four bytes per pixel (B, G, R, alpha), with alpha
// ignored on write and zeroed on read.
type TaggedImage struct {
	Pixels   []byte
	Metadata json.RawMessage
}

// EssentialMetadata is the handful of fields needed to interpret a pixel
// buffer, available without touching the container file.
type EssentialMetadata struct {
	Width    int
	Height   int
	BitDepth int
	RGB      bool
}

// ByteDepth returns the on-disk bytes per sample.
func (m EssentialMetadata) ByteDepth() int {
	if !m.RGB && m.BitDepth > 8 {
		return 2
	}
	return 1
}

// BytesPerPixel returns the in-memory bytes per pixel (4 for RGB).
func (m EssentialMetadata) BytesPerPixel() int {
	if m.RGB {
		return 4
	}
	return m.ByteDepth()
}

// IndexEntry is one record of the NDTiff.index file: the location and shape
// of a single image inside a container file.
type IndexEntry struct {
	AxesKey        string
	Filename       string
	PixelOffset    int64
	PixelWidth     int
	PixelHeight    int
	PixelType      int
	MetadataOffset int64
	MetadataLength int
}

func newIndexEntry(e *index.Entry) *IndexEntry {
	if e == nil {
		return nil
	}
	return &IndexEntry{
		AxesKey:        e.AxesKey,
		Filename:       e.Filename,
		PixelOffset:    int64(e.PixOffset),
		PixelWidth:     int(e.PixWidth),
		PixelHeight:    int(e.PixHeight),
		PixelType:      int(e.PixelType),
		MetadataOffset: int64(e.MDOffset),
		MetadataLength: int(e.MDLength),
	}
}

func essentialFromEntry(e *index.Entry) (EssentialMetadata, error) {
	bitDepth, err := e.BitDepth()
	if err != nil {
		return EssentialMetadata{}, err
	}
	return EssentialMetadata{
		Width:    int(e.PixWidth),
		Height:   int(e.PixHeight),
		BitDepth: bitDepth,
		RGB:      e.IsRGB(),
	}, nil
}
