// Package ndtiff provides disk-resident storage for N-dimensional image
// datasets: a TIFF-compatible container format with an out-of-band index
// for O(1) random access, a single-writer pipeline that keeps up with
// camera-rate acquisition, and an on-line resolution pyramid for stitched
// multi-tile datasets.
package ndtiff

import (
	"errors"

	"github.com/robert-malhotra/go-ndtiff/internal/tiff"
)

// Common errors
var (
	ErrNotNDTiff   = tiff.ErrNotNDTiff
	ErrFinished    = errors.New("dataset is finished")
	ErrAxisType    = errors.New("can't mix string and integer values along an axis")
	ErrUnsupported = errors.New("unsupported pixel format")
	ErrClosed      = errors.New("storage is closed")
	ErrDiskSpace   = tiff.ErrDiskSpace
	ErrReadOnly    = errors.New("dataset was loaded read-only")
)

// Reserved axis names addressing tiles in the XY grid of a tiled dataset.
const (
	RowAxis    = "row"
	ColumnAxis = "column"
)

// DefaultWritingQueueSize is the capacity of the bounded handoff queue
// between callers and the writer goroutine. Enqueueing blocks when the
// queue is full; this is the backpressure mechanism against cameras that
// stream faster than the disk can absorb.
const DefaultWritingQueueSize = 50
