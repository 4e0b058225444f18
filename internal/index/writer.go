package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
)

// FileName is the name of the index file inside a dataset directory.
const FileName = "NDTiff.index"

const (
	bytesPerMeg     = 1 << 20
	initialFileSize = 25 * bytesPerMeg
)

// Writer appends encoded entries to NDTiff.index through a memory-mapped
// region. The file is preallocated and grown in large steps so the hot path
// is a copy into mapped memory; Finish truncates to the bytes actually
// written.
type Writer struct {
	f    *os.File
	m    mmap.MMap
	pos  int
	size int
	done bool
}

// NewWriter creates NDTiff.index in dir, preallocates it and maps it for
// writing.
func NewWriter(dir string) (*Writer, error) {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating index file: %w", err)
	}
	if err := f.Truncate(initialFileSize); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("preallocating index file: %w", err)
	}
	m, err := mmap.MapRegion(f, initialFileSize, mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("mapping index file: %w", err)
	}
	return &Writer{f: f, m: m, size: initialFileSize}, nil
}

// Add appends one entry to the log.
func (w *Writer) Add(e *Entry) error {
	if w.done {
		return fmt.Errorf("index writer is finished")
	}
	rec := e.Encode()
	if w.pos+len(rec) > w.size {
		if err := w.grow(w.pos + len(rec)); err != nil {
			return err
		}
	}
	copy(w.m[w.pos:], rec)
	w.pos += len(rec)
	return nil
}

// grow remaps the file at double the current size (or more if a single
// record demands it).
func (w *Writer) grow(need int) error {
	newSize := w.size * 2
	for newSize < need {
		newSize *= 2
	}
	if err := w.m.Unmap(); err != nil {
		return fmt.Errorf("unmapping index file: %w", err)
	}
	if err := w.f.Truncate(int64(newSize)); err != nil {
		return fmt.Errorf("growing index file: %w", err)
	}
	m, err := mmap.MapRegion(w.f, newSize, mmap.RDWR, 0, 0)
	if err != nil {
		return fmt.Errorf("remapping index file: %w", err)
	}
	w.m = m
	w.size = newSize
	return nil
}

// Pos returns the number of bytes written so far.
func (w *Writer) Pos() int {
	return w.pos
}

// Finish flushes the mapped region, truncates the file to the written length
// and closes it.
func (w *Writer) Finish() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.m.Flush(); err != nil {
		return fmt.Errorf("flushing index file: %w", err)
	}
	if err := w.m.Unmap(); err != nil {
		return fmt.Errorf("unmapping index file: %w", err)
	}
	if err := w.f.Truncate(int64(w.pos)); err != nil {
		return fmt.Errorf("truncating index file: %w", err)
	}
	return w.f.Close()
}
