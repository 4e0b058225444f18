package ndtiff

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-ndtiff/internal/bufpool"
	"github.com/robert-malhotra/go-ndtiff/internal/index"
	"github.com/robert-malhotra/go-ndtiff/internal/tiff"
)

// fileSet is the rolling container writer of one resolution level. When the
// active file runs out of space below the 4 GiB cap it is finished and a
// new "{base}_{k}.tif" is opened.
type fileSet struct {
	dir          string
	baseFilename string
	summaryMD    []byte
	pool         *bufpool.Pool
	log          zerolog.Logger
	maxFileSize  int64

	writers       []*tiff.Writer
	currentReader *tiff.Reader
	finished      bool
}

func baseFilename(prefix string) string {
	if prefix == "" {
		return "NDTiffStack"
	}
	return prefix + "_NDTiffStack"
}

func newFileSet(dir, prefix string, summaryMD []byte, pool *bufpool.Pool, log zerolog.Logger, maxFileSize int64) (*fileSet, error) {
	fs := &fileSet{
		dir:          dir,
		baseFilename: baseFilename(prefix),
		summaryMD:    summaryMD,
		pool:         pool,
		log:          log,
		maxFileSize:  maxFileSize,
	}
	if err := fs.rollover(); err != nil {
		return nil, err
	}
	return fs, nil
}

// rollover finishes the active file (if any) and opens the next one.
func (fs *fileSet) rollover() error {
	filename := fs.baseFilename + ".tif"
	if n := len(fs.writers); n > 0 {
		if err := fs.last().FinishedWriting(); err != nil {
			return err
		}
		filename = fmt.Sprintf("%s_%d.tif", fs.baseFilename, n)
		fs.log.Debug().Str("file", filename).Msg("rolling over to new container file")
	}
	w, err := tiff.NewWriter(fs.dir, filename, fs.summaryMD, fs.pool, fs.maxFileSize)
	if err != nil {
		return err
	}
	fs.writers = append(fs.writers, w)
	fs.currentReader = w.Reader()
	return nil
}

func (fs *fileSet) last() *tiff.Writer {
	return fs.writers[len(fs.writers)-1]
}

// reader returns a reader over the active container file.
func (fs *fileSet) reader() *tiff.Reader {
	return fs.currentReader
}

func (fs *fileSet) writeImage(axesKey string, pix, md []byte, rgb bool, imageHeight, imageWidth, bitDepth int) (*index.Entry, error) {
	if !fs.last().HasSpaceToWrite(len(pix), len(md), rgb) {
		if err := fs.rollover(); err != nil {
			return nil, err
		}
	}
	return fs.last().WriteImage(axesKey, pix, md, rgb, imageHeight, imageWidth, bitDepth)
}

// overwritePixels rewrites the stored pixels of axesKey in whichever file
// holds it.
func (fs *fileSet) overwritePixels(axesKey string, pix []byte, rgb bool) error {
	for _, w := range fs.writers {
		if w.Has(axesKey) {
			return w.OverwritePixels(axesKey, pix, rgb)
		}
	}
	return fmt.Errorf("no image %s in file set", axesKey)
}

// finish terminates the active file. Earlier files in the set were finished
// as they filled up.
func (fs *fileSet) finish() error {
	if fs.finished {
		return nil
	}
	fs.finished = true
	return fs.last().FinishedWriting()
}

// closeAll releases every container file handle in the set.
func (fs *fileSet) closeAll() error {
	var firstErr error
	for _, w := range fs.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
