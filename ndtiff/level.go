package ndtiff

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-ndtiff/internal/bufpool"
	"github.com/robert-malhotra/go-ndtiff/internal/index"
	"github.com/robert-malhotra/go-ndtiff/internal/tiff"
)

// levelDeps is the narrow capability surface a resolution level receives
// from its owner: the shared buffer pool, a debug sink and the container
// size cap. Levels never call back into the storage that owns them.
type levelDeps struct {
	pool        *bufpool.Pool
	log         zerolog.Logger
	maxFileSize int64
}

// pendingImage is an image accepted by the API but not yet flushed by the
// writer goroutine. Readers serve it from memory until the index entry
// exists.
type pendingImage struct {
	image     *TaggedImage
	essential EssentialMetadata
}

// resolutionLevel owns one directory of the dataset: the rolling container
// writer, one reader per rolled file, the index writer, and the live map
// from axes key to index entry.
type resolutionLevel struct {
	dir        string
	prefix     string
	newDataSet bool
	summaryMD  []byte
	deps       levelDeps

	mu           sync.RWMutex
	entriesByKey map[string]*index.Entry
	readersByKey map[string]*tiff.Reader
	pending      map[string]*pendingImage

	files       *fileSet
	indexWriter *index.Writer
	finished    bool

	firstImageWidth  int
	firstImageHeight int
}

// newResolutionLevel creates a writable level over dir.
func newResolutionLevel(dir, prefix string, summaryMD []byte, deps levelDeps) (*resolutionLevel, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating level directory: %w", err)
	}
	iw, err := index.NewWriter(dir)
	if err != nil {
		return nil, err
	}
	return &resolutionLevel{
		dir:          dir,
		prefix:       prefix,
		newDataSet:   true,
		summaryMD:    summaryMD,
		deps:         deps,
		entriesByKey: make(map[string]*index.Entry),
		readersByKey: make(map[string]*tiff.Reader),
		pending:      make(map[string]*pendingImage),
		indexWriter:  iw,
	}, nil
}

// openResolutionLevel loads an existing level read-only: the index log maps
// every axes key to a container file, and one reader opens per distinct
// file.
func openResolutionLevel(dir string, deps levelDeps) (*resolutionLevel, error) {
	entries, err := index.ReadLog(filepath.Join(dir, index.FileName))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}

	l := &resolutionLevel{
		dir:          dir,
		deps:         deps,
		entriesByKey: make(map[string]*index.Entry, len(entries)),
		readersByKey: make(map[string]*tiff.Reader, len(entries)),
		pending:      make(map[string]*pendingImage),
	}
	if len(entries) > 0 {
		l.firstImageWidth = int(entries[0].PixWidth)
		l.firstImageHeight = int(entries[0].PixHeight)
	}

	filenames := make(map[string]bool)
	for _, e := range entries {
		filenames[e.Filename] = true
	}

	var rmu sync.Mutex
	readersByFile := make(map[string]*tiff.Reader, len(filenames))
	var g errgroup.Group
	for name := range filenames {
		name := name
		g.Go(func() error {
			r, err := tiff.OpenReader(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			rmu.Lock()
			readersByFile[name] = r
			rmu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range readersByFile {
			r.Close()
		}
		return nil, err
	}

	for _, e := range entries {
		l.entriesByKey[e.AxesKey] = e
		l.readersByKey[e.AxesKey] = readersByFile[e.Filename]
	}
	for _, r := range readersByFile {
		l.summaryMD = r.SummaryMetadata()
		break
	}
	return l, nil
}

func (l *resolutionLevel) addWritePending(key string, img *TaggedImage, essential EssentialMetadata) {
	l.mu.Lock()
	l.pending[key] = &pendingImage{image: img, essential: essential}
	l.mu.Unlock()
}

func (l *resolutionLevel) removePending(key string) {
	l.mu.Lock()
	delete(l.pending, key)
	l.mu.Unlock()
}

func (l *resolutionLevel) hasImage(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.pending[key]; ok {
		return true
	}
	_, ok := l.entriesByKey[key]
	return ok
}

// getImage serves key from the write-pending table or from the container
// file that holds it. A nil image with nil error means the key is absent.
func (l *resolutionLevel) getImage(key string) (*TaggedImage, error) {
	l.mu.RLock()
	if p, ok := l.pending[key]; ok {
		l.mu.RUnlock()
		return p.image, nil
	}
	entry := l.entriesByKey[key]
	reader := l.readersByKey[key]
	l.mu.RUnlock()

	if entry == nil || reader == nil {
		return nil, nil
	}
	pix, md, err := reader.ReadImage(entry)
	if err != nil {
		return nil, err
	}
	return &TaggedImage{Pixels: pix, Metadata: md}, nil
}

func (l *resolutionLevel) essentialMetadata(key string) (EssentialMetadata, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.pending[key]; ok {
		return p.essential, true, nil
	}
	entry, ok := l.entriesByKey[key]
	if !ok {
		return EssentialMetadata{}, false, nil
	}
	md, err := essentialFromEntry(entry)
	if err != nil {
		return EssentialMetadata{}, false, err
	}
	return md, true, nil
}

func (l *resolutionLevel) entry(key string) *index.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entriesByKey[key]
}

// imageKeys returns a snapshot of the keys with committed images.
func (l *resolutionLevel) imageKeys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.entriesByKey))
	for k := range l.entriesByKey {
		keys = append(keys, k)
	}
	return keys
}

func (l *resolutionLevel) numImages() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entriesByKey)
}

// putImage writes one image, appends its index entry and publishes it to
// readers. Must be called on the writer goroutine.
func (l *resolutionLevel) putImage(key string, pix, md []byte, rgb bool, imageHeight, imageWidth, bitDepth int) (*index.Entry, error) {
	if !l.newDataSet {
		return nil, fmt.Errorf("%w: tried to write image to a finished data set", ErrFinished)
	}
	if l.files == nil {
		fs, err := newFileSet(l.dir, l.prefix, l.summaryMD, l.deps.pool, l.deps.log, l.deps.maxFileSize)
		if err != nil {
			return nil, err
		}
		l.files = fs
	}
	entry, err := l.files.writeImage(key, pix, md, rgb, imageHeight, imageWidth, bitDepth)
	if err != nil {
		return nil, err
	}
	if err := l.indexWriter.Add(entry); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.entriesByKey[key] = entry
	l.readersByKey[key] = l.files.reader()
	delete(l.pending, key)
	if l.firstImageWidth == 0 {
		l.firstImageWidth = imageWidth
		l.firstImageHeight = imageHeight
	}
	l.mu.Unlock()
	return entry, nil
}

// overwritePixels rewrites the pixels of an already-written image in place.
func (l *resolutionLevel) overwritePixels(key string, pix []byte, rgb bool) error {
	if l.files == nil {
		return fmt.Errorf("no image %s to overwrite", key)
	}
	return l.files.overwritePixels(key, pix, rgb)
}

// finish terminates the container files and the index, making the level
// read-only.
func (l *resolutionLevel) finish() error {
	if l.finished {
		return nil
	}
	l.finished = true
	l.newDataSet = false
	if l.files != nil {
		if err := l.files.finish(); err != nil {
			return err
		}
	}
	if l.indexWriter != nil {
		if err := l.indexWriter.Finish(); err != nil {
			return err
		}
	}
	return nil
}

// close releases every file handle the level holds.
func (l *resolutionLevel) close() error {
	var firstErr error
	if l.files != nil {
		firstErr = l.files.closeAll()
	}
	seen := make(map[*tiff.Reader]bool)
	l.mu.Lock()
	for _, r := range l.readersByKey {
		if r != nil && !seen[r] {
			seen[r] = true
			if err := r.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	l.readersByKey = make(map[string]*tiff.Reader)
	l.mu.Unlock()
	return firstErr
}

// dataSetSize sums the bytes on disk under the level directory.
func (l *resolutionLevel) dataSetSize() int64 {
	var size int64
	filepath.WalkDir(l.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
