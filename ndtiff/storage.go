package ndtiff

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-ndtiff/internal/axes"
	"github.com/robert-malhotra/go-ndtiff/internal/bufpool"
	"github.com/robert-malhotra/go-ndtiff/internal/index"
	"github.com/robert-malhotra/go-ndtiff/internal/tiff"
)

const (
	fullResDirName      = "Full resolution"
	downsampleDirPrefix = "Downsampled_x"
)

// Format version of newly written datasets.
const (
	MajorVersion = tiff.MajorVersion
	MinorVersion = tiff.MinorVersion
)

type axisKind int

const (
	axisInt axisKind = iota
	axisString
)

type writeTask struct {
	run func() (*index.Entry, error)
	fut *Future
}

// Storage manages one NDTiff dataset: a full-resolution level plus, for
// tiled datasets, a pyramid of downsampled levels. A dataset is either
// created writable or loaded read-only.
//
// All mutations happen serially on one writer goroutine, fed through a
// bounded queue; reads are served concurrently from the in-memory index
// maps and positional file reads.
type Storage struct {
	directory     string
	prefix        string
	uniqueAcqName string
	summaryMD     []byte
	tiled         bool
	loaded        bool
	majorVersion  int

	xOverlap int
	yOverlap int

	log  zerolog.Logger
	pool *bufpool.Pool

	mu                sync.RWMutex
	fullRes           *resolutionLevel
	lowRes            map[int]*resolutionLevel
	maxResLevel       int
	axisTypes         map[string]axisKind
	imageAxes         map[string]Axes
	displaySettings   []byte
	firstImageAdded   bool
	fullResTileWidth  int // including overlap
	fullResTileHeight int
	tileWidth         int
	tileHeight        int
	finished          bool
	closed            bool
	writingErr        error

	maxFileSize int64
	queue       chan writeTask
	closeQueue  sync.Once
	wg          sync.WaitGroup
	startTime   time.Time
	queueCap    int
}

// Create makes a new writable dataset under dir. The summary metadata is
// written verbatim into every container file's header, annotated with the
// engine's reserved keys.
func Create(dir, prefix string, summaryMetadata []byte, opts ...Option) (*Storage, error) {
	o := defaultStorageOptions()
	for _, opt := range opts {
		opt(o)
	}

	summaryMD, err := annotateSummaryMD(summaryMetadata, o.xOverlap, o.yOverlap, o.tiled)
	if err != nil {
		return nil, err
	}

	directory := dir
	uniqueAcqName := ""
	if o.uniqueDir {
		uniqueAcqName, err = uniqueAcqDirName(dir, prefix)
		if err != nil {
			return nil, err
		}
		directory = filepath.Join(dir, uniqueAcqName)
	}

	s := &Storage{
		directory:         directory,
		prefix:            prefix,
		uniqueAcqName:     uniqueAcqName,
		summaryMD:         summaryMD,
		tiled:             o.tiled,
		majorVersion:      MajorVersion,
		xOverlap:          o.xOverlap,
		yOverlap:          o.yOverlap,
		log:               o.logger,
		pool:              bufpool.New(o.poolConfig),
		lowRes:            make(map[int]*resolutionLevel),
		maxResLevel:       o.maxResLevel,
		axisTypes:         make(map[string]axisKind),
		imageAxes:         make(map[string]Axes),
		fullResTileWidth:  -1,
		fullResTileHeight: -1,
		tileWidth:         -1,
		tileHeight:        -1,
		maxFileSize:       o.maxFileSize,
		queue:             make(chan writeTask, o.queueSize),
		queueCap:          o.queueSize,
		startTime:         time.Now(),
	}

	fullResDir := directory
	if o.tiled {
		fullResDir = filepath.Join(directory, fullResDirName)
	}
	if err := os.MkdirAll(fullResDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dataset directory: %w", err)
	}
	fullRes, err := newResolutionLevel(fullResDir, prefix, summaryMD, s.levelDeps())
	if err != nil {
		return nil, err
	}
	s.fullRes = fullRes

	s.wg.Add(1)
	go s.writeLoop()
	s.log.Debug().Str("dir", directory).Bool("tiled", o.tiled).Msg("created dataset")
	return s, nil
}

// Open loads an existing dataset read-only. It accepts both the v2 layout
// (full-resolution data under "Full resolution/") and the v3 layout
// (non-tiled data at the top level), and tolerates being pointed at the
// "Full resolution" directory itself.
func Open(dir string, opts ...Option) (*Storage, error) {
	o := defaultStorageOptions()
	for _, opt := range opts {
		opt(o)
	}

	if filepath.Base(dir) == fullResDirName {
		dir = filepath.Dir(dir)
	}

	s := &Storage{
		directory:         dir,
		loaded:            true,
		finished:          true,
		log:               o.logger,
		pool:              bufpool.New(o.poolConfig),
		lowRes:            make(map[int]*resolutionLevel),
		axisTypes:         make(map[string]axisKind),
		imageAxes:         make(map[string]Axes),
		fullResTileWidth:  -1,
		fullResTileHeight: -1,
		tileWidth:         -1,
		tileHeight:        -1,
	}

	fullResDir := filepath.Join(dir, fullResDirName)
	s.majorVersion = 2
	if _, err := os.Stat(fullResDir); os.IsNotExist(err) {
		// v3 layout without a multi-resolution pyramid
		fullResDir = dir
		s.majorVersion = 3
	}

	fullRes, err := openResolutionLevel(fullResDir, s.levelDeps())
	if err != nil {
		return nil, err
	}
	s.fullRes = fullRes
	s.summaryMD = fullRes.summaryMD
	s.tiled = tiledFromSummaryMD(s.summaryMD)

	for _, key := range fullRes.imageKeys() {
		ax, err := axes.Deserialize([]byte(key))
		if err != nil {
			fullRes.close()
			return nil, err
		}
		s.imageAxes[key] = Axes(ax)
	}

	s.fullResTileWidth = fullRes.firstImageWidth
	s.fullResTileHeight = fullRes.firstImageHeight
	if s.tiled {
		s.xOverlap, s.yOverlap = overlapFromSummaryMD(s.summaryMD)
		s.tileWidth = s.fullResTileWidth - s.xOverlap
		s.tileHeight = s.fullResTileHeight - s.yOverlap

		for resIndex := 1; ; resIndex++ {
			dsDir := filepath.Join(dir, downsampleDirName(resIndex))
			if _, err := os.Stat(dsDir); os.IsNotExist(err) {
				break
			}
			level, err := openResolutionLevel(dsDir, s.levelDeps())
			if err != nil {
				s.closeLevels()
				return nil, err
			}
			s.lowRes[resIndex] = level
			s.maxResLevel = resIndex
		}
	} else {
		s.tileWidth = s.fullResTileWidth
		s.tileHeight = s.fullResTileHeight
	}

	s.displaySettings = readDisplaySettings(dir)
	return s, nil
}

func (s *Storage) levelDeps() levelDeps {
	return levelDeps{pool: s.pool, log: s.log, maxFileSize: s.maxFileSize}
}

func downsampleDirName(resIndex int) string {
	return downsampleDirPrefix + strconv.Itoa(1<<resIndex)
}

// writeLoop is the writer goroutine: it executes queued tasks serially,
// giving a total order on all mutations.
func (s *Storage) writeLoop() {
	defer s.wg.Done()
	for t := range s.queue {
		entry, err := t.run()
		if err != nil {
			s.recordWritingErr(err)
		}
		if t.fut != nil {
			t.fut.resolve(entry, err)
		}
	}
}

func (s *Storage) recordWritingErr(err error) {
	s.mu.Lock()
	if s.writingErr == nil {
		s.writingErr = err
	}
	s.mu.Unlock()
}

// CheckForWritingError returns the first error recorded by the writer
// goroutine. Once set, every subsequent put fails fast with it.
func (s *Storage) CheckForWritingError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writingErr
}

// enqueue hands a task to the writer goroutine, blocking while the bounded
// queue is full.
func (s *Storage) enqueue(fut *Future, run func() (*index.Entry, error)) *Future {
	s.queue <- writeTask{run: run, fut: fut}
	return fut
}

// validateAxes normalizes the coordinate and enforces that each axis name
// keeps a single value kind for the dataset's lifetime.
func (s *Storage) validateAxes(ax Axes, requireRowCol bool) (axes.Map, error) {
	norm := make(axes.Map, len(ax))
	for name, v := range ax {
		nv, err := axes.NormalizeValue(name, v)
		if err != nil {
			return nil, err
		}
		norm[name] = nv
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, v := range norm {
		kind := axisInt
		if _, isString := v.(string); isString {
			kind = axisString
		}
		bound, ok := s.axisTypes[name]
		if !ok {
			s.axisTypes[name] = kind
			continue
		}
		if bound != kind {
			return nil, fmt.Errorf("%w: axis %q", ErrAxisType, name)
		}
	}
	if requireRowCol {
		if _, ok := norm[RowAxis].(int); !ok {
			return nil, fmt.Errorf("tiled write needs integer %q axis", RowAxis)
		}
		if _, ok := norm[ColumnAxis].(int); !ok {
			return nil, fmt.Errorf("tiled write needs integer %q axis", ColumnAxis)
		}
	}
	return norm, nil
}

// latchFirstImageDims records the tile geometry from the first image.
// Tiled datasets require uniform dimensions across every image.
func (s *Storage) latchFirstImageDims(imageWidth, imageHeight int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstImageAdded {
		return
	}
	s.firstImageAdded = true
	s.fullResTileWidth = imageWidth
	s.fullResTileHeight = imageHeight
	s.tileWidth = imageWidth - s.xOverlap
	s.tileHeight = imageHeight - s.yOverlap
}

func (s *Storage) preparePut(ax Axes, pixels []byte, rgb bool, bitDepth, imageHeight, imageWidth int, requireRowCol bool) (string, error) {
	if err := s.CheckForWritingError(); err != nil {
		return "", err
	}
	s.mu.RLock()
	finished, loaded := s.finished, s.loaded
	s.mu.RUnlock()
	if loaded {
		return "", ErrReadOnly
	}
	if finished {
		return "", ErrFinished
	}
	if rgb && bitDepth > 8 {
		return "", fmt.Errorf("%w: %d-bit RGB", ErrUnsupported, bitDepth)
	}

	norm, err := s.validateAxes(ax, requireRowCol)
	if err != nil {
		return "", err
	}
	key, err := axes.Key(norm)
	if err != nil {
		return "", err
	}
	s.latchFirstImageDims(imageWidth, imageHeight)
	return key, nil
}

// PutImage asynchronously writes one image at the given coordinate and
// returns a future resolved with its index entry. This is the non-tiled
// path; tiled datasets use PutImageMultiRes so the pyramid stays current.
func (s *Storage) PutImage(ax Axes, pixels []byte, metadata []byte, rgb bool, bitDepth, imageHeight, imageWidth int) *Future {
	key, err := s.preparePut(ax, pixels, rgb, bitDepth, imageHeight, imageWidth, false)
	if err != nil {
		return rejectedFuture(err)
	}

	img := &TaggedImage{Pixels: pixels, Metadata: metadata}
	essential := EssentialMetadata{Width: imageWidth, Height: imageHeight, BitDepth: bitDepth, RGB: rgb}
	s.fullRes.addWritePending(key, img, essential)

	s.log.Debug().Str("axes", key).Int("queued", len(s.queue)).Msg("adding image")
	return s.enqueue(newFuture(), func() (*index.Entry, error) {
		s.recordImageAxes(key, ax)
		return s.fullRes.putImage(key, pixels, metadata, rgb, imageHeight, imageWidth, bitDepth)
	})
}

// PutImageMultiRes writes one tile and, for tiled datasets, fans it out
// through every level of the resolution pyramid. The coordinate must carry
// the reserved row and column axes.
func (s *Storage) PutImageMultiRes(ax Axes, pixels []byte, metadata []byte, rgb bool, bitDepth, imageHeight, imageWidth int) *Future {
	key, err := s.preparePut(ax, pixels, rgb, bitDepth, imageHeight, imageWidth, s.tiled)
	if err != nil {
		return rejectedFuture(err)
	}

	img := &TaggedImage{Pixels: pixels, Metadata: metadata}
	essential := EssentialMetadata{Width: imageWidth, Height: imageHeight, BitDepth: bitDepth, RGB: rgb}
	s.fullRes.addWritePending(key, img, essential)

	return s.enqueue(newFuture(), func() (*index.Entry, error) {
		s.recordImageAxes(key, ax)
		// full resolution keeps its overlap pixels; they are trimmed on
		// the way down the pyramid
		entry, err := s.fullRes.putImage(key, pixels, metadata, rgb, imageHeight, imageWidth, bitDepth)
		if err != nil {
			return nil, err
		}
		if s.tiled {
			row, _ := intAxis(ax, RowAxis)
			col, _ := intAxis(ax, ColumnAxis)
			if err := s.addToLowResStorage(img, ax, 0, row, col, rgb, bitDepth); err != nil {
				return nil, err
			}
		}
		return entry, nil
	})
}

func (s *Storage) recordImageAxes(key string, ax Axes) {
	s.mu.Lock()
	s.imageAxes[key] = ax
	s.mu.Unlock()
}

// level returns the resolution level at the given pyramid index, or nil.
func (s *Storage) level(resIndex int) *resolutionLevel {
	if resIndex == 0 {
		return s.fullRes
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lowRes[resIndex]
}

// GetImage returns the image at the given coordinate and pyramid level, or
// nil if no image is present there.
func (s *Storage) GetImage(ax Axes, resIndex int) (*TaggedImage, error) {
	key, err := axes.Key(axes.Map(ax))
	if err != nil {
		return nil, err
	}
	l := s.level(resIndex)
	if l == nil {
		return nil, nil
	}
	return l.getImage(key)
}

// HasImage reports whether an image exists at the coordinate and level.
func (s *Storage) HasImage(ax Axes, resIndex int) bool {
	key, err := axes.Key(axes.Map(ax))
	if err != nil {
		return false
	}
	l := s.level(resIndex)
	return l != nil && l.hasImage(key)
}

// GetEssentialMetadata returns the width, height, bit depth and RGB flag of
// the image at the coordinate and level, without touching the container
// file.
func (s *Storage) GetEssentialMetadata(ax Axes, resIndex int) (EssentialMetadata, bool, error) {
	key, err := axes.Key(axes.Map(ax))
	if err != nil {
		return EssentialMetadata{}, false, err
	}
	l := s.level(resIndex)
	if l == nil {
		return EssentialMetadata{}, false, nil
	}
	return l.essentialMetadata(key)
}

// IndexEntry returns the index record for a coordinate at a level, or nil.
func (s *Storage) IndexEntry(ax Axes, resIndex int) (*IndexEntry, error) {
	key, err := axes.Key(axes.Map(ax))
	if err != nil {
		return nil, err
	}
	l := s.level(resIndex)
	if l == nil {
		return nil, nil
	}
	return newIndexEntry(l.entry(key)), nil
}

// FinishedWriting drains the queue, writes the terminating zero IFD
// pointers, truncates every file to its used length and writes the display
// settings. After it returns, every earlier put future has resolved and the
// dataset reopens cleanly.
func (s *Storage) FinishedWriting() error {
	if s.loaded {
		return nil
	}
	s.mu.RLock()
	alreadyFinished := s.finished
	s.mu.RUnlock()
	if alreadyFinished {
		return nil
	}

	fut := s.enqueue(newFuture(), func() (*index.Entry, error) {
		s.log.Debug().Int("queued", len(s.queue)).Msg("finishing dataset")
		if err := s.fullRes.finish(); err != nil {
			return nil, err
		}
		s.mu.RLock()
		levels := make([]*resolutionLevel, 0, len(s.lowRes))
		for _, l := range s.lowRes {
			levels = append(levels, l)
		}
		displaySettings := s.displaySettings
		s.mu.RUnlock()
		for _, l := range levels {
			if err := l.finish(); err != nil {
				return nil, err
			}
		}
		if displaySettings != nil {
			if err := writeDisplaySettings(s.directory, displaySettings); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	_, err := fut.Get()

	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()

	elapsed := time.Since(s.startTime)
	if elapsed > 0 {
		s.log.Debug().
			Int64("bytes", s.DatasetSize()).
			Dur("elapsed", elapsed).
			Float64("gb_per_s", float64(s.DatasetSize())/elapsed.Seconds()/(1<<30)).
			Msg("finished writing")
	}
	return err
}

// IsFinished reports whether the dataset has been finished.
func (s *Storage) IsFinished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finished
}

// Close releases every file handle. For a writable dataset,
// FinishedWriting must have been called first for the files on disk to be
// well formed.
func (s *Storage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if !s.loaded {
		s.closeQueue.Do(func() { close(s.queue) })
		s.wg.Wait()
	}
	return s.closeLevels()
}

func (s *Storage) closeLevels() error {
	var firstErr error
	if s.fullRes != nil {
		firstErr = s.fullRes.close()
	}
	s.mu.RLock()
	levels := make([]*resolutionLevel, 0, len(s.lowRes))
	for _, l := range s.lowRes {
		levels = append(levels, l)
	}
	s.mu.RUnlock()
	for _, l := range levels {
		if err := l.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SummaryMetadata returns the annotated summary metadata.
func (s *Storage) SummaryMetadata() []byte {
	return s.summaryMD
}

// DisplaySettings returns the display settings blob, if any.
func (s *Storage) DisplaySettings() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displaySettings
}

// SetDisplaySettings records the opaque display settings blob written to
// display_settings.txt when the dataset finishes.
func (s *Storage) SetDisplaySettings(settings []byte) {
	s.mu.Lock()
	s.displaySettings = append([]byte(nil), settings...)
	s.mu.Unlock()
}

// DiskLocation returns the dataset directory.
func (s *Storage) DiskLocation() string {
	return s.directory
}

// UniqueAcqName returns the directory name allocated by
// WithUniqueDirectory, if any.
func (s *Storage) UniqueAcqName() string {
	return s.uniqueAcqName
}

// IsTiled reports whether images are tiles on an XY grid.
func (s *Storage) IsTiled() bool {
	return s.tiled
}

// MajorVersionDetected returns the format major version: the written
// version for created datasets, the detected layout version for loaded
// ones.
func (s *Storage) MajorVersionDetected() int {
	return s.majorVersion
}

// NumResLevels returns the number of pyramid levels including full
// resolution.
func (s *Storage) NumResLevels() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxResLevel + 1
}

// WritingQueueSize returns the number of queued write tasks.
func (s *Storage) WritingQueueSize() int {
	return len(s.queue)
}

// WritingQueueCapacity returns the capacity of the writing queue.
func (s *Storage) WritingQueueCapacity() int {
	return s.queueCap
}

// DatasetSize returns the total bytes on disk across all levels.
func (s *Storage) DatasetSize() int64 {
	size := s.fullRes.dataSetSize()
	s.mu.RLock()
	levels := make([]*resolutionLevel, 0, len(s.lowRes))
	for _, l := range s.lowRes {
		levels = append(levels, l)
	}
	s.mu.RUnlock()
	for _, l := range levels {
		size += l.dataSetSize()
	}
	return size
}

// AxesSet returns the coordinates of every image added to the dataset.
func (s *Storage) AxesSet() []Axes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Axes, 0, len(s.imageAxes))
	for _, ax := range s.imageAxes {
		out = append(out, ax)
	}
	return out
}

// TileIndex locates one tile in the XY grid.
type TileIndex struct {
	Row int
	Col int
}

// TileIndicesWithDataAt returns the (row, column) indices of tiles present
// where the named axis equals the given value, sorted by column then row.
func (s *Storage) TileIndicesWithDataAt(axisName string, value int) []TileIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[TileIndex]bool)
	var tiles []TileIndex
	for _, ax := range s.imageAxes {
		v, ok := intAxis(ax, axisName)
		if !ok || v != value {
			continue
		}
		row, rok := intAxis(ax, RowAxis)
		col, cok := intAxis(ax, ColumnAxis)
		if !rok || !cok {
			continue
		}
		ti := TileIndex{Row: row, Col: col}
		if !seen[ti] {
			seen[ti] = true
			tiles = append(tiles, ti)
		}
	}
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Col != tiles[j].Col {
			return tiles[i].Col < tiles[j].Col
		}
		return tiles[i].Row < tiles[j].Row
	})
	return tiles
}

// ImageBounds returns [xMin, yMin, xMax, yMax] of the dataset in level-0
// pixel coordinates.
func (s *Storage) ImageBounds() ([4]int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.tiled {
		if s.fullResTileWidth < 0 {
			return [4]int{}, false
		}
		return [4]int{0, 0, s.fullResTileWidth, s.fullResTileHeight}, true
	}
	if s.tileWidth < 0 || s.tileHeight < 0 {
		return [4]int{}, false
	}
	minRow, maxRow, minCol, maxCol, ok := s.tileExtentsLocked()
	if !ok {
		return [4]int{}, false
	}
	xMin := minCol * s.tileWidth
	yMin := minRow * s.tileHeight
	xMax := (maxCol + 1) * s.tileWidth
	yMax := (maxRow + 1) * s.tileHeight
	return [4]int{xMin, yMin, xMax, yMax}, true
}

func (s *Storage) tileExtentsLocked() (minRow, maxRow, minCol, maxCol int, ok bool) {
	first := true
	for _, ax := range s.imageAxes {
		row, rok := intAxis(ax, RowAxis)
		col, cok := intAxis(ax, ColumnAxis)
		if !rok || !cok {
			continue
		}
		if first {
			minRow, maxRow, minCol, maxCol = row, row, col, col
			first = false
			continue
		}
		minRow = min(minRow, row)
		maxRow = max(maxRow, row)
		minCol = min(minCol, col)
		maxCol = max(maxCol, col)
	}
	return minRow, maxRow, minCol, maxCol, !first
}

func intAxis(ax Axes, name string) (int, bool) {
	v, ok := ax[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	}
	return 0, false
}

var acqDirIndexPattern = regexp.MustCompile(`^(\d+)`)

// uniqueAcqDirName allocates "{prefix}_{n}" with n one past the highest
// existing index under root.
func uniqueAcqDirName(root, prefix string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating root directory: %w", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", err
	}
	maxNumber := 0
	for _, e := range entries {
		name := e.Name()
		if len(name) <= len(prefix)+1 || name[:len(prefix)+1] != prefix+"_" {
			continue
		}
		if m := acqDirIndexPattern.FindString(name[len(prefix)+1:]); m != "" {
			if n, err := strconv.Atoi(m); err == nil && n > maxNumber {
				maxNumber = n
			}
		}
	}
	return fmt.Sprintf("%s_%d", prefix, maxNumber+1), nil
}

// IsNDTiffDataset reports whether dir looks like an NDTiff dataset: it (or
// its "Full resolution" subdirectory) holds a container file with the
// NDTiff magics.
func IsNDTiffDataset(dir string) bool {
	for _, d := range []string{dir, filepath.Join(dir, fullResDirName)} {
		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if len(name) > 4 && (name[len(name)-4:] == ".tif" || name[len(name)-4:] == ".TIF") {
				return tiff.IsNDTiff(filepath.Join(d, name))
			}
		}
	}
	return false
}
