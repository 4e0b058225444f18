package ndtiff

import (
	"sync"

	"github.com/robert-malhotra/go-ndtiff/internal/axes"
)

// RAMStorage keeps a dataset entirely in memory behind the same read/write
// surface as the disk-backed Storage. Useful for acquisitions that are
// consumed immediately and never saved.
type RAMStorage struct {
	mu        sync.RWMutex
	images    map[string]*TaggedImage
	essential map[string]EssentialMetadata
	imageAxes map[string]Axes
	axisTypes map[string]axisKind
	finished  bool
}

// NewRAMStorage creates an empty in-memory dataset.
func NewRAMStorage() *RAMStorage {
	return &RAMStorage{
		images:    make(map[string]*TaggedImage),
		essential: make(map[string]EssentialMetadata),
		imageAxes: make(map[string]Axes),
		axisTypes: make(map[string]axisKind),
	}
}

// PutImage stores one image. The future resolves immediately; RAM storage
// produces no index entries.
func (s *RAMStorage) PutImage(ax Axes, pixels []byte, metadata []byte, rgb bool, bitDepth, imageHeight, imageWidth int) *Future {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return rejectedFuture(ErrFinished)
	}
	norm := make(axes.Map, len(ax))
	for name, v := range ax {
		nv, err := axes.NormalizeValue(name, v)
		if err != nil {
			return rejectedFuture(err)
		}
		kind := axisInt
		if _, isString := nv.(string); isString {
			kind = axisString
		}
		if bound, ok := s.axisTypes[name]; ok && bound != kind {
			return rejectedFuture(ErrAxisType)
		}
		s.axisTypes[name] = kind
		norm[name] = nv
	}
	key, err := axes.Key(norm)
	if err != nil {
		return rejectedFuture(err)
	}
	s.images[key] = &TaggedImage{Pixels: pixels, Metadata: metadata}
	s.essential[key] = EssentialMetadata{Width: imageWidth, Height: imageHeight, BitDepth: bitDepth, RGB: rgb}
	s.imageAxes[key] = ax

	f := newFuture()
	f.resolve(nil, nil)
	return f
}

// GetImage returns the image at the coordinate, or nil.
func (s *RAMStorage) GetImage(ax Axes) (*TaggedImage, error) {
	key, err := axes.Key(axes.Map(ax))
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.images[key], nil
}

// HasImage reports whether an image exists at the coordinate.
func (s *RAMStorage) HasImage(ax Axes) bool {
	key, err := axes.Key(axes.Map(ax))
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.images[key]
	return ok
}

// GetEssentialMetadata returns the shape of the image at the coordinate.
func (s *RAMStorage) GetEssentialMetadata(ax Axes) (EssentialMetadata, bool, error) {
	key, err := axes.Key(axes.Map(ax))
	if err != nil {
		return EssentialMetadata{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.essential[key]
	return md, ok, nil
}

// AxesSet returns the coordinates of every stored image.
func (s *RAMStorage) AxesSet() []Axes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Axes, 0, len(s.imageAxes))
	for _, ax := range s.imageAxes {
		out = append(out, ax)
	}
	return out
}

// NumImages returns the number of stored images.
func (s *RAMStorage) NumImages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// FinishedWriting marks the dataset read-only.
func (s *RAMStorage) FinishedWriting() error {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	return nil
}

// IsFinished reports whether FinishedWriting has run.
func (s *RAMStorage) IsFinished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finished
}

// Close discards all stored images.
func (s *RAMStorage) Close() error {
	s.mu.Lock()
	s.images = make(map[string]*TaggedImage)
	s.essential = make(map[string]EssentialMetadata)
	s.imageAxes = make(map[string]Axes)
	s.mu.Unlock()
	return nil
}
