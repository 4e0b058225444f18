package ndtiff

import (
	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-ndtiff/internal/bufpool"
)

// Option configures dataset creation.
type Option func(*storageOptions)

type storageOptions struct {
	tiled       bool
	xOverlap    int
	yOverlap    int
	maxResLevel int
	queueSize   int
	uniqueDir   bool
	logger      zerolog.Logger
	poolConfig  bufpool.Config
	maxFileSize int64
}

func defaultStorageOptions() *storageOptions {
	return &storageOptions{
		queueSize: DefaultWritingQueueSize,
		logger:    zerolog.Nop(),
	}
}

// WithTiling declares the dataset tiled: images are tiles on a regular XY
// grid addressed by the reserved row and column axes, with the given pixel
// overlap between neighbours along each direction.
func WithTiling(xOverlap, yOverlap int) Option {
	return func(o *storageOptions) {
		o.tiled = true
		o.xOverlap = xOverlap
		o.yOverlap = yOverlap
	}
}

// WithMaxResolutionLevel sets the initial depth of the downsampling
// pyramid. Level k holds tiles downsampled by 2^k along X and Y.
func WithMaxResolutionLevel(level int) Option {
	return func(o *storageOptions) {
		if level > 0 {
			o.maxResLevel = level
		}
	}
}

// WithQueueSize sets the capacity of the bounded writing queue.
func WithQueueSize(size int) Option {
	return func(o *storageOptions) {
		if size > 0 {
			o.queueSize = size
		}
	}
}

// WithUniqueDirectory allocates a fresh "{prefix}_{n}" directory under the
// given root instead of writing into it directly.
func WithUniqueDirectory() Option {
	return func(o *storageOptions) {
		o.uniqueDir = true
	}
}

// WithLogger attaches a debug logger to the writer pipeline.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *storageOptions) {
		o.logger = logger
	}
}

// WithBufferPool tunes the pixel-buffer pool used on the write path.
func WithBufferPool(cfg bufpool.Config) Option {
	return func(o *storageOptions) {
		o.poolConfig = cfg
	}
}

// withMaxFileSize overrides the 4 GiB container rollover threshold. Small
// thresholds let tests exercise rollover without writing gigabytes.
func withMaxFileSize(size int64) Option {
	return func(o *storageOptions) {
		o.maxFileSize = size
	}
}
