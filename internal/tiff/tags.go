// Package tiff implements the NDTiff container file: a TIFF-compatible
// stream of IFD + pixel + metadata records behind an extended 28-byte header
// that embeds the dataset's summary metadata. Random access never walks
// IFDs; the byte ranges recorded in the sidecar index are authoritative.
package tiff

// TIFF tags emitted for every image, in ascending order.
const (
	tagWidth                     = 256
	tagHeight                    = 257
	tagBitsPerSample             = 258
	tagCompression               = 259
	tagPhotometricInterpretation = 262
	tagStripOffsets              = 273
	tagSamplesPerPixel           = 277
	tagRowsPerStrip              = 278
	tagStripByteCounts           = 279
	tagXResolution               = 282
	tagYResolution               = 283
	tagResolutionUnit            = 296
	tagMicroManagerMetadata      = 51123
)

// TIFF field types.
const (
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

const entriesPerIFD = 13

// Magic numbers of the extended header.
const (
	tiffMagic       = 42
	ndTiffMagic     = 483729
	summaryMDMagic  = 2355492
	headerSize      = 28
	byteOrderLittle = 0x4949 // "II"
	byteOrderBig    = 0x4d4d // "MM"
)

// Format version written into new files.
const (
	MajorVersion = 3
	MinorVersion = 3
)

const (
	bytesPerGig = 1 << 30

	// DefaultMaxFileSize is the TIFF 32-bit offset ceiling at which the
	// active container file rolls over.
	DefaultMaxFileSize = 4 * bytesPerGig

	// extraPadding is reserved headroom below the cap so an in-flight
	// record can never cross it.
	extraPadding = 5_000_000
)
