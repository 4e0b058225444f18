package tiff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/go-ndtiff/internal/binary"
	"github.com/robert-malhotra/go-ndtiff/internal/bufpool"
	"github.com/robert-malhotra/go-ndtiff/internal/index"
)

func newTestWriter(t *testing.T, summary string) (*Writer, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := NewWriter(dir, "test_NDTiffStack.tif", []byte(summary), bufpool.New(bufpool.Config{}), 1<<24)
	require.NoError(t, err)
	return w, dir
}

func TestHeaderLayout(t *testing.T) {
	summary := `{"a":1}`
	w, dir := newTestWriter(t, summary)
	require.NoError(t, w.FinishedWriting())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, "test_NDTiffStack.tif"))
	require.NoError(t, err)
	order := binpkg.NativeOrder

	if binpkg.IsBigEndian() {
		assert.EqualValues(t, byteOrderBig, order.Uint16(data[0:]))
	} else {
		assert.EqualValues(t, byteOrderLittle, order.Uint16(data[0:]))
	}
	assert.EqualValues(t, tiffMagic, order.Uint16(data[2:]))
	// 28 + 7 byte summary, rounded up to even
	assert.EqualValues(t, 36, order.Uint32(data[4:]))
	assert.EqualValues(t, ndTiffMagic, order.Uint32(data[8:]))
	assert.EqualValues(t, MajorVersion, order.Uint32(data[12:]))
	assert.EqualValues(t, MinorVersion, order.Uint32(data[16:]))
	assert.EqualValues(t, summaryMDMagic, order.Uint32(data[20:]))
	assert.EqualValues(t, len(summary), order.Uint32(data[24:]))
	assert.Equal(t, summary, string(data[28:28+len(summary)]))
}

func TestWriteReadRoundTrip16Bit(t *testing.T) {
	w, _ := newTestWriter(t, `{}`)

	pix := make([]byte, 16*16*2)
	for i := range pix {
		pix[i] = byte(i)
	}
	md := []byte(`{"Exposure":10}`)
	entry, err := w.WriteImage(`{"time":0}`, pix, md, false, 16, 16, 16)
	require.NoError(t, err)
	assert.EqualValues(t, 16, entry.PixWidth)
	assert.EqualValues(t, index.SixteenBit, entry.PixelType)
	assert.Equal(t, "test_NDTiffStack.tif", entry.Filename)

	r := w.Reader()
	gotPix, gotMD, err := r.ReadImage(entry)
	require.NoError(t, err)
	assert.Equal(t, pix, gotPix)
	assert.Equal(t, md, gotMD)

	require.NoError(t, w.FinishedWriting())

	// reads still served after finish, from the shared handle
	gotPix, _, err = r.ReadImage(entry)
	require.NoError(t, err)
	assert.Equal(t, pix, gotPix)
}

func TestWriteRGBRepack(t *testing.T) {
	w, _ := newTestWriter(t, `{}`)

	// 2x1 image, packed B G R A per pixel
	pix := []byte{
		10, 20, 30, 0,
		40, 50, 60, 0,
	}
	entry, err := w.WriteImage(`{"time":0}`, pix, []byte(`{}`), true, 1, 2, 8)
	require.NoError(t, err)
	assert.EqualValues(t, index.EightBitRGB, entry.PixelType)

	// on disk: R G B triplets
	onDisk := make([]byte, 6)
	_, err = w.f.ReadAt(onDisk, int64(entry.PixOffset))
	require.NoError(t, err)
	assert.Equal(t, []byte{30, 20, 10, 60, 50, 40}, onDisk)

	// read back: B G R with zeroed alpha
	got, _, err := w.Reader().ReadImage(entry)
	require.NoError(t, err)
	assert.Equal(t, pix, got)
}

func TestSixteenBitRGBRejected(t *testing.T) {
	w, _ := newTestWriter(t, `{}`)
	_, err := w.WriteImage(`{"t":0}`, make([]byte, 4*4*4), []byte(`{}`), true, 4, 4, 16)
	assert.Error(t, err)
}

func TestOverwritePixels(t *testing.T) {
	w, _ := newTestWriter(t, `{}`)
	pix := make([]byte, 8*8)
	entry, err := w.WriteImage(`{"t":0}`, pix, []byte(`{}`), false, 8, 8, 8)
	require.NoError(t, err)

	repl := make([]byte, 8*8)
	for i := range repl {
		repl[i] = 0xAB
	}
	require.NoError(t, w.OverwritePixels(`{"t":0}`, repl, false))

	got, _, err := w.Reader().ReadImage(entry)
	require.NoError(t, err)
	assert.Equal(t, repl, got)
}

func TestHasSpaceToWrite(t *testing.T) {
	w, _ := newTestWriter(t, `{}`)
	// cap is 16 MiB with 5 MB padding: a tiny image fits, an including-
	// padding-oversized one does not
	assert.True(t, w.HasSpaceToWrite(1024, 64, false))
	assert.False(t, w.HasSpaceToWrite(12_000_000, 64, false))
}

func TestFinishedWritingTruncatesAndTerminates(t *testing.T) {
	w, dir := newTestWriter(t, `{}`)
	pix := make([]byte, 4*4)
	entry, err := w.WriteImage(`{"t":0}`, pix, []byte(`{"m":1}`), false, 4, 4, 8)
	require.NoError(t, err)
	require.NoError(t, w.FinishedWriting())

	path := filepath.Join(dir, "test_NDTiffStack.tif")
	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, fi.Size(), int64(1<<24), "file must be truncated from preallocated size")
	assert.GreaterOrEqual(t, fi.Size(), int64(entry.MDOffset)+int64(entry.MDLength))

	// next-IFD pointer of the last record must be zero
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	nextIFDLoc := int64(entry.PixOffset) - 16 - 4 // rationals and pointer precede pixels
	assert.EqualValues(t, 0, binpkg.NativeOrder.Uint32(data[nextIFDLoc:]))

	require.NoError(t, w.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, `{}`, string(r.SummaryMetadata()))
	got, _, err := r.ReadImage(entry)
	require.NoError(t, err)
	assert.Equal(t, pix, got)
}

func TestOpenReaderRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "junk.tif")
	require.NoError(t, os.WriteFile(path, []byte("II*\x00garbage everywhere"), 0o644))
	_, err := OpenReader(path)
	assert.ErrorIs(t, err, ErrNotNDTiff)
	assert.False(t, IsNDTiff(path))
}

func TestResolutionFromSummaryMD(t *testing.T) {
	num, den := resolutionFromSummaryMD([]byte(`{}`))
	assert.EqualValues(t, 10000, num)
	assert.EqualValues(t, 1, den)

	num, den = resolutionFromSummaryMD([]byte(`{"PixelSizeUm":0.5}`))
	assert.EqualValues(t, 20000, num)
	assert.EqualValues(t, 1, den)

	num, den = resolutionFromSummaryMD([]byte(`{"PixelSize_um":2.0}`))
	assert.EqualValues(t, 5000, num)
	assert.EqualValues(t, 1, den)
}
