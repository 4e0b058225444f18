package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryEncodeDecode(t *testing.T) {
	e := &Entry{
		AxesKey:   `{"channel":"GFP","time":1}`,
		Filename:  "acq_NDTiffStack.tif",
		PixOffset: 1 << 31, // offsets past 2 GiB stay unsigned
		PixWidth:  512,
		PixHeight: 512,
		PixelType: SixteenBit,
		MDOffset:  (1 << 31) + 512*512*2,
		MDLength:  77,
	}
	back, n, err := decode(e.Encode())
	require.NoError(t, err)
	assert.Equal(t, e.EncodedLen(), n)
	assert.Equal(t, e, back)
}

func TestEntryDecodeTruncated(t *testing.T) {
	e := &Entry{AxesKey: `{"t":0}`, Filename: "x.tif"}
	data := e.Encode()
	for _, cut := range []int{1, 5, len(data) - 1} {
		_, _, err := decode(data[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}
}

func TestPixelTypeFor(t *testing.T) {
	tests := []struct {
		bitDepth int
		rgb      bool
		want     uint32
	}{
		{8, false, EightBit},
		{10, false, TenBit},
		{11, false, ElevenBit},
		{12, false, TwelveBit},
		{14, false, FourteenBit},
		{16, false, SixteenBit},
		{8, true, EightBitRGB},
	}
	for _, tt := range tests {
		got, err := PixelTypeFor(tt.bitDepth, tt.rgb)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := PixelTypeFor(16, true)
	assert.Error(t, err, "16-bit RGB must be rejected")
	_, err = PixelTypeFor(9, false)
	assert.Error(t, err)
}

func TestByteDepth(t *testing.T) {
	assert.Equal(t, 1, (&Entry{PixelType: EightBit}).ByteDepth())
	assert.Equal(t, 1, (&Entry{PixelType: EightBitRGB}).ByteDepth())
	for _, pt := range []uint32{TenBit, ElevenBit, TwelveBit, FourteenBit, SixteenBit} {
		assert.Equal(t, 2, (&Entry{PixelType: pt}).ByteDepth())
	}
}

func TestWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	entries := []*Entry{
		{AxesKey: `{"time":0}`, Filename: "a.tif", PixOffset: 162, PixWidth: 16, PixHeight: 16, PixelType: SixteenBit, MDOffset: 674, MDLength: 2},
		{AxesKey: `{"time":1}`, Filename: "a.tif", PixOffset: 900, PixWidth: 16, PixHeight: 16, PixelType: SixteenBit, MDOffset: 1412, MDLength: 2},
	}
	for _, e := range entries {
		require.NoError(t, w.Add(e))
	}
	require.NoError(t, w.Finish())

	path := filepath.Join(dir, FileName)
	got, err := ReadLog(path)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	m, err := ReadMap(path)
	require.NoError(t, err)
	assert.Len(t, m, 2)
	assert.Equal(t, entries[1], m[`{"time":1}`])
}

func TestWriterTruncatesToWrittenLength(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	e := &Entry{AxesKey: `{"time":0}`, Filename: "a.tif"}
	require.NoError(t, w.Add(e))
	require.NoError(t, w.Finish())

	got, err := ReadLog(filepath.Join(dir, FileName))
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestFinishedEntrySentinel(t *testing.T) {
	e := NewFinishedEntry()
	assert.True(t, e.Finished)
	// the sentinel still encodes: all fields zero, empty strings
	back, _, err := decode(e.Encode())
	require.NoError(t, err)
	assert.Equal(t, uint32(0), back.PixOffset)
	assert.Empty(t, back.AxesKey)
}
