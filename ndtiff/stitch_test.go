package ndtiff

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTiledGrid writes a 2x2 grid of 10x10 tiles with 2-pixel overlap, each
// filled with the constant row*2+col.
func newTiledGrid(t *testing.T, opts ...Option) *Storage {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "tiled")
	opts = append([]Option{WithTiling(2, 2)}, opts...)
	s, err := Create(dir, "acq", []byte(`{}`), opts...)
	require.NoError(t, err)

	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			pix := make([]byte, 10*10)
			for i := range pix {
				pix[i] = byte(row*2 + col)
			}
			_, err := s.PutImageMultiRes(Axes{RowAxis: row, ColumnAxis: col}, pix, []byte(`{}`), false, 8, 10, 10).Get()
			require.NoError(t, err)
		}
	}
	return s
}

func TestPixelRuns(t *testing.T) {
	assert.Equal(t, []int{8, 8}, pixelRuns(0, 16, 8))
	assert.Equal(t, []int{4, 8, 4}, pixelRuns(4, 16, 8))
	assert.Equal(t, []int{8}, pixelRuns(-8, 8, 8))
	assert.Equal(t, []int{3, 5}, pixelRuns(-3, 8, 8))
}

func TestTileIndexFromPixelIndex(t *testing.T) {
	assert.Equal(t, 0, tileIndexFromPixelIndex(0, 8))
	assert.Equal(t, 0, tileIndexFromPixelIndex(7, 8))
	assert.Equal(t, 1, tileIndexFromPixelIndex(8, 8))
	assert.Equal(t, -1, tileIndexFromPixelIndex(-1, 8))
	assert.Equal(t, -1, tileIndexFromPixelIndex(-8, 8))
	assert.Equal(t, -2, tileIndexFromPixelIndex(-9, 8))
}

func TestStitchedQuadrants(t *testing.T) {
	s := newTiledGrid(t)
	defer s.Close()

	img, err := s.GetDisplayImage(Axes{}, 0, 0, 0, 16, 16)
	require.NoError(t, err)
	require.NotNil(t, img)
	require.Len(t, img.Pixels, 16*16)

	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			want := byte((y/8)*2 + x/8)
			assert.Equal(t, want, img.Pixels[y*16+x], "pixel (%d, %d)", x, y)
		}
	}
	require.NoError(t, s.FinishedWriting())
}

func TestStitchedWindowWithBackground(t *testing.T) {
	s := newTiledGrid(t)
	defer s.Close()

	// a window hanging off the grid: pixels past the last tile stay
	// background zero, the rest keep their tile constants
	img, err := s.GetDisplayImage(Axes{}, 0, 12, 12, 8, 8)
	require.NoError(t, err)
	require.Len(t, img.Pixels, 8*8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			var want byte
			if x < 4 && y < 4 {
				want = 3 // tile (1, 1)
			}
			assert.Equal(t, want, img.Pixels[y*8+x], "pixel (%d, %d)", x, y)
		}
	}
	require.NoError(t, s.FinishedWriting())
}

func TestNegativeTileCoordinates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "negative")
	s, err := Create(dir, "acq", []byte(`{}`), WithTiling(0, 0))
	require.NoError(t, err)

	pix := make([]byte, 6*6)
	for i := range pix {
		pix[i] = 7
	}
	_, err = s.PutImageMultiRes(Axes{RowAxis: -1, ColumnAxis: -2}, pix, []byte(`{}`), false, 8, 6, 6).Get()
	require.NoError(t, err)

	img, err := s.GetImage(Axes{RowAxis: -1, ColumnAxis: -2}, 0)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, pix, img.Pixels)

	// the stitched window over the negative quadrant finds it too
	disp, err := s.GetDisplayImage(Axes{}, 0, -12, -6, 6, 6)
	require.NoError(t, err)
	assert.Equal(t, pix, disp.Pixels)

	require.NoError(t, s.FinishedWriting())
	require.NoError(t, s.Close())

	loaded, err := Open(dir)
	require.NoError(t, err)
	defer loaded.Close()
	img, err = loaded.GetImage(Axes{RowAxis: -1, ColumnAxis: -2}, 0)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, pix, img.Pixels)
}

func TestSubImageNonTiled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")
	s, err := Create(dir, "acq", []byte(`{}`))
	require.NoError(t, err)
	defer s.Close()

	pix := make([]byte, 16*16)
	for i := range pix {
		pix[i] = byte(i)
	}
	_, err = s.PutImage(Axes{"time": 0}, pix, []byte(`{}`), false, 8, 16, 16).Get()
	require.NoError(t, err)

	img, err := s.GetSubImage(Axes{"time": 0}, 4, 2, 8, 8)
	require.NoError(t, err)
	require.Len(t, img.Pixels, 64)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			assert.Equal(t, pix[(y+2)*16+(x+4)], img.Pixels[y*8+x])
		}
	}
	require.NoError(t, s.FinishedWriting())
}

func TestStitchTopLeftMetadataCarried(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "md")
	s, err := Create(dir, "acq", []byte(`{}`), WithTiling(0, 0))
	require.NoError(t, err)
	defer s.Close()

	pix := make([]byte, 4*4)
	_, err = s.PutImageMultiRes(Axes{RowAxis: 0, ColumnAxis: 0}, pix, []byte(`{"tile":"tl"}`), false, 8, 4, 4).Get()
	require.NoError(t, err)
	_, err = s.PutImageMultiRes(Axes{RowAxis: 0, ColumnAxis: 1}, pix, []byte(`{"tile":"tr"}`), false, 8, 4, 4).Get()
	require.NoError(t, err)

	img, err := s.GetDisplayImage(Axes{}, 0, 0, 0, 8, 4)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tile":"tl"}`, string(img.Metadata))
	require.NoError(t, s.FinishedWriting())
}
