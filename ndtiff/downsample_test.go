package ndtiff

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/go-ndtiff/internal/binary"
)

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 0, floorDiv(0, 2))
	assert.Equal(t, 0, floorDiv(1, 2))
	assert.Equal(t, 1, floorDiv(2, 2))
	assert.Equal(t, -1, floorDiv(-1, 2))
	assert.Equal(t, -1, floorDiv(-2, 2))
	assert.Equal(t, -2, floorDiv(-3, 2))
}

func TestPyramidLevelCoarsening(t *testing.T) {
	s := newTiledGrid(t, WithMaxResolutionLevel(1))
	defer s.Close()
	require.NoError(t, s.FinishedWriting())

	assert.Equal(t, 2, s.NumResLevels())

	// the four 8x8 effective tiles coarsen into one 8x8 level-1 tile
	// whose quadrants carry the source constants
	img, err := s.GetImage(Axes{RowAxis: 0, ColumnAxis: 0}, 1)
	require.NoError(t, err)
	require.NotNil(t, img)
	require.Len(t, img.Pixels, 8*8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			want := byte((y/4)*2 + x/4)
			assert.Equal(t, want, img.Pixels[y*8+x], "pixel (%d, %d)", x, y)
		}
	}
}

func TestPyramidQuadrantPlacementFromParity(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "parity")
	s, err := Create(dir, "acq", []byte(`{}`), WithTiling(0, 0), WithMaxResolutionLevel(1))
	require.NoError(t, err)
	defer s.Close()

	// a single tile at (1, 1): odd row and column land in the
	// bottom-right quadrant of level-1 tile (0, 0)
	pix := make([]byte, 4*4)
	for i := range pix {
		pix[i] = 80
	}
	_, err = s.PutImageMultiRes(Axes{RowAxis: 1, ColumnAxis: 1}, pix, []byte(`{}`), false, 8, 4, 4).Get()
	require.NoError(t, err)

	img, err := s.GetImage(Axes{RowAxis: 0, ColumnAxis: 0}, 1)
	require.NoError(t, err)
	require.NotNil(t, img)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			var want byte
			if x >= 2 && y >= 2 {
				want = 80
			}
			assert.Equal(t, want, img.Pixels[y*4+x], "pixel (%d, %d)", x, y)
		}
	}
	require.NoError(t, s.FinishedWriting())
}

func TestDownsampleAveragesWithOverlapOffset(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "avg")
	s, err := Create(dir, "acq", []byte(`{}`), WithTiling(2, 2), WithMaxResolutionLevel(1))
	require.NoError(t, err)
	defer s.Close()

	// 10x10 16-bit gradient tile; effective tile is 8x8 after overlap
	pix := make([]byte, 10*10*2)
	for i := 0; i < 100; i++ {
		binpkg.NativeOrder.PutUint16(pix[i*2:], uint16(i*13))
	}
	_, err = s.PutImageMultiRes(Axes{RowAxis: 0, ColumnAxis: 0}, pix, []byte(`{}`), false, 16, 10, 10).Get()
	require.NoError(t, err)

	img, err := s.GetImage(Axes{RowAxis: 0, ColumnAxis: 0}, 1)
	require.NoError(t, err)
	require.NotNil(t, img)
	require.Len(t, img.Pixels, 8*8*2)

	at := func(buf []byte, idx int) int { return int(binpkg.NativeOrder.Uint16(buf[idx*2:])) }
	for y := 0; y < 8; y += 2 {
		for x := 0; x < 8; x += 2 {
			// sources offset by half the overlap so the margin is excluded
			sx, sy := x+1, y+1
			sum := at(pix, sy*10+sx) + at(pix, sy*10+sx+1) + at(pix, (sy+1)*10+sx) + at(pix, (sy+1)*10+sx+1)
			want := (sum + 2) / 4
			got := at(img.Pixels, (y/2)*8+x/2)
			assert.Equal(t, want, got, "output pixel (%d, %d)", x/2, y/2)
		}
	}
	require.NoError(t, s.FinishedWriting())
}

func TestIncreaseMaxResolutionLevel(t *testing.T) {
	s := newTiledGrid(t)
	defer s.Close()
	assert.Equal(t, 1, s.NumResLevels())

	require.NoError(t, s.IncreaseMaxResolutionLevel(2))
	require.NoError(t, s.FinishedWriting())
	assert.Equal(t, 3, s.NumResLevels())

	// level 1 holds the same quadrant tile as a pyramid built on line
	img, err := s.GetImage(Axes{RowAxis: 0, ColumnAxis: 0}, 1)
	require.NoError(t, err)
	require.NotNil(t, img)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			want := byte((y/4)*2 + x/4)
			assert.Equal(t, want, img.Pixels[y*8+x], "pixel (%d, %d)", x, y)
		}
	}

	// level 2 condenses everything into the top-left quarter of one tile
	img, err = s.GetImage(Axes{RowAxis: 0, ColumnAxis: 0}, 2)
	require.NoError(t, err)
	require.NotNil(t, img)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			sum := (y*2/4)*2 + x*2/4 + (y*2/4)*2 + (x*2+1)/4 +
				((y*2+1)/4)*2 + x*2/4 + ((y*2+1)/4)*2 + (x*2+1)/4
			want := byte((sum + 2) / 4)
			assert.Equal(t, want, img.Pixels[y*8+x], "pixel (%d, %d)", x, y)
		}
	}
}

func TestPyramidPersistsAcrossReload(t *testing.T) {
	s := newTiledGrid(t, WithMaxResolutionLevel(1))
	dir := s.DiskLocation()
	require.NoError(t, s.FinishedWriting())
	require.NoError(t, s.Close())

	loaded, err := Open(dir)
	require.NoError(t, err)
	defer loaded.Close()
	assert.Equal(t, 2, loaded.NumResLevels())
	assert.True(t, loaded.IsTiled())

	img, err := loaded.GetImage(Axes{RowAxis: 0, ColumnAxis: 0}, 1)
	require.NoError(t, err)
	require.NotNil(t, img)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			want := byte((y/4)*2 + x/4)
			assert.Equal(t, want, img.Pixels[y*8+x], "pixel (%d, %d)", x, y)
		}
	}

	// the stitched reader serves downsampled levels too
	disp, err := loaded.GetDisplayImage(Axes{}, 1, 0, 0, 8, 8)
	require.NoError(t, err)
	assert.Equal(t, img.Pixels, disp.Pixels)
}
