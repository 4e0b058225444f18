package ndtiff

import (
	"fmt"

	"github.com/robert-malhotra/go-ndtiff/internal/axes"
)

// tileIndexFromPixelIndex maps a pixel coordinate (possibly negative) to
// the index of the tile that holds it. Tiles are the same size at every
// level, so the level does not matter.
func tileIndexFromPixelIndex(i, tileDim int) int {
	if i >= 0 {
		return i / tileDim
	}
	// pixel -1 belongs to tile -1, so shift before dividing
	return (i+1)/tileDim - 1
}

// pixelRuns partitions count output pixels starting at origin into
// contiguous runs that share a source tile, returning the run lengths.
func pixelRuns(origin, count, tileDim int) []int {
	var runs []int
	previous := tileIndexFromPixelIndex(origin, tileDim) - 1
	for i := origin; i < origin+count; i++ {
		idx := tileIndexFromPixelIndex(i, tileDim)
		if idx != previous {
			runs = append(runs, 0)
		}
		runs[len(runs)-1]++
		previous = idx
	}
	return runs
}

// GetSubImage returns a stitched window of the full-resolution image.
func (s *Storage) GetSubImage(ax Axes, x, y, width, height int) (*TaggedImage, error) {
	return s.GetDisplayImage(ax, 0, x, y, width, height)
}

// GetDisplayImage composites a width x height window whose top-left is
// (x, y) in the pixel coordinates of the given pyramid level, loading only
// the tiles that intersect it. Missing tiles stay background (zero). The
// output metadata is that of the top-left populated tile. The pixel buffer
// takes its format from the first populated tile, so when no tile in the
// window holds data the returned Pixels is nil.
func (s *Storage) GetDisplayImage(ax Axes, resIndex, x, y, width, height int) (*TaggedImage, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid window %dx%d", width, height)
	}

	s.mu.RLock()
	tileWidth, tileHeight := s.tileWidth, s.tileHeight
	fullResWidth := s.fullResTileWidth
	xOverlap, yOverlap := s.xOverlap, s.yOverlap
	tiled := s.tiled
	s.mu.RUnlock()
	if tileWidth <= 0 || tileHeight <= 0 {
		return nil, fmt.Errorf("no images in dataset")
	}

	level := s.level(resIndex)
	if level == nil {
		return &TaggedImage{}, nil
	}

	lineWidths := pixelRuns(x, width, tileWidth)
	lineHeights := pixelRuns(y, height, tileHeight)
	rowStart := tileIndexFromPixelIndex(y, tileHeight)
	colStart := tileIndexFromPixelIndex(x, tileWidth)

	var pixels []byte
	var topLeftMD []byte
	var bufType EssentialMetadata
	haveBufType := false

	xOffset := 0
	for colIdx, runWidth := range lineWidths {
		col := colStart + colIdx
		yOffset := 0
		for rowIdx, runHeight := range lineHeights {
			row := rowStart + rowIdx

			tileAxes := axes.Copy(axes.Map(ax))
			if tiled {
				tileAxes[RowAxis] = row
				tileAxes[ColumnAxis] = col
			}
			key, err := axes.Key(tileAxes)
			if err != nil {
				return nil, err
			}
			tile, err := level.getImage(key)
			if err != nil {
				return nil, err
			}
			// a zero-length pixel buffer can surface when reads race a
			// concurrent write across files; treat it as no tile
			if tile == nil || len(tile.Pixels) == 0 {
				yOffset += runHeight
				continue
			}
			essential, ok, err := level.essentialMetadata(key)
			if err != nil || !ok {
				yOffset += runHeight
				continue
			}
			if !haveBufType {
				haveBufType = true
				bufType = essential
				pixels = make([]byte, width*height*essential.BytesPerPixel())
			} else if essential.RGB != bufType.RGB || essential.ByteDepth() != bufType.ByteDepth() {
				return nil, fmt.Errorf("tiles disagree on pixel format: %v vs %v", essential, bufType)
			}
			if topLeftMD == nil {
				topLeftMD = tile.Metadata
			}

			bpp := bufType.BytesPerPixel()
			srcWidth := tileWidth
			for line := yOffset; line < yOffset+runHeight; line++ {
				tileYPix := (y + line) % tileHeight
				tileXPix := (x + xOffset) % tileWidth
				for tileXPix < 0 {
					tileXPix += tileWidth
				}
				for tileYPix < 0 {
					tileYPix += tileHeight
				}
				if resIndex == 0 && tiled {
					// full-resolution tiles carry the overlap margin
					tileYPix += yOverlap / 2
					tileXPix += xOverlap / 2
					srcWidth = fullResWidth
				}
				srcOff := (tileYPix*srcWidth + tileXPix) * bpp
				dstOff := (line*width + xOffset) * bpp
				n := runWidth * bpp
				copy(pixels[dstOff:dstOff+n], tile.Pixels[srcOff:srcOff+n])
			}
			yOffset += runHeight
		}
		xOffset += runWidth
	}

	return &TaggedImage{Pixels: pixels, Metadata: topLeftMD}, nil
}
