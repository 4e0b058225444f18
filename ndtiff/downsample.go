package ndtiff

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-malhotra/go-ndtiff/internal/axes"
	binpkg "github.com/robert-malhotra/go-ndtiff/internal/binary"
	"github.com/robert-malhotra/go-ndtiff/internal/index"
)

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// downsample averages 2x2 squares of prevPix into one quadrant of curPix.
// The quadrant is chosen from the parity of the previous level's row and
// column. At resolution index 1 the source coordinates are offset by half
// the overlap so the overlap margin never reaches the pyramid.
func (s *Storage) downsample(curPix, prevPix []byte, prevRow, prevCol, resIndex int, rgb bool, byteDepth int) {
	s.mu.RLock()
	tileWidth, tileHeight := s.tileWidth, s.tileHeight
	fullResWidth, fullResHeight := s.fullResTileWidth, s.fullResTileHeight
	xOverlap, yOverlap := s.xOverlap, s.yOverlap
	s.mu.RUnlock()

	xPos := abs(prevCol % 2)
	yPos := abs(prevRow % 2)

	components := 1
	if rgb {
		components = 4
	}

	sample := func(pix []byte, pixelIndex, comp int) int {
		if rgb {
			return int(pix[pixelIndex*4+comp])
		}
		if byteDepth == 1 {
			return int(pix[pixelIndex])
		}
		return int(binpkg.NativeOrder.Uint16(pix[pixelIndex*2:]))
	}
	store := func(pix []byte, pixelIndex, comp, value int) {
		if rgb {
			pix[pixelIndex*4+comp] = byte(value)
		} else if byteDepth == 1 {
			pix[pixelIndex] = byte(value)
		} else {
			binpkg.NativeOrder.PutUint16(pix[pixelIndex*2:], uint16(value))
		}
	}

	for x := 0; x < tileWidth; x += 2 {
		for y := 0; y < tileHeight; y += 2 {
			// source indices into the previous level; level 0 tiles carry
			// the overlap margin, so level 1 reads at an offset
			var pixelX, pixelY, prevWidth, prevHeight int
			if resIndex == 1 {
				pixelX = x + xOverlap/2
				pixelY = y + yOverlap/2
				prevWidth = fullResWidth
				prevHeight = fullResHeight
			} else {
				pixelX = x
				pixelY = y
				prevWidth = tileWidth
				prevHeight = tileHeight
			}

			for comp := 0; comp < components; comp++ {
				// always the top-left pixel; the other three only when not
				// at the bottom/right edge of an odd-sized tile
				count := 1
				sum := sample(prevPix, pixelY*prevWidth+pixelX, comp)
				switch {
				case x < prevWidth-1 && y < prevHeight-1:
					count += 3
					sum += sample(prevPix, (pixelY+1)*prevWidth+pixelX+1, comp) +
						sample(prevPix, pixelY*prevWidth+pixelX+1, comp) +
						sample(prevPix, (pixelY+1)*prevWidth+pixelX, comp)
				case x < prevWidth-1:
					count++
					sum += sample(prevPix, pixelY*prevWidth+pixelX+1, comp)
				case y < prevHeight-1:
					count++
					sum += sample(prevPix, (pixelY+1)*prevWidth+pixelX, comp)
				}

				// averaged pixel lands in the quadrant of the current
				// level selected by the previous tile's parity
				dst := ((y+yPos*tileHeight)/2)*tileWidth + (x+xPos*tileWidth)/2
				store(curPix, dst, comp, (sum+count/2)/count)
			}
		}
	}
}

// addToLowResStorage propagates one image through every pyramid level below
// its own, averaging it into the right quadrant at each step. Runs on the
// writer goroutine.
func (s *Storage) addToLowResStorage(img *TaggedImage, ax Axes, originalResIndex, originalRow, originalCol int, rgb bool, bitDepth int) error {
	prevPix := img.Pixels
	byteDepth := 1
	if !rgb && bitDepth > 8 {
		byteDepth = 2
	}

	s.mu.RLock()
	maxLevel := s.maxResLevel
	tileWidth, tileHeight := s.tileWidth, s.tileHeight
	s.mu.RUnlock()

	row, col := originalRow, originalCol
	for resIndex := originalResIndex + 1; resIndex <= maxLevel; resIndex++ {
		if s.level(resIndex) == nil {
			if err := s.populateNewResolutionLevel(resIndex, false); err != nil {
				return err
			}
		}
		level := s.level(resIndex)

		axCopy := axes.Copy(axes.Map(ax))
		axCopy[RowAxis] = floorDiv(row, 2)
		axCopy[ColumnAxis] = floorDiv(col, 2)
		key, err := axes.Key(axCopy)
		if err != nil {
			return err
		}

		existing, err := level.getImage(key)
		if err != nil {
			return err
		}
		var curPix []byte
		if existing == nil {
			n := tileWidth * tileHeight * byteDepth
			if rgb {
				n = tileWidth * tileHeight * 4
			}
			curPix = make([]byte, n)
		} else {
			curPix = existing.Pixels
		}

		s.downsample(curPix, prevPix, row, col, resIndex, rgb, byteDepth)

		if existing == nil {
			// copy the metadata so a later read at another level can't
			// see modifications
			md := append([]byte(nil), img.Metadata...)
			if _, err := level.putImage(key, curPix, md, rgb, tileHeight, tileWidth, bitDepth); err != nil {
				return fmt.Errorf("writing downsampled tile: %w", err)
			}
		} else {
			if err := level.overwritePixels(key, curPix, rgb); err != nil {
				return fmt.Errorf("updating downsampled tile: %w", err)
			}
		}

		prevPix = curPix
		row = floorDiv(row, 2)
		col = floorDiv(col, 2)
	}
	return nil
}

// populateNewResolutionLevel creates the level directory if needed and,
// when addExisting is set, re-downsamples every image of the previous level
// into it. Runs on the writer goroutine.
func (s *Storage) populateNewResolutionLevel(resIndex int, addExisting bool) error {
	if s.level(resIndex) == nil {
		if err := s.createDownsampledStorage(resIndex); err != nil {
			return err
		}
	}
	if !addExisting {
		return nil
	}

	previous := s.level(resIndex - 1)
	keys := previous.imageKeys()
	s.log.Debug().Int("level", resIndex).Int("tiles", len(keys)).Msg("populating resolution level")
	for _, key := range keys {
		ax, err := axes.Deserialize([]byte(key))
		if err != nil {
			return err
		}
		row, rok := intAxis(Axes(ax), RowAxis)
		col, cok := intAxis(Axes(ax), ColumnAxis)
		if !rok || !cok {
			return fmt.Errorf("tile %s is missing row/column axes", key)
		}
		img, err := previous.getImage(key)
		if err != nil {
			return err
		}
		essential, ok, err := previous.essentialMetadata(key)
		if err != nil || !ok {
			return fmt.Errorf("missing metadata for tile %s: %w", key, err)
		}
		if err := s.addToLowResStorage(img, Axes(ax), resIndex-1, row, col, essential.RGB, essential.BitDepth); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) createDownsampledStorage(resIndex int) error {
	dsDir := filepath.Join(s.directory, downsampleDirName(resIndex))
	if err := os.MkdirAll(dsDir, 0o755); err != nil {
		return fmt.Errorf("creating downsampled directory: %w", err)
	}
	level, err := newResolutionLevel(dsDir, s.prefix, s.summaryMD, s.levelDeps())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lowRes[resIndex] = level
	s.mu.Unlock()
	return nil
}

// IncreaseMaxResolutionLevel grows the pyramid so its deepest level is
// newMax (newMax+1 levels including full resolution), re-downsampling every existing image into each new level. Safe to call at
// any time on a writable dataset; the work happens on the writer goroutine.
func (s *Storage) IncreaseMaxResolutionLevel(newMax int) error {
	if s.loaded {
		return ErrReadOnly
	}
	s.mu.Lock()
	oldMax := s.maxResLevel
	if newMax > s.maxResLevel {
		s.maxResLevel = newMax
	}
	newMaxLevel := s.maxResLevel
	s.mu.Unlock()

	if s.fullRes.numImages() == 0 {
		// nothing to populate until data arrives
		return nil
	}
	for i := oldMax + 1; i <= newMaxLevel; i++ {
		level := i
		s.enqueue(newFuture(), func() (*index.Entry, error) {
			return nil, s.populateNewResolutionLevel(level, true)
		})
	}
	return nil
}
