package ndtiff

import (
	"encoding/json"
	"fmt"
)

// Reserved summary-metadata keys written by the engine. Everything else in
// the summary metadata is opaque.
const (
	keyPixelOverlapX = "GridPixelOverlapX"
	keyPixelOverlapY = "GridPixelOverlapY"
	keyTiledStorage  = "TiledImageStorage"
)

// annotateSummaryMD copies the caller's summary metadata and records the
// tiled flag in it, plus the overlap for tiled datasets.
func annotateSummaryMD(summaryMD []byte, xOverlap, yOverlap int, tiled bool) ([]byte, error) {
	if len(summaryMD) == 0 {
		summaryMD = []byte("{}")
	}
	var md map[string]interface{}
	if err := json.Unmarshal(summaryMD, &md); err != nil {
		return nil, fmt.Errorf("summary metadata is not a JSON object: %w", err)
	}
	if tiled {
		md[keyPixelOverlapX] = xOverlap
		md[keyPixelOverlapY] = yOverlap
	}
	md[keyTiledStorage] = tiled
	out, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encoding summary metadata: %w", err)
	}
	return out, nil
}

// tiledFromSummaryMD reads the tiled flag back. Datasets written before the
// flag existed were always tiled, so absence means tiled.
func tiledFromSummaryMD(summaryMD []byte) bool {
	var md struct {
		Tiled *bool `json:"TiledImageStorage"`
	}
	if err := json.Unmarshal(summaryMD, &md); err != nil || md.Tiled == nil {
		return true
	}
	return *md.Tiled
}

// overlapFromSummaryMD reads the grid pixel overlap of a tiled dataset.
func overlapFromSummaryMD(summaryMD []byte) (x, y int) {
	var md struct {
		X *int `json:"GridPixelOverlapX"`
		Y *int `json:"GridPixelOverlapY"`
	}
	if err := json.Unmarshal(summaryMD, &md); err != nil {
		return 0, 0
	}
	if md.X != nil {
		x = *md.X
	}
	if md.Y != nil {
		y = *md.Y
	}
	return x, y
}
