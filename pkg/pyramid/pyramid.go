// Package pyramid describes tiled, multi-resolution ("pyramid") images and
// the geometry shared by every concrete format.
//
// Higher zoom means bigger picture. Zoom MinZoom() is the smallest
// rendition available, MaxZoom() the full-resolution one.
package pyramid

import (
	"fmt"

	"github.com/kiesman99/bigview/pkg/raster"
)

// Band format constants describing the channel order of loaded tiles.
const (
	BandBGR = iota
	BandRGB
)

// Image is a single pyramid image. Implementations parse the metadata at
// open time and load individual tiles on demand; they never hold the whole
// picture in memory.
//
// Level extents must form a power-of-two pyramid: each level is half the
// linear size of the next (rounding per format). The viewport engine's
// zoom retargeting relies on this.
type Image interface {
	// MinZoom returns the smallest (most zoomed out) zoom available.
	MinZoom() int

	// MaxZoom returns the biggest (most zoomed in) zoom available.
	MaxZoom() int

	// Zooms returns the available zooms, biggest to smallest.
	Zooms() []int

	// TileWidth returns the normal tile width (same for all tiles).
	TileWidth() int

	// TileHeight returns the normal tile height (same for all tiles).
	TileHeight() int

	// WidthForZoom returns the width of the image at the given zoom.
	// Returns a ZoomError if the zoom doesn't exist.
	WidthForZoom(zoom int) (int, error)

	// HeightForZoom returns the height of the image at the given zoom.
	// Returns a ZoomError if the zoom doesn't exist.
	HeightForZoom(zoom int) (int, error)

	// LeftOverlap returns the overlap pixel count on the left side of the
	// given tile column. Zero when the tile touches the image edge.
	LeftOverlap(tile int) int

	// RightOverlap returns the overlap pixel count on the right side of
	// the given tile column at the given zoom.
	RightOverlap(tile, zoom int) int

	// TopOverlap returns the overlap pixel count on the top side of the
	// given tile row.
	TopOverlap(tile int) int

	// BottomOverlap returns the overlap pixel count on the bottom side of
	// the given tile row at the given zoom.
	BottomOverlap(tile, zoom int) int

	// LoadTile loads the tile with the given tile numbers and zoom. The
	// returned buffer dimensions must equal the trimmed tile extent
	// computed from the metadata; a mismatch is a FormatError.
	LoadTile(tileX, tileY, zoom int) (*raster.ImageData, error)

	// BandFormat returns BandBGR or BandRGB.
	BandFormat() int
}

// FormatError is returned when image metadata is malformed or a loaded
// tile does not match the geometry computed from the metadata.
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string {
	return e.Message
}

// ZoomError is returned when a dimension is requested for a zoom level
// that has no registered data.
type ZoomError struct {
	Zoom int
}

func (e *ZoomError) Error() string {
	return fmt.Sprintf("invalid zoom %d requested", e.Zoom)
}

// UnsupportedLayoutError is returned when a pixel buffer has a channel
// count the viewer cannot interpret for display.
type UnsupportedLayoutError struct {
	Depth int
}

func (e *UnsupportedLayoutError) Error() string {
	return fmt.Sprintf("unsupported channel count %d", e.Depth)
}
