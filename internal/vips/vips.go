// Package vips reads arbitrary large images through libvips (via bimg)
// and presents them as a pyramid with power-of-two levels and no tile
// overlap. Tiles are cut out of the requested level on demand, so only
// the viewed region is ever decoded at full resolution.
package vips

import (
	"fmt"
	"image"

	"github.com/kiesman99/bigview/pkg/pyramid"
	"github.com/kiesman99/bigview/pkg/raster"
	"gopkg.in/h2non/bimg.v1"
)

// DefaultTileSize is the tile edge used when cutting levels into tiles.
const DefaultTileSize = 256

// Image is a libvips-backed pyramid image.
type Image struct {
	path   string
	source *bimg.Image

	width      int
	height     int
	tileWidth  int
	tileHeight int

	minZoom      int
	maxZoom      int
	zoomToWidth  map[int]int
	zoomToHeight map[int]int
	zooms        []int
}

// Open reads the metadata for an image. Any format libvips understands
// works; the pyramid levels are derived from the full-resolution size.
func Open(path string) (*Image, error) {
	buf, err := bimg.Read(path)
	if err != nil {
		return nil, err
	}

	source := bimg.NewImage(buf)
	size, err := source.Size()
	if err != nil {
		return nil, &pyramid.FormatError{
			Message: fmt.Sprintf("cannot read image size: %v", err),
		}
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, &pyramid.FormatError{Message: "image has no size"}
	}

	img := &Image{
		path:       path,
		source:     source,
		width:      size.Width,
		height:     size.Height,
		tileWidth:  DefaultTileSize,
		tileHeight: DefaultTileSize,
	}
	img.computeLevels()

	return img, nil
}

// computeLevels derives the zoom ladder: the biggest zoom is the full
// resolution, each level below is half the linear size, down to the first
// level that fits in a single tile.
func (v *Image) computeLevels() {
	levels := 1
	longest := v.width
	if v.height > longest {
		longest = v.height
	}
	for s := longest; s > v.tileWidth; s = (s + 1) / 2 {
		levels++
	}

	v.minZoom = 0
	v.maxZoom = levels - 1
	v.zoomToWidth = make(map[int]int, levels)
	v.zoomToHeight = make(map[int]int, levels)
	for z := v.minZoom; z <= v.maxZoom; z++ {
		level := v.maxZoom - z
		v.zoomToWidth[z] = v.width >> level
		v.zoomToHeight[z] = v.height >> level
	}

	v.zooms = make([]int, 0, levels)
	for z := v.maxZoom; z >= v.minZoom; z-- {
		v.zooms = append(v.zooms, z)
	}
}

// MinZoom returns the minimum zoom available for this image.
func (v *Image) MinZoom() int { return v.minZoom }

// MaxZoom returns the maximum zoom available for this image.
func (v *Image) MaxZoom() int { return v.maxZoom }

// Zooms returns the available zooms, biggest to smallest.
func (v *Image) Zooms() []int { return v.zooms }

// TileWidth returns the tile width used to cut levels into tiles.
func (v *Image) TileWidth() int { return v.tileWidth }

// TileHeight returns the tile height used to cut levels into tiles.
func (v *Image) TileHeight() int { return v.tileHeight }

// WidthForZoom returns the width of the image at the given zoom.
func (v *Image) WidthForZoom(zoom int) (int, error) {
	if w, ok := v.zoomToWidth[zoom]; ok {
		return w, nil
	}
	return 0, &pyramid.ZoomError{Zoom: zoom}
}

// HeightForZoom returns the height of the image at the given zoom.
func (v *Image) HeightForZoom(zoom int) (int, error) {
	if h, ok := v.zoomToHeight[zoom]; ok {
		return h, nil
	}
	return 0, &pyramid.ZoomError{Zoom: zoom}
}

// LeftOverlap is always 0: vips-cut tiles do not overlap.
func (v *Image) LeftOverlap(tile int) int { return 0 }

// RightOverlap is always 0: vips-cut tiles do not overlap.
func (v *Image) RightOverlap(tile, zoom int) int { return 0 }

// TopOverlap is always 0: vips-cut tiles do not overlap.
func (v *Image) TopOverlap(tile int) int { return 0 }

// BottomOverlap is always 0: vips-cut tiles do not overlap.
func (v *Image) BottomOverlap(tile, zoom int) int { return 0 }

// BandFormat returns the channel order of loaded tiles.
func (v *Image) BandFormat() int { return pyramid.BandRGB }

// LoadTile loads the tile with the given tile numbers and zoom: the level
// is resized in libvips and the tile area extracted from it. Edge tiles
// the library pads to full tile size are clipped down to the trimmed
// extent.
func (v *Image) LoadTile(tileX, tileY, zoom int) (*raster.ImageData, error) {
	zoomedWidth, err := v.WidthForZoom(zoom)
	if err != nil {
		return nil, err
	}
	zoomedHeight, err := v.HeightForZoom(zoom)
	if err != nil {
		return nil, err
	}

	expectedWidth, err := pyramid.TileWidthAtZoom(v, tileX, zoom)
	if err != nil {
		return nil, err
	}
	expectedHeight, err := pyramid.TileHeightAtZoom(v, tileY, zoom)
	if err != nil {
		return nil, err
	}
	if expectedWidth <= 0 || expectedHeight <= 0 {
		return nil, &pyramid.FormatError{
			Message: fmt.Sprintf("tile %d,%d is outside the image at zoom %d",
				tileX, tileY, zoom),
		}
	}

	data, err := v.source.Process(bimg.Options{
		Width:      zoomedWidth,
		Height:     zoomedHeight,
		Force:      true,
		Top:        tileY * v.tileHeight,
		Left:       tileX * v.tileWidth,
		AreaWidth:  expectedWidth,
		AreaHeight: expectedHeight,
		Type:       bimg.PNG,
	})
	if err != nil {
		return nil, &pyramid.FormatError{
			Message: fmt.Sprintf("cannot extract tile %d,%d at zoom %d: %v",
				tileX, tileY, zoom, err),
		}
	}

	img, err := raster.DecodeImage(data)
	if err != nil {
		return nil, &pyramid.FormatError{
			Message: fmt.Sprintf("cannot decode tile %d,%d: %v", tileX, tileY, err),
		}
	}

	// libvips may hand back a full-size tile at the image edge; clip it
	// to the trimmed extent instead of failing.
	if img.Width == v.tileWidth && expectedWidth < v.tileWidth ||
		img.Height == v.tileHeight && expectedHeight < v.tileHeight {
		img = img.Crop(image.Rect(0, 0, expectedWidth, expectedHeight))
	}

	if img.Width != expectedWidth || img.Height != expectedHeight {
		return nil, &pyramid.FormatError{
			Message: fmt.Sprintf("tile %d,%d image size %dx%d does not match expected size %dx%d",
				tileX, tileY, img.Width, img.Height, expectedWidth, expectedHeight),
		}
	}

	return img, nil
}
