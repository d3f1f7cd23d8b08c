// Package view pages tiles of a pyramid image in and out of a bounded
// canvas buffer that follows a viewport.
//
// The canvas is a tile-aligned superset of the viewport with a margin of
// extra tiles on every side, so small scrolls only move the viewport
// offset or shift already-loaded pixels and fetch the newly exposed
// tiles. Only zoom changes and resizes reload the canvas from scratch.
package view

import (
	"image"

	"github.com/kiesman99/bigview/pkg/pyramid"
	"github.com/kiesman99/bigview/pkg/raster"
)

// ZoomFit selects the biggest zoom that fits the viewport on Load.
const ZoomFit = -1

// DefaultExtraTiles is the tile margin kept loaded on each side of the
// viewport.
const DefaultExtraTiles = 2

// View owns the canvas buffer for one open pyramid image.
//
// The outside box is the canvas loaded into pixels, the inside box is the
// viewport displaying the image:
//
//	canvas origin
//	+-----------------------------------------------+
//	|                                               |
//	|   viewportX,viewportY                         |
//	|   +---------------------+                     |
//	|   |                     |                     |
//	|   |                     |                     |
//	|   +---------------------+                     |
//	|            viewportX+viewportWidth,           |
//	|            viewportY+viewportHeight           |
//	+-----------------------------------------------+
//
// fullX/fullY track the viewport top-left on the full image at the
// current zoom; the tile window [tileXStart,tileXEnd)x[tileYStart,
// tileYEnd) is the tile range represented in the canvas.
type View struct {
	img        pyramid.Image
	extraTiles int

	viewportWidth  int
	viewportHeight int

	zoom         int
	zoomedWidth  int
	zoomedHeight int

	canvasWidth         int
	canvasHeight        int
	tilesAcrossInCanvas int
	tilesDownInCanvas   int

	tileXStart int
	tileYStart int
	tileXEnd   int
	tileYEnd   int

	viewportX int // viewport top-left on the canvas
	viewportY int
	fullX     int // viewport top-left on the full image
	fullY     int

	pixels *raster.ImageData
}

// New creates a view over the given image. extraTiles is the number of
// extra tiles kept loaded on each side of the viewport; pass
// DefaultExtraTiles unless you have a reason not to.
func New(img pyramid.Image, extraTiles int) *View {
	if extraTiles < 0 {
		extraTiles = DefaultExtraTiles
	}
	return &View{
		img:        img,
		extraTiles: extraTiles,
		zoom:       ZoomFit,
	}
}

// SetViewportSize sets the size of the viewport the image will be
// displayed in. This doesn't reload the canvas; call Load or Resize.
func (v *View) SetViewportSize(width, height int) {
	v.viewportWidth = width
	v.viewportHeight = height
}

// ViewportSize returns the viewport width and height.
func (v *View) ViewportSize() (int, int) {
	return v.viewportWidth, v.viewportHeight
}

// SetZoom sets the zoom for the next Load. ZoomFit picks the biggest zoom
// that fits the viewport; anything else is clamped into the image's zoom
// range. This doesn't reload the canvas.
func (v *View) SetZoom(zoom int) {
	if zoom != ZoomFit {
		if zoom < v.img.MinZoom() {
			zoom = v.img.MinZoom()
		}
		if zoom > v.img.MaxZoom() {
			zoom = v.img.MaxZoom()
		}
	}
	v.zoom = zoom
}

// Zoom returns the current zoom level.
func (v *View) Zoom() int { return v.zoom }

// MinZoom returns the most zoomed out zoom available in the image.
func (v *View) MinZoom() int { return v.img.MinZoom() }

// MaxZoom returns the most zoomed in zoom available in the image.
func (v *View) MaxZoom() int { return v.img.MaxZoom() }

// BandFormat returns the channel order of the canvas pixels, for the
// renderer.
func (v *View) BandFormat() int { return v.img.BandFormat() }

// ViewportOnImage returns the viewport top-left on the full image at the
// current zoom.
func (v *View) ViewportOnImage() (int, int) {
	return v.fullX, v.fullY
}

// Load loads the canvas from scratch at the current zoom. When center is
// non-nil the viewport is centered on that full-image coordinate first;
// either way the viewport is clamped into the image extent (an image
// smaller than the viewport sits at 0 and overflows).
func (v *View) Load(center *image.Point) error {
	if v.viewportWidth == 0 || v.viewportHeight == 0 {
		return nil
	}

	if v.zoom != ZoomFit {
		width, err := v.img.WidthForZoom(v.zoom)
		if err != nil {
			return err
		}
		height, err := v.img.HeightForZoom(v.zoom)
		if err != nil {
			return err
		}
		v.zoomedWidth = width
		v.zoomedHeight = height
	}

	if center != nil {
		v.fullX = center.X - v.viewportWidth/2
		v.fullY = center.Y - v.viewportHeight/2
	}
	if v.zoomedWidth > 0 && v.fullX+v.viewportWidth >= v.zoomedWidth {
		v.fullX = v.zoomedWidth - v.viewportWidth
	}
	if v.zoomedHeight > 0 && v.fullY+v.viewportHeight >= v.zoomedHeight {
		v.fullY = v.zoomedHeight - v.viewportHeight
	}
	if v.fullX < 0 {
		v.fullX = 0
	}
	if v.fullY < 0 {
		v.fullY = 0
	}

	if v.zoom == ZoomFit {
		v.zoom, v.zoomedWidth, v.zoomedHeight =
			pyramid.FitToViewport(v.img, v.viewportWidth, v.viewportHeight)
	}

	tileWidth := v.img.TileWidth()
	tileHeight := v.img.TileHeight()

	// Tiles covering the viewport plus the margin on each side, whether
	// or not this goes beyond the image.
	v.tilesAcrossInCanvas = (v.viewportWidth+tileWidth-1)/tileWidth + 2*v.extraTiles
	v.tilesDownInCanvas = (v.viewportHeight+tileHeight-1)/tileHeight + 2*v.extraTiles

	v.tileXStart = pyramid.XToTile(v.img, v.fullX) - v.extraTiles
	v.tileYStart = pyramid.YToTile(v.img, v.fullY) - v.extraTiles
	v.tileXEnd = v.tileXStart + v.tilesAcrossInCanvas
	v.tileYEnd = v.tileYStart + v.tilesDownInCanvas

	v.canvasWidth = v.tilesAcrossInCanvas * tileWidth
	v.canvasHeight = v.tilesDownInCanvas * tileHeight

	if err := v.loadTiles(true, false, 0, 0, 0, 0); err != nil {
		return err
	}

	v.viewportX = v.fullX - pyramid.TileStartX(v.img, v.tileXStart)
	v.viewportY = v.fullY - pyramid.TileStartY(v.img, v.tileYStart)

	return nil
}

// Scroll drags the content by (dx,dy): the visible origin moves the
// opposite way. Returns true if tiles had to be loaded.
func (v *View) Scroll(dx, dy int) (bool, error) {
	return v.ScrollTo(v.fullX-dx, v.fullY-dy)
}

// ScrollTo scrolls so that the viewport top-left sits at the given point
// on the full image at the current zoom, clamped into the image extent.
// Already-loaded pixels are shifted in place and only tiles outside the
// old tile window are fetched. Returns true if tiles had to be loaded.
func (v *View) ScrollTo(topLeftX, topLeftY int) (bool, error) {
	if v.pixels == nil {
		return false, nil
	}

	if topLeftX+v.viewportWidth >= v.zoomedWidth {
		topLeftX = v.zoomedWidth - v.viewportWidth
	}
	if topLeftY+v.viewportHeight >= v.zoomedHeight {
		topLeftY = v.zoomedHeight - v.viewportHeight
	}
	if topLeftX < 0 {
		topLeftX = 0
	}
	if topLeftY < 0 {
		topLeftY = 0
	}

	xdiff := v.fullX - topLeftX
	ydiff := v.fullY - topLeftY
	if xdiff == 0 && ydiff == 0 {
		return false, nil
	}

	v.viewportX -= xdiff
	v.viewportY -= ydiff
	v.fullX = topLeftX
	v.fullY = topLeftY

	// Clip the viewport against the full image; the canvas-side
	// correction is applied after the partial reload. Only non-zero when
	// the image is smaller than the viewport on an axis.
	clipLeft, clipRight, clipTop, clipBottom := 0, 0, 0, 0
	if v.fullX+v.viewportWidth > v.zoomedWidth {
		clipRight = v.fullX + v.viewportWidth - v.zoomedWidth
		v.fullX = v.zoomedWidth - v.viewportWidth
	}
	if v.fullY+v.viewportHeight > v.zoomedHeight {
		clipBottom = v.fullY + v.viewportHeight - v.zoomedHeight
		v.fullY = v.zoomedHeight - v.viewportHeight
	}
	if v.fullX < 0 {
		clipLeft = -v.fullX
		v.fullX = 0
		clipRight = 0
	}
	if v.fullY < 0 {
		clipTop = -v.fullY
		v.fullY = 0
		clipBottom = 0
	}

	newTileXStart := pyramid.XToTile(v.img, v.fullX) - v.extraTiles
	newTileYStart := pyramid.YToTile(v.img, v.fullY) - v.extraTiles
	newTileXEnd := newTileXStart + v.tilesAcrossInCanvas
	newTileYEnd := newTileYStart + v.tilesDownInCanvas

	if newTileXStart == v.tileXStart && newTileYStart == v.tileYStart &&
		newTileXEnd == v.tileXEnd && newTileYEnd == v.tileYEnd {
		// Only the viewport offset moved
		return false, nil
	}

	oldTileXStart := v.tileXStart
	oldTileYStart := v.tileYStart
	oldTileXEnd := v.tileXEnd
	oldTileYEnd := v.tileYEnd

	tileWidth := v.img.TileWidth()
	tileHeight := v.img.TileHeight()

	// Tile rows/columns exposed on each side of the canvas by the window
	// move
	extraLeft, extraRight, extraTop, extraBottom := 0, 0, 0, 0
	if newTileXStart > oldTileXStart {
		extraRight = newTileXStart - oldTileXStart
	}
	if newTileYStart > oldTileYStart {
		extraBottom = newTileYStart - oldTileYStart
	}
	if newTileXEnd < oldTileXEnd {
		extraLeft = oldTileXEnd - newTileXEnd
	}
	if newTileYEnd < oldTileYEnd {
		extraTop = oldTileYEnd - newTileYEnd
	}

	copyWidth := v.canvasWidth - tileWidth*(extraLeft+extraRight)
	copyHeight := v.canvasHeight - tileHeight*(extraTop+extraBottom)
	oldPixelX, oldPixelY, newPixelX, newPixelY := 0, 0, 0, 0
	if extraBottom > 0 { // retained pixels move up
		oldPixelY = tileHeight * extraBottom
		v.viewportY -= tileHeight * extraBottom
	}
	if extraTop > 0 { // retained pixels move down
		newPixelY = tileHeight * extraTop
		v.viewportY += tileHeight * extraTop
	}
	if extraRight > 0 { // retained pixels move left
		oldPixelX = tileWidth * extraRight
		v.viewportX -= tileWidth * extraRight
	}
	if extraLeft > 0 { // retained pixels move right
		newPixelX = tileWidth * extraLeft
		v.viewportX += tileWidth * extraLeft
	}
	v.shiftCanvas(oldPixelX, oldPixelY, newPixelX, newPixelY, copyWidth, copyHeight)

	v.tileXStart = newTileXStart
	v.tileXEnd = newTileXEnd
	v.tileYStart = newTileYStart
	v.tileYEnd = newTileYEnd
	if err := v.loadTiles(false, true,
		oldTileXStart, oldTileYStart, oldTileXEnd, oldTileYEnd); err != nil {
		return false, err
	}

	if clipLeft > 0 {
		v.viewportX += clipLeft
	} else if clipRight > 0 {
		v.viewportX -= clipRight
	}
	if clipTop > 0 {
		v.viewportY += clipTop
	} else if clipBottom > 0 {
		v.viewportY -= clipBottom
	}

	return true, nil
}

// ZoomTo sets the zoom to the given level, keeping the pixel at the given
// viewport coordinate as the center of the new view, and reloads the
// canvas. Returns false without touching anything when the zoom is out of
// range or equal to the current one.
//
// The focus rescale assumes a power-of-two pyramid, which the
// pyramid.Image contract requires.
func (v *View) ZoomTo(zoom, focusX, focusY int) (bool, error) {
	if zoom < v.MinZoom() || zoom > v.MaxZoom() || zoom == v.zoom {
		return false, nil
	}

	centerX := focusX + v.fullX
	centerY := focusY + v.fullY
	zoomIncrease := zoom - v.zoom
	if zoomIncrease > 0 {
		centerX <<= zoomIncrease
		centerY <<= zoomIncrease
	} else {
		centerX >>= -zoomIncrease
		centerY >>= -zoomIncrease
	}

	v.zoom = zoom
	if err := v.Load(&image.Point{X: centerX, Y: centerY}); err != nil {
		return false, err
	}
	return true, nil
}

// Resize updates the viewport dimensions and reloads the canvas at the
// current zoom.
func (v *View) Resize(width, height int) error {
	v.viewportWidth = width
	v.viewportHeight = height
	return v.Load(nil)
}

// Visible returns the full canvas buffer and the rectangle within it that
// should be drawn in the viewport. Returns an UnsupportedLayoutError when
// the buffer's channel count cannot be displayed.
func (v *View) Visible() (*raster.ImageData, image.Rectangle, error) {
	if v.pixels == nil {
		return nil, image.Rectangle{}, nil
	}
	if d := v.pixels.Depth; d != 1 && d != 3 && d != 4 {
		return nil, image.Rectangle{}, &pyramid.UnsupportedLayoutError{Depth: d}
	}

	width := min(v.viewportWidth, v.canvasWidth)
	height := min(v.viewportHeight, v.canvasHeight)
	rect := image.Rect(v.viewportX, v.viewportY, v.viewportX+width, v.viewportY+height)
	return v.pixels, rect, nil
}

// loadTiles loads every in-range tile of the current tile window into the
// canvas. With initMatrix the canvas is reallocated, taking its channel
// count from the first tile loaded; out-of-range slots stay zero-filled.
// With skipLoaded, tiles inside the old window are left alone.
func (v *View) loadTiles(initMatrix, skipLoaded bool,
	oldTileXStart, oldTileYStart, oldTileXEnd, oldTileYEnd int) error {

	tilesAcross, err := pyramid.TilesAcross(v.img, v.zoom)
	if err != nil {
		return err
	}
	tilesDown, err := pyramid.TilesDown(v.img, v.zoom)
	if err != nil {
		return err
	}

	if initMatrix {
		v.pixels = nil
	}

	tileWidth := v.img.TileWidth()
	tileHeight := v.img.TileHeight()

	for tileY := v.tileYStart; tileY < v.tileYEnd; tileY++ {
		if tileY < 0 || tileY >= tilesDown {
			continue
		}
		topOverlap := v.img.TopOverlap(tileY)
		bottomOverlap := v.img.BottomOverlap(tileY, v.zoom)
		ypos := tileHeight * (tileY - v.tileYStart)

		for tileX := v.tileXStart; tileX < v.tileXEnd; tileX++ {
			if tileX < 0 || tileX >= tilesAcross {
				continue
			}
			if skipLoaded &&
				tileY >= oldTileYStart && tileY < oldTileYEnd &&
				tileX >= oldTileXStart && tileX < oldTileXEnd {
				// we already have this tile
				continue
			}

			leftOverlap := v.img.LeftOverlap(tileX)
			rightOverlap := v.img.RightOverlap(tileX, v.zoom)
			xpos := tileWidth * (tileX - v.tileXStart)

			tile, err := v.img.LoadTile(tileX, tileY, v.zoom)
			if err != nil {
				return err
			}

			if v.pixels == nil {
				if !initMatrix {
					continue
				}
				v.pixels = raster.NewImageData(v.canvasWidth, v.canvasHeight, tile.Depth)
			} else if tile.Depth != v.pixels.Depth {
				return &pyramid.FormatError{
					Message: "tile channel count does not match canvas",
				}
			}

			v.copyTile(tile, xpos, ypos,
				leftOverlap, topOverlap, rightOverlap, bottomOverlap)
		}
	}

	return nil
}

// copyTile writes the tile into the canvas at its tile-relative position,
// trimming the overlap borders.
func (v *View) copyTile(tile *raster.ImageData, xpos, ypos,
	leftOverlap, topOverlap, rightOverlap, bottomOverlap int) {

	depth := v.pixels.Depth
	width := tile.Width - leftOverlap - rightOverlap
	height := tile.Height - topOverlap - bottomOverlap

	for row := 0; row < height; row++ {
		src := ((topOverlap+row)*tile.Width + leftOverlap) * depth
		dst := ((ypos+row)*v.canvasWidth + xpos) * depth
		copy(v.pixels.Buf[dst:dst+width*depth], tile.Buf[src:src+width*depth])
	}
}

// shiftCanvas moves the retained copyWidth x copyHeight rectangle from
// (oldX,oldY) to (newX,newY) in place. copy has memmove semantics, so a
// horizontal shift is safe within a row; the row order follows the
// vertical shift direction so rows are never read after being written.
func (v *View) shiftCanvas(oldX, oldY, newX, newY, copyWidth, copyHeight int) {
	if v.pixels == nil || copyWidth <= 0 || copyHeight <= 0 {
		return
	}

	depth := v.pixels.Depth
	rowBytes := copyWidth * depth
	copyRow := func(row int) {
		src := ((oldY+row)*v.canvasWidth + oldX) * depth
		dst := ((newY+row)*v.canvasWidth + newX) * depth
		copy(v.pixels.Buf[dst:dst+rowBytes], v.pixels.Buf[src:src+rowBytes])
	}

	if newY <= oldY {
		for row := 0; row < copyHeight; row++ {
			copyRow(row)
		}
	} else {
		for row := copyHeight - 1; row >= 0; row-- {
			copyRow(row)
		}
	}
}
