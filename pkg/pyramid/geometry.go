package pyramid

// Tile geometry shared by all pyramid formats. Everything here is derived
// from the Image metadata: tile size, per-edge overlap and level extents.

// TilesAcross returns the number of tiles in the x direction at the given
// zoom. Always at least 1, even when the image is narrower than a tile.
func TilesAcross(img Image, zoom int) (int, error) {
	width, err := img.WidthForZoom(zoom)
	if err != nil {
		return 0, err
	}
	tiles := (width + img.TileWidth() - 1) / img.TileWidth()
	if tiles < 1 {
		return 1, nil
	}
	return tiles, nil
}

// TilesDown returns the number of tiles in the y direction at the given
// zoom.
func TilesDown(img Image, zoom int) (int, error) {
	height, err := img.HeightForZoom(zoom)
	if err != nil {
		return 0, err
	}
	tiles := (height + img.TileHeight() - 1) / img.TileHeight()
	if tiles < 1 {
		return 1, nil
	}
	return tiles, nil
}

// XToTile returns the tile column containing the given x coordinate in the
// full image. Integer division keeps tile boundaries exact, so no rounding
// epsilon is needed.
func XToTile(img Image, x int) int {
	return floorDiv(x, img.TileWidth())
}

// YToTile returns the tile row containing the given y coordinate in the
// full image.
func YToTile(img Image, y int) int {
	return floorDiv(y, img.TileHeight())
}

// TileStartX returns the x coordinate of the top-left corner of the given
// tile column, including the left overlap pixels.
func TileStartX(img Image, tile int) int {
	return tile*img.TileWidth() - img.LeftOverlap(tile)
}

// TileStartY returns the y coordinate of the top-left corner of the given
// tile row, including the top overlap pixels.
func TileStartY(img Image, tile int) int {
	return tile*img.TileHeight() - img.TopOverlap(tile)
}

// TileEndXPlusOne returns 1 pixel beyond the right edge of the given tile
// column at the given zoom, including overlap and trimmed to the image
// extent.
func TileEndXPlusOne(img Image, tile, zoom int) (int, error) {
	width, err := img.WidthForZoom(zoom)
	if err != nil {
		return 0, err
	}
	end := TileStartX(img, tile) + img.TileWidth() +
		img.LeftOverlap(tile) + img.RightOverlap(tile, zoom)
	if end > width {
		end = width
	}
	return end, nil
}

// TileEndYPlusOne returns 1 pixel beyond the bottom edge of the given tile
// row at the given zoom, including overlap and trimmed to the image
// extent.
func TileEndYPlusOne(img Image, tile, zoom int) (int, error) {
	height, err := img.HeightForZoom(zoom)
	if err != nil {
		return 0, err
	}
	end := TileStartY(img, tile) + img.TileHeight() +
		img.TopOverlap(tile) + img.BottomOverlap(tile, zoom)
	if end > height {
		end = height
	}
	return end, nil
}

// TileWidthAtZoom returns the width of the given tile column at the given
// zoom, including overlap, trimmed if necessary to the image size.
func TileWidthAtZoom(img Image, tile, zoom int) (int, error) {
	end, err := TileEndXPlusOne(img, tile, zoom)
	if err != nil {
		return 0, err
	}
	return end - TileStartX(img, tile), nil
}

// TileHeightAtZoom returns the height of the given tile row at the given
// zoom, including overlap, trimmed if necessary to the image size.
func TileHeightAtZoom(img Image, tile, zoom int) (int, error) {
	end, err := TileEndYPlusOne(img, tile, zoom)
	if err != nil {
		return 0, err
	}
	return end - TileStartY(img, tile), nil
}

// FitToViewport returns the zoom, width and height of the biggest zoom
// that completely fits within the given viewport size.
//
// If none fit, the smallest zoom is returned; its width and height may be
// bigger than the viewport. Note the deliberate asymmetry between the
// width (<=) and height (<) comparisons, kept from the original format
// definition.
func FitToViewport(img Image, viewportWidth, viewportHeight int) (zoom, width, height int) {
	for _, z := range img.Zooms() {
		w, err := img.WidthForZoom(z)
		if err != nil {
			continue // skip any zooms that don't exist
		}
		h, err := img.HeightForZoom(z)
		if err != nil {
			continue
		}
		zoom, width, height = z, w, h
		if w <= viewportWidth && h < viewportHeight {
			return zoom, width, height
		}
	}
	// fallback - smallest zoom, may be bigger than the viewport
	return zoom, width, height
}

// floorDiv divides rounding toward negative infinity, so coordinates left
// of the image map to negative tile numbers.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
