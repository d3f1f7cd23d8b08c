package pyramid

import (
	"errors"
	"testing"

	"github.com/kiesman99/bigview/pkg/raster"
)

// fakePyramid implements Image with Deep Zoom overlap semantics: a fixed
// overlap on every tile edge except the ones touching the image border.
type fakePyramid struct {
	tileW, tileH int
	overlap      int
	widths       map[int]int
	heights      map[int]int
	minZ, maxZ   int
}

func (f *fakePyramid) MinZoom() int { return f.minZ }
func (f *fakePyramid) MaxZoom() int { return f.maxZ }

func (f *fakePyramid) Zooms() []int {
	zooms := make([]int, 0, f.maxZ-f.minZ+1)
	for z := f.maxZ; z >= f.minZ; z-- {
		zooms = append(zooms, z)
	}
	return zooms
}

func (f *fakePyramid) TileWidth() int  { return f.tileW }
func (f *fakePyramid) TileHeight() int { return f.tileH }

func (f *fakePyramid) WidthForZoom(zoom int) (int, error) {
	if w, ok := f.widths[zoom]; ok {
		return w, nil
	}
	return 0, &ZoomError{Zoom: zoom}
}

func (f *fakePyramid) HeightForZoom(zoom int) (int, error) {
	if h, ok := f.heights[zoom]; ok {
		return h, nil
	}
	return 0, &ZoomError{Zoom: zoom}
}

func (f *fakePyramid) LeftOverlap(tile int) int {
	if tile == 0 {
		return 0
	}
	return f.overlap
}

func (f *fakePyramid) RightOverlap(tile, zoom int) int {
	width, ok := f.widths[zoom]
	if !ok {
		return 0
	}
	lastTile := (width+f.tileW-1)/f.tileW - 1
	if tile == lastTile {
		return 0
	}
	return f.overlap
}

func (f *fakePyramid) TopOverlap(tile int) int {
	if tile == 0 {
		return 0
	}
	return f.overlap
}

func (f *fakePyramid) BottomOverlap(tile, zoom int) int {
	height, ok := f.heights[zoom]
	if !ok {
		return 0
	}
	lastTile := (height+f.tileH-1)/f.tileH - 1
	if tile == lastTile {
		return 0
	}
	return f.overlap
}

func (f *fakePyramid) LoadTile(tileX, tileY, zoom int) (*raster.ImageData, error) {
	return nil, &FormatError{Message: "no tiles in fake"}
}

func (f *fakePyramid) BandFormat() int { return BandRGB }

// newDeepZoomFake builds a 14-level pyramid with 254px tiles and 1px
// overlap, the layout a typical Deep Zoom export produces. Level extents
// halve with rounding up.
func newDeepZoomFake() *fakePyramid {
	f := &fakePyramid{
		tileW: 254, tileH: 254,
		overlap: 1,
		widths:  map[int]int{},
		heights: map[int]int{},
		minZ:    0, maxZ: 13,
	}
	w, h := 7026, 9221
	for z := 13; z >= 0; z-- {
		f.widths[z] = w
		f.heights[z] = h
		w = (w + 1) / 2
		h = (h + 1) / 2
	}
	return f
}

func TestTileStartIncludesOverlap(t *testing.T) {
	f := newDeepZoomFake()

	if got := TileStartX(f, 0); got != 0 {
		t.Errorf("TileStartX(0) = %d, want 0", got)
	}
	// Tile 1 starts one overlap pixel before the 254 boundary
	if got := TileStartX(f, 1); got != 253 {
		t.Errorf("TileStartX(1) = %d, want 253", got)
	}
	if got := TileStartY(f, 2); got != 507 {
		t.Errorf("TileStartY(2) = %d, want 507", got)
	}
}

func TestTileWidthAtZoomTrimsEdges(t *testing.T) {
	f := newDeepZoomFake()

	// 7026 / 254 = 27.66 tiles at full resolution
	tiles, err := TilesAcross(f, 13)
	if err != nil {
		t.Fatalf("TilesAcross failed: %v", err)
	}
	if tiles != 28 {
		t.Fatalf("TilesAcross(13) = %d, want 28", tiles)
	}

	// First tile has only the right overlap
	w, err := TileWidthAtZoom(f, 0, 13)
	if err != nil {
		t.Fatalf("TileWidthAtZoom failed: %v", err)
	}
	if w != 255 {
		t.Errorf("tile 0 width = %d, want 255", w)
	}

	// Interior tiles carry overlap on both sides
	w, err = TileWidthAtZoom(f, 1, 13)
	if err != nil {
		t.Fatalf("TileWidthAtZoom failed: %v", err)
	}
	if w != 256 {
		t.Errorf("tile 1 width = %d, want 256", w)
	}

	// Last tile is clipped to the image edge: starts at 27*254-1 = 6857,
	// image is 7026 wide
	w, err = TileWidthAtZoom(f, 27, 13)
	if err != nil {
		t.Fatalf("TileWidthAtZoom failed: %v", err)
	}
	if w != 7026-6857 {
		t.Errorf("tile 27 width = %d, want %d", w, 7026-6857)
	}
	if got := f.RightOverlap(27, 13); got != 0 {
		t.Errorf("RightOverlap(last tile) = %d, want 0", got)
	}
}

func TestTileEndClampsToLevelExtent(t *testing.T) {
	f := &fakePyramid{
		tileW: 128, tileH: 128,
		widths:  map[int]int{},
		heights: map[int]int{},
		minZ:    0, maxZ: 6,
	}
	for z := 0; z <= 6; z++ {
		f.widths[z] = 82 << z
		f.heights[z] = 60 << z
	}

	// No overlap: tile boundaries fall on multiples of the tile size
	if got := TileStartX(f, 1); got != 128 {
		t.Errorf("TileStartX(1) = %d, want 128", got)
	}

	// Level 4 is 1312 wide; the last tile (10) ends at the level extent
	end, err := TileEndXPlusOne(f, 10, 4)
	if err != nil {
		t.Fatalf("TileEndXPlusOne failed: %v", err)
	}
	if end != 1312 {
		t.Errorf("TileEndXPlusOne(10, 4) = %d, want 1312", end)
	}

	tiles, err := TilesAcross(f, 0)
	if err != nil {
		t.Fatalf("TilesAcross failed: %v", err)
	}
	if tiles != 1 {
		t.Errorf("TilesAcross(0) = %d, want 1 (82 < 128)", tiles)
	}
}

func TestTilesAcrossNeverZero(t *testing.T) {
	f := &fakePyramid{
		tileW: 128, tileH: 128,
		widths:  map[int]int{0: 0},
		heights: map[int]int{0: 0},
		minZ:    0, maxZ: 0,
	}
	tiles, err := TilesAcross(f, 0)
	if err != nil {
		t.Fatalf("TilesAcross failed: %v", err)
	}
	if tiles != 1 {
		t.Errorf("TilesAcross of empty level = %d, want 1", tiles)
	}
}

func TestTilesAcrossPropagatesZoomError(t *testing.T) {
	f := newDeepZoomFake()

	_, err := TilesAcross(f, 99)
	var zoomErr *ZoomError
	if !errors.As(err, &zoomErr) {
		t.Fatalf("TilesAcross(99) error = %v, want ZoomError", err)
	}
	if zoomErr.Zoom != 99 {
		t.Errorf("reported zoom = %d, want 99", zoomErr.Zoom)
	}
	if zoomErr.Error() != "invalid zoom 99 requested" {
		t.Errorf("unexpected message: %q", zoomErr.Error())
	}
}

func TestCoordinateToTile(t *testing.T) {
	f := newDeepZoomFake()

	cases := []struct {
		x, tile int
	}{
		{0, 0},
		{253, 0},
		{254, 1},
		{507, 1},
		{508, 2},
		{-1, -1},
		{-254, -1},
		{-255, -2},
	}
	for _, c := range cases {
		if got := XToTile(f, c.x); got != c.tile {
			t.Errorf("XToTile(%d) = %d, want %d", c.x, got, c.tile)
		}
		if got := YToTile(f, c.x); got != c.tile {
			t.Errorf("YToTile(%d) = %d, want %d", c.x, got, c.tile)
		}
	}
}

func TestFitToViewportHeightComparisonIsStrict(t *testing.T) {
	f := &fakePyramid{
		tileW: 128, tileH: 128,
		widths:  map[int]int{},
		heights: map[int]int{},
		minZ:    0, maxZ: 6,
	}
	for z := 0; z <= 6; z++ {
		f.widths[z] = 82 << z
		f.heights[z] = 60 << z
	}

	// Level 2 is 328x240. The width fits exactly, but the height
	// comparison is strict, so the fit falls through to level 1.
	zoom, width, height := FitToViewport(f, 328, 240)
	if zoom != 1 || width != 164 || height != 120 {
		t.Errorf("FitToViewport(328, 240) = %d (%dx%d), want 1 (164x120)",
			zoom, width, height)
	}

	// One more pixel of viewport height and level 2 fits.
	zoom, width, height = FitToViewport(f, 328, 241)
	if zoom != 2 || width != 328 || height != 240 {
		t.Errorf("FitToViewport(328, 241) = %d (%dx%d), want 2 (328x240)",
			zoom, width, height)
	}
}

func TestFitToViewportFallsBackToSmallestZoom(t *testing.T) {
	f := &fakePyramid{
		tileW: 128, tileH: 128,
		widths:  map[int]int{},
		heights: map[int]int{},
		minZ:    0, maxZ: 6,
	}
	for z := 0; z <= 6; z++ {
		f.widths[z] = 82 << z
		f.heights[z] = 60 << z
	}

	zoom, width, height := FitToViewport(f, 10, 10)
	if zoom != 0 || width != 82 || height != 60 {
		t.Errorf("fallback = %d (%dx%d), want 0 (82x60)", zoom, width, height)
	}
}

func TestErrorMessages(t *testing.T) {
	formatErr := &FormatError{Message: "no Image tag found in file"}
	if formatErr.Error() != "no Image tag found in file" {
		t.Errorf("unexpected FormatError message: %q", formatErr.Error())
	}

	layoutErr := &UnsupportedLayoutError{Depth: 2}
	if layoutErr.Error() != "unsupported channel count 2" {
		t.Errorf("unexpected UnsupportedLayoutError message: %q", layoutErr.Error())
	}
}
