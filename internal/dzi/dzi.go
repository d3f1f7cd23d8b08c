// Package dzi reads Deep Zoom (.dzi) pyramid images: an XML manifest next
// to a <name>_files/<zoom>/<x>_<y>.<format> tile directory tree.
package dzi

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kiesman99/bigview/pkg/pyramid"
	"github.com/kiesman99/bigview/pkg/raster"
)

var zoomDirPattern = regexp.MustCompile(`^[0-9]+$`)

// manifest mirrors the .dzi XML document. Attributes are kept as strings
// so that missing and non-numeric values can be told apart.
type manifest struct {
	XMLName  xml.Name `xml:"Image"`
	Width    string   `xml:"Width,attr"`
	Height   string   `xml:"Height,attr"`
	TileSize string   `xml:"TileSize,attr"`
	Overlap  string   `xml:"Overlap,attr"`
	Format   string   `xml:"Format,attr"`
	Size     *struct {
		Width  string `xml:"Width,attr"`
		Height string `xml:"Height,attr"`
	} `xml:"Size"`
}

// Image is a Deep Zoom pyramid image. It reads and returns the metadata
// for the image and loads tiles on demand; it doesn't contain actual
// image pixels.
type Image struct {
	path      string
	filesPath string
	format    string

	width      int
	height     int
	tileWidth  int
	tileHeight int
	overlap    int

	minZoom      int
	maxZoom      int
	zoomToWidth  map[int]int
	zoomToHeight map[int]int
	zooms        []int
}

// Open reads the metadata for a Deep Zoom image. The ".dzi" extension is
// appended when missing.
func Open(path string) (*Image, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".dzi") {
		path = path + ".dzi"
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	img := &Image{
		path:      path,
		filesPath: filepath.Join(filepath.Dir(path), stem+"_files"),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, &pyramid.FormatError{Message: "no Image tag found in file"}
	}

	if m.TileSize == "" {
		return nil, &pyramid.FormatError{Message: "Image tag contains no tile size"}
	}
	if m.Format == "" {
		return nil, &pyramid.FormatError{Message: "Image tag contains no format"}
	}
	img.format = m.Format

	width := m.Width
	height := m.Height
	if m.Size != nil {
		// The optional Size child overrides the Image attributes
		if m.Size.Width != "" {
			width = m.Size.Width
		}
		if m.Size.Height != "" {
			height = m.Size.Height
		}
	}
	if width == "" {
		return nil, &pyramid.FormatError{Message: "Image tag contains no width"}
	}
	if height == "" {
		return nil, &pyramid.FormatError{Message: "Image tag contains no height"}
	}

	if img.width, err = strconv.Atoi(width); err != nil {
		return nil, &pyramid.FormatError{Message: "width is not an integer"}
	}
	if img.height, err = strconv.Atoi(height); err != nil {
		return nil, &pyramid.FormatError{Message: "height is not an integer"}
	}
	if img.tileWidth, err = strconv.Atoi(m.TileSize); err != nil {
		return nil, &pyramid.FormatError{Message: "tile size is not an integer"}
	}
	img.tileHeight = img.tileWidth
	if m.Overlap != "" {
		if img.overlap, err = strconv.Atoi(m.Overlap); err != nil {
			return nil, &pyramid.FormatError{Message: "overlap is not an integer"}
		}
	}

	if err := img.scanZoomDirs(); err != nil {
		return nil, err
	}

	return img, nil
}

// scanZoomDirs enumerates the numeric zoom-level directories and derives
// each level's extent from the full size, halving (and rounding up) per
// level going down.
func (d *Image) scanZoomDirs() error {
	entries, err := os.ReadDir(d.filesPath)
	if err != nil {
		return &pyramid.FormatError{
			Message: fmt.Sprintf("cannot enumerate zoom directories: %v", err),
		}
	}

	var dirs []int
	for _, e := range entries {
		if zoomDirPattern.MatchString(e.Name()) {
			num, _ := strconv.Atoi(e.Name())
			dirs = append(dirs, num)
		}
	}
	if len(dirs) == 0 {
		return &pyramid.FormatError{
			Message: "no zoom directories found in " + d.filesPath,
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(dirs)))
	d.maxZoom = dirs[0]
	d.minZoom = dirs[len(dirs)-1]

	d.zoomToWidth = make(map[int]int, len(dirs))
	d.zoomToHeight = make(map[int]int, len(dirs))
	zoomedWidth := d.width
	zoomedHeight := d.height
	for _, z := range dirs {
		d.zoomToWidth[z] = zoomedWidth
		d.zoomToHeight[z] = zoomedHeight
		zoomedWidth = (zoomedWidth + 1) / 2
		zoomedHeight = (zoomedHeight + 1) / 2
	}

	d.zooms = make([]int, 0, d.maxZoom+1)
	for z := d.maxZoom; z >= 0; z-- {
		d.zooms = append(d.zooms, z)
	}

	return nil
}

// MinZoom returns the minimum zoom available for this image.
func (d *Image) MinZoom() int { return d.minZoom }

// MaxZoom returns the maximum zoom available for this image.
func (d *Image) MaxZoom() int { return d.maxZoom }

// Zooms returns the available zooms, biggest to smallest.
func (d *Image) Zooms() []int { return d.zooms }

// TileWidth returns the normal tile width (same for all tiles).
func (d *Image) TileWidth() int { return d.tileWidth }

// TileHeight returns the normal tile height (same for all tiles).
func (d *Image) TileHeight() int { return d.tileHeight }

// WidthForZoom returns the width of the image at the given zoom.
func (d *Image) WidthForZoom(zoom int) (int, error) {
	if w, ok := d.zoomToWidth[zoom]; ok {
		return w, nil
	}
	return 0, &pyramid.ZoomError{Zoom: zoom}
}

// HeightForZoom returns the height of the image at the given zoom.
func (d *Image) HeightForZoom(zoom int) (int, error) {
	if h, ok := d.zoomToHeight[zoom]; ok {
		return h, nil
	}
	return 0, &pyramid.ZoomError{Zoom: zoom}
}

// LeftOverlap returns the overlap on the left side of the given tile.
func (d *Image) LeftOverlap(tile int) int {
	if tile == 0 {
		return 0
	}
	return d.overlap
}

// RightOverlap returns the overlap on the right side of the given tile.
func (d *Image) RightOverlap(tile, zoom int) int {
	width, ok := d.zoomToWidth[zoom]
	if !ok {
		return 0
	}
	lastTile := (width+d.tileWidth-1)/d.tileWidth - 1
	if lastTile < 0 {
		lastTile = 0
	}
	if tile == lastTile {
		return 0
	}
	return d.overlap
}

// TopOverlap returns the overlap on the top side of the given tile.
func (d *Image) TopOverlap(tile int) int {
	if tile == 0 {
		return 0
	}
	return d.overlap
}

// BottomOverlap returns the overlap on the bottom side of the given tile.
func (d *Image) BottomOverlap(tile, zoom int) int {
	height, ok := d.zoomToHeight[zoom]
	if !ok {
		return 0
	}
	lastTile := (height+d.tileHeight-1)/d.tileHeight - 1
	if lastTile < 0 {
		lastTile = 0
	}
	if tile == lastTile {
		return 0
	}
	return d.overlap
}

// BandFormat returns the channel order of loaded tiles.
func (d *Image) BandFormat() int { return pyramid.BandRGB }

// TilePath returns the full path of the tile file for the given tile
// numbers and zoom.
func (d *Image) TilePath(tileX, tileY, zoom int) string {
	name := fmt.Sprintf("%d_%d.%s", tileX, tileY, d.format)
	return filepath.Join(d.filesPath, strconv.Itoa(zoom), name)
}

// LoadTile loads the tile with the given tile numbers and zoom. The tile
// image on disk must match the trimmed extent computed from the metadata.
func (d *Image) LoadTile(tileX, tileY, zoom int) (*raster.ImageData, error) {
	expectedWidth, err := pyramid.TileWidthAtZoom(d, tileX, zoom)
	if err != nil {
		return nil, err
	}
	expectedHeight, err := pyramid.TileHeightAtZoom(d, tileY, zoom)
	if err != nil {
		return nil, err
	}

	path := d.TilePath(tileX, tileY, zoom)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &pyramid.FormatError{
			Message: fmt.Sprintf("cannot read tile %d,%d: %v", tileX, tileY, err),
		}
	}

	img, err := raster.DecodeImage(data)
	if err != nil {
		return nil, &pyramid.FormatError{
			Message: fmt.Sprintf("cannot decode tile %d,%d: %v", tileX, tileY, err),
		}
	}

	if img.Width != expectedWidth || img.Height != expectedHeight {
		return nil, &pyramid.FormatError{
			Message: fmt.Sprintf("tile %d,%d image size %dx%d does not match expected size %dx%d",
				tileX, tileY, img.Width, img.Height, expectedWidth, expectedHeight),
		}
	}

	return img, nil
}
