package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// ImageData holds decoded image data as a packed pixel buffer.
// Buf contains Depth bytes per pixel, row after row with no padding.
type ImageData struct {
	Buf    []byte
	Width  int
	Height int
	Depth  int // channels: 1=grayscale, 3=RGB, 4=RGBA
}

// NewImageData allocates a zero-filled buffer with the given geometry.
func NewImageData(width, height, depth int) *ImageData {
	return &ImageData{
		Buf:    make([]byte, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// DecodeImage detects image format and decodes
func DecodeImage(data []byte) (*ImageData, error) {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x89, 0x50, 0x4E, 0x47}):
		return readPNG(data)
	case len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFF, 0xD8}):
		return readJPEG(data)
	case len(data) >= 4 && (bytes.Equal(data[:4], []byte("II*\x00")) || bytes.Equal(data[:4], []byte("MM\x00*"))):
		return readTIFF(data)
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return readWebP(data)
	}

	return nil, fmt.Errorf("unrecognized image format")
}

// readPNG decodes a PNG image
func readPNG(data []byte) (*ImageData, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return FromImage(img), nil
}

// readJPEG decodes a JPEG image
func readJPEG(data []byte) (*ImageData, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return FromImage(img), nil
}

// readTIFF decodes a TIFF image
func readTIFF(data []byte) (*ImageData, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return FromImage(img), nil
}

// readWebP decodes a WebP image
func readWebP(data []byte) (*ImageData, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return FromImage(img), nil
}

// FromImage converts a Go image to ImageData. Grayscale images keep a
// single channel, images with an alpha channel keep four, everything
// else (JPEG YCbCr in particular) is packed as RGB.
func FromImage(img image.Image) *ImageData {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	switch src := img.(type) {
	case *image.Gray:
		buf := make([]byte, width*height)
		for y := 0; y < height; y++ {
			copy(buf[y*width:(y+1)*width],
				src.Pix[y*src.Stride:y*src.Stride+width])
		}
		return &ImageData{Buf: buf, Width: width, Height: height, Depth: 1}

	case *image.NRGBA:
		buf := make([]byte, width*height*4)
		for y := 0; y < height; y++ {
			copy(buf[y*width*4:(y+1)*width*4],
				src.Pix[y*src.Stride:y*src.Stride+width*4])
		}
		return &ImageData{Buf: buf, Width: width, Height: height, Depth: 4}

	case *image.RGBA:
		buf := make([]byte, width*height*4)
		for y := 0; y < height; y++ {
			copy(buf[y*width*4:(y+1)*width*4],
				src.Pix[y*src.Stride:y*src.Stride+width*4])
		}
		return &ImageData{Buf: buf, Width: width, Height: height, Depth: 4}
	}

	// Generic fallback: pack as RGB
	buf := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := (y*width + x) * 3
			buf[idx] = byte(r >> 8)
			buf[idx+1] = byte(g >> 8)
			buf[idx+2] = byte(b >> 8)
		}
	}

	return &ImageData{Buf: buf, Width: width, Height: height, Depth: 3}
}

// ToImage converts the buffer back to a Go image for encoding.
func (d *ImageData) ToImage() (image.Image, error) {
	switch d.Depth {
	case 1:
		img := image.NewGray(image.Rect(0, 0, d.Width, d.Height))
		for y := 0; y < d.Height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+d.Width],
				d.Buf[y*d.Width:(y+1)*d.Width])
		}
		return img, nil
	case 3:
		img := image.NewNRGBA(image.Rect(0, 0, d.Width, d.Height))
		for y := 0; y < d.Height; y++ {
			for x := 0; x < d.Width; x++ {
				src := (y*d.Width + x) * 3
				img.SetNRGBA(x, y, color.NRGBA{
					R: d.Buf[src],
					G: d.Buf[src+1],
					B: d.Buf[src+2],
					A: 255,
				})
			}
		}
		return img, nil
	case 4:
		img := image.NewNRGBA(image.Rect(0, 0, d.Width, d.Height))
		for y := 0; y < d.Height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+d.Width*4],
				d.Buf[y*d.Width*4:(y+1)*d.Width*4])
		}
		return img, nil
	}

	return nil, fmt.Errorf("unsupported channel count %d", d.Depth)
}

// Crop returns a copy of the given sub-rectangle of the buffer.
func (d *ImageData) Crop(r image.Rectangle) *ImageData {
	r = r.Intersect(image.Rect(0, 0, d.Width, d.Height))
	out := NewImageData(r.Dx(), r.Dy(), d.Depth)
	for y := 0; y < r.Dy(); y++ {
		src := ((r.Min.Y+y)*d.Width + r.Min.X) * d.Depth
		copy(out.Buf[y*out.Width*out.Depth:(y+1)*out.Width*out.Depth],
			d.Buf[src:src+r.Dx()*d.Depth])
	}
	return out
}

// EncodePNG encodes the buffer as PNG
func EncodePNG(d *ImageData) ([]byte, error) {
	img, err := d.ToImage()
	if err != nil {
		return nil, err
	}

	var output bytes.Buffer
	if err := png.Encode(&output, img); err != nil {
		return nil, err
	}

	return output.Bytes(), nil
}
