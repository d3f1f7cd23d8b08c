package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/tiff"
)

func testNRGBA(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: byte(x * 11),
				G: byte(y * 17),
				B: byte(x + y),
				A: 255,
			})
		}
	}
	return img
}

func TestDecodePNG(t *testing.T) {
	src := testNRGBA(7, 5)
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	d, err := DecodeImage(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if d.Width != 7 || d.Height != 5 || d.Depth != 4 {
		t.Fatalf("decoded %dx%dx%d, want 7x5x4", d.Width, d.Height, d.Depth)
	}
	if !bytes.Equal(d.Buf, src.Pix) {
		t.Error("decoded pixels differ from source")
	}
}

func TestDecodeGrayPNGKeepsSingleChannel(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 6, 4))
	for i := range src.Pix {
		src.Pix[i] = byte(i * 3)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	d, err := DecodeImage(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if d.Depth != 1 {
		t.Fatalf("gray depth = %d, want 1", d.Depth)
	}
	if !bytes.Equal(d.Buf, src.Pix) {
		t.Error("decoded pixels differ from source")
	}
}

func TestDecodeJPEGPacksRGB(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testNRGBA(16, 12), nil); err != nil {
		t.Fatal(err)
	}

	d, err := DecodeImage(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	// JPEG is lossy, only the geometry is exact
	if d.Width != 16 || d.Height != 12 || d.Depth != 3 {
		t.Fatalf("decoded %dx%dx%d, want 16x12x3", d.Width, d.Height, d.Depth)
	}
}

func TestDecodeTIFF(t *testing.T) {
	src := testNRGBA(9, 3)
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, src, nil); err != nil {
		t.Fatal(err)
	}

	d, err := DecodeImage(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if d.Width != 9 || d.Height != 3 || d.Depth != 4 {
		t.Fatalf("decoded %dx%dx%d, want 9x3x4", d.Width, d.Height, d.Depth)
	}
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	if _, err := DecodeImage([]byte("certainly not an image")); err == nil {
		t.Error("DecodeImage accepted garbage")
	}
	if _, err := DecodeImage(nil); err == nil {
		t.Error("DecodeImage accepted empty input")
	}
}

func TestCrop(t *testing.T) {
	d := NewImageData(8, 8, 3)
	for i := range d.Buf {
		d.Buf[i] = byte(i)
	}

	out := d.Crop(image.Rect(2, 3, 6, 7))
	if out.Width != 4 || out.Height != 4 || out.Depth != 3 {
		t.Fatalf("crop = %dx%dx%d, want 4x4x3", out.Width, out.Height, out.Depth)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			for c := 0; c < 3; c++ {
				want := d.Buf[((y+3)*8+x+2)*3+c]
				got := out.Buf[(y*4+x)*3+c]
				if got != want {
					t.Fatalf("crop pixel (%d,%d) ch %d = %d, want %d", x, y, c, got, want)
				}
			}
		}
	}
}

func TestCropClampsToBounds(t *testing.T) {
	d := NewImageData(4, 4, 1)
	out := d.Crop(image.Rect(2, 2, 10, 10))
	if out.Width != 2 || out.Height != 2 {
		t.Errorf("clamped crop = %dx%d, want 2x2", out.Width, out.Height)
	}
}

func TestEncodePNGRoundTrip(t *testing.T) {
	d := NewImageData(5, 5, 3)
	for i := range d.Buf {
		d.Buf[i] = byte(i * 2)
	}

	data, err := EncodePNG(d)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}

	back, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	// RGB is written as opaque RGBA
	if back.Width != 5 || back.Height != 5 || back.Depth != 4 {
		t.Fatalf("round trip = %dx%dx%d, want 5x5x4", back.Width, back.Height, back.Depth)
	}
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			src := (y*5 + x) * 3
			dst := (y*5 + x) * 4
			if back.Buf[dst] != d.Buf[src] ||
				back.Buf[dst+1] != d.Buf[src+1] ||
				back.Buf[dst+2] != d.Buf[src+2] ||
				back.Buf[dst+3] != 255 {
				t.Fatalf("round trip pixel (%d,%d) differs", x, y)
			}
		}
	}
}

func TestEncodePNGRejectsUnsupportedDepth(t *testing.T) {
	if _, err := EncodePNG(NewImageData(2, 2, 2)); err == nil {
		t.Error("EncodePNG accepted a 2-channel buffer")
	}
}
