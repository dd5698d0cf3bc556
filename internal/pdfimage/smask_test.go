package pdfimage

import (
	"image"
	"testing"
)

func TestApplySMaskSameDimensions(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	mask := []byte{0x00, 0x80}

	applySMask(img, mask, 2, 1)

	_, _, _, a0 := img.At(0, 0).RGBA()
	_, _, _, a1 := img.At(1, 0).RGBA()
	if byte(a0>>8) != 0x00 {
		t.Errorf("pixel 0 alpha = %#x, want 0x00", a0>>8)
	}
	if byte(a1>>8) != 0x80 {
		t.Errorf("pixel 1 alpha = %#x, want 0x80", a1>>8)
	}
}

func TestApplySMaskResizesMismatchedDimensions(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	mask := []byte{0xff, 0xff, 0xff, 0xff} // 2x2, fully opaque

	applySMask(img, mask, 2, 2)

	bounds := img.Bounds()
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if byte(a>>8) == 0 {
				t.Fatalf("pixel (%d,%d) alpha unexpectedly zero after resizing an opaque mask", x, y)
			}
		}
	}
}
