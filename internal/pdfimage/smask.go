package pdfimage

import (
	"image"

	"golang.org/x/image/draw"
)

// applySMask replaces img's alpha channel with a soft mask. maskData
// is a grayscale buffer (one byte per pixel, maskWidth*maskHeight
// long); if its dimensions don't match img's, it's resized first with
// a high-quality resampling filter.
func applySMask(img *image.RGBA, maskData []byte, maskWidth, maskHeight int) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	mask := maskData
	if maskWidth != w || maskHeight != h {
		mask = resizeGrayscale(maskData, maskWidth, maskHeight, w, h)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if idx >= len(mask) {
				continue
			}
			i := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			img.Pix[i+3] = mask[idx]
		}
	}
}

// resizeGrayscale resamples a single-channel grayscale buffer to
// dstW x dstH using the highest-quality convolution kernel x/image
// offers, in lieu of a dedicated Lanczos implementation.
func resizeGrayscale(src []byte, srcW, srcH, dstW, dstH int) []byte {
	srcImg := image.NewGray(image.Rect(0, 0, srcW, srcH))
	n := srcW * srcH
	if len(src) < n {
		n = len(src)
	}
	copy(srcImg.Pix, src[:n])

	dstImg := image.NewGray(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dstImg, dstImg.Bounds(), srcImg, srcImg.Bounds(), draw.Over, nil)

	return dstImg.Pix
}
