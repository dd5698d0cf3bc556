package pdfimage

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// applyTransform warps img by the rotation/mirroring component of
// matrix, centered on the image, using bilinear resampling. The scale
// component of the CTM is discarded — img is already decoded at its
// native pixel dimensions, and pairing that with the CTM's own scale
// would double-apply it.
func applyTransform(img *image.RGBA, matrix [6]float64) *image.RGBA {
	a, b, c, d := matrix[0], matrix[1], matrix[2], matrix[3]

	colALen := math.Hypot(a, b)
	colBLen := math.Hypot(c, d)
	if colALen == 0 {
		colALen = 1
	}
	if colBLen == 0 {
		colBLen = 1
	}
	na, nb := a/colALen, b/colALen
	nc, nd := c/colBLen, d/colBLen

	bounds := img.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	cx, cy := w/2, h/2

	// Center the normalized rotation/mirror matrix on the image:
	// translate to origin, rotate/mirror, translate back.
	m := f64.Aff3{
		na, nc, cx - na*cx - nc*cy,
		nb, nd, cy - nb*cx - nd*cy,
	}

	dst := image.NewRGBA(bounds)
	draw.BiLinear.Transform(dst, m, img, bounds, draw.Src, nil)
	return dst
}
