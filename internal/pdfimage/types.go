// Package pdfimage extracts the raster images visible on a PDF page,
// correctly cropped, oriented, and transparency-composited, tagged as
// individual, background, or region_render artwork.
//
// Three narrow capability interfaces stand in for the external PDF
// engines the pipeline needs: RasterEngine decodes per-page image
// surfaces (a poppler-shaped capability), ContentEngine reports
// per-page content-object bounds and rasterises whole pages at a given
// DPI (a pdfium-shaped capability), and ContentStreamReader recovers
// the CTM/clip/SMask history of each image draw from the page content
// stream (a qpdf-shaped capability). Production wiring shells out to
// real command-line tools; everything downstream of these interfaces
// (coordinate fixing, background detection, overlap grouping, CTM
// warping, SMask compositing) is pure Go and engine-agnostic.
package pdfimage

import (
	"context"
	"image"
)

// Rectangle is an axis-aligned box in page-space points, origin
// bottom-left, Y increasing upward.
type Rectangle struct {
	X1, Y1, X2, Y2 float64
}

// Width returns the rectangle's absolute width.
func (r Rectangle) Width() float64 { return absF(r.X2 - r.X1) }

// Height returns the rectangle's absolute height.
func (r Rectangle) Height() float64 { return absF(r.Y2 - r.Y1) }

// Area returns the rectangle's area.
func (r Rectangle) Area() float64 { return r.Width() * r.Height() }

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Intersects reports whether r and o share any area, expanded by pad
// points on every side (pad=0 for a strict intersection test, >0 for
// an adjacency test).
func (r Rectangle) Intersects(o Rectangle, pad float64) bool {
	return r.X1-pad < o.X2+pad && r.X2+pad > o.X1-pad &&
		r.Y1-pad < o.Y2+pad && r.Y2+pad > o.Y1-pad
}

// Union returns the smallest rectangle containing both r and o.
func (r Rectangle) Union(o Rectangle) Rectangle {
	return Rectangle{
		X1: minF(r.X1, o.X1),
		Y1: minF(r.Y1, o.Y1),
		X2: maxF(r.X2, o.X2),
		Y2: maxF(r.Y2, o.Y2),
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ImageMapping is one raster image placement reported by the
// RasterEngine for a page: an opaque image id, its page-space bounds,
// and the decoded pixel surface.
type ImageMapping struct {
	ImageID int
	Area    Rectangle

	Width, Height int
	Stride        int
	HasAlpha      bool
	IsGrayscale   bool
	// AlreadyRGBA marks SurfaceData as already straight-alpha RGBA
	// (Stride == Width*4), produced by a CLI adapter that shells out to
	// a tool which decodes the image itself (e.g. `pdfimages -png`)
	// rather than handing back a raw Cairo surface.
	AlreadyRGBA bool
	// SurfaceData is the raw decoded surface, laid out per Stride with
	// the format implied by HasAlpha/IsGrayscale/AlreadyRGBA (see
	// conversion.go).
	SurfaceData []byte

	// matrix/hasMatrix and smask* are populated by
	// applyMatchedTransform once a matching ImageTransform is found;
	// they drive the CTM warp and SMask compositing steps in save.go.
	matrix      [6]float64
	hasMatrix   bool
	smaskData   []byte
	smaskWidth  int
	smaskHeight int
}

// PageBoxes reports a page's MediaBox and CropBox, in page points.
type PageBoxes struct {
	MediaBox Rectangle
	CropBox  Rectangle
}

// PdfiumImageInfo is one image bound reported by the ContentEngine,
// used as a coordinate-fixing fallback when the RasterEngine's bounds
// are unusable.
type PdfiumImageInfo struct {
	Area          Rectangle
	Width, Height int
}

// ImageTransform is the cumulative CTM (and any clip/SMask) in effect
// when an XObject was drawn, recovered from the page content stream.
type ImageTransform struct {
	XObjectName string
	// Matrix is [a, b, c, d, e, f] per the PDF content-stream `cm`
	// operator convention.
	Matrix [6]float64

	ExpectedWidth, ExpectedHeight int

	// ComputedBounds, if present, is the axis-aligned bbox of the unit
	// square under Matrix, in page space.
	ComputedBounds    Rectangle
	HasComputedBounds bool

	ClipRect    Rectangle
	HasClipRect bool

	SMaskData             []byte
	SMaskWidth, SMaskHeight int
	HasSMask              bool
}

// RasterEngine decodes per-page raster image placements and surfaces
// (an "E-poppler" capability).
type RasterEngine interface {
	PageImages(ctx context.Context, path string, page int) ([]ImageMapping, error)
	PageCount(ctx context.Context, path string) (int, error)
	PageSize(ctx context.Context, path string, page int) (w, h float64, err error)
	PageBoxes(ctx context.Context, path string, page int) (PageBoxes, error)
}

// ContentEngine reports per-page content-object bounds and rasterises
// whole pages at a target DPI (an "E-pdfium" capability).
type ContentEngine interface {
	PageRegions(ctx context.Context, path string, page int) (text, paths []Rectangle, images []PdfiumImageInfo, err error)
	RasterizePage(ctx context.Context, path string, page int, dpi float64) (image.Image, error)
}

// ContentStreamReader recovers the CTM/clip/SMask history of every
// image draw in a PDF's content streams (a qpdf-shaped capability).
type ContentStreamReader interface {
	ImageTransforms(ctx context.Context, path string) (map[int][]ImageTransform, error)
}
