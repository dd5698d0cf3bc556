package pdfimage

import "math"

// computeBoundsFromCTM transforms the corners of the unit square
// through matrix (the PDF `cm` convention [a b c d e f]) and returns
// the axis-aligned bounding box of the result, in page space.
func computeBoundsFromCTM(matrix [6]float64) Rectangle {
	a, b, c, d, e, f := matrix[0], matrix[1], matrix[2], matrix[3], matrix[4], matrix[5]

	corners := [4][2]float64{
		{0, 0}, {1, 0}, {0, 1}, {1, 1},
	}

	r := Rectangle{X1: math.Inf(1), Y1: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}
	for _, corner := range corners {
		x := a*corner[0] + c*corner[1] + e
		y := b*corner[0] + d*corner[1] + f
		r.X1 = minF(r.X1, x)
		r.Y1 = minF(r.Y1, y)
		r.X2 = maxF(r.X2, x)
		r.Y2 = maxF(r.Y2, y)
	}
	return r
}

// needsTransformation reports whether matrix carries rotation or
// mirroring beyond pure axis-aligned scale/translate.
func needsTransformation(matrix [6]float64) bool {
	a, b, c, d := matrix[0], matrix[1], matrix[2], matrix[3]
	rotated := absF(b) > rotationEpsilon || absF(c) > rotationEpsilon
	mirrored := a < 0 || d < 0
	return rotated || mirrored
}

// findMatchingTransform returns the first transform (in page order)
// whose expected dimensions match boundsWidth/boundsHeight within
// transformDimensionTolerance, and whose position matches area under
// at least one of: center proximity, an x-edge and y-edge pair both
// within tolerance, or a very-close x1 (rotated, mis-reported-Y case).
func findMatchingTransform(page int, boundsWidth, boundsHeight float64, area Rectangle, transforms map[int][]ImageTransform) (ImageTransform, bool) {
	candidates := transforms[page]
	for _, t := range candidates {
		if !dimensionsMatch(t.ExpectedWidth, t.ExpectedHeight, boundsWidth, boundsHeight) {
			continue
		}
		if positionMatches(t, area) {
			return t, true
		}
	}
	return ImageTransform{}, false
}

func dimensionsMatch(expectedW, expectedH int, boundsWidth, boundsHeight float64) bool {
	popplerW := maxF(boundsWidth, 1)
	popplerH := maxF(boundsHeight, 1)
	dw := absF(float64(expectedW)-boundsWidth) / popplerW
	dh := absF(float64(expectedH)-boundsHeight) / popplerH
	return dw < transformDimensionTolerance && dh < transformDimensionTolerance
}

func positionMatches(t ImageTransform, area Rectangle) bool {
	if !t.HasComputedBounds {
		// No independently computed bounds to compare against; dimension
		// match alone is the best available signal.
		return true
	}
	bounds := t.ComputedBounds

	centerA := [2]float64{(area.X1 + area.X2) / 2, (area.Y1 + area.Y2) / 2}
	centerB := [2]float64{(bounds.X1 + bounds.X2) / 2, (bounds.Y1 + bounds.Y2) / 2}
	centerDist := math.Hypot(centerA[0]-centerB[0], centerA[1]-centerB[1])
	if centerDist <= transformPositionTolerancePts {
		return true
	}

	edgeXMatch := absF(area.X1-bounds.X1) <= transformPositionTolerancePts || absF(area.X2-bounds.X2) <= transformPositionTolerancePts
	edgeYMatch := absF(area.Y1-bounds.Y1) <= transformPositionTolerancePts || absF(area.Y2-bounds.Y2) <= transformPositionTolerancePts
	if edgeXMatch && edgeYMatch {
		return true
	}

	if absF(area.X1-bounds.X1) < transformX1VeryClosePts {
		return true
	}

	return false
}
