package pdfimage

// Numeric thresholds governing the extraction pipeline. Every magic
// number in the algorithm is named here so a reviewer can find the
// single source of truth for it.
const (
	// boundsValidityMarginFraction is the fraction of a page's longer
	// side a rectangle edge may lie outside and still be considered
	// valid.
	boundsValidityMarginFraction = 0.10

	// adjacencyToleranceInches is expressed in PDF points: two image
	// bounds within this distance of each other are treated as
	// touching for overlap-grouping purposes.
	adjacencyTolerancePts = 1.0

	// pdfiumDimensionMatchTolerance is the maximum combined width+height
	// pixel delta allowed when matching a coordinate-broken poppler
	// image to a pdfium-reported bound.
	pdfiumDimensionMatchTolerance = 3.0

	// transformDimensionTolerance is the maximum fractional difference
	// between a parsed transform's expected dimensions and poppler's
	// reported pixel dimensions.
	transformDimensionTolerance = 0.05

	// transformPositionTolerancePts bounds center and edge-pair
	// proximity checks when matching a transform to an image.
	transformPositionTolerancePts = 50.0

	// transformX1VeryClosePts is the tight x1 tolerance used as a
	// fallback match for rotated images where poppler mis-reports Y.
	transformX1VeryClosePts = 5.0

	// textLineBreakGapPts is the vertical gap between character boxes
	// that starts a new text line during line clustering.
	textLineBreakGapPts = 5.0

	// rotationEpsilon and mirrorEpsilon bound how far off-axis a CTM's
	// 2x2 part may be before it's still treated as identity.
	rotationEpsilon = 0.01

	// maxRegionDPI caps the rasterisation DPI used for group region
	// renders, regardless of how high an individual image's native DPI
	// computes to.
	maxRegionDPI = 600.0

	// minImagePixels is the width/height floor below which a finished
	// image is silently dropped rather than written.
	minImagePixels = 32

	// backgroundSignatureBucketPts buckets image width/height/position
	// into 10pt cells when computing a background-image signature.
	backgroundSignatureBucketPts = 10.0
)
