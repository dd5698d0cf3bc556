package pdfimage

// isValidBounds reports whether r's edges lie within the page's
// validity margin: each edge may extend up to 10% of the page's
// longer side beyond the page rectangle before the bounds are
// considered broken (poppler occasionally reports garbage for images
// inside malformed Form XObjects).
func isValidBounds(r Rectangle, pageWidth, pageHeight float64) bool {
	longer := pageWidth
	if pageHeight > longer {
		longer = pageHeight
	}
	margin := longer * boundsValidityMarginFraction

	return r.X1 >= -margin && r.Y1 >= -margin &&
		r.X2 <= pageWidth+margin && r.Y2 <= pageHeight+margin
}

// fixPageCoordinates repairs invalid image bounds on a single page,
// in place, following spec's three-step fallback: CropBox offset,
// then pdfium pixel-dimension matching, then the full page rectangle.
//
// images is mutated directly; pdfiumImages is consumed at most once
// per entry (a matched entry is removed from the slice).
func fixPageCoordinates(images []*ImageMapping, boxes PageBoxes, pageWidth, pageHeight float64, pdfiumImages []PdfiumImageInfo) {
	cropOffsetX := boxes.CropBox.X1 - boxes.MediaBox.X1
	cropOffsetY := boxes.CropBox.Y1 - boxes.MediaBox.Y1

	var stillInvalid []*pendingFixImage
	for i, img := range images {
		if isValidBounds(img.Area, pageWidth, pageHeight) {
			continue
		}

		if cropOffsetX != 0 || cropOffsetY != 0 {
			shifted := Rectangle{
				X1: img.Area.X1 + cropOffsetX,
				Y1: img.Area.Y1 + cropOffsetY,
				X2: img.Area.X2 + cropOffsetX,
				Y2: img.Area.Y2 + cropOffsetY,
			}
			if isValidBounds(shifted, pageWidth, pageHeight) {
				img.Area = shifted
				continue
			}
		}

		stillInvalid = append(stillInvalid, &pendingFixImage{index: i, img: img})
	}

	remaining := make([]PdfiumImageInfo, len(pdfiumImages))
	copy(remaining, pdfiumImages)

	for _, pf := range stillInvalid {
		if matchIdx := findPdfiumDimensionMatch(pf.img, remaining); matchIdx >= 0 {
			pf.img.Area = remaining[matchIdx].Area
			remaining = append(remaining[:matchIdx], remaining[matchIdx+1:]...)
			continue
		}

		// Last resort: the full page rectangle.
		pf.img.Area = Rectangle{X1: 0, Y1: 0, X2: pageWidth, Y2: pageHeight}
	}
}

type pendingFixImage struct {
	index int
	img   *ImageMapping
}

// findPdfiumDimensionMatch finds the best unmatched pdfium entry whose
// pixel dimensions are within pdfiumDimensionMatchTolerance of img's,
// returning its index in candidates or -1 if none match.
func findPdfiumDimensionMatch(img *ImageMapping, candidates []PdfiumImageInfo) int {
	best := -1
	bestDiff := pdfiumDimensionMatchTolerance
	for i, c := range candidates {
		diff := absF(float64(c.Width-img.Width)) + absF(float64(c.Height-img.Height))
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	return best
}
