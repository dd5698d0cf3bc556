package pdfimage

import "sort"

// mergeTextLines clusters character-level bounding boxes into text
// lines: boxes are sorted top-to-bottom then left-to-right, and a
// vertical gap greater than textLineBreakGapPts between consecutive
// boxes (after the current line's extent) starts a new line. Each
// resulting line's Rectangle is the union of its member boxes.
//
// This is the pure-Go half of content-region collection; the
// ContentEngine adapter is responsible for producing the raw
// character boxes this consumes from whatever text-bounding-box
// output the underlying tool exposes.
func mergeTextLines(charBoxes []Rectangle) []Rectangle {
	if len(charBoxes) == 0 {
		return nil
	}

	sorted := make([]Rectangle, len(charBoxes))
	copy(sorted, charBoxes)
	sort.Slice(sorted, func(i, j int) bool {
		// Page space: higher Y is higher on the page. Sort top-first.
		if sorted[i].Y2 != sorted[j].Y2 {
			return sorted[i].Y2 > sorted[j].Y2
		}
		return sorted[i].X1 < sorted[j].X1
	})

	var lines []Rectangle
	current := sorted[0]
	for _, box := range sorted[1:] {
		gap := current.Y1 - box.Y2
		if gap < 0 {
			gap = -gap
		}
		if box.Y2 > current.Y1 || gap <= textLineBreakGapPts {
			current = current.Union(box)
			continue
		}
		lines = append(lines, current)
		current = box
	}
	lines = append(lines, current)
	return lines
}

// clipToPage intersects every region with the page rectangle, so a
// Form XObject's bounds that bleed past the page edge only contribute
// their visible portion.
func clipToPage(regions []Rectangle, pageWidth, pageHeight float64) []Rectangle {
	page := Rectangle{X1: 0, Y1: 0, X2: pageWidth, Y2: pageHeight}
	out := make([]Rectangle, 0, len(regions))
	for _, r := range regions {
		clipped := Rectangle{
			X1: maxF(r.X1, page.X1),
			Y1: maxF(r.Y1, page.Y1),
			X2: minF(r.X2, page.X2),
			Y2: minF(r.Y2, page.Y2),
		}
		if clipped.X2 > clipped.X1 && clipped.Y2 > clipped.Y1 {
			out = append(out, clipped)
		}
	}
	return out
}
