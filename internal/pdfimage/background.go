package pdfimage

import "math"

// backgroundSignature buckets an image's size and position into
// coarse 10pt cells so the same repeating background image (redrawn
// at very slightly different float coordinates on every page) hashes
// to the same key across pages.
type backgroundSignature struct {
	wBucket, hBucket int
	x1Bucket, y1Bucket int
}

func computeBackgroundSignature(r Rectangle) backgroundSignature {
	return backgroundSignature{
		wBucket:  int(r.Width() / backgroundSignatureBucketPts),
		hBucket:  int(r.Height() / backgroundSignatureBucketPts),
		x1Bucket: int(math.Round(r.X1 / backgroundSignatureBucketPts)),
		y1Bucket: int(math.Round(r.Y1 / backgroundSignatureBucketPts)),
	}
}

// pageImageRef identifies one image on one page, for background
// bookkeeping across the whole document.
type pageImageRef struct {
	page       int
	imageIndex int
	area       Rectangle
}

// detectBackgrounds classifies images that repeat, at near-full-page
// coverage, across at least minPages distinct pages as backgrounds.
// It returns, per page, the set of local image indices that are
// background members (to be excluded from overlap grouping), plus one
// representative pageImageRef per distinct background signature (its
// first appearance) annotated with every page it appeared on.
func detectBackgrounds(perPage map[int][]ImageMapping, pageSizes map[int][2]float64, minPages int, areaThreshold float64) (backgroundPages map[int]map[int]bool, representatives []backgroundGroup) {
	bySignature := make(map[backgroundSignature][]pageImageRef)

	for page, images := range perPage {
		w, h := pageSizes[page][0], pageSizes[page][1]
		pageArea := w * h
		if pageArea <= 0 {
			continue
		}
		for idx, img := range images {
			coverage := img.Area.Area() / pageArea
			if coverage < areaThreshold {
				continue
			}
			sig := computeBackgroundSignature(img.Area)
			bySignature[sig] = append(bySignature[sig], pageImageRef{page: page, imageIndex: idx, area: img.Area})
		}
	}

	backgroundPages = make(map[int]map[int]bool)
	for _, refs := range bySignature {
		pages := make(map[int]bool)
		for _, ref := range refs {
			pages[ref.page] = true
		}
		if len(pages) < minPages {
			continue
		}

		sourcePages := make([]int, 0, len(pages))
		for p := range pages {
			sourcePages = append(sourcePages, p)
		}

		first := refs[0]
		for _, ref := range refs[1:] {
			if ref.page < first.page {
				first = ref
			}
		}

		representatives = append(representatives, backgroundGroup{
			representative: first,
			sourcePages:    sourcePages,
		})

		for _, ref := range refs {
			if backgroundPages[ref.page] == nil {
				backgroundPages[ref.page] = make(map[int]bool)
			}
			backgroundPages[ref.page][ref.imageIndex] = true
		}
	}

	return backgroundPages, representatives
}

// backgroundGroup is one emitted background image: its first-page
// appearance (the one whose surface gets decoded and written) and the
// full list of pages it recurs on.
type backgroundGroup struct {
	representative pageImageRef
	sourcePages    []int
}
