package pdfimage

import "testing"

func TestDetectBackgroundsAcrossPages(t *testing.T) {
	bgArea := Rectangle{X1: 0, Y1: 0, X2: 612, Y2: 792}
	pageSizes := map[int][2]float64{0: {612, 792}, 1: {612, 792}, 2: {612, 792}}

	perPage := map[int][]ImageMapping{
		0: {{ImageID: 0, Area: bgArea}},
		1: {{ImageID: 0, Area: bgArea}},
		2: {{ImageID: 0, Area: bgArea}, {ImageID: 1, Area: Rectangle{X1: 100, Y1: 100, X2: 200, Y2: 200}}},
	}

	bgPages, groups := detectBackgrounds(perPage, pageSizes, 3, 0.8)

	if len(groups) != 1 {
		t.Fatalf("expected one background group, got %d", len(groups))
	}
	if len(groups[0].sourcePages) != 3 {
		t.Fatalf("expected background to span 3 pages, got %d", len(groups[0].sourcePages))
	}
	if groups[0].representative.page != 0 {
		t.Fatalf("expected representative from first page, got page %d", groups[0].representative.page)
	}

	for _, page := range []int{0, 1, 2} {
		if !bgPages[page][0] {
			t.Errorf("page %d: expected image 0 flagged as background", page)
		}
	}
	if bgPages[2][1] {
		t.Errorf("page 2: non-repeating small image incorrectly flagged as background")
	}
}

func TestDetectBackgroundsBelowMinPages(t *testing.T) {
	bgArea := Rectangle{X1: 0, Y1: 0, X2: 612, Y2: 792}
	pageSizes := map[int][2]float64{0: {612, 792}, 1: {612, 792}}
	perPage := map[int][]ImageMapping{
		0: {{ImageID: 0, Area: bgArea}},
		1: {{ImageID: 0, Area: bgArea}},
	}

	_, groups := detectBackgrounds(perPage, pageSizes, 3, 0.8)
	if len(groups) != 0 {
		t.Fatalf("expected no background groups below minPages threshold, got %d", len(groups))
	}
}

func TestDetectBackgroundsBelowAreaThreshold(t *testing.T) {
	smallArea := Rectangle{X1: 0, Y1: 0, X2: 50, Y2: 50}
	pageSizes := map[int][2]float64{0: {612, 792}, 1: {612, 792}, 2: {612, 792}}
	perPage := map[int][]ImageMapping{
		0: {{ImageID: 0, Area: smallArea}},
		1: {{ImageID: 0, Area: smallArea}},
		2: {{ImageID: 0, Area: smallArea}},
	}

	_, groups := detectBackgrounds(perPage, pageSizes, 3, 0.8)
	if len(groups) != 0 {
		t.Fatalf("expected small repeated image below coverage threshold to not be a background, got %d", len(groups))
	}
}

func TestComputeBackgroundSignatureBucketsNearbyRects(t *testing.T) {
	a := Rectangle{X1: 0.2, Y1: 0.1, X2: 612.1, Y2: 791.9}
	b := Rectangle{X1: 0.4, Y1: 0.3, X2: 612.3, Y2: 792.1}

	if computeBackgroundSignature(a) != computeBackgroundSignature(b) {
		t.Fatalf("expected nearly-identical rectangles to bucket to the same signature")
	}
}
