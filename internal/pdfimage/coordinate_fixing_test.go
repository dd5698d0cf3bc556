package pdfimage

import "testing"

func TestIsValidBounds(t *testing.T) {
	pageW, pageH := 612.0, 792.0

	cases := []struct {
		name string
		r    Rectangle
		want bool
	}{
		{"within page", Rectangle{X1: 10, Y1: 10, X2: 100, Y2: 100}, true},
		{"exact page edges", Rectangle{X1: 0, Y1: 0, X2: pageW, Y2: pageH}, true},
		{"slightly over margin", Rectangle{X1: 0, Y1: 0, X2: pageW + 1, Y2: pageH}, true},
		{"far outside page", Rectangle{X1: -5000, Y1: -5000, X2: -4000, Y2: -4000}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := isValidBounds(c.r, pageW, pageH); got != c.want {
				t.Errorf("isValidBounds(%+v) = %v, want %v", c.r, got, c.want)
			}
		})
	}
}

func TestFixPageCoordinatesCropOffset(t *testing.T) {
	pageW, pageH := 612.0, 792.0
	boxes := PageBoxes{
		MediaBox: Rectangle{X1: 0, Y1: 0, X2: pageW, Y2: pageH},
		CropBox:  Rectangle{X1: 50, Y1: 50, X2: pageW, Y2: pageH},
	}

	img := &ImageMapping{ImageID: 0, Area: Rectangle{X1: -60, Y1: -60, X2: 50, Y2: 50}}
	fixPageCoordinates([]*ImageMapping{img}, boxes, pageW, pageH, nil)

	if !isValidBounds(img.Area, pageW, pageH) {
		t.Fatalf("expected crop-offset-shifted bounds to become valid, got %+v", img.Area)
	}
}

func TestFixPageCoordinatesPdfiumDimensionMatch(t *testing.T) {
	pageW, pageH := 612.0, 792.0
	boxes := PageBoxes{
		MediaBox: Rectangle{X1: 0, Y1: 0, X2: pageW, Y2: pageH},
		CropBox:  Rectangle{X1: 0, Y1: 0, X2: pageW, Y2: pageH},
	}

	img := &ImageMapping{ImageID: 0, Width: 300, Height: 200, Area: Rectangle{X1: -9000, Y1: -9000, X2: -8000, Y2: -8000}}
	pdfiumImages := []PdfiumImageInfo{
		{Width: 300, Height: 200, Area: Rectangle{X1: 100, Y1: 100, X2: 300, Y2: 300}},
	}

	fixPageCoordinates([]*ImageMapping{img}, boxes, pageW, pageH, pdfiumImages)

	want := Rectangle{X1: 100, Y1: 100, X2: 300, Y2: 300}
	if img.Area != want {
		t.Fatalf("expected pdfium dimension match to resolve bounds to %+v, got %+v", want, img.Area)
	}
}

func TestFixPageCoordinatesFullPageFallback(t *testing.T) {
	pageW, pageH := 612.0, 792.0
	boxes := PageBoxes{
		MediaBox: Rectangle{X1: 0, Y1: 0, X2: pageW, Y2: pageH},
		CropBox:  Rectangle{X1: 0, Y1: 0, X2: pageW, Y2: pageH},
	}

	img := &ImageMapping{ImageID: 0, Width: 300, Height: 200, Area: Rectangle{X1: -9000, Y1: -9000, X2: -8000, Y2: -8000}}
	fixPageCoordinates([]*ImageMapping{img}, boxes, pageW, pageH, nil)

	want := Rectangle{X1: 0, Y1: 0, X2: pageW, Y2: pageH}
	if img.Area != want {
		t.Fatalf("expected full-page fallback %+v, got %+v", want, img.Area)
	}
}

func TestFindPdfiumDimensionMatch(t *testing.T) {
	img := &ImageMapping{Width: 100, Height: 100}
	candidates := []PdfiumImageInfo{
		{Width: 500, Height: 500},
		{Width: 101, Height: 99},
	}
	idx := findPdfiumDimensionMatch(img, candidates)
	if idx != 1 {
		t.Fatalf("expected best match at index 1, got %d", idx)
	}

	none := findPdfiumDimensionMatch(img, []PdfiumImageInfo{{Width: 900, Height: 900}})
	if none != -1 {
		t.Fatalf("expected no match, got %d", none)
	}
}
