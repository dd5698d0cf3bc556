package pdfimage

import "testing"

func TestGroupOverlapsMergesAdjacentImages(t *testing.T) {
	images := []Rectangle{
		{X1: 0, Y1: 0, X2: 100, Y2: 100},
		{X1: 99, Y1: 0, X2: 200, Y2: 100}, // overlaps image 0
		{X1: 500, Y1: 500, X2: 600, Y2: 600}, // isolated
	}

	groups := groupOverlaps(images, nil, nil)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(groups), groups)
	}

	var pairGroup *OverlapGroup
	for i := range groups {
		if len(groups[i].ImageIndices) == 2 {
			pairGroup = &groups[i]
		}
	}
	if pairGroup == nil {
		t.Fatalf("expected one group with 2 members")
	}
	if !pairGroup.NeedsRegionRender() {
		t.Errorf("expected multi-member group to need a region render")
	}
}

func TestGroupOverlapsTextOverlapForcesRegionRender(t *testing.T) {
	images := []Rectangle{{X1: 0, Y1: 0, X2: 100, Y2: 100}}
	text := []Rectangle{{X1: 10, Y1: 10, X2: 50, Y2: 50}}

	groups := groupOverlaps(images, text, nil)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if !groups[0].TextOverlap {
		t.Errorf("expected TextOverlap to be set")
	}
	if !groups[0].NeedsRegionRender() {
		t.Errorf("expected text-overlapping single image to need a region render")
	}
}

func TestGroupOverlapsNoOverlapNoRegionRender(t *testing.T) {
	images := []Rectangle{{X1: 0, Y1: 0, X2: 100, Y2: 100}}
	groups := groupOverlaps(images, nil, nil)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].NeedsRegionRender() {
		t.Errorf("expected isolated single image to not need a region render")
	}
}

func TestGroupOverlapsEmpty(t *testing.T) {
	if groups := groupOverlaps(nil, nil, nil); groups != nil {
		t.Fatalf("expected nil groups for no images, got %+v", groups)
	}
}

func TestDedupeSort(t *testing.T) {
	got := dedupeSort([]int{3, 1, 2, 1, 3, 2})
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("dedupeSort() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dedupeSort() = %v, want %v", got, want)
		}
	}
}

func TestMergeIntersectingGroups(t *testing.T) {
	groups := []OverlapGroup{
		{ImageIndices: []int{0}, CombinedRegion: Rectangle{X1: 0, Y1: 0, X2: 100, Y2: 100}},
		{ImageIndices: []int{1}, CombinedRegion: Rectangle{X1: 50, Y1: 50, X2: 150, Y2: 150}},
		{ImageIndices: []int{2}, CombinedRegion: Rectangle{X1: 1000, Y1: 1000, X2: 1100, Y2: 1100}},
	}

	merged := mergeIntersectingGroups(groups)
	if len(merged) != 2 {
		t.Fatalf("expected 2 groups after merging intersecting regions, got %d", len(merged))
	}
}
