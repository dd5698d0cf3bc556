package pdfimage

import "sort"

// OverlapGroup is a cluster of non-background image indices (local to
// one page) that must render together: either because they overlap
// each other directly, or because each overlaps the same text or path
// content.
type OverlapGroup struct {
	ImageIndices   []int
	CombinedRegion Rectangle
	TextOverlap    bool
	PathOverlap    bool
}

// NeedsRegionRender reports whether this group requires an additional
// composited region_render in addition to each member's individual
// image: any text/path overlap, or more than one member image.
func (g OverlapGroup) NeedsRegionRender() bool {
	return g.TextOverlap || g.PathOverlap || len(g.ImageIndices) > 1
}

// groupOverlaps builds the overlap groups for one page's non-background
// images, given the page's (already page-clipped) text and path
// regions.
func groupOverlaps(images []Rectangle, textRegions, pathRegions []Rectangle) []OverlapGroup {
	n := len(images)
	if n == 0 {
		return nil
	}

	uf := newUnionFind(n)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if images[i].Intersects(images[j], adjacencyTolerancePts) {
				uf.union(i, j)
			}
		}
	}

	textOverlap := make([]bool, n)
	pathOverlap := make([]bool, n)
	for _, region := range textRegions {
		var members []int
		for i, img := range images {
			if img.Intersects(region, 0) {
				members = append(members, i)
				textOverlap[i] = true
			}
		}
		for k := 1; k < len(members); k++ {
			uf.union(members[0], members[k])
		}
	}
	for _, region := range pathRegions {
		var members []int
		for i, img := range images {
			if img.Intersects(region, 0) {
				members = append(members, i)
				pathOverlap[i] = true
			}
		}
		for k := 1; k < len(members); k++ {
			uf.union(members[0], members[k])
		}
	}

	sets := uf.groups()
	groups := make([]OverlapGroup, 0, len(sets))
	for _, members := range sets {
		g := OverlapGroup{ImageIndices: append([]int(nil), members...)}
		region := images[members[0]]
		for _, m := range members[1:] {
			region = region.Union(images[m])
		}
		for _, m := range members {
			if textOverlap[m] {
				g.TextOverlap = true
			}
			if pathOverlap[m] {
				g.PathOverlap = true
			}
		}
		for _, r := range textRegions {
			if regionTouchesAnyMember(r, members, images) {
				region = region.Union(r)
			}
		}
		for _, r := range pathRegions {
			if regionTouchesAnyMember(r, members, images) {
				region = region.Union(r)
			}
		}
		g.CombinedRegion = region
		groups = append(groups, g)
	}

	groups = mergeIntersectingGroups(groups)
	for i := range groups {
		groups[i].ImageIndices = dedupeSort(groups[i].ImageIndices)
	}
	return groups
}

func regionTouchesAnyMember(region Rectangle, members []int, images []Rectangle) bool {
	for _, m := range members {
		if images[m].Intersects(region, 0) {
			return true
		}
	}
	return false
}

// mergeIntersectingGroups repeatedly merges any two groups whose
// combined regions intersect, until no pair does.
func mergeIntersectingGroups(groups []OverlapGroup) []OverlapGroup {
	for {
		merged := false
		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				if !groups[i].CombinedRegion.Intersects(groups[j].CombinedRegion, 0) {
					continue
				}
				groups[i] = OverlapGroup{
					ImageIndices:   append(groups[i].ImageIndices, groups[j].ImageIndices...),
					CombinedRegion: groups[i].CombinedRegion.Union(groups[j].CombinedRegion),
					TextOverlap:    groups[i].TextOverlap || groups[j].TextOverlap,
					PathOverlap:    groups[i].PathOverlap || groups[j].PathOverlap,
				}
				groups = append(groups[:j], groups[j+1:]...)
				merged = true
				break
			}
			if merged {
				break
			}
		}
		if !merged {
			return groups
		}
	}
}

func dedupeSort(indices []int) []int {
	sort.Ints(indices)
	out := indices[:0]
	var last int
	for i, v := range indices {
		if i == 0 || v != last {
			out = append(out, v)
		}
		last = v
	}
	return out
}
