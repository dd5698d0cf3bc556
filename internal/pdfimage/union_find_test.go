package pdfimage

import "testing"

func TestUnionFindGroupsMembers(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(0, 1)
	uf.union(1, 2)
	uf.union(3, 4)

	groups := uf.groups()
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(groups), groups)
	}

	root0 := uf.find(0)
	root3 := uf.find(3)
	if root0 == root3 {
		t.Fatalf("expected disjoint groups to have different roots")
	}

	members := groups[root0]
	if len(members) != 3 {
		t.Fatalf("expected group rooted at %d to have 3 members, got %v", root0, members)
	}
}

func TestUnionFindNoOpOnAlreadyUnioned(t *testing.T) {
	uf := newUnionFind(3)
	uf.union(0, 1)
	before := uf.find(0)
	uf.union(1, 0)
	after := uf.find(0)
	if before != after {
		t.Fatalf("re-unioning already-joined members changed the root")
	}
}

func TestUnionFindSingletons(t *testing.T) {
	uf := newUnionFind(3)
	groups := uf.groups()
	if len(groups) != 3 {
		t.Fatalf("expected 3 singleton groups with no unions, got %d", len(groups))
	}
}
