package raw

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// nestedDoc has a two-level page tree: 2 -> [3 -> [4, 5], 6].
func nestedDoc() *Document {
	doc := NewDocument("1.7")
	cat := Dict()
	cat.Set("Type", NameLiteral("Catalog"))
	cat.Set("Pages", Ref(2, 0))
	doc.Objects[ObjectRef{Num: 1}] = cat

	root := Dict()
	root.Set("Type", NameLiteral("Pages"))
	root.Set("Kids", NewArray(Ref(3, 0), Ref(6, 0)))
	root.Set("Count", NumberInt(3))
	doc.Objects[ObjectRef{Num: 2}] = root

	mid := Dict()
	mid.Set("Type", NameLiteral("Pages"))
	mid.Set("Parent", Ref(2, 0))
	mid.Set("Kids", NewArray(Ref(4, 0), Ref(5, 0)))
	doc.Objects[ObjectRef{Num: 3}] = mid

	for _, n := range []int{4, 5, 6} {
		p := Dict()
		p.Set("Type", NameLiteral("Page"))
		parent := 3
		if n == 6 {
			parent = 2
		}
		p.Set("Parent", Ref(parent, 0))
		doc.Objects[ObjectRef{Num: n}] = p
	}
	doc.Trailer.Set("Root", Ref(1, 0))
	doc.RecomputeMaxID()
	return doc
}

func TestPagesWalksTreeInOrder(t *testing.T) {
	doc := nestedDoc()
	want := []ObjectRef{{Num: 4}, {Num: 5}, {Num: 6}}
	if diff := cmp.Diff(want, doc.Pages()); diff != "" {
		t.Fatalf("pages (-want +got):\n%s", diff)
	}
}

func TestPagesSurvivesCycles(t *testing.T) {
	doc := nestedDoc()
	mid := doc.Objects[ObjectRef{Num: 3}].(*DictObj)
	mid.Set("Kids", NewArray(Ref(4, 0), Ref(2, 0), Ref(5, 0)))
	if got := len(doc.Pages()); got != 3 {
		t.Fatalf("expected 3 pages despite the cycle, got %d", got)
	}
}

func TestPagesReportsMalformedLeaf(t *testing.T) {
	doc := nestedDoc()
	doc.Objects[ObjectRef{Num: 5}] = NumberInt(7)
	pages := doc.Pages()
	if len(pages) != 3 || pages[1] != (ObjectRef{Num: 5}) {
		t.Fatalf("malformed leaf should be listed, got %v", pages)
	}
}

func TestRenumberWithOffset(t *testing.T) {
	doc := nestedDoc()
	doc.RenumberWithOffset(10)
	if doc.MaxID != 16 {
		t.Fatalf("expected MaxID 16, got %d", doc.MaxID)
	}
	if root, _ := doc.Root(); root.Num != 11 {
		t.Fatalf("trailer root not shifted: %v", root)
	}
	want := []ObjectRef{{Num: 14}, {Num: 15}, {Num: 16}}
	if diff := cmp.Diff(want, doc.Pages()); diff != "" {
		t.Fatalf("pages after renumbering (-want +got):\n%s", diff)
	}
	page := doc.Objects[ObjectRef{Num: 14}].(*DictObj)
	if parent, _ := page.Ref("Parent"); parent.Num != 13 {
		t.Fatalf("Parent not shifted: %v", parent)
	}
}

func TestCompactRemovesGaps(t *testing.T) {
	doc := nestedDoc()
	doc.RenumberWithOffset(100)
	delete(doc.Objects, ObjectRef{Num: 106}) // page 6 disappears
	mapping := doc.Compact()

	if len(doc.Objects) != 5 || doc.MaxID != 5 {
		t.Fatalf("expected 5 contiguous objects, got %d (max %d)", len(doc.Objects), doc.MaxID)
	}
	for i := 1; i <= 5; i++ {
		if _, ok := doc.Objects[ObjectRef{Num: i}]; !ok {
			t.Fatalf("object %d missing after compaction", i)
		}
	}
	if mapping[ObjectRef{Num: 101}] != (ObjectRef{Num: 1}) {
		t.Fatalf("unexpected mapping %v", mapping)
	}
	root := doc.Objects[ObjectRef{Num: 2}].(*DictObj)
	kids := root.KV["Kids"].(*ArrayObj)
	if _, isNull := kids.Items[1].(NullObj); !isNull {
		t.Fatalf("dangling reference should become null, got %#v", kids.Items[1])
	}
}

func TestCompactIsIdempotent(t *testing.T) {
	doc := nestedDoc()
	doc.RenumberWithOffset(40)
	doc.Compact()
	pages := doc.Pages()
	before := make(map[ObjectRef]Object, len(doc.Objects))
	for ref, obj := range doc.Objects {
		before[ref] = obj
	}

	mapping := doc.Compact()
	for old, updated := range mapping {
		if old != updated {
			t.Fatalf("second compaction moved %v to %v", old, updated)
		}
	}
	if diff := cmp.Diff(pages, doc.Pages()); diff != "" {
		t.Fatalf("page order changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(before, doc.Objects); diff != "" {
		t.Fatalf("objects changed (-want +got):\n%s", diff)
	}
}

func TestInheritPageAttributes(t *testing.T) {
	doc := nestedDoc()
	root := doc.Objects[ObjectRef{Num: 2}].(*DictObj)
	root.Set("Rotate", NumberInt(90))
	root.Set("MediaBox", NewArray(NumberInt(0), NumberInt(0), NumberInt(612), NumberInt(792)))
	mid := doc.Objects[ObjectRef{Num: 3}].(*DictObj)
	mid.Set("MediaBox", NewArray(NumberInt(0), NumberInt(0), NumberInt(400), NumberInt(400)))
	own := doc.Objects[ObjectRef{Num: 5}].(*DictObj)
	own.Set("Rotate", NumberInt(0))

	if n := doc.InheritPageAttributes(); n != 3 {
		t.Fatalf("expected 3 pages changed, got %d", n)
	}
	width := func(num int) int64 {
		box := doc.Objects[ObjectRef{Num: num}].(*DictObj).KV["MediaBox"].(*ArrayObj)
		return box.Items[2].(NumberObj).Int()
	}
	rotate := func(num int) int64 {
		n, _ := doc.Objects[ObjectRef{Num: num}].(*DictObj).Int("Rotate")
		return n
	}
	if width(4) != 400 || width(5) != 400 || width(6) != 612 {
		t.Fatalf("nearest ancestor should win: widths %d %d %d", width(4), width(5), width(6))
	}
	if rotate(4) != 90 || rotate(5) != 0 || rotate(6) != 90 {
		t.Fatalf("unexpected rotation %d %d %d", rotate(4), rotate(5), rotate(6))
	}
	page4 := doc.Objects[ObjectRef{Num: 4}].(*DictObj).KV["MediaBox"]
	page5 := doc.Objects[ObjectRef{Num: 5}].(*DictObj).KV["MediaBox"]
	if page4 == page5 || page4 == mid.KV["MediaBox"] {
		t.Fatalf("inherited arrays must be copied per page")
	}
	if n := doc.InheritPageAttributes(); n != 0 {
		t.Fatalf("second pass should change nothing, got %d", n)
	}
}

func TestReachable(t *testing.T) {
	doc := nestedDoc()
	doc.Objects[ObjectRef{Num: 9}] = Str([]byte("orphan"))
	reach := doc.Reachable()
	if reach[ObjectRef{Num: 9}] {
		t.Fatalf("orphan reported reachable")
	}
	for n := 1; n <= 6; n++ {
		if !reach[ObjectRef{Num: n}] {
			t.Fatalf("object %d should be reachable", n)
		}
	}
}

func TestSweep(t *testing.T) {
	doc := nestedDoc()
	doc.Objects[ObjectRef{Num: 9}] = Str([]byte("orphan"))
	// an item that only points back into the tree is still garbage
	item := Dict()
	item.Set("Dest", NewArray(Ref(4, 0), NameLiteral("Fit")))
	doc.Objects[ObjectRef{Num: 10}] = item

	if n := doc.Sweep(); n != 2 {
		t.Fatalf("Sweep removed %d objects, want 2", n)
	}
	if len(doc.Objects) != 6 {
		t.Fatalf("%d objects left, want 6", len(doc.Objects))
	}
	if n := doc.Sweep(); n != 0 {
		t.Fatalf("second Sweep removed %d objects", n)
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		obj  Object
		want Kind
	}{
		{nestedDoc().Objects[ObjectRef{Num: 1}], KindCatalog},
		{nestedDoc().Objects[ObjectRef{Num: 2}], KindPages},
		{nestedDoc().Objects[ObjectRef{Num: 4}], KindPage},
		{Dict(), KindOther},
		{NumberInt(1), KindOther},
		{NewStream(nil, nil), KindOther},
	}
	for i, tc := range cases {
		if got := KindOf(tc.obj); got != tc.want {
			t.Fatalf("case %d: got %v want %v", i, got, tc.want)
		}
	}
}

func TestVersionLess(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"1.4", "1.7", true},
		{"1.7", "1.4", false},
		{"1.7", "2.0", true},
		{"1.9", "1.10", true},
		{"1.7", "1.7", false},
	}
	for _, tc := range cases {
		if got := VersionLess(tc.a, tc.b); got != tc.want {
			t.Fatalf("VersionLess(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
