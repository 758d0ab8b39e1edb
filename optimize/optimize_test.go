package optimize

import (
	"bytes"
	"compress/zlib"
	"context"
	"io"
	"testing"

	"github.com/tekikaito/stapler/ir/raw"
)

// twoPageDoc returns a document whose two pages share identical content and
// resources stored as separate objects, plus one orphaned object.
func twoPageDoc() *raw.Document {
	doc := raw.NewDocument("1.7")
	content := bytes.Repeat([]byte("0 0 m 100 100 l S\n"), 10)

	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", raw.Ref(2, 0))
	doc.Objects[raw.ObjectRef{Num: 1}] = catalog

	pages := raw.Dict()
	pages.Set("Type", raw.NameLiteral("Pages"))
	pages.Set("Kids", raw.NewArray(raw.Ref(3, 0), raw.Ref(4, 0)))
	pages.Set("Count", raw.NumberInt(2))
	doc.Objects[raw.ObjectRef{Num: 2}] = pages

	for i, num := range []int{3, 4} {
		page := raw.Dict()
		page.Set("Type", raw.NameLiteral("Page"))
		page.Set("Parent", raw.Ref(2, 0))
		page.Set("Contents", raw.Ref(5+i, 0))
		page.Set("Resources", raw.Ref(7+i, 0))
		doc.Objects[raw.ObjectRef{Num: num}] = page
		doc.Objects[raw.ObjectRef{Num: 5 + i}] = raw.NewStream(raw.Dict(), append([]byte(nil), content...))
		res := raw.Dict()
		res.Set("ProcSet", raw.NewArray(raw.NameLiteral("PDF")))
		doc.Objects[raw.ObjectRef{Num: 7 + i}] = res
	}
	doc.Objects[raw.ObjectRef{Num: 9}] = raw.Str([]byte("orphan"))
	doc.Trailer.Set("Root", raw.Ref(1, 0))
	doc.RecomputeMaxID()
	return doc
}

func TestOptimizeDefault(t *testing.T) {
	doc := twoPageDoc()
	res, err := New(DefaultConfig()).Optimize(context.Background(), doc)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if res.ObjectsRemoved != 1 {
		t.Fatalf("expected the orphan to be removed, got %d", res.ObjectsRemoved)
	}
	if res.StreamsCompressed != 2 {
		t.Fatalf("expected 2 compressed streams, got %d", res.StreamsCompressed)
	}
	if res.ObjectsCombined != 2 {
		t.Fatalf("expected content and resources combined, got %d", res.ObjectsCombined)
	}
	// catalog, pages, two pages, one content stream, one resource dict
	if len(doc.Objects) != 6 || doc.MaxID != 6 {
		t.Fatalf("expected 6 contiguous objects, got %d (max %d)", len(doc.Objects), doc.MaxID)
	}
	pages := doc.Pages()
	if len(pages) != 2 || pages[0] == pages[1] {
		t.Fatalf("pages must stay distinct: %v", pages)
	}
	p1, _ := doc.ResolveDict(raw.RefTo(pages[0]))
	p2, _ := doc.ResolveDict(raw.RefTo(pages[1]))
	c1, _ := p1.Ref("Contents")
	c2, _ := p2.Ref("Contents")
	if c1 != c2 {
		t.Fatalf("identical content streams should be shared, got %v and %v", c1, c2)
	}
	st := doc.Objects[c1].(*raw.StreamObj)
	if name, _ := st.Dict.Name("Filter"); name != "FlateDecode" {
		t.Fatalf("expected FlateDecode filter, got %v", st.Dict.KV["Filter"])
	}
	zr, err := zlib.NewReader(bytes.NewReader(st.Data))
	if err != nil {
		t.Fatalf("zlib: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if !bytes.HasPrefix(plain, []byte("0 0 m 100 100 l S")) {
		t.Fatalf("unexpected content %q", plain)
	}
	if root, ok := doc.Root(); !ok || res.Mapping[raw.ObjectRef{Num: 1}] != root {
		t.Fatalf("mapping does not follow the root: %v", res.Mapping)
	}
}

func TestOptimizeMappingFollowsCombinedObjects(t *testing.T) {
	doc := twoPageDoc()
	res, err := Compact(doc, Config{CombineIdenticalObjects: true})
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if res.Mapping[raw.ObjectRef{Num: 6}] != res.Mapping[raw.ObjectRef{Num: 5}] {
		t.Fatalf("duplicate stream should map to the kept one: %v", res.Mapping)
	}
	if _, ok := res.Mapping[raw.ObjectRef{Num: 9}]; !ok {
		t.Fatalf("orphan kept when unreachable removal is off")
	}
}

func TestCompressSkipsFilteredAndSmallStreams(t *testing.T) {
	doc := raw.NewDocument("1.7")
	filtered := raw.Dict()
	filtered.Set("Filter", raw.NameLiteral("DCTDecode"))
	big := bytes.Repeat([]byte{'x'}, 200)
	doc.Objects[raw.ObjectRef{Num: 1}] = raw.NewStream(filtered, big)
	doc.Objects[raw.ObjectRef{Num: 2}] = raw.NewStream(raw.Dict(), []byte("q Q"))
	meta := raw.Dict()
	meta.Set("Type", raw.NameLiteral("Metadata"))
	doc.Objects[raw.ObjectRef{Num: 3}] = raw.NewStream(meta, big)

	n, err := compressStreams(doc, 32)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing compressed, got %d", n)
	}
	if !bytes.Equal(doc.Objects[raw.ObjectRef{Num: 1}].(*raw.StreamObj).Data, big) {
		t.Fatalf("filtered stream must be left alone")
	}
}

func TestHashIgnoresStreamLength(t *testing.T) {
	a := raw.Dict()
	a.Set("Length", raw.NumberInt(3))
	b := raw.Dict()
	if hashObject(raw.NewStream(a, []byte("abc"))) != hashObject(raw.NewStream(b, []byte("abc"))) {
		t.Fatalf("Length must not influence the stream hash")
	}
	if hashObject(raw.NumberInt(1)) == hashObject(raw.NumberFloat(1)) {
		t.Fatalf("integer and real must hash differently")
	}
	x := raw.NewArray(raw.Str([]byte("ab")), raw.Str([]byte("c")))
	y := raw.NewArray(raw.Str([]byte("a")), raw.Str([]byte("bc")))
	if hashObject(x) == hashObject(y) {
		t.Fatalf("string boundaries must be part of the hash")
	}
}

func TestOptimizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(DefaultConfig()).Optimize(ctx, twoPageDoc()); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
