package xref_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tekikaito/stapler/filters"
	"github.com/tekikaito/stapler/recovery"
	"github.com/tekikaito/stapler/xref"
)

func buildSimplePDF() ([]byte, map[int]int64) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	offsets := make(map[int]int64)

	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 2; i++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	buf.WriteString("startxref\n")
	buf.WriteString(fmt.Sprintf("%d\n", xrefOffset))
	buf.WriteString("%%EOF\n")

	return buf.Bytes(), offsets
}

func TestResolverParsesXRefTable(t *testing.T) {
	pdf, offsets := buildSimplePDF()

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), pdf)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Type() != "table" {
		t.Fatalf("expected table type, got %s", table.Type())
	}
	for obj, off := range offsets {
		e, ok := table.Lookup(obj)
		if !ok {
			t.Fatalf("missing object %d", obj)
		}
		if e.Kind != xref.EntryInUse || e.Offset != off || e.Gen != 0 {
			t.Fatalf("object %d: expected (%d,0), got %+v", obj, off, e)
		}
	}
	if _, ok := table.Lookup(0); ok {
		t.Fatalf("object 0 must not resolve")
	}
	if root, ok := table.Trailer().Ref("Root"); !ok || root.Num != 1 {
		t.Fatalf("unexpected trailer root: %v", table.Trailer())
	}
}

func TestResolverFollowsPrevChain(t *testing.T) {
	pdf, offsets := buildSimplePDF()
	firstXRef := bytes.LastIndex(pdf, []byte("xref\n0 3"))

	buf := bytes.NewBuffer(append([]byte(nil), pdf...))
	newOff := int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 /Updated true >>\nendobj\n")
	xrefOffset := buf.Len()
	buf.WriteString("xref\n2 1\n")
	buf.WriteString(fmt.Sprintf("%010d 00000 n \n", newOff))
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size 3 /Prev %d >>\n", firstXRef))
	buf.WriteString(fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset))

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if e, _ := table.Lookup(2); e.Offset != newOff {
		t.Fatalf("newest section must win: got %d want %d", e.Offset, newOff)
	}
	if e, _ := table.Lookup(1); e.Offset != offsets[1] {
		t.Fatalf("object 1 should come from the older section, got %+v", e)
	}
	// Root is inherited from the older trailer
	if _, ok := table.Trailer().Ref("Root"); !ok {
		t.Fatalf("expected Root from the previous trailer")
	}
	if _, ok := table.Trailer().Get("Prev"); ok {
		t.Fatalf("Prev must not survive resolution")
	}
}

func TestResolverPrevLoop(t *testing.T) {
	pdf, _ := buildSimplePDF()
	xrefOff := bytes.LastIndex(pdf, []byte("xref\n0 3"))
	looped := bytes.Replace(pdf, []byte("/Size 3 /Root 1 0 R"), []byte(fmt.Sprintf("/Size 3 /Root 1 0 R /Prev %d", xrefOff)), 1)
	if _, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), looped); err != nil {
		t.Fatalf("a Prev loop must terminate cleanly: %v", err)
	}
}

// buildXRefStreamPDF writes objects 1 and 2 plainly and object 3 inside
// object stream 4, indexed by an xref stream at object 5.
func buildXRefStreamPDF(t *testing.T, compress bool) ([]byte, map[int]int64) {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	offsets := map[int]int64{}

	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	member := "<< /Producer (test) >>"
	header := "3 0 "
	objStm := header + member
	offsets[4] = int64(buf.Len())
	buf.WriteString(fmt.Sprintf("4 0 obj\n<< /Type /ObjStm /N 1 /First %d /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(header), len(objStm), objStm))

	offsets[5] = int64(buf.Len())
	rows := []byte{
		0, 0, 0, 0xff,
		1, byte(offsets[1] >> 8), byte(offsets[1]), 0,
		1, byte(offsets[2] >> 8), byte(offsets[2]), 0,
		2, 0, 4, 0,
		1, byte(offsets[4] >> 8), byte(offsets[4]), 0,
		1, byte(offsets[5] >> 8), byte(offsets[5]), 0,
	}
	filter := ""
	if compress {
		enc, err := filters.FlateEncode(rows)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		rows = enc
		filter = " /Filter /FlateDecode"
	}
	buf.WriteString(fmt.Sprintf("5 0 obj\n<< /Type /XRef /Size 6 /W [1 2 1] /Root 1 0 R /Info 3 0 R%s /Length %d >>\nstream\n", filter, len(rows)))
	buf.Write(rows)
	buf.WriteString("\nendstream\nendobj\n")
	buf.WriteString(fmt.Sprintf("startxref\n%d\n%%%%EOF\n", offsets[5]))
	return buf.Bytes(), offsets
}

func TestResolverParsesXRefStream(t *testing.T) {
	for _, compress := range []bool{false, true} {
		pdf, offsets := buildXRefStreamPDF(t, compress)
		table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), pdf)
		if err != nil {
			t.Fatalf("compress=%v: resolve: %v", compress, err)
		}
		if table.Type() != "stream" {
			t.Fatalf("expected stream type, got %s", table.Type())
		}
		for _, num := range []int{1, 2, 4, 5} {
			e, ok := table.Lookup(num)
			if !ok || e.Kind != xref.EntryInUse || e.Offset != offsets[num] {
				t.Fatalf("compress=%v: object %d: got %+v want offset %d", compress, num, e, offsets[num])
			}
		}
		e, ok := table.Lookup(3)
		if !ok || e.Kind != xref.EntryCompressed || e.Stream != 4 || e.Index != 0 {
			t.Fatalf("compressed entry mismatch: %+v", e)
		}
		if got := table.Objects(); len(got) != 5 {
			t.Fatalf("expected 5 live objects, got %v", got)
		}
		tr := table.Trailer()
		if _, ok := tr.Get("W"); ok {
			t.Fatalf("stream-only keys must be dropped from the trailer")
		}
		if _, ok := tr.Ref("Root"); !ok {
			t.Fatalf("trailer lost Root")
		}
	}
}

func TestResolverHybridXRefStm(t *testing.T) {
	streamPDF, offsets := buildXRefStreamPDF(t, false)
	// cut off the original startxref and append a classic table that marks
	// object 3 free and points at the stream section through XRefStm
	cut := bytes.LastIndex(streamPDF, []byte("startxref"))
	buf := bytes.NewBuffer(append([]byte(nil), streamPDF[:cut]...))
	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	buf.WriteString(fmt.Sprintf("%010d 00000 n \n%010d 00000 n \n", offsets[1], offsets[2]))
	buf.WriteString("0000000000 00001 f \n")
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size 6 /Root 1 0 R /XRefStm %d >>\n", offsets[5]))
	buf.WriteString(fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset))

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if e, ok := table.Lookup(3); !ok || e.Kind != xref.EntryCompressed {
		t.Fatalf("XRefStm entry must fill the free slot, got %+v", e)
	}
	if _, ok := table.Trailer().Get("XRefStm"); ok {
		t.Fatalf("XRefStm must not survive resolution")
	}
}

func TestResolverBadOffset(t *testing.T) {
	pdf, _ := buildSimplePDF()
	broken := bytes.Replace(pdf, []byte("startxref\n"), []byte("startxref\n9"), 1)
	_, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), broken)
	if err == nil {
		t.Fatalf("expected error for out-of-range startxref")
	}
}

func TestResolverMissingStartXRef(t *testing.T) {
	_, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), []byte("%PDF-1.4\n"))
	if !errors.Is(err, xref.ErrNoStartXRef) {
		t.Fatalf("expected ErrNoStartXRef, got %v", err)
	}
}

type testRecovery struct {
	action recovery.Action
	calls  int
}

func (r *testRecovery) OnError(ctx context.Context, err error, loc recovery.Location) recovery.Action {
	r.calls++
	return r.action
}
