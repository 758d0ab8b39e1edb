package stapler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tekikaito/stapler/internal/testpdf"
	"github.com/tekikaito/stapler/ir/raw"
	"github.com/tekikaito/stapler/merge"
	"github.com/tekikaito/stapler/outline"
	"github.com/tekikaito/stapler/parser"
	"github.com/tekikaito/stapler/writer"
)

func writeSources(t *testing.T, dir string, n int) []string {
	t.Helper()
	paths := make([]string, n)
	for i := range paths {
		doc := testpdf.Document(testpdf.Options{Label: fmt.Sprintf("Document %d", i+1)})
		paths[i] = testpdf.WriteFile(t, dir, fmt.Sprintf("doc%d.pdf", i+1), doc)
	}
	return paths
}

func parseFile(t *testing.T, path string) *raw.Document {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	return doc
}

func bookmarkTitles(t *testing.T, doc *raw.Document) []string {
	t.Helper()
	_, cat, err := doc.Catalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	root, ok := doc.ResolveDict(cat.KV["Outlines"])
	if !ok {
		t.Fatalf("no outline")
	}
	var titles []string
	item, _ := root.Ref("First")
	for !item.IsZero() {
		d, ok := doc.Objects[item].(*raw.DictObj)
		if !ok {
			t.Fatalf("outline item %v is not a dictionary", item)
		}
		titles = append(titles, outline.DecodeText(d.KV["Title"].(raw.StringObj).Bytes))
		item, _ = d.Ref("Next")
	}
	return titles
}

func TestRunMergesFiles(t *testing.T) {
	for _, compress := range []bool{false, true} {
		dir := t.TempDir()
		inputs := writeSources(t, dir, 3)
		output := filepath.Join(dir, "out.pdf")

		opts := Files(inputs, output)
		opts.Compress = compress
		if err := Run(context.Background(), opts); err != nil {
			t.Fatalf("compress=%v: run: %v", compress, err)
		}

		doc := parseFile(t, output)
		wantTexts := []string{
			"BT /F1 24 Tf 72 720 Td (Document 1) Tj ET",
			"BT /F1 24 Tf 72 720 Td (Document 2) Tj ET",
			"BT /F1 24 Tf 72 720 Td (Document 3) Tj ET",
		}
		if diff := cmp.Diff(wantTexts, testpdf.PageTexts(t, doc)); diff != "" {
			t.Fatalf("compress=%v: pages (-want +got):\n%s", compress, diff)
		}
		if diff := cmp.Diff([]string{"doc1.pdf", "doc2.pdf", "doc3.pdf"}, bookmarkTitles(t, doc)); diff != "" {
			t.Fatalf("compress=%v: bookmarks (-want +got):\n%s", compress, diff)
		}
		if raw.VersionLess(doc.Version, "1.5") {
			t.Fatalf("compress=%v: version %s below 1.5", compress, doc.Version)
		}
	}
}

func TestRunParallelKeepsInputOrder(t *testing.T) {
	dir := t.TempDir()
	inputs := writeSources(t, dir, 8)
	output := filepath.Join(dir, "out.pdf")
	opts := Files(inputs, output)
	opts.Parallelism = 4
	if err := Run(context.Background(), opts); err != nil {
		t.Fatalf("run: %v", err)
	}
	titles := bookmarkTitles(t, parseFile(t, output))
	for i, title := range titles {
		if want := fmt.Sprintf("doc%d.pdf", i+1); title != want {
			t.Fatalf("bookmark %d: got %q want %q", i, title, want)
		}
	}
	if len(titles) != 8 {
		t.Fatalf("expected 8 bookmarks, got %d", len(titles))
	}
}

func TestRunInsufficientInputs(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.pdf")
	for _, inputs := range [][]string{nil, {filepath.Join(dir, "missing.pdf")}} {
		err := Run(context.Background(), Files(inputs, output))
		if !errors.Is(err, ErrInsufficientInputs) {
			t.Fatalf("%d inputs: expected ErrInsufficientInputs, got %v", len(inputs), err)
		}
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("no output may be created")
	}
}

func TestRunLoadFailure(t *testing.T) {
	dir := t.TempDir()
	inputs := writeSources(t, dir, 1)
	missing := filepath.Join(dir, "missing.pdf")
	output := filepath.Join(dir, "out.pdf")

	err := Run(context.Background(), Files(append(inputs, missing), output))
	var lerr *LoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if lerr.Path != missing || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("unexpected load error %v", lerr)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("no output may be created after a load failure")
	}
}

func TestRunRejectsNonPDF(t *testing.T) {
	dir := t.TempDir()
	inputs := writeSources(t, dir, 1)
	junk := filepath.Join(dir, "notes.pdf")
	if err := os.WriteFile(junk, []byte("just text"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := Run(context.Background(), Files(append(inputs, junk), filepath.Join(dir, "out.pdf")))
	var lerr *LoadError
	if !errors.As(err, &lerr) || !errors.Is(err, parser.ErrNotPDF) {
		t.Fatalf("expected LoadError wrapping ErrNotPDF, got %v", err)
	}
}

func TestRunWriteFailure(t *testing.T) {
	dir := t.TempDir()
	inputs := writeSources(t, dir, 2)
	output := filepath.Join(dir, "no-such-dir", "out.pdf")
	err := Run(context.Background(), Files(inputs, output))
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if werr.Path != output || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("unexpected write error %v", werr)
	}
}

func TestRunMapsMergeErrors(t *testing.T) {
	rootless := testpdf.Document(testpdf.Options{})
	for ref, obj := range rootless.Objects {
		if raw.KindOf(obj) == raw.KindPages {
			delete(rootless.Objects, ref)
		}
	}
	var out bytes.Buffer
	opts := Options{
		Sources: []Loader{
			ReaderSource{Name: "a.pdf", ReaderAt: bytes.NewReader(testpdf.Bytes(t, rootless))},
			ReaderSource{Name: "b.pdf", ReaderAt: bytes.NewReader(testpdf.Bytes(t, rootless))},
		},
		Destination: WriterDestination{W: &out},
		Strict:      true,
	}
	if err := Run(context.Background(), opts); !errors.Is(err, merge.ErrPagesRootNotFound) {
		t.Fatalf("expected ErrPagesRootNotFound, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("nothing may be written after a failed merge")
	}
}

func TestRunInMemory(t *testing.T) {
	var sources []Loader
	for i := 1; i <= 2; i++ {
		doc := testpdf.Document(testpdf.Options{Label: fmt.Sprintf("Part %d", i), Pages: 2})
		sources = append(sources, ReaderSource{Name: fmt.Sprintf("part%d.pdf", i), ReaderAt: bytes.NewReader(testpdf.Bytes(t, doc))})
	}
	var out bytes.Buffer
	err := Run(context.Background(), Options{
		Sources:     sources,
		Destination: WriterDestination{W: &out},
		Strict:      true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF-1.5")) {
		t.Fatalf("unexpected header %q", out.Bytes()[:8])
	}
	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	texts := testpdf.PageTexts(t, doc)
	if len(texts) != 4 || !strings.Contains(texts[2], "Part 2 page 1") {
		t.Fatalf("unexpected pages %q", texts)
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, Files(writeSources(t, dir, 2), filepath.Join(dir, "out.pdf")))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFileDestinationReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.pdf")
	if err := os.WriteFile(output, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Run(context.Background(), Files(writeSources(t, dir, 2), output)); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("output not replaced")
	}
}

func TestFileDestinationCreatesNothingOnSerializeFailure(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.pdf")
	err := FileDestination{Path: output}.Save(context.Background(), raw.NewDocument("1.5"), SaveOptions{})
	if !errors.Is(err, raw.ErrNoRoot) {
		t.Fatalf("expected ErrNoRoot, got %v", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("output must not exist")
	}
}

func TestByteCounter(t *testing.T) {
	c := &byteCounter{}
	var buf bytes.Buffer
	err := WriterDestination{W: &buf}.Save(context.Background(), testpdf.Document(testpdf.Options{}), SaveOptions{Interceptors: []writer.Interceptor{c}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if c.objects == 0 || c.bytes == 0 || c.bytes >= int64(buf.Len()) {
		t.Fatalf("unexpected counts %d objects %d bytes of %d", c.objects, c.bytes, buf.Len())
	}
}
