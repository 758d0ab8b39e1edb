// Package testpdf builds small documents for tests.
package testpdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tekikaito/stapler/filters"
	"github.com/tekikaito/stapler/ir/raw"
	"github.com/tekikaito/stapler/writer"
)

// Options shapes a generated document.
type Options struct {
	Label string // text shown on every page, "Document 1" by default
	Pages int    // default 1
	// Outline adds a native outline to the catalog.
	Outline bool
	// AcroForm adds an empty interactive form to the catalog.
	AcroForm bool
}

// Document returns a document with one content stream per page and a
// shared font resource. Object numbers start at 1 in every document, so any
// two generated documents collide.
func Document(opts Options) *raw.Document {
	if opts.Pages <= 0 {
		opts.Pages = 1
	}
	if opts.Label == "" {
		opts.Label = "Document 1"
	}
	doc := raw.NewDocument("1.4")

	catalogRef := doc.Add(nil)
	pagesRef := doc.Add(nil)

	font := raw.Dict()
	font.Set("Type", raw.NameLiteral("Font"))
	font.Set("Subtype", raw.NameLiteral("Type1"))
	font.Set("BaseFont", raw.NameLiteral("Helvetica"))
	fontRef := doc.Add(font)

	kids := raw.NewArray()
	for i := 0; i < opts.Pages; i++ {
		text := opts.Label
		if opts.Pages > 1 {
			text = fmt.Sprintf("%s page %d", opts.Label, i+1)
		}
		content := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (%s) Tj ET", text)
		contentRef := doc.Add(raw.NewStream(raw.Dict(), []byte(content)))

		fonts := raw.Dict()
		fonts.Set("F1", raw.RefTo(fontRef))
		resources := raw.Dict()
		resources.Set("Font", fonts)

		page := raw.Dict()
		page.Set("Type", raw.NameLiteral("Page"))
		page.Set("Parent", raw.RefTo(pagesRef))
		page.Set("MediaBox", raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792)))
		page.Set("Resources", resources)
		page.Set("Contents", raw.RefTo(contentRef))
		kids.Append(raw.RefTo(doc.Add(page)))
	}

	pages := raw.Dict()
	pages.Set("Type", raw.NameLiteral("Pages"))
	pages.Set("Kids", kids)
	pages.Set("Count", raw.NumberInt(int64(opts.Pages)))
	doc.Objects[pagesRef] = pages

	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", raw.RefTo(pagesRef))
	doc.Objects[catalogRef] = catalog

	if opts.Outline {
		first := kids.Items[0].(raw.RefObj)
		outlinesRef := doc.Add(nil)
		item := raw.Dict()
		item.Set("Type", raw.NameLiteral("Outline"))
		item.Set("Title", raw.Str([]byte("Native")))
		item.Set("Parent", raw.RefTo(outlinesRef))
		item.Set("Dest", raw.NewArray(first, raw.NameLiteral("Fit")))
		itemRef := doc.Add(item)
		outlines := raw.Dict()
		outlines.Set("Type", raw.NameLiteral("Outlines"))
		outlines.Set("First", raw.RefTo(itemRef))
		outlines.Set("Last", raw.RefTo(itemRef))
		outlines.Set("Count", raw.NumberInt(1))
		doc.Objects[outlinesRef] = outlines
		catalog.Set("Outlines", raw.RefTo(outlinesRef))
	}
	if opts.AcroForm {
		form := raw.Dict()
		form.Set("Fields", raw.NewArray())
		catalog.Set("AcroForm", raw.RefTo(doc.Add(form)))
	}

	info := raw.Dict()
	info.Set("Title", raw.Str([]byte(opts.Label)))
	doc.Trailer.Set("Root", raw.RefTo(catalogRef))
	doc.Trailer.Set("Info", raw.RefTo(doc.Add(info)))
	return doc
}

// Bytes serializes doc with a classic xref table.
func Bytes(t testing.TB, doc *raw.Document) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := writer.New().Write(context.Background(), doc, &buf, writer.Config{Deterministic: true}); err != nil {
		t.Fatalf("testpdf: write: %v", err)
	}
	return buf.Bytes()
}

// WriteFile stores doc under dir/name and returns the path.
func WriteFile(t testing.TB, dir, name string, doc *raw.Document) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Bytes(t, doc), 0o644); err != nil {
		t.Fatalf("testpdf: %v", err)
	}
	return path
}

// PageTexts returns the decoded content stream of every page of doc in order.
func PageTexts(t testing.TB, doc *raw.Document) []string {
	t.Helper()
	var out []string
	for _, ref := range doc.Pages() {
		page, ok := doc.ResolveDict(raw.RefTo(ref))
		if !ok {
			t.Fatalf("testpdf: page %v is not a dictionary", ref)
		}
		st, ok := doc.Resolve(page.KV["Contents"]).(*raw.StreamObj)
		if !ok {
			t.Fatalf("testpdf: page %v has no content stream", ref)
		}
		data, err := filters.Standard(filters.Limits{}).DecodeStream(context.Background(), st)
		if err != nil {
			t.Fatalf("testpdf: page %v: %v", ref, err)
		}
		out = append(out, string(data))
	}
	return out
}
