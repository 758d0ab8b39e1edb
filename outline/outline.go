// Package outline stages bookmarks and materializes them as a document
// outline (the /Outlines tree of the catalog).
package outline

import (
	"errors"

	"github.com/tekikaito/stapler/ir/raw"
)

// Fit selects how a viewer zooms when a bookmark is followed.
type Fit int

const (
	FitPage Fit = iota
	FitWidth
	FitHeight
	FitBox
)

func (f Fit) name() string {
	switch f {
	case FitWidth:
		return "FitH"
	case FitHeight:
		return "FitV"
	case FitBox:
		return "FitB"
	default:
		return "Fit"
	}
}

// Style holds the outline item flags (/F).
type Style int

const (
	StyleItalic Style = 1 << iota
	StyleBold
)

// Color is an RGB triple with components in [0, 1].
type Color [3]float64

var Blue = Color{0, 0, 1}

type Bookmark struct {
	Title string
	Color Color
	Style Style
	Fit   Fit
	Page  raw.ObjectRef
}

// New returns a blue, page-fitting bookmark.
func New(title string, page raw.ObjectRef) Bookmark {
	return Bookmark{Title: title, Color: Blue, Fit: FitPage, Page: page}
}

var ErrNoCatalog = errors.New("outline: document has no catalog")

type entry struct {
	bookmark Bookmark
	children []int
}

// Staging collects bookmarks before the object graph they point into is
// final. Identifiers returned by Add are dense, starting at 0.
type Staging struct {
	entries []entry
	top     []int
}

// Add stages b below the bookmark anchor, or at the top level after all
// previously added top-level bookmarks when anchor is nil or unknown.
func (s *Staging) Add(b Bookmark, anchor *int) int {
	id := len(s.entries)
	s.entries = append(s.entries, entry{bookmark: b})
	if anchor != nil && *anchor >= 0 && *anchor < id {
		s.entries[*anchor].children = append(s.entries[*anchor].children, id)
	} else {
		s.top = append(s.top, id)
	}
	return id
}

func (s *Staging) Len() int { return len(s.entries) }

func (s *Staging) Get(id int) (Bookmark, bool) {
	if id < 0 || id >= len(s.entries) {
		return Bookmark{}, false
	}
	return s.entries[id].bookmark, true
}

// Bookmarks returns the staged bookmarks in insertion order.
func (s *Staging) Bookmarks() []Bookmark {
	out := make([]Bookmark, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.bookmark
	}
	return out
}

// Remap rewrites every target through mapping. Targets missing from the
// mapping become the zero reference.
func (s *Staging) Remap(mapping map[raw.ObjectRef]raw.ObjectRef) {
	for i := range s.entries {
		s.entries[i].bookmark.Page = mapping[s.entries[i].bookmark.Page]
	}
}

// FixTargets points every bookmark whose target is zero or not a page of
// doc at fallback(id). It reports how many targets changed.
func (s *Staging) FixTargets(doc *raw.Document, fallback func(id int) (raw.ObjectRef, bool)) int {
	fixed := 0
	for i := range s.entries {
		target := s.entries[i].bookmark.Page
		if !target.IsZero() {
			if obj, ok := doc.Get(target); ok && raw.KindOf(obj) == raw.KindPage {
				continue
			}
		}
		if ref, ok := fallback(i); ok && ref != target {
			s.entries[i].bookmark.Page = ref
			fixed++
		}
	}
	return fixed
}

// Build adds the outline root and one item per staged bookmark to doc and
// links it from the catalog. It returns false when nothing is staged.
func (s *Staging) Build(doc *raw.Document) (raw.ObjectRef, bool, error) {
	if len(s.top) == 0 {
		return raw.ObjectRef{}, false, nil
	}
	_, catalog, err := doc.Catalog()
	if err != nil {
		return raw.ObjectRef{}, false, ErrNoCatalog
	}

	rootRef := doc.NewRef()
	root := raw.Dict()
	root.Set("Type", raw.NameLiteral("Outlines"))
	doc.Objects[rootRef] = root

	first, last, count := s.buildItems(doc, s.top, rootRef)
	root.Set("First", raw.RefTo(first))
	root.Set("Last", raw.RefTo(last))
	root.Set("Count", raw.NumberInt(count))

	catalog.Set("Outlines", raw.RefTo(rootRef))
	catalog.Set("PageMode", raw.NameLiteral("UseOutlines"))
	return rootRef, true, nil
}

func (s *Staging) buildItems(doc *raw.Document, ids []int, parent raw.ObjectRef) (first, last raw.ObjectRef, count int64) {
	refs := make([]raw.ObjectRef, len(ids))
	for i := range ids {
		refs[i] = doc.NewRef()
	}
	for i, id := range ids {
		count++
		e := s.entries[id]
		b := e.bookmark
		d := raw.Dict()
		// typed so that KindOf tells items apart from other dictionaries
		d.Set("Type", raw.NameLiteral("Outline"))
		d.Set("Title", EncodeText(b.Title))
		d.Set("Parent", raw.RefTo(parent))
		if !b.Page.IsZero() {
			d.Set("Dest", raw.NewArray(raw.RefTo(b.Page), raw.NameLiteral(b.Fit.name())))
		}
		if b.Color != (Color{}) {
			d.Set("C", raw.NewArray(raw.NumberFloat(b.Color[0]), raw.NumberFloat(b.Color[1]), raw.NumberFloat(b.Color[2])))
		}
		if b.Style != 0 {
			d.Set("F", raw.NumberInt(int64(b.Style)))
		}
		if i > 0 {
			d.Set("Prev", raw.RefTo(refs[i-1]))
		}
		if i < len(refs)-1 {
			d.Set("Next", raw.RefTo(refs[i+1]))
		}
		if len(e.children) > 0 {
			firstChild, lastChild, childCount := s.buildItems(doc, e.children, refs[i])
			d.Set("First", raw.RefTo(firstChild))
			d.Set("Last", raw.RefTo(lastChild))
			d.Set("Count", raw.NumberInt(childCount))
			count += childCount
		}
		doc.Objects[refs[i]] = d
	}
	return refs[0], refs[len(refs)-1], count
}
