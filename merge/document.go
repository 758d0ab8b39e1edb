package merge

import (
	"github.com/tekikaito/stapler/ir/raw"
	"github.com/tekikaito/stapler/outline"
)

// Document is one source prepared for merging: its object store, the
// name its bookmark is labelled with and its pages in native order.
//
// A Document is renumbered once and then consumed by a merge; it must not
// be reused afterwards.
type Document struct {
	OriginalFilename string

	store *raw.Document
	pages []raw.ObjectRef
}

// NewDocument wraps an already parsed store.
func NewDocument(originalFilename string, store *raw.Document) *Document {
	if store.Objects == nil {
		store.Objects = make(map[raw.ObjectRef]raw.Object)
	}
	if store.Trailer == nil {
		store.Trailer = raw.Dict()
	}
	store.RecomputeMaxID()
	return &Document{
		OriginalFilename: originalFilename,
		store:            store,
		pages:            store.Pages(),
	}
}

// Renumber shifts every object number of the document by offset.
func (d *Document) Renumber(offset int) {
	d.store.RenumberWithOffset(offset)
	for i, p := range d.pages {
		d.pages[i] = raw.ObjectRef{Num: p.Num + offset, Gen: p.Gen}
	}
}

// FirstPage returns the first page in native order, or false for a
// document without pages.
func (d *Document) FirstPage() (raw.ObjectRef, bool) {
	if len(d.pages) == 0 {
		return raw.ObjectRef{}, false
	}
	return d.pages[0], true
}

func (d *Document) MaxID() int { return d.store.MaxID }

func (d *Document) Pages() []raw.ObjectRef { return d.pages }

func (d *Document) Objects() map[raw.ObjectRef]raw.Object { return d.store.Objects }

func (d *Document) Raw() *raw.Document { return d.store }

// Bookmark returns the entry that represents this document in the merged
// outline.
func (d *Document) Bookmark(target raw.ObjectRef) outline.Bookmark {
	return outline.New(d.OriginalFilename, target)
}
