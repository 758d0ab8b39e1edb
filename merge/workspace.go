package merge

import (
	"context"
	"fmt"
	"sort"

	"github.com/tekikaito/stapler/ir/raw"
	"github.com/tekikaito/stapler/observability"
	"github.com/tekikaito/stapler/outline"
	"github.com/tekikaito/stapler/recovery"
)

type source struct {
	doc      *Document
	bookmark int
	// kidStart is the position of the source's first page among the
	// merged pages; for a source whose pages were all dropped it is the
	// position the next page takes.
	kidStart int
}

// workspace holds the state of a single merge call.
type workspace struct {
	e *Engine

	sources   []source
	bookmarks outline.Staging

	pages    []raw.ObjectRef
	pageObjs map[raw.ObjectRef]raw.Object
	objects  map[raw.ObjectRef]raw.Object
	// owner maps every page to the index of its source.
	owner map[raw.ObjectRef]int

	out        *raw.Document
	catalogRef raw.ObjectRef
	catalog    *raw.DictObj
	pagesRef   raw.ObjectRef
	pagesRoot  *raw.DictObj
	kids       []raw.ObjectRef
	info       raw.Object
}

func newWorkspace(e *Engine, n int) *workspace {
	return &workspace{
		e:        e,
		sources:  make([]source, 0, n),
		pageObjs: make(map[raw.ObjectRef]raw.Object),
		objects:  make(map[raw.ObjectRef]raw.Object),
		owner:    make(map[raw.ObjectRef]int),
		out:      raw.NewDocument(minVersion),
	}
}

// renumber gives every source a disjoint id range, in input order, and
// stages its bookmark.
func (w *workspace) renumber(ctx context.Context, docs []*Document) error {
	nextFree := 1
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.Renumber(nextFree)
		first, ok := d.FirstPage()
		if !ok {
			w.e.logger.Warn("source has no pages", observability.String("source", d.OriginalFilename))
		}
		id := w.bookmarks.Add(d.Bookmark(first), nil)
		w.sources = append(w.sources, source{doc: d, bookmark: id})
		nextFree = d.MaxID() + 1

		if raw.VersionLess(w.out.Version, d.store.Version) {
			w.out.Version = d.store.Version
		}
		if w.info == nil {
			if info, ok := d.store.Trailer.Get("Info"); ok {
				w.info = info
			}
		}
	}
	return nil
}

// accumulate gathers the pages and objects of every source. Attributes a
// page inherits from its own page tree are pushed down first, since every
// tree but one is dissolved by classify.
func (w *workspace) accumulate() {
	for i, s := range w.sources {
		if n := s.doc.store.InheritPageAttributes(); n > 0 {
			w.e.logger.Debug("pushed inherited attributes onto pages",
				observability.String("source", s.doc.OriginalFilename),
				observability.Int("pages", n),
			)
		}
		objects := s.doc.Objects()
		for _, ref := range s.doc.Pages() {
			if _, dup := w.pageObjs[ref]; dup {
				panic(fmt.Sprintf("merge: page %s collides after renumbering", ref))
			}
			w.pages = append(w.pages, ref)
			w.pageObjs[ref] = objects[ref]
			w.owner[ref] = i
		}
		for ref, obj := range objects {
			if _, dup := w.objects[ref]; dup {
				panic(fmt.Sprintf("merge: object %s collides after renumbering", ref))
			}
			w.objects[ref] = obj
		}
	}
}

// classify visits the accumulated objects in id order. The first catalog
// wins, page tree nodes fold into the first one found and native outlines
// are dropped.
func (w *workspace) classify(ctx context.Context) error {
	refs := make([]raw.ObjectRef, 0, len(w.objects))
	for ref := range w.objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })

	for _, ref := range refs {
		obj := w.objects[ref]
		switch kind := raw.KindOf(obj); kind {
		case raw.KindCatalog:
			if w.catalog != nil {
				continue
			}
			dict, ok := obj.(*raw.DictObj)
			if !ok {
				if err := w.inconsistent(ctx, ref, kind); err != nil {
					return err
				}
				continue
			}
			w.catalogRef, w.catalog = ref, dict
		case raw.KindPages:
			dict, ok := obj.(*raw.DictObj)
			if !ok {
				if err := w.inconsistent(ctx, ref, kind); err != nil {
					return err
				}
				continue
			}
			if w.pagesRoot == nil {
				w.pagesRef, w.pagesRoot = ref, dict
				continue
			}
			for k, v := range dict.KV {
				if _, exists := w.pagesRoot.KV[k]; !exists {
					w.pagesRoot.Set(k, v)
				}
			}
		case raw.KindPage, raw.KindOutlines, raw.KindOutline:
		default:
			w.out.Objects[ref] = obj
		}
	}

	if w.pagesRoot == nil {
		return ErrPagesRootNotFound
	}
	if w.catalog == nil {
		return ErrCatalogRootNotFound
	}
	return nil
}

// reparent hangs every page directly below the root page tree node.
func (w *workspace) reparent(ctx context.Context) error {
	next := 0
	for i, ref := range w.pages {
		for next <= w.owner[ref] {
			w.sources[next].kidStart = len(w.kids)
			next++
		}
		dict, ok := w.pageObjs[ref].(*raw.DictObj)
		if !ok {
			if err := w.inconsistent(ctx, ref, raw.KindPage); err != nil {
				return err
			}
			// classify may have copied an untyped leaf
			delete(w.out.Objects, ref)
			continue
		}
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		dict.Set("Parent", raw.RefTo(w.pagesRef))
		w.out.Objects[ref] = dict
		w.kids = append(w.kids, ref)
	}
	for ; next < len(w.sources); next++ {
		w.sources[next].kidStart = len(w.kids)
	}
	return nil
}

func (w *workspace) reconcile() {
	kids := raw.NewArray()
	for _, ref := range w.kids {
		kids.Append(raw.RefTo(ref))
	}
	w.pagesRoot.Set("Kids", kids)
	w.pagesRoot.Set("Count", raw.NumberInt(int64(len(w.kids))))
	// the kept node may have been an intermediate one
	w.pagesRoot.Delete("Parent")
	w.out.Objects[w.pagesRef] = w.pagesRoot

	w.catalog.Set("Pages", raw.RefTo(w.pagesRef))
	w.catalog.Delete("Outlines")
	w.catalog.Delete("AcroForm")
	w.out.Objects[w.catalogRef] = w.catalog

	w.out.Trailer.Set("Root", raw.RefTo(w.catalogRef))
	if ref, ok := w.info.(raw.RefObj); ok {
		if _, exists := w.out.Objects[ref.R]; exists {
			w.out.Trailer.Set("Info", ref)
		}
	}
	w.out.RecomputeMaxID()
}

// compact drops what the merged trailer cannot reach, such as outline items
// of the sources and the page-tree nodes that were folded away, then gives
// the rest contiguous ids.
func (w *workspace) compact() {
	if n := w.out.Sweep(); n > 0 {
		w.e.logger.Debug("removed unreachable objects", observability.Int("count", n))
	}
	mapping := w.out.Compact()
	w.bookmarks.Remap(mapping)
	for i, ref := range w.kids {
		w.kids[i] = mapping[ref]
	}
}

// fixBookmarks points bookmarks whose target did not survive at the first
// merged page of their source, or at the page that follows the source's
// position when it has none.
func (w *workspace) fixBookmarks() {
	bySource := make(map[int]int, len(w.sources))
	for i, s := range w.sources {
		bySource[s.bookmark] = i
	}
	fixed := w.bookmarks.FixTargets(w.out, func(id int) (raw.ObjectRef, bool) {
		i, ok := bySource[id]
		if !ok || len(w.kids) == 0 {
			return raw.ObjectRef{}, false
		}
		pos := w.sources[i].kidStart
		if pos >= len(w.kids) {
			pos = len(w.kids) - 1
		}
		return w.kids[pos], true
	})
	if fixed > 0 {
		w.e.logger.Debug("corrected bookmark targets", observability.Int("count", fixed))
	}
}

func (w *workspace) materializeOutline() error {
	if _, _, err := w.bookmarks.Build(w.out); err != nil {
		return fmt.Errorf("build outline: %w", err)
	}
	return nil
}

// inconsistent reports a malformed structural object to the recovery
// strategy. It returns nil when the object may be skipped.
func (w *workspace) inconsistent(ctx context.Context, ref raw.ObjectRef, kind raw.Kind) error {
	err := &StructuralError{Ref: ref, Kind: kind}
	action := w.e.recovery.OnError(ctx, err, recovery.Location{
		ObjectNum: ref.Num,
		ObjectGen: ref.Gen,
		Component: "Merge",
	})
	if !action.Continue() {
		return err
	}
	w.e.logger.Warn("skipping malformed object",
		observability.String("object", ref.String()),
		observability.String("kind", kind.String()),
	)
	return nil
}
