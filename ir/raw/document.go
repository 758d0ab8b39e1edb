package raw

import (
	"errors"
	"sort"
)

// maxResolveDepth bounds reference chains followed by Resolve.
const maxResolveDepth = 32

var (
	ErrNoRoot     = errors.New("trailer has no Root reference")
	ErrNoPageTree = errors.New("catalog has no Pages reference")
)

// Get returns the object stored under ref.
func (d *Document) Get(ref ObjectRef) (Object, bool) {
	obj, ok := d.Objects[ref]
	return obj, ok
}

// Resolve follows indirect references until a direct object is reached.
// Missing targets resolve to null, as PDF prescribes.
func (d *Document) Resolve(obj Object) Object {
	for i := 0; i < maxResolveDepth; i++ {
		r, ok := obj.(RefObj)
		if !ok {
			return obj
		}
		target, ok := d.Objects[r.R]
		if !ok {
			return NullObj{}
		}
		obj = target
	}
	return NullObj{}
}

// ResolveDict resolves obj and returns it if it is a dictionary.
func (d *Document) ResolveDict(obj Object) (*DictObj, bool) {
	dict, ok := d.Resolve(obj).(*DictObj)
	return dict, ok
}

// Add stores obj under a freshly allocated reference.
func (d *Document) Add(obj Object) ObjectRef {
	ref := d.NewRef()
	d.Objects[ref] = obj
	return ref
}

// NewRef reserves the next free object number.
func (d *Document) NewRef() ObjectRef {
	if d.Objects == nil {
		d.Objects = make(map[ObjectRef]Object)
	}
	d.MaxID++
	return ObjectRef{Num: d.MaxID}
}

// Refs returns all object references in ascending order.
func (d *Document) Refs() []ObjectRef {
	refs := make([]ObjectRef, 0, len(d.Objects))
	for ref := range d.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	return refs
}

// RecomputeMaxID sets MaxID to the highest object number in use.
func (d *Document) RecomputeMaxID() int {
	highest := 0
	for ref := range d.Objects {
		if ref.Num > highest {
			highest = ref.Num
		}
	}
	d.MaxID = highest
	return highest
}

// Root returns the catalog reference from the trailer.
func (d *Document) Root() (ObjectRef, bool) {
	if d.Trailer == nil {
		return ObjectRef{}, false
	}
	return d.Trailer.Ref("Root")
}

// Catalog returns the catalog dictionary and its reference.
func (d *Document) Catalog() (ObjectRef, *DictObj, error) {
	ref, ok := d.Root()
	if !ok {
		return ObjectRef{}, nil, ErrNoRoot
	}
	cat, ok := d.ResolveDict(RefTo(ref))
	if !ok {
		return ref, nil, ErrNoRoot
	}
	return ref, cat, nil
}

// Pages enumerates the page objects of the document in page-tree order.
// Leaves that are not dictionaries are included.
// Nodes are visited at most once, so malformed trees with cycles terminate.
func (d *Document) Pages() []ObjectRef {
	_, cat, err := d.Catalog()
	if err != nil {
		return nil
	}
	rootRef, ok := cat.Ref("Pages")
	if !ok {
		return nil
	}
	var pages []ObjectRef
	seen := make(map[ObjectRef]bool)
	var walk func(ref ObjectRef)
	walk = func(ref ObjectRef) {
		if seen[ref] {
			return
		}
		seen[ref] = true
		node, ok := d.ResolveDict(RefTo(ref))
		if !ok {
			// a kid that exists but is no dictionary is reported as a page
			// so callers can treat it as malformed
			if _, exists := d.Objects[ref]; exists {
				pages = append(pages, ref)
			}
			return
		}
		kids, hasKids := d.Resolve(node.KV["Kids"]).(*ArrayObj)
		if KindOf(node) == KindPage || (!hasKids && KindOf(node) != KindPages) {
			pages = append(pages, ref)
			return
		}
		if !hasKids {
			return
		}
		for _, kid := range kids.Items {
			if r, ok := kid.(RefObj); ok {
				walk(r.R)
			}
		}
	}
	walk(rootRef)
	return pages
}

// InheritableKeys are the page attributes a page takes from its page tree
// ancestors when it does not set them itself.
var InheritableKeys = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// InheritPageAttributes copies inheritable attributes from the page tree
// nodes down onto every page that lacks them, so that each page stays
// self-contained when its ancestors are replaced. The nearest ancestor wins.
// It returns the number of pages changed.
func (d *Document) InheritPageAttributes() int {
	_, cat, err := d.Catalog()
	if err != nil {
		return 0
	}
	rootRef, ok := cat.Ref("Pages")
	if !ok {
		return 0
	}
	changed := 0
	seen := make(map[ObjectRef]bool)
	var walk func(ref ObjectRef, inherited map[string]Object)
	walk = func(ref ObjectRef, inherited map[string]Object) {
		if seen[ref] {
			return
		}
		seen[ref] = true
		node, ok := d.ResolveDict(RefTo(ref))
		if !ok {
			return
		}
		kids, hasKids := d.Resolve(node.KV["Kids"]).(*ArrayObj)
		if KindOf(node) == KindPage || (!hasKids && KindOf(node) != KindPages) {
			set := false
			for _, key := range InheritableKeys {
				if _, own := node.KV[key]; own {
					continue
				}
				if v, ok := inherited[key]; ok {
					// direct containers are copied so that renumbering
					// rewrites each page's copy once
					node.Set(key, Clone(v))
					set = true
				}
			}
			if set {
				changed++
			}
			return
		}
		if !hasKids {
			return
		}
		next := make(map[string]Object, len(InheritableKeys))
		for k, v := range inherited {
			next[k] = v
		}
		for _, key := range InheritableKeys {
			if v, ok := node.KV[key]; ok {
				next[key] = v
			}
		}
		for _, kid := range kids.Items {
			if r, ok := kid.(RefObj); ok {
				walk(r.R, next)
			}
		}
	}
	walk(rootRef, nil)
	return changed
}
