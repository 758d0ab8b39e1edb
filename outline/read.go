package outline

import "github.com/tekikaito/stapler/ir/raw"

// Item is one entry of an existing outline.
type Item struct {
	Title string
	Page  raw.ObjectRef // zero when the entry has no explicit page destination
	Depth int
}

// Read flattens the document outline in display order. Cycles in the
// sibling or child chains end the walk at the repeated item.
func Read(doc *raw.Document) []Item {
	_, catalog, err := doc.Catalog()
	if err != nil {
		return nil
	}
	root, ok := doc.ResolveDict(catalog.KV["Outlines"])
	if !ok {
		return nil
	}
	var items []Item
	seen := make(map[raw.ObjectRef]bool)
	var walk func(ref raw.ObjectRef, depth int)
	walk = func(ref raw.ObjectRef, depth int) {
		for !ref.IsZero() && !seen[ref] {
			seen[ref] = true
			d, ok := doc.ResolveDict(raw.RefTo(ref))
			if !ok {
				return
			}
			it := Item{Depth: depth}
			if s, ok := doc.Resolve(d.KV["Title"]).(raw.StringObj); ok {
				it.Title = DecodeText(s.Bytes)
			}
			if dest, ok := doc.Resolve(d.KV["Dest"]).(*raw.ArrayObj); ok && len(dest.Items) > 0 {
				if r, ok := dest.Items[0].(raw.RefObj); ok {
					it.Page = r.R
				}
			}
			items = append(items, it)
			if child, ok := d.Ref("First"); ok {
				walk(child, depth+1)
			}
			ref, _ = d.Ref("Next")
		}
	}
	first, _ := root.Ref("First")
	walk(first, 0)
	return items
}
