package optimize

import "github.com/tekikaito/stapler/ir/raw"

// combineObjects replaces every indirect object by the lowest-numbered
// object with identical content and drops the duplicates. Combining one
// level can make referring objects identical, so passes repeat until
// nothing changes. Page tree nodes, the catalog and outline items are never
// combined: each of them must stay a distinct node with a single parent.
func combineObjects(doc *raw.Document) map[raw.ObjectRef]raw.ObjectRef {
	all := make(map[raw.ObjectRef]raw.ObjectRef)
	for {
		seen := make(map[[32]byte]raw.ObjectRef)
		replacements := make(map[raw.ObjectRef]raw.ObjectRef)

		for _, ref := range doc.Refs() {
			obj := doc.Objects[ref]
			if raw.KindOf(obj) != raw.KindOther {
				continue
			}
			h := hashObject(obj)
			if original, ok := seen[h]; ok {
				replacements[ref] = original
			} else {
				seen[h] = ref
			}
		}
		if len(replacements) == 0 {
			return all
		}

		applyReplacements(doc, replacements)
		for dup, kept := range replacements {
			delete(doc.Objects, dup)
			all[dup] = kept
		}
		// earlier duplicates pointing at a now-removed object follow it
		for dup, kept := range all {
			if next, ok := replacements[kept]; ok {
				all[dup] = next
			}
		}
	}
}

func applyReplacements(doc *raw.Document, replacements map[raw.ObjectRef]raw.ObjectRef) {
	swap := func(r raw.ObjectRef) raw.Object {
		if nr, ok := replacements[r]; ok {
			return raw.RefTo(nr)
		}
		return raw.RefTo(r)
	}
	for ref, obj := range doc.Objects {
		doc.Objects[ref] = raw.MapRefs(obj, swap)
	}
	if doc.Trailer != nil {
		raw.MapRefs(doc.Trailer, swap)
	}
}
