package raw

// MapRefs walks obj and replaces every reference r by fn(r). Arrays,
// dictionaries and stream dictionaries are updated in place; the returned
// value replaces obj itself when obj is a bare reference.
func MapRefs(obj Object, fn func(ObjectRef) Object) Object {
	switch t := obj.(type) {
	case RefObj:
		return fn(t.R)
	case *ArrayObj:
		for i, val := range t.Items {
			t.Items[i] = MapRefs(val, fn)
		}
	case *DictObj:
		if t == nil {
			return obj
		}
		for key, val := range t.KV {
			t.KV[key] = MapRefs(val, fn)
		}
	case *StreamObj:
		MapRefs(t.Dict, fn)
	}
	return obj
}

// WalkRefs calls fn for every reference contained in obj.
func WalkRefs(obj Object, fn func(ObjectRef)) {
	switch t := obj.(type) {
	case RefObj:
		fn(t.R)
	case *ArrayObj:
		for _, val := range t.Items {
			WalkRefs(val, fn)
		}
	case *DictObj:
		if t == nil {
			return
		}
		for _, val := range t.KV {
			WalkRefs(val, fn)
		}
	case *StreamObj:
		WalkRefs(t.Dict, fn)
	}
}

// RenumberWithOffset shifts every object number in the document, including
// references held by objects and the trailer, by offset. Generations are
// kept. MaxID is advanced accordingly.
func (d *Document) RenumberWithOffset(offset int) {
	if offset == 0 {
		return
	}
	shift := func(r ObjectRef) Object {
		return RefTo(ObjectRef{Num: r.Num + offset, Gen: r.Gen})
	}
	objects := make(map[ObjectRef]Object, len(d.Objects))
	for ref, obj := range d.Objects {
		objects[ObjectRef{Num: ref.Num + offset, Gen: ref.Gen}] = MapRefs(obj, shift)
	}
	d.Objects = objects
	if d.Trailer != nil {
		MapRefs(d.Trailer, shift)
	}
	d.RecomputeMaxID()
}

// Compact renumbers the whole object graph contiguously from 1 with
// generation 0, following ascending order of the current references. Every
// reference in the objects and the trailer is rewritten in the same pass;
// references to objects that are not in the store become null. The returned
// mapping translates old references to new ones.
func (d *Document) Compact() map[ObjectRef]ObjectRef {
	refs := d.Refs()
	mapping := make(map[ObjectRef]ObjectRef, len(refs))
	for i, ref := range refs {
		mapping[ref] = ObjectRef{Num: i + 1}
	}
	rewrite := func(r ObjectRef) Object {
		if nr, ok := mapping[r]; ok {
			return RefTo(nr)
		}
		return NullObj{}
	}
	objects := make(map[ObjectRef]Object, len(refs))
	for _, ref := range refs {
		objects[mapping[ref]] = MapRefs(d.Objects[ref], rewrite)
	}
	d.Objects = objects
	if d.Trailer != nil {
		MapRefs(d.Trailer, rewrite)
	}
	d.MaxID = len(refs)
	return mapping
}

// Reachable returns the set of objects reachable from the trailer.
func (d *Document) Reachable() map[ObjectRef]bool {
	seen := make(map[ObjectRef]bool)
	var stack []ObjectRef
	push := func(r ObjectRef) {
		if seen[r] {
			return
		}
		if _, ok := d.Objects[r]; !ok {
			return
		}
		seen[r] = true
		stack = append(stack, r)
	}
	WalkRefs(d.Trailer, push)
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		WalkRefs(d.Objects[r], push)
	}
	return seen
}

// Sweep deletes every object that cannot be reached from the trailer and
// returns how many were dropped. A document without a trailer is left alone.
func (d *Document) Sweep() int {
	if d.Trailer == nil {
		return 0
	}
	reachable := d.Reachable()
	removed := 0
	for ref := range d.Objects {
		if !reachable[ref] {
			delete(d.Objects, ref)
			removed++
		}
	}
	return removed
}
