package raw

import (
	"fmt"
	"strings"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// IsZero reports whether r is the unset reference (object 0 is never a
// valid target).
func (r ObjectRef) IsZero() bool { return r.Num == 0 }

// Less orders references by number, then generation.
func (r ObjectRef) Less(o ObjectRef) bool {
	if r.Num != o.Num {
		return r.Num < o.Num
	}
	return r.Gen < o.Gen
}

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Reference represents an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// Document is the root container for raw PDF objects.
//
// Objects is the indexed object store. MaxID tracks the highest object
// number handed out; it is kept current by Add, RenumberWithOffset and
// Compact and can be recomputed with RecomputeMaxID after direct edits of
// Objects.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *DictObj
	Version string // e.g., "1.7"
	MaxID   int
}

// NewDocument returns an empty document with the given header version.
func NewDocument(version string) *Document {
	return &Document{
		Objects: make(map[ObjectRef]Object),
		Trailer: Dict(),
		Version: version,
	}
}

// VersionLess compares "major.minor" header versions numerically.
func VersionLess(a, b string) bool {
	am, an, _ := strings.Cut(a, ".")
	bm, bn, _ := strings.Cut(b, ".")
	if len(am) != len(bm) {
		return len(am) < len(bm)
	}
	if am != bm {
		return am < bm
	}
	if len(an) != len(bn) {
		return len(an) < len(bn)
	}
	return an < bn
}
