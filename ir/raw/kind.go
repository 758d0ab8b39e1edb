package raw

// Kind classifies an object by its /Type entry. Only the types that take
// part in document structure get their own value; everything else is
// KindOther.
type Kind int

const (
	KindOther Kind = iota
	KindCatalog
	KindPages
	KindPage
	KindOutlines
	KindOutline
)

func (k Kind) String() string {
	switch k {
	case KindCatalog:
		return "Catalog"
	case KindPages:
		return "Pages"
	case KindPage:
		return "Page"
	case KindOutlines:
		return "Outlines"
	case KindOutline:
		return "Outline"
	default:
		return "Other"
	}
}

// KindOf reads the /Type name of a dictionary or stream dictionary.
func KindOf(obj Object) Kind {
	var d *DictObj
	switch v := obj.(type) {
	case *DictObj:
		d = v
	case *StreamObj:
		d = v.Dict
	default:
		return KindOther
	}
	name, ok := d.Name("Type")
	if !ok {
		return KindOther
	}
	return kindByName[name]
}

var kindByName = map[string]Kind{
	"Catalog":  KindCatalog,
	"Pages":    KindPages,
	"Page":     KindPage,
	"Outlines": KindOutlines,
	"Outline":  KindOutline,
}
