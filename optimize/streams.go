package optimize

import (
	"github.com/tekikaito/stapler/filters"
	"github.com/tekikaito/stapler/ir/raw"
)

// compressStreams flate-encodes every stream that carries no filter yet.
// XMP metadata stays readable as plain text.
func compressStreams(doc *raw.Document, minSize int) (int, error) {
	count := 0
	for _, ref := range doc.Refs() {
		st, ok := doc.Objects[ref].(*raw.StreamObj)
		if !ok || len(st.Data) < minSize {
			continue
		}
		if _, filtered := st.Dict.Get("Filter"); filtered {
			continue
		}
		if typ, _ := st.Dict.Name("Type"); typ == "Metadata" {
			continue
		}
		compressed, err := filters.FlateEncode(st.Data)
		if err != nil {
			return count, err
		}
		if len(compressed) >= len(st.Data) {
			continue
		}
		st.Data = compressed
		st.Dict.Set("Filter", raw.NameLiteral("FlateDecode"))
		st.Dict.Set("Length", raw.NumberInt(int64(len(compressed))))
		st.Dict.Delete("DecodeParms")
		count++
	}
	return count, nil
}
