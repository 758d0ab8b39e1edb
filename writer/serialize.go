package writer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/tekikaito/stapler/ir/raw"
)

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	if err := writeObject(&buf, obj); err != nil {
		return nil, fmt.Errorf("object %s: %w", ref, err)
	}
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

// writeObject emits the textual form of obj. Dictionary keys are written in
// sorted order so output is reproducible.
func writeObject(b *bytes.Buffer, o raw.Object) error {
	switch v := o.(type) {
	case nil, raw.NullObj:
		b.WriteString("null")
	case raw.NameObj:
		b.WriteString(nameLiteral(v.Val))
	case raw.NumberObj:
		b.WriteString(formatNumber(v))
	case raw.BoolObj:
		if v.V {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case raw.StringObj:
		if v.Hex {
			b.WriteByte('<')
			b.WriteString(hex.EncodeToString(v.Bytes))
			b.WriteByte('>')
		} else {
			b.Write(escapeLiteralString(v.Bytes))
		}
	case raw.RefObj:
		fmt.Fprintf(b, "%d %d R", v.R.Num, v.R.Gen)
	case *raw.ArrayObj:
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			if err := writeObject(b, it); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case *raw.DictObj:
		return writeDict(b, v, nil)
	case *raw.StreamObj:
		length := raw.NumberInt(int64(len(v.Data)))
		if err := writeDict(b, v.Dict, map[string]raw.Object{"Length": length}); err != nil {
			return err
		}
		b.WriteString("\nstream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
	default:
		return fmt.Errorf("cannot serialize %T", o)
	}
	return nil
}

func writeDict(b *bytes.Buffer, d *raw.DictObj, override map[string]raw.Object) error {
	keys := d.Keys()
	for k := range override {
		if _, ok := d.Get(k); !ok {
			keys = append(keys, k)
		}
	}
	b.WriteString("<<")
	for _, k := range sortedUnique(keys) {
		val, ok := override[k]
		if !ok {
			val = d.KV[k]
		}
		b.WriteString(nameLiteral(k))
		b.WriteByte(' ')
		if err := writeObject(b, val); err != nil {
			return err
		}
		b.WriteByte(' ')
	}
	b.WriteString(">>")
	return nil
}

func formatNumber(n raw.NumberObj) string {
	if n.IsInt {
		return strconv.FormatInt(n.I, 10)
	}
	if math.IsNaN(n.F) || math.IsInf(n.F, 0) {
		return "0"
	}
	if n.F == math.Trunc(n.F) && math.Abs(n.F) < 1e15 {
		return strconv.FormatInt(int64(n.F), 10) + ".0"
	}
	return strconv.FormatFloat(n.F, 'f', -1, 64)
}

// nameLiteral writes a name with #xx escapes for delimiters, whitespace,
// '#' and bytes outside the printable ASCII range.
func nameLiteral(value string) string {
	var b bytes.Buffer
	b.WriteByte('/')
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if ch < 0x21 || ch > 0x7e || ch == '#' || isDelimiter(ch) {
			fmt.Fprintf(&b, "#%02X", ch)
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func escapeLiteralString(rawBytes []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, ch := range rawBytes {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '\b':
			b.WriteString("\\b")
		case '\f':
			b.WriteString("\\f")
		default:
			if ch < 0x20 || ch >= 0x80 {
				fmt.Fprintf(&b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}
