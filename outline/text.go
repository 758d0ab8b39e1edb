package outline

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"

	"github.com/tekikaito/stapler/ir/raw"
)

var utf16BOM = []byte{0xFE, 0xFF}

// EncodeText returns s as a PDF text string. Titles are normalized to NFC;
// plain ASCII is stored as is and anything else as UTF-16BE with a byte
// order mark.
func EncodeText(s string) raw.StringObj {
	s = norm.NFC.String(s)
	if isASCII(s) {
		return raw.Str([]byte(s))
	}
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return raw.Str([]byte(s))
	}
	return raw.StringObj{Bytes: out, Hex: true}
}

// DecodeText is the inverse of EncodeText for strings that are either
// UTF-16BE with a byte order mark or ASCII.
func DecodeText(b []byte) string {
	if !bytes.HasPrefix(b, utf16BOM) {
		return string(b)
	}
	dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
	out, err := dec.Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
