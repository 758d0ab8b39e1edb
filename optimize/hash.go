package optimize

import (
	"encoding/binary"
	"hash"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/tekikaito/stapler/ir/raw"
)

func hashObject(obj raw.Object) [32]byte {
	h, _ := blake2b.New256(nil)
	writeHash(h, obj)
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// writeHash feeds a canonical, length-prefixed encoding of obj to h so that
// distinct objects cannot collide by concatenation.
func writeHash(h hash.Hash, obj raw.Object) {
	var scratch [8]byte
	putInt := func(v int64) {
		binary.BigEndian.PutUint64(scratch[:], uint64(v))
		h.Write(scratch[:])
	}
	putBytes := func(b []byte) {
		putInt(int64(len(b)))
		h.Write(b)
	}

	switch t := obj.(type) {
	case nil, raw.NullObj:
		h.Write([]byte{'z'})
	case raw.NameObj:
		h.Write([]byte{'n'})
		putBytes([]byte(t.Val))
	case raw.NumberObj:
		if t.IsInt {
			h.Write([]byte{'i'})
			putInt(t.I)
		} else {
			h.Write([]byte{'f'})
			putInt(int64(math.Float64bits(t.F)))
		}
	case raw.BoolObj:
		if t.V {
			h.Write([]byte{'t'})
		} else {
			h.Write([]byte{'F'})
		}
	case raw.StringObj:
		h.Write([]byte{'s'})
		putBytes(t.Bytes)
	case raw.RefObj:
		h.Write([]byte{'r'})
		putInt(int64(t.R.Num))
		putInt(int64(t.R.Gen))
	case *raw.ArrayObj:
		h.Write([]byte{'a'})
		putInt(int64(len(t.Items)))
		for _, item := range t.Items {
			writeHash(h, item)
		}
	case *raw.DictObj:
		h.Write([]byte{'d'})
		writeDictHash(h, t, "")
	case *raw.StreamObj:
		h.Write([]byte{'S'})
		writeDictHash(h, t.Dict, "Length")
		putBytes(t.Data)
	}
}

func writeDictHash(h hash.Hash, d *raw.DictObj, skip string) {
	if d == nil {
		return
	}
	for _, k := range d.Keys() {
		if k == skip {
			continue
		}
		h.Write([]byte(k))
		h.Write([]byte{0})
		writeHash(h, d.KV[k])
	}
	h.Write([]byte{0xff})
}
