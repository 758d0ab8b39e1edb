package writer

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sort"

	"github.com/tekikaito/stapler/filters"
	"github.com/tekikaito/stapler/ir/raw"
)

const defaultObjectsPerStream = 100

type impl struct{ interceptors []Interceptor }

// xrefEntry is one row of the cross-reference section being built.
type xrefEntry struct {
	typ    int // 0 free, 1 offset, 2 compressed
	field2 int64
	field3 int
}

type output struct {
	buf     bytes.Buffer
	entries map[int]xrefEntry
}

func (w *impl) Write(ctx context.Context, doc *raw.Document, out io.Writer, cfg Config) error {
	rootRef, ok := doc.Root()
	if !ok {
		return raw.ErrNoRoot
	}
	if _, ok := doc.Get(rootRef); !ok {
		return fmt.Errorf("%w: root object %s missing", raw.ErrNoRoot, rootRef)
	}

	version := pdfVersion(doc, cfg)
	o := &output{entries: make(map[int]xrefEntry)}
	fmt.Fprintf(&o.buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", version)

	refs := doc.Refs()
	size := 1
	if len(refs) > 0 {
		size = refs[len(refs)-1].Num + 1
	}

	var err error
	if cfg.Compress {
		err = w.writeCompressed(ctx, doc, o, refs, size, cfg)
	} else {
		err = w.writeClassic(ctx, doc, o, refs, size, cfg)
	}
	if err != nil {
		return err
	}
	_, err = out.Write(o.buf.Bytes())
	return err
}

func (w *impl) emit(ctx context.Context, o *output, ref raw.ObjectRef, obj raw.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, ic := range w.interceptors {
		if err := ic.BeforeWrite(ctx, ref, obj); err != nil {
			return err
		}
	}
	data, err := w.SerializeObject(ref, obj)
	if err != nil {
		return err
	}
	o.entries[ref.Num] = xrefEntry{typ: 1, field2: int64(o.buf.Len()), field3: ref.Gen}
	o.buf.Write(data)
	for _, ic := range w.interceptors {
		if err := ic.AfterWrite(ctx, ref, obj, int64(len(data))); err != nil {
			return err
		}
	}
	return nil
}

func (w *impl) writeClassic(ctx context.Context, doc *raw.Document, o *output, refs []raw.ObjectRef, size int, cfg Config) error {
	for _, ref := range refs {
		if err := w.emit(ctx, o, ref, doc.Objects[ref]); err != nil {
			return err
		}
	}

	xrefOffset := o.buf.Len()
	fmt.Fprintf(&o.buf, "xref\n0 %d\n", size)
	o.buf.WriteString("0000000000 65535 f \n")
	for i := 1; i < size; i++ {
		if e, ok := o.entries[i]; ok {
			fmt.Fprintf(&o.buf, "%010d %05d n \n", e.field2, e.field3)
		} else {
			o.buf.WriteString("0000000000 00000 f \n")
		}
	}
	trailer := buildTrailer(doc, size, fileID(doc, o.buf.Bytes(), cfg))
	o.buf.WriteString("trailer\n")
	if err := writeObject(&o.buf, trailer); err != nil {
		return err
	}
	fmt.Fprintf(&o.buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return nil
}

// writeCompressed writes streams and objects with a non-zero generation
// directly, packs every other object into object streams and indexes the
// result with a flate-compressed xref stream.
func (w *impl) writeCompressed(ctx context.Context, doc *raw.Document, o *output, refs []raw.ObjectRef, size int, cfg Config) error {
	perStream := cfg.ObjectsPerStream
	if perStream <= 0 {
		perStream = defaultObjectsPerStream
	}
	var packable []raw.ObjectRef
	for _, ref := range refs {
		obj := doc.Objects[ref]
		if _, isStream := obj.(*raw.StreamObj); isStream || ref.Gen != 0 {
			if err := w.emit(ctx, o, ref, obj); err != nil {
				return err
			}
			continue
		}
		packable = append(packable, ref)
	}

	next := size
	for start := 0; start < len(packable); start += perStream {
		end := start + perStream
		if end > len(packable) {
			end = len(packable)
		}
		streamRef := raw.ObjectRef{Num: next}
		next++
		objStm, err := buildObjectStream(doc, packable[start:end])
		if err != nil {
			return err
		}
		for i, ref := range packable[start:end] {
			o.entries[ref.Num] = xrefEntry{typ: 2, field2: int64(streamRef.Num), field3: i}
		}
		if err := w.emit(ctx, o, streamRef, objStm); err != nil {
			return err
		}
	}

	xrefRef := raw.ObjectRef{Num: next}
	size = next + 1
	xrefOffset := int64(o.buf.Len())
	o.entries[xrefRef.Num] = xrefEntry{typ: 1, field2: xrefOffset}

	rows := make([]byte, 0, size*7)
	for i := 0; i < size; i++ {
		e, ok := o.entries[i]
		if !ok {
			e = xrefEntry{typ: 0}
			if i == 0 {
				e.field3 = 65535
			}
		}
		rows = appendXRefStreamEntry(rows, e)
	}
	data, err := filters.FlateEncode(rows)
	if err != nil {
		return err
	}
	dict := buildTrailer(doc, size, fileID(doc, o.buf.Bytes(), cfg))
	dict.Set("Type", raw.NameLiteral("XRef"))
	dict.Set("W", raw.NewArray(raw.NumberInt(1), raw.NumberInt(4), raw.NumberInt(2)))
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	serialized, err := w.SerializeObject(xrefRef, raw.NewStream(dict, data))
	if err != nil {
		return err
	}
	o.buf.Write(serialized)
	fmt.Fprintf(&o.buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return nil
}

// buildObjectStream packs refs into one /ObjStm stream.
func buildObjectStream(doc *raw.Document, refs []raw.ObjectRef) (*raw.StreamObj, error) {
	var header, body bytes.Buffer
	for _, ref := range refs {
		fmt.Fprintf(&header, "%d %d ", ref.Num, body.Len())
		if err := writeObject(&body, doc.Objects[ref]); err != nil {
			return nil, fmt.Errorf("object %s: %w", ref, err)
		}
		body.WriteByte('\n')
	}
	payload := append(header.Bytes(), body.Bytes()...)
	data, err := filters.FlateEncode(payload)
	if err != nil {
		return nil, err
	}
	dict := raw.Dict()
	dict.Set("Type", raw.NameLiteral("ObjStm"))
	dict.Set("N", raw.NumberInt(int64(len(refs))))
	dict.Set("First", raw.NumberInt(int64(header.Len())))
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	return raw.NewStream(dict, data), nil
}

func appendXRefStreamEntry(buf []byte, e xrefEntry) []byte {
	buf = append(buf, byte(e.typ))
	v := uint32(e.field2)
	buf = append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	return append(buf, byte(e.field3>>8), byte(e.field3))
}

func buildTrailer(doc *raw.Document, size int, id raw.Object) *raw.DictObj {
	trailer := raw.Dict()
	trailer.Set("Size", raw.NumberInt(int64(size)))
	for _, key := range []string{"Root", "Info"} {
		if v, ok := doc.Trailer.Get(key); ok {
			trailer.Set(key, v)
		}
	}
	trailer.Set("ID", id)
	return trailer
}

func pdfVersion(doc *raw.Document, cfg Config) string {
	v := string(cfg.Version)
	if v == "" {
		v = doc.Version
	}
	if v == "" {
		v = string(PDF17)
	}
	if cfg.Compress && raw.VersionLess(v, string(PDF15)) {
		v = string(PDF15)
	}
	return v
}

// fileID keeps an existing two-element ID and otherwise creates one, from
// the bytes written so far when deterministic output is requested.
func fileID(doc *raw.Document, written []byte, cfg Config) raw.Object {
	if v, ok := doc.Trailer.Get("ID"); ok {
		if arr, ok := v.(*raw.ArrayObj); ok && arr.Len() == 2 {
			return arr
		}
	}
	var id []byte
	if cfg.Deterministic {
		sum := sha256.Sum256(written)
		id = sum[:16]
	} else {
		id = make([]byte, 16)
		if _, err := rand.Read(id); err != nil {
			sum := sha256.Sum256(written)
			id = sum[:16]
		}
	}
	return raw.NewArray(
		raw.StringObj{Bytes: id, Hex: true},
		raw.StringObj{Bytes: append([]byte(nil), id...), Hex: true},
	)
}

func sortedUnique(keys []string) []string {
	sort.Strings(keys)
	out := keys[:0]
	for i, k := range keys {
		if i > 0 && k == keys[i-1] {
			continue
		}
		out = append(out, k)
	}
	return out
}
