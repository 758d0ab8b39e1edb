package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/tekikaito/stapler/filters"
	"github.com/tekikaito/stapler/ir/raw"
	"github.com/tekikaito/stapler/recovery"
	"github.com/tekikaito/stapler/scanner"
)

var (
	ErrNoStartXRef = errors.New("startxref not found")
	ErrBadXRef     = errors.New("malformed cross-reference section")
)

type EntryKind int

const (
	EntryFree EntryKind = iota
	EntryInUse
	EntryCompressed
)

// Entry locates one object. In-use objects have a byte Offset; compressed
// objects live at position Index inside object stream Stream.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table maps object numbers to their locations.
type Table interface {
	Lookup(objNum int) (Entry, bool)
	Objects() []int
	Trailer() *raw.DictObj
	Type() string
}

// Resolver locates and parses xref information in a PDF held in memory.
type Resolver interface {
	Resolve(ctx context.Context, data []byte) (Table, error)
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
	Filters      *filters.Pipeline
}

// NewResolver returns a resolver that follows the startxref chain through
// classic tables and xref streams, and falls back to a full-file scan when
// the recovery strategy allows it.
func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 50
	}
	if cfg.Filters == nil {
		cfg.Filters = filters.Standard(filters.Limits{})
	}
	return &chainResolver{cfg: cfg}
}

type chainResolver struct {
	cfg ResolverConfig
}

func (c *chainResolver) Resolve(ctx context.Context, data []byte) (Table, error) {
	t, err := c.resolveChain(ctx, data)
	if err == nil {
		return t, nil
	}
	if c.cfg.Recovery == nil {
		return nil, err
	}
	action := c.cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"})
	if !action.Continue() {
		return nil, err
	}
	return repair(ctx, data)
}

func (c *chainResolver) resolveChain(ctx context.Context, data []byte) (Table, error) {
	offset, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	merged := &table{entries: make(map[int]Entry), kind: "table"}
	visited := make(map[int64]bool)
	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= c.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("%w: xref chain deeper than %d", ErrBadXRef, c.cfg.MaxXRefDepth)
		}
		if visited[offset] {
			// a Prev loop ends the chain
			break
		}
		visited[offset] = true

		entries, trailer, isStream, err := c.readSection(ctx, data, offset)
		if err != nil {
			return nil, err
		}
		if isStream {
			merged.kind = "stream"
		}
		// hybrid files: the XRefStm section fills entries the table leaves free
		if stm, ok := trailer.Int("XRefStm"); ok && !isStream {
			extra, _, _, err := c.readSection(ctx, data, stm)
			if err != nil {
				return nil, fmt.Errorf("XRefStm: %w", err)
			}
			for num, e := range extra {
				if cur, ok := entries[num]; !ok || cur.Kind == EntryFree {
					entries[num] = e
				}
			}
		}
		// newer sections shadow older ones
		for num, e := range entries {
			if _, seen := merged.entries[num]; !seen {
				merged.entries[num] = e
			}
		}
		if merged.trailer == nil {
			merged.trailer = trailer
		} else {
			for _, key := range trailer.Keys() {
				if _, ok := merged.trailer.Get(key); !ok {
					merged.trailer.Set(key, trailer.KV[key])
				}
			}
		}

		prev, ok := trailer.Int("Prev")
		if !ok {
			break
		}
		offset = prev
	}
	merged.trailer.Delete("Prev")
	merged.trailer.Delete("XRefStm")
	return merged, nil
}

// findStartXRef returns the offset recorded after the last startxref keyword.
func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, ErrNoStartXRef
	}
	rest := bytes.TrimLeft(data[idx+len("startxref"):], " \t\r\n\f\x00")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	offset, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	if offset <= 0 || offset >= int64(len(data)) {
		return 0, fmt.Errorf("xref offset out of range: %d", offset)
	}
	return offset, nil
}

func (c *chainResolver) readSection(ctx context.Context, data []byte, offset int64) (map[int]Entry, *raw.DictObj, bool, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return nil, nil, false, fmt.Errorf("%w: offset %d out of range", ErrBadXRef, offset)
	}
	s := scanner.New(data, scanner.Config{})
	if err := s.SeekTo(offset); err != nil {
		return nil, nil, false, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %v", ErrBadXRef, err)
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		entries, trailer, err := readTable(s)
		return entries, trailer, false, err
	}
	if err := s.SeekTo(tok.Pos); err != nil {
		return nil, nil, false, err
	}
	entries, trailer, err := c.readStream(ctx, s)
	return entries, trailer, true, err
}

// readTable parses the subsections of a classic table that follow the xref
// keyword, up to and including the trailer dictionary.
func readTable(s scanner.Scanner) (map[int]Entry, *raw.DictObj, error) {
	entries := make(map[int]Entry)
	r := scanner.NewObjectReader(s, 0, nil)
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrBadXRef, err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			val, err := r.ReadValue()
			if err != nil {
				return nil, nil, fmt.Errorf("trailer: %w", err)
			}
			trailer, ok := val.(*raw.DictObj)
			if !ok {
				return nil, nil, fmt.Errorf("%w: trailer is not a dictionary", ErrBadXRef)
			}
			return entries, trailer, nil
		}
		countTok, err := s.Next()
		if err != nil || tok.Type != scanner.TokenNumber || countTok.Type != scanner.TokenNumber {
			return nil, nil, fmt.Errorf("%w: invalid subsection header at %d", ErrBadXRef, tok.Pos)
		}
		start, count := int(tok.Int), int(countTok.Int)
		for i := 0; i < count; i++ {
			off, err1 := s.Next()
			gen, err2 := s.Next()
			kind, err3 := s.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, nil, fmt.Errorf("%w: unexpected end of section", ErrBadXRef)
			}
			if off.Type != scanner.TokenNumber || gen.Type != scanner.TokenNumber || kind.Type != scanner.TokenKeyword {
				return nil, nil, fmt.Errorf("%w: invalid entry at %d", ErrBadXRef, off.Pos)
			}
			// object 0 heads the free list
			if start+i == 0 {
				continue
			}
			e := Entry{Kind: EntryFree, Gen: int(gen.Int)}
			if kind.Str == "n" {
				e.Kind = EntryInUse
				e.Offset = off.Int
			}
			entries[start+i] = e
		}
	}
}

// readStream parses a cross-reference stream object at the scanner
// position.
func (c *chainResolver) readStream(ctx context.Context, s scanner.Scanner) (map[int]Entry, *raw.DictObj, error) {
	r := scanner.NewObjectReader(s, 0, nil)
	_, obj, err := r.ReadIndirect()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadXRef, err)
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok || !isXRefType(stream.Dict) {
		return nil, nil, fmt.Errorf("%w: expected xref stream", ErrBadXRef)
	}
	decoded, err := c.cfg.Filters.DecodeStream(ctx, stream)
	if err != nil {
		return nil, nil, fmt.Errorf("decode xref stream: %w", err)
	}
	entries, err := decodeStreamEntries(stream.Dict, decoded)
	if err != nil {
		return nil, nil, err
	}
	trailer := stream.Dict.Clone()
	for _, key := range []string{"Type", "Length", "Filter", "DecodeParms", "W", "Index"} {
		trailer.Delete(key)
	}
	return entries, trailer, nil
}

func isXRefType(d *raw.DictObj) bool {
	name, ok := d.Name("Type")
	return ok && name == "XRef"
}

func intArray(d *raw.DictObj, key string) ([]int, bool) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	arr, ok := v.(*raw.ArrayObj)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, arr.Len())
	for _, it := range arr.Items {
		n, ok := it.(raw.NumberObj)
		if !ok {
			return nil, false
		}
		out = append(out, int(n.Int()))
	}
	return out, true
}

func decodeStreamEntries(dict *raw.DictObj, data []byte) (map[int]Entry, error) {
	w, ok := intArray(dict, "W")
	if !ok || len(w) != 3 {
		return nil, fmt.Errorf("%w: xref stream W must hold three widths", ErrBadXRef)
	}
	for _, width := range w {
		if width < 0 || width > 8 {
			return nil, fmt.Errorf("%w: field width %d", ErrBadXRef, width)
		}
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return nil, fmt.Errorf("%w: empty xref stream rows", ErrBadXRef)
	}
	size, _ := dict.Int("Size")
	index, ok := intArray(dict, "Index")
	if !ok {
		index = []int{0, int(size)}
	}
	if len(index)%2 != 0 {
		return nil, fmt.Errorf("%w: odd Index array", ErrBadXRef)
	}

	entries := make(map[int]Entry)
	pos := 0
	for i := 0; i < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return entries, nil
			}
			row := data[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if w[0] > 0 {
				typ = field(row[:w[0]])
			}
			f2 := field(row[w[0] : w[0]+w[1]])
			f3 := field(row[w[0]+w[1]:])
			switch typ {
			case 0:
				entries[start+j] = Entry{Kind: EntryFree, Gen: int(f3)}
			case 1:
				entries[start+j] = Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)}
			case 2:
				entries[start+j] = Entry{Kind: EntryCompressed, Stream: int(f2), Index: int(f3)}
			}
			// other types are reserved and read as null references
		}
	}
	return entries, nil
}

func field(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

type table struct {
	entries map[int]Entry
	trailer *raw.DictObj
	kind    string
}

func (t *table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.Kind == EntryFree {
		return Entry{}, false
	}
	return e, true
}

// Objects lists the object numbers with an in-use or compressed entry.
func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.Kind != EntryFree {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

func (t *table) Trailer() *raw.DictObj { return t.trailer }
func (t *table) Type() string          { return t.kind }
