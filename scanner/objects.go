package scanner

import (
	"errors"
	"fmt"
	"io"

	"github.com/tekikaito/stapler/ir/raw"
)

var (
	ErrNestingTooDeep = errors.New("object nesting too deep")
	ErrNotIndirect    = errors.New("expected 'N G obj'")
)

// LengthResolver returns the value of an indirect /Length entry.
type LengthResolver func(ref raw.ObjectRef) (int64, bool)

// ObjectReader assembles raw objects from the tokens of a Scanner.
type ObjectReader struct {
	s        Scanner
	pending  []Token
	maxDepth int
	lengths  LengthResolver
}

// NewObjectReader wraps s. A maxDepth of zero disables the nesting check.
func NewObjectReader(s Scanner, maxDepth int, lengths LengthResolver) *ObjectReader {
	return &ObjectReader{s: s, maxDepth: maxDepth, lengths: lengths}
}

func (r *ObjectReader) next() (Token, error) {
	if n := len(r.pending); n > 0 {
		tok := r.pending[n-1]
		r.pending = r.pending[:n-1]
		return tok, nil
	}
	return r.s.Next()
}

func (r *ObjectReader) unread(tok Token) { r.pending = append(r.pending, tok) }

// ReadIndirect reads "N G obj <value> [stream] endobj" at the current
// position.
func (r *ObjectReader) ReadIndirect() (raw.ObjectRef, raw.Object, error) {
	num, err := r.next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	gen, err := r.next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	kw, err := r.next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	if num.Type != TokenNumber || !num.IsInt || gen.Type != TokenNumber || !gen.IsInt || kw.Type != TokenKeyword || kw.Str != "obj" {
		return raw.ObjectRef{}, nil, fmt.Errorf("%w at offset %d", ErrNotIndirect, num.Pos)
	}
	ref := raw.ObjectRef{Num: int(num.Int), Gen: int(gen.Int)}

	val, err := r.ReadValue()
	if err != nil {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}

	if dict, ok := val.(*raw.DictObj); ok {
		r.hintLength(dict)
	}
	tok, err := r.next()
	if errors.Is(err, io.EOF) {
		// a missing endobj at end of input is tolerated
		return ref, val, nil
	}
	if err != nil {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}
	switch {
	case tok.Type == TokenStream:
		dict, ok := val.(*raw.DictObj)
		if !ok {
			return ref, nil, fmt.Errorf("object %s: stream without dictionary", ref)
		}
		val = raw.NewStream(dict, tok.Bytes)
		if end, err := r.next(); err == nil && !(end.Type == TokenKeyword && end.Str == "endobj") {
			r.unread(end)
		}
	case tok.Type == TokenKeyword && tok.Str == "endobj":
	default:
		r.unread(tok)
	}
	return ref, val, nil
}

func (r *ObjectReader) hintLength(dict *raw.DictObj) {
	v, ok := dict.Get("Length")
	if !ok {
		return
	}
	switch l := v.(type) {
	case raw.NumberObj:
		r.s.SetNextStreamLength(l.Int())
	case raw.RefObj:
		if r.lengths == nil {
			return
		}
		if n, ok := r.lengths(l.R); ok {
			r.s.SetNextStreamLength(n)
		}
	}
}

// ReadValue reads one direct object.
func (r *ObjectReader) ReadValue() (raw.Object, error) {
	return r.readValue(0)
}

func (r *ObjectReader) readValue(depth int) (raw.Object, error) {
	if r.maxDepth > 0 && depth > r.maxDepth {
		return nil, ErrNestingTooDeep
	}
	tok, err := r.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case TokenNull:
		return raw.NullObj{}, nil
	case TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case TokenName:
		return raw.NameLiteral(tok.Str), nil
	case TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case TokenRef:
		return raw.Ref(int(tok.Int), tok.Gen), nil
	case TokenArray:
		arr := raw.NewArray()
		for {
			t, err := r.next()
			if err != nil {
				return nil, fmt.Errorf("unterminated array: %w", err)
			}
			if t.Type == TokenKeyword && t.Str == "]" {
				return arr, nil
			}
			r.unread(t)
			item, err := r.readValue(depth + 1)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	case TokenDict:
		dict := raw.Dict()
		for {
			t, err := r.next()
			if err != nil {
				return nil, fmt.Errorf("unterminated dictionary: %w", err)
			}
			if t.Type == TokenKeyword && t.Str == ">>" {
				return dict, nil
			}
			if t.Type != TokenName {
				return nil, fmt.Errorf("dictionary key must be a name, got %q at offset %d", t.Str, t.Pos)
			}
			val, err := r.readValue(depth + 1)
			if err != nil {
				return nil, err
			}
			// a null value is equivalent to an absent entry
			if _, isNull := val.(raw.NullObj); isNull {
				continue
			}
			dict.Set(t.Str, val)
		}
	default:
		return nil, fmt.Errorf("unexpected token %q at offset %d", tok.Str, tok.Pos)
	}
}
