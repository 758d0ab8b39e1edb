package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/tekikaito/stapler/filters"
	"github.com/tekikaito/stapler/ir/raw"
	"github.com/tekikaito/stapler/recovery"
	"github.com/tekikaito/stapler/scanner"
	"github.com/tekikaito/stapler/security"
	"github.com/tekikaito/stapler/xref"
)

// maxLengthChain bounds indirect /Length lookups that lead to further
// indirect lookups.
const maxLengthChain = 8

type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
}

// objectLoader reads objects out of an in-memory file using its xref table.
// It is not safe for concurrent use.
type objectLoader struct {
	data     []byte
	table    xref.Table
	limits   security.Limits
	recovery recovery.Strategy
	filters  *filters.Pipeline
	objstm   map[int]map[int]raw.Object
	depth    int
}

func newObjectLoader(data []byte, table xref.Table, limits security.Limits, rec recovery.Strategy, pipeline *filters.Pipeline) *objectLoader {
	return &objectLoader{
		data:     data,
		table:    table,
		limits:   limits,
		recovery: rec,
		filters:  pipeline,
		objstm:   make(map[int]map[int]raw.Object),
	}
}

func (o *objectLoader) scannerConfig() scanner.Config {
	return scanner.Config{
		MaxStringLength: o.limits.MaxStringLength,
		MaxStreamLength: o.limits.MaxStreamLength,
		Recovery:        o.recovery,
	}
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	e, ok := o.table.Lookup(ref.Num)
	if !ok {
		return nil, fmt.Errorf("object %s not found in xref", ref)
	}
	switch e.Kind {
	case xref.EntryCompressed:
		return o.loadFromObjectStream(ctx, ref.Num, e.Stream)
	default:
		return o.loadAtOffset(ref.Num, e.Gen, e.Offset)
	}
}

func (o *objectLoader) loadAtOffset(num, gen int, offset int64) (raw.Object, error) {
	s := scanner.New(o.data, o.scannerConfig())
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	r := scanner.NewObjectReader(s, o.limits.MaxNestingDepth, o.lengthOf)
	ref, obj, err := r.ReadIndirect()
	if err != nil {
		return nil, err
	}
	if ref.Num != num || ref.Gen != gen {
		return nil, fmt.Errorf("object header mismatch: expected %d %d, found %s", num, gen, ref)
	}
	return obj, nil
}

// lengthOf resolves an indirect /Length value while a stream is being read.
func (o *objectLoader) lengthOf(ref raw.ObjectRef) (int64, bool) {
	if o.depth >= maxLengthChain {
		return 0, false
	}
	o.depth++
	defer func() { o.depth-- }()
	obj, err := o.Load(context.Background(), ref)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(raw.NumberObj)
	if !ok || n.Int() < 0 {
		return 0, false
	}
	return n.Int(), true
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, num, streamNum int) (raw.Object, error) {
	objs, ok := o.objstm[streamNum]
	if !ok {
		var err error
		objs, err = o.expandObjectStream(ctx, streamNum)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", streamNum, err)
		}
		o.objstm[streamNum] = objs
	}
	obj, ok := objs[num]
	if !ok {
		return nil, fmt.Errorf("object %d not found in object stream %d", num, streamNum)
	}
	return obj, nil
}

// expandObjectStream parses every member of an object stream.
func (o *objectLoader) expandObjectStream(ctx context.Context, streamNum int) (map[int]raw.Object, error) {
	e, ok := o.table.Lookup(streamNum)
	if !ok || e.Kind != xref.EntryInUse {
		return nil, errors.New("object stream entry missing")
	}
	obj, err := o.loadAtOffset(streamNum, e.Gen, e.Offset)
	if err != nil {
		return nil, err
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, errors.New("object stream is not a stream")
	}
	n, _ := st.Dict.Int("N")
	first, _ := st.Dict.Int("First")
	data, err := o.filters.DecodeStream(ctx, st)
	if err != nil {
		return nil, err
	}
	if first < 0 || first > int64(len(data)) {
		return nil, errors.New("object stream First exceeds length")
	}

	header := scanner.New(data[:first], o.scannerConfig())
	pairs := make([]int64, 0, 2*n)
	for int64(len(pairs)) < 2*n {
		tok, err := header.Next()
		if err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, fmt.Errorf("object stream header: unexpected token %q", tok.Str)
		}
		pairs = append(pairs, tok.Int)
	}

	body := data[first:]
	objs := make(map[int]raw.Object, n)
	for i := 0; i < len(pairs); i += 2 {
		objNum, off := int(pairs[i]), pairs[i+1]
		s := scanner.New(body, o.scannerConfig())
		if err := s.SeekTo(off); err != nil {
			return nil, fmt.Errorf("member %d: %w", objNum, err)
		}
		val, err := scanner.NewObjectReader(s, o.limits.MaxNestingDepth, nil).ReadValue()
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", objNum, err)
		}
		// the first occurrence of a number in a stream wins
		if _, dup := objs[objNum]; !dup {
			objs[objNum] = val
		}
	}
	return objs, nil
}
