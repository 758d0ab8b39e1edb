package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tekikaito/stapler/filters"
	"github.com/tekikaito/stapler/ir/raw"
	"github.com/tekikaito/stapler/observability"
	"github.com/tekikaito/stapler/recovery"
	"github.com/tekikaito/stapler/security"
	"github.com/tekikaito/stapler/xref"
)

var (
	ErrEncrypted      = errors.New("encrypted documents are not supported")
	ErrNotPDF         = errors.New("missing %PDF header")
	ErrTooManyObjects = errors.New("object count exceeds limit")
)

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

// Config controls high-level PDF parsing (xref resolution + object loading).
// Zero limits take the values of security.DefaultLimits.
type Config struct {
	Recovery recovery.Strategy
	Limits   security.Limits
	Logger   observability.Logger
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.Limits = cfg.Limits.WithDefaults()
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &DocumentParser{cfg: cfg}
}

// Parse reads the whole document into memory and loads every live object.
// Cross-reference and object-stream containers are consumed and do not
// appear in the result; the trailer keeps only Root, Info and ID.
func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	version, err := p.headerVersion(ctx, data)
	if err != nil {
		return nil, err
	}

	pipeline := filters.Standard(filters.Limits{MaxDecompressedSize: p.cfg.Limits.MaxDecompressedSize})
	resolver := xref.NewResolver(xref.ResolverConfig{
		MaxXRefDepth: p.cfg.Limits.MaxXRefDepth,
		Recovery:     p.cfg.Recovery,
		Filters:      pipeline,
	})
	table, err := resolver.Resolve(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	if _, ok := table.Trailer().Get("Encrypt"); ok {
		return nil, ErrEncrypted
	}
	nums := table.Objects()
	if len(nums) > p.cfg.Limits.MaxObjects {
		return nil, fmt.Errorf("%w: %d objects", ErrTooManyObjects, len(nums))
	}

	loader := newObjectLoader(data, table, p.cfg.Limits, p.cfg.Recovery, pipeline)
	doc := raw.NewDocument(version)
	for _, num := range nums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, _ := table.Lookup(num)
		ref := raw.ObjectRef{Num: num, Gen: e.Gen}
		if e.Kind == xref.EntryCompressed {
			ref.Gen = 0
		}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			if p.skip(ctx, err, ref, e.Offset) {
				continue
			}
			return nil, fmt.Errorf("load object %d: %w", num, err)
		}
		if isContainer(obj) {
			continue
		}
		doc.Objects[ref] = obj
	}
	doc.RecomputeMaxID()

	doc.Trailer = trailerSubset(table.Trailer())
	if _, ok := doc.Root(); !ok {
		if ref, ok := findCatalog(doc); ok {
			p.cfg.Logger.Warn("trailer has no Root; using first catalog",
				observability.Int("object", ref.Num))
			doc.Trailer.Set("Root", raw.RefTo(ref))
		}
	}
	if _, cat, err := doc.Catalog(); err == nil {
		if v, ok := cat.Name("Version"); ok && raw.VersionLess(doc.Version, v) {
			doc.Version = v
		}
	}

	p.cfg.Logger.Debug("parsed document",
		observability.String("version", doc.Version),
		observability.String("xref", table.Type()),
		observability.Int(observability.MetricObjectCount, len(doc.Objects)),
	)
	return doc, nil
}

// skip asks the recovery strategy whether an unreadable object may be left
// out of the document.
func (p *DocumentParser) skip(ctx context.Context, err error, ref raw.ObjectRef, offset int64) bool {
	if p.cfg.Recovery == nil {
		return false
	}
	action := p.cfg.Recovery.OnError(ctx, err, recovery.Location{
		ByteOffset: offset,
		ObjectNum:  ref.Num,
		ObjectGen:  ref.Gen,
		Component:  "parser",
	})
	return action.Continue()
}

func (p *DocumentParser) headerVersion(ctx context.Context, data []byte) (string, error) {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	idx := bytes.Index(window, []byte("%PDF-"))
	if idx < 0 {
		if p.cfg.Recovery != nil && p.cfg.Recovery.OnError(ctx, ErrNotPDF, recovery.Location{Component: "parser"}).Continue() {
			return "1.4", nil
		}
		return "", ErrNotPDF
	}
	line := window[idx+len("%PDF-"):]
	end := 0
	for end < len(line) && (line[end] == '.' || (line[end] >= '0' && line[end] <= '9')) {
		end++
	}
	if end == 0 {
		return "1.4", nil
	}
	return string(line[:end]), nil
}

func isContainer(obj raw.Object) bool {
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return false
	}
	name, _ := st.Dict.Name("Type")
	return name == "XRef" || name == "ObjStm"
}

func trailerSubset(src *raw.DictObj) *raw.DictObj {
	out := raw.Dict()
	for _, key := range []string{"Root", "Info", "ID"} {
		if v, ok := src.Get(key); ok {
			out.Set(key, v)
		}
	}
	return out
}

func findCatalog(doc *raw.Document) (raw.ObjectRef, bool) {
	for _, ref := range doc.Refs() {
		if raw.KindOf(doc.Objects[ref]) == raw.KindCatalog {
			return ref, true
		}
	}
	return raw.ObjectRef{}, false
}

func readAll(r io.ReaderAt) ([]byte, error) {
	if br, ok := r.(interface{ Size() int64 }); ok {
		buf := make([]byte, br.Size())
		n, err := r.ReadAt(buf, 0)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return buf[:n], nil
	}
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	tmp := make([]byte, chunk)
	for off := int64(0); ; off += chunk {
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if errors.Is(err, io.EOF) || (err == nil && int64(n) < chunk) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
