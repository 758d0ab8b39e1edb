package writer

import (
	"context"
	"io"

	"github.com/tekikaito/stapler/ir/raw"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF15 PDFVersion = "1.5"
	PDF17 PDFVersion = "1.7"
)

// Config controls serialization.
//
// Version overrides the header version; when empty the document's own
// version is used. Compress packs non-stream objects into object streams
// and replaces the classic xref table by a compressed xref stream, raising
// the version to at least 1.5. Deterministic derives a missing file ID from
// the content instead of random bytes.
type Config struct {
	Version       PDFVersion
	Compress      bool
	Deterministic bool
	// ObjectsPerStream caps the members of one object stream. Default 100.
	ObjectsPerStream int
}

type Writer interface {
	Write(ctx context.Context, doc *raw.Document, out io.Writer, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

// Interceptor observes every indirect object as it is written.
type Interceptor interface {
	BeforeWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object) error
	AfterWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object, bytesWritten int64) error
}

type WriterBuilder struct{ interceptors []Interceptor }

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}
func (b *WriterBuilder) Build() Writer { return &impl{interceptors: b.interceptors} }

// New returns a writer without interceptors.
func New() Writer { return &impl{} }
