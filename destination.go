package stapler

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/tekikaito/stapler/ir/raw"
	"github.com/tekikaito/stapler/writer"
)

// SaveOptions control serialization of the merged document.
type SaveOptions struct {
	Writer writer.Config
	// Interceptors observe every object as it is serialized.
	Interceptors []writer.Interceptor
}

func (o SaveOptions) writer() writer.Writer {
	b := &writer.WriterBuilder{}
	for _, ic := range o.Interceptors {
		b.WithInterceptor(ic)
	}
	return b.Build()
}

// Saver stores a merged document.
type Saver interface {
	Save(ctx context.Context, doc *raw.Document, opts SaveOptions) error
}

// FileDestination writes the merged document to Path. The file is created
// only after serialization succeeded; an existing file is replaced.
type FileDestination struct {
	Path string
}

func (d FileDestination) Save(ctx context.Context, doc *raw.Document, opts SaveOptions) error {
	var buf bytes.Buffer
	if err := opts.writer().Write(ctx, doc, &buf, opts.Writer); err != nil {
		return &WriteError{Path: d.Path, Err: err}
	}
	if err := os.WriteFile(d.Path, buf.Bytes(), 0o644); err != nil {
		return &WriteError{Path: d.Path, Err: err}
	}
	return nil
}

// WriterDestination streams the merged document to W.
type WriterDestination struct {
	W io.Writer
	// Name labels errors; "<writer>" when empty.
	Name string
}

func (d WriterDestination) Save(ctx context.Context, doc *raw.Document, opts SaveOptions) error {
	if err := opts.writer().Write(ctx, doc, d.W, opts.Writer); err != nil {
		name := d.Name
		if name == "" {
			name = "<writer>"
		}
		return &WriteError{Path: name, Err: err}
	}
	return nil
}

// byteCounter sums the serialized size of every indirect object.
type byteCounter struct {
	objects int
	bytes   int64
}

func (c *byteCounter) BeforeWrite(context.Context, raw.ObjectRef, raw.Object) error { return nil }

func (c *byteCounter) AfterWrite(_ context.Context, _ raw.ObjectRef, _ raw.Object, n int64) error {
	c.objects++
	c.bytes += n
	return nil
}
