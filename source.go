package stapler

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/tekikaito/stapler/merge"
	"github.com/tekikaito/stapler/observability"
	"github.com/tekikaito/stapler/parser"
	"github.com/tekikaito/stapler/recovery"
)

// LoadOptions are shared by all sources of one run.
type LoadOptions struct {
	// Strict fails on any malformed object. When false unreadable objects
	// are skipped and logged.
	Strict bool
	Logger observability.Logger
}

func (o LoadOptions) parser() *parser.DocumentParser {
	cfg := parser.Config{Logger: o.Logger}
	if !o.Strict {
		cfg.Recovery = recovery.NewLenientStrategy(o.Logger)
	}
	return parser.NewDocumentParser(cfg)
}

// Loader produces one source document for a merge. No renumbering happens
// at load time.
type Loader interface {
	Load(ctx context.Context, opts LoadOptions) (*merge.Document, error)
}

// FileSource loads a document from disk. Its bookmark is labelled with the
// final path segment.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context, opts LoadOptions) (*merge.Document, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &LoadError{Path: s.Path, Err: err}
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, &LoadError{Path: s.Path, Err: err}
	}
	doc, err := opts.parser().Parse(ctx, io.NewSectionReader(f, 0, info.Size()))
	if err != nil {
		return nil, &LoadError{Path: s.Path, Err: err}
	}
	return merge.NewDocument(filepath.Base(s.Path), doc), nil
}

// ReaderSource loads a document held in memory or behind any ReaderAt.
// Name labels its bookmark and its errors.
type ReaderSource struct {
	Name     string
	ReaderAt io.ReaderAt
}

func (s ReaderSource) Load(ctx context.Context, opts LoadOptions) (*merge.Document, error) {
	doc, err := opts.parser().Parse(ctx, s.ReaderAt)
	if err != nil {
		return nil, &LoadError{Path: s.Name, Err: err}
	}
	return merge.NewDocument(s.Name, doc), nil
}
