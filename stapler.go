// Package stapler merges several PDF documents into one. Pages keep their
// source order and the result carries a flat outline with one bookmark per
// source, labelled with the source's file name.
//
//	err := stapler.Run(ctx, stapler.Files([]string{"a.pdf", "b.pdf"}, "out.pdf"))
package stapler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tekikaito/stapler/merge"
	"github.com/tekikaito/stapler/observability"
	"github.com/tekikaito/stapler/recovery"
	"github.com/tekikaito/stapler/writer"
)

type Options struct {
	Sources     []Loader
	Destination Saver
	// Compress combines identical objects, compresses streams and writes
	// object streams with a cross-reference stream.
	Compress bool
	// Strict fails on malformed input. Otherwise unreadable objects and
	// malformed pages are skipped with a warning.
	Strict bool
	// Parallelism bounds concurrent loads. Zero or one loads sequentially.
	Parallelism int
	Logger      observability.Logger
}

// Files returns strict options that merge the files at inputs, in order,
// into output.
func Files(inputs []string, output string) Options {
	sources := make([]Loader, len(inputs))
	for i, in := range inputs {
		sources[i] = FileSource{Path: in}
	}
	return Options{
		Sources:     sources,
		Destination: FileDestination{Path: output},
		Strict:      true,
	}
}

// Run loads every source, merges them and saves the result. It stops at
// the first error; nothing is written unless the merge succeeded.
func Run(ctx context.Context, opts Options) error {
	if len(opts.Sources) < 2 {
		return ErrInsufficientInputs
	}
	if opts.Destination == nil {
		return fmt.Errorf("stapler: no destination")
	}
	logger := observability.OrNop(opts.Logger)

	start := time.Now()
	docs, err := load(ctx, opts, logger)
	if err != nil {
		return err
	}
	logger.Info("loaded sources",
		observability.Int(observability.MetricSourceCount, len(docs)),
		observability.Duration(observability.MetricLoadTime, time.Since(start)),
	)

	mergeOpts := merge.Options{Compress: opts.Compress, Logger: logger}
	if !opts.Strict {
		mergeOpts.Recovery = recovery.NewLenientStrategy(logger)
	}
	out, err := merge.Merge(ctx, docs, mergeOpts)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	start = time.Now()
	counter := &byteCounter{}
	save := SaveOptions{
		Writer:       writer.Config{Compress: opts.Compress},
		Interceptors: []writer.Interceptor{counter},
	}
	if err := opts.Destination.Save(ctx, out, save); err != nil {
		return err
	}
	logger.Info("saved merged document",
		observability.Int(observability.MetricObjectCount, counter.objects),
		observability.Int64(observability.MetricOutputBytes, counter.bytes),
		observability.Duration(observability.MetricWriteTime, time.Since(start)),
	)
	return nil
}

// load runs the sources with bounded parallelism. Results keep input order;
// the first failure cancels the loads still running.
func load(ctx context.Context, opts Options, logger observability.Logger) ([]*merge.Document, error) {
	docs := make([]*merge.Document, len(opts.Sources))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Parallelism
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	lo := LoadOptions{Strict: opts.Strict, Logger: logger}
	for i, src := range opts.Sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := src.Load(gctx, lo)
			if err != nil {
				return err
			}
			logger.Debug("loaded source",
				observability.String("name", doc.OriginalFilename),
				observability.Int(observability.MetricPageCount, len(doc.Pages())),
				observability.Int(observability.MetricObjectCount, len(doc.Objects())),
			)
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}
