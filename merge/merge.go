// Package merge combines several independently authored documents into one
// object graph with a single catalog, a single flat page tree and a flat
// outline holding one bookmark per source.
package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/tekikaito/stapler/ir/raw"
	"github.com/tekikaito/stapler/observability"
	"github.com/tekikaito/stapler/optimize"
	"github.com/tekikaito/stapler/recovery"
)

// minVersion is the lowest header version a merged document gets.
const minVersion = "1.5"

type Options struct {
	// Compress runs the optimizer over the merged graph.
	Compress bool
	// Optimize configures the optimizer; the zero value means
	// optimize.DefaultConfig.
	Optimize optimize.Config
	// Recovery decides what happens to malformed page tree objects. Nil
	// fails the merge.
	Recovery recovery.Strategy
	Logger   observability.Logger
}

type Engine struct {
	opts     Options
	recovery recovery.Strategy
	logger   observability.Logger
}

func NewEngine(opts Options) *Engine {
	if opts.Optimize == (optimize.Config{}) {
		opts.Optimize = optimize.DefaultConfig()
	}
	return &Engine{
		opts:     opts,
		recovery: recovery.Default(opts.Recovery),
		logger:   observability.OrNop(opts.Logger),
	}
}

// Merge is shorthand for NewEngine(opts).Merge(ctx, docs).
func Merge(ctx context.Context, docs []*Document, opts Options) (*raw.Document, error) {
	return NewEngine(opts).Merge(ctx, docs)
}

// Merge consumes docs in the given order and returns the consolidated
// document. Page order is source order, then each source's native order.
// Nothing of a failed merge is returned.
func (e *Engine) Merge(ctx context.Context, docs []*Document) (*raw.Document, error) {
	if len(docs) < 2 {
		return nil, ErrInsufficientInputs
	}
	for i, d := range docs {
		if d == nil || d.store == nil {
			return nil, fmt.Errorf("merge: document %d is nil", i)
		}
	}
	start := time.Now()

	ws := newWorkspace(e, len(docs))
	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"renumber", func(ctx context.Context) error { return ws.renumber(ctx, docs) }},
		{"accumulate", func(context.Context) error { ws.accumulate(); return nil }},
		{"classify", ws.classify},
		{"reparent", ws.reparent},
		{"reconcile", func(context.Context) error { ws.reconcile(); return nil }},
		{"compact", func(context.Context) error { ws.compact(); return nil }},
		{"fix-bookmarks", func(context.Context) error { ws.fixBookmarks(); return nil }},
		{"outline", func(context.Context) error { return ws.materializeOutline() }},
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := st.run(ctx); err != nil {
			return nil, err
		}
		e.logger.Debug("merge stage done", observability.String("stage", st.name))
	}

	if e.opts.Compress {
		res, err := optimize.New(e.opts.Optimize).Optimize(ctx, ws.out)
		if err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}
		e.logger.Debug("compressed merged document",
			observability.Int("streams", res.StreamsCompressed),
			observability.Int("combined", res.ObjectsCombined),
			observability.Int("removed", res.ObjectsRemoved),
		)
	}

	e.logger.Info("merged documents",
		observability.Int(observability.MetricSourceCount, len(docs)),
		observability.Int(observability.MetricPageCount, len(ws.kids)),
		observability.Int(observability.MetricObjectCount, len(ws.out.Objects)),
		observability.Duration(observability.MetricMergeTime, time.Since(start)),
	)
	return ws.out, nil
}
