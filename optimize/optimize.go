// Package optimize shrinks a document before it is written: streams without
// a filter are flate-compressed, identical indirect objects are combined and
// objects no longer reachable from the trailer are dropped. The document is
// then renumbered contiguously.
package optimize

import (
	"context"
	"fmt"

	"github.com/tekikaito/stapler/ir/raw"
)

type Config struct {
	CompressStreams         bool
	CombineIdenticalObjects bool
	RemoveUnreachable       bool
	// MinStreamSize leaves streams shorter than this many bytes untouched.
	MinStreamSize int
}

// DefaultConfig enables every pass.
func DefaultConfig() Config {
	return Config{
		CompressStreams:         true,
		CombineIdenticalObjects: true,
		RemoveUnreachable:       true,
		MinStreamSize:           32,
	}
}

// Result reports what a run changed.
type Result struct {
	StreamsCompressed int
	ObjectsCombined   int
	ObjectsRemoved    int
	// Mapping translates references from before the run to the final ones.
	// Removed and combined objects map to the reference that replaced them
	// or are absent.
	Mapping map[raw.ObjectRef]raw.ObjectRef
}

type Optimizer struct {
	config Config
}

func New(config Config) *Optimizer {
	return &Optimizer{config: config}
}

func (o *Optimizer) Optimize(ctx context.Context, doc *raw.Document) (Result, error) {
	var res Result
	if doc == nil {
		return res, nil
	}

	if o.config.RemoveUnreachable {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.ObjectsRemoved = doc.Sweep()
	}

	if o.config.CompressStreams {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := compressStreams(doc, o.config.MinStreamSize)
		if err != nil {
			return res, fmt.Errorf("failed to compress streams: %w", err)
		}
		res.StreamsCompressed = n
	}

	combined := make(map[raw.ObjectRef]raw.ObjectRef)
	if o.config.CombineIdenticalObjects {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		combined = combineObjects(doc)
		res.ObjectsCombined = len(combined)
	}

	compacted := doc.Compact()
	res.Mapping = make(map[raw.ObjectRef]raw.ObjectRef, len(compacted)+len(combined))
	for old, nr := range compacted {
		res.Mapping[old] = nr
	}
	for dup, kept := range combined {
		if nr, ok := compacted[kept]; ok {
			res.Mapping[dup] = nr
		}
	}
	return res, nil
}

// Compact runs an optimizer with cfg over doc.
func Compact(doc *raw.Document, cfg Config) (Result, error) {
	return New(cfg).Optimize(context.Background(), doc)
}
