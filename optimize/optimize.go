// Package optimize shrinks a document's object table before it is written:
// unreachable objects are dropped, identical streams are merged and
// unfiltered streams are Flate-compressed.
package optimize

import (
	"context"
	"fmt"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/observability"
)

type Config struct {
	// GarbageCollect drops objects that no page, catalog entry or Info
	// entry reaches.
	GarbageCollect bool
	// DeduplicateStreams merges streams with identical dictionaries and
	// payloads.
	DeduplicateStreams bool
	// CompressStreams Flate-encodes streams that carry no filter. Image
	// XObjects are left alone.
	CompressStreams bool
	Logger          observability.Logger
}

type Optimizer struct {
	config Config
	log    observability.Logger
}

func New(config Config) *Optimizer {
	return &Optimizer{config: config, log: observability.OrNop(config.Logger)}
}

// ForSaveOptions returns the optimizer configured by a document's save
// preferences.
func ForSaveOptions(opts document.SaveOptions) *Optimizer {
	return New(Config{
		GarbageCollect:     opts.GarbageCollect,
		DeduplicateStreams: opts.Deduplicate,
		CompressStreams:    opts.CompressStreams,
	})
}

// Optimize rewrites doc's object table in place.
func (o *Optimizer) Optimize(ctx context.Context, doc *document.Document) error {
	before := len(doc.Objects())

	if o.config.DeduplicateStreams {
		if err := o.combineDuplicateStreams(ctx, doc); err != nil {
			return fmt.Errorf("failed to combine duplicate streams: %w", err)
		}
	}

	if o.config.GarbageCollect {
		if err := o.collectGarbage(ctx, doc); err != nil {
			return fmt.Errorf("failed to collect unreachable objects: %w", err)
		}
	}

	if o.config.CompressStreams {
		if err := o.compressStreams(ctx, doc); err != nil {
			return fmt.Errorf("failed to compress streams: %w", err)
		}
	}

	o.log.Debug("optimized object table",
		observability.Int("before", before),
		observability.Int("after", len(doc.Objects())))
	return nil
}
