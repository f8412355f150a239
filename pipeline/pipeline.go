// Package pipeline runs parse, mutate and serialize as one call.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/mutate"
	"github.com/wudi/pdftools/observability"
	"github.com/wudi/pdftools/optimize"
	"github.com/wudi/pdftools/parser"
	"github.com/wudi/pdftools/writer"
)

// Step transforms a document. It may return its input or a new document.
type Step func(ctx context.Context, doc *document.Document) (*document.Document, error)

type Pipeline struct {
	parserCfg parser.Config
	writerCfg *writer.Config
	producer  string
	logger    observability.Logger
	tracer    observability.Tracer
}

type Option func(*Pipeline)

func WithLogger(l observability.Logger) Option { return func(p *Pipeline) { p.logger = l } }

func WithTracer(t observability.Tracer) Option { return func(p *Pipeline) { p.tracer = t } }

// WithParserConfig sets how input is parsed. Its Logger is replaced by the
// pipeline's when unset.
func WithParserConfig(cfg parser.Config) Option { return func(p *Pipeline) { p.parserCfg = cfg } }

// WithWriterConfig fixes the output settings. Without it each run writes
// with the save preferences of the final document.
func WithWriterConfig(cfg writer.Config) Option {
	return func(p *Pipeline) { p.writerCfg = &cfg }
}

// WithProducer names the producer written to /Info of documents that
// carry none.
func WithProducer(name string) Option { return func(p *Pipeline) { p.producer = name } }

func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = observability.OrNop(p.logger)
	if p.tracer == nil {
		p.tracer = observability.NopTracer()
	}
	return p
}

// Run parses input, applies steps in order, optimizes according to the
// resulting save preferences and serializes.
func (p *Pipeline) Run(ctx context.Context, input []byte, steps ...Step) ([]byte, error) {
	ctx, span := p.tracer.StartSpan(ctx, "pipeline.run")
	defer span.Finish()
	span.SetTag("steps", len(steps))

	out, err := p.run(ctx, input, steps)
	if err != nil {
		span.SetError(err)
		p.logger.Error("pipeline failed", observability.Error("error", err))
		return nil, err
	}
	span.SetTag("bytes", len(out))
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, input []byte, steps []Step) ([]byte, error) {
	var doc *document.Document
	err := p.stage(ctx, "parse", func(ctx context.Context) error {
		cfg := p.parserCfg
		if cfg.Logger == nil {
			cfg.Logger = p.logger
		}
		var err error
		doc, err = document.Open(ctx, input, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i, step := range steps {
		err := p.stage(ctx, fmt.Sprintf("step %d", i+1), func(ctx context.Context) error {
			next, err := step(ctx, doc)
			if err != nil {
				return err
			}
			doc = next
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	err = p.stage(ctx, "optimize", func(ctx context.Context) error {
		return optimize.ForSaveOptions(doc.SaveOptions).Optimize(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	var out []byte
	err = p.stage(ctx, "write", func(ctx context.Context) error {
		cfg := writer.ConfigFor(doc)
		if p.writerCfg != nil {
			cfg = *p.writerCfg
		}
		if cfg.Logger == nil {
			cfg.Logger = p.logger
		}
		if cfg.Producer == "" {
			cfg.Producer = p.producer
		}
		var err error
		out, err = writer.Bytes(ctx, doc, cfg)
		return err
	})
	return out, err
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.StartSpan(ctx, "pipeline."+name)
	defer span.Finish()
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("%s: %w", name, err)
	}
	p.logger.Debug("pipeline stage done",
		observability.String("stage", name),
		observability.Duration("elapsed", elapsed))
	return nil
}

// Extract keeps the pages a selector names, in selector order.
func Extract(selector string) Step {
	return func(ctx context.Context, doc *document.Document) (*document.Document, error) {
		return mutate.ExtractPages(ctx, doc, selector)
	}
}

// Delete drops the pages a selector names.
func Delete(selector string) Step {
	return func(ctx context.Context, doc *document.Document) (*document.Document, error) {
		return mutate.DeletePagesBySelector(ctx, doc, selector)
	}
}

// Rotate turns the selected pages, or all of them for an empty selector.
func Rotate(selector string, degrees int) Step {
	return func(_ context.Context, doc *document.Document) (*document.Document, error) {
		var indices []int
		if selector != "" {
			var err error
			if indices, err = mutate.ParseSelector(selector, doc.PageCount()); err != nil {
				return nil, err
			}
		}
		return mutate.Rotate(doc, indices, degrees)
	}
}

func SetMetadata(u document.MetadataUpdate) Step {
	return func(_ context.Context, doc *document.Document) (*document.Document, error) {
		return mutate.SetMetadata(doc, u), nil
	}
}

func Sanitize() Step { return mutate.Sanitize }

func Compress(q mutate.Quality) Step {
	return func(ctx context.Context, doc *document.Document) (*document.Document, error) {
		return mutate.Compress(ctx, doc, q)
	}
}

// Append merges the pages of others after the document's own.
func Append(others ...*document.Document) Step {
	return func(ctx context.Context, doc *document.Document) (*document.Document, error) {
		return mutate.Merge(ctx, append([]*document.Document{doc}, others...)...)
	}
}
