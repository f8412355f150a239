package mutate

import (
	"context"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/observability"
	"github.com/wudi/pdftools/parser"
	"github.com/wudi/pdftools/pdferr"
	"github.com/wudi/pdftools/recovery"
	"github.com/wudi/pdftools/security"
	"github.com/wudi/pdftools/writer"
)

type RepairOptions struct {
	Limits security.Limits
	Logger observability.Logger
	// Writer overrides the output settings. The zero value keeps the
	// layout the input used.
	Writer *writer.Config
}

// Repair parses data with every relaxation enabled and writes it straight
// back out, which rebuilds the cross-reference data and drops whatever
// could not be read.
func Repair(ctx context.Context, data []byte, opts RepairOptions) ([]byte, error) {
	log := observability.OrNop(opts.Logger)
	strategy := recovery.NewLoggingStrategy(log)
	doc, err := document.Open(ctx, data, parser.Config{
		TolerateEncryption: true,
		CapNumericOverflow: true,
		Recovery:           strategy,
		Repair:             true,
		Limits:             opts.Limits,
		Logger:             log,
	})
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindUnrepairableDocument, "repair", err)
	}
	cfg := writer.ConfigFor(doc)
	if opts.Writer != nil {
		cfg = *opts.Writer
	}
	cfg.Logger = log
	out, err := writer.Bytes(ctx, doc, cfg)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindUnrepairableDocument, "repair", err)
	}
	log.Info("repaired document",
		observability.Int("pages", doc.PageCount()),
		observability.Int("defects", len(strategy.Errors())),
		observability.Bool("xref_rebuilt", doc.Repaired()))
	return out, nil
}
