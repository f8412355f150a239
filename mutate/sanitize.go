package mutate

import (
	"context"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/optimize"
	"github.com/wudi/pdftools/pdferr"
)

// Sanitize rebuilds doc from copies of its pages. The result has blank
// metadata and none of the catalog-level extras such as scripts, open
// actions, forms, embedded files or outlines; only objects the pages reach
// survive.
func Sanitize(ctx context.Context, doc *document.Document) (*document.Document, error) {
	out := derive(doc)
	pages, err := out.CopyPages(doc, allIndices(doc.PageCount()))
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindSanitizeFailed, "sanitize", err)
	}
	if err := out.AppendPages(pages...); err != nil {
		return nil, pdferr.Wrap(pdferr.KindSanitizeFailed, "sanitize", err)
	}
	out.ReplaceMetadata(document.Metadata{})
	if err := optimize.New(optimize.Config{GarbageCollect: true}).Optimize(ctx, out); err != nil {
		return nil, pdferr.Wrap(pdferr.KindSanitizeFailed, "sanitize", err)
	}
	return out, nil
}
