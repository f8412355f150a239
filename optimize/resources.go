package optimize

import (
	"context"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/observability"
)

// collectGarbage marks everything reachable from the page list, the catalog
// extras, the Info extras and the /Encrypt entry, then sweeps the rest.
func (o *Optimizer) collectGarbage(ctx context.Context, doc *document.Document) error {
	roots := []raw.Object{doc.Catalog(), doc.CustomInfo()}
	for _, p := range doc.Pages() {
		roots = append(roots, raw.RefObj{R: p.Ref()})
	}
	if enc := doc.Passthrough().Encrypt; enc != nil {
		roots = append(roots, enc)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	reachable := raw.Reachable(doc.Objects(), roots...)
	swept := 0
	for _, ref := range doc.SortedRefs() {
		if !reachable[ref] {
			doc.DeleteObject(ref)
			swept++
		}
	}
	if swept > 0 {
		o.log.Debug("dropped unreachable objects", observability.Int("objects", swept))
	}
	return nil
}
