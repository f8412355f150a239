package optimize

import (
	"context"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/observability"
)

// combineDuplicateStreams keeps the lowest-numbered copy of each set of
// identical streams and points every reference at it. Merging can make
// dictionaries that referenced different copies identical, so the pass
// repeats until nothing changes.
func (o *Optimizer) combineDuplicateStreams(ctx context.Context, doc *document.Document) error {
	objects := doc.Objects()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen := make(map[digest]raw.ObjectRef)
		replacements := make(map[raw.ObjectRef]raw.ObjectRef)
		for _, ref := range doc.SortedRefs() {
			st, ok := objects[ref].(*raw.StreamObj)
			if !ok {
				continue
			}
			h := hashStream(st)
			if original, ok := seen[h]; ok {
				replacements[ref] = original
				continue
			}
			seen[h] = ref
		}
		if len(replacements) == 0 {
			return nil
		}
		o.applyReplacements(doc, replacements)
		for dup := range replacements {
			doc.DeleteObject(dup)
		}
		o.log.Debug("merged duplicate streams", observability.Int("streams", len(replacements)))
	}
}

// applyReplacements rewrites references in place, including those held by
// page dictionaries and the catalog and Info extras.
func (o *Optimizer) applyReplacements(doc *document.Document, replacements map[raw.ObjectRef]raw.ObjectRef) {
	for _, obj := range doc.Objects() {
		replaceRefsInObject(obj, replacements)
	}
	replaceRefsInObject(doc.Catalog(), replacements)
	replaceRefsInObject(doc.CustomInfo(), replacements)
}

func replaceRefsInObject(obj raw.Object, replacements map[raw.ObjectRef]raw.ObjectRef) {
	switch t := obj.(type) {
	case *raw.ArrayObj:
		if t == nil {
			return
		}
		for i, val := range t.Items {
			if ref, ok := val.(raw.RefObj); ok {
				if newRef, found := replacements[ref.R]; found {
					t.Items[i] = raw.RefObj{R: newRef}
				}
				continue
			}
			replaceRefsInObject(val, replacements)
		}
	case *raw.DictObj:
		if t == nil {
			return
		}
		for key, val := range t.KV {
			if ref, ok := val.(raw.RefObj); ok {
				if newRef, found := replacements[ref.R]; found {
					t.KV[key] = raw.RefObj{R: newRef}
				}
				continue
			}
			replaceRefsInObject(val, replacements)
		}
	case *raw.StreamObj:
		replaceRefsInObject(t.Dict, replacements)
	}
}
