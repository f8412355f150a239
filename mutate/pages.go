package mutate

import (
	"context"
	"fmt"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/pdferr"
)

// ExtractPages builds a new document from the pages a selector names, in
// selector order.
func ExtractPages(ctx context.Context, doc *document.Document, selector string) (*document.Document, error) {
	indices, err := ParseSelector(selector, doc.PageCount())
	if err != nil {
		return nil, err
	}
	return ExtractPageIndices(ctx, doc, indices)
}

// ExtractPageIndices builds a new document from the pages at the given
// 0-based indices. Repeated indices yield repeated pages.
func ExtractPageIndices(ctx context.Context, doc *document.Document, indices []int) (*document.Document, error) {
	if len(indices) == 0 {
		return nil, selectorError("no pages selected")
	}
	if err := checkIndices(indices, doc.PageCount()); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := derive(doc)
	pages, err := out.CopyPages(doc, indices)
	if err != nil {
		return nil, err
	}
	if err := out.AppendPages(pages...); err != nil {
		return nil, err
	}
	out.ReplaceMetadata(doc.Metadata())
	return out, nil
}

// DeletePages builds a new document holding every page not listed, in the
// original order. Listing a page twice is the same as listing it once.
// At least one page must remain.
func DeletePages(ctx context.Context, doc *document.Document, indices []int) (*document.Document, error) {
	if err := checkIndices(indices, doc.PageCount()); err != nil {
		return nil, err
	}
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	keep := make([]int, 0, doc.PageCount()-len(drop))
	for i := 0; i < doc.PageCount(); i++ {
		if !drop[i] {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, selectorError("deleting all %d pages leaves an empty document", doc.PageCount())
	}
	return ExtractPageIndices(ctx, doc, keep)
}

// DeletePagesBySelector is DeletePages with a page selector.
func DeletePagesBySelector(ctx context.Context, doc *document.Document, selector string) (*document.Document, error) {
	indices, err := ParseSelector(selector, doc.PageCount())
	if err != nil {
		return nil, err
	}
	return DeletePages(ctx, doc, indices)
}

// Merge concatenates the pages of docs into a new document. Metadata comes
// from the first document.
func Merge(ctx context.Context, docs ...*document.Document) (*document.Document, error) {
	if len(docs) == 0 {
		return nil, pdferr.New(pdferr.KindInvalidArgument, "merge", "no documents to merge")
	}
	out := derive(docs[0])
	for n, src := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages, err := out.CopyPages(src, allIndices(src.PageCount()))
		if err != nil {
			return nil, fmt.Errorf("merge document %d: %w", n+1, err)
		}
		if err := out.AppendPages(pages...); err != nil {
			return nil, err
		}
		if src.Version > out.Version {
			out.Version = src.Version
		}
	}
	out.ReplaceMetadata(docs[0].Metadata())
	return out, nil
}

// Rotate adds degrees to the rotation of the pages at indices, or of every
// page when indices is empty.
func Rotate(doc *document.Document, indices []int, degrees int) (*document.Document, error) {
	if degrees%90 != 0 {
		return nil, pdferr.Wrap(pdferr.KindInvalidArgument, "rotate", fmt.Errorf("rotation %d is not a multiple of 90", degrees))
	}
	if len(indices) == 0 {
		indices = allIndices(doc.PageCount())
	}
	if err := checkIndices(indices, doc.PageCount()); err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(indices))
	for _, i := range indices {
		if done[i] {
			continue
		}
		done[i] = true
		p, _ := doc.Page(i)
		if err := p.SetRotation(p.Rotation() + degrees); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
