// Package mutate holds the document transformations: metadata editing,
// sanitizing, repair, compression, page extraction and deletion, merging
// and rotation. A mutator that fails returns no document and leaves its
// input untouched.
package mutate

import (
	"github.com/wudi/pdftools/document"
)

// SetMetadata overwrites the fields provided in u and returns doc.
func SetMetadata(doc *document.Document, u document.MetadataUpdate) *document.Document {
	doc.SetMetadata(u)
	return doc
}

// derive returns an empty document that inherits src's version and save
// preferences.
func derive(src *document.Document) *document.Document {
	out := document.New()
	out.Version = src.Version
	out.SaveOptions = src.SaveOptions
	return out
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
