// Package document is the in-memory object graph of a PDF: an ordered page
// list, a metadata record and the table of indirect objects the pages
// reference.
package document

import (
	"context"
	"fmt"

	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/parser"
	"github.com/wudi/pdftools/pdferr"
)

// SaveOptions are the serialization preferences a document carries.
type SaveOptions struct {
	// ObjectStreams packs non-stream objects into object streams and writes
	// a cross-reference stream.
	ObjectStreams bool
	// CompressStreams Flate-encodes streams that carry no filter.
	CompressStreams bool
	// Deduplicate merges byte-identical streams before writing.
	Deduplicate bool
	// GarbageCollect drops objects unreachable from the pages and catalog.
	GarbageCollect bool
}

// Document is a mutable PDF object graph. A Document is not safe for
// concurrent mutation.
type Document struct {
	Version     string
	SaveOptions SaveOptions

	pages   []*Page
	meta    Metadata
	objects map[raw.ObjectRef]raw.Object
	nextNum int

	// catalog holds catalog entries other than /Type and /Pages.
	catalog *raw.DictObj
	// info holds Info entries not covered by Metadata.
	info *raw.DictObj

	encrypted bool
	repaired  bool
	// Passthrough state for encrypted documents, whose object numbers,
	// /Encrypt and /ID must survive unchanged.
	encrypt    raw.Object
	fileID     raw.Object
	catalogRef raw.ObjectRef
	pagesRef   raw.ObjectRef
	infoRef    raw.ObjectRef
	metaDirty  bool
}

// New returns an empty document with no pages.
func New() *Document {
	return &Document{
		Version: "1.7",
		objects: make(map[raw.ObjectRef]raw.Object),
		nextNum: 1,
		catalog: raw.Dict(),
		info:    raw.Dict(),
	}
}

// Open parses data and builds a Document from it.
func Open(ctx context.Context, data []byte, cfg parser.Config) (*Document, error) {
	rd, err := parser.Parse(ctx, data, cfg)
	if err != nil {
		return nil, err
	}
	return FromRaw(rd)
}

// FromRaw takes ownership of a parsed document and flattens its page tree.
// Inheritable page attributes are copied onto each page, /Parent links are
// dropped, and the catalog, page tree nodes and Info dictionary leave the
// object table.
func FromRaw(rd *raw.Document) (*Document, error) {
	d := New()
	if rd.Version != "" {
		d.Version = rd.Version
	}
	d.objects = rd.Objects
	d.nextNum = rd.MaxNum() + 1
	d.encrypted = rd.Encrypted
	d.repaired = rd.Repaired
	d.SaveOptions.ObjectStreams = rd.ObjectStreams

	trailer := rd.Trailer
	rootObj := dictEntry(trailer, "Root")
	catalog, ok := raw.DictOf(d.Resolve(rootObj))
	if !ok {
		return nil, pdferr.New(pdferr.KindMalformedDocument, "open", "trailer has no catalog")
	}
	if ref, ok := rootObj.(raw.RefObj); ok {
		d.catalogRef = ref.R
	}
	pagesObj := dictEntry(catalog, "Pages")
	if ref, ok := pagesObj.(raw.RefObj); ok {
		d.pagesRef = ref.R
	}

	if err := d.flattenPages(pagesObj); err != nil {
		return nil, pdferr.Wrap(pdferr.KindMalformedDocument, "open", err)
	}

	for _, k := range catalog.Keys() {
		if k == "Type" || k == "Pages" {
			continue
		}
		v, _ := catalog.Get(k)
		d.catalog.Set(k, v)
	}
	delete(d.objects, d.catalogRef)

	infoObj := dictEntry(trailer, "Info")
	infoDict, _ := raw.DictOf(d.Resolve(infoObj))
	if ref, ok := infoObj.(raw.RefObj); ok {
		d.infoRef = ref.R
		delete(d.objects, ref.R)
	}
	if d.encrypted {
		// Info strings are ciphertext; keep the dictionary as it is.
		d.info = infoDict
		if d.info == nil {
			d.info = raw.Dict()
		}
		d.encrypt = dictEntry(trailer, "Encrypt")
	} else {
		d.meta, d.info = metadataFromInfo(infoDict, d.Resolve)
	}
	d.fileID = dictEntry(trailer, "ID")
	return d, nil
}

// Encrypted reports whether the document came from an encrypted file.
// Its strings and streams are opaque.
func (d *Document) Encrypted() bool { return d.encrypted }

// Repaired reports whether the cross-reference data had to be rebuilt.
func (d *Document) Repaired() bool { return d.repaired }

func (d *Document) PageCount() int { return len(d.pages) }

// Page returns the page at the 0-based index i.
func (d *Document) Page(i int) (*Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, pdferr.Wrap(pdferr.KindIndexOutOfRange, "page", fmt.Errorf("index %d not in [0, %d)", i, len(d.pages)))
	}
	return d.pages[i], nil
}

// Pages returns the pages in order. The slice is a copy.
func (d *Document) Pages() []*Page {
	return append([]*Page(nil), d.pages...)
}

func (d *Document) Metadata() Metadata { return d.meta }

// SetMetadata overwrites the provided fields only.
func (d *Document) SetMetadata(u MetadataUpdate) {
	d.meta = d.meta.Apply(u)
	d.metaDirty = true
}

// ReplaceMetadata sets every field, including blank ones. The stored
// record is normalized as by Metadata.Normalized.
func (d *Document) ReplaceMetadata(m Metadata) {
	d.meta = m.Normalized()
	d.metaDirty = true
}

// MetadataModified reports whether metadata changed since loading.
func (d *Document) MetadataModified() bool { return d.metaDirty }

// Catalog returns the catalog entries besides /Type and /Pages. The
// dictionary is live; changes are written out.
func (d *Document) Catalog() *raw.DictObj { return d.catalog }

// CustomInfo returns Info entries that Metadata does not cover. The
// dictionary is live.
func (d *Document) CustomInfo() *raw.DictObj { return d.info }

// Object returns the indirect object stored under ref.
func (d *Document) Object(ref raw.ObjectRef) (raw.Object, error) {
	obj, ok := d.objects[ref]
	if !ok {
		return nil, pdferr.Wrap(pdferr.KindNotFound, "object", fmt.Errorf("object %s not in table", ref))
	}
	return obj, nil
}

// Objects returns the live object table.
func (d *Document) Objects() map[raw.ObjectRef]raw.Object { return d.objects }

// AddObject stores obj under a fresh reference.
func (d *Document) AddObject(obj raw.Object) raw.ObjectRef {
	ref := d.allocRef()
	d.objects[ref] = obj
	return ref
}

// SetObject replaces the object stored under ref.
func (d *Document) SetObject(ref raw.ObjectRef, obj raw.Object) {
	d.objects[ref] = obj
	if ref.Num >= d.nextNum {
		d.nextNum = ref.Num + 1
	}
}

// DeleteObject removes ref from the table. References to it become dangling.
func (d *Document) DeleteObject(ref raw.ObjectRef) { delete(d.objects, ref) }

// Resolve follows references through the object table. Dangling references
// resolve to null.
func (d *Document) Resolve(obj raw.Object) raw.Object { return raw.ResolveIn(d.objects, obj) }

func (d *Document) allocRef() raw.ObjectRef {
	ref := raw.ObjectRef{Num: d.nextNum}
	d.nextNum++
	return ref
}

// Passthrough describes what an encrypted document needs written back
// unchanged: the /Encrypt value, the file identifier and the original
// numbers of the catalog, page tree root and Info dictionary.
type Passthrough struct {
	Encrypt    raw.Object
	ID         raw.Object
	CatalogRef raw.ObjectRef
	PagesRef   raw.ObjectRef
	InfoRef    raw.ObjectRef
}

// Passthrough returns the state an encrypted document must keep. For other
// documents only ID is set.
func (d *Document) Passthrough() Passthrough {
	return Passthrough{
		Encrypt:    d.encrypt,
		ID:         d.fileID,
		CatalogRef: d.catalogRef,
		PagesRef:   d.pagesRef,
		InfoRef:    d.infoRef,
	}
}

func dictEntry(d *raw.DictObj, key string) raw.Object {
	v, _ := d.Get(key)
	return v
}
