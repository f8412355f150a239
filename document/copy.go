package document

import (
	"fmt"

	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/pdferr"
)

// CopyPages deep-copies the pages of src at the given indices into d and
// returns the copies in the requested order. The copies are not yet part of
// d's page order; use AppendPages or InsertPage.
//
// Objects reachable from the pages are copied once per call, so pages that
// share resources in src share the copies in d. Stream payloads are shared
// with src, not duplicated. References to pages of src that are not copied
// in the same call become null. Repeated indices yield distinct pages.
func (d *Document) CopyPages(src *Document, indices []int) ([]*Page, error) {
	if src.encrypted {
		return nil, pdferr.New(pdferr.KindUnsupportedEncryption, "copy pages", "source document is encrypted")
	}
	for _, i := range indices {
		if i < 0 || i >= len(src.pages) {
			return nil, pdferr.Wrap(pdferr.KindIndexOutOfRange, "copy pages", fmt.Errorf("index %d not in [0, %d)", i, len(src.pages)))
		}
	}

	if src == d {
		out := make([]*Page, 0, len(indices))
		for _, i := range indices {
			dict := raw.Clone(src.pages[i].dict).(*raw.DictObj)
			out = append(out, &Page{ref: d.AddObject(dict), dict: dict, doc: d})
		}
		return out, nil
	}

	c := &copier{
		src:     src,
		dst:     d,
		memo:    make(map[raw.ObjectRef]raw.ObjectRef),
		pageMap: make(map[raw.ObjectRef]raw.ObjectRef),
		isPage:  make(map[raw.ObjectRef]bool, len(src.pages)),
	}
	for _, p := range src.pages {
		c.isPage[p.ref] = true
	}
	// Allocate page references up front so that pages may point at each
	// other regardless of order.
	refs := make([]raw.ObjectRef, len(indices))
	for n, i := range indices {
		refs[n] = d.allocRef()
		if _, ok := c.pageMap[src.pages[i].ref]; !ok {
			c.pageMap[src.pages[i].ref] = refs[n]
		}
	}
	out := make([]*Page, len(indices))
	for n, i := range indices {
		dict := raw.Remap(src.pages[i].dict, c.ref).(*raw.DictObj)
		d.objects[refs[n]] = dict
		out[n] = &Page{ref: refs[n], dict: dict, doc: d}
	}
	return out, nil
}

type copier struct {
	src, dst *Document
	memo     map[raw.ObjectRef]raw.ObjectRef
	pageMap  map[raw.ObjectRef]raw.ObjectRef
	isPage   map[raw.ObjectRef]bool
}

func (c *copier) ref(r raw.ObjectRef) raw.Object {
	if nr, ok := c.pageMap[r]; ok {
		return raw.RefObj{R: nr}
	}
	if c.isPage[r] {
		return raw.NullObj{}
	}
	if nr, ok := c.memo[r]; ok {
		return raw.RefObj{R: nr}
	}
	obj, ok := c.src.objects[r]
	if !ok {
		return raw.NullObj{}
	}
	nr := c.dst.allocRef()
	c.memo[r] = nr
	c.dst.objects[nr] = raw.Remap(obj, c.ref)
	return raw.RefObj{R: nr}
}

// AppendPages adds pages of d to the end of the page order.
func (d *Document) AppendPages(pages ...*Page) error {
	if err := d.checkNewPages(pages); err != nil {
		return err
	}
	d.pages = append(d.pages, pages...)
	return nil
}

// InsertPage places p before the page at index i; i == PageCount appends.
func (d *Document) InsertPage(i int, p *Page) error {
	if i < 0 || i > len(d.pages) {
		return pdferr.Wrap(pdferr.KindIndexOutOfRange, "insert page", fmt.Errorf("index %d not in [0, %d]", i, len(d.pages)))
	}
	if err := d.checkNewPages([]*Page{p}); err != nil {
		return err
	}
	d.pages = append(d.pages, nil)
	copy(d.pages[i+1:], d.pages[i:])
	d.pages[i] = p
	return nil
}

func (d *Document) checkNewPages(pages []*Page) error {
	present := make(map[raw.ObjectRef]bool, len(d.pages)+len(pages))
	for _, p := range d.pages {
		present[p.ref] = true
	}
	for _, p := range pages {
		if p == nil || p.doc != d {
			return pdferr.New(pdferr.KindInvalidArgument, "add page", "page belongs to another document")
		}
		if present[p.ref] {
			return pdferr.Wrap(pdferr.KindInvalidArgument, "add page", fmt.Errorf("page %s is already in the document", p.ref))
		}
		present[p.ref] = true
	}
	return nil
}

// RemovePages drops the pages at the given indices from the page order.
// Objects they referenced stay in the table until garbage collection.
func (d *Document) RemovePages(indices []int) error {
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(d.pages) {
			return pdferr.Wrap(pdferr.KindIndexOutOfRange, "remove pages", fmt.Errorf("index %d not in [0, %d)", i, len(d.pages)))
		}
		drop[i] = true
	}
	kept := d.pages[:0:0]
	for i, p := range d.pages {
		if !drop[i] {
			kept = append(kept, p)
		}
	}
	d.pages = kept
	return nil
}

// MovePage moves the page at from so that it ends up at index to.
func (d *Document) MovePage(from, to int) error {
	n := len(d.pages)
	if from < 0 || from >= n || to < 0 || to >= n {
		return pdferr.Wrap(pdferr.KindIndexOutOfRange, "move page", fmt.Errorf("move %d -> %d outside [0, %d)", from, to, n))
	}
	p := d.pages[from]
	d.pages = append(d.pages[:from], d.pages[from+1:]...)
	d.pages = append(d.pages, nil)
	copy(d.pages[to+1:], d.pages[to:])
	d.pages[to] = p
	return nil
}

// SortedRefs returns the object table's references in ascending order.
func (d *Document) SortedRefs() []raw.ObjectRef { return raw.SortedRefs(d.objects) }
