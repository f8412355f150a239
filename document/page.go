package document

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/pdferr"
)

// Rectangle is a PDF rectangle in default user space units.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

func (r Rectangle) Width() float64  { return r.URX - r.LLX }
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Letter is the default media box when none is given.
var Letter = Rectangle{0, 0, 612, 792}

// A4 in points.
var A4 = Rectangle{0, 0, 595.28, 841.89}

// Page is one page of a Document. Its identity is its object reference in
// the owning document.
type Page struct {
	ref  raw.ObjectRef
	dict *raw.DictObj
	doc  *Document
}

func (p *Page) Ref() raw.ObjectRef { return p.ref }

// Dict returns the live page dictionary.
func (p *Page) Dict() *raw.DictObj { return p.dict }

// MediaBox returns the page's media box, normalised so that LL < UR.
func (p *Page) MediaBox() Rectangle {
	r, ok := rectangle(p.doc.Resolve(dictEntry(p.dict, "MediaBox")), p.doc.Resolve)
	if !ok {
		return Letter
	}
	return r
}

// Size returns the width and height of the media box as displayed, so a
// page rotated by 90 or 270 degrees reports swapped dimensions.
func (p *Page) Size() (w, h float64) {
	box := p.MediaBox()
	w, h = box.Width(), box.Height()
	if p.Rotation()%180 != 0 {
		w, h = h, w
	}
	return w, h
}

// Rotation returns /Rotate normalised to 0, 90, 180 or 270.
func (p *Page) Rotation() int {
	n, _ := raw.IntOf(p.doc.Resolve(dictEntry(p.dict, "Rotate")))
	r := int(n) % 360
	if r < 0 {
		r += 360
	}
	return r - r%90
}

// SetRotation sets /Rotate. Degrees must be a multiple of 90.
func (p *Page) SetRotation(degrees int) error {
	if degrees%90 != 0 {
		return pdferr.Wrap(pdferr.KindInvalidArgument, "rotate", fmt.Errorf("rotation %d is not a multiple of 90", degrees))
	}
	r := degrees % 360
	if r < 0 {
		r += 360
	}
	if r == 0 {
		p.dict.Delete("Rotate")
		return nil
	}
	p.dict.Set("Rotate", raw.NumberInt(int64(r)))
	return nil
}

// ResourceRefs returns the indirect objects reachable from the page's
// /Resources, sorted. Content streams are not included.
func (p *Page) ResourceRefs() []raw.ObjectRef {
	res, ok := p.dict.Get("Resources")
	if !ok {
		return nil
	}
	reach := raw.Reachable(p.doc.objects, res)
	out := make([]raw.ObjectRef, 0, len(reach))
	for ref := range reach {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Num != out[j].Num {
			return out[i].Num < out[j].Num
		}
		return out[i].Gen < out[j].Gen
	})
	return out
}

// ContentRefs returns the content streams of the page in drawing order.
func (p *Page) ContentRefs() []raw.ObjectRef {
	var out []raw.ObjectRef
	switch c := dictEntry(p.dict, "Contents").(type) {
	case raw.RefObj:
		if arr, ok := raw.ArrayOf(p.doc.Resolve(c)); ok {
			for _, it := range arr.Items {
				if r, ok := raw.RefOf(it); ok {
					out = append(out, r)
				}
			}
			return out
		}
		out = append(out, c.R)
	case *raw.ArrayObj:
		for _, it := range c.Items {
			if r, ok := raw.RefOf(it); ok {
				out = append(out, r)
			}
		}
	}
	return out
}

// NewPage creates an empty page with the given media box and appends it.
func (d *Document) NewPage(box Rectangle) *Page {
	dict := raw.Dict()
	dict.Set("Type", raw.NameLiteral("Page"))
	dict.Set("MediaBox", rectObject(box))
	dict.Set("Resources", raw.Dict())
	p := &Page{ref: d.AddObject(dict), dict: dict, doc: d}
	d.pages = append(d.pages, p)
	return p
}

// SetContents replaces the page's content with a single stream holding data.
func (p *Page) SetContents(data []byte) raw.ObjectRef {
	ref := p.doc.AddObject(raw.NewStream(raw.Dict(), data))
	p.dict.Set("Contents", raw.RefObj{R: ref})
	return ref
}

func rectObject(r Rectangle) *raw.ArrayObj {
	num := func(f float64) raw.Object {
		if f == float64(int64(f)) {
			return raw.NumberInt(int64(f))
		}
		return raw.NumberFloat(f)
	}
	return raw.NewArray(num(r.LLX), num(r.LLY), num(r.URX), num(r.URY))
}

func rectangle(obj raw.Object, resolve func(raw.Object) raw.Object) (Rectangle, bool) {
	arr, ok := raw.ArrayOf(obj)
	if !ok || arr.Len() != 4 {
		return Rectangle{}, false
	}
	var v [4]float64
	for i, it := range arr.Items {
		f, ok := raw.FloatOf(resolve(it))
		if !ok {
			return Rectangle{}, false
		}
		v[i] = f
	}
	r := Rectangle{v[0], v[1], v[2], v[3]}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r, true
}

// inheritable page attributes, in the order they are looked up.
var inheritable = []string{"MediaBox", "CropBox", "Resources", "Rotate"}

const maxTreeDepth = 64

// flattenPages walks the page tree rooted at root, collecting leaves in
// document order. Tree nodes are removed from the object table.
func (d *Document) flattenPages(root raw.Object) error {
	if _, ok := raw.DictOf(d.Resolve(root)); !ok {
		return errors.New("catalog has no page tree")
	}
	seenNodes := make(map[raw.ObjectRef]bool)
	seenPages := make(map[raw.ObjectRef]bool)
	var nodes []raw.ObjectRef

	var walk func(obj raw.Object, inherited map[string]raw.Object, depth int) error
	walk = func(obj raw.Object, inherited map[string]raw.Object, depth int) error {
		if depth > maxTreeDepth {
			return fmt.Errorf("page tree deeper than %d", maxTreeDepth)
		}
		ref, isRef := obj.(raw.RefObj)
		node, ok := raw.DictOf(d.Resolve(obj))
		if !ok {
			// Kids that do not resolve are skipped.
			return nil
		}
		typ, _ := raw.NameOf(dictEntry(node, "Type"))
		_, hasKids := node.Get("Kids")
		if typ == "Pages" || (typ != "Page" && hasKids) {
			if isRef {
				if seenNodes[ref.R] {
					return nil
				}
				seenNodes[ref.R] = true
				nodes = append(nodes, ref.R)
			}
			next := make(map[string]raw.Object, len(inheritable))
			for k, v := range inherited {
				next[k] = v
			}
			for _, k := range inheritable {
				if v, ok := node.Get(k); ok {
					next[k] = v
				}
			}
			kids, _ := raw.ArrayOf(d.Resolve(dictEntry(node, "Kids")))
			if kids == nil {
				return nil
			}
			for _, kid := range kids.Items {
				if err := walk(kid, next, depth+1); err != nil {
					return err
				}
			}
			return nil
		}

		page := node
		var pageRef raw.ObjectRef
		switch {
		case !isRef:
			// A direct page dictionary gets its own object.
			pageRef = d.AddObject(page)
		case seenPages[ref.R]:
			// The same page object listed twice becomes two pages.
			page = raw.Clone(page).(*raw.DictObj)
			pageRef = d.AddObject(page)
		default:
			pageRef = ref.R
		}
		seenPages[pageRef] = true
		for _, k := range inheritable {
			if _, ok := page.Get(k); ok {
				continue
			}
			if v, ok := inherited[k]; ok {
				page.Set(k, raw.Clone(v))
			}
		}
		if _, ok := page.Get("MediaBox"); !ok {
			page.Set("MediaBox", rectObject(Letter))
		}
		page.Delete("Parent")
		if _, ok := page.Get("Type"); !ok {
			page.Set("Type", raw.NameLiteral("Page"))
		}
		d.pages = append(d.pages, &Page{ref: pageRef, dict: page, doc: d})
		return nil
	}
	if err := walk(root, nil, 0); err != nil {
		return err
	}
	for _, ref := range nodes {
		delete(d.objects, ref)
	}
	return nil
}
