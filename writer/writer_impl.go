package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/observability"
	"github.com/wudi/pdftools/pdferr"
)

type impl struct{ interceptors []Interceptor }

// plan is the set of indirect objects to write, already carrying their
// output numbers.
type plan struct {
	objects  map[raw.ObjectRef]raw.Object
	root     raw.ObjectRef
	info     *raw.ObjectRef
	encrypt  raw.Object
	id       raw.Object
	keepID   bool
	firstID  []byte
	version  string
	compact  bool
	compress bool
	// deterministic seeds /ID from the output instead of a UUID.
	deterministic bool
}

func (p *plan) refs() []raw.ObjectRef { return raw.SortedRefs(p.objects) }

func (p *plan) size() int {
	max := 0
	for ref := range p.objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max + 1
}

func (w *impl) Write(ctx context.Context, doc *document.Document, out io.Writer, cfg Config) error {
	start := time.Now()
	log := observability.OrNop(cfg.Logger)
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.PageCount() == 0 {
		return pdferr.New(pdferr.KindInvalidArgument, "write", "document has no pages")
	}

	var p *plan
	var err error
	if doc.Encrypted() {
		p, err = passthroughPlan(doc, cfg)
	} else {
		p, err = renumberedPlan(doc, cfg)
	}
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", p.version)
	if p.compact {
		err = w.writeCompact(ctx, &buf, p)
	} else {
		err = w.writeClassic(ctx, &buf, p)
	}
	if err != nil {
		return err
	}
	n, err := out.Write(buf.Bytes())
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Debug("serialized document",
		observability.Int(observability.MetricPageCount, doc.PageCount()),
		observability.Int(observability.MetricObjectCount, len(p.objects)),
		observability.Int(observability.MetricOutputBytes, n),
		observability.Bool("object_streams", p.compact),
		observability.Duration(observability.MetricWriteTime, time.Since(start)))
	return nil
}

func headerVersion(doc *document.Document, cfg Config) string {
	v := cfg.Version
	if v == "" {
		v = doc.Version
	}
	if v == "" {
		v = "1.7"
	}
	if cfg.ObjectStreams && !doc.Encrypted() && v < "1.5" {
		v = "1.5"
	}
	return v
}

// renumberedPlan numbers the catalog 1, the page tree root 2, the pages
// from 3 in page order, then everything they reach in traversal order.
// Objects nothing reaches are not written. References to missing objects,
// and to pages that are no longer in the page order, become null.
func renumberedPlan(doc *document.Document, cfg Config) (*plan, error) {
	objects := doc.Objects()
	pages := doc.Pages()
	p := &plan{
		objects:       make(map[raw.ObjectRef]raw.Object, len(objects)+3),
		version:       headerVersion(doc, cfg),
		compact:       cfg.ObjectStreams,
		compress:      cfg.CompressStreams,
		deterministic: cfg.Deterministic,
	}

	next := 1
	alloc := func() raw.ObjectRef {
		ref := raw.ObjectRef{Num: next}
		next++
		return ref
	}
	p.root = alloc()
	pagesRef := alloc()

	numbers := make(map[raw.ObjectRef]raw.ObjectRef, len(objects))
	inOrder := make(map[raw.ObjectRef]bool, len(pages))
	for _, pg := range pages {
		numbers[pg.Ref()] = alloc()
		inOrder[pg.Ref()] = true
	}

	var queue []raw.ObjectRef
	mapRef := func(r raw.ObjectRef) raw.Object {
		if n, ok := numbers[r]; ok {
			return raw.RefObj{R: n}
		}
		obj, ok := objects[r]
		if !ok || (isPage(obj) && !inOrder[r]) {
			return raw.NullObj{}
		}
		n := alloc()
		numbers[r] = n
		queue = append(queue, r)
		return raw.RefObj{R: n}
	}

	kids := raw.NewArray()
	for _, pg := range pages {
		dict := raw.Remap(pg.Dict(), mapRef).(*raw.DictObj)
		dict.Set("Parent", raw.RefObj{R: pagesRef})
		ref := numbers[pg.Ref()]
		p.objects[ref] = dict
		kids.Append(raw.RefObj{R: ref})
	}
	tree := raw.Dict()
	tree.Set("Type", raw.NameLiteral("Pages"))
	tree.Set("Kids", kids)
	tree.Set("Count", raw.NumberInt(int64(len(pages))))
	p.objects[pagesRef] = tree

	catalog := raw.Remap(doc.Catalog(), mapRef).(*raw.DictObj)
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", raw.RefObj{R: pagesRef})
	p.objects[p.root] = catalog

	meta := doc.Metadata()
	if meta.Producer == "" && cfg.Producer != "" {
		meta.Producer = cfg.Producer
	}
	info := meta.InfoDict(raw.Remap(doc.CustomInfo(), mapRef).(*raw.DictObj))

	for i := 0; i < len(queue); i++ {
		r := queue[i]
		p.objects[numbers[r]] = raw.Remap(objects[r], mapRef)
	}

	if info.Len() > 0 {
		ref := alloc()
		p.objects[ref] = info
		p.info = &ref
	}

	if arr, ok := raw.ArrayOf(doc.Passthrough().ID); ok && arr.Len() == 2 {
		if first, ok := raw.StringOf(arr.Items[0]); ok && len(first) > 0 {
			p.firstID = first
		}
	}
	return p, nil
}

// passthroughPlan keeps every object number of an encrypted document, since
// decryption keys are derived from them, along with /Encrypt and /ID.
func passthroughPlan(doc *document.Document, cfg Config) (*plan, error) {
	if doc.MetadataModified() {
		return nil, pdferr.New(pdferr.KindUnsupportedEncryption, "write", "metadata of an encrypted document cannot be re-encrypted")
	}
	pt := doc.Passthrough()
	objects := doc.Objects()
	p := &plan{
		objects: make(map[raw.ObjectRef]raw.Object, len(objects)+3),
		version: headerVersion(doc, cfg),
		encrypt: pt.Encrypt,
		id:      pt.ID,
		keepID:  true,
	}

	maxNum := 0
	for ref := range objects {
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}
	for _, r := range []raw.ObjectRef{pt.CatalogRef, pt.PagesRef, pt.InfoRef} {
		if r.Num > maxNum {
			maxNum = r.Num
		}
	}
	fresh := func(r raw.ObjectRef) raw.ObjectRef {
		if r.Num > 0 {
			return r
		}
		maxNum++
		return raw.ObjectRef{Num: maxNum}
	}
	p.root = fresh(pt.CatalogRef)
	pagesRef := fresh(pt.PagesRef)

	keep := func(r raw.ObjectRef) raw.Object {
		if _, ok := objects[r]; ok || r == p.root || r == pagesRef || r == pt.InfoRef {
			return raw.RefObj{R: r}
		}
		return raw.NullObj{}
	}
	for ref, obj := range objects {
		p.objects[ref] = raw.Remap(obj, keep)
	}

	kids := raw.NewArray()
	for _, pg := range doc.Pages() {
		dict := raw.Remap(pg.Dict(), keep).(*raw.DictObj)
		dict.Set("Parent", raw.RefObj{R: pagesRef})
		p.objects[pg.Ref()] = dict
		kids.Append(raw.RefObj{R: pg.Ref()})
	}
	tree := raw.Dict()
	tree.Set("Type", raw.NameLiteral("Pages"))
	tree.Set("Kids", kids)
	tree.Set("Count", raw.NumberInt(int64(doc.PageCount())))
	p.objects[pagesRef] = tree

	catalog := raw.Remap(doc.Catalog(), keep).(*raw.DictObj)
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", raw.RefObj{R: pagesRef})
	p.objects[p.root] = catalog

	if pt.InfoRef.Num > 0 {
		ref := pt.InfoRef
		p.objects[ref] = raw.Remap(doc.CustomInfo(), keep)
		p.info = &ref
	}
	return p, nil
}

func isPage(obj raw.Object) bool {
	d, ok := obj.(*raw.DictObj)
	if !ok {
		return false
	}
	typ, _ := raw.NameOf(d.KV["Type"])
	return typ == "Page"
}

// prepareStream returns the stream as it will be written: compressed when
// asked for and eligible, with a direct /Length.
func prepareStream(st *raw.StreamObj, compress bool) (*raw.StreamObj, error) {
	dict := raw.Clone(st.Dict).(*raw.DictObj)
	data := st.Data
	if compress && compressible(dict, data) {
		enc, err := flateEncode(data)
		if err != nil {
			return nil, err
		}
		if len(enc) < len(data) {
			data = enc
			dict.Set("Filter", raw.NameLiteral("FlateDecode"))
			dict.Delete("DecodeParms")
		}
	}
	dict.Set("Length", raw.NumberInt(int64(len(data))))
	return raw.NewStream(dict, data), nil
}

func compressible(dict *raw.DictObj, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, k := range []string{"Filter", "F"} {
		if _, ok := dict.Get(k); ok {
			return false
		}
	}
	sub, _ := raw.NameOf(dict.KV["Subtype"])
	return sub != "Image"
}

// writeIndirect serializes one "N G obj ... endobj" block at the end of buf.
func (w *impl) writeIndirect(ctx context.Context, buf *bytes.Buffer, ref raw.ObjectRef, obj raw.Object, compress bool) error {
	if st, ok := obj.(*raw.StreamObj); ok {
		prepared, err := prepareStream(st, compress)
		if err != nil {
			return fmt.Errorf("object %s: %w", ref, err)
		}
		obj = prepared
	}
	for _, ic := range w.interceptors {
		if err := ic.BeforeWrite(ctx, ref, obj); err != nil {
			return err
		}
	}
	start := buf.Len()
	fmt.Fprintf(buf, "%d %d obj\n", ref.Num, ref.Gen)
	if st, ok := obj.(*raw.StreamObj); ok {
		writeObject(buf, st.Dict)
		buf.WriteString("\nstream\n")
		buf.Write(st.Data)
		buf.WriteString("\nendstream")
	} else {
		writeObject(buf, obj)
	}
	buf.WriteString("\nendobj\n")
	for _, ic := range w.interceptors {
		if err := ic.AfterWrite(ctx, ref, int64(buf.Len()-start)); err != nil {
			return err
		}
	}
	return nil
}

func (w *impl) writeClassic(ctx context.Context, buf *bytes.Buffer, p *plan) error {
	offsets := make(map[int]int64, len(p.objects))
	gens := make(map[int]int, len(p.objects))
	for _, ref := range p.refs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		offsets[ref.Num] = int64(buf.Len())
		gens[ref.Num] = ref.Gen
		if err := w.writeIndirect(ctx, buf, ref, p.objects[ref], p.compress); err != nil {
			return err
		}
	}

	size := p.size()
	trailer := p.trailer(size, buf.Bytes())
	xrefOffset := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i < size; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(buf, "%010d %05d n \n", off, gens[i])
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	buf.WriteString("trailer\n")
	writeObject(buf, trailer)
	fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return nil
}

// trailer builds the trailer entries shared by both layouts. body is
// everything written so far and seeds a deterministic /ID.
func (p *plan) trailer(size int, body []byte) *raw.DictObj {
	t := raw.Dict()
	t.Set("Size", raw.NumberInt(int64(size)))
	t.Set("Root", raw.RefObj{R: p.root})
	if p.info != nil {
		t.Set("Info", raw.RefObj{R: *p.info})
	}
	if p.encrypt != nil {
		t.Set("Encrypt", p.encrypt)
	}
	if p.keepID {
		if p.id != nil {
			t.Set("ID", p.id)
		}
		return t
	}
	ids := fileID(body, p.firstID, p.deterministic)
	t.Set("ID", raw.NewArray(raw.StringObj{Bytes: ids[0], Hex: true}, raw.StringObj{Bytes: ids[1], Hex: true}))
	return t
}
