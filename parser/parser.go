// Package parser turns PDF bytes into a raw.Document: it resolves the
// cross-reference data, loads every live object and validates that the
// catalog and page tree are usable.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/observability"
	"github.com/wudi/pdftools/pdferr"
	"github.com/wudi/pdftools/recovery"
	"github.com/wudi/pdftools/security"
	"github.com/wudi/pdftools/xref"
)

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	// TolerateEncryption accepts documents with an /Encrypt entry. Their
	// strings and streams stay ciphertext and the result is flagged
	// Encrypted.
	TolerateEncryption bool
	// CapNumericOverflow clamps integers outside int32 and reals beyond
	// ±3.403e38 instead of failing.
	CapNumericOverflow bool
	// Recovery decides how token and object defects are handled. Nil is
	// strict.
	Recovery recovery.Strategy
	// Repair allows rebuilding the cross-reference table by scanning the
	// whole file.
	Repair bool
	Limits security.Limits
	Logger observability.Logger
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.Limits = cfg.Limits.WithDefaults()
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &DocumentParser{cfg: cfg}
}

// Parse parses a complete PDF held in memory.
func Parse(ctx context.Context, data []byte, cfg Config) (*raw.Document, error) {
	return NewDocumentParser(cfg).Parse(ctx, bytes.NewReader(data))
}

// headerWindow is how far into the file the %PDF- marker may start.
const headerWindow = 1024

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	start := time.Now()
	if p.cfg.Limits.MaxParseTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Limits.MaxParseTime)
		defer cancel()
	}

	version, err := detectHeaderVersion(r)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindMalformedDocument, "parse", err)
	}

	resolver := xref.NewResolver(xref.ResolverConfig{
		MaxXRefDepth: p.cfg.Limits.MaxXRefDepth,
		Recovery:     p.cfg.Recovery,
		Repair:       p.cfg.Repair,
		Filters:      p.filterLimits(),
	})
	table, err := resolver.Resolve(ctx, r)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, pdferr.Wrap(pdferr.KindMalformedDocument, "parse", fmt.Errorf("resolve xref: %w", err))
	}
	if resolver.Repaired() {
		p.cfg.Logger.Warn("cross-reference table rebuilt by scanning", observability.Int("objects", len(table.Objects())))
	}

	doc := &raw.Document{
		Objects:  make(map[raw.ObjectRef]raw.Object),
		Trailer:  table.Trailer(),
		Version:  version,
		Repaired: resolver.Repaired(),
	}
	if doc.Trailer == nil {
		doc.Trailer = raw.Dict()
	}

	loader, err := (&ObjectLoaderBuilder{}).
		WithReader(r).
		WithXRef(table).
		WithLimits(p.cfg.Limits).
		WithRecovery(p.cfg.Recovery).
		WithNumericCap(p.cfg.CapNumericOverflow).
		Build()
	if err != nil {
		return nil, err
	}

	if err := p.checkEncryption(ctx, loader, doc); err != nil {
		return nil, err
	}

	for _, objNum := range table.Objects() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ref := raw.ObjectRef{Num: objNum}
		if _, gen, found := table.Lookup(objNum); found {
			ref.Gen = gen
		} else {
			doc.ObjectStreams = true
			if doc.Encrypted {
				return nil, pdferr.New(pdferr.KindUnsupportedEncryption, "parse", "encrypted object streams cannot be read without decryption")
			}
		}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !p.tolerate(err, objNum) {
				return nil, pdferr.Wrap(pdferr.KindMalformedDocument, "parse", fmt.Errorf("load object %d: %w", objNum, err))
			}
			continue
		}
		doc.Objects[ref] = obj
	}

	if doc.Repaired && !doc.Encrypted {
		p.recoverObjectStreams(ctx, loader, doc)
	}
	stripFileStructure(doc)

	if len(doc.Objects) == 0 {
		return nil, pdferr.New(pdferr.KindMalformedDocument, "parse", "no resolvable objects")
	}
	if err := p.checkCatalog(doc); err != nil {
		return nil, pdferr.Wrap(pdferr.KindMalformedDocument, "parse", err)
	}

	p.cfg.Logger.Info("parsed document",
		observability.String("version", doc.Version),
		observability.Int("objects", len(doc.Objects)),
		observability.Bool("repaired", doc.Repaired),
		observability.Bool("encrypted", doc.Encrypted),
		observability.Duration("took", time.Since(start)),
	)
	return doc, nil
}

func (p *DocumentParser) filterLimits() filters.Limits {
	return filters.Limits{
		MaxDecompressedSize: p.cfg.Limits.MaxDecompressedSize,
		MaxDecodeTime:       p.cfg.Limits.MaxDecodeTime,
	}
}

// tolerate asks the recovery strategy whether an unreadable object may be
// skipped.
func (p *DocumentParser) tolerate(err error, objNum int) bool {
	if p.cfg.Recovery == nil {
		return false
	}
	action := p.cfg.Recovery.OnError(nil, err, recovery.Location{Component: "parser", ObjectNum: objNum})
	if action == recovery.ActionFail {
		return false
	}
	p.cfg.Logger.Warn("skipping unreadable object", observability.Int("object", objNum), observability.Error("err", err))
	return true
}

func (p *DocumentParser) checkEncryption(ctx context.Context, loader ObjectLoader, doc *raw.Document) error {
	encObj, ok := doc.Trailer.Get("Encrypt")
	if !ok {
		return nil
	}
	if _, isNull := encObj.(raw.NullObj); isNull {
		return nil
	}
	var encDict *raw.DictObj
	switch v := encObj.(type) {
	case *raw.DictObj:
		encDict = v
	case raw.RefObj:
		if obj, err := loader.Load(ctx, v.R); err == nil {
			encDict, _ = raw.DictOf(obj)
		}
	}
	info := security.DescribeEncryption(encDict)
	if !p.cfg.TolerateEncryption {
		return pdferr.Wrap(pdferr.KindUnsupportedEncryption, "parse", fmt.Errorf("document is encrypted (%s)", info))
	}
	p.cfg.Logger.Warn("document is encrypted; content stays opaque", observability.String("encryption", info.String()))
	doc.Encrypted = true
	return nil
}

// recoverObjectStreams adds objects from object streams whose xref entries
// were lost. Objects already defined directly in the file win.
func (p *DocumentParser) recoverObjectStreams(ctx context.Context, loader ObjectLoader, doc *raw.Document) {
	ol, ok := loader.(*objectLoader)
	if !ok {
		return
	}
	have := make(map[int]bool, len(doc.Objects))
	for ref := range doc.Objects {
		have[ref.Num] = true
	}
	for _, ref := range raw.SortedRefs(doc.Objects) {
		st, ok := doc.Objects[ref].(*raw.StreamObj)
		if !ok || nameEntry(st.Dict, "Type") != "ObjStm" {
			continue
		}
		objs, err := ol.expandObjectStream(ctx, st)
		if err != nil {
			p.cfg.Logger.Warn("unreadable object stream during repair", observability.Int("object", ref.Num), observability.Error("err", err))
			continue
		}
		for num, obj := range objs {
			if !have[num] {
				doc.Objects[raw.ObjectRef{Num: num}] = obj
				have[num] = true
				doc.ObjectStreams = true
			}
		}
	}
}

// stripFileStructure removes objects that only describe the file layout:
// cross-reference streams, object streams and linearization dictionaries.
func stripFileStructure(doc *raw.Document) {
	for ref, obj := range doc.Objects {
		d, ok := raw.DictOf(obj)
		if !ok {
			continue
		}
		switch nameEntry(d, "Type") {
		case "XRef", "ObjStm":
			delete(doc.Objects, ref)
			continue
		}
		if _, lin := d.Get("Linearized"); lin {
			if _, isStream := obj.(*raw.StreamObj); !isStream {
				delete(doc.Objects, ref)
			}
		}
	}
}

// checkCatalog makes sure /Root names a catalog with a page tree holding at
// least one page. A repaired file without a usable /Root gets the first
// catalog found among its objects.
func (p *DocumentParser) checkCatalog(doc *raw.Document) error {
	catalog, ok := raw.DictOf(doc.Resolve(dictEntry(doc.Trailer, "Root")))
	if !ok || (nameEntry(catalog, "Type") != "Catalog" && dictEntry(catalog, "Pages") == nil) {
		ref, found := findCatalog(doc)
		if !found {
			return errors.New("document catalog not found")
		}
		if !doc.Repaired && p.cfg.Recovery == nil {
			return errors.New("trailer /Root does not name a catalog")
		}
		p.cfg.Logger.Warn("using catalog found by scanning", observability.String("ref", ref.String()))
		doc.Trailer.Set("Root", raw.RefObj{R: ref})
		catalog, _ = raw.DictOf(doc.Objects[ref])
	}
	pages, ok := raw.DictOf(doc.Resolve(dictEntry(catalog, "Pages")))
	if !ok {
		return errors.New("catalog has no page tree")
	}
	if countPages(doc, pages) == 0 {
		return errors.New("document has no pages")
	}
	return nil
}

func findCatalog(doc *raw.Document) (raw.ObjectRef, bool) {
	for _, ref := range raw.SortedRefs(doc.Objects) {
		d, ok := doc.Objects[ref].(*raw.DictObj)
		if !ok || nameEntry(d, "Type") != "Catalog" {
			continue
		}
		if _, ok := raw.DictOf(doc.Resolve(dictEntry(d, "Pages"))); ok {
			return ref, true
		}
	}
	return raw.ObjectRef{}, false
}

// countPages counts leaves of the page tree, ignoring cycles.
func countPages(doc *raw.Document, root *raw.DictObj) int {
	seen := make(map[*raw.DictObj]bool)
	var walk func(node *raw.DictObj, depth int) int
	walk = func(node *raw.DictObj, depth int) int {
		if node == nil || seen[node] || depth > 64 {
			return 0
		}
		seen[node] = true
		kids, ok := raw.ArrayOf(doc.Resolve(dictEntry(node, "Kids")))
		if !ok {
			if nameEntry(node, "Type") == "Pages" {
				return 0
			}
			return 1
		}
		n := 0
		for _, k := range kids.Items {
			kid, ok := raw.DictOf(doc.Resolve(k))
			if ok {
				n += walk(kid, depth+1)
			}
		}
		return n
	}
	return walk(root, 0)
}

func nameEntry(d *raw.DictObj, key string) string {
	n, _ := raw.NameOf(dictEntry(d, key))
	return n
}

func detectHeaderVersion(r io.ReaderAt) (string, error) {
	buf := make([]byte, headerWindow+16)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	buf = buf[:n]
	idx := bytes.Index(buf, []byte("%PDF-"))
	if idx < 0 || idx >= headerWindow {
		return "", errors.New("%PDF- header not found")
	}
	v := buf[idx+5:]
	end := 0
	for end < len(v) && (v[end] >= '0' && v[end] <= '9' || v[end] == '.') {
		end++
	}
	if end == 0 {
		return "1.4", nil
	}
	return string(v[:end]), nil
}
