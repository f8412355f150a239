package builder

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/parser"
	"github.com/wudi/pdftools/writer"
)

func newBuilder(t *testing.T) PDFBuilder {
	t.Helper()
	b, err := NewDefault()
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	return b
}

func TestDrawTextWritesOperators(t *testing.T) {
	b := newBuilder(t)
	b.NewPage(200, 200).
		DrawText("Hello", 10, 20, TextOptions{FontSize: 16, Color: Color{R: 0.1, G: 0.2, B: 0.3}}).
		DrawText("", 10, 40, TextOptions{}).
		Finish()
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	content, err := doc.PageContent(context.Background(), 0)
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	s := string(content)
	for _, want := range []string{"q\n0.1 0.2 0.3 rg\nBT\n/F1 16 Tf\n1 0 0 1 10 20 Tm\n[<", "] TJ\nET\nQ\n"} {
		if !strings.Contains(s, want) {
			t.Fatalf("content missing %q:\n%s", want, s)
		}
	}
	if strings.Count(s, "BT") != 1 {
		t.Fatalf("empty text should draw nothing:\n%s", s)
	}
}

func TestBuildEmbedsType0Font(t *testing.T) {
	b := newBuilder(t)
	b.NewPage(A4.Width, A4.Height).DrawText("Hi", 50, 700, TextOptions{}).Finish()
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p, _ := doc.Page(0)
	if got := p.MediaBox(); got.URX != A4.Width || got.URY != A4.Height {
		t.Fatalf("media box %+v", got)
	}
	res, _ := raw.DictOf(doc.Resolve(dictValue(p.Dict(), "Resources")))
	fontsDict, _ := raw.DictOf(doc.Resolve(dictValue(res, "Font")))
	t0, ok := raw.DictOf(doc.Resolve(dictValue(fontsDict, "F1")))
	if !ok {
		t.Fatalf("page has no F1 font")
	}
	if name, _ := raw.NameOf(dictValue(t0, "Subtype")); name != "Type0" {
		t.Fatalf("subtype %q", name)
	}
	if enc, _ := raw.NameOf(dictValue(t0, "Encoding")); enc != "Identity-H" {
		t.Fatalf("encoding %q", enc)
	}
	descendants, _ := raw.ArrayOf(dictValue(t0, "DescendantFonts"))
	cid, ok := raw.DictOf(doc.Resolve(descendants.Items[0]))
	if !ok {
		t.Fatalf("missing descendant font")
	}
	w, _ := raw.ArrayOf(dictValue(cid, "W"))
	if w.Len() != 4 {
		t.Fatalf("expected widths for two glyphs, got %d entries", w.Len())
	}
	desc, _ := raw.DictOf(doc.Resolve(dictValue(cid, "FontDescriptor")))
	if _, ok := doc.Resolve(dictValue(desc, "FontFile2")).(*raw.StreamObj); !ok {
		t.Fatalf("font file not embedded")
	}
	cmap, ok := doc.Resolve(dictValue(t0, "ToUnicode")).(*raw.StreamObj)
	if !ok {
		t.Fatalf("no ToUnicode stream")
	}
	for _, want := range []string{"<0048>", "<0069>", "2 beginbfchar"} {
		if !bytes.Contains(cmap.Data, []byte(want)) {
			t.Fatalf("ToUnicode missing %s:\n%s", want, cmap.Data)
		}
	}
}

func TestBuildRoundTrips(t *testing.T) {
	b := newBuilder(t)
	b.SetInfo(document.Metadata{Title: "Built"})
	for i := 0; i < 3; i++ {
		b.NewPage(Letter.Width, Letter.Height).
			DrawText("Page text", 72, 700, TextOptions{}).
			DrawLine(72, 690, 300, 690, LineOptions{LineWidth: 0.5, DashPattern: []float64{3, 2}}).
			AddLink(document.Rectangle{LLX: 72, LLY: 700, URX: 150, URY: 712}, "https://example.com").
			Finish()
	}
	if b.PageCount() != 3 {
		t.Fatalf("page count %d", b.PageCount())
	}
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := writer.Bytes(context.Background(), doc, writer.Config{CompressStreams: true})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := document.Open(context.Background(), out, parser.Config{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if back.PageCount() != 3 || back.Metadata().Title != "Built" {
		t.Fatalf("pages %d, title %q", back.PageCount(), back.Metadata().Title)
	}
	p, _ := back.Page(2)
	annots, ok := raw.ArrayOf(dictValue(p.Dict(), "Annots"))
	if !ok || annots.Len() != 1 {
		t.Fatalf("link annotation lost")
	}
	content, err := back.PageContent(context.Background(), 1)
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if !bytes.Contains(content, []byte("[3 2] 0 d\n72 690 m\n300 690 l\nS")) {
		t.Fatalf("line operators missing:\n%s", content)
	}
}

func TestBuildWithoutTextHasNoFont(t *testing.T) {
	b := newBuilder(t)
	b.NewPage(100, 100).DrawLine(0, 0, 100, 100, LineOptions{}).Finish()
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p, _ := doc.Page(0)
	res, _ := raw.DictOf(dictValue(p.Dict(), "Resources"))
	if _, ok := res.Get("Font"); ok {
		t.Fatalf("font resource written for a page without text")
	}
}

func TestPaperSizeByName(t *testing.T) {
	tests := map[string]PaperSize{"A4": A4, " letter ": Letter, "legal": Legal, "a5": A5}
	for name, want := range tests {
		if got, ok := PaperSizeByName(name); !ok || got != want {
			t.Fatalf("PaperSizeByName(%q) = %v, %v", name, got, ok)
		}
	}
	if _, ok := PaperSizeByName("tabloid"); ok {
		t.Fatalf("unknown size accepted")
	}
}

func TestFmtNum(t *testing.T) {
	tests := map[float64]string{12: "12", 0.5: "0.5", 595.28: "595.28", 1.23456: "1.235", -3: "-3"}
	for in, want := range tests {
		if got := fmtNum(in); got != want {
			t.Fatalf("fmtNum(%v) = %q, want %q", in, got, want)
		}
	}
}

func dictValue(d *raw.DictObj, key string) raw.Object {
	if d == nil {
		return nil
	}
	v, _ := d.Get(key)
	return v
}
