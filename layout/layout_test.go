package layout

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdftools/builder"
	"github.com/wudi/pdftools/document"
)

type drawn struct {
	Page int
	Text string
	X, Y float64
	Size float64
}

// fakeBuilder records drawing calls. Every character is half an em wide.
type fakeBuilder struct {
	pages int
	texts []drawn
	lines int
	links []string
}

type fakePage struct {
	b     *fakeBuilder
	index int
}

func (b *fakeBuilder) NewPage(w, h float64) builder.PageBuilder {
	b.pages++
	return &fakePage{b: b, index: b.pages - 1}
}

func (b *fakeBuilder) MeasureText(text string, size float64) float64 {
	return float64(utf8.RuneCountInString(text)) * size * 0.5
}

func (b *fakeBuilder) SetInfo(document.Metadata) builder.PDFBuilder { return b }
func (b *fakeBuilder) PageCount() int                               { return b.pages }
func (b *fakeBuilder) Build() (*document.Document, error)           { return document.New(), nil }

func (p *fakePage) DrawText(text string, x, y float64, opts builder.TextOptions) builder.PageBuilder {
	p.b.texts = append(p.b.texts, drawn{Page: p.index, Text: text, X: x, Y: y, Size: opts.FontSize})
	return p
}

func (p *fakePage) DrawLine(x1, y1, x2, y2 float64, opts builder.LineOptions) builder.PageBuilder {
	p.b.lines++
	return p
}

func (p *fakePage) AddLink(rect document.Rectangle, uri string) builder.PageBuilder {
	p.b.links = append(p.b.links, uri)
	return p
}

func (p *fakePage) Finish() builder.PDFBuilder { return p.b }

func (b *fakeBuilder) textsOnly() []string {
	var out []string
	for _, d := range b.texts {
		out = append(out, d.Text)
	}
	return out
}

// narrowEngine fits 7 characters of 10pt text per line and 6 lines per
// page.
func narrowEngine() (*Engine, *fakeBuilder) {
	fb := &fakeBuilder{}
	e := NewEngine(fb,
		WithPageSize(55, 100),
		WithMargins(Margins{Top: 10, Bottom: 10, Left: 10, Right: 10}),
		WithFontSize(10),
		WithLineHeight(1.2),
	)
	return e, fb
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestWordWrap(t *testing.T) {
	e, fb := narrowEngine()
	if err := e.RenderText("one two   three"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if diff := cmp.Diff([]string{"one two", "three"}, fb.textsOnly()); diff != "" {
		t.Fatalf("lines (-want +got):\n%s", diff)
	}
	first, second := fb.texts[0], fb.texts[1]
	if first.X != 10 || !approx(first.Y, 80) || !approx(second.Y, 68) {
		t.Fatalf("positions %+v %+v", first, second)
	}
}

func TestLongWordBreaksBetweenCharacters(t *testing.T) {
	e, fb := narrowEngine()
	if err := e.RenderText("ab abcdefghij"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if diff := cmp.Diff([]string{"ab", "abcdefg", "hij"}, fb.textsOnly()); diff != "" {
		t.Fatalf("lines (-want +got):\n%s", diff)
	}
}

func TestPageBreakAtBottomMargin(t *testing.T) {
	e, fb := narrowEngine()
	var lines []string
	for i := 0; i < 8; i++ {
		lines = append(lines, "line")
	}
	if err := e.RenderText(strings.Join(lines, "\n")); err != nil {
		t.Fatalf("render: %v", err)
	}
	if fb.pages != 2 {
		t.Fatalf("expected 2 pages, got %d", fb.pages)
	}
	perPage := map[int]int{}
	for _, d := range fb.texts {
		perPage[d.Page]++
	}
	if perPage[0] != 6 || perPage[1] != 2 {
		t.Fatalf("lines per page %v", perPage)
	}
	if !approx(fb.texts[6].Y, 80) {
		t.Fatalf("new page should start at the top margin, got y=%v", fb.texts[6].Y)
	}
}

func TestEmptySourceYieldsOnePage(t *testing.T) {
	for name, render := range map[string]func(*Engine) error{
		"text":     func(e *Engine) error { return e.RenderText("") },
		"html":     func(e *Engine) error { return e.RenderHTML("<html><head><title>x</title></head><body></body></html>") },
		"markdown": func(e *Engine) error { return e.RenderMarkdown("\n\n") },
	} {
		e, fb := narrowEngine()
		if err := render(e); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if fb.pages != 1 || len(fb.texts) != 0 {
			t.Fatalf("%s: pages=%d texts=%v", name, fb.pages, fb.textsOnly())
		}
	}
}

func TestHeadingSizes(t *testing.T) {
	fb := &fakeBuilder{}
	e := NewEngine(fb)
	err := e.RenderHTML(`<h1>A</h1><h2>B</h2><h3>C</h3><h5>D</h5><p>E <script>ignored()</script></p>`)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var sizes []float64
	for _, d := range fb.texts {
		sizes = append(sizes, d.Size)
	}
	if diff := cmp.Diff([]float64{24, 18, 15, 15, 12}, sizes); diff != "" {
		t.Fatalf("sizes (-want +got):\n%s", diff)
	}
	if fb.texts[4].Text != "E" {
		t.Fatalf("script content rendered: %q", fb.texts[4].Text)
	}
}

func TestLists(t *testing.T) {
	fb := &fakeBuilder{}
	e := NewEngine(fb)
	err := e.RenderHTML(`<ul><li>one</li><li>two<ol><li>inner</li></ol></li></ul>`)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := []drawn{
		{Text: "•", X: 50},
		{Text: "one", X: 65},
		{Text: "•", X: 50},
		{Text: "two", X: 65},
		{Text: "1.", X: 65},
		{Text: "inner", X: 80},
	}
	if len(fb.texts) != len(want) {
		t.Fatalf("drawn %v", fb.textsOnly())
	}
	for i, w := range want {
		if fb.texts[i].Text != w.Text || fb.texts[i].X != w.X {
			t.Fatalf("item %d = %+v, want %q at %v", i, fb.texts[i], w.Text, w.X)
		}
	}
}

func TestMarkdown(t *testing.T) {
	fb := &fakeBuilder{}
	e := NewEngine(fb)
	md := "# Title\n\nSome *body* text with a [link](https://example.com).\n\n- first\n- second\n\n~~gone~~\n"
	if err := e.RenderMarkdown(md); err != nil {
		t.Fatalf("render: %v", err)
	}
	got := strings.Join(fb.textsOnly(), "|")
	for _, want := range []string{"Title|Some body text with a |link|.|", "•|first|•|second", "gone"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	if fb.texts[0].Size != 24 {
		t.Fatalf("title size %v", fb.texts[0].Size)
	}
	if diff := cmp.Diff([]string{"https://example.com"}, fb.links); diff != "" {
		t.Fatalf("links (-want +got):\n%s", diff)
	}
	// Underlined link plus struck-through text.
	if fb.lines != 2 {
		t.Fatalf("expected 2 decoration lines, got %d", fb.lines)
	}
}

func TestPreKeepsLines(t *testing.T) {
	fb := &fakeBuilder{}
	e := NewEngine(fb)
	if err := e.RenderHTML("<pre>\nfunc main() {\n    run()\n}\n</pre>"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if diff := cmp.Diff([]string{"func main() {", "run()", "}"}, fb.textsOnly()); diff != "" {
		t.Fatalf("lines (-want +got):\n%s", diff)
	}
	if indent := fb.texts[1].X - fb.texts[0].X; !approx(indent, 4*6) {
		t.Fatalf("indent %v", indent)
	}
}

func TestBlockElements(t *testing.T) {
	fb := &fakeBuilder{}
	e := NewEngine(fb)
	err := e.RenderHTML(`<blockquote>quoted</blockquote><hr><table><tr><th>a</th><td>b</td></tr></table>loose<br>text<img alt="pic">`)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if diff := cmp.Diff([]string{"quoted", "a | b", "loose", "text[pic]"}, fb.textsOnly()); diff != "" {
		t.Fatalf("texts (-want +got):\n%s", diff)
	}
	if fb.texts[0].X != 65 {
		t.Fatalf("blockquote not indented: %v", fb.texts[0].X)
	}
	if fb.lines != 1 {
		t.Fatalf("hr should draw one rule, got %d", fb.lines)
	}
}

func TestMath(t *testing.T) {
	fb := &fakeBuilder{}
	e := NewEngine(fb)
	if err := e.RenderHTML(`<math display="block"><msup><mi>x</mi><mn>2</mn></msup></math>`); err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(fb.texts) != 2 || fb.texts[0].Text != "x" || fb.texts[1].Text != "2" {
		t.Fatalf("drawn %+v", fb.texts)
	}
	if !approx(fb.texts[1].Size, 12*0.7) || fb.texts[1].Y <= fb.texts[0].Y {
		t.Fatalf("superscript not raised and shrunk: %+v", fb.texts[1])
	}

	fb = &fakeBuilder{}
	e = NewEngine(fb)
	if err := e.RenderHTML(`<p>area <math><mfrac><mi>a</mi><mi>b</mi></mfrac></math> here</p>`); err != nil {
		t.Fatalf("render: %v", err)
	}
	if diff := cmp.Diff([]string{"area a/b here"}, fb.textsOnly()); diff != "" {
		t.Fatalf("inline math (-want +got):\n%s", diff)
	}
}

func TestRenderLaTeX(t *testing.T) {
	fb := &fakeBuilder{}
	e := NewEngine(fb)
	if err := e.RenderLaTeX(`E = mc^2`); err != nil {
		t.Fatalf("render: %v", err)
	}
	joined := strings.Join(fb.textsOnly(), "")
	for _, want := range []string{"E", "m", "c", "2"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("formula text %q missing %q", joined, want)
		}
	}
	if strings.Contains(joined, "$") {
		t.Fatalf("delimiters leaked into output: %q", joined)
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("a  b\tc\n")
	want := []string{"a", " ", " ", "b", " ", "c", " "}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tokens (-want +got):\n%s", diff)
	}
}
