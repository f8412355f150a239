// Package builder draws text and lines onto new pages and assembles them
// into a document.Document with one embedded TrueType font.
package builder

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/fonts"
	"github.com/wudi/pdftools/ir/raw"
)

// PaperSize is a page size in points.
type PaperSize struct {
	Width, Height float64
}

var (
	A4     = PaperSize{Width: 595.28, Height: 841.89}
	Letter = PaperSize{Width: 612, Height: 792}
	Legal  = PaperSize{Width: 612, Height: 1008}
	A5     = PaperSize{Width: 419.53, Height: 595.28}
)

// PaperSizeByName looks up a paper size by case-insensitive name.
func PaperSizeByName(name string) (PaperSize, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "a4":
		return A4, true
	case "a5":
		return A5, true
	case "letter":
		return Letter, true
	case "legal":
		return Legal, true
	}
	return PaperSize{}, false
}

// PDFBuilder collects pages and turns them into a document.
type PDFBuilder interface {
	NewPage(width, height float64) PageBuilder
	// MeasureText returns the width of text set at size points.
	MeasureText(text string, size float64) float64
	SetInfo(meta document.Metadata) PDFBuilder
	PageCount() int
	Build() (*document.Document, error)
}

// PageBuilder draws onto one page.
type PageBuilder interface {
	DrawText(text string, x, y float64, opts TextOptions) PageBuilder
	DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder
	// AddLink makes rect a link to uri.
	AddLink(rect document.Rectangle, uri string) PageBuilder
	Finish() PDFBuilder
}

type TextOptions struct {
	FontSize float64
	Color    Color
}

type LineOptions struct {
	StrokeColor Color
	LineWidth   float64
	DashPattern []float64
}

// Color is an RGB color with components in [0, 1].
type Color struct {
	R, G, B float64
}

const (
	fontResource    = "F1"
	defaultFontSize = 12
)

type builderImpl struct {
	font  *fonts.Font
	pages []*pageBuilderImpl
	info  *document.Metadata
	// glyphText maps each glyph used so far to the text it stands for.
	glyphText map[int][]rune
}

type link struct {
	rect document.Rectangle
	uri  string
}

type pageBuilderImpl struct {
	parent        *builderImpl
	width, height float64
	content       bytes.Buffer
	links         []link
}

// NewBuilder returns a builder that sets all text in font.
func NewBuilder(font *fonts.Font) PDFBuilder {
	return &builderImpl{font: font, glyphText: make(map[int][]rune)}
}

// NewDefault returns a builder using Go Regular.
func NewDefault() (PDFBuilder, error) {
	f, err := fonts.GoRegular()
	if err != nil {
		return nil, err
	}
	return NewBuilder(f), nil
}

func (b *builderImpl) NewPage(w, h float64) PageBuilder {
	p := &pageBuilderImpl{parent: b, width: w, height: h}
	b.pages = append(b.pages, p)
	return p
}

func (b *builderImpl) MeasureText(text string, size float64) float64 {
	if size <= 0 {
		size = defaultFontSize
	}
	return b.font.Measure(text, size)
}

func (b *builderImpl) SetInfo(meta document.Metadata) PDFBuilder {
	b.info = &meta
	return b
}

func (b *builderImpl) PageCount() int { return len(b.pages) }

func (b *builderImpl) Build() (*document.Document, error) {
	doc := document.New()
	var fontRef raw.ObjectRef
	if len(b.glyphText) > 0 {
		ref, err := b.embedFont(doc)
		if err != nil {
			return nil, fmt.Errorf("embed font: %w", err)
		}
		fontRef = ref
	}
	for _, p := range b.pages {
		page := doc.NewPage(document.Rectangle{URX: p.width, URY: p.height})
		page.SetContents(append([]byte(nil), p.content.Bytes()...))
		res := raw.Dict()
		if fontRef.Num != 0 {
			fontDict := raw.Dict()
			fontDict.Set(fontResource, raw.RefObj{R: fontRef})
			res.Set("Font", fontDict)
		}
		page.Dict().Set("Resources", res)
		if len(p.links) > 0 {
			annots := raw.NewArray()
			for _, l := range p.links {
				annots.Append(raw.RefObj{R: doc.AddObject(linkAnnotation(l))})
			}
			page.Dict().Set("Annots", annots)
		}
	}
	if b.info != nil {
		doc.ReplaceMetadata(*b.info)
	}
	return doc, nil
}

// embedFont adds the Type0 font with its descendant, descriptor, font file
// and ToUnicode map. Widths are listed for the glyphs drawn.
func (b *builderImpl) embedFont(doc *document.Document) (raw.ObjectRef, error) {
	f := b.font
	packed, err := filters.FlateEncode(f.Data)
	if err != nil {
		return raw.ObjectRef{}, err
	}
	fileDict := raw.Dict()
	fileDict.Set("Length1", raw.NumberInt(int64(len(f.Data))))
	fileDict.Set("Filter", raw.NameLiteral("FlateDecode"))
	fileRef := doc.AddObject(raw.NewStream(fileDict, packed))

	desc := raw.Dict()
	desc.Set("Type", raw.NameLiteral("FontDescriptor"))
	desc.Set("FontName", raw.NameLiteral(f.Name))
	desc.Set("Flags", raw.NumberInt(32))
	desc.Set("FontBBox", raw.NewArray(number(f.BBox[0]), number(f.BBox[1]), number(f.BBox[2]), number(f.BBox[3])))
	desc.Set("ItalicAngle", number(f.ItalicAngle))
	desc.Set("Ascent", number(f.Ascent))
	desc.Set("Descent", number(f.Descent))
	desc.Set("CapHeight", number(f.CapHeight))
	desc.Set("StemV", raw.NumberInt(80))
	desc.Set("FontFile2", raw.RefObj{R: fileRef})
	descRef := doc.AddObject(desc)

	gids := make([]int, 0, len(b.glyphText))
	for gid := range b.glyphText {
		gids = append(gids, gid)
	}
	sort.Ints(gids)
	widths := raw.NewArray()
	for _, gid := range gids {
		widths.Append(raw.NumberInt(int64(gid)))
		widths.Append(raw.NewArray(raw.NumberInt(int64(f.GlyphWidth(gid)))))
	}

	sysInfo := raw.Dict()
	sysInfo.Set("Registry", raw.Str([]byte("Adobe")))
	sysInfo.Set("Ordering", raw.Str([]byte("Identity")))
	sysInfo.Set("Supplement", raw.NumberInt(0))

	cid := raw.Dict()
	cid.Set("Type", raw.NameLiteral("Font"))
	cid.Set("Subtype", raw.NameLiteral("CIDFontType2"))
	cid.Set("BaseFont", raw.NameLiteral(f.Name))
	cid.Set("CIDSystemInfo", sysInfo)
	cid.Set("FontDescriptor", raw.RefObj{R: descRef})
	cid.Set("DW", raw.NumberInt(int64(f.GlyphWidth(0))))
	cid.Set("W", widths)
	cid.Set("CIDToGIDMap", raw.NameLiteral("Identity"))
	cidRef := doc.AddObject(cid)

	cmap, err := fonts.ToUnicodeCMap(b.glyphText)
	if err != nil {
		return raw.ObjectRef{}, err
	}
	cmapRef := doc.AddObject(raw.NewStream(raw.Dict(), cmap))

	t0 := raw.Dict()
	t0.Set("Type", raw.NameLiteral("Font"))
	t0.Set("Subtype", raw.NameLiteral("Type0"))
	t0.Set("BaseFont", raw.NameLiteral(f.Name))
	t0.Set("Encoding", raw.NameLiteral("Identity-H"))
	t0.Set("DescendantFonts", raw.NewArray(raw.RefObj{R: cidRef}))
	t0.Set("ToUnicode", raw.RefObj{R: cmapRef})
	return doc.AddObject(t0), nil
}

func linkAnnotation(l link) *raw.DictObj {
	action := raw.Dict()
	action.Set("S", raw.NameLiteral("URI"))
	action.Set("URI", raw.Str([]byte(l.uri)))
	a := raw.Dict()
	a.Set("Type", raw.NameLiteral("Annot"))
	a.Set("Subtype", raw.NameLiteral("Link"))
	a.Set("Rect", raw.NewArray(number(l.rect.LLX), number(l.rect.LLY), number(l.rect.URX), number(l.rect.URY)))
	a.Set("Border", raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(0)))
	a.Set("A", action)
	return a
}

func (p *pageBuilderImpl) DrawText(text string, x, y float64, opts TextOptions) PageBuilder {
	glyphs := p.parent.font.Shape(text)
	if len(glyphs) == 0 {
		return p
	}
	size := opts.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	c := &p.content
	c.WriteString("q\n")
	if opts.Color != (Color{}) {
		fmt.Fprintf(c, "%s %s %s rg\n", fmtNum(opts.Color.R), fmtNum(opts.Color.G), fmtNum(opts.Color.B))
	}
	fmt.Fprintf(c, "BT\n/%s %s Tf\n1 0 0 1 %s %s Tm\n[", fontResource, fmtNum(size), fmtNum(x), fmtNum(y))
	for i, g := range glyphs {
		if _, ok := p.parent.glyphText[g.ID]; !ok && len(g.Runes) > 0 {
			p.parent.glyphText[g.ID] = g.Runes
		}
		fmt.Fprintf(c, "<%04X>", g.ID)
		// TJ adjustments move the next glyph left by thousandths of an em.
		if adj := float64(p.parent.font.GlyphWidth(g.ID)) - g.XAdvance; math.Abs(adj) > 0.01 && i < len(glyphs)-1 {
			c.WriteString(fmtNum(adj))
		}
	}
	c.WriteString("] TJ\nET\nQ\n")
	return p
}

func (p *pageBuilderImpl) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder {
	c := &p.content
	c.WriteString("q\n")
	width := opts.LineWidth
	if width <= 0 {
		width = 1
	}
	fmt.Fprintf(c, "%s w\n", fmtNum(width))
	if opts.StrokeColor != (Color{}) {
		fmt.Fprintf(c, "%s %s %s RG\n", fmtNum(opts.StrokeColor.R), fmtNum(opts.StrokeColor.G), fmtNum(opts.StrokeColor.B))
	}
	if len(opts.DashPattern) > 0 {
		parts := make([]string, len(opts.DashPattern))
		for i, d := range opts.DashPattern {
			parts[i] = fmtNum(d)
		}
		fmt.Fprintf(c, "[%s] 0 d\n", strings.Join(parts, " "))
	}
	fmt.Fprintf(c, "%s %s m\n%s %s l\nS\nQ\n", fmtNum(x1), fmtNum(y1), fmtNum(x2), fmtNum(y2))
	return p
}

func (p *pageBuilderImpl) AddLink(rect document.Rectangle, uri string) PageBuilder {
	if uri != "" {
		p.links = append(p.links, link{rect: rect, uri: uri})
	}
	return p
}

func (p *pageBuilderImpl) Finish() PDFBuilder { return p.parent }

// fmtNum formats f with at most three decimals and no exponent.
func fmtNum(f float64) string {
	return strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64)
}

func number(f float64) raw.Object {
	r := math.Round(f*1000) / 1000
	if r == math.Trunc(r) {
		return raw.NumberInt(int64(r))
	}
	return raw.NumberFloat(r)
}
