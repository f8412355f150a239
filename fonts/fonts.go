// Package fonts loads TrueType fonts for embedding as Type0 Identity-H
// fonts and shapes text against them.
package fonts

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"sync"

	gotext "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Font is a parsed TrueType font. Metrics are in glyph space, 1/1000 em.
// A Font is safe for concurrent use.
type Font struct {
	// Name is the PostScript name written as /BaseFont.
	Name string
	// Data is the font file embedded as /FontFile2.
	Data []byte

	Ascent      float64
	Descent     float64
	CapHeight   float64
	ItalicAngle float64
	BBox        [4]float64

	widths []int

	mu     sync.Mutex
	shaper shaping.HarfbuzzShaper
	input  shaping.Input
}

// LoadTrueType parses a TrueType font and reads the metrics a PDF font
// descriptor needs.
func LoadTrueType(name string, data []byte) (*Font, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("truetype font data is empty")
	}
	sf, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	unitsPerEm := sf.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(unitsPerEm << 6)

	baseName := strings.TrimSpace(name)
	if ps, _ := sf.Name(buf, sfnt.NameIDPostScript); len(ps) > 0 {
		baseName = ps
	}
	if baseName == "" {
		baseName = "CustomTT"
	}

	face, err := gotext.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load shaping face: %w", err)
	}

	metrics, _ := sf.Metrics(buf, ppem, xfont.HintingNone)
	bounds, _ := sf.Bounds(buf, ppem, xfont.HintingNone)
	f := &Font{
		Name:        baseName,
		Data:        data,
		Ascent:      scaleFixed(metrics.Ascent, unitsPerEm),
		Descent:     -scaleFixed(metrics.Descent, unitsPerEm),
		CapHeight:   scaleFixed(metrics.CapHeight, unitsPerEm),
		ItalicAngle: italicAngle(sf),
		// sfnt bounds grow downwards; PDF boxes grow upwards.
		BBox: [4]float64{
			scaleFixed(bounds.Min.X, unitsPerEm),
			-scaleFixed(bounds.Max.Y, unitsPerEm),
			scaleFixed(bounds.Max.X, unitsPerEm),
			-scaleFixed(bounds.Min.Y, unitsPerEm),
		},
		widths: glyphWidths(sf, buf, unitsPerEm, ppem),
		input: shaping.Input{
			Face:     face,
			Size:     fixed.Int26_6(1000 * 64),
			Language: language.DefaultLanguage(),
		},
	}
	if f.CapHeight == 0 {
		f.CapHeight = f.Ascent
	}
	return f, nil
}

var (
	goRegularOnce sync.Once
	goRegular     *Font
	goRegularErr  error
)

// GoRegular returns the Go Regular font shipped with golang.org/x/image.
func GoRegular() (*Font, error) {
	goRegularOnce.Do(func() {
		goRegular, goRegularErr = LoadTrueType("GoRegular", goregular.TTF)
	})
	return goRegular, goRegularErr
}

// NumGlyphs reports how many glyphs the font holds.
func (f *Font) NumGlyphs() int { return len(f.widths) }

// GlyphWidth is the advance of gid in glyph space. Unknown glyphs report
// the width of .notdef.
func (f *Font) GlyphWidth(gid int) int {
	if gid < 0 || gid >= len(f.widths) {
		if len(f.widths) == 0 {
			return 0
		}
		return f.widths[0]
	}
	return f.widths[gid]
}

func glyphWidths(sf *sfnt.Font, buf *sfnt.Buffer, unitsPerEm sfnt.Units, ppem fixed.Int26_6) []int {
	n := sf.NumGlyphs()
	widths := make([]int, n)
	for i := 0; i < n; i++ {
		adv, err := sf.GlyphAdvance(buf, sfnt.GlyphIndex(i), ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		widths[i] = int(math.Round(scaleFixed(adv, unitsPerEm)))
	}
	return widths
}

func italicAngle(sf *sfnt.Font) float64 {
	post := sf.PostTable()
	if post == nil {
		return 0
	}
	return post.ItalicAngle
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}
