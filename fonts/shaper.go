package fonts

import (
	"unicode"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
)

// ShapedGlyph is one glyph of shaped text. Advances and offsets are in
// glyph space.
type ShapedGlyph struct {
	ID       int
	XAdvance float64
	XOffset  float64
	YOffset  float64
	// Runes are the characters this glyph stands for. Glyphs that share a
	// cluster with an earlier glyph carry none.
	Runes []rune
}

// Shape runs HarfBuzz shaping over text. Right-to-left scripts come back in
// visual order.
func (f *Font) Shape(text string) []ShapedGlyph {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	script := detectScript(runes)

	f.mu.Lock()
	in := f.input
	in.Text = runes
	in.RunStart = 0
	in.RunEnd = len(runes)
	in.Script = script
	in.Direction = scriptDirection(script)
	out := f.shaper.Shape(in)
	f.mu.Unlock()

	// A cluster ends where the next larger cluster begins.
	ends := make(map[int]int, len(out.Glyphs))
	for _, g := range out.Glyphs {
		ends[g.ClusterIndex] = len(runes)
	}
	for start := range ends {
		for other := range ends {
			if other > start && other < ends[start] {
				ends[start] = other
			}
		}
	}

	seen := make(map[int]bool, len(out.Glyphs))
	glyphs := make([]ShapedGlyph, 0, len(out.Glyphs))
	for _, g := range out.Glyphs {
		sg := ShapedGlyph{
			ID:       int(g.GlyphID),
			XAdvance: float64(g.XAdvance) / 64.0,
			XOffset:  float64(g.XOffset) / 64.0,
			YOffset:  float64(g.YOffset) / 64.0,
		}
		if c := g.ClusterIndex; !seen[c] && c >= 0 && c < len(runes) {
			seen[c] = true
			sg.Runes = runes[c:ends[c]]
		}
		glyphs = append(glyphs, sg)
	}
	return glyphs
}

// Measure returns the width of text set at size points.
func (f *Font) Measure(text string, size float64) float64 {
	var w float64
	for _, g := range f.Shape(text) {
		w += g.XAdvance
	}
	return w * size / 1000
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

// detectScript picks the script most runes belong to, Latin by default.
func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	best, bestCount := language.Latin, 0
	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > bestCount {
			best, bestCount = script, counts[script]
		}
	}
	return best
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	}
	return language.Unknown
}
