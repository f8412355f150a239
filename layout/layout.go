// Package layout flows HTML, Markdown and plain text onto fixed-size pages:
// words wrap at the right margin, over-long words break between
// characters and a new page starts at the bottom margin.
package layout

import (
	"strings"

	"github.com/wudi/pdftools/builder"
	"github.com/wudi/pdftools/document"
)

// Engine lays out content through a builder.PDFBuilder.
type Engine struct {
	b builder.PDFBuilder

	FontSize   float64
	LineHeight float64 // multiple of the font size
	Margins    Margins

	currentPage builder.PageBuilder
	cursorX     float64
	cursorY     float64
	pageWidth   float64
	pageHeight  float64
}

// Margins are page margins in points.
type Margins struct {
	Top, Bottom, Left, Right float64
}

type Option func(*Engine)

func WithFontSize(size float64) Option {
	return func(e *Engine) {
		if size > 0 {
			e.FontSize = size
		}
	}
}

func WithLineHeight(height float64) Option {
	return func(e *Engine) {
		if height > 0 {
			e.LineHeight = height
		}
	}
}

func WithMargins(m Margins) Option {
	return func(e *Engine) { e.Margins = m }
}

func WithPageSize(width, height float64) Option {
	return func(e *Engine) {
		e.pageWidth = width
		e.pageHeight = height
	}
}

func WithPaperSize(size builder.PaperSize) Option {
	return WithPageSize(size.Width, size.Height)
}

// NewEngine returns an engine laying out A4 pages with 12pt text and 50pt
// margins unless options say otherwise.
func NewEngine(b builder.PDFBuilder, opts ...Option) *Engine {
	e := &Engine{
		b:          b,
		FontSize:   12,
		LineHeight: 1.2,
		Margins:    Margins{Top: 50, Bottom: 50, Left: 50, Right: 50},
		pageWidth:  builder.A4.Width,
		pageHeight: builder.A4.Height,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ensurePage makes sure there is a current page.
func (e *Engine) ensurePage() {
	if e.currentPage == nil {
		e.newPage()
	}
}

func (e *Engine) newPage() {
	if e.currentPage != nil {
		e.currentPage.Finish()
	}
	e.currentPage = e.b.NewPage(e.pageWidth, e.pageHeight)
	e.cursorX = e.Margins.Left
	e.cursorY = e.pageHeight - e.Margins.Top
}

// checkPageBreak starts a new page unless height still fits above the
// bottom margin.
func (e *Engine) checkPageBreak(height float64) {
	if e.currentPage == nil {
		e.newPage()
		return
	}
	if e.cursorY-height < e.Margins.Bottom {
		e.newPage()
	}
}

// finish closes the last page. Content that drew nothing still yields one
// blank page.
func (e *Engine) finish() {
	e.ensurePage()
	e.currentPage.Finish()
}

// TextSpan is a run of text sharing one style.
type TextSpan struct {
	Text          string
	FontSize      float64
	Link          string
	Color         builder.Color
	Underline     bool
	Strikethrough bool
	// Break ends the current line.
	Break bool
}

func (e *Engine) renderParagraphSpacing() {
	if e.currentPage != nil {
		e.cursorY -= e.FontSize * e.LineHeight
	}
}

func (e *Engine) renderTextWrapped(text string, x, fontSize, lineHeight float64) {
	e.renderSpans([]TextSpan{{Text: text, FontSize: fontSize}}, x, lineHeight)
}

type wordSpan struct {
	text  string
	span  int
	width float64
}

// renderSpans fills lines from x to the right margin. Runs of whitespace
// collapse to one space and no line starts or ends with one.
func (e *Engine) renderSpans(spans []TextSpan, x, lineHeight float64) {
	if len(spans) == 0 {
		return
	}
	maxWidth := e.pageWidth - e.Margins.Right - x

	var line []wordSpan
	lineWidth := 0.0

	flushLine := func() {
		for len(line) > 0 && line[len(line)-1].text == " " {
			lineWidth -= line[len(line)-1].width
			line = line[:len(line)-1]
		}
		if len(line) == 0 {
			return
		}
		e.checkPageBreak(lineHeight)
		curX := x
		for start := 0; start < len(line); {
			end := start
			var run strings.Builder
			width := 0.0
			for end < len(line) && sameStyle(spans[line[end].span], spans[line[start].span]) {
				run.WriteString(line[end].text)
				width += line[end].width
				end++
			}
			e.drawRun(spans[line[start].span], run.String(), curX, width)
			curX += width
			start = end
		}
		e.cursorY -= lineHeight
		line = nil
		lineWidth = 0
	}

	for i, span := range spans {
		if span.Break {
			if len(line) == 0 {
				e.checkPageBreak(lineHeight)
				e.cursorY -= lineHeight
			}
			flushLine()
			continue
		}
		if span.Text == "" {
			continue
		}
		size := span.FontSize
		if size == 0 {
			size = e.FontSize
		}
		spans[i].FontSize = size
		spaceW := e.b.MeasureText(" ", size)

		for _, token := range tokenize(span.Text) {
			if token == " " {
				if len(line) == 0 || line[len(line)-1].text == " " {
					continue
				}
				if lineWidth+spaceW > maxWidth {
					flushLine()
					continue
				}
				line = append(line, wordSpan{text: " ", span: i, width: spaceW})
				lineWidth += spaceW
				continue
			}

			w := e.b.MeasureText(token, size)
			switch {
			case lineWidth+w <= maxWidth:
				line = append(line, wordSpan{text: token, span: i, width: w})
				lineWidth += w
			case w <= maxWidth:
				flushLine()
				line = append(line, wordSpan{text: token, span: i, width: w})
				lineWidth = w
			default:
				// The word alone is wider than a line: break it between
				// characters.
				flushLine()
				var sub strings.Builder
				subWidth := 0.0
				for _, r := range token {
					rw := e.b.MeasureText(string(r), size)
					if subWidth+rw > maxWidth && sub.Len() > 0 {
						line = append(line, wordSpan{text: sub.String(), span: i, width: subWidth})
						flushLine()
						sub.Reset()
						subWidth = 0
					}
					sub.WriteRune(r)
					subWidth += rw
				}
				if sub.Len() > 0 {
					line = append(line, wordSpan{text: sub.String(), span: i, width: subWidth})
					lineWidth = subWidth
				}
			}
		}
	}
	flushLine()
}

// drawRun draws text whose top edge sits at the cursor.
func (e *Engine) drawRun(span TextSpan, text string, x, width float64) {
	baseline := e.cursorY - span.FontSize
	e.currentPage.DrawText(text, x, baseline, builder.TextOptions{
		FontSize: span.FontSize,
		Color:    span.Color,
	})
	if span.Underline {
		e.currentPage.DrawLine(x, baseline-2, x+width, baseline-2, builder.LineOptions{
			StrokeColor: span.Color,
			LineWidth:   0.5,
		})
	}
	if span.Strikethrough {
		mid := baseline + span.FontSize*0.3
		e.currentPage.DrawLine(x, mid, x+width, mid, builder.LineOptions{
			StrokeColor: span.Color,
			LineWidth:   0.5,
		})
	}
	if span.Link != "" {
		e.currentPage.AddLink(document.Rectangle{
			LLX: x,
			LLY: baseline - span.FontSize*0.2,
			URX: x + width,
			URY: e.cursorY,
		}, span.Link)
	}
}

func sameStyle(a, b TextSpan) bool {
	a.Text, b.Text = "", ""
	return a == b
}

// tokenize splits text into words and single-space separators.
func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	for _, r := range text {
		switch r {
		case ' ', '\n', '\t', '\r', '\f':
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
			tokens = append(tokens, " ")
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}
