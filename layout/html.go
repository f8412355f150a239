package layout

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wudi/pdftools/builder"
)

var linkColor = builder.Color{B: 0.8}

// listIndent is how far each list level moves its items right.
const listIndent = 15.0

// RenderHTML lays out an HTML document.
func (e *Engine) RenderHTML(source string) error {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return err
	}
	e.walkBlock(doc, 0)
	e.finish()
	return nil
}

// headingScale is the font size of a heading relative to body text.
func headingScale(a atom.Atom) float64 {
	switch a {
	case atom.H1:
		return 2
	case atom.H2:
		return 1.5
	default:
		return 1.25
	}
}

// walkBlock renders the children of n. Consecutive inline children form an
// anonymous paragraph.
func (e *Engine) walkBlock(n *html.Node, depth int) {
	var pending []*html.Node
	flush := func() {
		e.renderInline(pending, e.cursorXFor(depth))
		pending = nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isInline(c) {
			pending = append(pending, c)
			continue
		}
		flush()
		e.renderBlock(c, depth)
	}
	flush()
}

func (e *Engine) cursorXFor(depth int) float64 {
	return e.Margins.Left + float64(depth)*listIndent
}

func (e *Engine) renderBlock(n *html.Node, depth int) {
	if n.Type != html.ElementNode {
		if n.Type == html.DocumentNode {
			e.walkBlock(n, depth)
		}
		return
	}
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Template, atom.Title:
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		size := e.FontSize * headingScale(n.DataAtom)
		spans := e.collectSpans(n, TextSpan{FontSize: size})
		if hasText(spans) {
			e.ensurePage()
			e.renderSpans(spans, e.cursorXFor(depth), size*e.LineHeight)
		}
	case atom.P:
		e.renderInline(childNodes(n), e.cursorXFor(depth))
		e.renderParagraphSpacing()
	case atom.Ul, atom.Ol:
		e.renderList(n, depth)
	case atom.Li:
		e.renderListItem(n, depth, "•")
	case atom.Pre:
		e.renderPre(n, depth)
	case atom.Blockquote, atom.Dd:
		e.walkBlock(n, depth+1)
	case atom.Hr:
		e.ensurePage()
		gap := e.FontSize * e.LineHeight / 2
		e.checkPageBreak(gap * 2)
		e.cursorY -= gap
		e.currentPage.DrawLine(e.Margins.Left, e.cursorY, e.pageWidth-e.Margins.Right, e.cursorY, builder.LineOptions{LineWidth: 0.5})
		e.cursorY -= gap
	case atom.Tr:
		e.renderTableRow(n, depth)
	case atom.Math:
		e.ensurePage()
		e.renderMath(n)
	default:
		e.walkBlock(n, depth)
	}
}

func (e *Engine) renderList(n *html.Node, depth int) {
	ordered := n.DataAtom == atom.Ol
	num := 1
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			if !isInline(c) {
				e.renderBlock(c, depth)
			}
			continue
		}
		marker := "•"
		if ordered {
			marker = fmt.Sprintf("%d.", num)
			num++
		}
		e.renderListItem(c, depth, marker)
	}
	if depth == 0 {
		e.renderParagraphSpacing()
	}
}

// renderListItem draws marker in the item's indent and its text one level
// further in. Nested lists go one level deeper still.
func (e *Engine) renderListItem(n *html.Node, depth int, marker string) {
	var inline, blocks []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case isInline(c):
			inline = append(inline, c)
		case c.Type == html.ElementNode && c.DataAtom == atom.P && len(blocks) == 0:
			inline = append(inline, childNodes(c)...)
		default:
			blocks = append(blocks, c)
		}
	}
	size := e.FontSize
	lineHeight := size * e.LineHeight
	e.ensurePage()
	e.checkPageBreak(lineHeight)
	x := e.cursorXFor(depth)
	e.currentPage.DrawText(marker, x, e.cursorY-size, builder.TextOptions{FontSize: size})
	spans := e.inlineSpans(inline, TextSpan{FontSize: size})
	if hasText(spans) {
		e.renderSpans(spans, x+listIndent, lineHeight)
	} else {
		e.cursorY -= lineHeight
	}
	for _, b := range blocks {
		e.renderBlock(b, depth+1)
	}
}

// renderPre keeps line breaks and spacing. Lines still wrap at the margin.
func (e *Engine) renderPre(n *html.Node, depth int) {
	text := strings.TrimSuffix(strings.TrimPrefix(textContent(n), "\n"), "\n")
	size := e.FontSize
	lineHeight := size * e.LineHeight
	x := e.cursorXFor(depth + 1)
	e.ensurePage()
	for _, line := range strings.Split(text, "\n") {
		line = strings.ReplaceAll(strings.TrimRight(line, " \t\r"), "\t", "    ")
		if line == "" {
			e.checkPageBreak(lineHeight)
			e.cursorY -= lineHeight
			continue
		}
		// Leading spaces become a shift so indentation survives.
		trimmed := strings.TrimLeft(line, " ")
		indent := e.b.MeasureText(" ", size) * float64(len(line)-len(trimmed))
		e.renderTextWrapped(trimmed, x+indent, size, lineHeight)
	}
	e.renderParagraphSpacing()
}

func (e *Engine) renderTableRow(n *html.Node, depth int) {
	var spans []TextSpan
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		if len(spans) > 0 {
			spans = append(spans, TextSpan{Text: " | "})
		}
		spans = append(spans, e.collectSpans(c, TextSpan{})...)
	}
	if hasText(spans) {
		e.ensurePage()
		e.renderSpans(spans, e.cursorXFor(depth), e.FontSize*e.LineHeight)
	}
}

// renderInline lays out a run of inline nodes as one paragraph. Display
// math splits the run.
func (e *Engine) renderInline(nodes []*html.Node, x float64) {
	var group []*html.Node
	flush := func() {
		spans := e.inlineSpans(group, TextSpan{})
		group = nil
		if !hasText(spans) {
			return
		}
		e.ensurePage()
		e.renderSpans(spans, x, e.FontSize*e.LineHeight)
	}
	for _, n := range nodes {
		if isDisplayMath(n) {
			flush()
			e.ensurePage()
			e.renderMath(n)
			continue
		}
		group = append(group, n)
	}
	flush()
}

func (e *Engine) inlineSpans(nodes []*html.Node, style TextSpan) []TextSpan {
	var spans []TextSpan
	for _, n := range nodes {
		spans = append(spans, e.collectSpans(n, style)...)
	}
	return spans
}

// collectSpans flattens the inline content of n into styled spans.
func (e *Engine) collectSpans(n *html.Node, style TextSpan) []TextSpan {
	switch n.Type {
	case html.TextNode:
		s := style
		s.Text = n.Data
		return []TextSpan{s}
	case html.ElementNode:
	default:
		return nil
	}
	switch n.DataAtom {
	case atom.Br:
		return []TextSpan{{Break: true}}
	case atom.Script, atom.Style:
		return nil
	case atom.Img:
		if alt := attr(n, "alt"); alt != "" {
			s := style
			s.Text = "[" + alt + "]"
			return []TextSpan{s}
		}
		return nil
	case atom.Math:
		s := style
		s.Text = mathText(n)
		return []TextSpan{s}
	case atom.A:
		if href := attr(n, "href"); href != "" {
			style.Link = href
			style.Color = linkColor
			style.Underline = true
		}
	case atom.S, atom.Del, atom.Strike:
		style.Strikethrough = true
	case atom.U, atom.Ins:
		style.Underline = true
	}
	var spans []TextSpan
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		spans = append(spans, e.collectSpans(c, style)...)
	}
	return spans
}

func isInline(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return true
	case html.ElementNode:
	default:
		return false
	}
	switch n.DataAtom {
	case atom.A, atom.Abbr, atom.B, atom.Big, atom.Br, atom.Cite, atom.Code, atom.Del,
		atom.Em, atom.I, atom.Img, atom.Ins, atom.Kbd, atom.Mark, atom.Q, atom.S, atom.Samp,
		atom.Small, atom.Span, atom.Strike, atom.Strong, atom.Sub, atom.Sup, atom.Time,
		atom.Tt, atom.U, atom.Var, atom.Label:
		return true
	case atom.Math:
		return !isDisplayMath(n)
	}
	return false
}

func isDisplayMath(n *html.Node) bool {
	return n.Type == html.ElementNode && n.DataAtom == atom.Math && attr(n, "display") == "block"
}

func hasText(spans []TextSpan) bool {
	for _, s := range spans {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}

func childNodes(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Br {
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}
