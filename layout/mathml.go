package layout

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/wudi/pdftools/builder"
)

// mathBox is a laid out MathML node. x and y place it relative to its
// parent's baseline origin.
type mathBox struct {
	width    float64
	ascent   float64
	descent  float64
	children []*mathBox
	node     *html.Node
	x, y     float64
	text     string
	fontSize float64
}

func (b *mathBox) height() float64 { return b.ascent + b.descent }

var mathRule = builder.LineOptions{LineWidth: 0.5}

// renderMath draws a display formula on its own lines at the left margin.
func (e *Engine) renderMath(n *html.Node) {
	box := e.measureMath(n, e.FontSize)
	if box == nil {
		return
	}
	e.checkPageBreak(box.height())
	e.drawMathBox(box, e.Margins.Left, e.cursorY-box.ascent)
	e.cursorY -= box.height()
	e.renderParagraphSpacing()
}

func (e *Engine) measureMath(n *html.Node, fontSize float64) *mathBox {
	box := &mathBox{node: n, fontSize: fontSize}

	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text == "" {
			return nil
		}
		box.text = text
		box.width = e.b.MeasureText(text, fontSize)
		box.ascent = fontSize * 0.8
		box.descent = fontSize * 0.2
		return box
	}
	if n.Type != html.ElementNode || isMathAnnotation(n) {
		return nil
	}

	var children []*mathBox
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		fs := fontSize
		// Scripts shrink; the base keeps the size.
		if (n.Data == "msup" || n.Data == "msub") && len(children) > 0 {
			fs = fontSize * 0.7
		}
		if child := e.measureMath(c, fs); child != nil {
			children = append(children, child)
		}
	}
	box.children = children

	switch n.Data {
	case "mfrac":
		if len(children) < 2 {
			layoutRow(box, 0)
			break
		}
		num, den := children[0], children[1]
		w := num.width
		if den.width > w {
			w = den.width
		}
		box.width = w + 4
		num.x = (box.width - num.width) / 2
		den.x = (box.width - den.width) / 2
		// The rule sits a little above the baseline.
		const gap = 2.5
		num.y = gap + 2 + num.descent
		den.y = gap - 2 - den.ascent
		box.ascent = num.y + num.ascent
		box.descent = -den.y + den.descent
	case "msup":
		if len(children) < 2 {
			layoutRow(box, 0)
			break
		}
		base, sup := children[0], children[1]
		sup.x = base.width
		sup.y = base.ascent * 0.5
		box.width = base.width + sup.width
		box.ascent = maxf(base.ascent, sup.y+sup.ascent)
		box.descent = base.descent
	case "msub":
		if len(children) < 2 {
			layoutRow(box, 0)
			break
		}
		base, sub := children[0], children[1]
		sub.x = base.width
		sub.y = -base.descent - sub.ascent*0.3
		box.width = base.width + sub.width
		box.ascent = base.ascent
		box.descent = maxf(base.descent, -sub.y+sub.descent)
	case "msqrt":
		// Room for the radical sign on the left and the bar on top.
		layoutRow(box, 5)
		box.width += 5
		box.ascent += 2
	default:
		layoutRow(box, 0)
	}
	return box
}

// layoutRow sets children side by side on a shared baseline, starting at
// offset.
func layoutRow(box *mathBox, offset float64) {
	w := offset
	for _, c := range box.children {
		c.x = w
		c.y = 0
		w += c.width
		box.ascent = maxf(box.ascent, c.ascent)
		box.descent = maxf(box.descent, c.descent)
	}
	box.width = w - offset
}

// drawMathBox draws box with its baseline origin at (x, y).
func (e *Engine) drawMathBox(box *mathBox, x, y float64) {
	if box.text != "" {
		e.currentPage.DrawText(box.text, x, y, builder.TextOptions{FontSize: box.fontSize})
	}
	if box.node != nil && box.node.Type == html.ElementNode {
		switch box.node.Data {
		case "mfrac":
			e.currentPage.DrawLine(x, y+2.5, x+box.width, y+2.5, mathRule)
		case "msqrt":
			top := y + box.ascent - 1
			e.currentPage.DrawLine(x, y+box.ascent/3, x+2, y-box.descent, mathRule)
			e.currentPage.DrawLine(x+2, y-box.descent, x+5, top, mathRule)
			e.currentPage.DrawLine(x+5, top, x+box.width, top, mathRule)
		}
	}
	for _, c := range box.children {
		e.drawMathBox(c, x+c.x, y+c.y)
	}
}

// mathText flattens inline MathML to text: x<sup>2</sup> reads "x^2".
func mathText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			return
		}
		if n.Type == html.ElementNode && isMathAnnotation(n) {
			return
		}
		i := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && i == 1 {
				switch n.Data {
				case "msup":
					sb.WriteByte('^')
				case "msub":
					sb.WriteByte('_')
				case "mfrac":
					sb.WriteByte('/')
				}
			}
			if c.Type == html.ElementNode {
				i++
			}
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// isMathAnnotation reports the alternate encodings MathML carries next to
// the rendered tree, such as the TeX source.
func isMathAnnotation(n *html.Node) bool {
	return n.Data == "annotation" || n.Data == "annotation-xml"
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
