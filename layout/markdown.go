package layout

import (
	"bytes"

	treeblood "github.com/wyatt915/goldmark-treeblood"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdown converts Markdown to HTML. TeX between $ or $$ delimiters
// becomes MathML.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.Strikethrough,
		extension.Table,
		extension.Linkify,
		treeblood.MathML(),
	),
)

// RenderMarkdown lays out a Markdown document.
func (e *Engine) RenderMarkdown(source string) error {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return err
	}
	return e.RenderHTML(buf.String())
}

// RenderLaTeX lays out one display formula.
func (e *Engine) RenderLaTeX(latex string) error {
	return e.RenderMarkdown("$$" + latex + "$$")
}
