package layout

import "strings"

// RenderText lays out plain text. Each line wraps on its own and a blank
// line separates paragraphs.
func (e *Engine) RenderText(source string) error {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	lineHeight := e.FontSize * e.LineHeight
	blank := false
	for _, line := range strings.Split(source, "\n") {
		if strings.TrimSpace(line) == "" {
			if !blank && e.currentPage != nil {
				e.renderParagraphSpacing()
			}
			blank = true
			continue
		}
		blank = false
		e.ensurePage()
		e.renderTextWrapped(line, e.Margins.Left, e.FontSize, lineHeight)
	}
	e.finish()
	return nil
}
