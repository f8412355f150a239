package layout

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wudi/pdftools/builder"
	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/pdferr"
)

// Format is a source format Convert understands.
type Format int

const (
	FormatText Format = iota
	FormatHTML
	FormatMarkdown
)

func (f Format) String() string {
	switch f {
	case FormatHTML:
		return "html"
	case FormatMarkdown:
		return "markdown"
	default:
		return "text"
	}
}

// ParseFormat accepts a format name or a file name whose extension names
// one.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if ext := filepath.Ext(name); ext != "" {
		name = ext[1:]
	}
	switch name {
	case "txt", "text":
		return FormatText, nil
	case "html", "htm":
		return FormatHTML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return 0, pdferr.Wrap(pdferr.KindInvalidArgument, "convert", fmt.Errorf("unknown source format %q", s))
}

// Convert lays source out on new pages set in Go Regular.
func Convert(source string, format Format, meta document.Metadata, opts ...Option) (*document.Document, error) {
	b, err := builder.NewDefault()
	if err != nil {
		return nil, err
	}
	e := NewEngine(b, opts...)
	switch format {
	case FormatHTML:
		err = e.RenderHTML(source)
	case FormatMarkdown:
		err = e.RenderMarkdown(source)
	default:
		err = e.RenderText(source)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}
	if !meta.IsZero() {
		b.SetInfo(meta)
	}
	return b.Build()
}
