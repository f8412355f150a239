package document

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/pdferr"
	"github.com/wudi/pdftools/security"
)

// PageContent returns the decoded content of page i, with multiple content
// streams joined by a newline.
func (d *Document) PageContent(ctx context.Context, i int) ([]byte, error) {
	p, err := d.Page(i)
	if err != nil {
		return nil, err
	}
	if d.encrypted {
		return nil, pdferr.New(pdferr.KindUnsupportedEncryption, "page content", "content of an encrypted document cannot be read")
	}
	limits := security.DefaultLimits()
	pipe := filters.DefaultPipeline(filters.Limits{
		MaxDecompressedSize: limits.MaxDecompressedSize,
		MaxDecodeTime:       limits.MaxDecodeTime,
	})

	var streams []*raw.StreamObj
	switch c := d.Resolve(dictEntry(p.dict, "Contents")).(type) {
	case *raw.StreamObj:
		streams = append(streams, c)
	case *raw.ArrayObj:
		for _, it := range c.Items {
			if st, ok := d.Resolve(it).(*raw.StreamObj); ok {
				streams = append(streams, st)
			}
		}
	}

	var buf bytes.Buffer
	for n, st := range streams {
		data, err := pipe.DecodeStream(ctx, st)
		if err != nil {
			return nil, pdferr.Wrap(pdferr.KindMalformedDocument, "page content", fmt.Errorf("page %d stream %d: %w", i, n, err))
		}
		if n > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
