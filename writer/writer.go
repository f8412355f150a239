// Package writer serializes a document.Document to PDF bytes, either with a
// classic cross-reference table or in the compact layout that packs objects
// into object streams indexed by a cross-reference stream.
package writer

import (
	"bytes"
	"context"
	"io"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/observability"
)

type Config struct {
	// Version is the header version. Empty uses the document's version.
	// The compact layout needs at least 1.5 and raises it when lower.
	Version string
	// ObjectStreams packs non-stream objects into /ObjStm streams and
	// writes a Flate-compressed cross-reference stream.
	ObjectStreams bool
	// CompressStreams Flate-encodes streams that carry no filter.
	CompressStreams bool
	// Deterministic derives the trailer /ID from the written bytes instead
	// of a random UUID.
	Deterministic bool
	// Producer is written to /Info when the document names none.
	Producer string
	Logger   observability.Logger
}

// ConfigFor derives a Config from the document's save preferences.
func ConfigFor(doc *document.Document) Config {
	return Config{
		Version:         doc.Version,
		ObjectStreams:   doc.SaveOptions.ObjectStreams,
		CompressStreams: doc.SaveOptions.CompressStreams,
	}
}

type Writer interface {
	Write(ctx context.Context, doc *document.Document, w io.Writer, cfg Config) error
}

// Interceptor observes every indirect object as it is written.
type Interceptor interface {
	BeforeWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object) error
	AfterWrite(ctx context.Context, ref raw.ObjectRef, bytesWritten int64) error
}

type WriterBuilder struct{ interceptors []Interceptor }

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}
func (b *WriterBuilder) Build() Writer { return &impl{interceptors: b.interceptors} }

// Write serializes doc to w. The document is not modified.
func Write(ctx context.Context, doc *document.Document, w io.Writer, cfg Config) error {
	return (&impl{}).Write(ctx, doc, w, cfg)
}

// Bytes serializes doc and returns the file contents.
func Bytes(ctx context.Context, doc *document.Document, cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(ctx, doc, &buf, cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
