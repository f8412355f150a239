package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/internal/testpdf"
	"github.com/wudi/pdftools/mutate"
	"github.com/wudi/pdftools/observability"
	"github.com/wudi/pdftools/parser"
	"github.com/wudi/pdftools/pdferr"
	"github.com/wudi/pdftools/writer"
)

type recordingTracer struct {
	mu     sync.Mutex
	names  []string
	failed []string
}

func (r *recordingTracer) StartSpan(ctx context.Context, name string) (context.Context, observability.Span) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
	return ctx, &recordingSpan{tracer: r, name: name}
}

type recordingSpan struct {
	tracer *recordingTracer
	name   string
}

func (s *recordingSpan) SetTag(string, interface{}) {}
func (s *recordingSpan) SetError(err error) {
	if err == nil {
		return
	}
	s.tracer.mu.Lock()
	s.tracer.failed = append(s.tracer.failed, s.name)
	s.tracer.mu.Unlock()
}
func (s *recordingSpan) Finish() {}

func pageLabels(t *testing.T, data []byte) []string {
	t.Helper()
	doc, err := document.Open(context.Background(), data, parser.Config{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	var out []string
	for i := 0; i < doc.PageCount(); i++ {
		c, err := doc.PageContent(context.Background(), i)
		if err != nil {
			t.Fatalf("content %d: %v", i, err)
		}
		out = append(out, string(c[bytes.IndexByte(c, '(')+1:bytes.IndexByte(c, ')')]))
	}
	return out
}

func TestRunAppliesStepsInOrder(t *testing.T) {
	tracer := &recordingTracer{}
	var logs bytes.Buffer
	l := logrus.New()
	l.SetOutput(&logs)
	l.SetLevel(logrus.DebugLevel)

	p := New(WithTracer(tracer), WithLogger(observability.NewLogrus(l)))
	title := "Excerpt"
	out, err := p.Run(context.Background(), testpdf.Pages(5).Bytes(),
		Extract("3,1-2"),
		Delete("2"),
		SetMetadata(document.MetadataUpdate{Title: &title}),
		Rotate("", 90),
		Compress(mutate.QualityHigh),
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]string{"Page 3", "Page 2"}, pageLabels(t, out)); diff != "" {
		t.Fatalf("pages (-want +got):\n%s", diff)
	}
	if !bytes.Contains(out, []byte("/XRef")) {
		t.Fatalf("high quality output should use a cross-reference stream")
	}
	doc, err := document.Open(context.Background(), out, parser.Config{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if doc.Metadata().Title != "Excerpt" || doc.Pages()[0].Rotation() != 90 {
		t.Fatalf("metadata or rotation lost: %+v", doc.Metadata())
	}

	want := []string{
		"pipeline.run", "pipeline.parse",
		"pipeline.step 1", "pipeline.step 2", "pipeline.step 3", "pipeline.step 4", "pipeline.step 5",
		"pipeline.optimize", "pipeline.write",
	}
	if diff := cmp.Diff(want, tracer.names); diff != "" {
		t.Fatalf("spans (-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), "stage=write") {
		t.Fatalf("stage timings not logged: %s", logs.String())
	}
}

func TestRunStepFailure(t *testing.T) {
	tracer := &recordingTracer{}
	p := New(WithTracer(tracer))
	_, err := p.Run(context.Background(), testpdf.Pages(5).Bytes(), Extract("1-1000"))
	if !errors.Is(err, pdferr.ErrInvalidPageSelector) {
		t.Fatalf("expected selector error, got %v", err)
	}
	if diff := cmp.Diff([]string{"pipeline.step 1", "pipeline.run"}, tracer.failed); diff != "" {
		t.Fatalf("failed spans (-want +got):\n%s", diff)
	}
}

func TestRunParseFailure(t *testing.T) {
	_, err := New().Run(context.Background(), []byte("garbage"))
	if !errors.Is(err, pdferr.ErrMalformedDocument) {
		t.Fatalf("expected malformed document, got %v", err)
	}
}

func TestRunWithWriterConfig(t *testing.T) {
	p := New(WithWriterConfig(writer.Config{Deterministic: true, Producer: "pipeline-test"}))
	input := testpdf.Pages(2).Bytes()
	a, err := p.Run(context.Background(), input, Sanitize())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := p.Run(context.Background(), input, Sanitize())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("deterministic runs differ")
	}
	if !bytes.Contains(a, []byte("(pipeline-test)")) || bytes.Contains(a, []byte("Fixture")) {
		t.Fatalf("unexpected Info in sanitized output")
	}
}

func TestAppend(t *testing.T) {
	other, err := document.Open(context.Background(), testpdf.Pages(1).Bytes(), parser.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	out, err := New().Run(context.Background(), testpdf.Pages(2).Bytes(), Append(other))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]string{"Page 1", "Page 2", "Page 1"}, pageLabels(t, out)); diff != "" {
		t.Fatalf("pages (-want +got):\n%s", diff)
	}
}

func TestRunWithProducer(t *testing.T) {
	p := New(WithProducer("pdftool-test"))
	out, err := p.Run(context.Background(), testpdf.Pages(1).Bytes(), Sanitize())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	doc, err := document.Open(context.Background(), out, parser.Config{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := doc.Metadata().Producer; got != "pdftool-test" {
		t.Fatalf("producer %q", got)
	}

	// A producer already named by the document wins.
	producer := "Original"
	out, err = p.Run(context.Background(), testpdf.Pages(1).Bytes(), SetMetadata(document.MetadataUpdate{Producer: &producer}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if doc, err = document.Open(context.Background(), out, parser.Config{}); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := doc.Metadata().Producer; got != "Original" {
		t.Fatalf("producer %q", got)
	}
}
