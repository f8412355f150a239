package parser

import (
	"bytes"
	"context"
	"testing"

	"github.com/wudi/pdftools/internal/testpdf"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/xref"
)

func buildLoader(t *testing.T, data []byte) ObjectLoader {
	t.Helper()
	reader := bytes.NewReader(data)
	resolver := xref.NewResolver(xref.ResolverConfig{})
	table, err := resolver.Resolve(context.Background(), reader)
	if err != nil {
		t.Fatalf("resolve xref: %v", err)
	}
	loader, err := (&ObjectLoaderBuilder{}).WithReader(reader).WithXRef(table).Build()
	if err != nil {
		t.Fatalf("build loader: %v", err)
	}
	return loader
}

func TestObjectLoaderLoadsByOffset(t *testing.T) {
	loader := buildLoader(t, testpdf.Pages(1).Bytes())

	obj, err := loader.Load(context.Background(), raw.ObjectRef{Num: 4})
	if err != nil {
		t.Fatalf("load font: %v", err)
	}
	font, ok := raw.DictOf(obj)
	if !ok {
		t.Fatalf("expected dictionary, got %T", obj)
	}
	if name, _ := raw.NameOf(font.KV["BaseFont"]); name != "Helvetica" {
		t.Fatalf("BaseFont = %q", name)
	}

	st, err := loader.Load(context.Background(), raw.ObjectRef{Num: 11})
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	if s, ok := st.(*raw.StreamObj); !ok || !bytes.Contains(s.Data, []byte("(Page 1)")) {
		t.Fatalf("unexpected content object %#v", st)
	}
}

func TestObjectLoaderRejectsWrongGeneration(t *testing.T) {
	loader := buildLoader(t, testpdf.Pages(1).Bytes())
	if _, err := loader.Load(context.Background(), raw.ObjectRef{Num: 4, Gen: 3}); err == nil {
		t.Fatalf("expected generation mismatch to fail")
	}
	if _, err := loader.Load(context.Background(), raw.ObjectRef{Num: 99}); err == nil {
		t.Fatalf("expected unknown object to fail")
	}
}
