package parser

import (
	"context"
	"testing"

	"github.com/wudi/pdftools/internal/testpdf"
	"github.com/wudi/pdftools/recovery"
)

func FuzzParse(f *testing.F) {
	f.Add(testpdf.Pages(1).Bytes())
	f.Add(testpdf.Pages(2).XRefStream())
	f.Add([]byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n..."))

	f.Fuzz(func(t *testing.T, data []byte) {
		cfg := Config{
			Recovery: recovery.NewLenientStrategy(),
			Repair:   true,
		}
		_, _ = Parse(context.Background(), data, cfg)
	})
}
