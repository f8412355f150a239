package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/internal/testpdf"
	"github.com/wudi/pdftools/parser"
)

type result struct {
	code           int
	stdout, stderr string
}

func runTool(t *testing.T, env map[string]string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, func(k string) string { return env[k] }, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func openOutput(t *testing.T, path string) *document.Document {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	doc, err := document.Open(context.Background(), data, parser.Config{})
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	return doc
}

func pageLabels(t *testing.T, doc *document.Document) []string {
	t.Helper()
	var out []string
	for i := 0; i < doc.PageCount(); i++ {
		data, err := doc.PageContent(context.Background(), i)
		if err != nil {
			t.Fatalf("content %d: %v", i, err)
		}
		start, end := bytes.IndexByte(data, '('), bytes.IndexByte(data, ')')
		if start < 0 || end < start {
			t.Fatalf("page %d has no label", i)
		}
		out = append(out, string(data[start+1:end]))
	}
	return out
}

func TestInfo(t *testing.T) {
	in := writeFixture(t, "in.pdf", testpdf.Pages(3).Bytes())

	res := runTool(t, nil, "info", "-json", in)
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	var rep infoReport
	if err := json.Unmarshal([]byte(res.stdout), &rep); err != nil {
		t.Fatalf("decode report: %v\n%s", err, res.stdout)
	}
	if rep.Pages != 3 || rep.Title != "Fixture" || rep.Encrypted || len(rep.PageSizes) != 3 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if diff := cmp.Diff([]string{"alpha", "beta"}, rep.Keywords); diff != "" {
		t.Fatalf("keywords (-want +got):\n%s", diff)
	}
	if rep.PageSizes[0] != (pageReport{Width: 612, Height: 792}) {
		t.Fatalf("page size %+v", rep.PageSizes[0])
	}

	res = runTool(t, nil, "info", in)
	if res.code != 0 || !strings.Contains(res.stdout, "Fixture") || !strings.Contains(res.stdout, "Page 3:") {
		t.Fatalf("text report:\n%s", res.stdout)
	}
}

func TestExtractAndDelete(t *testing.T) {
	in := writeFixture(t, "in.pdf", testpdf.Pages(4).Bytes())
	dir := t.TempDir()

	extracted := filepath.Join(dir, "extract.pdf")
	if res := runTool(t, nil, "extract", "-o", extracted, "-pages", "3,1", in); res.code != 0 {
		t.Fatalf("extract exit %d: %s", res.code, res.stderr)
	}
	if diff := cmp.Diff([]string{"Page 3", "Page 1"}, pageLabels(t, openOutput(t, extracted))); diff != "" {
		t.Fatalf("extract (-want +got):\n%s", diff)
	}

	deleted := filepath.Join(dir, "delete.pdf")
	if res := runTool(t, nil, "delete", "-o", deleted, "-pages", "2-3", in); res.code != 0 {
		t.Fatalf("delete exit %d: %s", res.code, res.stderr)
	}
	if diff := cmp.Diff([]string{"Page 1", "Page 4"}, pageLabels(t, openOutput(t, deleted))); diff != "" {
		t.Fatalf("delete (-want +got):\n%s", diff)
	}

	res := runTool(t, nil, "extract", "-o", extracted, "-pages", "9", in)
	if res.code != 1 || !strings.Contains(res.stderr, "pdftool extract:") {
		t.Fatalf("bad selector: exit %d, %q", res.code, res.stderr)
	}
}

func TestMetaSetsOnlyGivenFields(t *testing.T) {
	in := writeFixture(t, "in.pdf", testpdf.Pages(1).Bytes())
	out := filepath.Join(t.TempDir(), "out.pdf")
	env := map[string]string{"PDFTOOL_PRODUCER": "env-producer"}

	res := runTool(t, env, "meta", "-o", out, "-title", "Renamed", "-keywords", "x, y,,z", "-mod-date", "D:20240102150405Z", in)
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	meta := openOutput(t, out).Metadata()
	if meta.Title != "Renamed" || meta.Author != "Tests" || meta.Producer != "env-producer" {
		t.Fatalf("metadata %+v", meta)
	}
	if diff := cmp.Diff([]string{"x", "y", "z"}, meta.Keywords); diff != "" {
		t.Fatalf("keywords (-want +got):\n%s", diff)
	}
	if meta.ModDate.Year() != 2024 || meta.ModDate.Hour() != 15 {
		t.Fatalf("mod date %v", meta.ModDate)
	}

	// The -producer flag beats the environment.
	res = runTool(t, env, "-producer", "flag-producer", "meta", "-o", out, "-subject", "S", in)
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	if got := openOutput(t, out).Metadata().Producer; got != "flag-producer" {
		t.Fatalf("producer %q", got)
	}

	if res := runTool(t, nil, "meta", "-o", out, in); res.code != 2 {
		t.Fatalf("meta without fields: exit %d", res.code)
	}
	if res := runTool(t, nil, "meta", "-o", out, "-mod-date", "yesterday", in); res.code != 2 {
		t.Fatalf("bad date: exit %d", res.code)
	}
}

func TestSanitizeToStdout(t *testing.T) {
	in := writeFixture(t, "in.pdf", testpdf.Pages(2).Bytes())
	res := runTool(t, nil, "sanitize", "-o", "-", in)
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	if !strings.HasPrefix(res.stdout, "%PDF-") || strings.Contains(res.stdout, "Fixture") {
		t.Fatalf("unexpected output %.40q", res.stdout)
	}
}

func TestRepair(t *testing.T) {
	in := writeFixture(t, "broken.pdf", testpdf.Pages(2).BrokenOffsets(23))
	out := filepath.Join(t.TempDir(), "fixed.pdf")
	for _, args := range [][]string{
		{"repair", "-o", out, in},
		{"repair", "-compact", "-o", out, in},
	} {
		if res := runTool(t, nil, args...); res.code != 0 {
			t.Fatalf("%v: exit %d: %s", args, res.code, res.stderr)
		}
		if diff := cmp.Diff([]string{"Page 1", "Page 2"}, pageLabels(t, openOutput(t, out))); diff != "" {
			t.Fatalf("%v (-want +got):\n%s", args, diff)
		}
	}
}

func TestCompress(t *testing.T) {
	in := writeFixture(t, "in.pdf", testpdf.Pages(2).Bytes())
	out := filepath.Join(t.TempDir(), "out.pdf")
	if res := runTool(t, nil, "compress", "-o", out, "-quality", "high", in); res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("/ObjStm")) || !bytes.Contains(data, []byte("/FlateDecode")) {
		t.Fatalf("high quality output is not compact")
	}
	if res := runTool(t, nil, "compress", "-o", out, "-quality", "extreme", in); res.code != 2 {
		t.Fatalf("unknown quality: exit %d", res.code)
	}
}

func TestMergeAndRotate(t *testing.T) {
	a := writeFixture(t, "a.pdf", testpdf.Pages(2).Bytes())
	b := writeFixture(t, "b.pdf", testpdf.Pages(1).Bytes())
	dir := t.TempDir()

	merged := filepath.Join(dir, "merged.pdf")
	if res := runTool(t, nil, "merge", "-o", merged, a, b); res.code != 0 {
		t.Fatalf("merge exit %d: %s", res.code, res.stderr)
	}
	if diff := cmp.Diff([]string{"Page 1", "Page 2", "Page 1"}, pageLabels(t, openOutput(t, merged))); diff != "" {
		t.Fatalf("merge (-want +got):\n%s", diff)
	}
	if res := runTool(t, nil, "merge", "-o", merged, a); res.code != 2 {
		t.Fatalf("merge with one input: exit %d", res.code)
	}

	rotated := filepath.Join(dir, "rotated.pdf")
	if res := runTool(t, nil, "rotate", "-o", rotated, "-pages", "2", "-degrees", "270", merged); res.code != 0 {
		t.Fatalf("rotate exit %d: %s", res.code, res.stderr)
	}
	var got []int
	for _, p := range openOutput(t, rotated).Pages() {
		got = append(got, p.Rotation())
	}
	if diff := cmp.Diff([]int{0, 270, 0}, got); diff != "" {
		t.Fatalf("rotation (-want +got):\n%s", diff)
	}
}

func TestConvert(t *testing.T) {
	src := writeFixture(t, "notes.md", []byte("# Notes\n\nSome *text* and a [link](https://example.com).\n"))
	out := filepath.Join(t.TempDir(), "notes.pdf")
	res := runTool(t, nil, "convert", "-o", out, "-paper", "letter", "-title", "Notes", src)
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	doc := openOutput(t, out)
	if doc.PageCount() != 1 {
		t.Fatalf("pages %d", doc.PageCount())
	}
	if w, h := doc.Pages()[0].Size(); w != 612 || h != 792 {
		t.Fatalf("page size %vx%v", w, h)
	}
	meta := doc.Metadata()
	if meta.Title != "Notes" || meta.Producer != defaultProducer || meta.CreationDate.IsZero() {
		t.Fatalf("metadata %+v", meta)
	}

	if res := runTool(t, nil, "convert", "-o", out, "-paper", "B7", src); res.code != 2 {
		t.Fatalf("unknown paper: exit %d", res.code)
	}
	if res := runTool(t, nil, "convert", "-o", out, "-format", "rtf", src); res.code != 2 {
		t.Fatalf("unknown format: exit %d", res.code)
	}
}

func TestLoggingFromEnvironment(t *testing.T) {
	in := writeFixture(t, "in.pdf", testpdf.Pages(1).Bytes())
	out := filepath.Join(t.TempDir(), "out.pdf")

	res := runTool(t, map[string]string{"PDFTOOL_LOG_LEVEL": "debug", "PDFTOOL_LOG_FORMAT": "json"}, "sanitize", "-o", out, in)
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	for _, want := range []string{`"msg":"pipeline stage done"`, `"stage":"write"`, `"command":"sanitize"`} {
		if !strings.Contains(res.stderr, want) {
			t.Fatalf("log output lacks %s:\n%s", want, res.stderr)
		}
	}

	res = runTool(t, nil, "sanitize", "-o", out, in)
	if res.code != 0 || res.stderr != "" {
		t.Fatalf("default level should be quiet, got %q", res.stderr)
	}

	if res := runTool(t, map[string]string{"PDFTOOL_LOG_LEVEL": "chatty"}, "info", in); res.code != 2 {
		t.Fatalf("bad level: exit %d", res.code)
	}
	if res := runTool(t, nil, "-log-format", "xml", "info", in); res.code != 2 {
		t.Fatalf("bad format: exit %d", res.code)
	}
}

func TestUsageErrors(t *testing.T) {
	in := writeFixture(t, "in.pdf", testpdf.Pages(1).Bytes())
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"explode", in}},
		{"missing output", []string{"sanitize", in}},
		{"missing selector", []string{"extract", "-o", "x.pdf", in}},
		{"two inputs", []string{"info", in, in}},
		{"bad flag", []string{"rotate", "-spin", in}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if res := runTool(t, nil, tc.args...); res.code != 2 {
				t.Fatalf("exit %d, want 2: %s", res.code, res.stderr)
			}
		})
	}
	if res := runTool(t, nil, "info", filepath.Join(t.TempDir(), "missing.pdf")); res.code != 1 {
		t.Fatalf("missing file: exit %d", res.code)
	}
}
