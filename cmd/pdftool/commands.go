package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wudi/pdftools/builder"
	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/layout"
	"github.com/wudi/pdftools/mutate"
	"github.com/wudi/pdftools/observability"
	"github.com/wudi/pdftools/parser"
	"github.com/wudi/pdftools/pipeline"
	"github.com/wudi/pdftools/writer"
)

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{err.Error()}
	}
	return nil
}

func oneInput(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", usageError{fmt.Sprintf("expected one input file, got %d", fs.NArg())}
	}
	return fs.Arg(0), nil
}

func outputFlag(fs *flag.FlagSet) *string {
	return fs.String("o", "", "Output path, or - for standard output")
}

func requireOutput(out string) error {
	if out == "" {
		return usageError{"missing -o output path"}
	}
	return nil
}

func (a *app) pipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.WithLogger(a.logger), pipeline.WithProducer(a.producer))
}

// transform runs steps over the file at in and writes the result to out.
func (a *app) transform(in, out string, steps ...pipeline.Step) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	res, err := a.pipeline().Run(a.ctx, data, steps...)
	if err != nil {
		return err
	}
	return a.writeOutput(out, res)
}

func (a *app) writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := a.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	a.logger.Info("wrote output", observability.String("path", path), observability.Int("bytes", len(data)))
	return nil
}

func (a *app) open(path string) (*document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	doc, err := document.Open(a.ctx, data, parser.Config{Logger: a.logger})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

type pageReport struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation,omitempty"`
}

type infoReport struct {
	File         string       `json:"file"`
	Version      string       `json:"version"`
	Pages        int          `json:"pages"`
	Encrypted    bool         `json:"encrypted"`
	Repaired     bool         `json:"repaired,omitempty"`
	Title        string       `json:"title,omitempty"`
	Author       string       `json:"author,omitempty"`
	Subject      string       `json:"subject,omitempty"`
	Keywords     []string     `json:"keywords,omitempty"`
	Creator      string       `json:"creator,omitempty"`
	Producer     string       `json:"producer,omitempty"`
	CreationDate string       `json:"creationDate,omitempty"`
	ModDate      string       `json:"modDate,omitempty"`
	PageSizes    []pageReport `json:"pageSizes"`
}

func newInfoReport(path string, doc *document.Document) infoReport {
	meta := doc.Metadata()
	rep := infoReport{
		File:         filepath.Base(path),
		Version:      doc.Version,
		Pages:        doc.PageCount(),
		Encrypted:    doc.Encrypted(),
		Repaired:     doc.Repaired(),
		Title:        meta.Title,
		Author:       meta.Author,
		Subject:      meta.Subject,
		Keywords:     meta.Keywords,
		Creator:      meta.Creator,
		Producer:     meta.Producer,
		CreationDate: formatTime(meta.CreationDate),
		ModDate:      formatTime(meta.ModDate),
		PageSizes:    make([]pageReport, 0, doc.PageCount()),
	}
	for _, p := range doc.Pages() {
		box := p.MediaBox()
		rep.PageSizes = append(rep.PageSizes, pageReport{Width: box.Width(), Height: box.Height(), Rotation: p.Rotation()})
	}
	return rep
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func (r infoReport) print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", k, v)
		}
	}
	row("File", r.File)
	row("Version", r.Version)
	row("Pages", fmt.Sprint(r.Pages))
	row("Encrypted", fmt.Sprint(r.Encrypted))
	if r.Repaired {
		row("Repaired", "true")
	}
	row("Title", r.Title)
	row("Author", r.Author)
	row("Subject", r.Subject)
	row("Keywords", strings.Join(r.Keywords, ", "))
	row("Creator", r.Creator)
	row("Producer", r.Producer)
	row("Created", r.CreationDate)
	row("Modified", r.ModDate)
	for i, p := range r.PageSizes {
		size := fmt.Sprintf("%g x %g pt", p.Width, p.Height)
		if p.Rotation != 0 {
			size += fmt.Sprintf(", rotated %d", p.Rotation)
		}
		row(fmt.Sprintf("Page %d", i+1), size)
	}
	return tw.Flush()
}

func runInfo(a *app, args []string) error {
	fs := a.flags("info")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	in, err := oneInput(fs)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	doc, err := document.Open(a.ctx, data, parser.Config{TolerateEncryption: true, Logger: a.logger})
	if err != nil {
		return err
	}
	rep := newInfoReport(in, doc)
	if *asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return rep.print(a.stdout)
}

func runMeta(a *app, args []string) error {
	fs := a.flags("meta")
	out := outputFlag(fs)
	fs.String("title", "", "Document title")
	fs.String("author", "", "Document author")
	fs.String("subject", "", "Document subject")
	fs.String("keywords", "", "Comma-separated keywords")
	fs.String("creator", "", "Creating application")
	fs.String("producer", "", "Producing application")
	fs.String("mod-date", "", `Modification date: "now", RFC 3339 or PDF date syntax`)
	if err := parse(fs, args); err != nil {
		return err
	}
	in, err := oneInput(fs)
	if err != nil {
		return err
	}
	if err := requireOutput(*out); err != nil {
		return err
	}

	var u document.MetadataUpdate
	var set int
	var visitErr error
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "title":
			u.Title = &v
		case "author":
			u.Author = &v
		case "subject":
			u.Subject = &v
		case "creator":
			u.Creator = &v
		case "producer":
			u.Producer = &v
		case "keywords":
			kw := splitList(v)
			u.Keywords = &kw
		case "mod-date":
			t, err := parseDate(v)
			if err != nil {
				visitErr = err
				return
			}
			u.ModDate = &t
		default:
			return
		}
		set++
	})
	if visitErr != nil {
		return visitErr
	}
	if set == 0 {
		return usageError{"no metadata fields given"}
	}
	return a.transform(in, *out, pipeline.SetMetadata(u))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	if s == "now" {
		return time.Now().Truncate(time.Second), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, ok := document.ParseDate(s); ok {
		return t, nil
	}
	return time.Time{}, usageError{fmt.Sprintf("cannot parse date %q", s)}
}

func runSanitize(a *app, args []string) error {
	fs := a.flags("sanitize")
	out := outputFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	in, err := oneInput(fs)
	if err != nil {
		return err
	}
	if err := requireOutput(*out); err != nil {
		return err
	}
	return a.transform(in, *out, pipeline.Sanitize())
}

func runRepair(a *app, args []string) error {
	fs := a.flags("repair")
	out := outputFlag(fs)
	compact := fs.Bool("compact", false, "Write object streams and a cross-reference stream")
	if err := parse(fs, args); err != nil {
		return err
	}
	in, err := oneInput(fs)
	if err != nil {
		return err
	}
	if err := requireOutput(*out); err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	opts := mutate.RepairOptions{Logger: a.logger}
	if *compact {
		opts.Writer = &writer.Config{ObjectStreams: true, CompressStreams: true, Producer: a.producer, Logger: a.logger}
	}
	res, err := mutate.Repair(a.ctx, data, opts)
	if err != nil {
		return err
	}
	return a.writeOutput(*out, res)
}

func runCompress(a *app, args []string) error {
	fs := a.flags("compress")
	out := outputFlag(fs)
	quality := fs.String("quality", "medium", "Compression level: low, medium or high")
	if err := parse(fs, args); err != nil {
		return err
	}
	in, err := oneInput(fs)
	if err != nil {
		return err
	}
	if err := requireOutput(*out); err != nil {
		return err
	}
	q := mutate.ParseQuality(*quality)
	if q.String() != strings.ToLower(strings.TrimSpace(*quality)) {
		return usageError{fmt.Sprintf("unknown quality %q", *quality)}
	}
	return a.transform(in, *out, pipeline.Compress(q))
}

func runExtract(a *app, args []string) error {
	fs := a.flags("extract")
	out := outputFlag(fs)
	pages := fs.String("pages", "", `1-based page selector such as "3,1-2"`)
	if err := parse(fs, args); err != nil {
		return err
	}
	in, err := oneInput(fs)
	if err != nil {
		return err
	}
	if err := requireOutput(*out); err != nil {
		return err
	}
	if *pages == "" {
		return usageError{"missing -pages selector"}
	}
	return a.transform(in, *out, pipeline.Extract(*pages))
}

func runDelete(a *app, args []string) error {
	fs := a.flags("delete")
	out := outputFlag(fs)
	pages := fs.String("pages", "", `1-based page selector such as "2,5-7"`)
	if err := parse(fs, args); err != nil {
		return err
	}
	in, err := oneInput(fs)
	if err != nil {
		return err
	}
	if err := requireOutput(*out); err != nil {
		return err
	}
	if *pages == "" {
		return usageError{"missing -pages selector"}
	}
	return a.transform(in, *out, pipeline.Delete(*pages))
}

func runMerge(a *app, args []string) error {
	fs := a.flags("merge")
	out := outputFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return usageError{"merge needs at least two input files"}
	}
	if err := requireOutput(*out); err != nil {
		return err
	}
	others := make([]*document.Document, 0, fs.NArg()-1)
	for _, path := range fs.Args()[1:] {
		doc, err := a.open(path)
		if err != nil {
			return err
		}
		others = append(others, doc)
	}
	return a.transform(fs.Arg(0), *out, pipeline.Append(others...))
}

func runRotate(a *app, args []string) error {
	fs := a.flags("rotate")
	out := outputFlag(fs)
	pages := fs.String("pages", "", "1-based page selector; empty rotates every page")
	degrees := fs.Int("degrees", 90, "Clockwise rotation, a multiple of 90")
	if err := parse(fs, args); err != nil {
		return err
	}
	in, err := oneInput(fs)
	if err != nil {
		return err
	}
	if err := requireOutput(*out); err != nil {
		return err
	}
	return a.transform(in, *out, pipeline.Rotate(*pages, *degrees))
}

func runConvert(a *app, args []string) error {
	fs := a.flags("convert")
	out := outputFlag(fs)
	format := fs.String("format", "", "Source format: html, md or txt. Defaults to the file extension")
	paper := fs.String("paper", "A4", "Paper size: A4, A5, Letter or Legal")
	fontSize := fs.Float64("font-size", 12, "Body font size in points")
	title := fs.String("title", "", "Document title")
	author := fs.String("author", "", "Document author")
	if err := parse(fs, args); err != nil {
		return err
	}
	in, err := oneInput(fs)
	if err != nil {
		return err
	}
	if err := requireOutput(*out); err != nil {
		return err
	}
	name := *format
	if name == "" {
		name = in
	}
	f, err := layout.ParseFormat(name)
	if err != nil {
		return usageError{err.Error()}
	}
	size, ok := builder.PaperSizeByName(*paper)
	if !ok {
		return usageError{fmt.Sprintf("unknown paper size %q", *paper)}
	}
	if *fontSize <= 0 {
		return usageError{"-font-size must be positive"}
	}

	src, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	start := time.Now()
	meta := document.Metadata{Title: *title, Author: *author, CreationDate: start.Truncate(time.Second)}
	doc, err := layout.Convert(string(src), f, meta, layout.WithPaperSize(size), layout.WithFontSize(*fontSize))
	if err != nil {
		return err
	}
	res, err := writer.Bytes(a.ctx, doc, writer.Config{
		ObjectStreams:   true,
		CompressStreams: true,
		Producer:        a.producer,
		Logger:          a.logger,
	})
	if err != nil {
		return err
	}
	a.logger.Debug("converted",
		observability.String("format", f.String()),
		observability.Int("pages", doc.PageCount()),
		observability.Duration("elapsed", time.Since(start)))
	return a.writeOutput(*out, res)
}
