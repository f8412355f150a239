// Package testpdf assembles small PDF files with correct offsets for tests.
package testpdf

import (
	"bytes"
	"fmt"
)

type object struct {
	num    int
	dict   string
	stream []byte
	isStm  bool
}

// Builder collects numbered objects and lays them out as a PDF file.
type Builder struct {
	Version string
	// Trailer holds extra trailer entries; /Size and /Root 1 0 R are always
	// written.
	Trailer string
	objects []object
}

func New() *Builder { return &Builder{Version: "1.7"} }

// Add appends "num 0 obj body endobj".
func (b *Builder) Add(num int, body string) *Builder {
	b.objects = append(b.objects, object{num: num, dict: body})
	return b
}

// Stream appends a stream object; /Length is filled in.
func (b *Builder) Stream(num int, dict string, data []byte) *Builder {
	b.objects = append(b.objects, object{num: num, dict: dict, stream: data, isStm: true})
	return b
}

func (b *Builder) body() (*bytes.Buffer, map[int]int) {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", b.Version)
	offsets := make(map[int]int)
	for _, o := range b.objects {
		offsets[o.num] = buf.Len()
		if o.isStm {
			fmt.Fprintf(buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", o.num, o.dict, len(o.stream))
			buf.Write(o.stream)
			buf.WriteString("\nendstream\nendobj\n")
			continue
		}
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", o.num, o.dict)
	}
	return buf, offsets
}

func (b *Builder) size() int {
	max := 0
	for _, o := range b.objects {
		if o.num > max {
			max = o.num
		}
	}
	return max + 1
}

// Bytes lays the file out with a classic cross-reference table.
func (b *Builder) Bytes() []byte { return b.classic(0) }

// BrokenOffsets writes every xref offset shifted by delta bytes.
func (b *Builder) BrokenOffsets(delta int) []byte { return b.classic(delta) }

func (b *Builder) classic(delta int) []byte {
	buf, offsets := b.body()
	size := b.size()
	xrefOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n0000000000 65535 f \n", size)
	for i := 1; i < size; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(buf, "%010d 00000 n \n", off+delta)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root 1 0 R %s >>\nstartxref\n%d\n%%%%EOF\n", size, b.Trailer, xrefOff)
	return buf.Bytes()
}

// XRefStream lays the file out with an uncompressed cross-reference stream.
func (b *Builder) XRefStream() []byte {
	buf, offsets := b.body()
	xrefNum := b.size()
	size := xrefNum + 1
	xrefOff := buf.Len()
	offsets[xrefNum] = xrefOff

	rows := make([]byte, 0, 6*size)
	for i := 0; i < size; i++ {
		off, ok := offsets[i]
		if !ok {
			rows = append(rows, 0, 0, 0, 0, 0, 0)
			continue
		}
		rows = append(rows, 1, byte(off>>24), byte(off>>16), byte(off>>8), byte(off), 0)
	}
	fmt.Fprintf(buf, "%d 0 obj\n<< /Type /XRef /Size %d /Root 1 0 R /W [1 4 1] %s /Length %d >>\nstream\n", xrefNum, size, b.Trailer, len(rows))
	buf.Write(rows)
	fmt.Fprintf(buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefOff)
	return buf.Bytes()
}

// Pages builds a document with n pages. Every page shows its 1-based number
// and shares one font resource; the Info dictionary carries a title.
func Pages(n int) *Builder {
	b := New()
	b.Trailer = "/Info 3 0 R"
	kids := &bytes.Buffer{}
	for i := 0; i < n; i++ {
		fmt.Fprintf(kids, "%d 0 R ", 10+2*i)
	}
	b.Add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.Add(2, fmt.Sprintf("<< /Type /Pages /Kids [ %s] /Count %d /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> >>", kids.String(), n))
	b.Add(3, "<< /Title (Fixture) /Author (Tests) /Keywords (alpha, beta) >>")
	b.Add(4, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	for i := 0; i < n; i++ {
		page := 10 + 2*i
		b.Add(page, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Contents %d 0 R >>", page+1))
		b.Stream(page+1, "", []byte(fmt.Sprintf("BT /F1 12 Tf 72 720 Td (Page %d) Tj ET", i+1)))
	}
	return b
}
