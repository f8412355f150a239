package fonts

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"
	"unicode/utf16"
)

// bfcharChunk is the most entries one beginbfchar section may hold.
const bfcharChunk = 100

type bfchar struct {
	GID  int
	Text []rune
}

// ToUnicodeCMap writes a CMap mapping two-byte glyph ids to the text they
// represent, for use as a Type0 font's /ToUnicode stream.
func ToUnicodeCMap(glyphText map[int][]rune) ([]byte, error) {
	entries := make([]bfchar, 0, len(glyphText))
	for gid, text := range glyphText {
		if len(text) > 0 {
			entries = append(entries, bfchar{GID: gid, Text: text})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].GID < entries[j].GID })

	var chunks [][]bfchar
	for len(entries) > bfcharChunk {
		chunks = append(chunks, entries[:bfcharChunk])
		entries = entries[bfcharChunk:]
	}
	if len(entries) > 0 {
		chunks = append(chunks, entries)
	}

	var buf bytes.Buffer
	if err := toUnicodeTmpl.Execute(&buf, chunks); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatUTF16(text []rune) string {
	var b []byte
	for _, u := range utf16.Encode(text) {
		b = append(b, byte(u>>8), byte(u))
	}
	return fmt.Sprintf("<%X>", b)
}

var toUnicodeTmpl = template.Must(template.New("ToUnicode").Funcs(template.FuncMap{
	"utf16": formatUTF16,
}).Parse(`/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
{{range .}}{{len .}} beginbfchar
{{range .}}<{{printf "%04X" .GID}}> {{utf16 .Text}}
{{end}}endbfchar
{{end}}endcmap
CMapName currentdict /CMap defineresource pop
end
end
`))
