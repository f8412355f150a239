package document

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// pdfDocHigh maps the PDFDocEncoding code points 0x80-0x9F that differ
// from Latin-1; 0x9F and 0xAD are undefined and fall back to Latin-1.
var pdfDocHigh = [32]rune{
	'•', '†', '‡', '…', '—', '–', 'ƒ', '⁄',
	'‹', '›', '−', '‰', '„', '“', '”', '‘',
	'’', '‚', '™', 'ﬁ', 'ﬂ', 'Ł', 'Œ', 'Š',
	'Ÿ', 'Ž', 'ı', 'ł', 'œ', 'š', 'ž', '\u009f',
}

var utf16BOM = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// DecodeText interprets b as a PDF text string: UTF-16BE with a byte order
// mark, UTF-8 with a byte order mark, or PDFDocEncoding.
func DecodeText(b []byte) string {
	switch {
	case len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF:
		s, err := utf16BOM.NewDecoder().Bytes(b)
		if err == nil {
			return string(s)
		}
	case len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF:
		return string(b[3:])
	}
	var sb strings.Builder
	latin := charmap.ISO8859_1.NewDecoder()
	for _, c := range b {
		if c >= 0x80 && c < 0xA0 {
			sb.WriteRune(pdfDocHigh[c-0x80])
			continue
		}
		if c < 0x80 {
			sb.WriteByte(c)
			continue
		}
		r, _ := latin.Bytes([]byte{c})
		sb.Write(r)
	}
	return sb.String()
}

// EncodeText returns s as a PDF text string. ASCII stays as is, anything
// else is written as UTF-16BE with a byte order mark.
func EncodeText(s string) []byte {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return []byte(s)
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	out, err := utf16BOM.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

var dateLayouts = []string{
	"D:20060102150405-0700",
	"D:20060102150405-07",
	"D:20060102150405Z0000",
	"D:20060102150405Z00",
	"D:20060102150405Z",
	"D:20060102150405",
	"D:200601021504",
	"D:2006010215",
	"D:20060102",
	"D:200601",
	"D:2006",
}

// ParseDate parses a PDF date string such as D:20240102150405+01'00'.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "'", ""))
	if s == "" || s == "D:" {
		return time.Time{}, false
	}
	if !strings.HasPrefix(s, "D:") {
		s = "D:" + s
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate writes t in PDF date syntax with an explicit UTC offset.
func FormatDate(t time.Time) string {
	s := t.Format("D:20060102150405-0700")
	k := len(s) - 2
	return s[:k] + "'" + s[k:] + "'"
}
