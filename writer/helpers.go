package writer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
)

// fileID returns the two /ID strings. first, when set, is the permanent
// identifier of the document being rewritten and is kept.
func fileID(body, first []byte, deterministic bool) [2][]byte {
	var id []byte
	if deterministic {
		sum := blake2b.Sum256(body)
		id = sum[:16]
	} else {
		u := uuid.New()
		id = u[:]
	}
	if len(first) == 0 {
		first = id
	}
	return [2][]byte{first, id}
}

func flateEncode(data []byte) ([]byte, error) { return filters.FlateEncode(data) }

// writeObject writes the direct form of o. Null dictionary values are
// omitted, as a PDF reader treats them as absent.
func writeObject(b *bytes.Buffer, o raw.Object) {
	switch v := o.(type) {
	case raw.NameObj:
		b.WriteString("/" + pdfNameLiteral(v.Value()))
	case raw.NumberObj:
		if v.IsInteger() {
			b.WriteString(strconv.FormatInt(v.Int(), 10))
		} else {
			b.WriteString(formatReal(v.Float()))
		}
	case raw.BoolObj:
		b.WriteString(strconv.FormatBool(v.Value()))
	case raw.StringObj:
		if v.IsHex() {
			dst := make([]byte, hex.EncodedLen(len(v.Value())))
			hex.Encode(dst, v.Value())
			b.WriteByte('<')
			b.WriteString(strings.ToUpper(string(dst)))
			b.WriteByte('>')
			return
		}
		b.Write(escapeLiteralString(v.Value()))
	case *raw.ArrayObj:
		if v == nil {
			b.WriteString("null")
			return
		}
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeObject(b, it)
		}
		b.WriteByte(']')
	case *raw.DictObj:
		if v == nil {
			b.WriteString("null")
			return
		}
		b.WriteString("<<")
		first := true
		for _, k := range v.Keys() {
			val := v.KV[k]
			if _, isNull := val.(raw.NullObj); isNull || val == nil {
				continue
			}
			if !first {
				b.WriteByte(' ')
			}
			first = false
			b.WriteString("/" + pdfNameLiteral(k) + " ")
			writeObject(b, val)
		}
		b.WriteString(">>")
	case raw.RefObj:
		fmt.Fprintf(b, "%d %d R", v.Ref().Num, v.Ref().Gen)
	default:
		// Streams are only written as indirect objects.
		b.WriteString("null")
	}
}

// formatReal writes f without an exponent, which PDF does not allow.
func formatReal(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func escapeLiteralString(rawBytes []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, ch := range rawBytes {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '\b':
			b.WriteString("\\b")
		case '\f':
			b.WriteString("\\f")
		default:
			if ch < 0x20 || ch >= 0x7f {
				fmt.Fprintf(&b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}

// pdfNameLiteral escapes the bytes of a name that cannot appear as is.
func pdfNameLiteral(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if ch > 0x20 && ch < 0x7f && !strings.ContainsRune("#()<>[]{}/%", rune(ch)) {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "#%02X", ch)
	}
	return b.String()
}

// byteWidth is the number of bytes needed to store v big-endian.
func byteWidth(v int64) int {
	n := 1
	for v > 0xff {
		v >>= 8
		n++
	}
	return n
}

func appendXRefStreamEntry(buf []byte, widths [3]int, typ, field2, field3 int64) []byte {
	for i, v := range [3]int64{typ, field2, field3} {
		for shift := (widths[i] - 1) * 8; shift >= 0; shift -= 8 {
			buf = append(buf, byte(v>>uint(shift)))
		}
	}
	return buf
}
