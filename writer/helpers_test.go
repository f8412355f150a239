package writer

import (
	"bytes"
	"testing"

	"github.com/wudi/pdftools/ir/raw"
)

func TestWriteObject(t *testing.T) {
	tests := []struct {
		name string
		obj  raw.Object
		want string
	}{
		{"integer", raw.NumberInt(-42), "-42"},
		{"real", raw.NumberFloat(0.5), "0.5"},
		{"whole real", raw.NumberFloat(3), "3.0"},
		{"tiny real", raw.NumberFloat(1e-7), "0.0000001"},
		{"name", raw.NameLiteral("A B#"), "/A#20B#23"},
		{"literal string", raw.Str([]byte("a(b)\\\n\x01")), `(a\(b\)\\\n\001)`},
		{"hex string", raw.StringObj{Bytes: []byte{0xab, 0x01}, Hex: true}, "<AB01>"},
		{"array", raw.NewArray(raw.Bool(true), raw.NullObj{}, raw.Ref(3, 0)), "[true null 3 0 R]"},
		{"dict drops nulls", &raw.DictObj{KV: map[string]raw.Object{
			"Type": raw.NameLiteral("Page"),
			"Gone": raw.NullObj{},
			"A":    raw.NumberInt(1),
		}}, "<</A 1 /Type /Page>>"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeObject(&buf, tc.obj)
			if buf.String() != tc.want {
				t.Fatalf("got %s, want %s", buf.String(), tc.want)
			}
		})
	}
}

func TestXRefStreamEntry(t *testing.T) {
	widths := [3]int{1, byteWidth(70000), 2}
	if widths[1] != 3 {
		t.Fatalf("byteWidth(70000) = %d", widths[1])
	}
	got := appendXRefStreamEntry(nil, widths, 1, 70000, 0)
	want := []byte{1, 0x01, 0x11, 0x70, 0, 0}
	if !bytes.Equal(got, want) {
		t.Fatalf("entry = % x, want % x", got, want)
	}
	got = appendXRefStreamEntry(nil, widths, 0, 0, 65535)
	if !bytes.Equal(got, []byte{0, 0, 0, 0, 0xff, 0xff}) {
		t.Fatalf("free entry = % x", got)
	}
}

func TestFileID(t *testing.T) {
	a := fileID([]byte("body"), nil, true)
	b := fileID([]byte("body"), nil, true)
	if !bytes.Equal(a[0], b[0]) || !bytes.Equal(a[0], a[1]) || len(a[0]) != 16 {
		t.Fatalf("deterministic ids unstable: %x %x", a, b)
	}
	kept := fileID([]byte("body"), []byte{1, 2, 3}, false)
	if !bytes.Equal(kept[0], []byte{1, 2, 3}) || len(kept[1]) != 16 {
		t.Fatalf("permanent id not kept: %x", kept)
	}
}
