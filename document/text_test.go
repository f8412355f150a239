package document

import (
	"testing"
	"time"
)

func TestTextStrings(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"ascii", []byte("Hello"), "Hello"},
		{"utf16", []byte{0xFE, 0xFF, 0x00, 'G', 0x00, 0xFC}, "Gü"},
		{"utf8 bom", []byte{0xEF, 0xBB, 0xBF, 'o', 'k'}, "ok"},
		{"pdfdoc bullet", []byte{0x80, ' ', 0x92}, "• ™"},
		{"latin1", []byte{'c', 0xE9}, "cé"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DecodeText(tc.in); got != tc.want {
				t.Fatalf("DecodeText = %q, want %q", got, tc.want)
			}
		})
	}

	for _, s := range []string{"plain", "Grüße ✓", "日本語"} {
		if got := DecodeText(EncodeText(s)); got != s {
			t.Fatalf("round trip of %q gave %q", s, got)
		}
	}
	if string(EncodeText("plain")) != "plain" {
		t.Fatalf("ascii should stay unencoded")
	}
}

func TestDates(t *testing.T) {
	loc := time.FixedZone("", 5*3600+30*60)
	want := time.Date(2023, 11, 5, 8, 9, 10, 0, loc)
	s := FormatDate(want)
	if s != "D:20231105080910+05'30'" {
		t.Fatalf("FormatDate = %q", s)
	}
	got, ok := ParseDate(s)
	if !ok || !got.Equal(want) {
		t.Fatalf("ParseDate(%q) = %v %v", s, got, ok)
	}

	for _, in := range []string{"D:2023", "20231105", "D:20231105080910Z", "D:20231105080910Z00'00'"} {
		if _, ok := ParseDate(in); !ok {
			t.Fatalf("ParseDate(%q) failed", in)
		}
	}
	if _, ok := ParseDate("yesterday"); ok {
		t.Fatalf("garbage should not parse")
	}
}
