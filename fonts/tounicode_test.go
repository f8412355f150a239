package fonts

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestToUnicodeCMap(t *testing.T) {
	cmap, err := ToUnicodeCMap(map[int][]rune{
		0x24:  {'A'},
		0x03:  {' '},
		0x1F0: {'f', 'i'},
		0x99:  nil,
		0x100: {0x1F600},
	})
	if err != nil {
		t.Fatalf("cmap: %v", err)
	}
	for _, want := range []string{
		"<0000> <FFFF>",
		"4 beginbfchar",
		"<0003> <0020>\n<0024> <0041>\n<0100> <D83DDE00>\n<01F0> <00660069>\n",
		"endcmap",
	} {
		if !bytes.Contains(cmap, []byte(want)) {
			t.Fatalf("cmap missing %q:\n%s", want, cmap)
		}
	}
}

func TestToUnicodeCMapChunks(t *testing.T) {
	m := make(map[int][]rune)
	for i := 0; i < 250; i++ {
		m[i+1] = []rune{rune('a' + i%26)}
	}
	cmap, err := ToUnicodeCMap(m)
	if err != nil {
		t.Fatalf("cmap: %v", err)
	}
	s := string(cmap)
	if n := strings.Count(s, "beginbfchar"); n != 3 {
		t.Fatalf("expected 3 sections, got %d", n)
	}
	for _, want := range []int{100, 100, 50} {
		marker := fmt.Sprintf("%d beginbfchar", want)
		i := strings.Index(s, marker)
		if i < 0 {
			t.Fatalf("missing %q", marker)
		}
		s = s[i+len(marker):]
	}
}
