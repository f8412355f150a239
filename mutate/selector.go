package mutate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wudi/pdftools/pdferr"
)

// ParseSelector turns a page selector such as "3,1-2" into 0-based page
// indices. Tokens are 1-based page numbers or inclusive ranges; their order
// is kept and repeats are allowed.
func ParseSelector(s string, pageCount int) ([]int, error) {
	var out []int
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, selectorError("empty token in %q", s)
		}
		from, to := tok, tok
		if i := strings.Index(tok, "-"); i >= 0 {
			from, to = strings.TrimSpace(tok[:i]), strings.TrimSpace(tok[i+1:])
		}
		start, err := pageNumber(from, pageCount)
		if err != nil {
			return nil, err
		}
		end, err := pageNumber(to, pageCount)
		if err != nil {
			return nil, err
		}
		if start > end {
			return nil, selectorError("range %q runs backwards", tok)
		}
		for p := start; p <= end; p++ {
			out = append(out, p-1)
		}
	}
	return out, nil
}

func pageNumber(s string, pageCount int) (int, error) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, selectorError("%q is not a page number", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, selectorError("%q is not a page number", s)
	}
	if n < 1 || n > pageCount {
		return 0, selectorError("page %d outside 1-%d", n, pageCount)
	}
	return n, nil
}

func selectorError(format string, args ...any) error {
	return pdferr.Wrap(pdferr.KindInvalidPageSelector, "select pages", fmt.Errorf(format, args...))
}

// checkIndices fails with InvalidPageSelector unless every index is in
// [0, pageCount).
func checkIndices(indices []int, pageCount int) error {
	for _, i := range indices {
		if i < 0 || i >= pageCount {
			return selectorError("index %d outside [0, %d)", i, pageCount)
		}
	}
	return nil
}
