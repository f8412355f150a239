package xref

import (
	"bytes"
	"context"
	"errors"

	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/scanner"
)

// repair scans the whole file for "num gen obj" headers and trailer
// dictionaries. Later definitions of an object win, matching the order of
// incremental updates. Cross-reference streams found on the way donate their
// dictionaries as trailer candidates.
func repair(ctx context.Context, data []byte) (*table, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	r := raw.NewObjectReader(s, raw.ReaderConfig{CapNumericOverflow: true})

	tbl := &table{entries: make(map[int]Entry), kind: "repair"}
	var trailer, streamTrailer *raw.DictObj

	for i := 0; i < len(data); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		c := data[i]
		if i > 0 && !isSpace(data[i-1]) && !bytes.ContainsRune([]byte("()<>[]{}/%"), rune(data[i-1])) {
			continue
		}
		switch {
		case c >= '0' && c <= '9':
			num, gen, ok := objectHeaderAt(data, i)
			if !ok || num <= 0 {
				continue
			}
			tbl.entries[num] = Entry{Kind: EntryInUse, Offset: int64(i), Gen: gen}
			if err := r.SeekTo(int64(i)); err != nil {
				continue
			}
			_, obj, err := r.ReadIndirect()
			if err != nil {
				continue
			}
			if stm, ok := obj.(*raw.StreamObj); ok {
				if typ, _ := raw.NameOf(mustGet(stm.Dict, "Type")); typ == "XRef" && hasRoot(stm.Dict) {
					streamTrailer = trailerFromStream(stm.Dict)
				}
			}
			if next := int(s.Position()); next > i {
				i = next - 1
			}
		case c == 't' && bytes.HasPrefix(data[i:], []byte("trailer")):
			if err := r.SeekTo(int64(i + len("trailer"))); err != nil {
				continue
			}
			obj, err := r.ReadObject()
			if err != nil {
				continue
			}
			if d, ok := obj.(*raw.DictObj); ok && (trailer == nil || hasRoot(d)) {
				trailer = d
			}
		}
	}

	if len(tbl.entries) == 0 {
		return nil, errors.New("no objects found")
	}
	switch {
	case trailer != nil && hasRoot(trailer):
	case streamTrailer != nil:
		trailer = streamTrailer
	case trailer == nil:
		trailer = raw.Dict()
	}
	trailer.Delete("Prev")
	trailer.Delete("XRefStm")
	tbl.trailer = trailer
	return tbl, nil
}

func hasRoot(d *raw.DictObj) bool {
	_, ok := d.Get("Root")
	return ok
}

func trailerFromStream(d *raw.DictObj) *raw.DictObj {
	out := raw.Dict()
	for _, k := range d.Keys() {
		switch k {
		case "Type", "W", "Index", "Filter", "DecodeParms", "Length", "DL":
			continue
		}
		v, _ := d.Get(k)
		out.Set(k, v)
	}
	return out
}
