package xref

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
)

// readStream parses the cross-reference stream object at offset.
func (t *tableResolver) readStream(ctx context.Context, data []byte, offset int64) (*section, error) {
	r := t.newReader(data)
	if err := r.SeekTo(offset); err != nil {
		return nil, err
	}
	_, obj, err := r.ReadIndirect()
	if err != nil {
		return nil, fmt.Errorf("xref stream at %d: %w", offset, err)
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("no xref table or stream at offset %d", offset)
	}
	if typ, _ := raw.NameOf(mustGet(stm.Dict, "Type")); typ != "XRef" {
		return nil, fmt.Errorf("object at offset %d is not an xref stream", offset)
	}
	entries, err := decodeXRefStream(ctx, stm, t.cfg.Filters)
	if err != nil {
		return nil, err
	}
	trailer := raw.Dict()
	for _, k := range stm.Dict.Keys() {
		switch k {
		case "Type", "W", "Index", "Filter", "DecodeParms", "Length", "DL":
			continue
		}
		v, _ := stm.Dict.Get(k)
		trailer.Set(k, v)
	}
	return &section{entries: entries, trailer: trailer, kind: "stream"}, nil
}

func decodeXRefStream(ctx context.Context, stm *raw.StreamObj, limits filters.Limits) (map[int]Entry, error) {
	wArr, ok := raw.ArrayOf(mustGet(stm.Dict, "W"))
	if !ok || wArr.Len() != 3 {
		return nil, errors.New("xref stream /W must have three entries")
	}
	var w [3]int
	rowLen := 0
	for i := range w {
		v, _ := raw.IntOf(wArr.Items[i])
		if v < 0 || v > 8 {
			return nil, fmt.Errorf("invalid xref stream field width %d", v)
		}
		w[i] = int(v)
		rowLen += w[i]
	}
	if rowLen == 0 {
		return nil, errors.New("xref stream /W is all zero")
	}

	size, _ := raw.IntOf(mustGet(stm.Dict, "Size"))
	var index []int64
	if arr, ok := raw.ArrayOf(mustGet(stm.Dict, "Index")); ok {
		for _, it := range arr.Items {
			v, _ := raw.IntOf(it)
			index = append(index, v)
		}
	} else {
		index = []int64{0, size}
	}
	if len(index)%2 != 0 {
		return nil, errors.New("xref stream /Index has odd length")
	}

	body, err := filters.DefaultPipeline(limits).DecodeStream(ctx, stm)
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}

	entries := make(map[int]Entry)
	pos := 0
	for i := 0; i < len(index); i += 2 {
		start, count := int(index[i]), int(index[i+1])
		for j := 0; j < count; j++ {
			if pos+rowLen > len(body) {
				return entries, nil
			}
			row := body[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if w[0] > 0 {
				typ = field(row[:w[0]])
			}
			f2 := field(row[w[0] : w[0]+w[1]])
			f3 := field(row[w[0]+w[1]:])
			num := start + j
			if _, dup := entries[num]; dup {
				continue
			}
			switch typ {
			case 0:
				entries[num] = Entry{Kind: EntryFree, Gen: int(f3)}
			case 1:
				entries[num] = Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)}
			case 2:
				entries[num] = Entry{Kind: EntryCompressed, Stream: int(f2), Index: int(f3)}
			}
			// Unknown types are references to the null object.
		}
	}
	return entries, nil
}

func field(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func mustGet(d *raw.DictObj, key string) raw.Object {
	v, _ := d.Get(key)
	return v
}
