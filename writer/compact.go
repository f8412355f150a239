package writer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wudi/pdftools/ir/raw"
)

// objectsPerStream caps how many objects share one object stream.
const objectsPerStream = 100

type packedLoc struct {
	stream int
	index  int
}

// writeCompact writes streams as ordinary indirect objects, packs every
// other object into /ObjStm streams and indexes all of them with a
// cross-reference stream.
func (w *impl) writeCompact(ctx context.Context, buf *bytes.Buffer, p *plan) error {
	offsets := make(map[int]int64, len(p.objects))
	packed := make(map[int]packedLoc, len(p.objects))

	var pending []raw.ObjectRef
	for _, ref := range p.refs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := p.objects[ref].(*raw.StreamObj); !ok {
			pending = append(pending, ref)
			continue
		}
		offsets[ref.Num] = int64(buf.Len())
		if err := w.writeIndirect(ctx, buf, ref, p.objects[ref], p.compress); err != nil {
			return err
		}
	}

	next := p.size()
	for start := 0; start < len(pending); start += objectsPerStream {
		end := start + objectsPerStream
		if end > len(pending) {
			end = len(pending)
		}
		stmRef := raw.ObjectRef{Num: next}
		next++
		st, err := w.objectStream(ctx, pending[start:end], p, stmRef.Num, packed)
		if err != nil {
			return err
		}
		offsets[stmRef.Num] = int64(buf.Len())
		if err := w.writeIndirect(ctx, buf, stmRef, st, false); err != nil {
			return err
		}
	}

	xrefRef := raw.ObjectRef{Num: next}
	size := next + 1
	xrefOffset := int64(buf.Len())
	offsets[xrefRef.Num] = xrefOffset

	maxField := xrefOffset
	if int64(xrefRef.Num) > maxField {
		maxField = int64(xrefRef.Num)
	}
	widths := [3]int{1, byteWidth(maxField), 2}
	var rows []byte
	for i := 0; i < size; i++ {
		switch {
		case i == 0:
			rows = appendXRefStreamEntry(rows, widths, 0, 0, 65535)
		case offsets[i] > 0:
			rows = appendXRefStreamEntry(rows, widths, 1, offsets[i], 0)
		default:
			if loc, ok := packed[i]; ok {
				rows = appendXRefStreamEntry(rows, widths, 2, int64(loc.stream), int64(loc.index))
			} else {
				rows = appendXRefStreamEntry(rows, widths, 0, 0, 0)
			}
		}
	}
	encoded, err := flateEncode(rows)
	if err != nil {
		return fmt.Errorf("cross-reference stream: %w", err)
	}

	dict := p.trailer(size, buf.Bytes())
	dict.Set("Type", raw.NameLiteral("XRef"))
	dict.Set("W", raw.NewArray(raw.NumberInt(int64(widths[0])), raw.NumberInt(int64(widths[1])), raw.NumberInt(int64(widths[2]))))
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	if err := w.writeIndirect(ctx, buf, xrefRef, raw.NewStream(dict, encoded), false); err != nil {
		return err
	}
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return nil
}

// objectStream serializes refs into one Flate-compressed /ObjStm and
// records where each landed.
func (w *impl) objectStream(ctx context.Context, refs []raw.ObjectRef, p *plan, num int, packed map[int]packedLoc) (*raw.StreamObj, error) {
	var header, body bytes.Buffer
	for i, ref := range refs {
		obj := p.objects[ref]
		for _, ic := range w.interceptors {
			if err := ic.BeforeWrite(ctx, ref, obj); err != nil {
				return nil, err
			}
		}
		start := body.Len()
		fmt.Fprintf(&header, "%d %d ", ref.Num, start)
		writeObject(&body, obj)
		body.WriteByte('\n')
		packed[ref.Num] = packedLoc{stream: num, index: i}
		for _, ic := range w.interceptors {
			if err := ic.AfterWrite(ctx, ref, int64(body.Len()-start)); err != nil {
				return nil, err
			}
		}
	}
	first := header.Len()
	header.Write(body.Bytes())
	encoded, err := flateEncode(header.Bytes())
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", num, err)
	}
	dict := raw.Dict()
	dict.Set("Type", raw.NameLiteral("ObjStm"))
	dict.Set("N", raw.NumberInt(int64(len(refs))))
	dict.Set("First", raw.NumberInt(int64(first)))
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	return raw.NewStream(dict, encoded), nil
}
