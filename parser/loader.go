package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/recovery"
	"github.com/wudi/pdftools/scanner"
	"github.com/wudi/pdftools/security"
	"github.com/wudi/pdftools/xref"
)

// ObjectLoader reads single indirect objects through an xref table.
type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
}

type ObjectLoaderBuilder struct {
	reader    io.ReaderAt
	xrefTable xref.Table
	limits    security.Limits
	recovery  recovery.Strategy
	capNums   bool
}

func (b *ObjectLoaderBuilder) WithXRef(table xref.Table) *ObjectLoaderBuilder {
	b.xrefTable = table
	return b
}
func (b *ObjectLoaderBuilder) WithReader(r io.ReaderAt) *ObjectLoaderBuilder {
	b.reader = r
	return b
}
func (b *ObjectLoaderBuilder) WithLimits(l security.Limits) *ObjectLoaderBuilder {
	b.limits = l
	return b
}
func (b *ObjectLoaderBuilder) WithRecovery(s recovery.Strategy) *ObjectLoaderBuilder {
	b.recovery = s
	return b
}

// WithNumericCap clamps out-of-range numbers instead of failing.
func (b *ObjectLoaderBuilder) WithNumericCap(c bool) *ObjectLoaderBuilder { b.capNums = c; return b }

func (b *ObjectLoaderBuilder) Build() (ObjectLoader, error) {
	if b.reader == nil || b.xrefTable == nil {
		return nil, errors.New("reader and xrefTable required")
	}
	limits := b.limits.WithDefaults()
	return &objectLoader{
		reader:    b.reader,
		xrefTable: b.xrefTable,
		limits:    limits,
		recovery:  b.recovery,
		capNums:   b.capNums,
		objstm:    make(map[int]map[int]raw.Object),
		lengths:   make(map[raw.ObjectRef]int64),
	}, nil
}

type objectLoader struct {
	reader    io.ReaderAt
	xrefTable xref.Table
	limits    security.Limits
	recovery  recovery.Strategy
	capNums   bool

	objstm  map[int]map[int]raw.Object
	lengths map[raw.ObjectRef]int64
	// loading guards against /Length references that point back into the
	// object being read.
	loading map[int]bool
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offset, gen, found := o.xrefTable.Lookup(ref.Num)
	if !found {
		if osNum, idx, ok := o.xrefTable.ObjStream(ref.Num); ok {
			return o.loadFromObjectStream(ctx, ref, osNum, idx)
		}
		return nil, fmt.Errorf("object %d not found in xref", ref.Num)
	}
	if ref.Gen != gen {
		return nil, fmt.Errorf("object %d: xref has generation %d, not %d", ref.Num, gen, ref.Gen)
	}
	return o.loadAtOffset(ref.Num, offset, gen)
}

func (o *objectLoader) newScanner(r scanner.ReaderAt) scanner.Scanner {
	return scanner.New(r, scanner.Config{
		Recovery:        o.recovery,
		MaxStringLength: o.limits.MaxStringLength,
		MaxStreamLength: o.limits.MaxStreamLength,
		WindowSize:      16 * 1024,
	})
}

func (o *objectLoader) readerConfig() raw.ReaderConfig {
	return raw.ReaderConfig{
		Recovery:           o.recovery,
		CheckNumericRange:  true,
		CapNumericOverflow: o.capNums,
		MaxNesting:         o.limits.MaxIndirectDepth,
		MaxArraySize:       o.limits.MaxArraySize,
		MaxDictSize:        o.limits.MaxDictSize,
		Length:             o.streamLength,
	}
}

func (o *objectLoader) loadAtOffset(objNum int, offset int64, gen int) (raw.Object, error) {
	if o.loading == nil {
		o.loading = make(map[int]bool)
	}
	if o.loading[objNum] {
		return nil, fmt.Errorf("object %d refers to itself while loading", objNum)
	}
	o.loading[objNum] = true
	defer delete(o.loading, objNum)

	r := raw.NewObjectReader(o.newScanner(o.reader), o.readerConfig())
	r.SetLocation(recovery.Location{Component: "parser"})
	if err := r.SeekTo(offset); err != nil {
		return nil, err
	}
	ref, obj, err := r.ReadIndirect()
	if err != nil {
		return nil, fmt.Errorf("object %d at offset %d: %w", objNum, offset, err)
	}
	if ref.Num != objNum {
		return nil, fmt.Errorf("object header number mismatch: want %d, found %d at offset %d", objNum, ref.Num, offset)
	}
	if ref.Gen != gen {
		return nil, fmt.Errorf("object %d generation mismatch: want %d, found %d", objNum, gen, ref.Gen)
	}
	return obj, nil
}

// streamLength resolves an indirect /Length. Only direct file objects are
// consulted; a length stored in an object stream is read through it too.
func (o *objectLoader) streamLength(ref raw.ObjectRef) (int64, bool) {
	if n, ok := o.lengths[ref]; ok {
		return n, true
	}
	var obj raw.Object
	var err error
	if offset, gen, found := o.xrefTable.Lookup(ref.Num); found {
		obj, err = o.loadAtOffset(ref.Num, offset, gen)
	} else if osNum, idx, ok := o.xrefTable.ObjStream(ref.Num); ok {
		obj, err = o.loadFromObjectStream(context.Background(), ref, osNum, idx)
	} else {
		return 0, false
	}
	if err != nil {
		return 0, false
	}
	n, ok := raw.IntOf(obj)
	if !ok || n < 0 {
		return 0, false
	}
	o.lengths[ref] = n
	return n, true
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, ref raw.ObjectRef, objStreamNum int, idx int) (raw.Object, error) {
	objs, ok := o.objstm[objStreamNum]
	if !ok {
		offset, gen, found := o.xrefTable.Lookup(objStreamNum)
		if !found {
			return nil, fmt.Errorf("object stream %d missing", objStreamNum)
		}
		streamObj, err := o.loadAtOffset(objStreamNum, offset, gen)
		if err != nil {
			return nil, err
		}
		st, ok := streamObj.(*raw.StreamObj)
		if !ok {
			return nil, fmt.Errorf("object stream %d is not a stream", objStreamNum)
		}
		objs, err = o.expandObjectStream(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", objStreamNum, err)
		}
		o.objstm[objStreamNum] = objs
	}
	if obj, ok := objs[ref.Num]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("object %d not found in object stream %d", ref.Num, objStreamNum)
}

// expandObjectStream decodes an /ObjStm and parses every object it holds.
func (o *objectLoader) expandObjectStream(ctx context.Context, st *raw.StreamObj) (map[int]raw.Object, error) {
	nObj, _ := raw.IntOf(dictEntry(st.Dict, "N"))
	first, _ := raw.IntOf(dictEntry(st.Dict, "First"))
	data, err := filters.DefaultPipeline(filters.Limits{
		MaxDecompressedSize: o.limits.MaxDecompressedSize,
		MaxDecodeTime:       o.limits.MaxDecodeTime,
	}).DecodeStream(ctx, st)
	if err != nil {
		return nil, err
	}
	if first < 0 || first > int64(len(data)) {
		return nil, errors.New("/First exceeds stream length")
	}
	if nObj < 0 || nObj > int64(len(data)) {
		return nil, fmt.Errorf("invalid /N %d", nObj)
	}

	hs := o.newScanner(bytes.NewReader(data[:first]))
	pairs := make([]int64, 0, 2*nObj)
	for int64(len(pairs)) < 2*nObj {
		tok, err := hs.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, fmt.Errorf("invalid object stream header at %d", tok.Pos)
		}
		pairs = append(pairs, tok.Int)
	}

	body := data[first:]
	r := raw.NewObjectReader(o.newScanner(bytes.NewReader(body)), o.readerConfig())
	objs := make(map[int]raw.Object, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		num, off := int(pairs[i]), pairs[i+1]
		if off < 0 || off >= int64(len(body)) {
			continue
		}
		if err := r.SeekTo(off); err != nil {
			return nil, err
		}
		r.SetLocation(recovery.Location{Component: "parser->objstm", ObjectNum: num})
		obj, err := r.ReadObject()
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", num, err)
		}
		if _, dup := objs[num]; !dup {
			objs[num] = obj
		}
	}
	return objs, nil
}

func dictEntry(d *raw.DictObj, key string) raw.Object {
	v, _ := d.Get(key)
	return v
}
