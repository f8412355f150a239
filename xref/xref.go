// Package xref locates indirect objects in a PDF file. It reads classic
// cross-reference tables, cross-reference streams, hybrid files and /Prev
// chains of incremental updates, and can rebuild the table by scanning the
// file when the recorded offsets are unusable.
package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/recovery"
	"github.com/wudi/pdftools/scanner"
)

// Table holds the resolved object locations.
type Table interface {
	// Lookup returns the byte offset of an object stored directly in the file.
	Lookup(objNum int) (offset int64, gen int, found bool)
	// ObjStream reports the object stream holding a compressed object and the
	// object's index inside it.
	ObjStream(objNum int) (streamNum int, idx int, found bool)
	Objects() []int
	Type() string
	Trailer() *raw.DictObj
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
	Trailer() *raw.DictObj
	Repaired() bool
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
	// Repair enables the full-file scan when the recorded tables cannot be
	// read or point at the wrong offsets.
	Repair  bool
	Filters filters.Limits
}

// NewResolver returns a resolver for classic tables and xref streams.
func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 50
	}
	return &tableResolver{cfg: cfg}
}

type tableResolver struct {
	cfg      ResolverConfig
	trailer  *raw.DictObj
	repaired bool
}

func (t *tableResolver) Trailer() *raw.DictObj { return t.trailer }
func (t *tableResolver) Repaired() bool        { return t.repaired }

func (t *tableResolver) Resolve(ctx context.Context, r io.ReaderAt) (Table, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, err
	}
	tbl, err := t.resolveRecorded(ctx, data)
	if err == nil {
		if bad := firstBadOffset(data, tbl); bad >= 0 {
			err = fmt.Errorf("xref entry for object %d does not point at its definition", bad)
		}
	}
	if err == nil {
		t.trailer = tbl.trailer
		return tbl, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || !t.cfg.Repair {
		return nil, err
	}
	t.report(err, 0)

	fixed, rerr := repair(ctx, data)
	if rerr != nil {
		return nil, fmt.Errorf("%v; repair: %w", err, rerr)
	}
	// Keep trailer entries from the damaged table when the scan found none.
	if tbl != nil && tbl.trailer != nil {
		for _, k := range tbl.trailer.Keys() {
			if _, ok := fixed.trailer.Get(k); !ok {
				v, _ := tbl.trailer.Get(k)
				fixed.trailer.Set(k, v)
			}
		}
	}
	t.trailer = fixed.trailer
	t.repaired = true
	return fixed, nil
}

func (t *tableResolver) report(err error, off int64) {
	if t.cfg.Recovery != nil {
		t.cfg.Recovery.OnError(nil, err, recovery.Location{ByteOffset: off, Component: "xref"})
	}
}

// resolveRecorded follows startxref and the /Prev chain.
func (t *tableResolver) resolveRecorded(ctx context.Context, data []byte) (*table, error) {
	offset, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	tbl := &table{entries: make(map[int]Entry), kind: "table"}
	visited := make(map[int64]bool)
	for depth := 0; offset >= 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= t.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref chain deeper than %d", t.cfg.MaxXRefDepth)
		}
		if visited[offset] {
			break
		}
		visited[offset] = true
		sec, err := t.readSection(ctx, data, offset)
		if err != nil {
			return tbl, err
		}
		if tbl.trailer == nil {
			tbl.trailer = sec.trailer
			tbl.kind = sec.kind
		}
		tbl.merge(sec.entries)

		offset = -1
		if prev, ok := intEntry(sec.trailer, "Prev"); ok && prev >= 0 {
			offset = prev
		}
	}
	if tbl.trailer == nil {
		return nil, errors.New("trailer not found")
	}
	tbl.trailer.Delete("Prev")
	tbl.trailer.Delete("XRefStm")
	return tbl, nil
}

type section struct {
	entries map[int]Entry
	trailer *raw.DictObj
	kind    string
}

// readSection reads one classic table or xref stream at offset. A hybrid
// section's /XRefStm entries are folded in behind the table's own entries.
func (t *tableResolver) readSection(ctx context.Context, data []byte, offset int64) (*section, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("xref offset out of range: %d", offset)
	}
	p := offset
	for p < int64(len(data)) && isSpace(data[p]) {
		p++
	}
	if bytes.HasPrefix(data[p:], []byte("xref")) {
		sec, err := t.readClassic(data, p)
		if err != nil {
			return nil, err
		}
		if stm, ok := intEntry(sec.trailer, "XRefStm"); ok {
			if hs, err := t.readStream(ctx, data, stm); err == nil {
				for num, e := range hs.entries {
					if _, dup := sec.entries[num]; !dup {
						sec.entries[num] = e
					}
				}
			} else {
				t.report(fmt.Errorf("hybrid xref stream: %w", err), stm)
			}
		}
		return sec, nil
	}
	return t.readStream(ctx, data, p)
}

func (t *tableResolver) newReader(data []byte) *raw.ObjectReader {
	s := scanner.New(bytes.NewReader(data), scanner.Config{Recovery: t.cfg.Recovery})
	return raw.NewObjectReader(s, raw.ReaderConfig{Recovery: t.cfg.Recovery, CapNumericOverflow: true})
}

func (t *tableResolver) readClassic(data []byte, offset int64) (*section, error) {
	r := t.newReader(data)
	if err := r.SeekTo(offset + int64(len("xref"))); err != nil {
		return nil, err
	}
	entries := make(map[int]Entry)
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("xref table: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			break
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, fmt.Errorf("invalid xref subsection header at offset %d", tok.Pos)
		}
		countTok, err := r.Next()
		if err != nil || countTok.Type != scanner.TokenNumber || !countTok.IsInt || countTok.Int < 0 {
			return nil, fmt.Errorf("invalid xref subsection count at offset %d", tok.Pos)
		}
		start, count := int(tok.Int), int(countTok.Int)
		sub := make([]Entry, 0, count)
		for i := 0; i < count; i++ {
			e, err := readClassicEntry(r)
			if err != nil {
				return nil, err
			}
			sub = append(sub, e)
		}
		// Some writers number the first subsection from 1 while still
		// emitting the free list head.
		if start == 1 && len(sub) > 0 && sub[0].Kind == EntryFree && sub[0].Gen == 65535 {
			start = 0
		}
		for i, e := range sub {
			if _, dup := entries[start+i]; !dup {
				entries[start+i] = e
			}
		}
	}
	trailerObj, err := r.ReadObject()
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	trailer, ok := trailerObj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	return &section{entries: entries, trailer: trailer, kind: "table"}, nil
}

func readClassicEntry(r *raw.ObjectReader) (Entry, error) {
	offTok, err := r.Next()
	if err != nil {
		return Entry{}, err
	}
	genTok, err := r.Next()
	if err != nil {
		return Entry{}, err
	}
	kindTok, err := r.Next()
	if err != nil {
		return Entry{}, err
	}
	if offTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber || kindTok.Type != scanner.TokenKeyword {
		return Entry{}, fmt.Errorf("invalid xref entry at offset %d", offTok.Pos)
	}
	switch kindTok.Str {
	case "n":
		return Entry{Kind: EntryInUse, Offset: offTok.Int, Gen: int(genTok.Int)}, nil
	case "f":
		return Entry{Kind: EntryFree, Gen: int(genTok.Int)}, nil
	}
	return Entry{}, fmt.Errorf("invalid xref entry type %q at offset %d", kindTok.Str, kindTok.Pos)
}

// EntryKind is the type field of a cross-reference entry.
type EntryKind int

const (
	EntryFree EntryKind = iota
	EntryInUse
	EntryCompressed
)

// Entry is one cross-reference entry. For compressed objects Stream and
// Index locate the object inside an object stream.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

type table struct {
	entries map[int]Entry
	trailer *raw.DictObj
	kind    string
}

// merge adds entries not already present; earlier sections take precedence.
func (t *table) merge(entries map[int]Entry) {
	for num, e := range entries {
		if _, ok := t.entries[num]; !ok {
			t.entries[num] = e
		}
	}
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.Kind != EntryInUse {
		return 0, 0, false
	}
	return e.Offset, e.Gen, true
}

func (t *table) ObjStream(objNum int) (int, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.Kind != EntryCompressed {
		return 0, 0, false
	}
	return e.Stream, e.Index, true
}

// Objects returns the numbers of all in-use and compressed objects.
func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.Kind != EntryFree && k > 0 {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

func (t *table) Type() string          { return t.kind }
func (t *table) Trailer() *raw.DictObj { return t.trailer }

func findStartXRef(data []byte) (int64, error) {
	// Only the tail of the file is searched, as readers are required to.
	tail := data
	if len(tail) > 4096 {
		tail = tail[len(tail)-4096:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := tail[idx+len("startxref"):]
	i := 0
	for i < len(rest) && isSpace(rest[i]) {
		i++
	}
	j := i
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	if i == j {
		return 0, errors.New("startxref offset missing")
	}
	var off int64
	for _, c := range rest[i:j] {
		off = off*10 + int64(c-'0')
		if off > int64(len(data)) {
			return 0, fmt.Errorf("xref offset beyond end of file")
		}
	}
	return off, nil
}

// firstBadOffset returns the number of the first in-use entry whose offset
// does not hold "num gen obj", or -1 when every entry checks out.
func firstBadOffset(data []byte, t *table) int {
	for _, num := range t.Objects() {
		e := t.entries[num]
		if e.Kind != EntryInUse {
			continue
		}
		if e.Offset <= 0 || e.Offset >= int64(len(data)) {
			return num
		}
		n, _, ok := objectHeaderAt(data, int(e.Offset))
		if !ok || n != num {
			return num
		}
	}
	return -1
}

// objectHeaderAt parses "num gen obj" starting at off.
func objectHeaderAt(data []byte, off int) (num, gen int, ok bool) {
	p := off
	readInt := func() (int, bool) {
		start := p
		v := 0
		for p < len(data) && data[p] >= '0' && data[p] <= '9' && p-start < 10 {
			v = v*10 + int(data[p]-'0')
			p++
		}
		return v, p > start
	}
	skip := func() bool {
		start := p
		for p < len(data) && isSpace(data[p]) {
			p++
		}
		return p > start
	}
	if num, ok = readInt(); !ok || !skip() {
		return 0, 0, false
	}
	if gen, ok = readInt(); !ok {
		return 0, 0, false
	}
	skip()
	if !bytes.HasPrefix(data[p:], []byte("obj")) {
		return 0, 0, false
	}
	return num, gen, true
}

func intEntry(d *raw.DictObj, key string) (int64, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	return raw.IntOf(v)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func readAll(r io.ReaderAt) ([]byte, error) {
	if b, ok := r.(interface{ Bytes() []byte }); ok {
		return b.Bytes(), nil
	}
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	tmp := make([]byte, chunk)
	for off := int64(0); ; off += chunk {
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if errors.Is(err, io.EOF) || (err == nil && int64(n) < chunk) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
