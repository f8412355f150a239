package raw

import (
	"errors"
	"fmt"
	"math"

	"github.com/wudi/pdftools/recovery"
	"github.com/wudi/pdftools/scanner"
)

// ErrNumericOverflow reports a number outside the range PDF consumers are
// required to handle.
var ErrNumericOverflow = errors.New("numeric value out of range")

const defaultMaxNesting = 256

// ReaderConfig controls how tokens are assembled into objects.
type ReaderConfig struct {
	Recovery recovery.Strategy
	// CheckNumericRange rejects integers outside int32 and reals beyond
	// ±math.MaxFloat32, the implementation limits of PDF 1.7 Annex C.
	CheckNumericRange bool
	// CapNumericOverflow clamps out-of-range numbers instead of failing.
	CapNumericOverflow bool
	MaxNesting         int
	MaxArraySize       int
	MaxDictSize        int
	// Length resolves an indirect /Length entry of a stream dictionary.
	Length func(ObjectRef) (int64, bool)
}

// ObjectReader assembles scanner tokens into objects.
type ObjectReader struct {
	s     scanner.Scanner
	cfg   ReaderConfig
	buf   []scanner.Token
	loc   recovery.Location
	depth int
}

func NewObjectReader(s scanner.Scanner, cfg ReaderConfig) *ObjectReader {
	if cfg.MaxNesting <= 0 {
		cfg.MaxNesting = defaultMaxNesting
	}
	return &ObjectReader{s: s, cfg: cfg}
}

// Scanner exposes the underlying token source.
func (r *ObjectReader) Scanner() scanner.Scanner { return r.s }

// Next returns the next token, honouring Unread.
func (r *ObjectReader) Next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *ObjectReader) Unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

// SeekTo repositions the reader and drops pushed-back tokens.
func (r *ObjectReader) SeekTo(off int64) error {
	r.buf = r.buf[:0]
	return r.s.SeekTo(off)
}

// SetLocation labels recovery reports with the object being read.
func (r *ObjectReader) SetLocation(loc recovery.Location) {
	r.loc = loc
	if rc, ok := r.s.(interface{ SetRecoveryLocation(recovery.Location) }); ok {
		rc.SetRecoveryLocation(loc)
	}
}

// ReadObject reads one direct object.
func (r *ObjectReader) ReadObject() (Object, error) {
	tok, err := r.Next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		return r.number(tok)
	case scanner.TokenBoolean:
		return BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenString:
		return StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenRef:
		return RefObj{R: ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	case scanner.TokenArray:
		return r.readArray(tok.Pos)
	case scanner.TokenDict:
		return r.readDict(tok.Pos)
	}
	return nil, fmt.Errorf("unexpected %s %q at offset %d", tok.Type, tok.Str, tok.Pos)
}

func (r *ObjectReader) enter(pos int64) error {
	r.depth++
	if r.depth > r.cfg.MaxNesting {
		return fmt.Errorf("nesting deeper than %d at offset %d", r.cfg.MaxNesting, pos)
	}
	return nil
}

func (r *ObjectReader) readArray(pos int64) (Object, error) {
	if err := r.enter(pos); err != nil {
		return nil, err
	}
	defer func() { r.depth-- }()
	arr := &ArrayObj{}
	for {
		tok, err := r.Next()
		if err != nil {
			if rerr := r.recover(fmt.Errorf("unterminated array: %w", err), pos, "array"); rerr != nil {
				return nil, rerr
			}
			return arr, nil
		}
		if tok.Type == scanner.TokenKeyword {
			switch tok.Str {
			case "]":
				return arr, nil
			case "endobj", ">>", "stream", "endstream":
				if err := r.recover(errors.New("array missing ]"), tok.Pos, "array"); err != nil {
					return nil, err
				}
				r.Unread(tok)
				return arr, nil
			}
		}
		r.Unread(tok)
		item, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		arr.Append(item)
		if r.cfg.MaxArraySize > 0 && arr.Len() > r.cfg.MaxArraySize {
			return nil, fmt.Errorf("array larger than %d elements", r.cfg.MaxArraySize)
		}
	}
}

func (r *ObjectReader) readDict(pos int64) (Object, error) {
	if err := r.enter(pos); err != nil {
		return nil, err
	}
	defer func() { r.depth-- }()
	d := Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			if rerr := r.recover(fmt.Errorf("unterminated dictionary: %w", err), pos, "dict"); rerr != nil {
				return nil, rerr
			}
			return d, nil
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			if tok.Type == scanner.TokenKeyword && (tok.Str == "endobj" || tok.Str == "stream" || tok.Str == "trailer") {
				if err := r.recover(errors.New("dictionary missing >>"), tok.Pos, "dict"); err != nil {
					return nil, err
				}
				r.Unread(tok)
				return d, nil
			}
			if err := r.recover(fmt.Errorf("expected name key, got %s", tok.Type), tok.Pos, "dict"); err != nil {
				return nil, err
			}
			continue
		}
		key := tok.Str
		next, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("dictionary value for /%s: %w", key, err)
		}
		if next.Type == scanner.TokenKeyword && next.Str == ">>" {
			if err := r.recover(fmt.Errorf("missing value for /%s", key), next.Pos, "dict"); err != nil {
				return nil, err
			}
			return d, nil
		}
		r.Unread(next)
		val, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		// A null value is equivalent to an absent entry.
		if _, isNull := val.(NullObj); !isNull {
			d.Set(key, val)
		}
		if r.cfg.MaxDictSize > 0 && d.Len() > r.cfg.MaxDictSize {
			return nil, fmt.Errorf("dictionary larger than %d entries", r.cfg.MaxDictSize)
		}
	}
}

func (r *ObjectReader) number(tok scanner.Token) (Object, error) {
	if tok.IsInt {
		v := tok.Int
		lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
		if r.cfg.CheckNumericRange {
			lo, hi = math.MinInt32, math.MaxInt32
		}
		if tok.Overflow || v < lo || v > hi {
			if !r.cfg.CapNumericOverflow {
				return nil, fmt.Errorf("%w: integer at offset %d", ErrNumericOverflow, tok.Pos)
			}
			if v < 0 {
				v = lo
			} else {
				v = hi
			}
		}
		return NumberObj{I: v, IsInt: true}, nil
	}
	f := tok.Float
	if r.cfg.CheckNumericRange && (math.IsNaN(f) || math.Abs(f) > math.MaxFloat32) {
		if !r.cfg.CapNumericOverflow {
			return nil, fmt.Errorf("%w: real at offset %d", ErrNumericOverflow, tok.Pos)
		}
		switch {
		case math.IsNaN(f):
			f = 0
		case f < 0:
			f = -math.MaxFloat32
		default:
			f = math.MaxFloat32
		}
	}
	return NumberObj{F: f}, nil
}

// ReadIndirect reads "N G obj <object> [stream] endobj" at the current
// position.
func (r *ObjectReader) ReadIndirect() (ObjectRef, Object, error) {
	numTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	genTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	if numTok.Type != scanner.TokenNumber || !numTok.IsInt || genTok.Type != scanner.TokenNumber || !genTok.IsInt {
		return ObjectRef{}, nil, fmt.Errorf("expected object header at offset %d", numTok.Pos)
	}
	objTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	if objTok.Type != scanner.TokenKeyword || objTok.Str != "obj" {
		return ObjectRef{}, nil, fmt.Errorf("expected obj keyword at offset %d", objTok.Pos)
	}
	ref := ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}
	loc := r.loc
	loc.ObjectNum, loc.ObjectGen, loc.ByteOffset = ref.Num, ref.Gen, numTok.Pos
	r.SetLocation(loc)

	first, err := r.Next()
	if err != nil {
		return ref, nil, err
	}
	if first.Type == scanner.TokenKeyword && first.Str == "endobj" {
		if err := r.recover(errors.New("empty object"), first.Pos, "object"); err != nil {
			return ref, nil, err
		}
		return ref, NullObj{}, nil
	}
	r.Unread(first)
	obj, err := r.ReadObject()
	if err != nil {
		return ref, nil, err
	}
	if dict, ok := obj.(*DictObj); ok && len(r.buf) == 0 {
		r.s.SetNextStreamLength(r.streamLength(dict))
		tok, err := r.Next()
		r.s.SetNextStreamLength(-1)
		if err == nil {
			if tok.Type == scanner.TokenStream {
				obj = &StreamObj{Dict: dict, Data: tok.Bytes}
			} else {
				r.Unread(tok)
			}
		}
	}
	tok, err := r.Next()
	if err != nil || tok.Type != scanner.TokenKeyword || tok.Str != "endobj" {
		if err == nil {
			r.Unread(tok)
		}
		// A missing endobj is common and harmless; report it and go on.
		_ = r.recover(errors.New("missing endobj"), numTok.Pos, "object")
	}
	return ref, obj, nil
}

func (r *ObjectReader) streamLength(dict *DictObj) int64 {
	v, ok := dict.Get("Length")
	if !ok {
		return -1
	}
	switch l := v.(type) {
	case NumberObj:
		if l.IsInt && l.I >= 0 {
			return l.I
		}
	case RefObj:
		if r.cfg.Length != nil {
			if n, ok := r.cfg.Length(l.R); ok && n >= 0 {
				return n
			}
		}
	}
	return -1
}

func (r *ObjectReader) recover(err error, pos int64, component string) error {
	if r.cfg.Recovery == nil {
		return err
	}
	loc := r.loc
	loc.ByteOffset = pos
	if loc.Component != "" {
		loc.Component += "->"
	}
	loc.Component += "object:" + component
	switch r.cfg.Recovery.OnError(nil, err, loc) {
	case recovery.ActionSkip, recovery.ActionFix, recovery.ActionWarn:
		return nil
	default:
		return err
	}
}
