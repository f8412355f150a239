package security

import "time"

// Limits bounds the work a single parse may do. Zero fields take the value
// from DefaultLimits. A negative field lifts the bound, except that nesting
// and /Prev depth keep the reader's built-in ceiling.
type Limits struct {
	// MaxDecompressedSize caps the decoded length of one stream.
	MaxDecompressedSize int64
	// MaxIndirectDepth caps array and dictionary nesting inside one object.
	MaxIndirectDepth int
	// MaxXRefDepth caps how many /Prev sections are followed.
	MaxXRefDepth int
	MaxArraySize int
	MaxDictSize  int
	// MaxStringLength caps one string token, in bytes.
	MaxStringLength int64
	// MaxStreamLength caps the encoded length of one stream.
	MaxStreamLength int64
	MaxDecodeTime   time.Duration
	// MaxParseTime bounds a whole Parse call, repair scans included.
	MaxParseTime time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxDecompressedSize: 100 << 20,
		MaxIndirectDepth:    100,
		MaxXRefDepth:        50,
		MaxArraySize:        100000,
		MaxDictSize:         10000,
		MaxStringLength:     10 << 20,
		MaxStreamLength:     50 << 20,
		MaxDecodeTime:       30 * time.Second,
		MaxParseTime:        5 * time.Minute,
	}
}

// WithDefaults fills the zero fields of l from DefaultLimits and turns
// negative fields into zero.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	pickInt := func(v, def int) int {
		switch {
		case v == 0:
			return def
		case v < 0:
			return 0
		}
		return v
	}
	pick64 := func(v, def int64) int64 {
		switch {
		case v == 0:
			return def
		case v < 0:
			return 0
		}
		return v
	}
	return Limits{
		MaxDecompressedSize: pick64(l.MaxDecompressedSize, d.MaxDecompressedSize),
		MaxIndirectDepth:    pickInt(l.MaxIndirectDepth, d.MaxIndirectDepth),
		MaxXRefDepth:        pickInt(l.MaxXRefDepth, d.MaxXRefDepth),
		MaxArraySize:        pickInt(l.MaxArraySize, d.MaxArraySize),
		MaxDictSize:         pickInt(l.MaxDictSize, d.MaxDictSize),
		MaxStringLength:     pick64(l.MaxStringLength, d.MaxStringLength),
		MaxStreamLength:     pick64(l.MaxStreamLength, d.MaxStreamLength),
		MaxDecodeTime:       time.Duration(pick64(int64(l.MaxDecodeTime), int64(d.MaxDecodeTime))),
		MaxParseTime:        time.Duration(pick64(int64(l.MaxParseTime), int64(d.MaxParseTime))),
	}
}
