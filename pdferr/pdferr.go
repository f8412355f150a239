// Package pdferr defines the error kinds shared by the parser, the document
// store, the mutators and the serializer.
//
// Every error produced by this module that belongs to one of the kinds below
// is (or wraps) an *Error, so callers can branch with errors.Is against the
// exported sentinels:
//
//	if errors.Is(err, pdferr.ErrInvalidPageSelector) { ... }
package pdferr

import (
	"errors"
	"strconv"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindMalformedDocument
	KindIndexOutOfRange
	KindInvalidPageSelector
	KindUnsupportedEncryption
	KindSanitizeFailed
	KindUnrepairableDocument
	KindNotImplemented
	KindNotFound
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindMalformedDocument:
		return "malformed document"
	case KindIndexOutOfRange:
		return "index out of range"
	case KindInvalidPageSelector:
		return "invalid page selector"
	case KindUnsupportedEncryption:
		return "unsupported encryption"
	case KindSanitizeFailed:
		return "sanitize failed"
	case KindUnrepairableDocument:
		return "unrepairable document"
	case KindNotImplemented:
		return "not implemented"
	case KindNotFound:
		return "not found"
	case KindInvalidArgument:
		return "invalid argument"
	default:
		return "unknown error"
	}
}

// Error is a classified failure. Op names the operation that failed
// ("parse", "sanitize", "extract", ...), Pos is a byte offset when one is
// known, and Err is the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Pos  int64
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Pos > 0 {
		msg += " (at byte " + strconv.FormatInt(e.Pos, 10) + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. This makes the
// sentinels below match any error of their kind, regardless of Op or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrMalformedDocument     = &Error{Kind: KindMalformedDocument}
	ErrIndexOutOfRange       = &Error{Kind: KindIndexOutOfRange}
	ErrInvalidPageSelector   = &Error{Kind: KindInvalidPageSelector}
	ErrUnsupportedEncryption = &Error{Kind: KindUnsupportedEncryption}
	ErrSanitizeFailed        = &Error{Kind: KindSanitizeFailed}
	ErrUnrepairableDocument  = &Error{Kind: KindUnrepairableDocument}
	ErrNotImplemented        = &Error{Kind: KindNotImplemented}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrInvalidArgument       = &Error{Kind: KindInvalidArgument}
)

// New returns an *Error of the given kind with a plain message as cause.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WrapAt is Wrap with a byte offset.
func WrapAt(kind Kind, op string, pos int64, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Pos: pos, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
