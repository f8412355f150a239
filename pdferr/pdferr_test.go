package pdferr

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelsMatchByKind(t *testing.T) {
	err := Wrap(KindInvalidPageSelector, "extract", errors.New("page 0 out of range"))
	if !errors.Is(err, ErrInvalidPageSelector) {
		t.Fatalf("expected errors.Is to match the selector sentinel")
	}
	if errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("selector error must not match the malformed sentinel")
	}

	wrapped := fmt.Errorf("cli: %w", err)
	if !errors.Is(wrapped, ErrInvalidPageSelector) {
		t.Fatalf("sentinel should match through fmt wrapping")
	}
}

func TestCompositeKeepsCause(t *testing.T) {
	cause := New(KindMalformedDocument, "parse", "startxref not found")
	err := Wrap(KindUnrepairableDocument, "repair", cause)

	if !errors.Is(err, ErrUnrepairableDocument) {
		t.Fatalf("expected unrepairable kind")
	}
	if !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("expected the malformed cause to stay reachable")
	}
	if got := KindOf(err); got != KindUnrepairableDocument {
		t.Fatalf("KindOf = %v", got)
	}
}

func TestErrorMessage(t *testing.T) {
	err := WrapAt(KindMalformedDocument, "parse", 42, errors.New("bad token"))
	want := "parse: malformed document: bad token (at byte 42)"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	if Wrap(KindNotFound, "x", nil) != nil {
		t.Fatalf("wrapping nil must yield nil")
	}
}
