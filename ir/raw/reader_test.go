package raw

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdftools/recovery"
	"github.com/wudi/pdftools/scanner"
)

func newReader(src string, cfg ReaderConfig) *ObjectReader {
	return NewObjectReader(scanner.New(bytes.NewReader([]byte(src)), scanner.Config{Recovery: cfg.Recovery}), cfg)
}

func TestReadIndirectParsesObjectsAndStream(t *testing.T) {
	src := "" +
		"1 0 obj\n" +
		"<< /Type /Catalog /Kids [3 0 R (x) <41>] /Skip null >>\n" +
		"endobj\n" +
		"2 0 obj\n" +
		"<< /Length 5 >>\n" +
		"stream\n" +
		"hello\n" +
		"endstream\n" +
		"endobj\n"

	r := newReader(src, ReaderConfig{})
	ref, obj, err := r.ReadIndirect()
	if err != nil {
		t.Fatalf("read 1: %v", err)
	}
	if ref != (ObjectRef{Num: 1}) {
		t.Fatalf("ref = %v", ref)
	}
	want := &DictObj{KV: map[string]Object{
		"Type": NameObj{Val: "Catalog"},
		"Kids": &ArrayObj{Items: []Object{Ref(3, 0), StringObj{Bytes: []byte("x")}, StringObj{Bytes: []byte("A"), Hex: true}}},
	}}
	if diff := cmp.Diff(want, obj); diff != "" {
		t.Fatalf("catalog mismatch (-want +got):\n%s", diff)
	}

	ref, obj, err = r.ReadIndirect()
	if err != nil {
		t.Fatalf("read 2: %v", err)
	}
	stream, ok := obj.(*StreamObj)
	if !ok || ref.Num != 2 {
		t.Fatalf("expected stream object 2, got %v %T", ref, obj)
	}
	if got := string(stream.Data); got != "hello" {
		t.Fatalf("unexpected stream data: %q", got)
	}
}

func TestReadIndirectResolvesIndirectLength(t *testing.T) {
	src := "4 0 obj << /Length 9 0 R >> stream\nabcdef\nendstream endobj"
	r := newReader(src, ReaderConfig{Length: func(ref ObjectRef) (int64, bool) {
		if ref.Num == 9 {
			return 6, true
		}
		return 0, false
	}})
	_, obj, err := r.ReadIndirect()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if s := obj.(*StreamObj); string(s.Data) != "abcdef" {
		t.Fatalf("data = %q", s.Data)
	}
}

func TestNumericRange(t *testing.T) {
	tests := []struct {
		name string
		src  string
		cap  bool
		want Object
		err  bool
	}{
		{"int32 ok", "2147483647", false, NumberInt(2147483647), false},
		{"int32 overflow fails", "4294967295", false, nil, true},
		{"int32 overflow capped", "4294967295", true, NumberInt(2147483647), false},
		{"negative capped", "-99999999999999999999", true, NumberInt(-2147483648), false},
		{"long real within range", "100000000000000000000.5", false, NumberFloat(1e20), false},
		{"real overflow fails", "1" + strings.Repeat("0", 39) + ".5", false, nil, true},
		{"real overflow capped", "1" + strings.Repeat("0", 39) + ".5", true, NumberFloat(math.MaxFloat32), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newReader(tc.src, ReaderConfig{CheckNumericRange: true, CapNumericOverflow: tc.cap})
			got, err := r.ReadObject()
			if tc.err {
				if !errors.Is(err, ErrNumericOverflow) {
					t.Fatalf("expected overflow error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestMissingDictCloseRecovers(t *testing.T) {
	src := "1 0 obj\n<< /Type /Catalog /Pages 2 0 R\nendobj\n"
	if _, _, err := newReader(src, ReaderConfig{}).ReadIndirect(); err == nil {
		t.Fatalf("expected strict reader to fail")
	}
	rec := recovery.NewLenientStrategy()
	_, obj, err := newReader(src, ReaderConfig{Recovery: rec}).ReadIndirect()
	if err != nil {
		t.Fatalf("lenient read: %v", err)
	}
	d, ok := DictOf(obj)
	if !ok || d.Len() != 2 {
		t.Fatalf("expected recovered catalog, got %#v", obj)
	}
	if len(rec.Errors()) == 0 {
		t.Fatalf("expected the defect to be recorded")
	}
}

func TestRemapAndReachable(t *testing.T) {
	table := map[ObjectRef]Object{
		{Num: 1}: &DictObj{KV: map[string]Object{"Next": Ref(2, 0)}},
		{Num: 2}: NewStream(&DictObj{KV: map[string]Object{"Res": Ref(3, 0)}}, []byte("data")),
		{Num: 3}: NumberInt(7),
		{Num: 4}: NumberInt(8),
	}
	seen := Reachable(table, Ref(1, 0), Ref(99, 0))
	if len(seen) != 3 || seen[ObjectRef{Num: 4}] {
		t.Fatalf("reachable = %v", seen)
	}

	orig := table[ObjectRef{Num: 2}].(*StreamObj)
	moved := Remap(orig, func(r ObjectRef) Object { return Ref(r.Num+10, 0) }).(*StreamObj)
	if got, _ := moved.Dict.Get("Res"); got != Ref(13, 0) {
		t.Fatalf("remapped ref = %v", got)
	}
	if &moved.Data[0] != &orig.Data[0] {
		t.Fatalf("stream payload should be shared")
	}
	if got, _ := orig.Dict.Get("Res"); got != Ref(3, 0) {
		t.Fatalf("original modified: %v", got)
	}
}

func TestResolveDangling(t *testing.T) {
	doc := NewDocument()
	doc.Objects[ObjectRef{Num: 1}] = Ref(2, 0)
	if _, ok := doc.Resolve(Ref(1, 0)).(NullObj); !ok {
		t.Fatalf("dangling chain should resolve to null")
	}
}
