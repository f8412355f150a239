package optimize

import (
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdftools/ir/raw"
)

type digest [blake2b.Size256]byte

// hashStream fingerprints a stream by its dictionary and stored bytes.
// /Length is ignored since it follows from the payload.
func hashStream(s *raw.StreamObj) digest {
	h, _ := blake2b.New256(nil)
	fmt.Fprint(h, "<<")
	for _, k := range s.Dict.Keys() {
		if k == "Length" {
			continue
		}
		fmt.Fprint(h, "/", k, " ")
		writeHash(h, s.Dict.KV[k])
	}
	fmt.Fprintf(h, ">>%d:", len(s.Data))
	h.Write(s.Data)
	var d digest
	h.Sum(d[:0])
	return d
}

func writeHash(h hash.Hash, obj raw.Object) {
	switch t := obj.(type) {
	case nil, raw.NullObj:
		fmt.Fprint(h, "null")
	case raw.NameObj:
		fmt.Fprint(h, "/", t.Value())
	case raw.NumberObj:
		if t.IsInteger() {
			fmt.Fprint(h, "i", t.Int())
		} else {
			fmt.Fprint(h, "f", t.Float())
		}
	case raw.BoolObj:
		fmt.Fprint(h, t.Value())
	case raw.StringObj:
		fmt.Fprintf(h, "(%d:", len(t.Bytes))
		h.Write(t.Bytes)
		fmt.Fprint(h, ")")
	case raw.RefObj:
		fmt.Fprintf(h, "%d %d R", t.R.Num, t.R.Gen)
	case *raw.ArrayObj:
		fmt.Fprint(h, "[")
		for _, it := range t.Items {
			writeHash(h, it)
			fmt.Fprint(h, ",")
		}
		fmt.Fprint(h, "]")
	case *raw.DictObj:
		fmt.Fprint(h, "<<")
		for _, k := range t.Keys() {
			fmt.Fprint(h, "/", k, " ")
			writeHash(h, t.KV[k])
		}
		fmt.Fprint(h, ">>")
	case *raw.StreamObj:
		d := hashStream(t)
		h.Write(d[:])
	}
}
