package optimize

import (
	"context"
	"fmt"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
)

// compressStreams Flate-encodes every stream without a /Filter. Images are
// skipped, and so are encrypted documents, whose payloads are ciphertext.
// Stream objects are replaced rather than edited, since payloads may be
// shared with other documents.
func (o *Optimizer) compressStreams(ctx context.Context, doc *document.Document) error {
	if doc.Encrypted() {
		return nil
	}
	objects := doc.Objects()
	for _, ref := range doc.SortedRefs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		st, ok := objects[ref].(*raw.StreamObj)
		if !ok || !compressible(st) {
			continue
		}
		compressed, err := filters.FlateEncode(st.Data)
		if err != nil {
			return fmt.Errorf("object %s: %w", ref, err)
		}
		if len(compressed) >= len(st.Data) {
			continue
		}
		dict := raw.Clone(st.Dict).(*raw.DictObj)
		dict.Set("Filter", raw.NameLiteral("FlateDecode"))
		dict.Delete("DecodeParms")
		dict.Set("Length", raw.NumberInt(int64(len(compressed))))
		doc.SetObject(ref, raw.NewStream(dict, compressed))
	}
	return nil
}

func compressible(st *raw.StreamObj) bool {
	if _, ok := st.Dict.Get("Filter"); ok {
		return false
	}
	if sub, _ := raw.NameOf(st.Dict.KV["Subtype"]); sub == "Image" {
		return false
	}
	if _, ok := st.Dict.Get("F"); ok {
		// External file data.
		return false
	}
	return len(st.Data) > 0
}
