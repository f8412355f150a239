package security

import (
	"fmt"

	"github.com/wudi/pdftools/ir/raw"
)

type Permissions struct{ Print, Modify, Copy, ModifyAnnotations, FillForms, ExtractAccessible, Assemble, PrintHighQuality bool }

// EncryptionInfo describes an /Encrypt dictionary. Documents are never
// decrypted; the description exists so callers can report why content is
// opaque.
type EncryptionInfo struct {
	Filter          string
	SubFilter       string
	V               int
	R               int
	KeyBits         int
	Permissions     Permissions
	EncryptMetadata bool
}

// DescribeEncryption reads the fields of an /Encrypt dictionary.
func DescribeEncryption(d *raw.DictObj) EncryptionInfo {
	info := EncryptionInfo{KeyBits: 40, EncryptMetadata: true}
	if d == nil {
		return info
	}
	info.Filter = nameVal(d, "Filter")
	info.SubFilter = nameVal(d, "SubFilter")
	if v, ok := numberVal(d, "V"); ok {
		info.V = int(v)
	}
	if r, ok := numberVal(d, "R"); ok {
		info.R = int(r)
	}
	if l, ok := numberVal(d, "Length"); ok && l > 0 {
		info.KeyBits = int(l)
	} else if info.V >= 5 {
		info.KeyBits = 256
	}
	if p, ok := numberVal(d, "P"); ok {
		info.Permissions = PermissionsFromValue(int32(p))
	}
	if b, ok := d.Get("EncryptMetadata"); ok {
		if bv, ok := b.(raw.BoolObj); ok {
			info.EncryptMetadata = bv.V
		}
	}
	return info
}

func (e EncryptionInfo) String() string {
	if e.Filter == "" {
		return "unknown security handler"
	}
	return fmt.Sprintf("%s V%d R%d %d-bit", e.Filter, e.V, e.R, e.KeyBits)
}

// PermissionsFromValue decodes the Standard security handler /P flags.
func PermissionsFromValue(p int32) Permissions {
	bit := func(n uint) bool { return p&(1<<(n-1)) != 0 }
	return Permissions{
		Print:             bit(3),
		Modify:            bit(4),
		Copy:              bit(5),
		ModifyAnnotations: bit(6),
		FillForms:         bit(9),
		ExtractAccessible: bit(10),
		Assemble:          bit(11),
		PrintHighQuality:  bit(12),
	}
}

func numberVal(dict *raw.DictObj, key string) (int64, bool) {
	v, ok := dict.Get(key)
	if !ok {
		return 0, false
	}
	return raw.IntOf(v)
}

func nameVal(dict *raw.DictObj, key string) string {
	v, _ := dict.Get(key)
	n, _ := raw.NameOf(v)
	return n
}
