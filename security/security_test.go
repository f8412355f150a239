package security

import (
	"testing"

	"github.com/wudi/pdftools/ir/raw"
)

func TestDescribeEncryption(t *testing.T) {
	d := raw.Dict()
	d.Set("Filter", raw.NameLiteral("Standard"))
	d.Set("V", raw.NumberInt(2))
	d.Set("R", raw.NumberInt(3))
	d.Set("Length", raw.NumberInt(128))
	d.Set("P", raw.NumberInt(-3884)) // print + copy only

	info := DescribeEncryption(d)
	if got := info.String(); got != "Standard V2 R3 128-bit" {
		t.Fatalf("String() = %q", got)
	}
	if !info.Permissions.Print || !info.Permissions.Copy || info.Permissions.Modify {
		t.Fatalf("permissions = %+v", info.Permissions)
	}
	if !info.EncryptMetadata {
		t.Fatalf("EncryptMetadata defaults to true")
	}
}

func TestLimitsWithDefaults(t *testing.T) {
	if got := (Limits{}).WithDefaults(); got != DefaultLimits() {
		t.Fatalf("zero limits = %+v", got)
	}
	got := Limits{MaxStringLength: 64, MaxStreamLength: -1, MaxParseTime: -1}.WithDefaults()
	if got.MaxStringLength != 64 {
		t.Fatalf("explicit field overwritten: %d", got.MaxStringLength)
	}
	if got.MaxStreamLength != 0 || got.MaxParseTime != 0 {
		t.Fatalf("negative fields should lift the bound: %+v", got)
	}
	if got.MaxDictSize != DefaultLimits().MaxDictSize {
		t.Fatalf("unset field not defaulted: %d", got.MaxDictSize)
	}
}
