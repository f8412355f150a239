// Package raw holds the untyped PDF object model: names, numbers, strings,
// arrays, dictionaries, streams and references, plus the object table a
// parsed file decodes to.
package raw

import (
	"fmt"
	"sort"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Document is the root container for raw PDF objects as found in a file.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *DictObj
	Version string // e.g., "1.7"

	// Encrypted is set when the trailer carries /Encrypt. Strings and
	// stream payloads are then still ciphertext.
	Encrypted bool
	// Repaired is set when the cross-reference data was rebuilt by scanning.
	Repaired bool
	// ObjectStreams is set when any object was read from an object stream.
	ObjectStreams bool
}

// NewDocument returns an empty document with an empty trailer.
func NewDocument() *Document {
	return &Document{Objects: make(map[ObjectRef]Object), Trailer: Dict(), Version: "1.7"}
}

// maxRefChain bounds reference-to-reference hops during resolution.
const maxRefChain = 32

// Resolve follows references until a direct object is reached. A dangling
// reference resolves to null.
func (d *Document) Resolve(obj Object) Object {
	return ResolveIn(d.Objects, obj)
}

// ResolveIn is Resolve over an arbitrary object table.
func ResolveIn(table map[ObjectRef]Object, obj Object) Object {
	for i := 0; i < maxRefChain; i++ {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj
		}
		next, ok := table[ref.R]
		if !ok || next == nil {
			return NullObj{}
		}
		obj = next
	}
	return NullObj{}
}

// Refs returns the object table keys in ascending order.
func (d *Document) Refs() []ObjectRef {
	return SortedRefs(d.Objects)
}

// SortedRefs returns the keys of table ordered by number then generation.
func SortedRefs(table map[ObjectRef]Object) []ObjectRef {
	out := make([]ObjectRef, 0, len(table))
	for r := range table {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Num != out[j].Num {
			return out[i].Num < out[j].Num
		}
		return out[i].Gen < out[j].Gen
	})
	return out
}

// MaxNum returns the highest object number in the table.
func (d *Document) MaxNum() int {
	m := 0
	for r := range d.Objects {
		if r.Num > m {
			m = r.Num
		}
	}
	return m
}
