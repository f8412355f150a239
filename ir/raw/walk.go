package raw

// Clone returns a deep copy of obj. Stream payloads are shared, not copied.
func Clone(obj Object) Object {
	return Remap(obj, func(r ObjectRef) Object { return RefObj{R: r} })
}

// Remap returns a deep copy of obj in which every reference is replaced by
// the result of fn. Stream payloads are shared with the original.
func Remap(obj Object, fn func(ObjectRef) Object) Object {
	switch v := obj.(type) {
	case RefObj:
		return fn(v.R)
	case *ArrayObj:
		if v == nil {
			return NullObj{}
		}
		out := &ArrayObj{Items: make([]Object, len(v.Items))}
		for i, it := range v.Items {
			out.Items[i] = Remap(it, fn)
		}
		return out
	case *DictObj:
		if v == nil {
			return NullObj{}
		}
		return remapDict(v, fn)
	case *StreamObj:
		return &StreamObj{Dict: remapDict(v.Dict, fn), Data: v.Data}
	case StringObj:
		return StringObj{Bytes: append([]byte(nil), v.Bytes...), Hex: v.Hex}
	case nil:
		return NullObj{}
	default:
		return obj
	}
}

func remapDict(d *DictObj, fn func(ObjectRef) Object) *DictObj {
	out := &DictObj{KV: make(map[string]Object, d.Len())}
	// Sorted keys keep fn's call order stable.
	for _, k := range d.Keys() {
		out.KV[k] = Remap(d.KV[k], fn)
	}
	return out
}

// VisitRefs calls fn for every reference held directly or nested inside obj.
// It does not follow the references.
func VisitRefs(obj Object, fn func(ObjectRef)) {
	switch v := obj.(type) {
	case RefObj:
		fn(v.R)
	case *ArrayObj:
		if v == nil {
			return
		}
		for _, it := range v.Items {
			VisitRefs(it, fn)
		}
	case *DictObj:
		if v == nil {
			return
		}
		for _, k := range v.Keys() {
			VisitRefs(v.KV[k], fn)
		}
	case *StreamObj:
		VisitRefs(v.Dict, fn)
	}
}

// Reachable returns every object reference reachable from roots through the
// table, roots included. Dangling references are not reported.
func Reachable(table map[ObjectRef]Object, roots ...Object) map[ObjectRef]bool {
	seen := make(map[ObjectRef]bool)
	var stack []ObjectRef
	push := func(r ObjectRef) {
		if seen[r] {
			return
		}
		if _, ok := table[r]; !ok {
			return
		}
		seen[r] = true
		stack = append(stack, r)
	}
	for _, root := range roots {
		VisitRefs(root, push)
	}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		VisitRefs(table[r], push)
	}
	return seen
}
