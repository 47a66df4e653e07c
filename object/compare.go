package object

import (
	"cmp"
	"slices"
)

// typeRank orders variants; values of different variants compare by rank.
var typeRank = map[ObjectType]int{
	VOID_OBJ:         0,
	NONE_OBJ:         1,
	BOOLEAN_OBJ:      2,
	NUM_OBJ:          3,
	STRING_OBJ:       4,
	LIST_OBJ:         5,
	SET_OBJ:          6,
	MAP_OBJ:          7,
	DISTRIBUTION_OBJ: 8,
	FUNCTION_OBJ:     9,
	BREAK_OBJ:        10,
	CONTINUE_OBJ:     11,
	ERROR_OBJ:        12,
}

// Compare is the total structural order over values: by variant first, then
// by contents. It returns -1, 0 or +1.
//
// Functions compare by parameter names and then by the canonical rendering
// of their bodies; the captured scope does not take part.
func Compare(a, b Object) int {
	if c := cmp.Compare(typeRank[a.Type()], typeRank[b.Type()]); c != 0 {
		return c
	}

	switch a := a.(type) {
	case *Boolean:
		b := b.(*Boolean)
		switch {
		case a.Value == b.Value:
			return 0
		case !a.Value:
			return -1
		}
		return 1
	case *Num:
		return a.Value.Cmp(b.(*Num).Value)
	case *String:
		return cmp.Compare(a.Value, b.(*String).Value)
	case *List:
		return compareSlices(a.Elements, b.(*List).Elements)
	case *Set:
		return compareSlices(a.Elements(), b.(*Set).Elements())
	case *Map:
		return compareSlices(mapEntries(a), mapEntries(b.(*Map)))
	case *Distribution:
		return compareSlices(distEntries(a), distEntries(b.(*Distribution)))
	case *Function:
		b := b.(*Function)
		if c := slices.Compare(a.Params, b.Params); c != 0 {
			return c
		}
		return cmp.Compare(a.Body.String(), b.Body.String())
	case *Error:
		b := b.(*Error)
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.Message, b.Message)
	}
	// Void, None and the signals are singletons of their variant
	return 0
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Object) bool {
	return Compare(a, b) == 0
}

// Comparator adapts Compare to the ordered containers backing Map, Set and
// Distribution.
func Comparator(a, b interface{}) int {
	return Compare(a.(Object), b.(Object))
}

func compareSlices(a, b []Object) int {
	return slices.CompareFunc(a, b, Compare)
}

// mapEntries flattens a map to key, value, key, value, ... in key order.
func mapEntries(m *Map) []Object {
	out := make([]Object, 0, 2*m.Len())
	m.Each(func(k, v Object) {
		out = append(out, k, v)
	})
	return out
}

// distEntries flattens a distribution to outcome, weight, ... in key order.
func distEntries(d *Distribution) []Object {
	out := make([]Object, 0, 2*d.Len())
	d.Each(func(o Object, w uint64) bool {
		out = append(out, o, weightNum(w))
		return true
	})
	return out
}

// weightNum renders a weight as a Num; weights beyond int64 saturate, which
// only affects the relative order of such distributions.
func weightNum(w uint64) *Num {
	if w > 1<<63-1 {
		w = 1<<63 - 1
	}
	return NewInt(int64(w))
}
