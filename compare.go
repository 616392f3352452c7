package zframe

import (
	"bytes"
	"math"
	"strings"
)

// Compare returns -1, 0, or +1 according to the total order on values.
// Undefined sorts first.  Ints and floats compare numerically with each
// other; NaN sorts below every other number and equals itself.  Values of
// other kinds order by kind and then by content, lexicographically for
// strings and sequences.
func Compare(a, b Value) int {
	if ra, rb := a.kind.rank(), b.kind.rank(); ra != rb {
		return compareInts(int64(ra), int64(rb))
	}
	switch a.kind {
	case KindUndefined:
		return 0
	case KindInt, KindFloat:
		return compareNumbers(a, b)
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindVector:
		return compareFloatSlices(a.vec, b.vec)
	case KindList:
		return compareValueSlices(a.list, b.list)
	case KindDict:
		n := min(len(a.dict), len(b.dict))
		for k := 0; k < n; k++ {
			if c := Compare(a.dict[k].Key, b.dict[k].Key); c != 0 {
				return c
			}
			if c := Compare(a.dict[k].Value, b.dict[k].Value); c != 0 {
				return c
			}
		}
		return compareInts(int64(len(a.dict)), int64(len(b.dict)))
	case KindDatetime:
		return compareInts(a.i, b.i)
	case KindImage:
		x, y := a.img, b.img
		if c := compareInts(int64(x.Width), int64(y.Width)); c != 0 {
			return c
		}
		if c := compareInts(int64(x.Height), int64(y.Height)); c != 0 {
			return c
		}
		if c := compareInts(int64(x.Channels), int64(y.Channels)); c != 0 {
			return c
		}
		if c := compareInts(int64(x.Format), int64(y.Format)); c != 0 {
			return c
		}
		return bytes.Compare(x.Data, y.Data)
	case KindNDArray:
		n := min(len(a.nd.Shape), len(b.nd.Shape))
		for k := 0; k < n; k++ {
			if c := compareInts(int64(a.nd.Shape[k]), int64(b.nd.Shape[k])); c != 0 {
				return c
			}
		}
		if c := compareInts(int64(len(a.nd.Shape)), int64(len(b.nd.Shape))); c != 0 {
			return c
		}
		return compareFloatSlices(a.nd.Data, b.nd.Data)
	}
	panic("zframe: bad kind in Compare")
}

// Equal is Compare(a, b) == 0.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// Less is Compare(a, b) < 0 and may be used with sort.Slice.
func Less(a, b Value) bool {
	return Compare(a, b) < 0
}

// EqualRows reports whether a and b are equal at the given pairs of
// positions.  It panics if the position lists differ in length.
func EqualRows(a []Value, aPos []int, b []Value, bPos []int) bool {
	if len(aPos) != len(bPos) {
		panic("zframe: EqualRows position lists differ in length")
	}
	for k := range aPos {
		if !Equal(a[aPos[k]], b[bPos[k]]) {
			return false
		}
	}
	return true
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

const (
	twoTo63    = float64(1 << 63)
	negTwoTo63 = -float64(1 << 63)
)

func compareNumbers(a, b Value) int {
	switch {
	case a.kind == KindInt && b.kind == KindInt:
		return compareInts(a.i, b.i)
	case a.kind == KindFloat && b.kind == KindFloat:
		return compareFloats(a.f, b.f)
	case a.kind == KindInt:
		return compareIntFloat(a.i, b.f)
	default:
		return -compareIntFloat(b.i, a.f)
	}
}

// compareIntFloat compares exactly, without rounding i to a float64.
func compareIntFloat(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f >= twoTo63:
		return -1
	case f < negTwoTo63:
		return 1
	}
	if t := math.Trunc(f); t == f {
		return compareInts(i, int64(t))
	}
	return compareFloats(float64(i), f)
}

func compareFloatSlices(a, b []float64) int {
	n := min(len(a), len(b))
	for k := 0; k < n; k++ {
		if c := compareFloats(a[k], b[k]); c != 0 {
			return c
		}
	}
	return compareInts(int64(len(a)), int64(len(b)))
}

func compareValueSlices(a, b []Value) int {
	n := min(len(a), len(b))
	for k := 0; k < n; k++ {
		if c := Compare(a[k], b[k]); c != 0 {
			return c
		}
	}
	return compareInts(int64(len(a)), int64(len(b)))
}
