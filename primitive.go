package zframe

import (
	"fmt"
	"math"
)

// Convert coerces v to kind for storage in a column of that kind.
// Undefined passes through unchanged.  Ints widen to floats and floats
// holding an integral value narrow to ints; any other kind mismatch is
// ErrTypeMismatch.
func Convert(v Value, kind Kind) (Value, error) {
	if v.kind == kind || v.kind == KindUndefined {
		return v, nil
	}
	switch {
	case v.kind == KindInt && kind == KindFloat:
		return NewFloat(float64(v.i)), nil
	case v.kind == KindFloat && kind == KindInt:
		if t := math.Trunc(v.f); t == v.f && v.f >= negTwoTo63 && v.f < twoTo63 {
			return NewInt(int64(t)), nil
		}
	case kind == KindList && v.kind == KindVector:
		list := make([]Value, len(v.vec))
		for k, f := range v.vec {
			list[k] = NewFloat(f)
		}
		return Value{kind: KindList, list: list}, nil
	}
	return Undefined, fmt.Errorf("%w: cannot store %s value %s as %s", ErrTypeMismatch, v.kind, v, kind)
}

// MustConvert is like Convert but panics on error.
func MustConvert(v Value, kind Kind) Value {
	out, err := Convert(v, kind)
	if err != nil {
		panic(err)
	}
	return out
}
