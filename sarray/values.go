package sarray

import (
	"encoding/binary"

	"github.com/axiomhq/hyperloglog"
	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/runtime"
)

// FromValues returns an array of kind holding vals split across nseg
// segments of near-equal length.
func FromValues(rctx *runtime.Context, kind zframe.Kind, vals []zframe.Value, nseg int) (*Array, error) {
	if nseg < 1 {
		nseg = 1
	}
	w, err := Create(rctx, kind, nseg)
	if err != nil {
		return nil, err
	}
	n := len(vals)
	for i := 0; i < nseg; i++ {
		seg := w.Segment(i)
		for _, v := range vals[i*n/nseg : (i+1)*n/nseg] {
			if err := seg.Write(v); err != nil {
				w.Abort()
				return nil, err
			}
		}
	}
	return w.Close()
}

// Constant returns an array of n copies of v in nseg segments of
// near-equal length.
func Constant(rctx *runtime.Context, kind zframe.Kind, v zframe.Value, n int64, nseg int) (*Array, error) {
	if nseg < 1 {
		nseg = 1
	}
	lens := make([]int64, nseg)
	for i := range lens {
		lens[i] = int64(i+1)*n/int64(nseg) - int64(i)*n/int64(nseg)
	}
	return ConstantSegments(rctx, kind, v, lens)
}

// ConstantSegments returns an array of copies of v whose segment i has
// lens[i] rows.  It is used to add a column aligned with existing ones.
func ConstantSegments(rctx *runtime.Context, kind zframe.Kind, v zframe.Value, lens []int64) (*Array, error) {
	w, err := Create(rctx, kind, len(lens))
	if err != nil {
		return nil, err
	}
	err = runtime.ParallelFor(rctx, len(lens), func(i int) error {
		seg := w.Segment(i)
		for r := int64(0); r < lens[i]; r++ {
			if err := seg.Write(v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		w.Abort()
		return nil, err
	}
	return w.Close()
}

// Values reads the entire array into memory.
func (a *Array) Values(rctx *runtime.Context) ([]zframe.Value, error) {
	return a.Reader(rctx).ReadRows(0, a.Len(), make([]zframe.Value, 0, a.Len()))
}

// Summary describes the contents of an array.
type Summary struct {
	Count     int64
	Undefined int64
	// Min and Max are Undefined when the array holds no defined values.
	Min zframe.Value
	Max zframe.Value
	// Distinct approximates the number of distinct defined values.
	Distinct uint64
}

// Sketch scans the array once and summarizes it.
func (a *Array) Sketch(rctx *runtime.Context) (*Summary, error) {
	sketch := hyperloglog.New()
	s := &Summary{Count: a.Len()}
	var scratch [8]byte
	it := a.Reader(rctx).Range(0, a.Len())
	for {
		if err := rctx.CheckCancel(); err != nil {
			it.Close()
			return nil, err
		}
		v, err := it.Read()
		if err != nil {
			it.Close()
			return nil, err
		}
		if v == nil {
			break
		}
		if v.IsUndefined() {
			s.Undefined++
			continue
		}
		if s.Min.IsUndefined() || zframe.Less(*v, s.Min) {
			s.Min = *v
		}
		if s.Max.IsUndefined() || zframe.Less(s.Max, *v) {
			s.Max = *v
		}
		binary.LittleEndian.PutUint64(scratch[:], v.Hash())
		sketch.Insert(scratch[:])
	}
	if s.Count > s.Undefined {
		s.Distinct = sketch.Estimate()
	}
	return s, nil
}
