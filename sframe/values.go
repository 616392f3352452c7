package sframe

import (
	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/runtime"
)

// FromRows returns a frame holding rows split across nseg segments of
// near-equal length.
func FromRows(rctx *runtime.Context, names []string, kinds []zframe.Kind, rows [][]zframe.Value, nseg int) (*Frame, error) {
	if nseg < 1 {
		nseg = 1
	}
	w, err := Create(rctx, names, kinds, nseg)
	if err != nil {
		return nil, err
	}
	n := len(rows)
	for i := 0; i < nseg; i++ {
		seg := w.Segment(i)
		for _, row := range rows[i*n/nseg : (i+1)*n/nseg] {
			if err := seg.Write(row); err != nil {
				w.Abort()
				return nil, err
			}
		}
	}
	return w.Close()
}

// Rows reads the entire frame into memory.
func (f *Frame) Rows(rctx *runtime.Context) ([][]zframe.Value, error) {
	return f.Reader(rctx).ReadRows(0, f.NumRows(), nil)
}
