package sframe

import (
	"context"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/zqe"
	"go.uber.org/multierr"
)

// Reader reads a frame row by row over logical segments that are aligned
// across columns.
type Reader struct {
	columns []*sarray.Reader
	lens    []int64
}

func (f *Frame) Reader(ctx context.Context) *Reader {
	r := &Reader{lens: f.SegmentLens()}
	for _, c := range f.columns {
		r.columns = append(r.columns, c.Reader(ctx))
	}
	return r
}

// ReaderN returns a reader with n logical segments of near-equal length.
func (f *Frame) ReaderN(ctx context.Context, n int) *Reader {
	r := &Reader{}
	for _, c := range f.columns {
		r.columns = append(r.columns, c.ReaderN(ctx, n))
	}
	if len(r.columns) > 0 {
		for i := 0; i < r.columns[0].NumSegments(); i++ {
			r.lens = append(r.lens, r.columns[0].SegmentLen(i))
		}
	}
	return r
}

// ReaderSizes returns a reader whose logical segments have the given
// lengths, which must sum to the number of rows.
func (f *Frame) ReaderSizes(ctx context.Context, sizes []int64) (*Reader, error) {
	if len(f.columns) == 0 {
		for _, n := range sizes {
			if n != 0 {
				return nil, zqe.ErrInvalid("sframe: segment sizes exceed an empty frame")
			}
		}
	}
	r := &Reader{lens: sizes}
	for _, c := range f.columns {
		cr, err := c.ReaderSizes(ctx, sizes)
		if err != nil {
			return nil, err
		}
		r.columns = append(r.columns, cr)
	}
	return r, nil
}

func (r *Reader) NumSegments() int {
	return len(r.lens)
}

func (r *Reader) SegmentLen(i int) int64 {
	return r.lens[i]
}

// Segment returns an iterator over the rows of logical segment i.
func (r *Reader) Segment(i int) *RowIterator {
	it := &RowIterator{}
	for _, c := range r.columns {
		it.columns = append(it.columns, c.Segment(i))
	}
	return it
}

// ReadRows appends the rows [start, end) to out[:0].
func (r *Reader) ReadRows(start, end int64, out [][]zframe.Value) ([][]zframe.Value, error) {
	out = out[:0]
	if end <= start {
		return out, nil
	}
	n := int(end - start)
	for k := 0; k < n; k++ {
		out = append(out, make([]zframe.Value, len(r.columns)))
	}
	var vals []zframe.Value
	for col, c := range r.columns {
		var err error
		if vals, err = c.ReadRows(start, end, vals); err != nil {
			return nil, err
		}
		for k, v := range vals {
			out[k][col] = v
		}
	}
	return out, nil
}

// RowIterator reads rows in order from one logical segment.
type RowIterator struct {
	columns []*sarray.Iterator
}

// Read returns the next row or nil at the end of the segment.  The
// returned slice belongs to the caller.
func (it *RowIterator) Read() ([]zframe.Value, error) {
	if len(it.columns) == 0 {
		return nil, nil
	}
	var row []zframe.Value
	for k, c := range it.columns {
		v, err := c.Read()
		if err != nil {
			return nil, err
		}
		if v == nil {
			if k != 0 {
				return nil, zqe.ErrConflict("sframe: columns of unequal length")
			}
			return nil, nil
		}
		if row == nil {
			row = make([]zframe.Value, len(it.columns))
		}
		row[k] = *v
	}
	return row, nil
}

func (it *RowIterator) Close() error {
	var err error
	for _, c := range it.columns {
		err = multierr.Append(err, c.Close())
	}
	return err
}
