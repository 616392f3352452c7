package sarray

import (
	"context"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/zqe"
)

// Reader partitions an array into logical segments that may be iterated
// independently and concurrently.  Logical segments need not coincide with
// the array's physical segments.
type Reader struct {
	ctx    context.Context
	array  *Array
	bounds []int64
}

// Reader returns a reader whose logical segments are the array's physical
// segments.
func (a *Array) Reader(ctx context.Context) *Reader {
	return &Reader{ctx: ctx, array: a, bounds: a.offsets}
}

// ReaderN returns a reader with n logical segments of near-equal length.
func (a *Array) ReaderN(ctx context.Context, n int) *Reader {
	if n < 1 {
		n = 1
	}
	total := a.Len()
	bounds := make([]int64, n+1)
	for i := 0; i <= n; i++ {
		bounds[i] = int64(i) * total / int64(n)
	}
	return &Reader{ctx: ctx, array: a, bounds: bounds}
}

// ReaderSizes returns a reader whose logical segments have the given
// lengths, which must sum to the array's length.
func (a *Array) ReaderSizes(ctx context.Context, sizes []int64) (*Reader, error) {
	bounds := make([]int64, len(sizes)+1)
	for k, n := range sizes {
		if n < 0 {
			return nil, zqe.ErrInvalid("sarray: negative segment size %d", n)
		}
		bounds[k+1] = bounds[k] + n
	}
	if bounds[len(sizes)] != a.Len() {
		return nil, zqe.ErrInvalid("sarray: segment sizes sum to %d, array has %d rows", bounds[len(sizes)], a.Len())
	}
	return &Reader{ctx: ctx, array: a, bounds: bounds}, nil
}

func (r *Reader) NumSegments() int {
	return len(r.bounds) - 1
}

func (r *Reader) SegmentLen(i int) int64 {
	return r.bounds[i+1] - r.bounds[i]
}

// Segment returns an iterator over logical segment i.
func (r *Reader) Segment(i int) *Iterator {
	return r.Range(r.bounds[i], r.bounds[i+1])
}

// Range returns an iterator over global rows [start, end).
func (r *Reader) Range(start, end int64) *Iterator {
	it := &Iterator{
		ctx:       r.ctx,
		array:     r.array,
		end:       end,
		readerSeg: -1,
	}
	it.seek(start)
	return it
}

// ReadRows appends the values of global rows [start, end) to out[:0].
func (r *Reader) ReadRows(start, end int64, out []zframe.Value) ([]zframe.Value, error) {
	if start < 0 || end < start || end > r.array.Len() {
		return nil, zqe.ErrInvalid("sarray: rows [%d,%d) out of range [0,%d)", start, end, r.array.Len())
	}
	out = out[:0]
	it := r.Range(start, end)
	for {
		v, err := it.Read()
		if err != nil {
			it.Close()
			return nil, err
		}
		if v == nil {
			return out, nil
		}
		out = append(out, *v)
	}
}

// Iterator reads a contiguous range of rows in order.
type Iterator struct {
	ctx   context.Context
	array *Array
	row   int64
	end   int64

	seg   int
	block int
	vals  []zframe.Value
	pos   int

	reader    storage.Reader
	readerSeg int
	err       error
}

func (it *Iterator) seek(row int64) {
	it.row = row
	it.vals = nil
	if row >= it.end {
		return
	}
	var local int64
	it.seg, local = it.array.segmentOf(row)
	s := it.array.segments[it.seg]
	it.block = searchBlock(s, local)
	it.pos = int(local - s.firstRow[it.block])
}

func searchBlock(s *segment, local int64) int {
	lo, hi := 0, len(s.blocks)
	for lo < hi {
		m := int(uint(lo+hi) >> 1)
		if s.firstRow[m+1] > local {
			hi = m
		} else {
			lo = m + 1
		}
	}
	return lo
}

// Read returns the next value or nil at the end of the range.  The
// iterator releases its storage handles when it reaches the end.
func (it *Iterator) Read() (*zframe.Value, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.row >= it.end {
		return nil, it.Close()
	}
	if it.vals == nil {
		if err := it.load(); err != nil {
			it.err = err
			return nil, err
		}
	}
	v := it.vals[it.pos]
	it.pos++
	it.row++
	if it.pos == len(it.vals) {
		it.seek(it.row)
	}
	return &v, nil
}

func (it *Iterator) load() error {
	s := it.array.segments[it.seg]
	if vals, ok := it.array.cache.lru.Get(blockKey{s, it.block}); ok {
		it.vals = vals
		return nil
	}
	if it.readerSeg != it.seg {
		if err := it.closeReader(); err != nil {
			return err
		}
		r, err := it.array.engine.Get(it.ctx, s.uri)
		if err != nil {
			return err
		}
		it.reader = r
		it.readerSeg = it.seg
	}
	vals, err := s.load(it.ctx, it.array.cache, it.reader, it.block)
	if err != nil {
		return err
	}
	it.vals = vals
	return nil
}

func (it *Iterator) closeReader() error {
	if it.reader == nil {
		return nil
	}
	err := it.reader.Close()
	it.reader = nil
	it.readerSeg = -1
	return err
}

// Close releases the iterator's storage handles.  It need not be called
// after Read has returned nil.
func (it *Iterator) Close() error {
	return it.closeReader()
}
