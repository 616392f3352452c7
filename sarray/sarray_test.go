package sarray_test

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/config"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/zqe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestContext(t *testing.T) *runtime.Context {
	conf := config.Default()
	conf.Parallelism = 4
	// Small blocks so that every test crosses block boundaries.
	conf.SArray.BlockSize = 64
	conf.SArray.ReadCacheBlocks = 4
	rctx, err := runtime.NewContext(context.Background(), conf, storage.NewMemEngine(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(rctx.Cancel)
	return rctx
}

func ints(n int) []zframe.Value {
	vals := make([]zframe.Value, n)
	for i := range vals {
		vals[i] = zframe.NewInt(int64(i))
	}
	return vals
}

func TestWriteReadSegments(t *testing.T) {
	rctx := newTestContext(t)
	w, err := sarray.Create(rctx, zframe.KindString, 3)
	require.NoError(t, err)
	// Segment 1 stays empty.
	for i := 0; i < 100; i++ {
		require.NoError(t, w.Segment(0).Write(zframe.NewString(fmt.Sprintf("a%d", i))))
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, w.Segment(2).Write(zframe.NewString(fmt.Sprintf("c%d", i))))
	}
	a, err := w.Close()
	require.NoError(t, err)
	assert.Equal(t, zframe.KindString, a.Kind())
	assert.EqualValues(t, 150, a.Len())
	assert.Equal(t, []int64{100, 0, 50}, a.SegmentLens())

	r := a.Reader(rctx)
	require.Equal(t, 3, r.NumSegments())
	it := r.Segment(1)
	v, err := it.Read()
	require.NoError(t, err)
	assert.Nil(t, v)

	it = r.Segment(2)
	for i := 0; i < 50; i++ {
		v, err := it.Read()
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, fmt.Sprintf("c%d", i), v.Str())
	}
	v, err = it.Read()
	require.NoError(t, err)
	assert.Nil(t, v)

	rows, err := r.ReadRows(95, 105, nil)
	require.NoError(t, err)
	require.Len(t, rows, 10)
	assert.Equal(t, "a95", rows[0].Str())
	assert.Equal(t, "a99", rows[4].Str())
	assert.Equal(t, "c0", rows[5].Str())
	assert.Equal(t, "c4", rows[9].Str())
}

func TestConcurrentSegmentWrites(t *testing.T) {
	rctx := newTestContext(t)
	const nseg, per = 8, 200
	w, err := sarray.Create(rctx, zframe.KindInt, nseg)
	require.NoError(t, err)
	var wg sync.WaitGroup
	for s := 0; s < nseg; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				assert.NoError(t, w.Segment(s).Write(zframe.NewInt(int64(s*per+i))))
			}
		}(s)
	}
	wg.Wait()
	a, err := w.Close()
	require.NoError(t, err)
	vals, err := a.Values(rctx)
	require.NoError(t, err)
	assert.Equal(t, ints(nseg*per), vals)
}

func TestWriteConverts(t *testing.T) {
	rctx := newTestContext(t)
	w, err := sarray.Create(rctx, zframe.KindFloat, 1)
	require.NoError(t, err)
	require.NoError(t, w.Segment(0).Write(zframe.NewInt(3)))
	require.NoError(t, w.Segment(0).Write(zframe.Undefined))
	err = w.Segment(0).Write(zframe.NewString("x"))
	assert.ErrorIs(t, err, zframe.ErrTypeMismatch)
	a, err := w.Close()
	require.NoError(t, err)
	vals, err := a.Values(rctx)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, zframe.KindFloat, vals[0].Kind())
	assert.Equal(t, 3.0, vals[0].Float())
	assert.True(t, vals[1].IsUndefined())
}

func TestLogicalReaders(t *testing.T) {
	rctx := newTestContext(t)
	a, err := sarray.FromValues(rctx, zframe.KindInt, ints(1000), 3)
	require.NoError(t, err)

	for _, n := range []int{1, 4, 7, 16} {
		r := a.ReaderN(rctx, n)
		require.Equal(t, n, r.NumSegments())
		var all []zframe.Value
		for i := 0; i < n; i++ {
			var got int64
			it := r.Segment(i)
			for {
				v, err := it.Read()
				require.NoError(t, err)
				if v == nil {
					break
				}
				all = append(all, *v)
				got++
			}
			assert.Equal(t, r.SegmentLen(i), got)
		}
		assert.Equal(t, ints(1000), all, "n=%d", n)
	}

	r, err := a.ReaderSizes(rctx, []int64{0, 10, 990})
	require.NoError(t, err)
	it := r.Segment(2)
	v, err := it.Read()
	require.NoError(t, err)
	assert.EqualValues(t, 10, v.Int())
	require.NoError(t, it.Close())

	_, err = a.ReaderSizes(rctx, []int64{10, 10})
	assert.True(t, zqe.IsInvalid(err))

	_, err = a.Reader(rctx).ReadRows(990, 1001, nil)
	assert.True(t, zqe.IsInvalid(err))
}

func TestConcatSharesSegments(t *testing.T) {
	rctx := newTestContext(t)
	a, err := sarray.FromValues(rctx, zframe.KindInt, ints(10), 2)
	require.NoError(t, err)
	b, err := sarray.Constant(rctx, zframe.KindInt, zframe.NewInt(-1), 5, 2)
	require.NoError(t, err)
	c, err := sarray.Concat(a, b, a)
	require.NoError(t, err)
	assert.Equal(t, 6, c.NumSegments())
	assert.EqualValues(t, 25, c.Len())
	vals, err := c.Values(rctx)
	require.NoError(t, err)
	assert.Equal(t, ints(10), vals[:10])
	for _, v := range vals[10:15] {
		assert.EqualValues(t, -1, v.Int())
	}
	assert.Equal(t, ints(10), vals[15:])

	s, err := sarray.FromValues(rctx, zframe.KindString, nil, 1)
	require.NoError(t, err)
	_, err = sarray.Concat(a, s)
	assert.True(t, zqe.IsInvalid(err))
}

func TestSaveOpen(t *testing.T) {
	rctx := newTestContext(t)
	vals := []zframe.Value{
		zframe.NewList([]zframe.Value{zframe.NewInt(1), zframe.NewString("x")}),
		zframe.Undefined,
		zframe.NewList(nil),
	}
	a, err := sarray.FromValues(rctx, zframe.KindList, vals, 2)
	require.NoError(t, err)
	dir := storage.MustParseURI("cache:///saved/col")
	require.NoError(t, a.Save(rctx, dir))
	err = a.Save(rctx, dir)
	assert.True(t, zqe.IsExists(err))

	b, err := sarray.Open(rctx, dir)
	require.NoError(t, err)
	assert.Equal(t, a.Kind(), b.Kind())
	assert.Equal(t, a.SegmentLens(), b.SegmentLens())
	got, err := b.Values(rctx)
	require.NoError(t, err)
	require.Len(t, got, len(vals))
	for k := range vals {
		assert.True(t, zframe.Equal(vals[k], got[k]), "row %d", k)
	}

	_, err = sarray.Open(rctx, storage.MustParseURI("cache:///saved/missing"))
	assert.True(t, zqe.IsNotFound(err))
}

func TestCreateTwice(t *testing.T) {
	rctx := newTestContext(t)
	dir := storage.MustParseURI("cache:///twice")
	w, err := sarray.CreateAt(rctx, dir, zframe.KindInt, 1)
	require.NoError(t, err)
	_, err = sarray.CreateAt(rctx, dir, zframe.KindInt, 1)
	assert.True(t, zqe.IsExists(err))

	// An array still being written cannot be opened.
	_, err = sarray.Open(rctx, dir)
	assert.True(t, zqe.IsConflict(err))
	_, err = w.Close()
	require.NoError(t, err)
	_, err = sarray.Open(rctx, dir)
	require.NoError(t, err)
}

func TestClosePanics(t *testing.T) {
	rctx := newTestContext(t)
	w, err := sarray.Create(rctx, zframe.KindInt, 1)
	require.NoError(t, err)
	_, err = w.Close()
	require.NoError(t, err)
	assert.Panics(t, func() { w.Segment(0).Write(zframe.NewInt(1)) })
	assert.Panics(t, func() { w.Close() })
}

func TestAbort(t *testing.T) {
	rctx := newTestContext(t)
	dir := storage.MustParseURI("cache:///aborted")
	w, err := sarray.CreateAt(rctx, dir, zframe.KindInt, 1)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, w.Segment(0).Write(zframe.NewInt(int64(i))))
	}
	require.NoError(t, w.Abort())
	ok, err := rctx.Engine.Exists(rctx, dir.AppendPath(sarray.IndexObject))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSketch(t *testing.T) {
	rctx := newTestContext(t)
	vals := []zframe.Value{
		zframe.NewFloat(2.5),
		zframe.NewInt(7),
		zframe.Undefined,
		zframe.NewFloat(-1),
		zframe.NewFloat(7),
		zframe.NewFloat(math.Inf(1)),
	}
	a, err := sarray.FromValues(rctx, zframe.KindFloat, vals, 2)
	require.NoError(t, err)
	s, err := a.Sketch(rctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, s.Count)
	assert.EqualValues(t, 1, s.Undefined)
	assert.Equal(t, -1.0, s.Min.Float())
	assert.True(t, math.IsInf(s.Max.Float(), 1))
	assert.InDelta(t, 4, s.Distinct, 1)

	empty, err := sarray.FromValues(rctx, zframe.KindInt, nil, 1)
	require.NoError(t, err)
	s, err = empty.Sketch(rctx)
	require.NoError(t, err)
	assert.Zero(t, s.Count)
	assert.True(t, s.Min.IsUndefined())
	assert.Zero(t, s.Distinct)
}
