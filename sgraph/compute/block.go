// Package compute runs vertex and edge programs over an sgraph.Graph.
//
// Work is scheduled over the grid of edge partitions in Hilbert order,
// a block of cells at a time.  Before each block the vertex partitions
// and accumulators it touches are loaded into memory and those it does
// not touch are unloaded, so that only a block's working set is resident.
package compute

import (
	"fmt"
	"sync"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/sframe"
)

// Codec converts accumulator values to and from the cells of an array of
// kind Kind.
type Codec[T any] struct {
	Kind   zframe.Kind
	Encode func(T) zframe.Value
	Decode func(zframe.Value) T
}

var (
	Int64Codec = Codec[int64]{
		Kind:   zframe.KindInt,
		Encode: zframe.NewInt,
		Decode: func(v zframe.Value) int64 { return v.Int() },
	}
	Float64Codec = Codec[float64]{
		Kind:   zframe.KindFloat,
		Encode: zframe.NewFloat,
		Decode: func(v zframe.Value) float64 { return v.Float() },
	}
)

// ValueCodec stores values as they are in an array of the given kind.
func ValueCodec(kind zframe.Kind) Codec[zframe.Value] {
	identity := func(v zframe.Value) zframe.Value { return v }
	return Codec[zframe.Value]{Kind: kind, Encode: identity, Decode: identity}
}

type BlockState int32

const (
	Unloaded BlockState = iota
	Loading
	Loaded
)

func (s BlockState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	}
	return fmt.Sprintf("compute.BlockState(%d)", int32(s))
}

// backing is the storage behind a VertexBlock.
type backing[T any] interface {
	load(*runtime.Context) ([]T, error)
	flush(*runtime.Context, []T) error
}

// VertexBlock is an in-memory, mutable view of the data of one vertex
// partition.  Loading is exclusive; once loaded the data may be read and
// written concurrently under caller-provided locking.  Writes reach the
// backing store only when the block is unloaded with flush set.
type VertexBlock[T any] struct {
	mu      sync.Mutex
	state   BlockState
	data    []T
	backing backing[T]
}

// NewArrayBlock returns an unloaded block backed by array a.
func NewArrayBlock[T any](a *sarray.Array, codec Codec[T]) *VertexBlock[T] {
	return &VertexBlock[T]{backing: &arrayBacking[T]{array: a, n: a.Len(), codec: codec}}
}

// NewConstantBlock returns an unloaded block of n copies of init.  It has
// no array until first flushed.
func NewConstantBlock[T any](n int64, init T, codec Codec[T]) *VertexBlock[T] {
	return &VertexBlock[T]{backing: &arrayBacking[T]{n: n, init: init, codec: codec}}
}

// NewFrameBlock returns an unloaded block of the rows of f.  A flush
// persists only the columns at positions mutable; changes to other
// columns are discarded.
func NewFrameBlock(f *sframe.Frame, mutable []int) *VertexBlock[[]zframe.Value] {
	return &VertexBlock[[]zframe.Value]{backing: &frameBacking{frame: f, mutable: mutable}}
}

func (b *VertexBlock[T]) State() BlockState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LoadIfNotLoaded loads the block unless it is already loaded.  Concurrent
// callers wait for a load in progress.
func (b *VertexBlock[T]) LoadIfNotLoaded(rctx *runtime.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Loaded {
		return nil
	}
	b.state = Loading
	data, err := b.backing.load(rctx)
	if err != nil {
		b.state = Unloaded
		return err
	}
	b.data = data
	b.state = Loaded
	return nil
}

// Unload releases the block's data, first writing it to a new backing
// store if flush is set.  It is a no-op for an unloaded block.
func (b *VertexBlock[T]) Unload(rctx *runtime.Context, flush bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Loaded {
		return nil
	}
	if flush {
		if err := b.backing.flush(rctx, b.data); err != nil {
			return err
		}
	}
	b.data = nil
	b.state = Unloaded
	return nil
}

// Data returns the loaded values, indexed by local vertex id.  It panics
// if the block is not loaded.
func (b *VertexBlock[T]) Data() []T {
	if b.state != Loaded {
		panic("compute: access to unloaded vertex block")
	}
	return b.data
}

// Array returns the array backing an array or constant block, or nil.
func (b *VertexBlock[T]) Array() *sarray.Array {
	if a, ok := b.backing.(*arrayBacking[T]); ok {
		return a.array
	}
	return nil
}

// Frame returns the frame backing a frame block, or nil.
func (b *VertexBlock[T]) Frame() *sframe.Frame {
	if f, ok := any(b.backing).(*frameBacking); ok {
		return f.frame
	}
	return nil
}

// materialize flushes the block to its backing array, loading it first if
// it has never been flushed.
func (b *VertexBlock[T]) materialize(rctx *runtime.Context) (*sarray.Array, error) {
	if b.State() == Unloaded && b.Array() != nil {
		return b.Array(), nil
	}
	if err := b.LoadIfNotLoaded(rctx); err != nil {
		return nil, err
	}
	if err := b.Unload(rctx, true); err != nil {
		return nil, err
	}
	return b.Array(), nil
}

type arrayBacking[T any] struct {
	array *sarray.Array
	n     int64
	init  T
	codec Codec[T]
}

func (a *arrayBacking[T]) load(rctx *runtime.Context) ([]T, error) {
	data := make([]T, a.n)
	if a.array == nil {
		for k := range data {
			data[k] = a.init
		}
		return data, nil
	}
	vals, err := a.array.Values(rctx)
	if err != nil {
		return nil, err
	}
	for k, v := range vals {
		data[k] = a.codec.Decode(v)
	}
	return data, nil
}

func (a *arrayBacking[T]) flush(rctx *runtime.Context, data []T) error {
	vals := make([]zframe.Value, len(data))
	for k, x := range data {
		vals[k] = a.codec.Encode(x)
	}
	array, err := sarray.FromValues(rctx, a.codec.Kind, vals, 1)
	if err != nil {
		return err
	}
	a.array = array
	return nil
}

type frameBacking struct {
	frame   *sframe.Frame
	mutable []int
}

func (f *frameBacking) load(rctx *runtime.Context) ([][]zframe.Value, error) {
	return f.frame.Rows(rctx)
}

func (f *frameBacking) flush(rctx *runtime.Context, data [][]zframe.Value) error {
	if len(f.mutable) == 0 {
		return nil
	}
	rows, err := f.frame.Rows(rctx)
	if err != nil {
		return err
	}
	for k, row := range rows {
		for _, pos := range f.mutable {
			row[pos] = data[k][pos]
		}
	}
	frame, err := sframe.FromRows(rctx, f.frame.ColumnNames(), f.frame.ColumnKinds(), rows, 1)
	if err != nil {
		return err
	}
	f.frame = frame
	return nil
}
