package compute

import (
	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/sgraph"
)

// vertexCache holds the vertex blocks of a graph, keyed by partition
// address.  It is only modified between blocks of scheduled work.
type vertexCache struct {
	g       *sgraph.Graph
	mutable map[int][]int
	blocks  map[sgraph.VertexPartitionAddress]*VertexBlock[[]zframe.Value]
	flush   bool
}

func newVertexCache(g *sgraph.Graph, mutable map[int][]int) *vertexCache {
	return &vertexCache{
		g:       g,
		mutable: mutable,
		blocks:  make(map[sgraph.VertexPartitionAddress]*VertexBlock[[]zframe.Value]),
		flush:   len(mutable) > 0,
	}
}

func (c *vertexCache) block(addr sgraph.VertexPartitionAddress) *VertexBlock[[]zframe.Value] {
	b, ok := c.blocks[addr]
	if !ok {
		b = NewFrameBlock(c.g.VertexPartition(addr), c.mutable[addr.Group])
		c.blocks[addr] = b
	}
	return b
}

// data returns the loaded rows of a vertex partition.
func (c *vertexCache) data(addr sgraph.VertexPartitionAddress) [][]zframe.Value {
	return c.blocks[addr].Data()
}

// load unloads the resident blocks not in need and loads those in need,
// using at most limit goroutines.
func (c *vertexCache) load(rctx *runtime.Context, need map[sgraph.VertexPartitionAddress]bool, limit int) error {
	for addr, b := range c.blocks {
		if !need[addr] {
			if err := b.Unload(rctx, c.flush); err != nil {
				return err
			}
		}
	}
	var blocks []*VertexBlock[[]zframe.Value]
	for addr := range need {
		blocks = append(blocks, c.block(addr))
	}
	return runtime.ParallelForLimit(rctx, len(blocks), limit, func(k int) error {
		return blocks[k].LoadIfNotLoaded(rctx)
	})
}

// close unloads every block and, if they are mutable, installs the
// flushed frames in the graph.
func (c *vertexCache) close(rctx *runtime.Context) error {
	for addr, b := range c.blocks {
		if err := b.Unload(rctx, c.flush); err != nil {
			return err
		}
		if c.flush {
			if err := c.g.SetVertexPartition(addr, b.Frame()); err != nil {
				return err
			}
		}
	}
	return nil
}

// combineCache holds the accumulator blocks of one vertex group, one per
// partition.
type combineCache[T any] struct {
	blocks []*VertexBlock[T]
}

func newCombineCache[T any](g *sgraph.Graph, group int, init T, codec Codec[T]) *combineCache[T] {
	blocks := make([]*VertexBlock[T], g.NumPartitions())
	for p := range blocks {
		n := g.VertexPartition(sgraph.VertexPartitionAddress{Group: group, Partition: p}).NumRows()
		blocks[p] = NewConstantBlock(n, init, codec)
	}
	return &combineCache[T]{blocks: blocks}
}

func (c *combineCache[T]) load(rctx *runtime.Context, need map[int]bool, limit int) error {
	var load []int
	for p, b := range c.blocks {
		if need[p] {
			load = append(load, p)
		} else if err := b.Unload(rctx, true); err != nil {
			return err
		}
	}
	return runtime.ParallelForLimit(rctx, len(load), limit, func(k int) error {
		return c.blocks[load[k]].LoadIfNotLoaded(rctx)
	})
}

// results flushes every accumulator and returns one array per partition.
func (c *combineCache[T]) results(rctx *runtime.Context) ([]*sarray.Array, error) {
	out := make([]*sarray.Array, len(c.blocks))
	for p, b := range c.blocks {
		var err error
		if out[p], err = b.materialize(rctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}
