package compute

import (
	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/pkg/hilbert"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/sgraph"
	"github.com/brimdata/zframe/zqe"
	"go.uber.org/zap"
)

// GatherFunc folds one edge into the accumulator of the center vertex.
// dir is In when the edge points at center and Out when it leaves center.
// Calls for the same center are serialized but arrive in no particular
// order.
type GatherFunc[T any] func(center, edge, other []zframe.Value, dir sgraph.Direction, acc *T)

type GatherOptions struct {
	Direction    sgraph.Direction
	CentralGroup string
	// ComputeGroups are the groups whose vertices are gathered from.  If
	// empty, only CentralGroup is.
	ComputeGroups []string
	// ParallelLimit bounds the edge partitions processed at once.  If
	// zero, the context's parallelism is used.
	ParallelLimit int
}

func (o GatherOptions) limit(rctx *runtime.Context) int {
	if o.ParallelLimit > 0 {
		return o.ParallelLimit
	}
	return rctx.Parallelism()
}

// gatherPass is one edge group visited by Gather.  in is set if
// accumulators of target vertices are updated and out if those of source
// vertices are.
type gatherPass struct {
	a, b    int
	in, out bool
}

// Gather computes, for every vertex v of opts.CentralGroup, the fold of fn
// over the edges touching v in direction opts.Direction, starting from
// init.  With sgraph.Any, fn is called once per incident edge, so a self
// loop is folded twice: first as In, then as Out.  The result has one
// array per partition of the central group, aligned with its vertices.
func Gather[T any](rctx *runtime.Context, g *sgraph.Graph, fn GatherFunc[T], init T, codec Codec[T], opts GatherOptions) ([]*sarray.Array, error) {
	if err := rctx.CheckCancel(); err != nil {
		return nil, err
	}
	if opts.Direction&sgraph.Any == 0 || opts.Direction&^sgraph.Any != 0 {
		return nil, zqe.ErrInvalid("compute: bad gather direction %d", int(opts.Direction))
	}
	central, err := g.GroupID(opts.CentralGroup)
	if err != nil {
		return nil, err
	}
	groups := opts.ComputeGroups
	if len(groups) == 0 {
		groups = []string{opts.CentralGroup}
	}
	var passes []gatherPass
	index := make(map[[2]int]int)
	add := func(a, b int, in, out bool) {
		k, ok := index[[2]int{a, b}]
		if !ok {
			k = len(passes)
			index[[2]int{a, b}] = k
			passes = append(passes, gatherPass{a: a, b: b})
		}
		passes[k].in = passes[k].in || in
		passes[k].out = passes[k].out || out
	}
	for _, name := range groups {
		other, err := g.GroupID(name)
		if err != nil {
			return nil, err
		}
		if opts.Direction&sgraph.In != 0 {
			add(other, central, true, false)
		}
		if opts.Direction&sgraph.Out != 0 {
			add(central, other, false, true)
		}
	}

	limit := opts.limit(rctx)
	vertices := newVertexCache(g, nil)
	combine := newCombineCache(g, central, init, codec)
	var locks stripedLocks
	for _, pass := range passes {
		pass := pass
		srcPos, dstPos, err := edgeIDPositions(g, pass.a, pass.b)
		if err != nil {
			return nil, err
		}
		preamble := func(block []hilbert.Coord) error {
			needV := make(map[sgraph.VertexPartitionAddress]bool)
			needC := make(map[int]bool)
			for _, c := range block {
				needV[sgraph.VertexPartitionAddress{Group: pass.a, Partition: c.Row}] = true
				needV[sgraph.VertexPartitionAddress{Group: pass.b, Partition: c.Col}] = true
				if pass.in {
					needC[c.Col] = true
				}
				if pass.out {
					needC[c.Row] = true
				}
			}
			if err := vertices.load(rctx, needV, limit); err != nil {
				return err
			}
			return combine.load(rctx, needC, limit)
		}
		body := func(c hilbert.Coord) error {
			srcRows := vertices.data(sgraph.VertexPartitionAddress{Group: pass.a, Partition: c.Row})
			dstRows := vertices.data(sgraph.VertexPartitionAddress{Group: pass.b, Partition: c.Col})
			var srcAcc, dstAcc []T
			if pass.out {
				srcAcc = combine.blocks[c.Row].Data()
			}
			if pass.in {
				dstAcc = combine.blocks[c.Col].Data()
			}
			addr := sgraph.EdgePartitionAddress{SrcGroup: pass.a, DstGroup: pass.b, Partition1: c.Row, Partition2: c.Col}
			return eachEdge(rctx, g.EdgePartition(addr), func(edge []zframe.Value) error {
				s, d := endpoint(edge, srcPos, srcRows), endpoint(edge, dstPos, dstRows)
				if pass.in {
					mu := locks.lock(c.Col, d)
					fn(dstRows[d], edge, srcRows[s], sgraph.In, &dstAcc[d])
					mu.Unlock()
				}
				if pass.out {
					mu := locks.lock(c.Row, s)
					fn(srcRows[s], edge, dstRows[d], sgraph.Out, &srcAcc[s])
					mu.Unlock()
				}
				return nil
			})
		}
		if err := runtime.BlockedParallelFor(rctx, g.NumPartitions(), limit, preamble, body); err != nil {
			vertices.close(rctx)
			return nil, err
		}
	}
	if err := vertices.close(rctx); err != nil {
		return nil, err
	}
	out, err := combine.results(rctx)
	if err != nil {
		return nil, err
	}
	rctx.Logger.Debug("compute gather done",
		zap.String("group", opts.CentralGroup),
		zap.Stringer("direction", opts.Direction),
		zap.Int("passes", len(passes)))
	return out, nil
}

func edgeIDPositions(g *sgraph.Graph, a, b int) (int, int, error) {
	f := g.EdgePartition(sgraph.EdgePartitionAddress{SrcGroup: a, DstGroup: b})
	srcPos, err := f.ColumnIndex(sgraph.SrcColumn)
	if err != nil {
		return 0, 0, err
	}
	dstPos, err := f.ColumnIndex(sgraph.DstColumn)
	if err != nil {
		return 0, 0, err
	}
	return srcPos, dstPos, nil
}

// endpoint returns the local id at pos of edge.  It panics if rows has no
// such vertex.
func endpoint(edge []zframe.Value, pos int, rows [][]zframe.Value) int64 {
	lvid := edge[pos].Int()
	if lvid < 0 || lvid >= int64(len(rows)) {
		panic("compute: edge references a missing vertex")
	}
	return lvid
}

// eachEdge calls fn on every row of an edge partition in order.
func eachEdge(rctx *runtime.Context, f *sframe.Frame, fn func([]zframe.Value) error) error {
	it := f.ReaderN(rctx, 1).Segment(0)
	defer it.Close()
	for {
		row, err := it.Read()
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
