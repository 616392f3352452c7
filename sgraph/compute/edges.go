package compute

import (
	"sync"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/pkg/hilbert"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/sgraph"
	"github.com/brimdata/zframe/zqe"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// EdgeFunc maps an edge and its endpoints to a value.  edge may be
// modified but changes are not kept.
type EdgeFunc[T any] func(src, edge, dst []zframe.Value) T

type EdgeOptions struct {
	GroupA string
	GroupB string
	// ParallelLimit bounds the edge partitions processed at once.  If
	// zero, the context's parallelism is used.
	ParallelLimit int
}

// ParallelForEdges applies fn to every edge from opts.GroupA to
// opts.GroupB.  The result is indexed by source and target partition and
// each array is aligned with the rows of its edge partition.
func ParallelForEdges[T any](rctx *runtime.Context, g *sgraph.Graph, fn EdgeFunc[T], codec Codec[T], opts EdgeOptions) ([][]*sarray.Array, error) {
	if err := rctx.CheckCancel(); err != nil {
		return nil, err
	}
	a, err := g.GroupID(opts.GroupA)
	if err != nil {
		return nil, err
	}
	b, err := g.GroupID(opts.GroupB)
	if err != nil {
		return nil, err
	}
	srcPos, dstPos, err := edgeIDPositions(g, a, b)
	if err != nil {
		return nil, err
	}
	n := g.NumPartitions()
	out := make([][]*sarray.Array, n)
	for p := range out {
		out[p] = make([]*sarray.Array, n)
	}
	limit := opts.ParallelLimit
	if limit <= 0 {
		limit = rctx.Parallelism()
	}
	vertices := newVertexCache(g, nil)
	preamble := func(block []hilbert.Coord) error {
		need := make(map[sgraph.VertexPartitionAddress]bool)
		for _, c := range block {
			need[sgraph.VertexPartitionAddress{Group: a, Partition: c.Row}] = true
			need[sgraph.VertexPartitionAddress{Group: b, Partition: c.Col}] = true
		}
		return vertices.load(rctx, need, limit)
	}
	body := func(c hilbert.Coord) error {
		srcRows := vertices.data(sgraph.VertexPartitionAddress{Group: a, Partition: c.Row})
		dstRows := vertices.data(sgraph.VertexPartitionAddress{Group: b, Partition: c.Col})
		w, err := sarray.Create(rctx, codec.Kind, 1)
		if err != nil {
			return err
		}
		seg := w.Segment(0)
		addr := sgraph.EdgePartitionAddress{SrcGroup: a, DstGroup: b, Partition1: c.Row, Partition2: c.Col}
		err = eachEdge(rctx, g.EdgePartition(addr), func(edge []zframe.Value) error {
			s, d := endpoint(edge, srcPos, srcRows), endpoint(edge, dstPos, dstRows)
			return seg.Write(codec.Encode(fn(srcRows[s], edge, dstRows[d])))
		})
		if err != nil {
			w.Abort()
			return err
		}
		out[c.Row][c.Col], err = w.Close()
		return err
	}
	err = runtime.BlockedParallelFor(rctx, n, limit, preamble, body)
	if cerr := vertices.close(rctx); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TripleFunc updates an edge and its endpoints in place.
type TripleFunc func(src, edge, dst []zframe.Value)

// TripleApply calls fn on every edge between vertices of the first vertex
// group, holding locks on both endpoints.  Changes to the named vertex and
// edge fields are written back to the graph; other changes are discarded.
func TripleApply(rctx *runtime.Context, g *sgraph.Graph, fn TripleFunc, mutatedVertexFields, mutatedEdgeFields []string) error {
	if err := rctx.CheckCancel(); err != nil {
		return err
	}
	const group = 0
	name := g.GroupName(group)
	vertexPos, err := fieldPositions(g.VertexPartition(sgraph.VertexPartitionAddress{Group: group}), mutatedVertexFields)
	if err != nil {
		return err
	}
	edges := g.EdgePartition(sgraph.EdgePartitionAddress{SrcGroup: group, DstGroup: group})
	edgePos, err := fieldPositions(edges, mutatedEdgeFields)
	if err != nil {
		return err
	}
	srcPos, dstPos, err := edgeIDPositions(g, group, group)
	if err != nil {
		return err
	}
	names, kinds := edges.ColumnNames(), edges.ColumnKinds()
	var mutable map[int][]int
	if len(vertexPos) > 0 {
		mutable = map[int][]int{group: vertexPos}
	}
	vertices := newVertexCache(g, mutable)
	n := g.NumPartitions()
	var mu sync.Mutex
	updated := make(map[sgraph.EdgePartitionAddress]*sframe.Frame)
	var locks stripedLocks
	preamble := func(block []hilbert.Coord) error {
		need := make(map[sgraph.VertexPartitionAddress]bool)
		for _, c := range block {
			need[sgraph.VertexPartitionAddress{Group: group, Partition: c.Row}] = true
			need[sgraph.VertexPartitionAddress{Group: group, Partition: c.Col}] = true
		}
		return vertices.load(rctx, need, rctx.Parallelism())
	}
	body := func(c hilbert.Coord) error {
		srcRows := vertices.data(sgraph.VertexPartitionAddress{Group: group, Partition: c.Row})
		dstRows := vertices.data(sgraph.VertexPartitionAddress{Group: group, Partition: c.Col})
		addr := sgraph.EdgePartitionAddress{SrcGroup: group, DstGroup: group, Partition1: c.Row, Partition2: c.Col}
		var rows [][]zframe.Value
		err := eachEdge(rctx, g.EdgePartition(addr), func(edge []zframe.Value) error {
			s, d := endpoint(edge, srcPos, srcRows), endpoint(edge, dstPos, dstRows)
			var orig []zframe.Value
			if len(edgePos) > 0 {
				orig = slices.Clone(edge)
			}
			unlock := locks.lockPair(c.Row, s, c.Col, d)
			fn(srcRows[s], edge, dstRows[d])
			unlock()
			if orig != nil {
				for _, pos := range edgePos {
					orig[pos] = edge[pos]
				}
				rows = append(rows, orig)
			}
			return nil
		})
		if err != nil || len(edgePos) == 0 {
			return err
		}
		f, err := sframe.FromRows(rctx, names, kinds, rows, 1)
		if err != nil {
			return err
		}
		mu.Lock()
		updated[addr] = f
		mu.Unlock()
		return nil
	}
	err = runtime.BlockedParallelFor(rctx, n, rctx.Parallelism(), preamble, body)
	if cerr := vertices.close(rctx); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	for addr, f := range updated {
		if err := g.SetEdgePartition(addr, f); err != nil {
			return err
		}
	}
	rctx.Logger.Debug("compute triple apply done",
		zap.String("group", name),
		zap.Strings("vertex_fields", mutatedVertexFields),
		zap.Strings("edge_fields", mutatedEdgeFields))
	return nil
}

// fieldPositions returns the columns of f named by fields, which must not
// be reserved.
func fieldPositions(f *sframe.Frame, fields []string) ([]int, error) {
	positions := make([]int, 0, len(fields))
	for _, field := range fields {
		if slices.Contains([]string{sgraph.VIDColumn, sgraph.SrcColumn, sgraph.DstColumn}, field) {
			return nil, zqe.ErrInvalid("compute: field %q cannot be modified", field)
		}
		pos, err := f.ColumnIndex(field)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}
