package sgraph

import (
	"sync"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/pkg/hilbert"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sframe"
	"go.uber.org/zap"
)

// constraint requires column pos to equal value unless value is
// Undefined.
type constraint struct {
	pos   int
	value zframe.Value
}

func constraintsFor(f *sframe.Frame, fields map[string]zframe.Value) ([]constraint, error) {
	var out []constraint
	for name, v := range fields {
		pos, err := f.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		if !v.IsUndefined() {
			out = append(out, constraint{pos, v})
		}
	}
	return out, nil
}

func satisfies(row []zframe.Value, constraints []constraint) bool {
	for _, c := range constraints {
		if !zframe.Equal(row[c.pos], c.value) {
			return false
		}
	}
	return true
}

// Vertices returns the vertices of the named group whose ids are in ids
// (all vertices if ids is empty) and whose fields equal the values in
// fields.  The result has one segment per vertex partition.
func (g *Graph) Vertices(ids []zframe.Value, fields map[string]zframe.Value, group string) (*sframe.Frame, error) {
	gid, err := g.GroupID(group)
	if err != nil {
		return nil, err
	}
	parts := g.vertices[gid]
	if len(ids) == 0 && len(fields) == 0 {
		out := parts[0]
		for _, f := range parts[1:] {
			if out, err = out.Append(f); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	constraints, err := constraintsFor(parts[0], fields)
	if err != nil {
		return nil, err
	}
	var wanted map[any]struct{}
	if len(ids) > 0 {
		wanted = make(map[any]struct{}, len(ids))
		for _, id := range ids {
			wanted[idKey(id)] = struct{}{}
		}
	}
	w, err := sframe.Create(g.rctx, parts[0].ColumnNames(), parts[0].ColumnKinds(), g.numPartitions)
	if err != nil {
		return nil, err
	}
	err = runtime.ParallelFor(g.rctx, g.numPartitions, func(p int) error {
		it := parts[p].ReaderN(g.rctx, 1).Segment(0)
		defer it.Close()
		out := w.Segment(p)
		for {
			row, err := it.Read()
			if err != nil {
				return err
			}
			if row == nil {
				return nil
			}
			if wanted != nil {
				if _, ok := wanted[idKey(row[0])]; !ok {
					continue
				}
			}
			if satisfies(row, constraints) {
				if err := out.Write(row); err != nil {
					return err
				}
			}
		}
	})
	if err != nil {
		w.Abort()
		return nil, err
	}
	return w.Close()
}

// Edges returns the edges from groupA to groupB that match any pair
// (srcIDs[k], dstIDs[k]) and whose fields equal the values in fields.  An
// Undefined id matches any vertex; empty id lists match every edge.  The
// source and target columns of the result hold vertex ids rather than
// local ids.
func (g *Graph) Edges(srcIDs, dstIDs []zframe.Value, fields map[string]zframe.Value, groupA, groupB string) (*sframe.Frame, error) {
	if len(srcIDs) != len(dstIDs) {
		panic("sgraph: source and target id lists differ in length")
	}
	a, err := g.GroupID(groupA)
	if err != nil {
		return nil, err
	}
	b, err := g.GroupID(groupB)
	if err != nil {
		return nil, err
	}
	parts := g.edges[groupPair{a, b}]
	constraints, err := constraintsFor(parts[0], fields)
	if err != nil {
		return nil, err
	}
	filter := g.newEdgeFilter(srcIDs, dstIDs)
	names := parts[0].ColumnNames()
	kinds := parts[0].ColumnKinds()
	srcPos, dstPos := 0, 1
	for k, name := range names {
		switch name {
		case SrcColumn:
			srcPos = k
		case DstColumn:
			dstPos = k
		}
	}
	kinds[srcPos], kinds[dstPos] = g.vidKind, g.vidKind
	n := g.numPartitions
	w, err := sframe.Create(g.rctx, names, kinds, n*n)
	if err != nil {
		return nil, err
	}

	// ids caches the vertex ids of the partitions used by the current
	// block of edge partitions.
	var mu sync.Mutex
	ids := make(map[VertexPartitionAddress][]zframe.Value)
	preamble := func(block []hilbert.Coord) error {
		need := make(map[VertexPartitionAddress]bool)
		for _, c := range block {
			need[VertexPartitionAddress{a, c.Row}] = true
			need[VertexPartitionAddress{b, c.Col}] = true
		}
		for addr := range ids {
			if !need[addr] {
				delete(ids, addr)
			}
		}
		var load []VertexPartitionAddress
		for addr := range need {
			if _, ok := ids[addr]; !ok {
				load = append(load, addr)
			}
		}
		return runtime.ParallelFor(g.rctx, len(load), func(k int) error {
			vids, err := g.vertexIDs(load[k])
			if err != nil {
				return err
			}
			mu.Lock()
			ids[load[k]] = vids
			mu.Unlock()
			return nil
		})
	}
	body := func(c hilbert.Coord) error {
		srcVIDs := ids[VertexPartitionAddress{a, c.Row}]
		dstVIDs := ids[VertexPartitionAddress{b, c.Col}]
		f := parts[c.Row*n+c.Col]
		it := f.ReaderN(g.rctx, 1).Segment(0)
		defer it.Close()
		out := w.Segment(c.Row*n + c.Col)
		for {
			row, err := it.Read()
			if err != nil {
				return err
			}
			if row == nil {
				return nil
			}
			src, dst := srcVIDs[row[srcPos].Int()], dstVIDs[row[dstPos].Int()]
			if !filter.match(c.Row, c.Col, src, dst) || !satisfies(row, constraints) {
				continue
			}
			row[srcPos], row[dstPos] = src, dst
			if err := out.Write(row); err != nil {
				return err
			}
		}
	}
	if err := runtime.BlockedParallelFor(g.rctx, n, g.rctx.Parallelism(), preamble, body); err != nil {
		w.Abort()
		return nil, err
	}
	out, err := w.Close()
	if err != nil {
		return nil, err
	}
	g.rctx.Logger.Debug("sgraph edges selected", zap.Int64("edges", out.NumRows()))
	return out, nil
}

// edgeFilter matches edges against (source, target) id pairs, either of
// which may be a wildcard.
type edgeFilter struct {
	all bool
	// wildSrc[p] holds sources in partition p paired with a wildcard
	// target; wildDst likewise for targets.
	wildSrc []map[any]struct{}
	wildDst []map[any]struct{}
	pairs   map[[2]any]struct{}
}

func (g *Graph) newEdgeFilter(srcIDs, dstIDs []zframe.Value) *edgeFilter {
	f := &edgeFilter{all: true}
	for k := range srcIDs {
		if !srcIDs[k].IsUndefined() || !dstIDs[k].IsUndefined() {
			f.all = false
			break
		}
	}
	if f.all {
		return f
	}
	f.wildSrc = make([]map[any]struct{}, g.numPartitions)
	f.wildDst = make([]map[any]struct{}, g.numPartitions)
	for p := range f.wildSrc {
		f.wildSrc[p] = make(map[any]struct{})
		f.wildDst[p] = make(map[any]struct{})
	}
	f.pairs = make(map[[2]any]struct{})
	for k := range srcIDs {
		src, dst := srcIDs[k], dstIDs[k]
		switch {
		case src.IsUndefined():
			f.wildDst[g.PartitionOf(dst)][idKey(dst)] = struct{}{}
		case dst.IsUndefined():
			f.wildSrc[g.PartitionOf(src)][idKey(src)] = struct{}{}
		default:
			f.pairs[[2]any{idKey(src), idKey(dst)}] = struct{}{}
		}
	}
	return f
}

func (f *edgeFilter) match(p1, p2 int, src, dst zframe.Value) bool {
	if f.all {
		return true
	}
	if _, ok := f.wildSrc[p1][idKey(src)]; ok {
		return true
	}
	if _, ok := f.wildDst[p2][idKey(dst)]; ok {
		return true
	}
	_, ok := f.pairs[[2]any{idKey(src), idKey(dst)}]
	return ok
}
