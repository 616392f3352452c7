package sgraph

import (
	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/zqe"
	"go.uber.org/zap"
)

// AddEdges appends the rows of f as edges from groupA to groupB, creating
// the groups and any missing endpoint vertices.  Columns srcField and
// dstField hold the endpoint vertex ids; the other columns become edge
// fields, added with Undefined values for existing edges when new.
func (g *Graph) AddEdges(f *sframe.Frame, srcField, dstField, groupA, groupB string) error {
	if f.NumRows() == 0 || f.NumColumns() == 0 {
		return nil
	}
	srcPos, err := f.ColumnIndex(srcField)
	if err != nil {
		return err
	}
	dstPos, err := f.ColumnIndex(dstField)
	if err != nil {
		return err
	}
	if srcPos == dstPos {
		return zqe.ErrInvalid("sgraph: source and target are the same column %q", srcField)
	}
	names := f.ColumnNames()
	for k, name := range names {
		if k != srcPos && k != dstPos && isPrivate(name) {
			return zqe.ErrInvalid("sgraph: field name %q is reserved", name)
		}
	}
	names[srcPos] = SrcColumn
	names[dstPos] = DstColumn
	kinds := f.ColumnKinds()
	if kinds[srcPos] != kinds[dstPos] {
		return zqe.ErrInvalid("sgraph: source ids are %s but target ids are %s", kinds[srcPos], kinds[dstPos])
	}
	if err := g.bootstrap(kinds[srcPos]); err != nil {
		return err
	}
	a, err := g.AddGroup(groupA)
	if err != nil {
		return err
	}
	b, err := g.AddGroup(groupB)
	if err != nil {
		return err
	}
	rows, err := f.Rows(g.rctx)
	if err != nil {
		return err
	}
	srcs := make([]zframe.Value, len(rows))
	dsts := make([]zframe.Value, len(rows))
	for k, row := range rows {
		srcs[k], dsts[k] = row[srcPos], row[dstPos]
		if srcs[k].IsUndefined() || dsts[k].IsUndefined() {
			return zqe.ErrInvalid("sgraph: edge endpoints cannot contain missing values")
		}
	}
	if a == b {
		if err := g.ensureVertices(a, append(srcs, dsts...)); err != nil {
			return err
		}
	} else {
		if err := g.ensureVertices(a, srcs); err != nil {
			return err
		}
		if err := g.ensureVertices(b, dsts); err != nil {
			return err
		}
	}
	srcIndex, err := g.vertexIndexes(a)
	if err != nil {
		return err
	}
	dstIndex, err := g.vertexIndexes(b)
	if err != nil {
		return err
	}

	pair := groupPair{a, b}
	parts := g.edges[pair]
	kinds[srcPos], kinds[dstPos] = zframe.KindInt, zframe.KindInt
	allNames, allKinds, colOf, err := unionSchema(parts[0], names, kinds, srcPos, dstPos)
	if err != nil {
		return err
	}
	n := g.numPartitions
	buckets := make([][][]zframe.Value, n*n)
	for k, row := range rows {
		p1, p2 := g.PartitionOf(srcs[k]), g.PartitionOf(dsts[k])
		out := make([]zframe.Value, len(allNames))
		for c, v := range row {
			out[colOf[c]] = v
		}
		out[colOf[srcPos]] = zframe.NewInt(srcIndex[p1][idKey(srcs[k])])
		out[colOf[dstPos]] = zframe.NewInt(dstIndex[p2][idKey(dsts[k])])
		buckets[p1*n+p2] = append(buckets[p1*n+p2], out)
	}
	newParts := make([]*sframe.Frame, n*n)
	err = runtime.ParallelFor(g.rctx, n*n, func(k int) error {
		f, err := g.widen(parts[k], allNames, allKinds)
		if err != nil {
			return err
		}
		if len(buckets[k]) > 0 {
			added, err := sframe.FromRows(g.rctx, allNames, allKinds, buckets[k], 1)
			if err != nil {
				return err
			}
			if f, err = f.Append(added); err != nil {
				return err
			}
		}
		newParts[k] = f
		return nil
	})
	if err != nil {
		return err
	}
	g.edges[pair] = newParts
	numEdges, _ := g.NumEdgesBetween(groupA, groupB)
	g.rctx.Logger.Info("sgraph edges added",
		zap.String("src_group", groupA),
		zap.String("dst_group", groupB),
		zap.Int("rows", len(rows)),
		zap.Int64("src_vertices", g.numVerticesIn(a)),
		zap.Int64("dst_vertices", g.numVerticesIn(b)),
		zap.Int64("edges", numEdges))
	return nil
}
