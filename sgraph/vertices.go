package sgraph

import (
	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/zqe"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// AddVertices merges the rows of f into the named group, creating the
// group if needed.  Column idField holds the vertex ids.  A row whose id
// is already present overwrites that vertex's values for the columns of f
// and leaves its other fields and its local id unchanged.  Columns new to
// the group are added with Undefined values for existing vertices.
func (g *Graph) AddVertices(f *sframe.Frame, idField, group string) error {
	if f.NumRows() == 0 || f.NumColumns() == 0 {
		return nil
	}
	idPos, err := f.ColumnIndex(idField)
	if err != nil {
		return err
	}
	names := f.ColumnNames()
	for k, name := range names {
		if k != idPos && isPrivate(name) {
			return zqe.ErrInvalid("sgraph: field name %q is reserved", name)
		}
	}
	names[idPos] = VIDColumn
	if err := g.bootstrap(f.ColumnKind(idPos)); err != nil {
		return err
	}
	gid, err := g.AddGroup(group)
	if err != nil {
		return err
	}
	rows, err := f.Rows(g.rctx)
	if err != nil {
		return err
	}
	if err := g.mergeVertices(gid, names, f.ColumnKinds(), rows, idPos); err != nil {
		return err
	}
	g.rctx.Logger.Info("sgraph vertices added",
		zap.String("group", group),
		zap.Int64("rows", f.NumRows()),
		zap.Int64("vertices", g.numVerticesIn(gid)))
	return nil
}

// mergeVertices merges rows, whose columns are names and whose vertex id
// is at idPos, into group gid.
func (g *Graph) mergeVertices(gid int, names []string, kinds []zframe.Kind, rows [][]zframe.Value, idPos int) error {
	cur := g.vertices[gid][0]
	allNames, allKinds, colOf, err := unionSchema(cur, names, kinds, idPos, -1)
	if err != nil {
		return err
	}
	buckets := make([][][]zframe.Value, g.numPartitions)
	for _, row := range rows {
		vid := row[idPos]
		if vid.IsUndefined() {
			return zqe.ErrInvalid("sgraph: vertex id column cannot contain missing values")
		}
		p := g.PartitionOf(vid)
		buckets[p] = append(buckets[p], row)
	}
	parts := make([]*sframe.Frame, g.numPartitions)
	err = runtime.ParallelFor(g.rctx, g.numPartitions, func(p int) error {
		var err error
		parts[p], err = g.mergePartition(g.vertices[gid][p], allNames, allKinds, buckets[p], colOf, idPos)
		return err
	})
	if err != nil {
		return err
	}
	g.vertices[gid] = parts
	return nil
}

// unionSchema appends the columns of names that cur lacks.  colOf maps
// each column of names to its position in the union.  The columns at
// positions skip1 and skip2 of names are id columns and are not checked
// against cur's kinds.
func unionSchema(cur *sframe.Frame, names []string, kinds []zframe.Kind, skip1, skip2 int) ([]string, []zframe.Kind, []int, error) {
	allNames := cur.ColumnNames()
	allKinds := cur.ColumnKinds()
	colOf := make([]int, len(names))
	for k, name := range names {
		if j := slices.Index(allNames, name); j >= 0 {
			if k != skip1 && k != skip2 && allKinds[j] != kinds[k] {
				return nil, nil, nil, zqe.ErrInvalid("sgraph: field %q is %s, not %s", name, allKinds[j], kinds[k])
			}
			colOf[k] = j
			continue
		}
		colOf[k] = len(allNames)
		allNames = append(allNames, name)
		allKinds = append(allKinds, kinds[k])
	}
	return allNames, allKinds, colOf, nil
}

func (g *Graph) mergePartition(old *sframe.Frame, names []string, kinds []zframe.Kind, rows [][]zframe.Value, colOf []int, idPos int) (*sframe.Frame, error) {
	if len(rows) == 0 {
		return g.widen(old, names, kinds)
	}
	oldRows, err := old.Rows(g.rctx)
	if err != nil {
		return nil, err
	}
	index := make(map[any]int, len(oldRows)+len(rows))
	out := make([][]zframe.Value, len(oldRows), len(oldRows)+len(rows))
	for k, r := range oldRows {
		wide := make([]zframe.Value, len(names))
		copy(wide, r)
		out[k] = wide
		index[idKey(r[0])] = k
	}
	for _, r := range rows {
		key := idKey(r[idPos])
		k, ok := index[key]
		if !ok {
			k = len(out)
			out = append(out, make([]zframe.Value, len(names)))
			index[key] = k
		}
		for c, v := range r {
			out[k][colOf[c]] = v
		}
	}
	return sframe.FromRows(g.rctx, names, kinds, out, 1)
}

// widen adds Undefined columns to f for the trailing names it lacks.
func (g *Graph) widen(f *sframe.Frame, names []string, kinds []zframe.Kind) (*sframe.Frame, error) {
	for k := f.NumColumns(); k < len(names); k++ {
		col, err := sarray.ConstantSegments(g.rctx, kinds[k], zframe.Undefined, f.SegmentLens())
		if err != nil {
			return nil, err
		}
		if f, err = f.AddColumn(names[k], col); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// idKey returns a comparable key for a vertex id.
func idKey(v zframe.Value) any {
	switch v.Kind() {
	case zframe.KindInt:
		return v.Int()
	case zframe.KindString:
		return v.Str()
	}
	return v.String()
}

// vertexIDs returns the ids of a vertex partition indexed by local id.
func (g *Graph) vertexIDs(addr VertexPartitionAddress) ([]zframe.Value, error) {
	col, err := g.VertexPartition(addr).ColumnByName(VIDColumn)
	if err != nil {
		return nil, err
	}
	return col.Values(g.rctx)
}

// vertexIndexes maps each vertex id of group gid to its local id, per
// partition.
func (g *Graph) vertexIndexes(gid int) ([]map[any]int64, error) {
	indexes := make([]map[any]int64, g.numPartitions)
	err := runtime.ParallelFor(g.rctx, g.numPartitions, func(p int) error {
		ids, err := g.vertexIDs(VertexPartitionAddress{gid, p})
		if err != nil {
			return err
		}
		index := make(map[any]int64, len(ids))
		for k, id := range ids {
			index[idKey(id)] = int64(k)
		}
		indexes[p] = index
		return nil
	})
	return indexes, err
}

// ensureVertices adds a vertex with Undefined fields for every id in ids
// that group gid lacks.
func (g *Graph) ensureVertices(gid int, ids []zframe.Value) error {
	indexes, err := g.vertexIndexes(gid)
	if err != nil {
		return err
	}
	seen := make(map[any]struct{})
	var missing [][]zframe.Value
	for _, id := range ids {
		key := idKey(id)
		if _, ok := indexes[g.PartitionOf(id)][key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		missing = append(missing, []zframe.Value{id})
	}
	if len(missing) == 0 {
		return nil
	}
	return g.mergeVertices(gid, []string{VIDColumn}, []zframe.Kind{g.vidKind}, missing, 0)
}
