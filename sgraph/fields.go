package sgraph

import (
	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/zqe"
	"golang.org/x/exp/slices"
)

func (g *Graph) vertexGroup(group string) ([]*sframe.Frame, error) {
	gid, err := g.GroupID(group)
	if err != nil {
		return nil, err
	}
	return g.vertices[gid], nil
}

func (g *Graph) setVertexGroup(group string, parts []*sframe.Frame) {
	gid, _ := g.GroupID(group)
	g.vertices[gid] = parts
}

func (g *Graph) setEdgeGroup(groupA, groupB string, parts []*sframe.Frame) {
	a, _ := g.GroupID(groupA)
	b, _ := g.GroupID(groupB)
	g.edges[groupPair{a, b}] = parts
}

// VertexFields returns the field names of the named group, starting with
// VIDColumn.
func (g *Graph) VertexFields(group string) ([]string, error) {
	parts, err := g.vertexGroup(group)
	if err != nil {
		return nil, err
	}
	return parts[0].ColumnNames(), nil
}

func (g *Graph) VertexFieldKinds(group string) ([]zframe.Kind, error) {
	parts, err := g.vertexGroup(group)
	if err != nil {
		return nil, err
	}
	return parts[0].ColumnKinds(), nil
}

func (g *Graph) EdgeFields(groupA, groupB string) ([]string, error) {
	parts, err := g.edgeGroup(groupA, groupB)
	if err != nil {
		return nil, err
	}
	return parts[0].ColumnNames(), nil
}

// EdgeFieldKinds returns the kinds of the edge fields of groupA to
// groupB, reporting the source and target columns as the vertex id kind.
func (g *Graph) EdgeFieldKinds(groupA, groupB string) ([]zframe.Kind, error) {
	parts, err := g.edgeGroup(groupA, groupB)
	if err != nil {
		return nil, err
	}
	kinds := parts[0].ColumnKinds()
	for k, name := range parts[0].ColumnNames() {
		if name == SrcColumn || name == DstColumn {
			kinds[k] = g.vidKind
		}
	}
	return kinds, nil
}

func checkPublic(name string) error {
	if name == "" {
		return zqe.ErrInvalid("sgraph: empty field name")
	}
	if isPrivate(name) {
		return zqe.ErrInvalid("sgraph: field %q is reserved", name)
	}
	return nil
}

func mapFrames(parts []*sframe.Frame, fn func(int, *sframe.Frame) (*sframe.Frame, error)) ([]*sframe.Frame, error) {
	out := make([]*sframe.Frame, len(parts))
	for k, f := range parts {
		var err error
		if out[k], err = fn(k, f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// setColumn adds or replaces column name of f.
func setColumn(f *sframe.Frame, name string, col *sarray.Array) (*sframe.Frame, error) {
	if f.HasColumn(name) {
		return f.ReplaceColumn(name, col)
	}
	return f.AddColumn(name, col)
}

func (g *Graph) initField(parts []*sframe.Frame, field string, kind zframe.Kind, v zframe.Value) ([]*sframe.Frame, error) {
	if err := checkPublic(field); err != nil {
		return nil, err
	}
	return mapFrames(parts, func(_ int, f *sframe.Frame) (*sframe.Frame, error) {
		col, err := sarray.ConstantSegments(g.rctx, kind, v, f.SegmentLens())
		if err != nil {
			return nil, err
		}
		return setColumn(f, field, col)
	})
}

func copyField(parts []*sframe.Frame, field, newField string) ([]*sframe.Frame, error) {
	if err := checkPublic(newField); err != nil {
		return nil, err
	}
	return mapFrames(parts, func(_ int, f *sframe.Frame) (*sframe.Frame, error) {
		col, err := f.ColumnByName(field)
		if err != nil {
			return nil, err
		}
		return setColumn(f, newField, col)
	})
}

func removeField(parts []*sframe.Frame, field string) ([]*sframe.Frame, error) {
	if err := checkPublic(field); err != nil {
		return nil, err
	}
	return mapFrames(parts, func(_ int, f *sframe.Frame) (*sframe.Frame, error) {
		return f.RemoveColumn(field)
	})
}

// selectFields keeps the private columns, in place, followed by fields.
func selectFields(parts []*sframe.Frame, fields []string) ([]*sframe.Frame, error) {
	var keep []string
	for _, name := range parts[0].ColumnNames() {
		if isPrivate(name) {
			keep = append(keep, name)
		}
	}
	for _, name := range fields {
		if !slices.Contains(keep, name) {
			keep = append(keep, name)
		}
	}
	return mapFrames(parts, func(_ int, f *sframe.Frame) (*sframe.Frame, error) {
		return f.Select(keep...)
	})
}

func renameFields(parts []*sframe.Frame, oldNames, newNames []string) ([]*sframe.Frame, error) {
	if len(oldNames) != len(newNames) {
		return nil, zqe.ErrInvalid("sgraph: %d old names but %d new names", len(oldNames), len(newNames))
	}
	renames := make(map[string]string, len(oldNames))
	for k := range oldNames {
		if err := checkPublic(oldNames[k]); err != nil {
			return nil, err
		}
		if err := checkPublic(newNames[k]); err != nil {
			return nil, err
		}
		renames[oldNames[k]] = newNames[k]
	}
	return mapFrames(parts, func(_ int, f *sframe.Frame) (*sframe.Frame, error) {
		return f.Rename(renames)
	})
}

func fieldArrays(parts []*sframe.Frame, field string) ([]*sarray.Array, error) {
	cols := make([]*sarray.Array, len(parts))
	for k, f := range parts {
		var err error
		if cols[k], err = f.ColumnByName(field); err != nil {
			return nil, err
		}
	}
	return cols, nil
}

func replaceField(parts []*sframe.Frame, cols []*sarray.Array, field string) ([]*sframe.Frame, error) {
	if err := checkPublic(field); err != nil {
		return nil, err
	}
	if len(cols) != len(parts) {
		return nil, zqe.ErrInvalid("sgraph: %d arrays for %d partitions", len(cols), len(parts))
	}
	kind := cols[0].Kind()
	return mapFrames(parts, func(k int, f *sframe.Frame) (*sframe.Frame, error) {
		if cols[k].Kind() != kind {
			return nil, zqe.ErrInvalid("sgraph: field %q arrays have kinds %s and %s", field, kind, cols[k].Kind())
		}
		return setColumn(f, field, cols[k])
	})
}

// InitVertexField sets field to v for every vertex of the group, adding
// the field if needed.
func (g *Graph) InitVertexField(field string, kind zframe.Kind, v zframe.Value, group string) error {
	parts, err := g.vertexGroup(group)
	if err != nil {
		return err
	}
	if parts, err = g.initField(parts, field, kind, v); err != nil {
		return err
	}
	g.setVertexGroup(group, parts)
	return nil
}

// CopyVertexField copies field to newField, replacing newField if it
// exists.  No data is copied.
func (g *Graph) CopyVertexField(field, newField, group string) error {
	parts, err := g.vertexGroup(group)
	if err != nil {
		return err
	}
	if parts, err = copyField(parts, field, newField); err != nil {
		return err
	}
	g.setVertexGroup(group, parts)
	return nil
}

func (g *Graph) RemoveVertexField(field, group string) error {
	parts, err := g.vertexGroup(group)
	if err != nil {
		return err
	}
	if parts, err = removeField(parts, field); err != nil {
		return err
	}
	g.setVertexGroup(group, parts)
	return nil
}

// SelectVertexFields keeps only the id and the given fields.
func (g *Graph) SelectVertexFields(fields []string, group string) error {
	parts, err := g.vertexGroup(group)
	if err != nil {
		return err
	}
	if parts, err = selectFields(parts, fields); err != nil {
		return err
	}
	g.setVertexGroup(group, parts)
	return nil
}

func (g *Graph) RenameVertexFields(oldNames, newNames []string, group string) error {
	parts, err := g.vertexGroup(group)
	if err != nil {
		return err
	}
	if parts, err = renameFields(parts, oldNames, newNames); err != nil {
		return err
	}
	g.setVertexGroup(group, parts)
	return nil
}

// VertexField returns the arrays holding field, one per vertex partition.
func (g *Graph) VertexField(field, group string) ([]*sarray.Array, error) {
	parts, err := g.vertexGroup(group)
	if err != nil {
		return nil, err
	}
	return fieldArrays(parts, field)
}

// ReplaceVertexField sets field from one array per vertex partition,
// adding the field if needed.  Array i must have the rows of partition i.
func (g *Graph) ReplaceVertexField(cols []*sarray.Array, field, group string) error {
	parts, err := g.vertexGroup(group)
	if err != nil {
		return err
	}
	if parts, err = replaceField(parts, cols, field); err != nil {
		return err
	}
	g.setVertexGroup(group, parts)
	return nil
}

func (g *Graph) InitEdgeField(field string, kind zframe.Kind, v zframe.Value, groupA, groupB string) error {
	parts, err := g.edgeGroup(groupA, groupB)
	if err != nil {
		return err
	}
	if parts, err = g.initField(parts, field, kind, v); err != nil {
		return err
	}
	g.setEdgeGroup(groupA, groupB, parts)
	return nil
}

func (g *Graph) CopyEdgeField(field, newField, groupA, groupB string) error {
	parts, err := g.edgeGroup(groupA, groupB)
	if err != nil {
		return err
	}
	if parts, err = copyField(parts, field, newField); err != nil {
		return err
	}
	g.setEdgeGroup(groupA, groupB, parts)
	return nil
}

func (g *Graph) RemoveEdgeField(field, groupA, groupB string) error {
	parts, err := g.edgeGroup(groupA, groupB)
	if err != nil {
		return err
	}
	if parts, err = removeField(parts, field); err != nil {
		return err
	}
	g.setEdgeGroup(groupA, groupB, parts)
	return nil
}

func (g *Graph) SelectEdgeFields(fields []string, groupA, groupB string) error {
	parts, err := g.edgeGroup(groupA, groupB)
	if err != nil {
		return err
	}
	if parts, err = selectFields(parts, fields); err != nil {
		return err
	}
	g.setEdgeGroup(groupA, groupB, parts)
	return nil
}

func (g *Graph) RenameEdgeFields(oldNames, newNames []string, groupA, groupB string) error {
	parts, err := g.edgeGroup(groupA, groupB)
	if err != nil {
		return err
	}
	if parts, err = renameFields(parts, oldNames, newNames); err != nil {
		return err
	}
	g.setEdgeGroup(groupA, groupB, parts)
	return nil
}

// EdgeField returns the arrays holding field, one per edge partition in
// row-major order.
func (g *Graph) EdgeField(field, groupA, groupB string) ([]*sarray.Array, error) {
	parts, err := g.edgeGroup(groupA, groupB)
	if err != nil {
		return nil, err
	}
	return fieldArrays(parts, field)
}

func (g *Graph) ReplaceEdgeField(cols []*sarray.Array, field, groupA, groupB string) error {
	parts, err := g.edgeGroup(groupA, groupB)
	if err != nil {
		return err
	}
	if parts, err = replaceField(parts, cols, field); err != nil {
		return err
	}
	g.setEdgeGroup(groupA, groupB, parts)
	return nil
}
