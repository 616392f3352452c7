package sgraph_test

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/config"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/sgraph"
	"github.com/brimdata/zframe/zqe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestContext(t *testing.T) *runtime.Context {
	conf := config.Default()
	conf.SArray.BlockSize = 256
	rctx, err := runtime.NewContext(context.Background(), conf, storage.NewMemEngine(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(rctx.Cancel)
	return rctx
}

func frame(t *testing.T, rctx *runtime.Context, names []string, kinds []zframe.Kind, rows [][]zframe.Value) *sframe.Frame {
	f, err := sframe.FromRows(rctx, names, kinds, rows, 2)
	require.NoError(t, err)
	return f
}

func vertexFrame(t *testing.T, rctx *runtime.Context, n int) *sframe.Frame {
	rows := make([][]zframe.Value, n)
	for i := range rows {
		rows[i] = []zframe.Value{zframe.NewInt(int64(i)), zframe.NewString(fmt.Sprintf("v%d", i))}
	}
	return frame(t, rctx, []string{"id", "name"}, []zframe.Kind{zframe.KindInt, zframe.KindString}, rows)
}

// ring returns edges i -> i+1 mod n with weight i.
func ring(t *testing.T, rctx *runtime.Context, n int) *sframe.Frame {
	rows := make([][]zframe.Value, n)
	for i := range rows {
		rows[i] = []zframe.Value{
			zframe.NewInt(int64(i)),
			zframe.NewInt(int64((i + 1) % n)),
			zframe.NewFloat(float64(i)),
		}
	}
	return frame(t, rctx, []string{"src", "dst", "weight"}, []zframe.Kind{zframe.KindInt, zframe.KindInt, zframe.KindFloat}, rows)
}

// sortedRows returns the rows of f sorted by the given column.
func sortedRows(t *testing.T, rctx *runtime.Context, f *sframe.Frame, by string) [][]zframe.Value {
	rows, err := f.Rows(rctx)
	require.NoError(t, err)
	pos, err := f.ColumnIndex(by)
	require.NoError(t, err)
	sort.Slice(rows, func(i, j int) bool {
		return zframe.Less(rows[i][pos], rows[j][pos])
	})
	return rows
}

func TestNewPartitions(t *testing.T) {
	rctx := newTestContext(t)
	g, err := sgraph.New(rctx, 0)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultNumPartitions, g.NumPartitions())

	rctx.Config.Graph.NumPartitions = 5
	g, err = sgraph.New(rctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, g.NumPartitions())

	_, err = sgraph.New(rctx, -1)
	assert.True(t, zqe.IsInvalid(err))
}

func TestAddVertices(t *testing.T) {
	rctx := newTestContext(t)
	g, err := sgraph.New(rctx, 4)
	require.NoError(t, err)
	assert.True(t, g.Empty())
	assert.Equal(t, zframe.KindUndefined, g.VertexIDKind())

	require.NoError(t, g.AddVertices(vertexFrame(t, rctx, 100), "id", sgraph.DefaultGroup))
	assert.EqualValues(t, 100, g.NumVertices())
	assert.Equal(t, zframe.KindInt, g.VertexIDKind())
	fields, err := g.VertexFields(sgraph.DefaultGroup)
	require.NoError(t, err)
	assert.Equal(t, []string{sgraph.VIDColumn, "name"}, fields)

	for p := 0; p < g.NumPartitions(); p++ {
		part := g.VertexPartition(sgraph.VertexPartitionAddress{Group: 0, Partition: p})
		col, err := part.ColumnByName(sgraph.VIDColumn)
		require.NoError(t, err)
		ids, err := col.Values(rctx)
		require.NoError(t, err)
		for _, id := range ids {
			assert.Equal(t, p, g.PartitionOf(id))
		}
	}

	err = g.AddVertices(frame(t, rctx, []string{"id"}, []zframe.Kind{zframe.KindString}, [][]zframe.Value{{zframe.NewString("x")}}), "id", sgraph.DefaultGroup)
	assert.True(t, zqe.IsInvalid(err))
	err = g.AddVertices(frame(t, rctx, []string{"id", "__x"}, []zframe.Kind{zframe.KindInt, zframe.KindInt}, [][]zframe.Value{{zframe.NewInt(1), zframe.NewInt(1)}}), "id", sgraph.DefaultGroup)
	assert.True(t, zqe.IsInvalid(err))
	err = g.AddVertices(frame(t, rctx, []string{"id"}, []zframe.Kind{zframe.KindInt}, [][]zframe.Value{{zframe.Undefined}}), "id", sgraph.DefaultGroup)
	assert.True(t, zqe.IsInvalid(err))
}

func TestVertexOverride(t *testing.T) {
	rctx := newTestContext(t)
	g, err := sgraph.New(rctx, 3)
	require.NoError(t, err)
	require.NoError(t, g.AddVertices(vertexFrame(t, rctx, 10), "id", sgraph.DefaultGroup))
	update := frame(t, rctx, []string{"id", "age"}, []zframe.Kind{zframe.KindInt, zframe.KindInt}, [][]zframe.Value{
		{zframe.NewInt(3), zframe.NewInt(30)},
		{zframe.NewInt(42), zframe.NewInt(42)},
	})
	require.NoError(t, g.AddVertices(update, "id", sgraph.DefaultGroup))
	assert.EqualValues(t, 11, g.NumVertices())

	vs, err := g.Vertices([]zframe.Value{zframe.NewInt(3), zframe.NewInt(42), zframe.NewInt(5)}, nil, sgraph.DefaultGroup)
	require.NoError(t, err)
	assert.Equal(t, []string{sgraph.VIDColumn, "name", "age"}, vs.ColumnNames())
	assert.Equal(t, [][]zframe.Value{
		{zframe.NewInt(3), zframe.NewString("v3"), zframe.NewInt(30)},
		{zframe.NewInt(5), zframe.NewString("v5"), zframe.Undefined},
		{zframe.NewInt(42), zframe.Undefined, zframe.NewInt(42)},
	}, sortedRows(t, rctx, vs, sgraph.VIDColumn))

	vs, err = g.Vertices(nil, map[string]zframe.Value{"age": zframe.NewInt(30)}, sgraph.DefaultGroup)
	require.NoError(t, err)
	assert.EqualValues(t, 1, vs.NumRows())
	_, err = g.Vertices(nil, map[string]zframe.Value{"nope": zframe.NewInt(1)}, sgraph.DefaultGroup)
	assert.True(t, zqe.IsNotFound(err))
}

func TestAddEdges(t *testing.T) {
	rctx := newTestContext(t)
	g, err := sgraph.New(rctx, 4)
	require.NoError(t, err)
	require.NoError(t, g.AddEdges(ring(t, rctx, 50), "src", "dst", sgraph.DefaultGroup, sgraph.DefaultGroup))
	assert.EqualValues(t, 50, g.NumVertices())
	assert.EqualValues(t, 50, g.NumEdges())

	kinds, err := g.EdgeFieldKinds(sgraph.DefaultGroup, sgraph.DefaultGroup)
	require.NoError(t, err)
	assert.Equal(t, []zframe.Kind{zframe.KindInt, zframe.KindInt, zframe.KindFloat}, kinds)

	es, err := g.Edges(nil, nil, nil, sgraph.DefaultGroup, sgraph.DefaultGroup)
	require.NoError(t, err)
	rows := sortedRows(t, rctx, es, "weight")
	require.Len(t, rows, 50)
	for i, row := range rows {
		assert.Equal(t, []zframe.Value{
			zframe.NewInt(int64(i)),
			zframe.NewInt(int64((i + 1) % 50)),
			zframe.NewFloat(float64(i)),
		}, row)
	}

	// Out edges of 7, in edges of 7, and the pair 20 -> 21.
	es, err = g.Edges(
		[]zframe.Value{zframe.NewInt(7), zframe.Undefined, zframe.NewInt(20)},
		[]zframe.Value{zframe.Undefined, zframe.NewInt(7), zframe.NewInt(21)},
		nil, sgraph.DefaultGroup, sgraph.DefaultGroup)
	require.NoError(t, err)
	rows = sortedRows(t, rctx, es, "weight")
	require.Len(t, rows, 3)
	assert.Equal(t, zframe.NewFloat(6), rows[0][2])
	assert.Equal(t, zframe.NewFloat(7), rows[1][2])
	assert.Equal(t, zframe.NewFloat(20), rows[2][2])

	es, err = g.Edges(nil, nil, map[string]zframe.Value{"weight": zframe.NewFloat(9)}, sgraph.DefaultGroup, sgraph.DefaultGroup)
	require.NoError(t, err)
	assert.EqualValues(t, 1, es.NumRows())

	assert.Panics(t, func() {
		g.Edges([]zframe.Value{zframe.NewInt(1)}, nil, nil, sgraph.DefaultGroup, sgraph.DefaultGroup)
	})
}

func TestAddEdgesNewFields(t *testing.T) {
	rctx := newTestContext(t)
	g, err := sgraph.New(rctx, 2)
	require.NoError(t, err)
	require.NoError(t, g.AddEdges(ring(t, rctx, 6), "src", "dst", sgraph.DefaultGroup, sgraph.DefaultGroup))
	more := frame(t, rctx, []string{"a", "b", "label"}, []zframe.Kind{zframe.KindInt, zframe.KindInt, zframe.KindString}, [][]zframe.Value{
		{zframe.NewInt(0), zframe.NewInt(100), zframe.NewString("new")},
	})
	require.NoError(t, g.AddEdges(more, "a", "b", sgraph.DefaultGroup, sgraph.DefaultGroup))
	assert.EqualValues(t, 7, g.NumVertices())
	assert.EqualValues(t, 7, g.NumEdges())
	fields, err := g.EdgeFields(sgraph.DefaultGroup, sgraph.DefaultGroup)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{sgraph.SrcColumn, sgraph.DstColumn, "weight", "label"}, fields)

	es, err := g.Edges([]zframe.Value{zframe.NewInt(0)}, []zframe.Value{zframe.Undefined}, nil, sgraph.DefaultGroup, sgraph.DefaultGroup)
	require.NoError(t, err)
	rows, err := es.Rows(rctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	pos, err := es.ColumnIndex("label")
	require.NoError(t, err)
	var labels []zframe.Value
	for _, row := range rows {
		labels = append(labels, row[pos])
	}
	assert.ElementsMatch(t, []zframe.Value{zframe.Undefined, zframe.NewString("new")}, labels)

	bad := frame(t, rctx, []string{"a", "b", "weight"}, []zframe.Kind{zframe.KindInt, zframe.KindInt, zframe.KindString}, [][]zframe.Value{
		{zframe.NewInt(0), zframe.NewInt(1), zframe.NewString("heavy")},
	})
	assert.True(t, zqe.IsInvalid(g.AddEdges(bad, "a", "b", sgraph.DefaultGroup, sgraph.DefaultGroup)))
}

func TestGroups(t *testing.T) {
	rctx := newTestContext(t)
	g, err := sgraph.New(rctx, 2)
	require.NoError(t, err)
	users := frame(t, rctx, []string{"id"}, []zframe.Kind{zframe.KindString}, [][]zframe.Value{
		{zframe.NewString("alice")}, {zframe.NewString("bob")},
	})
	require.NoError(t, g.AddVertices(users, "id", "user"))
	likes := frame(t, rctx, []string{"who", "what"}, []zframe.Kind{zframe.KindString, zframe.KindString}, [][]zframe.Value{
		{zframe.NewString("alice"), zframe.NewString("tea")},
		{zframe.NewString("bob"), zframe.NewString("tea")},
		{zframe.NewString("bob"), zframe.NewString("coffee")},
	})
	require.NoError(t, g.AddEdges(likes, "who", "what", "user", "item"))
	assert.Equal(t, 3, g.NumGroups())
	n, err := g.NumVerticesIn("item")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = g.NumVerticesIn("user")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = g.NumEdgesBetween("user", "item")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	n, err = g.NumEdgesBetween("item", "user")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	_, err = g.NumVerticesIn("itme")
	require.Error(t, err)
	assert.True(t, zqe.IsNotFound(err))
	assert.Contains(t, err.Error(), `"item"`)
}

func TestFieldOperations(t *testing.T) {
	rctx := newTestContext(t)
	g, err := sgraph.New(rctx, 3)
	require.NoError(t, err)
	require.NoError(t, g.AddVertices(vertexFrame(t, rctx, 20), "id", sgraph.DefaultGroup))
	const group = sgraph.DefaultGroup

	require.NoError(t, g.InitVertexField("rank", zframe.KindFloat, zframe.NewFloat(1), group))
	require.NoError(t, g.CopyVertexField("rank", "rank0", group))
	require.NoError(t, g.RenameVertexFields([]string{"name"}, []string{"label"}, group))
	fields, err := g.VertexFields(group)
	require.NoError(t, err)
	assert.Equal(t, []string{sgraph.VIDColumn, "label", "rank", "rank0"}, fields)

	require.NoError(t, g.SelectVertexFields([]string{"rank"}, group))
	fields, err = g.VertexFields(group)
	require.NoError(t, err)
	assert.Equal(t, []string{sgraph.VIDColumn, "rank"}, fields)

	cols, err := g.VertexField("rank", group)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	var total int64
	for _, c := range cols {
		vals, err := c.Values(rctx)
		require.NoError(t, err)
		for _, v := range vals {
			assert.Equal(t, zframe.NewFloat(1), v)
		}
		total += c.Len()
	}
	assert.EqualValues(t, 20, total)

	doubled := make([]*sarray.Array, len(cols))
	for p, c := range cols {
		doubled[p], err = sarray.Constant(rctx, zframe.KindFloat, zframe.NewFloat(2), c.Len(), 1)
		require.NoError(t, err)
	}
	require.NoError(t, g.ReplaceVertexField(doubled, "rank", group))
	vs, err := g.Vertices([]zframe.Value{zframe.NewInt(4)}, nil, group)
	require.NoError(t, err)
	rows, err := vs.Rows(rctx)
	require.NoError(t, err)
	assert.Equal(t, [][]zframe.Value{{zframe.NewInt(4), zframe.NewFloat(2)}}, rows)

	require.NoError(t, g.RemoveVertexField("rank", group))
	fields, err = g.VertexFields(group)
	require.NoError(t, err)
	assert.Equal(t, []string{sgraph.VIDColumn}, fields)

	assert.True(t, zqe.IsInvalid(g.RemoveVertexField(sgraph.VIDColumn, group)))
	assert.True(t, zqe.IsInvalid(g.InitVertexField("__secret", zframe.KindInt, zframe.Undefined, group)))
	assert.True(t, zqe.IsInvalid(g.RenameVertexFields([]string{sgraph.VIDColumn}, []string{"id"}, group)))
	assert.True(t, zqe.IsInvalid(g.RenameVertexFields([]string{"a", "b"}, []string{"c"}, group)))
	assert.True(t, zqe.IsInvalid(g.ReplaceVertexField(doubled[:1], "rank", group)))
	require.NoError(t, g.CopyVertexField(sgraph.VIDColumn, "id", group))
}

func TestEdgeFieldOperations(t *testing.T) {
	rctx := newTestContext(t)
	g, err := sgraph.New(rctx, 2)
	require.NoError(t, err)
	require.NoError(t, g.AddEdges(ring(t, rctx, 10), "src", "dst", sgraph.DefaultGroup, sgraph.DefaultGroup))
	const a, b = sgraph.DefaultGroup, sgraph.DefaultGroup

	require.NoError(t, g.InitEdgeField("seen", zframe.KindInt, zframe.NewInt(0), a, b))
	require.NoError(t, g.CopyEdgeField("weight", "w", a, b))
	require.NoError(t, g.RenameEdgeFields([]string{"w"}, []string{"w2"}, a, b))
	require.NoError(t, g.RemoveEdgeField("weight", a, b))
	fields, err := g.EdgeFields(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{sgraph.SrcColumn, sgraph.DstColumn, "seen", "w2"}, fields)
	require.NoError(t, g.SelectEdgeFields(nil, a, b))
	fields, err = g.EdgeFields(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{sgraph.SrcColumn, sgraph.DstColumn}, fields)

	cols, err := g.EdgeField(sgraph.SrcColumn, a, b)
	require.NoError(t, err)
	assert.Len(t, cols, 4)
	assert.True(t, zqe.IsInvalid(g.ReplaceEdgeField(cols, sgraph.SrcColumn, a, b)))
	assert.True(t, zqe.IsInvalid(g.RemoveEdgeField(sgraph.DstColumn, a, b)))
}

func TestSaveOpen(t *testing.T) {
	rctx := newTestContext(t)
	g, err := sgraph.New(rctx, 3)
	require.NoError(t, err)
	require.NoError(t, g.AddVertices(vertexFrame(t, rctx, 30), "id", "people"))
	require.NoError(t, g.AddEdges(ring(t, rctx, 30), "src", "dst", "people", "people"))

	uri := storage.MustParseURI("cache:///graphs/ring")
	require.NoError(t, g.Save(uri))
	assert.True(t, zqe.IsExists(g.Save(uri)))

	g2, err := sgraph.Open(rctx, uri)
	require.NoError(t, err)
	assert.Equal(t, g.NumPartitions(), g2.NumPartitions())
	assert.Equal(t, zframe.KindInt, g2.VertexIDKind())
	assert.Equal(t, g.NumGroups(), g2.NumGroups())
	assert.EqualValues(t, 30, g2.NumVertices())
	assert.EqualValues(t, 30, g2.NumEdges())

	before, err := g.Edges(nil, nil, nil, "people", "people")
	require.NoError(t, err)
	after, err := g2.Edges(nil, nil, nil, "people", "people")
	require.NoError(t, err)
	assert.Equal(t, sortedRows(t, rctx, before, "weight"), sortedRows(t, rctx, after, "weight"))

	_, err = sgraph.Open(rctx, storage.MustParseURI("cache:///graphs/missing"))
	assert.Error(t, err)
}
