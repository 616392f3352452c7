package compute_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/config"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/sgraph"
	"github.com/brimdata/zframe/sgraph/compute"
	"github.com/brimdata/zframe/zqe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestContext(t *testing.T, parallelism int) *runtime.Context {
	conf := config.Default()
	conf.Parallelism = parallelism
	conf.SArray.BlockSize = 512
	rctx, err := runtime.NewContext(context.Background(), conf, storage.NewMemEngine(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(rctx.Cancel)
	return rctx
}

type edge struct{ src, dst int64 }

// randomGraph returns a graph of n vertices with field x equal to the id,
// and m random edges, self loops included, with weight 1.
func randomGraph(t *testing.T, rctx *runtime.Context, partitions, n, m int) (*sgraph.Graph, []edge) {
	g, err := sgraph.New(rctx, partitions)
	require.NoError(t, err)
	vrows := make([][]zframe.Value, n)
	for i := range vrows {
		vrows[i] = []zframe.Value{zframe.NewInt(int64(i)), zframe.NewInt(int64(i))}
	}
	vf, err := sframe.FromRows(rctx, []string{"id", "x"}, []zframe.Kind{zframe.KindInt, zframe.KindInt}, vrows, 3)
	require.NoError(t, err)
	require.NoError(t, g.AddVertices(vf, "id", sgraph.DefaultGroup))

	r := rand.New(rand.NewSource(42))
	edges := make([]edge, m)
	erows := make([][]zframe.Value, m)
	for k := range edges {
		edges[k] = edge{r.Int63n(int64(n)), r.Int63n(int64(n))}
		if k%50 == 0 {
			edges[k].dst = edges[k].src
		}
		erows[k] = []zframe.Value{zframe.NewInt(edges[k].src), zframe.NewInt(edges[k].dst), zframe.NewFloat(1)}
	}
	ef, err := sframe.FromRows(rctx, []string{"src", "dst", "weight"}, []zframe.Kind{zframe.KindInt, zframe.KindInt, zframe.KindFloat}, erows, 3)
	require.NoError(t, err)
	require.NoError(t, g.AddEdges(ef, "src", "dst", sgraph.DefaultGroup, sgraph.DefaultGroup))
	return g, edges
}

// byVertex maps the per-partition results of a gather to vertex ids.
func byVertex(t *testing.T, rctx *runtime.Context, g *sgraph.Graph, group string, arrays []*sarray.Array) map[int64]zframe.Value {
	gid, err := g.GroupID(group)
	require.NoError(t, err)
	out := make(map[int64]zframe.Value)
	for p, a := range arrays {
		ids, err := g.VertexPartition(sgraph.VertexPartitionAddress{Group: gid, Partition: p}).ColumnByName(sgraph.VIDColumn)
		require.NoError(t, err)
		idVals, err := ids.Values(rctx)
		require.NoError(t, err)
		vals, err := a.Values(rctx)
		require.NoError(t, err)
		require.Len(t, vals, len(idVals))
		for k, id := range idVals {
			out[id.Int()] = vals[k]
		}
	}
	return out
}

func TestGatherSumIndependentOfParallelism(t *testing.T) {
	const n, m = 200, 1000
	for _, threads := range []int{1, 4, 16} {
		rctx := newTestContext(t, threads)
		g, edges := randomGraph(t, rctx, 4, n, m)
		expected := make(map[int64]int64)
		for _, e := range edges {
			expected[e.dst] += e.src
		}
		sum := func(_, _, other []zframe.Value, dir sgraph.Direction, acc *int64) {
			assert.Equal(t, sgraph.In, dir)
			*acc += other[1].Int()
		}
		arrays, err := compute.Gather[int64](rctx, g, sum, 10, compute.Int64Codec, compute.GatherOptions{
			Direction:     sgraph.In,
			CentralGroup:  sgraph.DefaultGroup,
			ParallelLimit: threads,
		})
		require.NoError(t, err)
		require.Len(t, arrays, 4)
		got := byVertex(t, rctx, g, sgraph.DefaultGroup, arrays)
		require.Len(t, got, n)
		for id := int64(0); id < n; id++ {
			assert.Equal(t, 10+expected[id], got[id].Int(), "vertex %d with %d threads", id, threads)
		}
	}
}

func TestDegrees(t *testing.T) {
	rctx := newTestContext(t, 4)
	g, edges := randomGraph(t, rctx, 3, 100, 400)
	in := make(map[int64]int64)
	out := make(map[int64]int64)
	for _, e := range edges {
		out[e.src]++
		in[e.dst]++
	}
	for _, tc := range []struct {
		dir    sgraph.Direction
		expect func(int64) int64
	}{
		{sgraph.In, func(v int64) int64 { return in[v] }},
		{sgraph.Out, func(v int64) int64 { return out[v] }},
		{sgraph.Any, func(v int64) int64 { return in[v] + out[v] }},
	} {
		arrays, err := compute.Degrees(rctx, g, tc.dir, sgraph.DefaultGroup)
		require.NoError(t, err)
		got := byVertex(t, rctx, g, sgraph.DefaultGroup, arrays)
		for v := int64(0); v < 100; v++ {
			assert.Equal(t, tc.expect(v), got[v].Int(), "%s degree of %d", tc.dir, v)
		}
	}
}

func TestSelfLoopAnyDirection(t *testing.T) {
	rctx := newTestContext(t, 2)
	g, err := sgraph.New(rctx, 2)
	require.NoError(t, err)
	ef, err := sframe.FromRows(rctx, []string{"src", "dst"}, []zframe.Kind{zframe.KindInt, zframe.KindInt}, [][]zframe.Value{
		{zframe.NewInt(7), zframe.NewInt(7)},
	}, 1)
	require.NoError(t, err)
	require.NoError(t, g.AddEdges(ef, "src", "dst", sgraph.DefaultGroup, sgraph.DefaultGroup))
	var dirs []sgraph.Direction
	record := func(_, _, _ []zframe.Value, dir sgraph.Direction, acc *int64) {
		dirs = append(dirs, dir)
		*acc++
	}
	arrays, err := compute.Gather[int64](rctx, g, record, 0, compute.Int64Codec, compute.GatherOptions{
		Direction:    sgraph.Any,
		CentralGroup: sgraph.DefaultGroup,
	})
	require.NoError(t, err)
	assert.Equal(t, []sgraph.Direction{sgraph.In, sgraph.Out}, dirs)
	got := byVertex(t, rctx, g, sgraph.DefaultGroup, arrays)
	assert.Equal(t, zframe.NewInt(2), got[7])
}

func TestGatherAcrossGroups(t *testing.T) {
	rctx := newTestContext(t, 4)
	g, err := sgraph.New(rctx, 3)
	require.NoError(t, err)
	ef, err := sframe.FromRows(rctx, []string{"user", "item"}, []zframe.Kind{zframe.KindString, zframe.KindString}, [][]zframe.Value{
		{zframe.NewString("ann"), zframe.NewString("tea")},
		{zframe.NewString("bob"), zframe.NewString("tea")},
		{zframe.NewString("bob"), zframe.NewString("jam")},
	}, 1)
	require.NoError(t, err)
	require.NoError(t, g.AddEdges(ef, "user", "item", "user", "item"))
	arrays, err := compute.Degrees(rctx, g, sgraph.In, "item")
	require.NoError(t, err)
	gid, err := g.GroupID("item")
	require.NoError(t, err)
	counts := make(map[string]int64)
	for p, a := range arrays {
		ids, err := g.VertexPartition(sgraph.VertexPartitionAddress{Group: gid, Partition: p}).ColumnByName(sgraph.VIDColumn)
		require.NoError(t, err)
		idVals, err := ids.Values(rctx)
		require.NoError(t, err)
		vals, err := a.Values(rctx)
		require.NoError(t, err)
		for k, id := range idVals {
			counts[id.Str()] = vals[k].Int()
		}
	}
	assert.Equal(t, map[string]int64{"tea": 2, "jam": 1}, counts)

	_, err = compute.Gather[int64](rctx, g, nil, 0, compute.Int64Codec, compute.GatherOptions{Direction: 0, CentralGroup: "item"})
	assert.True(t, zqe.IsInvalid(err))
	_, err = compute.Degrees(rctx, g, sgraph.In, "nope")
	assert.True(t, zqe.IsNotFound(err))
}

func TestVertexBlock(t *testing.T) {
	rctx := newTestContext(t, 1)
	a, err := sarray.FromValues(rctx, zframe.KindFloat, []zframe.Value{zframe.NewFloat(1), zframe.NewFloat(2)}, 1)
	require.NoError(t, err)
	b := compute.NewArrayBlock(a, compute.Float64Codec)
	assert.Equal(t, compute.Unloaded, b.State())
	assert.Panics(t, func() { b.Data() })
	require.NoError(t, b.Unload(rctx, true))

	require.NoError(t, b.LoadIfNotLoaded(rctx))
	require.NoError(t, b.LoadIfNotLoaded(rctx))
	assert.Equal(t, compute.Loaded, b.State())
	assert.Equal(t, []float64{1, 2}, b.Data())

	b.Data()[0] = 5
	require.NoError(t, b.Unload(rctx, false))
	require.NoError(t, b.LoadIfNotLoaded(rctx))
	assert.Equal(t, []float64{1, 2}, b.Data())
	assert.Same(t, a, b.Array())

	b.Data()[0] = 5
	require.NoError(t, b.Unload(rctx, true))
	require.NoError(t, b.Unload(rctx, true))
	assert.Equal(t, compute.Unloaded, b.State())
	require.NoError(t, b.LoadIfNotLoaded(rctx))
	assert.Equal(t, []float64{5, 2}, b.Data())
	vals, err := a.Values(rctx)
	require.NoError(t, err)
	assert.Equal(t, zframe.NewFloat(1), vals[0])

	c := compute.NewConstantBlock(3, "x", compute.Codec[string]{
		Kind:   zframe.KindString,
		Encode: zframe.NewString,
		Decode: func(v zframe.Value) string { return v.Str() },
	})
	assert.Nil(t, c.Array())
	require.NoError(t, c.LoadIfNotLoaded(rctx))
	assert.Equal(t, []string{"x", "x", "x"}, c.Data())
	require.NoError(t, c.Unload(rctx, true))
	require.NotNil(t, c.Array())
	assert.EqualValues(t, 3, c.Array().Len())
}

func TestParallelForEdges(t *testing.T) {
	rctx := newTestContext(t, 4)
	g, edges := randomGraph(t, rctx, 3, 50, 300)
	diff := func(src, edge, dst []zframe.Value) float64 {
		edge[2] = zframe.NewFloat(100)
		return float64(dst[1].Int()-src[1].Int()) * edge[2].Float()
	}
	grid, err := compute.ParallelForEdges(rctx, g, diff, compute.Float64Codec, compute.EdgeOptions{})
	require.NoError(t, err)
	require.Len(t, grid, 3)
	var got, expected float64
	for p1 := range grid {
		require.Len(t, grid[p1], 3)
		for p2, a := range grid[p1] {
			part := g.EdgePartition(sgraph.EdgePartitionAddress{Partition1: p1, Partition2: p2})
			assert.Equal(t, part.NumRows(), a.Len())
			vals, err := a.Values(rctx)
			require.NoError(t, err)
			for _, v := range vals {
				got += v.Float()
			}
		}
	}
	for _, e := range edges {
		expected += float64(e.dst-e.src) * 100
	}
	assert.Equal(t, expected, got)

	// Edge data changes are not kept.
	es, err := g.Edges(nil, nil, map[string]zframe.Value{"weight": zframe.NewFloat(1)}, sgraph.DefaultGroup, sgraph.DefaultGroup)
	require.NoError(t, err)
	assert.EqualValues(t, len(edges), es.NumRows())
}

func TestTripleApply(t *testing.T) {
	rctx := newTestContext(t, 4)
	g, edges := randomGraph(t, rctx, 3, 60, 300)
	require.NoError(t, g.InitVertexField("out", zframe.KindInt, zframe.NewInt(0), sgraph.DefaultGroup))
	require.NoError(t, g.InitVertexField("ignored", zframe.KindInt, zframe.NewInt(0), sgraph.DefaultGroup))
	fields, err := g.VertexFields(sgraph.DefaultGroup)
	require.NoError(t, err)
	require.Equal(t, []string{sgraph.VIDColumn, "x", "out", "ignored"}, fields)

	apply := func(src, edge, dst []zframe.Value) {
		src[2] = zframe.NewInt(src[2].Int() + 1)
		src[3] = zframe.NewInt(1)
		edge[2] = zframe.NewFloat(float64(src[1].Int() + dst[1].Int()))
	}
	require.NoError(t, compute.TripleApply(rctx, g, apply, []string{"out"}, []string{"weight"}))

	out := make(map[int64]int64)
	for _, e := range edges {
		out[e.src]++
	}
	vs, err := g.Vertices(nil, nil, sgraph.DefaultGroup)
	require.NoError(t, err)
	rows, err := vs.Rows(rctx)
	require.NoError(t, err)
	require.Len(t, rows, 60)
	for _, row := range rows {
		assert.Equal(t, out[row[0].Int()], row[2].Int(), "vertex %s", row[0])
		assert.Equal(t, zframe.NewInt(0), row[3])
	}

	es, err := g.Edges(nil, nil, nil, sgraph.DefaultGroup, sgraph.DefaultGroup)
	require.NoError(t, err)
	erows, err := es.Rows(rctx)
	require.NoError(t, err)
	require.Len(t, erows, len(edges))
	for _, row := range erows {
		assert.Equal(t, float64(row[0].Int()+row[1].Int()), row[2].Float())
	}

	err = compute.TripleApply(rctx, g, apply, []string{sgraph.VIDColumn}, nil)
	assert.True(t, zqe.IsInvalid(err))
	err = compute.TripleApply(rctx, g, apply, nil, []string{"missing"})
	assert.True(t, zqe.IsNotFound(err))
}

func TestCancelled(t *testing.T) {
	rctx := newTestContext(t, 2)
	g, _ := randomGraph(t, rctx, 2, 20, 40)
	rctx.Cancel()
	_, err := compute.Degrees(rctx, g, sgraph.Any, sgraph.DefaultGroup)
	assert.ErrorIs(t, err, runtime.ErrCancelled)
	weight := func(src, edge, dst []zframe.Value) float64 { return edge[2].Float() }
	_, err = compute.ParallelForEdges(rctx, g, weight, compute.Float64Codec, compute.EdgeOptions{})
	assert.ErrorIs(t, err, runtime.ErrCancelled)
	err = compute.TripleApply(rctx, g, func(src, edge, dst []zframe.Value) {}, nil, nil)
	assert.ErrorIs(t, err, runtime.ErrCancelled)
	n, err := compute.Iterate(rctx, 10, func(int) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, runtime.ErrCancelled)
	assert.Zero(t, n)
}

func TestIterate(t *testing.T) {
	rctx := newTestContext(t, 1)
	n, err := compute.Iterate(rctx, 10, func(iter int) (bool, error) { return iter == 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	n, err = compute.Iterate(rctx, 5, func(int) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}
