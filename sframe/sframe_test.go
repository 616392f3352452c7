package sframe_test

import (
	"context"
	"strings"
	"testing"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/config"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/zqe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestContext(t *testing.T) *runtime.Context {
	conf := config.Default()
	conf.SArray.BlockSize = 128
	rctx, err := runtime.NewContext(context.Background(), conf, storage.NewMemEngine(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(rctx.Cancel)
	return rctx
}

var (
	testNames = []string{"id", "name", "score"}
	testKinds = []zframe.Kind{zframe.KindInt, zframe.KindString, zframe.KindFloat}
)

func testRows(n int) [][]zframe.Value {
	rows := make([][]zframe.Value, n)
	for i := range rows {
		rows[i] = []zframe.Value{
			zframe.NewInt(int64(i)),
			zframe.NewString(strings.Repeat("x", i%7)),
			zframe.NewFloat(float64(i) / 2),
		}
	}
	return rows
}

func TestWriteRead(t *testing.T) {
	rctx := newTestContext(t)
	f, err := sframe.FromRows(rctx, testNames, testKinds, testRows(300), 4)
	require.NoError(t, err)
	assert.EqualValues(t, 300, f.NumRows())
	assert.Equal(t, 3, f.NumColumns())
	assert.EqualValues(t, 900, f.NumCells())
	assert.Equal(t, 4, f.NumSegments())
	assert.Equal(t, testNames, f.ColumnNames())
	assert.Equal(t, testKinds, f.ColumnKinds())

	rows, err := f.Rows(rctx)
	require.NoError(t, err)
	assert.Equal(t, testRows(300), rows)

	r := f.ReaderN(rctx, 3)
	require.Equal(t, 3, r.NumSegments())
	var n int64
	for i := 0; i < 3; i++ {
		it := r.Segment(i)
		for {
			row, err := it.Read()
			require.NoError(t, err)
			if row == nil {
				break
			}
			assert.EqualValues(t, n, row[0].Int())
			n++
		}
	}
	assert.EqualValues(t, 300, n)
}

func TestWriteValidation(t *testing.T) {
	rctx := newTestContext(t)
	_, err := sframe.Create(rctx, []string{"a", "a"}, []zframe.Kind{zframe.KindInt, zframe.KindInt}, 1)
	assert.True(t, zqe.IsInvalid(err))
	_, err = sframe.Create(rctx, []string{"a", ""}, []zframe.Kind{zframe.KindInt, zframe.KindInt}, 1)
	assert.True(t, zqe.IsInvalid(err))

	w, err := sframe.Create(rctx, testNames, testKinds, 1)
	require.NoError(t, err)
	err = w.Segment(0).Write([]zframe.Value{zframe.NewInt(1)})
	assert.True(t, zqe.IsInvalid(err))
	// A bad cell leaves every column untouched.
	err = w.Segment(0).Write([]zframe.Value{zframe.NewInt(1), zframe.NewString("a"), zframe.NewString("bad")})
	assert.ErrorIs(t, err, zframe.ErrTypeMismatch)
	require.NoError(t, w.Segment(0).Write([]zframe.Value{zframe.NewInt(1), zframe.Undefined, zframe.NewInt(2)}))
	f, err := w.Close()
	require.NoError(t, err)
	rows, err := f.Rows(rctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, zframe.KindFloat, rows[0][2].Kind())
}

func TestStructuralSharing(t *testing.T) {
	rctx := newTestContext(t)
	f, err := sframe.FromRows(rctx, testNames, testKinds, testRows(20), 2)
	require.NoError(t, err)

	sel, err := f.Select("score", "id")
	require.NoError(t, err)
	assert.Equal(t, []string{"score", "id"}, sel.ColumnNames())
	assert.Same(t, f.Column(2), sel.Column(0))

	renamed, err := f.Rename(map[string]string{"name": "label"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "label", "score"}, renamed.ColumnNames())
	assert.Equal(t, testNames, f.ColumnNames())
	_, err = f.Rename(map[string]string{"name": "id"})
	assert.True(t, zqe.IsInvalid(err))

	removed, err := f.RemoveColumn("name")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "score"}, removed.ColumnNames())

	col, err := sarray.Constant(rctx, zframe.KindInt, zframe.NewInt(7), 20, 2)
	require.NoError(t, err)
	added, err := f.AddColumn("seven", col)
	require.NoError(t, err)
	assert.Equal(t, 4, added.NumColumns())

	misaligned, err := sarray.Constant(rctx, zframe.KindInt, zframe.NewInt(7), 20, 3)
	require.NoError(t, err)
	_, err = f.AddColumn("bad", misaligned)
	assert.True(t, zqe.IsInvalid(err))
	_, err = f.ReplaceColumn("id", misaligned)
	assert.True(t, zqe.IsInvalid(err))

	replaced, err := f.ReplaceColumn("id", col)
	require.NoError(t, err)
	rows, err := replaced.Rows(rctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7, rows[19][0].Int())

	both, err := f.Append(f)
	require.NoError(t, err)
	assert.EqualValues(t, 40, both.NumRows())
	assert.Equal(t, 4, both.NumSegments())
	_, err = f.Append(removed)
	assert.True(t, zqe.IsInvalid(err))
}

func TestColumnIndexSuggestion(t *testing.T) {
	rctx := newTestContext(t)
	f, err := sframe.FromRows(rctx, testNames, testKinds, nil, 1)
	require.NoError(t, err)
	k, err := f.ColumnIndex("score")
	require.NoError(t, err)
	assert.Equal(t, 2, k)

	_, err = f.ColumnIndex("scroe")
	require.Error(t, err)
	assert.True(t, zqe.IsNotFound(err))
	assert.Contains(t, err.Error(), `did you mean "score"`)

	_, err = f.ColumnByName("completely_different")
	assert.True(t, zqe.IsNotFound(err))
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestReadRowsAcrossSegments(t *testing.T) {
	rctx := newTestContext(t)
	f, err := sframe.FromRows(rctx, testNames, testKinds, testRows(100), 5)
	require.NoError(t, err)
	r, err := f.ReaderSizes(rctx, []int64{50, 50})
	require.NoError(t, err)
	rows, err := r.ReadRows(15, 85, nil)
	require.NoError(t, err)
	assert.Equal(t, testRows(100)[15:85], rows)
	_, err = f.ReaderSizes(rctx, []int64{1})
	assert.True(t, zqe.IsInvalid(err))
}

func TestSaveOpen(t *testing.T) {
	rctx := newTestContext(t)
	f, err := sframe.FromRows(rctx, testNames, testKinds, testRows(50), 3)
	require.NoError(t, err)
	dir := storage.MustParseURI("cache:///frames/f")
	require.NoError(t, f.Save(rctx, dir))
	assert.True(t, zqe.IsExists(f.Save(rctx, dir)))

	g, err := sframe.Open(rctx, dir)
	require.NoError(t, err)
	assert.Equal(t, f.ColumnNames(), g.ColumnNames())
	assert.Equal(t, f.SegmentLens(), g.SegmentLens())
	rows, err := g.Rows(rctx)
	require.NoError(t, err)
	assert.Equal(t, testRows(50), rows)
}
