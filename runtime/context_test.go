package runtime

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/brimdata/zframe/config"
	"github.com/brimdata/zframe/pkg/hilbert"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestContext(t *testing.T, parallelism int) *Context {
	conf := config.Default()
	conf.Parallelism = parallelism
	rctx, err := NewContext(context.Background(), conf, storage.NewMemEngine(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(rctx.Cancel)
	return rctx
}

func TestCancel(t *testing.T) {
	rctx := newTestContext(t, 2)
	assert.False(t, rctx.Cancelled())
	assert.NoError(t, rctx.CheckCancel())
	rctx.Cancel()
	assert.True(t, rctx.Cancelled())
	assert.ErrorIs(t, rctx.CheckCancel(), ErrCancelled)
	assert.Equal(t, "cancelled by user", ErrCancelled.Error())
}

func TestTempURIs(t *testing.T) {
	rctx := newTestContext(t, 1)
	a := rctx.NewTempURI("sarray")
	b := rctx.NewTempURI("sarray")
	assert.NotEqual(t, a.String(), b.String())
	assert.True(t, strings.HasPrefix(a.String(), config.DefaultTempDir+"/sarray-"))

	ctx := context.Background()
	require.NoError(t, rctx.Engine.PutIfNotExists(ctx, a.AppendPath("seg.0000"), []byte("x")))
	require.NoError(t, rctx.Engine.PutIfNotExists(ctx, b.AppendPath("seg.0000"), []byte("y")))
	require.NoError(t, rctx.RemoveTemp(a))
	ok, err := rctx.Engine.Exists(ctx, a.AppendPath("seg.0000"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rctx.Cleanup())
	ok, err = rctx.Engine.Exists(ctx, b.AppendPath("seg.0000"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParallelFor(t *testing.T) {
	rctx := newTestContext(t, 4)
	var sum, running, peak atomic.Int64
	err := ParallelFor(rctx, 100, func(i int) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		sum.Add(int64(i))
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4950, sum.Load())
	assert.LessOrEqual(t, peak.Load(), int64(4))

	boom := errors.New("boom")
	err = ParallelFor(rctx, 10, func(i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestInParallel(t *testing.T) {
	rctx := newTestContext(t, 3)
	var seen [3]atomic.Bool
	require.NoError(t, InParallel(rctx, func(thread, nthreads int) error {
		assert.Equal(t, 3, nthreads)
		seen[thread].Store(true)
		return nil
	}))
	for k := range seen {
		assert.True(t, seen[k].Load())
	}

	rctx.Cancel()
	err := ParallelFor(rctx, 5, func(int) error { return nil })
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestBlockedParallelForCancel(t *testing.T) {
	rctx := newTestContext(t, 2)
	var blocks, cells atomic.Int64
	err := BlockedParallelFor(rctx, 4, 2, func([]hilbert.Coord) error {
		if blocks.Add(1) == 2 {
			rctx.Cancel()
		}
		return nil
	}, func(hilbert.Coord) error {
		cells.Add(1)
		return nil
	})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.EqualValues(t, 2, blocks.Load())
	assert.EqualValues(t, 4, cells.Load())

	other := newTestContext(t, 2)
	boom := errors.New("boom")
	err = BlockedParallelFor(other, 4, 2, nil, func(c hilbert.Coord) error {
		if c.Row == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}
