package immcache

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/pkg/storage/mock"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

func TestEngineCachesGets(t *testing.T) {
	ctrl := gomock.NewController(t)
	backing := mock.NewMockEngine(ctrl)
	ctx := context.Background()
	u := storage.MustParseURI("s3://bucket/col/seg.0000")
	backing.EXPECT().Get(gomock.Any(), u).Return(nopCloser{bytes.NewReader([]byte("block"))}, nil).Times(1)

	reg := prometheus.NewRegistry()
	engine, err := New(backing, 4, Remote, reg)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		b, err := storage.Get(ctx, engine, u)
		require.NoError(t, err)
		assert.Equal(t, "block", string(b))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(engine.hits.WithLabelValues("segment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(engine.misses.WithLabelValues("segment")))

	backing.EXPECT().Delete(gomock.Any(), u).Return(nil)
	require.NoError(t, engine.Delete(ctx, u))
	backing.EXPECT().Get(gomock.Any(), u).Return(nopCloser{bytes.NewReader([]byte("new"))}, nil)
	b, err := storage.Get(ctx, engine, u)
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))
}

func TestEngineSkipsUncacheable(t *testing.T) {
	mem := storage.NewMemEngine()
	ctx := context.Background()
	u := storage.MustParseURI("cache:///tmp/obj")
	require.NoError(t, mem.PutIfNotExists(ctx, u, []byte("v1")))
	engine, err := New(mem, 4, Remote, nil)
	require.NoError(t, err)
	r, err := engine.Get(ctx, u)
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(b))
	assert.Equal(t, 0, engine.lru.Len())
	assert.Equal(t, storage.StatusFile, storage.Status(ctx, engine, u))
}
