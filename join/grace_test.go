package join_test

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/brimdata/zframe/config"
	"github.com/brimdata/zframe/join"
	"github.com/brimdata/zframe/pkg/logger"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/pkg/storage/mock"
	"github.com/brimdata/zframe/runtime"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// failingEngine serves every call from mem except that creating a new
// object fails with err.
func failingEngine(t *testing.T, mem *storage.MemEngine, err error) *mock.MockEngine {
	engine := mock.NewMockEngine(gomock.NewController(t))
	engine.EXPECT().PutIfNotExists(gomock.Any(), gomock.Any(), gomock.Any()).Return(err).AnyTimes()
	engine.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *storage.URI) (io.WriteCloser, error) { return nil, err }).AnyTimes()
	engine.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(mem.Get).AnyTimes()
	engine.EXPECT().Delete(gomock.Any(), gomock.Any()).DoAndReturn(mem.Delete).AnyTimes()
	engine.EXPECT().DeleteByPrefix(gomock.Any(), gomock.Any()).DoAndReturn(mem.DeleteByPrefix).AnyTimes()
	engine.EXPECT().Exists(gomock.Any(), gomock.Any()).DoAndReturn(mem.Exists).AnyTimes()
	engine.EXPECT().Size(gomock.Any(), gomock.Any()).DoAndReturn(mem.Size).AnyTimes()
	engine.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(mem.List).AnyTimes()
	return engine
}

func TestSpillFailure(t *testing.T) {
	rctx := newTestContext(t)
	rng := rand.New(rand.NewSource(3))
	left, _ := randomFrame(t, rctx, rng, 500, 100, "l")
	right, _ := randomFrame(t, rctx, rng, 500, 100, "r")

	errFull := errors.New("disk full")
	conf := config.Default()
	conf.Parallelism = 4
	conf.SArray.BlockSize = 1024
	spill, err := runtime.NewContext(context.Background(), conf, failingEngine(t, storage.NewMemEngine(), errFull), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(spill.Cancel)

	e, err := join.New(spill, left, right, []int{0}, []int{0}, join.Inner, join.Options{MaxBufferCells: 100})
	require.NoError(t, err)
	_, err = e.Run()
	assert.ErrorIs(t, err, errFull)
}

func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zframe.log")
	conf := config.Default()
	conf.Parallelism = 2
	conf.Log = logger.Config{Path: path, Mode: logger.FileModeTruncate, Level: zapcore.InfoLevel}
	rctx, err := runtime.NewContext(context.Background(), conf, storage.NewMemEngine(), nil)
	require.NoError(t, err)
	t.Cleanup(rctx.Cancel)

	left, right := scenario(t, rctx)
	runJoin(t, rctx, left, right, []int{0}, []int{0}, join.Inner, join.Options{})
	require.NoError(t, rctx.Logger.Sync())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"join partitions chosen"`)
	assert.Contains(t, string(b), `"type":"inner"`)
}
