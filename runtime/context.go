// Package runtime carries the execution environment of long-running column,
// join, and graph operations: cancellation, logging, storage, scratch space,
// and configuration.
package runtime

import (
	"context"
	"errors"
	"sync"

	"github.com/brimdata/zframe/config"
	"github.com/brimdata/zframe/pkg/logger"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/pkg/storage/immcache"
	"github.com/segmentio/ksuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrCancelled is returned by operations that stop because their Context
// was cancelled.
var ErrCancelled = errors.New("cancelled by user")

// Context provides the states used by all operations to provide the outside
// context in which they are running.
type Context struct {
	context.Context
	Logger  *zap.Logger
	Engine  storage.Engine
	TempDir *storage.URI
	Config  *config.Config
	// WaitGroup is used to ensure that goroutines complete cleanup work
	// (e.g., removing scratch objects) before Cancel returns.
	WaitGroup sync.WaitGroup
	cancel    context.CancelFunc

	mu    sync.Mutex
	temps []*storage.URI
}

// NewContext returns a Context derived from ctx.  A nil conf means
// config.Default(), a nil engine means every storage scheme with remote
// objects cached per conf, and a nil log means a logger built from
// conf.Log.
func NewContext(ctx context.Context, conf *config.Config, engine storage.Engine, log *zap.Logger) (*Context, error) {
	if conf == nil {
		conf = config.Default()
	}
	if engine == nil {
		var err error
		if engine, err = newEngine(conf); err != nil {
			return nil, err
		}
	}
	if log == nil {
		var err error
		if log, err = logger.New(conf.Log); err != nil {
			return nil, err
		}
	}
	tmp, err := storage.ParseURI(conf.TempDir)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Context{
		Context: ctx,
		Logger:  log,
		Engine:  engine,
		TempDir: tmp,
		Config:  conf,
		cancel:  cancel,
	}, nil
}

func newEngine(conf *config.Config) (storage.Engine, error) {
	router := storage.NewLocalEngine()
	if n := conf.Storage.ObjectCache; n != nil && *n > 0 {
		return immcache.New(router, *n, immcache.Remote, nil)
	}
	return router, nil
}

// DefaultContext returns a Context with the default configuration.
func DefaultContext() *Context {
	rctx, err := NewContext(context.Background(), nil, nil, nil)
	if err != nil {
		panic(err)
	}
	return rctx
}

// Cancel cancels the context.  Cancel must be called to ensure that operations
// complete cleanup work.
func (c *Context) Cancel() {
	c.cancel()
	c.WaitGroup.Wait()
}

// Cancelled reports whether c has been cancelled.
func (c *Context) Cancelled() bool {
	return c.Err() != nil
}

// CheckCancel returns ErrCancelled if c has been cancelled.  Long loops call
// it once per iteration.
func (c *Context) CheckCancel() error {
	if c.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// Parallelism is the number of workers used by parallel regions.
func (c *Context) Parallelism() int {
	if c.Config.Parallelism < 1 {
		return 1
	}
	return c.Config.Parallelism
}

// NewTempURI returns a fresh, uniquely named location under TempDir and
// registers it for removal by Cleanup.
func (c *Context) NewTempURI(prefix string) *storage.URI {
	u := c.TempDir.AppendPath(prefix + "-" + ksuid.New().String())
	c.mu.Lock()
	c.temps = append(c.temps, u)
	c.mu.Unlock()
	return u
}

// RemoveTemp deletes a location returned by NewTempURI before Cleanup.
func (c *Context) RemoveTemp(u *storage.URI) error {
	c.mu.Lock()
	for k, t := range c.temps {
		if t.String() == u.String() {
			c.temps = append(c.temps[:k], c.temps[k+1:]...)
			break
		}
	}
	c.mu.Unlock()
	err := c.Engine.DeleteByPrefix(context.Background(), u)
	if err != nil {
		c.Logger.Warn("scratch removal failed", zap.Stringer("uri", u), zap.Error(err))
	}
	return err
}

// Cleanup removes every location returned by NewTempURI.  Columns stored
// there become unreadable.
func (c *Context) Cleanup() error {
	c.mu.Lock()
	temps := c.temps
	c.temps = nil
	c.mu.Unlock()
	var err error
	for _, u := range temps {
		if deleteErr := c.Engine.DeleteByPrefix(context.Background(), u); deleteErr != nil {
			c.Logger.Warn("scratch removal failed", zap.Stringer("uri", u), zap.Error(deleteErr))
			err = multierr.Append(err, deleteErr)
		}
	}
	return err
}
