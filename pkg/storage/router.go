package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/brimdata/zframe/zqe"
)

// Router dispatches each call to the Engine registered for the URI's
// scheme.
type Router struct {
	mu      sync.RWMutex
	engines map[Scheme]Engine
}

var _ Engine = (*Router)(nil)

func NewRouter() *Router {
	return &Router{engines: make(map[Scheme]Engine)}
}

// Enable registers the default engine for scheme.
func (r *Router) Enable(scheme Scheme) {
	var engine Engine
	switch scheme {
	case FileScheme:
		engine = NewFileSystem()
	case CacheScheme:
		engine = NewMemEngine()
	case S3Scheme:
		engine = NewS3()
	case HTTPScheme, HTTPSScheme:
		engine = NewHTTP()
	default:
		panic(fmt.Sprintf("storage: unknown scheme %q", scheme))
	}
	r.Register(scheme, engine)
}

// Register installs engine for scheme, replacing any previous engine.
func (r *Router) Register(scheme Scheme, engine Engine) {
	r.mu.Lock()
	r.engines[scheme] = engine
	r.mu.Unlock()
}

func (r *Router) lookup(u *URI) (Engine, error) {
	scheme := Scheme(u.Scheme)
	if scheme == "" {
		scheme = FileScheme
	}
	r.mu.RLock()
	engine, ok := r.engines[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, zqe.ErrInvalid("storage: scheme %q not enabled for %s", scheme, u)
	}
	return engine, nil
}

func (r *Router) Get(ctx context.Context, u *URI) (Reader, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return nil, err
	}
	return engine.Get(ctx, u)
}

func (r *Router) Put(ctx context.Context, u *URI) (io.WriteCloser, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return nil, err
	}
	return engine.Put(ctx, u)
}

func (r *Router) PutIfNotExists(ctx context.Context, u *URI, b []byte) error {
	engine, err := r.lookup(u)
	if err != nil {
		return err
	}
	return engine.PutIfNotExists(ctx, u, b)
}

func (r *Router) Delete(ctx context.Context, u *URI) error {
	engine, err := r.lookup(u)
	if err != nil {
		return err
	}
	return engine.Delete(ctx, u)
}

func (r *Router) DeleteByPrefix(ctx context.Context, u *URI) error {
	engine, err := r.lookup(u)
	if err != nil {
		return err
	}
	return engine.DeleteByPrefix(ctx, u)
}

func (r *Router) Exists(ctx context.Context, u *URI) (bool, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return false, err
	}
	return engine.Exists(ctx, u)
}

func (r *Router) Size(ctx context.Context, u *URI) (int64, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return 0, err
	}
	return engine.Size(ctx, u)
}

func (r *Router) List(ctx context.Context, u *URI) ([]Info, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return nil, err
	}
	return engine.List(ctx, u)
}

func (r *Router) MkdirAll(ctx context.Context, u *URI) error {
	engine, err := r.lookup(u)
	if err != nil {
		return err
	}
	if dm, ok := engine.(DirMaker); ok {
		return dm.MkdirAll(ctx, u)
	}
	return nil
}

func (r *Router) Stat(ctx context.Context, u *URI) (Info, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return Info{}, err
	}
	if s, ok := engine.(Stater); ok {
		return s.Stat(ctx, u)
	}
	return Info{}, ErrNotSupported
}
