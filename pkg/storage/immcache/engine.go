// Package immcache wraps a storage.Engine with an in-memory LRU cache of
// whole objects.  Only objects that are never rewritten in place, such as
// closed column segments, may be cached, so the caller supplies a predicate
// selecting them.
package immcache

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/brimdata/zframe/pkg/storage"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Cacheable func(*storage.URI) bool

// Remote caches objects from the s3, http, and https schemes.
func Remote(u *storage.URI) bool {
	switch storage.Scheme(u.Scheme) {
	case storage.S3Scheme, storage.HTTPScheme, storage.HTTPSScheme:
		return true
	}
	return false
}

type Engine struct {
	storage.Engine
	cacheable Cacheable
	lru       *lru.Cache[string, []byte]
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
}

var _ storage.Engine = (*Engine)(nil)

func New(engine storage.Engine, size int, cacheable Cacheable, registerer prometheus.Registerer) (*Engine, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(registerer)
	return &Engine{
		Engine:    engine,
		cacheable: cacheable,
		lru:       cache,
		hits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zframe_object_cache_hits_total",
				Help: "Number of hits for a cache lookup.",
			},
			[]string{"kind"},
		),
		misses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zframe_object_cache_misses_total",
				Help: "Number of misses for a cache lookup.",
			},
			[]string{"kind"},
		),
	}, nil
}

// objectKind labels metrics by the naming convention of column storage.
func objectKind(u *storage.URI) string {
	base := path.Base(u.Path)
	switch {
	case strings.HasPrefix(base, "seg."):
		return "segment"
	case strings.HasSuffix(base, ".json"):
		return "index"
	}
	return "other"
}

func (e *Engine) Get(ctx context.Context, u *storage.URI) (storage.Reader, error) {
	if !e.cacheable(u) {
		return e.Engine.Get(ctx, u)
	}
	key := u.String()
	if b, ok := e.lru.Get(key); ok {
		e.hits.WithLabelValues(objectKind(u)).Inc()
		return storage.NewObjectReader(b), nil
	}
	b, err := storage.Get(ctx, e.Engine, u)
	if err != nil {
		return nil, err
	}
	e.lru.Add(key, b)
	e.misses.WithLabelValues(objectKind(u)).Inc()
	return storage.NewObjectReader(b), nil
}

func (e *Engine) Put(ctx context.Context, u *storage.URI) (io.WriteCloser, error) {
	e.lru.Remove(u.String())
	return e.Engine.Put(ctx, u)
}

func (e *Engine) Delete(ctx context.Context, u *storage.URI) error {
	e.lru.Remove(u.String())
	return e.Engine.Delete(ctx, u)
}

func (e *Engine) DeleteByPrefix(ctx context.Context, u *storage.URI) error {
	prefix := u.String()
	for _, key := range e.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			e.lru.Remove(key)
		}
	}
	return e.Engine.DeleteByPrefix(ctx, u)
}

// MkdirAll and Stat forward to the wrapped engine when it supports them.
func (e *Engine) MkdirAll(ctx context.Context, u *storage.URI) error {
	if dm, ok := e.Engine.(storage.DirMaker); ok {
		return dm.MkdirAll(ctx, u)
	}
	return nil
}

func (e *Engine) Stat(ctx context.Context, u *storage.URI) (storage.Info, error) {
	if s, ok := e.Engine.(storage.Stater); ok {
		return s.Stat(ctx, u)
	}
	return storage.Info{}, storage.ErrNotSupported
}
