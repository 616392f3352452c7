//go:generate mockgen -destination=./mock/mock_engine.go -package=mock github.com/brimdata/zframe/pkg/storage Engine

// Package storage resolves URIs to the backend that holds them.  Column
// segments and scratch data are written through an Engine without regard
// to whether they live on local disk, in S3, or in process memory.
package storage

import (
	"context"
	"errors"
	"io"
)

type Reader interface {
	io.Reader
	io.ReaderAt
	io.Closer
}

type Sizer interface {
	Size() (int64, error)
}

var ErrNotSupported = errors.New("method call on storage engine not supported")

type Engine interface {
	Get(context.Context, *URI) (Reader, error)
	Put(context.Context, *URI) (io.WriteCloser, error)
	PutIfNotExists(context.Context, *URI, []byte) error
	Delete(context.Context, *URI) error
	DeleteByPrefix(context.Context, *URI) error
	Exists(context.Context, *URI) (bool, error)
	Size(context.Context, *URI) (int64, error)
	List(context.Context, *URI) ([]Info, error)
}

// DirMaker is implemented by engines with explicit directories.
type DirMaker interface {
	MkdirAll(context.Context, *URI) error
}

// Stater is implemented by engines that can describe a single path,
// including directories.
type Stater interface {
	Stat(context.Context, *URI) (Info, error)
}

type Info struct {
	Name  string
	Size  int64
	IsDir bool
}

// NewLocalEngine returns a Router serving every scheme this package knows.
func NewLocalEngine() *Router {
	router := NewRouter()
	router.Enable(FileScheme)
	router.Enable(CacheScheme)
	router.Enable(S3Scheme)
	router.Enable(HTTPScheme)
	router.Enable(HTTPSScheme)
	return router
}

func Put(ctx context.Context, engine Engine, u *URI, r io.Reader) error {
	w, err := engine.Put(ctx, u)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	return err
}

func Get(ctx context.Context, engine Engine, u *URI) ([]byte, error) {
	r, err := engine.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	b, err := io.ReadAll(r)
	if closeErr := r.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Copy copies the object at src to dst.
func Copy(ctx context.Context, engine Engine, src, dst *URI) error {
	return CopyBetween(ctx, engine, src, engine, dst)
}

// CopyBetween copies an object from one engine to another.
func CopyBetween(ctx context.Context, srcEngine Engine, src *URI, dstEngine Engine, dst *URI) error {
	r, err := srcEngine.Get(ctx, src)
	if err != nil {
		return err
	}
	err = Put(ctx, dstEngine, dst, r)
	if closeErr := r.Close(); err == nil {
		err = closeErr
	}
	return err
}

func Size(r Reader) (int64, error) {
	if sizer, ok := r.(Sizer); ok {
		return sizer.Size()
	}
	return 0, ErrNotSupported
}
