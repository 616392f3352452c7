package sframe

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/zqe"
	"go.uber.org/zap"
)

const (
	IndexObject  = "frame.json"
	indexVersion = 1
)

type index struct {
	Version int           `json:"version"`
	Columns []columnIndex `json:"columns"`
}

type columnIndex struct {
	Name   string      `json:"name"`
	Kind   zframe.Kind `json:"kind"`
	Object string      `json:"object"`
}

// Save copies the frame into directory uri.  It fails with a zqe.Exists
// error if uri already holds a frame.
func (f *Frame) Save(rctx *runtime.Context, uri *storage.URI) error {
	indexURI := uri.AppendPath(IndexObject)
	if ok, err := rctx.Engine.Exists(rctx, indexURI); err != nil {
		return err
	} else if ok {
		return zqe.ErrExists("%s", indexURI)
	}
	idx := index{Version: indexVersion}
	for k, c := range f.columns {
		name := columnObject(k)
		if err := c.Save(rctx, uri.AppendPath(name)); err != nil {
			return fmt.Errorf("column %q: %w", f.names[k], err)
		}
		idx.Columns = append(idx.Columns, columnIndex{
			Name:   f.names[k],
			Kind:   c.Kind(),
			Object: name,
		})
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	if err := storage.Put(rctx, rctx.Engine, indexURI, bytes.NewReader(b)); err != nil {
		return err
	}
	rctx.Logger.Info("sframe saved", zap.Stringer("uri", uri), zap.Int("columns", len(f.columns)), zap.Int64("rows", f.NumRows()))
	return nil
}

// Open loads the frame saved in directory uri.
func Open(rctx *runtime.Context, uri *storage.URI) (*Frame, error) {
	b, err := storage.Get(rctx, rctx.Engine, uri.AppendPath(IndexObject))
	if err != nil {
		return nil, err
	}
	var idx index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	if idx.Version != indexVersion {
		return nil, zqe.ErrInvalid("%s: unsupported sframe version %d", uri, idx.Version)
	}
	names := make([]string, len(idx.Columns))
	columns := make([]*sarray.Array, len(idx.Columns))
	for k, c := range idx.Columns {
		a, err := sarray.Open(rctx, uri.AppendPath(c.Object))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		if a.Kind() != c.Kind {
			return nil, zqe.ErrInvalid("%s: column %q is %s but index says %s", uri, c.Name, a.Kind(), c.Kind)
		}
		names[k] = c.Name
		columns[k] = a
	}
	return New(columns, names)
}
