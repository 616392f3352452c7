// Package sarray implements a segmented, immutable, typed column of values.
//
// A column is written once through per-segment writers and read many times.
// Each segment is stored as one object of lz4-compressed blocks next to an
// index object describing the column's kind, segment lengths, and block
// locations.  Closed segments are never modified, so arrays share them
// freely: Concat and the structural operations of package sframe reference
// existing segments rather than copying them.
package sarray

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/zqe"
	"go.uber.org/zap"
)

const (
	IndexObject  = "index.json"
	indexVersion = 1

	stateWriting = "writing"
	stateClosed  = "closed"
)

func segmentObject(k int) string {
	return fmt.Sprintf("seg.%04d", k)
}

type index struct {
	Version  int            `json:"version"`
	State    string         `json:"state"`
	Kind     zframe.Kind    `json:"kind"`
	Segments []segmentIndex `json:"segments"`
}

type segmentIndex struct {
	// Object is relative to the directory holding the index.  It is empty
	// for a segment with no rows.
	Object string  `json:"object,omitempty"`
	Rows   int64   `json:"rows"`
	Blocks []block `json:"blocks"`
}

// Array is a closed column.  It is safe for concurrent use.
type Array struct {
	engine   storage.Engine
	kind     zframe.Kind
	segments []*segment
	// offsets[i] is the global row of the first value of segment i;
	// offsets[len(segments)] is the length of the array.
	offsets []int64
	cache   *blockCache
}

func newArray(engine storage.Engine, cache *blockCache, kind zframe.Kind, segments []*segment) *Array {
	offsets := make([]int64, len(segments)+1)
	for k, s := range segments {
		offsets[k+1] = offsets[k] + s.rows
	}
	return &Array{
		engine:   engine,
		kind:     kind,
		segments: segments,
		offsets:  offsets,
		cache:    cache,
	}
}

func (a *Array) Kind() zframe.Kind {
	return a.kind
}

func (a *Array) Len() int64 {
	return a.offsets[len(a.segments)]
}

func (a *Array) NumSegments() int {
	return len(a.segments)
}

func (a *Array) SegmentLen(i int) int64 {
	return a.segments[i].rows
}

// SegmentLens returns the length of every segment.
func (a *Array) SegmentLens() []int64 {
	lens := make([]int64, len(a.segments))
	for k, s := range a.segments {
		lens[k] = s.rows
	}
	return lens
}

// segmentOf returns the segment holding global row and the row's offset in
// it.  Empty segments are never returned.
func (a *Array) segmentOf(row int64) (int, int64) {
	k := sort.Search(len(a.segments), func(i int) bool {
		return a.offsets[i+1] > row
	})
	return k, row - a.offsets[k]
}

// Concat returns the rows of arrays in order as a single array whose
// segments are those of its inputs.  No data is copied.
func Concat(arrays ...*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, zqe.ErrInvalid("sarray: concat of no arrays")
	}
	first := arrays[0]
	var segments []*segment
	for _, a := range arrays {
		if a.kind != first.kind {
			return nil, zqe.ErrInvalid("sarray: concat of %s and %s arrays", first.kind, a.kind)
		}
		segments = append(segments, a.segments...)
	}
	return newArray(first.engine, first.cache, first.kind, segments), nil
}

// Open loads the array saved or closed in directory uri.
func Open(rctx *runtime.Context, uri *storage.URI) (*Array, error) {
	b, err := storage.Get(rctx, rctx.Engine, uri.AppendPath(IndexObject))
	if err != nil {
		return nil, err
	}
	var idx index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	if idx.Version != indexVersion {
		return nil, zqe.ErrInvalid("%s: unsupported sarray version %d", uri, idx.Version)
	}
	if idx.State != stateClosed {
		return nil, zqe.ErrConflict("%s: sarray is still open for writing", uri)
	}
	segments := make([]*segment, len(idx.Segments))
	for k, s := range idx.Segments {
		var u *storage.URI
		if s.Object != "" {
			u = uri.AppendPath(s.Object)
		}
		segments[k] = newSegment(u, s.Blocks)
		if segments[k].rows != s.Rows {
			return nil, fmt.Errorf("%s: segment %d: index has %d rows but blocks hold %d", uri, k, s.Rows, segments[k].rows)
		}
	}
	return newArray(rctx.Engine, newBlockCache(rctx.Config.SArray.ReadCacheBlocks), idx.Kind, segments), nil
}

// Save copies the array into directory uri so that Open(uri) returns an
// equal array.  Save fails with a zqe.Exists error if uri already holds an
// array.
func (a *Array) Save(rctx *runtime.Context, uri *storage.URI) error {
	indexURI := uri.AppendPath(IndexObject)
	if ok, err := rctx.Engine.Exists(rctx, indexURI); err != nil {
		return err
	} else if ok {
		return zqe.ErrExists("%s", indexURI)
	}
	idx := index{
		Version:  indexVersion,
		State:    stateClosed,
		Kind:     a.kind,
		Segments: make([]segmentIndex, len(a.segments)),
	}
	for k, s := range a.segments {
		idx.Segments[k] = segmentIndex{Rows: s.rows, Blocks: s.blocks}
		if s.uri == nil {
			continue
		}
		name := segmentObject(k)
		if err := storage.CopyBetween(rctx, a.engine, s.uri, rctx.Engine, uri.AppendPath(name)); err != nil {
			return err
		}
		idx.Segments[k].Object = name
	}
	if err := writeIndex(rctx, rctx.Engine, indexURI, &idx); err != nil {
		return err
	}
	rctx.Logger.Debug("sarray saved", zap.Stringer("uri", uri), zap.Int64("rows", a.Len()))
	return nil
}

func writeIndex(ctx context.Context, engine storage.Engine, u *storage.URI, idx *index) error {
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	w, err := engine.Put(ctx, u)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	return err
}
