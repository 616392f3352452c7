package sarray

import (
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/zcode"
	"go.uber.org/multierr"
)

// Writer builds an array.  Each segment is appended to through its own
// SegmentWriter; distinct segments may be written concurrently.
type Writer struct {
	rctx     *runtime.Context
	dir      *storage.URI
	kind     zframe.Kind
	segments []*SegmentWriter
	closed   atomic.Bool
}

// Create returns a Writer for a new array of numSegments segments stored
// in a fresh scratch directory.
func Create(rctx *runtime.Context, kind zframe.Kind, numSegments int) (*Writer, error) {
	return CreateAt(rctx, rctx.NewTempURI("sarray"), kind, numSegments)
}

// CreateAt is like Create but stores the array in directory dir, which
// must not already hold an array.  A zqe.Exists error is returned if it
// does.
func CreateAt(rctx *runtime.Context, dir *storage.URI, kind zframe.Kind, numSegments int) (*Writer, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("sarray: %w: %d", zframe.ErrUnknownKind, uint8(kind))
	}
	if numSegments < 0 {
		return nil, fmt.Errorf("sarray: negative segment count %d", numSegments)
	}
	pending, err := json.Marshal(index{Version: indexVersion, State: stateWriting, Kind: kind})
	if err != nil {
		return nil, err
	}
	if err := rctx.Engine.PutIfNotExists(rctx, dir.AppendPath(IndexObject), pending); err != nil {
		return nil, err
	}
	w := &Writer{
		rctx: rctx,
		dir:  dir,
		kind: kind,
	}
	thresh := int(rctx.Config.SArray.BlockSize)
	for k := 0; k < numSegments; k++ {
		w.segments = append(w.segments, &SegmentWriter{
			parent: w,
			uri:    dir.AppendPath(segmentObject(k)),
			thresh: thresh,
		})
	}
	return w, nil
}

func (w *Writer) Kind() zframe.Kind {
	return w.kind
}

func (w *Writer) NumSegments() int {
	return len(w.segments)
}

// Segment returns the writer for segment i.
func (w *Writer) Segment(i int) *SegmentWriter {
	return w.segments[i]
}

// Close flushes every segment, writes the index, and returns the array.
// Close panics if called twice.
func (w *Writer) Close() (*Array, error) {
	if w.closed.Swap(true) {
		panic("sarray: writer closed twice")
	}
	var err error
	for _, s := range w.segments {
		err = multierr.Append(err, s.close())
	}
	if err != nil {
		return nil, err
	}
	idx := index{
		Version:  indexVersion,
		State:    stateClosed,
		Kind:     w.kind,
		Segments: make([]segmentIndex, len(w.segments)),
	}
	segments := make([]*segment, len(w.segments))
	for k, s := range w.segments {
		var u *storage.URI
		if len(s.blocks) > 0 {
			u = s.uri
			idx.Segments[k].Object = segmentObject(k)
		}
		segments[k] = newSegment(u, s.blocks)
		idx.Segments[k].Rows = segments[k].rows
		idx.Segments[k].Blocks = s.blocks
	}
	if err := writeIndex(w.rctx, w.rctx.Engine, w.dir.AppendPath(IndexObject), &idx); err != nil {
		return nil, err
	}
	cache := newBlockCache(w.rctx.Config.SArray.ReadCacheBlocks)
	return newArray(w.rctx.Engine, cache, w.kind, segments), nil
}

// Abort discards everything written.  It may be called instead of Close.
func (w *Writer) Abort() error {
	if w.closed.Swap(true) {
		panic("sarray: writer closed twice")
	}
	var err error
	for _, s := range w.segments {
		if s.out != nil {
			err = multierr.Append(err, s.out.Close())
		}
	}
	return multierr.Append(err, w.rctx.Engine.DeleteByPrefix(w.rctx, w.dir))
}

// SegmentWriter appends values to one segment.  It is not safe for
// concurrent use.
type SegmentWriter struct {
	parent  *Writer
	uri     *storage.URI
	thresh  int
	buf     zcode.Bytes
	rows    int64
	blocks  []block
	out     io.WriteCloser
	spiller spiller
}

// Write appends v, converted to the array's kind.  Write panics if the
// array has been closed.
func (s *SegmentWriter) Write(v zframe.Value) error {
	if s.parent.closed.Load() {
		panic("sarray: write after close")
	}
	v, err := zframe.Convert(v, s.parent.kind)
	if err != nil {
		return err
	}
	s.buf = v.Append(s.buf)
	s.rows++
	if len(s.buf) >= s.thresh {
		return s.flush()
	}
	return nil
}

func (s *SegmentWriter) flush() error {
	if s.rows == 0 {
		return nil
	}
	if s.out == nil {
		out, err := s.parent.rctx.Engine.Put(s.parent.rctx, s.uri)
		if err != nil {
			return err
		}
		s.out = out
		s.spiller.writer = out
	}
	var err error
	s.blocks, err = s.spiller.write(s.blocks, s.buf, s.rows)
	s.buf = s.buf[:0]
	s.rows = 0
	return err
}

func (s *SegmentWriter) close() error {
	err := s.flush()
	if s.out != nil {
		err = multierr.Append(err, s.out.Close())
	}
	return err
}
