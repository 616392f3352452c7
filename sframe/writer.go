package sframe

import (
	"fmt"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/zqe"
	"go.uber.org/multierr"
	"golang.org/x/exp/slices"
)

func columnObject(k int) string {
	return fmt.Sprintf("col.%04d", k)
}

// Writer builds a frame row by row.  Each segment is written through its
// own SegmentWriter; distinct segments may be written concurrently.
type Writer struct {
	names    []string
	kinds    []zframe.Kind
	columns  []*sarray.Writer
	segments []*SegmentWriter
}

// Create returns a Writer for a new frame stored in a fresh scratch
// directory.
func Create(rctx *runtime.Context, names []string, kinds []zframe.Kind, numSegments int) (*Writer, error) {
	return CreateAt(rctx, rctx.NewTempURI("sframe"), names, kinds, numSegments)
}

// CreateAt is like Create but stores the frame's columns under dir.
func CreateAt(rctx *runtime.Context, dir *storage.URI, names []string, kinds []zframe.Kind, numSegments int) (*Writer, error) {
	if len(names) != len(kinds) {
		return nil, zqe.ErrInvalid("sframe: %d names but %d kinds", len(names), len(kinds))
	}
	if err := checkNames(names); err != nil {
		return nil, err
	}
	w := &Writer{
		names: slices.Clone(names),
		kinds: slices.Clone(kinds),
	}
	for k, kind := range kinds {
		c, err := sarray.CreateAt(rctx, dir.AppendPath(columnObject(k)), kind, numSegments)
		if err != nil {
			return nil, multierr.Append(err, w.Abort())
		}
		w.columns = append(w.columns, c)
	}
	for i := 0; i < numSegments; i++ {
		s := &SegmentWriter{parent: w}
		for _, c := range w.columns {
			s.columns = append(s.columns, c.Segment(i))
		}
		w.segments = append(w.segments, s)
	}
	return w, nil
}

func (w *Writer) NumSegments() int {
	return len(w.segments)
}

func (w *Writer) Segment(i int) *SegmentWriter {
	return w.segments[i]
}

// Close finishes every column and returns the frame.  Close panics if
// called twice.
func (w *Writer) Close() (*Frame, error) {
	columns := make([]*sarray.Array, len(w.columns))
	var err error
	for k, c := range w.columns {
		var closeErr error
		columns[k], closeErr = c.Close()
		err = multierr.Append(err, closeErr)
	}
	if err != nil {
		return nil, err
	}
	return &Frame{names: w.names, columns: columns}, nil
}

// Abort discards everything written.
func (w *Writer) Abort() error {
	var err error
	for _, c := range w.columns {
		err = multierr.Append(err, c.Abort())
	}
	return err
}

// SegmentWriter appends rows to one segment of every column.  It is not
// safe for concurrent use.
type SegmentWriter struct {
	parent  *Writer
	columns []*sarray.SegmentWriter
	scratch []zframe.Value
}

// Write appends row, which must have one value per column, each
// convertible to its column's kind.  A row that fails validation is not
// written to any column.
func (s *SegmentWriter) Write(row []zframe.Value) error {
	if len(row) != len(s.columns) {
		return zqe.ErrInvalid("sframe: row has %d values but frame has %d columns", len(row), len(s.columns))
	}
	s.scratch = s.scratch[:0]
	for k, v := range row {
		v, err := zframe.Convert(v, s.parent.kinds[k])
		if err != nil {
			return fmt.Errorf("column %q: %w", s.parent.names[k], err)
		}
		s.scratch = append(s.scratch, v)
	}
	for k, v := range s.scratch {
		if err := s.columns[k].Write(v); err != nil {
			return err
		}
	}
	return nil
}
