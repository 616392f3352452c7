// Package sframe implements tables whose columns are sarray arrays with
// row-aligned segments.  Frames are immutable values; every structural
// operation returns a new Frame that shares the arrays of its input.
package sframe

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/zqe"
	"golang.org/x/exp/slices"
)

type Frame struct {
	names   []string
	columns []*sarray.Array
}

// New returns a frame of the given columns, which must have equal segment
// lengths.  Names must be unique and non-empty.
func New(columns []*sarray.Array, names []string) (*Frame, error) {
	if len(columns) != len(names) {
		return nil, zqe.ErrInvalid("sframe: %d columns but %d names", len(columns), len(names))
	}
	if err := checkNames(names); err != nil {
		return nil, err
	}
	for k := 1; k < len(columns); k++ {
		if !slices.Equal(columns[0].SegmentLens(), columns[k].SegmentLens()) {
			return nil, zqe.ErrInvalid("sframe: column %q is not aligned with column %q", names[k], names[0])
		}
	}
	return &Frame{
		names:   slices.Clone(names),
		columns: slices.Clone(columns),
	}, nil
}

func checkNames(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return zqe.ErrInvalid("sframe: empty column name")
		}
		if _, ok := seen[name]; ok {
			return zqe.ErrInvalid("sframe: duplicate column name %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (f *Frame) NumRows() int64 {
	if len(f.columns) == 0 {
		return 0
	}
	return f.columns[0].Len()
}

func (f *Frame) NumColumns() int {
	return len(f.columns)
}

// NumCells is the number of rows times the number of columns.
func (f *Frame) NumCells() int64 {
	return f.NumRows() * int64(len(f.columns))
}

func (f *Frame) NumSegments() int {
	if len(f.columns) == 0 {
		return 0
	}
	return f.columns[0].NumSegments()
}

func (f *Frame) SegmentLen(i int) int64 {
	return f.columns[0].SegmentLen(i)
}

func (f *Frame) SegmentLens() []int64 {
	if len(f.columns) == 0 {
		return nil
	}
	return f.columns[0].SegmentLens()
}

func (f *Frame) ColumnNames() []string {
	return slices.Clone(f.names)
}

func (f *Frame) ColumnKinds() []zframe.Kind {
	kinds := make([]zframe.Kind, len(f.columns))
	for k, c := range f.columns {
		kinds[k] = c.Kind()
	}
	return kinds
}

func (f *Frame) ColumnName(i int) string {
	return f.names[i]
}

func (f *Frame) ColumnKind(i int) zframe.Kind {
	return f.columns[i].Kind()
}

func (f *Frame) Column(i int) *sarray.Array {
	return f.columns[i]
}

// Columns returns the frame's arrays in column order.
func (f *Frame) Columns() []*sarray.Array {
	return slices.Clone(f.columns)
}

// HasColumn reports whether the frame has a column called name.
func (f *Frame) HasColumn(name string) bool {
	return slices.Index(f.names, name) >= 0
}

// ColumnIndex returns the position of the column called name.  If there is
// none, the zqe.NotFound error suggests the closest existing name.
func (f *Frame) ColumnIndex(name string) (int, error) {
	if k := slices.Index(f.names, name); k >= 0 {
		return k, nil
	}
	return -1, NotFound("column", name, f.names)
}

func (f *Frame) ColumnByName(name string) (*sarray.Array, error) {
	k, err := f.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	return f.columns[k], nil
}

// NotFound builds a zqe.NotFound error for a missing name, suggesting the
// nearest candidate by edit distance when one is reasonably close.
func NotFound(what, name string, candidates []string) error {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist >= 0 && bestDist <= max(2, len(name)/3) {
		return zqe.ErrNotFound("%s %q not found (did you mean %q?)", what, name, best)
	}
	return zqe.ErrNotFound("%s %q not found", what, name)
}

// Select returns the named columns in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	positions := make([]int, len(names))
	for k, name := range names {
		var err error
		if positions[k], err = f.ColumnIndex(name); err != nil {
			return nil, err
		}
	}
	return f.SelectIndexes(positions...)
}

func (f *Frame) SelectIndexes(positions ...int) (*Frame, error) {
	names := make([]string, len(positions))
	columns := make([]*sarray.Array, len(positions))
	for k, pos := range positions {
		if pos < 0 || pos >= len(f.columns) {
			return nil, zqe.ErrInvalid("sframe: column index %d out of range", pos)
		}
		names[k] = f.names[pos]
		columns[k] = f.columns[pos]
	}
	if err := checkNames(names); err != nil {
		return nil, err
	}
	return &Frame{names: names, columns: columns}, nil
}

// Rename returns a frame with columns renamed per the map from old to new
// names.
func (f *Frame) Rename(renames map[string]string) (*Frame, error) {
	names := slices.Clone(f.names)
	for from, to := range renames {
		k, err := f.ColumnIndex(from)
		if err != nil {
			return nil, err
		}
		names[k] = to
	}
	if err := checkNames(names); err != nil {
		return nil, err
	}
	return &Frame{names: names, columns: slices.Clone(f.columns)}, nil
}

// AddColumn returns a frame with column appended.  An empty frame takes
// the segmentation of the new column.
func (f *Frame) AddColumn(name string, column *sarray.Array) (*Frame, error) {
	if len(f.columns) > 0 && !slices.Equal(f.SegmentLens(), column.SegmentLens()) {
		return nil, zqe.ErrInvalid("sframe: column %q is not aligned with the frame", name)
	}
	names := append(slices.Clone(f.names), name)
	if err := checkNames(names); err != nil {
		return nil, err
	}
	return &Frame{
		names:   names,
		columns: append(slices.Clone(f.columns), column),
	}, nil
}

// ReplaceColumn returns a frame with the named column's data replaced.
func (f *Frame) ReplaceColumn(name string, column *sarray.Array) (*Frame, error) {
	k, err := f.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(f.SegmentLens(), column.SegmentLens()) {
		return nil, zqe.ErrInvalid("sframe: column %q is not aligned with the frame", name)
	}
	columns := slices.Clone(f.columns)
	columns[k] = column
	return &Frame{names: slices.Clone(f.names), columns: columns}, nil
}

func (f *Frame) RemoveColumn(name string) (*Frame, error) {
	k, err := f.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	return &Frame{
		names:   slices.Delete(slices.Clone(f.names), k, k+1),
		columns: slices.Delete(slices.Clone(f.columns), k, k+1),
	}, nil
}

// Append returns the rows of f followed by the rows of other, which must
// have the same column names and kinds.  Segments are shared.
func (f *Frame) Append(other *Frame) (*Frame, error) {
	if len(f.columns) == 0 {
		return other, nil
	}
	if len(other.columns) == 0 {
		return f, nil
	}
	if !slices.Equal(f.names, other.names) {
		return nil, zqe.ErrInvalid("sframe: append of frames with columns %v and %v", f.names, other.names)
	}
	columns := make([]*sarray.Array, len(f.columns))
	for k := range f.columns {
		var err error
		if columns[k], err = sarray.Concat(f.columns[k], other.columns[k]); err != nil {
			return nil, fmt.Errorf("column %q: %w", f.names[k], err)
		}
	}
	return &Frame{names: slices.Clone(f.names), columns: columns}, nil
}

func (f *Frame) String() string {
	var b strings.Builder
	b.WriteString("sframe(")
	for k, name := range f.names {
		if k > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%s", name, f.columns[k].Kind())
	}
	fmt.Fprintf(&b, "; %d rows)", f.NumRows())
	return b.String()
}
