// Package join computes inner and outer equi-joins of two frames.  The
// smaller input is hashed in memory; when an input exceeds the configured
// buffer, both inputs are first hash-partitioned to scratch storage and
// joined partition by partition (a GRACE hash join).
package join

import (
	"math/bits"
	"time"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/zqe"
	"go.uber.org/zap"
)

type Options struct {
	// AlterNamesRight renames right columns whose names collide with an
	// output column.  Unlisted collisions get a ".1" suffix.
	AlterNamesRight map[string]string
	// MaxBufferCells bounds the cells of one in-memory partition.  Zero
	// means the context's configured value.
	MaxBufferCells int64
	// NumSegments is the segment count of the result.  Zero chooses one
	// from the inputs and the context's parallelism.
	NumSegments int
}

// Executor joins two frames.  The build side is whichever input has fewer
// cells; the result's columns are ordered as if left were always the
// build side.
type Executor struct {
	rctx *runtime.Context
	// left is the build side and right the probe side, which are the
	// caller's inputs swapped when reversed is true.
	left     *sframe.Frame
	right    *sframe.Frame
	leftOn   []int
	rightOn  []int
	reversed bool
	typ      Type

	names []string
	kinds []zframe.Kind
	// perm maps a column of the internal row layout (build columns, then
	// non-key probe columns) to its position in the result.
	perm []int
	// rightToLeft maps a probe key position to the build key position.
	rightToLeft map[int]int
	maxBuffer   int64
	numSegments int
}

// New validates a join of left and right where left column leftOn[k] is
// matched against right column rightOn[k].  New panics if the key lists
// differ in length.
func New(rctx *runtime.Context, left, right *sframe.Frame, leftOn, rightOn []int, typ Type, opts Options) (*Executor, error) {
	if len(leftOn) != len(rightOn) {
		panic("join: key position lists differ in length")
	}
	if len(leftOn) == 0 {
		return nil, zqe.ErrInvalid("join: no join columns")
	}
	if err := checkPositions(left, leftOn); err != nil {
		return nil, err
	}
	if err := checkPositions(right, rightOn); err != nil {
		return nil, err
	}
	for k := range leftOn {
		lk, rk := left.ColumnKind(leftOn[k]), right.ColumnKind(rightOn[k])
		if lk != rk {
			return nil, zqe.ErrInvalid("join: key column %q is %s but %q is %s",
				left.ColumnName(leftOn[k]), lk, right.ColumnName(rightOn[k]), rk)
		}
	}
	names, kinds, err := outputSchema(left, right, rightOn, opts.AlterNamesRight)
	if err != nil {
		return nil, err
	}
	e := &Executor{
		rctx:      rctx,
		left:      left,
		right:     right,
		leftOn:    leftOn,
		rightOn:   rightOn,
		typ:       typ,
		names:     names,
		kinds:     kinds,
		maxBuffer: opts.MaxBufferCells,
	}
	if e.maxBuffer <= 0 {
		e.maxBuffer = rctx.Config.Join.MaxBufferCells
	}
	if e.maxBuffer <= 0 {
		e.maxBuffer = 1
	}
	e.perm = identity(len(names))
	if right.NumCells() < left.NumCells() {
		e.swap()
	}
	e.rightToLeft = make(map[int]int, len(e.rightOn))
	for k, pos := range e.rightOn {
		e.rightToLeft[pos] = e.leftOn[k]
	}
	e.numSegments = opts.NumSegments
	if e.numSegments < 1 {
		p := rctx.Parallelism()
		e.numSegments = max(left.NumSegments(), right.NumSegments(), p*max(1, bits.Len(uint(p))-1))
	}
	return e, nil
}

// On is like New but names the join columns.
func On(rctx *runtime.Context, left, right *sframe.Frame, leftKeys, rightKeys []string, typ Type, opts Options) (*Executor, error) {
	if len(leftKeys) != len(rightKeys) {
		return nil, zqe.ErrInvalid("join: %d left keys but %d right keys", len(leftKeys), len(rightKeys))
	}
	leftOn, err := positionsOf(left, leftKeys)
	if err != nil {
		return nil, err
	}
	rightOn, err := positionsOf(right, rightKeys)
	if err != nil {
		return nil, err
	}
	return New(rctx, left, right, leftOn, rightOn, typ, opts)
}

func positionsOf(f *sframe.Frame, names []string) ([]int, error) {
	positions := make([]int, len(names))
	for k, name := range names {
		var err error
		if positions[k], err = f.ColumnIndex(name); err != nil {
			return nil, err
		}
	}
	return positions, nil
}

func checkPositions(f *sframe.Frame, positions []int) error {
	seen := make(map[int]struct{}, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= f.NumColumns() {
			return zqe.ErrInvalid("join: column position %d out of range", pos)
		}
		if _, ok := seen[pos]; ok {
			return zqe.ErrInvalid("join: column %q used twice as a key", f.ColumnName(pos))
		}
		seen[pos] = struct{}{}
	}
	return nil
}

func identity(n int) []int {
	perm := make([]int, n)
	for k := range perm {
		perm[k] = k
	}
	return perm
}

// swap makes the caller's right input the build side.  The internal row
// layout becomes the caller's right columns followed by the caller's
// non-key left columns, and perm records where each lands in the result.
func (e *Executor) swap() {
	userLeft, userRight := e.left, e.right
	leftKeyOf := make(map[int]int, len(e.rightOn))
	for k, pos := range e.rightOn {
		leftKeyOf[pos] = e.leftOn[k]
	}
	perm := make([]int, 0, len(e.names))
	next := userLeft.NumColumns()
	for j := 0; j < userRight.NumColumns(); j++ {
		if pos, ok := leftKeyOf[j]; ok {
			perm = append(perm, pos)
		} else {
			perm = append(perm, next)
			next++
		}
	}
	isKey := make(map[int]bool, len(e.leftOn))
	for _, pos := range e.leftOn {
		isKey[pos] = true
	}
	for j := 0; j < userLeft.NumColumns(); j++ {
		if !isKey[j] {
			perm = append(perm, j)
		}
	}
	e.perm = perm
	e.left, e.right = userRight, userLeft
	e.leftOn, e.rightOn = e.rightOn, e.leftOn
	e.reversed = true
	switch e.typ {
	case Left:
		e.typ = Right
	case Right:
		e.typ = Left
	}
}

// Run performs the join.  Scratch partitions are removed before Run
// returns.
func (e *Executor) Run() (*sframe.Frame, error) {
	logger := e.rctx.Logger.With(zap.Stringer("type", e.typ), zap.Bool("reversed", e.reversed))
	start := time.Now()
	k := e.numPartitions()
	logger.Info("join partitions chosen", zap.Int("partitions", k),
		zap.Int64("left_cells", e.left.NumCells()),
		zap.Int64("right_cells", e.right.NumCells()),
		zap.Int64("max_buffer_cells", e.maxBuffer))
	parts, err := e.partition(k)
	if err != nil {
		return nil, err
	}
	defer parts.remove(e.rctx)
	logger.Info("join inputs partitioned", zap.Duration("elapsed", time.Since(start)))

	names := make([]string, len(e.perm))
	kinds := make([]zframe.Kind, len(e.perm))
	for p, u := range e.perm {
		names[p] = e.names[u]
		kinds[p] = e.kinds[u]
	}
	w, err := sframe.Create(e.rctx, names, kinds, e.numSegments)
	if err != nil {
		return nil, err
	}
	probeStart := time.Now()
	if err := e.join(parts, w, logger); err != nil {
		w.Abort()
		return nil, err
	}
	logger.Info("join probe finished", zap.Duration("elapsed", time.Since(probeStart)))
	out, err := w.Close()
	if err != nil {
		return nil, err
	}
	if e.reversed {
		inverse := make([]int, len(e.perm))
		for p, u := range e.perm {
			inverse[u] = p
		}
		if out, err = out.SelectIndexes(inverse...); err != nil {
			return nil, err
		}
	}
	logger.Info("join finished", zap.Int64("rows", out.NumRows()), zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (e *Executor) join(parts *partitions, w *sframe.Writer, logger *zap.Logger) error {
	nout := w.NumSegments()
	leftReader, rightReader, err := parts.readers(e.rctx, nout)
	if err != nil {
		return err
	}
	for i := 0; i < parts.count; i++ {
		if err := e.rctx.CheckCancel(); err != nil {
			return err
		}
		ht := newHashTable(e.leftOn)
		it := leftReader.Segment(i)
		for {
			row, err := parts.readRow(it, e.left.NumColumns())
			if err != nil {
				it.Close()
				return err
			}
			if row == nil {
				break
			}
			ht.addRow(row)
		}
		ht.numStoredRows(logger)
		err := runtime.ParallelFor(e.rctx, nout, func(seg int) error {
			out := w.Segment(seg)
			it := rightReader.Segment(i*nout + seg)
			defer it.Close()
			for {
				row, err := parts.readRow(it, e.right.NumColumns())
				if err != nil {
					return err
				}
				if row == nil {
					return nil
				}
				if g := ht.matching(row, e.rightOn, true); g != nil {
					err = e.emit(out, g.rows, [][]zframe.Value{row})
				} else if e.typ.keepRight() {
					err = e.emit(out, nil, [][]zframe.Value{row})
				}
				if err != nil {
					return err
				}
			}
		})
		if err != nil {
			return err
		}
		if e.typ.keepLeft() {
			var next int
			ht.each(func(g *group) {
				if err != nil || g.matched.Load() {
					return
				}
				err = e.emit(w.Segment(next%nout), g.rows, nil)
				next++
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// emit writes the cross product of leftRows and rightRows in the internal
// layout.  When one side is empty its columns are Undefined, except that a
// probe row with no build rows supplies the key columns.
func (e *Executor) emit(w *sframe.SegmentWriter, leftRows, rightRows [][]zframe.Value) error {
	n := len(leftRows) * len(rightRows)
	if n == 0 {
		n = max(len(leftRows), len(rightRows))
	}
	width := len(e.perm)
	nleft := e.left.NumColumns()
	row := make([]zframe.Value, width)
	for k := 0; k < n; k++ {
		for c := range row {
			row[c] = zframe.Undefined
		}
		if len(leftRows) > 0 {
			copy(row, leftRows[k%len(leftRows)])
		}
		if len(rightRows) > 0 {
			right := rightRows[k/max(1, len(leftRows))%len(rightRows)]
			tail := nleft
			for j, v := range right {
				if pos, ok := e.rightToLeft[j]; ok {
					if len(leftRows) == 0 {
						row[pos] = v
					}
					continue
				}
				row[tail] = v
				tail++
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
