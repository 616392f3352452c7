package join

import (
	"sync"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/zcode"
)

// numPartitions returns the GRACE partition count: enough partitions for
// each side to fit in the buffer, taking the smaller of the two.
func (e *Executor) numPartitions() int {
	return min(partitionsFor(e.left.NumCells(), e.maxBuffer), partitionsFor(e.right.NumCells(), e.maxBuffer))
}

func partitionsFor(cells, maxBuffer int64) int {
	n := (cells + maxBuffer - 1) / maxBuffer
	if n < 1 {
		return 1
	}
	return int(n)
}

// partitions holds the two inputs of the per-partition join.  When count
// is greater than one, each input has been rewritten as a single string
// column whose segment i holds the encoded rows hashing to partition i.
type partitions struct {
	left        *sframe.Frame
	right       *sframe.Frame
	count       int
	partitioned bool
	dirs        []*storage.URI
}

func (e *Executor) partition(k int) (*partitions, error) {
	if k < 1 {
		panic("join: cannot make fewer than one partition")
	}
	parts := &partitions{left: e.left, right: e.right, count: k}
	if k == 1 {
		return parts, nil
	}
	parts.partitioned = true
	var err error
	if parts.left, err = e.partitionFrame(parts, e.left, e.leftOn, k); err != nil {
		parts.remove(e.rctx)
		return nil, err
	}
	if parts.right, err = e.partitionFrame(parts, e.right, e.rightOn, k); err != nil {
		parts.remove(e.rctx)
		return nil, err
	}
	return parts, nil
}

// partitionFrame writes each row of f, encoded as one string value, to
// segment hash(key) % k of a scratch frame.
func (e *Executor) partitionFrame(parts *partitions, f *sframe.Frame, positions []int, k int) (*sframe.Frame, error) {
	dir := e.rctx.NewTempURI("grace")
	parts.dirs = append(parts.dirs, dir)
	w, err := sframe.CreateAt(e.rctx, dir, []string{"data"}, []zframe.Kind{zframe.KindString}, k)
	if err != nil {
		return nil, err
	}
	locks := make([]sync.Mutex, k)
	reader := f.ReaderN(e.rctx, e.rctx.Parallelism())
	err = runtime.ParallelFor(e.rctx, reader.NumSegments(), func(seg int) error {
		it := reader.Segment(seg)
		defer it.Close()
		var buf zcode.Bytes
		cell := make([]zframe.Value, 1)
		for {
			row, err := it.Read()
			if err != nil {
				return err
			}
			if row == nil {
				return nil
			}
			p := zframe.HashRow(row, positions) % uint64(k)
			buf = zframe.EncodeRow(buf[:0], row)
			cell[0] = zframe.NewString(string(buf))
			locks[p].Lock()
			err = w.Segment(int(p)).Write(cell)
			locks[p].Unlock()
			if err != nil {
				return err
			}
		}
	})
	if err != nil {
		w.Abort()
		return nil, err
	}
	return w.Close()
}

// readers returns a reader over the build partitions and a reader that
// splits each probe partition into nout logical segments, so that probe
// segment i*nout+j is the j-th slice of partition i.
func (p *partitions) readers(rctx *runtime.Context, nout int) (*sframe.Reader, *sframe.Reader, error) {
	var left *sframe.Reader
	var rightLens []int64
	if p.partitioned {
		left = p.left.Reader(rctx)
		rightLens = p.right.SegmentLens()
	} else {
		left = p.left.ReaderN(rctx, 1)
		rightLens = []int64{p.right.NumRows()}
	}
	sizes := make([]int64, 0, len(rightLens)*nout)
	for _, n := range rightLens {
		for j := 0; j < nout; j++ {
			sizes = append(sizes, int64(j+1)*n/int64(nout)-int64(j)*n/int64(nout))
		}
	}
	right, err := p.right.ReaderSizes(rctx, sizes)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// readRow returns the next row of it, decoding it if the inputs were
// partitioned, or nil at the end.
func (p *partitions) readRow(it *sframe.RowIterator, ncols int) ([]zframe.Value, error) {
	row, err := it.Read()
	if err != nil || row == nil || !p.partitioned {
		return row, err
	}
	return zframe.DecodeRow(make([]zframe.Value, 0, ncols), zcode.Bytes(row[0].Str()), ncols)
}

func (p *partitions) remove(rctx *runtime.Context) {
	for _, dir := range p.dirs {
		rctx.RemoveTemp(dir)
	}
	p.dirs = nil
}
