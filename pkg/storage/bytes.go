package storage

import "bytes"

// ObjectReader serves an object held in memory, such as a MemEngine value
// or a block in the immutable object cache.
type ObjectReader struct {
	bytes.Reader
	size int64
}

var _ interface {
	Reader
	Sizer
} = (*ObjectReader)(nil)

func NewObjectReader(b []byte) *ObjectReader {
	r := &ObjectReader{size: int64(len(b))}
	r.Reset(b)
	return r
}

func (*ObjectReader) Close() error { return nil }

// Size is the length of the whole object regardless of how much has been read.
func (r *ObjectReader) Size() (int64, error) { return r.size, nil }
