// Package zcode implements the binary archive encoding used for zframe
// values and for rows spilled to scratch storage.
//
// A byte-sequence body is written after a uvarint tag holding zero for an
// unset (nil) body or the body length plus one.  Integers are written
// untagged as uvarints or zig-zag varints and are read back by callers
// that know the layout of what they are decoding.
package zcode

import (
	"encoding/binary"
	"errors"
)

var (
	ErrShortBuffer = errors.New("zcode: short buffer")
	ErrBadVarint   = errors.New("zcode: bad varint")
)

// Bytes is the serialized representation of a sequence of values.
type Bytes []byte

// Iter returns an Iter over the tagged bodies of the receiver.
func (b Bytes) Iter() Iter {
	return Iter(b)
}

// AppendPrimitive appends val to dst as a tagged body and returns the
// extended buffer.
func AppendPrimitive(dst Bytes, val []byte) Bytes {
	if val == nil {
		return AppendUvarint(dst, 0)
	}
	dst = AppendUvarint(dst, uint64(len(val))+1)
	return append(dst, val...)
}

// AppendUvarint is like encoding/binary.PutUvarint but appends to dst instead
// of writing into it.
func AppendUvarint(dst []byte, u64 uint64) []byte {
	return binary.AppendUvarint(dst, u64)
}

// AppendVarint appends the zig-zag encoding of i64 to dst.
func AppendVarint(dst []byte, i64 int64) []byte {
	return AppendUvarint(dst, uint64(i64<<1)^uint64(i64>>63))
}

// ReadUvarint decodes a uvarint from the front of b and returns the value and
// the remainder of b.
func ReadUvarint(b Bytes) (uint64, Bytes, error) {
	u64, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, nil, ErrBadVarint
	}
	return u64, b[n:], nil
}

// ReadVarint decodes a zig-zag varint written by AppendVarint.
func ReadVarint(b Bytes) (int64, Bytes, error) {
	u64, rest, err := ReadUvarint(b)
	if err != nil {
		return 0, nil, err
	}
	return int64(u64>>1) ^ -int64(u64&1), rest, nil
}

// ReadFixed returns the first n bytes of b and the remainder of b.
func ReadFixed(b Bytes, n int) ([]byte, Bytes, error) {
	if len(b) < n {
		return nil, nil, ErrShortBuffer
	}
	return b[:n], b[n:], nil
}
