package zframe

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/brimdata/zframe/zcode"
)

// Append appends the binary encoding of v to dst and returns the extended
// buffer.  The encoding is self-delimiting: a kind byte followed by a
// kind-specific body.
func (v Value) Append(dst zcode.Bytes) zcode.Bytes {
	dst = append(dst, byte(v.kind))
	switch v.kind {
	case KindUndefined:
	case KindInt, KindDatetime:
		dst = zcode.AppendVarint(dst, v.i)
		if v.kind == KindDatetime {
			dst = zcode.AppendVarint(dst, int64(v.tz))
		}
	case KindFloat:
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.f))
	case KindString:
		dst = zcode.AppendPrimitive(dst, []byte(v.s))
	case KindVector:
		dst = appendFloats(dst, v.vec)
	case KindList:
		dst = zcode.AppendUvarint(dst, uint64(len(v.list)))
		for _, elem := range v.list {
			dst = elem.Append(dst)
		}
	case KindDict:
		dst = zcode.AppendUvarint(dst, uint64(len(v.dict)))
		for _, p := range v.dict {
			dst = p.Key.Append(dst)
			dst = p.Value.Append(dst)
		}
	case KindImage:
		dst = zcode.AppendUvarint(dst, uint64(v.img.Width))
		dst = zcode.AppendUvarint(dst, uint64(v.img.Height))
		dst = zcode.AppendUvarint(dst, uint64(v.img.Channels))
		dst = append(dst, byte(v.img.Format))
		dst = zcode.AppendPrimitive(dst, v.img.Data)
	case KindNDArray:
		dst = zcode.AppendUvarint(dst, uint64(len(v.nd.Shape)))
		for _, d := range v.nd.Shape {
			dst = zcode.AppendUvarint(dst, uint64(d))
		}
		dst = appendFloats(dst, v.nd.Data)
	default:
		panic(fmt.Sprintf("zframe: cannot encode kind %d", uint8(v.kind)))
	}
	return dst
}

func appendFloats(dst zcode.Bytes, fs []float64) zcode.Bytes {
	dst = zcode.AppendUvarint(dst, uint64(len(fs)))
	for _, f := range fs {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(f))
	}
	return dst
}

// Decode decodes a single value from the front of b and returns it with the
// remainder of b.
func Decode(b zcode.Bytes) (Value, zcode.Bytes, error) {
	if len(b) == 0 {
		return Undefined, nil, fmt.Errorf("%w: empty buffer", ErrBadValue)
	}
	kind := Kind(b[0])
	b = b[1:]
	var err error
	switch kind {
	case KindUndefined:
		return Undefined, b, nil
	case KindInt:
		var i int64
		if i, b, err = zcode.ReadVarint(b); err != nil {
			return Undefined, nil, badValue(kind, err)
		}
		return NewInt(i), b, nil
	case KindDatetime:
		var nanos, tz int64
		if nanos, b, err = zcode.ReadVarint(b); err != nil {
			return Undefined, nil, badValue(kind, err)
		}
		if tz, b, err = zcode.ReadVarint(b); err != nil {
			return Undefined, nil, badValue(kind, err)
		}
		return Value{kind: KindDatetime, i: nanos, tz: int32(tz)}, b, nil
	case KindFloat:
		var raw []byte
		if raw, b, err = zcode.ReadFixed(b, 8); err != nil {
			return Undefined, nil, badValue(kind, err)
		}
		return NewFloat(math.Float64frombits(binary.LittleEndian.Uint64(raw))), b, nil
	case KindString:
		it := b.Iter()
		body, err := it.Next()
		if err != nil {
			return Undefined, nil, badValue(kind, err)
		}
		return NewString(string(body)), it.Rest(), nil
	case KindVector:
		var vec []float64
		if vec, b, err = readFloats(b); err != nil {
			return Undefined, nil, badValue(kind, err)
		}
		return Value{kind: KindVector, vec: vec}, b, nil
	case KindList:
		var n uint64
		if n, b, err = zcode.ReadUvarint(b); err != nil {
			return Undefined, nil, badValue(kind, err)
		}
		if n > uint64(len(b)) {
			return Undefined, nil, badValue(kind, zcode.ErrShortBuffer)
		}
		list := make([]Value, n)
		for k := range list {
			if list[k], b, err = Decode(b); err != nil {
				return Undefined, nil, err
			}
		}
		return Value{kind: KindList, list: list}, b, nil
	case KindDict:
		var n uint64
		if n, b, err = zcode.ReadUvarint(b); err != nil {
			return Undefined, nil, badValue(kind, err)
		}
		if n > uint64(len(b)) {
			return Undefined, nil, badValue(kind, zcode.ErrShortBuffer)
		}
		dict := make([]Pair, n)
		for k := range dict {
			if dict[k].Key, b, err = Decode(b); err != nil {
				return Undefined, nil, err
			}
			if dict[k].Value, b, err = Decode(b); err != nil {
				return Undefined, nil, err
			}
		}
		return Value{kind: KindDict, dict: dict}, b, nil
	case KindImage:
		var dims [3]uint64
		for k := range dims {
			if dims[k], b, err = zcode.ReadUvarint(b); err != nil {
				return Undefined, nil, badValue(kind, err)
			}
		}
		var format []byte
		if format, b, err = zcode.ReadFixed(b, 1); err != nil {
			return Undefined, nil, badValue(kind, err)
		}
		it := b.Iter()
		data, err := it.Next()
		if err != nil {
			return Undefined, nil, badValue(kind, err)
		}
		img := &Image{
			Width:    int(dims[0]),
			Height:   int(dims[1]),
			Channels: int(dims[2]),
			Format:   ImageFormat(format[0]),
			Data:     append([]byte(nil), data...),
		}
		return Value{kind: KindImage, img: img}, it.Rest(), nil
	case KindNDArray:
		var rank uint64
		if rank, b, err = zcode.ReadUvarint(b); err != nil {
			return Undefined, nil, badValue(kind, err)
		}
		if rank > uint64(len(b)) {
			return Undefined, nil, badValue(kind, zcode.ErrShortBuffer)
		}
		shape := make([]int, rank)
		for k := range shape {
			var d uint64
			if d, b, err = zcode.ReadUvarint(b); err != nil {
				return Undefined, nil, badValue(kind, err)
			}
			shape[k] = int(d)
		}
		var data []float64
		if data, b, err = readFloats(b); err != nil {
			return Undefined, nil, badValue(kind, err)
		}
		return Value{kind: KindNDArray, nd: &NDArray{Shape: shape, Data: data}}, b, nil
	}
	return Undefined, nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
}

func badValue(kind Kind, err error) error {
	return fmt.Errorf("%w: %s: %s", ErrBadValue, kind, err)
}

func readFloats(b zcode.Bytes) ([]float64, zcode.Bytes, error) {
	n, b, err := zcode.ReadUvarint(b)
	if err != nil {
		return nil, nil, err
	}
	if n > uint64(len(b))/8 {
		return nil, nil, zcode.ErrShortBuffer
	}
	fs := make([]float64, n)
	for k := range fs {
		fs[k] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*k:]))
	}
	return fs, b[8*n:], nil
}

// EncodeRow appends the encodings of the cells of row to dst with no
// framing.  DecodeRow reads them back given the number of cells.
func EncodeRow(dst zcode.Bytes, row []Value) zcode.Bytes {
	for _, v := range row {
		dst = v.Append(dst)
	}
	return dst
}

// DecodeRow decodes exactly n values from b, appending them to dst[:0].
// It is an error for bytes to remain after the n-th value.
func DecodeRow(dst []Value, b zcode.Bytes, n int) ([]Value, error) {
	dst = dst[:0]
	for k := 0; k < n; k++ {
		v, rest, err := Decode(b)
		if err != nil {
			return nil, err
		}
		dst = append(dst, v)
		b = rest
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d cells", ErrBadValue, len(b), n)
	}
	return dst, nil
}
