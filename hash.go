package zframe

import (
	"encoding/binary"
	"math"

	"github.com/brimdata/zframe/zcode"
	"github.com/cespare/xxhash/v2"
)

// Hash returns a 64-bit hash of v consistent with Equal: equal values hash
// equal.  Floats holding an integral value hash as the corresponding int and
// datetimes hash by instant.
func (v Value) Hash() uint64 {
	var scratch [64]byte
	return xxhash.Sum64(v.appendHashKey(scratch[:0]))
}

const (
	hashInt   = 'i'
	hashFloat = 'f'
)

var nanBits = math.Float64bits(math.NaN())

// appendHashKey appends a canonical byte form of v in which Equal values
// have identical bytes.
func (v Value) appendHashKey(dst []byte) []byte {
	switch v.kind {
	case KindUndefined:
		return append(dst, byte(KindUndefined))
	case KindInt:
		return binary.LittleEndian.AppendUint64(append(dst, hashInt), uint64(v.i))
	case KindFloat:
		return appendFloatHashKey(dst, v.f)
	case KindString:
		dst = zcode.AppendUvarint(append(dst, byte(KindString)), uint64(len(v.s)))
		return append(dst, v.s...)
	case KindVector:
		dst = zcode.AppendUvarint(append(dst, byte(KindVector)), uint64(len(v.vec)))
		for _, f := range v.vec {
			dst = appendFloatHashKey(dst, f)
		}
		return dst
	case KindList:
		dst = zcode.AppendUvarint(append(dst, byte(KindList)), uint64(len(v.list)))
		for _, elem := range v.list {
			dst = elem.appendHashKey(dst)
		}
		return dst
	case KindDict:
		dst = zcode.AppendUvarint(append(dst, byte(KindDict)), uint64(len(v.dict)))
		for _, p := range v.dict {
			dst = p.Key.appendHashKey(dst)
			dst = p.Value.appendHashKey(dst)
		}
		return dst
	case KindDatetime:
		return binary.LittleEndian.AppendUint64(append(dst, byte(KindDatetime)), uint64(v.i))
	case KindImage:
		dst = append(dst, byte(KindImage))
		dst = zcode.AppendUvarint(dst, uint64(v.img.Width))
		dst = zcode.AppendUvarint(dst, uint64(v.img.Height))
		dst = zcode.AppendUvarint(dst, uint64(v.img.Channels))
		dst = append(dst, byte(v.img.Format))
		dst = zcode.AppendUvarint(dst, uint64(len(v.img.Data)))
		return append(dst, v.img.Data...)
	case KindNDArray:
		dst = zcode.AppendUvarint(append(dst, byte(KindNDArray)), uint64(len(v.nd.Shape)))
		for _, d := range v.nd.Shape {
			dst = zcode.AppendUvarint(dst, uint64(d))
		}
		dst = zcode.AppendUvarint(dst, uint64(len(v.nd.Data)))
		for _, f := range v.nd.Data {
			dst = appendFloatHashKey(dst, f)
		}
		return dst
	}
	panic("zframe: bad kind in Hash")
}

func appendFloatHashKey(dst []byte, f float64) []byte {
	if math.IsNaN(f) {
		return binary.LittleEndian.AppendUint64(append(dst, hashFloat), nanBits)
	}
	if t := math.Trunc(f); t == f && f >= negTwoTo63 && f < twoTo63 {
		return binary.LittleEndian.AppendUint64(append(dst, hashInt), uint64(int64(t)))
	}
	return binary.LittleEndian.AppendUint64(append(dst, hashFloat), math.Float64bits(f))
}

// HashCombine mixes h2 into h1.  The result depends on argument order.
func HashCombine(h1, h2 uint64) uint64 {
	return h1 ^ (h2 + 0x9e3779b97f4a7c15 + (h1 << 6) + (h1 >> 2))
}

// HashRow combines the hashes of row at the given positions, in order.
func HashRow(row []Value, positions []int) uint64 {
	var h uint64
	for _, p := range positions {
		h = HashCombine(h, row[p].Hash())
	}
	return h
}
