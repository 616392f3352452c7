package sarray

import (
	"context"
	"fmt"
	"io"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/pkg/storage"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/exp/slices"
)

type CompressionFormat uint8

const (
	CompressionFormatNone CompressionFormat = 0
	CompressionFormatLZ4  CompressionFormat = 1
)

// maxBlockLength bounds the on-disk size of a block we are willing to read.
const maxBlockLength = 1 << 30

// block locates one compressed run of encoded values within a segment
// object.
type block struct {
	Offset    int64             `json:"offset"`
	Length    int32             `json:"length"`
	MemLength int32             `json:"mem_length"`
	Rows      int64             `json:"rows"`
	Format    CompressionFormat `json:"format"`
}

// spiller compresses blocks and appends them to a segment object.
type spiller struct {
	writer     io.Writer
	buf        []byte
	compressor lz4.Compressor
	off        int64
}

func (s *spiller) write(blocks []block, b []byte, rows int64) ([]block, error) {
	cf := CompressionFormatNone
	contentLen := len(b)
	// Use contentLen-1 so compression will fail if it doesn't result in
	// fewer bytes.
	s.buf = slices.Grow(s.buf[:0], contentLen-1)[:contentLen-1]
	zlen, err := s.compressor.CompressBlock(b, s.buf)
	if err != nil && err != lz4.ErrInvalidSourceShortBuffer {
		return nil, err
	}
	if zlen > 0 {
		b = s.buf[:zlen]
		cf = CompressionFormatLZ4
	}
	if _, err := s.writer.Write(b); err != nil {
		return nil, err
	}
	blk := block{
		Offset:    s.off,
		Length:    int32(len(b)),
		MemLength: int32(contentLen),
		Rows:      rows,
		Format:    cf,
	}
	s.off += int64(len(b))
	return append(blocks, blk), nil
}

// read decodes the values of blk from r.
func (blk block) read(r io.ReaderAt) ([]zframe.Value, error) {
	if blk.Length < 0 || blk.Length > maxBlockLength || blk.MemLength < 0 || blk.MemLength > maxBlockLength {
		return nil, fmt.Errorf("sarray: block too big: %d bytes", blk.Length)
	}
	zbuf := make([]byte, blk.Length)
	if n, err := r.ReadAt(zbuf, blk.Offset); err != nil && !(err == io.EOF && n == len(zbuf)) {
		return nil, err
	}
	ubuf := zbuf
	switch blk.Format {
	case CompressionFormatNone:
	case CompressionFormatLZ4:
		ubuf = make([]byte, blk.MemLength)
		n, err := lz4.UncompressBlock(zbuf, ubuf)
		if err != nil {
			return nil, fmt.Errorf("sarray: %w", err)
		}
		if n != len(ubuf) {
			return nil, fmt.Errorf("sarray: got %d uncompressed bytes, expected %d", n, len(ubuf))
		}
	default:
		return nil, fmt.Errorf("sarray: unknown compression format 0x%x", blk.Format)
	}
	vals, err := zframe.DecodeRow(make([]zframe.Value, 0, blk.Rows), ubuf, int(blk.Rows))
	if err != nil {
		return nil, err
	}
	return vals, nil
}

type blockKey struct {
	seg   *segment
	block int
}

// blockCache holds decoded blocks shared by every reader of the arrays
// that reference it.  Cached slices are never modified.
type blockCache struct {
	lru *lru.Cache[blockKey, []zframe.Value]
}

func newBlockCache(size int) *blockCache {
	if size < 1 {
		size = 1
	}
	c, err := lru.New[blockKey, []zframe.Value](size)
	if err != nil {
		panic(err)
	}
	return &blockCache{c}
}

// segment is an immutable run of rows stored in one object.  Arrays refer
// to segments by pointer so that concatenation and selection share them.
type segment struct {
	uri    *storage.URI
	rows   int64
	blocks []block
	// firstRow[k] is the segment-local row of the first value of block k;
	// firstRow[len(blocks)] == rows.
	firstRow []int64
}

func newSegment(uri *storage.URI, blocks []block) *segment {
	firstRow := make([]int64, len(blocks)+1)
	for k, blk := range blocks {
		firstRow[k+1] = firstRow[k] + blk.Rows
	}
	return &segment{
		uri:      uri,
		rows:     firstRow[len(blocks)],
		blocks:   blocks,
		firstRow: firstRow,
	}
}

func (s *segment) load(ctx context.Context, cache *blockCache, r io.ReaderAt, k int) ([]zframe.Value, error) {
	key := blockKey{s, k}
	if vals, ok := cache.lru.Get(key); ok {
		return vals, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vals, err := s.blocks[k].read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: block %d: %w", s.uri, k, err)
	}
	cache.lru.Add(key, vals)
	return vals, nil
}
