// Package hilbert schedules work over the cells of a square grid in
// Hilbert-curve order.  Successive cells on the curve are adjacent, so a
// block of consecutive cells touches few distinct rows and columns.  The
// graph engine uses this to keep the vertex partitions of one block
// resident while it processes that block's edge partitions.
package hilbert

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Coord is a grid cell.
type Coord struct {
	Row int
	Col int
}

// Curve returns every cell of the n×n grid exactly once, in Hilbert order.
// When n is not a power of two the curve of the enclosing power-of-two grid
// is walked and cells outside the grid are skipped.
func Curve(n int) []Coord {
	if n <= 0 {
		return nil
	}
	side := 1
	for side < n {
		side <<= 1
	}
	coords := make([]Coord, 0, n*n)
	for d := 0; d < side*side; d++ {
		x, y := d2xy(side, d)
		if x < n && y < n {
			coords = append(coords, Coord{Row: x, Col: y})
		}
	}
	return coords
}

// d2xy converts a distance along the curve of a side×side grid to a cell.
func d2xy(side, d int) (int, int) {
	var x, y int
	t := d
	for s := 1; s < side; s <<= 1 {
		rx := 1 & (t / 2)
		ry := 1 & (t ^ rx)
		if ry == 0 {
			if rx == 1 {
				x = s - 1 - x
				y = s - 1 - y
			}
			x, y = y, x
		}
		x += s * rx
		y += s * ry
		t /= 4
	}
	return x, y
}

// BlockedParallelFor walks Curve(n) in blocks of blockSize cells.  For each
// block it calls preamble with the block's cells, then calls body on every
// cell of the block concurrently and waits for them to finish before moving
// to the next block.  The first error from preamble or body stops the walk.
// ctx is checked before each block.
func BlockedParallelFor(ctx context.Context, n, blockSize int, preamble func([]Coord) error, body func(Coord) error) error {
	if blockSize < 1 {
		blockSize = 1
	}
	coords := Curve(n)
	for start := 0; start < len(coords); start += blockSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		block := coords[start:min(start+blockSize, len(coords))]
		if preamble != nil {
			if err := preamble(block); err != nil {
				return err
			}
		}
		var group errgroup.Group
		for _, c := range block {
			c := c
			group.Go(func() error {
				return body(c)
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
	}
	return nil
}
