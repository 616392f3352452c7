package join

import (
	"sync/atomic"

	"github.com/brimdata/zframe"
	"go.uber.org/zap"
)

// group holds the build-side rows sharing one join key.
type group struct {
	rows    [][]zframe.Value
	matched atomic.Bool
}

// hashTable indexes the rows of one build partition by join key.  Rows
// are added from a single goroutine; matching may then be called
// concurrently.
type hashTable struct {
	positions []int
	hash      func(row []zframe.Value, positions []int) uint64
	table     map[uint64][]*group
}

func newHashTable(positions []int) *hashTable {
	return &hashTable{
		positions: positions,
		hash:      zframe.HashRow,
		table:     make(map[uint64][]*group),
	}
}

// addRow adds row and reports whether it is the first row of its key.
func (h *hashTable) addRow(row []zframe.Value) bool {
	key := h.hash(row, h.positions)
	chain := h.table[key]
	for _, g := range chain {
		if h.equal(g.rows[0], row, h.positions) {
			g.rows = append(g.rows, row)
			return false
		}
	}
	h.table[key] = append(chain, &group{rows: [][]zframe.Value{row}})
	return true
}

// matching returns the group whose key equals the key of row at
// positions, or nil.  When mark is true the group is flagged as matched.
func (h *hashTable) matching(row []zframe.Value, positions []int, mark bool) *group {
	for _, g := range h.table[h.hash(row, positions)] {
		if h.equal(g.rows[0], row, positions) {
			if mark {
				g.matched.Store(true)
			}
			return g
		}
	}
	return nil
}

// equal compares the stored row's key with other's key at positions.
// With no key columns, two rows are equal only if both are empty.
func (h *hashTable) equal(stored, other []zframe.Value, positions []int) bool {
	if len(positions) == 0 {
		return len(stored) == 0 && len(other) == 0
	}
	return zframe.EqualRows(stored, h.positions, other, positions)
}

// each calls fn for every group.
func (h *hashTable) each(fn func(*group)) {
	for _, chain := range h.table {
		for _, g := range chain {
			fn(g)
		}
	}
}

func (h *hashTable) numStoredRows(logger *zap.Logger) int {
	var rows, keys int
	h.each(func(g *group) {
		keys++
		rows += len(g.rows)
	})
	logger.Debug("join hash table",
		zap.Int("hashes", len(h.table)),
		zap.Int("keys", keys),
		zap.Int("rows", rows))
	return rows
}
