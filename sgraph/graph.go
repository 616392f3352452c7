// Package sgraph implements a property graph stored as frames.
//
// Vertices are divided into named groups and, within a group, into a fixed
// number of partitions by the hash of their id.  Each vertex partition is a
// frame whose VIDColumn holds the vertex ids; a vertex's row offset in its
// partition is its local id.  Edges from group A to group B whose source
// lies in partition i and destination in partition j are stored in edge
// partition (A, B, i, j), a frame whose SrcColumn and DstColumn hold local
// ids.
//
// A Graph is not safe for concurrent mutation.
package sgraph

import (
	"fmt"
	"strings"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/zqe"
	"golang.org/x/exp/slices"
)

const (
	VIDColumn = "__id"
	SrcColumn = "__src_id"
	DstColumn = "__dst_id"

	DefaultGroup = ""

	// privatePrefix marks the reserved id columns.
	privatePrefix = "__"
)

type Direction int

const (
	In Direction = 1 << iota
	Out
	Any = In | Out
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case Any:
		return "any"
	}
	return fmt.Sprintf("sgraph.Direction(%d)", int(d))
}

type VertexPartitionAddress struct {
	Group     int
	Partition int
}

type EdgePartitionAddress struct {
	SrcGroup   int
	DstGroup   int
	Partition1 int
	Partition2 int
}

func (a EdgePartitionAddress) SrcVertexPartition() VertexPartitionAddress {
	return VertexPartitionAddress{Group: a.SrcGroup, Partition: a.Partition1}
}

func (a EdgePartitionAddress) DstVertexPartition() VertexPartitionAddress {
	return VertexPartitionAddress{Group: a.DstGroup, Partition: a.Partition2}
}

type groupPair struct {
	a, b int
}

type Graph struct {
	rctx          *runtime.Context
	numPartitions int
	vidKind       zframe.Kind
	groupNames    []string
	// vertices[group][partition]
	vertices [][]*sframe.Frame
	// edges[{a, b}][p1*numPartitions+p2]
	edges map[groupPair][]*sframe.Frame
}

// New returns an empty graph with a single default group.  Zero
// partitions means the graph.num_partitions setting of rctx.Config.
func New(rctx *runtime.Context, numPartitions int) (*Graph, error) {
	if numPartitions == 0 {
		numPartitions = rctx.Config.Graph.NumPartitions
	}
	if numPartitions < 1 {
		return nil, zqe.ErrInvalid("sgraph: %d partitions", numPartitions)
	}
	g := &Graph{
		rctx:          rctx,
		numPartitions: numPartitions,
		vidKind:       zframe.KindUndefined,
		edges:         make(map[groupPair][]*sframe.Frame),
	}
	if _, err := g.AddGroup(DefaultGroup); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) Context() *runtime.Context {
	return g.rctx
}

func (g *Graph) NumPartitions() int {
	return g.numPartitions
}

// VertexIDKind is KindInt or KindString once any vertex exists and
// KindUndefined before.
func (g *Graph) VertexIDKind() zframe.Kind {
	return g.vidKind
}

// PartitionOf returns the vertex partition holding vid.
func (g *Graph) PartitionOf(vid zframe.Value) int {
	return int(vid.Hash() % uint64(g.numPartitions))
}

func (g *Graph) NumGroups() int {
	return len(g.groupNames)
}

func (g *Graph) GroupName(i int) string {
	return g.groupNames[i]
}

// GroupID returns the index of the named group.
func (g *Graph) GroupID(name string) (int, error) {
	if k := slices.Index(g.groupNames, name); k >= 0 {
		return k, nil
	}
	return -1, sframe.NotFound("vertex group", name, g.groupNames)
}

// AddGroup returns the index of the named group, creating it with empty
// vertex and edge partitions if needed.
func (g *Graph) AddGroup(name string) (int, error) {
	if k := slices.Index(g.groupNames, name); k >= 0 {
		return k, nil
	}
	id := len(g.groupNames)
	parts := make([]*sframe.Frame, g.numPartitions)
	for p := range parts {
		f, err := g.emptyVertexFrame()
		if err != nil {
			return -1, err
		}
		parts[p] = f
	}
	g.groupNames = append(g.groupNames, name)
	g.vertices = append(g.vertices, parts)
	for other := 0; other <= id; other++ {
		for _, pair := range []groupPair{{id, other}, {other, id}} {
			if _, ok := g.edges[pair]; ok {
				continue
			}
			parts := make([]*sframe.Frame, g.numPartitions*g.numPartitions)
			for p := range parts {
				f, err := g.emptyEdgeFrame()
				if err != nil {
					return -1, err
				}
				parts[p] = f
			}
			g.edges[pair] = parts
		}
	}
	return id, nil
}

func (g *Graph) emptyVertexFrame() (*sframe.Frame, error) {
	return sframe.FromRows(g.rctx, []string{VIDColumn}, []zframe.Kind{g.vidKind}, nil, 1)
}

func (g *Graph) emptyEdgeFrame() (*sframe.Frame, error) {
	return sframe.FromRows(g.rctx, []string{SrcColumn, DstColumn}, []zframe.Kind{zframe.KindInt, zframe.KindInt}, nil, 1)
}

// bootstrap fixes the vertex id kind on first insertion.
func (g *Graph) bootstrap(kind zframe.Kind) error {
	if kind != zframe.KindInt && kind != zframe.KindString {
		return zqe.ErrInvalid("sgraph: vertex ids must be int or string, not %s", kind)
	}
	if g.vidKind == kind {
		return nil
	}
	if g.vidKind != zframe.KindUndefined {
		return zqe.ErrInvalid("sgraph: vertex ids are %s, not %s", g.vidKind, kind)
	}
	for _, parts := range g.vertices {
		for p := range parts {
			f, err := sframe.FromRows(g.rctx, []string{VIDColumn}, []zframe.Kind{kind}, nil, 1)
			if err != nil {
				return err
			}
			parts[p] = f
		}
	}
	g.vidKind = kind
	return nil
}

func (g *Graph) edgeGroup(groupA, groupB string) ([]*sframe.Frame, error) {
	a, err := g.GroupID(groupA)
	if err != nil {
		return nil, err
	}
	b, err := g.GroupID(groupB)
	if err != nil {
		return nil, err
	}
	return g.edges[groupPair{a, b}], nil
}

func (g *Graph) VertexPartition(addr VertexPartitionAddress) *sframe.Frame {
	return g.vertices[addr.Group][addr.Partition]
}

// SetVertexPartition replaces a vertex partition.  The new frame must
// have the same rows as the old one and the same columns as the group's
// other partitions.
func (g *Graph) SetVertexPartition(addr VertexPartitionAddress, f *sframe.Frame) error {
	old := g.vertices[addr.Group][addr.Partition]
	if f.NumRows() != old.NumRows() {
		return zqe.ErrInvalid("sgraph: vertex partition has %d rows, not %d", f.NumRows(), old.NumRows())
	}
	if !slices.Equal(f.ColumnNames(), old.ColumnNames()) {
		return zqe.ErrInvalid("sgraph: vertex partition columns %v do not match %v", f.ColumnNames(), old.ColumnNames())
	}
	g.vertices[addr.Group][addr.Partition] = f
	return nil
}

func (g *Graph) EdgePartition(addr EdgePartitionAddress) *sframe.Frame {
	return g.edges[groupPair{addr.SrcGroup, addr.DstGroup}][addr.Partition1*g.numPartitions+addr.Partition2]
}

// SetEdgePartition replaces an edge partition.  The new frame must have
// the same columns as the old one.
func (g *Graph) SetEdgePartition(addr EdgePartitionAddress, f *sframe.Frame) error {
	parts := g.edges[groupPair{addr.SrcGroup, addr.DstGroup}]
	k := addr.Partition1*g.numPartitions + addr.Partition2
	if !slices.Equal(f.ColumnNames(), parts[k].ColumnNames()) {
		return zqe.ErrInvalid("sgraph: edge partition columns %v do not match %v", f.ColumnNames(), parts[k].ColumnNames())
	}
	parts[k] = f
	return nil
}

// NumVertices returns the number of vertices in all groups.
func (g *Graph) NumVertices() int64 {
	var n int64
	for k := range g.vertices {
		n += g.numVerticesIn(k)
	}
	return n
}

// NumVerticesIn returns the number of vertices in the named group.
func (g *Graph) NumVerticesIn(group string) (int64, error) {
	k, err := g.GroupID(group)
	if err != nil {
		return 0, err
	}
	return g.numVerticesIn(k), nil
}

func (g *Graph) numVerticesIn(group int) int64 {
	var n int64
	for _, f := range g.vertices[group] {
		n += f.NumRows()
	}
	return n
}

// NumEdges returns the number of edges between all groups.
func (g *Graph) NumEdges() int64 {
	var n int64
	for _, parts := range g.edges {
		for _, f := range parts {
			n += f.NumRows()
		}
	}
	return n
}

// NumEdgesBetween returns the number of edges from groupA to groupB.
func (g *Graph) NumEdgesBetween(groupA, groupB string) (int64, error) {
	parts, err := g.edgeGroup(groupA, groupB)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, f := range parts {
		n += f.NumRows()
	}
	return n, nil
}

func (g *Graph) Empty() bool {
	return g.NumVertices() == 0 && g.NumEdges() == 0
}

func isPrivate(name string) bool {
	return strings.HasPrefix(name, privatePrefix)
}
