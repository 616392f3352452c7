package sgraph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/pkg/storage"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/zqe"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const (
	IndexObject  = "graph.json"
	indexVersion = 1
)

type index struct {
	Version       int         `json:"version"`
	NumPartitions int         `json:"partitions"`
	VIDKind       zframe.Kind `json:"vid_kind"`
	Groups        []string    `json:"groups"`
	EdgeGroups    [][2]int    `json:"edge_groups"`
}

func vertexObject(group, partition int) string {
	return fmt.Sprintf("v.%d.%d", group, partition)
}

func edgeObject(a, b, p1, p2 int) string {
	return fmt.Sprintf("e.%d.%d.%d.%d", a, b, p1, p2)
}

// Save copies every partition of the graph into directory uri.  It fails
// with a zqe.Exists error if uri already holds a graph.
func (g *Graph) Save(uri *storage.URI) error {
	rctx := g.rctx
	indexURI := uri.AppendPath(IndexObject)
	if ok, err := rctx.Engine.Exists(rctx, indexURI); err != nil {
		return err
	} else if ok {
		return zqe.ErrExists("%s", indexURI)
	}
	idx := index{
		Version:       indexVersion,
		NumPartitions: g.numPartitions,
		VIDKind:       g.vidKind,
		Groups:        g.groupNames,
	}
	for pair := range g.edges {
		idx.EdgeGroups = append(idx.EdgeGroups, [2]int{pair.a, pair.b})
	}
	slices.SortFunc(idx.EdgeGroups, func(x, y [2]int) bool {
		return x[0] < y[0] || (x[0] == y[0] && x[1] < y[1])
	})
	type job struct {
		f   *sframe.Frame
		obj string
	}
	var jobs []job
	for gid, parts := range g.vertices {
		for p, f := range parts {
			jobs = append(jobs, job{f, vertexObject(gid, p)})
		}
	}
	n := g.numPartitions
	for _, pair := range idx.EdgeGroups {
		for k, f := range g.edges[groupPair{pair[0], pair[1]}] {
			jobs = append(jobs, job{f, edgeObject(pair[0], pair[1], k/n, k%n)})
		}
	}
	err := runtime.ParallelFor(rctx, len(jobs), func(k int) error {
		return jobs[k].f.Save(rctx, uri.AppendPath(jobs[k].obj))
	})
	if err != nil {
		return err
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	if err := storage.Put(rctx, rctx.Engine, indexURI, bytes.NewReader(b)); err != nil {
		return err
	}
	rctx.Logger.Info("sgraph saved",
		zap.Stringer("uri", uri),
		zap.Int("groups", len(g.groupNames)),
		zap.Int64("vertices", g.NumVertices()),
		zap.Int64("edges", g.NumEdges()))
	return nil
}

// Open loads the graph saved in directory uri.
func Open(rctx *runtime.Context, uri *storage.URI) (*Graph, error) {
	b, err := storage.Get(rctx, rctx.Engine, uri.AppendPath(IndexObject))
	if err != nil {
		return nil, err
	}
	var idx index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	if idx.Version != indexVersion {
		return nil, zqe.ErrInvalid("%s: unsupported sgraph version %d", uri, idx.Version)
	}
	n := idx.NumPartitions
	if n < 1 || len(idx.Groups) == 0 {
		return nil, zqe.ErrInvalid("%s: malformed sgraph index", uri)
	}
	g := &Graph{
		rctx:          rctx,
		numPartitions: n,
		vidKind:       idx.VIDKind,
		groupNames:    idx.Groups,
		vertices:      make([][]*sframe.Frame, len(idx.Groups)),
		edges:         make(map[groupPair][]*sframe.Frame),
	}
	for gid := range g.vertices {
		g.vertices[gid] = make([]*sframe.Frame, n)
	}
	for _, pair := range idx.EdgeGroups {
		if pair[0] >= len(idx.Groups) || pair[1] >= len(idx.Groups) {
			return nil, zqe.ErrInvalid("%s: edge group %v out of range", uri, pair)
		}
		g.edges[groupPair{pair[0], pair[1]}] = make([]*sframe.Frame, n*n)
	}
	err = runtime.ParallelFor(rctx, len(g.vertices)*n, func(k int) error {
		gid, p := k/n, k%n
		f, err := sframe.Open(rctx, uri.AppendPath(vertexObject(gid, p)))
		g.vertices[gid][p] = f
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, pair := range idx.EdgeGroups {
		parts := g.edges[groupPair{pair[0], pair[1]}]
		err := runtime.ParallelFor(rctx, n*n, func(k int) error {
			f, err := sframe.Open(rctx, uri.AppendPath(edgeObject(pair[0], pair[1], k/n, k%n)))
			parts[k] = f
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}
