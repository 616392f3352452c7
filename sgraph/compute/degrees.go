package compute

import (
	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sarray"
	"github.com/brimdata/zframe/sgraph"
	"go.uber.org/zap"
)

// Degrees counts the edges touching each vertex of group in direction dir,
// whatever the group of the other endpoint.  A self loop counts twice
// under sgraph.Any.
func Degrees(rctx *runtime.Context, g *sgraph.Graph, dir sgraph.Direction, group string) ([]*sarray.Array, error) {
	groups := make([]string, g.NumGroups())
	for k := range groups {
		groups[k] = g.GroupName(k)
	}
	count := func(_, _, _ []zframe.Value, _ sgraph.Direction, acc *int64) {
		*acc++
	}
	return Gather[int64](rctx, g, count, 0, Int64Codec, GatherOptions{
		Direction:     dir,
		CentralGroup:  group,
		ComputeGroups: groups,
	})
}

// Iterate calls step with iteration numbers 0, 1, ... until it reports
// convergence, returns an error, or maxIter steps have run.  It returns
// the number of steps run.  Cancellation is checked before each step.
func Iterate(rctx *runtime.Context, maxIter int, step func(iter int) (bool, error)) (int, error) {
	for iter := 0; iter < maxIter; iter++ {
		if err := rctx.CheckCancel(); err != nil {
			return iter, err
		}
		done, err := step(iter)
		if err != nil {
			return iter + 1, err
		}
		if done {
			rctx.Logger.Debug("compute converged", zap.Int("iterations", iter+1))
			return iter + 1, nil
		}
	}
	rctx.Logger.Debug("compute iteration limit reached", zap.Int("iterations", maxIter))
	return maxIter, nil
}
