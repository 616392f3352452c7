package join

import (
	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/zqe"
	"golang.org/x/exp/slices"
)

// outputSchema names the columns of a join of left and right: every left
// column followed by the right columns that are not join keys.  A right
// name that is already taken is replaced by its entry in alter, or else
// suffixed with ".1".
func outputSchema(left, right *sframe.Frame, rightOn []int, alter map[string]string) ([]string, []zframe.Kind, error) {
	rightNames := right.ColumnNames()
	resolutions := make(map[string]struct{}, len(alter))
	for from, to := range alter {
		if !slices.Contains(rightNames, from) {
			return nil, nil, zqe.ErrInvalid("join: renamed column %q is not in the right frame", from)
		}
		if _, ok := resolutions[to]; ok {
			return nil, nil, zqe.ErrInvalid("join: resolution name %q is used more than once", to)
		}
		resolutions[to] = struct{}{}
		if slices.Contains(rightNames, to) {
			return nil, nil, zqe.ErrInvalid("join: resolution name %q is a column of the right frame", to)
		}
	}
	names := left.ColumnNames()
	kinds := left.ColumnKinds()
	used := make(map[string]struct{}, len(names))
	for _, name := range names {
		used[name] = struct{}{}
	}
	for k, name := range rightNames {
		if slices.Contains(rightOn, k) {
			continue
		}
		if _, ok := used[name]; ok {
			if to, ok := alter[name]; ok {
				if _, ok := used[to]; ok {
					return nil, nil, zqe.ErrInvalid("join: resolution name %q conflicts with an output column", to)
				}
				name = to
			} else {
				name += ".1"
			}
		}
		if _, ok := used[name]; ok {
			return nil, nil, zqe.ErrInvalid("join: output column %q is ambiguous", name)
		}
		used[name] = struct{}{}
		names = append(names, name)
		kinds = append(kinds, right.ColumnKind(k))
	}
	return names, kinds, nil
}
