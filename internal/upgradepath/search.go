package upgradepath

import (
	"fmt"
	"math"
	"sort"

	"github.com/bayleafwalker/dbchain/internal/step"
	"github.com/bayleafwalker/dbchain/internal/version"
)

// NoPathError reports a target version no chain of scripts reaches.
type NoPathError struct {
	Database string
	Target   version.Version
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("no upgrade path for database %s to version %s", e.Database, e.Target)
}

const unreached = math.MaxInt

// FindUpgradePath returns the chain of groups from the start node to the
// node reaching target.
//
// The search runs in iterations. Ordinary successors stay in the current
// iteration; successors marked cross-branch wait for the next one, so a chain
// crossing fewer branches always wins. Within an iteration the lowest-version
// successor is followed immediately and its siblings are queued highest
// version first. The search stops at the first node reaching target.
func (g *Graph) FindUpgradePath(target version.Version) ([]*step.StepGroup, error) {
	iteration := make(map[int]int, len(g.nodes))
	previous := make(map[int]int, len(g.nodes))
	reached := func(i int) int {
		if n, ok := iteration[i]; ok {
			return n
		}
		return unreached
	}

	iteration[0] = 0
	var current, next []int
	node := 0
	for {
		if node < 0 {
			if len(current) == 0 {
				if len(next) == 0 {
					g.log.V(1).Info("no upgrade path", "target", target.String())
					return nil, &NoPathError{Database: g.database, Target: target}
				}
				current, next = next, nil
			}
			node, current = current[0], current[1:]
		}

		group := g.nodes[node].Group
		if group.HasVersion() && group.Version.Equal(target) {
			return g.chain(node, previous), nil
		}

		var straight, cross []int
		for _, succ := range g.nodes[node].Next {
			crossing := g.nodes[succ].Group.CrossBranch
			n := iteration[node]
			if crossing {
				n++
			}
			if n >= reached(succ) {
				continue
			}
			iteration[succ] = n
			previous[succ] = node
			if crossing {
				cross = append(cross, succ)
			} else {
				straight = append(straight, succ)
			}
		}
		g.sortByVersion(straight)
		g.sortByVersion(cross)

		for i := len(cross) - 1; i >= 0; i-- {
			next = append(next, cross[i])
		}
		if len(straight) == 0 {
			node = -1
			continue
		}
		for i := len(straight) - 1; i >= 1; i-- {
			current = append(current, straight[i])
		}
		node = straight[0]
	}
}

func (g *Graph) sortByVersion(idx []int) {
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := g.nodes[idx[i]].Group, g.nodes[idx[j]].Group
		if c := version.Compare(a.Version, b.Version); c != 0 {
			return c < 0
		}
		return a.ScriptPath < b.ScriptPath
	})
}

// chain follows previous from end back to the start node.
func (g *Graph) chain(end int, previous map[int]int) []*step.StepGroup {
	var out []*step.StepGroup
	for i, n := end, 0; n <= len(g.nodes); n++ {
		out = append(out, g.nodes[i].Group)
		if i == 0 {
			break
		}
		i = previous[i]
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}
