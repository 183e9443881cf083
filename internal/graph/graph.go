// Package graph merges the upgrade chains of every database into one graph
// and orders it so that cross-database dependencies hold.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/bayleafwalker/dbchain/internal/script"
	"github.com/bayleafwalker/dbchain/internal/step"
	"github.com/bayleafwalker/dbchain/internal/upgradepath"
	"github.com/bayleafwalker/dbchain/internal/version"
)

// DependencyNode wraps one step group. Edges are indices into the graph.
type DependencyNode struct {
	Group *step.StepGroup
	// Dependencies must run before this node.
	Dependencies []int
	// ReverseDependencies must run after this node. Filled by TopologicalOrder.
	ReverseDependencies []int
}

type versionNode struct {
	version version.Version
	node    int
}

type DependencyGraph struct {
	nodes []DependencyNode
	// versions maps a lowercased database name to its chain, ascending.
	versions map[string][]versionNode
	ordered  bool
	log      logr.Logger
}

func New(log logr.Logger) *DependencyGraph {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &DependencyGraph{
		versions: map[string][]versionNode{},
		log:      log,
	}
}

// UpgradeRequest describes one database to plan.
type UpgradeRequest struct {
	Database string
	// SourceVersion is the zero Version when the database is not installed.
	SourceVersion version.Version
	// TargetVersion wins over TargetConstraint when both are set.
	TargetVersion version.Version
	// TargetConstraint is a version constraint or "latest" resolved against
	// the versions the scripts can reach.
	TargetConstraint string
	ExistingSchemas  []string
	ScriptPaths      []string
	ServiceUsers     []string
	InsertTestData   bool
}

type UpgradeResult struct {
	Database      string
	TargetVersion version.Version
	// Groups is the chain from the installed state to the finishing group.
	Groups []*step.StepGroup
	// Schemas owned by the database once the chain has run.
	Schemas []string
}

// SkippedDependency is an optional or soft dependency that did not resolve.
type SkippedDependency struct {
	Group      string
	Dependency script.UnresolvedDependency
}

func (s SkippedDependency) String() string {
	return fmt.Sprintf("%s: %s", s.Group, s.Dependency)
}

// Len returns the number of nodes in the graph.
func (g *DependencyGraph) Len() int { return len(g.nodes) }

// BuildUpgradePath finds the chain of scripts for one database and adds it to
// the graph, followed by a finishing group that grants rights and records the
// reached version.
func (g *DependencyGraph) BuildUpgradePath(req UpgradeRequest) (UpgradeResult, error) {
	if g.ordered {
		return UpgradeResult{}, ErrAlreadyOrdered
	}
	key := strings.ToLower(req.Database)
	if _, ok := g.versions[key]; ok {
		return UpgradeResult{}, fmt.Errorf("%w: %s", ErrDuplicateDatabase, req.Database)
	}
	log := g.log.WithValues("database", req.Database)

	paths, err := upgradepath.Build(upgradepath.Options{
		Database:       req.Database,
		Installed:      req.SourceVersion,
		Schemas:        req.ExistingSchemas,
		ScriptPaths:    req.ScriptPaths,
		InsertTestData: req.InsertTestData,
		Logger:         g.log,
	})
	if err != nil {
		return UpgradeResult{}, err
	}

	target, err := resolveTarget(req, paths.Versions())
	if err != nil {
		return UpgradeResult{}, err
	}
	chain, err := paths.FindUpgradePath(target)
	if err != nil {
		return UpgradeResult{}, err
	}

	schemas := chain[0].Schemas
	for _, grp := range chain[1:] {
		grp.ApplySchemaChanges(schemas)
		schemas = grp.Schemas
	}

	finish := &step.StepGroup{
		Database: req.Database,
		Kind:     step.KindFinish,
		Version:  target,
		Schemas:  append([]string(nil), schemas...),
	}
	for _, user := range req.ServiceUsers {
		finish.Steps = append(finish.Steps, &step.GrantRightsStep{User: user, Schemas: finish.Schemas})
	}
	finish.Steps = append(finish.Steps, &step.SetMetadataStep{Database: req.Database, Version: target, Schemas: finish.Schemas})

	table := make([]versionNode, 0, len(chain))
	prev := -1
	for _, grp := range chain {
		idx := g.addNode(grp, prev)
		if grp.HasVersion() {
			table = append(table, versionNode{version: grp.Version, node: idx})
		}
		prev = idx
	}
	g.addNode(finish, prev)

	sort.SliceStable(table, func(i, j int) bool { return table[i].version.Less(table[j].version) })
	g.versions[key] = table

	log.Info("planned upgrade path", "from", describeVersion(req.SourceVersion), "to", target.String(), "groups", len(chain)+1)
	return UpgradeResult{
		Database:      req.Database,
		TargetVersion: target,
		Groups:        append(chain, finish),
		Schemas:       append([]string(nil), schemas...),
	}, nil
}

// TopologicalOrder resolves every declared dependency into an edge and
// returns the groups in an order where each runs after its dependencies. It
// may only be called once.
func (g *DependencyGraph) TopologicalOrder() ([]*step.StepGroup, []SkippedDependency, error) {
	if g.ordered {
		return nil, nil, ErrAlreadyOrdered
	}
	g.ordered = true

	skipped, err := g.resolveDependencies()
	if err != nil {
		return nil, nil, err
	}
	for i := range g.nodes {
		for _, d := range g.nodes[i].Dependencies {
			g.nodes[d].ReverseDependencies = append(g.nodes[d].ReverseDependencies, i)
		}
	}

	remaining := make([]int, len(g.nodes))
	var frontier []int
	for i, n := range g.nodes {
		remaining[i] = len(n.Dependencies)
		if remaining[i] == 0 {
			frontier = append(frontier, i)
		}
	}
	stack := make([]int, 0, len(frontier))
	for i := len(frontier) - 1; i >= 0; i-- {
		stack = append(stack, frontier[i])
	}

	order := make([]*step.StepGroup, 0, len(g.nodes))
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, g.nodes[n].Group)
		for _, r := range g.nodes[n].ReverseDependencies {
			remaining[r]--
			if remaining[r] == 0 {
				stack = append(stack, r)
			}
		}
	}

	if len(order) < len(g.nodes) {
		err := &CycleError{Groups: g.findCycle(remaining)}
		g.log.Error(err, "dependency cycle", "groups", err.Groups)
		return nil, nil, err
	}
	g.log.V(1).Info("ordered step groups", "groups", len(order), "skippedDependencies", len(skipped))
	return order, skipped, nil
}

func (g *DependencyGraph) resolveDependencies() ([]SkippedDependency, error) {
	var skipped []SkippedDependency
	for i := range g.nodes {
		grp := g.nodes[i].Group
		for _, dep := range grp.Dependencies {
			found, planned := g.lookup(dep)
			if found < 0 {
				if dep.Type.IsRequired() {
					return nil, &MissingDependencyError{Group: grp.ShortDescription(), Dependency: dep, DatabasePlanned: planned}
				}
				g.log.V(1).Info("skipping dependency", "group", grp.ShortDescription(), "dependency", dep.String())
				skipped = append(skipped, SkippedDependency{Group: grp.ShortDescription(), Dependency: dep})
				continue
			}
			if dep.Type.IsReverse() {
				g.addDependency(found, i)
			} else {
				g.addDependency(i, found)
			}
		}
	}
	return skipped, nil
}

// lookup returns the node holding the highest planned version of the
// dependency's database that is within its range, or -1. planned reports
// whether the database was added at all.
func (g *DependencyGraph) lookup(dep script.UnresolvedDependency) (node int, planned bool) {
	table, planned := g.versions[strings.ToLower(dep.Database)]
	if !planned {
		return -1, false
	}
	i := sort.Search(len(table), func(i int) bool {
		return table[i].version.Compare(dep.MaxVersion) > 0
	}) - 1
	if i < 0 || table[i].version.Less(dep.MinVersion) {
		return -1, true
	}
	return table[i].node, true
}

// findCycle walks from the first stuck node along the first dependency that
// never ran until a node repeats, and returns the descriptions of the loop.
func (g *DependencyGraph) findCycle(remaining []int) []string {
	start := -1
	for i, r := range remaining {
		if r > 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	next := map[int]int{}
	seen := map[int]bool{}
	n := start
	for !seen[n] {
		seen[n] = true
		for _, d := range g.nodes[n].Dependencies {
			if remaining[d] > 0 {
				next[n] = d
				break
			}
		}
		n = next[n]
	}

	var out []string
	for m := n; ; {
		out = append(out, g.nodes[m].Group.ShortDescription())
		m = next[m]
		if m == n {
			break
		}
	}
	return out
}

func (g *DependencyGraph) addNode(grp *step.StepGroup, dependsOn int) int {
	node := DependencyNode{Group: grp}
	if dependsOn >= 0 {
		node.Dependencies = []int{dependsOn}
	}
	g.nodes = append(g.nodes, node)
	return len(g.nodes) - 1
}

// addDependency records that node runs after on.
func (g *DependencyGraph) addDependency(node, on int) {
	for _, d := range g.nodes[node].Dependencies {
		if d == on {
			return
		}
	}
	g.nodes[node].Dependencies = append(g.nodes[node].Dependencies, on)
}

func resolveTarget(req UpgradeRequest, available []version.Version) (version.Version, error) {
	if req.TargetVersion.IsValid() {
		return req.TargetVersion, nil
	}
	if strings.TrimSpace(req.TargetConstraint) == "" {
		return version.Version{}, fmt.Errorf("%w for database %s", ErrNoTargetVersion, req.Database)
	}
	c, err := version.ParseConstraint(req.TargetConstraint)
	if err != nil {
		return version.Version{}, fmt.Errorf("database %s: %w", req.Database, err)
	}
	v, ok := version.MaxSatisfying(c, available)
	if !ok {
		return version.Version{}, fmt.Errorf("%w for database %s: no script reaches a version matching %q", ErrNoTargetVersion, req.Database, req.TargetConstraint)
	}
	return v, nil
}

func describeVersion(v version.Version) string {
	if !v.IsValid() {
		return "none"
	}
	return v.String()
}
