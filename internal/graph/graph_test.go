package graph

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/google/go-cmp/cmp"

	"github.com/bayleafwalker/dbchain/internal/step"
	"github.com/bayleafwalker/dbchain/internal/upgradepath"
	"github.com/bayleafwalker/dbchain/internal/version"
)

func scriptDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func request(db, target, dir string) UpgradeRequest {
	return UpgradeRequest{Database: db, TargetVersion: version.MustParse(target), ScriptPaths: []string{dir}}
}

func mustBuild(t *testing.T, g *DependencyGraph, req UpgradeRequest) UpgradeResult {
	t.Helper()
	res, err := g.BuildUpgradePath(req)
	if err != nil {
		t.Fatalf("BuildUpgradePath(%s): %v", req.Database, err)
	}
	return res
}

func descriptions(groups []*step.StepGroup) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.ShortDescription())
	}
	return out
}

func position(t *testing.T, order []*step.StepGroup, desc string) int {
	t.Helper()
	for i, g := range order {
		if g.ShortDescription() == desc {
			return i
		}
	}
	t.Fatalf("%s not in order %v", desc, descriptions(order))
	return -1
}

func (g *DependencyGraph) nodeIndex(t *testing.T, desc string) int {
	t.Helper()
	for i, n := range g.nodes {
		if n.Group.ShortDescription() == desc {
			return i
		}
	}
	t.Fatalf("no node %s", desc)
	return -1
}

func assertValidOrder(t *testing.T, g *DependencyGraph, order []*step.StepGroup) {
	t.Helper()
	if len(order) != g.Len() {
		t.Fatalf("expected %d groups, got %d", g.Len(), len(order))
	}
	pos := make(map[*step.StepGroup]int, len(order))
	for i, grp := range order {
		pos[grp] = i
	}
	for _, n := range g.nodes {
		for _, d := range n.Dependencies {
			if pos[g.nodes[d].Group] >= pos[n.Group] {
				t.Fatalf("%s runs before its dependency %s", n.Group.ShortDescription(), g.nodes[d].Group.ShortDescription())
			}
		}
	}
}

func TestBuildUpgradePath_CreatesAndUpgrades(t *testing.T) {
	dir := scriptDir(t, map[string]string{
		"Orders_1.0.sql":     "--- schemas: Core\nCREATE TABLE [Core].[Orders] (Id INT)\n",
		"Orders_1.0-2.0.sql": "--- schemas: Core, Audit\nCREATE TABLE [Audit].[Log] (Id INT)\n",
	})

	g := New(logr.Discard())
	res := mustBuild(t, g, request("Orders", "2.0", dir))
	if diff := cmp.Diff([]string{"Core", "Audit"}, res.Schemas); diff != "" {
		t.Fatalf("schemas mismatch (-want +got):\n%s", diff)
	}

	order, skipped, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("expected no skipped dependencies, got %v", skipped)
	}
	want := []string{"Orders (not installed)", "Orders 1.0 (create)", "Orders 1.0-2.0", "Orders 2.0 (finish)"}
	if diff := cmp.Diff(want, descriptions(order)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	var steps [][]string
	for _, grp := range order {
		var s []string
		for _, st := range grp.Steps {
			s = append(s, st.Description())
		}
		steps = append(steps, s)
	}
	wantSteps := [][]string{
		{"none"},
		{"create schemas Core", "run script Orders_1.0.sql"},
		{"create schemas Audit", "run script Orders_1.0-2.0.sql"},
		{"set metadata Orders 2.0 [Core, Audit]"},
	}
	if diff := cmp.Diff(wantSteps, steps); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildUpgradePath_DropsSchemasAndGrantsRights(t *testing.T) {
	dir := scriptDir(t, map[string]string{
		"Orders_1.0-2.0.sql": "--- schemas: Core\n",
	})

	g := New(logr.Discard())
	res := mustBuild(t, g, UpgradeRequest{
		Database:        "Orders",
		SourceVersion:   version.MustParse("1.0"),
		TargetVersion:   version.MustParse("2.0"),
		ExistingSchemas: []string{"dbo", "Core", "Legacy"},
		ScriptPaths:     []string{dir},
		ServiceUsers:    []string{"app", "reporting"},
	})

	upgrade := res.Groups[1]
	if got := upgrade.Steps[len(upgrade.Steps)-1].Description(); got != "drop schemas Legacy" {
		t.Fatalf("expected Legacy to be dropped, got %q", got)
	}
	finish := res.Groups[2]
	var got []string
	for _, st := range finish.Steps {
		got = append(got, st.Description())
	}
	want := []string{"grant rights to app", "grant rights to reporting", "set metadata Orders 2.0 [Core]"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("finish steps mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildUpgradePath_TargetConstraint(t *testing.T) {
	dir := scriptDir(t, map[string]string{
		"Orders_1.0.sql":     "",
		"Orders_1.0-1.1.sql": "",
		"Orders_1.1-2.0.sql": "",
	})

	tests := []struct {
		constraint string
		want       string
	}{
		{constraint: "latest", want: "2.0"},
		{constraint: "<2.0", want: "1.1"},
		{constraint: "~1.0", want: "1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			g := New(logr.Discard())
			res := mustBuild(t, g, UpgradeRequest{Database: "Orders", TargetConstraint: tt.constraint, ScriptPaths: []string{dir}})
			if res.TargetVersion.String() != tt.want {
				t.Fatalf("expected target %s, got %s", tt.want, res.TargetVersion)
			}
		})
	}

	g := New(logr.Discard())
	if _, err := g.BuildUpgradePath(UpgradeRequest{Database: "Orders", TargetConstraint: ">=3.0", ScriptPaths: []string{dir}}); !errors.Is(err, ErrNoTargetVersion) {
		t.Fatalf("expected ErrNoTargetVersion, got %v", err)
	}
	if _, err := g.BuildUpgradePath(UpgradeRequest{Database: "Orders", ScriptPaths: []string{dir}}); !errors.Is(err, ErrNoTargetVersion) {
		t.Fatalf("expected ErrNoTargetVersion without a target, got %v", err)
	}
}

func TestBuildUpgradePath_UnreachableTarget(t *testing.T) {
	dir := scriptDir(t, map[string]string{"Orders_1.0.sql": ""})
	g := New(logr.Discard())
	_, err := g.BuildUpgradePath(request("Orders", "3.0", dir))
	var npe *upgradepath.NoPathError
	if !errors.As(err, &npe) {
		t.Fatalf("expected NoPathError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Orders") || !strings.Contains(err.Error(), "3.0") {
		t.Fatalf("expected error naming database and version, got %v", err)
	}
}

func TestBuildUpgradePath_Refusals(t *testing.T) {
	dir := scriptDir(t, map[string]string{"Orders_1.0.sql": "", "Billing_1.0.sql": ""})

	g := New(logr.Discard())
	mustBuild(t, g, request("Orders", "1.0", dir))
	if _, err := g.BuildUpgradePath(request("orders", "1.0", dir)); !errors.Is(err, ErrDuplicateDatabase) {
		t.Fatalf("expected ErrDuplicateDatabase, got %v", err)
	}
	if _, _, err := g.TopologicalOrder(); err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	if _, err := g.BuildUpgradePath(request("Billing", "1.0", dir)); !errors.Is(err, ErrAlreadyOrdered) {
		t.Fatalf("expected ErrAlreadyOrdered, got %v", err)
	}
	if _, _, err := g.TopologicalOrder(); !errors.Is(err, ErrAlreadyOrdered) {
		t.Fatalf("expected ErrAlreadyOrdered on the second call, got %v", err)
	}
}

func TestTopologicalOrder_RangeLookup(t *testing.T) {
	dir := scriptDir(t, map[string]string{
		"A_1.0.sql":     "",
		"A_1.0-1.1.sql": "",
		"A_1.1-2.0.sql": "",
		"B_1.0.sql":     "--- dependency: A-1.0-1.5\n",
	})

	g := New(logr.Discard())
	mustBuild(t, g, request("B", "1.0", dir))
	mustBuild(t, g, request("A", "2.0", dir))

	order, _, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	assertValidOrder(t, g, order)

	b := g.nodeIndex(t, "B 1.0 (create)")
	a11 := g.nodeIndex(t, "A 1.0-1.1")
	if diff := cmp.Diff([]int{b - 1, a11}, g.nodes[b].Dependencies); diff != "" {
		t.Fatalf("dependencies mismatch (-want +got):\n%s", diff)
	}
	if position(t, order, "A 1.0-1.1") > position(t, order, "B 1.0 (create)") {
		t.Fatalf("expected A 1.1 before B 1.0: %v", descriptions(order))
	}
}

func TestTopologicalOrder_RangeMissing(t *testing.T) {
	tests := []struct {
		directive string
		wantErr   bool
	}{
		{directive: "dependency", wantErr: true},
		{directive: "reverse-dependency", wantErr: true},
		{directive: "soft-dependency"},
		{directive: "optional-dependency"},
		{directive: "reverse-soft-dependency"},
		{directive: "reverse-optional-dependency"},
	}
	for _, tt := range tests {
		t.Run(tt.directive, func(t *testing.T) {
			dir := scriptDir(t, map[string]string{
				"A_1.0.sql":     "",
				"A_1.0-1.1.sql": "",
				"A_1.1-2.0.sql": "",
				"B_1.0.sql":     "--- " + tt.directive + ": A-3.0-4.0\n",
			})
			g := New(logr.Discard())
			mustBuild(t, g, request("A", "2.0", dir))
			mustBuild(t, g, request("B", "1.0", dir))

			order, skipped, err := g.TopologicalOrder()
			if tt.wantErr {
				var mde *MissingDependencyError
				if !errors.As(err, &mde) {
					t.Fatalf("expected MissingDependencyError, got %v", err)
				}
				if !mde.DatabasePlanned || mde.Group != "B 1.0 (create)" {
					t.Fatalf("unexpected error fields: %+v", mde)
				}
				return
			}
			if err != nil {
				t.Fatalf("TopologicalOrder: %v", err)
			}
			if len(skipped) != 1 || skipped[0].Group != "B 1.0 (create)" {
				t.Fatalf("expected one skipped dependency, got %v", skipped)
			}
			assertValidOrder(t, g, order)
		})
	}
}

func TestTopologicalOrder_CrossDatabaseAfter(t *testing.T) {
	dir := scriptDir(t, map[string]string{
		"A_1.0.sql": "",
		"B_1.0.sql": "--- after: A-1.0\n",
	})

	g := New(logr.Discard())
	mustBuild(t, g, request("B", "1.0", dir))
	mustBuild(t, g, request("A", "1.0", dir))
	order, _, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	assertValidOrder(t, g, order)
	if position(t, order, "A 1.0 (create)") > position(t, order, "B 1.0 (create)") {
		t.Fatalf("expected A 1.0 before B 1.0: %v", descriptions(order))
	}

	missing := New(logr.Discard())
	mustBuild(t, missing, request("B", "1.0", dir))
	_, _, err = missing.TopologicalOrder()
	var mde *MissingDependencyError
	if !errors.As(err, &mde) {
		t.Fatalf("expected MissingDependencyError, got %v", err)
	}
	if mde.DatabasePlanned || mde.Dependency.Database != "A" {
		t.Fatalf("unexpected error fields: %+v", mde)
	}
}

func TestTopologicalOrder_ReverseDependency(t *testing.T) {
	dir := scriptDir(t, map[string]string{
		"A_1.0.sql": "",
		"B_1.0.sql": "--- before: A-1.0\n",
	})

	g := New(logr.Discard())
	mustBuild(t, g, request("A", "1.0", dir))
	mustBuild(t, g, request("B", "1.0", dir))
	order, _, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	assertValidOrder(t, g, order)
	if position(t, order, "B 1.0 (create)") > position(t, order, "A 1.0 (create)") {
		t.Fatalf("expected B 1.0 before A 1.0: %v", descriptions(order))
	}
	a := g.nodeIndex(t, "A 1.0 (create)")
	if len(g.nodes[a].ReverseDependencies) != 1 {
		t.Fatalf("expected the finish group to be the only reverse dependency of A 1.0, got %v", g.nodes[a].ReverseDependencies)
	}
}

func TestTopologicalOrder_KeepsDeclarationOrder(t *testing.T) {
	dir := scriptDir(t, map[string]string{
		"A_1.0.sql": "",
		"B_1.0.sql": "",
	})

	g := New(logr.Discard())
	mustBuild(t, g, request("A", "1.0", dir))
	mustBuild(t, g, request("B", "1.0", dir))
	order, _, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	want := []string{
		"A (not installed)", "A 1.0 (create)", "A 1.0 (finish)",
		"B (not installed)", "B 1.0 (create)", "B 1.0 (finish)",
	}
	if diff := cmp.Diff(want, descriptions(order)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestTopologicalOrder_ReportsCycle(t *testing.T) {
	dir := scriptDir(t, map[string]string{
		"A_1.0.sql": "--- after: B\n",
		"B_1.0.sql": "--- after: C\n",
		"C_1.0.sql": "--- after: A\n",
	})

	var logged []string
	log := funcr.New(func(prefix, args string) {
		logged = append(logged, args)
	}, funcr.Options{})

	g := New(log)
	for _, db := range []string{"A", "B", "C"} {
		mustBuild(t, g, request(db, "1.0", dir))
	}
	_, _, err := g.TopologicalOrder()
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	want := []string{"A 1.0 (create)", "B 1.0 (create)", "C 1.0 (create)"}
	if diff := cmp.Diff(want, ce.Groups); diff != "" {
		t.Fatalf("cycle mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(err.Error(), "A 1.0 (create) -> B 1.0 (create) -> C 1.0 (create) -> A 1.0 (create)") {
		t.Fatalf("unexpected message %q", err.Error())
	}

	found := false
	for _, line := range logged {
		if strings.Contains(line, "dependency cycle") && strings.Contains(line, "C 1.0 (create)") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the cycle to be logged, got %v", logged)
	}
}
