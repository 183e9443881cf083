package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/bayleafwalker/dbchain/internal/graph"
	"github.com/bayleafwalker/dbchain/internal/step"
	"github.com/bayleafwalker/dbchain/internal/version"
)

// DefaultPlanner adds every database to a fresh dependency graph, in the
// order given, and orders the result.
type DefaultPlanner struct {
	Log logr.Logger
}

func NewDefault(log logr.Logger) *DefaultPlanner {
	return &DefaultPlanner{Log: log}
}

func (p *DefaultPlanner) Plan(ctx context.Context, in Input) (Plan, error) {
	if len(in.Databases) == 0 {
		return Plan{}, fmt.Errorf("%w: no databases", ErrInvalidInput)
	}

	log := p.Log
	if in.Name != "" {
		log = log.WithValues("plan", in.Name)
	}
	g := graph.New(log)
	plan := Plan{}
	for _, db := range in.Databases {
		if err := ctx.Err(); err != nil {
			return Plan{}, err
		}
		req, err := upgradeRequest(in, db)
		if err != nil {
			return Plan{}, err
		}
		res, err := g.BuildUpgradePath(req)
		if err != nil {
			return Plan{}, err
		}
		plan.Databases = append(plan.Databases, DatabasePlan{
			Name:             db.Name,
			InstalledVersion: strings.TrimSpace(db.InstalledVersion),
			TargetVersion:    res.TargetVersion.String(),
			Schemas:          res.Schemas,
			Groups:           len(res.Groups),
		})
	}

	groups, skipped, err := g.TopologicalOrder()
	if err != nil {
		return Plan{}, err
	}
	plan.Groups = groups
	for _, grp := range groups {
		plan.Steps = append(plan.Steps, plannedStep(grp))
	}
	for _, s := range skipped {
		plan.Diagnostics.SkippedDependencies = append(plan.Diagnostics.SkippedDependencies, SkippedDependency{
			Group:      s.Group,
			Dependency: s.Dependency.String(),
		})
	}
	return plan, nil
}

func upgradeRequest(in Input, db DatabaseRequest) (graph.UpgradeRequest, error) {
	name := strings.TrimSpace(db.Name)
	if name == "" {
		return graph.UpgradeRequest{}, fmt.Errorf("%w: database without a name", ErrInvalidInput)
	}
	req := graph.UpgradeRequest{
		Database:        name,
		ExistingSchemas: db.Schemas,
		ScriptPaths:     append(append([]string(nil), db.ScriptPaths...), in.ScriptPaths...),
		ServiceUsers:    in.ServiceUsers,
		InsertTestData:  in.InsertTestData,
	}
	if raw := strings.TrimSpace(db.InstalledVersion); raw != "" {
		v, err := version.Parse(raw)
		if err != nil {
			return graph.UpgradeRequest{}, fmt.Errorf("%w: database %s: installed version: %v", ErrInvalidInput, name, err)
		}
		req.SourceVersion = v
	}

	target := strings.TrimSpace(db.TargetVersion)
	if target == "" {
		return graph.UpgradeRequest{}, fmt.Errorf("%w: database %s has no target version", ErrInvalidInput, name)
	}
	if v, err := version.Parse(target); err == nil {
		req.TargetVersion = v
	} else {
		req.TargetConstraint = target
	}
	return req, nil
}

func plannedStep(grp *step.StepGroup) PlannedStep {
	ps := PlannedStep{
		Database:    grp.Database,
		Kind:        string(grp.Kind),
		Description: grp.ShortDescription(),
		Script:      grp.ScriptPath,
	}
	if grp.HasVersion() {
		ps.Version = grp.Version.String()
	}
	for _, s := range grp.Steps {
		ps.Actions = append(ps.Actions, s.Description())
	}
	return ps
}

// Summary renders the ordered plan one group per line.
func (p Plan) Summary() string {
	b := strings.Builder{}
	for i, s := range p.Steps {
		fmt.Fprintf(&b, "%3d. %s\n", i+1, s.Description)
		for _, a := range s.Actions {
			fmt.Fprintf(&b, "       - %s\n", a)
		}
	}
	return b.String()
}
