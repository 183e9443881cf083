package planner

import (
	"github.com/bayleafwalker/dbchain/internal/step"
)

// Input is the normalized deployment request the planner operates on.
type Input struct {
	// Name identifies the request in logs and events.
	Name string `json:"name,omitempty"`
	// ScriptPaths are searched after each database's own paths.
	ScriptPaths    []string          `json:"scriptPaths,omitempty"`
	ServiceUsers   []string          `json:"serviceUsers,omitempty"`
	InsertTestData bool              `json:"insertTestData,omitempty"`
	Databases      []DatabaseRequest `json:"databases"`
}

type DatabaseRequest struct {
	Name string `json:"name"`
	// InstalledVersion is empty when the database does not exist yet.
	InstalledVersion string `json:"installedVersion,omitempty"`
	// TargetVersion is an exact version, "latest", or a constraint such as
	// "~2.1".
	TargetVersion string   `json:"targetVersion"`
	Schemas       []string `json:"schemas,omitempty"`
	ScriptPaths   []string `json:"scriptPaths,omitempty"`
}

// Plan is the ordered result of planning.
type Plan struct {
	// Groups are ready to hand to an executor. They are not serialized.
	Groups      []*step.StepGroup `json:"-"`
	Steps       []PlannedStep     `json:"steps"`
	Databases   []DatabasePlan    `json:"databases"`
	Diagnostics Diagnostics       `json:"diagnostics"`
}

// PlannedStep is the serializable view of one step group.
type PlannedStep struct {
	Database    string   `json:"database"`
	Kind        string   `json:"kind"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description"`
	Script      string   `json:"script,omitempty"`
	Actions     []string `json:"actions,omitempty"`
}

type DatabasePlan struct {
	Name             string   `json:"name"`
	InstalledVersion string   `json:"installedVersion,omitempty"`
	TargetVersion    string   `json:"targetVersion"`
	Schemas          []string `json:"schemas,omitempty"`
	Groups           int      `json:"groups"`
}

// Diagnostics captures information about planning that is not an error.
type Diagnostics struct {
	SkippedDependencies []SkippedDependency `json:"skippedDependencies,omitempty"`
}

// SkippedDependency is an optional or soft dependency nothing in the plan
// satisfied.
type SkippedDependency struct {
	Group      string `json:"group"`
	Dependency string `json:"dependency"`
}
