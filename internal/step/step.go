// Package step holds the units of work a deployment plan is made of.
//
// The planner only builds and orders step groups. Execute is the contract
// for whatever runs the plan afterwards; nothing in planning calls it.
package step

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bayleafwalker/dbchain/internal/script"
	"github.com/bayleafwalker/dbchain/internal/version"
)

// Execer is the part of *sql.DB / *sql.Tx a step needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Step is one action inside a StepGroup.
type Step interface {
	Description() string
	Execute(ctx context.Context, db Execer) error
}

type GroupKind string

const (
	KindInitial GroupKind = "initial"
	KindCreate  GroupKind = "create"
	KindUpgrade GroupKind = "upgrade"
	KindFinish  GroupKind = "finish"
)

// StepGroup upgrades one database by exactly one script, or stands for its
// installed state, or finishes its upgrade.
type StepGroup struct {
	Database string
	Kind     GroupKind
	// Version is the version reached once the group has run. It is the zero
	// Version for a database that does not exist yet.
	Version version.Version
	// SourceVersion is set for upgrade groups only.
	SourceVersion version.Version
	ScriptPath    string

	// Schemas owned by the database after this group. When InheritSchemas is
	// set the script did not declare any and the previous set carries over.
	Schemas        []string
	InheritSchemas bool

	// CrossBranch marks scripts that merge separate upgrade branches.
	CrossBranch  bool
	Dependencies []script.UnresolvedDependency
	Steps        []Step
}

func (g *StepGroup) HasVersion() bool { return g.Version.IsValid() }

func (g *StepGroup) ShortDescription() string {
	switch g.Kind {
	case KindInitial:
		if !g.HasVersion() {
			return fmt.Sprintf("%s (not installed)", g.Database)
		}
		return fmt.Sprintf("%s (installed %s)", g.Database, g.Version)
	case KindCreate:
		return fmt.Sprintf("%s %s (create)", g.Database, g.Version)
	case KindUpgrade:
		return fmt.Sprintf("%s %s-%s", g.Database, g.SourceVersion, g.Version)
	case KindFinish:
		if !g.HasVersion() {
			return fmt.Sprintf("%s (finish)", g.Database)
		}
		return fmt.Sprintf("%s %s (finish)", g.Database, g.Version)
	}
	return g.Database
}

func (g *StepGroup) LongDescription() string {
	b := strings.Builder{}
	b.WriteString(g.ShortDescription())
	if g.ScriptPath != "" {
		b.WriteString(" [")
		b.WriteString(g.ScriptPath)
		b.WriteString("]")
	}
	for _, s := range g.Steps {
		b.WriteString("\n  - ")
		b.WriteString(s.Description())
	}
	return b.String()
}

func (g *StepGroup) String() string { return g.ShortDescription() }

// Execute runs every step in order and stops at the first failure.
func (g *StepGroup) Execute(ctx context.Context, db Execer) error {
	for _, s := range g.Steps {
		if err := s.Execute(ctx, db); err != nil {
			return fmt.Errorf("%s: %s: %w", g.ShortDescription(), s.Description(), err)
		}
	}
	return nil
}

// ApplySchemaChanges resolves the schema set against the group that runs
// before this one and adds the create/drop steps for the difference.
// Created schemas are prepared before the script runs; dropped ones go after.
func (g *StepGroup) ApplySchemaChanges(previous []string) {
	if g.InheritSchemas {
		g.Schemas = append([]string(nil), previous...)
		return
	}
	created, dropped := SchemaChanges(previous, g.Schemas)
	if len(created) > 0 {
		g.Steps = append([]Step{&CreateSchemasStep{Schemas: created}}, g.Steps...)
	}
	if len(dropped) > 0 {
		g.Steps = append(g.Steps, &DropSchemasStep{Schemas: dropped})
	}
}

// SchemaChanges returns the schemas in next but not in previous, and those in
// previous but not in next. Names compare case-insensitively and "dbo" is
// never dropped.
func SchemaChanges(previous, next []string) (created, dropped []string) {
	prev := make(map[string]struct{}, len(previous))
	for _, s := range previous {
		prev[strings.ToLower(s)] = struct{}{}
	}
	nxt := make(map[string]struct{}, len(next))
	for _, s := range next {
		nxt[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range next {
		if _, ok := prev[strings.ToLower(s)]; !ok {
			created = append(created, s)
		}
	}
	for _, s := range previous {
		if strings.EqualFold(s, DefaultSchema) {
			continue
		}
		if _, ok := nxt[strings.ToLower(s)]; !ok {
			dropped = append(dropped, s)
		}
	}
	return created, dropped
}
