package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bayleafwalker/dbchain/internal/script"
)

var (
	// ErrAlreadyOrdered is returned when the graph is changed or ordered again
	// after TopologicalOrder ran.
	ErrAlreadyOrdered    = errors.New("dependency graph already ordered")
	ErrDuplicateDatabase = errors.New("database already added to the dependency graph")
	ErrNoTargetVersion   = errors.New("no target version")
)

// MissingDependencyError reports a hard dependency nothing in the graph
// satisfies.
type MissingDependencyError struct {
	// Group is the short description of the step group declaring the
	// dependency.
	Group      string
	Dependency script.UnresolvedDependency
	// DatabasePlanned is false when the database was never added at all.
	DatabasePlanned bool
}

func (e *MissingDependencyError) Error() string {
	if !e.DatabasePlanned {
		return fmt.Sprintf("%s: %s: database %s is not part of the deployment", e.Group, e.Dependency, e.Dependency.Database)
	}
	return fmt.Sprintf("%s: %s: no planned version of %s in range %s", e.Group, e.Dependency, e.Dependency.Database, e.Dependency.RangeString())
}

// CycleError lists the step groups of a dependency cycle in walk order.
type CycleError struct {
	Groups []string
}

func (e *CycleError) Error() string {
	if len(e.Groups) == 0 {
		return "dependency cycle"
	}
	return "dependency cycle: " + strings.Join(e.Groups, " -> ") + " -> " + e.Groups[0]
}
