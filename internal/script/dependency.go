package script

import (
	"fmt"
	"strings"

	"github.com/bayleafwalker/dbchain/internal/version"
)

// DependencyType says how a step is ordered against a version range of
// another database, and whether that range has to exist.
type DependencyType int

const (
	// Hard: the other database reaches the range before this step runs.
	// Missing range is a configuration error.
	Hard DependencyType = iota
	// Optional behaves like Hard but is dropped when the range is missing.
	Optional
	// Soft behaves like Optional.
	Soft
	// ReverseHard: this step runs before the other database reaches the range.
	ReverseHard
	ReverseOptional
	ReverseSoft
)

var dependencyTypeNames = map[DependencyType]string{
	Hard:            "hard",
	Optional:        "optional",
	Soft:            "soft",
	ReverseHard:     "reverse-hard",
	ReverseOptional: "reverse-optional",
	ReverseSoft:     "reverse-soft",
}

func (t DependencyType) String() string {
	if s, ok := dependencyTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DependencyType(%d)", int(t))
}

// IsReverse reports whether the edge runs from the found step to the
// declaring step.
func (t DependencyType) IsReverse() bool {
	return t == ReverseHard || t == ReverseOptional || t == ReverseSoft
}

// IsRequired reports whether an unmatched range is fatal.
func (t DependencyType) IsRequired() bool {
	return t == Hard || t == ReverseHard
}

// UnresolvedDependency is a dependency as declared in a script, before it is
// bound to a concrete step of the other database.
type UnresolvedDependency struct {
	Type     DependencyType
	Database string
	// MinVersion and MaxVersion are inclusive. Open bounds are version.Min
	// and version.Max.
	MinVersion version.Version
	MaxVersion version.Version
}

func (d UnresolvedDependency) RangeString() string {
	return fmt.Sprintf("[%s, %s]", d.MinVersion, d.MaxVersion)
}

func (d UnresolvedDependency) String() string {
	return fmt.Sprintf("%s dependency on %s %s", d.Type, d.Database, d.RangeString())
}

// ParseDescriptor parses "db", "db-version", "db-*" or "db-min-max" where
// "*" is an open bound.
func ParseDescriptor(t DependencyType, raw string) (UnresolvedDependency, error) {
	s := strings.TrimSpace(raw)
	parts := strings.Split(s, "-")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" {
		return UnresolvedDependency{}, fmt.Errorf("%w: %q has no database name", ErrInvalidDescriptor, raw)
	}

	dep := UnresolvedDependency{Type: t, Database: parts[0], MinVersion: version.Min, MaxVersion: version.Max}
	switch len(parts) {
	case 1:
	case 2:
		if parts[1] == "*" {
			break
		}
		v, err := version.Parse(parts[1])
		if err != nil {
			return UnresolvedDependency{}, fmt.Errorf("%w: %q: %v", ErrInvalidDescriptor, raw, err)
		}
		dep.MinVersion, dep.MaxVersion = v, v
	case 3:
		lo, err := version.ParseBound(parts[1], true)
		if err != nil {
			return UnresolvedDependency{}, fmt.Errorf("%w: %q: min: %v", ErrInvalidDescriptor, raw, err)
		}
		hi, err := version.ParseBound(parts[2], false)
		if err != nil {
			return UnresolvedDependency{}, fmt.Errorf("%w: %q: max: %v", ErrInvalidDescriptor, raw, err)
		}
		if version.Compare(lo, hi) > 0 {
			return UnresolvedDependency{}, fmt.Errorf("%w: %q: min %s is above max %s", ErrInvalidDescriptor, raw, lo, hi)
		}
		dep.MinVersion, dep.MaxVersion = lo, hi
	default:
		return UnresolvedDependency{}, fmt.Errorf("%w: %q has too many '-' separated parts", ErrInvalidDescriptor, raw)
	}
	return dep, nil
}

// Shorthand builds the dependency for a bare "after: db" or "before: db"
// directive. The range is the declaring script's own [source, target].
func Shorthand(t DependencyType, database string, source, target version.Version) (UnresolvedDependency, error) {
	db := strings.TrimSpace(database)
	if db == "" {
		return UnresolvedDependency{}, fmt.Errorf("%w: empty database name", ErrInvalidDescriptor)
	}
	if strings.Contains(db, "-") {
		return UnresolvedDependency{}, fmt.Errorf("%w: %q is not a bare database name", ErrInvalidDescriptor, database)
	}
	return UnresolvedDependency{Type: t, Database: db, MinVersion: source, MaxVersion: target}, nil
}
